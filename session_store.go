package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
)

type RestoreOutcome int

const (
	RestoreNoFile RestoreOutcome = iota
	RestoreCorrupt
	RestoreFailed
	RestoreApplied
)

func (o RestoreOutcome) String() string {
	switch o {
	case RestoreNoFile:
		return "no-file"
	case RestoreCorrupt:
		return "corrupt"
	case RestoreFailed:
		return "failed"
	case RestoreApplied:
		return "applied"
	}
	return "unknown"
}

// RestoreResult describes a restore attempt. Applied only means the cookies
// were offered to the browser; it says nothing about being signed in.
type RestoreResult struct {
	Outcome  RestoreOutcome
	Injected int
	Rejected int
	Err      error
}

func (r RestoreResult) OK() bool { return r.Outcome == RestoreApplied }

// SessionStore persists browser cookies between runs. Concurrent runs
// against the same file are not supported.
type SessionStore struct {
	fs      afero.Fs
	path    string
	baseURL string
	settle  time.Duration
	log     *zap.Logger
}

func NewSessionStore(fs afero.Fs, path, baseURL string, settle time.Duration, log *zap.Logger) *SessionStore {
	return &SessionStore{
		fs:      fs,
		path:    path,
		baseURL: baseURL,
		settle:  settle,
		log:     log.Named("session"),
	}
}

func (s *SessionStore) Path() string { return s.path }

func (s *SessionStore) Exists() bool {
	ok, err := afero.Exists(s.fs, s.path)
	return err == nil && ok
}

// Save writes every cookie of the live session, without SameSite, replacing
// any previous file.
func (s *SessionStore) Save(ctx context.Context, sess Session) error {
	cookies, err := sess.Cookies(ctx)
	if err != nil {
		return fmt.Errorf("read cookies: %w", err)
	}

	data, err := json.MarshalIndent(stripUnsupported(cookies), "", "  ")
	if err != nil {
		return fmt.Errorf("encode cookies: %w", err)
	}

	if dir := filepath.Dir(s.path); dir != "." {
		if err := s.fs.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0600); err != nil {
		return fmt.Errorf("write %s: %w", tmp, err)
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return fmt.Errorf("replace %s: %w", s.path, err)
	}

	s.log.Debug("saved cookies", zap.Int("count", len(cookies)), zap.String("path", s.path))
	return nil
}

// Load decodes the persisted cookies with SameSite stripped.
func (s *SessionStore) Load() ([]Cookie, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, err
	}

	var cookies []Cookie
	if err := json.Unmarshal(data, &cookies); err != nil {
		return nil, fmt.Errorf("decode %s: %w", s.path, err)
	}
	return stripUnsupported(cookies), nil
}

// Restore replays the persisted cookies into sess. Individual cookies the
// browser rejects are counted and skipped.
func (s *SessionStore) Restore(ctx context.Context, sess Session) RestoreResult {
	cookies, err := s.Load()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return RestoreResult{Outcome: RestoreNoFile}
		}
		s.log.Warn("could not read cookies file", zap.String("path", s.path), zap.Error(err))
		return RestoreResult{Outcome: RestoreCorrupt, Err: err}
	}

	if err := sess.Navigate(ctx, s.baseURL); err != nil {
		s.log.Warn("could not open base url before restoring cookies", zap.Error(err))
		return RestoreResult{Outcome: RestoreFailed, Err: err}
	}
	if err := sleepCtx(ctx, s.settle); err != nil {
		return RestoreResult{Outcome: RestoreFailed, Err: err}
	}

	res := RestoreResult{Outcome: RestoreApplied}
	for _, c := range cookies {
		if err := sess.SetCookie(ctx, c); err != nil {
			s.log.Warn("could not add cookie", zap.String("name", c.Name), zap.String("domain", c.Domain), zap.Error(err))
			res.Rejected++
			continue
		}
		res.Injected++
	}

	if err := sess.Navigate(ctx, s.baseURL); err != nil {
		s.log.Warn("could not reload base url after restoring cookies", zap.Error(err))
		return RestoreResult{Outcome: RestoreFailed, Injected: res.Injected, Rejected: res.Rejected, Err: err}
	}
	if err := sleepCtx(ctx, s.settle); err != nil {
		return RestoreResult{Outcome: RestoreFailed, Injected: res.Injected, Rejected: res.Rejected, Err: err}
	}

	s.log.Debug("restored cookies", zap.Int("injected", res.Injected), zap.Int("rejected", res.Rejected))
	return res
}

func (s *SessionStore) Clear() error {
	err := s.fs.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
