package main

import (
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

const keyringService = "shopflow"

var (
	keyringSet    = keyring.Set
	keyringGet    = keyring.Get
	keyringDelete = keyring.Delete
)

// resolvePassword fills cfg.Password from the system keyring when the
// environment did not provide one.
func resolvePassword(cfg *Config) error {
	if cfg.Password != "" || cfg.Username == "" {
		return nil
	}

	pw, err := keyringGet(keyringService, cfg.Username)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("keyring lookup for %s: %w", cfg.Username, err)
	}
	cfg.Password = pw
	return nil
}

func storePassword(username, password string) error {
	if username == "" {
		return errors.New("username is required to store a password")
	}
	if password == "" {
		return errors.New("refusing to store an empty password")
	}
	return keyringSet(keyringService, username, password)
}

func deletePassword(username string) error {
	if username == "" {
		return errors.New("username is required to delete a password")
	}
	err := keyringDelete(keyringService, username)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}
