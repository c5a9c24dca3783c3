package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/spf13/afero"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Artifact is one incident's snapshot pair. A path is empty when that half
// could not be written.
type Artifact struct {
	Label      string
	Screenshot string
	Markup     string
	Title      string
}

// DebugCapture writes post-mortem snapshots. Nothing reads them back.
type DebugCapture struct {
	fs  afero.Fs
	dir string
	now func() time.Time
	log *zap.Logger
}

func NewDebugCapture(fs afero.Fs, dir string, log *zap.Logger) *DebugCapture {
	return &DebugCapture{
		fs:  fs,
		dir: dir,
		now: time.Now,
		log: log.Named("capture"),
	}
}

var unsafeLabelChars = regexp.MustCompile(`[^A-Za-z0-9_-]+`)

func sanitizeLabel(label string) string {
	label = unsafeLabelChars.ReplaceAllString(label, "_")
	label = strings.Trim(label, "_")
	if label == "" {
		return "incident"
	}
	return label
}

// Capture saves a screenshot and the page markup as <label>_<timestamp>.png
// and .html. Each half is attempted even if the other fails.
func (d *DebugCapture) Capture(ctx context.Context, sess Session, label string) (Artifact, error) {
	art := Artifact{Label: sanitizeLabel(label)}

	if err := d.fs.MkdirAll(d.dir, 0755); err != nil {
		return art, fmt.Errorf("create debug dir: %w", err)
	}

	base := filepath.Join(d.dir, art.Label+"_"+d.now().Format("20060102_150405"))
	var errs []error

	if png, err := sess.Screenshot(ctx); err != nil {
		errs = append(errs, fmt.Errorf("screenshot: %w", err))
	} else if err := afero.WriteFile(d.fs, base+".png", png, 0644); err != nil {
		errs = append(errs, fmt.Errorf("write screenshot: %w", err))
	} else {
		art.Screenshot = base + ".png"
		fmt.Println(T("debug_saved_screenshot", art.Screenshot))
	}

	if markup, err := sess.HTML(ctx); err != nil {
		errs = append(errs, fmt.Errorf("page source: %w", err))
	} else if err := afero.WriteFile(d.fs, base+".html", []byte(markup), 0644); err != nil {
		errs = append(errs, fmt.Errorf("write page source: %w", err))
	} else {
		art.Markup = base + ".html"
		art.Title = pageTitle(markup)
		fmt.Println(T("debug_saved_markup", art.Markup))
	}

	d.log.Info("captured page state",
		zap.String("label", art.Label),
		zap.String("screenshot", art.Screenshot),
		zap.String("markup", art.Markup),
		zap.String("title", art.Title),
	)

	return art, errors.Join(errs...)
}

// pageTitle returns the text of the first <title> element, if any.
func pageTitle(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}

	var find func(*html.Node) string
	find = func(n *html.Node) string {
		if n.Type == html.ElementNode && n.DataAtom == atom.Title {
			var b strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					b.WriteString(c.Data)
				}
			}
			return strings.Join(strings.Fields(b.String()), " ")
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if t := find(c); t != "" {
				return t
			}
		}
		return ""
	}
	return find(doc)
}
