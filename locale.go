package main

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed lang/en_US.yaml
var defaultCatalog []byte

type Locale struct {
	translations map[string]string
	locale       string
}

var globalLocale *Locale

// InitLocale loads the built-in English catalogue, then overlays
// lang/<locale>.yaml from next to the executable when one exists.
func InitLocale() error {
	base, err := parseCatalog(defaultCatalog, "en_US")
	if err != nil {
		return fmt.Errorf("failed to parse built-in locale: %w", err)
	}
	globalLocale = base

	locale := DetectSystemLocale()
	if locale == "en_US" {
		return nil
	}

	l, err := LoadLocale(locale)
	if err != nil {
		return fmt.Errorf("locale %s unavailable, using en_US: %w", locale, err)
	}

	for k, v := range l.translations {
		base.translations[k] = v
	}
	base.locale = l.locale
	return nil
}

// DetectSystemLocale detects the user's system locale
func DetectSystemLocale() string {
	for _, key := range []string{"LANG", "LC_ALL", "LC_MESSAGES"} {
		if locale := os.Getenv(key); locale != "" {
			// LANG is typically like "en_US.UTF-8"
			parts := strings.Split(locale, ".")
			if parts[0] != "" && parts[0] != "C" && parts[0] != "POSIX" {
				return parts[0]
			}
		}
	}

	if runtime.GOOS == "windows" {
		if locale := os.Getenv("LANG"); locale != "" {
			return locale
		}
	}

	return "en_US"
}

// LoadLocale loads a locale file from the lang/ directory next to the executable
func LoadLocale(locale string) (*Locale, error) {
	exePath, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("failed to get executable path: %w", err)
	}

	return LoadLocaleFrom(filepath.Join(filepath.Dir(exePath), "lang"), locale)
}

func LoadLocaleFrom(dir, locale string) (*Locale, error) {
	localeFile := filepath.Join(dir, locale+".yaml")

	data, err := os.ReadFile(localeFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read locale file %s: %w", localeFile, err)
	}

	l, err := parseCatalog(data, locale)
	if err != nil {
		return nil, fmt.Errorf("failed to parse locale file %s: %w", localeFile, err)
	}
	return l, nil
}

func parseCatalog(data []byte, locale string) (*Locale, error) {
	var translations map[string]string
	if err := yaml.Unmarshal(data, &translations); err != nil {
		return nil, err
	}
	if translations == nil {
		translations = map[string]string{}
	}
	return &Locale{translations: translations, locale: locale}, nil
}

// T translates a key with optional fmt parameters. Unknown keys come back unchanged.
func T(key string, params ...interface{}) string {
	if globalLocale == nil {
		return key
	}

	translation, ok := globalLocale.translations[key]
	if !ok {
		return key
	}

	if len(params) > 0 {
		return fmt.Sprintf(translation, params...)
	}

	return translation
}

// GetLocale returns the current locale code (e.g., "en_US")
func GetLocale() string {
	if globalLocale == nil {
		return "en_US"
	}
	return globalLocale.locale
}
