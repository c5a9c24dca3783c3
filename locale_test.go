package main

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"
)

// Test locale detection
func TestDetectSystemLocale(t *testing.T) {
	testCases := []struct {
		name           string
		lang           string
		lcAll          string
		lcMessages     string
		expectedLocale string
	}{
		{
			name:           "English US locale from LANG",
			lang:           "en_US.UTF-8",
			expectedLocale: "en_US",
		},
		{
			name:           "Hindi locale from LANG",
			lang:           "hi_IN.UTF-8",
			expectedLocale: "hi_IN",
		},
		{
			name:           "LANG takes precedence over LC_ALL",
			lang:           "en_US.UTF-8",
			lcAll:          "hi_IN.UTF-8",
			expectedLocale: "en_US",
		},
		{
			name:           "LC_ALL used when LANG is empty",
			lcAll:          "hi_IN.UTF-8",
			expectedLocale: "hi_IN",
		},
		{
			name:           "C locale is skipped",
			lang:           "C.UTF-8",
			lcMessages:     "de_DE.UTF-8",
			expectedLocale: "de_DE",
		},
		{
			name:           "Fallback to en_US when empty",
			expectedLocale: "en_US",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("LANG", tc.lang)
			t.Setenv("LC_ALL", tc.lcAll)
			t.Setenv("LC_MESSAGES", tc.lcMessages)

			if got := DetectSystemLocale(); got != tc.expectedLocale {
				t.Errorf("Expected locale '%s', got '%s'", tc.expectedLocale, got)
			}
		})
	}
}

func TestLoadLocaleFrom(t *testing.T) {
	dir := t.TempDir()
	content := "# Test Locale\ntest_key: \"Test Value\"\ntest_with_param: \"Hello, %s!\"\n"
	if err := os.WriteFile(filepath.Join(dir, "test_locale.yaml"), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test locale file: %v", err)
	}

	t.Run("Load valid locale file", func(t *testing.T) {
		l, err := LoadLocaleFrom(dir, "test_locale")
		if err != nil {
			t.Fatalf("LoadLocaleFrom failed: %v", err)
		}
		if l.translations["test_key"] != "Test Value" {
			t.Errorf("Expected 'Test Value', got '%s'", l.translations["test_key"])
		}
		if l.locale != "test_locale" {
			t.Errorf("Expected locale 'test_locale', got '%s'", l.locale)
		}
	})

	t.Run("Load non-existent locale file", func(t *testing.T) {
		if _, err := LoadLocaleFrom(dir, "xx_XX"); err == nil {
			t.Error("Expected an error for a missing locale file")
		}
	})

	t.Run("Load malformed locale file", func(t *testing.T) {
		if err := os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte("- just\n- a list\n"), 0644); err != nil {
			t.Fatal(err)
		}
		if _, err := LoadLocaleFrom(dir, "bad"); err == nil {
			t.Error("Expected an error for a malformed locale file")
		}
	})
}

// Test T() translation function
func TestTranslationFunction(t *testing.T) {
	originalLocale := globalLocale
	globalLocale = &Locale{
		translations: map[string]string{
			"simple_key":          "Simple Translation",
			"key_with_param":      "Hello, %s!",
			"key_with_two_params": "%d cookies, %d rejected",
		},
		locale: "test",
	}
	defer func() {
		globalLocale = originalLocale
	}()

	testCases := []struct {
		name           string
		key            string
		params         []interface{}
		expectedOutput string
	}{
		{"Simple translation", "simple_key", nil, "Simple Translation"},
		{"Translation with one parameter", "key_with_param", []interface{}{"World"}, "Hello, World!"},
		{"Translation with two parameters", "key_with_two_params", []interface{}{12, 1}, "12 cookies, 1 rejected"},
		{"Missing key returns key itself", "nonexistent_key", nil, "nonexistent_key"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if result := T(tc.key, tc.params...); result != tc.expectedOutput {
				t.Errorf("Expected '%s', got '%s'", tc.expectedOutput, result)
			}
		})
	}
}

func TestTranslationWithNilGlobalLocale(t *testing.T) {
	originalLocale := globalLocale
	globalLocale = nil
	defer func() {
		globalLocale = originalLocale
	}()

	if result := T("test_key"); result != "test_key" {
		t.Errorf("Expected T() to return key when globalLocale is nil, got '%s'", result)
	}
	if result := GetLocale(); result != "en_US" {
		t.Errorf("Expected default locale 'en_US' when globalLocale is nil, got '%s'", result)
	}
}

func TestInitLocaleEnglish(t *testing.T) {
	originalLocale := globalLocale
	defer func() {
		globalLocale = originalLocale
	}()
	t.Setenv("LANG", "en_US.UTF-8")

	if err := InitLocale(); err != nil {
		t.Fatalf("InitLocale failed: %v", err)
	}
	if GetLocale() != "en_US" {
		t.Errorf("Expected en_US, got '%s'", GetLocale())
	}
	if T("payment_reached") == "payment_reached" {
		t.Error("built-in catalogue not loaded")
	}
}

func TestInitLocaleMissingCatalogueKeepsEnglish(t *testing.T) {
	originalLocale := globalLocale
	defer func() {
		globalLocale = originalLocale
	}()
	t.Setenv("LANG", "zz_ZZ.UTF-8")

	if err := InitLocale(); err == nil {
		t.Error("Expected an error for a locale without a catalogue")
	}
	if T("session_saved", "cookies.json") == "session_saved" {
		t.Error("English catalogue not kept after the overlay failed")
	}
}

// Every T() key used in the sources must exist in the built-in catalogue.
func TestLocalizationKeysExist(t *testing.T) {
	catalog, err := parseCatalog(defaultCatalog, "en_US")
	if err != nil {
		t.Fatalf("built-in catalogue does not parse: %v", err)
	}

	files, err := filepath.Glob("*.go")
	if err != nil {
		t.Fatal(err)
	}
	keyRe := regexp.MustCompile(`\bT\("([a-z0-9_]+)"`)

	checked := 0
	for _, f := range files {
		if strings.HasSuffix(f, "_test.go") {
			continue
		}
		data, err := os.ReadFile(f)
		if err != nil {
			t.Fatal(err)
		}
		for _, m := range keyRe.FindAllStringSubmatch(string(data), -1) {
			checked++
			if _, ok := catalog.translations[m[1]]; !ok {
				t.Errorf("%s uses missing key %q", f, m[1])
			}
		}
	}
	if checked == 0 {
		t.Error("no translation keys found in the sources")
	}
}
