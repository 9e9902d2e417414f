// Package lang validates output-language codes for rewritten text.
package lang

import (
	"fmt"
	"strings"
)

// Language is a validated ISO 639-1 code, optionally with a region
// ("pt-br"). The zero value means "same language as the source".
type Language struct {
	code string
}

// Parse validates a language code. Accepts "pt-BR", "pt_BR", "PT-br".
// An empty string parses to the zero Language.
func Parse(s string) (Language, error) {
	if s == "" {
		return Language{}, nil
	}
	code := normalize(s)
	if !known[baseCode(code)] {
		return Language{}, fmt.Errorf("invalid language code %q (use ISO 639-1 codes like 'en', 'fr', 'pt-BR'): %w",
			s, ErrInvalid)
	}
	return Language{code: code}, nil
}

// MustParse parses a code, panicking if invalid. Use only in tests.
func MustParse(s string) Language {
	l, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return l
}

// String returns the normalized code.
func (l Language) String() string { return l.code }

// IsZero reports whether no output language was requested.
func (l Language) IsZero() bool { return l.code == "" }

// DisplayName returns a readable name for prompts, e.g. "Brazilian Portuguese".
// Unknown regions fall back to the base language, then to the code itself.
func (l Language) DisplayName() string {
	if name, ok := displayNames[l.code]; ok {
		return name
	}
	if name, ok := displayNames[baseCode(l.code)]; ok {
		return name
	}
	return l.code
}

// PromptName returns the name to use in a "Respond in" instruction, or ""
// when the source language should be kept.
func (l Language) PromptName() string {
	if l.IsZero() {
		return ""
	}
	return l.DisplayName()
}

func normalize(s string) string {
	return strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), "_", "-"))
}

func baseCode(code string) string {
	base, _, _ := strings.Cut(code, "-")
	return base
}

var displayNames = map[string]string{
	"ar": "Arabic", "da": "Danish", "de": "German", "en": "English",
	"en-gb": "British English", "en-us": "American English",
	"es": "Spanish", "es-mx": "Mexican Spanish", "fi": "Finnish",
	"fr": "French", "fr-ca": "Canadian French", "hi": "Hindi",
	"it": "Italian", "ja": "Japanese", "ko": "Korean", "nl": "Dutch",
	"no": "Norwegian", "pl": "Polish", "pt": "Portuguese",
	"pt-br": "Brazilian Portuguese", "pt-pt": "European Portuguese",
	"ru": "Russian", "sv": "Swedish", "tr": "Turkish", "uk": "Ukrainian",
	"zh": "Chinese", "zh-cn": "Simplified Chinese", "zh-tw": "Traditional Chinese",
}

var known = map[string]bool{
	"af": true, "ar": true, "bg": true, "bn": true, "ca": true, "cs": true,
	"da": true, "de": true, "el": true, "en": true, "es": true, "et": true,
	"fa": true, "fi": true, "fr": true, "gu": true, "he": true, "hi": true,
	"hr": true, "hu": true, "id": true, "it": true, "ja": true, "kn": true,
	"ko": true, "lt": true, "lv": true, "mk": true, "ml": true, "mr": true,
	"ms": true, "nl": true, "no": true, "pa": true, "pl": true, "pt": true,
	"ro": true, "ru": true, "sk": true, "sl": true, "sr": true, "sv": true,
	"sw": true, "ta": true, "te": true, "th": true, "tl": true, "tr": true,
	"uk": true, "ur": true, "vi": true, "zh": true,
}
