package transcriber

import (
	"fmt"
	"slices"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Languages are the ISO 639-1 codes accepted for transcription.
var Languages = []string{
	"en", "zh", "ja", "ko", "es", "fr", "de", "it", "pt", "ru",
	"ar", "hi", "vi", "th", "id", "ms", "nl", "pl", "tr", "uk",
	"cs", "sv", "da", "fi", "no", "he", "el", "ro", "hu", "sk",
	"bg", "hr", "lt", "lv", "et", "sl", "ca",
}

// LanguageName returns the English name for code, or code itself when it
// cannot be parsed.
func LanguageName(code string) string {
	tag, err := language.Parse(code)
	if err != nil {
		return code
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return code
}

// CheckLanguage accepts an empty code (auto-detect) or a supported one.
// English-only models (".en" suffix) accept only English.
func CheckLanguage(code, model string) error {
	if code == "" {
		return nil
	}
	if !slices.Contains(Languages, code) {
		return fmt.Errorf("%w: %q", ErrUnsupportedLanguage, code)
	}
	if isEnglishOnly(model) && code != "en" {
		return fmt.Errorf("%w: model %s is English-only, got %q", ErrUnsupportedLanguage, model, code)
	}
	return nil
}

func isEnglishOnly(model string) bool {
	m := strings.TrimSuffix(strings.ToLower(model), ".bin")
	return strings.HasSuffix(m, ".en")
}
