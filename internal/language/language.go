package language

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Auto requests language detection from the transcription collaborator.
const Auto = "auto"

// Word forms accepted in addition to BCP 47 / ISO 639 codes.
var words = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
}

// NormalizeHint converts a user supplied language hint to the base language
// code WhisperX expects (ISO 639-1 where one exists). Empty input and "auto"
// map to Auto.
func NormalizeHint(hint string) (string, error) {
	hint = strings.ToLower(strings.TrimSpace(hint))
	switch hint {
	case "", Auto, "detect", "auto-detect":
		return Auto, nil
	}
	if code, ok := words[hint]; ok {
		return code, nil
	}
	tag, err := language.Parse(hint)
	if err != nil {
		return "", fmt.Errorf("unrecognized language %q: %w", hint, err)
	}
	base, confidence := tag.Base()
	if confidence == language.No {
		return "", fmt.Errorf("unrecognized language %q", hint)
	}
	return base.String(), nil
}

// ToISO2 converts any recognized language code or word to its base code.
// Returns empty string for unrecognized input and for Auto.
func ToISO2(code string) string {
	normalized, err := NormalizeHint(code)
	if err != nil || normalized == Auto {
		return ""
	}
	return normalized
}

// DisplayName returns a human-readable language name for diagnostics.
func DisplayName(code string) string {
	normalized, err := NormalizeHint(code)
	if err != nil {
		return strings.ToUpper(strings.TrimSpace(code))
	}
	if normalized == Auto {
		return "Auto-detect"
	}
	tag, err := language.Parse(normalized)
	if err != nil {
		return strings.ToUpper(normalized)
	}
	if name := display.English.Languages().Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(normalized)
}
