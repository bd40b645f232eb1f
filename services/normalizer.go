package services

import (
	"regexp"
	"strings"
)

// numericCell matches spreadsheet numbers such as "120", "120.0" or "045".
var numericCell = regexp.MustCompile(`^([0-9]+)(\.[0-9]+)?$`)

// NormalizeModel canonicalises a model name so values typed by hand and
// values coerced by a spreadsheet compare equal. It is total and idempotent;
// the empty result is left for the validator to reject.
func NormalizeModel(raw string) string {
	s := strings.TrimSpace(raw)
	if m := numericCell.FindStringSubmatch(s); m != nil {
		s = canonicalDigits(m[1])
	}

	var b strings.Builder
	b.Grow(len(s))
	allDigits := true
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch >= '0' && ch <= '9':
			b.WriteByte(ch)
		case (ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z'):
			b.WriteByte(ch)
			allDigits = false
		}
	}

	out := b.String()
	if allDigits && out != "" {
		// "0-45" strips to "045"; canonicalise again so a second pass is a no-op
		out = canonicalDigits(out)
	}
	return out
}

// canonicalDigits is the integer re-stringification of a digit run without
// going through a fixed-width integer.
func canonicalDigits(digits string) string {
	trimmed := strings.TrimLeft(digits, "0")
	if trimmed == "" {
		return "0"
	}
	return trimmed
}
