// Package band normalizes raw radio-band and cell-name strings into
// canonical short codes across 2G/3G/4G/5G encodings.
package band

import (
	"regexp"
	"strings"
)

// Pattern order matters: a string can incidentally satisfy a later pattern
// after an earlier one failed, so the checks run in this exact sequence.
var (
	nr        = regexp.MustCompile(`N\d{2,4}`)        // 5G: N78, N41, N28
	lte       = regexp.MustCompile(`L\d{2,4}`)        // 4G: L800, L1800, L2100
	umts      = regexp.MustCompile(`[UW]\d{3,4}`)     // 3G: U900, U2100, W2100
	gsm       = regexp.MustCompile(`G\d{3,4}`)        // 2G: G900, G1800
	bandWord  = regexp.MustCompile(`BAND ?(\d+)`)     // "Band 8", "BAND8" -> B8
	canonical = regexp.MustCompile(`^B\d{1,4}$`)      // already-normalized fallback code
)

// Normalize maps a raw band/cell string to its canonical short code. The
// second return value is false when no pattern matches; callers keep the
// original value in that case. Normalizing an already-canonical code returns
// it unchanged.
func Normalize(raw string) (string, bool) {
	if raw == "" {
		return "", false
	}
	s := strings.ReplaceAll(strings.ToUpper(raw), " ", "")

	if m := nr.FindString(s); m != "" {
		return m, true
	}
	if m := lte.FindString(s); m != "" {
		return m, true
	}
	if m := umts.FindString(s); m != "" {
		return m, true
	}
	if m := gsm.FindString(s); m != "" {
		return m, true
	}
	if m := bandWord.FindStringSubmatch(s); m != nil {
		return "B" + m[1], true
	}
	if canonical.MatchString(s) {
		return s, true
	}
	return "", false
}
