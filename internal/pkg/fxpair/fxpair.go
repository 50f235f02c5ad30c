package fxpair

import (
	"fmt"
	"strings"
)

// Pair is a six-letter FX currency pair in compact form, e.g. "USDJPY".
type Pair string

// Parse normalizes a raw pair string ("usd/jpy", "USD-JPY", "USDJPY")
// into compact form. Returns an error when the result is not six ASCII
// letters.
func Parse(raw string) (Pair, error) {
	s := strings.ToUpper(strings.TrimSpace(raw))
	for _, sep := range []string{"/", "-", "_", " "} {
		s = strings.ReplaceAll(s, sep, "")
	}
	if len(s) != 6 {
		return "", fmt.Errorf("invalid currency pair %q", raw)
	}
	for _, r := range s {
		if r < 'A' || r > 'Z' {
			return "", fmt.Errorf("invalid currency pair %q", raw)
		}
	}
	return Pair(s), nil
}

// MustParse panics on invalid input. For tests and package constants.
func MustParse(raw string) Pair {
	p, err := Parse(raw)
	if err != nil {
		panic(err)
	}
	return p
}

func (p Pair) Base() string  { return string(p)[:3] }
func (p Pair) Quote() string { return string(p)[3:] }

// Slash renders the pair as "USD/JPY" for display.
func (p Pair) Slash() string {
	if len(p) != 6 {
		return string(p)
	}
	return p.Base() + "/" + p.Quote()
}

func (p Pair) String() string { return string(p) }

// ForBase returns the pair quoting base against quote, e.g.
// ForBase("USD", "JPY") == "USDJPY".
func ForBase(base, quote string) (Pair, error) {
	return Parse(base + quote)
}
