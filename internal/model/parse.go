package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// ErrInvalidIdentifier is returned when a raw line cannot be read as a patent number.
var ErrInvalidIdentifier = errors.New("invalid identifier")

// ParseError records a line that could not be parsed.
//
// Line is 1-indexed. Use errors.Is(err, ErrInvalidIdentifier) to test for it.
type ParseError struct {
	Line int
	Raw  string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("line %d %q: %v", e.Line, e.Raw, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Parse normalizes one raw line into an Identifier.
//
// The following steps are applied:
//  1. Separators (; , space - . / newline tab) and anything outside printable
//     ASCII are removed, the rest is upper-cased
//  2. A leading run of non-digits is taken as the country code ("US" if the
//     input starts with a digit)
//  3. The part after the country code must be at least two characters;
//     a trailing kind code such as "A1" or "B2" is then dropped
//  4. The remainder is read as a base-10 number
//
// Example:
//
//	Parse("9842120")      // US 9,842,120
//	Parse("us-9842120")   // US 9,842,120
//	Parse("EP1234567B1")  // EP 1,234,567
//	Parse("garbage!!")    // ErrInvalidIdentifier
//	Parse("US9")          // ErrInvalidIdentifier
func Parse(raw string) (Identifier, error) {
	s := sanitize(raw)
	if len(s) < 2 {
		return Identifier{}, fmt.Errorf("%w: too short", ErrInvalidIdentifier)
	}

	cc := DefaultCountryCode
	if isLetter(s[0]) {
		i := 1
		for i < len(s)-1 && !isDigit(s[i]) {
			i++
		}
		cc, s = s[:i], s[i:]
		if !allLetters(cc) {
			return Identifier{}, fmt.Errorf("%w: country code %q", ErrInvalidIdentifier, cc)
		}
	}

	if len(s) < 2 {
		return Identifier{}, fmt.Errorf("%w: grant number %q too short", ErrInvalidIdentifier, s)
	}
	if n := len(s); isLetter(s[n-2]) && isDigit(s[n-1]) {
		s = s[:n-2]
	}
	if s == "" {
		return Identifier{}, fmt.Errorf("%w: no grant number", ErrInvalidIdentifier)
	}
	for i := 0; i < len(s); i++ {
		if !isDigit(s[i]) {
			return Identifier{}, fmt.Errorf("%w: grant number %q", ErrInvalidIdentifier, s)
		}
	}

	number, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return Identifier{}, fmt.Errorf("%w: %v", ErrInvalidIdentifier, err)
	}

	return Identifier{CountryCode: cc, Number: number}, nil
}

func sanitize(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case strings.IndexByte(";,-./ \n\t", c) >= 0:
		case c < 0x20 || c > 0x7e:
		case c >= 'a' && c <= 'z':
			b.WriteByte(c - 'a' + 'A')
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}

func isLetter(c byte) bool {
	return (c >= 'A' && c <= 'Z') || (c >= 'a' && c <= 'z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

func allLetters(s string) bool {
	for i := 0; i < len(s); i++ {
		if !isLetter(s[i]) {
			return false
		}
	}
	return true
}
