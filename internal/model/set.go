package model

import "strings"

// BuildFrom parses every line and returns the ordered, duplicate-free identifiers.
//
// Each line is parsed on its own; a bad line is reported in the returned
// errors and does not stop the batch. Blank lines are skipped silently.
// Duplicates (same compact form) keep their first occurrence, so the result
// follows input order.
//
// Example:
//
//	ids, errs := model.BuildFrom([]string{"US9842120", "us 9,842,120", "garbage!!", "EP1234567B1"})
//	// ids  = [US9842120 EP1234567]
//	// errs = [line 3 "garbage!!": invalid identifier: ...]
func BuildFrom(lines []string) ([]Identifier, []*ParseError) {
	var (
		ids  []Identifier
		errs []*ParseError
		seen = make(map[string]struct{}, len(lines))
	)

	for i, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}

		id, err := Parse(line)
		if err != nil {
			errs = append(errs, &ParseError{Line: i + 1, Raw: line, Err: err})
			continue
		}

		if _, dup := seen[id.Key()]; dup {
			continue
		}
		seen[id.Key()] = struct{}{}
		ids = append(ids, id)
	}

	return ids, errs
}
