// Package model defines the patent identifier used throughout
// the patent-downloader application.
//
// # Identifier
//
// Identifier is a country code plus a grant number:
//
//	id := model.NewIdentifier("US", 9842120)
//	fmt.Println(id.Display()) // "US 9,842,120"
//	fmt.Println(id.Compact()) // "US9842120"
//
// # Parsing
//
// Parse normalizes free-form input such as "us 9,842,120" or "EP1234567B1":
//
//	id, err := model.Parse("EP1234567B1")
//	if errors.Is(err, model.ErrInvalidIdentifier) {
//	    // skip the line
//	}
//
// # Identifier Sets
//
// BuildFrom turns the lines of an input file into an ordered list without
// duplicates, collecting one ParseError per rejected line:
//
//	ids, errs := model.BuildFrom(lines)
package model
