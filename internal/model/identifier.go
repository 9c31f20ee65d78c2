package model

import (
	"strconv"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// DefaultCountryCode is assumed when raw input carries no country prefix.
const DefaultCountryCode = "US"

// groupingPrinter renders numbers with English thousands separators.
var groupingPrinter = message.NewPrinter(language.English)

// Identifier is a parsed patent number.
//
// Identifier is an immutable value made of a country code and a grant number.
// Two renderings are derived from it:
//   - Display: "US 9,842,120" (thousands-grouped, for people)
//   - Compact: "US9842120" (filename stem and deduplication key)
//
// Two identifiers are the same patent when their compact forms are equal.
// Since both fields are plain values, == on Identifier agrees with that.
//
// Example:
//
//	id, err := model.Parse("us 9,842,120")
//	fmt.Println(id.Display()) // US 9,842,120
//	fmt.Println(id.Compact()) // US9842120
type Identifier struct {
	// CountryCode is the upper-case country prefix, e.g. "US" or "EP".
	CountryCode string

	// Number is the grant number without kind-code suffix.
	Number uint64
}

// NewIdentifier creates an Identifier from its parts.
func NewIdentifier(countryCode string, number uint64) Identifier {
	return Identifier{CountryCode: countryCode, Number: number}
}

// Compact returns the compact form, e.g. "US9842120".
func (id Identifier) Compact() string {
	return id.CountryCode + strconv.FormatUint(id.Number, 10)
}

// Display returns the display form, e.g. "US 9,842,120".
func (id Identifier) Display() string {
	return id.CountryCode + " " + groupingPrinter.Sprintf("%d", id.Number)
}

// Key returns the deduplication key. It is the compact form.
func (id Identifier) Key() string {
	return id.Compact()
}

// FileName returns the name the downloaded document is stored under.
func (id Identifier) FileName() string {
	return id.Compact() + ".pdf"
}

// String implements fmt.Stringer using the display form.
func (id Identifier) String() string {
	return id.Display()
}
