package model

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		input string
		want  Identifier
	}{
		{"9842120", Identifier{"US", 9842120}},
		{"US9842120", Identifier{"US", 9842120}},
		{"US 9,842,120", Identifier{"US", 9842120}},
		{"us-9842120", Identifier{"US", 9842120}},
		{"US9842120\r\n", Identifier{"US", 9842120}},
		{"\tus 9.842.120;", Identifier{"US", 9842120}},
		{"EP1234567B1", Identifier{"EP", 1234567}},
		{"WO2019123456A1", Identifier{"WO", 2019123456}},
		{"US 7/654,321 B2", Identifier{"US", 7654321}},
		{"DE10", Identifier{"DE", 10}},
		{"US42", Identifier{"US", 42}},
		{"US1A1", Identifier{"US", 1}},
		{"US9842120ü", Identifier{"US", 9842120}},
		{"12", Identifier{"US", 12}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := Parse(tt.input)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParse_Invalid(t *testing.T) {
	tests := []string{
		"",
		"   ",
		"7",
		"garbage!!",
		"USA",
		"AB",
		"US#123",
		"US1X23",
		"US9",
		"A1",
		"B2",
		"USB1",
		"EP-1",
		"US99999999999999999999999",
	}

	for _, input := range tests {
		t.Run(input, func(t *testing.T) {
			_, err := Parse(input)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidIdentifier), "got %v", err)
		})
	}
}

func TestParse_RecoversCountryCodeAndDigits(t *testing.T) {
	for _, cc := range []string{"U", "US", "EP", "WO", "ABCD"} {
		for _, digits := range []string{"1", "42", "9842120", "100000"} {
			got, err := Parse(cc + digits)
			require.NoError(t, err, cc+digits)
			assert.Equal(t, cc, got.CountryCode)
			assert.Equal(t, digits, got.Compact()[len(cc):])
		}
	}
}

func TestIdentifier_Forms(t *testing.T) {
	tests := []struct {
		id      Identifier
		display string
		compact string
	}{
		{NewIdentifier("US", 9842120), "US 9,842,120", "US9842120"},
		{NewIdentifier("EP", 1234567), "EP 1,234,567", "EP1234567"},
		{NewIdentifier("DE", 10), "DE 10", "DE10"},
		{NewIdentifier("US", 0), "US 0", "US0"},
	}

	for _, tt := range tests {
		t.Run(tt.compact, func(t *testing.T) {
			assert.Equal(t, tt.display, tt.id.Display())
			assert.Equal(t, tt.display, tt.id.String())
			assert.Equal(t, tt.compact, tt.id.Compact())
			assert.Equal(t, tt.compact, tt.id.Key())
			assert.Equal(t, tt.compact+".pdf", tt.id.FileName())
		})
	}
}

func TestBuildFrom(t *testing.T) {
	lines := []string{"US9842120", "us 9,842,120", "garbage!!", "EP1234567B1"}

	ids, errs := BuildFrom(lines)

	assert.Equal(t, []Identifier{{"US", 9842120}, {"EP", 1234567}}, ids)
	require.Len(t, errs, 1)
	assert.Equal(t, 3, errs[0].Line)
	assert.Equal(t, "garbage!!", errs[0].Raw)
	assert.ErrorIs(t, errs[0], ErrInvalidIdentifier)
}

func TestBuildFrom_KeepsFirstOccurrence(t *testing.T) {
	lines := []string{"EP12", "US55", "", "EP 12", "DE70", "us55", "EP12A1"}

	ids, errs := BuildFrom(lines)

	assert.Empty(t, errs)
	assert.Equal(t, []Identifier{{"EP", 12}, {"US", 55}, {"DE", 70}}, ids)
}

func TestBuildFrom_Empty(t *testing.T) {
	ids, errs := BuildFrom(nil)
	assert.Empty(t, ids)
	assert.Empty(t, errs)
}
