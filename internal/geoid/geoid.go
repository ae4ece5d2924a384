// Package geoid handles US Census geography identifiers. A block group
// is identified by a 12-digit code whose 11-digit prefix names its
// parent tract (state 2 + county 3 + tract 6 + block group 1).
package geoid

import "github.com/rotisserie/eris"

const (
	blockGroupLen = 12
	tractLen      = 11
	stateLen      = 2
	countyLen     = 5
)

// TractID derives the parent tract identifier from a block-group
// identifier by truncation.
func TractID(blockGroupID string) (string, error) {
	if err := validate(blockGroupID, blockGroupLen); err != nil {
		return "", err
	}
	return blockGroupID[:tractLen], nil
}

// StateFIPS returns the 2-digit state FIPS prefix of any census
// geography identifier.
func StateFIPS(id string) (string, error) {
	if len(id) < stateLen {
		return "", eris.Errorf("geoid: %q too short for a state prefix", id)
	}
	if err := digits(id[:stateLen]); err != nil {
		return "", err
	}
	return id[:stateLen], nil
}

// CountyFIPS returns the 5-digit state+county prefix.
func CountyFIPS(id string) (string, error) {
	if len(id) < countyLen {
		return "", eris.Errorf("geoid: %q too short for a county prefix", id)
	}
	if err := digits(id[:countyLen]); err != nil {
		return "", err
	}
	return id[:countyLen], nil
}

// ValidBlockGroup reports whether id is a well-formed block-group code.
func ValidBlockGroup(id string) bool {
	return validate(id, blockGroupLen) == nil
}

func validate(id string, width int) error {
	if len(id) != width {
		return eris.Errorf("geoid: %q has %d characters, want %d", id, len(id), width)
	}
	return digits(id)
}

func digits(id string) error {
	for _, r := range id {
		if r < '0' || r > '9' {
			return eris.Errorf("geoid: %q contains non-digit %q", id, r)
		}
	}
	return nil
}
