// Package region defines the watershed study area: the state it sits in
// and the census identifier prefixes that belong to it.
package region

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Region is a named set of census geographies loaded from a YAML file.
// Members are identifier prefixes: a 5-digit county prefix includes
// every tract and block group under it.
type Region struct {
	Name    string   `yaml:"name"`
	State   string   `yaml:"state"`
	Members []string `yaml:"members"`
}

// Load reads a region definition from a YAML file.
func Load(path string) (*Region, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "region: read %s", path)
	}

	var r Region
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, eris.Wrapf(err, "region: parse %s", path)
	}

	if r.Name == "" {
		return nil, eris.New("region: name is required")
	}
	if r.State == "" {
		return nil, eris.New("region: state is required")
	}
	if len(r.Members) == 0 {
		return nil, eris.New("region: at least one member prefix is required")
	}
	return &r, nil
}

// Contains reports whether the identifier falls under any member prefix.
func (r *Region) Contains(id string) bool {
	for _, m := range r.Members {
		if strings.HasPrefix(id, m) {
			return true
		}
	}
	return false
}

// Mask returns a per-row membership mask for the given identifiers.
func (r *Region) Mask(ids []string) []bool {
	mask := make([]bool, len(ids))
	for i, id := range ids {
		mask[i] = r.Contains(id)
	}
	return mask
}

// StateMask returns a per-row mask of rows whose state name matches the
// region's state, compared case-insensitively.
func (r *Region) StateMask(states []string) []bool {
	mask := make([]bool, len(states))
	for i, s := range states {
		mask[i] = strings.EqualFold(s, r.State)
	}
	return mask
}
