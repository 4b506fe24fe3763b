// Package source locates and reads the raw input files: per-period case
// tables, climate tables, and the station registry.
package source

import (
	"path/filepath"
	"strconv"
)

// Naming builds the expected case file paths for a period:
// Dir/Prefix + period + variant + Suffix.
type Naming struct {
	Dir      string
	Prefix   string
	Suffix   string
	Variants map[int][]string
}

// Paths returns one path per configured variant of period, in configuration
// order, or a single path when the period has no variants.
func (n Naming) Paths(period int) []string {
	variants := n.Variants[period]
	if len(variants) == 0 {
		variants = []string{""}
	}
	base := n.Prefix + strconv.Itoa(period)
	out := make([]string, len(variants))
	for i, v := range variants {
		out[i] = filepath.Join(n.Dir, base+v+n.Suffix)
	}
	return out
}
