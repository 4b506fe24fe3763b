package source

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNaming_Paths(t *testing.T) {
	n := Naming{
		Dir:      "data",
		Prefix:   "coccidioidomycosis_cases_",
		Suffix:   ".csv",
		Variants: map[int][]string{2020: {"_a", "_b"}},
	}

	tests := []struct {
		period   int
		expected []string
	}{
		{2019, []string{filepath.Join("data", "coccidioidomycosis_cases_2019.csv")}},
		{2020, []string{
			filepath.Join("data", "coccidioidomycosis_cases_2020_a.csv"),
			filepath.Join("data", "coccidioidomycosis_cases_2020_b.csv"),
		}},
	}

	for _, tt := range tests {
		t.Run(filepath.Base(tt.expected[0]), func(t *testing.T) {
			assert.Equal(t, tt.expected, n.Paths(tt.period))
		})
	}
}

func TestNaming_NoDir(t *testing.T) {
	assert.Equal(t, []string{"x1.txt"}, Naming{Prefix: "x", Suffix: ".txt"}.Paths(1))
}
