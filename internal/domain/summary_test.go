package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarize(t *testing.T) {
	rows := []ObservationRow{
		row("Arizona", 2020, 10),
		row("Nevada", 2020, 30),
		{Entity: "Utah", Period: intPtr(2020)},
		{Entity: "Oregon", Period: intPtr(2019)},
		{Entity: "Idaho", Value: floatPtr(5)},
	}

	out := Summarize(rows)

	require.Len(t, out, 2)
	assert.Equal(t, PeriodSummary{Period: 2019, Entities: 1, Missing: 1}, out[0])
	assert.Equal(t, PeriodSummary{
		Period:   2020,
		Entities: 3,
		Missing:  1,
		Total:    40,
		Mean:     20,
		Min:      10,
		Max:      30,
	}, out[1])
}

func TestSummarize_Empty(t *testing.T) {
	assert.Empty(t, Summarize(nil))
}
