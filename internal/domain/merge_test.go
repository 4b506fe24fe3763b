package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMergeStations(t *testing.T) {
	stations := []StationRecord{
		{ID: "USC00021026", RegionCode: "AZ", RegionName: "Arizona"},
		{ID: "USC00042319", RegionCode: "CA", RegionName: "California"},
	}
	rows := []ObservationRow{
		row("USC00021026", 2020, 31.5),
		row("USC99999999", 2020, 12),
	}

	merged := MergeStations(rows, stations)

	require.Len(t, merged, 2)
	require.NotNil(t, merged[0].Station)
	assert.Equal(t, "Arizona", merged[0].Station.RegionName)
	assert.Nil(t, merged[1].Station)
	assert.Equal(t, rows[1], merged[1].ObservationRow)
}

func TestRegionClimate(t *testing.T) {
	az1 := StationRecord{ID: "S1", RegionCode: "AZ", RegionName: "Arizona"}
	az2 := StationRecord{ID: "S2", RegionCode: "AZ", RegionName: "Arizona"}
	pr := StationRecord{ID: "S3", RegionCode: "PR"}
	blank := StationRecord{ID: "S4"}

	merged := []MergedRow{
		{ObservationRow: row("S1", 2020, 30), Station: &az1},
		{ObservationRow: row("S2", 2020, 34), Station: &az2},
		{ObservationRow: row("S1", 2019, 28), Station: &az1},
		{ObservationRow: row("S3", 2020, 26), Station: &pr},
		{ObservationRow: row("S4", 2020, 99), Station: &blank},
		{ObservationRow: row("S5", 2020, 99)},
		{ObservationRow: ObservationRow{Entity: "S2", Period: intPtr(2020)}, Station: &az2},
	}

	out := RegionClimate(merged)

	expected := []ObservationRow{
		row("Arizona", 2019, 28),
		row("Arizona", 2020, 32),
		row("PR", 2020, 26),
	}
	assert.Equal(t, expected, out)
}

func TestJoinClimate(t *testing.T) {
	cases := []ObservationRow{
		row("Arizona", 2020, 51),
		row("Nevada", 2020, 12),
		{Entity: "Utah", Value: floatPtr(3)},
	}
	climate := []ObservationRow{
		row("ARIZONA", 2020, 32),
		row("Arizona", 2019, 28),
	}

	out := JoinClimate(cases, climate)

	require.Len(t, out, 2)
	assert.Equal(t, "Arizona", out[0].Entity)
	require.NotNil(t, out[0].Climate)
	assert.InDelta(t, 32, *out[0].Climate, 1e-9)
	assert.InDelta(t, 51, *out[0].Cases, 1e-9)
	assert.Nil(t, out[1].Climate)
}
