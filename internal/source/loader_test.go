package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/cocci-climate-etl/internal/cache"
	"github.com/couchcryptid/cocci-climate-etl/internal/domain"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoader_Load(t *testing.T) {
	path := writeFile(t, t.TempDir(), "cases.csv", "State,Year,Cum 2020\nArizona,2020,100\n")

	tbl, err := NewLoader(nil, 0, nil).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"State", "Year", "Cum 2020"}, tbl.Columns)
	assert.Equal(t, [][]string{{"Arizona", "2020", "100"}}, tbl.Rows)
}

func TestLoader_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.csv")

	_, err := NewLoader(nil, 0, nil).Load(context.Background(), path)
	require.Error(t, err)
	assert.True(t, domain.IsFileAccess(err))
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Contains(t, err.Error(), "absent.csv")
}

func TestLoader_CachesByContent(t *testing.T) {
	dir := t.TempDir()
	a := writeFile(t, dir, "a.csv", "State,cum\nUtah,1\n")
	b := writeFile(t, dir, "b.csv", "State,cum\nUtah,1\n")

	var hits, misses int
	loader := NewLoader(cache.New[string, domain.Table](4), 0, func(hit bool) {
		if hit {
			hits++
		} else {
			misses++
		}
	})

	_, err := loader.Load(context.Background(), a)
	require.NoError(t, err)
	_, err = loader.Load(context.Background(), b)
	require.NoError(t, err)
	assert.Equal(t, 1, misses)
	assert.Equal(t, 1, hits, "identical content shares a cache entry")

	require.NoError(t, os.WriteFile(a, []byte("State,cum\nUtah,2\n"), 0o600))
	tbl, err := loader.Load(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "2", tbl.Rows[0][1], "edited files are re-parsed")
	assert.Equal(t, 2, misses)
}

func TestLoader_Delimiter(t *testing.T) {
	path := writeFile(t, t.TempDir(), "semi.csv", "State;cum\nUtah;3\n")

	tbl, err := NewLoader(nil, ';', nil).Load(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"State", "cum"}, tbl.Columns)
}

func TestLoader_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLoader(nil, 0, nil).Load(ctx, "irrelevant.csv")
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, domain.IsFileAccess(err))
}

func TestLoadStations(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "stations.txt", "USC00021026\n\nUS1AZMR0001\n")
	layout := domain.StationLayout{{Field: domain.FieldID, Start: 0, End: 11}}

	stations, err := LoadStations(path, layout, nil)
	require.NoError(t, err)
	require.Len(t, stations, 2)
	assert.Equal(t, "Arizona", stations[1].RegionName)

	_, err = LoadStations(filepath.Join(dir, "missing.txt"), layout, nil)
	assert.True(t, domain.IsFileAccess(err))
}

func TestRegistry_LoadStations(t *testing.T) {
	path := writeFile(t, t.TempDir(), "stations.txt", "US1AZMR0001\n")
	reg := Registry{Path: path, Layout: domain.StationLayout{{Field: domain.FieldID, Start: 0, End: 11}}}

	stations, err := reg.LoadStations(context.Background())
	require.NoError(t, err)
	require.Len(t, stations, 1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = reg.LoadStations(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
