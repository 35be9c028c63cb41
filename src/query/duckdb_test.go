package query

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"OnTimeDelay/src/storage"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSnapshot(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "it's.parquet")
	df := dataframe.New(
		series.New([]string{"UA", "UA", "DL"}, series.String, "Reporting_Airline"),
		series.New([]float64{10, 30, 5}, series.Float, "DepDelayMinutes"),
	)
	require.NoError(t, storage.WriteParquet(df, path))
	return path
}

func TestRunAgainstSnapshot(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSnapshotDB(ctx, writeSnapshot(t))
	require.NoError(t, err)
	defer db.Close()

	var buf bytes.Buffer
	n, err := Run(ctx, db, &buf,
		"SELECT Reporting_Airline, AVG(DepDelayMinutes) AS avg_delay FROM flights GROUP BY 1 ORDER BY 1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "Reporting_Airline\tavg_delay", lines[0])
	assert.Equal(t, "DL\t5", lines[2])
	assert.Equal(t, "UA\t20", lines[3])
}

func TestRunBadQuery(t *testing.T) {
	ctx := context.Background()
	db, err := OpenSnapshotDB(ctx, writeSnapshot(t))
	require.NoError(t, err)
	defer db.Close()

	_, err = Run(ctx, db, &bytes.Buffer{}, "SELECT nope FROM flights")
	assert.Error(t, err)
}

func TestOpenSnapshotDBMissingFile(t *testing.T) {
	_, err := OpenSnapshotDB(context.Background(), filepath.Join(t.TempDir(), "none.parquet"))
	assert.Error(t, err)
}
