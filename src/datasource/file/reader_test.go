package file

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-gota/gota/series"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestReadCSV(t *testing.T) {
	path := writeFile(t, t.TempDir(), "m1.csv",
		"Reporting_Airline,Cancelled,DepDelayMinutes,CancellationCode,\n"+
			"UA,0,12,,\n"+
			"AA,1,,B,\n"+
			"\"WN\",0.00,3.5,,\n")

	df, err := ReadCSV(path, map[string]series.Type{"Cancelled": series.Float})
	require.NoError(t, err)

	assert.Equal(t, 3, df.Nrow())
	assert.Equal(t, []string{"Reporting_Airline", "Cancelled", "DepDelayMinutes", "CancellationCode", "Unnamed: 4"}, df.Names())
	assert.Equal(t, series.Float, df.Col("Cancelled").Type())
	assert.Equal(t, series.Float, df.Col("DepDelayMinutes").Type())
	assert.True(t, math.IsNaN(df.Col("DepDelayMinutes").Float()[1]))
	// 整列为空时退化为字符串, 不报错
	assert.Equal(t, series.String, df.Col("Unnamed: 4").Type())
	assert.True(t, df.Col("Unnamed: 4").Elem(0).IsNA())
	assert.True(t, df.Col("CancellationCode").Elem(0).IsNA())
	assert.Equal(t, "B", df.Col("CancellationCode").Elem(1).String())
	assert.Equal(t, []string{"UA", "AA", "WN"}, df.Col("Reporting_Airline").Records())
}

func TestReadCSVHeaderOnly(t *testing.T) {
	path := writeFile(t, t.TempDir(), "empty.csv", "A,B\n")

	df, err := ReadCSV(path, map[string]series.Type{"A": series.Float})
	require.NoError(t, err)
	assert.Equal(t, 0, df.Nrow())
	assert.Equal(t, []string{"A", "B"}, df.Names())
	assert.Equal(t, series.Float, df.Col("A").Type())
}

func TestReadCSVMalformed(t *testing.T) {
	tests := map[string]string{
		"ragged":    "A,B\n1,2\n3\n",
		"bad quote": "A,B\n\"1,2\n",
		"no header": "",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := writeFile(t, t.TempDir(), "bad.csv", body)
			_, err := ReadCSV(path, nil)
			assert.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestReadTableXLSX(t *testing.T) {
	path := filepath.Join(t.TempDir(), "m1.xlsx")
	f := excelize.NewFile()
	rows := [][]interface{}{
		{"Reporting_Airline", "DepDelayMinutes"},
		{"UA", 12},
		{"DL", 0},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	df, err := ReadTable(path, map[string]series.Type{"DepDelayMinutes": series.Float})
	require.NoError(t, err)
	assert.Equal(t, 2, df.Nrow())
	assert.Equal(t, []float64{12, 0}, df.Col("DepDelayMinutes").Float())
}

func TestReadTableMissingFile(t *testing.T) {
	_, err := ReadTable(filepath.Join(t.TempDir(), "nope.csv"), nil)
	assert.ErrorIs(t, err, ErrParse)
}
