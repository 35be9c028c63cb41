package processor

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileDiversions(t *testing.T) {
	df := load(t,
		[]string{"Reporting_Airline", "Diverted", "ActualElapsedTime", "ArrDelay", "DivActualElapsedTime", "DivArrDelay"},
		[]string{"UA", "0", "100", "5", "", ""},
		[]string{"AA", "1", "", "", "240", "95"},
		[]string{"DL", "1", "", "", "", ""},
		[]string{"WN", "", "80", "-3", "999", "999"},
	)

	out, err := ReconcileDiversions(df)
	require.NoError(t, err)

	assert.NotContains(t, out.Names(), ColDivActualElapsedTime)
	assert.NotContains(t, out.Names(), ColDivArrDelay)

	elapsed := out.Col(ColActualElapsedTime).Float()
	arr := out.Col(ColArrDelay).Float()

	// 未备降的行保持不变
	assert.Equal(t, 100.0, elapsed[0])
	assert.Equal(t, 5.0, arr[0])

	// Diverted 缺失时同样视为备降
	assert.Equal(t, 999.0, elapsed[3])
	assert.Equal(t, 999.0, arr[3])

	// 备降行取 Div 值, 缺失值也照样覆盖
	assert.Equal(t, 240.0, elapsed[1])
	assert.Equal(t, 95.0, arr[1])
	assert.True(t, math.IsNaN(elapsed[2]))
	assert.True(t, math.IsNaN(arr[2]))

	// 列顺序不变
	assert.Equal(t, []string{"Reporting_Airline", "Diverted", "ActualElapsedTime", "ArrDelay"}, out.Names())
}

func TestReconcileDiversionsTwiceFails(t *testing.T) {
	df := load(t,
		[]string{"Diverted", "ActualElapsedTime", "ArrDelay", "DivActualElapsedTime", "DivArrDelay"},
		[]string{"0", "100", "5", "", ""},
	)
	out, err := ReconcileDiversions(df)
	require.NoError(t, err)

	_, err = ReconcileDiversions(out)
	require.ErrorIs(t, err, ErrSchema)
	assert.Contains(t, err.Error(), "DivActualElapsedTime, DivArrDelay")
}

func TestAddDerivedColumns(t *testing.T) {
	df := load(t,
		[]string{"DepDelayMinutes", "CRSElapsedTime"},
		[]string{"0", "120"},
		[]string{"30", "120"},
		[]string{"", "90"},
		[]string{"10", "0"},
		[]string{"0", "0"},
	)

	out, err := AddDerivedColumns(df)
	require.NoError(t, err)
	assert.Equal(t, []string{"DepDelayMinutes", "CRSElapsedTime", "DepDel0", "DepDelayMinutesPerc"}, out.Names())

	delayed, err := out.Col(ColDepDel0).Bool()
	require.NoError(t, err)
	// 0 分钟不算延误, 缺失值为 false
	assert.Equal(t, []bool{false, true, false, true, false}, delayed)

	perc := out.Col(ColDepDelayMinutesPerc).Float()
	assert.Equal(t, 0.0, perc[0])
	assert.Equal(t, 25.0, perc[1])
	assert.True(t, math.IsNaN(perc[2]))
	assert.True(t, math.IsInf(perc[3], 1))
	assert.True(t, math.IsNaN(perc[4]))
}

func TestAddDerivedColumnsRejectsRerun(t *testing.T) {
	df := load(t,
		[]string{"DepDelayMinutes", "CRSElapsedTime"},
		[]string{"1", "60"},
	)
	out, err := AddDerivedColumns(df)
	require.NoError(t, err)

	_, err = AddDerivedColumns(out)
	assert.ErrorIs(t, err, ErrSchema)
}

func TestAddDerivedColumnsMissingInput(t *testing.T) {
	df := load(t, []string{"DepDelayMinutes"}, []string{"1"})
	_, err := AddDerivedColumns(df)
	require.ErrorIs(t, err, ErrSchema)
	assert.Contains(t, err.Error(), ColCRSElapsedTime)
}
