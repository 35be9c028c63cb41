package processor

import (
	"OnTimeDelay/src/utils"
	"fmt"

	"github.com/go-gota/gota/dataframe"
)

// ReconcileDiversions 对 Diverted 非 0 的行 (Diverted 缺失也算), 用 DivActualElapsedTime / DivArrDelay
// 覆盖 ActualElapsedTime / ArrDelay (缺失值照样覆盖), 然后删除两个 Div 列.
// 再次调用会因为 Div 列不存在返回 ErrSchema.
func ReconcileDiversions(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns(df, "reconcile diversions",
		ColDiverted, ColActualElapsedTime, ColArrDelay, ColDivActualElapsedTime, ColDivArrDelay); err != nil {
		return df, err
	}

	diverted := df.Col(ColDiverted).Float()
	elapsed := df.Col(ColActualElapsedTime).Float()
	arrDelay := df.Col(ColArrDelay).Float()
	divElapsed := df.Col(ColDivActualElapsedTime).Float()
	divArrDelay := df.Col(ColDivArrDelay).Float()

	for i, d := range diverted {
		if d == 0 {
			continue
		}
		elapsed[i] = divElapsed[i]
		arrDelay[i] = divArrDelay[i]
	}

	out := df.Mutate(utils.FloatSeries(elapsed, ColActualElapsedTime)).
		Mutate(utils.FloatSeries(arrDelay, ColArrDelay)).
		Drop([]string{ColDivActualElapsedTime, ColDivArrDelay})
	if out.Err != nil {
		return df, fmt.Errorf("reconcile diversions: %w", out.Err)
	}
	return out, nil
}

// AddDerivedColumns 追加 DepDel0 (DepDelayMinutes > 0) 与
// DepDelayMinutesPerc (100 * DepDelayMinutes / CRSElapsedTime).
// 计划时长为 0 时结果为 ±Inf 或 NaN, 不做替换.
func AddDerivedColumns(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns(df, "add derived columns", ColDepDelayMinutes, ColCRSElapsedTime); err != nil {
		return df, err
	}
	for _, name := range []string{ColDepDel0, ColDepDelayMinutesPerc} {
		if utils.HasColumn(df, name) {
			return df, fmt.Errorf("add derived columns: %w: column %s already exists", ErrSchema, name)
		}
	}

	delay := df.Col(ColDepDelayMinutes).Float()
	scheduled := df.Col(ColCRSElapsedTime).Float()

	delayed := make([]bool, len(delay))
	perc := make([]float64, len(delay))
	for i, d := range delay {
		// NaN > 0 为 false
		delayed[i] = d > 0
		perc[i] = 100 * d / scheduled[i]
	}

	out := df.CBind(dataframe.New(
		utils.BoolSeries(delayed, ColDepDel0),
		utils.FloatSeries(perc, ColDepDelayMinutesPerc),
	))
	if out.Err != nil {
		return df, fmt.Errorf("add derived columns: %w", out.Err)
	}
	return out, nil
}
