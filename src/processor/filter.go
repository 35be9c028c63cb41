package processor

import (
	"OnTimeDelay/src/utils"
	"errors"
	"fmt"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrSchema 表缺少必要的列, 或派生列已经存在
var ErrSchema = errors.New("schema mismatch")

func requireColumns(df dataframe.DataFrame, op string, names ...string) error {
	if df.Err != nil {
		return fmt.Errorf("%s: %w", op, df.Err)
	}
	if missing := utils.MissingColumns(df, names...); len(missing) > 0 {
		return fmt.Errorf("%s: %w: missing columns: %s", op, ErrSchema, strings.Join(missing, ", "))
	}
	return nil
}

// RemoveCancelled 只保留 Cancelled 恰好为 0 的行, 缺失值视为取消
func RemoveCancelled(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns(df, "remove cancelled", ColCancelled); err != nil {
		return df, err
	}
	return filterRows(df, ColCancelled, func(el series.Element) bool {
		return !el.IsNA() && el.Float() == 0
	})
}

// RemoveUnreachedDiversions 删除 DivReachedDest 恰好为 0 的行. 缺失值表示没有备降, 保留.
func RemoveUnreachedDiversions(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	if err := requireColumns(df, "remove unreached diversions", ColDivReachedDest); err != nil {
		return df, err
	}
	return filterRows(df, ColDivReachedDest, func(el series.Element) bool {
		return el.IsNA() || el.Float() != 0
	})
}

// FilterOrigin 只保留从指定机场出发的航班, airportID 为 0 时不过滤
func FilterOrigin(df dataframe.DataFrame, airportID int) (dataframe.DataFrame, error) {
	if airportID == 0 {
		return df, nil
	}
	if err := requireColumns(df, "filter origin", ColOriginAirportID); err != nil {
		return df, err
	}
	return filterRows(df, ColOriginAirportID, func(el series.Element) bool {
		if el.IsNA() {
			return false
		}
		id, err := el.Int()
		return err == nil && id == airportID
	})
}

func filterRows(df dataframe.DataFrame, col string, keep func(series.Element) bool) (dataframe.DataFrame, error) {
	out := df.Filter(dataframe.F{
		Colname:    col,
		Comparator: series.CompFunc,
		Comparando: keep,
	})
	if out.Err != nil {
		return df, fmt.Errorf("filter %s: %w", col, out.Err)
	}
	return out, nil
}
