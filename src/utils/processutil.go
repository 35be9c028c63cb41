package utils

import (
	"math"
	"strconv"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

func Contains[T comparable](slice []T, item T) bool {
	for _, v := range slice {
		if v == item {
			return true
		}
	}
	return false
}

// 辅助函数：判断DataFrame是否有某列
func HasColumn(df dataframe.DataFrame, name string) bool {
	return Contains(df.Names(), name)
}

// MissingColumns 返回 names 中 df 没有的列, 保持 names 的顺序
func MissingColumns(df dataframe.DataFrame, names ...string) []string {
	have := df.Names()
	var missing []string
	for _, n := range names {
		if !Contains(have, n) {
			missing = append(missing, n)
		}
	}
	return missing
}

// FloatSeries 由 []float64 构造 Float 列. NaN 记为缺失值, ±Inf 原样保留.
func FloatSeries(vals []float64, name string) series.Series {
	records := make([]string, len(vals))
	for i, v := range vals {
		switch {
		case math.IsNaN(v):
			records[i] = "NaN"
		case math.IsInf(v, 1):
			records[i] = "+Inf"
		case math.IsInf(v, -1):
			records[i] = "-Inf"
		default:
			records[i] = strconv.FormatFloat(v, 'g', -1, 64)
		}
	}
	return series.New(records, series.Float, name)
}

// BoolSeries 由 []bool 构造 Bool 列
func BoolSeries(vals []bool, name string) series.Series {
	return series.New(vals, series.Bool, name)
}

// CellValues 把一列转换为可写入文件的值, 缺失值为 nil
func CellValues(s series.Series) []interface{} {
	out := make([]interface{}, s.Len())
	switch s.Type() {
	case series.Float:
		for i, v := range s.Float() {
			if math.IsNaN(v) {
				continue
			}
			out[i] = v
		}
	case series.Int:
		for i := 0; i < s.Len(); i++ {
			el := s.Elem(i)
			if el.IsNA() {
				continue
			}
			v, err := el.Int()
			if err != nil {
				continue
			}
			out[i] = v
		}
	case series.Bool:
		for i := 0; i < s.Len(); i++ {
			el := s.Elem(i)
			if el.IsNA() {
				continue
			}
			v, err := el.Bool()
			if err != nil {
				continue
			}
			out[i] = v
		}
	default:
		for i := 0; i < s.Len(); i++ {
			el := s.Elem(i)
			if el.IsNA() {
				continue
			}
			out[i] = el.String()
		}
	}
	return out
}
