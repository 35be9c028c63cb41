package file

import (
	"OnTimeDelay/src/utils"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Concat 纵向拼接多个表, 行号重新从 0 开始.
// 列为所有表列名的并集(按首次出现的顺序), 某表缺失的列填 NA.
// strict 为 true 时任何列集合差异都返回 ErrParse.
func Concat(frames []dataframe.DataFrame, strict bool) (dataframe.DataFrame, error) {
	if len(frames) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("%w: no tables to concatenate", ErrParse)
	}
	for i, df := range frames {
		if df.Err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("%w: table %d: %v", ErrParse, i, df.Err)
		}
	}
	if len(frames) == 1 {
		return frames[0], nil
	}

	names := unionNames(frames)
	if strict {
		for i, df := range frames {
			if missing := missingNames(df, names); len(missing) > 0 {
				return dataframe.DataFrame{}, fmt.Errorf("%w: table %d is missing columns: %s",
					ErrParse, i, strings.Join(missing, ", "))
			}
		}
	}

	cols := make([]series.Series, 0, len(names))
	for _, name := range names {
		col, err := concatColumn(frames, name)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("%w: column %s: %v", ErrParse, name, err)
		}
		cols = append(cols, col)
	}

	out := dataframe.New(cols...)
	if out.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %v", ErrParse, out.Err)
	}
	return out, nil
}

func unionNames(frames []dataframe.DataFrame) []string {
	seen := make(map[string]bool)
	var names []string
	for _, df := range frames {
		for _, n := range df.Names() {
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
	}
	return names
}

func missingNames(df dataframe.DataFrame, names []string) []string {
	have := make(map[string]bool, df.Ncol())
	for _, n := range df.Names() {
		have[n] = true
	}
	var missing []string
	for _, n := range names {
		if !have[n] {
			missing = append(missing, n)
		}
	}
	return missing
}

// concatColumn 拼接同名列. 全部为缺失值的部分不参与类型判断;
// 类型一致时保持原类型, int 与 float 混合时取 float, 其他混合取 string.
// 各部分先转为字符串记录再统一构造, 缺失值写为 "NaN" 以保持 NA.
func concatColumn(frames []dataframe.DataFrame, name string) (series.Series, error) {
	var (
		target series.Type
		typed  bool
	)
	for _, df := range frames {
		if !utils.HasColumn(df, name) || allNA(df.Col(name)) {
			continue
		}
		t := df.Col(name).Type()
		switch {
		case !typed:
			target, typed = t, true
		case target == t:
		case isNumeric(target) && isNumeric(t):
			target = series.Float
		default:
			target = series.String
		}
	}
	if !typed {
		target = series.String
		for _, df := range frames {
			if utils.HasColumn(df, name) {
				target = df.Col(name).Type()
				break
			}
		}
	}

	var records []string
	for _, df := range frames {
		if !utils.HasColumn(df, name) {
			for i := 0; i < df.Nrow(); i++ {
				records = append(records, "NaN")
			}
			continue
		}
		records = append(records, cellRecords(df.Col(name))...)
	}

	out := series.New(records, target, name)
	return out, out.Err
}

// cellRecords 按原类型无损转为字符串, 缺失值为 "NaN"
func cellRecords(s series.Series) []string {
	out := make([]string, s.Len())
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if el.IsNA() {
			out[i] = "NaN"
			continue
		}
		switch s.Type() {
		case series.Float:
			out[i] = strconv.FormatFloat(el.Float(), 'g', -1, 64)
		default:
			out[i] = el.String()
		}
	}
	return out
}

func allNA(s series.Series) bool {
	for i := 0; i < s.Len(); i++ {
		if !s.Elem(i).IsNA() {
			return false
		}
	}
	return true
}

func isNumeric(t series.Type) bool {
	return t == series.Int || t == series.Float
}
