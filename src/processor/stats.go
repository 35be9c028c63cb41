package processor

import (
	"OnTimeDelay/src/utils"
	"fmt"
	"math"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary 一组延误分钟数的描述统计, 缺失值已剔除
type Summary struct {
	N          int
	Total      float64
	Mean       float64
	Median     float64
	Variance   float64 // 样本方差
	StdDev     float64
	Max        float64
	Skew       float64
	ExKurtosis float64
}

// Describe 计算描述统计, 跳过 NaN. 没有有效值时除 N 和 Total 外全部为 NaN.
func Describe(values []float64) Summary {
	x := finite(values)
	s := Summary{N: len(x)}
	if len(x) == 0 {
		nan := math.NaN()
		s.Mean, s.Median, s.Variance, s.StdDev, s.Max, s.Skew, s.ExKurtosis = nan, nan, nan, nan, nan, nan, nan
		return s
	}
	s.Total = floats.Sum(x)
	s.Mean = stat.Mean(x, nil)
	s.Median = median(x)
	s.Max = floats.Max(x)
	if len(x) > 1 {
		s.Variance = stat.Variance(x, nil)
		s.StdDev = math.Sqrt(s.Variance)
	} else {
		s.Variance, s.StdDev = math.NaN(), math.NaN()
	}
	if len(x) > 2 && s.Variance > 0 {
		s.Skew = stat.Skew(x, nil)
	} else {
		s.Skew = math.NaN()
	}
	if len(x) > 3 && s.Variance > 0 {
		s.ExKurtosis = stat.ExKurtosis(x, nil)
	} else {
		s.ExKurtosis = math.NaN()
	}
	return s
}

func finite(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out = append(out, v)
		}
	}
	return out
}

func median(x []float64) float64 {
	sorted := append([]float64(nil), x...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}

func meanOf(values []float64) float64 {
	x := finite(values)
	if len(x) == 0 {
		return math.NaN()
	}
	return stat.Mean(x, nil)
}

func pct(part, whole int) float64 {
	if whole == 0 {
		return math.NaN()
	}
	return 100 * float64(part) / float64(whole)
}

// CarrierStats 单个航司的出发延误统计
type CarrierStats struct {
	Carrier       string
	Flights       int
	Delayed       int // DepDel0 为真
	Delayed15     int // DepDel15 == 1
	PctDelayed    float64
	PctDelayed15  float64
	Delay         Summary // 全部航班的 DepDelayMinutes
	MeanDelayed   float64 // 延误航班 (>0) 的平均延误
	MeanDelayed15 float64 // 延误 15 分钟以上航班的平均延误
	Median15      float64 // 延误 15 分钟以上航班的延误中位数
	MeanPerc      float64 // DepDelayMinutesPerc 的平均值, 只计有限值
}

// groupRows 按列值分组返回行号, 缺失值的行跳过, 组按键排序
func groupRows(df dataframe.DataFrame, col string) ([]string, map[string][]int) {
	s := df.Col(col)
	groups := make(map[string][]int)
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if el.IsNA() {
			continue
		}
		key := el.String()
		groups[key] = append(groups[key], i)
	}
	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, groups
}

func pick(vals []float64, idx []int) []float64 {
	out := make([]float64, len(idx))
	for i, j := range idx {
		out[i] = vals[j]
	}
	return out
}

// DescribeByCarrier 按 Reporting_Airline 分组统计出发延误, 结果按航司代码排序
func DescribeByCarrier(df dataframe.DataFrame) ([]CarrierStats, error) {
	if err := requireColumns(df, "describe by carrier",
		ColCarrier, ColDepDelayMinutes, ColDepDel0, ColDepDel15, ColDepDelayMinutesPerc); err != nil {
		return nil, err
	}

	delay := df.Col(ColDepDelayMinutes).Float()
	delayed := df.Col(ColDepDel0).Float()
	delayed15 := df.Col(ColDepDel15).Float()
	perc := df.Col(ColDepDelayMinutesPerc).Float()

	keys, groups := groupRows(df, ColCarrier)
	out := make([]CarrierStats, 0, len(keys))
	for _, carrier := range keys {
		idx := groups[carrier]
		cs := CarrierStats{Carrier: carrier, Flights: len(idx)}

		var (
			d0, d15    []float64
			known15    int
			groupDelay = pick(delay, idx)
		)
		for k, j := range idx {
			if delayed[j] == 1 {
				cs.Delayed++
				d0 = append(d0, groupDelay[k])
			}
			if !math.IsNaN(delayed15[j]) {
				known15++
			}
			if delayed15[j] == 1 {
				cs.Delayed15++
				d15 = append(d15, groupDelay[k])
			}
		}

		cs.PctDelayed = pct(cs.Delayed, cs.Flights)
		cs.PctDelayed15 = pct(cs.Delayed15, known15)
		cs.Delay = Describe(groupDelay)
		cs.MeanDelayed = meanOf(d0)
		cs.MeanDelayed15 = meanOf(d15)
		cs.Median15 = Describe(d15).Median
		cs.MeanPerc = meanOf(pick(perc, idx))
		out = append(out, cs)
	}
	return out, nil
}

// CauseStats 单个延误原因的汇总
type CauseStats struct {
	Cause   string
	Flights int     // 该原因分钟数 > 0 的航班数
	Total   float64 // 总分钟数
	Share   float64 // 占全部原因总分钟数的百分比
	Mean    float64 // 只计 > 0 的航班
}

// DelayCauses 统计五类延误原因, 缺少的原因列跳过
func DelayCauses(df dataframe.DataFrame) ([]CauseStats, error) {
	var present []string
	for _, c := range DelayCauseColumns {
		if utils.HasColumn(df, c) {
			present = append(present, c)
		}
	}
	if len(present) == 0 {
		return nil, fmt.Errorf("delay causes: %w: missing columns: %s", ErrSchema, strings.Join(DelayCauseColumns, ", "))
	}

	out := make([]CauseStats, 0, len(present))
	grand := 0.0
	for _, c := range present {
		var positive []float64
		for _, v := range df.Col(c).Float() {
			if v > 0 && !math.IsInf(v, 0) {
				positive = append(positive, v)
			}
		}
		cs := CauseStats{Cause: c, Flights: len(positive), Mean: meanOf(positive)}
		if len(positive) > 0 {
			cs.Total = floats.Sum(positive)
		}
		grand += cs.Total
		out = append(out, cs)
	}
	for i := range out {
		if grand > 0 {
			out[i].Share = 100 * out[i].Total / grand
		} else {
			out[i].Share = math.NaN()
		}
	}
	return out, nil
}

// BlockStats 单个出发时段的延误
type BlockStats struct {
	Block      string
	Flights    int
	MeanDelay  float64
	PctDelayed float64
}

// DelayByTimeBlock 按 DepTimeBlk 统计平均出发延误
func DelayByTimeBlock(df dataframe.DataFrame) ([]BlockStats, error) {
	if err := requireColumns(df, "delay by time block", ColDepTimeBlk, ColDepDelayMinutes, ColDepDel0); err != nil {
		return nil, err
	}
	delay := df.Col(ColDepDelayMinutes).Float()
	delayed := df.Col(ColDepDel0).Float()

	keys, groups := groupRows(df, ColDepTimeBlk)
	out := make([]BlockStats, 0, len(keys))
	for _, block := range keys {
		idx := groups[block]
		n := 0
		for _, j := range idx {
			if delayed[j] == 1 {
				n++
			}
		}
		out = append(out, BlockStats{
			Block:      block,
			Flights:    len(idx),
			MeanDelay:  meanOf(pick(delay, idx)),
			PctDelayed: pct(n, len(idx)),
		})
	}
	return out, nil
}

// CarrierFrame 航司统计转为 DataFrame, 用于导出
func CarrierFrame(stats []CarrierStats) dataframe.DataFrame {
	carrier := make([]string, len(stats))
	for i, s := range stats {
		carrier[i] = s.Carrier
	}
	ints := func(name string, get func(CarrierStats) int) series.Series {
		vals := make([]int, len(stats))
		for i, s := range stats {
			vals[i] = get(s)
		}
		return series.New(vals, series.Int, name)
	}
	floatCol := func(name string, get func(CarrierStats) float64) series.Series {
		vals := make([]float64, len(stats))
		for i, s := range stats {
			vals[i] = get(s)
		}
		return utils.FloatSeries(vals, name)
	}

	return dataframe.New(
		series.New(carrier, series.String, "carrier"),
		ints("flights", func(s CarrierStats) int { return s.Flights }),
		ints("delayed", func(s CarrierStats) int { return s.Delayed }),
		ints("delayed_15", func(s CarrierStats) int { return s.Delayed15 }),
		floatCol("pct_delayed", func(s CarrierStats) float64 { return s.PctDelayed }),
		floatCol("pct_delayed_15", func(s CarrierStats) float64 { return s.PctDelayed15 }),
		floatCol("total_delay_min", func(s CarrierStats) float64 { return s.Delay.Total }),
		floatCol("mean_delay_min", func(s CarrierStats) float64 { return s.Delay.Mean }),
		floatCol("median_delay_min", func(s CarrierStats) float64 { return s.Delay.Median }),
		floatCol("var_delay_min", func(s CarrierStats) float64 { return s.Delay.Variance }),
		floatCol("std_delay_min", func(s CarrierStats) float64 { return s.Delay.StdDev }),
		floatCol("max_delay_min", func(s CarrierStats) float64 { return s.Delay.Max }),
		floatCol("skew", func(s CarrierStats) float64 { return s.Delay.Skew }),
		floatCol("excess_kurtosis", func(s CarrierStats) float64 { return s.Delay.ExKurtosis }),
		floatCol("mean_when_delayed", func(s CarrierStats) float64 { return s.MeanDelayed }),
		floatCol("mean_when_delayed_15", func(s CarrierStats) float64 { return s.MeanDelayed15 }),
		floatCol("median_when_delayed_15", func(s CarrierStats) float64 { return s.Median15 }),
		floatCol("mean_delay_pct_of_sched", func(s CarrierStats) float64 { return s.MeanPerc }),
	)
}

// CauseFrame 延误原因统计转为 DataFrame
func CauseFrame(stats []CauseStats) dataframe.DataFrame {
	n := len(stats)
	cause, flights := make([]string, n), make([]int, n)
	total, share, mean := make([]float64, n), make([]float64, n), make([]float64, n)
	for i, s := range stats {
		cause[i], flights[i] = s.Cause, s.Flights
		total[i], share[i], mean[i] = s.Total, s.Share, s.Mean
	}
	return dataframe.New(
		series.New(cause, series.String, "cause"),
		series.New(flights, series.Int, "flights"),
		utils.FloatSeries(total, "total_min"),
		utils.FloatSeries(share, "share_pct"),
		utils.FloatSeries(mean, "mean_when_present"),
	)
}

// BlockFrame 时段统计转为 DataFrame
func BlockFrame(stats []BlockStats) dataframe.DataFrame {
	n := len(stats)
	block, flights := make([]string, n), make([]int, n)
	mean, pctD := make([]float64, n), make([]float64, n)
	for i, s := range stats {
		block[i], flights[i] = s.Block, s.Flights
		mean[i], pctD[i] = s.MeanDelay, s.PctDelayed
	}
	return dataframe.New(
		series.New(block, series.String, "dep_time_blk"),
		series.New(flights, series.Int, "flights"),
		utils.FloatSeries(mean, "mean_delay_min"),
		utils.FloatSeries(pctD, "pct_delayed"),
	)
}

// FormatCarrierTable 生成对齐的文本表格, 数字带千分位
func FormatCarrierTable(stats []CarrierStats) string {
	var b strings.Builder
	w := tabwriter.NewWriter(&b, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(w, "carrier\tflights\tdelayed %\t>=15 %\tmean\tmedian\tstd\tmax\tmean|delayed\tmean|>=15\t")
	for _, s := range stats {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			s.Carrier,
			utils.FormatInt(s.Flights),
			utils.FormatFloat(s.PctDelayed, 1),
			utils.FormatFloat(s.PctDelayed15, 1),
			utils.FormatFloat(s.Delay.Mean, 1),
			utils.FormatFloat(s.Delay.Median, 1),
			utils.FormatFloat(s.Delay.StdDev, 1),
			utils.FormatFloat(s.Delay.Max, 0),
			utils.FormatFloat(s.MeanDelayed, 1),
			utils.FormatFloat(s.MeanDelayed15, 1),
		)
	}
	w.Flush()
	return b.String()
}
