package processor

import (
	"OnTimeDelay/src/config"
	"fmt"
	"strings"

	"github.com/go-gota/gota/series"
)

// 流程中读写的列
const (
	ColCarrier              = "Reporting_Airline"
	ColOriginAirportID      = "OriginAirportID"
	ColCancelled            = "Cancelled"
	ColDiverted             = "Diverted"
	ColDivReachedDest       = "DivReachedDest"
	ColActualElapsedTime    = "ActualElapsedTime"
	ColArrDelay             = "ArrDelay"
	ColDivActualElapsedTime = "DivActualElapsedTime"
	ColDivArrDelay          = "DivArrDelay"
	ColDepDelayMinutes      = "DepDelayMinutes"
	ColCRSElapsedTime       = "CRSElapsedTime"
	ColDepDel15             = "DepDel15"
	ColDepTimeBlk           = "DepTimeBlk"

	ColDepDel0             = "DepDel0"
	ColDepDelayMinutesPerc = "DepDelayMinutesPerc"
)

// DelayCauseColumns 延误原因分钟数列
var DelayCauseColumns = []string{
	"CarrierDelay",
	"WeatherDelay",
	"NASDelay",
	"SecurityDelay",
	"LateAircraftDelay",
}

// IrrelevantColumns 第一批删除的列
var IrrelevantColumns = []string{
	"Year",
	"DOT_ID_Reporting_Airline",
	"IATA_CODE_Reporting_Airline",
	"Tail_Number",
	"Flight_Number_Reporting_Airline",
	"OriginAirportSeqID",
	"Origin",
	"OriginState",
	"OriginStateFips",
	"OriginWac",
	"DestAirportSeqID",
	"Dest",
	"DestState",
	"DestStateFips",
	"DestWac",
	"DepDelay",
	"DepartureDelayGroups",
	"ArrDelayMinutes",
	"ArrivalDelayGroups",
	"FirstDepTime",
	"TotalAddGTime",
	"LongestAddGTime",
	"Unnamed: 109",
	"Cancelled",
	"CancellationCode",
	"DivReachedDest",
}

// DiversionLegColumns 五段备降的明细列以及备降汇总列
var DiversionLegColumns = diversionLegColumns()

func diversionLegColumns() []string {
	fields := []string{"Airport", "AirportID", "AirportSeqID", "WheelsOn", "TotalGTime", "LongestGTime", "WheelsOff", "TailNum"}
	cols := []string{"DivAirportLandings", "DivDistance"}
	for leg := 1; leg <= 5; leg++ {
		for _, f := range fields {
			cols = append(cols, fmt.Sprintf("Div%d%s", leg, f))
		}
	}
	return cols
}

// DefaultColumnTypes 解析时固定类型的列, 其余列自动推断
func DefaultColumnTypes() map[string]series.Type {
	types := map[string]series.Type{
		ColCarrier:              series.String,
		ColOriginAirportID:      series.Int,
		ColCancelled:            series.Float,
		ColDiverted:             series.Float,
		ColDivReachedDest:       series.Float,
		ColActualElapsedTime:    series.Float,
		ColArrDelay:             series.Float,
		ColDivActualElapsedTime: series.Float,
		ColDivArrDelay:          series.Float,
		ColDepDelayMinutes:      series.Float,
		ColCRSElapsedTime:       series.Float,
		ColDepDel15:             series.Float,
		ColDepTimeBlk:           series.String,
		"Tail_Number":           series.String,
		"CancellationCode":      series.String,
	}
	for _, c := range DelayCauseColumns {
		types[c] = series.Float
	}
	return types
}

// Columns 清洗流程使用的列配置
type Columns struct {
	Irrelevant   []string
	DiversionLeg []string
	Types        map[string]series.Type
}

// DefaultColumns 内置的列配置
func DefaultColumns() Columns {
	return Columns{
		Irrelevant:   append([]string(nil), IrrelevantColumns...),
		DiversionLeg: append([]string(nil), DiversionLegColumns...),
		Types:        DefaultColumnTypes(),
	}
}

// ColumnsFromConfig 用 dataconfig.json 中的非空配置覆盖内置列配置
func ColumnsFromConfig(dcfg *config.DataConfig) (Columns, error) {
	cols := DefaultColumns()
	if dcfg == nil {
		return cols, nil
	}
	if len(dcfg.IrrelevantColumns) > 0 {
		cols.Irrelevant = dcfg.IrrelevantColumns
	}
	if len(dcfg.DiversionLegColumns) > 0 {
		cols.DiversionLeg = dcfg.DiversionLegColumns
	}
	for _, spec := range dcfg.ColumnTypes {
		t, err := parseType(spec.Type)
		if err != nil {
			return Columns{}, fmt.Errorf("column %s: %w", spec.Name, err)
		}
		cols.Types[spec.Name] = t
	}
	return cols, nil
}

func parseType(s string) (series.Type, error) {
	switch strings.ToLower(s) {
	case "float":
		return series.Float, nil
	case "int":
		return series.Int, nil
	case "string":
		return series.String, nil
	case "bool":
		return series.Bool, nil
	}
	return series.String, fmt.Errorf("unknown column type %q", s)
}
