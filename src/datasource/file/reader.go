// reader.go
package file

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/tealeg/xlsx"
)

// ReadTable 按扩展名解析一个表格文件. types 声明了需要固定类型的列,
// 其余列自动推断, 推断不出来(整列为空)时退化为字符串, 不报错.
func ReadTable(path string, types map[string]series.Type) (dataframe.DataFrame, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		return ReadXLSX(path, "", types)
	default:
		return ReadCSV(path, types)
	}
}

// ReadCSV 读取带表头的逗号分隔文件
func ReadCSV(path string, types map[string]series.Type) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	if len(records) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s: missing header row", ErrParse, path)
	}

	df, err := buildFrame(fixHeaders(records[0]), records[1:], types)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	return df, nil
}

// ReadXLSX 读取工作表, 第一行为表头. sheetName 为空时取第一个工作表.
func ReadXLSX(filePath, sheetName string, types map[string]series.Type) (dataframe.DataFrame, error) {
	xlFile, err := xlsx.OpenFile(filePath)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s: %v", ErrParse, filePath, err)
	}
	if len(xlFile.Sheets) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s: workbook has no sheets", ErrParse, filePath)
	}

	sheet := xlFile.Sheets[0]
	if sheetName != "" {
		s, ok := xlFile.Sheet[sheetName]
		if !ok {
			return dataframe.DataFrame{}, fmt.Errorf("%w: %s: sheet %q not found", ErrParse, filePath, sheetName)
		}
		sheet = s
	}

	df, err := convertSheetToDataFrame(sheet, types)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s: %v", ErrParse, filePath, err)
	}
	return df, nil
}

// convertSheetToDataFrame 将xlsx.Sheet转换为dataframe.DataFrame
func convertSheetToDataFrame(sheet *xlsx.Sheet, types map[string]series.Type) (dataframe.DataFrame, error) {
	if len(sheet.Rows) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("sheet %s is empty", sheet.Name)
	}

	var headers []string
	for _, cell := range sheet.Rows[0].Cells {
		headers = append(headers, cell.Value)
	}
	headers = fixHeaders(headers)

	rows := make([][]string, 0, len(sheet.Rows)-1)
	for _, row := range sheet.Rows[1:] {
		record := make([]string, len(headers))
		for i, cell := range row.Cells {
			if i < len(headers) { // 确保不超出列数范围
				record[i] = cell.Value
			}
		}
		rows = append(rows, record)
	}
	return buildFrame(headers, rows, types)
}

// fixHeaders 空表头命名为 "Unnamed: <列序号>"
func fixHeaders(headers []string) []string {
	fixed := make([]string, len(headers))
	for i, h := range headers {
		h = strings.TrimSpace(h)
		if h == "" {
			h = fmt.Sprintf("Unnamed: %d", i)
		}
		fixed[i] = h
	}
	return fixed
}

// naValues 读入时视为缺失的文本, 空单元格也是缺失值
var naValues = []string{"NA", "NaN", "<nil>", ""}

func buildFrame(headers []string, rows [][]string, types map[string]series.Type) (dataframe.DataFrame, error) {
	if len(rows) == 0 {
		// LoadRecords 不接受没有数据行的输入
		cols := make([]series.Series, len(headers))
		for i, name := range headers {
			t, ok := types[name]
			if !ok {
				t = series.String
			}
			cols[i] = series.New([]string{}, t, name)
		}
		df := dataframe.New(cols...)
		return df, df.Err
	}

	records := make([][]string, 0, len(rows)+1)
	records = append(records, headers)
	records = append(records, rows...)

	df := dataframe.LoadRecords(records,
		dataframe.HasHeader(true),
		dataframe.DetectTypes(true),
		dataframe.DefaultType(series.String),
		dataframe.NaNValues(naValues),
		dataframe.WithTypes(types),
	)
	return df, df.Err
}
