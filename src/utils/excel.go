package utils

import (
	"fmt"
	"math"

	"github.com/go-gota/gota/dataframe"
	"github.com/xuri/excelize/v2"
)

// Sheet 一个待写入的工作表
type Sheet struct {
	Name string
	DF   dataframe.DataFrame
}

// SaveToExcel 把多个 DataFrame 写入同一个工作簿, 每个占一个工作表.
// NaN 与缺失值写为空单元格, ±Inf 写为文本 "inf"/"-inf".
func SaveToExcel(filePath string, sheets ...Sheet) error {
	if len(sheets) == 0 {
		return fmt.Errorf("保存Excel文件失败: 没有工作表")
	}

	f := excelize.NewFile()
	defer f.Close()

	for i, sh := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", sh.Name); err != nil {
				return fmt.Errorf("保存Excel文件失败: %w", err)
			}
		} else if _, err := f.NewSheet(sh.Name); err != nil {
			return fmt.Errorf("保存Excel文件失败: %w", err)
		}
		if err := writeSheet(f, sh); err != nil {
			return fmt.Errorf("保存Excel文件失败: %s: %w", sh.Name, err)
		}
	}

	// 保存文件
	if err := f.SaveAs(filePath); err != nil {
		return fmt.Errorf("保存Excel文件失败: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sh Sheet) error {
	sw, err := f.NewStreamWriter(sh.Name)
	if err != nil {
		return err
	}

	// 写入列名
	colNames := sh.DF.Names()
	header := make([]interface{}, len(colNames))
	for i, name := range colNames {
		header[i] = name
	}
	if err := sw.SetRow("A1", header); err != nil {
		return err
	}

	columns := make([][]interface{}, len(colNames))
	for i, name := range colNames {
		columns[i] = CellValues(sh.DF.Col(name))
	}

	// 写入数据
	row := make([]interface{}, len(colNames))
	for rowIdx := 0; rowIdx < sh.DF.Nrow(); rowIdx++ {
		for colIdx := range columns {
			row[colIdx] = excelValue(columns[colIdx][rowIdx])
		}
		cell, err := excelize.CoordinatesToCellName(1, rowIdx+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return err
		}
	}
	return sw.Flush()
}

func excelValue(v interface{}) interface{} {
	f, ok := v.(float64)
	if !ok {
		return v
	}
	switch {
	case math.IsInf(f, 1):
		return "inf"
	case math.IsInf(f, -1):
		return "-inf"
	}
	return f
}
