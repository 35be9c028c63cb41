package storage

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/source"
	"github.com/xitongsys/parquet-go/writer"
)

// localFile 本地文件实现 source.ParquetFile
type localFile struct {
	*os.File
}

var _ source.ParquetFile = (*localFile)(nil)

func (f *localFile) Open(name string) (source.ParquetFile, error) {
	if name == "" {
		name = f.Name()
	}
	file, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	return &localFile{File: file}, nil
}

func (f *localFile) Create(name string) (source.ParquetFile, error) {
	file, err := os.Create(name)
	if err != nil {
		return nil, err
	}
	return &localFile{File: file}, nil
}

// OpenParquetFile 打开本地 parquet 文件用于读取
func OpenParquetFile(path string) (source.ParquetFile, error) {
	return (&localFile{}).Open(path)
}

// parquetColumnName 去掉 parquet-go 标签语法不允许的字符
func parquetColumnName(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}
	return b.String()
}

func parquetTag(name string, t series.Type) string {
	switch t {
	case series.Float:
		return fmt.Sprintf("name=%s, type=DOUBLE, repetitiontype=OPTIONAL", name)
	case series.Int:
		return fmt.Sprintf("name=%s, type=INT64, repetitiontype=OPTIONAL", name)
	case series.Bool:
		return fmt.Sprintf("name=%s, type=BOOLEAN, repetitiontype=OPTIONAL", name)
	default:
		return fmt.Sprintf("name=%s, type=BYTE_ARRAY, convertedtype=UTF8, repetitiontype=OPTIONAL", name)
	}
}

type jsonSchema struct {
	Tag    string       `json:"Tag"`
	Fields []jsonSchema `json:"Fields,omitempty"`
}

// WriteParquet 以 Snappy 压缩写出 Parquet 文件. 缺失值与非有限浮点数写为 null.
func WriteParquet(df dataframe.DataFrame, path string) error {
	if df.Err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshot, df.Err)
	}

	names := df.Names()
	keys := make([]string, len(names))
	schema := jsonSchema{Tag: "name=parquet_go_root, repetitiontype=REQUIRED"}
	for i, name := range names {
		keys[i] = parquetColumnName(name)
		schema.Fields = append(schema.Fields, jsonSchema{Tag: parquetTag(keys[i], df.Col(name).Type())})
	}
	schemaJSON, err := json.Marshal(schema)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}

	pf, err := (&localFile{}).Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	pw, err := writer.NewJSONWriter(string(schemaJSON), pf, 4)
	if err != nil {
		pf.Close()
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	columns := make([][]interface{}, len(names))
	for i, name := range names {
		columns[i] = parquetValues(df.Col(name))
	}

	row := make(map[string]interface{}, len(names))
	for r := 0; r < df.Nrow(); r++ {
		for i, key := range keys {
			row[key] = columns[i][r]
		}
		rec, err := json.Marshal(row)
		if err != nil {
			pf.Close()
			return fmt.Errorf("%w: row %d: %v", ErrSnapshot, r, err)
		}
		if err := pw.Write(string(rec)); err != nil {
			pf.Close()
			return fmt.Errorf("%w: row %d: %v", ErrSnapshot, r, err)
		}
	}

	if err := pw.WriteStop(); err != nil {
		pf.Close()
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	if err := pf.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	return nil
}

func parquetValues(s series.Series) []interface{} {
	out := make([]interface{}, s.Len())
	for i := 0; i < s.Len(); i++ {
		el := s.Elem(i)
		if el.IsNA() {
			continue
		}
		switch s.Type() {
		case series.Float:
			if v := el.Float(); !math.IsNaN(v) && !math.IsInf(v, 0) {
				out[i] = v
			}
		case series.Int:
			if v, err := el.Int(); err == nil {
				out[i] = v
			}
		case series.Bool:
			if v, err := el.Bool(); err == nil {
				out[i] = v
			}
		default:
			out[i] = el.String()
		}
	}
	return out
}
