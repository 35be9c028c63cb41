package storage

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/apache/arrow/go/v14/arrow"
	"github.com/apache/arrow/go/v14/arrow/array"
	"github.com/apache/arrow/go/v14/arrow/ipc"
	"github.com/apache/arrow/go/v14/arrow/memory"
	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// ErrSnapshot 快照读写失败
var ErrSnapshot = errors.New("snapshot failed")

// SaveSnapshot 按扩展名写快照: .parquet 写 Parquet, 其他写 Arrow IPC (feather v2)
func SaveSnapshot(df dataframe.DataFrame, path string) error {
	if strings.EqualFold(filepath.Ext(path), ".parquet") {
		return WriteParquet(df, path)
	}
	return WriteFeather(df, path)
}

// SnapshotExists 快照文件是否存在
func SnapshotExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func arrowType(t series.Type) arrow.DataType {
	switch t {
	case series.Float:
		return arrow.PrimitiveTypes.Float64
	case series.Int:
		return arrow.PrimitiveTypes.Int64
	case series.Bool:
		return arrow.FixedWidthTypes.Boolean
	default:
		return arrow.BinaryTypes.String
	}
}

// WriteFeather 把整张表写成一个 Arrow record batch.
// Float 的 NaN 与其他类型的缺失值写为 null, ±Inf 原样保存.
func WriteFeather(df dataframe.DataFrame, path string) error {
	if df.Err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshot, df.Err)
	}
	pool := memory.NewGoAllocator()

	names := df.Names()
	fields := make([]arrow.Field, len(names))
	for i, name := range names {
		fields[i] = arrow.Field{Name: name, Type: arrowType(df.Col(name).Type()), Nullable: true}
	}
	schema := arrow.NewSchema(fields, nil)

	b := array.NewRecordBuilder(pool, schema)
	defer b.Release()

	for i, name := range names {
		if err := appendColumn(b.Field(i), df.Col(name)); err != nil {
			return fmt.Errorf("%w: column %s: %v", ErrSnapshot, name, err)
		}
	}
	rec := b.NewRecord()
	defer rec.Release()

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	w, err := ipc.NewFileWriter(f, ipc.WithSchema(schema), ipc.WithAllocator(pool))
	if err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	if err := w.Write(rec); err != nil {
		w.Close()
		f.Close()
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	if err := w.Close(); err != nil {
		f.Close()
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	return nil
}

func appendColumn(fb array.Builder, s series.Series) error {
	switch b := fb.(type) {
	case *array.Float64Builder:
		for _, v := range s.Float() {
			if math.IsNaN(v) {
				b.AppendNull()
				continue
			}
			b.Append(v)
		}
	case *array.Int64Builder:
		for i := 0; i < s.Len(); i++ {
			el := s.Elem(i)
			v, err := el.Int()
			if el.IsNA() || err != nil {
				b.AppendNull()
				continue
			}
			b.Append(int64(v))
		}
	case *array.BooleanBuilder:
		for i := 0; i < s.Len(); i++ {
			el := s.Elem(i)
			v, err := el.Bool()
			if el.IsNA() || err != nil {
				b.AppendNull()
				continue
			}
			b.Append(v)
		}
	case *array.StringBuilder:
		for i := 0; i < s.Len(); i++ {
			el := s.Elem(i)
			if el.IsNA() {
				b.AppendNull()
				continue
			}
			b.Append(el.String())
		}
	default:
		return fmt.Errorf("unsupported builder %T", fb)
	}
	return nil
}

// ReadFeather 读取 WriteFeather 写出的文件, 多个 record batch 依次拼接
func ReadFeather(path string) (dataframe.DataFrame, error) {
	f, err := os.Open(path)
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %v", ErrSnapshot, err)
	}
	defer f.Close()

	pool := memory.NewGoAllocator()
	r, err := ipc.NewFileReader(f, ipc.WithAllocator(pool))
	if err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %s: %v", ErrSnapshot, path, err)
	}
	defer r.Close()

	schema := r.Schema()
	cols := make([]*columnBuffer, len(schema.Fields()))
	for i, field := range schema.Fields() {
		cols[i] = newColumnBuffer(field)
		if cols[i] == nil {
			return dataframe.DataFrame{}, fmt.Errorf("%w: column %s: unsupported type %s", ErrSnapshot, field.Name, field.Type)
		}
	}

	for i := 0; i < r.NumRecords(); i++ {
		rec, err := r.Record(i)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("%w: record %d: %v", ErrSnapshot, i, err)
		}
		for j, col := range rec.Columns() {
			cols[j].append(col)
		}
	}

	out := make([]series.Series, len(cols))
	for i, c := range cols {
		out[i] = c.toSeries()
	}
	df := dataframe.New(out...)
	if df.Err != nil {
		return dataframe.DataFrame{}, fmt.Errorf("%w: %v", ErrSnapshot, df.Err)
	}
	return df, nil
}

// columnBuffer 把 arrow 列转换为 gota 可以解析的字符串记录
type columnBuffer struct {
	name    string
	typ     series.Type
	records []string
}

func newColumnBuffer(field arrow.Field) *columnBuffer {
	var t series.Type
	switch field.Type.ID() {
	case arrow.FLOAT64:
		t = series.Float
	case arrow.INT64:
		t = series.Int
	case arrow.BOOL:
		t = series.Bool
	case arrow.STRING:
		t = series.String
	default:
		return nil
	}
	return &columnBuffer{name: field.Name, typ: t}
}

func (c *columnBuffer) append(arr arrow.Array) {
	for k := 0; k < arr.Len(); k++ {
		if arr.IsNull(k) {
			c.records = append(c.records, "NaN")
			continue
		}
		switch a := arr.(type) {
		case *array.Float64:
			c.records = append(c.records, formatFloat(a.Value(k)))
		case *array.Int64:
			c.records = append(c.records, fmt.Sprint(a.Value(k)))
		case *array.Boolean:
			c.records = append(c.records, fmt.Sprint(a.Value(k)))
		case *array.String:
			c.records = append(c.records, a.Value(k))
		}
	}
}

// toSeries 字符串列中的 "NaN" 文本会被 gota 当作缺失值
func (c *columnBuffer) toSeries() series.Series {
	if c.records == nil {
		c.records = []string{}
	}
	return series.New(c.records, c.typ, c.name)
}

func formatFloat(v float64) string {
	switch {
	case math.IsInf(v, 1):
		return "+Inf"
	case math.IsInf(v, -1):
		return "-Inf"
	}
	return fmt.Sprintf("%v", v)
}
