package query

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
)

// ViewName parquet 快照在 DuckDB 中的视图名
const ViewName = "flights"

// OpenSnapshotDB 打开内存 DuckDB, 并把 parquet 快照注册为 flights 视图
func OpenSnapshotDB(ctx context.Context, parquetPath string) (*sql.DB, error) {
	if _, err := os.Stat(parquetPath); err != nil {
		return nil, fmt.Errorf("parquet snapshot: %w", err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	stmt := fmt.Sprintf("CREATE VIEW %s AS SELECT * FROM read_parquet('%s')",
		ViewName, strings.ReplaceAll(parquetPath, "'", "''"))
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		db.Close()
		return nil, fmt.Errorf("create view %s: %w", ViewName, err)
	}
	return db, nil
}

// Run 执行一条查询并把结果以制表符分隔输出到 w, 返回行数
func Run(ctx context.Context, db *sql.DB, w io.Writer, q string) (int, error) {
	rows, err := db.QueryContext(ctx, q)
	if err != nil {
		return 0, err
	}
	defer rows.Close()
	return PrintRows(w, rows)
}

// PrintRows 表头 + 分隔线 + 每行一条记录
func PrintRows(w io.Writer, rows *sql.Rows) (int, error) {
	cols, err := rows.Columns()
	if err != nil {
		return 0, err
	}

	fmt.Fprintln(w, strings.Join(cols, "\t"))
	fmt.Fprintln(w, strings.Repeat("-", 100))

	vals := make([]interface{}, len(cols))
	ptrs := make([]interface{}, len(cols))
	for i := range vals {
		ptrs[i] = &vals[i]
	}

	count := 0
	for rows.Next() {
		if err := rows.Scan(ptrs...); err != nil {
			return count, err
		}
		parts := make([]string, len(vals))
		for i, v := range vals {
			if v == nil {
				parts[i] = "NULL"
				continue
			}
			parts[i] = fmt.Sprintf("%v", v)
		}
		fmt.Fprintln(w, strings.Join(parts, "\t"))
		count++
	}
	return count, rows.Err()
}
