package processor

import (
	"fmt"

	"github.com/go-gota/gota/dataframe"
)

// PruneColumns 删除 names 中的列. 任何一列不存在时不做修改, 返回的错误列出全部缺失的列.
func PruneColumns(df dataframe.DataFrame, names []string) (dataframe.DataFrame, error) {
	if len(names) == 0 {
		return df, nil
	}
	if err := requireColumns(df, "prune columns", names...); err != nil {
		return df, err
	}
	out := df.Drop(names)
	if out.Err != nil {
		return df, fmt.Errorf("prune columns: %w", out.Err)
	}
	return out, nil
}
