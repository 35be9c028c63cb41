// data.go
package processor

import (
	"OnTimeDelay/src/storage"
	"fmt"
	"sync"
	"time"

	"github.com/go-gota/gota/dataframe"
)

// DataProcess 单个清洗步骤
type DataProcess interface {
	Name() string
	DataProcessFunc(dataframe.DataFrame) (dataframe.DataFrame, error)
}

// stepFunc 把普通函数包装成 DataProcess
type stepFunc struct {
	name string
	fn   func(dataframe.DataFrame) (dataframe.DataFrame, error)
}

func (s stepFunc) Name() string { return s.name }

func (s stepFunc) DataProcessFunc(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	return s.fn(df)
}

// Step 构造一个清洗步骤
func Step(name string, fn func(dataframe.DataFrame) (dataframe.DataFrame, error)) DataProcess {
	return stepFunc{name: name, fn: fn}
}

// Cleaner 按固定顺序执行清洗:
// 删除取消航班 -> 删除未到达的备降航班 -> 删除无关列 -> 合并备降字段 -> 派生列
type Cleaner struct {
	Columns Columns
	Logger  *storage.Logger
}

func NewCleaner(cols Columns, logger *storage.Logger) *Cleaner {
	return &Cleaner{Columns: cols, Logger: logger}
}

// Steps 清洗步骤列表
func (c *Cleaner) Steps() []DataProcess {
	return []DataProcess{
		Step("删除取消航班", RemoveCancelled),
		Step("删除未到达目的地的备降航班", RemoveUnreachedDiversions),
		Step("删除无关列", func(df dataframe.DataFrame) (dataframe.DataFrame, error) {
			return PruneColumns(df, c.Columns.Irrelevant)
		}),
		Step("删除备降明细列", func(df dataframe.DataFrame) (dataframe.DataFrame, error) {
			return PruneColumns(df, c.Columns.DiversionLeg)
		}),
		Step("合并备降字段", ReconcileDiversions),
		Step("派生延误列", AddDerivedColumns),
	}
}

// Prepare 依次执行全部清洗步骤
func (c *Cleaner) Prepare(df dataframe.DataFrame) (dataframe.DataFrame, error) {
	return Run(df, c.Logger, c.Steps()...)
}

// Run 依次执行步骤, 任何一步失败立即返回
func Run(df dataframe.DataFrame, logger *storage.Logger, steps ...DataProcess) (dataframe.DataFrame, error) {
	for _, step := range steps {
		t1 := time.Now()
		out, err := step.DataProcessFunc(df)
		if err != nil {
			return df, fmt.Errorf("%s: %w", step.Name(), err)
		}
		logger.Info(fmt.Sprintf("%s: %d 行 %d 列 -> %d 行 %d 列 (%v)",
			step.Name(), df.Nrow(), df.Ncol(), out.Nrow(), out.Ncol(), time.Since(t1)))
		df = out
	}
	return df, nil
}

// FlightFrame 保存最近一次清洗结果, 供定时任务和监控任务并发读取
type FlightFrame struct {
	df      dataframe.DataFrame
	updated time.Time
	mu      sync.RWMutex
}

// GetDF 获取当前DataFrame(线程安全)
func (f *FlightFrame) GetDF() (dataframe.DataFrame, time.Time) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.df, f.updated
}

// SetDF 替换当前DataFrame(线程安全)
func (f *FlightFrame) SetDF(df dataframe.DataFrame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.df = df
	f.updated = time.Now()
}
