package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"OnTimeDelay/src/config"
	"OnTimeDelay/src/datapush"
	"OnTimeDelay/src/datasource"
	"OnTimeDelay/src/datasource/web"
	"OnTimeDelay/src/processor"
	"OnTimeDelay/src/storage"
	"OnTimeDelay/src/utils"

	"github.com/go-gota/gota/dataframe"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

// app 一次命令执行共享的配置、列定义和日志
type app struct {
	cfg    *config.Config
	cols   processor.Columns
	logger *storage.Logger
	out    io.Writer

	mu sync.Mutex // 同一时间只允许一次流水线使用工作目录
}

// loadFunc 产生清洗后的航班表以及需要上传的文件
type loadFunc func(ctx context.Context) (dataframe.DataFrame, []string, error)

func newApp(cmd *cobra.Command, opts *options) (*app, error) {
	cfg, dcfg, err := config.Load(opts.configDir, configFile, dataConfigFile)
	if err != nil {
		return nil, err
	}
	applyOverrides(cfg, cmd.Flags(), opts)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	cols, err := processor.ColumnsFromConfig(dcfg)
	if err != nil {
		return nil, err
	}

	level, err := storage.ParseLevel(cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	logger, err := storage.NewLogger(cfg.LogName)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	logger.SetLevel(level)
	logger.SetConsole(cmd.OutOrStdout())
	if err := logger.CheckRotate(cfg); err != nil {
		logger.Warning("日志轮转失败: " + err.Error())
	}

	return &app{cfg: cfg, cols: cols, logger: logger, out: cmd.OutOrStdout()}, nil
}

func (a *app) close() {
	a.logger.Close()
}

func (a *app) loader() *datasource.Loader {
	return &datasource.Loader{
		Downloader: web.NewDownloader(
			web.WithTimeout(a.cfg.Download.Timeout),
			web.WithInterval(a.cfg.Download.Interval),
		),
		Logger:        a.logger,
		WorkDir:       a.cfg.WorkDir,
		MemberSuffix:  a.cfg.MemberSuffix,
		StrictColumns: a.cfg.StrictColumns,
		Types:         a.cols.Types,
	}
}

func (a *app) source() datasource.Source {
	return datasource.Source{
		BaseURL: a.cfg.Download.BaseURL,
		Prefix:  a.cfg.Download.Prefix,
		Periods: a.cfg.Download.Periods,
		Suffix:  a.cfg.Download.Suffix,
	}
}

// ingest 下载并清洗全部月份, 然后写快照.
// 开启 snapshot.reuse 且快照已存在时直接读取快照.
func (a *app) ingest(ctx context.Context) (dataframe.DataFrame, []string, error) {
	if a.cfg.Snapshot.Reuse && storage.SnapshotExists(a.cfg.Snapshot.Path) {
		a.logger.Info("复用快照 " + a.cfg.Snapshot.Path)
		df, err := storage.ReadFeather(a.cfg.Snapshot.Path)
		return df, nil, err
	}

	raw, err := a.loader().LoadData(ctx, a.source())
	if err != nil {
		return dataframe.DataFrame{}, nil, err
	}
	df, err := processor.NewCleaner(a.cols, a.logger).Prepare(raw)
	if err != nil {
		return dataframe.DataFrame{}, nil, err
	}
	files, err := a.saveSnapshots(df)
	return df, files, err
}

// ingestArchive 处理 inbox 中的单个归档, 不写快照
func (a *app) ingestArchive(zipPath string) loadFunc {
	return func(ctx context.Context) (dataframe.DataFrame, []string, error) {
		raw, err := a.loader().LoadArchive(ctx, zipPath)
		if err != nil {
			return dataframe.DataFrame{}, nil, err
		}
		df, err := processor.NewCleaner(a.cols, a.logger).Prepare(raw)
		return df, nil, err
	}
}

// fromSnapshot 只读取 feather 快照
func (a *app) fromSnapshot(ctx context.Context) (dataframe.DataFrame, []string, error) {
	if err := ctx.Err(); err != nil {
		return dataframe.DataFrame{}, nil, err
	}
	a.logger.Info("读取快照 " + a.cfg.Snapshot.Path)
	df, err := storage.ReadFeather(a.cfg.Snapshot.Path)
	return df, nil, err
}

func (a *app) saveSnapshots(df dataframe.DataFrame) ([]string, error) {
	var files []string
	for _, path := range []string{a.cfg.Snapshot.Path, a.cfg.Snapshot.ParquetPath} {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return files, fmt.Errorf("%w: %v", storage.ErrSnapshot, err)
		}
		t1 := time.Now()
		if err := storage.SaveSnapshot(df, path); err != nil {
			return files, err
		}
		a.logger.Info(fmt.Sprintf("快照已保存 %s (%v)", path, time.Since(t1)))
		files = append(files, path)
	}
	return files, nil
}

// report 按出发机场筛选后统计, 打印航司表格并导出 xlsx. 返回导出的文件.
func (a *app) report(df dataframe.DataFrame) ([]string, error) {
	origin, err := processor.FilterOrigin(df, a.cfg.Report.AirportID)
	if err != nil {
		return nil, err
	}
	a.logger.Info(fmt.Sprintf("出发机场 %d: %s 个航班", a.cfg.Report.AirportID, utils.FormatInt(origin.Nrow())))

	carriers, err := processor.DescribeByCarrier(origin)
	if err != nil {
		return nil, err
	}
	fmt.Fprint(a.out, processor.FormatCarrierTable(carriers))

	if a.cfg.Report.Output == "" {
		return nil, nil
	}

	sheets := []utils.Sheet{{Name: "carriers", DF: processor.CarrierFrame(carriers)}}
	if causes, err := processor.DelayCauses(origin); err == nil {
		sheets = append(sheets, utils.Sheet{Name: "causes", DF: processor.CauseFrame(causes)})
	} else if errors.Is(err, processor.ErrSchema) {
		a.logger.Warning("跳过延误原因统计: " + err.Error())
	} else {
		return nil, err
	}
	if blocks, err := processor.DelayByTimeBlock(origin); err == nil {
		sheets = append(sheets, utils.Sheet{Name: "time_blocks", DF: processor.BlockFrame(blocks)})
	} else if errors.Is(err, processor.ErrSchema) {
		a.logger.Warning("跳过时段统计: " + err.Error())
	} else {
		return nil, err
	}

	if dir := filepath.Dir(a.cfg.Report.Output); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, err
		}
	}
	if err := utils.SaveToExcel(a.cfg.Report.Output, sheets...); err != nil {
		return nil, fmt.Errorf("export report: %w", err)
	}
	a.logger.Info("报表已导出 " + a.cfg.Report.Output)
	return []string{a.cfg.Report.Output}, nil
}

func (a *app) publish(ctx context.Context, runID string, files []string) error {
	pcfg := datapush.Config{
		Endpoint:  a.cfg.Publish.Endpoint,
		AccessKey: a.cfg.Publish.AccessKey,
		SecretKey: a.cfg.Publish.SecretKey,
		Bucket:    a.cfg.Publish.Bucket,
		Prefix:    a.cfg.Publish.Prefix,
		Region:    a.cfg.Publish.Region,
		Secure:    a.cfg.Publish.Secure,
	}
	if !pcfg.Enabled() || len(files) == 0 {
		return nil
	}
	p, err := datapush.NewPublisher(pcfg, a.logger)
	if err != nil {
		return err
	}
	_, err = p.Publish(ctx, runID, files...)
	return err
}

// execute 一次完整运行: 加载 -> 统计导出 -> 上传. 每次运行分配新的 run id.
func (a *app) execute(ctx context.Context, load loadFunc, upload bool) (dataframe.DataFrame, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	runID := uuid.NewString()
	a.logger.SetRunID(runID)
	defer a.logger.SetRunID("")

	t1 := time.Now()
	a.logger.Info("开始运行")

	df, files, err := load(ctx)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	a.logger.Info(fmt.Sprintf("清洗后 %s 行 %d 列", utils.FormatInt(df.Nrow()), df.Ncol()))

	reports, err := a.report(df)
	if err != nil {
		return df, err
	}
	if upload {
		if err := a.publish(ctx, runID, append(files, reports...)); err != nil {
			return df, err
		}
	}

	a.logger.Info(fmt.Sprintf("运行完成, 用时 %v", time.Since(t1)))
	return df, nil
}
