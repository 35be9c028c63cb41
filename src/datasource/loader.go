package datasource

import (
	"OnTimeDelay/src/datasource/file"
	"OnTimeDelay/src/datasource/web"
	"OnTimeDelay/src/storage"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-gota/gota/dataframe"
	"github.com/go-gota/gota/series"
)

// Source 描述一组按月份发布的归档
type Source struct {
	BaseURL string
	Prefix  string
	Periods []string
	Suffix  string
}

// Loader 下载、解压、解析并合并归档中的表格
type Loader struct {
	Downloader    *web.Downloader
	Logger        *storage.Logger
	WorkDir       string                 // 归档与解压文件的目录
	MemberSuffix  string                 // 需要解压的成员后缀, 例如 ".csv"
	StrictColumns bool                   // 列集合不一致时报错而不是补 NA
	Types         map[string]series.Type // 解析时固定类型的列
}

// LoadData 按顺序处理每个月份: 下载归档 -> 解压表格成员 -> 删除归档.
// 全部下载完成后再统一解析并纵向合并.
// 第 k 个月份失败时立即返回, 之前月份解压出的文件保留在 WorkDir 中.
func (l *Loader) LoadData(ctx context.Context, src Source) (dataframe.DataFrame, error) {
	if len(src.Periods) == 0 {
		return dataframe.DataFrame{}, fmt.Errorf("no periods to load")
	}
	if err := os.MkdirAll(l.WorkDir, 0755); err != nil {
		return dataframe.DataFrame{}, err
	}

	var files []string
	total := len(src.Periods)
	for i, period := range src.Periods {
		url := web.BuildURL(src.BaseURL, src.Prefix, period, src.Suffix)
		zipPath := filepath.Join(l.WorkDir, web.ArchiveName(src.Prefix, period, src.Suffix))

		l.Logger.Info(fmt.Sprintf("[%d/%d] 下载 %s", i+1, total, url))
		t1 := time.Now()
		if err := l.Downloader.Fetch(ctx, url, zipPath); err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("period %s: %w", period, err)
		}
		l.Logger.Debug(fmt.Sprintf("[%d/%d] 下载完成, 用时 %v", i+1, total, time.Since(t1)))

		extracted, err := l.extract(zipPath)
		if err != nil {
			return dataframe.DataFrame{}, fmt.Errorf("period %s: %w", period, err)
		}
		files = append(files, extracted...)
	}

	return l.readAll(files)
}

// LoadArchive 处理本地已有的归档, 处理完成后删除归档
func (l *Loader) LoadArchive(ctx context.Context, zipPath string) (dataframe.DataFrame, error) {
	if err := ctx.Err(); err != nil {
		return dataframe.DataFrame{}, err
	}
	if err := os.MkdirAll(l.WorkDir, 0755); err != nil {
		return dataframe.DataFrame{}, err
	}
	files, err := l.extract(zipPath)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	return l.readAll(files)
}

func (l *Loader) extract(zipPath string) ([]string, error) {
	files, err := file.ExtractArchive(zipPath, l.WorkDir, l.MemberSuffix)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		l.Logger.Info("解压 " + f)
	}
	if len(files) == 0 {
		l.Logger.Warning(fmt.Sprintf("%s 中没有 %s 文件", zipPath, l.MemberSuffix))
	}

	if err := os.Remove(zipPath); err != nil {
		return nil, fmt.Errorf("remove archive %s: %w", zipPath, err)
	}
	return files, nil
}

func (l *Loader) readAll(files []string) (dataframe.DataFrame, error) {
	frames := make([]dataframe.DataFrame, 0, len(files))
	rows := 0
	for i, f := range files {
		df, err := file.ReadTable(f, l.Types)
		if err != nil {
			return dataframe.DataFrame{}, err
		}
		l.Logger.Info(fmt.Sprintf("[%d/%d] 读取 %s: %d 行 %d 列", i+1, len(files), filepath.Base(f), df.Nrow(), df.Ncol()))
		rows += df.Nrow()
		frames = append(frames, df)
	}

	df, err := file.Concat(frames, l.StrictColumns)
	if err != nil {
		return dataframe.DataFrame{}, err
	}
	l.Logger.Info(fmt.Sprintf("合并完成: %d 个文件, %d 行, %d 列", len(files), rows, df.Ncol()))
	return df, nil
}
