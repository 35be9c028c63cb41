package web

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/time/rate"
)

// ErrRetrieval 下载失败: 网络错误、超时或非 2xx 状态码
var ErrRetrieval = errors.New("archive retrieval failed")

// BuildURL 拼接下载地址, 不做任何转义
func BuildURL(baseURL, prefix, period, suffix string) string {
	return baseURL + prefix + period + suffix
}

// ArchiveName 归档在本地的文件名
func ArchiveName(prefix, period, suffix string) string {
	return prefix + period + suffix
}

// Downloader 顺序下载归档文件
type Downloader struct {
	client  *http.Client
	limiter *rate.Limiter
}

// Option 配置 Downloader
type Option func(*Downloader)

// WithHTTPClient 使用自定义的 http.Client
func WithHTTPClient(c *http.Client) Option {
	return func(d *Downloader) { d.client = c }
}

// WithTimeout 单次请求超时, 0 表示不限制
func WithTimeout(timeout time.Duration) Option {
	return func(d *Downloader) {
		c := *d.client
		c.Timeout = timeout
		d.client = &c
	}
}

// WithInterval 两次请求之间的最小间隔, 0 表示不限速
func WithInterval(interval time.Duration) Option {
	return func(d *Downloader) {
		if interval <= 0 {
			d.limiter = rate.NewLimiter(rate.Inf, 1)
			return
		}
		d.limiter = rate.NewLimiter(rate.Every(interval), 1)
	}
}

func NewDownloader(opts ...Option) *Downloader {
	d := &Downloader{
		client:  &http.Client{},
		limiter: rate.NewLimiter(rate.Inf, 1),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Fetch 下载 url 指向的资源并写入 dest. 失败时删除不完整的文件, 错误包装 ErrRetrieval.
func (d *Downloader) Fetch(ctx context.Context, url, dest string) error {
	if err := d.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRetrieval, url, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRetrieval, url, err)
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRetrieval, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s: unexpected status: %d", ErrRetrieval, url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRetrieval, url, err)
	}
	out, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", ErrRetrieval, url, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(dest)
		return fmt.Errorf("%w: %s: %v", ErrRetrieval, url, err)
	}
	if err := out.Close(); err != nil {
		os.Remove(dest)
		return fmt.Errorf("%w: %s: %v", ErrRetrieval, url, err)
	}
	return nil
}
