package datapush

import (
	"context"
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"strings"
	"time"

	"OnTimeDelay/src/storage"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const (
	RETRY_TIMES    = 3
	RETRY_INTERVAL = 2 * time.Second
)

// ErrPublish 上传对象存储失败
var ErrPublish = errors.New("publish failed")

// Config 对象存储连接参数
type Config struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	Prefix    string
	Region    string
	Secure    bool
}

// Enabled endpoint 为空表示不上传
func (c Config) Enabled() bool {
	return c.Endpoint != ""
}

func (c Config) validate() error {
	var missing []string
	if c.Endpoint == "" {
		missing = append(missing, "endpoint")
	}
	if c.AccessKey == "" {
		missing = append(missing, "access_key")
	}
	if c.SecretKey == "" {
		missing = append(missing, "secret_key")
	}
	if c.Bucket == "" {
		missing = append(missing, "bucket")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: missing %s", ErrPublish, strings.Join(missing, ", "))
	}
	return nil
}

// Publisher 把快照与报表上传到 S3 兼容的对象存储
type Publisher struct {
	client   *minio.Client
	cfg      Config
	logger   *storage.Logger
	interval time.Duration
}

func NewPublisher(cfg Config, logger *storage.Logger) (*Publisher, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.Secure,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPublish, err)
	}
	return &Publisher{client: client, cfg: cfg, logger: logger, interval: RETRY_INTERVAL}, nil
}

// ObjectKey <prefix>/<run-id>/<文件名>
func (p *Publisher) ObjectKey(runID, file string) string {
	return path.Join(p.cfg.Prefix, runID, filepath.Base(file))
}

// Publish 依次上传文件, 桶不存在时先创建. 返回已上传的对象键.
func (p *Publisher) Publish(ctx context.Context, runID string, files ...string) ([]string, error) {
	if err := p.ensureBucket(ctx); err != nil {
		return nil, err
	}

	keys := make([]string, 0, len(files))
	for _, file := range files {
		key := p.ObjectKey(runID, file)
		err := retry(ctx, func() error {
			_, err := p.client.FPutObject(ctx, p.cfg.Bucket, key, file, minio.PutObjectOptions{
				ContentType: contentType(file),
			})
			return err
		}, RETRY_TIMES, p.interval)
		if err != nil {
			return keys, fmt.Errorf("%w: %s: %v", ErrPublish, key, err)
		}
		p.logger.Info(fmt.Sprintf("已上传 %s 至 %s/%s", file, p.cfg.Bucket, key))
		keys = append(keys, key)
	}
	return keys, nil
}

func (p *Publisher) ensureBucket(ctx context.Context) error {
	exists, err := p.client.BucketExists(ctx, p.cfg.Bucket)
	if err != nil {
		return fmt.Errorf("%w: bucket %s: %v", ErrPublish, p.cfg.Bucket, err)
	}
	if exists {
		return nil
	}
	if err := p.client.MakeBucket(ctx, p.cfg.Bucket, minio.MakeBucketOptions{Region: p.cfg.Region}); err != nil {
		return fmt.Errorf("%w: make bucket %s: %v", ErrPublish, p.cfg.Bucket, err)
	}
	p.logger.Info(fmt.Sprintf("已创建存储桶 %s", p.cfg.Bucket))
	return nil
}

func contentType(file string) string {
	switch strings.ToLower(filepath.Ext(file)) {
	case ".xlsx":
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	case ".feather", ".arrow":
		return "application/vnd.apache.arrow.file"
	default:
		return "application/octet-stream"
	}
}

// 重试函数
func retry(ctx context.Context, fn func() error, times int, interval time.Duration) error {
	var err error
	for i := 0; i < times; i++ {
		if err = fn(); err == nil {
			return nil
		}
		if i < times-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(interval):
			}
		}
	}
	return fmt.Errorf("重试 %d 次后失败: %v", times, err)
}
