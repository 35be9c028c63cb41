package datapush

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeS3 只实现 HEAD bucket 与 PUT object
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	buckets map[string]bool
}

func (s *fakeS3) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p := strings.TrimPrefix(r.URL.Path, "/")
	bucket, key, _ := strings.Cut(p, "/")
	switch {
	case r.Method == http.MethodHead && key == "":
		if !s.buckets[bucket] {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	case r.Method == http.MethodPut && key != "":
		body, _ := io.ReadAll(r.Body)
		s.objects[p] = body
		w.Header().Set("ETag", `"d41d8cd98f00b204e9800998ecf8427e"`)
		w.WriteHeader(http.StatusOK)
	default:
		w.WriteHeader(http.StatusNotImplemented)
	}
}

func TestConfigValidate(t *testing.T) {
	_, err := NewPublisher(Config{Endpoint: "localhost:9000"}, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPublish))
	assert.Contains(t, err.Error(), "access_key, secret_key, bucket")

	assert.False(t, Config{}.Enabled())
	assert.True(t, Config{Endpoint: "localhost:9000"}.Enabled())
}

func TestObjectKey(t *testing.T) {
	p, err := NewPublisher(Config{
		Endpoint: "localhost:9000", AccessKey: "a", SecretKey: "b", Bucket: "ontime", Prefix: "snapshots",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "snapshots/run-1/cotp_save.parquet", p.ObjectKey("run-1", "/tmp/out/cotp_save.parquet"))

	p.cfg.Prefix = ""
	assert.Equal(t, "run-1/carrier_delay.xlsx", p.ObjectKey("run-1", "carrier_delay.xlsx"))
}

func TestPublish(t *testing.T) {
	s3 := &fakeS3{objects: map[string][]byte{}, buckets: map[string]bool{"ontime": true}}
	srv := httptest.NewServer(s3)
	defer srv.Close()

	dir := t.TempDir()
	report := filepath.Join(dir, "carrier_delay.xlsx")
	require.NoError(t, os.WriteFile(report, []byte("report"), 0o644))

	p, err := NewPublisher(Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "ontime",
		Prefix:    "snapshots",
		Region:    "us-east-1",
	}, nil)
	require.NoError(t, err)

	keys, err := p.Publish(context.Background(), "run-1", report)
	require.NoError(t, err)
	assert.Equal(t, []string{"snapshots/run-1/carrier_delay.xlsx"}, keys)

	s3.mu.Lock()
	defer s3.mu.Unlock()
	assert.Contains(t, s3.objects, "ontime/snapshots/run-1/carrier_delay.xlsx")
}

func TestPublishMissingFile(t *testing.T) {
	s3 := &fakeS3{objects: map[string][]byte{}, buckets: map[string]bool{"ontime": true}}
	srv := httptest.NewServer(s3)
	defer srv.Close()

	p, err := NewPublisher(Config{
		Endpoint:  strings.TrimPrefix(srv.URL, "http://"),
		AccessKey: "minio",
		SecretKey: "minio123",
		Bucket:    "ontime",
		Region:    "us-east-1",
	}, nil)
	require.NoError(t, err)
	p.interval = time.Millisecond

	_, err = p.Publish(context.Background(), "run-1", filepath.Join(t.TempDir(), "missing.parquet"))
	assert.ErrorIs(t, err, ErrPublish)
}

func TestRetry(t *testing.T) {
	calls := 0
	err := retry(context.Background(), func() error {
		calls++
		if calls < 2 {
			return errors.New("boom")
		}
		return nil
	}, 3, time.Millisecond)
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)

	calls = 0
	err = retry(context.Background(), func() error {
		calls++
		return errors.New("boom")
	}, 3, time.Millisecond)
	assert.Error(t, err)
	assert.Equal(t, 3, calls)
}
