// monitor.go
package file

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultSettle 文件最后一次写入后等待多久才交给处理函数
const DefaultSettle = 2 * time.Second

// FileMonitor 监控目录中新出现的指定后缀文件. 同一文件在 settle 时间内的
// 多次写事件合并为一次回调.
type FileMonitor struct {
	watchDir string
	suffix   string
	settle   time.Duration
	watcher  *fsnotify.Watcher
	lastMod  map[string]time.Time
	pending  map[string]*time.Timer
	mu       sync.Mutex
}

func NewFileMonitor(dir, suffix string, settle time.Duration) (*FileMonitor, error) {
	if err := ensureDir(dir); err != nil {
		return nil, err
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return nil, err
	}

	return &FileMonitor{
		watchDir: dir,
		suffix:   suffix,
		settle:   settle,
		watcher:  watcher,
		lastMod:  make(map[string]time.Time),
		pending:  make(map[string]*time.Timer),
	}, nil
}

// Watch 阻塞直到 ctx 结束或 watcher 出错. handler 在独立 goroutine 中执行.
func (m *FileMonitor) Watch(ctx context.Context, handler func(string)) error {
	defer m.stopPending()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-m.watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !strings.HasSuffix(filepath.Base(event.Name), m.suffix) {
				continue
			}
			m.schedule(event.Name, handler)
		case err, ok := <-m.watcher.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (m *FileMonitor) schedule(name string, handler func(string)) {
	info, err := os.Stat(name)
	if err != nil || info.IsDir() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if last, ok := m.lastMod[name]; ok && !info.ModTime().After(last) {
		if _, waiting := m.pending[name]; !waiting {
			return
		}
	}
	m.lastMod[name] = info.ModTime()

	if t, ok := m.pending[name]; ok {
		t.Reset(m.settle)
		return
	}
	m.pending[name] = time.AfterFunc(m.settle, func() {
		m.mu.Lock()
		delete(m.pending, name)
		m.mu.Unlock()
		handler(name)
	})
}

func (m *FileMonitor) stopPending() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for name, t := range m.pending {
		t.Stop()
		delete(m.pending, name)
	}
}

// Close 释放 watcher
func (m *FileMonitor) Close() error {
	return m.watcher.Close()
}
