// archive.go
package file

import (
	"archive/zip"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrExtraction 归档损坏或无法读取
	ErrExtraction = errors.New("archive extraction failed")
	// ErrParse 表格文本无法解析
	ErrParse = errors.New("tabular parse failed")
)

// ExtractArchive 把 zipPath 中以 suffix 结尾的成员(区分大小写)解压到 destDir,
// 按归档内顺序返回写出的文件路径.
func ExtractArchive(zipPath, destDir, suffix string) ([]string, error) {
	zr, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExtraction, zipPath, err)
	}
	defer zr.Close()

	root, err := filepath.Abs(destDir)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrExtraction, zipPath, err)
	}

	var written []string
	for _, member := range zr.File {
		if member.FileInfo().IsDir() || !strings.HasSuffix(member.Name, suffix) {
			continue
		}

		target := filepath.Join(root, filepath.FromSlash(member.Name))
		if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
			return written, fmt.Errorf("%w: %s: member %q escapes %s", ErrExtraction, zipPath, member.Name, destDir)
		}

		if err := extractMember(member, target); err != nil {
			return written, fmt.Errorf("%w: %s: %s: %v", ErrExtraction, zipPath, member.Name, err)
		}
		written = append(written, target)
	}
	return written, nil
}

func extractMember(member *zip.File, target string) error {
	if err := ensureDir(filepath.Dir(target)); err != nil {
		return err
	}

	rc, err := member.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// ensureDir 确保目录存在
func ensureDir(dirPath string) error {
	if info, err := os.Stat(dirPath); err == nil {
		if info.IsDir() {
			return nil
		}
		return fmt.Errorf("%s exists but is not a directory", dirPath)
	}
	return os.MkdirAll(dirPath, 0755)
}
