package loader

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

// FileLoader 从本地文件加载；ref 为相对路径时相对于 BaseDir。
type FileLoader struct {
	BaseDir string
}

// NewFileLoader 创建本地文件加载器
func NewFileLoader(baseDir string) *FileLoader {
	return &FileLoader{BaseDir: baseDir}
}

func (l *FileLoader) Load(ctx context.Context, ref string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := ref
	if l.BaseDir != "" && !filepath.IsAbs(path) {
		path = filepath.Join(l.BaseDir, path)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("读取文件失败: %w", err)
	}
	return data, nil
}
