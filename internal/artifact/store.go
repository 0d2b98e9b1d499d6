// Package artifact 保存生成的图片与音频文件。
package artifact

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// Store 保存二进制产物并返回可公开访问的引用
type Store interface {
	Save(ctx context.Context, kind, ext string, data []byte) (string, error)
}

// FileStore 本地目录存储，由 gin 静态路由对外提供
type FileStore struct {
	dir    string
	prefix string
}

func NewFileStore(dir, publicPrefix string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create artifact dir: %w", err)
	}
	return &FileStore{dir: dir, prefix: strings.TrimRight(publicPrefix, "/")}, nil
}

func (s *FileStore) Save(ctx context.Context, kind, ext string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(data) == 0 {
		return "", fmt.Errorf("artifact %s: empty payload", kind)
	}
	name := fmt.Sprintf("%s_%s.%s", kind, uuid.NewString(), strings.TrimPrefix(ext, "."))
	tmp := filepath.Join(s.dir, "."+name+".tmp")
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return "", fmt.Errorf("write artifact: %w", err)
	}
	if err := os.Rename(tmp, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmp)
		return "", fmt.Errorf("commit artifact: %w", err)
	}
	return s.prefix + "/" + name, nil
}

// Dir 存储目录
func (s *FileStore) Dir() string { return s.dir }
