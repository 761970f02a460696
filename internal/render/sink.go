package render

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
)

// FileSystemSink writes the chunked trailer pages to disk.
type FileSystemSink struct {
	root   string
	prefix string
	logger *zap.Logger
}

// NewFileSystemSink returns a sink rooted at dir; pages are written as
// <prefix>_<n>.html.
func NewFileSystemSink(root, prefix string, logger *zap.Logger) (*FileSystemSink, error) {
	if prefix == "" {
		return nil, fmt.Errorf("sink prefix must not be empty")
	}
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create sink dir %s: %w", root, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FileSystemSink{
		root:   root,
		prefix: prefix,
		logger: logger,
	}, nil
}

// PagePath returns the output path for a 1-based chunk index.
func (s *FileSystemSink) PagePath(index int) string {
	return filepath.Join(s.root, fmt.Sprintf("%s_%d.html", s.prefix, index))
}

// WritePage persists one rendered chunk and returns its path.
func (s *FileSystemSink) WritePage(ctx context.Context, index int, body []byte) (string, error) {
	if len(body) == 0 {
		return "", fmt.Errorf("empty page body")
	}
	if err := ctx.Err(); err != nil {
		return "", fmt.Errorf("context canceled: %w", err)
	}
	target := s.PagePath(index)
	if err := os.WriteFile(target, body, 0o600); err != nil {
		return "", fmt.Errorf("writing page to %s: %w", target, err)
	}
	s.logger.Info("wrote trailer page", zap.String("path", target), zap.Int("bytes", len(body)))
	return target, nil
}
