package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"schoolbot/app/conversation"
	"schoolbot/core/logger"
	"log/slog"
)

// FileOpener streams a provider-hosted file by its file id. The bot
// transport satisfies this once it is connected.
type FileOpener interface {
	OpenFile(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// MediaStore archives voice notes and photos under a base directory:
// voice/<unique_id>.ogg and img/<unique_id>.jpg. The opener is wired
// after construction, once the transport is up.
type MediaStore struct {
	dir string

	mu     sync.RWMutex
	opener FileOpener
}

func NewMediaStore(dir string) *MediaStore {
	if dir == "" {
		dir = "."
	}
	return &MediaStore{dir: dir}
}

// SetOpener installs the file source. Must happen before updates flow.
func (s *MediaStore) SetOpener(op FileOpener) {
	s.mu.Lock()
	s.opener = op
	s.mu.Unlock()
}

func (s *MediaStore) currentOpener() (FileOpener, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.opener == nil {
		return nil, fmt.Errorf("media: no file opener wired")
	}
	return s.opener, nil
}

// SaveVoice archives a voice note and returns the path written.
func (s *MediaStore) SaveVoice(ctx context.Context, file conversation.FileRef) (string, error) {
	return s.save(ctx, file, "voice", ".ogg")
}

// SavePhoto archives a photo and returns the path written.
func (s *MediaStore) SavePhoto(ctx context.Context, file conversation.FileRef) (string, error) {
	return s.save(ctx, file, "img", ".jpg")
}

func (s *MediaStore) save(ctx context.Context, file conversation.FileRef, subdir, ext string) (string, error) {
	op, err := s.currentOpener()
	if err != nil {
		return "", err
	}
	if file.UniqueID == "" {
		return "", fmt.Errorf("media: file reference has no unique id")
	}

	targetDir := filepath.Join(s.dir, subdir)
	if err := os.MkdirAll(targetDir, 0o755); err != nil {
		return "", fmt.Errorf("media: create dir %s: %w", targetDir, err)
	}

	src, err := op.OpenFile(ctx, file.ID)
	if err != nil {
		return "", fmt.Errorf("media: open remote file: %w", err)
	}
	defer src.Close()

	path := filepath.Join(targetDir, file.UniqueID+ext)
	dst, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("media: create %s: %w", path, err)
	}

	written, err := io.Copy(dst, src)
	if cerr := dst.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("media: write %s: %w", path, err)
	}

	logger.SVCMedia.LogAttrs(ctx, slog.LevelInfo, "file archived",
		slog.String("event", "archive.ok"),
		slog.String("file_id", file.ID),
		slog.String("path", path),
		slog.Int64("bytes", written),
	)
	return path, nil
}
