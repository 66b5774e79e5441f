package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	logx "relaybot/pkg/logx"
)

// fileStore keeps the whole mapping in one JSON object:
//
//	{"@source_channel": 1234, "-1001234567890": 98}
//
// Save writes a temp file and renames it over the old one.
type fileStore struct {
	log  logx.Logger
	path string

	mu     sync.Mutex
	closed bool
}

func openFile(cfg Config, log logx.Logger) (Store, error) {
	dir := filepath.Dir(cfg.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	if fi, err := os.Stat(cfg.Path); err == nil && fi.IsDir() {
		return nil, fmt.Errorf("state path %s is a directory", cfg.Path)
	}
	// Fail now rather than after the first forward: Save needs <path>.tmp.
	tmp := cfg.Path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("state path not writable: %w", err)
	}
	_ = f.Close()
	if err := os.Remove(tmp); err != nil {
		return nil, fmt.Errorf("state path not writable: %w", err)
	}
	return &fileStore{log: log, path: cfg.Path}, nil
}

func (s *fileStore) Load(ctx context.Context) (Progress, error) {
	_ = ctx
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Progress{}, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	p, err := decodeProgress(b)
	if err != nil {
		s.log.Warn("state file corrupt; starting from zero", logx.String("path", s.path), logx.Err(err))
		return Progress{}, nil
	}
	return p, nil
}

func decodeProgress(b []byte) (Progress, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return Progress{}, nil
	}
	var p Progress
	if err := json.Unmarshal(b, &p); err != nil {
		return nil, err
	}
	if p == nil {
		// "null"
		return Progress{}, nil
	}
	return p, nil
}

func (s *fileStore) Save(ctx context.Context, p Progress) error {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	if p == nil {
		p = Progress{}
	}

	b, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')

	tmp := s.path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}

func (s *fileStore) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
