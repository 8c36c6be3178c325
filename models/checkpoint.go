package models

import (
	"fmt"
	"os"
	"path/filepath"
)

// ParamMarshaler is implemented by models whose parameters can be
// checkpointed.
type ParamMarshaler interface {
	MarshalParams() ([]byte, error)
}

// ParamUnmarshaler is implemented by models whose parameters can be
// restored from a checkpoint blob.
type ParamUnmarshaler interface {
	UnmarshalParams([]byte) error
}

// SaveParams writes a model's parameter blob to path. The write is atomic
// (temp file in the same directory, then rename) so a crash mid-write
// never leaves a truncated checkpoint behind.
func SaveParams(path string, m ParamMarshaler) error {
	if path == "" {
		return fmt.Errorf("empty checkpoint path")
	}
	data, err := m.MarshalParams()
	if err != nil {
		return fmt.Errorf("failed to marshal parameters: %w", err)
	}

	dir := filepath.Dir(path)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("mkdir %s: %w", dir, err)
		}
	}

	tmpFile, err := os.CreateTemp(dir, filepath.Base(path)+".tmp.*")
	if err != nil {
		return fmt.Errorf("create temp checkpoint file: %w", err)
	}
	tmpName := tmpFile.Name()
	defer func() {
		tmpFile.Close()
		_ = os.Remove(tmpName)
	}()

	if _, err := tmpFile.Write(data); err != nil {
		return fmt.Errorf("write temp checkpoint: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return fmt.Errorf("sync temp checkpoint: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp checkpoint: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename temp checkpoint to target: %w", err)
	}
	return nil
}

// LoadParams restores a model's parameters from a checkpoint file.
func LoadParams(path string, m ParamUnmarshaler) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read checkpoint %s: %w", path, err)
	}
	if err := m.UnmarshalParams(data); err != nil {
		return fmt.Errorf("failed to restore checkpoint %s: %w", path, err)
	}
	return nil
}
