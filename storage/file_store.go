/*
 * Copyright (c) 2022 AlertAvert.com.  All rights reserved.
 *
 * Licensed under the Apache License, Version 2.0
 * http://www.apache.org/licenses/LICENSE-2.0
 *
 * Author: Marco Massenzio (marco@alertavert.com)
 */

package storage

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	slf4go "github.com/massenz/slf4go/logging"

	"github.com/massenz/state-service/api"
)

// FileStore keeps the Chart in a single YAML (or JSON, if the file extension
// is `.json`) document on the local filesystem.
type FileStore struct {
	logger *slf4go.Log
	mux    sync.Mutex
	path   string
	format Format

	// AllowMissing makes a missing document (or an empty path) read as the
	// `no_state` chart, instead of failing with a NotFoundError.
	AllowMissing bool
}

func NewFileStore(path string, allowMissing bool) *FileStore {
	return &FileStore{
		logger:       slf4go.NewLog(fmt.Sprintf("file://%s", path)),
		path:         path,
		format:       FormatFor(path),
		AllowMissing: allowMissing,
	}
}

func (fs *FileStore) Path() string {
	return fs.path
}

func (fs *FileStore) GetChart() (*api.Chart, error) {
	fs.mux.Lock()
	defer fs.mux.Unlock()

	if fs.path == "" {
		if fs.AllowMissing {
			fs.logger.Info("no chart configured, using %s", api.NoStateName)
			return api.NoStateChart(), nil
		}
		return nil, fmt.Errorf("%w: no chart path configured", api.NotFoundError)
	}
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if fs.AllowMissing {
				fs.logger.Info("chart %s does not exist, using %s", fs.path, api.NoStateName)
				return api.NoStateChart(), nil
			}
			return nil, fmt.Errorf("%w: %s", api.NotFoundError, fs.path)
		}
		fs.logger.Error("cannot read %s: %v", fs.path, err)
		return nil, fmt.Errorf("read %s: %w", fs.path, err)
	}
	fs.logger.Trace("read %d bytes from %s", len(data), fs.path)
	return decode(data, fs.format)
}

// PutChart replaces the document atomically: the Chart is written to a temporary
// file in the same directory, which is then renamed.
func (fs *FileStore) PutChart(chart *api.Chart) error {
	if fs.path == "" {
		return fmt.Errorf("%w: no chart path configured", IllegalStoreError)
	}
	data, err := encode(chart, fs.format)
	if err != nil {
		return err
	}
	fs.mux.Lock()
	defer fs.mux.Unlock()

	dir := filepath.Dir(fs.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(fs.path)+".*")
	if err != nil {
		fs.logger.Error("cannot create a temporary file in %s: %v", dir, err)
		return err
	}
	defer os.Remove(tmp.Name())
	mode := os.FileMode(0644)
	if info, err := os.Stat(fs.path); err == nil {
		mode = info.Mode().Perm()
	}
	if err = tmp.Chmod(mode); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod %s: %w", tmp.Name(), err)
	}
	if _, err = tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", tmp.Name(), err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmp.Name(), err)
	}
	if err = os.Rename(tmp.Name(), fs.path); err != nil {
		fs.logger.Error("cannot replace %s: %v", fs.path, err)
		return err
	}
	fs.logger.Debug("chart saved to %s (current state: %s)", fs.path, chart.CurrentState)
	return nil
}

// Health checks that the directory the chart is stored in is accessible.
func (fs *FileStore) Health() error {
	if fs.path == "" {
		return nil
	}
	info, err := os.Stat(filepath.Dir(fs.path))
	if err != nil {
		return fmt.Errorf("file store health check failed: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("file store health check failed: %s is not a directory",
			filepath.Dir(fs.path))
	}
	return nil
}

// SetLogLevel for FileStore implements the Loggable interface
func (fs *FileStore) SetLogLevel(level slf4go.LogLevel) {
	fs.logger.Level = level
}
