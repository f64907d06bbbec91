// Copyright 2026 © The Kairos Authors
// SPDX-License-Identifier: Apache-2.0

package session

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/jllopis/swarm/pkg/errors"
)

// FileStore keeps each session as a JSON file in a directory.
// Suitable for simple persistence without external dependencies.
type FileStore struct {
	mu      sync.RWMutex
	baseDir string
}

// NewFileStore creates the directory if needed.
func NewFileStore(baseDir string) (*FileStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session directory: %w", err)
	}
	return &FileStore{baseDir: baseDir}, nil
}

// sessionFile maps id to its file. Ids that would leave the directory or
// name a different file are rejected.
func (f *FileStore) sessionFile(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", errors.New(errors.CodeInvalidInput, "session id must not contain path separators", nil).
			WithContext("session_id", id)
	}
	return filepath.Join(f.baseDir, id+".json"), nil
}

// Get implements Store.
func (f *FileStore) Get(_ context.Context, id string) (*State, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	path, err := f.sessionFile(id)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, notFound(id)
		}
		return nil, storeError("read", id, err)
	}
	var state State
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, storeError("decode", id, err)
	}
	if state.Turns == nil {
		state.Turns = []Turn{}
	}
	return &state, nil
}

// Put implements Store. The file is replaced atomically.
func (f *FileStore) Put(_ context.Context, id string, state *State) error {
	if err := validatePut(id, state); err != nil {
		return err
	}
	path, err := f.sessionFile(id)
	if err != nil {
		return err
	}
	data, err := json.Marshal(prepare(id, state))
	if err != nil {
		return storeError("encode", id, err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return storeError("write", id, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return storeError("write", id, err)
	}
	return nil
}

// Delete implements Store.
func (f *FileStore) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	path, err := f.sessionFile(id)
	if err != nil {
		return err
	}
	err = os.Remove(path)
	if err == nil || os.IsNotExist(err) {
		return nil
	}
	return storeError("delete", id, err)
}

// List implements Store.
func (f *FileStore) List(_ context.Context) ([]string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	entries, err := os.ReadDir(f.baseDir)
	if err != nil {
		return nil, storeError("list", "", err)
	}
	var ids []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) == ".json" {
			ids = append(ids, strings.TrimSuffix(name, ".json"))
		}
	}
	sort.Strings(ids)
	return ids, nil
}
