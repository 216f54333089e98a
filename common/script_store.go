/*
 *
 * xk6-browser - a browser automation extension for k6
 * Copyright (C) 2021 Load Impact
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU Affero General Public License as
 * published by the Free Software Foundation, either version 3 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU Affero General Public License for more details.
 *
 * You should have received a copy of the GNU Affero General Public License
 * along with this program.  If not, see <http://www.gnu.org/licenses/>.
 *
 */

package common

import (
	"crypto/md5" //nolint:gosec
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
)

// ScriptStore keeps the scripts imported for a context in a file that is
// prepended to every script executed in that context.
type ScriptStore struct {
	fs     afero.Fs
	path   string
	hashes map[string]struct{}
}

// NewScriptStore stores scripts in name under dir of fs.
func NewScriptStore(fs afero.Fs, dir, name string) *ScriptStore {
	return &ScriptStore{
		fs:     fs,
		path:   filepath.Join(dir, name),
		hashes: make(map[string]struct{}),
	}
}

// Import appends script unless the same text was imported before. It
// reports whether the script was new.
func (s *ScriptStore) Import(script string) (bool, error) {
	sum := md5.Sum([]byte(script)) //nolint:gosec
	key := hex.EncodeToString(sum[:])
	if _, ok := s.hashes[key]; ok {
		return false, nil
	}

	if err := s.fs.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return false, fmt.Errorf("creating script store directory: %w", err)
	}
	f, err := s.fs.OpenFile(s.path, os.O_WRONLY|os.O_APPEND|os.O_CREATE, 0o644)
	if err != nil {
		return false, fmt.Errorf("opening script store: %w", err)
	}
	if _, err := f.WriteString(script); err != nil {
		_ = f.Close()
		return false, fmt.Errorf("writing script store: %w", err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("closing script store: %w", err)
	}
	s.hashes[key] = struct{}{}
	return true, nil
}

// Scripts returns the concatenated imported scripts.
func (s *ScriptStore) Scripts() (string, error) {
	b, err := afero.ReadFile(s.fs, s.path)
	if errors.Is(err, os.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("reading script store: %w", err)
	}
	return string(b), nil
}

// Clear deletes the imported scripts.
func (s *ScriptStore) Clear() error {
	s.hashes = make(map[string]struct{})
	err := s.fs.Remove(s.path)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("removing script store: %w", err)
	}
	return nil
}
