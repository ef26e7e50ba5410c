// SPDX-License-Identifier: MIT
package settings

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"dspctl/internal/dsp"
	applog "dspctl/internal/log"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

var fileLog = applog.Named("settings")

// FileStore reads preferences from a YAML document where every namespace is
// a top-level mapping:
//
//	equalizer:
//	  enable: true
//	  filter_type: "0"
//	  bands: "25;40;...;0"
//
// Writes go through viper and are flushed immediately; the document is then
// re-read so later external edits are not shadowed by viper overrides.
type FileStore struct {
	path string

	mu        sync.Mutex
	v         *viper.Viper
	committed map[dsp.Namespace]map[string]any

	watcher  *fsnotify.Watcher
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// OpenFile loads the preference file at path. A missing file is treated as
// an empty document and created on the first Put.
func OpenFile(path string) (*FileStore, error) {
	s := &FileStore{path: path}
	if err := s.reload(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) reload() error {
	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	if err := v.ReadInConfig(); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to read preferences %s: %w", s.path, err)
		}
		fileLog.Infof("preferences %s not found, starting empty", s.path)
	}
	s.mu.Lock()
	s.v = v
	s.mu.Unlock()
	return nil
}

// current returns every namespace's values. Caller holds s.mu.
func (s *FileStore) current() map[dsp.Namespace]map[string]any {
	out := make(map[dsp.Namespace]map[string]any)
	for _, ns := range dsp.AllNamespaces() {
		m := s.v.GetStringMap(ns.String())
		if len(m) > 0 {
			out[ns] = m
		}
	}
	return out
}

func (s *FileStore) Select(ns dsp.Namespace) Section {
	s.mu.Lock()
	defer s.mu.Unlock()
	return valueSection(s.v.GetStringMap(ns.String()))
}

func (s *FileStore) ChangedNamespaces() dsp.NamespaceSet {
	s.mu.Lock()
	defer s.mu.Unlock()
	return diffNamespaces(s.current(), s.committed)
}

func (s *FileStore) MarkChangesAsCommitted() {
	s.mu.Lock()
	s.committed = copyValues(s.current())
	s.mu.Unlock()
}

func (s *FileStore) Capture() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return captureState(s.current(), s.committed)
}

func (s *FileStore) MarkCommitted(st State) {
	s.mu.Lock()
	s.committed = copyValues(st.values)
	s.mu.Unlock()
}

func (s *FileStore) Clear() {
	s.mu.Lock()
	s.committed = nil
	s.mu.Unlock()
}

// Put writes values into ns and flushes the document to disk.
func (s *FileStore) Put(ns dsp.Namespace, values map[string]any) error {
	s.mu.Lock()
	for k, val := range values {
		s.v.Set(ns.String()+"."+k, val)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		s.mu.Unlock()
		return fmt.Errorf("failed to create preference directory: %w", err)
	}
	err := s.v.WriteConfigAs(s.path)
	s.mu.Unlock()
	if err != nil {
		return fmt.Errorf("failed to write preferences %s: %w", s.path, err)
	}
	return s.reload()
}

// Watch re-reads the document whenever it changes on disk and calls
// onChange afterwards. The parent directory is watched because editors
// usually replace files instead of writing them in place.
func (s *FileStore) Watch(onChange func()) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(filepath.Dir(s.path)); err != nil {
		w.Close()
		return fmt.Errorf("failed to watch %s: %w", s.path, err)
	}
	s.watcher = w

	target := filepath.Clean(s.path)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case ev, ok := <-w.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target || !ev.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				if err := s.reload(); err != nil {
					fileLog.Errorf("reload after %s failed: %v", ev.Op, err)
					continue
				}
				fileLog.Debugf("preferences reloaded (%s)", ev.Op)
				onChange()
			case err, ok := <-w.Errors:
				if !ok {
					return
				}
				fileLog.Warnf("watch error: %v", err)
			}
		}
	}()
	return nil
}

// Close stops watching. It is safe to call more than once.
func (s *FileStore) Close() error {
	var err error
	s.stopOnce.Do(func() {
		if s.watcher != nil {
			err = s.watcher.Close()
		}
	})
	s.wg.Wait()
	return err
}

var (
	_ Store  = (*FileStore)(nil)
	_ Writer = (*FileStore)(nil)
)
