// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package channels reads the channel file and remembers the last channel.
package channels

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/renameio/v2"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/ManuGH/dvbgraph/internal/log"
)

// ErrChannelNotFound is returned for an unknown preference number.
var ErrChannelNotFound = errors.New("channel not found")

// file is the on-disk layout.
type file struct {
	LastChannel int       `yaml:"last_channel,omitempty"`
	Channels    []Channel `yaml:"channels"`
}

// Store holds the channels of one file, keyed by preference number.
type Store struct {
	path   string
	logger zerolog.Logger

	mu     sync.RWMutex
	byPref map[int]Channel
	last   int

	// DebounceDelay coalesces bursts of file events into one reload.
	DebounceDelay time.Duration
}

// Open loads path. A missing file yields an empty store that SetLastChannel
// will create.
func Open(path string) (*Store, error) {
	s := &Store{
		path:          path,
		logger:        log.WithComponent("channels"),
		byPref:        make(map[int]Channel),
		DebounceDelay: 500 * time.Millisecond,
	}
	if err := s.Load(); err != nil {
		return nil, err
	}
	return s, nil
}

// Load re-reads the file. On error the previous channels stay in place.
func (s *Store) Load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		s.logger.Info().Str(log.FieldPath, s.path).Msg("channel file missing, starting empty")
		return nil
	}
	if err != nil {
		return fmt.Errorf("read channel file: %w", err)
	}

	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse channel file %s: %w", s.path, err)
	}

	byPref := make(map[int]Channel, len(f.Channels))
	var errs []error
	for i, ch := range f.Channels {
		if ch.Preference <= 0 {
			errs = append(errs, fmt.Errorf("channels[%d] %q: preference must be positive", i, ch.Name))
			continue
		}
		if _, dup := byPref[ch.Preference]; dup {
			errs = append(errs, fmt.Errorf("channels[%d] %q: duplicate preference %d", i, ch.Name, ch.Preference))
			continue
		}
		byPref[ch.Preference] = ch
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid channel file %s: %w", s.path, err)
	}

	s.mu.Lock()
	s.byPref = byPref
	s.last = f.LastChannel
	s.mu.Unlock()

	s.logger.Info().Str(log.FieldPath, s.path).Int("channels", len(byPref)).Msg("channels loaded")
	return nil
}

// FindByPreference returns the channel stored under pref.
func (s *Store) FindByPreference(pref int) (Channel, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ch, ok := s.byPref[pref]
	if !ok {
		return Channel{}, fmt.Errorf("preference %d: %w", pref, ErrChannelNotFound)
	}
	return ch, nil
}

// All returns the channels ordered by preference.
func (s *Store) All() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Channel, 0, len(s.byPref))
	for _, ch := range s.byPref {
		out = append(out, ch)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Preference < out[j].Preference })
	return out
}

// LastChannel is the preference persisted by SetLastChannel, or 0.
func (s *Store) LastChannel() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

// SetLastChannel records pref and rewrites the file atomically.
func (s *Store) SetLastChannel(pref int) error {
	s.mu.Lock()
	s.last = pref
	f := file{LastChannel: pref}
	for _, ch := range s.byPref {
		f.Channels = append(f.Channels, ch)
	}
	s.mu.Unlock()
	sort.Slice(f.Channels, func(i, j int) bool { return f.Channels[i].Preference < f.Channels[j].Preference })
	return s.write(f)
}

func (s *Store) write(f file) error {
	pending, err := renameio.NewPendingFile(s.path)
	if err != nil {
		return fmt.Errorf("create pending channel file: %w", err)
	}
	defer func() {
		if err := pending.Cleanup(); err != nil {
			s.logger.Debug().Err(err).Msg("cleanup pending channel file")
		}
	}()

	enc := yaml.NewEncoder(pending)
	enc.SetIndent(2)
	if err := enc.Encode(f); err != nil {
		return fmt.Errorf("encode channel file: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("encode channel file: %w", err)
	}
	if err := pending.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace channel file: %w", err)
	}
	return nil
}

// Watch reloads the store when the file changes until ctx ends. onReload,
// if set, runs after each successful reload. The directory is watched
// because atomic replacement swaps the file's inode.
func (s *Store) Watch(ctx context.Context, onReload func()) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch channel directory: %w", err)
	}
	s.logger.Info().Str(log.FieldPath, s.path).Msg("watching channel file")

	target := filepath.Clean(s.path)
	reload := make(chan struct{}, 1)
	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("channel watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(s.DebounceDelay, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := s.Load(); err != nil {
				s.logger.Error().Err(err).Str(log.FieldOp, "reload").Msg("channel file reload failed")
				continue
			}
			if onReload != nil {
				onReload()
			}

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Error().Err(err).Msg("channel watcher error")
		}
	}
}
