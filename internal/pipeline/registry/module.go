// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package registry

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/metrics"
	"github.com/ManuGH/dvbgraph/internal/pipeline/graph"
	"github.com/google/uuid"
)

// DefaultUnloadInterval is the janitor cadence between unload checks.
const DefaultUnloadInterval = 60 * time.Second

// unloadChecks is how many consecutive idle checks evict a module.
const unloadChecks = 2

// Module is a loaded external component library.
type Module interface {
	Create(ctx context.Context, id uuid.UUID) (graph.Node, error)
	// CanUnload reports whether no instance created by the module is alive.
	CanUnload() bool
	Close() error
}

// ModuleLoader opens external component libraries by path.
type ModuleLoader interface {
	Open(ctx context.Context, path string) (Module, error)
}

// ErrCacheClosed is returned by a closed ModuleCache.
var ErrCacheClosed = errors.New("module cache closed")

type moduleEntry struct {
	path  string
	mod   Module
	idle  int
	inUse int
}

// ModuleCache owns loaded external modules. A module is unloaded only after
// two consecutive sweeps find it unloadable; any use resets the count.
type ModuleCache struct {
	loader   ModuleLoader
	interval time.Duration

	mu      sync.Mutex
	entries map[string]*moduleEntry
	closed  bool
}

// NewModuleCache returns an empty cache. A non-positive interval selects
// DefaultUnloadInterval.
func NewModuleCache(loader ModuleLoader, interval time.Duration) *ModuleCache {
	if interval <= 0 {
		interval = DefaultUnloadInterval
	}
	return &ModuleCache{
		loader:   loader,
		interval: interval,
		entries:  make(map[string]*moduleEntry),
	}
}

func moduleKey(path string) string {
	return strings.ToLower(path)
}

// Load returns the module at path, opening it on first use.
func (c *ModuleCache) Load(ctx context.Context, path string) (Module, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(ctx, path)
}

func (c *ModuleCache) loadLocked(ctx context.Context, path string) (Module, error) {
	if c.closed {
		return nil, ErrCacheClosed
	}
	key := moduleKey(path)
	if e, ok := c.entries[key]; ok {
		e.idle = 0
		return e.mod, nil
	}
	if c.loader == nil {
		return nil, fmt.Errorf("%w: module loader", ErrNoEnvironment)
	}
	mod, err := c.loader.Open(ctx, path)
	if err != nil {
		return nil, fmt.Errorf("open module %q: %w", path, err)
	}
	if mod == nil {
		return nil, graph.PointerViolation("module " + path)
	}
	c.entries[key] = &moduleEntry{path: path, mod: mod}
	metrics.SetModulesLoaded(len(c.entries))
	logger := log.WithComponent("registry")
	logger.Debug().Str(log.FieldPath, path).Msg("external module loaded")
	return mod, nil
}

// Create instantiates component id from the module at path.
func (c *ModuleCache) Create(ctx context.Context, path string, id uuid.UUID) (graph.Node, error) {
	c.mu.Lock()
	mod, err := c.loadLocked(ctx, path)
	if err != nil {
		c.mu.Unlock()
		return nil, err
	}
	e := c.entries[moduleKey(path)]
	e.inUse++
	c.mu.Unlock()

	n, err := mod.Create(ctx, id)

	c.mu.Lock()
	e.inUse--
	e.idle = 0
	c.mu.Unlock()
	return n, err
}

// Len counts loaded modules.
func (c *ModuleCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

// Sweep runs one unload check and returns how many modules were unloaded.
func (c *ModuleCache) Sweep() int {
	c.mu.Lock()
	var evicted []*moduleEntry
	for key, e := range c.entries {
		if e.inUse > 0 || !e.mod.CanUnload() {
			e.idle = 0
			continue
		}
		e.idle++
		if e.idle >= unloadChecks {
			delete(c.entries, key)
			evicted = append(evicted, e)
		}
	}
	metrics.SetModulesLoaded(len(c.entries))
	c.mu.Unlock()

	for _, e := range evicted {
		c.closeModule(e)
	}
	return len(evicted)
}

func (c *ModuleCache) closeModule(e *moduleEntry) {
	logger := log.WithComponent("registry")
	if err := e.mod.Close(); err != nil {
		logger.Warn().Err(err).Str(log.FieldPath, e.path).Msg("external module close failed")
		return
	}
	logger.Debug().Str(log.FieldPath, e.path).Msg("external module unloaded")
}

// Run sweeps on the configured interval until ctx is done.
func (c *ModuleCache) Run(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.Sweep()
		case <-ctx.Done():
			return
		}
	}
}

// Close unloads every module regardless of state.
func (c *ModuleCache) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	entries := c.entries
	c.entries = make(map[string]*moduleEntry)
	metrics.SetModulesLoaded(0)
	c.mu.Unlock()

	var errs []error
	for _, e := range entries {
		if err := e.mod.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close module %q: %w", e.path, err))
		}
	}
	return errors.Join(errs...)
}
