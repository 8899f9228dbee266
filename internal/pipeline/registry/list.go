// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package registry

import (
	"sort"
	"sync"

	"github.com/ManuGH/dvbgraph/internal/log"
	"github.com/ManuGH/dvbgraph/internal/metrics"
	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/google/uuid"
)

type entry struct {
	index      int
	desc       *Descriptor
	group      int
	exactMatch bool
	owns       bool
}

// List is the candidate registry: an insertion-ordered set of descriptors
// with a memoized merit-sorted view.
type List struct {
	mu      sync.Mutex
	entries []entry
	sorted  []*Descriptor
	valid   bool
}

func NewList() *List {
	return &List{}
}

// Insert adds d unless it duplicates a live entry. Duplicates are the same
// pointer; the same non-nil identity under the same name; or, within one
// group, the same device display name. It reports whether d was accepted.
// Identity-wide suppression is Blocked's job.
func (l *List) Insert(d *Descriptor, group int, exactMatch, owns bool) bool {
	if d == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, e := range l.entries {
		if duplicate(e, d, group) {
			logger := log.WithComponent("registry")
			logger.Debug().
				Str(log.FieldCandidate, d.Label()).
				Int("group", group).
				Msg("duplicate candidate suppressed")
			return false
		}
	}

	l.entries = append(l.entries, entry{
		index:      len(l.entries),
		desc:       d,
		group:      group,
		exactMatch: exactMatch,
		owns:       owns,
	})
	l.valid = false
	l.sorted = nil
	return true
}

func duplicate(e entry, d *Descriptor, group int) bool {
	if e.desc == d {
		return true
	}
	if d.ID != uuid.Nil && d.ID == e.desc.ID && d.Name == e.desc.Name {
		return true
	}
	if group != e.group {
		return false
	}
	a, okA := d.Source.(SourceRegistry)
	b, okB := e.desc.Source.(SourceRegistry)
	return okA && okB && a.DisplayName != "" && a.DisplayName == b.DisplayName
}

// Clear drops every entry and the sorted view. Owned descriptors are
// released by dropping the last reference; factory sources with a
// Close hook are closed.
func (l *List) Clear() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if !e.owns {
			continue
		}
		if c, ok := e.desc.Source.(interface{ Close() error }); ok {
			_ = c.Close()
		}
	}
	l.entries = nil
	l.sorted = nil
	l.valid = false
}

// Len counts live entries including unusable ones.
func (l *List) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Candidates returns the sorted view: merit descending, then group
// ascending, exact-match entries first, then insertion order. Entries
// below MeritDoUse are left out.
func (l *List) Candidates() []*Descriptor {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Descriptor(nil), l.sortedLocked()...)
}

func (l *List) sortedLocked() []*Descriptor {
	if l.valid {
		return l.sorted
	}
	tmp := append([]entry(nil), l.entries...)
	sort.SliceStable(tmp, func(i, j int) bool {
		a, b := tmp[i], tmp[j]
		if a.desc.Merit != b.desc.Merit {
			return a.desc.Merit > b.desc.Merit
		}
		if a.group != b.group {
			return a.group < b.group
		}
		if a.exactMatch != b.exactMatch {
			return a.exactMatch
		}
		return a.index < b.index
	})
	out := make([]*Descriptor, 0, len(tmp))
	for _, e := range tmp {
		if e.desc.Merit.Usable() {
			out = append(out, e.desc)
		}
	}
	l.sorted = out
	l.valid = true
	metrics.SetRegistryCandidates(len(out))
	return out
}

// Resolve returns the sorted candidates declaring a type that matches required.
func (l *List) Resolve(required []media.Capability, exact bool) []*Descriptor {
	l.mu.Lock()
	defer l.mu.Unlock()
	var out []*Descriptor
	for _, d := range l.sortedLocked() {
		if d.CheckTypes(required, exact) {
			out = append(out, d)
		}
	}
	return out
}
