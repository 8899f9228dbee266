// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package fsm is a small strict state machine: unknown transitions are errors.
package fsm

import (
	"errors"
	"fmt"
	"sync"
)

// ErrInvalidTransition is returned when no edge exists for (state, event).
var ErrInvalidTransition = errors.New("invalid transition")

// Transition describes a single edge in the FSM. Guard may reject it; it
// runs under the machine lock and must not call back into the machine.
type Transition[S ~string, E ~string] struct {
	From  S
	Event E
	To    S
	Guard func(from S, event E) error
}

// Machine applies transitions atomically with respect to each other.
type Machine[S ~string, E ~string] struct {
	mu    sync.Mutex
	state S
	index map[string]Transition[S, E]
}

func New[S ~string, E ~string](initial S, transitions []Transition[S, E]) (*Machine[S, E], error) {
	idx := make(map[string]Transition[S, E], len(transitions))
	for _, t := range transitions {
		k := key(t.From, t.Event)
		if _, exists := idx[k]; exists {
			return nil, fmt.Errorf("duplicate transition: %s -> %s", t.From, t.Event)
		}
		idx[k] = t
	}
	return &Machine[S, E]{state: initial, index: idx}, nil
}

// MustNew is New for static transition tables.
func MustNew[S ~string, E ~string](initial S, transitions []Transition[S, E]) *Machine[S, E] {
	m, err := New(initial, transitions)
	if err != nil {
		panic(err)
	}
	return m
}

func (m *Machine[S, E]) State() S {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Fire applies event under a single lock hold, so two callers racing on the
// same event cannot both succeed. A guard error is returned as is and leaves
// the state unchanged.
func (m *Machine[S, E]) Fire(event E) (S, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	from := m.state
	t, ok := m.index[key(from, event)]
	if !ok {
		return from, fmt.Errorf("%w: state=%s event=%s", ErrInvalidTransition, from, event)
	}
	if t.Guard != nil {
		if err := t.Guard(from, event); err != nil {
			return from, err
		}
	}
	m.state = t.To
	return t.To, nil
}

func key[S ~string, E ~string](from S, event E) string {
	return string(from) + "|" + string(event)
}
