// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

// Package validate collects field-level problems of a dvbgraph configuration
// so that every problem is reported in one pass.
package validate

import (
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Problem is one rejected configuration field.
type Problem struct {
	Field   string
	Value   any
	Message string
}

func (p Problem) Error() string {
	return fmt.Sprintf("%s: %s (got %v)", p.Field, p.Message, p.Value)
}

// Problems is the error a Checker reports.
type Problems []Problem

func (ps Problems) Error() string {
	msgs := make([]string, len(ps))
	for i, p := range ps {
		msgs[i] = p.Error()
	}
	return strings.Join(msgs, "; ")
}

// Checker accumulates problems. The zero value is ready to use.
type Checker struct {
	problems Problems
}

func New() *Checker { return &Checker{} }

// Add records a problem for field.
func (c *Checker) Add(field string, value any, format string, args ...any) {
	c.problems = append(c.problems, Problem{Field: field, Value: value, Message: fmt.Sprintf(format, args...)})
}

// Err returns the problems found so far, or nil.
func (c *Checker) Err() error {
	if len(c.problems) == 0 {
		return nil
	}
	return append(Problems(nil), c.problems...)
}

// LogLevel accepts the zerolog level names from trace to error.
func (c *Checker) LogLevel(field, level string) {
	parsed, err := zerolog.ParseLevel(level)
	if err != nil || level == "" || parsed < zerolog.TraceLevel || parsed > zerolog.ErrorLevel {
		c.Add(field, level, "must be one of trace, debug, info, warn, error")
	}
}

// OneOf requires value to be one of allowed.
func OneOf[T ~string](c *Checker, field string, value T, allowed ...T) {
	for _, a := range allowed {
		if value == a {
			return
		}
	}
	c.Add(field, value, "must be one of %v", allowed)
}

// NotBlank rejects empty and whitespace-only strings.
func (c *Checker) NotBlank(field, value string) {
	if strings.TrimSpace(value) == "" {
		c.Add(field, value, "must not be empty")
	}
}

// Between requires lo <= value <= hi.
func (c *Checker) Between(field string, value, lo, hi int) {
	if value < lo || value > hi {
		c.Add(field, value, "must be between %d and %d", lo, hi)
	}
}

func (c *Checker) NonNegative(field string, value int) {
	if value < 0 {
		c.Add(field, value, "must not be negative")
	}
}

// Duration requires lo <= value <= hi.
func (c *Checker) Duration(field string, value, lo, hi time.Duration) {
	if value < lo || value > hi {
		c.Add(field, value, "must be between %s and %s", lo, hi)
	}
}

// Fraction requires 0 <= value <= 1.
func (c *Checker) Fraction(field string, value float64) {
	if value < 0 || value > 1 {
		c.Add(field, value, "must be between 0 and 1")
	}
}

// ListenAddr checks a host:port with a numeric port. Empty disables the listener.
func (c *Checker) ListenAddr(field, addr string) {
	if addr == "" {
		return
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		c.Add(field, addr, "invalid listen address: %v", err)
		return
	}
	n, err := strconv.Atoi(port)
	if err != nil || n < 1 || n > 65535 {
		c.Add(field, addr, "port must be a number from 1 to 65535")
	}
}

// FilePath checks a file that may not exist yet but whose directory must.
// Empty paths are allowed.
func (c *Checker) FilePath(field, path string) {
	if path == "" {
		return
	}
	if strings.HasSuffix(path, string(filepath.Separator)) {
		c.Add(field, path, "names a directory, expected a file")
		return
	}
	dir := filepath.Dir(filepath.Clean(path))
	info, err := os.Stat(dir)
	switch {
	case os.IsNotExist(err):
		c.Add(field, path, "directory %s does not exist", dir)
		return
	case err != nil:
		c.Add(field, path, "cannot access directory: %v", err)
		return
	case !info.IsDir():
		c.Add(field, path, "%s is not a directory", dir)
		return
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		c.Add(field, path, "names a directory, expected a file")
	}
}
