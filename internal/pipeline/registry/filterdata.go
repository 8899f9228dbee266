// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package registry

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/ManuGH/dvbgraph/internal/pipeline/media"
	"github.com/google/uuid"
)

// Registration blobs are little-endian:
//
//	u32 version (2) | u32 merit | u32 pins | u32 reserved
//	per pin:  "0pi3" | u32 flags | u32 instances | u32 types | u32 mediums | u32 category
//	per type: "0ty3" | u32 reserved | u32 major offset | u32 minor offset
//
// Offsets point at 16-byte GUIDs elsewhere in the blob.

const (
	filterDataVersion = 2
	pinFlagOutput     = 0x8
	guidSize          = 16
)

// ErrUnsupportedVersion is returned for blobs other than version 2.
var ErrUnsupportedVersion = errors.New("unsupported filter data version")

// ParseError locates a failed read.
type ParseError struct {
	Field  string
	Offset int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("filter data: %s at offset %d: %v", e.Field, e.Offset, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

var errShort = errors.New("truncated")

// FilterData is what the registry needs from a registration blob.
type FilterData struct {
	Merit      uint32
	InputTypes []media.Capability
}

type cursor struct {
	buf []byte
	off int
}

func (c *cursor) take(field string, n int) ([]byte, error) {
	if n < 0 || c.off+n > len(c.buf) {
		return nil, &ParseError{Field: field, Offset: c.off, Err: errShort}
	}
	b := c.buf[c.off : c.off+n]
	c.off += n
	return b, nil
}

func (c *cursor) u32(field string) (uint32, error) {
	b, err := c.take(field, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// tag checks a four-byte marker; the first byte is an ordinal and is not checked.
func (c *cursor) tag(field string, want [3]byte) error {
	start := c.off
	b, err := c.take(field, 4)
	if err != nil {
		return err
	}
	if b[1] != want[0] || b[2] != want[1] || b[3] != want[2] {
		return &ParseError{Field: field, Offset: start, Err: fmt.Errorf("bad tag % x", b)}
	}
	return nil
}

// guidAt reads a GUID stored in its mixed-endian wire form at an absolute offset.
func (c *cursor) guidAt(field string, off uint32) (uuid.UUID, error) {
	if uint64(off)+guidSize > uint64(len(c.buf)) {
		return uuid.Nil, &ParseError{Field: field, Offset: int(off), Err: errShort}
	}
	return guidFromWire(c.buf[off : off+guidSize]), nil
}

func guidFromWire(b []byte) uuid.UUID {
	var u uuid.UUID
	binary.BigEndian.PutUint32(u[0:4], binary.LittleEndian.Uint32(b[0:4]))
	binary.BigEndian.PutUint16(u[4:6], binary.LittleEndian.Uint16(b[4:6]))
	binary.BigEndian.PutUint16(u[6:8], binary.LittleEndian.Uint16(b[6:8]))
	copy(u[8:], b[8:16])
	return u
}

// DecodeFilterData decodes a version-2 registration blob. Output pins are
// skipped; type entries whose GUID offsets fall outside the blob are
// skipped; any truncated or mistagged header fails the whole decode.
func DecodeFilterData(blob []byte) (FilterData, error) {
	c := &cursor{buf: blob}
	var fd FilterData

	version, err := c.u32("version")
	if err != nil {
		return fd, err
	}
	if version != filterDataVersion {
		return fd, &ParseError{Field: "version", Offset: 0, Err: fmt.Errorf("%w: %d", ErrUnsupportedVersion, version)}
	}
	if fd.Merit, err = c.u32("merit"); err != nil {
		return fd, err
	}
	pins, err := c.u32("pin count")
	if err != nil {
		return fd, err
	}
	if _, err := c.take("reserved", 4); err != nil {
		return fd, err
	}

	for i := uint32(0); i < pins; i++ {
		if err := c.tag("pin tag", [3]byte{'p', 'i', '3'}); err != nil {
			return fd, err
		}
		flags, err := c.u32("pin flags")
		if err != nil {
			return fd, err
		}
		if _, err := c.take("pin instances", 4); err != nil {
			return fd, err
		}
		types, err := c.u32("type count")
		if err != nil {
			return fd, err
		}
		if _, err := c.take("mediums and category", 8); err != nil {
			return fd, err
		}
		output := flags&pinFlagOutput != 0

		for j := uint32(0); j < types; j++ {
			if err := c.tag("type tag", [3]byte{'t', 'y', '3'}); err != nil {
				return fd, err
			}
			if _, err := c.take("type reserved", 4); err != nil {
				return fd, err
			}
			majorOff, err := c.u32("major offset")
			if err != nil {
				return fd, err
			}
			minorOff, err := c.u32("minor offset")
			if err != nil {
				return fd, err
			}
			if output {
				continue
			}
			major, err := c.guidAt("major type", majorOff)
			if err != nil {
				continue
			}
			minor, err := c.guidAt("minor type", minorOff)
			if err != nil {
				continue
			}
			fd.InputTypes = append(fd.InputTypes, media.Capability{Major: major, Minor: minor})
		}
	}
	return fd, nil
}
