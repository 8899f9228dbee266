// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package graph

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClass(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{ErrTimeout, "timeout"},
		{Wrap("assemble", "connect_tuner", ErrCannotConnect), "cannot_connect"},
		{fmt.Errorf("%w: %w", ErrUnexpectedReconnectFailure, ErrCannotConnect), "unexpected_reconnect_failure"},
		{context.DeadlineExceeded, "timeout"},
		{errors.New("opaque"), "unexpected"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Class(tt.err), "%v", tt.err)
	}
}

func TestOpError(t *testing.T) {
	err := Wrap("switch", "disconnect", ErrInvalidState)
	require.ErrorIs(t, err, ErrInvalidState)
	assert.Equal(t, "switch [disconnect]: invalid state", err.Error())

	var op *OpError
	require.ErrorAs(t, err, &op)
	assert.Equal(t, "disconnect", op.Stage)

	assert.NoError(t, Wrap("noop", "", nil))
}

func TestPointerViolation(t *testing.T) {
	require.ErrorIs(t, PointerViolation("old output"), ErrPointer)
}
