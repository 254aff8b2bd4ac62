package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewInterruptHandler(t *testing.T) {
	tests := []struct {
		writer io.Writer
		name   string
	}{
		{
			name:   "with custom writer",
			writer: &bytes.Buffer{},
		},
		{
			name:   "with nil writer",
			writer: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewInterruptHandler(tt.writer)
			assert.NotNil(t, handler)
			assert.NotNil(t, handler.writer)
			assert.False(t, handler.WasInterrupted())
		})
	}
}

func TestInterrupt(t *testing.T) {
	var output bytes.Buffer
	handler := NewInterruptHandler(&output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = handler.HandleInterrupts(ctx, "Import", "Rows already written are kept; re-run to continue.")

	select {
	case <-ctx.Done():
		t.Fatal("context should not be canceled initially")
	default:
	}

	handler.interrupt()
	handler.interrupt()

	<-ctx.Done()
	assert.True(t, handler.WasInterrupted())
	assert.Equal(t, 1, strings.Count(output.String(), "Import interrupted!"))
	assert.Contains(t, output.String(), "re-run to continue")
}

func TestInterrupt_NoHint(t *testing.T) {
	var output bytes.Buffer
	handler := NewInterruptHandler(&output)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	ctx = handler.HandleInterrupts(ctx, "Report", "")
	handler.interrupt()

	<-ctx.Done()
	assert.Contains(t, output.String(), "Report interrupted!")
	assert.NotContains(t, output.String(), InfoIcon)
}

func TestHandleInterrupts_ParentCanceled(t *testing.T) {
	handler := NewInterruptHandler(&bytes.Buffer{})
	ctx, cancel := context.WithCancel(context.Background())
	ctx = handler.HandleInterrupts(ctx, "Import", "")

	cancel()
	<-ctx.Done()
	assert.False(t, handler.WasInterrupted())
}
