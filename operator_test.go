package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"
)

func TestConsoleOperatorAnswers(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected error
	}{
		{"enter continues", "\n", nil},
		{"carriage return continues", "\r", nil},
		{"other keys are ignored", "yes\n", nil},
		{"escape cancels", "\x1b", ErrOperatorCanceled},
		{"escape after typing cancels", "abc\x1b\n", ErrOperatorCanceled},
		{"closed input", "", io.EOF},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var out bytes.Buffer
			op := NewConsoleOperator(strings.NewReader(tc.input), &out, 0)

			err := op.WaitForConfirmation(context.Background())
			if tc.expected == nil {
				if err != nil {
					t.Errorf("Expected no error, got %v", err)
				}
			} else if !errors.Is(err, tc.expected) {
				t.Errorf("Expected %v, got %v", tc.expected, err)
			}

			if !strings.Contains(out.String(), T("login_prompt")) {
				t.Errorf("prompt not printed: %q", out.String())
			}
		})
	}
}

func TestConsoleOperatorTimeout(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	op := NewConsoleOperator(r, io.Discard, 20*time.Millisecond)
	err := op.WaitForConfirmation(context.Background())
	if !errors.Is(err, ErrOperatorTimeout) {
		t.Errorf("Expected ErrOperatorTimeout, got %v", err)
	}
}

func TestConsoleOperatorContextCanceled(t *testing.T) {
	r, w := io.Pipe()
	defer w.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	op := NewConsoleOperator(r, io.Discard, 0)
	err := op.WaitForConfirmation(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Expected context.Canceled, got %v", err)
	}
}
