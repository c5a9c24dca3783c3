package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"
)

var (
	ErrOperatorCanceled = errors.New("user canceled operation")
	ErrOperatorTimeout  = errors.New("timed out waiting for the operator")
)

// Operator is the human who clears CAPTCHA/OTP steps outside the automation.
type Operator interface {
	WaitForConfirmation(ctx context.Context) error
}

// ConsoleOperator prompts on out and waits for ENTER (continue) or ESC
// (cancel) on in. A zero timeout waits until ctx ends.
type ConsoleOperator struct {
	in      *bufio.Reader
	out     io.Writer
	timeout time.Duration
}

func NewConsoleOperator(in io.Reader, out io.Writer, timeout time.Duration) *ConsoleOperator {
	return &ConsoleOperator{in: bufio.NewReader(in), out: out, timeout: timeout}
}

func (o *ConsoleOperator) WaitForConfirmation(ctx context.Context) error {
	fmt.Fprintln(o.out)
	fmt.Fprintln(o.out, T("login_required_header"))
	fmt.Fprintln(o.out)
	fmt.Fprintln(o.out, T("login_instructions"))
	fmt.Fprintln(o.out)
	fmt.Fprint(o.out, T("login_prompt"))

	if o.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.timeout)
		defer cancel()
	}

	// The reader goroutine stays parked on stdin if ctx ends first; the
	// process is about to exit in that case.
	done := make(chan error, 1)
	go func() { done <- o.readAnswer() }()

	select {
	case err := <-done:
		fmt.Fprintln(o.out)
		if err != nil {
			if errors.Is(err, ErrOperatorCanceled) {
				fmt.Fprintln(o.out, T("user_requested_exit"))
			}
			return err
		}
		fmt.Fprintln(o.out, T("user_confirmed_ready"))
		return nil
	case <-ctx.Done():
		fmt.Fprintln(o.out)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return ErrOperatorTimeout
		}
		return ctx.Err()
	}
}

func (o *ConsoleOperator) readAnswer() error {
	for {
		input, err := o.in.ReadByte()
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		if input == '\n' || input == '\r' {
			return nil
		}

		if input == 27 {
			return ErrOperatorCanceled
		}
	}
}
