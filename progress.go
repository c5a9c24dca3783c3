package main

import (
	"fmt"
	"io"
	"sync"

	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
)

// Progress follows the checkout stages after sign-in.
type Progress interface {
	Stage(name, message string)
	Done()
	Abort()
}

type noProgress struct{}

func (noProgress) Stage(string, string) {}
func (noProgress) Done()                {}
func (noProgress) Abort()               {}

// consoleProgress prints one line per stage, used when the bar is off.
type consoleProgress struct{ out io.Writer }

func (c consoleProgress) Stage(_, message string) { fmt.Fprintln(c.out, message) }
func (consoleProgress) Done()                     {}
func (consoleProgress) Abort()                    {}

type stageBar struct {
	out   io.Writer
	total int

	p   *mpb.Progress
	bar *mpb.Bar

	mu      sync.Mutex
	current string
}

// newStageProgress returns a bar that is drawn from the first Stage call,
// so nothing renders over the sign-in prompt.
func newStageProgress(out io.Writer, total int) *stageBar {
	return &stageBar{out: out, total: total}
}

func (s *stageBar) start() {
	s.p = mpb.New(mpb.WithOutput(s.out), mpb.WithWidth(40))
	s.bar = s.p.AddBar(int64(s.total),
		mpb.PrependDecorators(
			decor.Name("checkout", decor.WC{W: len("checkout") + 1, C: decor.DindentRight}),
			decor.CountersNoUnit("%d/%d", decor.WC{W: 6}),
		),
		mpb.AppendDecorators(
			decor.Any(func(decor.Statistics) string {
				s.mu.Lock()
				defer s.mu.Unlock()
				return s.current
			}),
		),
	)
}

// Stage marks the previous stage complete and names the one now running.
func (s *stageBar) Stage(name, _ string) {
	advance := s.bar != nil
	if !advance {
		s.start()
	}
	s.mu.Lock()
	s.current = name
	s.mu.Unlock()
	if advance {
		s.bar.Increment()
	}
}

func (s *stageBar) Done() {
	if s.bar == nil {
		return
	}
	s.mu.Lock()
	s.current = "done"
	s.mu.Unlock()
	s.bar.Increment()
	s.bar.SetTotal(-1, true)
	s.p.Wait()
}

func (s *stageBar) Abort() {
	if s.bar == nil {
		return
	}
	s.bar.Abort(false)
	s.p.Wait()
}
