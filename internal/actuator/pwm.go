package actuator

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/greenhouse-controller/internal/logic"
)

// outputLine is the subset of a GPIO line the PWM loop drives.
type outputLine interface {
	SetValue(value int) error
}

// pwmLoop switches each line on at the start of a window and off after its
// on-time. Duty changes take effect at the next window.
type pwmLoop struct {
	lines  []outputLine
	window time.Duration
	log    *zap.Logger

	mu   sync.Mutex
	duty []int
}

func newPWMLoop(lines []outputLine, window time.Duration, log *zap.Logger) *pwmLoop {
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &pwmLoop{
		lines:  lines,
		window: window,
		log:    log,
		duty:   make([]int, len(lines)),
	}
}

func (p *pwmLoop) set(out logic.Outputs) {
	vals := out.Values()
	p.mu.Lock()
	copy(p.duty, vals)
	p.mu.Unlock()
}

func (p *pwmLoop) snapshot() []int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]int(nil), p.duty...)
}

// run repeats cycle until ctx is cancelled, then drives every line low.
func (p *pwmLoop) run(ctx context.Context) {
	for ctx.Err() == nil {
		if err := p.cycle(ctx); err != nil {
			p.log.Warn("pwm cycle", zap.Error(err))
		}
	}
	if err := p.allOff(); err != nil {
		p.log.Warn("pwm shutdown", zap.Error(err))
	}
}

// cycle runs one window.
func (p *pwmLoop) cycle(ctx context.Context) error {
	start := time.Now()
	duty := p.snapshot()

	type edge struct {
		line int
		at   time.Duration
	}
	var offs []edge
	var firstErr error
	for i, d := range duty {
		on := OnTime(d, p.window)
		v := 0
		if on > 0 {
			v = 1
		}
		if err := p.lines[i].SetValue(v); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", logic.OutputFields[i], err)
		}
		if on > 0 && on < p.window {
			offs = append(offs, edge{line: i, at: on})
		}
	}
	sort.Slice(offs, func(a, b int) bool { return offs[a].at < offs[b].at })

	for _, e := range offs {
		if !sleepUntil(ctx, start.Add(e.at)) {
			return firstErr
		}
		if err := p.lines[e.line].SetValue(0); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", logic.OutputFields[e.line], err)
		}
	}
	sleepUntil(ctx, start.Add(p.window))
	return firstErr
}

func (p *pwmLoop) allOff() error {
	var firstErr error
	for i, l := range p.lines {
		if err := l.SetValue(0); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("%s: %w", logic.OutputFields[i], err)
		}
	}
	return firstErr
}

// sleepUntil returns false if ctx was cancelled first.
func sleepUntil(ctx context.Context, t time.Time) bool {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
