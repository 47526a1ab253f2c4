// Package pipeline runs the lookup and send operations as explicit state
// machines over the launch, locate, capture and inject components.
package pipeline

import (
	"fmt"
	"strings"
	"time"

	"viber-agent/src/capture"
	"viber-agent/src/config"
	agenterrors "viber-agent/src/errors"
	"viber-agent/src/logutil"
	"viber-agent/src/metrics"
	"viber-agent/src/timing"
	"viber-agent/src/window"
)

const (
	OpLookup = "lookup"
	OpSend   = "send"
)

type Launcher interface {
	OpenChat(number string) (string, error)
}

type Locator interface {
	Locate(timeout time.Duration) (window.Handle, window.Rect, error)
}

type Capturer interface {
	Capture(h window.Handle, rect window.Rect, spec capture.RegionSpec, wantWindow bool) (capture.Result, error)
}

type Sender interface {
	Send(h window.Handle, text string) error
}

type Closer interface {
	Close(h window.Handle) error
}

type Options struct {
	Launcher Launcher
	Locator  Locator
	Capturer Capturer
	Sender   Sender
	Windows  Closer
	Region   capture.RegionSpec
	Timings  config.Timings
	Clock    timing.Clock
	Metrics  *metrics.Metrics
	// OnTransition, when set, is called synchronously for every state
	// change.
	OnTransition func(Transition)
}

type Pipeline struct {
	opts  Options
	clock timing.Clock
}

func New(opts Options) *Pipeline {
	if opts.Clock == nil {
		opts.Clock = timing.Real()
	}
	return &Pipeline{opts: opts, clock: opts.Clock}
}

// run tracks one operation through its states.
type run struct {
	p       *Pipeline
	op      string
	state   State
	start   time.Time
	entered time.Time
	handle  window.Handle
	done    func()
}

func (p *Pipeline) begin(op string) *run {
	now := p.clock.Now()
	logutil.Step(op+" start", 0, "")
	return &run{p: p, op: op, state: Idle, start: now, entered: now, done: p.opts.Metrics.Track()}
}

func (r *run) enter(next State, extra string) {
	now := r.p.clock.Now()
	elapsed := now.Sub(r.entered)
	from := r.state

	logutil.Step(fmt.Sprintf("%s %s -> %s", r.op, from, next), elapsed, extra)
	r.p.opts.Metrics.ObserveStep(r.op, from.String(), elapsed)
	if r.p.opts.OnTransition != nil {
		r.p.opts.OnTransition(Transition{Operation: r.op, From: from, To: next, Elapsed: elapsed, Extra: extra})
	}
	r.state, r.entered = next, now
}

func (r *run) fail(err error) error {
	r.enter(Failed, agenterrors.Message(err))
	r.finish(err)
	return err
}

func (r *run) succeed() {
	r.enter(Done, "")
	r.finish(nil)
}

func (r *run) finish(err error) {
	outcome := "ok"
	if err != nil {
		outcome = string(agenterrors.CodeOf(err))
		if outcome == "" {
			outcome = "error"
		}
	}
	r.p.opts.Metrics.Outcome(r.op, outcome)
	logutil.Step(r.op+" TOTAL", timing.Since(r.p.clock, r.start), outcome)
	r.done()
}

// launchAndLocate drives Launching and both AwaitingWindow states.
func (r *run) launchAndLocate(number string) (window.Handle, window.Rect, error) {
	t := r.p.opts.Timings

	r.enter(Launching, "")
	uri, err := r.p.opts.Launcher.OpenChat(number)
	if err != nil {
		return 0, window.Rect{}, err
	}
	r.p.clock.Sleep(t.InitialWait)

	r.enter(AwaitingWindow, uri)
	h, rect, err := r.p.opts.Locator.Locate(t.WindowTimeout)
	if err == nil {
		r.handle = h
		return h, rect, nil
	}
	r.p.clock.Sleep(t.RetryExtraWait)

	r.enter(AwaitingWindowRetry, agenterrors.Message(err))
	h, rect, err = r.p.opts.Locator.Locate(t.RetryTimeout)
	if err != nil {
		return 0, window.Rect{}, agenterrors.NewWindowNotFoundError(
			"window did not appear", timing.Since(r.p.clock, r.start), err)
	}
	r.handle = h
	return h, rect, nil
}

func (r *run) close(extra string, settle time.Duration) {
	r.enter(Closing, extra)
	if r.p.opts.Windows == nil {
		return
	}
	if err := r.p.opts.Windows.Close(r.handle); err != nil {
		logutil.Step(r.op+" close window", timing.Since(r.p.clock, r.entered), "ignored: "+err.Error())
	}
	if settle > 0 {
		r.p.clock.Sleep(settle)
	}
}

// Lookup opens the conversation for number, captures the window and the
// contact panel, and closes the window again. wantWindow=false asks for
// the panel only.
func (p *Pipeline) Lookup(number string, wantWindow bool) (capture.Result, error) {
	r := p.begin(OpLookup)

	h, rect, err := r.launchAndLocate(number)
	if err != nil {
		return capture.Result{}, r.fail(err)
	}

	r.enter(PanelWait, rect.String())
	p.clock.Sleep(p.opts.Timings.PanelLoadWait)

	r.enter(Capturing, "")
	res, err := p.opts.Capturer.Capture(h, rect, p.opts.Region, wantWindow)
	extra := ""
	if err == nil {
		extra = fmt.Sprintf("backend=%s region=%dB window=%dB", res.Backend, len(res.RegionImage), len(res.WindowImage))
		p.opts.Metrics.Capture(res.Backend)
	}

	r.close(extra, 0)
	if err != nil {
		return capture.Result{}, r.fail(err)
	}
	r.succeed()
	return res, nil
}

// Send opens the conversation for number and sends text into it.
func (p *Pipeline) Send(number, text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return agenterrors.NewInvalidRequestError("Message is empty")
	}
	r := p.begin(OpSend)

	h, _, err := r.launchAndLocate(number)
	if err != nil {
		return r.fail(err)
	}

	r.enter(InputWait, "")
	p.clock.Sleep(p.opts.Timings.MessageInputWait)

	r.enter(Injecting, "")
	err = p.opts.Sender.Send(h, text)

	r.close("", p.opts.Timings.CloseSettle)
	if err != nil {
		return r.fail(err)
	}
	r.succeed()
	return nil
}
