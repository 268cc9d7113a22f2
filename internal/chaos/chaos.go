// Package chaos runs experiments that stress the loan engine and check that
// its invariants survive.
//
// An experiment prepares its fixtures, verifies a baseline, then runs its
// method while probes are read at a fixed interval. Once the method is done
// and the experiment's duration has passed, a final reading is taken, the
// rollback steps run and the checks are evaluated against the final
// readings.
package chaos

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// ErrSteadyStateInvalid aborts an experiment whose baseline does not hold.
var ErrSteadyStateInvalid = errors.New("steady state invalid - aborting experiment")

// Comparison is how a probe reading is checked against a bound.
type Comparison string

const (
	Above   Comparison = ">"
	Below   Comparison = "<"
	AtLeast Comparison = ">="
	AtMost  Comparison = "<="
	Equal   Comparison = "=="
)

// Bound is the range a probe must stay in while the system is healthy.
type Bound struct {
	Op    Comparison
	Value float64
}

// Holds reports whether v is within the bound. Unknown comparisons never hold.
func (b Bound) Holds(v float64) bool {
	switch b.Op {
	case Above:
		return v > b.Value
	case Below:
		return v < b.Value
	case AtLeast:
		return v >= b.Value
	case AtMost:
		return v <= b.Value
	case Equal:
		return v == b.Value
	}
	return false
}

func (b Bound) String() string {
	return fmt.Sprintf("%s %.2f", b.Op, b.Value)
}

// Probe reads one property of the system under test.
type Probe struct {
	Name  string
	Read  func(context.Context) (float64, error)
	Bound Bound
}

// Step is a setup, fault, load or recovery action.
type Step struct {
	Kind   string
	Target string
	Run    func(context.Context) error
}

// Check is evaluated against the final reading of a probe.
type Check struct {
	Probe   string
	Want    func(float64) bool
	Message string
}

type Experiment struct {
	Name       string
	Hypothesis string
	Setup      []Step
	Probes     []Probe
	Method     []Step
	Rollback   []Step
	Checks     []Check
	// Duration is the minimum observation window.
	Duration time.Duration
}

// Report is the outcome of one experiment run.
type Report struct {
	Experiment     string               `json:"experiment"`
	Started        time.Time            `json:"started"`
	Finished       time.Time            `json:"finished"`
	Elapsed        time.Duration        `json:"elapsed"`
	BaselineHeld   bool                 `json:"baseline_held"`
	HypothesisHeld bool                 `json:"hypothesis_held"`
	Breaches       []Breach             `json:"breaches"`
	FailedChecks   []string             `json:"failed_checks"`
	Readings       map[string][]Reading `json:"readings"`
	Faults         []Fault              `json:"faults"`
	// Recovery is the time from the first breach to the first reading
	// back within bounds.
	Recovery *time.Duration `json:"recovery,omitempty"`
}

// Breach is a probe reading outside its bound.
type Breach struct {
	Probe string    `json:"probe"`
	Bound Bound     `json:"bound"`
	Got   float64   `json:"got"`
	At    time.Time `json:"at"`
}

type Reading struct {
	At    time.Time `json:"at"`
	Value float64   `json:"value"`
}

// Fault is an unexpected error from a step or a probe.
type Fault struct {
	At     time.Time `json:"at"`
	Source string    `json:"source"`
	Err    string    `json:"error"`
}

// Engine runs experiments and keeps their reports.
type Engine struct {
	tracer         trace.Tracer
	logger         *slog.Logger
	sampleInterval time.Duration
	pause          time.Duration

	mu          sync.Mutex
	experiments []Experiment
	reports     []Report
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithSampleInterval sets how often probes are read while an experiment
// runs. The default is one second.
func WithSampleInterval(d time.Duration) EngineOption {
	return func(e *Engine) {
		if d > 0 {
			e.sampleInterval = d
		}
	}
}

// WithPause sets the wait between experiments of a game day.
func WithPause(d time.Duration) EngineOption {
	return func(e *Engine) { e.pause = d }
}

func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func NewEngine(opts ...EngineOption) *Engine {
	e := &Engine{
		tracer:         otel.Tracer("infobooks/chaos"),
		logger:         slog.Default(),
		sampleInterval: time.Second,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Register(exp Experiment) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.experiments = append(e.experiments, exp)
}

func (e *Engine) Experiments() []Experiment {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Experiment(nil), e.experiments...)
}

// Reports returns the reports of every completed run, oldest first.
func (e *Engine) Reports() []Report {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Report(nil), e.reports...)
}

// Run executes exp. Steps that fail during the method or rollback are
// recorded as faults and do not stop the run; a failing setup step or a
// broken baseline does.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Report, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.experiment",
		trace.WithAttributes(attribute.String("chaos.experiment", exp.Name)),
	)
	defer span.End()

	r := &run{span: span, report: &Report{
		Experiment: exp.Name,
		Started:    time.Now(),
		Readings:   make(map[string][]Reading),
	}}

	for _, step := range exp.Setup {
		if err := step.Run(ctx); err != nil {
			span.RecordError(err)
			return r.report, fmt.Errorf("setup %s failed: %w", step.Kind, err)
		}
	}

	span.AddEvent("baseline")
	if breaches := baseline(ctx, exp.Probes); len(breaches) > 0 {
		r.report.Breaches = breaches
		return r.report, ErrSteadyStateInvalid
	}
	r.report.BaselineHeld = true

	span.AddEvent("method")
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.steps(ctx, exp.Method)
	}()

	if err := e.observe(ctx, r, exp, done); err != nil {
		return r.report, err
	}

	span.AddEvent("rollback")
	r.steps(ctx, exp.Rollback)

	rep := r.report
	rep.FailedChecks = verify(exp.Checks, rep.Readings)
	rep.HypothesisHeld = len(rep.FailedChecks) == 0
	rep.Finished = time.Now()
	rep.Elapsed = rep.Finished.Sub(rep.Started)

	e.mu.Lock()
	e.reports = append(e.reports, *rep)
	e.mu.Unlock()

	span.SetAttributes(
		attribute.Bool("chaos.hypothesis_held", rep.HypothesisHeld),
		attribute.Int("chaos.breaches", len(rep.Breaches)),
	)
	e.logger.InfoContext(ctx, "experiment finished",
		"experiment", exp.Name,
		"hypothesis_held", rep.HypothesisHeld,
		"breaches", len(rep.Breaches),
		"faults", len(rep.Faults),
		"elapsed", rep.Elapsed,
	)
	return rep, nil
}

// observe reads the probes until the method has finished and the
// observation window has passed, then takes one final reading.
func (e *Engine) observe(ctx context.Context, r *run, exp Experiment, done <-chan struct{}) error {
	ticker := time.NewTicker(e.sampleInterval)
	defer ticker.Stop()
	window := time.After(exp.Duration)

	for done != nil || window != nil {
		select {
		case <-ctx.Done():
			if done != nil {
				<-done
			}
			return ctx.Err()
		case <-done:
			done = nil
		case <-window:
			window = nil
		case <-ticker.C:
			r.sample(ctx, exp.Probes)
		}
	}
	r.sample(ctx, exp.Probes)
	return nil
}

// run is the mutable state of one experiment. Faults may be added from the
// method goroutine while the engine samples.
type run struct {
	span   trace.Span
	report *Report

	mu         sync.Mutex
	breachedAt time.Time
	recovered  bool
}

func (r *run) fault(source string, err error) {
	r.span.RecordError(err)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.report.Faults = append(r.report.Faults, Fault{At: time.Now(), Source: source, Err: err.Error()})
}

func (r *run) steps(ctx context.Context, steps []Step) {
	for _, step := range steps {
		if err := step.Run(ctx); err != nil {
			r.fault(step.Target, err)
		}
	}
}

// sample is only called from the engine goroutine.
func (r *run) sample(ctx context.Context, probes []Probe) {
	for _, p := range probes {
		v, err := p.Read(ctx)
		now := time.Now()
		if err != nil {
			r.fault(p.Name, err)
			continue
		}
		r.report.Readings[p.Name] = append(r.report.Readings[p.Name], Reading{At: now, Value: v})

		switch {
		case !p.Bound.Holds(v):
			if r.breachedAt.IsZero() {
				r.breachedAt = now
			}
			r.report.Breaches = append(r.report.Breaches, Breach{Probe: p.Name, Bound: p.Bound, Got: v, At: now})
		case !r.breachedAt.IsZero() && !r.recovered:
			d := now.Sub(r.breachedAt)
			r.report.Recovery = &d
			r.recovered = true
		}
	}
}

// baseline returns every probe that is out of bounds before the method
// runs. A probe that cannot be read counts as a breach with Got = -1.
func baseline(ctx context.Context, probes []Probe) []Breach {
	var breaches []Breach
	for _, p := range probes {
		v, err := p.Read(ctx)
		if err != nil {
			v = -1
		} else if p.Bound.Holds(v) {
			continue
		}
		breaches = append(breaches, Breach{Probe: p.Name, Bound: p.Bound, Got: v, At: time.Now()})
	}
	return breaches
}

func verify(checks []Check, readings map[string][]Reading) []string {
	var failed []string
	for _, c := range checks {
		rs := readings[c.Probe]
		if len(rs) == 0 {
			failed = append(failed, c.Message+" (no readings)")
			continue
		}
		if last := rs[len(rs)-1].Value; !c.Want(last) {
			failed = append(failed, fmt.Sprintf("%s (final %s = %.2f)", c.Message, c.Probe, last))
		}
	}
	return failed
}

// GameDay is a named series of experiments run back to back.
type GameDay struct {
	Name      string
	Date      time.Time
	Scenarios []Experiment
}

// RunGameDay runs every scenario in order and writes a report to w. It
// returns an error when any experiment could not run or its hypothesis did
// not hold.
func (e *Engine) RunGameDay(ctx context.Context, gd GameDay, w io.Writer) error {
	ctx, span := e.tracer.Start(ctx, "chaos.game_day",
		trace.WithAttributes(attribute.String("chaos.game_day", gd.Name)),
	)
	defer span.End()

	fmt.Fprintf(w, "Game day %q (%s)\n", gd.Name, gd.Date.Format(time.RFC3339))

	var failures []error
	for i, exp := range gd.Scenarios {
		if i > 0 && e.pause > 0 {
			select {
			case <-time.After(e.pause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		fmt.Fprintf(w, "\n[%d/%d] %s\n", i+1, len(gd.Scenarios), exp.Name)
		fmt.Fprintf(w, "  hypothesis: %s\n", exp.Hypothesis)

		rep, err := e.Run(ctx, exp)
		if err != nil {
			fmt.Fprintf(w, "  aborted: %v\n", err)
			failures = append(failures, fmt.Errorf("%s: %w", exp.Name, err))
			continue
		}
		writeReport(w, rep)
		if !rep.HypothesisHeld {
			failures = append(failures, fmt.Errorf("%s: hypothesis violated", exp.Name))
		}
	}
	return errors.Join(failures...)
}

func writeReport(w io.Writer, rep *Report) {
	if rep.HypothesisHeld {
		fmt.Fprintln(w, "  result: held")
	} else {
		fmt.Fprintln(w, "  result: VIOLATED")
		for _, msg := range rep.FailedChecks {
			fmt.Fprintf(w, "    - %s\n", msg)
		}
	}
	if len(rep.Breaches) > 0 {
		fmt.Fprintf(w, "  transient breaches: %d\n", len(rep.Breaches))
		for _, b := range rep.Breaches {
			fmt.Fprintf(w, "    - %s: want %s, got %.2f\n", b.Probe, b.Bound, b.Got)
		}
	}
	if len(rep.Faults) > 0 {
		fmt.Fprintf(w, "  faults: %d\n", len(rep.Faults))
	}
	if rep.Recovery != nil {
		fmt.Fprintf(w, "  recovery: %s\n", *rep.Recovery)
	}
	fmt.Fprintf(w, "  elapsed: %s\n", rep.Elapsed)
}
