// internal/chaos/chaos.go
package chaos

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Experiment defines a fault injection test against a running deployment.
type Experiment struct {
	Name       string
	Hypothesis string
	// Probe checks the property under test. It must hold before injection and
	// is expected to keep holding while the faults are active.
	Probe    func(context.Context) error
	Method   []Action
	Rollback []Action
}

// Action represents a fault injection or recovery step.
type Action struct {
	Type    string // latency, failure, partition, clear
	Target  string
	Execute func(context.Context) error
}

// Result captures one experiment run.
type Result struct {
	ExperimentName   string        `json:"experiment_name"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	Duration         time.Duration `json:"duration"`
	SteadyStateValid bool          `json:"steady_state_valid"`
	HypothesisHeld   bool          `json:"hypothesis_held"`
	Recovered        bool          `json:"recovered"`
	ErrorEvents      []ErrorEvent  `json:"error_events"`
}

type ErrorEvent struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
	Component string    `json:"component"`
}

// ErrSteadyState aborts an experiment whose probe fails before injection.
var ErrSteadyState = errors.New("steady state invalid - aborting experiment")

// Engine runs experiments and keeps their results.
type Engine struct {
	tracer  trace.Tracer
	logger  *slog.Logger
	mu      sync.Mutex
	results []Result
}

func NewEngine(logger *slog.Logger) *Engine {
	return &Engine{
		tracer: otel.Tracer("librarysync/chaos"),
		logger: logger,
	}
}

// Run validates the steady state, injects the faults, probes the hypothesis,
// rolls back and probes once more for recovery.
func (e *Engine) Run(ctx context.Context, exp Experiment) (*Result, error) {
	ctx, span := e.tracer.Start(ctx, "chaos.run_experiment",
		trace.WithAttributes(attribute.String("experiment.name", exp.Name)),
	)
	defer span.End()

	result := &Result{
		ExperimentName: exp.Name,
		StartTime:      time.Now(),
		ErrorEvents:    make([]ErrorEvent, 0),
	}
	defer func() {
		result.EndTime = time.Now()
		result.Duration = result.EndTime.Sub(result.StartTime)
		e.mu.Lock()
		e.results = append(e.results, *result)
		e.mu.Unlock()
	}()

	span.AddEvent("validating_steady_state")
	if err := exp.Probe(ctx); err != nil {
		result.record("steady-state", err)
		return result, ErrSteadyState
	}
	result.SteadyStateValid = true

	span.AddEvent("injecting_chaos")
	for _, action := range exp.Method {
		if err := action.Execute(ctx); err != nil {
			result.record(action.Target, err)
			span.RecordError(err)
		}
	}

	span.AddEvent("observing_system")
	if err := exp.Probe(ctx); err != nil {
		result.record("hypothesis", err)
	} else {
		result.HypothesisHeld = true
	}

	span.AddEvent("rolling_back")
	for _, action := range exp.Rollback {
		if err := action.Execute(ctx); err != nil {
			result.record(action.Target, err)
			span.RecordError(err)
		}
	}
	if err := exp.Probe(ctx); err != nil {
		result.record("recovery", err)
	} else {
		result.Recovered = true
	}

	span.SetAttributes(
		attribute.Bool("hypothesis_held", result.HypothesisHeld),
		attribute.Bool("recovered", result.Recovered),
	)
	e.logger.InfoContext(ctx, "experiment finished",
		"experiment", exp.Name,
		"hypothesis_held", result.HypothesisHeld,
		"recovered", result.Recovered,
		"errors", len(result.ErrorEvents),
	)
	return result, nil
}

// Results returns a copy of every recorded result.
func (e *Engine) Results() []Result {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]Result(nil), e.results...)
}

func (r *Result) record(component string, err error) {
	r.ErrorEvents = append(r.ErrorEvents, ErrorEvent{
		Timestamp: time.Now(),
		Error:     err.Error(),
		Component: component,
	})
}
