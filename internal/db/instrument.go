package db

import (
	"context"
	"strings"
	"time"

	"github.com/MacJediWizard/orgtree/internal/apperr"
)

// StatementObserver receives one observation per executed statement.
type StatementObserver interface {
	ObserveStatement(backend, operation, outcome string, d time.Duration)
}

// Instrumented wraps an Executor and reports statement latency and outcome.
type Instrumented struct {
	Executor
	observer StatementObserver
}

// NewInstrumented decorates exec with observer.
func NewInstrumented(exec Executor, observer StatementObserver) *Instrumented {
	return &Instrumented{Executor: exec, observer: observer}
}

// Query runs the statement and records its outcome.
func (i *Instrumented) Query(ctx context.Context, stmt string, params Params) (*Result, error) {
	start := time.Now()
	res, err := i.Executor.Query(ctx, stmt, params)
	i.observe("query", start, err)
	return res, err
}

// Exec runs the statement and records its outcome.
func (i *Instrumented) Exec(ctx context.Context, stmt string, params Params) (*Result, error) {
	start := time.Now()
	res, err := i.Executor.Exec(ctx, stmt, params)
	i.observe("exec", start, err)
	return res, err
}

func (i *Instrumented) observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = strings.ToLower(string(apperr.CodeOf(err)))
	}
	i.observer.ObserveStatement(i.Dialect().Name(), op, outcome, time.Since(start))
}
