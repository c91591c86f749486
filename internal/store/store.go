// Package store implements the entity repositories on top of the db.Executor
// contract. Every write is a single statement against a single row; checks
// that span several entities belong to the integrity package and run before
// these methods are called.
package store

import (
	"time"

	"github.com/MacJediWizard/orgtree/internal/db"
)

// Options configures the repositories.
type Options struct {
	DefaultPageSize int
	MaxPageSize     int
	// Clock returns the time stamped into audit fields. Defaults to time.Now.
	Clock func() time.Time
}

// DefaultOptions returns Options with the standard page sizes.
func DefaultOptions() Options {
	return Options{
		DefaultPageSize: 20,
		MaxPageSize:     100,
	}
}

// Stores bundles one repository per entity over a shared Executor. It is built
// once at start-up and passed to everything that needs data access.
type Stores struct {
	Companies   *CompanyStore
	Branches    *BranchStore
	Divisions   *DivisionStore
	Departments *DepartmentStore
	APIKeys     *APIKeyStore

	exec db.Executor
}

// New builds the repositories.
func New(exec db.Executor, opts Options) *Stores {
	if opts.DefaultPageSize <= 0 {
		opts.DefaultPageSize = DefaultOptions().DefaultPageSize
	}
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = DefaultOptions().MaxPageSize
	}
	if opts.DefaultPageSize > opts.MaxPageSize {
		opts.DefaultPageSize = opts.MaxPageSize
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	b := &base{exec: exec, opts: opts}
	return &Stores{
		Companies:   &CompanyStore{base: b},
		Branches:    &BranchStore{base: b},
		Divisions:   &DivisionStore{base: b},
		Departments: &DepartmentStore{base: b},
		APIKeys:     &APIKeyStore{base: b},
		exec:        exec,
	}
}

// Executor returns the shared Executor.
func (s *Stores) Executor() db.Executor {
	return s.exec
}

// Close releases the underlying connection pool.
func (s *Stores) Close() {
	s.exec.Close()
}

type base struct {
	exec db.Executor
	opts Options
}

// now returns the audit timestamp at the precision both backends preserve.
func (b *base) now() time.Time {
	return b.opts.Clock().UTC().Truncate(time.Microsecond)
}
