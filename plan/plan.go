package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/krasninja/querycat-sub000/cache"
	"github.com/krasninja/querycat-sub000/function"
	"github.com/krasninja/querycat-sub000/logger"
	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/sql"
	"github.com/krasninja/querycat-sub000/value"
)

const (
	defMaxRecursion = 1000
)

// Options are the collaborators a statement is planned with
type Options struct {
	Registry *function.Registry

	// Variables are resolved by name after every column binding failed, and
	// by FROM items that name no common table expression. A table variable is
	// an object value holding a *rows.Table, rows.Input or rows.Iterator.
	Variables map[string]value.Value

	// Storage enables the cache layer when not nil
	Storage *cache.Storage
	Logger  *logger.Logger

	MaxErrors    int
	MaxRecursion int
}

// SemanticError is a plan time error, it is fatal to the statement
type SemanticError struct {
	Stage string
	Msg   string
}

func (self *SemanticError) Error() string {
	return fmt.Sprintf("stage(%s): %s", self.Stage, self.Msg)
}

type Stats struct {
	SourceReads int
	DataErrors  int
}

// Statement is one planned top level query. It owns every context, source
// and iterator created for the query, the memo map of its non pure calls and
// the data error counter.
type Statement struct {
	Id uuid.UUID

	opts     Options
	tree     *sql.Statement
	log      *logger.Logger
	root     *QueryContext
	contexts []*QueryContext
	sources  []*BoundSource
	owned    []rows.Iterator
	memo     map[int]value.Value
	errors   *rows.ErrorCounter
	bound    map[rows.Input]bool
	run      int
	closed   bool
}

func newStatement(tree *sql.Statement, opts Options) *Statement {
	if opts.Registry == nil {
		opts.Registry = function.Builtin()
	}
	if opts.Logger == nil {
		opts.Logger = logger.Nop()
	}
	if opts.MaxRecursion <= 0 {
		opts.MaxRecursion = defMaxRecursion
	}
	id := uuid.New()
	return &Statement{
		Id:     id,
		opts:   opts,
		tree:   tree,
		log:    opts.Logger.With("statement", id.String()),
		memo:   make(map[int]value.Value),
		errors: rows.NewErrorCounter(opts.MaxErrors),
		bound:  make(map[rows.Input]bool),
	}
}

// Build plans the statement. Every source is opened and every subquery and
// common table expression is planned before it returns.
func Build(ctx context.Context, tree *sql.Statement, opts Options) (*Statement, error) {
	stmt := newStatement(tree, opts)
	root, err := stmt.buildQuery(ctx, tree.Query, nil, nil)
	if err != nil {
		stmt.Close()
		return nil, err
	}
	stmt.root = root
	stmt.log.Debugw("statement planned", "contexts", len(stmt.contexts), "sources", len(stmt.sources))
	return stmt, nil
}

// Run returns the result iterator. Running again resets the pipeline, the memo
// map and the error counter, common table expressions are evaluated once per
// run.
func (self *Statement) Run(ctx context.Context) (rows.Iterator, error) {
	if self.closed {
		return nil, fmt.Errorf("statement is closed")
	}
	self.run++
	self.memo = make(map[int]value.Value)
	self.errors.Reset()
	if self.run > 1 {
		if err := self.root.current.Reset(ctx); err != nil {
			return nil, err
		}
	}
	return self.root.current, nil
}

// Columns of the result, empty when the statement writes INTO an output
func (self *Statement) Columns() []rows.Column {
	if self.root.hasOutput {
		return nil
	}
	return self.root.columns
}

// HasOutput reports whether the statement writes into an INTO target
func (self *Statement) HasOutput() bool { return self.root.hasOutput }

func (self *Statement) Stats() Stats {
	st := Stats{
		DataErrors: self.errors.Count(),
	}
	for _, src := range self.sources {
		st.SourceReads += src.iter.Reads()
	}
	return st
}

func (self *Statement) Close() error {
	if self.closed {
		return nil
	}
	self.closed = true

	var first error
	if self.root != nil && self.root.current != nil {
		first = self.root.current.Close()
	}
	for _, it := range self.owned {
		if err := it.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

func (self *Statement) err(stage string, f string, args ...interface{}) error {
	return &SemanticError{
		Stage: stage,
		Msg:   fmt.Sprintf(f, args...),
	}
}

func (self *Statement) registry() *function.Registry {
	return self.opts.Registry
}

func (self *Statement) variable(name string) (value.Value, bool) {
	if self.opts.Variables == nil {
		return value.Null, false
	}
	if v, ok := self.opts.Variables[name]; ok {
		return v, true
	}
	for k, v := range self.opts.Variables {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return value.Null, false
}
