package engine

import (
	"context"
	"sync"
	"time"

	"github.com/krasninja/querycat-sub000/cache"
	"github.com/krasninja/querycat-sub000/config"
	"github.com/krasninja/querycat-sub000/exec"
	"github.com/krasninja/querycat-sub000/function"
	"github.com/krasninja/querycat-sub000/logger"
	"github.com/krasninja/querycat-sub000/plan"
	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/source"
	"github.com/krasninja/querycat-sub000/sql"
	"github.com/krasninja/querycat-sub000/value"
	"github.com/pkg/errors"
)

// Engine is what an application embeds: a function registry with the builtin
// library and the file connectors, a set of named variables queries can read
// as tables, and the cache shared by every statement it plans.
//
// Variables may be changed while statements run, a statement sees the
// variables as they were when it was prepared.
type Engine struct {
	cfg      *config.Config
	log      *logger.Logger
	registry *function.Registry
	storage  *cache.Storage

	mu   sync.RWMutex
	vars map[string]value.Value
}

type Result struct {
	Columns []rows.Column
	Rows    []rows.Row
	Stats   plan.Stats
}

func New(cfg *config.Config, log *logger.Logger) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "engine")
	}
	if log == nil {
		log = logger.Nop()
	}

	r := function.Builtin()
	source.Register(r, log)

	self := &Engine{
		cfg:      cfg,
		log:      log.Named("engine"),
		registry: r,
		vars:     make(map[string]value.Value),
	}
	if cfg.Cache.Enabled {
		self.storage = cache.NewStorage(cfg.Cache.TTL, cfg.Cache.MaxRows)
	}
	return self, nil
}

func (self *Engine) Registry() *function.Registry { return self.registry }
func (self *Engine) Config() *config.Config       { return self.cfg }

// Storage is the cache, nil when caching is disabled
func (self *Engine) Storage() *cache.Storage { return self.storage }

// SetVariable binds the name for the statements prepared from now on. Rows
// cached for a previous value are dropped.
func (self *Engine) SetVariable(name string, v value.Value) {
	self.mu.Lock()
	self.vars[name] = v
	self.mu.Unlock()

	if self.storage != nil {
		self.storage.Invalidate(plan.VariableIdentity(name))
	}
	self.log.Debugw("variable set", "name", name, "type", v.Type())
}

func (self *Engine) SetTable(name string, t *rows.Table) {
	self.SetVariable(name, value.NewObject(t))
}

func (self *Engine) RemoveVariable(name string) {
	self.mu.Lock()
	delete(self.vars, name)
	self.mu.Unlock()

	if self.storage != nil {
		self.storage.Invalidate(plan.VariableIdentity(name))
	}
}

func (self *Engine) variables() map[string]value.Value {
	self.mu.RLock()
	defer self.mu.RUnlock()
	out := make(map[string]value.Value, len(self.vars))
	for k, v := range self.vars {
		out[k] = v
	}
	return out
}

func (self *Engine) options() plan.Options {
	return plan.Options{
		Registry:     self.registry,
		Variables:    self.variables(),
		Storage:      self.storage,
		Logger:       self.log,
		MaxErrors:    self.cfg.Engine.MaxErrors,
		MaxRecursion: self.cfg.Engine.MaxRecursion,
	}
}

// Prepare parses and plans the text, the caller closes the statement
func (self *Engine) Prepare(ctx context.Context, text string) (*plan.Statement, error) {
	tree, err := sql.Parse(text)
	if err != nil {
		return nil, err
	}
	return plan.Build(ctx, tree, self.options())
}

// Query runs the text and collects its rows. A statement writing INTO an
// output yields no rows.
func (self *Engine) Query(ctx context.Context, text string) (*Result, error) {
	start := time.Now()
	stmt, err := self.Prepare(ctx, text)
	if err != nil {
		return nil, err
	}
	defer stmt.Close()

	it, err := stmt.Run(ctx)
	if err != nil {
		return nil, err
	}
	data, err := rows.ReadAll(ctx, it)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Columns: stmt.Columns(),
		Rows:    data,
		Stats:   stmt.Stats(),
	}
	self.log.Infow(
		"query done",
		"statement", stmt.Id.String(),
		"rows", len(data),
		"reads", res.Stats.SourceReads,
		"data_errors", res.Stats.DataErrors,
		"elapsed", time.Since(start),
	)
	return res, nil
}

// Exec runs the text and writes its rows into out. A statement with its own
// INTO target leaves out untouched.
func (self *Engine) Exec(ctx context.Context, text string, out rows.Output) (plan.Stats, error) {
	stmt, err := self.Prepare(ctx, text)
	if err != nil {
		return plan.Stats{}, err
	}
	defer stmt.Close()

	it, err := stmt.Run(ctx)
	if err != nil {
		return plan.Stats{}, err
	}
	if stmt.HasOutput() {
		_, err = rows.ReadAll(ctx, it)
		return stmt.Stats(), err
	}

	_, err = exec.NewOutput(it, out).MoveNext(ctx)
	return stmt.Stats(), err
}
