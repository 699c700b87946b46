package plan

import (
	"context"
	"fmt"
	"strings"

	"github.com/krasninja/querycat-sub000/exec"
	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/sql"
	"github.com/krasninja/querycat-sub000/value"
)

// slot names one column of one bound source
type slot struct {
	source *BoundSource
	column int
}

// layout tells the compiler where the columns of the bound sources live in the
// rows a frame will hold. Every operator evaluating compiled units publishes
// its input row into the frame the units were compiled against.
type layout struct {
	frame   *exec.Frame
	ords    map[slot]int
	grouped bool

	// projection aliases usable by name, GROUP BY and HAVING
	aliases map[string]sql.Expr
}

func newLayout() *layout {
	return &layout{
		frame: exec.NewFrame(),
		ords:  make(map[slot]int),
	}
}

// layoutOf lays the sources out one after the other, the shape produced by
// joins and multiply
func layoutOf(sources []*BoundSource) *layout {
	l := newLayout()
	offset := 0
	for _, src := range sources {
		for i := range src.Columns {
			l.ords[slot{source: src, column: i}] = offset + i
		}
		offset += len(src.Columns)
	}
	return l
}

// share returns a layout with the same column positions reading another
// frame
func (self *layout) share(frame *exec.Frame) *layout {
	return &layout{
		frame:   frame,
		ords:    self.ords,
		grouped: self.grouped,
		aliases: self.aliases,
	}
}

// ----------------------------------------------------------------------------
// BoundSource is a rows input attached to a query block together with its key
// columns and the conditions pushed into it. Conditions are only appended.
// Right before each scan the conditions are evaluated and handed to the input
// as query info and key values.
// ----------------------------------------------------------------------------

type pushCondition struct {
	column int
	op     value.Operation
	exprs  []sql.Expr
	values []exec.Unit
}

type BoundSource struct {
	Name       string
	Identity   string
	Input      rows.Input
	Columns    []rows.Column
	KeyColumns []rows.KeyColumn
	Limit      int64
	Cached     bool

	index      int
	conditions []pushCondition
	iter       *exec.InputIterator
	lastInfo   *rows.QueryInfo
}

func (self *BoundSource) Conditions() []rows.Condition {
	if self.lastInfo == nil {
		return nil
	}
	return self.lastInfo.Conditions
}

func (self *BoundSource) keyColumn(name string) (rows.KeyColumn, bool) {
	for _, kc := range self.KeyColumns {
		if strings.EqualFold(kc.Column, name) {
			return kc, true
		}
	}
	return rows.KeyColumn{}, false
}

func (self *BoundSource) hasCondition(name string) bool {
	for _, c := range self.conditions {
		if strings.EqualFold(self.Columns[c.column].Name, name) {
			return true
		}
	}
	return false
}

func (self *BoundSource) fetchColumns() ([]rows.Column, []int) {
	if self.iter.AutoFetch() {
		return self.Columns, nil
	}
	out := []rows.Column{}
	ords := []int{}
	for _, o := range self.iter.Prefetch() {
		out = append(out, self.Columns[o])
		ords = append(ords, o)
	}
	return out, ords
}

func (self *BoundSource) push(column int, op value.Operation, exprs []sql.Expr, units []exec.Unit) {
	self.conditions = append(self.conditions, pushCondition{
		column: column,
		op:     op,
		exprs:  exprs,
		values: units,
	})
}

// start runs before every scan of the source
func (self *BoundSource) start(ctx context.Context) error {
	conds := make([]rows.Condition, 0, len(self.conditions))
	for _, c := range self.conditions {
		vals, err := exec.EvalAll(ctx, c.values, nil)
		if err != nil {
			return err
		}
		conds = append(conds, rows.Condition{
			Column:    self.Columns[c.column].Name,
			Operation: c.op,
			Values:    vals,
		})
	}

	cols, ords := self.fetchColumns()
	info := rows.NewQueryInfo(cols)
	info.Ordinals = ords
	info.Conditions = conds
	info.Limit = self.Limit
	self.lastInfo = &info

	if qa, ok := self.Input.(rows.QueryInfoAware); ok {
		qa.SetQueryInfo(info)
	}
	if ki, ok := self.Input.(rows.KeysInput); ok {
		for _, c := range conds {
			if kc, ok := self.keyColumn(c.Column); ok && kc.Supports(c.Operation) {
				ki.SetKeyValues(kc.Column, c.Operation, c.Values)
			}
		}
	}
	return self.Input.Reset(ctx)
}

// ----------------------------------------------------------------------------
// common table expression scope, own entries first then the enclosing scopes
// ----------------------------------------------------------------------------

type cteScope struct {
	parent  *cteScope
	entries map[string]*cteEntry
}

func newScope(parent *cteScope) *cteScope {
	return &cteScope{
		parent:  parent,
		entries: make(map[string]*cteEntry),
	}
}

func (self *cteScope) add(e *cteEntry) {
	self.entries[strings.ToLower(e.name)] = e
}

func (self *cteScope) lookup(name string) *cteEntry {
	for s := self; s != nil; s = s.parent {
		if e, ok := s.entries[strings.ToLower(name)]; ok {
			return e
		}
	}
	return nil
}

// ----------------------------------------------------------------------------
// QueryContext is the planning record of one query block or one set
// operation. It is mutated by every pipeline state appending an operator to
// its current iterator.
// ----------------------------------------------------------------------------

// projected is one output column of a block, expressions are compiled by the
// projection state
type projected struct {
	column rows.Column
	expr   sql.Expr
	alias  string
	slot   *slot
	hidden bool
}

type sortItem struct {
	ordinal    int
	desc       bool
	nullsFirst bool
}

type QueryContext struct {
	Id int

	stmt     *Statement
	parent   *QueryContext
	children []*QueryContext
	scope    *cteScope

	sel     *sql.Select
	combine *sql.Combine

	sources []*BoundSource
	current rows.Iterator
	columns []rows.Column

	// layouts of the stages, cur is the one being compiled against and is
	// what child contexts bind outer references to
	from  *layout
	group *layout
	out   *layout
	cur   *layout

	redirect map[slot]int
	output   []projected
	aggs     map[int]*exec.AggregateTarget
	aggList  []*exec.AggregateTarget
	order    []sortItem
	distinct []int

	into   rows.Output
	offset int64
	fetch  int64

	correlated       bool
	hasOutput        bool
	hasFinalIterator bool
	state            int
	ops              []string
}

func (self *Statement) newContext(parent *QueryContext, scope *cteScope) *QueryContext {
	q := &QueryContext{
		Id:       len(self.contexts),
		stmt:     self,
		parent:   parent,
		scope:    scope,
		redirect: make(map[slot]int),
		aggs:     make(map[int]*exec.AggregateTarget),
		fetch:    -1,
	}
	if parent != nil {
		parent.children = append(parent.children, q)
	}
	self.contexts = append(self.contexts, q)
	return q
}

// Columns are the visible output columns of the context
func (self *QueryContext) Columns() []rows.Column { return self.columns }

// Sources lists the bound sources of the block
func (self *QueryContext) Sources() []*BoundSource { return self.sources }

func (self *QueryContext) Iterator() rows.Iterator { return self.current }

func (self *QueryContext) trace(f string, args ...interface{}) {
	self.ops = append(self.ops, fmt.Sprintf(f, args...))
}

// visible is the number of output columns that are not hidden
func (self *QueryContext) visible() int {
	n := 0
	for _, p := range self.output {
		if !p.hidden {
			n++
		}
	}
	return n
}

// markCorrelated flags every context from self up to, not including, owner
// as depending on the rows of an outer block
func (self *QueryContext) markCorrelated(owner *QueryContext) {
	for q := self; q != nil && q != owner; q = q.parent {
		q.correlated = true
	}
}
