package rows

import (
	"context"
	"fmt"

	"github.com/krasninja/querycat-sub000/value"
)

// ----------------------------------------------------------------------------
// MemoryInput is a rows input over a slice of rows. It optionally exposes key
// columns, filtering by the key values it was given, and records how it was
// driven so callers can observe pushdown and caching.
// ----------------------------------------------------------------------------

type MemoryStats struct {
	Opens  int
	Resets int
	Reads  int // rows handed out by ReadNext
}

type MemoryInput struct {
	columns   []Column
	data      []Row
	keys      []KeyColumn
	keyValues []Condition
	info      *QueryInfo
	pos       int
	stats     MemoryStats
}

func NewMemoryInput(columns []Column, data []Row) *MemoryInput {
	return &MemoryInput{
		columns: columns,
		data:    data,
		pos:     -1,
	}
}

// WithKeys declares columns the input filters by itself
func (self *MemoryInput) WithKeys(keys ...KeyColumn) *MemoryInput {
	self.keys = append(self.keys, keys...)
	return self
}

func (self *MemoryInput) Columns() []Column       { return self.columns }
func (self *MemoryInput) KeyColumns() []KeyColumn { return self.keys }
func (self *MemoryInput) Stats() MemoryStats      { return self.stats }
func (self *MemoryInput) KeyValues() []Condition  { return self.keyValues }

// QueryInfo returns the last query info pushed into the input, or nil
func (self *MemoryInput) QueryInfo() *QueryInfo { return self.info }

func (self *MemoryInput) SetQueryInfo(info QueryInfo) {
	self.info = &info
}

func (self *MemoryInput) SetKeyValues(column string, op value.Operation, values []value.Value) {
	for idx, kv := range self.keyValues {
		if kv.Column == column && kv.Operation == op {
			self.keyValues[idx].Values = values
			return
		}
	}
	self.keyValues = append(self.keyValues, Condition{
		Column:    column,
		Operation: op,
		Values:    values,
	})
}

func (self *MemoryInput) Open(ctx context.Context) error {
	self.stats.Opens++
	self.pos = -1
	return ctx.Err()
}

func (self *MemoryInput) Reset(ctx context.Context) error {
	self.stats.Resets++
	self.pos = -1
	return ctx.Err()
}

func (self *MemoryInput) Close() error {
	self.pos = len(self.data)
	return nil
}

func (self *MemoryInput) ReadNext(ctx context.Context) (bool, error) {
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		self.pos++
		if self.pos >= len(self.data) {
			self.pos = len(self.data)
			return false, nil
		}
		ok, err := self.matchKeys(self.data[self.pos])
		if err != nil {
			return false, err
		}
		if ok {
			self.stats.Reads++
			return true, nil
		}
	}
}

func (self *MemoryInput) ReadValue(ordinal int) (value.Value, error) {
	if self.pos < 0 || self.pos >= len(self.data) {
		return value.Null, fmt.Errorf("memory input: no current row")
	}
	if ordinal < 0 || ordinal >= len(self.columns) {
		return value.Null, fmt.Errorf("memory input: column ordinal %d out of range", ordinal)
	}
	row := self.data[self.pos]
	if ordinal >= len(row) {
		return value.Null, nil
	}
	v := row[ordinal]
	col := self.columns[ordinal]
	if v.IsNull() || col.Type == value.TypeDynamic || v.Type() == col.Type {
		return v, nil
	}
	cv, err := value.Cast(v, col.Type)
	if err != nil {
		return value.Null, NewDataError(col.Name, err)
	}
	return cv, nil
}

func (self *MemoryInput) keyColumn(name string) (KeyColumn, bool) {
	for _, k := range self.keys {
		if k.Column == name {
			return k, true
		}
	}
	return KeyColumn{}, false
}

func (self *MemoryInput) matchKeys(row Row) (bool, error) {
	for _, kv := range self.keyValues {
		if _, ok := self.keyColumn(kv.Column); !ok {
			continue
		}
		idx, _ := FindColumn(self.columns, kv.Column, "")
		if idx < 0 || idx >= len(row) {
			continue
		}
		ok, err := MatchCondition(row[idx], kv.Operation, kv.Values)
		if err != nil || !ok {
			return false, err
		}
	}
	return true, nil
}

// MatchCondition evaluates "cell op values", equality with several values is
// true if any of them matches, every other operation requires all of them.
func MatchCondition(cell value.Value, op value.Operation, values []value.Value) (bool, error) {
	if op == value.OpEq {
		for _, v := range values {
			if value.Equal(cell, v) {
				return true, nil
			}
		}
		return false, nil
	}
	for _, v := range values {
		r, err := value.Binary(op, cell, v)
		if err != nil {
			return false, err
		}
		if !r.Truth() {
			return false, nil
		}
	}
	return true, nil
}

// NewSingleValueInput turns a scalar into a one row, one column input
func NewSingleValueInput(name string, v value.Value) *MemoryInput {
	return NewMemoryInput(
		[]Column{NewColumn(name, v.Type())},
		[]Row{{v}},
	)
}

// ----------------------------------------------------------------------------
// MemoryIterator is an iterator over materialized rows
// ----------------------------------------------------------------------------

type MemoryIterator struct {
	columns []Column
	data    []Row
	pos     int
}

func NewMemoryIterator(columns []Column, data []Row) *MemoryIterator {
	return &MemoryIterator{
		columns: columns,
		data:    data,
		pos:     -1,
	}
}

func (self *MemoryIterator) Columns() []Column { return self.columns }
func (self *MemoryIterator) Len() int          { return len(self.data) }

func (self *MemoryIterator) MoveNext(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if self.pos+1 >= len(self.data) {
		self.pos = len(self.data)
		return false, nil
	}
	self.pos++
	return true, nil
}

func (self *MemoryIterator) Current() Row {
	if self.pos < 0 || self.pos >= len(self.data) {
		return nil
	}
	return self.data[self.pos]
}

func (self *MemoryIterator) Reset(ctx context.Context) error {
	self.pos = -1
	return ctx.Err()
}

func (self *MemoryIterator) Close() error {
	return nil
}

// ----------------------------------------------------------------------------
// IteratorInput adapts an iterator into a rows input
// ----------------------------------------------------------------------------

type IteratorInput struct {
	it      Iterator
	started bool
}

func NewIteratorInput(it Iterator) *IteratorInput {
	return &IteratorInput{
		it: it,
	}
}

func (self *IteratorInput) Columns() []Column { return self.it.Columns() }

func (self *IteratorInput) Open(ctx context.Context) error {
	return ctx.Err()
}

func (self *IteratorInput) ReadNext(ctx context.Context) (bool, error) {
	self.started = true
	return self.it.MoveNext(ctx)
}

func (self *IteratorInput) ReadValue(ordinal int) (value.Value, error) {
	row := self.it.Current()
	if ordinal < 0 || ordinal >= len(row) {
		return value.Null, fmt.Errorf("iterator input: column ordinal %d out of range", ordinal)
	}
	return row[ordinal], nil
}

func (self *IteratorInput) Reset(ctx context.Context) error {
	if !self.started {
		return ctx.Err()
	}
	self.started = false
	return self.it.Reset(ctx)
}

func (self *IteratorInput) Close() error {
	return self.it.Close()
}

// ----------------------------------------------------------------------------
// MemoryOutput collects written rows
// ----------------------------------------------------------------------------

type MemoryOutput struct {
	columns []Column
	data    []Row
	closed  bool
}

func NewMemoryOutput() *MemoryOutput {
	return &MemoryOutput{}
}

func (self *MemoryOutput) Open(ctx context.Context, columns []Column) error {
	self.columns = columns
	self.data = nil
	self.closed = false
	return ctx.Err()
}

func (self *MemoryOutput) Write(ctx context.Context, row Row) error {
	if self.closed {
		return fmt.Errorf("memory output: write after close")
	}
	self.data = append(self.data, row.Copy())
	return nil
}

func (self *MemoryOutput) Close() error {
	self.closed = true
	return nil
}

func (self *MemoryOutput) Columns() []Column { return self.columns }
func (self *MemoryOutput) Rows() []Row       { return self.data }
func (self *MemoryOutput) Closed() bool      { return self.closed }

// ----------------------------------------------------------------------------
// Table is an in memory table, every reference opens its own input over the
// shared rows
// ----------------------------------------------------------------------------

type Table struct {
	Columns []Column
	Data    []Row
	Keys    []KeyColumn
}

func NewTable(columns []Column, data []Row, keys ...KeyColumn) *Table {
	return &Table{
		Columns: columns,
		Data:    data,
		Keys:    keys,
	}
}

func (self *Table) NewInput() *MemoryInput {
	return NewMemoryInput(self.Columns, self.Data).WithKeys(self.Keys...)
}
