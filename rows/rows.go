package rows

import (
	"context"

	"github.com/krasninja/querycat-sub000/value"
)

// Row is positionally aligned to the columns of its producer. A row handed out
// by an iterator is only valid until the next advance of that iterator, Copy
// it to keep it around.
type Row []value.Value

func (self Row) Copy() Row {
	out := make(Row, len(self))
	copy(out, self)
	return out
}

func NewRow(values ...interface{}) Row {
	out := make(Row, 0, len(values))
	for _, v := range values {
		out = append(out, value.From(v))
	}
	return out
}

// Input is the pull based contract of a tabular data source
type Input interface {
	Columns() []Column
	Open(ctx context.Context) error
	ReadNext(ctx context.Context) (bool, error)

	// ReadValue returns the value of the column at ordinal for the current
	// row. A value that cannot be converted to the declared type is reported
	// as a *DataError, anything else is treated as an I/O failure.
	ReadValue(ordinal int) (value.Value, error)
	Reset(ctx context.Context) error
	Close() error
}

// Output is the sink side of a source
type Output interface {
	Open(ctx context.Context, columns []Column) error
	Write(ctx context.Context, row Row) error
	Close() error
}

// Iterator is the contract of every relational operator
type Iterator interface {
	Columns() []Column
	MoveNext(ctx context.Context) (bool, error)
	Current() Row
	Reset(ctx context.Context) error
	Close() error
}

// KeyColumn is a column the source can filter by itself
type KeyColumn struct {
	Column     string
	Operations []value.Operation
	Required   bool
}

func (self KeyColumn) Supports(op value.Operation) bool {
	for _, x := range self.Operations {
		if x == op {
			return true
		}
	}
	return false
}

// KeysInput is implemented by sources that accept key conditions. Key values
// are set before the source is reset and take effect for the following scan.
// An equality with more than one value means any of them.
type KeysInput interface {
	Input
	KeyColumns() []KeyColumn
	SetKeyValues(column string, op value.Operation, values []value.Value)
}

// ReadAll drains the iterator and returns copies of its rows
func ReadAll(ctx context.Context, it Iterator) ([]Row, error) {
	out := []Row{}
	for {
		ok, err := it.MoveNext(ctx)
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		out = append(out, it.Current().Copy())
	}
}
