package source

import (
	"context"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
	"github.com/parquet-go/parquet-go"
	"github.com/pkg/errors"
)

// ----------------------------------------------------------------------------
// Parquet files. Only flat schemas are understood, every top level field must
// be a leaf that is not repeated. Leaves map to values as follows
//
//   boolean                  -> boolean
//   int32, int64             -> integer
//   float, double            -> float
//   byte array (utf8/json)   -> string
//   byte array, fixed length -> blob
//
// The output side writes one optional leaf per column, types that have no
// direct parquet counterpart are written as strings.
// ----------------------------------------------------------------------------

const parquetBatch = 64

type ParquetInput struct {
	path    string
	file    *os.File
	pf      *parquet.File
	columns []rows.Column
	kinds   []parquet.Kind
	text    []bool
	reader  *parquet.Reader
	buf     []parquet.Row
	n       int
	pos     int
	eof     bool
	limit   int64
	reads   int64
}

// OpenParquet reads the schema of the file, rows are read once the input is
// opened
func OpenParquet(path string) (*ParquetInput, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "parquet: open %s", path)
	}
	st, err := file.Stat()
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "parquet: stat %s", path)
	}
	pf, err := parquet.OpenFile(file, st.Size())
	if err != nil {
		file.Close()
		return nil, errors.Wrapf(err, "parquet: read %s", path)
	}

	self := &ParquetInput{
		path:  path,
		file:  file,
		pf:    pf,
		limit: -1,
		pos:   -1,
	}
	if err := self.schema(); err != nil {
		file.Close()
		return nil, err
	}
	return self, nil
}

func (self *ParquetInput) schema() error {
	for _, f := range self.pf.Schema().Fields() {
		if !f.Leaf() || f.Repeated() {
			return fmt.Errorf("parquet: %s: nested column %s is not supported", self.path, f.Name())
		}
		t := f.Type()
		kind := t.Kind()
		text := false
		dt := value.TypeNull

		switch kind {
		case parquet.Boolean:
			dt = value.TypeBoolean
			break
		case parquet.Int32, parquet.Int64:
			dt = value.TypeInteger
			break
		case parquet.Float, parquet.Double:
			dt = value.TypeFloat
			break
		case parquet.ByteArray:
			if lt := t.LogicalType(); lt != nil && (lt.UTF8 != nil || lt.Json != nil || lt.Enum != nil) {
				text = true
				dt = value.TypeString
			} else {
				dt = value.TypeBlob
			}
			break
		case parquet.FixedLenByteArray:
			dt = value.TypeBlob
			break
		default:
			return fmt.Errorf("parquet: %s: column %s has unsupported type %s", self.path, f.Name(), t)
		}

		self.columns = append(self.columns, rows.NewColumn(f.Name(), dt))
		self.kinds = append(self.kinds, kind)
		self.text = append(self.text, text)
	}
	return nil
}

func (self *ParquetInput) Columns() []rows.Column { return self.columns }
func (self *ParquetInput) NumRows() int64         { return self.pf.NumRows() }

// Reads is the number of rows handed out since the last open or reset
func (self *ParquetInput) Reads() int64 { return self.reads }

// SetQueryInfo only looks at the limit, reading stops once it is reached
func (self *ParquetInput) SetQueryInfo(info rows.QueryInfo) {
	self.limit = info.Limit
}

func (self *ParquetInput) rewind() {
	self.n = 0
	self.pos = -1
	self.eof = false
	self.reads = 0
}

func (self *ParquetInput) Open(ctx context.Context) error {
	if self.reader == nil {
		self.reader = parquet.NewReader(self.pf)
		self.buf = make([]parquet.Row, parquetBatch)
	} else {
		self.reader.Reset()
	}
	self.rewind()
	return ctx.Err()
}

func (self *ParquetInput) Reset(ctx context.Context) error {
	return self.Open(ctx)
}

func (self *ParquetInput) ReadNext(ctx context.Context) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if self.reader == nil {
		return false, fmt.Errorf("parquet: %s: input is not open", self.path)
	}
	if self.limit >= 0 && self.reads >= self.limit {
		return false, nil
	}

	self.pos++
	for self.pos >= self.n {
		if self.eof {
			return false, nil
		}
		n, err := self.reader.ReadRows(self.buf)
		if err == io.EOF {
			self.eof = true
		} else if err != nil {
			return false, errors.Wrapf(err, "parquet: read %s", self.path)
		}
		self.n = n
		self.pos = 0
	}
	self.reads++
	return true, nil
}

func (self *ParquetInput) ReadValue(ordinal int) (value.Value, error) {
	if self.pos < 0 || self.pos >= self.n {
		return value.Null, fmt.Errorf("parquet: %s: no current row", self.path)
	}
	if ordinal < 0 || ordinal >= len(self.columns) {
		return value.Null, fmt.Errorf("parquet: %s: column ordinal %d out of range", self.path, ordinal)
	}

	row := self.buf[self.pos]
	var cell parquet.Value
	found := false
	for _, v := range row {
		if v.Column() == ordinal {
			cell = v
			found = true
			break
		}
	}
	if !found || cell.IsNull() {
		return value.Null, nil
	}

	switch self.kinds[ordinal] {
	case parquet.Boolean:
		return value.NewBoolean(cell.Boolean()), nil
	case parquet.Int32:
		return value.NewInteger(int64(cell.Int32())), nil
	case parquet.Int64:
		return value.NewInteger(cell.Int64()), nil
	case parquet.Float:
		return value.NewFloat(float64(cell.Float())), nil
	case parquet.Double:
		return value.NewFloat(cell.Double()), nil
	default:
		b := cell.ByteArray()
		if self.text[ordinal] {
			return value.NewString(string(b)), nil
		}
		out := make([]byte, len(b))
		copy(out, b)
		return value.NewBlob(out), nil
	}
}

func (self *ParquetInput) Close() error {
	var first error
	if self.reader != nil {
		first = self.reader.Close()
		self.reader = nil
	}
	if err := self.file.Close(); err != nil && first == nil {
		first = err
	}
	return first
}

// ----------------------------------------------------------------------------
// ParquetOutput
// ----------------------------------------------------------------------------

type ParquetOutput struct {
	path    string
	file    *os.File
	writer  *parquet.Writer
	types   []value.DataType
	leaf    []int
	buf     []parquet.Row
	written int
}

func NewParquetOutput(path string) *ParquetOutput {
	return &ParquetOutput{
		path: path,
	}
}

func (self *ParquetOutput) Written() int { return self.written }

func parquetNode(t value.DataType) (parquet.Node, value.DataType) {
	switch t {
	case value.TypeInteger:
		return parquet.Int(64), t
	case value.TypeFloat:
		return parquet.Leaf(parquet.DoubleType), t
	case value.TypeBoolean:
		return parquet.Leaf(parquet.BooleanType), t
	case value.TypeBlob:
		return parquet.Leaf(parquet.ByteArrayType), t
	default:
		return parquet.String(), value.TypeString
	}
}

// columnNames makes the names unique, a parquet group can not hold the same
// name twice
func columnNames(columns []rows.Column) []string {
	seen := make(map[string]int)
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		name := c.Name
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s_%d", name, n+1)
		} else {
			seen[name] = 1
		}
		out = append(out, name)
	}
	return out
}

func (self *ParquetOutput) Open(ctx context.Context, columns []rows.Column) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	names := columnNames(columns)
	group := parquet.Group{}
	self.types = make([]value.DataType, 0, len(columns))
	for idx, c := range columns {
		node, t := parquetNode(c.Type)
		group[names[idx]] = parquet.Optional(node)
		self.types = append(self.types, t)
	}

	// leaves of a group are ordered by name
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)
	pos := make(map[string]int, len(sorted))
	for idx, n := range sorted {
		pos[n] = idx
	}
	self.leaf = make([]int, 0, len(names))
	for _, n := range names {
		self.leaf = append(self.leaf, pos[n])
	}

	file, err := os.Create(self.path)
	if err != nil {
		return errors.Wrapf(err, "parquet: create %s", self.path)
	}
	self.file = file
	self.writer = parquet.NewWriter(file, parquet.NewSchema("querycat", group))
	self.buf = self.buf[:0]
	self.written = 0
	return nil
}

func (self *ParquetOutput) cell(idx int, v value.Value) (parquet.Value, error) {
	leaf := self.leaf[idx]
	if v.IsNull() {
		return parquet.NullValue().Level(0, 0, leaf), nil
	}
	t := self.types[idx]
	var x interface{}

	switch t {
	case value.TypeString:
		if v.Type() == value.TypeString {
			x = v.Str()
		} else {
			x = v.String()
		}
		break
	default:
		cv, err := value.Cast(v, t)
		if err != nil {
			return parquet.Value{}, err
		}
		x = cv.Go()
		break
	}
	return parquet.ValueOf(x).Level(0, 1, leaf), nil
}

func (self *ParquetOutput) Write(ctx context.Context, row rows.Row) error {
	if self.writer == nil {
		return fmt.Errorf("parquet: %s: output is not open", self.path)
	}
	out := make(parquet.Row, len(self.types))
	for idx := range self.types {
		v := value.Null
		if idx < len(row) {
			v = row[idx]
		}
		cell, err := self.cell(idx, v)
		if err != nil {
			return errors.Wrapf(err, "parquet: %s: column %d", self.path, idx+1)
		}
		out[self.leaf[idx]] = cell
	}
	self.buf = append(self.buf, out)
	self.written++
	if len(self.buf) >= parquetBatch {
		return self.flush()
	}
	return nil
}

func (self *ParquetOutput) flush() error {
	if len(self.buf) == 0 {
		return nil
	}
	if _, err := self.writer.WriteRows(self.buf); err != nil {
		return errors.Wrapf(err, "parquet: write %s", self.path)
	}
	self.buf = self.buf[:0]
	return nil
}

func (self *ParquetOutput) Close() error {
	if self.writer == nil {
		return nil
	}
	first := self.flush()
	if err := self.writer.Close(); err != nil && first == nil {
		first = errors.Wrapf(err, "parquet: close %s", self.path)
	}
	if err := self.file.Close(); err != nil && first == nil {
		first = err
	}
	self.writer = nil
	self.file = nil
	return first
}
