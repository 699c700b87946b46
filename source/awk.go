package source

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/benhoyt/goawk/interp"
	"github.com/benhoyt/goawk/parser"
	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
	"github.com/pkg/errors"
)

// AwkInput runs an awk program over a text file and turns every line it
// prints into a row. Lines are split by the separator, or by blanks when no
// separator is given, into string columns named column1 .. columnN, where N
// is the widest line. Blank lines are dropped.
//
// The program runs once, when the input is created, so the columns are known
// before the input is bound.
type AwkInput struct {
	path    string
	sep     string
	columns []rows.Column
	data    [][]string
	pos     int
}

func NewAwkInput(path string, program string, sep string) (*AwkInput, error) {
	self := &AwkInput{
		path: path,
		sep:  sep,
		pos:  -1,
	}
	out, err := runAwk(path, program, sep)
	if err != nil {
		return nil, err
	}
	self.split(out)
	return self, nil
}

func runAwk(path string, program string, sep string) ([]byte, error) {
	prog, err := parser.ParseProgram([]byte(program), nil)
	if err != nil {
		return nil, errors.Wrap(err, "awk: parse program")
	}
	in, err := interp.New(prog)
	if err != nil {
		return nil, errors.Wrap(err, "awk: load program")
	}

	buf := &bytes.Buffer{}
	config := &interp.Config{
		Output:       buf,
		Args:         []string{path},
		NoExec:       true,
		NoFileWrites: true,
	}
	if sep != "" {
		config.Vars = []string{"FS", sep, "OFS", sep}
	}
	if _, err := in.Execute(config); err != nil {
		return nil, errors.Wrapf(err, "awk: run over %s", path)
	}
	return buf.Bytes(), nil
}

func (self *AwkInput) split(out []byte) {
	width := 0
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		var fields []string
		if self.sep == "" {
			fields = strings.Fields(line)
		} else {
			fields = strings.Split(line, self.sep)
		}
		if len(fields) > width {
			width = len(fields)
		}
		self.data = append(self.data, fields)
	}
	if width == 0 {
		width = 1
	}
	for i := 1; i <= width; i++ {
		self.columns = append(self.columns, rows.NewColumn(fmt.Sprintf("column%d", i), value.TypeString))
	}
}

func (self *AwkInput) Columns() []rows.Column { return self.columns }
func (self *AwkInput) Len() int               { return len(self.data) }

func (self *AwkInput) Open(ctx context.Context) error {
	self.pos = -1
	return ctx.Err()
}

func (self *AwkInput) Reset(ctx context.Context) error {
	self.pos = -1
	return ctx.Err()
}

func (self *AwkInput) ReadNext(ctx context.Context) (bool, error) {
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

func (self *AwkInput) ReadValue(ordinal int) (value.Value, error) {
	if self.pos < 0 || self.pos >= len(self.data) {
		return value.Null, fmt.Errorf("awk: %s: no current row", self.path)
	}
	if ordinal < 0 || ordinal >= len(self.columns) {
		return value.Null, fmt.Errorf("awk: %s: column ordinal %d out of range", self.path, ordinal)
	}
	fields := self.data[self.pos]
	if ordinal >= len(fields) {
		return value.Null, nil
	}
	return value.NewString(fields[ordinal]), nil
}

func (self *AwkInput) Close() error {
	self.pos = len(self.data)
	return nil
}
