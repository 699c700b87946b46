package format

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/krasninja/querycat-sub000/exec"
	"github.com/krasninja/querycat-sub000/rows"
	"github.com/krasninja/querycat-sub000/value"
	"github.com/pkg/errors"
)

// TextOutput prints rows as left aligned, fixed width cells. The title, when
// not ignored, is framed by two delimiter lines and a last delimiter line is
// printed on close.
type TextOutput struct {
	w       io.Writer
	format  *Format
	columns []rows.Column
	visible []int
	written int
	open    bool
}

func NewTextOutput(w io.Writer, f *Format) *TextOutput {
	if f == nil {
		f = Plain()
	}
	return &TextOutput{
		w:      w,
		format: f,
	}
}

func (self *TextOutput) Written() int { return self.written }

func (self *TextOutput) showTitle() bool {
	return self.format.Title != nil && !self.format.Title.Ignore
}

func (self *TextOutput) cellFormat() string {
	return fmt.Sprintf("%%-%ds", self.format.padding())
}

func (self *TextOutput) line(cells []string) string {
	sep := self.format.Border
	buf := strings.Builder{}
	for _, c := range cells {
		buf.WriteString(sep)
		buf.WriteString(c)
	}
	buf.WriteString(sep)
	return buf.String()
}

func (self *TextOutput) delimiter() string {
	width := len(self.visible)*(self.format.padding()+len(self.format.Border)) + len(self.format.Border)
	return strings.Repeat("-", width)
}

func (self *TextOutput) Open(ctx context.Context, columns []rows.Column) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	self.columns = columns
	self.visible = self.visible[:0]
	self.written = 0
	self.open = true

	for idx := range columns {
		if ins, ok := self.format.Column[idx]; ok && ins.Ignore {
			continue
		}
		self.visible = append(self.visible, idx)
	}

	if !self.showTitle() {
		return nil
	}
	ffmt := self.cellFormat()
	cells := make([]string, 0, len(self.visible))
	for _, idx := range self.visible {
		cells = append(cells, fmt.Sprintf(ffmt, columns[idx].Name))
	}
	del := self.delimiter()
	_, err := fmt.Fprintf(
		self.w,
		"%s\n%s\n%s\n",
		del,
		self.format.stylish(self.format.Title, self.line(cells)),
		del,
	)
	return errors.Wrap(err, "text output")
}

func (self *TextOutput) instruction(idx int, v value.Value) *Instruction {
	if ins, ok := self.format.Column[idx]; ok {
		return ins
	}
	switch {
	case v.Type().IsNumber():
		return self.format.Number
	case v.Type() == value.TypeString:
		return self.format.String
	default:
		return self.format.Rest
	}
}

func cellText(v value.Value) string {
	if v.IsNull() {
		return "null"
	}
	return v.String()
}

func (self *TextOutput) Write(ctx context.Context, row rows.Row) error {
	if !self.open {
		return fmt.Errorf("text output: write on a closed output")
	}
	ffmt := self.cellFormat()
	cells := make([]string, 0, len(self.visible))
	for _, idx := range self.visible {
		v := value.Null
		if idx < len(row) {
			v = row[idx]
		}
		cells = append(
			cells,
			self.format.stylish(self.instruction(idx, v), fmt.Sprintf(ffmt, cellText(v))),
		)
	}
	if _, err := fmt.Fprintln(self.w, self.line(cells)); err != nil {
		return errors.Wrap(err, "text output")
	}
	self.written++
	return nil
}

func (self *TextOutput) Close() error {
	if !self.open {
		return nil
	}
	self.open = false
	if !self.showTitle() {
		return nil
	}
	_, err := fmt.Fprintln(self.w, self.delimiter())
	return errors.Wrap(err, "text output")
}

// Print drains the iterator into the output
func Print(ctx context.Context, it rows.Iterator, out rows.Output) error {
	_, err := exec.NewOutput(it, out).MoveNext(ctx)
	return err
}
