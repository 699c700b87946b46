package exec

import (
	"context"

	"github.com/krasninja/querycat-sub000/rows"
	"github.com/pkg/errors"
)

// Output drains its child into a rows output on the first advance and yields
// nothing itself
type Output struct {
	child   rows.Iterator
	out     rows.Output
	done    bool
	written int
}

func NewOutput(child rows.Iterator, out rows.Output) *Output {
	return &Output{
		child: child,
		out:   out,
	}
}

func (self *Output) Columns() []rows.Column { return self.child.Columns() }
func (self *Output) Current() rows.Row      { return nil }
func (self *Output) Written() int           { return self.written }

func (self *Output) MoveNext(ctx context.Context) (bool, error) {
	if self.done {
		return false, nil
	}
	self.done = true

	if err := self.out.Open(ctx, self.child.Columns()); err != nil {
		return false, errors.Wrap(err, "open output")
	}
	for {
		ok, err := self.child.MoveNext(ctx)
		if err != nil {
			self.out.Close()
			return false, err
		}
		if !ok {
			break
		}
		if err := self.out.Write(ctx, self.child.Current()); err != nil {
			self.out.Close()
			return false, errors.Wrap(err, "write output")
		}
		self.written++
	}
	return false, errors.Wrap(self.out.Close(), "close output")
}

func (self *Output) Reset(ctx context.Context) error {
	self.done = false
	self.written = 0
	return self.child.Reset(ctx)
}

func (self *Output) Close() error { return self.child.Close() }
