package plan

import (
	"fmt"
	"strings"

	"github.com/krasninja/querycat-sub000/sql"
)

// Printing the plan out, for testing, debugging, visualization purpose etc ...

func (self *Statement) Dump() string {
	buf := &strings.Builder{}
	for _, q := range self.contexts {
		q.dump(buf)
	}
	return buf.String()
}

func (self *QueryContext) dump(buf *strings.Builder) {
	buf.WriteString(fmt.Sprintf("##> Block %d\n", self.Id))
	if self.parent != nil {
		buf.WriteString(fmt.Sprintf("Parent: %d\n", self.parent.Id))
	}
	if self.combine != nil {
		buf.WriteString(fmt.Sprintf("Combine: %s\n", combineKind(self.combine.Op)))
	}
	buf.WriteString(fmt.Sprintf("Correlated: %v\n", self.correlated))

	for _, src := range self.sources {
		self.dumpSource(src, buf)
	}

	buf.WriteString("Ops:\n")
	if len(self.ops) == 0 {
		buf.WriteString("--\n")
	}
	for idx, op := range self.ops {
		buf.WriteString(fmt.Sprintf("[%d]: %s\n", idx, op))
	}

	buf.WriteString("Columns:")
	for _, col := range self.columns {
		buf.WriteString(fmt.Sprintf(" %s(%s)", col.Name, col.Type))
	}
	buf.WriteString("\n")
}

func (self *QueryContext) dumpSource(src *BoundSource, buf *strings.Builder) {
	buf.WriteString(fmt.Sprintf("Source: %s\n", src.describe()))
	buf.WriteString(fmt.Sprintf("Identity: %s\n", src.Identity))
	if src.Limit >= 0 {
		buf.WriteString(fmt.Sprintf("Limit: %d\n", src.Limit))
	}
	for _, c := range src.conditions {
		vals := make([]string, 0, len(c.exprs))
		for _, e := range c.exprs {
			vals = append(vals, sql.PrintExpr(e))
		}
		buf.WriteString(fmt.Sprintf(
			"Condition: %s %s %s\n",
			src.Columns[c.column].Name,
			c.op,
			strings.Join(vals, ", "),
		))
	}
	if src.iter.AutoFetch() {
		buf.WriteString("Prefetch: *\n")
	} else {
		buf.WriteString(fmt.Sprintf("Prefetch: %v\n", src.iter.Prefetch()))
	}
}
