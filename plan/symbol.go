package plan

import (
	"strings"

	"github.com/krasninja/querycat-sub000/exec"
	"github.com/krasninja/querycat-sub000/sql"
)

// Column binding. A reference (qualifier, name) resolves by scanning, in
// order
//
//  1. the bound sources of the block being compiled
//  2. the projection aliases of the block, only for GROUP BY and HAVING
//  3. the blocks enclosing this one, innermost first, reading the row the
//     outer block is evaluating when the inner block runs
//  4. the engine variables, for unqualified names
//
// The first match wins. An unqualified name found in two sources of the same
// block is an ambiguity and rejected.

// findSlot looks the reference up in the sources of this context only
func (self *QueryContext) findSlot(ref *sql.Ref) (slot, bool, error) {
	var found slot
	n := 0
	for _, src := range self.sources {
		if ref.Qualifier != "" && !strings.EqualFold(src.Name, ref.Qualifier) {
			continue
		}
		for i, col := range src.Columns {
			if !strings.EqualFold(col.Name, ref.Name) {
				continue
			}
			if n > 0 && (found.source != src || ref.Qualifier != "") {
				return slot{}, false, self.stmt.err(
					"bind",
					"column reference %s is ambiguous, qualify it",
					ref.FullName(),
				)
			}
			if n > 0 {
				return slot{}, false, self.stmt.err(
					"bind",
					"source %s has more than one column named %s",
					src.Name,
					ref.Name,
				)
			}
			found = slot{source: src, column: i}
			n++
		}
	}
	return found, n == 1, nil
}

func (self *QueryContext) columnRef(l *layout, s slot, ref *sql.Ref) (exec.Unit, error) {
	if l == nil {
		return nil, self.stmt.err("bind", "column %s is not available here", ref.FullName())
	}
	ord, ok := l.ords[s]
	if !ok {
		return nil, self.stmt.err("bind", "column %s is not available here", ref.FullName())
	}
	return &exec.ColumnRef{
		Frame:   l.frame,
		Ordinal: ord,
		T:       s.source.Columns[s.column].Type,
	}, nil
}

// bindRef compiles a column reference, following the binding order
func (self *compiler) bindRef(ref *sql.Ref) (exec.Unit, error) {
	q := self.q

	s, ok, err := q.findSlot(ref)
	if err != nil {
		return nil, err
	}
	if ok {
		return q.columnRef(self.l, s, ref)
	}

	if ref.Qualifier == "" && self.l != nil && self.l.aliases != nil {
		key := strings.ToLower(ref.Name)
		if e, ok := self.l.aliases[key]; ok && !self.expanding[key] {
			self.expanding[key] = true
			defer delete(self.expanding, key)
			return self.expr(e)
		}
	}

	for p := q.parent; p != nil; p = p.parent {
		s, ok, err := p.findSlot(ref)
		if err != nil {
			return nil, err
		}
		if ok {
			q.markCorrelated(p)
			return p.columnRef(p.cur, s, ref)
		}
	}

	if ref.Qualifier == "" {
		if v, ok := q.stmt.variable(ref.Name); ok {
			return &exec.Const{V: v}, nil
		}
	}

	return nil, q.stmt.err("bind", "cannot resolve column %s", ref.FullName())
}

// owns reports whether the reference names a column of this context's own
// sources
func (self *QueryContext) owns(ref *sql.Ref) bool {
	_, ok, err := self.findSlot(ref)
	return ok && err == nil
}
