package rows

import (
	"strings"

	"github.com/krasninja/querycat-sub000/value"
)

// Column describes one position of a row. Columns are never modified after
// they are handed out, stages that rename or relocate a column create a new
// descriptor instead.
type Column struct {
	Name        string
	SourceName  string
	Type        value.DataType
	Description string
}

func NewColumn(name string, t value.DataType) Column {
	return Column{
		Name: name,
		Type: t,
	}
}

// Is reports whether the column is identified by the (name, source) pair, an
// empty source matches any source. Comparison is case insensitive.
func (self Column) Is(name, source string) bool {
	if !strings.EqualFold(self.Name, name) {
		return false
	}
	return source == "" || strings.EqualFold(self.SourceName, source)
}

func (self Column) FullName() string {
	if self.SourceName == "" {
		return self.Name
	}
	return self.SourceName + "." + self.Name
}

func (self Column) WithSource(source string) Column {
	self.SourceName = source
	return self
}

func (self Column) WithName(name string) Column {
	self.Name = name
	return self
}

func (self Column) WithType(t value.DataType) Column {
	self.Type = t
	return self
}

// FindColumn returns the ordinal of the column matching (name, source) or -1.
// When an unqualified name matches more than one column the first ordinal is
// returned with ambiguous set.
func FindColumn(columns []Column, name, source string) (idx int, ambiguous bool) {
	idx = -1
	for i, c := range columns {
		if !c.Is(name, source) {
			continue
		}
		if idx >= 0 {
			return idx, true
		}
		idx = i
	}
	return idx, false
}

func ColumnNames(columns []Column) []string {
	out := make([]string, 0, len(columns))
	for _, c := range columns {
		out = append(out, c.Name)
	}
	return out
}

// WithSource returns a copy of the columns qualified by the source name
func WithSource(columns []Column, source string) []Column {
	out := make([]Column, 0, len(columns))
	for _, c := range columns {
		out = append(out, c.WithSource(source))
	}
	return out
}
