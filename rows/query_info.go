package rows

import (
	"fmt"
	"strings"

	"github.com/krasninja/querycat-sub000/value"
)

// Condition is a pushed down predicate "column op values". An equality with
// several values is a IN list.
type Condition struct {
	Column    string
	Operation value.Operation
	Values    []value.Value
}

func (self Condition) String() string {
	vals := make([]string, 0, len(self.Values))
	for _, v := range self.Values {
		vals = append(vals, value.Key(v))
	}
	return fmt.Sprintf(
		"%s %s [%s]",
		strings.ToLower(self.Column),
		self.Operation,
		strings.Join(vals, ","),
	)
}

// QueryInfo is what a source may learn about the query reading it, it is read
// only from the source's perspective
type QueryInfo struct {
	Columns    []Column
	Ordinals   []int // source ordinals of Columns, nil when only the names are known
	Conditions []Condition
	Offset     int64
	Limit      int64 // negative when there is no limit
}

func NewQueryInfo(columns []Column) QueryInfo {
	return QueryInfo{
		Columns: columns,
		Limit:   -1,
	}
}

// ColumnOrdinals resolves Columns against the source columns. Known ordinals
// are used as is, names are matched otherwise and a name repeated in the
// request takes the next source column of that name.
func (self QueryInfo) ColumnOrdinals(source []Column) []int {
	out := []int{}
	if len(self.Columns) == 0 {
		for i := range source {
			out = append(out, i)
		}
		return out
	}
	if len(self.Ordinals) == len(self.Columns) {
		return append(out, self.Ordinals...)
	}
	used := make(map[int]bool, len(self.Columns))
	for _, c := range self.Columns {
		for i, sc := range source {
			if !used[i] && strings.EqualFold(sc.Name, c.Name) {
				used[i] = true
				out = append(out, i)
				break
			}
		}
	}
	return out
}

// QueryInfoAware is implemented by sources that want to know the query info
// before every scan
type QueryInfoAware interface {
	SetQueryInfo(QueryInfo)
}
