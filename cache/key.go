package cache

import (
	"fmt"
	"sort"
	"strings"

	"github.com/krasninja/querycat-sub000/rows"
)

// Key identifies what a reader asked a source for. Two structurally equal
// requests have the same String().
type Key struct {
	Source     string
	Columns    []string // lower cased, "ordinal:name" when ordinals are known, empty means every column
	Conditions []string // canonical condition strings
	Offset     int64
	Limit      int64 // negative when there is no limit
}

func NewKey(source string, info rows.QueryInfo) Key {
	k := Key{
		Source: source,
		Offset: info.Offset,
		Limit:  info.Limit,
	}
	ords := info.Ordinals
	if len(ords) != len(info.Columns) {
		ords = nil
	}
	for i, c := range info.Columns {
		name := strings.ToLower(c.Name)
		if ords != nil {
			name = fmt.Sprintf("%d:%s", ords[i], name)
		}
		k.Columns = append(k.Columns, name)
	}
	for _, c := range info.Conditions {
		k.Conditions = append(k.Conditions, c.String())
	}
	sort.Strings(k.Columns)
	k.Columns = dedup(k.Columns)
	sort.Strings(k.Conditions)
	k.Conditions = dedup(k.Conditions)
	return k
}

func dedup(x []string) []string {
	out := x[:0]
	for i, s := range x {
		if i > 0 && s == x[i-1] {
			continue
		}
		out = append(out, s)
	}
	return out
}

func (self Key) String() string {
	return fmt.Sprintf(
		"%s|%s|%s|%d|%d",
		self.Source,
		strings.Join(self.Columns, ","),
		strings.Join(self.Conditions, ";"),
		self.Offset,
		self.Limit,
	)
}

func (self Key) hasColumn(name string) bool {
	i := sort.SearchStrings(self.Columns, name)
	return i < len(self.Columns) && self.Columns[i] == name
}

func (self Key) hasCondition(cond string) bool {
	i := sort.SearchStrings(self.Conditions, cond)
	return i < len(self.Conditions) && self.Conditions[i] == cond
}

// Subsumes reports whether the rows captured for this key can serve a request
// for other. That is true when this key selects at least the columns of other,
// filters by a subset of its conditions and is not capped tighter than other.
// Readers keep applying their own filters, so extra rows are harmless.
func (self Key) Subsumes(other Key) bool {
	if self.Source != other.Source || self.Offset != other.Offset {
		return false
	}
	if len(self.Columns) > 0 {
		if len(other.Columns) == 0 {
			return false
		}
		for _, c := range other.Columns {
			if !self.hasColumn(c) {
				return false
			}
		}
	}
	for _, c := range self.Conditions {
		if !other.hasCondition(c) {
			return false
		}
	}
	if self.Limit >= 0 && (other.Limit < 0 || other.Limit > self.Limit) {
		return false
	}
	return true
}
