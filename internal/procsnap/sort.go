package procsnap

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Column names a sortable attribute of a row.
type Column string

const (
	ColumnPID    Column = "pid"
	ColumnName   Column = "name"
	ColumnMemory Column = "memory"
	ColumnCPU    Column = "cpu"
	ColumnStatus Column = "status"
)

// Direction is the sort direction.
type Direction string

const (
	Ascending  Direction = "asc"
	Descending Direction = "desc"
)

// SortKey selects the ordering of a snapshot. The zero value orders by
// memory, largest first.
type SortKey struct {
	Column    Column    `json:"column" yaml:"column"`
	Direction Direction `json:"direction" yaml:"direction"`
}

// DefaultSortKey is memory descending.
func DefaultSortKey() SortKey {
	return SortKey{Column: ColumnMemory, Direction: Descending}
}

// ParseColumn validates a column name from user input.
func ParseColumn(s string) (Column, error) {
	switch c := Column(strings.ToLower(strings.TrimSpace(s))); c {
	case ColumnPID, ColumnName, ColumnMemory, ColumnCPU, ColumnStatus:
		return c, nil
	case "mem", "rss":
		return ColumnMemory, nil
	default:
		return "", fmt.Errorf("unknown sort column %q (use pid, name, memory, cpu, status)", s)
	}
}

// ParseSortKey builds a SortKey from a column name and a descending flag.
func ParseSortKey(column string, descending bool) (SortKey, error) {
	c, err := ParseColumn(column)
	if err != nil {
		return SortKey{}, err
	}
	key := SortKey{Column: c, Direction: Ascending}
	if descending {
		key.Direction = Descending
	}
	return key, nil
}

// Toggle returns the key a column-header click produces: the same column
// flips direction, a new column starts descending for memory and ascending
// for everything else.
func (k SortKey) Toggle(column Column) SortKey {
	k = k.normalize()
	if k.Column == column {
		if k.Direction == Descending {
			k.Direction = Ascending
		} else {
			k.Direction = Descending
		}
		return k
	}
	next := SortKey{Column: column, Direction: Ascending}
	if column == ColumnMemory {
		next.Direction = Descending
	}
	return next
}

func (k SortKey) String() string {
	k = k.normalize()
	return string(k.Column) + " " + string(k.Direction)
}

func (k SortKey) normalize() SortKey {
	if k.Column == "" {
		return DefaultSortKey()
	}
	if k.Direction != Descending {
		k.Direction = Ascending
	}
	return k
}

// Reorder returns a sorted copy of rows. The sort is stable and ties always
// resolve by ascending PID, whatever the direction.
func Reorder(rows []Row, key SortKey) []Row {
	out := slices.Clone(rows)
	sortRows(out, key)
	return out
}

func sortRows(rows []Row, key SortKey) {
	key = key.normalize()
	slices.SortStableFunc(rows, func(a, b Row) int {
		c := compareBy(a, b, key.Column)
		if key.Direction == Descending {
			c = -c
		}
		if c != 0 {
			return c
		}
		return cmp.Compare(a.PID, b.PID)
	})
}

func compareBy(a, b Row, column Column) int {
	switch column {
	case ColumnPID:
		return cmp.Compare(a.PID, b.PID)
	case ColumnName:
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	case ColumnMemory:
		return cmp.Compare(a.MemoryBytes, b.MemoryBytes)
	case ColumnStatus:
		return strings.Compare(string(a.Status), string(b.Status))
	default:
		// cpu is never sampled, every row ties
		return 0
	}
}
