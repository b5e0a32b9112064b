package utils

import (
	"fmt"
	"math"
	"sort"
	"strconv"
)

type NamedCount struct {
	Name  string
	Count uint64
}

// SortByCount sorts named counters by count (descending), then by name (ascending)
func SortByCount[K ~string](counts map[K]uint64) []NamedCount {
	named := make([]NamedCount, 0, len(counts))
	for name, count := range counts {
		named = append(named, NamedCount{Name: string(name), Count: count})
	}

	sort.Slice(named, func(i, j int) bool {
		if named[i].Count == named[j].Count {
			return named[i].Name < named[j].Name
		}
		return named[i].Count > named[j].Count
	})

	return named
}

// FormatNumber formats a number with comma separators for readability
func FormatNumber(n uint64) string {
	str := strconv.FormatUint(n, 10)
	if len(str) <= 3 {
		return str
	}

	result := ""
	for i, c := range str {
		if i > 0 && (len(str)-i)%3 == 0 {
			result += ","
		}
		result += string(c)
	}
	return result
}

// FormatSeconds renders a latency given in seconds: milliseconds below one
// second, seconds above. Negative values keep their sign.
func FormatSeconds(s float64) string {
	switch {
	case math.IsNaN(s) || math.IsInf(s, 0):
		return "n/a"
	case math.Abs(s) < 1:
		return fmt.Sprintf("%.1fms", s*1000)
	default:
		return fmt.Sprintf("%.3fs", s)
	}
}
