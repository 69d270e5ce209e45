package devtree

import (
	"fmt"
	"regexp"
	"strings"
)

// ListMissingNamedBuses returns the names pattern%d for 0 <= d < count that
// no bus of busType carries. pattern contains one %d; without it the index
// is appended.
func (c *Container) ListMissingNamedBuses(pattern, busType string, count int) []string {
	if !strings.Contains(pattern, "%d") {
		pattern += "%d"
	}
	before, after, _ := strings.Cut(pattern, "%d")
	re := regexp.MustCompile("^" + regexp.QuoteMeta(before) + `\d+` + regexp.QuoteMeta(after))

	present := make(map[string]bool)
	for _, b := range c.buses {
		if b.typ == busType && re.MatchString(b.id) {
			present[b.id] = true
		}
	}
	var missing []string
	for i := 0; i < count; i++ {
		name := fmt.Sprintf(pattern, i)
		if !present[name] {
			missing = append(missing, name)
		}
	}
	return missing
}

// NextNamedBusIndex returns the smallest n for which no bus is called
// pattern%d. Without a %d the index is appended to pattern.
func (c *Container) NextNamedBusIndex(pattern string) int {
	if !strings.Contains(pattern, "%d") {
		pattern += "%d"
	}
	used := make(map[string]bool)
	for _, b := range c.buses {
		used[b.id] = true
	}
	for i := 0; ; i++ {
		if !used[fmt.Sprintf(pattern, i)] {
			return i
		}
	}
}
