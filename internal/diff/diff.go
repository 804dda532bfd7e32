// Package diff compares two catalog snapshots by record identifier.
package diff

import (
	"github.com/sells-group/dcat-harvester/internal/model"
)

// Result lists identifiers in first-occurrence order.
type Result struct {
	Added   []string
	Removed []string
	// Total is the number of distinct identifiers in the current catalog.
	Total int
	// Duplicates counts repeated identifiers in the current catalog.
	Duplicates int
	// Missing counts current records without an identifier.
	Missing  int
	FirstRun bool
}

// Compute returns the identifiers added in current and removed since
// previous. A nil previous treats every current identifier as added.
// Repeated identifiers are reported once.
func Compute(previous, current *model.Catalog) Result {
	cur, dups, missing := identifiers(current)
	res := Result{Total: len(cur), Duplicates: dups, Missing: missing}

	if previous == nil {
		res.FirstRun = true
		res.Added = cur
		return res
	}

	prev, _, _ := identifiers(previous)
	prevSet := toSet(prev)
	curSet := toSet(cur)

	for _, id := range cur {
		if !prevSet[id] {
			res.Added = append(res.Added, id)
		}
	}
	for _, id := range prev {
		if !curSet[id] {
			res.Removed = append(res.Removed, id)
		}
	}
	return res
}

func identifiers(c *model.Catalog) (ids []string, duplicates, missing int) {
	if c == nil {
		return nil, 0, 0
	}
	seen := make(map[string]bool, len(c.Records))
	for _, r := range c.Records {
		id := r.ID()
		switch {
		case id == "":
			missing++
		case seen[id]:
			duplicates++
		default:
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids, duplicates, missing
}

func toSet(ids []string) map[string]bool {
	s := make(map[string]bool, len(ids))
	for _, id := range ids {
		s[id] = true
	}
	return s
}
