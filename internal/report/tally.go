// Package report builds and writes the run's CSV or XLSX reports.
package report

import (
	"github.com/sells-group/dcat-harvester/internal/diff"
	"github.com/sells-group/dcat-harvester/internal/model"
)

// Tally returns a portal's status row: total identifiers, added, removed.
// On a first run every identifier counts as added.
func Tally(portal string, total int, d diff.Result, firstRun bool) model.PortalStatus {
	s := model.PortalStatus{PortalName: portal, Total: total}
	if firstRun {
		s.Added = total
		return s
	}
	s.Added = len(d.Added)
	s.Removed = len(d.Removed)
	return s
}
