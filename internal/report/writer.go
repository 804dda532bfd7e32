package report

import (
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/model"
)

// Report base names; the run date is appended.
const (
	NameAdded    = "allNewItems"
	NameRemoved  = "allDeletedItems"
	NameStatus   = "portal_status_report"
	NameRejected = "rejectedBoundingBoxes"
)

// Writer names and writes one run's reports.
type Writer struct {
	sink Sink
	date string
}

// NewWriter creates a Writer for the run dated date (YYYYMMDD).
func NewWriter(sink Sink, date string) *Writer {
	return &Writer{sink: sink, date: date}
}

// FileName returns the dated base name of a report.
func FileName(base, date string) string {
	return base + "_" + date
}

func (w *Writer) write(base string, records any, n int) (string, error) {
	path, err := w.sink.Write(FileName(base, w.date), records)
	if err != nil {
		return "", err
	}
	zap.L().With(zap.String("component", "report.writer")).Info("report written",
		zap.String("path", path),
		zap.Int("rows", n),
	)
	return path, nil
}

// Added writes the added-items report.
func (w *Writer) Added(rows []model.MetadataRow) (string, error) {
	return w.write(NameAdded, rows, len(rows))
}

// Removed writes the removed-items report.
func (w *Writer) Removed(items []model.RemovedItem) (string, error) {
	return w.write(NameRemoved, items, len(items))
}

// Status writes the per-portal status report.
func (w *Writer) Status(statuses []model.PortalStatus) (string, error) {
	return w.write(NameStatus, statuses, len(statuses))
}

// Rejected writes the rejected bounding box report.
func (w *Writer) Rejected(boxes []model.RejectedBox) (string, error) {
	return w.write(NameRejected, boxes, len(boxes))
}
