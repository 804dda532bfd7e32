package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/bbox"
	"github.com/sells-group/dcat-harvester/internal/boundary"
	"github.com/sells-group/dcat-harvester/internal/diff"
	"github.com/sells-group/dcat-harvester/internal/ledger"
	"github.com/sells-group/dcat-harvester/internal/linkcheck"
	"github.com/sells-group/dcat-harvester/internal/model"
	"github.com/sells-group/dcat-harvester/internal/pipeline"
	"github.com/sells-group/dcat-harvester/internal/places"
	"github.com/sells-group/dcat-harvester/internal/report"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func TestPrintHarvest(t *testing.T) {
	sum := linkcheck.Summary{Total: 2, Counts: map[linkcheck.Category]int{linkcheck.OK: 1, linkcheck.NotFound: 1}}
	res := &pipeline.Result{
		Statuses: []model.PortalStatus{
			{PortalName: "05a-01", Total: 5, Added: 4, Removed: 1},
			{PortalName: "03a-01", Total: 1, Added: 1},
		},
		Added:          make([]model.MetadataRow, 3),
		Removed:        make([]model.RemovedItem, 1),
		SkippedPortals: []string{"05b-02"},
		SkippedStates:  []string{"Iowa"},
		DeadLinks:      1,
		LinkSummary:    &sum,
		Reports: map[string]string{
			report.NameStatus: "reports/portal_status_report_20240315.csv",
			report.NameAdded:  "reports/allNewItems_20240315.csv",
		},
	}

	var buf bytes.Buffer
	printHarvest(&buf, res)
	out := buf.String()

	assert.Contains(t, out, "PORTAL")
	assert.Regexp(t, `05a-01\s+5\s+4\s+1`, out)
	assert.Contains(t, out, "Added: 3  Removed: 1  Rejected boxes: 0  Dead links: 1")
	assert.Contains(t, out, "Skipped portals: [05b-02]")
	assert.Contains(t, out, "States without boundaries: [Iowa]")
	assert.Contains(t, out, "OK: 1 (50.0%)")
	assert.Contains(t, out, "404 Not Found: 1 (50.0%)")
	assert.Less(t,
		bytes.Index(buf.Bytes(), []byte("allNewItems_20240315")),
		bytes.Index(buf.Bytes(), []byte("portal_status_report_20240315")))
}

func TestReadSnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "05a-01_20240315.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"dataset":[{"identifier":"a"},{"identifier":"b"}]}`), 0o644))

	cat, err := readSnapshot(path)
	require.NoError(t, err)
	assert.Equal(t, "05a-01", cat.Portal)
	assert.Equal(t, "20240315", cat.Date)
	assert.Len(t, cat.Records, 2)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte(`{"items":[]}`), 0o644))
	_, err = readSnapshot(bad)
	assert.Error(t, err)

	_, err = readSnapshot(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)
}

func TestPrintDiff(t *testing.T) {
	d := diff.Result{Added: []string{"n1", "n2"}, Removed: []string{"g1"}, Total: 4, Duplicates: 1}

	var buf bytes.Buffer
	printDiff(&buf, d, false)
	assert.Equal(t, "Total: 4  Added: 2  Removed: 1\nDuplicate identifiers: 1  Missing identifiers: 0\n", buf.String())

	buf.Reset()
	printDiff(&buf, diff.Result{Added: []string{"n1"}, Removed: []string{"g1"}, Total: 1}, true)
	assert.Equal(t, "Total: 1  Added: 1  Removed: 1\n+ n1\n- g1\n", buf.String())
}

func TestPrintCoverage(t *testing.T) {
	m := places.Match{
		Intersects: []places.Place{{Name: "Minneapolis", State: "Minnesota"}, {Name: "Hennepin County", State: "Minnesota"}},
		Within:     []places.Place{{Name: "Hennepin County", State: "Minnesota"}},
	}
	var buf bytes.Buffer
	printCoverage(&buf, bbox.Box{MinX: -93.3, MinY: 44.9, MaxX: -93.2, MaxY: 45}, m)
	out := buf.String()

	assert.Contains(t, out, "-93.30,44.90,-93.20,45.00")
	assert.Contains(t, out, "Minneapolis, Minnesota; Hennepin County, Minnesota")
	assert.Regexp(t, `Coverage:\s+Hennepin County, Minnesota\|Minnesota`, out)
}

func TestPrintManifest(t *testing.T) {
	m := &boundary.Manifest{
		Year:      2024,
		UpdatedAt: time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC),
		States: []boundary.StateEntry{
			{State: "District of Columbia", FIPS: "11", Cities: 1},
			{State: "Minnesota", FIPS: "27", Cities: 855, Counties: 87},
		},
	}
	var buf bytes.Buffer
	printManifest(&buf, m)
	out := buf.String()

	assert.Contains(t, out, "TIGER/Line 2024, full geometry: false, updated 2024-03-15 08:00")
	assert.Regexp(t, `Minnesota\s+27\s+855\s+87`, out)
	assert.Regexp(t, `District of Columbia\s+11\s+1\s+0`, out)
}

func TestFormatHistory(t *testing.T) {
	start := time.Date(2024, 3, 15, 6, 0, 0, 0, time.UTC)
	done := start.Add(90 * time.Second)
	runs := []ledger.Run{
		{
			ID:          "abc12345-6789-0000-0000-000000000000",
			ActionDate:  "20240315",
			Status:      ledger.StatusComplete,
			StartedAt:   start,
			CompletedAt: &done,
			Portals: []ledger.PortalRecord{
				{Portal: "05a-01", Total: 5, Added: 4, Removed: 1},
				{Portal: "03a-01", Total: 2, Added: 2},
				{Portal: "05b-02", Error: "http 500"},
			},
		},
		{
			ID:         "def12345-6789-0000-0000-000000000000",
			ActionDate: "20240314",
			Status:     ledger.StatusFailed,
			Error:      "snapshot: disk full",
			StartedAt:  start.Add(-24 * time.Hour),
		},
	}

	var buf bytes.Buffer
	formatHistory(&buf, runs, true)
	out := buf.String()

	assert.Regexp(t, `abc12345\s+20240315\s+complete\s+3\s+6\s+1\s+2024-03-15 06:00\s+1m30s`, out)
	assert.Regexp(t, `def12345\s+20240314\s+failed\s+0\s+0\s+0\s+2024-03-14 06:00\s+-`, out)
	assert.Contains(t, out, "5/4/1")
	assert.Contains(t, out, "error: http 500")
	assert.Contains(t, out, "error: snapshot: disk full")

	buf.Reset()
	formatHistory(&buf, runs[:1], false)
	assert.NotContains(t, buf.String(), "5/4/1")
}

func TestReadAddedReport(t *testing.T) {
	dir := t.TempDir()
	rows := []model.MetadataRow{
		{Title: "Parcels", Slug: "a", Download: "https://x/a.zip", SpatialCoverage: "Ames, Iowa|Iowa"},
		{Title: "Roads, \"2024\"", Slug: "b"},
	}
	path, err := (&report.CSVSink{Dir: dir}).Write("allNewItems_20240315", rows)
	require.NoError(t, err)

	got, err := readAddedReport(path)
	require.NoError(t, err)
	assert.Equal(t, rows, got)

	_, err = readAddedReport(filepath.Join(dir, "missing.csv"))
	assert.Error(t, err)
}

func TestLinkOutput(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing.zip" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write([]byte("PK"))
	}))
	defer srv.Close()

	rows := []model.MetadataRow{
		{Slug: "a", Download: srv.URL + "/a.zip"},
		{Slug: "b", Download: srv.URL + "/missing.zip"},
	}
	checker := linkcheck.NewChecker(linkcheck.Options{Timeout: time.Second, Attempts: 1, Concurrency: 2, RatePerSec: 100})
	kept, results, sum, err := checker.Run(t.Context(), rows)
	require.NoError(t, err)
	require.Len(t, kept, 1)

	var buf bytes.Buffer
	printLinkSummary(&buf, sum)
	printFailures(&buf, results)
	out := buf.String()

	assert.Contains(t, out, "Checked 2 links")
	assert.Contains(t, out, "OK: 1 (50.0%)")
	assert.Regexp(t, `b\s+404 Not Found\s+404\s+`+srv.URL+`/missing.zip`, out)
	assert.NotRegexp(t, `(?m)^a\s`, out)
}
