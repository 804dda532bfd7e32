package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twpayne/go-geom"
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/fetcher"
	"github.com/sells-group/dcat-harvester/internal/ledger"
	"github.com/sells-group/dcat-harvester/internal/linkcheck"
	"github.com/sells-group/dcat-harvester/internal/model"
	"github.com/sells-group/dcat-harvester/internal/places"
	"github.com/sells-group/dcat-harvester/internal/report"
	"github.com/sells-group/dcat-harvester/internal/snapshot"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

type fakeCatalogs struct {
	docs  map[string]string
	calls map[string]int
}

func (f *fakeCatalogs) FetchCatalog(_ context.Context, url string) ([]byte, error) {
	f.calls[url]++
	doc, ok := f.docs[url]
	if !ok {
		return nil, &fetcher.FetchError{URL: url, StatusCode: 500, Reason: "http 500"}
	}
	return []byte(doc), nil
}

type fakeLinks struct {
	dead map[string]bool
	seen int
}

func (f *fakeLinks) Run(_ context.Context, rows []model.MetadataRow) ([]model.MetadataRow, []linkcheck.Result, linkcheck.Summary, error) {
	f.seen += len(rows)
	var kept []model.MetadataRow
	for _, r := range rows {
		if !f.dead[r.Slug] {
			kept = append(kept, r)
		}
	}
	return kept, nil, linkcheck.Summary{Total: len(rows)}, nil
}

type fakeLedger struct {
	ledger.Nop
	portals  []ledger.PortalRecord
	complete bool
	failed   error
}

func (f *fakeLedger) Start(context.Context, string) (string, error) { return "run-1", nil }

func (f *fakeLedger) RecordPortal(_ context.Context, _ string, rec ledger.PortalRecord) error {
	f.portals = append(f.portals, rec)
	return nil
}

func (f *fakeLedger) Complete(context.Context, string) error {
	f.complete = true
	return nil
}

func (f *fakeLedger) Fail(_ context.Context, _ string, cause error) error {
	f.failed = cause
	return nil
}

// boundarySource serves in-memory Minnesota boundaries and no data for any
// other state.
type boundarySource struct{}

func rect(x0, y0, x1, y1 float64) *geom.MultiPolygon {
	flat := []float64{x0, y0, x1, y0, x1, y1, x0, y1, x0, y0}
	return geom.NewMultiPolygonFlat(geom.XY, flat, [][]int{{len(flat)}})
}

func (boundarySource) Open(_ context.Context, state string) (places.Index, error) {
	if state != "Minnesota" {
		return nil, eris.Wrapf(places.ErrNoData, "no boundaries for %s", state)
	}
	cities := []places.Boundary{{
		Level: places.City, City: "Minneapolis", County: "Hennepin County", State: "Minnesota",
		Geom: rect(-93.33, 44.89, -93.19, 45.05),
	}}
	counties := []places.Boundary{{
		Level: places.County, County: "Hennepin County", State: "Minnesota",
		Geom: rect(-93.77, 44.78, -93.17, 45.25),
	}}
	return places.NewFileIndex(state, cities, counties), nil
}

const (
	mnURL   = "https://mn.example.org/data.json"
	esriURL = "https://hub.example.org/data.json"
	iaURL   = "https://ia.example.org/data.json"
	badURL  = "https://down.example.org/data.json"
	xxURL   = "https://xx.example.org/data.json"
)

func shapefileRecord(id, spatial string) string {
	return `{"identifier":"https://data.example.org/datasets/` + id + `",
		"title":"Dataset ` + id + `",
		"landingPage":"https://data.example.org/datasets/` + id + `",
		"distribution":[{"title":"Shapefile","downloadURL":"https://data.example.org/` + id + `.zip"}],
		"spatial":"` + spatial + `"}`
}

func catalogDoc(records ...string) string {
	return `{"dataset":[` + strings.Join(records, ",") + `]}`
}

var testPortals = []model.Portal{
	{Name: "05a-01", URL: mnURL, Provenance: "Minnesota", Publisher: "Hennepin County"},
	{Name: "99-01", URL: esriURL, Provenance: "Esri", Publisher: "Esri"},
	{Name: "03a-01", URL: iaURL, Provenance: "Iowa", Publisher: "Polk County", SpatialCoverage: "Iowa"},
	{Name: "05b-02", URL: badURL, Provenance: "Minnesota", Publisher: "Ramsey County"},
	{Name: "77-01", URL: xxURL, Provenance: "Elsewhere", Publisher: "Nobody"},
}

var testStateCodes = map[string]string{
	"03":     "Iowa",
	"05":     "Minnesota",
	"05z-01": "Wisconsin",
	"99":     "Esri",
}

type fixture struct {
	catalogs *fakeCatalogs
	store    *snapshot.FileStore
	links    *fakeLinks
	ledger   *fakeLedger
	reports  string
	h        *Harvester
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := snapshot.NewFileStore(filepath.Join(t.TempDir(), "jsons"))
	require.NoError(t, err)

	previous := catalogDoc(
		shapefileRecord("a1", "-93.3,44.95,-93.25,45.0"),
		`{"identifier":"https://data.example.org/datasets/gone1","landingPage":"https://data.example.org/datasets/gone1"}`,
	)
	require.NoError(t, store.Write(snapshot.Key{Portal: "05a-01", Date: "20240101"}, []byte(previous)))

	f := &fixture{
		catalogs: &fakeCatalogs{
			docs: map[string]string{
				mnURL: catalogDoc(
					shapefileRecord("a1", "-93.3,44.95,-93.25,45.0"),
					shapefileRecord("b2", "-93.30,44.95,-93.25,45.00"),
					shapefileRecord("c3", "-180,-90,180,90"),
					`{"identifier":"https://data.example.org/datasets/d4","distribution":[{"title":"CSV","downloadURL":"https://x/d4.csv"}]}`,
					shapefileRecord("e5", "-93.31,44.96,-93.26,45.01"),
				),
				esriURL: catalogDoc(shapefileRecord("z9", "-180,-90,180,90")),
				iaURL:   catalogDoc(shapefileRecord("i1", "-93.65,41.55,-93.55,41.65")),
				xxURL:   catalogDoc(shapefileRecord("u1", "-100.5,40.1,-100.4,40.2")),
			},
			calls: make(map[string]int),
		},
		store:   store,
		links:   &fakeLinks{dead: map[string]bool{"e5": true}},
		ledger:  &fakeLedger{},
		reports: filepath.Join(t.TempDir(), "reports"),
	}
	f.h = New(Deps{
		Catalogs:  f.catalogs,
		Snapshots: store,
		Places:    boundarySource{},
		Links:     f.links,
		Sink:      &report.CSVSink{Dir: f.reports},
		Ledger:    f.ledger,
	})
	return f
}

func testOptions() Options {
	return Options{
		Date:          "20240301",
		Portals:       testPortals,
		WriteRejected: true,
		StateCodes:    testStateCodes,
	}
}

func slugs(rows []model.MetadataRow) []string {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Slug)
	}
	return out
}

func TestHarvester_Run(t *testing.T) {
	f := newFixture(t)

	res, err := f.h.Run(context.Background(), testOptions())
	require.NoError(t, err)

	assert.Equal(t, "run-1", res.RunID)
	assert.Equal(t, []string{"b2", "z9", "i1", "u1"}, slugs(res.Added))

	coverage := make(map[string]string)
	for _, r := range res.Added {
		coverage[r.Slug] = r.SpatialCoverage
	}
	assert.Equal(t, "Minneapolis, Minnesota|Hennepin County, Minnesota|Minnesota", coverage["b2"])
	assert.Equal(t, "United States", coverage["z9"])
	assert.Equal(t, "Iowa", coverage["i1"], "no reference data keeps the portal coverage")
	assert.Equal(t, "", coverage["u1"])

	assert.Equal(t, []model.RemovedItem{{
		Identifier:  "https://data.example.org/datasets/gone1",
		LandingPage: "https://data.example.org/datasets/gone1",
		PortalName:  "05a-01",
	}}, res.Removed)

	require.Len(t, res.Rejected, 1)
	assert.Equal(t, "c3", res.Rejected[0].Slug)
	assert.Equal(t, "05a-01", res.Rejected[0].Code)
	assert.NotEmpty(t, res.Rejected[0].Reason)

	assert.Equal(t, []model.PortalStatus{
		{PortalName: "05a-01", Total: 5, Added: 4, Removed: 1},
		{PortalName: "99-01", Total: 1, Added: 1, Removed: 0},
		{PortalName: "03a-01", Total: 1, Added: 1, Removed: 0},
		{PortalName: "77-01", Total: 1, Added: 1, Removed: 0},
	}, res.Statuses)

	assert.Equal(t, []string{"05b-02"}, res.SkippedPortals)
	assert.Equal(t, []string{"Iowa"}, res.SkippedStates)
	assert.Equal(t, []string{"77-01"}, res.Unassigned)
	assert.Equal(t, 1, res.DeadLinks)
	assert.Equal(t, 6, f.links.seen)

	for _, name := range []string{report.NameAdded, report.NameRemoved, report.NameStatus, report.NameRejected} {
		path := res.Reports[name]
		assert.Equal(t, filepath.Join(f.reports, name+"_20240301.csv"), path)
		assert.FileExists(t, path)
	}
	status, err := os.ReadFile(res.Reports[report.NameStatus])
	require.NoError(t, err)
	assert.Equal(t, "portalName,total,new_items,deleted_items\n"+
		"05a-01,5,4,1\n99-01,1,1,0\n03a-01,1,1,0\n77-01,1,1,0\n", string(status))

	assert.True(t, f.ledger.complete)
	assert.NoError(t, f.ledger.failed)
	require.Len(t, f.ledger.portals, 5)
	assert.Equal(t, "05b-02", f.ledger.portals[3].Portal)
	assert.Contains(t, f.ledger.portals[3].Error, "http 500")

	// Today's snapshots were stored.
	ok, err := f.store.Exists(snapshot.Key{Portal: "05a-01", Date: "20240301"})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHarvester_ReusesTodaysSnapshot(t *testing.T) {
	f := newFixture(t)
	opts := testOptions()

	_, err := f.h.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, f.catalogs.calls[mnURL])

	res, err := f.h.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, 1, f.catalogs.calls[mnURL])
	assert.Equal(t, 2, f.catalogs.calls[badURL], "failed portals are retried")
	assert.Equal(t, []string{"b2", "z9", "i1", "u1"}, slugs(res.Added))
}

func TestHarvester_SkipLinkCheck(t *testing.T) {
	f := newFixture(t)
	opts := testOptions()
	opts.SkipLinkCheck = true
	opts.WriteRejected = false

	res, err := f.h.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"b2", "e5", "z9", "i1", "u1"}, slugs(res.Added))
	assert.Zero(t, f.links.seen)
	assert.Nil(t, res.LinkSummary)
	assert.NotContains(t, res.Reports, report.NameRejected)
}

func TestHarvester_NoPlacesKeepsFallback(t *testing.T) {
	f := newFixture(t)
	f.h.deps.Places = nil

	res, err := f.h.Run(context.Background(), testOptions())
	require.NoError(t, err)
	for _, r := range res.Added {
		switch r.Slug {
		case "z9":
			assert.Equal(t, "United States", r.SpatialCoverage)
		case "i1":
			assert.Equal(t, "Iowa", r.SpatialCoverage)
		default:
			assert.Empty(t, r.SpatialCoverage, r.Slug)
		}
	}
	assert.Empty(t, res.SkippedStates)
}

func TestHarvester_DuplicateSlugFirstWins(t *testing.T) {
	f := newFixture(t)
	f.catalogs.docs[iaURL] = catalogDoc(shapefileRecord("b2", "-93.65,41.55,-93.55,41.65"))

	res, err := f.h.Run(context.Background(), testOptions())
	require.NoError(t, err)
	assert.Equal(t, []string{"b2", "z9", "u1"}, slugs(res.Added))
	assert.Equal(t, "05a-01", res.Added[0].Code)
}

func TestHarvester_UnusableCatalogNotStored(t *testing.T) {
	f := newFixture(t)
	opts := testOptions()
	opts.Portals = testPortals[:1]
	f.catalogs.docs[mnURL] = `{"error":"maintenance"}`

	res, err := f.h.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Equal(t, []string{"05a-01"}, res.SkippedPortals)
	ok, err := f.store.Exists(snapshot.Key{Portal: "05a-01", Date: "20240301"})
	require.NoError(t, err)
	assert.False(t, ok)

	// The next day diffs against the last good snapshot.
	f.catalogs.docs[mnURL] = catalogDoc(
		shapefileRecord("a1", "-93.3,44.95,-93.25,45.0"),
		shapefileRecord("n7", "-93.3,44.95,-93.25,45.0"),
	)
	opts.Date = "20240302"
	res, err = f.h.Run(context.Background(), opts)
	require.NoError(t, err)
	assert.Empty(t, res.SkippedPortals)
	assert.Equal(t, []string{"n7"}, slugs(res.Added))
	assert.Len(t, res.Removed, 1)
}

type brokenStore struct {
	snapshot.Store
}

func (brokenStore) Exists(snapshot.Key) (bool, error) {
	return false, errors.New("disk gone")
}

func TestHarvester_StoreErrorAborts(t *testing.T) {
	f := newFixture(t)
	f.h.deps.Snapshots = brokenStore{}

	_, err := f.h.Run(context.Background(), testOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk gone")
	require.Error(t, f.ledger.failed)
	assert.False(t, f.ledger.complete)
}

func TestHarvester_Validation(t *testing.T) {
	_, err := New(Deps{}).Run(context.Background(), Options{Date: "20240301"})
	assert.Error(t, err)

	f := newFixture(t)
	_, err = f.h.Run(context.Background(), Options{})
	assert.Error(t, err)
}

func TestHarvester_Canceled(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.h.Run(ctx, testOptions())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestStateFor(t *testing.T) {
	tests := []struct {
		code string
		want string
		ok   bool
	}{
		{"05a-01", "Minnesota", true},
		{"05z-01", "Wisconsin", true},
		{"03", "Iowa", true},
		{"77-01", "", false},
		{"9", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := StateFor(tt.code, testStateCodes)
		assert.Equal(t, tt.want, got, tt.code)
		assert.Equal(t, tt.ok, ok, tt.code)
	}
}
