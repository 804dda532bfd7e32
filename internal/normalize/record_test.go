package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dcat-harvester/internal/model"
)

var testPortal = model.Portal{
	Name:       "05a-01",
	URL:        "https://gis.hennepin.us/data.json",
	Provenance: "Minnesota",
	Publisher:  "Hennepin County",
}

func decodeRecord(t *testing.T, doc string) model.CatalogRecord {
	t.Helper()
	var rec model.CatalogRecord
	require.NoError(t, json.Unmarshal([]byte(doc), &rec))
	return rec
}

func TestRecord_Shapefile(t *testing.T) {
	rec := decodeRecord(t, `{
		"identifier": "https://gis.hennepin.us/datasets/abc123_0",
		"title": "<b>Parcels</b>  2024",
		"description": "<p>Tax parcels\nfor the county’s “official” use</p>",
		"publisher": {"name": "Hennepin County’s GIS"},
		"distribution": [
			{"title": "Shapefile", "downloadURL": "https://gis.hennepin.us/a.zip?outSR=4326"},
			{"title": "CSV", "downloadURL": "https://gis.hennepin.us/a.csv"}
		],
		"spatial": "-93.7681,44.7863,-93.1774,45.2466",
		"keyword": ["land use", "parcels"],
		"issued": "2024-01-02T00:00:00.000Z",
		"landingPage": "https://gis.hennepin.us/datasets/abc123_0"
	}`)

	row, ok := Record(rec, testPortal, Options{})
	require.True(t, ok)

	assert.Equal(t, "", row.Title)
	assert.Equal(t, "Parcels 2024", row.AlternativeTitle)
	assert.Equal(t, `Tax parcels for the county's "official" use`, row.Description)
	assert.Equal(t, "English", row.Language)
	assert.Equal(t, "Hennepin County's GIS", row.Creator)
	assert.Equal(t, "Hennepin County", row.Publisher)
	assert.Equal(t, model.GenreGeospatial, row.Genre)
	assert.Equal(t, "landuse|parcels", row.Keyword)
	assert.Equal(t, "2024-01-02T00:00:00.000Z", row.DateIssued)
	assert.Equal(t, "-93.7681,44.7863,-93.1774,45.2466", row.BoundingBox)
	assert.Equal(t, "", row.Type)
	assert.Equal(t, "Vector", row.GeometryType)
	assert.Equal(t, "Shapefile", row.Format)
	assert.Equal(t, "https://gis.hennepin.us/datasets/abc123_0", row.Information)
	assert.Equal(t, "https://gis.hennepin.us/a.zip", row.Download)
	assert.Equal(t, "abc123_0", row.Slug)
	assert.Equal(t, "https://hub.arcgis.com/datasets/abc123_0", row.Identifier)
	assert.Equal(t, "Minnesota", row.Provenance)
	assert.Equal(t, "05a-01", row.Code)
	assert.Equal(t, "05a-01", row.IsPartOf)
	assert.Equal(t, "Active", row.Status)
	assert.Equal(t, "ArcGIS Hub", row.AccrualMethod)
	assert.Equal(t, "Public", row.Rights)
	assert.Equal(t, "FALSE", row.Suppressed)
	assert.Equal(t, "FALSE", row.Child)
}

func TestRecord_ShapefileFallsBackToAccessURL(t *testing.T) {
	rec := decodeRecord(t, `{"identifier":"x/s1","distribution":[{"title":"Shapefile","accessURL":"https://h/a.zip?f=1"}]}`)
	row, ok := Record(rec, testPortal, Options{IdentifierBaseURL: "https://example.org/ds/"})
	require.True(t, ok)
	assert.Equal(t, "https://h/a.zip", row.Download)
	assert.Equal(t, "https://example.org/ds/s1", row.Identifier)
}

func TestRecord_ImageServer(t *testing.T) {
	rec := decodeRecord(t, `{"identifier":"x/img","distribution":[
		{"title":"Esri Rest API","accessURL":"https://h/arcgis/rest/services/Ortho2020/ImageServer"}]}`)
	row, ok := Record(rec, testPortal, Options{})
	require.True(t, ok)
	assert.Equal(t, model.GenreImagery, row.Genre)
	assert.Equal(t, "Imagery", row.Format)
	assert.Equal(t, "Image|Service", row.Type)
	assert.Equal(t, "Image", row.GeometryType)
	assert.Equal(t, "https://h/arcgis/rest/services/Ortho2020/ImageServer", row.ImageServer)
	assert.Empty(t, row.FeatureServer)
	assert.Empty(t, row.MapServer)
	assert.Equal(t, row.ImageServer, row.LinkURL())
}

func TestRecord_ShapefileAndService(t *testing.T) {
	rec := decodeRecord(t, `{"identifier":"x/both","distribution":[
		{"title":"Esri Rest API","accessURL":"https://h/arcgis/rest/services/Roads/FeatureServer/0"},
		{"title":"Shapefile","downloadURL":"https://h/roads.zip"}]}`)
	row, ok := Record(rec, testPortal, Options{})
	require.True(t, ok)
	assert.Equal(t, "Dataset|Service", row.Type)
	assert.Equal(t, model.GenreGeospatial, row.Genre)
	assert.Equal(t, "https://h/arcgis/rest/services/Roads/FeatureServer/0", row.FeatureServer)
	assert.Empty(t, row.ImageServer)
}

func TestRecord_Dropped(t *testing.T) {
	tests := map[string]string{
		"csv only":              `{"identifier":"x/1","distribution":[{"title":"CSV","downloadURL":"https://h/a.csv"}]}`,
		"feature service only":  `{"identifier":"x/2","distribution":[{"title":"Esri Rest API","accessURL":"https://h/FeatureServer/0"}]}`,
		"rest api without url":  `{"identifier":"x/3","distribution":[{"title":"Shapefile","downloadURL":"https://h/a.zip"},{"title":"Esri Rest API"}]}`,
		"shapefile without url": `{"identifier":"x/4","distribution":[{"title":"Shapefile"}]}`,
		"no distribution":       `{"identifier":"x/5"}`,
		"distribution object":   `{"identifier":"x/6","distribution":{"title":"Shapefile","downloadURL":"https://h/a.zip"}}`,
	}
	for name, doc := range tests {
		t.Run(name, func(t *testing.T) {
			_, ok := Record(decodeRecord(t, doc), testPortal, Options{})
			assert.False(t, ok)
		})
	}
}

func TestRecord_SkipsMalformedDistributions(t *testing.T) {
	rec := decodeRecord(t, `{"identifier":"x/7","title":42,"distribution":[
		"junk", {"downloadURL":"https://h/untitled.zip"}, {"title":"Shapefile","downloadURL":"https://h/a.zip"}]}`)
	row, ok := Record(rec, testPortal, Options{})
	require.True(t, ok)
	assert.Equal(t, "https://h/a.zip", row.Download)
	assert.Empty(t, row.AlternativeTitle)
}

func TestRecord_Deterministic(t *testing.T) {
	doc := `{"identifier":"x/det","title":"A  B","keyword":["b","a"],"spatial":"1.23456,2,3,4",
		"distribution":[{"title":"Shapefile","downloadURL":"https://h/a.zip"}]}`
	first, ok := Record(decodeRecord(t, doc), testPortal, Options{})
	require.True(t, ok)
	for i := 0; i < 5; i++ {
		again, _ := Record(decodeRecord(t, doc), testPortal, Options{})
		assert.Equal(t, first, again)
	}
}

func TestBoundingBox(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"-122.5,45.3,-122.4,45.4", "-122.5000,45.3000,-122.4000,45.4000"},
		{" -93.12345, 44.12355 ,-93,45", "-93.1234,44.1236,-93.0000,45.0000"},
		{"-180,-90,180,90", "-180.0000,-90.0000,180.0000,90.0000"},
		{"", ""},
		{"1,2,3", ""},
		{"1,2,3,4,5", ""},
		{"a,b,c,d", ""},
		{"{{extent:computeSpatialProperty}}", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, BoundingBox(tt.in))
		})
	}
}

func TestSlug(t *testing.T) {
	assert.Equal(t, "abc_0", Slug("https://h/datasets/abc_0"))
	assert.Equal(t, "plain", Slug("plain"))
	assert.Equal(t, "", Slug("https://h/datasets/"))
}
