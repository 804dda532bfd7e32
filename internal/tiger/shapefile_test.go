package tiger

import (
	"path/filepath"
	"testing"

	"github.com/jonas-p/go-shp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestShapefile(t *testing.T, path string) {
	t.Helper()
	w, err := shp.Create(path, shp.POLYGON)
	require.NoError(t, err)
	w.SetFields([]shp.Field{
		shp.StringField("NAME", 40),
		shp.StringField("STATEFP", 2),
	})

	n := w.Write(shpPolygon(square(-93.33, 44.89, -93.19, 45.05, true)))
	w.WriteAttribute(int(n), 0, "Minneapolis")
	w.WriteAttribute(int(n), 1, "27")

	n = w.Write(shpPolygon(square(-93.2, 44.89, -93.0, 45.0, true), square(-93.1, 44.9, -93.05, 44.95, false)))
	w.WriteAttribute(int(n), 0, "Saint Paul")
	w.WriteAttribute(int(n), 1, "27")
	w.Close()
}

func TestReadFeatures(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tl_2024_27_place.shp")
	writeTestShapefile(t, path)

	features, err := ReadFeatures(path)
	require.NoError(t, err)
	require.Len(t, features, 2)

	assert.Equal(t, "Minneapolis", features[0].Attr("NAME"))
	assert.Equal(t, "27", features[0].Attr("statefp"))
	assert.Equal(t, "", features[0].Attr("missing"))
	assert.Equal(t, 1, features[0].Geom.NumPolygons())

	assert.Equal(t, "Saint Paul", features[1].Attr("name"))
	require.Equal(t, 1, features[1].Geom.NumPolygons())
	assert.Equal(t, 2, features[1].Geom.Polygon(0).NumLinearRings())
}

func TestReadFeatures_MissingFile(t *testing.T) {
	_, err := ReadFeatures(filepath.Join(t.TempDir(), "nope.shp"))
	assert.Error(t, err)
}
