package bbox

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/dcat-harvester/internal/model"
)

func TestParse(t *testing.T) {
	b, err := Parse("-122.5000,45.3000,-122.4000,45.4000")
	require.NoError(t, err)
	assert.Equal(t, Box{MinX: -122.5, MinY: 45.3, MaxX: -122.4, MaxY: 45.4}, b)
	assert.Equal(t, "-122.50,45.30,-122.40,45.40", b.Key())

	b, err = Parse(" -93.2671, 44.8912 ,-93.1949,44.9786")
	require.NoError(t, err)
	assert.Equal(t, "-93.27,44.89,-93.19,44.98", b.Key())

	for _, bad := range []string{"", "1,2,3", "1,2,3,x", "NaN,1,2,3", "1,2,3,4,5"} {
		_, err := Parse(bad)
		assert.Error(t, err, bad)
	}
}

func TestCheck(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"city sized", "-122.5,45.3,-122.4,45.4", ""},
		{"world", "-180.0000,-90.0000,180.0000,90.0000", ReasonDegenerate},
		{"zero", "0,45.3,1,45.4", ReasonDegenerate},
		{"rounds to zero", "-0.004,45.3,1,45.4", ReasonDegenerate},
		{"wide", "-105,40,-94,45", ReasonTooLarge},
		{"tall", "-95,30,-94,40.01", ReasonTooLarge},
		{"exactly ten", "-100,30,-90,40", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := Parse(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, b.Check())
		})
	}
}

func TestPolygon(t *testing.T) {
	p := Box{MinX: -93.3, MinY: 44.9, MaxX: -93.2, MaxY: 45}.Polygon()
	assert.Equal(t, 4326, p.SRID())
	require.Equal(t, 1, p.NumLinearRings())
	assert.Equal(t, []float64{
		-93.3, 44.9, -93.2, 44.9, -93.2, 45, -93.3, 45, -93.3, 44.9,
	}, p.FlatCoords())
	bounds := p.Bounds()
	assert.Equal(t, -93.3, bounds.Min(0))
	assert.Equal(t, 45.0, bounds.Max(1))
}

func TestValidate(t *testing.T) {
	rows := []model.MetadataRow{
		{Slug: "ok", BoundingBox: "-93.3,44.9,-93.2,45.0"},
		{Slug: "world", BoundingBox: "-180,-90,180,90"},
		{Slug: "none", BoundingBox: ""},
		{Slug: "garbage", BoundingBox: "a,b,c,d"},
		{Slug: "big", BoundingBox: "-110,30,-90,45"},
		{Slug: "ok2", BoundingBox: "-93.31,44.91,-93.2,45.0"},
	}
	res := Validate(rows)

	require.Len(t, res.Clean, 2)
	assert.Equal(t, "ok", res.Clean[0].Row.Slug)
	assert.Equal(t, "ok2", res.Clean[1].Row.Slug)
	assert.Equal(t, 5, res.Clean[1].Index)
	assert.Equal(t, "-93.31,44.91,-93.20,45.00", res.Clean[1].Box.Key())
	// The row keeps its original four-decimal string.
	assert.Equal(t, "-93.31,44.91,-93.2,45.0", res.Clean[1].Row.BoundingBox)

	require.Len(t, res.Rejected, 2)
	assert.Equal(t, "world", res.Rejected[0].Row.Slug)
	assert.Equal(t, ReasonDegenerate, res.Rejected[0].Reason)
	assert.Equal(t, "big", res.Rejected[1].Row.Slug)
	assert.Equal(t, 4, res.Rejected[1].Index)
	assert.Equal(t, ReasonTooLarge, res.Rejected[1].Reason)

	require.Len(t, res.Unbounded, 2)
	assert.Equal(t, "none", res.Unbounded[0].Slug)
	assert.Equal(t, "garbage", res.Unbounded[1].Slug)
}
