package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/dcat-harvester/internal/model"
	"github.com/sells-group/dcat-harvester/internal/places"
)

func p(name, state string) places.Place {
	return places.Place{Name: name, State: state}
}

func TestSelect(t *testing.T) {
	a := []places.Place{p("A", "Ohio")}
	b := []places.Place{p("B", "Ohio")}
	c := []places.Place{p("C", "Ohio")}

	tests := []struct {
		name string
		m    places.Match
		want []places.Place
	}{
		{"contains wins", places.Match{Intersects: a, Within: b, Contains: c}, c},
		{"contains wins without intersects", places.Match{Contains: c}, c},
		{"nothing intersects", places.Match{Within: b}, nil},
		{"intersects when within empty", places.Match{Intersects: a}, a},
		{"within otherwise", places.Match{Intersects: a, Within: b}, b},
		{"empty", places.Match{}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.m))
		})
	}
}

func TestFormat(t *testing.T) {
	got := Format([]places.Place{
		p("Camden County", "New Jersey"),
		p("Delaware County", "Pennsylvania"),
		p("Philadelphia County", "Pennsylvania"),
	})
	assert.Equal(t,
		"Camden County, New Jersey|New Jersey|Delaware County, Pennsylvania|Philadelphia County, Pennsylvania|Pennsylvania",
		got)
}

func TestFormat_StateOrderIsFirstAppearance(t *testing.T) {
	got := Format([]places.Place{
		p("Minneapolis", "Minnesota"),
		p("Hudson", "Wisconsin"),
		p("Hennepin County", "Minnesota"),
	})
	assert.Equal(t,
		"Minneapolis, Minnesota|Hennepin County, Minnesota|Minnesota|Hudson, Wisconsin|Wisconsin",
		got)
}

func TestFormat_Empty(t *testing.T) {
	assert.Equal(t, "", Format(nil))
}

func TestForRow(t *testing.T) {
	m := &places.Match{
		Intersects: []places.Place{p("Minneapolis", "Minnesota"), p("Saint Paul", "Minnesota")},
		Within:     []places.Place{p("Minneapolis", "Minnesota")},
	}
	row := model.MetadataRow{Publisher: "Hennepin County", SpatialCoverage: "Minnesota"}

	assert.Equal(t, "Minneapolis, Minnesota|Minnesota", ForRow(row, m))
	assert.Equal(t, "Minnesota", ForRow(row, nil))
	assert.Equal(t, "Minnesota", ForRow(row, &places.Match{}))

	esri := model.MetadataRow{Publisher: model.EsriPublisher}
	assert.Equal(t, UnitedStates, ForRow(esri, m))
	assert.Equal(t, UnitedStates, ForRow(esri, nil))
}
