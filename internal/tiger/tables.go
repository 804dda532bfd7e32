// Package tiger downloads Census TIGER/Line place and county shapefiles and
// reads them into go-geom features for the reference boundary store.
package tiger

import (
	"fmt"
	"sort"
	"strings"
)

// DefaultBaseURL is the Census Bureau TIGER/Line root.
const DefaultBaseURL = "https://www2.census.gov/geo/tiger"

// Product describes a TIGER/Line shapefile product.
type Product struct {
	Name     string // directory under TIGER<year>, e.g. "PLACE"
	File     string // file suffix, e.g. "place"
	National bool   // single national file rather than one per state
}

// Boundary products.
var (
	Place  = Product{Name: "PLACE", File: "place"}
	County = Product{Name: "COUNTY", File: "county", National: true}
)

// DownloadURL builds the download URL for a product. National products use
// tl_{year}_us_{file}.zip; per-state products use tl_{year}_{fips}_{file}.zip.
func DownloadURL(baseURL string, product Product, year int, stateFIPS string) string {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")
	scope := stateFIPS
	if product.National {
		scope = "us"
	}
	return fmt.Sprintf("%s/TIGER%d/%s/tl_%d_%s_%s.zip",
		baseURL, year, product.Name, year, scope, product.File)
}

// StateFIPS maps state names to 2-digit FIPS codes for all 50 states + DC.
var StateFIPS = map[string]string{
	"Alabama": "01", "Alaska": "02", "Arizona": "04", "Arkansas": "05",
	"California": "06", "Colorado": "08", "Connecticut": "09", "Delaware": "10",
	"District of Columbia": "11", "Florida": "12", "Georgia": "13", "Hawaii": "15",
	"Idaho": "16", "Illinois": "17", "Indiana": "18", "Iowa": "19",
	"Kansas": "20", "Kentucky": "21", "Louisiana": "22", "Maine": "23",
	"Maryland": "24", "Massachusetts": "25", "Michigan": "26", "Minnesota": "27",
	"Mississippi": "28", "Missouri": "29", "Montana": "30", "Nebraska": "31",
	"Nevada": "32", "New Hampshire": "33", "New Jersey": "34", "New Mexico": "35",
	"New York": "36", "North Carolina": "37", "North Dakota": "38", "Ohio": "39",
	"Oklahoma": "40", "Oregon": "41", "Pennsylvania": "42", "Rhode Island": "44",
	"South Carolina": "45", "South Dakota": "46", "Tennessee": "47", "Texas": "48",
	"Utah": "49", "Vermont": "50", "Virginia": "51", "Washington": "53",
	"West Virginia": "54", "Wisconsin": "55", "Wyoming": "56",
}

var nameByFIPS map[string]string

func init() {
	nameByFIPS = make(map[string]string, len(StateFIPS))
	for name, fips := range StateFIPS {
		nameByFIPS[fips] = name
	}
}

// StateName returns the state name for a FIPS code.
func StateName(fips string) (string, bool) {
	name, ok := nameByFIPS[fips]
	return name, ok
}

// AllStates returns every state name, sorted.
func AllStates() []string {
	names := make([]string, 0, len(StateFIPS))
	for name := range StateFIPS {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
