package boundary

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/geojson"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/dcat-harvester/internal/places"
	"github.com/sells-group/dcat-harvester/internal/snapshot"
)

// ManifestName is the manifest file written at the root of the output dir.
const ManifestName = "manifest.yaml"

// Manifest records what each import produced.
type Manifest struct {
	Year         int          `yaml:"year"`
	FullGeometry bool         `yaml:"full_geometry"`
	UpdatedAt    time.Time    `yaml:"updated_at"`
	States       []StateEntry `yaml:"states"`
}

// StateEntry describes one state's reference files.
type StateEntry struct {
	State      string `yaml:"state"`
	FIPS       string `yaml:"fips"`
	Cities     int    `yaml:"cities"`
	Counties   int    `yaml:"counties"`
	CityFile   string `yaml:"city_file"`
	CountyFile string `yaml:"county_file,omitempty"`
}

// StatePath returns <dir>/<State>/<State>_<Level>_bbox.json.
func StatePath(dir, state string, level places.Level) string {
	return filepath.Join(dir, state, places.FileName(state, level)+".json")
}

// WriteGeoJSON writes boundaries as a FeatureCollection with City, County
// and State properties.
func WriteGeoJSON(path string, bs []places.Boundary) error {
	fc := geojson.FeatureCollection{Features: make([]*geojson.Feature, 0, len(bs))}
	for _, b := range bs {
		props := map[string]interface{}{
			"County": b.County,
			"State":  b.State,
		}
		if b.Level == places.City {
			props["City"] = b.City
		}
		fc.Features = append(fc.Features, &geojson.Feature{Geometry: b.Geom, Properties: props})
	}
	data, err := json.Marshal(&fc)
	if err != nil {
		return eris.Wrapf(err, "boundary: encode %s", path)
	}
	if err := snapshot.WriteAtomic(path, data); err != nil {
		return eris.Wrapf(err, "boundary: write %s", path)
	}
	return nil
}

// ReadManifest loads the manifest in dir. A missing file yields an empty
// manifest.
func ReadManifest(dir string) (*Manifest, error) {
	data, err := os.ReadFile(filepath.Join(dir, ManifestName))
	if os.IsNotExist(err) {
		return &Manifest{}, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "boundary: read manifest")
	}
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, eris.Wrap(err, "boundary: decode manifest")
	}
	return &m, nil
}

// Merge replaces the entries of re-imported states and keeps the rest,
// sorted by state.
func (m *Manifest) Merge(entries []StateEntry) {
	byState := make(map[string]StateEntry, len(m.States)+len(entries))
	for _, e := range m.States {
		byState[e.State] = e
	}
	for _, e := range entries {
		byState[e.State] = e
	}
	m.States = m.States[:0]
	for _, e := range byState {
		m.States = append(m.States, e)
	}
	sort.Slice(m.States, func(i, j int) bool { return m.States[i].State < m.States[j].State })
}

// WriteManifest writes m to dir.
func WriteManifest(dir string, m *Manifest) error {
	data, err := yaml.Marshal(m)
	if err != nil {
		return eris.Wrap(err, "boundary: encode manifest")
	}
	if err := snapshot.WriteAtomic(filepath.Join(dir, ManifestName), data); err != nil {
		return eris.Wrap(err, "boundary: write manifest")
	}
	return nil
}
