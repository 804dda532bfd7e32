// Package portal reads the list of open-data portals to harvest.
package portal

import (
	"encoding/csv"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/jszwec/csvutil"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/dcat-harvester/internal/model"
)

var requiredColumns = []string{"portalName", "URL"}

// Load reads the portal CSV at path.
func Load(path string) ([]model.Portal, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, eris.Wrap(err, "portal: open list")
	}
	defer f.Close() //nolint:errcheck
	return Read(f)
}

// Read decodes a portal CSV with header
// portalName,URL,provenance,publisher[,spatialCoverage]. Rows without a name
// or URL are skipped with a warning.
func Read(r io.Reader) ([]model.Portal, error) {
	log := zap.L().With(zap.String("component", "portal.list"))

	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	dec, err := csvutil.NewDecoder(cr)
	if err != nil {
		if err == io.EOF {
			return nil, eris.New("portal: list is empty")
		}
		return nil, eris.Wrap(err, "portal: read header")
	}
	for _, col := range requiredColumns {
		if !slices.Contains(dec.Header(), col) {
			return nil, eris.Errorf("portal: list is missing column %q", col)
		}
	}

	var portals []model.Portal
	seen := make(map[string]bool)
	for line := 2; ; line++ {
		var p model.Portal
		if err := dec.Decode(&p); err == io.EOF {
			break
		} else if err != nil {
			return nil, eris.Wrapf(err, "portal: decode line %d", line)
		}
		p.Name = strings.TrimSpace(p.Name)
		p.URL = strings.TrimSpace(p.URL)
		if p.Name == "" || p.URL == "" {
			log.Warn("skipping portal without name or url", zap.Int("line", line))
			continue
		}
		if seen[p.Name] {
			log.Warn("skipping duplicate portal", zap.String("portal", p.Name), zap.Int("line", line))
			continue
		}
		seen[p.Name] = true
		portals = append(portals, p)
	}
	return portals, nil
}

// Filter keeps the portals whose names are listed, in portal file order.
// An empty names list keeps everything.
func Filter(portals []model.Portal, names []string) []model.Portal {
	if len(names) == 0 {
		return portals
	}
	out := make([]model.Portal, 0, len(names))
	for _, p := range portals {
		if slices.Contains(names, p.Name) {
			out = append(out, p)
		}
	}
	return out
}
