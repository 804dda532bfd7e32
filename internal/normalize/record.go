// Package normalize turns DCAT catalog records into report rows.
package normalize

import (
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/sells-group/dcat-harvester/internal/model"
)

// Distribution titles that carry meaning.
const (
	distShapefile = "Shapefile"
	distEsriREST  = "Esri Rest API"
)

// DefaultIdentifierBaseURL prefixes the slug to form the public identifier.
const DefaultIdentifierBaseURL = "https://hub.arcgis.com/datasets/"

// Options tune row construction.
type Options struct {
	IdentifierBaseURL string
}

type formats struct {
	genre, format, typ, geometry, download, service string
}

// scanDistributions applies the Shapefile and Esri Rest API rules in
// distribution order.
func scanDistributions(dists []model.Distribution) formats {
	var f formats
	var titles []string
	for _, d := range dists {
		title, ok := d.Title.Get()
		if !ok {
			continue
		}
		titles = append(titles, title)

		switch title {
		case distShapefile:
			u, ok := d.DownloadURL.Get()
			if !ok {
				u, ok = d.AccessURL.Get()
			}
			if !ok {
				continue
			}
			f.genre = model.GenreGeospatial
			f.format = "Shapefile"
			f.geometry = "Vector"
			f.download, _, _ = strings.Cut(u, "?")

		case distEsriREST:
			u, ok := d.AccessURL.Get()
			if !ok {
				f.genre, f.format, f.typ, f.download = "", "", "", ""
				continue
			}
			f.service = u
			if u[strings.LastIndexByte(u, '/')+1:] == "ImageServer" {
				f.genre = model.GenreImagery
				f.format = "Imagery"
				f.typ = "Image|Service"
				f.geometry = "Image"
			}
		}
	}
	if slices.Contains(titles, distEsriREST) && slices.Contains(titles, distShapefile) {
		f.typ = "Dataset|Service"
	}
	return f
}

// BoundingBox rounds each of four comma-separated decimals to four places
// (half to even) and rejoins them. Anything else yields "".
func BoundingBox(spatial string) string {
	parts := strings.Split(spatial, ",")
	if len(parts) != 4 {
		return ""
	}
	out := make([]string, len(parts))
	for i, p := range parts {
		d, err := decimal.NewFromString(strings.TrimSpace(p))
		if err != nil {
			return ""
		}
		out[i] = d.StringFixedBank(4)
	}
	return strings.Join(out, ",")
}

// Slug returns the last path segment of an identifier.
func Slug(identifier string) string {
	return identifier[strings.LastIndexByte(identifier, '/')+1:]
}

// Record builds the report row for rec. ok is false when the record has
// neither a Shapefile nor an ImageServer distribution; such records are not
// reported. Missing or malformed fields become "".
func Record(rec model.CatalogRecord, p model.Portal, opts Options) (model.MetadataRow, bool) {
	f := scanDistributions(rec.Distributions())
	if f.genre == "" {
		return model.MetadataRow{}, false
	}

	base := opts.IdentifierBaseURL
	if base == "" {
		base = DefaultIdentifierBaseURL
	}

	slug := Slug(rec.ID())
	publisher := rec.Publisher.Or(model.Publisher{})

	row := model.MetadataRow{
		AlternativeTitle: CleanText(StripTags(rec.Title.Or(""))),
		Description:      Description(rec.Description.Or("")),
		Language:         "English",
		Creator:          strings.ReplaceAll(publisher.Last(), "\u2019", "'"),
		Publisher:        p.Publisher,
		Genre:            f.genre,
		Keyword:          strings.ReplaceAll(strings.Join(rec.Keyword.Or(nil), "|"), " ", ""),
		DateIssued:       StripTags(rec.Issued.Or("")),
		SpatialCoverage:  p.SpatialCoverage,
		BoundingBox:      BoundingBox(StripTags(rec.Spatial.Or(""))),
		Type:             f.typ,
		GeometryType:     f.geometry,
		Format:           f.format,
		Information:      StripTags(rec.LandingPage.Or("")),
		Download:         f.download,
		Slug:             slug,
		Identifier:       base + slug,
		Provenance:       p.Provenance,
		Code:             p.Name,
		IsPartOf:         p.Name,
		Status:           "Active",
		AccrualMethod:    "ArcGIS Hub",
		Rights:           "Public",
		Suppressed:       "FALSE",
		Child:            "FALSE",
	}
	if strings.Contains(f.service, "FeatureServer") {
		row.FeatureServer = f.service
	}
	if strings.Contains(f.service, "MapServer") {
		row.MapServer = f.service
	}
	if strings.Contains(f.service, "ImageServer") {
		row.ImageServer = f.service
	}
	return row, true
}
