package model

// Genres that qualify a record for the added-items report.
const (
	GenreGeospatial = "Geospatial data"
	GenreImagery    = "Aerial imagery"
)

// EsriPublisher marks rows whose coverage is the whole country.
const EsriPublisher = "Esri"

// MetadataRow is one normalized record in report column order.
type MetadataRow struct {
	Title            string `csv:"Title" json:"title"`
	AlternativeTitle string `csv:"Alternative Title" json:"alternative_title"`
	Description      string `csv:"Description" json:"description"`
	Language         string `csv:"Language" json:"language"`
	Creator          string `csv:"Creator" json:"creator"`
	Publisher        string `csv:"Publisher" json:"publisher"`
	Genre            string `csv:"Genre" json:"genre"`
	Subject          string `csv:"Subject" json:"subject"`
	Keyword          string `csv:"Keyword" json:"keyword"`
	DateIssued       string `csv:"Date Issued" json:"date_issued"`
	TemporalCoverage string `csv:"Temporal Coverage" json:"temporal_coverage"`
	DateRange        string `csv:"Date Range" json:"date_range"`
	SolrYear         string `csv:"Solr Year" json:"solr_year"`
	SpatialCoverage  string `csv:"Spatial Coverage" json:"spatial_coverage"`
	BoundingBox      string `csv:"Bounding Box" json:"bounding_box"`
	Type             string `csv:"Type" json:"type"`
	GeometryType     string `csv:"Geometry Type" json:"geometry_type"`
	Format           string `csv:"Format" json:"format"`
	Information      string `csv:"Information" json:"information"`
	Download         string `csv:"Download" json:"download"`
	MapServer        string `csv:"MapServer" json:"map_server"`
	FeatureServer    string `csv:"FeatureServer" json:"feature_server"`
	ImageServer      string `csv:"ImageServer" json:"image_server"`
	Slug             string `csv:"Slug" json:"slug"`
	Identifier       string `csv:"Identifier" json:"identifier"`
	Provenance       string `csv:"Provenance" json:"provenance"`
	Code             string `csv:"Code" json:"code"`
	IsPartOf         string `csv:"Is Part Of" json:"is_part_of"`
	Status           string `csv:"Status" json:"status"`
	AccrualMethod    string `csv:"Accrual Method" json:"accrual_method"`
	DateAccessioned  string `csv:"Date Accessioned" json:"date_accessioned"`
	Rights           string `csv:"Rights" json:"rights"`
	AccessRights     string `csv:"Access Rights" json:"access_rights"`
	Suppressed       string `csv:"Suppressed" json:"suppressed"`
	Child            string `csv:"Child" json:"child"`
}

// MetadataColumns lists the report header in order.
var MetadataColumns = []string{
	"Title", "Alternative Title", "Description", "Language", "Creator",
	"Publisher", "Genre", "Subject", "Keyword", "Date Issued",
	"Temporal Coverage", "Date Range", "Solr Year", "Spatial Coverage",
	"Bounding Box", "Type", "Geometry Type", "Format", "Information",
	"Download", "MapServer", "FeatureServer", "ImageServer", "Slug",
	"Identifier", "Provenance", "Code", "Is Part Of", "Status",
	"Accrual Method", "Date Accessioned", "Rights", "Access Rights",
	"Suppressed", "Child",
}

// WithCoverage returns a copy of r carrying the given Spatial Coverage.
func (r MetadataRow) WithCoverage(coverage string) MetadataRow {
	r.SpatialCoverage = coverage
	return r
}

// IsEsri reports whether the row was published by Esri itself.
func (r MetadataRow) IsEsri() bool {
	return r.Publisher == EsriPublisher
}

// LinkURL returns the URL a download check should hit.
func (r MetadataRow) LinkURL() string {
	if r.Format == "Imagery" {
		return r.ImageServer
	}
	return r.Download
}

// Portal is one entry of the portal list.
type Portal struct {
	Name            string `csv:"portalName"`
	URL             string `csv:"URL"`
	Provenance      string `csv:"provenance"`
	Publisher       string `csv:"publisher"`
	SpatialCoverage string `csv:"spatialCoverage,omitempty"`
}

// RemovedItem is one row of the removed-items report.
type RemovedItem struct {
	Identifier  string `csv:"identifier"`
	LandingPage string `csv:"landingPage"`
	PortalName  string `csv:"portalName"`
}

// PortalStatus is one row of the status report.
type PortalStatus struct {
	PortalName string `csv:"portalName"`
	Total      int    `csv:"total"`
	Added      int    `csv:"new_items"`
	Removed    int    `csv:"deleted_items"`
}

// RejectedBox is one row of the rejected bounding box report.
type RejectedBox struct {
	Slug        string `csv:"Slug"`
	Identifier  string `csv:"Identifier"`
	Code        string `csv:"Code"`
	BoundingBox string `csv:"Bounding Box"`
	Reason      string `csv:"Reason"`
}
