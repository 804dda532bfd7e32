package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/rotisserie/eris"
)

// Catalog is one portal's DCAT data.json captured on a given date.
type Catalog struct {
	Portal  string
	Date    string // YYYYMMDD
	Records []CatalogRecord
	// Skipped counts dataset entries that were not JSON objects.
	Skipped int
}

// CatalogRecord is a single DCAT dataset entry. Every attribute is optional.
type CatalogRecord struct {
	Identifier   Field[string]                `json:"identifier"`
	Title        Field[string]                `json:"title"`
	Description  Field[string]                `json:"description"`
	Publisher    Field[Publisher]             `json:"publisher"`
	Distribution Field[[]Field[Distribution]] `json:"distribution"`
	Spatial      Field[string]                `json:"spatial"`
	Keyword      Field[[]string]              `json:"keyword"`
	Issued       Field[string]                `json:"issued"`
	LandingPage  Field[string]                `json:"landingPage"`
}

// Distribution is one entry of a record's distribution list.
type Distribution struct {
	Title       Field[string] `json:"title"`
	AccessURL   Field[string] `json:"accessURL"`
	DownloadURL Field[string] `json:"downloadURL"`
	MediaType   Field[string] `json:"mediaType"`
}

// Publisher is the DCAT publisher object with its values in document order.
type Publisher struct {
	Keys   []string
	Values []string
}

// UnmarshalJSON decodes a JSON object keeping key order. Non-string values
// are ignored.
func (p *Publisher) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return eris.Wrap(err, "publisher: read")
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return eris.New("publisher: not an object")
	}
	*p = Publisher{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return eris.Wrap(err, "publisher: read key")
		}
		key, _ := keyTok.(string)
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return eris.Wrapf(err, "publisher: read %q", key)
		}
		var s string
		if json.Unmarshal(raw, &s) != nil {
			continue
		}
		p.Keys = append(p.Keys, key)
		p.Values = append(p.Values, s)
	}
	return nil
}

// MarshalJSON writes the publisher back as an object.
func (p Publisher) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range p.Keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, _ := json.Marshal(k)
		vb, _ := json.Marshal(p.Values[i])
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// Last returns the final value of the object, which portals use for the
// display name.
func (p Publisher) Last() string {
	if len(p.Values) == 0 {
		return ""
	}
	return p.Values[len(p.Values)-1]
}

// ID returns the trimmed identifier, or "" when absent.
func (r CatalogRecord) ID() string {
	return strings.TrimSpace(r.Identifier.Or(""))
}

// Distributions returns the well-formed distribution entries in order.
func (r CatalogRecord) Distributions() []Distribution {
	list, ok := r.Distribution.Get()
	if !ok {
		return nil
	}
	out := make([]Distribution, 0, len(list))
	for _, d := range list {
		if v, ok := d.Get(); ok {
			out = append(out, v)
		}
	}
	return out
}

type catalogDocument struct {
	Dataset *[]json.RawMessage `json:"dataset"`
}

// DecodeCatalog parses a data.json document. Malformed dataset entries are
// counted in Skipped rather than failing the catalog.
func DecodeCatalog(portal, date string, data []byte) (*Catalog, error) {
	var doc catalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, eris.Wrapf(err, "model: decode catalog %s", portal)
	}
	if doc.Dataset == nil {
		return nil, eris.Errorf("model: catalog %s has no dataset array", portal)
	}

	cat := &Catalog{
		Portal:  portal,
		Date:    date,
		Records: make([]CatalogRecord, 0, len(*doc.Dataset)),
	}
	for _, raw := range *doc.Dataset {
		var rec CatalogRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			cat.Skipped++
			continue
		}
		cat.Records = append(cat.Records, rec)
	}
	return cat, nil
}

// Lookup indexes records by identifier. The first record wins when an
// identifier repeats.
func (c *Catalog) Lookup() map[string]CatalogRecord {
	if c == nil {
		return nil
	}
	out := make(map[string]CatalogRecord, len(c.Records))
	for _, r := range c.Records {
		id := r.ID()
		if id == "" {
			continue
		}
		if _, seen := out[id]; !seen {
			out[id] = r
		}
	}
	return out
}
