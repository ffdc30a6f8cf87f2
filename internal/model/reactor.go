// Package model defines the canonical reactor record and the types that
// flow between the pipeline stages.
package model

import (
	"encoding/json"
	"strconv"
	"time"
)

// Status is a reactor operating status. Values outside the known set are
// carried verbatim: an unrecognized upstream status passes through unchanged
// rather than being rejected.
type Status string

const (
	StatusOperational           Status = "Operational"
	StatusUnderConstruction     Status = "Under Construction"
	StatusShutdown              Status = "Shutdown"
	StatusSuspendedOperation    Status = "Suspended Operation"
	StatusSuspendedConstruction Status = "Suspended Construction"
	StatusPlanned               Status = "Planned"
)

// TimeFormat is the timestamp layout used in the canonical JSON file.
const TimeFormat = time.RFC3339

// Reactor is the durable canonical record being enriched across runs.
// Identity is the IAEA unit ID when present, otherwise the normalized
// (name, country) pair. Unknown JSON fields from the canonical file are
// preserved in Extra so the output stays a superset of the input.
type Reactor struct {
	Name        string `json:"Name"`
	Country     string `json:"Country"`
	CountryCode string `json:"CountryCode,omitempty"`
	IAEAId      int64  `json:"IAEAId,omitempty"`

	Type           string   `json:"Type,omitempty"`
	Capacity       *int     `json:"Capacity,omitempty"`
	Status         Status   `json:"Status,omitempty"`
	Latitude       *float64 `json:"Latitude,omitempty"`
	Longitude      *float64 `json:"Longitude,omitempty"`
	GridConnection string   `json:"GridConnection,omitempty"`

	WikipediaUrl       string `json:"WikipediaUrl,omitempty"`
	WikipediaTitle     string `json:"WikipediaTitle,omitempty"`
	WikipediaExtract   string `json:"WikipediaExtract,omitempty"`
	WikipediaThumbnail string `json:"WikipediaThumbnail,omitempty"`

	WikidataOperator      string `json:"WikidataOperator,omitempty"`
	WikidataOwner         string `json:"WikidataOwner,omitempty"`
	WikidataArchitect     string `json:"WikidataArchitect,omitempty"`
	WikidataRegion        string `json:"WikidataRegion,omitempty"`
	WikidataCoolingSystem string `json:"WikidataCoolingSystem,omitempty"`
	WikidataImage         string `json:"WikidataImage,omitempty"`

	LastUpdatedAt string `json:"LastUpdatedAt,omitempty"`

	// Extra holds canonical-file fields this pipeline does not model.
	Extra map[string]json.RawMessage `json:"-"`
}

// attrFields maps enrichment attribute names to string-field accessors.
// Attribute bags from the knowledge sources merge through these.
var attrFields = map[string]func(r *Reactor) *string{
	"WikipediaUrl":          func(r *Reactor) *string { return &r.WikipediaUrl },
	"WikipediaTitle":        func(r *Reactor) *string { return &r.WikipediaTitle },
	"WikipediaExtract":      func(r *Reactor) *string { return &r.WikipediaExtract },
	"WikipediaThumbnail":    func(r *Reactor) *string { return &r.WikipediaThumbnail },
	"WikidataOperator":      func(r *Reactor) *string { return &r.WikidataOperator },
	"WikidataOwner":         func(r *Reactor) *string { return &r.WikidataOwner },
	"WikidataArchitect":     func(r *Reactor) *string { return &r.WikidataArchitect },
	"WikidataRegion":        func(r *Reactor) *string { return &r.WikidataRegion },
	"WikidataCoolingSystem": func(r *Reactor) *string { return &r.WikidataCoolingSystem },
	"WikidataImage":         func(r *Reactor) *string { return &r.WikidataImage },
}

// Attr returns the current value of a named enrichment attribute, or
// ("", false) if the name is not a known attribute field.
func (r *Reactor) Attr(name string) (string, bool) {
	f, ok := attrFields[name]
	if !ok {
		return "", false
	}
	return *f(r), true
}

// SetAttr sets a named enrichment attribute. Returns false if the name is
// not a known attribute field; the value is not stored anywhere else.
func (r *Reactor) SetAttr(name, value string) bool {
	f, ok := attrFields[name]
	if !ok {
		return false
	}
	*f(r) = value
	return true
}

// reactorAlias avoids MarshalJSON/UnmarshalJSON recursion.
type reactorAlias Reactor

// UnmarshalJSON decodes a reactor object, stashing unmodeled fields in Extra.
func (r *Reactor) UnmarshalJSON(data []byte) error {
	var alias reactorAlias
	if err := json.Unmarshal(data, &alias); err != nil {
		return err
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	for _, known := range reactorJSONFields {
		delete(raw, known)
	}
	if len(raw) == 0 {
		raw = nil
	}

	*r = Reactor(alias)
	r.Extra = raw
	return nil
}

// MarshalJSON encodes the modeled fields plus any preserved Extra fields.
func (r Reactor) MarshalJSON() ([]byte, error) {
	base, err := json.Marshal(reactorAlias(r))
	if err != nil {
		return nil, err
	}
	if len(r.Extra) == 0 {
		return base, nil
	}

	var merged map[string]json.RawMessage
	if err := json.Unmarshal(base, &merged); err != nil {
		return nil, err
	}
	for k, v := range r.Extra {
		if _, taken := merged[k]; !taken {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}

// reactorJSONFields lists every modeled JSON key, kept in sync with the
// struct tags above.
var reactorJSONFields = []string{
	"Name", "Country", "CountryCode", "IAEAId",
	"Type", "Capacity", "Status", "Latitude", "Longitude", "GridConnection",
	"WikipediaUrl", "WikipediaTitle", "WikipediaExtract", "WikipediaThumbnail",
	"WikidataOperator", "WikidataOwner", "WikidataArchitect", "WikidataRegion",
	"WikidataCoolingSystem", "WikidataImage",
	"LastUpdatedAt",
}

// FormatCapacity renders a capacity pointer for change records and logs.
func FormatCapacity(c *int) string {
	if c == nil {
		return ""
	}
	return strconv.Itoa(*c)
}
