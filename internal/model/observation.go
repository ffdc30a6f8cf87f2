package model

// Observation is one normalized fact set about a reactor, produced from a
// single source row or lookup result. Immutable once built; nil pointers
// and zero values mean the source did not carry that field.
type Observation struct {
	Source  string
	Name    string
	Country string

	CountryCode    string
	IAEAId         int64
	Type           string
	Capacity       *int
	Status         Status
	Latitude       *float64
	Longitude      *float64
	GridConnection string

	// Attrs carries knowledge-lookup results keyed by canonical attribute
	// name (e.g. "WikipediaUrl", "WikidataOperator").
	Attrs map[string]string
}
