package enrich

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/net/html"

	"github.com/reactormap/reactorsync/internal/fetcher"
	"github.com/reactormap/reactorsync/internal/markup"
	"github.com/reactormap/reactorsync/internal/model"
	"github.com/reactormap/reactorsync/internal/normalize"
)

const (
	defaultPRISBaseURL = "https://pris.iaea.org/PRIS"
	countryListPath    = "/WorldStatistics/OperationalReactorsByCountry.aspx"
	defaultPRISSchema  = "pris-country-v2"
)

// PRISConfig configures the PRIS source.
type PRISConfig struct {
	// BaseURL overrides the PRIS site root (for testing).
	BaseURL string
	// Schema names the extraction schema version for country tables.
	Schema string
	// Details fetches per-unit detail pages to fill missing coordinates.
	Details bool
}

// PRISSource syncs the canonical set against the IAEA PRIS country tables:
// every unit listed for every country with reactors, one table row at a
// time.
type PRISSource struct {
	fetcher fetcher.Fetcher
	cfg     PRISConfig
}

// NewPRISSource creates the PRIS source.
func NewPRISSource(f fetcher.Fetcher, cfg PRISConfig) *PRISSource {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultPRISBaseURL
	}
	if cfg.Schema == "" {
		cfg.Schema = defaultPRISSchema
	}
	return &PRISSource{fetcher: f, cfg: cfg}
}

func (s *PRISSource) Name() string { return "pris" }

func (s *PRISSource) Run(ctx context.Context, rc *RunContext) error {
	log := zap.L().With(zap.String("component", "enrich.pris"))

	schema, err := markup.SchemaByName(s.cfg.Schema)
	if err != nil {
		return eris.Wrap(err, "pris: resolve schema")
	}

	// Without the country list there is nothing to sync: fatal.
	listPage, err := s.fetcher.DownloadString(ctx, s.cfg.BaseURL+countryListPath)
	if err != nil {
		return eris.Wrap(err, "pris: fetch country list")
	}
	countries := parseCountryLinks(listPage)
	if len(countries) == 0 {
		return eris.New("pris: no country links found in world statistics page")
	}
	log.Info("country list fetched", zap.Int("countries", len(countries)))

	for _, country := range countries {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "pris: run canceled")
		}

		pageURL := fmt.Sprintf("%s/CountryStatistics/CountryDetails.aspx?current=%s", s.cfg.BaseURL, country.Code)
		page, err := s.fetcher.DownloadString(ctx, pageURL)
		if err != nil {
			// One unreachable country page degrades, the run continues.
			log.Warn("country page fetch failed, skipping",
				zap.String("country", country.Name),
				zap.Error(err),
			)
			continue
		}

		var units int
		for row := range markup.Extract(page, schema) {
			obs := s.observation(row, country)
			r := rc.Observe(obs)
			units++

			if r != nil && s.cfg.Details && row.LinkID != 0 && (r.Latitude == nil || r.Longitude == nil) {
				s.fillCoordinates(ctx, rc, r, row.LinkID, log)
			}

			if err := rc.Checkpoint.Tick(); err != nil {
				return eris.Wrap(err, "pris: checkpoint")
			}
		}
		log.Debug("country processed",
			zap.String("country", country.Name),
			zap.Int("units", units),
		)
	}

	s.logWorldSummary(rc, log)
	return nil
}

func (s *PRISSource) observation(row markup.Row, c prisCountry) model.Observation {
	obs := model.Observation{
		Source:         s.Name(),
		Name:           row.Name(),
		Country:        c.Name,
		CountryCode:    normalize.CountryCode(c.Name),
		IAEAId:         row.LinkID,
		Type:           row.Text[markup.FieldType],
		Status:         normalize.MapStatus(row.Text[markup.FieldStatus]),
		GridConnection: row.Text[markup.FieldGridConnection],
	}
	if n, ok := row.Numbers[markup.FieldCapacity]; ok {
		v := n
		obs.Capacity = &v
	}
	return obs
}

var (
	detailLatitude  = regexp.MustCompile(`Latitude[:\s]+(-?\d+\.?\d*)`)
	detailLongitude = regexp.MustCompile(`Longitude[:\s]+(-?\d+\.?\d*)`)
)

// fillCoordinates fetches the unit's detail page and merges its coordinates.
// Only records missing a coordinate get here, and the merge goes through
// the usual guarded overwrite.
func (s *PRISSource) fillCoordinates(ctx context.Context, rc *RunContext, r *model.Reactor, unitID int64, log *zap.Logger) {
	pageURL := fmt.Sprintf("%s/CountryStatistics/ReactorDetails.aspx?current=%d", s.cfg.BaseURL, unitID)
	page, err := s.fetcher.DownloadString(ctx, pageURL)
	if err != nil {
		log.Warn("unit detail fetch failed, skipping coordinates",
			zap.String("reactor", r.Name),
			zap.Int64("unit_id", unitID),
			zap.Error(err),
		)
		return
	}

	obs := model.Observation{Source: s.Name()}
	if m := detailLatitude.FindStringSubmatch(page); m != nil {
		obs.Latitude = normalize.Coordinate(m[1])
	}
	if m := detailLongitude.FindStringSubmatch(page); m != nil {
		obs.Longitude = normalize.Coordinate(m[1])
	}
	if obs.Latitude == nil && obs.Longitude == nil {
		return
	}
	rc.Merge(r, obs)
}

func (s *PRISSource) logWorldSummary(rc *RunContext, log *zap.Logger) {
	var operational, totalMW int
	for _, r := range rc.Collection.Reactors() {
		if r.Status != model.StatusOperational {
			continue
		}
		operational++
		if r.Capacity != nil {
			totalMW += *r.Capacity
		}
	}
	log.Info("world summary",
		zap.Int("operational_units", operational),
		zap.Int("total_mw", totalMW),
	)
}

// prisCountry is one entry of the world statistics country list.
type prisCountry struct {
	Code string
	Name string
}

var countryHref = regexp.MustCompile(`CountryDetails\.aspx\?current=(\w+)`)

// parseCountryLinks extracts the country links from the world statistics
// page, in document order, deduplicated by code.
func parseCountryLinks(page string) []prisCountry {
	tz := html.NewTokenizer(strings.NewReader(page))

	var (
		countries []prisCountry
		seen      = map[string]bool{}
		inLink    bool
		code      string
		name      strings.Builder
	)

	for {
		switch tz.Next() {
		case html.ErrorToken:
			return countries

		case html.StartTagToken:
			tok := tz.Token()
			if tok.Data != "a" {
				continue
			}
			for _, attr := range tok.Attr {
				if attr.Key != "href" {
					continue
				}
				if m := countryHref.FindStringSubmatch(attr.Val); m != nil {
					inLink = true
					code = m[1]
					name.Reset()
				}
			}

		case html.TextToken:
			if inLink {
				name.WriteString(tz.Token().Data)
			}

		case html.EndTagToken:
			if tz.Token().Data != "a" || !inLink {
				continue
			}
			trimmed := strings.TrimSpace(name.String())
			if trimmed != "" && !seen[code] {
				seen[code] = true
				countries = append(countries, prisCountry{Code: code, Name: trimmed})
			}
			inLink = false
		}
	}
}
