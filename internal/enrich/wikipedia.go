package enrich

import (
	"context"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reactormap/reactorsync/internal/model"
	"github.com/reactormap/reactorsync/internal/normalize"
	"github.com/reactormap/reactorsync/pkg/wikipedia"
)

// WikipediaSource enriches canonical records with their Wikipedia page:
// URL, title, a short extract, and a thumbnail. Lookups are cached per base
// plant name so every unit of a multi-unit plant costs one search.
type WikipediaSource struct {
	client wikipedia.Client
	cache  *Cache[wikipedia.Page]
}

// NewWikipediaSource creates the Wikipedia source.
func NewWikipediaSource(client wikipedia.Client) *WikipediaSource {
	return &WikipediaSource{client: client, cache: NewCache[wikipedia.Page]()}
}

func (s *WikipediaSource) Name() string { return "wikipedia" }

func (s *WikipediaSource) Run(ctx context.Context, rc *RunContext) error {
	log := zap.L().With(zap.String("component", "enrich.wikipedia"))

	for _, r := range rc.Collection.Reactors() {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "wikipedia: run canceled")
		}
		rc.Stats.Processed++

		base := normalize.BasePlantName(r.Name)
		if base == "" {
			base = r.Name
		}

		page, found, err := s.resolve(ctx, base, r.Name, r.Country)
		switch {
		case err != nil:
			// Transient failure: no result, not cached, keep going.
			log.Warn("lookup failed, continuing",
				zap.String("reactor", r.Name),
				zap.Error(err),
			)
		case found:
			rc.Stats.Matched++
			rc.Merge(r, pageObservation(s.Name(), r, page))
		}

		if err := rc.Checkpoint.Tick(); err != nil {
			return eris.Wrap(err, "wikipedia: checkpoint")
		}
	}

	log.Info("plants resolved", zap.Int("lookups", s.cache.Len()))
	return nil
}

// resolve returns the plant's page, consulting the run cache first. Only
// definitive outcomes (page found, or the full ladder exhausted) are
// cached.
func (s *WikipediaSource) resolve(ctx context.Context, base, name, country string) (wikipedia.Page, bool, error) {
	if res, ok := s.cache.Get(base); ok {
		return res.Value, res.Found, nil
	}

	page, found, err := s.search(ctx, base, name, country)
	if err != nil {
		return wikipedia.Page{}, false, err
	}
	if found {
		s.cache.Put(base, page)
	} else {
		s.cache.PutMiss(base)
	}
	return page, found, nil
}

// search walks the query ladder from most to least specific and returns the
// first plausible page.
func (s *WikipediaSource) search(ctx context.Context, base, name, country string) (wikipedia.Page, bool, error) {
	queries := []string{
		fmt.Sprintf("%s nuclear power plant", base),
		fmt.Sprintf("%s nuclear power station", base),
		fmt.Sprintf("%s reactor", name),
		fmt.Sprintf("%s %s nuclear", base, country),
		base,
	}

	for _, query := range queries {
		results, err := s.client.Search(ctx, query, 3)
		if err != nil {
			return wikipedia.Page{}, false, err
		}

		for _, hit := range results {
			if !plausibleTitle(hit.Title, base) {
				continue
			}
			page, ok, err := s.client.PageInfo(ctx, hit.Title)
			if err != nil {
				return wikipedia.Page{}, false, err
			}
			if ok {
				return page, true, nil
			}
		}
	}
	return wikipedia.Page{}, false, nil
}

// plausibleTitle filters search hits: the title must mention the plant (the
// full base name or one of its words) and look nuclear-related, or equal
// the base name outright.
func plausibleTitle(title, base string) bool {
	t := strings.ToLower(title)
	b := strings.ToLower(base)

	mentioned := strings.Contains(t, b)
	if !mentioned {
		for _, word := range strings.Fields(b) {
			if strings.Contains(t, word) {
				mentioned = true
				break
			}
		}
	}
	if !mentioned {
		return false
	}

	for _, term := range []string{"nuclear", "power", "reactor", "station", "plant"} {
		if strings.Contains(t, term) {
			return true
		}
	}
	return t == b
}

func pageObservation(source string, r *model.Reactor, page wikipedia.Page) model.Observation {
	attrs := map[string]string{
		"WikipediaUrl":   page.URL,
		"WikipediaTitle": page.Title,
	}
	if page.Extract != "" {
		attrs["WikipediaExtract"] = page.Extract
	}
	if page.Thumbnail != "" {
		attrs["WikipediaThumbnail"] = page.Thumbnail
	}
	return model.Observation{
		Source:  source,
		Name:    r.Name,
		Country: r.Country,
		Attrs:   attrs,
	}
}
