package enrich

import (
	"context"
	"net/url"
	"regexp"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reactormap/reactorsync/internal/model"
	"github.com/reactormap/reactorsync/pkg/wikidata"
	"github.com/reactormap/reactorsync/pkg/wikipedia"
)

// wikidataProperties maps the fixed property set onto canonical attribute
// names. propertyOrder fixes the lookup order so label resolution is
// deterministic.
var (
	wikidataProperties = map[string]string{
		"P137":  "WikidataOperator",
		"P127":  "WikidataOwner",
		"P84":   "WikidataArchitect",
		"P131":  "WikidataRegion",
		"P2257": "WikidataCoolingSystem",
		"P18":   "WikidataImage",
	}
	propertyOrder = []string{"P137", "P127", "P84", "P131", "P2257", "P18"}
)

const commonsThumbWidth = 300

// WikidataSource enriches records that already carry a Wikipedia URL with
// structured facts from the linked Wikidata entity. Results are cached per
// Wikipedia URL; entity labels get their own cache since operators and
// owners repeat across plants.
type WikidataSource struct {
	wikipedia wikipedia.Client
	wikidata  wikidata.Client
	cache     *Cache[map[string]string]
	labels    *Cache[string]
}

// NewWikidataSource creates the Wikidata source.
func NewWikidataSource(wp wikipedia.Client, wd wikidata.Client) *WikidataSource {
	return &WikidataSource{
		wikipedia: wp,
		wikidata:  wd,
		cache:     NewCache[map[string]string](),
		labels:    NewCache[string](),
	}
}

func (s *WikidataSource) Name() string { return "wikidata" }

func (s *WikidataSource) Run(ctx context.Context, rc *RunContext) error {
	log := zap.L().With(zap.String("component", "enrich.wikidata"))

	for _, r := range rc.Collection.Reactors() {
		if err := ctx.Err(); err != nil {
			return eris.Wrap(err, "wikidata: run canceled")
		}
		if r.WikipediaUrl == "" {
			continue
		}
		rc.Stats.Processed++

		attrs, found, err := s.resolve(ctx, r.WikipediaUrl)
		switch {
		case err != nil:
			log.Warn("lookup failed, continuing",
				zap.String("reactor", r.Name),
				zap.Error(err),
			)
		case found:
			rc.Stats.Matched++
			rc.Merge(r, model.Observation{
				Source:  s.Name(),
				Name:    r.Name,
				Country: r.Country,
				Attrs:   attrs,
			})
		}

		if err := rc.Checkpoint.Tick(); err != nil {
			return eris.Wrap(err, "wikidata: checkpoint")
		}
	}

	log.Info("entities resolved", zap.Int("lookups", s.cache.Len()))
	return nil
}

// resolve returns the attribute bag for a Wikipedia URL, consulting the
// run cache first. A URL whose page has no Wikidata item, or whose entity
// carries none of the fixed properties, caches as a definitive miss.
// Transport failures are returned and cached nowhere.
func (s *WikidataSource) resolve(ctx context.Context, wikipediaURL string) (map[string]string, bool, error) {
	if res, ok := s.cache.Get(wikipediaURL); ok {
		return res.Value, res.Found, nil
	}

	title := titleFromURL(wikipediaURL)
	if title == "" {
		s.cache.PutMiss(wikipediaURL)
		return nil, false, nil
	}

	qid, ok, err := s.wikipedia.WikibaseItem(ctx, title)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		s.cache.PutMiss(wikipediaURL)
		return nil, false, nil
	}

	claims, err := s.wikidata.Claims(ctx, qid, propertyOrder)
	if err != nil {
		return nil, false, err
	}

	attrs := map[string]string{}
	for _, prop := range propertyOrder {
		claim, ok := claims[prop]
		if !ok {
			continue
		}
		field := wikidataProperties[prop]

		switch claim.Kind {
		case wikidata.ClaimEntity:
			label, ok, err := s.label(ctx, claim.Value)
			if err != nil {
				return nil, false, err
			}
			if ok {
				attrs[field] = label
			}
		case wikidata.ClaimCommonsMedia:
			attrs[field] = wikidata.CommonsThumbURL(claim.Value, commonsThumbWidth)
		case wikidata.ClaimString:
			attrs[field] = claim.Value
		}
	}

	if len(attrs) == 0 {
		s.cache.PutMiss(wikipediaURL)
		return nil, false, nil
	}
	s.cache.Put(wikipediaURL, attrs)
	return attrs, true, nil
}

func (s *WikidataSource) label(ctx context.Context, qid string) (string, bool, error) {
	if res, ok := s.labels.Get(qid); ok {
		return res.Value, res.Found, nil
	}

	label, ok, err := s.wikidata.Label(ctx, qid)
	if err != nil {
		return "", false, err
	}
	if ok {
		s.labels.Put(qid, label)
	} else {
		s.labels.PutMiss(qid)
	}
	return label, ok, nil
}

var wikiTitle = regexp.MustCompile(`wikipedia\.org/wiki/(.+)$`)

// titleFromURL extracts the page title from a full Wikipedia URL.
func titleFromURL(wikipediaURL string) string {
	m := wikiTitle.FindStringSubmatch(wikipediaURL)
	if m == nil {
		return ""
	}
	title, err := url.PathUnescape(m[1])
	if err != nil {
		return m[1]
	}
	return title
}
