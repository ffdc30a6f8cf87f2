package enrich

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactormap/reactorsync/internal/dataset"
	"github.com/reactormap/reactorsync/internal/model"
	"github.com/reactormap/reactorsync/pkg/wikidata"
	"github.com/reactormap/reactorsync/pkg/wikipedia"
)

type stubWikidataClient struct {
	claims map[string]map[string]wikidata.Claim
	labels map[string]string

	claimsCalls int
	labelCalls  map[string]int
	labelErr    error
}

func (c *stubWikidataClient) Claims(_ context.Context, qid string, _ []string) (map[string]wikidata.Claim, error) {
	c.claimsCalls++
	return c.claims[qid], nil
}

func (c *stubWikidataClient) Label(_ context.Context, qid string) (string, bool, error) {
	if c.labelCalls == nil {
		c.labelCalls = map[string]int{}
	}
	c.labelCalls[qid]++
	if c.labelErr != nil {
		return "", false, c.labelErr
	}
	label, ok := c.labels[qid]
	return label, ok, nil
}

// itemsOnlyWikipedia serves WikibaseItem lookups; the wikidata stage never
// searches or fetches pages.
type itemsOnlyWikipedia struct {
	items     map[string]string
	itemCalls int
}

func (c *itemsOnlyWikipedia) Search(context.Context, string, int) ([]wikipedia.SearchResult, error) {
	return nil, eris.New("unexpected Search call")
}

func (c *itemsOnlyWikipedia) PageInfo(context.Context, string) (wikipedia.Page, bool, error) {
	return wikipedia.Page{}, false, eris.New("unexpected PageInfo call")
}

func (c *itemsOnlyWikipedia) WikibaseItem(_ context.Context, title string) (string, bool, error) {
	c.itemCalls++
	item, ok := c.items[title]
	return item, ok, nil
}

func newWikidataRunContext(reactors []*model.Reactor) *RunContext {
	col := dataset.New(reactors)
	return &RunContext{
		Collection: col,
		Checkpoint: NewDisabledCheckpointer(),
		Review:     NewReviewCollector("wikidata"),
		Now:        func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) },
	}
}

const atuchaURL = "https://en.wikipedia.org/wiki/Atucha_Nuclear_Power_Plant"

func TestWikidataSource_Run(t *testing.T) {
	wp := &itemsOnlyWikipedia{items: map[string]string{
		"Atucha_Nuclear_Power_Plant": "Q1000",
	}}
	wd := &stubWikidataClient{
		claims: map[string]map[string]wikidata.Claim{
			"Q1000": {
				"P137": {Kind: wikidata.ClaimEntity, Value: "Q2000"},
				"P18":  {Kind: wikidata.ClaimCommonsMedia, Value: "Atucha.jpg"},
				"P2257": {
					Kind:  wikidata.ClaimString,
					Value: "river water",
				},
			},
		},
		labels: map[string]string{"Q2000": "Nucleoeléctrica Argentina"},
	}

	r := &model.Reactor{Name: "Atucha-1", Country: "Argentina", WikipediaUrl: atuchaURL}
	rc := newWikidataRunContext([]*model.Reactor{r})

	src := NewWikidataSource(wp, wd)
	require.NoError(t, src.Run(context.Background(), rc))

	assert.Equal(t, 1, rc.Stats.Processed)
	assert.Equal(t, 1, rc.Stats.Matched)
	assert.Equal(t, 1, rc.Stats.Updated)

	assert.Equal(t, "Nucleoeléctrica Argentina", r.WikidataOperator)
	assert.Equal(t, "river water", r.WikidataCoolingSystem)
	assert.Equal(t, wikidata.CommonsThumbURL("Atucha.jpg", 300), r.WikidataImage)
	assert.Empty(t, r.WikidataOwner)
}

func TestWikidataSource_Run_SkipsRecordsWithoutURL(t *testing.T) {
	wp := &itemsOnlyWikipedia{}
	wd := &stubWikidataClient{}

	rc := newWikidataRunContext([]*model.Reactor{
		{Name: "Bruce-1", Country: "Canada"},
		{Name: "Bruce-2", Country: "Canada"},
	})

	src := NewWikidataSource(wp, wd)
	require.NoError(t, src.Run(context.Background(), rc))

	assert.Equal(t, 0, rc.Stats.Processed)
	assert.Equal(t, 0, wp.itemCalls)
	assert.Equal(t, 0, wd.claimsCalls)
}

func TestWikidataSource_Run_SharedURLResolvedOnce(t *testing.T) {
	wp := &itemsOnlyWikipedia{items: map[string]string{
		"Atucha_Nuclear_Power_Plant": "Q1000",
	}}
	wd := &stubWikidataClient{
		claims: map[string]map[string]wikidata.Claim{
			"Q1000": {"P137": {Kind: wikidata.ClaimEntity, Value: "Q2000"}},
		},
		labels: map[string]string{"Q2000": "NA-SA"},
	}

	unit1 := &model.Reactor{Name: "Atucha-1", Country: "Argentina", WikipediaUrl: atuchaURL}
	unit2 := &model.Reactor{Name: "Atucha-2", Country: "Argentina", WikipediaUrl: atuchaURL}
	rc := newWikidataRunContext([]*model.Reactor{unit1, unit2})

	src := NewWikidataSource(wp, wd)
	require.NoError(t, src.Run(context.Background(), rc))

	assert.Equal(t, 2, rc.Stats.Matched)
	assert.Equal(t, "NA-SA", unit1.WikidataOperator)
	assert.Equal(t, "NA-SA", unit2.WikidataOperator)

	// One entity resolution serves every unit sharing the page.
	assert.Equal(t, 1, wp.itemCalls)
	assert.Equal(t, 1, wd.claimsCalls)
}

func TestWikidataSource_Run_LabelCacheSharedAcrossPlants(t *testing.T) {
	wp := &itemsOnlyWikipedia{items: map[string]string{
		"Gravelines_Nuclear_Power_Station": "Q1",
		"Paluel_Nuclear_Power_Plant":       "Q2",
	}}
	wd := &stubWikidataClient{
		claims: map[string]map[string]wikidata.Claim{
			"Q1": {"P137": {Kind: wikidata.ClaimEntity, Value: "Q100"}},
			"Q2": {"P137": {Kind: wikidata.ClaimEntity, Value: "Q100"}},
		},
		labels: map[string]string{"Q100": "Électricité de France"},
	}

	gravelines := &model.Reactor{
		Name: "Gravelines-1", Country: "France",
		WikipediaUrl: "https://en.wikipedia.org/wiki/Gravelines_Nuclear_Power_Station",
	}
	paluel := &model.Reactor{
		Name: "Paluel-1", Country: "France",
		WikipediaUrl: "https://en.wikipedia.org/wiki/Paluel_Nuclear_Power_Plant",
	}
	rc := newWikidataRunContext([]*model.Reactor{gravelines, paluel})

	src := NewWikidataSource(wp, wd)
	require.NoError(t, src.Run(context.Background(), rc))

	assert.Equal(t, "Électricité de France", gravelines.WikidataOperator)
	assert.Equal(t, "Électricité de France", paluel.WikidataOperator)

	// The shared operator entity resolves once.
	assert.Equal(t, 1, wd.labelCalls["Q100"])
}

func TestWikidataSource_Run_NoItemIsDefinitiveMiss(t *testing.T) {
	wp := &itemsOnlyWikipedia{}
	wd := &stubWikidataClient{}

	unit1 := &model.Reactor{Name: "Obscura-1", Country: "Nowhere", WikipediaUrl: "https://en.wikipedia.org/wiki/Obscura"}
	unit2 := &model.Reactor{Name: "Obscura-2", Country: "Nowhere", WikipediaUrl: "https://en.wikipedia.org/wiki/Obscura"}
	rc := newWikidataRunContext([]*model.Reactor{unit1, unit2})

	src := NewWikidataSource(wp, wd)
	require.NoError(t, src.Run(context.Background(), rc))

	assert.Equal(t, 2, rc.Stats.Processed)
	assert.Equal(t, 0, rc.Stats.Matched)

	// A page without a Wikidata item caches as a miss; one lookup total.
	assert.Equal(t, 1, wp.itemCalls)
}

func TestWikidataSource_Run_LabelFailureNotCached(t *testing.T) {
	wp := &itemsOnlyWikipedia{items: map[string]string{
		"Atucha_Nuclear_Power_Plant": "Q1000",
	}}
	wd := &stubWikidataClient{
		claims: map[string]map[string]wikidata.Claim{
			"Q1000": {"P137": {Kind: wikidata.ClaimEntity, Value: "Q2000"}},
		},
		labelErr: eris.New("api timeout"),
	}

	r := &model.Reactor{Name: "Atucha-1", Country: "Argentina", WikipediaUrl: atuchaURL}
	rc := newWikidataRunContext([]*model.Reactor{r})

	src := NewWikidataSource(wp, wd)
	require.NoError(t, src.Run(context.Background(), rc))

	// The run degrades: no attributes applied, and no partial bag cached.
	assert.Equal(t, 0, rc.Stats.Matched)
	assert.Empty(t, r.WikidataOperator)
	assert.Equal(t, 0, src.cache.Len())
}

func TestTitleFromURL(t *testing.T) {
	tests := []struct {
		name string
		url  string
		want string
	}{
		{"plain title", atuchaURL, "Atucha_Nuclear_Power_Plant"},
		{"percent encoded", "https://en.wikipedia.org/wiki/Ringhals_Nuclear_Power_Plant%C3%A9", "Ringhals_Nuclear_Power_Planté"},
		{"not a wiki url", "https://example.com/page", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, titleFromURL(tc.url))
		})
	}
}
