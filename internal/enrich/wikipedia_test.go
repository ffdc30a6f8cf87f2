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
	"github.com/reactormap/reactorsync/pkg/wikipedia"
)

type stubWikipediaClient struct {
	results map[string][]wikipedia.SearchResult
	pages   map[string]wikipedia.Page
	items   map[string]string

	searchCalls map[string]int
	// failSearches makes the next N Search calls fail.
	failSearches int
}

func (c *stubWikipediaClient) Search(_ context.Context, query string, _ int) ([]wikipedia.SearchResult, error) {
	if c.searchCalls == nil {
		c.searchCalls = map[string]int{}
	}
	c.searchCalls[query]++
	if c.failSearches > 0 {
		c.failSearches--
		return nil, eris.New("api timeout")
	}
	return c.results[query], nil
}

func (c *stubWikipediaClient) PageInfo(_ context.Context, title string) (wikipedia.Page, bool, error) {
	page, ok := c.pages[title]
	return page, ok, nil
}

func (c *stubWikipediaClient) WikibaseItem(_ context.Context, title string) (string, bool, error) {
	item, ok := c.items[title]
	return item, ok, nil
}

func (c *stubWikipediaClient) totalSearches() int {
	var n int
	for _, count := range c.searchCalls {
		n += count
	}
	return n
}

func newWikipediaRunContext(reactors []*model.Reactor) *RunContext {
	col := dataset.New(reactors)
	return &RunContext{
		Collection: col,
		Checkpoint: NewDisabledCheckpointer(),
		Review:     NewReviewCollector("wikipedia"),
		Now:        func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) },
	}
}

var gravelinesPage = wikipedia.Page{
	Title:     "Gravelines Nuclear Power Station",
	URL:       "https://en.wikipedia.org/wiki/Gravelines_Nuclear_Power_Station",
	Extract:   "The Gravelines Nuclear Power Station is a nuclear power plant in France.",
	Thumbnail: "https://upload.wikimedia.org/thumb.jpg",
}

func TestWikipediaSource_Run_SharedPlantLookup(t *testing.T) {
	client := &stubWikipediaClient{
		results: map[string][]wikipedia.SearchResult{
			"Gravelines nuclear power plant": {{Title: "Gravelines Nuclear Power Station", PageID: 1}},
		},
		pages: map[string]wikipedia.Page{
			"Gravelines Nuclear Power Station": gravelinesPage,
		},
	}

	unit1 := &model.Reactor{Name: "Gravelines-1", Country: "France"}
	unit2 := &model.Reactor{Name: "Gravelines-2", Country: "France"}
	rc := newWikipediaRunContext([]*model.Reactor{unit1, unit2})

	src := NewWikipediaSource(client)
	require.NoError(t, src.Run(context.Background(), rc))

	assert.Equal(t, 2, rc.Stats.Processed)
	assert.Equal(t, 2, rc.Stats.Matched)
	assert.Equal(t, 2, rc.Stats.Updated)
	assert.Equal(t, 0, rc.Stats.Unmatched)

	for _, r := range []*model.Reactor{unit1, unit2} {
		assert.Equal(t, gravelinesPage.URL, r.WikipediaUrl)
		assert.Equal(t, gravelinesPage.Title, r.WikipediaTitle)
		assert.Equal(t, gravelinesPage.Extract, r.WikipediaExtract)
		assert.Equal(t, gravelinesPage.Thumbnail, r.WikipediaThumbnail)
	}

	// Two units of one plant cost exactly one search.
	assert.Equal(t, 1, client.totalSearches())
}

func TestWikipediaSource_Run_LadderFallsThrough(t *testing.T) {
	client := &stubWikipediaClient{
		results: map[string][]wikipedia.SearchResult{
			// The most specific query hits something implausible.
			"Atucha nuclear power plant": {{Title: "List of bridges in Argentina", PageID: 7}},
			"Atucha":                     {{Title: "Atucha Nuclear Power Plant", PageID: 8}},
		},
		pages: map[string]wikipedia.Page{
			"Atucha Nuclear Power Plant": {
				Title: "Atucha Nuclear Power Plant",
				URL:   "https://en.wikipedia.org/wiki/Atucha_Nuclear_Power_Plant",
			},
		},
	}

	r := &model.Reactor{Name: "Atucha-1", Country: "Argentina"}
	rc := newWikipediaRunContext([]*model.Reactor{r})

	src := NewWikipediaSource(client)
	require.NoError(t, src.Run(context.Background(), rc))

	assert.Equal(t, 1, rc.Stats.Matched)
	assert.Equal(t, "https://en.wikipedia.org/wiki/Atucha_Nuclear_Power_Plant", r.WikipediaUrl)

	// Every ladder rung before the bare name was tried once.
	assert.Equal(t, 1, client.searchCalls["Atucha nuclear power plant"])
	assert.Equal(t, 1, client.searchCalls["Atucha"])
}

func TestWikipediaSource_Run_MissCachedPerPlant(t *testing.T) {
	client := &stubWikipediaClient{}

	unit1 := &model.Reactor{Name: "Obscura-1", Country: "Nowhere"}
	unit2 := &model.Reactor{Name: "Obscura-2", Country: "Nowhere"}
	rc := newWikipediaRunContext([]*model.Reactor{unit1, unit2})

	src := NewWikipediaSource(client)
	require.NoError(t, src.Run(context.Background(), rc))

	assert.Equal(t, 2, rc.Stats.Processed)
	assert.Equal(t, 0, rc.Stats.Matched)
	assert.Empty(t, unit1.WikipediaUrl)

	// The exhausted ladder is a definitive outcome: the second unit never
	// searches again. One call per ladder rung, not two.
	for query, count := range client.searchCalls {
		assert.Equal(t, 1, count, "query %q searched more than once", query)
	}
	assert.Equal(t, 5, client.totalSearches())
}

func TestWikipediaSource_Run_TransientFailureNotCached(t *testing.T) {
	client := &stubWikipediaClient{
		failSearches: 1,
		results: map[string][]wikipedia.SearchResult{
			"Gravelines nuclear power plant": {{Title: "Gravelines Nuclear Power Station", PageID: 1}},
		},
		pages: map[string]wikipedia.Page{
			"Gravelines Nuclear Power Station": gravelinesPage,
		},
	}

	unit1 := &model.Reactor{Name: "Gravelines-1", Country: "France"}
	unit2 := &model.Reactor{Name: "Gravelines-2", Country: "France"}
	rc := newWikipediaRunContext([]*model.Reactor{unit1, unit2})

	src := NewWikipediaSource(client)
	require.NoError(t, src.Run(context.Background(), rc))

	// The first unit's lookup failed and was not cached; the second unit
	// retried the plant and succeeded.
	assert.Equal(t, 1, rc.Stats.Matched)
	assert.Empty(t, unit1.WikipediaUrl)
	assert.Equal(t, gravelinesPage.URL, unit2.WikipediaUrl)
}

func TestWikipediaSource_Run_Canceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := newWikipediaRunContext([]*model.Reactor{{Name: "Bruce-1", Country: "Canada"}})
	src := NewWikipediaSource(&stubWikipediaClient{})
	require.Error(t, src.Run(ctx, rc))
}

func TestPlausibleTitle(t *testing.T) {
	tests := []struct {
		name  string
		title string
		base  string
		want  bool
	}{
		{"exact plant page", "Gravelines Nuclear Power Station", "Gravelines", true},
		{"partial word match", "Bruce Nuclear Generating Station", "Bruce", true},
		{"bare base name", "Gravelines", "Gravelines", true},
		{"unrelated page", "List of bridges in France", "Gravelines", false},
		{"mentions plant but not nuclear", "Gravelines (commune)", "Gravelines", false},
		{"nuclear but wrong plant", "Atucha Nuclear Power Plant", "Gravelines", false},
		{"multi word base, one word hit", "Saint-Laurent Nuclear Power Plant", "Saint Laurent", true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, plausibleTitle(tc.title, tc.base))
		})
	}
}
