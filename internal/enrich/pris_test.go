package enrich

import (
	"context"
	"fmt"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reactormap/reactorsync/internal/dataset"
	"github.com/reactormap/reactorsync/internal/model"
)

type stubFetcher struct {
	pages map[string]string
	errs  map[string]error
	calls []string
}

func (f *stubFetcher) DownloadString(_ context.Context, url string) (string, error) {
	f.calls = append(f.calls, url)
	if err, ok := f.errs[url]; ok {
		return "", err
	}
	page, ok := f.pages[url]
	if !ok {
		return "", eris.Errorf("no fixture for %s", url)
	}
	return page, nil
}

func (f *stubFetcher) Download(ctx context.Context, url string) (io.ReadCloser, error) {
	page, err := f.DownloadString(ctx, url)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(strings.NewReader(page)), nil
}

const testPRISBase = "https://pris.test/PRIS"

func countryListPage(links ...string) string {
	return "<html><body><div>" + strings.Join(links, "\n") + "</div></body></html>"
}

func countryLink(code, name string) string {
	return fmt.Sprintf(`<a href="/PRIS/CountryStatistics/CountryDetails.aspx?current=%s">%s</a>`, code, name)
}

func countryPage(rows ...string) string {
	header := "<tr><th>Name</th><th>Type</th><th>Status</th><th>Location</th><th>Reference Unit Power</th><th>Capacity</th><th>Grid Connection</th></tr>"
	return `<html><body><table class="tablesorter">` + header + strings.Join(rows, "\n") + "</table></body></html>"
}

func unitRow(unitID int, name, typ, status, location, refPower, capacity, grid string) string {
	return fmt.Sprintf(
		`<tr><td><a href="ReactorDetails.aspx?current=%d">%s</a></td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td><td>%s</td></tr>`,
		unitID, name, typ, status, location, refPower, capacity, grid,
	)
}

func newPRISRunContext(reactors []*model.Reactor) *RunContext {
	col := dataset.New(reactors)
	return &RunContext{
		Collection: col,
		Checkpoint: NewDisabledCheckpointer(),
		Review:     NewReviewCollector("pris"),
		Now:        func() time.Time { return time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC) },
	}
}

func TestParseCountryLinks(t *testing.T) {
	page := countryListPage(
		countryLink("AR", "Argentina"),
		countryLink("CA", "  Canada  "),
		countryLink("AR", "Argentina again"),
		`<a href="/PRIS/Glossary.aspx">Glossary</a>`,
	)

	got := parseCountryLinks(page)
	assert.Equal(t, []prisCountry{
		{Code: "AR", Name: "Argentina"},
		{Code: "CA", Name: "Canada"},
	}, got)
}

func TestParseCountryLinks_NoLinks(t *testing.T) {
	assert.Empty(t, parseCountryLinks("<html><body><p>maintenance</p></body></html>"))
}

func TestPRISSource_Run(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		testPRISBase + countryListPath: countryListPage(countryLink("AR", "Argentina")),
		testPRISBase + "/CountryStatistics/CountryDetails.aspx?current=AR": countryPage(
			unitRow(11, "ATUCHA-1", "PHWR", "Operational", "Buenos Aires", "335", "340", "1974-03-19"),
			unitRow(12, "PHANTOM-1", "PWR", "Operational", "Nowhere", "900", "950", "2001-01-01"),
		),
	}}

	reactor := &model.Reactor{Name: "Atucha-1", Country: "Argentina"}
	rc := newPRISRunContext([]*model.Reactor{reactor})

	src := NewPRISSource(f, PRISConfig{BaseURL: testPRISBase})
	require.NoError(t, src.Run(context.Background(), rc))

	assert.Equal(t, 2, rc.Stats.Processed)
	assert.Equal(t, 1, rc.Stats.Matched)
	assert.Equal(t, 1, rc.Stats.Updated)
	assert.Equal(t, 1, rc.Stats.Unmatched)

	assert.EqualValues(t, 11, reactor.IAEAId)
	assert.Equal(t, "PHWR", reactor.Type)
	assert.Equal(t, model.StatusOperational, reactor.Status)
	require.NotNil(t, reactor.Capacity)
	assert.Equal(t, 340, *reactor.Capacity)
	assert.Equal(t, "1974-03-19", reactor.GridConnection)

	candidates := rc.Review.Candidates()
	require.Len(t, candidates, 1)
	assert.Equal(t, "PHANTOM-1", candidates[0].Name)
	assert.Equal(t, "Argentina", candidates[0].Country)
	assert.Equal(t, "pris", candidates[0].Source)
}

func TestPRISSource_Run_DetailsFillMissingCoordinates(t *testing.T) {
	detailURL := testPRISBase + "/CountryStatistics/ReactorDetails.aspx?current=11"
	f := &stubFetcher{pages: map[string]string{
		testPRISBase + countryListPath: countryListPage(countryLink("AR", "Argentina")),
		testPRISBase + "/CountryStatistics/CountryDetails.aspx?current=AR": countryPage(
			unitRow(11, "ATUCHA-1", "PHWR", "Operational", "Buenos Aires", "335", "340", "1974-03-19"),
			unitRow(12, "ATUCHA-2", "PHWR", "Operational", "Buenos Aires", "693", "745", "2014-06-27"),
		),
		detailURL: "<html><body>Latitude: -33.967 Longitude: -59.205</body></html>",
	}}

	lat, lon := -33.0, -59.0
	withCoords := &model.Reactor{Name: "Atucha-2", Country: "Argentina", Latitude: &lat, Longitude: &lon}
	missing := &model.Reactor{Name: "Atucha-1", Country: "Argentina"}
	rc := newPRISRunContext([]*model.Reactor{missing, withCoords})

	src := NewPRISSource(f, PRISConfig{BaseURL: testPRISBase, Details: true})
	require.NoError(t, src.Run(context.Background(), rc))

	require.NotNil(t, missing.Latitude)
	assert.InDelta(t, -33.967, *missing.Latitude, 1e-9)
	require.NotNil(t, missing.Longitude)
	assert.InDelta(t, -59.205, *missing.Longitude, 1e-9)

	// Only the coordinate-less unit warranted a detail fetch.
	for _, url := range f.calls {
		assert.NotContains(t, url, "ReactorDetails.aspx?current=12")
	}
	assert.Contains(t, f.calls, detailURL)
}

func TestPRISSource_Run_CountryPageFailureSkips(t *testing.T) {
	f := &stubFetcher{
		pages: map[string]string{
			testPRISBase + countryListPath: countryListPage(
				countryLink("AR", "Argentina"),
				countryLink("CA", "Canada"),
			),
			testPRISBase + "/CountryStatistics/CountryDetails.aspx?current=CA": countryPage(
				unitRow(21, "BRUCE-1", "PHWR", "Operational", "Ontario", "772", "830", "1977-01-14"),
			),
		},
		errs: map[string]error{
			testPRISBase + "/CountryStatistics/CountryDetails.aspx?current=AR": eris.New("503"),
		},
	}

	bruce := &model.Reactor{Name: "Bruce-1", Country: "Canada"}
	rc := newPRISRunContext([]*model.Reactor{bruce})

	src := NewPRISSource(f, PRISConfig{BaseURL: testPRISBase})
	require.NoError(t, src.Run(context.Background(), rc))

	assert.Equal(t, 1, rc.Stats.Processed)
	assert.Equal(t, 1, rc.Stats.Matched)
	assert.EqualValues(t, 21, bruce.IAEAId)
}

func TestPRISSource_Run_CountryListFailureIsFatal(t *testing.T) {
	f := &stubFetcher{errs: map[string]error{
		testPRISBase + countryListPath: eris.New("connection refused"),
	}}

	src := NewPRISSource(f, PRISConfig{BaseURL: testPRISBase})
	err := src.Run(context.Background(), newPRISRunContext(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "country list")
}

func TestPRISSource_Run_EmptyCountryListIsFatal(t *testing.T) {
	f := &stubFetcher{pages: map[string]string{
		testPRISBase + countryListPath: "<html><body></body></html>",
	}}

	src := NewPRISSource(f, PRISConfig{BaseURL: testPRISBase})
	err := src.Run(context.Background(), newPRISRunContext(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no country links")
}
