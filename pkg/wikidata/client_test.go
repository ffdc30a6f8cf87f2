package wikidata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(WithBaseURL(srv.URL), WithHTTPClient(srv.Client()))
}

func TestClaims(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "wbgetentities", r.URL.Query().Get("action"))
		assert.Equal(t, "Q1374103", r.URL.Query().Get("ids"))
		assert.Equal(t, "claims", r.URL.Query().Get("props"))

		_, _ = w.Write([]byte(`{"entities":{"Q1374103":{"claims":{
			"P137":[{"mainsnak":{"datatype":"wikibase-item","datavalue":{"type":"wikibase-entityid","value":{"id":"Q132885"}}}}],
			"P18":[{"mainsnak":{"datatype":"commonsMedia","datavalue":{"type":"string","value":"Gravelines Nuclear Power Plant.jpg"}}}],
			"P999":[{"mainsnak":{"datatype":"time","datavalue":{"type":"time","value":{"time":"+1980-00-00T00:00:00Z"}}}}]
		}}}}`))
	})

	claims, err := c.Claims(context.Background(), "Q1374103", []string{"P137", "P18", "P127", "P999"})
	require.NoError(t, err)
	require.Len(t, claims, 2, "unsupported value kinds and absent properties are skipped")

	assert.Equal(t, Claim{Kind: ClaimEntity, Value: "Q132885"}, claims["P137"])
	assert.Equal(t, Claim{Kind: ClaimCommonsMedia, Value: "Gravelines Nuclear Power Plant.jpg"}, claims["P18"])
}

func TestClaims_UnknownEntity(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"entities":{"Q999999999":{"missing":""}}}`))
	})

	claims, err := c.Claims(context.Background(), "Q999999999", []string{"P137"})
	require.NoError(t, err)
	assert.Empty(t, claims)
}

func TestLabel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "labels", r.URL.Query().Get("props"))
		assert.Equal(t, "en", r.URL.Query().Get("languages"))

		_, _ = w.Write([]byte(`{"entities":{"Q132885":{"labels":{"en":{"language":"en","value":"Électricité de France"}}}}}`))
	})

	label, ok, err := c.Label(context.Background(), "Q132885")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Électricité de France", label)
}

func TestLabel_NoEnglishLabel(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"entities":{"Q42":{"labels":{"fr":{"language":"fr","value":"Exemple"}}}}}`))
	})

	_, ok, err := c.Label(context.Background(), "Q42")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestLabel_ServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, _, err := c.Label(context.Background(), "Q1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 500")
}

func TestCommonsThumbURL(t *testing.T) {
	// md5("Gravelines_Nuclear_Power_Plant.jpg") = accb75d1...
	got := CommonsThumbURL("Gravelines Nuclear Power Plant.jpg", 300)
	assert.Equal(t,
		"https://upload.wikimedia.org/wikipedia/commons/thumb/a/ac/Gravelines_Nuclear_Power_Plant.jpg/300px-Gravelines_Nuclear_Power_Plant.jpg",
		got,
	)
}
