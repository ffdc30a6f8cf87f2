package enrich

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rotisserie/eris"

	"github.com/reactormap/reactorsync/internal/model"
)

// ReviewCollector gathers source rows that matched no canonical record.
// Candidates are surfaced for human review only; nothing here ever inserts
// into the canonical set.
type ReviewCollector struct {
	source     string
	candidates []model.Candidate
}

// NewReviewCollector creates a collector for the named source.
func NewReviewCollector(source string) *ReviewCollector {
	return &ReviewCollector{source: source}
}

// Add records an unmatched observation as a review candidate.
func (rc *ReviewCollector) Add(obs model.Observation, seenAt time.Time) {
	rc.candidates = append(rc.candidates, model.Candidate{
		Name:        obs.Name,
		Country:     obs.Country,
		CountryCode: obs.CountryCode,
		Capacity:    obs.Capacity,
		Status:      obs.Status,
		Source:      rc.source,
		SeenAt:      seenAt,
	})
}

// Candidates returns everything collected so far.
func (rc *ReviewCollector) Candidates() []model.Candidate {
	return rc.candidates
}

// WriteReport writes the collected candidates to
// <dir>/unmatched_<source>.json and returns the path. No candidates, no
// file.
func (rc *ReviewCollector) WriteReport(dir string) (string, error) {
	if len(rc.candidates) == 0 {
		return "", nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "review: create report dir %s", dir)
	}

	path := filepath.Join(dir, fmt.Sprintf("unmatched_%s.json", rc.source))
	data, err := json.MarshalIndent(rc.candidates, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "review: marshal candidates")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", eris.Wrapf(err, "review: write %s", path)
	}
	return path, nil
}
