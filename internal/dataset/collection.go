// Package dataset owns the canonical reactor collection for the duration
// of a run: loading it from the JSON file, maintaining the two match
// indexes, and writing snapshots back.
package dataset

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/reactormap/reactorsync/internal/model"
	"github.com/reactormap/reactorsync/internal/normalize"
)

// Collection is the in-memory canonical set plus its lookup indexes. It is
// owned by the single pipeline goroutine; nothing here locks.
type Collection struct {
	reactors []*model.Reactor
	byID     map[int64]*model.Reactor
	byKey    map[string]*model.Reactor
}

// Key builds the composite name+country match key.
func Key(name, country string) string {
	return normalize.MatchKey(name) + "|" + normalize.MatchKey(country)
}

// New builds a collection over the given records and indexes them.
func New(reactors []*model.Reactor) *Collection {
	c := &Collection{
		reactors: reactors,
		byID:     make(map[int64]*model.Reactor, len(reactors)),
		byKey:    make(map[string]*model.Reactor, len(reactors)),
	}
	for _, r := range reactors {
		c.index(r)
	}
	return c
}

// Load reads the canonical JSON file. A missing or unreadable file is a
// hard error: there is no meaningful run without the canonical set.
func Load(path string) (*Collection, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "dataset: read %s", path)
	}
	var reactors []*model.Reactor
	if err := json.Unmarshal(data, &reactors); err != nil {
		return nil, eris.Wrapf(err, "dataset: parse %s", path)
	}
	zap.L().Info("canonical set loaded",
		zap.String("path", path),
		zap.Int("reactors", len(reactors)),
	)
	return New(reactors), nil
}

func (c *Collection) index(r *model.Reactor) {
	if r.IAEAId != 0 {
		if _, dup := c.byID[r.IAEAId]; !dup {
			c.byID[r.IAEAId] = r
		}
	}
	key := Key(r.Name, r.Country)
	if _, dup := c.byKey[key]; !dup {
		c.byKey[key] = r
	}
}

// Len returns the number of canonical records.
func (c *Collection) Len() int { return len(c.reactors) }

// Reactors returns the records in file order. Callers mutate records in
// place; index-relevant mutations must go through Reindex.
func (c *Collection) Reactors() []*model.Reactor { return c.reactors }

// Match resolves an observation to a canonical record, or nil. Matching
// order, first hit wins: exact external-ID equality when both sides carry
// one, then the composite name+country key. No scoring, no creation.
func (c *Collection) Match(obs model.Observation) *model.Reactor {
	if obs.IAEAId != 0 {
		if r, ok := c.byID[obs.IAEAId]; ok {
			return r
		}
	}
	if r, ok := c.byKey[Key(obs.Name, obs.Country)]; ok {
		return r
	}
	return nil
}

// Reindex re-registers a record after an identity field changed, e.g. when
// a previously missing IAEA ID was attached.
func (c *Collection) Reindex(r *model.Reactor) {
	c.index(r)
}

// Snapshot serializes the full current set.
func (c *Collection) Snapshot() ([]byte, error) {
	data, err := json.MarshalIndent(c.reactors, "", "  ")
	if err != nil {
		return nil, eris.Wrap(err, "dataset: marshal snapshot")
	}
	return data, nil
}

// Save writes the full set to path atomically: temp file in the same
// directory, fsync, rename. An interrupted write never leaves a torn file
// at the destination.
func (c *Collection) Save(path string) error {
	data, err := c.Snapshot()
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return eris.Wrapf(err, "dataset: create temp file in %s", dir)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return eris.Wrap(err, "dataset: write snapshot")
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return eris.Wrap(err, "dataset: sync snapshot")
	}
	if err := tmp.Close(); err != nil {
		return eris.Wrap(err, "dataset: close snapshot")
	}
	if err := os.Rename(tmpName, path); err != nil {
		return eris.Wrapf(err, "dataset: rename snapshot to %s", path)
	}
	return nil
}
