// Package reconcile merges normalized observations into canonical records
// under the guarded-overwrite rules: a differing incoming value overwrites
// and is audited, an absent incoming value never erases existing data, and
// identical input produces no changes at all.
package reconcile

import (
	"sort"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/reactormap/reactorsync/internal/model"
)

// Apply merges obs into r. Every overwrite appends one ChangeRecord; if
// anything changed, LastUpdatedAt is touched exactly once. Applying the
// same observation twice yields zero new records the second time.
func Apply(r *model.Reactor, obs model.Observation, now time.Time) []model.ChangeRecord {
	var changes []model.ChangeRecord
	record := func(field, oldVal, newVal string) {
		changes = append(changes, model.ChangeRecord{
			Reactor:   r.Name,
			Country:   r.Country,
			Field:     field,
			OldValue:  oldVal,
			NewValue:  newVal,
			ChangedAt: now,
		})
	}

	applyString := func(field string, dst *string, incoming string) {
		// Absent incoming values are ignored: an empty lookup result must
		// not erase known-good data.
		if incoming == "" || *dst == incoming {
			return
		}
		record(field, *dst, incoming)
		*dst = incoming
	}

	if obs.Capacity != nil && (r.Capacity == nil || *r.Capacity != *obs.Capacity) {
		record("Capacity", model.FormatCapacity(r.Capacity), model.FormatCapacity(obs.Capacity))
		v := *obs.Capacity
		r.Capacity = &v
	}

	if obs.Status != "" && r.Status != obs.Status {
		record("Status", string(r.Status), string(obs.Status))
		r.Status = obs.Status
	}

	applyString("Type", &r.Type, obs.Type)
	applyString("CountryCode", &r.CountryCode, obs.CountryCode)
	applyString("GridConnection", &r.GridConnection, obs.GridConnection)

	applyCoordinate(&r.Latitude, obs.Latitude, "Latitude", record)
	applyCoordinate(&r.Longitude, obs.Longitude, "Longitude", record)

	// The external ID attaches once and is never reassigned: a conflicting
	// incoming ID is reported, not applied.
	if obs.IAEAId != 0 {
		switch {
		case r.IAEAId == 0:
			record("IAEAId", "", formatID(obs.IAEAId))
			r.IAEAId = obs.IAEAId
		case r.IAEAId != obs.IAEAId:
			zap.L().Warn("conflicting external ID, keeping existing",
				zap.String("reactor", r.Name),
				zap.Int64("existing", r.IAEAId),
				zap.Int64("incoming", obs.IAEAId),
			)
		}
	}

	// Enrichment attribute bags merge through the same guarded overwrite.
	// Sorted for a deterministic change-record order.
	keys := make([]string, 0, len(obs.Attrs))
	for k := range obs.Attrs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		incoming := obs.Attrs[k]
		existing, known := r.Attr(k)
		if !known {
			zap.L().Warn("unknown enrichment attribute, skipping",
				zap.String("reactor", r.Name),
				zap.String("attr", k),
			)
			continue
		}
		if incoming == "" || existing == incoming {
			continue
		}
		record(k, existing, incoming)
		r.SetAttr(k, incoming)
	}

	if len(changes) > 0 {
		r.LastUpdatedAt = now.UTC().Format(model.TimeFormat)
	}
	return changes
}

func applyCoordinate(dst **float64, incoming *float64, field string, record func(string, string, string)) {
	if incoming == nil {
		return
	}
	if *dst != nil && **dst == *incoming {
		return
	}
	record(field, formatCoord(*dst), formatCoord(incoming))
	v := *incoming
	*dst = &v
}

func formatCoord(f *float64) string {
	if f == nil {
		return ""
	}
	return strconv.FormatFloat(*f, 'f', -1, 64)
}

func formatID(id int64) string {
	return strconv.FormatInt(id, 10)
}
