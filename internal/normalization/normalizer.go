// Package normalization extracts one canonical, deduplicated client list from
// a snapshot regardless of which capture schema produced it.
package normalization

import (
	"github.com/rs/zerolog"

	"github.com/HansLove/rebstool-sub000/internal/domain"
)

// Normalizer converts raw snapshots into canonical client entity lists.
type Normalizer struct {
	log zerolog.Logger
}

// New creates a Normalizer. Unresolvable ownership is logged as a soft
// warning on the supplied logger, never raised as an error.
func New(log zerolog.Logger) *Normalizer {
	return &Normalizer{log: log}
}

// Normalize returns the canonical client entity list for a snapshot.
// Deterministic: entities are deduplicated by ClientID first-seen-wins in
// source order, and every returned entity has a non-nil Owner. Missing or
// partial collections degrade to best-effort fill, never to an error.
func (n *Normalizer) Normalize(s *domain.Snapshot) []*domain.ClientEntity {
	if s == nil {
		return nil
	}

	var raw []*domain.ClientEntity
	switch Variant(s) {
	case domain.VariantGrouped:
		raw = mapGrouped(s)
	case domain.VariantFlat:
		raw = mapFlat(s)
	case domain.VariantLegacy:
		raw = mapLegacy(s)
	}

	resolver := newOwnerResolver(s)

	seen := make(map[int64]struct{}, len(raw))
	entities := make([]*domain.ClientEntity, 0, len(raw))
	for _, e := range raw {
		if e == nil || e.ClientID == 0 {
			continue
		}
		if _, dup := seen[e.ClientID]; dup {
			continue
		}
		seen[e.ClientID] = struct{}{}

		if e.Owner == nil {
			e.Owner = resolver.resolve(e.ClientID)
			if e.Owner.IsUnknown() {
				n.log.Warn().
					Int64("client_id", e.ClientID).
					Str("snapshot_id", s.SnapshotID).
					Msg("ownership unresolved, using sentinel owner")
			}
		}
		entities = append(entities, e)
	}

	return entities
}

// Variant returns the schema variant of a snapshot. Untagged snapshots from
// captures that predate the variant tag are classified by which collection
// they populate, in the documented priority order grouped > flat > legacy.
func Variant(s *domain.Snapshot) domain.SchemaVariant {
	if s.Variant != "" {
		return s.Variant
	}
	switch {
	case len(s.Groups) > 0:
		return domain.VariantGrouped
	case len(s.Clients) > 0:
		return domain.VariantFlat
	default:
		return domain.VariantLegacy
	}
}
