package normalization

import "github.com/HansLove/rebstool-sub000/internal/domain"

// ownerResolver resolves the owner of record for a client id.
//
// Priority order:
//  1. owner already present on the entity (flat-list field) - handled by the
//     caller before the resolver is consulted
//  2. ownership group membership, first matching group wins in source order
//  3. the "Unknown" sentinel
//
// The group scan is precomputed into a reverse index once per snapshot so
// resolution is deterministic and O(1) per entity.
type ownerResolver struct {
	byClientID map[int64]*domain.OwnerRef
}

func newOwnerResolver(s *domain.Snapshot) *ownerResolver {
	idx := make(map[int64]*domain.OwnerRef)
	for _, g := range s.Groups {
		if g == nil {
			continue
		}
		for _, c := range g.Clients {
			if c == nil || c.ClientID == 0 {
				continue
			}
			if _, exists := idx[c.ClientID]; exists {
				continue // first group wins
			}
			idx[c.ClientID] = &domain.OwnerRef{
				DistributorID: g.DistributorID,
				Name:          g.DistributorName,
			}
		}
	}
	return &ownerResolver{byClientID: idx}
}

// resolve returns the owner for a client id, falling back to the sentinel.
// Always returns a non-nil copy.
func (r *ownerResolver) resolve(clientID int64) *domain.OwnerRef {
	if ref, ok := r.byClientID[clientID]; ok {
		cp := *ref
		return &cp
	}
	return domain.UnknownOwner()
}
