package normalization

import "github.com/HansLove/rebstool-sub000/internal/domain"

// mapGrouped flattens ownership groups into a client list. The group's
// distributor becomes the entity owner when the entity carries none.
func mapGrouped(s *domain.Snapshot) []*domain.ClientEntity {
	var out []*domain.ClientEntity
	for _, g := range s.Groups {
		if g == nil {
			continue
		}
		for _, c := range g.Clients {
			if c == nil {
				continue
			}
			e := c.Clone()
			if e.Owner == nil {
				e.Owner = &domain.OwnerRef{
					DistributorID: g.DistributorID,
					Name:          g.DistributorName,
				}
			}
			out = append(out, e)
		}
	}
	return out
}

// mapFlat copies the flat client list. Owners ride on the entities
// themselves in this variant.
func mapFlat(s *domain.Snapshot) []*domain.ClientEntity {
	out := make([]*domain.ClientEntity, 0, len(s.Clients))
	for _, c := range s.Clients {
		if c == nil {
			continue
		}
		out = append(out, c.Clone())
	}
	return out
}

// mapLegacy flattens per-login result groups. The legacy capture resolved
// clients per trading login, so the login is back-filled as the account
// number when the record lacks one.
func mapLegacy(s *domain.Snapshot) []*domain.ClientEntity {
	var out []*domain.ClientEntity
	for _, r := range s.LoginResults {
		if r == nil {
			continue
		}
		for _, c := range r.Clients {
			if c == nil {
				continue
			}
			e := c.Clone()
			if e.AccountNumber == 0 {
				e.AccountNumber = r.Login
			}
			out = append(out, e)
		}
	}
	return out
}
