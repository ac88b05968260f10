package domain

// OwnerRef identifies the distributor a client is attributed to.
type OwnerRef struct {
	DistributorID int64
	Name          string
}

// UnknownOwnerName is the sentinel used when ownership cannot be resolved.
const UnknownOwnerName = "Unknown"

// UnknownOwner returns the sentinel owner used when no ownership metadata
// resolves for an entity.
func UnknownOwner() *OwnerRef {
	return &OwnerRef{Name: UnknownOwnerName}
}

// IsUnknown reports whether the reference is the unresolved-owner sentinel.
func (o *OwnerRef) IsUnknown() bool {
	return o == nil || (o.DistributorID == 0 && o.Name == UnknownOwnerName)
}

// ClientEntity is a retail trading client. ClientID is the stable identity
// key used to match the same client across snapshots.
type ClientEntity struct {
	ClientID      int64 // stable identity key, globally unique per snapshot
	Name          string
	Email         string
	Phone         string
	AccountNumber int64 // trading login

	Balance float64
	Equity  float64
	Credit  float64

	LastTradeAt       int64 // Unix ms, 0 when never traded
	LastTradeVolume   float64
	LastDepositAt     int64 // Unix ms, 0 when never deposited
	LastDepositAmount float64

	Funded       bool
	Archived     bool
	JourneyStage string

	Owner *OwnerRef
}

// Clone returns a deep copy of the entity. Snapshots are read-only; every
// component that hands entities onward copies first.
func (c *ClientEntity) Clone() *ClientEntity {
	if c == nil {
		return nil
	}
	cp := *c
	if c.Owner != nil {
		owner := *c.Owner
		cp.Owner = &owner
	}
	return &cp
}
