package domain

// SchemaVariant identifies which historical capture schema produced a snapshot.
// The capture process changed shape twice over the program's lifetime; all
// three forms are still present in stored history.
type SchemaVariant string

const (
	// VariantGrouped nests client entities under ownership groups.
	VariantGrouped SchemaVariant = "GROUPED"
	// VariantFlat carries a flat client list with an owner field per entity.
	VariantFlat SchemaVariant = "FLAT"
	// VariantLegacy is the original per-login result-group form.
	VariantLegacy SchemaVariant = "LEGACY"
)

// Snapshot is an immutable point-in-time capture of accounts and clients.
// Exactly one of Groups, Clients or LoginResults is populated depending on
// Variant; missing collections are treated as empty, never as an error.
type Snapshot struct {
	SnapshotID string        // deterministic hash, see idhash
	Brokerage  string        // brokerage label the capture was taken from
	CapturedAt int64         // Unix timestamp in milliseconds
	Variant    SchemaVariant // capture schema that produced this snapshot

	Accounts []*Account // per-login financial records

	Groups       []*OwnershipGroup // VariantGrouped client data
	Clients      []*ClientEntity   // VariantFlat client data
	LoginResults []*LoginResult    // VariantLegacy client data
}

// Account is a per-login financial record captured from the broker terminal.
type Account struct {
	Login      int64 // trading account number
	Balance    float64
	Equity     float64
	Commission float64
	Profit     float64
	Credit     float64
}

// OwnershipGroup holds the clients attributed to one distributor.
type OwnershipGroup struct {
	DistributorID   int64
	DistributorName string
	Clients         []*ClientEntity
}

// LoginResult is the legacy per-login capture group: one trading login with
// the client records the capture resolved for it.
type LoginResult struct {
	Login   int64
	Clients []*ClientEntity
}
