package domain

// FieldChange records one monitored field that differs between two snapshots.
type FieldChange struct {
	Field    string
	OldValue any
	NewValue any
}

// ChangedEntity pairs an entity (current snapshot state) with the field-level
// changes detected against the previous snapshot.
type ChangedEntity struct {
	Entity       *ClientEntity
	FieldChanges []FieldChange
}

// ChangeSummary carries the headline counts for a change-set.
type ChangeSummary struct {
	NewCount     int
	RemovedCount int
	ChangedCount int
	TotalCurrent int
}

// ChangeSet classifies entities between two snapshots. It is always derived
// on demand from exactly two snapshots and never persisted independently.
type ChangeSet struct {
	PreviousID string
	CurrentID  string

	NewEntities     []*ClientEntity
	RemovedEntities []*ClientEntity
	ChangedEntities []*ChangedEntity

	Summary ChangeSummary
}
