package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HansLove/rebstool-sub000/internal/domain"
)

func entity(id int64, name string) *domain.ClientEntity {
	return &domain.ClientEntity{ClientID: id, Name: name}
}

func testEntities() []*domain.ClientEntity {
	return []*domain.ClientEntity{
		{ClientID: 1001, Name: "John Smith", Email: "john.smith@mail.com", Phone: "+31 6 1234 5678", AccountNumber: 88001},
		{ClientID: 1002, Name: "John Smithson", Email: "smithson@mail.com", Phone: "+31 6 9876 5432", AccountNumber: 88002},
		{ClientID: 1003, Name: "Maria Smith", Email: "maria@mail.com", AccountNumber: 88003},
		{ClientID: 1004, Name: "Pedro Alvarez", Email: "pedro@mail.com", AccountNumber: 88004},
		{ClientID: 5678, Name: "Nina Berg", Email: "nina@mail.com", AccountNumber: 90210},
	}
}

func TestSearch_ShortQueryReturnsEmpty(t *testing.T) {
	if got := Search(testEntities(), "j"); got != nil {
		t.Errorf("expected nil for under-length query, got %d results", len(got))
	}
	if got := Search(testEntities(), "  "); got != nil {
		t.Errorf("expected nil for blank query, got %d results", len(got))
	}
}

// Exact full-name match ranks strictly first against a near-duplicate.
func TestSearch_ExactNamePrecedence(t *testing.T) {
	results := Search(testEntities(), "John Smith")
	require.NotEmpty(t, results)

	assert.Equal(t, "John Smith", results[0].Entity.Name)
	assert.Equal(t, "name_exact", results[0].MatchType)
	if len(results) > 1 {
		assert.Greater(t, results[0].Score, results[1].Score)
	}
}

func TestSearch_CaseAndSpaceNormalized(t *testing.T) {
	results := Search(testEntities(), "  jOhN   sMiTh ")
	require.NotEmpty(t, results)
	assert.Equal(t, "John Smith", results[0].Entity.Name)
	assert.Equal(t, "name_exact", results[0].MatchType)
}

func TestSearch_ReorderedWordsStillMatch(t *testing.T) {
	results := Search(testEntities(), "smith maria")
	require.NotEmpty(t, results)
	assert.Equal(t, "Maria Smith", results[0].Entity.Name)
	assert.Equal(t, "name_words", results[0].MatchType)
}

func TestSearch_OrderedWordsOutscoreReordered(t *testing.T) {
	entities := []*domain.ClientEntity{
		entity(1, "Maria del Smith"),
		entity(2, "Smith Maria"),
	}
	results := Search(entities, "maria smith")
	require.Len(t, results, 2)
	assert.Equal(t, "Maria del Smith", results[0].Entity.Name, "in-order word match ranks higher")
}

func TestSearch_PrefixAndContains(t *testing.T) {
	results := Search(testEntities(), "pe")
	require.NotEmpty(t, results)
	assert.Equal(t, "Pedro Alvarez", results[0].Entity.Name)
	assert.Equal(t, "name_prefix", results[0].MatchType)
}

// A query exactly matching a numeric id returns only identity-matched
// results, with no name dilution.
func TestSearch_NumericExactIDShortCircuits(t *testing.T) {
	results := Search(testEntities(), "5678")
	require.Len(t, results, 1)
	assert.Equal(t, int64(5678), results[0].Entity.ClientID)
	assert.Equal(t, "id_exact", results[0].MatchType)
	assert.Equal(t, scoreIDExact, results[0].Score)
}

func TestSearch_NumericExactAccountNumber(t *testing.T) {
	results := Search(testEntities(), "90210")
	require.Len(t, results, 1)
	assert.Equal(t, int64(5678), results[0].Entity.ClientID)
	assert.Equal(t, "account_exact", results[0].MatchType)
}

func TestSearch_NumericPrefixTiers(t *testing.T) {
	results := Search(testEntities(), "100")
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.Equal(t, "id_prefix", r.MatchType)
		assert.Equal(t, scoreIDPrefix, r.Score)
	}
	assert.Len(t, results, 4, "clients 1001-1004 share the id prefix")
}

func TestSearch_PhoneMatch(t *testing.T) {
	// Digits of +31 6 1234 5678, substring but not prefix of John Smith's phone.
	results := Search(testEntities(), "1234 5678")
	require.NotEmpty(t, results)
	assert.Equal(t, int64(1001), results[0].Entity.ClientID)
	assert.Equal(t, "phone_contains", results[0].MatchType)
}

func TestSearch_EmailSingleWordOnly(t *testing.T) {
	results := Search(testEntities(), "smithson@mail.com")
	require.NotEmpty(t, results)
	assert.Equal(t, int64(1002), results[0].Entity.ClientID)
	assert.Equal(t, "email_exact", results[0].MatchType)
}

// When several tiers score, the label reflects the strongest one even if a
// weaker tier was evaluated first.
func TestSearch_MatchTypeIsDominantTier(t *testing.T) {
	entities := []*domain.ClientEntity{
		{ClientID: 1, Name: "Joanna Reyes", Email: "ann@mail.com"},
	}
	results := Search(entities, "ann")
	require.Len(t, results, 1)

	// name_contains scores 2000, email_prefix 3000
	assert.Equal(t, "email_prefix", results[0].MatchType)
	assert.Equal(t, scoreNameContains+scoreEmailPrefix, results[0].Score)
}

func TestSearch_StrongTopScoreSuppressesWeakMatches(t *testing.T) {
	results := Search(testEntities(), "John Smith")
	require.NotEmpty(t, results)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, strongMatchFloor,
			"weak matches must be cut when the top score is strong: %s scored %d", r.Entity.Name, r.Score)
	}
}

func TestSearch_LooseResultsCappedAt20(t *testing.T) {
	var entities []*domain.ClientEntity
	for i := int64(1); i <= 30; i++ {
		entities = append(entities, &domain.ClientEntity{
			ClientID: 200000 + i,
			Name:     "Client Solo",
			Email:    "c@mail.com",
		})
	}
	// Single word partial overlap only: low scores, cap applies.
	results := Search(entities, "solo berg")
	require.NotEmpty(t, results)
	assert.LessOrEqual(t, len(results), maxLooseResults)
}

func TestSearch_NoMatchesReturnsNil(t *testing.T) {
	results := Search(testEntities(), "zzqy")
	assert.Nil(t, results)
}

func TestSearch_DeterministicTieBreak(t *testing.T) {
	entities := []*domain.ClientEntity{
		entity(2, "Ada Berg"),
		entity(1, "Ada Berg"),
	}
	first := Search(entities, "ada berg")
	second := Search(entities, "ada berg")
	require.Len(t, first, 2)
	assert.Equal(t, int64(1), first[0].Entity.ClientID, "equal scores tie-break on client id")
	assert.Equal(t, first[0].Entity.ClientID, second[0].Entity.ClientID)
}
