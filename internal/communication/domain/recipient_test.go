package domain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipientFilter_IsEmpty(t *testing.T) {
	assert.True(t, RecipientFilter{}.IsEmpty())
	assert.False(t, RecipientFilter{AllUsers: true}.IsEmpty())
	assert.False(t, RecipientFilter{Role: "pt"}.IsEmpty())
	assert.False(t, RecipientFilter{AthleteIDs: []uuid.UUID{uuid.New()}}.IsEmpty())
}

func TestRecipientFilter_Roles(t *testing.T) {
	assert.Nil(t, RecipientFilter{}.Roles())
	assert.Equal(t, []string{"atleta", "athlete"}, RecipientFilter{Role: "atleta"}.Roles())
	assert.Equal(t, []string{"trainer"}, RecipientFilter{Role: "trainer"}.Roles())
}

func TestRecipientFilter_CacheKey(t *testing.T) {
	a := uuid.MustParse("00000000-0000-0000-0000-00000000000a")
	b := uuid.MustParse("00000000-0000-0000-0000-00000000000b")

	k1 := RecipientFilter{Role: "atleta", AthleteIDs: []uuid.UUID{b, a, b}}.CacheKey()
	k2 := RecipientFilter{Role: "atleta", AthleteIDs: []uuid.UUID{a, b}}.CacheKey()
	assert.Equal(t, k1, k2)
	assert.Equal(
		t,
		`recipients:count:{"role":"atleta","athlete_ids":["00000000-0000-0000-0000-00000000000a","00000000-0000-0000-0000-00000000000b"],"all_users":false}`,
		k1,
	)

	assert.NotEqual(t, k1, RecipientFilter{Role: "atleta", AthleteIDs: []uuid.UUID{a}}.CacheKey())
	assert.NotEqual(t, RecipientFilter{AllUsers: true}.CacheKey(), RecipientFilter{}.CacheKey())
}

func TestParseRecipientFilter(t *testing.T) {
	f, err := ParseRecipientFilter(nil)
	require.NoError(t, err)
	assert.True(t, f.IsEmpty())

	id := uuid.New()
	f, err = ParseRecipientFilter([]byte(`{"role":"atleta","athlete_ids":["` + id.String() + `"],"all_users":true}`))
	require.NoError(t, err)
	assert.Equal(t, "atleta", f.Role)
	assert.Equal(t, []uuid.UUID{id}, f.AthleteIDs)
	assert.True(t, f.AllUsers)

	_, err = ParseRecipientFilter([]byte(`{"athlete_ids":["nope"]}`))
	assert.Error(t, err)
}
