package relyingparty

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(RelyingParty{EntityID: "https://sp-a.example.com"})

	got, err := store.Get(ctx, "https://sp-a.example.com")
	require.NoError(t, err)
	assert.Equal(t, "https://sp-a.example.com", got.EntityID)

	_, err = store.Get(ctx, "https://unknown.example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	store.Put(RelyingParty{EntityID: "https://sp-b.example.com", NameIDFormat: "fmt"})
	got, err = store.Get(ctx, "https://sp-b.example.com")
	require.NoError(t, err)
	assert.Equal(t, "fmt", got.NameIDFormat)

	store.Remove("https://sp-b.example.com")
	_, err = store.Get(ctx, "https://sp-b.example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreGetReturnsCopy(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore(RelyingParty{EntityID: "sp", NameIDFormat: "original"})

	got, err := store.Get(ctx, "sp")
	require.NoError(t, err)
	got.NameIDFormat = "mutated"

	again, err := store.Get(ctx, "sp")
	require.NoError(t, err)
	assert.Equal(t, "original", again.NameIDFormat)
}
