package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/internradar/crawler/internal/scrape"
)

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()

	store := New()

	got, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)

	want := []scrape.Listing{
		{JobTitle: "Backend Intern", DetailsURL: "https://x/a", Skills: []string{"Go"}},
		{JobTitle: "Data Intern", DetailsURL: "https://x/b", Skills: []string{}},
	}
	require.NoError(t, store.Save(context.Background(), want))

	got, err = store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

func TestStoreCopiesOnLoad(t *testing.T) {
	t.Parallel()

	store := New()
	require.NoError(t, store.Save(context.Background(), []scrape.Listing{
		{JobTitle: "Backend Intern", DetailsURL: "https://x/a"},
	}))

	first, err := store.Load(context.Background())
	require.NoError(t, err)
	first[0].JobTitle = "mutated"

	second, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Backend Intern", second[0].JobTitle)
}
