package listing

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepository(t *testing.T) *SQLiteRepository {
	t.Helper()

	repo, err := NewSQLiteRepository(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { repo.Close() })
	return repo
}

func strPtr(s string) *string     { return &s }
func floatPtr(f float64) *float64 { return &f }

func TestSQLiteRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	l := &Listing{
		Title:           strPtr("Blue Chair"),
		Category:        strPtr("furniture"),
		Condition:       strPtr(ConditionGood),
		Description:     strPtr("A blue chair."),
		Price:           floatPtr(40),
		ConfidenceScore: floatPtr(0.8),
		RawExtraction:   json.RawMessage(`{"title":"Blue Chair"}`),
	}
	l.SetImages([]string{"https://cdn.example.com/listings/1-a.jpg", "https://cdn.example.com/listings/2-b.jpg"})

	saved, err := repo.Create(ctx, l)
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)
	assert.Equal(t, "Blue Chair", *saved.Title)
	assert.Equal(t, ConditionGood, *saved.Condition)
	assert.Equal(t, 40.0, *saved.Price)
	assert.Equal(t, 0.8, *saved.ConfidenceScore)
	require.Len(t, saved.Images, 2)
	assert.Equal(t, saved.Images[0], *saved.ImageURL)
	assert.JSONEq(t, `{"title":"Blue Chair"}`, string(saved.RawExtraction))
	assert.False(t, saved.CreatedAt.IsZero())

	got, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Equal(t, saved.ID, got.ID)
	assert.Equal(t, saved.Images, got.Images)
}

func TestSQLiteRepository_CreateWithNullFields(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	l := &Listing{}
	l.SetImages([]string{"https://cdn.example.com/listings/1-a.jpg"})

	saved, err := repo.Create(ctx, l)
	require.NoError(t, err)

	got, err := repo.Get(ctx, saved.ID)
	require.NoError(t, err)
	assert.Nil(t, got.Title)
	assert.Nil(t, got.Price)
	assert.Nil(t, got.Condition)
	assert.Nil(t, got.ConfidenceScore)
	require.Len(t, got.Images, 1)
	assert.Equal(t, got.Images[0], *got.ImageURL)
}

func TestSQLiteRepository_GetUnknownID(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.Get(context.Background(), "does-not-exist")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRepository_ReplaceImages(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	l := &Listing{Title: strPtr("Lamp")}
	l.SetImages([]string{"https://cdn.example.com/listings/1-a.jpg", "https://cdn.example.com/listings/2-b.jpg"})
	saved, err := repo.Create(ctx, l)
	require.NoError(t, err)

	newURLs := []string{
		"https://cdn.example.com/listings/nobg/x/3-a-nobg.png",
		"https://cdn.example.com/listings/nobg/x/4-b-nobg.png",
	}
	updated, err := repo.ReplaceImages(ctx, saved.ID, newURLs)
	require.NoError(t, err)
	assert.Equal(t, newURLs, updated.Images)
	assert.Equal(t, newURLs[0], *updated.ImageURL)
	// untouched fields survive the update
	assert.Equal(t, "Lamp", *updated.Title)
}

func TestSQLiteRepository_ReplaceImagesUnknownID(t *testing.T) {
	repo := newTestRepository(t)

	_, err := repo.ReplaceImages(context.Background(), "nope", []string{"https://cdn.example.com/a.png"})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestSQLiteRepository_List(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	for _, title := range []string{"first", "second", "third"} {
		l := &Listing{Title: strPtr(title)}
		l.SetImages([]string{"https://cdn.example.com/" + title + ".jpg"})
		_, err := repo.Create(ctx, l)
		require.NoError(t, err)
	}

	listings, err := repo.List(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, listings, 2)
}

func TestSQLiteRepository_ExtractionCache(t *testing.T) {
	repo := newTestRepository(t)

	got, err := repo.GetExtractionCache("abc123")
	require.NoError(t, err)
	assert.Nil(t, got)

	payload := json.RawMessage(`{"title":"Blue Chair","price":40}`)
	require.NoError(t, repo.SetExtractionCache("abc123", payload))

	got, err = repo.GetExtractionCache("abc123")
	require.NoError(t, err)
	assert.JSONEq(t, string(payload), string(got))
}

func TestListing_SetImages(t *testing.T) {
	var l Listing

	l.SetImages([]string{"a", "b"})
	require.NotNil(t, l.ImageURL)
	assert.Equal(t, "a", *l.ImageURL)

	l.SetImages(nil)
	assert.Nil(t, l.ImageURL)
	assert.Empty(t, l.Images)
}
