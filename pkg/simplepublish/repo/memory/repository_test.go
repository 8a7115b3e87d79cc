package memory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-publish/pkg/simplepublish"
	"github.com/tendant/simple-publish/pkg/simplepublish/repo/memory"
)

func TestPostCRUD(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	id, err := repo.CreatePost(ctx, &simplepublish.Post{
		Type:   simplepublish.TypePost,
		Status: simplepublish.StatusDraft,
		Title:  "first",
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	post, err := repo.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "first", post.Title)

	// Returned posts are copies; mutating one must not leak back.
	post.Title = "mutated"
	again, err := repo.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "first", again.Title)

	again.Title = "second"
	_, err = repo.UpdatePost(ctx, again)
	require.NoError(t, err)
	updated, err := repo.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "second", updated.Title)

	ok, err := repo.DeletePost(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = repo.GetPost(ctx, id)
	assert.ErrorIs(t, err, simplepublish.ErrPostNotFound)

	_, err = repo.UpdatePost(ctx, &simplepublish.Post{ID: 9999})
	assert.ErrorIs(t, err, simplepublish.ErrPostNotFound)
}

func TestListPostsFilterSortPaginate(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, title := range []string{"alpha", "bravo", "charlie"} {
		_, err := repo.CreatePost(ctx, &simplepublish.Post{
			Type:   simplepublish.TypePost,
			Status: simplepublish.StatusPublish,
			Title:  title,
			Date:   base.Add(time.Duration(i) * time.Hour),
		})
		require.NoError(t, err)
	}
	_, err := repo.CreatePost(ctx, &simplepublish.Post{
		Type:   simplepublish.TypePage,
		Status: simplepublish.StatusDraft,
		Title:  "a page",
	})
	require.NoError(t, err)

	t.Run("type filter", func(t *testing.T) {
		posts, err := repo.ListPosts(ctx, simplepublish.PostFilter{Type: simplepublish.TypePage})
		require.NoError(t, err)
		assert.Len(t, posts, 1)
	})

	t.Run("status filter", func(t *testing.T) {
		posts, err := repo.ListPosts(ctx, simplepublish.PostFilter{Status: simplepublish.StatusPublish})
		require.NoError(t, err)
		assert.Len(t, posts, 3)
	})

	t.Run("newest first by default", func(t *testing.T) {
		posts, err := repo.ListPosts(ctx, simplepublish.PostFilter{Type: simplepublish.TypePost})
		require.NoError(t, err)
		require.Len(t, posts, 3)
		assert.Equal(t, "charlie", posts[0].Title)
		assert.Equal(t, "alpha", posts[2].Title)
	})

	t.Run("title ascending", func(t *testing.T) {
		posts, err := repo.ListPosts(ctx, simplepublish.PostFilter{
			Type: simplepublish.TypePost, OrderBy: "title", Order: "asc",
		})
		require.NoError(t, err)
		require.Len(t, posts, 3)
		assert.Equal(t, "alpha", posts[0].Title)
	})

	t.Run("pagination", func(t *testing.T) {
		posts, err := repo.ListPosts(ctx, simplepublish.PostFilter{
			Type: simplepublish.TypePost, OrderBy: "title", Order: "asc",
			Offset: 1, Number: 1,
		})
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, "bravo", posts[0].Title)

		posts, err = repo.ListPosts(ctx, simplepublish.PostFilter{
			Type: simplepublish.TypePost, Offset: 10,
		})
		require.NoError(t, err)
		assert.Empty(t, posts)
	})
}

func TestCustomFields(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	id, err := repo.CreatePost(ctx, &simplepublish.Post{Type: simplepublish.TypePost})
	require.NoError(t, err)

	require.NoError(t, repo.AddCustomField(ctx, id, "mood", "calm"))
	require.NoError(t, repo.AddCustomField(ctx, id, "mood", "bright"))

	fields, err := repo.GetCustomFields(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"calm", "bright"}, fields["mood"])

	// Set replaces per key; an empty value list removes the key.
	require.NoError(t, repo.SetCustomFields(ctx, id, map[string][]string{
		"mood":  {"calm"},
		"extra": {},
	}))
	fields, err = repo.GetCustomFields(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, []string{"calm"}, fields["mood"])
	_, present := fields["extra"]
	assert.False(t, present)

	// Deleting the post drops its fields.
	_, err = repo.DeletePost(ctx, id)
	require.NoError(t, err)
	_, err = repo.GetCustomFields(ctx, id)
	assert.ErrorIs(t, err, simplepublish.ErrPostNotFound)
}

func TestTermCRUD(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	term, err := repo.CreateTerm(ctx, &simplepublish.Term{
		Taxonomy: simplepublish.TaxonomyCategory,
		Name:     "Go Talks",
	})
	require.NoError(t, err)
	require.NotZero(t, term.ID)
	assert.Equal(t, "go-talks", term.Slug)

	// Same name in the same taxonomy is a duplicate.
	_, err = repo.CreateTerm(ctx, &simplepublish.Term{
		Taxonomy: simplepublish.TaxonomyCategory,
		Name:     "go talks",
	})
	assert.ErrorIs(t, err, simplepublish.ErrDuplicateTerm)

	// Same name in another taxonomy is fine.
	_, err = repo.CreateTerm(ctx, &simplepublish.Term{
		Taxonomy: simplepublish.TaxonomyTag,
		Name:     "Go Talks",
	})
	assert.NoError(t, err)

	byName, err := repo.GetTermByName(ctx, "Go Talks", simplepublish.TaxonomyCategory)
	require.NoError(t, err)
	assert.Equal(t, term.ID, byName.ID)

	term.Name = "Conference Talks"
	_, err = repo.UpdateTerm(ctx, term)
	require.NoError(t, err)

	// The old name index entry is gone, the new one resolves.
	_, err = repo.GetTermByName(ctx, "Go Talks", simplepublish.TaxonomyCategory)
	assert.ErrorIs(t, err, simplepublish.ErrTermNotFound)
	_, err = repo.GetTermByName(ctx, "Conference Talks", simplepublish.TaxonomyCategory)
	assert.NoError(t, err)

	ok, err := repo.DeleteTerm(ctx, term.ID, simplepublish.TaxonomyCategory)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = repo.GetTerm(ctx, term.ID, simplepublish.TaxonomyCategory)
	assert.ErrorIs(t, err, simplepublish.ErrTermNotFound)
}

func TestEnsureTerm(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	first, err := repo.EnsureTerm(ctx, "golang", simplepublish.TaxonomyTag)
	require.NoError(t, err)

	second, err := repo.EnsureTerm(ctx, "golang", simplepublish.TaxonomyTag)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
}

func TestSetPostTermsAndCounts(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	postID, err := repo.CreatePost(ctx, &simplepublish.Post{Type: simplepublish.TypePost})
	require.NoError(t, err)

	goTerm, err := repo.CreateTerm(ctx, &simplepublish.Term{
		Taxonomy: simplepublish.TaxonomyCategory, Name: "Go",
	})
	require.NoError(t, err)
	rustTerm, err := repo.CreateTerm(ctx, &simplepublish.Term{
		Taxonomy: simplepublish.TaxonomyCategory, Name: "Rust",
	})
	require.NoError(t, err)

	require.NoError(t, repo.SetPostTerms(ctx, postID, simplepublish.TaxonomyCategory, []int64{goTerm.ID}, false))

	got, err := repo.GetTerm(ctx, goTerm.ID, simplepublish.TaxonomyCategory)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Count)

	t.Run("append keeps prior assignment", func(t *testing.T) {
		require.NoError(t, repo.SetPostTerms(ctx, postID, simplepublish.TaxonomyCategory, []int64{rustTerm.ID}, true))
		terms, err := repo.ListPostTerms(ctx, postID, []string{simplepublish.TaxonomyCategory})
		require.NoError(t, err)
		assert.Len(t, terms, 2)
	})

	t.Run("replace adjusts counts", func(t *testing.T) {
		require.NoError(t, repo.SetPostTerms(ctx, postID, simplepublish.TaxonomyCategory, []int64{rustTerm.ID}, false))

		got, err := repo.GetTerm(ctx, goTerm.ID, simplepublish.TaxonomyCategory)
		require.NoError(t, err)
		assert.Zero(t, got.Count)
		got, err = repo.GetTerm(ctx, rustTerm.ID, simplepublish.TaxonomyCategory)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.Count)
	})

	t.Run("unknown term rejected", func(t *testing.T) {
		err := repo.SetPostTerms(ctx, postID, simplepublish.TaxonomyCategory, []int64{9999}, false)
		assert.ErrorIs(t, err, simplepublish.ErrTermNotFound)
	})

	t.Run("deleting the post releases counts", func(t *testing.T) {
		_, err := repo.DeletePost(ctx, postID)
		require.NoError(t, err)
		got, err := repo.GetTerm(ctx, rustTerm.ID, simplepublish.TaxonomyCategory)
		require.NoError(t, err)
		assert.Zero(t, got.Count)
	})
}

func TestUserUniqueness(t *testing.T) {
	ctx := context.Background()
	repo := memory.New()

	id, err := repo.CreateUser(ctx, &simplepublish.User{
		Login: "alice", Email: "alice@example.com", Role: "author",
	})
	require.NoError(t, err)
	require.NotZero(t, id)

	_, err = repo.CreateUser(ctx, &simplepublish.User{
		Login: "Alice", Email: "second@example.com",
	})
	assert.ErrorIs(t, err, simplepublish.ErrDuplicateLogin)

	_, err = repo.CreateUser(ctx, &simplepublish.User{
		Login: "bob", Email: "ALICE@example.com",
	})
	assert.ErrorIs(t, err, simplepublish.ErrDuplicateEmail)

	byLogin, err := repo.GetUserByLogin(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, id, byLogin.ID)

	byEmail, err := repo.GetUserByEmail(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, byEmail.ID)

	users, err := repo.ListUsers(ctx, simplepublish.UserFilter{Role: "author"})
	require.NoError(t, err)
	assert.Len(t, users, 1)

	ok, err := repo.DeleteUser(ctx, id)
	require.NoError(t, err)
	assert.True(t, ok)
	_, err = repo.GetUser(ctx, id)
	assert.ErrorIs(t, err, simplepublish.ErrUserNotFound)
}
