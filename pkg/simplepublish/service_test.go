package simplepublish_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-publish/pkg/simplepublish"
	"github.com/tendant/simple-publish/pkg/simplepublish/repo/memory"
	memorystorage "github.com/tendant/simple-publish/pkg/simplepublish/storage/memory"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

// allowAllGate grants every capability.
type allowAllGate struct{}

func (allowAllGate) Allowed(ctx context.Context, actorID int64, capability string, objectID int64) bool {
	return true
}

// grantGate grants exactly the listed capabilities.
type grantGate struct {
	caps map[string]bool
}

func newGrantGate(caps ...string) grantGate {
	g := grantGate{caps: make(map[string]bool, len(caps))}
	for _, c := range caps {
		g.caps[c] = true
	}
	return g
}

func (g grantGate) Allowed(ctx context.Context, actorID int64, capability string, objectID int64) bool {
	return g.caps[capability]
}

// spyRepo counts mutating store calls so tests can assert nothing was
// persisted before validation finished.
type spyRepo struct {
	simplepublish.Repository
	createPosts  int
	updatePosts  int
	setTermCalls int
}

func (s *spyRepo) CreatePost(ctx context.Context, post *simplepublish.Post) (int64, error) {
	s.createPosts++
	return s.Repository.CreatePost(ctx, post)
}

func (s *spyRepo) UpdatePost(ctx context.Context, post *simplepublish.Post) (int64, error) {
	s.updatePosts++
	return s.Repository.UpdatePost(ctx, post)
}

func (s *spyRepo) SetPostTerms(ctx context.Context, postID int64, taxonomy string, termIDs []int64, appendTerms bool) error {
	s.setTermCalls++
	return s.Repository.SetPostTerms(ctx, postID, taxonomy, termIDs, appendTerms)
}

func newTestService(t *testing.T, gate simplepublish.CapabilityGate, opts ...simplepublish.Option) (simplepublish.Service, *spyRepo) {
	t.Helper()
	repo := &spyRepo{Repository: memory.New()}
	options := []simplepublish.Option{
		simplepublish.WithRepository(repo),
		simplepublish.WithCapabilityGate(gate),
		simplepublish.WithClock(func() time.Time { return testNow }),
	}
	options = append(options, opts...)
	svc, err := simplepublish.New(options...)
	require.NoError(t, err)
	return svc, repo
}

func TestServiceCreation(t *testing.T) {
	tests := []struct {
		name        string
		options     []simplepublish.Option
		expectError bool
	}{
		{
			name:        "no options should fail",
			options:     []simplepublish.Option{},
			expectError: true,
		},
		{
			name: "repository alone should fail",
			options: []simplepublish.Option{
				simplepublish.WithRepository(memory.New()),
			},
			expectError: true,
		},
		{
			name: "repository and gate should succeed",
			options: []simplepublish.Option{
				simplepublish.WithRepository(memory.New()),
				simplepublish.WithCapabilityGate(allowAllGate{}),
			},
			expectError: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := simplepublish.New(tt.options...)
			if tt.expectError {
				assert.Error(t, err)
				assert.Nil(t, svc)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, svc)
			}
		})
	}
}

func TestCreatePostDraft(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t, newGrantGate("edit_posts"))

	id, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
		Type: simplepublish.TypePost,
		PostContent: simplepublish.PostContent{
			Title:   ptr("Hello"),
			Content: ptr("first post"),
		},
	})
	require.NoError(t, err)
	require.NotZero(t, id)
	assert.Equal(t, 1, repo.createPosts)

	post, err := repo.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, simplepublish.StatusDraft, post.Status)
	assert.Equal(t, "Hello", post.Title)
	assert.Equal(t, "first post", post.Content)
	assert.Equal(t, int64(1), post.AuthorID)
	assert.True(t, post.Date.Equal(testNow))
	assert.True(t, post.DateGMT.Equal(testNow.UTC()))
	// Comments default open for the base type.
	assert.Equal(t, simplepublish.PolicyOpen, post.CommentPolicy)
}

func TestCreatePostUnknownType(t *testing.T) {
	svc, repo := newTestService(t, allowAllGate{})

	_, err := svc.CreatePost(context.Background(), 1, simplepublish.CreatePostRequest{Type: "bulletin"})
	require.Error(t, err)
	assert.True(t, simplepublish.IsNotFound(err))
	assert.Zero(t, repo.createPosts)
}

func TestCreatePostPublishRequiresCapability(t *testing.T) {
	svc, repo := newTestService(t, newGrantGate("edit_posts"))

	_, err := svc.CreatePost(context.Background(), 1, simplepublish.CreatePostRequest{
		Type:    simplepublish.TypePost,
		Publish: true,
	})
	require.Error(t, err)
	assert.True(t, simplepublish.IsUnauthorized(err))
	assert.Zero(t, repo.createPosts)
}

func TestCreatePostUnsupportedAttribute(t *testing.T) {
	// Pages do not support excerpts.
	svc, repo := newTestService(t, allowAllGate{})

	_, err := svc.CreatePost(context.Background(), 1, simplepublish.CreatePostRequest{
		Type: simplepublish.TypePage,
		PostContent: simplepublish.PostContent{
			Excerpt: ptr("summary"),
		},
	})
	require.Error(t, err)
	assert.True(t, simplepublish.IsInvalidArgument(err))
	assert.Zero(t, repo.createPosts)
}

func TestCreatePostInvalidStatus(t *testing.T) {
	svc, repo := newTestService(t, allowAllGate{})

	_, err := svc.CreatePost(context.Background(), 1, simplepublish.CreatePostRequest{
		Type: simplepublish.TypePost,
		PostContent: simplepublish.PostContent{
			Status: "future",
		},
	})
	require.Error(t, err)
	assert.True(t, simplepublish.IsInvalidArgument(err))
	assert.Zero(t, repo.createPosts)
}

func TestCreatePostPolicyCoercion(t *testing.T) {
	tests := []struct {
		name    string
		value   any
		want    simplepublish.Policy
		wantErr bool
	}{
		{name: "numeric one is open", value: 1, want: simplepublish.PolicyOpen},
		{name: "numeric zero is closed", value: 0, want: simplepublish.PolicyClosed},
		{name: "numeric two is closed", value: 2, want: simplepublish.PolicyClosed},
		{name: "string open", value: "open", want: simplepublish.PolicyOpen},
		{name: "string closed", value: "closed", want: simplepublish.PolicyClosed},
		{name: "numeric string", value: "2", want: simplepublish.PolicyClosed},
		{name: "unknown token fails", value: "archived", wantErr: true},
		{name: "unknown code fails", value: 7, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, repo := newTestService(t, newGrantGate("edit_posts"))

			id, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
				Type: simplepublish.TypePost,
				PostContent: simplepublish.PostContent{
					Comments: simplepublish.NewPolicyValue(tt.value),
				},
			})
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, simplepublish.IsInvalidArgument(err))
				assert.Zero(t, repo.createPosts)
				return
			}
			require.NoError(t, err)
			post, err := repo.GetPost(ctx, id)
			require.NoError(t, err)
			assert.Equal(t, tt.want, post.CommentPolicy)
		})
	}
}

func TestCreatePostPolicyUnsupportedType(t *testing.T) {
	// Pages support neither comments nor trackbacks; presence is an error.
	svc, repo := newTestService(t, allowAllGate{})

	_, err := svc.CreatePost(context.Background(), 1, simplepublish.CreatePostRequest{
		Type: simplepublish.TypePage,
		PostContent: simplepublish.PostContent{
			Comments: simplepublish.NewPolicyValue("open"),
		},
	})
	require.Error(t, err)
	assert.True(t, simplepublish.IsInvalidArgument(err))
	assert.Zero(t, repo.createPosts)
}

func TestCreatePostSticky(t *testing.T) {
	ctx := context.Background()

	t.Run("non-base type cannot be sticky", func(t *testing.T) {
		svc, repo := newTestService(t, allowAllGate{})
		_, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
			Type:    simplepublish.TypePage,
			Publish: true,
			PostContent: simplepublish.PostContent{
				Sticky: ptr(true),
			},
		})
		require.Error(t, err)
		assert.True(t, simplepublish.IsInvalidArgument(err))
		assert.Zero(t, repo.createPosts)
	})

	t.Run("sticky requires published status", func(t *testing.T) {
		svc, repo := newTestService(t, allowAllGate{})
		_, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
			Type: simplepublish.TypePost,
			PostContent: simplepublish.PostContent{
				Sticky: ptr(true),
			},
		})
		require.Error(t, err)
		assert.True(t, simplepublish.IsInvalidArgument(err))
		assert.Zero(t, repo.createPosts)
	})

	t.Run("sticky requires edit-others capability", func(t *testing.T) {
		svc, repo := newTestService(t, newGrantGate("edit_posts", "publish_posts"))
		_, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
			Type:    simplepublish.TypePost,
			Publish: true,
			PostContent: simplepublish.PostContent{
				Sticky: ptr(true),
			},
		})
		require.Error(t, err)
		assert.True(t, simplepublish.IsUnauthorized(err))
		assert.Zero(t, repo.createPosts)
	})

	t.Run("valid sticky persists", func(t *testing.T) {
		svc, repo := newTestService(t, allowAllGate{})
		id, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
			Type:    simplepublish.TypePost,
			Publish: true,
			PostContent: simplepublish.PostContent{
				Sticky: ptr(true),
			},
		})
		require.NoError(t, err)
		post, err := repo.GetPost(ctx, id)
		require.NoError(t, err)
		assert.True(t, post.Sticky)
	})
}

func TestCreatePostTimestamps(t *testing.T) {
	ctx := context.Background()
	given := time.Date(2023, 11, 5, 8, 30, 0, 0, time.UTC)

	t.Run("gmt value is authoritative", func(t *testing.T) {
		svc, repo := newTestService(t, allowAllGate{})
		id, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
			Type: simplepublish.TypePost,
			PostContent: simplepublish.PostContent{
				DateGMT: ptr(given),
			},
		})
		require.NoError(t, err)
		post, err := repo.GetPost(ctx, id)
		require.NoError(t, err)
		assert.True(t, post.DateGMT.Equal(given))
		assert.True(t, post.Date.Equal(given.In(time.Local)))
	})

	t.Run("local value derives gmt", func(t *testing.T) {
		svc, repo := newTestService(t, allowAllGate{})
		local := given.In(time.Local)
		id, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
			Type: simplepublish.TypePost,
			PostContent: simplepublish.PostContent{
				Date: ptr(local),
			},
		})
		require.NoError(t, err)
		post, err := repo.GetPost(ctx, id)
		require.NoError(t, err)
		assert.True(t, post.Date.Equal(local))
		assert.True(t, post.DateGMT.Equal(local.UTC()))
	})

	t.Run("absent dates default to now", func(t *testing.T) {
		svc, repo := newTestService(t, allowAllGate{})
		id, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{Type: simplepublish.TypePost})
		require.NoError(t, err)
		post, err := repo.GetPost(ctx, id)
		require.NoError(t, err)
		assert.True(t, post.Date.Equal(testNow))
		assert.True(t, post.Modified.Equal(testNow))
	})
}

func TestCreatePostTextMoreAppends(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t, allowAllGate{})

	id, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
		Type: simplepublish.TypePost,
		PostContent: simplepublish.PostContent{
			Content:  ptr("lead"),
			TextMore: ptr("extended"),
		},
	})
	require.NoError(t, err)
	post, err := repo.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "lead<!--more-->extended", post.Content)
}

func TestCreatePostPageTemplate(t *testing.T) {
	ctx := context.Background()

	t.Run("only pages accept templates", func(t *testing.T) {
		svc, repo := newTestService(t, allowAllGate{})
		_, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
			Type: simplepublish.TypePost,
			PostContent: simplepublish.PostContent{
				PageTemplate: ptr("default"),
			},
		})
		require.Error(t, err)
		assert.True(t, simplepublish.IsInvalidArgument(err))
		assert.Zero(t, repo.createPosts)
	})

	t.Run("unknown template rejected", func(t *testing.T) {
		svc, repo := newTestService(t, allowAllGate{})
		_, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
			Type: simplepublish.TypePage,
			PostContent: simplepublish.PostContent{
				PageTemplate: ptr("fancy"),
			},
		})
		require.Error(t, err)
		assert.True(t, simplepublish.IsInvalidArgument(err))
		assert.Zero(t, repo.createPosts)
	})

	t.Run("default always valid", func(t *testing.T) {
		svc, repo := newTestService(t, allowAllGate{})
		id, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
			Type: simplepublish.TypePage,
			PostContent: simplepublish.PostContent{
				PageTemplate: ptr("default"),
			},
		})
		require.NoError(t, err)
		post, err := repo.GetPost(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "default", post.PageTemplate)
	})
}

func TestCreatePostParentValidation(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t, allowAllGate{})

	// Hierarchy is a page feature, not a post feature.
	_, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
		Type: simplepublish.TypePost,
		PostContent: simplepublish.PostContent{
			ParentID: ptr(int64(1)),
		},
	})
	require.Error(t, err)
	assert.True(t, simplepublish.IsInvalidArgument(err))

	parentID, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{Type: simplepublish.TypePage})
	require.NoError(t, err)

	// Missing parent rejected.
	_, err = svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
		Type: simplepublish.TypePage,
		PostContent: simplepublish.PostContent{
			ParentID: ptr(parentID + 100),
		},
	})
	require.Error(t, err)
	assert.True(t, simplepublish.IsInvalidArgument(err))

	// Valid parent accepted.
	childID, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
		Type: simplepublish.TypePage,
		PostContent: simplepublish.PostContent{
			ParentID: ptr(parentID),
		},
	})
	require.NoError(t, err)
	child, err := repo.GetPost(ctx, childID)
	require.NoError(t, err)
	assert.Equal(t, parentID, child.ParentID)
}

func TestCreatePostAuthorOverride(t *testing.T) {
	ctx := context.Background()

	t.Run("requires edit-others capability", func(t *testing.T) {
		svc, repo := newTestService(t, newGrantGate("edit_posts"))
		_, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
			Type: simplepublish.TypePost,
			PostContent: simplepublish.PostContent{
				AuthorID: ptr(int64(2)),
			},
		})
		require.Error(t, err)
		assert.True(t, simplepublish.IsUnauthorized(err))
		assert.Zero(t, repo.createPosts)
	})

	t.Run("author must exist", func(t *testing.T) {
		svc, repo := newTestService(t, allowAllGate{})
		_, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
			Type: simplepublish.TypePost,
			PostContent: simplepublish.PostContent{
				AuthorID: ptr(int64(99)),
			},
		})
		require.Error(t, err)
		assert.True(t, simplepublish.IsNotFound(err))
		assert.Zero(t, repo.createPosts)
	})

	t.Run("existing author accepted", func(t *testing.T) {
		svc, repo := newTestService(t, allowAllGate{})
		otherID, err := repo.CreateUser(ctx, &simplepublish.User{
			Login: "other", Email: "other@example.com", Role: "author",
		})
		require.NoError(t, err)

		id, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
			Type: simplepublish.TypePost,
			PostContent: simplepublish.PostContent{
				AuthorID: ptr(otherID),
			},
		})
		require.NoError(t, err)
		post, err := repo.GetPost(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, otherID, post.AuthorID)
	})
}

func TestEditPostResetsStatusFromPublishFlag(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t, allowAllGate{})

	id, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
		Type:    simplepublish.TypePost,
		Publish: true,
	})
	require.NoError(t, err)

	// An edit without an explicit status falls back to the publish flag.
	_, err = svc.EditPost(ctx, 1, simplepublish.EditPostRequest{ID: id, Publish: false})
	require.NoError(t, err)

	post, err := repo.GetPost(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, simplepublish.StatusDraft, post.Status)
}

func TestEditPostUnknownID(t *testing.T) {
	svc, _ := newTestService(t, allowAllGate{})
	_, err := svc.EditPost(context.Background(), 1, simplepublish.EditPostRequest{ID: 42})
	require.Error(t, err)
	assert.True(t, simplepublish.IsNotFound(err))
}

func TestDeletePostsValidatesBeforeDeleting(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t, allowAllGate{})

	first, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{Type: simplepublish.TypePost})
	require.NoError(t, err)
	second, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{Type: simplepublish.TypePost})
	require.NoError(t, err)

	// One bad id fails the whole batch; nothing is removed.
	_, err = svc.DeletePosts(ctx, 1, []int64{first, second, 999})
	require.Error(t, err)
	assert.True(t, simplepublish.IsNotFound(err))
	_, err = repo.GetPost(ctx, first)
	assert.NoError(t, err)

	deleted, err := svc.DeletePosts(ctx, 1, []int64{first, second})
	require.NoError(t, err)
	assert.Equal(t, []int64{first, second}, deleted)
}

func TestListPostsSkipsUnauthorized(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t, newGrantGate())

	// Seed the store directly so the denying gate is the only variable.
	_, err := repo.CreatePost(ctx, &simplepublish.Post{
		Type:   simplepublish.TypePost,
		Status: simplepublish.StatusDraft,
		Title:  "hidden",
	})
	require.NoError(t, err)

	// Per-post denial skips the post; the list itself still succeeds.
	posts, err := svc.ListPosts(ctx, 1, simplepublish.PostFilter{}, simplepublish.DefaultFields())
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestEnclosureStoredOnce(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t, allowAllGate{})

	enc := &simplepublish.Enclosure{URL: "https://cdn.example.com/ep1.mp3", Length: 1024, Type: "audio/mpeg"}
	id, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
		Type:        simplepublish.TypePost,
		PostContent: simplepublish.PostContent{Enclosure: enc},
	})
	require.NoError(t, err)

	// Editing with the same enclosure URL must not duplicate the value.
	_, err = svc.EditPost(ctx, 1, simplepublish.EditPostRequest{
		ID:          id,
		PostContent: simplepublish.PostContent{Enclosure: enc},
	})
	require.NoError(t, err)

	fields, err := repo.GetCustomFields(ctx, id)
	require.NoError(t, err)
	require.Len(t, fields["enclosure"], 1)
	assert.Equal(t, "https://cdn.example.com/ep1.mp3\n1024\naudio/mpeg", fields["enclosure"][0])
}

func TestCustomFieldsRequireSupport(t *testing.T) {
	// A schema without the custom-field feature rejects them outright.
	registry, err := simplepublish.NewRegistry(
		[]*simplepublish.PostType{{
			Name:     "note",
			Supports: []simplepublish.Feature{simplepublish.FeatureTitle},
			Capabilities: simplepublish.PostTypeCaps{
				EditPosts: "edit_posts", PublishPosts: "publish_posts",
				EditOthersPosts: "edit_others_posts", DeletePosts: "delete_posts",
			},
		}},
		nil, nil, nil, nil, simplepublish.RegistryDefaults{},
	)
	require.NoError(t, err)

	svc, repo := newTestService(t, allowAllGate{}, simplepublish.WithRegistry(registry))
	_, err = svc.CreatePost(context.Background(), 1, simplepublish.CreatePostRequest{
		Type: "note",
		PostContent: simplepublish.PostContent{
			CustomFields: map[string][]string{"mood": {"calm"}},
		},
	})
	require.Error(t, err)
	assert.True(t, simplepublish.IsInvalidArgument(err))
	assert.Zero(t, repo.createPosts)
}

func TestCreateAttachmentAndAdoption(t *testing.T) {
	ctx := context.Background()
	svc, repo := newTestService(t, allowAllGate{}, simplepublish.WithMediaStore(memorystorage.New()))

	post, url, err := svc.CreateAttachment(ctx, 1, simplepublish.CreateAttachmentRequest{
		FileName: "photo.jpg",
		MimeType: "image/jpeg",
		Data:     []byte("jpeg-bytes"),
	})
	require.NoError(t, err)
	require.NotNil(t, post)
	assert.Equal(t, simplepublish.TypeAttachment, post.Type)
	assert.NotEmpty(t, url)
	assert.Zero(t, post.ParentID)

	// A new post whose body references the URL adopts the attachment.
	parentID, err := svc.CreatePost(ctx, 1, simplepublish.CreatePostRequest{
		Type: simplepublish.TypePost,
		PostContent: simplepublish.PostContent{
			Content: ptr("look: " + url),
		},
	})
	require.NoError(t, err)

	adopted, err := repo.GetPost(ctx, post.ID)
	require.NoError(t, err)
	assert.Equal(t, parentID, adopted.ParentID)
}
