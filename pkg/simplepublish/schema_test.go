package simplepublish_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendant/simple-publish/pkg/simplepublish"
)

func TestDefaultRegistry(t *testing.T) {
	r := simplepublish.DefaultRegistry()

	post, ok := r.PostType(simplepublish.TypePost)
	require.True(t, ok)
	assert.True(t, post.SupportsFeature(simplepublish.FeatureComments))
	assert.False(t, post.Hierarchical)
	assert.Equal(t, "edit_posts", post.Capabilities.EditPosts)

	page, ok := r.PostType(simplepublish.TypePage)
	require.True(t, ok)
	assert.True(t, page.Hierarchical)
	assert.False(t, page.SupportsFeature(simplepublish.FeatureExcerpt))

	attachment, ok := r.PostType(simplepublish.TypeAttachment)
	require.True(t, ok)
	assert.Equal(t, "upload_files", attachment.Capabilities.EditPosts)

	category, ok := r.Taxonomy(simplepublish.TaxonomyCategory)
	require.True(t, ok)
	assert.True(t, category.Hierarchical)

	assert.Equal(t, []string{
		simplepublish.TaxonomyCategory, simplepublish.TaxonomyTag, simplepublish.TaxonomyFormat,
	}, r.TaxonomiesFor(simplepublish.TypePost))
	assert.Empty(t, r.TaxonomiesFor(simplepublish.TypePage))

	// "default" is always a valid template, even with none registered.
	assert.True(t, r.ValidPageTemplate("default"))
	assert.False(t, r.ValidPageTemplate("fancy"))

	assert.True(t, r.ValidRole("subscriber"))
	assert.False(t, r.ValidRole("wizard"))
	assert.Equal(t, "subscriber", r.Defaults().Role)
	assert.Equal(t, simplepublish.PolicyOpen, r.Defaults().CommentPolicy)

	assert.ElementsMatch(t, []string{"aim", "jabber", "yim"}, r.ContactMethods())
}

func TestNewRegistryValidation(t *testing.T) {
	caps := simplepublish.PostTypeCaps{
		EditPosts: "edit_posts", PublishPosts: "publish_posts",
		EditOthersPosts: "edit_others_posts", DeletePosts: "delete_posts",
	}

	t.Run("empty post type name", func(t *testing.T) {
		_, err := simplepublish.NewRegistry(
			[]*simplepublish.PostType{{Capabilities: caps}},
			nil, nil, nil, nil, simplepublish.RegistryDefaults{},
		)
		assert.Error(t, err)
	})

	t.Run("duplicate post type", func(t *testing.T) {
		_, err := simplepublish.NewRegistry(
			[]*simplepublish.PostType{
				{Name: "note", Capabilities: caps},
				{Name: "note", Capabilities: caps},
			},
			nil, nil, nil, nil, simplepublish.RegistryDefaults{},
		)
		assert.Error(t, err)
	})

	t.Run("unknown taxonomy reference", func(t *testing.T) {
		_, err := simplepublish.NewRegistry(
			[]*simplepublish.PostType{
				{Name: "note", Capabilities: caps, Taxonomies: []string{"genre"}},
			},
			nil, nil, nil, nil, simplepublish.RegistryDefaults{},
		)
		assert.Error(t, err)
	})

	t.Run("empty policy defaults fall back to open", func(t *testing.T) {
		r, err := simplepublish.NewRegistry(
			[]*simplepublish.PostType{{Name: "note", Capabilities: caps}},
			nil, nil, nil, nil, simplepublish.RegistryDefaults{},
		)
		require.NoError(t, err)
		assert.Equal(t, simplepublish.PolicyOpen, r.Defaults().CommentPolicy)
		assert.Equal(t, simplepublish.PolicyOpen, r.Defaults().PingPolicy)
	})
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "schema.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
post_types:
  - name: recipe
    label: Recipes
    supports: [title, editor, custom-fields]
    capabilities:
      edit_posts: edit_recipes
      publish_posts: publish_recipes
      edit_others_posts: edit_others_recipes
      delete_posts: delete_recipes
    taxonomies: [cuisine]
taxonomies:
  - name: cuisine
    label: Cuisines
    hierarchical: true
    capabilities:
      manage_terms: manage_cuisines
      edit_terms: manage_cuisines
      delete_terms: manage_cuisines
      assign_terms: edit_recipes
    object_types: [recipe]
page_templates: [wide]
roles:
  chef: Chef
contact_methods: [phone]
defaults:
  role: chef
`), 0o644))

	r, err := simplepublish.LoadRegistry(path)
	require.NoError(t, err)

	recipe, ok := r.PostType("recipe")
	require.True(t, ok)
	assert.True(t, recipe.SupportsFeature(simplepublish.FeatureCustomFields))
	assert.Equal(t, "edit_recipes", recipe.Capabilities.EditPosts)
	assert.Equal(t, []string{"cuisine"}, r.TaxonomiesFor("recipe"))

	cuisine, ok := r.Taxonomy("cuisine")
	require.True(t, ok)
	assert.True(t, cuisine.Hierarchical)

	assert.True(t, r.ValidPageTemplate("wide"))
	assert.True(t, r.ValidPageTemplate("default"))
	assert.True(t, r.ValidRole("chef"))
	assert.Equal(t, "chef", r.Defaults().Role)
	assert.Equal(t, []string{"phone"}, r.ContactMethods())
}

func TestLoadRegistryMissingFile(t *testing.T) {
	_, err := simplepublish.LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}
