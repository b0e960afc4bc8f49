package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/avargasm/medchat-cli/internal/api"
	"github.com/avargasm/medchat-cli/internal/models"
)

func TestPACSLifecycle(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env)
	ctx := context.Background()

	created, err := env.pacs.Create(ctx, models.PACSConfig{
		DisplayName: "Main Hospital",
		BaseRS:      "https://pacs.example.com/dicom-web",
		Location:    "Madrid",
		Tags:        []string{"prod", "ct"},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID, "server assigns the ID")
	assert.False(t, created.CreatedAt.IsZero(), "server assigns the creation time")
	assert.Equal(t, []string{"prod", "ct"}, created.Tags)

	got, err := env.pacs.Get(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "Main Hospital", got.DisplayName)

	updated, err := env.pacs.Update(ctx, created.ID, models.PACSConfig{
		DisplayName: "Main Hospital (new wing)",
		BaseRS:      "https://pacs.example.com/dicom-web",
		Tags:        []string{"prod"},
	})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, "Main Hospital (new wing)", updated.DisplayName)
	assert.Equal(t, []string{"prod"}, updated.Tags)

	require.NoError(t, env.pacs.Delete(ctx, created.ID))

	_, err = env.pacs.Get(ctx, created.ID)
	require.Error(t, err)
	assert.Equal(t, "PACS configuration not found",
		api.Message(err, "Could not load the PACS configuration"))
}

func TestPACSCreateValidation(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env)

	_, err := env.pacs.Create(context.Background(), models.PACSConfig{Location: "nowhere"})
	require.Error(t, err)
	assert.Equal(t, "display_name: field required, base_rs: field required",
		api.Message(err, "Could not create the PACS configuration"))
}

func TestListRefreshesLocalSnapshot(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env)
	ctx := context.Background()

	_, err := env.pacs.Create(ctx, models.PACSConfig{DisplayName: "Alpha", BaseRS: "https://a"})
	require.NoError(t, err)
	_, err = env.pacs.Create(ctx, models.PACSConfig{DisplayName: "Beta", BaseRS: "https://b"})
	require.NoError(t, err)

	listed, err := env.pacs.List(ctx)
	require.NoError(t, err)
	require.Len(t, listed, 2)

	// The snapshot survives without the backend.
	cached, err := env.pacs.Cached()
	require.NoError(t, err)
	require.Len(t, cached, 2)
	assert.Equal(t, "Alpha", cached[0].DisplayName)
	assert.Equal(t, "Beta", cached[1].DisplayName)
}

func TestPACSRequiresAuthentication(t *testing.T) {
	env := newTestEnv(t)
	signup(t, env)
	user := env.manager.CurrentUser()

	require.NoError(t, env.manager.Establish("not-a-token", user))

	_, err := env.pacs.List(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsAuthFailure(err))
	// /pacs is not an exempt path, so the stale session is torn down.
	assert.False(t, env.manager.Authenticated())
	assert.Empty(t, env.store.Token())
}
