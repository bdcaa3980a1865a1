package sqlite

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerdock/anonzora/internal/domain/model"
)

func strPtr(s string) *string { return &s }

func TestActionRepo_UpsertAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActionRepo(db)
	ctx := context.Background()

	action := model.Action{
		ID:                    "post",
		Type:                  model.ActionTypeCreatePost,
		CredentialID:          strPtr("ERC20_BALANCE:1:0xabc"),
		CredentialRequirement: &model.CredentialRequirement{MinimumBalance: "10"},
		Metadata:              json.RawMessage(`{"platform":"farcaster","accountId":"1"}`),
		CommunityID:           strPtr("c1"),
	}
	require.NoError(t, repo.Upsert(ctx, action))

	got, err := repo.Get(ctx, "post")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.ActionTypeCreatePost, got.Type)
	require.NotNil(t, got.CredentialID)
	assert.Equal(t, "ERC20_BALANCE:1:0xabc", *got.CredentialID)
	require.NotNil(t, got.CredentialRequirement)
	assert.Equal(t, "10", got.CredentialRequirement.MinimumBalance)
	assert.JSONEq(t, `{"platform":"farcaster","accountId":"1"}`, string(got.Metadata))
	assert.False(t, got.Hidden)
}

func TestActionRepo_GetMissing(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActionRepo(db)

	got, err := repo.Get(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestActionRepo_UpsertReplaces(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActionRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, model.Action{ID: "a", Type: model.ActionTypeCreatePost}))
	require.NoError(t, repo.Upsert(ctx, model.Action{ID: "a", Type: model.ActionTypeDeletePostTwitter, Hidden: true}))

	got, err := repo.Get(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, model.ActionTypeDeletePostTwitter, got.Type)
	assert.True(t, got.Hidden)
	assert.Nil(t, got.CredentialID)
	assert.Nil(t, got.CredentialRequirement)

	all, err := repo.ListAll(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestActionRepo_ListVisible(t *testing.T) {
	db := setupTestDB(t)
	repo := NewActionRepo(db)
	ctx := context.Background()

	require.NoError(t, repo.Upsert(ctx, model.Action{ID: "a", Type: model.ActionTypeCreatePost, CommunityID: strPtr("c1")}))
	require.NoError(t, repo.Upsert(ctx, model.Action{ID: "b", Type: model.ActionTypeCreatePost, CommunityID: strPtr("c2")}))
	require.NoError(t, repo.Upsert(ctx, model.Action{ID: "c", Type: model.ActionTypeCreatePost, CommunityID: strPtr("c1"), Hidden: true}))

	all, err := repo.ListVisible(ctx, "")
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "b", all[1].ID)

	c1, err := repo.ListVisible(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, c1, 1)
	assert.Equal(t, "a", c1[0].ID)
}
