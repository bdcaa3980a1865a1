package application

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

type registryFixture struct {
	registry  *ActionRegistry
	farcaster *mockSocialClient
	twitter   *mockSocialClient
	links     *mockPostLinkStore
}

func newRegistryFixture() *registryFixture {
	farcaster := newMockSocialClient(model.PlatformFarcaster)
	twitter := newMockSocialClient(model.PlatformTwitter)
	links := newMockPostLinkStore()

	return &registryFixture{
		registry:  NewActionRegistry(NewPlatformClientProvider(farcaster, twitter), links),
		farcaster: farcaster,
		twitter:   twitter,
		links:     links,
	}
}

func testAction(id string, typ model.ActionType, metadata string) model.Action {
	return model.Action{ID: id, Type: typ, Metadata: json.RawMessage(metadata)}
}

func TestActionRegistry_Validate(t *testing.T) {
	r := newRegistryFixture().registry

	tests := []struct {
		name    string
		action  model.Action
		wantErr error
	}{
		{
			name:   "create post",
			action: testAction("post", model.ActionTypeCreatePost, `{"platform":"farcaster","accountId":"anon","followUps":["mirror"]}`),
		},
		{
			name:   "copy to twitter defaults to farcaster source",
			action: testAction("mirror", model.ActionTypeCopyPostTwitter, `{"accountId":"anon-x"}`),
		},
		{
			name:   "delete",
			action: testAction("rm", model.ActionTypeDeletePostFarcaster, `{"accountId":"anon"}`),
		},
		{
			name:    "unknown type",
			action:  testAction("x", model.ActionType("SEND_TOKENS"), `{}`),
			wantErr: model.ErrUnknownActionType,
		},
		{
			name:    "unknown metadata field",
			action:  testAction("post", model.ActionTypeCreatePost, `{"platform":"farcaster","accountId":"anon","channel":"x"}`),
			wantErr: model.ErrInvalidActionConfig,
		},
		{
			name:    "unknown platform",
			action:  testAction("post", model.ActionTypeCreatePost, `{"platform":"lens","accountId":"anon"}`),
			wantErr: model.ErrInvalidActionConfig,
		},
		{
			name:    "missing account",
			action:  testAction("rm", model.ActionTypeDeletePostTwitter, `{}`),
			wantErr: model.ErrInvalidActionConfig,
		},
		{
			name:    "self follow-up",
			action:  testAction("post", model.ActionTypeCreatePost, `{"platform":"twitter","accountId":"anon","followUps":["post"]}`),
			wantErr: model.ErrInvalidActionConfig,
		},
		{
			name:    "copy onto its own platform",
			action:  testAction("mirror", model.ActionTypeCopyPostTwitter, `{"accountId":"anon","sourcePlatform":"twitter"}`),
			wantErr: model.ErrInvalidActionConfig,
		},
		{
			name: "negative minimum balance",
			action: model.Action{
				ID:                    "post",
				Type:                  model.ActionTypeCreatePost,
				Metadata:              json.RawMessage(`{"platform":"twitter","accountId":"anon"}`),
				CredentialRequirement: &model.CredentialRequirement{MinimumBalance: "-1"},
			},
			wantErr: model.ErrInvalidActionConfig,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Validate(tt.action)
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestCreatePost_SanitizesText(t *testing.T) {
	f := newRegistryFixture()
	a := testAction("post", model.ActionTypeCreatePost, `{"platform":"farcaster","accountId":"anon"}`)

	h, err := f.registry.Build(a, json.RawMessage(`{"text":"  gm <script>alert(1)</script><b>frens</b> &amp; co  "}`), ResolvedCredentials{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, model.PlatformFarcaster, resp.Platform)

	require.Len(t, f.farcaster.created, 1)
	assert.Equal(t, "gm frens & co", f.farcaster.created[0].Text)
}

func TestCreatePost_RejectsBadData(t *testing.T) {
	f := newRegistryFixture()
	a := testAction("post", model.ActionTypeCreatePost, `{"platform":"twitter","accountId":"anon","maxLength":10}`)

	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `{"text":`},
		{name: "empty", data: `{"text":"   "}`},
		{name: "markup only", data: `{"text":"<img src=x>"}`},
		{name: "too long", data: `{"text":"` + strings.Repeat("a", 11) + `"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.registry.Build(a, json.RawMessage(tt.data), ResolvedCredentials{})
			require.ErrorIs(t, err, model.ErrInvalidActionData)
		})
	}
}

func TestCreatePost_LengthCountsRunes(t *testing.T) {
	f := newRegistryFixture()
	a := testAction("post", model.ActionTypeCreatePost, `{"platform":"twitter","accountId":"anon","maxLength":3}`)

	_, err := f.registry.Build(a, json.RawMessage(`{"text":"gm☀"}`), ResolvedCredentials{})
	require.NoError(t, err)
}

func TestCreatePost_NextEmitsFollowUps(t *testing.T) {
	f := newRegistryFixture()
	a := testAction("post", model.ActionTypeCreatePost, `{"platform":"farcaster","accountId":"anon","followUps":["mirror","archive"]}`)

	creds := ResolvedCredentials{Supplied: []model.Credential{{ID: "cred-1"}, {ID: "cred-2"}}}
	h, err := f.registry.Build(a, json.RawMessage(`{"text":"gm"}`), creds)
	require.NoError(t, err)
	assert.Empty(t, h.Next(), "no follow-ups before the post exists")

	resp, err := h.Handle(context.Background())
	require.NoError(t, err)

	next := h.Next()
	require.Len(t, next, 2)
	assert.Equal(t, "mirror", next[0].ActionID)
	assert.Equal(t, "archive", next[1].ActionID)
	assert.JSONEq(t, `{"postId":"`+resp.PostID+`"}`, string(next[0].Data))
	assert.Equal(t, []string{"cred-1", "cred-2"}, next[1].CredentialIDs)
}

func TestCreatePost_RateLimitIsRefusal(t *testing.T) {
	f := newRegistryFixture()
	f.twitter.err = driven.ErrRateLimited
	a := testAction("post", model.ActionTypeCreatePost, `{"platform":"twitter","accountId":"anon"}`)

	h, err := f.registry.Build(a, json.RawMessage(`{"text":"gm"}`), ResolvedCredentials{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Message, "rate limited")
	assert.Empty(t, h.Next())
}

func TestCreatePost_UnconfiguredPlatform(t *testing.T) {
	r := NewActionRegistry(NewPlatformClientProvider(newMockSocialClient(model.PlatformFarcaster)), newMockPostLinkStore())
	a := testAction("post", model.ActionTypeCreatePost, `{"platform":"twitter","accountId":"anon"}`)

	_, err := r.Build(a, json.RawMessage(`{"text":"gm"}`), ResolvedCredentials{})
	require.ErrorIs(t, err, ErrPlatformNotConfigured)
}

func TestCopyPost_CreatesCopyAndLink(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	f.farcaster.posts["fc-1"] = model.PostContent{Text: "gm", Embeds: []string{"https://img"}, ReplyTo: "fc-0"}
	a := testAction("mirror", model.ActionTypeCopyPostTwitter, `{"accountId":"anon-x"}`)

	h, err := f.registry.Build(a, json.RawMessage(`{"postId":"fc-1"}`), ResolvedCredentials{})
	require.NoError(t, err)

	resp, err := h.Handle(ctx)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, model.PlatformTwitter, resp.Platform)

	require.Len(t, f.twitter.created, 1)
	assert.Equal(t, "gm", f.twitter.created[0].Text)
	assert.Equal(t, []string{"https://img"}, f.twitter.created[0].Embeds)
	assert.Empty(t, f.twitter.created[0].ReplyTo, "replies are not carried across platforms")

	link, err := f.links.Find(ctx, "fc-1", model.PlatformTwitter)
	require.NoError(t, err)
	require.NotNil(t, link)
	assert.Equal(t, resp.PostID, link.TargetPostID)
	assert.Equal(t, "anon-x", link.TargetAccountID)
}

func TestCopyPost_ExistingLinkIsReused(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	require.NoError(t, f.links.Save(ctx, model.PostLink{
		SourcePostID: "fc-1", TargetPlatform: model.PlatformTwitter, TargetPostID: "tw-9",
	}))
	a := testAction("mirror", model.ActionTypeCopyPostTwitter, `{"accountId":"anon-x"}`)

	h, err := f.registry.Build(a, json.RawMessage(`{"postId":"fc-1"}`), ResolvedCredentials{})
	require.NoError(t, err)

	resp, err := h.Handle(ctx)
	require.NoError(t, err)
	assert.Equal(t, "tw-9", resp.PostID)
	assert.Zero(t, f.twitter.createdCount())
}

func TestCopyPost_MissingSourceIsRefusal(t *testing.T) {
	f := newRegistryFixture()
	a := testAction("mirror", model.ActionTypeCopyPostTwitter, `{"accountId":"anon-x"}`)

	h, err := f.registry.Build(a, json.RawMessage(`{"postId":"gone"}`), ResolvedCredentials{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.Success)
}

func TestCopyPost_RequiresPostID(t *testing.T) {
	f := newRegistryFixture()
	a := testAction("mirror", model.ActionTypeCopyPostFarcaster, `{"accountId":"anon"}`)

	_, err := f.registry.Build(a, json.RawMessage(`{}`), ResolvedCredentials{})
	require.ErrorIs(t, err, model.ErrInvalidActionData)
}

func TestDeletePost_BySourceIDDeletesCopy(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	f.twitter.posts["tw-9"] = model.PostContent{Text: "gm"}
	require.NoError(t, f.links.Save(ctx, model.PostLink{
		SourcePostID: "fc-1", TargetPlatform: model.PlatformTwitter, TargetPostID: "tw-9",
	}))
	a := testAction("rm", model.ActionTypeDeletePostTwitter, `{"accountId":"anon-x"}`)

	h, err := f.registry.Build(a, json.RawMessage(`{"postId":"fc-1"}`), ResolvedCredentials{})
	require.NoError(t, err)

	resp, err := h.Handle(ctx)
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Equal(t, "tw-9", resp.PostID)
	assert.Equal(t, []string{"tw-9"}, f.twitter.deleted)

	link, err := f.links.Find(ctx, "fc-1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestDeletePost_ByTargetIDRemovesLink(t *testing.T) {
	f := newRegistryFixture()
	ctx := context.Background()
	f.twitter.posts["tw-9"] = model.PostContent{Text: "gm"}
	require.NoError(t, f.links.Save(ctx, model.PostLink{
		SourcePostID: "fc-1", TargetPlatform: model.PlatformTwitter, TargetPostID: "tw-9",
	}))
	a := testAction("rm", model.ActionTypeDeletePostTwitter, `{"accountId":"anon-x"}`)

	h, err := f.registry.Build(a, json.RawMessage(`{"postId":"tw-9"}`), ResolvedCredentials{})
	require.NoError(t, err)

	_, err = h.Handle(ctx)
	require.NoError(t, err)

	link, err := f.links.Find(ctx, "fc-1", model.PlatformTwitter)
	require.NoError(t, err)
	assert.Nil(t, link)
}

func TestDeletePost_UnknownPostIsRefusal(t *testing.T) {
	f := newRegistryFixture()
	a := testAction("rm", model.ActionTypeDeletePostFarcaster, `{"accountId":"anon"}`)

	h, err := f.registry.Build(a, json.RawMessage(`{"postId":"nope"}`), ResolvedCredentials{})
	require.NoError(t, err)

	resp, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.False(t, resp.Success)
}
