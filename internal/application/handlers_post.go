package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"math/big"
	"strings"
	"unicode/utf8"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// defaultMaxLength is the post length limit per platform when an action sets none.
var defaultMaxLength = map[model.Platform]int{
	model.PlatformFarcaster: 1024,
	model.PlatformTwitter:   280,
}

type createPostMetadata struct {
	Platform  model.Platform `json:"platform"`
	AccountID string         `json:"accountId"`
	MaxLength int            `json:"maxLength,omitempty"`
	FollowUps []string       `json:"followUps,omitempty"`
}

func (m createPostMetadata) validate() error {
	if !m.Platform.Valid() {
		return fmt.Errorf("unknown platform %q", m.Platform)
	}
	if m.AccountID == "" {
		return errors.New("accountId is required")
	}
	if m.MaxLength < 0 {
		return errors.New("maxLength must not be negative")
	}
	for _, id := range m.FollowUps {
		if id == "" {
			return errors.New("followUps must not contain empty ids")
		}
	}
	return nil
}

func (m createPostMetadata) maxLength() int {
	if m.MaxLength > 0 {
		return m.MaxLength
	}
	return defaultMaxLength[m.Platform]
}

type copyPostMetadata struct {
	AccountID      string         `json:"accountId"`
	SourcePlatform model.Platform `json:"sourcePlatform,omitempty"`
}

func (m copyPostMetadata) validate(target model.Platform) error {
	if m.AccountID == "" {
		return errors.New("accountId is required")
	}
	if m.SourcePlatform != "" && !m.SourcePlatform.Valid() {
		return fmt.Errorf("unknown source platform %q", m.SourcePlatform)
	}
	if m.source(target) == target {
		return errors.New("source and target platform are the same")
	}
	return nil
}

// source defaults to the other platform.
func (m copyPostMetadata) source(target model.Platform) model.Platform {
	if m.SourcePlatform != "" {
		return m.SourcePlatform
	}
	if target == model.PlatformFarcaster {
		return model.PlatformTwitter
	}
	return model.PlatformFarcaster
}

type deletePostMetadata struct {
	AccountID string `json:"accountId"`
}

type createPostData struct {
	Text    string   `json:"text"`
	Embeds  []string `json:"embeds,omitempty"`
	ReplyTo string   `json:"replyTo,omitempty"`
}

type postRefData struct {
	PostID string `json:"postId"`
}

func decodePostRef(data json.RawMessage) (postRefData, error) {
	var d postRefData
	if err := json.Unmarshal(data, &d); err != nil {
		return d, fmt.Errorf("%w: %w", model.ErrInvalidActionData, err)
	}
	if d.PostID == "" {
		return d, fmt.Errorf("%w: postId is required", model.ErrInvalidActionData)
	}
	return d, nil
}

// platformRefusal turns a refusal by the platform into an unsuccessful
// response. Other errors are returned unchanged.
func platformRefusal(platform model.Platform, err error) (*model.ActionResponse, error) {
	if errors.Is(err, driven.ErrRateLimited) || errors.Is(err, driven.ErrPostNotFound) {
		return &model.ActionResponse{Success: false, Platform: platform, Message: err.Error()}, nil
	}
	return nil, err
}

// createPostHandler publishes a new post.
type createPostHandler struct {
	client  driven.SocialPlatformClient
	md      createPostMetadata
	content model.PostContent
	creds   ResolvedCredentials
	postID  string
}

func (r *ActionRegistry) buildCreatePost(action model.Action, data json.RawMessage, creds ResolvedCredentials) (ActionHandler, error) {
	var md createPostMetadata
	_ = json.Unmarshal(action.Metadata, &md) // Validated by Build.

	var d createPostData
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("%w: %w", model.ErrInvalidActionData, err)
	}

	text := strings.TrimSpace(html.UnescapeString(r.policy.Sanitize(d.Text)))
	if text == "" {
		return nil, fmt.Errorf("%w: text is empty", model.ErrInvalidActionData)
	}
	if n := utf8.RuneCountInString(text); n > md.maxLength() {
		return nil, fmt.Errorf("%w: text is %d characters, limit is %d", model.ErrInvalidActionData, n, md.maxLength())
	}

	client, err := r.clients.Get(md.Platform)
	if err != nil {
		return nil, err
	}

	return &createPostHandler{
		client:  client,
		md:      md,
		content: model.PostContent{Text: text, Embeds: d.Embeds, ReplyTo: d.ReplyTo},
		creds:   creds,
	}, nil
}

func (h *createPostHandler) Handle(ctx context.Context) (*model.ActionResponse, error) {
	id, err := h.client.CreatePost(ctx, h.md.AccountID, h.content)
	if err != nil {
		return platformRefusal(h.md.Platform, err)
	}

	h.postID = id
	return &model.ActionResponse{Success: true, Platform: h.md.Platform, PostID: id}, nil
}

// Next fans the new post out to the configured follow-up actions, authorized
// by the same credentials.
func (h *createPostHandler) Next() []model.ActionRequest {
	if h.postID == "" || len(h.md.FollowUps) == 0 {
		return nil
	}

	data, _ := json.Marshal(postRefData{PostID: h.postID})
	ids := h.creds.IDs()
	next := make([]model.ActionRequest, 0, len(h.md.FollowUps))
	for _, id := range h.md.FollowUps {
		next = append(next, model.ActionRequest{
			ActionID:      id,
			Data:          data,
			CredentialIDs: ids,
		})
	}
	return next
}

// copyPostHandler mirrors a post from one platform onto another.
type copyPostHandler struct {
	source driven.SocialPlatformClient
	target driven.SocialPlatformClient
	links  driven.PostLinkStore
	md     copyPostMetadata
	postID string
}

func (r *ActionRegistry) buildCopyPost(action model.Action, data json.RawMessage) (ActionHandler, error) {
	var md copyPostMetadata
	_ = json.Unmarshal(action.Metadata, &md) // Validated by Build.

	d, err := decodePostRef(data)
	if err != nil {
		return nil, err
	}

	targetP := targetPlatform(action.Type)
	target, err := r.clients.Get(targetP)
	if err != nil {
		return nil, err
	}
	source, err := r.clients.Get(md.source(targetP))
	if err != nil {
		return nil, err
	}

	return &copyPostHandler{source: source, target: target, links: r.links, md: md, postID: d.PostID}, nil
}

func (h *copyPostHandler) Handle(ctx context.Context) (*model.ActionResponse, error) {
	platform := h.target.Platform()

	link, err := h.links.Find(ctx, h.postID, platform)
	if err != nil {
		return nil, err
	}
	if link != nil {
		return &model.ActionResponse{Success: true, Platform: platform, PostID: link.TargetPostID}, nil
	}

	post, err := h.source.GetPost(ctx, h.postID)
	if err != nil {
		return platformRefusal(platform, err)
	}

	// Replies reference ids on the source platform and cannot be carried over.
	content := post.Content
	content.ReplyTo = ""

	id, err := h.target.CreatePost(ctx, h.md.AccountID, content)
	if err != nil {
		return platformRefusal(platform, err)
	}

	if err := h.links.Save(ctx, model.PostLink{
		SourcePostID:    h.postID,
		TargetPlatform:  platform,
		TargetAccountID: h.md.AccountID,
		TargetPostID:    id,
	}); err != nil {
		return nil, fmt.Errorf("record copy of %s as %s: %w", h.postID, id, err)
	}

	return &model.ActionResponse{Success: true, Platform: platform, PostID: id}, nil
}

func (h *copyPostHandler) Next() []model.ActionRequest { return nil }

// deletePostHandler deletes a post, or its copy when the id names a source post.
type deletePostHandler struct {
	client driven.SocialPlatformClient
	links  driven.PostLinkStore
	md     deletePostMetadata
	postID string
}

func (r *ActionRegistry) buildDeletePost(action model.Action, data json.RawMessage) (ActionHandler, error) {
	var md deletePostMetadata
	_ = json.Unmarshal(action.Metadata, &md) // Validated by Build.

	d, err := decodePostRef(data)
	if err != nil {
		return nil, err
	}

	client, err := r.clients.Get(targetPlatform(action.Type))
	if err != nil {
		return nil, err
	}

	return &deletePostHandler{client: client, links: r.links, md: md, postID: d.PostID}, nil
}

func (h *deletePostHandler) Handle(ctx context.Context) (*model.ActionResponse, error) {
	platform := h.client.Platform()

	link, err := h.links.Find(ctx, h.postID, platform)
	if err != nil {
		return nil, err
	}

	target := h.postID
	source := ""
	if link != nil {
		target = link.TargetPostID
		source = link.SourcePostID
	} else {
		byTarget, err := h.links.FindByTarget(ctx, h.postID, platform)
		if err != nil {
			return nil, err
		}
		if byTarget != nil {
			source = byTarget.SourcePostID
		}
	}

	if err := h.client.DeletePost(ctx, h.md.AccountID, target); err != nil {
		return platformRefusal(platform, err)
	}

	if source != "" {
		if err := h.links.Delete(ctx, source, platform); err != nil {
			return nil, fmt.Errorf("remove link for deleted post %s: %w", target, err)
		}
	}

	return &model.ActionResponse{Success: true, Platform: platform, PostID: target}, nil
}

func (h *deletePostHandler) Next() []model.ActionRequest { return nil }

// parseDecimal parses a non-negative base-10 integer.
func parseDecimal(s string) (*big.Int, bool) {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok || n.Sign() < 0 {
		return nil, false
	}
	return n, true
}
