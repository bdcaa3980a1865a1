package application

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/microcosm-cc/bluemonday"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// ActionHandler runs one action request. Next is only consulted after Handle
// succeeds and returns the follow-up requests to run in the same batch.
type ActionHandler interface {
	Handle(ctx context.Context) (*model.ActionResponse, error)
	Next() []model.ActionRequest
}

// ActionRegistry maps action types to handlers. The set of types is closed:
// every model.ActionType is handled here and anything else is rejected.
type ActionRegistry struct {
	clients *PlatformClientProvider
	links   driven.PostLinkStore
	policy  *bluemonday.Policy
}

// NewActionRegistry creates a registry posting through clients and tracking
// cross-platform copies in links.
func NewActionRegistry(clients *PlatformClientProvider, links driven.PostLinkStore) *ActionRegistry {
	return &ActionRegistry{
		clients: clients,
		links:   links,
		policy:  bluemonday.StrictPolicy(),
	}
}

// Validate checks that action has a known type and well-formed metadata.
// It runs when actions are loaded, not when they execute.
func (r *ActionRegistry) Validate(action model.Action) error {
	switch action.Type {
	case model.ActionTypeCreatePost:
		var md createPostMetadata
		if err := decodeStrict(action.Metadata, &md); err != nil {
			return fmt.Errorf("action %s: %w: %w", action.ID, model.ErrInvalidActionConfig, err)
		}
		if err := md.validate(); err != nil {
			return fmt.Errorf("action %s: %w: %w", action.ID, model.ErrInvalidActionConfig, err)
		}
		for _, id := range md.FollowUps {
			if id == action.ID {
				return fmt.Errorf("action %s: %w: action lists itself as a follow-up", action.ID, model.ErrInvalidActionConfig)
			}
		}
	case model.ActionTypeCopyPostFarcaster, model.ActionTypeCopyPostTwitter:
		var md copyPostMetadata
		if err := decodeStrict(action.Metadata, &md); err != nil {
			return fmt.Errorf("action %s: %w: %w", action.ID, model.ErrInvalidActionConfig, err)
		}
		if err := md.validate(targetPlatform(action.Type)); err != nil {
			return fmt.Errorf("action %s: %w: %w", action.ID, model.ErrInvalidActionConfig, err)
		}
	case model.ActionTypeDeletePostFarcaster, model.ActionTypeDeletePostTwitter:
		var md deletePostMetadata
		if err := decodeStrict(action.Metadata, &md); err != nil {
			return fmt.Errorf("action %s: %w: %w", action.ID, model.ErrInvalidActionConfig, err)
		}
		if md.AccountID == "" {
			return fmt.Errorf("action %s: %w: accountId is required", action.ID, model.ErrInvalidActionConfig)
		}
	default:
		return fmt.Errorf("action %s type %q: %w", action.ID, action.Type, model.ErrUnknownActionType)
	}

	if action.CredentialRequirement != nil && action.CredentialRequirement.MinimumBalance != "" {
		if _, ok := parseDecimal(action.CredentialRequirement.MinimumBalance); !ok {
			return fmt.Errorf("action %s: %w: minimumBalance must be a non-negative integer", action.ID, model.ErrInvalidActionConfig)
		}
	}

	return nil
}

// ResolvedCredentials is the credential set a request was authorized with.
type ResolvedCredentials struct {
	// Supplied holds the existing credentials among the request's ids.
	Supplied []model.Credential
	// Selected satisfied the action's requirement. Nil for ungated actions.
	Selected *model.Credential
}

// IDs returns the ids of the supplied credentials.
func (c ResolvedCredentials) IDs() []string {
	if len(c.Supplied) == 0 {
		return nil
	}
	ids := make([]string, len(c.Supplied))
	for i, cred := range c.Supplied {
		ids[i] = cred.ID
	}
	return ids
}

// Build returns the handler for running action with data. Malformed data is
// rejected here, before anything is reserved or executed.
func (r *ActionRegistry) Build(action model.Action, data json.RawMessage, creds ResolvedCredentials) (ActionHandler, error) {
	if err := r.Validate(action); err != nil {
		return nil, err
	}

	switch action.Type {
	case model.ActionTypeCreatePost:
		return r.buildCreatePost(action, data, creds)
	case model.ActionTypeCopyPostFarcaster, model.ActionTypeCopyPostTwitter:
		return r.buildCopyPost(action, data)
	case model.ActionTypeDeletePostFarcaster, model.ActionTypeDeletePostTwitter:
		return r.buildDeletePost(action, data)
	default:
		return nil, fmt.Errorf("action %s type %q: %w", action.ID, action.Type, model.ErrUnknownActionType)
	}
}

// targetPlatform returns the platform a copy or delete action acts on.
func targetPlatform(t model.ActionType) model.Platform {
	switch t {
	case model.ActionTypeCopyPostFarcaster, model.ActionTypeDeletePostFarcaster:
		return model.PlatformFarcaster
	case model.ActionTypeCopyPostTwitter, model.ActionTypeDeletePostTwitter:
		return model.PlatformTwitter
	}
	return ""
}

// decodeStrict unmarshals data into v rejecting unknown fields. Empty data
// decodes as an empty object.
func decodeStrict(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		data = json.RawMessage("{}")
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	return nil
}
