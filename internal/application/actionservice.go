package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/makerdock/anonzora/internal/domain/model"
	"github.com/makerdock/anonzora/internal/domain/port/driven"
)

// ActionSeed is one entry of the action configuration file.
type ActionSeed struct {
	ID                    string                       `json:"id"`
	Type                  model.ActionType             `json:"type"`
	CredentialID          *string                      `json:"credentialId,omitempty"`
	CredentialRequirement *model.CredentialRequirement `json:"credentialRequirement,omitempty"`
	Metadata              json.RawMessage              `json:"metadata,omitempty"`
	CommunityID           *string                      `json:"communityId,omitempty"`
	Hidden                bool                         `json:"hidden,omitempty"`
}

// ActionService owns the configured action catalog.
type ActionService struct {
	store    driven.ActionStore
	registry *ActionRegistry
	logger   *slog.Logger
}

// NewActionService creates an ActionService with the required dependencies.
func NewActionService(store driven.ActionStore, registry *ActionRegistry, logger *slog.Logger) *ActionService {
	return &ActionService{store: store, registry: registry, logger: logger}
}

// Seed reads a JSON array of actions from r, validates every entry, and
// upserts them. Nothing is written if any entry is invalid.
func (s *ActionService) Seed(ctx context.Context, r io.Reader) (int, error) {
	var seeds []ActionSeed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seeds); err != nil {
		return 0, fmt.Errorf("decode action seed: %w", err)
	}

	actions := make([]model.Action, 0, len(seeds))
	seen := make(map[string]bool, len(seeds))
	var errs []error
	for _, seed := range seeds {
		if seed.ID == "" {
			errs = append(errs, fmt.Errorf("%w: action without id", model.ErrInvalidActionConfig))
			continue
		}
		if seen[seed.ID] {
			errs = append(errs, fmt.Errorf("action %s: %w: duplicate id", seed.ID, model.ErrInvalidActionConfig))
			continue
		}
		seen[seed.ID] = true

		action := model.Action{
			ID:                    seed.ID,
			Type:                  seed.Type,
			CredentialID:          seed.CredentialID,
			CredentialRequirement: seed.CredentialRequirement,
			Metadata:              seed.Metadata,
			CommunityID:           seed.CommunityID,
			Hidden:                seed.Hidden,
		}
		if err := s.registry.Validate(action); err != nil {
			errs = append(errs, err)
			continue
		}
		actions = append(actions, action)
	}
	if len(errs) > 0 {
		return 0, errors.Join(errs...)
	}

	for _, a := range actions {
		if err := s.store.Upsert(ctx, a); err != nil {
			return 0, err
		}
	}

	s.logger.Info("actions seeded", "count", len(actions))
	return len(actions), nil
}

// ValidateAll checks every stored action, including follow-up references, so
// that a bad configuration fails at startup rather than at execution time.
func (s *ActionService) ValidateAll(ctx context.Context) error {
	actions, err := s.store.ListAll(ctx)
	if err != nil {
		return err
	}

	ids := make(map[string]bool, len(actions))
	for _, a := range actions {
		ids[a.ID] = true
	}

	var errs []error
	for _, a := range actions {
		if err := s.registry.Validate(a); err != nil {
			errs = append(errs, err)
			continue
		}
		if a.Type != model.ActionTypeCreatePost {
			continue
		}

		var md createPostMetadata
		_ = json.Unmarshal(a.Metadata, &md)
		for _, f := range md.FollowUps {
			if !ids[f] {
				errs = append(errs, fmt.Errorf("action %s: %w: follow-up %s does not exist",
					a.ID, model.ErrInvalidActionConfig, f))
			}
		}
	}

	return errors.Join(errs...)
}

// ListVisible returns the actions shown to clients, optionally for one community.
func (s *ActionService) ListVisible(ctx context.Context, communityID string) ([]model.Action, error) {
	return s.store.ListVisible(ctx, communityID)
}
