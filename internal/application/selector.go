package application

import (
	"sort"
	"time"

	"github.com/makerdock/anonzora/internal/domain/model"
)

// SelectCredential picks the credential that satisfies action, or nil.
// Only current credentials of the action's class are considered, and the one
// with the smallest sufficient balance wins so larger balances stay unlinked
// from low-stakes actions. An action without a credential class selects nothing.
func SelectCredential(creds []model.Credential, action model.Action, now time.Time) *model.Credential {
	if !action.RequiresCredential() {
		return nil
	}

	candidates := make([]model.Credential, 0, len(creds))
	for _, c := range creds {
		if c.Class == *action.CredentialID && c.IsCurrent(now) {
			candidates = append(candidates, c)
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Metadata.BalanceInt().Cmp(candidates[j].Metadata.BalanceInt()) < 0
	})

	minimum := action.MinimumBalanceInt()
	for i := range candidates {
		if candidates[i].Metadata.BalanceInt().Cmp(minimum) >= 0 {
			return &candidates[i]
		}
	}
	return nil
}

// AuthorizeCredential applies SelectCredential and explains a rejection.
// It returns (nil, nil) for actions that need no credential.
func AuthorizeCredential(creds []model.Credential, action model.Action, now time.Time) (*model.Credential, error) {
	if !action.RequiresCredential() {
		return nil, nil
	}

	var live, fresh int
	for _, c := range creds {
		if c.Class != *action.CredentialID || c.IsSuperseded() {
			continue
		}
		live++
		if !c.IsExpired(now) {
			fresh++
		}
	}

	switch {
	case live == 0:
		return nil, model.ErrMissingCredential
	case fresh == 0:
		return nil, model.ErrCredentialExpired
	}

	selected := SelectCredential(creds, action, now)
	if selected == nil {
		return nil, model.ErrInsufficientBalance
	}
	return selected, nil
}
