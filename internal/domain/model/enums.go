package model

// CredentialType is the kind of balance fact a credential proves.
type CredentialType string

const (
	CredentialTypeERC20Balance  CredentialType = "ERC20_BALANCE"
	CredentialTypeERC721Balance CredentialType = "ERC721_BALANCE"
)

// Valid reports whether t is a known credential type.
func (t CredentialType) Valid() bool {
	switch t {
	case CredentialTypeERC20Balance, CredentialTypeERC721Balance:
		return true
	}
	return false
}

// ActionType selects the handler that runs an action.
type ActionType string

const (
	ActionTypeCreatePost          ActionType = "CREATE_POST"
	ActionTypeCopyPostFarcaster   ActionType = "COPY_POST_FARCASTER"
	ActionTypeCopyPostTwitter     ActionType = "COPY_POST_TWITTER"
	ActionTypeDeletePostFarcaster ActionType = "DELETE_POST_FARCASTER"
	ActionTypeDeletePostTwitter   ActionType = "DELETE_POST_TWITTER"
)

// ExecutionStatus is the outcome recorded for an action execution attempt.
type ExecutionStatus string

const (
	ExecutionStatusSuccess ExecutionStatus = "SUCCESS"
	ExecutionStatusFailed  ExecutionStatus = "FAILED"
)

// Platform identifies a social platform posts are created on.
type Platform string

const (
	PlatformFarcaster Platform = "farcaster"
	PlatformTwitter   Platform = "twitter"
)

// Valid reports whether p is a known platform.
func (p Platform) Valid() bool {
	return p == PlatformFarcaster || p == PlatformTwitter
}
