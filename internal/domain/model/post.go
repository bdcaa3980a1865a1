package model

import "time"

// Post is a post fetched from a social platform.
type Post struct {
	ID        string
	Platform  Platform
	AuthorID  string
	Content   PostContent
	CreatedAt time.Time
}

// PostContent is the body of a post to create.
type PostContent struct {
	Text    string   `json:"text"`
	Embeds  []string `json:"embeds,omitempty"`
	ReplyTo string   `json:"replyTo,omitempty"`
}

// PostLink records that SourcePostID was copied to TargetPlatform as TargetPostID.
type PostLink struct {
	ID              int64
	SourcePostID    string
	TargetPlatform  Platform
	TargetAccountID string
	TargetPostID    string
	CreatedAt       time.Time
}
