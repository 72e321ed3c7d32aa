package models

import "time"

// Vote binds a voting user to exactly one target, a post or a comment.
// The unique indexes make the vote row the single source of truth for
// "has this user voted on this target": a second insert for the same
// pair fails instead of double-counting.
type Vote struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	UserID    uint      `gorm:"not null;uniqueIndex:uniq_user_post;uniqueIndex:uniq_user_comment" json:"user_id"`
	PostID    *uint     `gorm:"uniqueIndex:uniq_user_post" json:"post_id,omitempty"`
	CommentID *uint     `gorm:"uniqueIndex:uniq_user_comment" json:"comment_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
