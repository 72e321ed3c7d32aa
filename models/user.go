package models

import (
	"time"

	"gorm.io/gorm"
)

// Role values stored in users.role.
const (
	RoleMember = "member"
	RoleAdmin  = "admin"
)

// User represents a forum user. Passwords are stored as bcrypt hashes only.
// Reputation is mutated exclusively through the services reputation ledger.
type User struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	Username     string    `gorm:"size:64;uniqueIndex;not null" json:"username"`
	Email        string    `gorm:"size:255" json:"email,omitempty"`
	DisplayName  string    `gorm:"size:64" json:"display_name"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Reputation   int       `gorm:"default:0" json:"reputation"`
	Role         string    `gorm:"size:16;default:'member'" json:"role"`
	IsBanned     bool      `gorm:"default:false" json:"is_banned"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Posts        []Post    `json:"-"`
	Comments     []Comment `json:"-"`
	Votes        []Vote    `json:"-"`
}

// IsAdmin reports whether the user holds the admin role.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// BeforeCreate hook ensures defaults are set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if u.CreatedAt.IsZero() {
		u.CreatedAt = now
	}
	u.UpdatedAt = now
	if u.Role == "" {
		u.Role = RoleMember
	}
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}
	return nil
}

// BeforeUpdate refreshes the UpdatedAt timestamp.
func (u *User) BeforeUpdate(tx *gorm.DB) error {
	u.UpdatedAt = time.Now()
	return nil
}
