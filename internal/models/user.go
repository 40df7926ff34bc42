package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

// UsernameCooldown is how long a user must wait between username changes.
const UsernameCooldown = 30 * 24 * time.Hour

type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`

	Username          string     `gorm:"uniqueIndex;size:100;not null" json:"username"`
	PasswordHash      string     `gorm:"size:128;not null" json:"-"`
	Role              string     `gorm:"size:16;index;not null;default:user" json:"role"`
	ProfilePicture    string     `gorm:"type:text" json:"profile_picture,omitempty"`
	UsernameChangedAt *time.Time `json:"username_changed_at,omitempty"`
}

func (u *User) SetPassword(plain string) error {
	h, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = string(h)
	return nil
}

func (u *User) CheckPassword(plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(plain)) == nil
}

func (u *User) IsAdmin() bool { return u.Role == RoleAdmin }

// NextUsernameChange returns when the user may rename again; zero means now.
func (u *User) NextUsernameChange(now time.Time) time.Time {
	if u.UsernameChangedAt == nil {
		return time.Time{}
	}
	next := u.UsernameChangedAt.Add(UsernameCooldown)
	if !next.After(now) {
		return time.Time{}
	}
	return next
}
