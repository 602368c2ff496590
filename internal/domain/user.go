package domain

import "time"

// User represents a registered account together with its denormalized
// follow graph (follower and following id sets).
type User struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	FullName     string
	Bio          string
	Link         string
	ProfileImage string
	CoverImage   string
	Followers    []int64
	Following    []int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// IsFollowing reports whether the user currently follows the given id.
func (u *User) IsFollowing(id int64) bool {
	for _, f := range u.Following {
		if f == id {
			return true
		}
	}
	return false
}

// UserPatch is a merge patch: only non-empty fields overwrite stored values.
type UserPatch struct {
	FullName     string
	Username     string
	Email        string
	Bio          string
	Link         string
	PasswordHash string
	ProfileImage string
	CoverImage   string
}

// IsZero reports whether the patch carries no changes at all.
func (p UserPatch) IsZero() bool {
	return p == UserPatch{}
}
