package model

import (
	"sort"
	"time"
)

// SavedPost is a rewind record: the post as the saving user saw it at save
// time, own reaction and battle flag included. Saved posts never expire.
type SavedPost struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Post          PostView  `json:"post"`
	SavedAt       time.Time `json:"saved_at"`
	MonthKey      string    `json:"month_key"`
	IsPremiumSave bool      `json:"is_premium_save"`
}

// Clone deep-copies the record.
func (s SavedPost) Clone() SavedPost {
	out := s
	out.Post = s.Post.Clone()
	return out
}

// SortSavedNewestFirst orders saves by SavedAt descending, ID ascending on ties.
func SortSavedNewestFirst(saved []SavedPost) {
	sort.Slice(saved, func(i, j int) bool {
		if !saved[i].SavedAt.Equal(saved[j].SavedAt) {
			return saved[i].SavedAt.After(saved[j].SavedAt)
		}
		return saved[i].ID < saved[j].ID
	})
}

// UserContext identifies the caller. It is produced by an external identity
// component and treated as opaque input.
type UserContext struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name"`
	Entitled    bool   `json:"entitled"`
}

// AnonymousUserID is used when the identity component supplies no id.
const AnonymousUserID = "anonymous"

// Key returns the id used to key per-user state.
func (u UserContext) Key() string {
	if u.UserID == "" {
		return AnonymousUserID
	}
	return u.UserID
}

// Name returns the normalised display name, falling back to the key.
func (u UserContext) Name() string {
	if n := NormalizeName(u.DisplayName); n != "" {
		return n
	}
	return u.Key()
}
