package model

import (
	"sort"
	"time"
)

// Reaction is a caller's reaction to a post.
type Reaction string

const (
	ReactionNone    Reaction = ""
	ReactionLike    Reaction = "like"
	ReactionDislike Reaction = "dislike"
)

// ParseReaction converts user input into a Reaction.
func ParseReaction(s string) (Reaction, error) {
	switch Reaction(s) {
	case ReactionLike, ReactionDislike:
		return Reaction(s), nil
	}
	return ReactionNone, NewInvalidContent("reaction must be like or dislike, got " + s)
}

// Style carries presentation hints chosen at creation time.
// The engine stores them verbatim.
type Style struct {
	Background string `json:"background,omitempty" yaml:"background,omitempty"`
	TextColor  string `json:"text_color,omitempty" yaml:"text_color,omitempty"`
	Theme      string `json:"theme,omitempty" yaml:"theme,omitempty"`
}

// Draft is the caller-supplied part of a new post.
type Draft struct {
	Payload Payload `json:"payload" yaml:"payload"`
	Style   Style   `json:"style,omitempty" yaml:"style,omitempty"`
}

// Post is an ephemeral ghost.
type Post struct {
	ID           string              `json:"id"`
	AuthorID     string              `json:"author_id"`
	DisplayName  string              `json:"display_name"`
	Payload      Payload             `json:"payload"`
	Style        Style               `json:"style"`
	CreatedAt    time.Time           `json:"created_at"`
	ExpiresAt    time.Time           `json:"expires_at"`
	LikeCount    int                 `json:"like_count"`
	DislikeCount int                 `json:"dislike_count"`
	Reactions    map[string]Reaction `json:"reactions,omitempty"`
	BattleID     string              `json:"battle_id,omitempty"`
}

// InBattle reports whether the post is part of an active or resolved battle.
func (p Post) InBattle() bool {
	return p.BattleID != ""
}

// ReactionOf returns userID's current reaction.
func (p Post) ReactionOf(userID string) Reaction {
	return p.Reactions[userID]
}

// Clone deep-copies the post.
func (p Post) Clone() Post {
	out := p
	out.Payload = p.Payload.Clone()
	if p.Reactions != nil {
		out.Reactions = make(map[string]Reaction, len(p.Reactions))
		for k, v := range p.Reactions {
			out.Reactions[k] = v
		}
	}
	return out
}

// PostView is a post as seen by one caller: derived flags are filled in and
// other users' reactions are not exposed.
type PostView struct {
	ID           string    `json:"id"`
	AuthorID     string    `json:"author_id"`
	DisplayName  string    `json:"display_name"`
	Kind         string    `json:"kind"`
	Payload      Payload   `json:"payload"`
	Style        Style     `json:"style"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
	LikeCount    int       `json:"like_count"`
	DislikeCount int       `json:"dislike_count"`
	Liked        bool      `json:"liked"`
	Disliked     bool      `json:"disliked"`
	BattleID     string    `json:"battle_id,omitempty"`
	InBattle     bool      `json:"in_battle"`
}

// View renders the post for userID.
func (p Post) View(userID string) PostView {
	r := p.ReactionOf(userID)
	return PostView{
		ID:           p.ID,
		AuthorID:     p.AuthorID,
		DisplayName:  p.DisplayName,
		Kind:         string(p.Payload.Kind()),
		Payload:      p.Payload.Clone(),
		Style:        p.Style,
		CreatedAt:    p.CreatedAt,
		ExpiresAt:    p.ExpiresAt,
		LikeCount:    p.LikeCount,
		DislikeCount: p.DislikeCount,
		Liked:        r == ReactionLike,
		Disliked:     r == ReactionDislike,
		BattleID:     p.BattleID,
		InBattle:     p.InBattle(),
	}
}

// Clone deep-copies the view.
func (v PostView) Clone() PostView {
	out := v
	out.Payload = v.Payload.Clone()
	return out
}

// SortPostsNewestFirst orders posts by CreatedAt descending, ID ascending on ties.
func SortPostsNewestFirst(posts []Post) {
	sort.Slice(posts, func(i, j int) bool {
		if !posts[i].CreatedAt.Equal(posts[j].CreatedAt) {
			return posts[i].CreatedAt.After(posts[j].CreatedAt)
		}
		return posts[i].ID < posts[j].ID
	})
}
