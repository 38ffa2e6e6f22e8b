package model

import "time"

// EventKind names a state transition observable by notification sinks.
type EventKind string

const (
	EventPostCreated        EventKind = "post.created"
	EventPostReacted        EventKind = "post.reacted"
	EventPostDeleted        EventKind = "post.deleted"
	EventPostExpired        EventKind = "post.expired"
	EventBattleStarted      EventKind = "battle.started"
	EventBattleVoted        EventKind = "battle.voted"
	EventBattleResolved     EventKind = "battle.resolved"
	EventBattleDropped      EventKind = "battle.dropped"
	EventRewindSaved        EventKind = "rewind.saved"
	EventRewindDeleted      EventKind = "rewind.deleted"
	EventEntitlementGranted EventKind = "rewind.entitlement"
	EventRewindMonthlyReset EventKind = "rewind.reset"
)

// Event describes one transition. Seq gives a total order across all
// events emitted by one facade.
type Event struct {
	Seq      int64             `json:"seq"`
	Kind     EventKind         `json:"kind"`
	At       time.Time         `json:"at"`
	UserID   string            `json:"user_id,omitempty"`
	PostID   string            `json:"post_id,omitempty"`
	BattleID string            `json:"battle_id,omitempty"`
	SavedID  string            `json:"saved_id,omitempty"`
	Details  map[string]string `json:"details,omitempty"`
}
