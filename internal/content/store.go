// Package content owns live posts and battles.
//
// Store is the single mutation point for posts and battles outside of
// reconciliation. Every method takes the store lock, so a Store is safe for
// concurrent use; composite sequences (reconcile, then command) are
// serialised one level up by the lifecycle facade.
package content

import (
	"log/slog"
	"sync"
	"time"

	"github.com/PiperEve/BlueGhost/internal/clock"
	"github.com/PiperEve/BlueGhost/internal/expiry"
	"github.com/PiperEve/BlueGhost/internal/model"
)

const (
	// DefaultPostTTL is the lifetime of a new post.
	DefaultPostTTL = 24 * time.Hour

	// DefaultBattleDuration is how long a battle accepts votes.
	DefaultBattleDuration = 24 * time.Hour
)

// Store holds the live content state.
type Store struct {
	mu     sync.Mutex
	state  model.ContentState
	clock  clock.Clock
	ids    model.IDGenerator
	logger *slog.Logger

	postTTL        time.Duration
	battleDuration time.Duration
	oneVotePerUser bool
	policy         expiry.Policy
}

// Option configures a Store.
type Option func(*Store)

// WithPostTTL overrides the post lifetime.
func WithPostTTL(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.postTTL = d
		}
	}
}

// WithBattleDuration overrides the voting window.
func WithBattleDuration(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.battleDuration = d
		}
	}
}

// WithOneVotePerUser rejects a second vote by the same user in one battle.
func WithOneVotePerUser(on bool) Option {
	return func(s *Store) {
		s.oneVotePerUser = on
	}
}

// WithPolicy sets the reconciliation policy used by Reconcile.
func WithPolicy(p expiry.Policy) Option {
	return func(s *Store) {
		s.policy = p
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) {
		if l != nil {
			s.logger = l
		}
	}
}

// New creates an empty Store. A nil clock uses clock.System and a nil id
// generator uses model.UUIDv7Generator.
func New(c clock.Clock, ids model.IDGenerator, opts ...Option) *Store {
	if c == nil {
		c = clock.System{}
	}
	if ids == nil {
		ids = model.UUIDv7Generator{}
	}
	s := &Store{
		state:          model.NewContentState(),
		clock:          c,
		ids:            ids,
		logger:         slog.Default(),
		postTTL:        DefaultPostTTL,
		battleDuration: DefaultBattleDuration,
		policy:         expiry.DefaultPolicy(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PostTTL returns the configured post lifetime.
func (s *Store) PostTTL() time.Duration {
	return s.postTTL
}

// BattleDuration returns the configured voting window.
func (s *Store) BattleDuration() time.Duration {
	return s.battleDuration
}

// newPost builds a post from a validated draft. Caller holds s.mu.
func (s *Store) newPost(user model.UserContext, draft model.Draft, now time.Time) (model.Post, error) {
	if err := draft.Payload.Validate(); err != nil {
		return model.Post{}, err
	}
	return model.Post{
		ID:          s.ids.NewID(),
		AuthorID:    user.Key(),
		DisplayName: user.Name(),
		Payload:     draft.Payload.Normalize(),
		Style:       draft.Style,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.postTTL),
	}, nil
}

// CreatePost stores a new post expiring PostTTL from now.
// Returns INVALID_CONTENT if the payload is absent or malformed.
func (s *Store) CreatePost(user model.UserContext, draft model.Draft) (model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.newPost(user, draft, s.clock.Now())
	if err != nil {
		return model.Post{}, err
	}
	s.state.Posts[p.ID] = p
	s.logger.Debug("post created", "post_id", p.ID, "author_id", p.AuthorID, "kind", p.Payload.Kind())
	return p.Clone(), nil
}

// DeletePost removes a post. It is idempotent and reports whether a post
// was removed. A battle referencing the post is left alone.
func (s *Store) DeletePost(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.Posts[id]; !ok {
		return false
	}
	delete(s.state.Posts, id)
	s.logger.Debug("post deleted", "post_id", id)
	return true
}

// React toggles the caller's reaction. Reacting with the current reaction
// clears it; reacting with the opposite one swaps it. Counts move exactly
// once per toggle. The returned bool is true when a new reaction was set.
func (s *Store) React(user model.UserContext, id string, kind model.Reaction) (model.Post, bool, error) {
	if kind != model.ReactionLike && kind != model.ReactionDislike {
		return model.Post{}, false, model.NewInvalidContent("reaction must be like or dislike")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.state.Posts[id]
	if !ok {
		return model.Post{}, false, model.NewNotFound("post", id)
	}
	p = p.Clone()
	if p.Reactions == nil {
		p.Reactions = make(map[string]model.Reaction)
	}

	key := user.Key()
	prev := p.Reactions[key]
	adjust(&p, prev, -1)

	set := prev != kind
	if set {
		p.Reactions[key] = kind
		adjust(&p, kind, +1)
	} else {
		delete(p.Reactions, key)
	}

	s.state.Posts[id] = p
	return p.Clone(), set, nil
}

func adjust(p *model.Post, r model.Reaction, delta int) {
	switch r {
	case model.ReactionLike:
		p.LikeCount += delta
	case model.ReactionDislike:
		p.DislikeCount += delta
	}
}

// CreateBattle challenges originalID with a new post built from draft.
//
// Errors: NOT_FOUND if the original is gone, ALREADY_IN_BATTLE if it has
// ever been in a battle, INVALID_CONTENT if the draft is malformed. On
// error nothing changes.
func (s *Store) CreateBattle(user model.UserContext, originalID string, draft model.Draft) (model.Battle, model.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	original, ok := s.state.Posts[originalID]
	if !ok {
		return model.Battle{}, model.Post{}, model.NewNotFound("post", originalID)
	}
	if original.InBattle() {
		return model.Battle{}, model.Post{}, model.NewAlreadyInBattle(originalID, original.BattleID)
	}

	now := s.clock.Now()
	challenge, err := s.newPost(user, draft, now)
	if err != nil {
		return model.Battle{}, model.Post{}, err
	}

	b := model.Battle{
		ID:              s.ids.NewID(),
		OriginalPostID:  originalID,
		ChallengePostID: challenge.ID,
		CreatedAt:       now,
		ExpiresAt:       now.Add(s.battleDuration),
		IsActive:        true,
	}
	challenge.BattleID = b.ID
	original = original.Clone()
	original.BattleID = b.ID

	s.state.Posts[challenge.ID] = challenge
	s.state.Posts[originalID] = original
	s.state.Battles[b.ID] = b

	s.logger.Debug("battle created",
		"battle_id", b.ID,
		"original_post_id", originalID,
		"challenge_post_id", challenge.ID,
		"expires_at", b.ExpiresAt,
	)
	return b.Clone(), challenge.Clone(), nil
}

// Vote adds one vote for side.
//
// Errors: NOT_FOUND, BATTLE_CLOSED once the battle is inactive or past its
// expiry, ALREADY_VOTED when one-vote-per-user is on and the caller voted.
func (s *Store) Vote(user model.UserContext, battleID string, side model.Side) (model.Battle, error) {
	if side != model.SideOriginal && side != model.SideChallenge {
		return model.Battle{}, model.NewInvalidContent("side must be original or challenge")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.state.Battles[battleID]
	if !ok {
		return model.Battle{}, model.NewNotFound("battle", battleID)
	}
	if !b.IsActive || s.clock.Now().After(b.ExpiresAt) {
		return model.Battle{}, model.NewBattleClosed(battleID)
	}

	key := user.Key()
	if s.oneVotePerUser {
		if _, voted := b.Voters[key]; voted {
			return model.Battle{}, model.NewAlreadyVoted(battleID)
		}
	}

	b = b.Clone()
	switch side {
	case model.SideOriginal:
		b.OriginalVotes++
	case model.SideChallenge:
		b.ChallengeVotes++
	}
	if b.Voters == nil {
		b.Voters = make(map[string]model.Side)
	}
	b.Voters[key] = side
	s.state.Battles[battleID] = b
	return b.Clone(), nil
}

// Reconcile runs the expiration engine at the store clock's current time
// and swaps in the result.
func (s *Store) Reconcile() expiry.Report {
	return s.ReconcileAt(s.clock.Now())
}

// ReconcileAt runs the expiration engine at now.
func (s *Store) ReconcileAt(now time.Time) expiry.Report {
	s.mu.Lock()
	defer s.mu.Unlock()

	next, report := expiry.Reconcile(s.state, now, s.policy, s.logger)
	if report.Changed {
		s.state = next
	}
	return report
}

// Post returns a copy of a live post.
func (s *Store) Post(id string) (model.Post, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.state.Posts[id]
	if !ok {
		return model.Post{}, false
	}
	return p.Clone(), true
}

// Battle returns a copy of a retained battle.
func (s *Store) Battle(id string) (model.Battle, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	b, ok := s.state.Battles[id]
	if !ok {
		return model.Battle{}, false
	}
	return b.Clone(), true
}

// Posts returns copies of all live posts, newest first.
func (s *Store) Posts() []model.Post {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Post, 0, len(s.state.Posts))
	for _, p := range s.state.Posts {
		out = append(out, p.Clone())
	}
	model.SortPostsNewestFirst(out)
	return out
}

// Battles returns copies of all retained battles, newest first.
func (s *Store) Battles() []model.Battle {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]model.Battle, 0, len(s.state.Battles))
	for _, b := range s.state.Battles {
		out = append(out, b.Clone())
	}
	model.SortBattlesNewestFirst(out)
	return out
}

// Snapshot returns a deep copy of the state for persistence.
func (s *Store) Snapshot() model.ContentState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// Restore replaces the state with a copy of st.
func (s *Store) Restore(st model.ContentState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := st.Clone()
	s.state = next
}
