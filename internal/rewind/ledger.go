// Package rewind gates and records permanent saves of ghosts.
//
// The ledger counts free saves per user per calendar month on read; there is
// no separate counter to drift. Entitled users save outside the free quota
// and spend bonus credits first.
package rewind

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/PiperEve/BlueGhost/internal/clock"
	"github.com/PiperEve/BlueGhost/internal/model"
)

const (
	DefaultFreeQuota    = 3
	DefaultPremiumQuota = 10
	DefaultBonusCredits = 5
)

// Policy configures quotas and the calendar used for month keys.
type Policy struct {
	FreeQuota    int
	PremiumQuota int
	BonusCredits int

	// Location decides where a month starts. Nil means UTC.
	Location *time.Location

	// PurgeStaleFreeSaves makes ResetMonthly delete free saves from earlier
	// months instead of only rolling the counter.
	PurgeStaleFreeSaves bool
}

// DefaultPolicy returns the 3/10/5 policy in UTC.
func DefaultPolicy() Policy {
	return Policy{
		FreeQuota:    DefaultFreeQuota,
		PremiumQuota: DefaultPremiumQuota,
		BonusCredits: DefaultBonusCredits,
		Location:     time.UTC,
	}
}

// Account is one user's ledger entry.
type Account struct {
	Entitled  bool              `json:"entitled"`
	Credits   int               `json:"credits"`
	LastReset string            `json:"last_reset,omitempty"`
	Saves     []model.SavedPost `json:"saves"`
}

func (a Account) clone() Account {
	out := a
	out.Saves = make([]model.SavedPost, len(a.Saves))
	for i, s := range a.Saves {
		out.Saves[i] = s.Clone()
	}
	return out
}

// State is the ledger's serialisable form.
type State struct {
	Accounts map[string]Account `json:"accounts"`
}

// NewState returns an empty state.
func NewState() State {
	return State{Accounts: make(map[string]Account)}
}

// Clone deep-copies the state.
func (s State) Clone() State {
	out := State{Accounts: make(map[string]Account, len(s.Accounts))}
	for k, a := range s.Accounts {
		out.Accounts[k] = a.clone()
	}
	return out
}

// Usage is a user's quota position for the current month.
//
// Credits are informational: premium saves draw them down while any
// remain, but an entitled user keeps saving at zero and a user without
// entitlement cannot spend them. They report how much of the purchase
// bonus has been used.
type Usage struct {
	Used     int    `json:"used"`
	Max      int    `json:"max"`
	Credits  int    `json:"credits"`
	Entitled bool   `json:"entitled"`
	MonthKey string `json:"month_key"`
}

// Remaining returns how many free saves are left this month.
func (u Usage) Remaining() int {
	if u.Used >= u.Max {
		return 0
	}
	return u.Max - u.Used
}

// Receipt confirms a committed entitlement purchase.
type Receipt struct {
	UserID  string    `json:"user_id"`
	Granted int       `json:"granted"`
	Credits int       `json:"credits"`
	At      time.Time `json:"at"`
}

// ResetResult summarises a monthly reset.
type ResetResult struct {
	MonthKey string   `json:"month_key"`
	Users    []string `json:"users,omitempty"`
	Purged   int      `json:"purged"`
}

// Ledger owns saved posts and entitlement state.
type Ledger struct {
	mu     sync.Mutex
	state  State
	clock  clock.Clock
	ids    model.IDGenerator
	policy Policy
	logger *slog.Logger
}

// New creates an empty ledger. Zero-valued policy fields take defaults.
func New(c clock.Clock, ids model.IDGenerator, policy Policy, logger *slog.Logger) *Ledger {
	if c == nil {
		c = clock.System{}
	}
	if ids == nil {
		ids = model.UUIDv7Generator{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	def := DefaultPolicy()
	if policy.FreeQuota <= 0 {
		policy.FreeQuota = def.FreeQuota
	}
	if policy.PremiumQuota <= 0 {
		policy.PremiumQuota = def.PremiumQuota
	}
	if policy.BonusCredits < 0 {
		policy.BonusCredits = 0
	}
	if policy.Location == nil {
		policy.Location = time.UTC
	}
	return &Ledger{
		state:  NewState(),
		clock:  c,
		ids:    ids,
		policy: policy,
		logger: logger,
	}
}

// Policy returns the effective policy.
func (l *Ledger) Policy() Policy {
	return l.policy
}

// MonthKey formats now as YYYY-MM in the ledger's location.
func (l *Ledger) MonthKey(now time.Time) string {
	return MonthKey(now, l.policy.Location)
}

// MonthKey formats t as YYYY-MM in loc (UTC when nil).
func MonthKey(t time.Time, loc *time.Location) string {
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format("2006-01")
}

// usage computes the position for key. Caller holds l.mu.
func (l *Ledger) usage(user model.UserContext, month string) Usage {
	acct := l.state.Accounts[user.Key()]
	entitled := user.Entitled || acct.Entitled
	u := Usage{
		Max:      l.policy.FreeQuota,
		Credits:  acct.Credits,
		Entitled: entitled,
		MonthKey: month,
	}
	if entitled {
		u.Max = l.policy.PremiumQuota
	}
	for _, s := range acct.Saves {
		if !s.IsPremiumSave && s.MonthKey == month {
			u.Used++
		}
	}
	return u
}

// Usage returns the caller's quota position for the current month.
func (l *Ledger) Usage(user model.UserContext) Usage {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.usage(user, l.MonthKey(l.clock.Now()))
}

// CanSave reports whether a free save is still available this month.
func (l *Ledger) CanSave(user model.UserContext) bool {
	u := l.Usage(user)
	return u.Used < u.Max
}

// Save records a snapshot of post as user sees it. Other users'
// reactions are not kept.
//
// A user without entitlement is denied with QUOTA_EXCEEDED once the free
// quota is used up; a denied save changes nothing. Entitled saves are
// premium and spend a bonus credit when one is left. Saving the same post
// twice in a month returns ALREADY_SAVED.
func (l *Ledger) Save(user model.UserContext, post model.Post) (model.SavedPost, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.clock.Now()
	month := l.MonthKey(now)
	key := user.Key()
	u := l.usage(user, month)

	acct := l.state.Accounts[key]
	for _, s := range acct.Saves {
		if s.Post.ID == post.ID && s.MonthKey == month {
			return model.SavedPost{}, model.NewAlreadySaved(post.ID)
		}
	}

	if u.Used >= u.Max && !u.Entitled {
		l.logger.Debug("rewind denied", "user_id", key, "used", u.Used, "max", u.Max)
		return model.SavedPost{}, model.NewQuotaExceeded(u.Used, u.Max)
	}

	saved := model.SavedPost{
		ID:            l.ids.NewID(),
		UserID:        key,
		Post:          post.View(key),
		SavedAt:       now,
		MonthKey:      month,
		IsPremiumSave: u.Entitled || u.Used >= u.Max,
	}

	acct = acct.clone()
	if acct.LastReset == "" {
		acct.LastReset = month
	}
	if saved.IsPremiumSave && acct.Credits > 0 {
		acct.Credits--
	}
	acct.Saves = append(acct.Saves, saved)
	l.state.Accounts[key] = acct

	l.logger.Debug("rewind saved",
		"user_id", key,
		"saved_id", saved.ID,
		"post_id", post.ID,
		"premium", saved.IsPremiumSave,
		"month", month,
	)
	return saved.Clone(), nil
}

// PurchaseEntitlement records a completed external payment: the user
// becomes entitled and receives the policy's bonus credits.
func (l *Ledger) PurchaseEntitlement(user model.UserContext) Receipt {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := user.Key()
	acct := l.state.Accounts[key].clone()
	if acct.LastReset == "" {
		acct.LastReset = l.MonthKey(l.clock.Now())
	}
	acct.Entitled = true
	acct.Credits += l.policy.BonusCredits
	l.state.Accounts[key] = acct

	l.logger.Info("rewind entitlement granted", "user_id", key, "credits", acct.Credits)
	return Receipt{
		UserID:  key,
		Granted: l.policy.BonusCredits,
		Credits: acct.Credits,
		At:      l.clock.Now(),
	}
}

// List returns the user's saves, newest first.
func (l *Ledger) List(user model.UserContext) []model.SavedPost {
	l.mu.Lock()
	defer l.mu.Unlock()

	acct := l.state.Accounts[user.Key()]
	out := make([]model.SavedPost, len(acct.Saves))
	for i, s := range acct.Saves {
		out[i] = s.Clone()
	}
	model.SortSavedNewestFirst(out)
	return out
}

// Delete removes one of the user's saves. It is idempotent and reports
// whether a record was removed. Deleting a free save from the current month
// gives the quota slot back.
func (l *Ledger) Delete(user model.UserContext, savedID string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	key := user.Key()
	acct, ok := l.state.Accounts[key]
	if !ok {
		return false
	}
	for i, s := range acct.Saves {
		if s.ID != savedID {
			continue
		}
		acct = acct.clone()
		acct.Saves = append(acct.Saves[:i], acct.Saves[i+1:]...)
		l.state.Accounts[key] = acct
		return true
	}
	return false
}

// ResetMonthly rolls users over to the current month. An empty userID
// means every account. Users already rolled over this month are skipped,
// so calling it repeatedly is harmless.
func (l *Ledger) ResetMonthly(userID string) ResetResult {
	l.mu.Lock()
	defer l.mu.Unlock()

	month := l.MonthKey(l.clock.Now())
	res := ResetResult{MonthKey: month}

	keys := make([]string, 0, len(l.state.Accounts))
	if userID != "" {
		if _, ok := l.state.Accounts[userID]; ok {
			keys = append(keys, userID)
		}
	} else {
		for k := range l.state.Accounts {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		acct := l.state.Accounts[key]
		if acct.LastReset == month {
			continue
		}
		acct = acct.clone()
		acct.LastReset = month
		if l.policy.PurgeStaleFreeSaves {
			kept := acct.Saves[:0]
			for _, s := range acct.Saves {
				if !s.IsPremiumSave && s.MonthKey != month {
					res.Purged++
					continue
				}
				kept = append(kept, s)
			}
			acct.Saves = kept
		}
		l.state.Accounts[key] = acct
		res.Users = append(res.Users, key)
	}

	if len(res.Users) > 0 {
		l.logger.Info("rewind monthly reset", "month", month, "users", len(res.Users), "purged", res.Purged)
	}
	return res
}

// Snapshot returns a deep copy of the ledger state.
func (l *Ledger) Snapshot() State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.state.Clone()
}

// Restore replaces the ledger state with a copy of s.
func (l *Ledger) Restore(s State) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state = s.Clone()
}
