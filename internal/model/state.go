package model

import "sort"

// ContentState is the full set of live posts and retained battles.
// It is the unit the Expiration Engine reconciles and the persistence
// boundary serialises.
type ContentState struct {
	Posts   map[string]Post   `json:"posts"`
	Battles map[string]Battle `json:"battles"`
}

// NewContentState returns an empty state with initialised maps.
func NewContentState() ContentState {
	return ContentState{
		Posts:   make(map[string]Post),
		Battles: make(map[string]Battle),
	}
}

// Clone deep-copies the state.
func (s ContentState) Clone() ContentState {
	out := ContentState{
		Posts:   make(map[string]Post, len(s.Posts)),
		Battles: make(map[string]Battle, len(s.Battles)),
	}
	for id, p := range s.Posts {
		out.Posts[id] = p.Clone()
	}
	for id, b := range s.Battles {
		out.Battles[id] = b.Clone()
	}
	return out
}

// PostIDs returns post ids in lexical order.
func (s ContentState) PostIDs() []string {
	ids := make([]string, 0, len(s.Posts))
	for id := range s.Posts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// BattleIDs returns battle ids in lexical order.
func (s ContentState) BattleIDs() []string {
	ids := make([]string, 0, len(s.Battles))
	for id := range s.Battles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
