package negotiation

import (
	"sort"

	"github.com/samber/lo"
)

// Registry tallies participants by slot key. Entries are additive only
// and deduplicated by participant id. The coordinator keeps one registry
// for accepted votes and one for responses of either kind; both are
// mutated exclusively under the coordinator's lock.
type Registry struct {
	members map[string]map[string]struct{}
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{
		members: make(map[string]map[string]struct{}),
	}
}

// Add records owner under the slot key and returns the number of distinct
// owners recorded for it. Adding the same owner twice counts once.
func (r *Registry) Add(key, owner string) int {
	set, ok := r.members[key]
	if !ok {
		set = make(map[string]struct{})
		r.members[key] = set
	}
	set[owner] = struct{}{}
	return len(set)
}

// Count returns the number of distinct owners recorded for the slot key
func (r *Registry) Count(key string) int {
	return len(r.members[key])
}

// Members returns the sorted owners recorded for the slot key
func (r *Registry) Members(key string) []string {
	set, ok := r.members[key]
	if !ok {
		return nil
	}

	members := lo.Keys(set)
	sort.Strings(members)
	return members
}
