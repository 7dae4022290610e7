package campaign

import (
	"slices"
	"strings"
)

// StoreAction tells the caller what to do with the persisted selection.
type StoreAction int

const (
	// StoreKeep leaves the persisted selection untouched.
	StoreKeep StoreAction = iota
	// StoreSet persists the applied campaign.
	StoreSet
	// StoreClear removes the persisted selection.
	StoreClear
)

func (a StoreAction) String() string {
	switch a {
	case StoreSet:
		return "set"
	case StoreClear:
		return "clear"
	default:
		return "keep"
	}
}

// Decision is the selector's verdict for one pricing pass.
type Decision struct {
	// Candidates are ranked best first.
	Candidates []Result
	// Applied is nil when no campaign discount applies, including while a
	// choice is pending.
	Applied *Result
	// Pending is set when the shopper has to pick between candidates.
	Pending bool
	// Stale is set when a stored selection no longer matched any candidate.
	Stale bool
	Store StoreAction
}

// AppliedID returns the id of the applied campaign or "".
func (d Decision) AppliedID() string {
	if d.Applied == nil {
		return ""
	}
	return d.Applied.Campaign.ID
}

// Selector picks at most one campaign per cart.
type Selector struct {
	// PromptOnMultiple asks the shopper whenever several campaigns apply,
	// even if one of them clearly ranks first.
	PromptOnMultiple bool
}

// Rank orders results by priority, then discount, both descending. The
// campaign id breaks remaining ties so the order is deterministic.
func Rank(results []Result) {
	slices.SortStableFunc(results, func(a, b Result) int {
		if a.Campaign.Priority != b.Campaign.Priority {
			return b.Campaign.Priority - a.Campaign.Priority
		}
		if c := b.Discount.Cmp(a.Discount); c != 0 {
			return c
		}
		return strings.Compare(a.Campaign.ID, b.Campaign.ID)
	})
}

// Select decides which candidate applies given the stored selection.
//
// Only a stored id pins the applied campaign across repricings. Automatic
// picks leave Store at StoreKeep, so without a stored id the top-ranked
// candidate may change when the cart changes.
func (s Selector) Select(results []Result, storedID string) Decision {
	d := Decision{Candidates: ranked(results)}

	if storedID != "" {
		if i := indexOf(d.Candidates, storedID); i >= 0 {
			d.Applied = &d.Candidates[i]
			return d
		}
		d.Stale = true
		d.Store = StoreClear
	}

	switch len(d.Candidates) {
	case 0:
		return d
	case 1:
		d.Applied = &d.Candidates[0]
		return d
	}

	if s.PromptOnMultiple || tiedAtTop(d.Candidates) {
		d.Pending = true
		return d
	}
	d.Applied = &d.Candidates[0]
	return d
}

// Choose applies the shopper's explicit pick and persists it.
func (s Selector) Choose(results []Result, id string) (Decision, error) {
	d := Decision{Candidates: ranked(results)}
	i := indexOf(d.Candidates, id)
	if i < 0 {
		return Decision{}, ErrNotCandidate
	}
	d.Applied = &d.Candidates[i]
	d.Store = StoreSet
	return d, nil
}

// Dismiss resolves a pending choice by applying the top-ranked candidate.
func (s Selector) Dismiss(results []Result) Decision {
	d := Decision{Candidates: ranked(results)}
	if len(d.Candidates) == 0 {
		d.Store = StoreClear
		return d
	}
	d.Applied = &d.Candidates[0]
	d.Store = StoreSet
	return d
}

func ranked(results []Result) []Result {
	out := slices.Clone(results)
	Rank(out)
	return out
}

func indexOf(results []Result, id string) int {
	id = NormalizeID(id)
	for i, r := range results {
		if NormalizeID(r.Campaign.ID) == id {
			return i
		}
	}
	return -1
}

func tiedAtTop(results []Result) bool {
	if len(results) < 2 {
		return false
	}
	a, b := results[0], results[1]
	return a.Campaign.Priority == b.Campaign.Priority && a.Discount.Equal(b.Discount)
}
