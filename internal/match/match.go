// Package match pairs left-version programme tasks with right-version tasks.
//
// Pairing runs in three passes per left task, in input order:
//   - manual overrides, applied before anything else
//   - the identity signature (same UID, name and duration), accepted outright
//   - a scored pool of exact-name candidates, or a temporal-proximity pool
//     when no right task shares the normalized name
//
// A left task without a pairing is absent from the returned mapping; callers
// treat absence as "no match".
package match

import (
	"math"
	"sort"

	"github.com/lherron/eotdiff/internal/domain"
)

const (
	// DefaultUIDBonus nudges selection toward UID continuity without granting certainty.
	DefaultUIDBonus = 2.5
	// DefaultMaxPool caps the temporal fallback pool.
	DefaultMaxPool = 120
)

// searchWindows are the expanding +/- day windows of the temporal fallback.
var searchWindows = []int{14, 30, 60, 120}

// Options tunes the matcher heuristics
type Options struct {
	UIDBonus float64
	MaxPool  int
}

// DefaultOptions returns the standard heuristics.
func DefaultOptions() Options {
	return Options{
		UIDBonus: DefaultUIDBonus,
		MaxPool:  DefaultMaxPool,
	}
}

// Matcher pairs task lists. It holds no state between calls.
type Matcher struct {
	opts Options
}

// New creates a matcher. Non-positive MaxPool falls back to the default.
func New(opts Options) *Matcher {
	if opts.MaxPool <= 0 {
		opts.MaxPool = DefaultMaxPool
	}
	return &Matcher{opts: opts}
}

// Match pairs leaf tasks using the default options.
func Match(left, right []domain.Task, overrides []domain.MatchOverride) (map[int]int, []domain.MatchCandidate) {
	return New(DefaultOptions()).Match(left, right, overrides)
}

type datedTask struct {
	ordinal int
	task    domain.Task
}

type scoredCandidate struct {
	score      float64
	confidence float64
	reason     string
	right      domain.Task
}

// Match pairs left leaf tasks to right leaf tasks. The mapping is keyed by
// left UID; candidates are emitted in left input order.
func (m *Matcher) Match(left, right []domain.Task, overrides []domain.MatchOverride) (map[int]int, []domain.MatchCandidate) {
	rightByUID := make(map[int]domain.Task, len(right))
	for _, t := range right {
		rightByUID[t.UID] = t
	}
	leftUIDs := make(map[int]bool, len(left))
	for _, t := range left {
		leftUIDs[t.UID] = true
	}

	matched := make(map[int]int)
	locked := make(map[int]bool)
	for _, o := range overrides {
		if _, ok := rightByUID[o.RightUID]; !ok {
			continue
		}
		if !leftUIDs[o.LeftUID] || locked[o.RightUID] {
			continue
		}
		if _, dup := matched[o.LeftUID]; dup {
			continue
		}
		matched[o.LeftUID] = o.RightUID
		locked[o.RightUID] = true
	}

	unmatched := make(map[int]bool, len(right))
	for _, t := range right {
		if !locked[t.UID] {
			unmatched[t.UID] = true
		}
	}

	nameIndex := make(map[string][]domain.Task)
	for _, t := range right {
		key := NormalizeName(t.Name)
		nameIndex[key] = append(nameIndex[key], t)
	}

	dated := make([]datedTask, 0, len(right))
	for _, t := range right {
		if t.Start != nil {
			dated = append(dated, datedTask{ordinal: ordinal(*t.Start), task: t})
		}
	}
	sort.SliceStable(dated, func(i, j int) bool { return dated[i].ordinal < dated[j].ordinal })

	candidates := make([]domain.MatchCandidate, 0, len(left))

	for _, l := range left {
		sameUID, hasSameUID := rightByUID[l.UID]

		if rightUID, ok := matched[l.UID]; ok {
			r := rightByUID[rightUID]
			conf, reason := Confidence(l, r)
			flags := []string{}
			if hasSameUID && UIDRepurposeRisk(l, sameUID) {
				flags = append(flags, domain.MatchFlagUIDRepurposeRisk)
			}
			candidates = append(candidates, domain.MatchCandidate{
				LeftUID:          l.UID,
				RightUID:         r.UID,
				Confidence:       conf,
				Reason:           "Manual override. " + reason,
				MatchNeedsReview: len(flags) > 0,
				MatchFlags:       flags,
			})
			continue
		}

		sameUIDAvailable := hasSameUID && unmatched[sameUID.UID]

		if sameUIDAvailable && HasIdentitySignature(l, sameUID) {
			matched[l.UID] = sameUID.UID
			delete(unmatched, sameUID.UID)
			candidates = append(candidates, domain.MatchCandidate{
				LeftUID:    l.UID,
				RightUID:   sameUID.UID,
				Confidence: 100.0,
				Reason:     "Certain identity signature",
				MatchFlags: []string{},
			})
			continue
		}

		var pool []domain.Task
		for _, t := range nameIndex[NormalizeName(l.Name)] {
			if unmatched[t.UID] {
				pool = append(pool, t)
			}
		}
		if sameUIDAvailable {
			pool = appendIfMissing(pool, sameUID)
		}
		if len(pool) == 0 {
			pool = m.fallbackPool(l, right, dated, unmatched)
		}
		if len(pool) == 0 {
			continue
		}

		scored := make([]scoredCandidate, 0, len(pool))
		for _, r := range pool {
			conf, reason := Confidence(l, r)
			score := conf
			if l.UID == r.UID && conf < 100 {
				score += m.opts.UIDBonus
				reason += ". UID aligns (non-certainty)"
			}
			scored = append(scored, scoredCandidate{score: score, confidence: conf, reason: reason, right: r})
		}
		sort.SliceStable(scored, func(i, j int) bool {
			if scored[i].score != scored[j].score {
				return scored[i].score > scored[j].score
			}
			return scored[i].confidence > scored[j].confidence
		})

		best := scored[0]
		matched[l.UID] = best.right.UID
		delete(unmatched, best.right.UID)

		flags := []string{}
		reason := best.reason
		if hasSameUID && UIDRepurposeRisk(l, sameUID) {
			flags = append(flags, domain.MatchFlagUIDRepurposeRisk)
			reason += ". Possible UID repurpose detected"
		}
		candidates = append(candidates, domain.MatchCandidate{
			LeftUID:          l.UID,
			RightUID:         best.right.UID,
			Confidence:       best.confidence,
			Reason:           reason,
			MatchNeedsReview: len(flags) > 0,
			MatchFlags:       flags,
		})
	}

	return matched, candidates
}

// fallbackPool draws unmatched right tasks near the left start date,
// widening the window until something is found.
func (m *Matcher) fallbackPool(l domain.Task, right []domain.Task, dated []datedTask, available map[int]bool) []domain.Task {
	if len(available) == 0 {
		return nil
	}

	var pool []domain.Task
	if l.Start != nil && len(dated) > 0 {
		target := ordinal(*l.Start)
		for _, window := range searchWindows {
			lo := sort.Search(len(dated), func(i int) bool { return dated[i].ordinal >= target-window })
			hi := sort.Search(len(dated), func(i int) bool { return dated[i].ordinal > target+window })
			pool = pool[:0]
			for _, d := range dated[lo:hi] {
				if available[d.task.UID] {
					pool = append(pool, d.task)
				}
			}
			if len(pool) > 0 {
				break
			}
		}
	}

	if len(pool) == 0 {
		for _, t := range right {
			if available[t.UID] {
				pool = append(pool, t)
			}
		}
	}

	if len(pool) <= m.opts.MaxPool {
		return pool
	}
	if l.Start == nil {
		return pool[:m.opts.MaxPool]
	}

	target := ordinal(*l.Start)
	sort.SliceStable(pool, func(i, j int) bool {
		return distance(pool[i], target) < distance(pool[j], target)
	})
	return pool[:m.opts.MaxPool]
}

func appendIfMissing(pool []domain.Task, t domain.Task) []domain.Task {
	for _, p := range pool {
		if p.UID == t.UID {
			return pool
		}
	}
	return append(pool, t)
}

// ordinal is the day number of d counted from the Unix epoch.
func ordinal(d domain.Date) int {
	return int(math.Floor(float64(d.Unix()) / 86400))
}

func distance(t domain.Task, target int) int {
	if t.Start == nil {
		return math.MaxInt32
	}
	delta := ordinal(*t.Start) - target
	if delta < 0 {
		return -delta
	}
	return delta
}
