// Package rules provides the in-memory, versioned rule index: pattern rules
// compiled once per batch into a priority-sorted snapshot, and the generic
// enrichment rule evaluator for transactions with parsed metadata.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/paisaflow/paisaflow/internal/model"
)

var generation atomic.Uint64

// CompiledRule pairs a pattern rule with its compiled regex.
type CompiledRule struct {
	regex *regexp.Regexp
	Rule  model.PatternRule
}

// InvalidRule identifies a rule quarantined at load time, with the reason
// its pattern failed to compile.
type InvalidRule struct {
	Reason string
	RuleID int
}

// Snapshot is an immutable, compiled view of the active pattern rules,
// pinned for the duration of a batch so results stay reproducible even if
// rules change mid-run.
type Snapshot struct {
	loadedAt   time.Time
	byScope    map[string][]CompiledRule
	literal    map[string][]CompiledRule // scope -> literal merchant rules
	invalid    []InvalidRule
	generation uint64
}

// NewSnapshot compiles the given rules into a snapshot. Rules whose patterns
// fail to compile are quarantined, never returned as an error: matching must
// continue for every other rule.
func NewSnapshot(patternRules []model.PatternRule) *Snapshot {
	s := &Snapshot{
		loadedAt:   time.Now(),
		byScope:    make(map[string][]CompiledRule),
		literal:    make(map[string][]CompiledRule),
		generation: generation.Add(1),
	}

	for _, rule := range patternRules {
		if !rule.IsActive {
			continue
		}

		pattern := rule.Pattern
		if !strings.HasPrefix(pattern, "(?i)") {
			pattern = "(?i)" + pattern
		}

		regex, err := regexp.Compile(pattern)
		if err != nil {
			s.invalid = append(s.invalid, InvalidRule{
				RuleID: rule.ID,
				Reason: fmt.Sprintf("invalid pattern %q: %v", rule.Pattern, err),
			})
			continue
		}

		compiled := CompiledRule{Rule: rule, regex: regex}
		s.byScope[rule.Scope] = append(s.byScope[rule.Scope], compiled)
		if rule.AppliesTo == model.FieldMerchant && isLiteralPattern(rule.Pattern) {
			s.literal[rule.Scope] = append(s.literal[rule.Scope], compiled)
		}
	}

	for scope := range s.byScope {
		sortRules(s.byScope[scope])
	}
	for scope := range s.literal {
		sortRules(s.literal[scope])
	}

	return s
}

// Generation returns the snapshot's monotonically increasing generation
// counter.
func (s *Snapshot) Generation() uint64 {
	return s.generation
}

// LoadedAt returns when the snapshot was built.
func (s *Snapshot) LoadedAt() time.Time {
	return s.loadedAt
}

// Invalid returns the rules quarantined during compilation so the caller can
// flag them inactive.
func (s *Snapshot) Invalid() []InvalidRule {
	return s.invalid
}

// Len returns the number of usable compiled rules.
func (s *Snapshot) Len() int {
	n := 0
	for _, scoped := range s.byScope {
		n += len(scoped)
	}
	return n
}

// Match finds the winning pattern rule for the given normalized merchant and
// description strings. Tenant-scoped rules are consulted before global ones;
// within a scope the lowest priority number wins, ties broken by highest
// confidence, then earliest creation, then lowest id.
func (s *Snapshot) Match(merchant, description, tenant string) *model.PatternRule {
	for _, scope := range visibleScopes(tenant) {
		var best *CompiledRule
		for i := range s.byScope[scope] {
			cr := &s.byScope[scope][i]

			input := merchant
			if cr.Rule.AppliesTo == model.FieldDescription {
				input = description
			}
			if input == "" || !cr.regex.MatchString(input) {
				continue
			}

			if best == nil || lessRule(cr.Rule, best.Rule) {
				best = cr
			}
		}
		if best != nil {
			rule := best.Rule
			return &rule
		}
	}
	return nil
}

// ExactMerchantRule returns the strongest literal merchant rule whose
// pattern, compared as a whole string, equals the normalized merchant. Used
// by the merchant matcher's exact stage.
func (s *Snapshot) ExactMerchantRule(merchant, tenant string) *model.PatternRule {
	if merchant == "" {
		return nil
	}
	for _, scope := range visibleScopes(tenant) {
		for i := range s.literal[scope] {
			cr := &s.literal[scope][i]
			if strings.EqualFold(strings.TrimSpace(cr.Rule.Pattern), merchant) {
				rule := cr.Rule
				return &rule
			}
		}
	}
	return nil
}

func visibleScopes(tenant string) []string {
	if tenant == "" || tenant == model.ScopeGlobal {
		return []string{model.ScopeGlobal}
	}
	return []string{tenant, model.ScopeGlobal}
}

// lessRule implements the deterministic rule ordering: priority ascending,
// confidence descending, creation time ascending, id ascending.
func lessRule(a, b model.PatternRule) bool {
	if a.Priority != b.Priority {
		return a.Priority < b.Priority
	}
	if a.Confidence != b.Confidence {
		return a.Confidence > b.Confidence
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

func sortRules(compiled []CompiledRule) {
	sort.SliceStable(compiled, func(i, j int) bool {
		return lessRule(compiled[i].Rule, compiled[j].Rule)
	})
}

// isLiteralPattern reports whether a pattern contains no regex
// metacharacters and can therefore double as an exact merchant match.
func isLiteralPattern(pattern string) bool {
	return !strings.ContainsAny(pattern, `\.+*?()|[]{}^$`)
}
