// Package scorer converts per-criterion scores into weighted lead scores,
// priority tiers, customer segments and qualification narratives.
package scorer

import (
	"fmt"
	"math"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/sells-group/leadgen-cli/internal/icp"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// Engine scores leads against an ICP profile. It holds no mutable state.
type Engine struct {
	profile *icp.Profile
}

// New creates an Engine for the given profile.
func New(p *icp.Profile) *Engine {
	return &Engine{profile: p}
}

// Profile returns the profile the engine scores against.
func (e *Engine) Profile() *icp.Profile { return e.profile }

// WeightedScore multiplies each provided criterion score by its weight and
// divides by the weight actually applied, so missing criteria do not drag the
// score down. Unknown criteria are ignored. The result is rounded to one
// decimal; no recognised criteria yields 0.
func (e *Engine) WeightedScore(scores map[string]float64) float64 {
	var sum, applied float64
	for _, c := range e.profile.Scoring.Criteria {
		s, ok := scores[c.Name]
		if !ok {
			continue
		}
		sum += Clamp(s) * c.Weight
		applied += c.Weight
	}
	if applied == 0 {
		return 0
	}
	return Round1(sum / applied)
}

// PriorityForScore maps a score to the highest lead tier whose threshold it
// meets. Thresholds are inclusive.
func (e *Engine) PriorityForScore(score float64) model.LeadPriority {
	t := e.profile.Scoring.Thresholds
	switch {
	case score >= t.Exceptional:
		return model.LeadExceptional
	case score >= t.HighPriority:
		return model.LeadHighPriority
	case score >= t.MinimumQualification:
		return model.LeadQualified
	default:
		return model.LeadUnqualified
	}
}

// TierForScore maps a score to high/medium/low for gatherings and stakeholders.
func (e *Engine) TierForScore(score float64) model.Tier {
	t := e.profile.Scoring.Tiers
	switch {
	case score >= t.High:
		return model.TierHigh
	case score >= t.Medium:
		return model.TierMedium
	default:
		return model.TierLow
	}
}

// PremiumEscalation reports whether an initial score justifies the premium
// model for qualification.
func (e *Engine) PremiumEscalation(initialScore float64) bool {
	return initialScore >= e.profile.Scoring.Thresholds.MinimumQualification
}

// InferSegment picks the segment whose keywords appear most often in the
// industry and description. Ties go to the segment declared first; no
// matches falls back to SegmentFromIndustry.
func (e *Engine) InferSegment(industry, description string) string {
	text := strings.ToLower(industry + " " + description)

	best, bestCount := "", 0
	for _, seg := range e.profile.Segments {
		n := 0
		for _, kw := range seg.Keywords {
			if strings.Contains(text, strings.ToLower(kw)) {
				n++
			}
		}
		if n > bestCount {
			best, bestCount = seg.Name, n
		}
	}
	if bestCount > 0 {
		return best
	}
	return e.SegmentFromIndustry(industry)
}

// SegmentFromIndustry guesses a segment from substrings of the industry name,
// checking segments in declaration order, else the default segment.
func (e *Engine) SegmentFromIndustry(industry string) string {
	lower := strings.ToLower(industry)
	if lower != "" {
		for _, seg := range e.profile.Segments {
			for _, hint := range seg.IndustryHints {
				if strings.Contains(lower, strings.ToLower(hint)) {
					return seg.Name
				}
			}
		}
	}
	return e.profile.DefaultSegment
}

// RecommendProducts returns the product lines whose keywords appear in any
// use case, in profile order. With no match it returns the first and third
// lines, the two most versatile.
func (e *Engine) RecommendProducts(useCases []string) []icp.ProductLine {
	lines := e.profile.ProductLines
	lowered := make([]string, len(useCases))
	for i, uc := range useCases {
		lowered[i] = strings.ToLower(uc)
	}

	var out []icp.ProductLine
	for _, pl := range lines {
		if matchesAny(lowered, pl.Keywords) {
			out = append(out, pl)
		}
	}
	if len(out) > 0 {
		return out
	}

	if len(lines) >= 3 {
		return []icp.ProductLine{lines[0], lines[2]}
	}
	return lines
}

func matchesAny(texts, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(kw)
		for _, t := range texts {
			if strings.Contains(t, kw) {
				return true
			}
		}
	}
	return false
}

// DecisionMakers returns the typical decision-maker roles for a segment.
func (e *Engine) DecisionMakers(segment string) []string {
	if s := e.profile.SegmentOrDefault(segment); s != nil {
		return s.DecisionMakers
	}
	return nil
}

// Label turns a snake_case identifier into a title-cased label.
func (e *Engine) Label(id string) string {
	// Casers carry state, so each call gets its own.
	return cases.Title(language.English).String(strings.ReplaceAll(id, "_", " "))
}

// Clamp bounds a score to [0,10].
func Clamp(score float64) float64 {
	return math.Max(0, math.Min(10, score))
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

func formatScore(v float64) string {
	return fmt.Sprintf("%.1f", v)
}
