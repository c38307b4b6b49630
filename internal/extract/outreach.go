package extract

import (
	"regexp"
	"strings"
)

// Field is a parsed value plus whether it came from the reply (true) or
// from a fallback (false).
type Field[T any] struct {
	Value     T
	Extracted bool
}

func extracted[T any](v T) Field[T] { return Field[T]{Value: v, Extracted: true} }

func defaulted[T any](v T) Field[T] { return Field[T]{Value: v} }

// Defaults are the per-field fallbacks for an outreach draft.
type Defaults struct {
	Subject                string
	PersonalizationFactors []string
	ValuePropositions      []string
	CallToAction           string
}

// Draft is an outreach reply split into its parts.
type Draft struct {
	Subject                Field[string]
	Body                   Field[string]
	PersonalizationFactors Field[[]string]
	ValuePropositions      Field[[]string]
	CallToAction           Field[string]
}

// Defaulted names the fields that fell back to a default.
func (d Draft) Defaulted() []string {
	var out []string
	if !d.Subject.Extracted {
		out = append(out, "subject")
	}
	if !d.Body.Extracted {
		out = append(out, "message_body")
	}
	if !d.PersonalizationFactors.Extracted {
		out = append(out, "personalization_factors")
	}
	if !d.ValuePropositions.Extracted {
		out = append(out, "value_propositions")
	}
	if !d.CallToAction.Extracted {
		out = append(out, "call_to_action")
	}
	return out
}

type section int

const (
	sectionNone section = iota
	sectionPersonalization
	sectionValue
	sectionCTA
)

var (
	subjectMarkers = []string{"subject line:", "email subject:", "subject:"}
	greetings      = []string{"dear ", "hello", "hi ", "hi,", "greetings", "good morning", "good afternoon", "good evening"}
	sectionMarkers = []struct {
		prefix string
		sec    section
	}{
		{"personalization elements:", sectionPersonalization},
		{"personalization factors:", sectionPersonalization},
		{"personalization:", sectionPersonalization},
		{"value propositions:", sectionValue},
		{"value proposition:", sectionValue},
		{"call to action:", sectionCTA},
		{"call-to-action:", sectionCTA},
		{"cta:", sectionCTA},
	}
	bulletRe = regexp.MustCompile(`^(?:[-*•]|\d+[.)])\s*`)
)

const maxSubjectLen = 100

// ParseOutreach splits a free-form outreach reply. Missing markers are not
// errors: each field falls back to its default.
func ParseOutreach(text string, def Defaults) Draft {
	lines := strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n")

	var d Draft
	var subjectLine int
	d.Subject, subjectLine = parseSubject(lines, def.Subject)
	d.Body = parseBody(lines, subjectLine)

	items := sections(lines)
	d.PersonalizationFactors = listOr(items[sectionPersonalization], def.PersonalizationFactors)
	d.ValuePropositions = listOr(items[sectionValue], def.ValuePropositions)
	if cta := strings.Join(items[sectionCTA], " "); cta != "" {
		d.CallToAction = extracted(cta)
	} else {
		d.CallToAction = defaulted(def.CallToAction)
	}
	return d
}

func parseSubject(lines []string, def string) (Field[string], int) {
	for i, l := range lines {
		clean := stripMarkup(l)
		lower := strings.ToLower(clean)
		for _, m := range subjectMarkers {
			if strings.HasPrefix(lower, m) {
				if s := stripMarkup(clean[len(m):]); s != "" {
					return extracted(s), i
				}
			}
		}
	}

	first := -1
	nonEmpty := 0
	for i, l := range lines {
		if strings.TrimSpace(l) != "" {
			if first < 0 {
				first = i
			}
			nonEmpty++
		}
	}
	if first >= 0 && nonEmpty > 1 {
		s := stripMarkup(lines[first])
		if len(s) < maxSubjectLen && !isGreeting(s) && sectionOf(s) == sectionNone {
			return extracted(s), first
		}
	}
	return defaulted(def), -1
}

func parseBody(lines []string, subjectLine int) Field[string] {
	for i, l := range lines {
		if isGreeting(stripMarkup(l)) {
			if b := untilSection(lines[i:]); b != "" {
				return extracted(b)
			}
		}
	}
	if subjectLine >= 0 {
		if b := untilSection(lines[subjectLine+1:]); b != "" {
			return extracted(b)
		}
	}
	return defaulted(strings.TrimSpace(strings.Join(lines, "\n")))
}

func untilSection(lines []string) string {
	end := len(lines)
	for i, l := range lines {
		if sectionOf(stripMarkup(l)) != sectionNone {
			end = i
			break
		}
	}
	return strings.TrimSpace(strings.Join(lines[:end], "\n"))
}

// sections collects the items listed under each section marker. A section
// runs until a blank line that follows at least one item, or the next marker.
func sections(lines []string) map[section][]string {
	out := make(map[section][]string)
	cur := sectionNone
	for _, l := range lines {
		clean := stripMarkup(l)
		if sec := sectionOf(clean); sec != sectionNone {
			cur = sec
			if rest := stripMarkup(clean[markerLen(clean):]); rest != "" {
				out[cur] = append(out[cur], rest)
			}
			continue
		}
		if cur == sectionNone {
			continue
		}
		if clean == "" {
			if len(out[cur]) > 0 {
				cur = sectionNone
			}
			continue
		}
		if item := strings.TrimSpace(bulletRe.ReplaceAllString(clean, "")); item != "" {
			out[cur] = append(out[cur], item)
		}
	}
	return out
}

func sectionOf(line string) section {
	lower := strings.ToLower(line)
	for _, m := range sectionMarkers {
		if strings.HasPrefix(lower, m.prefix) {
			return m.sec
		}
	}
	return sectionNone
}

func markerLen(line string) int {
	lower := strings.ToLower(line)
	for _, m := range sectionMarkers {
		if strings.HasPrefix(lower, m.prefix) {
			return len(m.prefix)
		}
	}
	return 0
}

func isGreeting(line string) bool {
	lower := strings.ToLower(line)
	for _, g := range greetings {
		if strings.HasPrefix(lower, g) {
			return true
		}
	}
	return false
}

// stripMarkup trims whitespace and markdown emphasis or heading marks.
func stripMarkup(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "#")
	s = strings.Trim(s, "*_ \t")
	return strings.TrimSpace(s)
}

func listOr(items, def []string) Field[[]string] {
	if len(items) > 0 {
		return extracted(items)
	}
	return defaulted(def)
}
