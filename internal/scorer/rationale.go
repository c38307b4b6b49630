package scorer

import (
	"fmt"
	"strings"

	"github.com/sells-group/leadgen-cli/internal/icp"
	"github.com/sells-group/leadgen-cli/internal/model"
)

// RationaleInput is everything the qualification narrative is built from.
type RationaleInput struct {
	CompanyName    string
	Segment        string
	Scores         map[string]float64
	Justifications map[string]string
	UseCases       []string
	PainPoints     []string
}

// Rationale renders the markdown qualification record for a company. The
// output depends only on the input and the profile.
func (e *Engine) Rationale(in RationaleInput) string {
	overall := e.WeightedScore(in.Scores)
	priority := e.PriorityForScore(overall)
	products := e.RecommendProducts(in.UseCases)

	var b strings.Builder
	fmt.Fprintf(&b, "## Qualification Rationale for %s\n\n", in.CompanyName)
	if in.Segment != "" {
		fmt.Fprintf(&b, "**Customer Segment:** %s\n", in.Segment)
	}
	fmt.Fprintf(&b, "**Overall Score:** %s/10 (%s)\n\n", formatScore(overall), e.Label(string(priority)))

	b.WriteString("### Scoring Breakdown\n\n")
	for _, c := range e.profile.Scoring.Criteria {
		s, ok := in.Scores[c.Name]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "**%s:** %s/10\n", e.Label(c.Name), formatScore(s))
		if j := in.Justifications[c.Name]; j != "" {
			fmt.Fprintf(&b, "- %s\n\n", j)
		}
	}

	if len(products) > 0 {
		b.WriteString("### Recommended Products\n\n")
		for _, p := range products {
			fmt.Fprintf(&b, "- **%s**: %s\n", p.Name, p.Description)
		}
		b.WriteString("\n")
	}

	writeList(&b, "Potential Use Cases", in.UseCases)
	writeList(&b, "Addressable Pain Points", in.PainPoints)
	writeList(&b, "Target Decision Makers", e.DecisionMakers(in.Segment))

	b.WriteString("### Recommendation\n\n")
	b.WriteString(e.recommendation(priority, in, products))

	return b.String()
}

func (e *Engine) recommendation(p model.LeadPriority, in RationaleInput, products []icp.ProductLine) string {
	switch p {
	case model.LeadExceptional:
		line := ""
		if len(products) > 0 {
			line = fmt.Sprintf(" with specific focus on the %s product line", products[0].Name)
		}
		return fmt.Sprintf("**High-priority target for immediate outreach.** "+
			"Use premium resources for personalized engagement addressing %s. "+
			"Emphasize %s%s.",
			first(in.PainPoints, "key pain points"), e.tcoClaim(), line)
	case model.LeadHighPriority:
		return fmt.Sprintf("**Strong prospect for focused outreach.** "+
			"Allocate resources for detailed personalization. "+
			"Focus messaging on %s and proven performance advantages.",
			first(in.PainPoints, "industry challenges"))
	case model.LeadQualified:
		return fmt.Sprintf("**Qualified lead worth pursuing.** "+
			"Standard outreach approach recommended with segment-specific messaging. "+
			"Highlight benefits for %s.",
			first(in.UseCases, "relevant applications"))
	default:
		return "**Below qualification threshold.** " +
			"Consider for awareness campaigns only or revisit if circumstances change."
	}
}

func (e *Engine) tcoClaim() string {
	if tco := e.profile.Product.TotalCostOfOwnership; tco != "" {
		return strings.ToLower(tco[:1]) + tco[1:]
	}
	return "total cost of ownership"
}

func writeList(b *strings.Builder, heading string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "### %s\n\n", heading)
	for _, it := range items {
		fmt.Fprintf(b, "- %s\n", it)
	}
	b.WriteString("\n")
}

func first(items []string, fallback string) string {
	if len(items) > 0 && items[0] != "" {
		return items[0]
	}
	return fallback
}
