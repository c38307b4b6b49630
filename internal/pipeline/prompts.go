package pipeline

import (
	"fmt"
	"strings"

	"github.com/sells-group/leadgen-cli/internal/icp"
	"github.com/sells-group/leadgen-cli/internal/model"
)

const contextPrompt = `You are assisting with B2B lead generation for %s.
%s

Key benefits:
%s

Target customer segments:
%s

Typical competing materials: %s.`

const discoveryQuery = `Identify the most relevant industry events, trade associations, and professional bodies where buyers of %s are likely to participate. Include both time-limited events and ongoing associations.

For each, provide: name, type ("event" or "association"), date, location, description, website, why_relevant, and relevance_score (1-10).

Respond with a JSON array of objects.`

const relevancePrompt = `Analyze the following %s to determine its relevance for lead generation.

Name: %s
Type: %s
Date: %s
Location: %s
Description: %s
Website: %s
Initial assessment: %s

Score each of these from 0 to 10 with a justification: attendee alignment with the target segments, likelihood of decision-makers being present, relevance to the product's applications, potential for meaningful business conversations, and overall lead generation potential.

Respond with a JSON object. Put the overall result under "overall_event_priority" as {"score": <0-10>, "justification": "<text>"}.`

const companyDiscoveryPrompt = `Identify 5-8 companies likely to participate in the following %s that match the ideal customer profile.

Name: %s
Description: %s
Location: %s

For each company provide: name, industry, description, revenue_estimate, size_estimate, website, why_relevant, and qualification_score (1-10, how promising the company is).

Respond with a JSON array of objects.`

const qualificationPrompt = `Perform an in-depth qualification of the following company as a potential customer.

Company: %s
Industry: %s
Description: %s
Estimated revenue: %s
Estimated size: %s
Website: %s
Found through: %s
Initial assessment: %s

Scoring criteria:
%s

For each criterion return {"score": <0-10>, "justification": "<text>"} under the criterion's key. Also return "use_cases" (specific applications for the product) and "pain_points" (problems the product addresses), each a list of strings.

Respond with a single JSON object.`

const stakeholderPrompt = `Identify 2-3 key decision-makers at the following company who would be involved in purchasing %s.

Company: %s
Industry: %s
Customer segment: %s
Description: %s
Estimated size: %s
Qualification score: %.1f/10 (%s)
Use cases: %s
Pain points: %s

Roles that usually decide for this segment: %s.

For each stakeholder provide: name (if publicly known), title, department, decision_maker_score (1-10), rationale, linkedin_url (only if known), responsibilities (list), influence, and relevant_benefits (list).

Respond with JSON: {"stakeholders": [...]}.`

const salesNavigatorPrompt = `Create a LinkedIn Sales Navigator search query to find this stakeholder, or someone in the same role.

Company: %s
Industry: %s
Customer segment: %s
Estimated size: %s
Stakeholder: %s
Title: %s

Include the exact company name, title keyword variations, function filters and seniority levels. Respond with the query only.`

const outreachPrompt = `Write a personalized first-touch email to the following stakeholder.

Stakeholder: %s, %s
Company: %s
Industry: %s
Customer segment: %s
Audience: %s decision-maker
Conversation starter: %s
Pain points: %s
Use cases: %s

The message should reference the event, highlight 2-3 benefits tied to the stakeholder's responsibilities, and end with a specific next step. Keep it concise and professional.

Format the reply as:
Subject: <subject line>
<message body, starting with a greeting>

Personalization elements:
- <item>

Value propositions:
- <item>

Call to action:
<one sentence>`

// systemContext is the shared framing sent with every request.
func systemContext(p *icp.Profile) string {
	segments := make([]string, len(p.Segments))
	for i, s := range p.Segments {
		segments[i] = s.Name
	}
	return fmt.Sprintf(contextPrompt,
		p.Product.Name,
		p.Product.Description,
		bullets(p.KeyBenefits),
		bullets(segments),
		strings.Join(p.Product.Competitors, ", "),
	)
}

func relevanceRequest(g model.Gathering) string {
	noun := "event"
	if g.Kind == model.KindAssociation {
		noun = "industry association"
	}
	return fmt.Sprintf(relevancePrompt, noun,
		g.Name, g.Kind, g.Date, g.Location, g.Description, orUnknown(g.Website), g.RelevanceRationale)
}

func companyDiscoveryRequest(g model.Gathering) string {
	noun := "event"
	if g.Kind == model.KindAssociation {
		noun = "industry association"
	}
	return fmt.Sprintf(companyDiscoveryPrompt, noun, g.Name, g.Description, g.Location)
}

func qualificationRequest(p *icp.Profile, c model.Company) string {
	criteria := make([]string, len(p.Scoring.Criteria))
	for i, cr := range p.Scoring.Criteria {
		criteria[i] = fmt.Sprintf("- %s (weight %.0f%%): %s", cr.Name, cr.Weight*100, cr.Description)
	}
	return fmt.Sprintf(qualificationPrompt,
		c.Name, c.Industry, c.Description, c.RevenueEstimate, c.SizeEstimate,
		orUnknown(c.Website), orUnknown(c.SourceGatheringName), c.QualificationRationale,
		strings.Join(criteria, "\n"),
	)
}

func stakeholderRequest(p *icp.Profile, c model.Company, segment string, roles []string) string {
	var useCases, painPoints []string
	if q := c.DetailedQualification; q != nil {
		useCases, painPoints = q.UseCases, q.PainPoints
	}
	return fmt.Sprintf(stakeholderPrompt,
		p.Product.Name,
		c.Name, c.Industry, segment, c.Description, c.SizeEstimate,
		c.QualificationScore, c.LeadPriority,
		joinOr(useCases), joinOr(painPoints),
		joinOr(roles),
	)
}

func salesNavigatorRequest(c model.Company, s model.Stakeholder) string {
	return fmt.Sprintf(salesNavigatorPrompt,
		c.Name, c.Industry, s.CustomerSegment, c.SizeEstimate, s.Name, s.Title)
}

func outreachRequest(c model.Company, s model.Stakeholder, role model.Role, event string) string {
	var useCases, painPoints []string
	if q := c.DetailedQualification; q != nil {
		useCases, painPoints = q.UseCases, q.PainPoints
	}
	return fmt.Sprintf(outreachPrompt,
		s.Name, s.Title, c.Name, c.Industry, c.CustomerSegment, role, event,
		joinOr(painPoints), joinOr(useCases),
	)
}

func bullets(items []string) string {
	var b strings.Builder
	for i, it := range items {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("- ")
		b.WriteString(it)
	}
	return b.String()
}

func joinOr(items []string) string {
	if len(items) == 0 {
		return "not yet known"
	}
	return strings.Join(items, "; ")
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
