package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func testDefaults() Defaults {
	return Defaults{
		Subject:                "Reducing TCO for Acme Signs's graphics solutions",
		PersonalizationFactors: []string{"Reference to ISA Sign Expo"},
		ValuePropositions:      []string{"30-40% lower lifetime costs despite premium pricing"},
		CallToAction:           "Schedule a brief call to explore potential cost savings",
	}
}

const fullReply = `Subject: Cutting repaint cycles on Acme's fleet wraps

Dear Dana,

It was great to see Acme at ISA Sign Expo. Your fleet work stood out.

Best regards,
Sam

Personalization elements:
- Met at ISA Sign Expo
- Fleet wrap specialty

Value propositions:
1. 5-7 years longer graphic life
2. Lower warranty claims

Call to action:
A 20 minute call next Tuesday to review your wrap specs.
`

func TestParseOutreachStructuredReply(t *testing.T) {
	t.Parallel()
	d := ParseOutreach(fullReply, testDefaults())

	assert.Equal(t, Field[string]{Value: "Cutting repaint cycles on Acme's fleet wraps", Extracted: true}, d.Subject)
	assert.True(t, d.Body.Extracted)
	assert.Equal(t, "Dear Dana,\n\nIt was great to see Acme at ISA Sign Expo. Your fleet work stood out.\n\nBest regards,\nSam", d.Body.Value)
	assert.Equal(t, []string{"Met at ISA Sign Expo", "Fleet wrap specialty"}, d.PersonalizationFactors.Value)
	assert.True(t, d.PersonalizationFactors.Extracted)
	assert.Equal(t, []string{"5-7 years longer graphic life", "Lower warranty claims"}, d.ValuePropositions.Value)
	assert.Equal(t, "A 20 minute call next Tuesday to review your wrap specs.", d.CallToAction.Value)
	assert.True(t, d.CallToAction.Extracted)
	assert.Empty(t, d.Defaulted())
}

func TestParseOutreachSubjectMarkers(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"subject line", "Subject Line: Durable wraps\nDear Jo,\nHi.", "Durable wraps"},
		{"email subject", "Email Subject: Durable wraps\nDear Jo,\nHi.", "Durable wraps"},
		{"markdown bold", "**Subject:** Durable wraps\n\nDear Jo,\nHi.", "Durable wraps"},
		{"lower case", "subject: Durable wraps\nDear Jo,", "Durable wraps"},
		{"marker after preamble", "Here is the draft.\nSubject: Durable wraps\nDear Jo,", "Durable wraps"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := ParseOutreach(tt.text, testDefaults())
			assert.True(t, d.Subject.Extracted)
			assert.Equal(t, tt.want, d.Subject.Value)
		})
	}
}

func TestParseOutreachFirstLineSubject(t *testing.T) {
	t.Parallel()
	d := ParseOutreach("Protecting Acme's outdoor signage\n\nDear Jo,\nQuick note.", testDefaults())
	assert.Equal(t, "Protecting Acme's outdoor signage", d.Subject.Value)
	assert.True(t, d.Subject.Extracted)
	assert.Equal(t, "Dear Jo,\nQuick note.", d.Body.Value)
}

func TestParseOutreachFallsBackToDefaultSubject(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		text string
	}{
		{"greeting first", "Dear Jo,\nWe make laminates.\nThanks"},
		{"single line", "We make laminates that last."},
		{"long first line", "This opening line runs far too long to be a subject line because it keeps going and going past the cap.\nDear Jo,"},
		{"empty", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			d := ParseOutreach(tt.text, testDefaults())
			assert.False(t, d.Subject.Extracted)
			assert.Equal(t, testDefaults().Subject, d.Subject.Value)
			assert.Contains(t, d.Defaulted(), "subject")
		})
	}
}

func TestParseOutreachDeterministicFallback(t *testing.T) {
	t.Parallel()
	text := "Dear Jo,\nWe make laminates."
	first := ParseOutreach(text, testDefaults())
	for i := 0; i < 3; i++ {
		assert.Equal(t, first, ParseOutreach(text, testDefaults()))
	}
}

func TestParseOutreachBodyAfterSubject(t *testing.T) {
	t.Parallel()
	text := "Subject: Durable wraps\nWe noticed your fleet at the expo.\nValue propositions:\n- Longer life"
	d := ParseOutreach(text, testDefaults())
	assert.True(t, d.Body.Extracted)
	assert.Equal(t, "We noticed your fleet at the expo.", d.Body.Value)
	assert.Equal(t, []string{"Longer life"}, d.ValuePropositions.Value)
}

func TestParseOutreachBodyFallsBackToWholeText(t *testing.T) {
	t.Parallel()
	d := ParseOutreach("We make laminates that last.", testDefaults())
	assert.False(t, d.Body.Extracted)
	assert.Equal(t, "We make laminates that last.", d.Body.Value)
}

func TestParseOutreachDefaultsSections(t *testing.T) {
	t.Parallel()
	d := ParseOutreach("Subject: Hi there\nDear Jo,\nShort note.", testDefaults())

	assert.False(t, d.PersonalizationFactors.Extracted)
	assert.Equal(t, testDefaults().PersonalizationFactors, d.PersonalizationFactors.Value)
	assert.False(t, d.ValuePropositions.Extracted)
	assert.Equal(t, testDefaults().ValuePropositions, d.ValuePropositions.Value)
	assert.False(t, d.CallToAction.Extracted)
	assert.Equal(t, testDefaults().CallToAction, d.CallToAction.Value)
	assert.Equal(t, []string{"personalization_factors", "value_propositions", "call_to_action"}, d.Defaulted())
}

func TestParseOutreachInlineSectionContent(t *testing.T) {
	t.Parallel()
	text := "Subject: x\nDear Jo,\nBody.\n\n**Call to action:** Book a demo\n**Personalization factors:**\n* Expo visit\n* Role"
	d := ParseOutreach(text, testDefaults())
	assert.Equal(t, "Book a demo", d.CallToAction.Value)
	assert.Equal(t, []string{"Expo visit", "Role"}, d.PersonalizationFactors.Value)
	assert.Equal(t, "Dear Jo,\nBody.", d.Body.Value)
}
