package extract

import (
	"fmt"
	"strings"
)

// Profile shapes the extraction prompts for a named regulatory domain.
type Profile struct {
	Name              string
	RequiredConcerns  []string
	SensitiveElements []string
	DomainGuidance    []string
}

// GetProfile returns the built-in profile for the given name.
func GetProfile(name string) (*Profile, error) {
	switch name {
	case "general", "":
		return general(), nil
	case "privacy":
		return privacy(), nil
	case "financial":
		return financial(), nil
	default:
		return nil, fmt.Errorf("unknown profile %q: valid profiles are general, privacy, financial", name)
	}
}

// FormatForPrompt returns a string suitable for injection into the
// extraction system prompt.
func (p *Profile) FormatForPrompt() string {
	if len(p.RequiredConcerns) == 0 && len(p.SensitiveElements) == 0 && len(p.DomainGuidance) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Profile: %s\n", p.Name))

	if len(p.RequiredConcerns) > 0 {
		sb.WriteString("\nAlways look for requirements covering:\n")
		for _, c := range p.RequiredConcerns {
			sb.WriteString(fmt.Sprintf("- %s\n", c))
		}
	}

	if len(p.SensitiveElements) > 0 {
		sb.WriteString("\nTreat these data elements as sensitive (requirements about them default to high severity):\n")
		for _, e := range p.SensitiveElements {
			sb.WriteString(fmt.Sprintf("- %s\n", e))
		}
	}

	if len(p.DomainGuidance) > 0 {
		sb.WriteString("\nDomain guidance:\n")
		for _, g := range p.DomainGuidance {
			sb.WriteString(fmt.Sprintf("- %s\n", g))
		}
	}

	return sb.String()
}

func general() *Profile {
	return &Profile{Name: "general"}
}

func privacy() *Profile {
	return &Profile{
		Name: "privacy",
		RequiredConcerns: []string{
			"consent collection and recording",
			"data retention periods",
			"subject identifiers and pseudonymization",
		},
		SensitiveElements: []string{
			"names and contact details",
			"government identifiers",
			"health and biometric data",
		},
		DomainGuidance: []string{
			"Requirements about personal data of minors are critical severity",
			"A missing lawful-basis field is a required-field violation, not a format issue",
		},
	}
}

func financial() *Profile {
	return &Profile{
		Name: "financial",
		RequiredConcerns: []string{
			"monetary amount ranges and currency codes",
			"reporting thresholds and limits",
			"counterparty and account identifiers",
		},
		SensitiveElements: []string{
			"account numbers",
			"transaction amounts",
			"tax identifiers",
		},
		DomainGuidance: []string{
			"Threshold breaches are reporting obligations, flag them critical",
			"Currency fields must pair with an amount field; treat unpaired fields as cross-field violations",
		},
	}
}
