package agents

import (
	"strings"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

// neutralFactor is the score of a factor with no data behind it.
const neutralFactor = 0.5

var (
	companySizeScores = map[string]float64{
		"enterprise": 1.0,
		"large":      0.8,
		"medium":     0.6,
		"small":      0.4,
	}
	targetIndustries = []string{"technology", "saas", "finance", "healthcare", "education"}
	relevantTech     = []string{
		"aws", "azure", "gcp", "kubernetes", "docker", "terraform",
		"python", "go", "java", "javascript", "typescript", "react", "node",
		"postgresql", "mongodb", "salesforce", "hubspot",
	}
	seniorTitles = []string{"cto", "vp", "director", "head", "lead"}
)

// QualificationFactors are the six sub-scores of a prospect, each in [0,1].
type QualificationFactors struct {
	CompanySize float64 `json:"company_size"`
	IndustryFit float64 `json:"industry_fit"`
	TechStack   float64 `json:"tech_stack"`
	Growth      float64 `json:"growth"`
	PersonRole  float64 `json:"person_role"`
	Engagement  float64 `json:"engagement"`
}

// Score is the mean of the factors scaled to [0,100].
func (f QualificationFactors) Score() float64 {
	mean := (f.CompanySize + f.IndustryFit + f.TechStack + f.Growth + f.PersonRole + f.Engagement) / 6
	return clamp01(mean) * 100
}

// Qualify scores a researched prospect. Missing fields score neutralFactor.
func Qualify(r model.ResearchData) QualificationFactors {
	return QualificationFactors{
		CompanySize: companySizeFactor(r.Company.Size),
		IndustryFit: industryFactor(r.Company.Industry),
		TechStack:   techStackFactor(r.Company.Technology),
		Growth:      growthFactor(r.Company.GrowthTrend),
		PersonRole:  roleFactor(r.Person.Role),
		Engagement:  engagementFactor(r.Person),
	}
}

// PriorityFor maps a qualification score to a ticket priority.
func PriorityFor(score float64) string {
	switch {
	case score >= 80:
		return model.PriorityHigh
	case score >= 60:
		return model.PriorityMedium
	default:
		return model.PriorityLow
	}
}

func companySizeFactor(size string) float64 {
	if s, ok := companySizeScores[normalize(size)]; ok {
		return s
	}
	return neutralFactor
}

func industryFactor(industry string) float64 {
	ind := normalize(industry)
	if ind == "" || ind == "unknown" {
		return neutralFactor
	}
	for _, target := range targetIndustries {
		if ind == target {
			return 0.8
		}
	}
	return 0.4
}

// techStackFactor is the share of the stack found in relevantTech.
func techStackFactor(stack []string) float64 {
	if len(stack) == 0 {
		return neutralFactor
	}
	matches := 0
	for _, tech := range stack {
		t := normalize(tech)
		for _, relevant := range relevantTech {
			if t == relevant {
				matches++
				break
			}
		}
	}
	return clamp01(float64(matches) / float64(len(stack)))
}

func growthFactor(trend string) float64 {
	switch normalize(trend) {
	case "":
		return neutralFactor
	case "up":
		return 0.8
	default:
		return 0.4
	}
}

func roleFactor(role string) float64 {
	r := normalize(role)
	if r == "" || r == "unknown" {
		return neutralFactor
	}
	for _, title := range seniorTitles {
		if strings.Contains(r, title) {
			return 0.9
		}
	}
	return 0.5
}

func engagementFactor(p model.PersonResearch) float64 {
	score := 0.5
	if p.LinkedInActive {
		score += 0.2
	}
	if p.RecentJobChange {
		score += 0.2
	}
	if len(p.Interests) > 0 {
		score += 0.1
	}
	return clamp01(score)
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
