// Package research builds company and person profiles for prospects from web
// search results summarised by a language model.
package research

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
	"github.com/rogerHuntGauntlet/outreach/internal/service/llm"
)

const maxSearchResults = 5

// Service answers company and person research questions. When search finds
// nothing the model answers from its own knowledge. Blank names and
// unparseable answers yield placeholder profiles rather than errors.
type Service struct {
	searcher WebSearcher
	gen      llm.Generator
	logger   *slog.Logger
}

// New creates a research service. A nil searcher disables web search, leaving
// the model's own knowledge as the only source.
func New(searcher WebSearcher, gen llm.Generator, logger *slog.Logger) *Service {
	if searcher == nil {
		searcher = NoopSearcher{}
	}
	return &Service{searcher: searcher, gen: gen, logger: logger}
}

const companySystem = `You are a B2B sales researcher. Using only the search results provided, describe the company.
Reply with a single JSON object with keys: overview, recent_developments, market_position,
competitors (array of strings), technology (array of strings), size (one of enterprise, large, medium, small or ""),
industry (single lowercase word such as technology, saas, finance, healthcare, education, retail),
growth_trend (one of up, flat, down or "").
Use empty strings or empty arrays for anything the results do not support.`

const personSystem = `You are a B2B sales researcher. Using only the search results provided, describe the person.
Reply with a single JSON object with keys: role, background, interests (array of strings),
pain_points (array of strings), linkedin_active (boolean), recent_job_change (boolean).
Use empty strings, empty arrays or false for anything the results do not support.`

const knowledgeSystem = `No search results are available. Answer from what you already know about the subject
and leave a field empty rather than guess when you are not confident.`

// AnalyzeCompany researches a company by name.
func (s *Service) AnalyzeCompany(ctx context.Context, name string) (model.CompanyResearch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PlaceholderCompany(name), nil
	}
	results, err := s.searcher.Search(ctx, name+" company overview news technology", maxSearchResults)
	if err != nil {
		return model.CompanyResearch{}, err
	}
	system := companySystem
	if len(results) == 0 {
		system = withoutResults(companySystem)
	}

	out, err := s.gen.GenerateResponse(ctx, system, formatResults("Company: "+name, results))
	if err != nil {
		return model.CompanyResearch{}, fmt.Errorf("research: summarise company: %w", err)
	}
	var company model.CompanyResearch
	if err := decodeJSONObject(out, &company); err != nil {
		s.logger.Warn("research: unparseable company profile, using placeholder", "company", name, "error", err)
		return PlaceholderCompany(name), nil
	}
	return fillCompany(company, name), nil
}

// AnalyzePerson researches a person by name, email and company.
func (s *Service) AnalyzePerson(ctx context.Context, name, email, company string) (model.PersonResearch, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return PlaceholderPerson(name), nil
	}
	query := name + " " + company
	if domain := emailDomain(email); domain != "" {
		query += " " + domain
	}
	results, err := s.searcher.Search(ctx, query, maxSearchResults)
	if err != nil {
		return model.PersonResearch{}, err
	}
	system := personSystem
	if len(results) == 0 {
		system = withoutResults(personSystem)
	}

	out, err := s.gen.GenerateResponse(ctx, system, formatResults(fmt.Sprintf("Person: %s (%s)", name, company), results))
	if err != nil {
		return model.PersonResearch{}, fmt.Errorf("research: summarise person: %w", err)
	}
	var person model.PersonResearch
	if err := decodeJSONObject(out, &person); err != nil {
		s.logger.Warn("research: unparseable person profile, using placeholder", "person", name, "error", err)
		return PlaceholderPerson(name), nil
	}
	return fillPerson(person, name), nil
}

// PlaceholderCompany is returned when nothing is known about a company.
func PlaceholderCompany(name string) model.CompanyResearch {
	return fillCompany(model.CompanyResearch{}, name)
}

// PlaceholderPerson is returned when nothing is known about a person.
func PlaceholderPerson(name string) model.PersonResearch {
	return fillPerson(model.PersonResearch{}, name)
}

func fillCompany(c model.CompanyResearch, name string) model.CompanyResearch {
	if c.Overview == "" {
		c.Overview = fmt.Sprintf("No public overview found for %s.", orUnknown(name))
	}
	if c.RecentDevelopments == "" {
		c.RecentDevelopments = "No recent developments found."
	}
	if c.MarketPosition == "" {
		c.MarketPosition = "Market position unknown."
	}
	if c.Competitors == nil {
		c.Competitors = []string{}
	}
	if c.Technology == nil {
		c.Technology = []string{}
	}
	c.Size = strings.ToLower(strings.TrimSpace(c.Size))
	c.Industry = strings.ToLower(strings.TrimSpace(c.Industry))
	c.GrowthTrend = strings.ToLower(strings.TrimSpace(c.GrowthTrend))
	return c
}

func fillPerson(p model.PersonResearch, name string) model.PersonResearch {
	if p.Background == "" {
		p.Background = fmt.Sprintf("No public background found for %s.", orUnknown(name))
	}
	if p.Interests == nil {
		p.Interests = []string{}
	}
	if p.PainPoints == nil {
		p.PainPoints = []string{}
	}
	return p
}

func orUnknown(s string) string {
	if s == "" {
		return "this prospect"
	}
	return s
}

func emailDomain(email string) string {
	at := strings.LastIndexByte(email, '@')
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

func withoutResults(system string) string {
	return strings.Replace(system, "Using only the search results provided", "Using your own knowledge", 1) + "\n" + knowledgeSystem
}

func formatResults(subject string, results []SearchResult) string {
	var b strings.Builder
	b.WriteString(subject)
	if len(results) == 0 {
		return b.String()
	}
	b.WriteString("\n\nSearch results:\n")
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s (%s)\n%s\n\n", i+1, r.Title, r.URL, r.Content)
	}
	return b.String()
}

// decodeJSONObject extracts the first {...} block of a model answer, which
// may be wrapped in prose or a markdown fence.
func decodeJSONObject(out string, v any) error {
	start := strings.IndexByte(out, '{')
	end := strings.LastIndexByte(out, '}')
	if start < 0 || end <= start {
		return fmt.Errorf("no JSON object in response")
	}
	return json.Unmarshal([]byte(out[start:end+1]), v)
}
