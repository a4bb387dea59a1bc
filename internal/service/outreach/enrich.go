package outreach

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/rogerHuntGauntlet/outreach/internal/model"
)

// Researcher looks up companies and people.
type Researcher interface {
	AnalyzeCompany(ctx context.Context, name string) (model.CompanyResearch, error)
	AnalyzePerson(ctx context.Context, name, email, company string) (model.PersonResearch, error)
}

// Enrich researches the prospect's company and the prospect concurrently.
// Either both halves are returned or an error is.
func Enrich(ctx context.Context, r Researcher, p model.Prospect) (model.ResearchData, error) {
	var (
		company model.CompanyResearch
		person  model.PersonResearch
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		company, err = r.AnalyzeCompany(gctx, p.Company)
		if err != nil {
			return fmt.Errorf("company %q: %w", p.Company, err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		person, err = r.AnalyzePerson(gctx, p.Name, p.Email, p.Company)
		if err != nil {
			return fmt.Errorf("person %q: %w", p.Name, err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.ResearchData{}, err
	}
	return model.ResearchData{Company: company, Person: person}, nil
}
