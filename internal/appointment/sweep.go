package appointment

import (
	"context"
	"time"

	"github.com/meetlines/meetlines/internal/models"
	"go.uber.org/zap"
)

// ProjectLister lists the projects a sweep visits.
type ProjectLister interface {
	ListActive(ctx context.Context) ([]models.Project, error)
}

// SweepResult summarizes one no-show sweep.
type SweepResult struct {
	Projects int
	Marked   int
	Failed   int
}

// SweepNoShows marks every open appointment that started more than grace ago
// as no_show, across all active projects. A failing project is logged and
// skipped so one bad tenant does not stall the rest.
func (s *Service) SweepNoShows(ctx context.Context, projects ProjectLister, grace time.Duration) (SweepResult, error) {
	var res SweepResult

	list, err := projects.ListActive(ctx)
	if err != nil {
		return res, err
	}
	cutoff := s.Now().Add(-grace)

	for _, p := range list {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		res.Projects++

		n, err := s.MarkNoShows(ctx, p.ID, cutoff)
		res.Marked += n
		if err != nil {
			res.Failed++
			s.logger.Error("no-show sweep failed for project",
				zap.String("project_id", p.ID.String()),
				zap.String("subdomain", p.Subdomain),
				zap.Error(err),
			)
			continue
		}
		if n > 0 {
			s.logger.Info("marked no-shows",
				zap.String("project_id", p.ID.String()),
				zap.Int("count", n),
			)
		}
	}
	return res, nil
}
