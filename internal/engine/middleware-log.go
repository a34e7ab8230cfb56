package engine

import (
	"context"
	"log/slog"

	"github.com/kode4food/sequin/internal/engine/runopt"
	"github.com/kode4food/sequin/pkg/log"
	"github.com/kode4food/sequin/pkg/pipeline"
)

type logService struct {
	logger *slog.Logger
}

func newLogService(*Engine, *runopt.Options) (any, error) {
	return &logService{logger: slog.Default()}, nil
}

func (s *logService) FlowMiddleware() FlowMiddleware {
	return pipeline.Func[*Execution](
		func(
			ctx context.Context, x *Execution, next pipeline.Handler[*Execution],
		) error {
			l := s.logger.With(
				log.InstanceID(x.ID()),
				log.Path(x.path),
				log.FlowID(x.flow.Category, x.flow.Name),
			)
			l.Info("Flow started")
			err := next(ctx, x)
			if err != nil {
				l.Warn("Flow ended", log.Error(err))
				return err
			}
			l.Info("Flow completed")
			return nil
		},
	)
}

func (s *logService) GroupMiddleware() GroupMiddleware {
	return pipeline.Func[*Group](
		func(ctx context.Context, g *Group, next pipeline.Handler[*Group]) error {
			l := s.logger.With(
				log.InstanceID(g.exec.ID()),
				log.Path(g.exec.path),
				log.StepID(g.step.ID),
			)
			l.Info("Step started")
			if err := next(ctx, g); err != nil {
				l.Error("Step failed", log.Error(err))
				return err
			}
			state, reason := g.Outcome()
			l.Info("Step finished",
				log.Status(state),
				slog.String("reason", reason))
			return nil
		},
	)
}

func (s *logService) AttemptMiddleware() AttemptMiddleware {
	return pipeline.Func[*Attempt](
		func(
			ctx context.Context, a *Attempt, next pipeline.Handler[*Attempt],
		) error {
			l := s.logger.With(
				log.InstanceID(a.InstanceID()),
				log.StepID(a.StepID()),
				log.Repeat(a.repeat),
				log.Retry(a.retry),
			)
			l.Debug("Attempt started")
			if err := next(ctx, a); err != nil {
				l.Warn("Attempt failed", log.Error(err))
				return err
			}
			l.Debug("Attempt completed")
			return nil
		},
	)
}
