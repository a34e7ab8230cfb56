package engine

import (
	"context"
	"log/slog"

	"github.com/kode4food/sequin/internal/engine/runopt"
	"github.com/kode4food/sequin/pkg/log"
	"github.com/kode4food/sequin/pkg/pipeline"
)

// archiveService writes the result of every finished root context to the
// engine's Archiver
type archiveService struct {
	engine *Engine
}

func newArchiveService(e *Engine, _ *runopt.Options) (any, error) {
	if e.archive == nil {
		return nil, ErrArchiveRequired
	}
	return &archiveService{engine: e}, nil
}

func (s *archiveService) FlowMiddleware() FlowMiddleware {
	return pipeline.Func[*Execution](
		func(
			ctx context.Context, x *Execution, next pipeline.Handler[*Execution],
		) error {
			err := next(ctx, x)
			if !x.IsRoot() {
				return err
			}
			res, ok := x.Result()
			if !ok {
				return err
			}
			actx := context.WithoutCancel(ctx)
			if perr := s.engine.archive.Put(actx, res); perr != nil {
				slog.Error("Failed to archive flow result",
					log.InstanceID(x.ID()),
					log.Error(perr))
			}
			return err
		},
	)
}
