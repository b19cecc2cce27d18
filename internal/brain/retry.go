package brain

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/wonny/alphaterminal/backend/internal/contracts"
)

// RetryReport summarises one pass over the pending-analysis queue
type RetryReport struct {
	Attempted int `json:"attempted"`
	Recovered int `json:"recovered"`
	Requeued  int `json:"requeued"`
}

// RetryPending re-analyzes queued tickers. Recovered assessments land in the
// cache, so the next incremental run ranks them without new provider calls.
func (o *Orchestrator) RetryPending(ctx context.Context) (RetryReport, error) {
	items := o.queue.Drain()
	report := RetryReport{Attempted: len(items)}
	if len(items) == 0 || o.analyzer == nil {
		for _, item := range items {
			o.queue.Requeue(item, item.Reason, false)
		}
		report.Requeued = len(items)
		return report, nil
	}

	var (
		recovered atomic.Int32
		disabled  atomic.Bool
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.limit(len(items)))
	for _, item := range items {
		g.Go(func() error {
			if disabled.Load() || gctx.Err() != nil {
				o.queue.Requeue(item, item.Reason, false)
				return nil
			}

			_, outcome, err := o.analyzer.Analyze(gctx, item.Request, false)
			o.metrics.RecordQualitative(string(outcome))
			if err != nil {
				if contracts.IsPermanent(err) {
					disabled.Store(true)
				}
				o.queue.Requeue(item, err.Error(), true)
				return nil
			}
			recovered.Add(1)
			return nil
		})
	}
	_ = g.Wait()

	report.Recovered = int(recovered.Load())
	report.Requeued = report.Attempted - report.Recovered
	o.metrics.SetRetryQueueSize(o.queue.Len())

	o.logger.WithFields(map[string]interface{}{
		"attempted": report.Attempted,
		"recovered": report.Recovered,
		"requeued":  report.Requeued,
	}).Info("Retry pass completed")

	return report, ctx.Err()
}
