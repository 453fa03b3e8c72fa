package gateway

import (
	"context"
	"sync"

	"github.com/llmhub/llmhub/internal/domain"
)

// Aggregator fans a batch of tool calls out through the router and
// consolidates the outcomes into one result.
type Aggregator struct {
	router *Router
}

func NewAggregator(router *Router) *Aggregator {
	return &Aggregator{router: router}
}

// Aggregate runs every call concurrently and returns the first
// success in input order. An empty batch yields no_calls; a single
// call is returned as-is; a batch with no successes yields all_failed
// with every failure listed in input order.
func (a *Aggregator) Aggregate(ctx context.Context, calls []domain.ToolCall) domain.AggregateResult {
	switch len(calls) {
	case 0:
		return domain.AggregateResult{Status: domain.StatusNoCalls}
	case 1:
		res := a.router.Route(ctx, calls[0])
		return domain.AggregateResult{
			Status:  res.Status,
			Result:  res.Result,
			Service: res.Service,
			Error:   res.Error,
		}
	}

	results := make([]domain.CallResult, len(calls))
	var wg sync.WaitGroup
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call domain.ToolCall) {
			defer wg.Done()
			results[i] = a.router.Route(ctx, call)
		}(i, call)
	}
	wg.Wait()

	for _, res := range results {
		if res.Status == domain.StatusSuccess {
			return domain.AggregateResult{
				Status:  res.Status,
				Result:  res.Result,
				Service: res.Service,
			}
		}
	}

	errs := make([]domain.CallError, 0, len(results))
	for i, res := range results {
		service := res.Service
		if service == "" {
			service = calls[i].Service
		}
		errs = append(errs, domain.CallError{Service: service, Error: res.Error})
	}
	return domain.AggregateResult{Status: domain.StatusAllFailed, Errors: errs}
}
