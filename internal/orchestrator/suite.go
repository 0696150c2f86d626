package orchestrator

import (
	"context"
	"sort"
	"strings"

	"auto-api-healer/internal/types"

	"go.uber.org/zap"
)

// Order sorts endpoints so producers run before consumers: endpoints
// without a path placeholder first, then shorter paths. The sort is stable.
func Order(endpoints []types.Endpoint) []types.Endpoint {
	sorted := make([]types.Endpoint, len(endpoints))
	copy(sorted, endpoints)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i].HasPathParams(), sorted[j].HasPathParams()
		if a != b {
			return !a
		}
		return len(sorted[i].Path) < len(sorted[j].Path)
	})
	return sorted
}

// Run executes endpoints sequentially, threading the context from each step
// into the next. Cancellation is checked between steps; results recorded so
// far are kept and the context learned so far is returned with the error.
func (o *Orchestrator) Run(ctx context.Context, endpoints []types.Endpoint, start types.Context) (types.Context, error) {
	if o.baseURL == "" {
		return start, ErrMissingBaseURL
	}

	current := types.Context{}
	current.Merge(start)

	if len(endpoints) == 0 {
		o.logger.Warn("no endpoints to run")
		return current, nil
	}

	o.clearResults(endpoints)
	ordered := Order(endpoints)

	paths := make([]string, len(ordered))
	for i, ep := range ordered {
		paths[i] = ep.Method + " " + ep.Path
	}
	o.logger.Info("running suite", zap.Int("endpoints", len(ordered)), zap.Strings("order", paths))

	for _, ep := range ordered {
		if err := ctx.Err(); err != nil {
			return current, err
		}
		if err := o.limiter.Wait(ctx); err != nil {
			return current, err
		}

		next, err := o.Step(ctx, ep, current)
		current = next
		if err != nil {
			return current, err
		}
	}

	return current, nil
}

// RunMethod runs the catalogue endpoints of one method, leaving uploads aside
func (o *Orchestrator) RunMethod(ctx context.Context, method string, start types.Context) (types.Context, error) {
	return o.Run(ctx, FilterMethod(o.endpoints, method), start)
}

// RunUploads runs the catalogue endpoints that deal with files
func (o *Orchestrator) RunUploads(ctx context.Context, start types.Context) (types.Context, error) {
	return o.Run(ctx, FilterUploads(o.endpoints), start)
}

// RunCategory runs the catalogue endpoints whose category is category
func (o *Orchestrator) RunCategory(ctx context.Context, category string, start types.Context) (types.Context, error) {
	return o.Run(ctx, FilterCategory(o.endpoints, category), start)
}

// FilterMethod keeps non-upload endpoints of method
func FilterMethod(endpoints []types.Endpoint, method string) []types.Endpoint {
	var out []types.Endpoint
	for _, ep := range endpoints {
		if strings.EqualFold(ep.Method, method) && !ep.IsUpload() {
			out = append(out, ep)
		}
	}
	return out
}

// FilterUploads keeps upload endpoints
func FilterUploads(endpoints []types.Endpoint) []types.Endpoint {
	var out []types.Endpoint
	for _, ep := range endpoints {
		if ep.IsUpload() {
			out = append(out, ep)
		}
	}
	return out
}

// FilterCategory keeps endpoints whose first tag, or "General", equals category
func FilterCategory(endpoints []types.Endpoint, category string) []types.Endpoint {
	var out []types.Endpoint
	for _, ep := range endpoints {
		if strings.EqualFold(ep.Category(), category) {
			out = append(out, ep)
		}
	}
	return out
}

// Categories returns the distinct categories of endpoints in first-seen order
func Categories(endpoints []types.Endpoint) []string {
	seen := map[string]bool{}
	var out []string
	for _, ep := range endpoints {
		c := ep.Category()
		if !seen[c] {
			seen[c] = true
			out = append(out, c)
		}
	}
	return out
}
