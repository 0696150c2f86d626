package orchestrator

import (
	"context"
	"encoding/json"
	"net/url"
	"strings"

	"auto-api-healer/internal/types"

	"go.uber.org/zap"
)

// Step runs one endpoint against a context and returns the context grown by
// whatever the step learned. The only error is cancellation of ctx.
func (o *Orchestrator) Step(ctx context.Context, ep types.Endpoint, current types.Context) (types.Context, error) {
	if current == nil {
		current = types.Context{}
	}
	opID := ep.ID()

	// a fresh invocation drops the verdict of an earlier run
	o.clearDiagnosis(opID)

	var forced interface{}
	for attempt := 0; ; attempt++ {
		o.setState(opID, StateResolvingContext)

		working := o.seedFromTestData(ep, current)
		body := o.selectBody(ep, forced, working)
		working = o.resolve(ctx, ep, working, body)
		resolvedPath := ResolvePath(ep.Path, working)

		o.setState(opID, StateDispatching)
		result := o.dispatch(ctx, ep, resolvedPath, body, working)
		if attempt > 0 && result.Passed {
			result.Healed = true
		}
		o.record(result)

		if attempt > 0 {
			if result.Passed {
				o.metrics.RecordHealing("healed")
			} else {
				o.metrics.RecordHealing("failed")
			}
		}

		if result.Passed {
			o.setState(opID, StatePassed)
			return Learn(ep, result.Response, working), nil
		}

		if o.diagnoser == nil {
			o.setState(opID, StateFailedNoKey)
			return working, nil
		}

		verdict := o.diagnose(ctx, ep, body, result)
		if verdict == nil || !verdict.Correctable() || attempt >= MaxHealingAttempts {
			o.setState(opID, StateFailedWithDiagnosis)
			return working, nil
		}

		o.setState(opID, StateHealingRetry)
		o.logger.Info("input issue diagnosed, retrying with suggested body",
			zap.String("operation", opID),
			zap.String("explanation", verdict.Explanation),
		)
		if err := sleep(ctx, o.healingPause); err != nil {
			o.setState(opID, StateFailedWithDiagnosis)
			return working, err
		}

		if fixed, err := json.MarshalIndent(verdict.SuggestedFix, "", "  "); err == nil {
			o.SetManualBody(opID, string(fixed))
		}
		forced = verdict.SuggestedFix
		current = working
	}
}

// seedFromTestData adds concrete path parameters of the test data document for keys the context lacks
func (o *Orchestrator) seedFromTestData(ep types.Endpoint, current types.Context) types.Context {
	seeded := current.Clone()
	entry, ok := o.testEntry(ep)
	if !ok {
		return seeded
	}
	for name, value := range entry.PathParams {
		if seeded.Has(name) || isPlaceholderValue(value) {
			continue
		}
		seeded[name] = value
	}
	return seeded
}

// selectBody applies body precedence: forced fix, manual edit, test data
// document, then a body synthesized from the declared schema.
func (o *Orchestrator) selectBody(ep types.Endpoint, forced interface{}, hints types.Context) interface{} {
	if forced != nil {
		return forced
	}

	var body interface{}
	if raw, ok := o.ManualBody(ep.ID()); ok {
		if err := json.Unmarshal([]byte(raw), &body); err != nil {
			o.logger.Warn("ignoring malformed manual body", zap.String("operation", ep.ID()), zap.Error(err))
			body = nil
		}
	} else if entry, ok := o.testEntry(ep); ok {
		body = entry.Body
	}

	if isEmptyBody(body) {
		if ep.RequestBody == nil {
			return nil
		}
		return o.synthesizer.Body(ep, hints)
	}
	return body
}

func isEmptyBody(body interface{}) bool {
	switch b := body.(type) {
	case nil:
		return true
	case map[string]interface{}:
		return len(b) == 0
	}
	return false
}

// ResolvePath substitutes path placeholders from the context, falling back to
// a generic id or uuid. Unresolved placeholders stay as literal text.
func ResolvePath(path string, current types.Context) string {
	resolved := path
	for _, name := range types.PlaceholderNames(path) {
		value, ok := current.Lookup(name)
		if !ok {
			value, ok = current.Lookup("id")
		}
		if !ok {
			value, ok = current.Lookup("uuid")
		}
		if ok {
			resolved = strings.Replace(resolved, "{"+name+"}", url.PathEscape(value), 1)
		}
	}
	return resolved
}

// dispatch issues the call and normalizes the outcome into a result keyed by the templated path
func (o *Orchestrator) dispatch(ctx context.Context, ep types.Endpoint, resolvedPath string, body interface{}, current types.Context) types.ExecutionResult {
	target := ep
	target.Path = resolvedPath

	req := types.ExecutionRequest{
		BaseURL:  o.baseURL,
		Endpoint: target,
		Body:     body,
		Context:  current.Clone(),
		Headers:  o.headers,
	}
	if entry, ok := o.testEntry(ep); ok {
		req.Query = entry.QueryParams
		if len(entry.Headers) > 0 {
			headers := make(map[string]string, len(o.headers)+len(entry.Headers))
			for k, v := range o.headers {
				headers[k] = v
			}
			for k, v := range entry.Headers {
				headers[k] = v
			}
			req.Headers = headers
		}
	}

	var result types.ExecutionResult
	res, err := o.executor.Execute(ctx, req)
	switch {
	case err != nil:
		result = types.ExecutionResult{Error: err.Error()}
	case res == nil:
		result = types.ExecutionResult{Error: "execution service returned no result"}
	default:
		result = *res
	}
	result.Endpoint = ep.Path
	result.Method = strings.ToUpper(ep.Method)
	result.ResolvedPath = resolvedPath
	if result.RequestBody == nil {
		result.RequestBody = body
	}

	o.metrics.RecordStep(result.Method, string(result.Outcome()), result.Elapsed)
	o.logger.Info("step dispatched",
		zap.String("method", result.Method),
		zap.String("path", resolvedPath),
		zap.Int("status", result.Status),
		zap.Bool("passed", result.Passed),
		zap.Duration("elapsed", result.Elapsed),
	)
	return result
}

// diagnose asks the diagnosis service about a failure. Service errors are
// logged and yield no verdict.
func (o *Orchestrator) diagnose(ctx context.Context, ep types.Endpoint, body interface{}, result types.ExecutionResult) *types.DiagnosisVerdict {
	var response interface{} = result.Response
	if response == nil {
		response = result.Error
	}

	verdict, err := o.diagnoser.Diagnose(ctx, types.DiagnosisRequest{
		Endpoint:    ep,
		RequestBody: body,
		Response:    response,
	})
	if err != nil {
		o.metrics.RecordDiagnosis("error")
		o.logger.Warn("diagnosis failed", zap.String("operation", ep.ID()), zap.Error(err))
		return nil
	}
	if verdict == nil || verdict.Kind == "" {
		return nil
	}

	o.metrics.RecordDiagnosis(string(verdict.Kind))
	o.setDiagnosis(ep.ID(), *verdict)
	return verdict
}

// Learn merges the identifiers of a successful response into the context and
// aliases them by the singular of the trailing path segment, so GET /drivers
// teaches driver_id and driverId.
func Learn(ep types.Endpoint, response interface{}, current types.Context) types.Context {
	out := current.Clone()
	if response == nil {
		return out
	}

	learned := ExtractIdentifiers(response)
	if last := lastSegment(ep.Path); last != "" && !strings.Contains(last, "{") {
		noun := singular(last)
		for _, idKey := range []string{"id", "uuid", "_id", "userId"} {
			if learned.Has(idKey) {
				learned[noun+"_id"] = learned[idKey]
				learned[noun+"Id"] = learned[idKey]
			}
		}
	}

	out.Merge(learned)
	return out
}
