package orchestrator

import (
	"context"
	"encoding/json"
	"regexp"
	"slices"
	"sort"
	"strings"

	"auto-api-healer/internal/types"

	"go.uber.org/zap"
)

var templateToken = regexp.MustCompile(`\{\{([^}]+)\}\}`)

// NeededNames lists the variables an endpoint depends on: path placeholders,
// {{name}} tokens inside the body and identifier fields of the body that still
// hold a placeholder value. Names are unique and keep their first position.
func NeededNames(ep types.Endpoint, body interface{}) []string {
	seen := map[string]bool{}
	var names []string
	add := func(name string) {
		name = strings.TrimSpace(name)
		if name == "" || seen[name] {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	for _, name := range ep.PathParams() {
		add(name)
	}

	if body != nil {
		if raw, err := json.Marshal(body); err == nil {
			for _, m := range templateToken.FindAllStringSubmatch(string(raw), -1) {
				add(m[1])
			}
		}
		for _, name := range unfilledIdentifierFields(body) {
			add(name)
		}
	}

	return names
}

// EntryTokens lists the {{name}} tokens in the query parameters and headers of
// a test data entry, in sorted key order.
func EntryTokens(entry types.EndpointTestData) []string {
	var names []string
	for _, part := range []interface{}{entry.QueryParams, entry.Headers} {
		raw, err := json.Marshal(part)
		if err != nil {
			continue
		}
		for _, m := range templateToken.FindAllStringSubmatch(string(raw), -1) {
			names = appendUnique(names, strings.TrimSpace(m[1]))
		}
	}
	return names
}

func appendUnique(names []string, more ...string) []string {
	for _, name := range more {
		if name == "" || slices.Contains(names, name) {
			continue
		}
		names = append(names, name)
	}
	return names
}

// unfilledIdentifierFields walks body for id-like keys holding placeholder values
func unfilledIdentifierFields(body interface{}) []string {
	var found []string
	var visit func(v interface{})
	visit = func(v interface{}) {
		switch val := v.(type) {
		case map[string]interface{}:
			keys := make([]string, 0, len(val))
			for key := range val {
				keys = append(keys, key)
			}
			sort.Strings(keys)
			for _, key := range keys {
				if strings.HasSuffix(strings.ToLower(key), "id") && isPlaceholderValue(val[key]) {
					found = append(found, key)
				}
				visit(val[key])
			}
		case []interface{}:
			for _, item := range val {
				visit(item)
			}
		}
	}
	visit(body)
	return found
}

// isPlaceholderValue reports values that stand in for a real identifier
func isPlaceholderValue(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case string:
		return val == "" || val == "string" || val == "uuid" || strings.Contains(val, "{{")
	case json.Number:
		f, err := val.Float64()
		return err == nil && f == 0
	case float64:
		return val == 0
	case int:
		return val == 0
	case int64:
		return val == 0
	}
	return false
}

// searchKeyFor derives the producer search key of a needed name. Generic
// names such as {id} borrow the resource noun from the path segment before them.
func searchKeyFor(ep types.Endpoint, name string) string {
	if isGenericIdentifier(name) {
		if segment := segmentBefore(ep.Path, name); segment != "" {
			return strings.ToLower(singular(segment))
		}
	}
	return SearchKey(name)
}

// resolve fills the needed names of ep that the context lacks by probing
// producer endpoints. Probes are one level deep and their failures are
// swallowed; the returned context is a new map.
func (o *Orchestrator) resolve(ctx context.Context, ep types.Endpoint, current types.Context, body interface{}) types.Context {
	resolved := current.Clone()
	probes := map[string]interface{}{}

	names := NeededNames(ep, body)
	if entry, ok := o.testEntry(ep); ok {
		names = appendUnique(names, EntryTokens(entry)...)
	}

	for _, name := range names {
		if resolved.Has(name) {
			continue
		}

		key := searchKeyFor(ep, name)
		producer, ok := Locate(o.endpoints, key)
		if !ok {
			o.logger.Debug("no producer found", zap.String("variable", name), zap.String("key", key))
			continue
		}

		response, cached := probes[producer.ID()]
		if !cached {
			response = o.probe(ctx, producer, resolved)
			probes[producer.ID()] = response
		}
		if response == nil {
			continue
		}

		learned := ExtractIdentifiers(response)
		if learned.Has("id") {
			if !learned.Has(name) {
				learned[name] = learned["id"]
			}
			producerNoun := lastSegment(producer.Path)
			if producerNoun == "" {
				producerNoun = "data"
			}
			learned[singular(producerNoun)+"_id"] = learned["id"]
		}

		if !learned.Has(name) {
			if alias, ok := fuzzyAlias(learned, name); ok {
				o.logger.Debug("aliasing identifier", zap.String("variable", name), zap.String("from", alias))
				learned[name] = learned[alias]
			}
		}

		resolved.Merge(learned)
		o.logger.Info("resolved from producer",
			zap.String("variable", name),
			zap.String("producer", producer.Method+" "+producer.Path),
			zap.Bool("found", resolved.Has(name)),
		)
	}

	return resolved
}

// fuzzyAlias picks the first id-like key other than name. Keys are taken in
// sorted order; with several distinct id-like fields the choice is best-effort.
func fuzzyAlias(learned types.Context, name string) (string, bool) {
	keys := make([]string, 0, len(learned))
	for key := range learned {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if key != name && isIdentifierKey(key) && learned.Has(key) {
			return key, true
		}
	}
	return "", false
}

// probe runs a producer as a side query. It never touches the result table.
func (o *Orchestrator) probe(ctx context.Context, producer types.Endpoint, current types.Context) interface{} {
	result, err := o.executor.Execute(ctx, types.ExecutionRequest{
		BaseURL:  o.baseURL,
		Endpoint: producer,
		Context:  current.Clone(),
		Headers:  o.headers,
	})
	if err != nil {
		o.metrics.RecordProbe("error")
		o.logger.Warn("producer probe failed", zap.String("producer", producer.Path), zap.Error(err))
		return nil
	}
	if result == nil || !result.Passed || result.Response == nil {
		o.metrics.RecordProbe("failed")
		return nil
	}
	o.metrics.RecordProbe("ok")
	return result.Response
}
