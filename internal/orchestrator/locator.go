package orchestrator

import (
	"sort"
	"strings"

	"auto-api-healer/internal/types"

	"github.com/jinzhu/inflection"
)

// noMatch ranks endpoints that no predicate accepts
const noMatch = -1

// Locate picks the read-only endpoint most likely to return values for key.
// Candidates are ranked by the first predicate they satisfy: path ends with
// /<key>s or /<plural>, path ends with /<key>, path contains key, operation id
// contains key, a tag contains key. Equal ranks go to the shortest path.
func Locate(endpoints []types.Endpoint, key string) (types.Endpoint, bool) {
	key = strings.ToLower(key)
	if key == "" {
		return types.Endpoint{}, false
	}

	type candidate struct {
		endpoint types.Endpoint
		rank     int
	}

	var candidates []candidate
	for _, ep := range endpoints {
		if !ep.IsReadOnly() {
			continue
		}
		if rank := matchRank(ep, key); rank != noMatch {
			candidates = append(candidates, candidate{endpoint: ep, rank: rank})
		}
	}
	if len(candidates) == 0 {
		return types.Endpoint{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].rank != candidates[j].rank {
			return candidates[i].rank < candidates[j].rank
		}
		return len(candidates[i].endpoint.Path) < len(candidates[j].endpoint.Path)
	})
	return candidates[0].endpoint, true
}

func matchRank(ep types.Endpoint, key string) int {
	path := strings.ToLower(ep.Path)
	plural := strings.ToLower(inflection.Plural(key))

	switch {
	case strings.HasSuffix(path, "/"+key+"s") || strings.HasSuffix(path, "/"+plural):
		return 0
	case strings.HasSuffix(path, "/"+key):
		return 1
	case strings.Contains(path, key):
		return 2
	case strings.Contains(strings.ToLower(ep.OperationID), key):
		return 3
	}
	for _, tag := range ep.Tags {
		if strings.Contains(strings.ToLower(tag), key) {
			return 4
		}
	}
	return noMatch
}
