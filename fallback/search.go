package fallback

import (
	"context"
	"strings"
	"unicode"
)

// SearchMethod reports which search tier produced results.
type SearchMethod string

const (
	MethodSemantic SearchMethod = "semantic"
	MethodKeyword  SearchMethod = "keyword"
)

// SearchOutcome is the result of Search.
type SearchOutcome[T any] struct {
	Results     []T
	Method      SearchMethod
	SemanticErr error
}

// Search tries semantic first and runs keyword when semantic is nil, fails,
// or returns no results. Any post-filtering belongs inside the semantic step
// so an empty filtered set also steps down.
func Search[T any](ctx context.Context, r *Reporter, name string, semantic, keyword Step[[]T]) (SearchOutcome[T], error) {
	var semanticErr error
	if semantic != nil {
		results, err := semantic(ctx)
		if err == nil && len(results) > 0 {
			return SearchOutcome[T]{Results: results, Method: MethodSemantic}, nil
		}
		semanticErr = err
		r.stepDown(ctx, PatternSearch, name, string(MethodKeyword), err)
	}

	results, err := keyword(ctx)
	if err != nil {
		return SearchOutcome[T]{Method: MethodKeyword, SemanticErr: semanticErr}, err
	}
	if results == nil {
		results = []T{}
	}
	return SearchOutcome[T]{Results: results, Method: MethodKeyword, SemanticErr: semanticErr}, nil
}

var questionWords = map[string]bool{
	"what": true, "why": true, "how": true, "when": true, "where": true,
	"which": true, "who": true, "is": true, "are": true, "can": true,
	"does": true, "do": true, "should": true,
}

// IsNaturalLanguage reports whether query reads like a sentence rather than
// a keyword lookup: three or more words, a leading question word, or a
// trailing question mark.
func IsNaturalLanguage(query string) bool {
	q := strings.TrimSpace(query)
	if q == "" {
		return false
	}
	if strings.HasSuffix(q, "?") {
		return true
	}
	words := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return unicode.IsSpace(r) || r == ','
	})
	if len(words) >= 3 {
		return true
	}
	return questionWords[words[0]]
}
