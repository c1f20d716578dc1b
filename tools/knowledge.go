package tools

import (
	"context"
	"strings"

	"github.com/revline/algateway/embedding"
	"github.com/revline/algateway/fallback"
	"github.com/revline/algateway/store"
	"github.com/revline/algateway/websearch"
)

// corpus describes one searchable collection: a similarity procedure for
// the semantic tier and a table for the keyword tier.
type corpus struct {
	proc    string
	table   string
	text    []string // columns the keyword tier matches against
	columns []string
}

// searchCorpus runs the search fallback over c. The semantic tier runs only
// for natural-language queries with a configured embedder. keep filters
// semantic results; an empty filtered set steps down to keyword.
func searchCorpus[T any](
	ctx context.Context,
	d *Deps,
	tool Name,
	c corpus,
	query string,
	n int,
	procArgs map[string]any,
	filters []store.Filter,
	keep func(T) bool,
) (fallback.SearchOutcome[T], fallback.AccessTier, error) {
	st, access, err := d.reader(ctx, tool)
	if err != nil {
		return fallback.SearchOutcome[T]{}, access, err
	}

	var semantic fallback.Step[[]T]
	if fallback.IsNaturalLanguage(query) && d.Embedder.Configured() {
		semantic = func(ctx context.Context) ([]T, error) {
			emb, err := d.Embedder.Embed(ctx, query)
			if err != nil {
				return nil, err
			}
			args := map[string]any{
				"query_embedding": embedding.FormatVector(emb.Vector),
				"match_count":     n * 2,
				"match_threshold": 0.5,
			}
			for k, v := range procArgs {
				args[k] = v
			}
			rows, err := st.Call(ctx, c.proc, args)
			if err != nil {
				return nil, err
			}
			found, err := store.Decode[T](rows)
			if err != nil {
				return nil, err
			}
			out := found[:0]
			for _, item := range found {
				if keep == nil || keep(item) {
					out = append(out, item)
				}
			}
			if len(out) > n {
				out = out[:n]
			}
			return out, nil
		}
	}

	keyword := func(ctx context.Context) ([]T, error) {
		rows, err := st.Select(ctx, store.Query{
			Table:   c.table,
			Columns: c.columns,
			Filters: filters,
			Or:      anyTerm(keywords(query), c.text...),
			Limit:   n,
		})
		if err != nil {
			return nil, err
		}
		return store.Decode[T](rows)
	}

	out, err := fallback.Search(ctx, d.reporter, string(tool), semantic, keyword)
	return out, access, err
}

// SearchRequest is shared by the corpus search tools.
type SearchRequest struct {
	Query    string `json:"query"`
	Category string `json:"category,omitempty"`
	CarSlug  string `json:"car_slug,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (r SearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return missing("query")
	}
	return checkLimit(r.Limit, 20)
}

// SearchResponse reports results and the tier that produced them.
type SearchResponse[T any] struct {
	Query        string                `json:"query"`
	Results      []T                   `json:"results"`
	Count        int                   `json:"count"`
	SearchMethod fallback.SearchMethod `json:"searchMethod"`
	Access       fallback.AccessTier   `json:"access"`
}

func searchResponse[T any](query string, out fallback.SearchOutcome[T], access fallback.AccessTier) SearchResponse[T] {
	return SearchResponse[T]{
		Query:        query,
		Results:      out.Results,
		Count:        len(out.Results),
		SearchMethod: out.Method,
		Access:       access,
	}
}

// search_encyclopedia

type Topic struct {
	Slug       string  `json:"slug"`
	Title      string  `json:"title"`
	Category   string  `json:"category,omitempty"`
	Summary    string  `json:"summary,omitempty"`
	Similarity float64 `json:"similarity,omitempty"`
}

var encyclopedia = corpus{
	proc:    "match_encyclopedia",
	table:   "encyclopedia_topics",
	text:    []string{"title", "summary"},
	columns: []string{"slug", "title", "category", "summary"},
}

func searchEncyclopediaTool(d *Deps) Tool {
	return define(d, SearchEncyclopedia, CategoryKnowledge,
		"Search the automotive encyclopedia: systems, components, technologies and terminology.",
		func(ctx context.Context, d *Deps, req SearchRequest) (SearchResponse[Topic], error) {
			n := limit(req.Limit, 5, 20)
			var filters []store.Filter
			if req.Category != "" {
				filters = append(filters, store.Eq("category", req.Category))
			}
			keep := func(t Topic) bool {
				return req.Category == "" || strings.EqualFold(t.Category, req.Category)
			}
			out, access, err := searchCorpus(ctx, d, SearchEncyclopedia, encyclopedia, req.Query, n, nil, filters, keep)
			if err != nil {
				return SearchResponse[Topic]{}, err
			}
			return searchResponse(req.Query, out, access), nil
		})
}

// search_knowledge

type Chunk struct {
	DocumentTitle string  `json:"document_title,omitempty"`
	CarSlug       string  `json:"car_slug,omitempty"`
	Content       string  `json:"content"`
	SourceURL     string  `json:"source_url,omitempty"`
	Similarity    float64 `json:"similarity,omitempty"`
}

var documents = corpus{
	proc:    "match_document_chunks",
	table:   "document_chunks",
	text:    []string{"content"},
	columns: []string{"document_title", "car_slug", "content", "source_url"},
}

func searchKnowledgeTool(d *Deps) Tool {
	return define(d, SearchKnowledge, CategoryKnowledge,
		"Search owner manuals, service bulletins and articles, optionally for one car.",
		func(ctx context.Context, d *Deps, req SearchRequest) (SearchResponse[Chunk], error) {
			n := limit(req.Limit, 5, 20)
			var filters []store.Filter
			procArgs := map[string]any{"filter_car_slug": nil}
			if req.CarSlug != "" {
				filters = append(filters, store.Eq("car_slug", req.CarSlug))
				procArgs["filter_car_slug"] = req.CarSlug
			}
			keep := func(c Chunk) bool {
				return req.CarSlug == "" || c.CarSlug == req.CarSlug
			}
			out, access, err := searchCorpus(ctx, d, SearchKnowledge, documents, req.Query, n, procArgs, filters, keep)
			if err != nil {
				return SearchResponse[Chunk]{}, err
			}
			return searchResponse(req.Query, out, access), nil
		})
}

// search_community_insights

type Insight struct {
	Title       string  `json:"title"`
	Summary     string  `json:"summary,omitempty"`
	InsightType string  `json:"insight_type,omitempty"`
	CarSlug     string  `json:"car_slug,omitempty"`
	SourceURL   string  `json:"source_url,omitempty"`
	Upvotes     int     `json:"upvotes,omitempty"`
	Similarity  float64 `json:"similarity,omitempty"`
}

var insights = corpus{
	proc:    "match_community_insights",
	table:   "community_insights",
	text:    []string{"title", "summary"},
	columns: []string{"title", "summary", "insight_type", "car_slug", "source_url", "upvotes"},
}

func searchCommunityInsightsTool(d *Deps) Tool {
	return define(d, SearchCommunityInsights, CategoryKnowledge,
		"Search owner community insights such as common fixes, buying tips and long-term reports.",
		func(ctx context.Context, d *Deps, req SearchRequest) (SearchResponse[Insight], error) {
			n := limit(req.Limit, 5, 20)
			var filters []store.Filter
			if req.CarSlug != "" {
				filters = append(filters, store.Eq("car_slug", req.CarSlug))
			}
			if req.Category != "" {
				filters = append(filters, store.Eq("insight_type", req.Category))
			}
			keep := func(in Insight) bool {
				return (req.CarSlug == "" || in.CarSlug == req.CarSlug) &&
					(req.Category == "" || strings.EqualFold(in.InsightType, req.Category))
			}
			out, access, err := searchCorpus(ctx, d, SearchCommunityInsights, insights, req.Query, n, nil, filters, keep)
			if err != nil {
				return SearchResponse[Insight]{}, err
			}
			return searchResponse(req.Query, out, access), nil
		})
}

// search_web

type WebSearchRequest struct {
	Query      string `json:"query"`
	NumResults int    `json:"num_results,omitempty"`
}

func (r WebSearchRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" {
		return missing("query")
	}
	if r.NumResults < 0 || r.NumResults > websearch.MaxResults {
		return BadInput("num_results must be between 1 and %d", websearch.MaxResults)
	}
	return nil
}

type WebSearchResponse struct {
	Query   string             `json:"query"`
	Results []websearch.Result `json:"results"`
	Count   int                `json:"count"`
}

func searchWebTool(d *Deps) Tool {
	return define(d, SearchWeb, CategoryWeb,
		"Search the web for recent news, prices and information not in the car database.",
		func(ctx context.Context, d *Deps, req WebSearchRequest) (WebSearchResponse, error) {
			if d.Web == nil {
				return WebSearchResponse{}, ConfigMissing("Web search is not configured.",
					"Use search_knowledge or search_community_insights for answers from the car database.")
			}
			results, err := d.Web.Search(ctx, req.Query, req.NumResults)
			if err != nil {
				return WebSearchResponse{}, err
			}
			if results == nil {
				results = []websearch.Result{}
			}
			return WebSearchResponse{Query: req.Query, Results: results, Count: len(results)}, nil
		})
}
