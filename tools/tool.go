package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sort"
	"strings"
)

// Name identifies a tool.
type Name string

// Tool names.
const (
	SearchCars              Name = "search_cars"
	GetCarDetails           Name = "get_car_details"
	GetCarAIContext         Name = "get_car_ai_context"
	CompareCars             Name = "compare_cars"
	SearchEncyclopedia      Name = "search_encyclopedia"
	SearchKnowledge         Name = "search_knowledge"
	GetMaintenanceSchedule  Name = "get_maintenance_schedule"
	AnalyzeVehicleHealth    Name = "analyze_vehicle_health"
	GetKnownIssues          Name = "get_known_issues"
	SearchCommunityInsights Name = "search_community_insights"
	SearchWeb               Name = "search_web"
	GetExpertReviews        Name = "get_expert_reviews"
	SearchParts             Name = "search_parts"
	GetUpgradeInfo          Name = "get_upgrade_info"
	RecommendBuild          Name = "recommend_build"
	GetTrackLapTimes        Name = "get_track_lap_times"
	GetDynoRuns             Name = "get_dyno_runs"
	SearchEvents            Name = "search_events"
	GetUserContext          Name = "get_user_context"
)

// Known reports whether name is a registered tool name.
func Known(name string) bool {
	switch Name(name) {
	case SearchCars, GetCarDetails, GetCarAIContext, CompareCars,
		SearchEncyclopedia, SearchKnowledge, GetMaintenanceSchedule,
		AnalyzeVehicleHealth, GetKnownIssues, SearchCommunityInsights,
		SearchWeb, GetExpertReviews, SearchParts, GetUpgradeInfo,
		RecommendBuild, GetTrackLapTimes, GetDynoRuns, SearchEvents,
		GetUserContext:
		return true
	}
	return false
}

// Tool categories, used as telemetry attributes.
const (
	CategoryCars      = "cars"
	CategoryKnowledge = "knowledge"
	CategoryGarage    = "garage"
	CategoryBuilds    = "builds"
	CategoryWeb       = "web"
	CategoryEvents    = "events"
)

// Tool is one registered operation. The interface is sealed: every
// implementation is built by define, so the set of tools is fixed at
// compile time.
//
// Contract:
// - Concurrency: implementations are safe for concurrent use.
// - Errors: Prepare reports malformed or invalid arguments as a bad_input
// *Error before any I/O happens.
type Tool interface {
	Name() Name
	Category() string
	Description() string

	// Prepare decodes and validates raw JSON arguments.
	Prepare(args json.RawMessage) (Invocation, error)

	sealed()
}

// Invocation is a validated call ready to run.
type Invocation struct {
	// Request is the decoded, validated request value. Cache keys are
	// derived from it.
	Request any

	run func(ctx context.Context) (any, error)
}

// Run executes the handler.
func (i Invocation) Run(ctx context.Context) (any, error) {
	if i.run == nil {
		return nil, errors.New("tools: empty invocation")
	}
	return i.run(ctx)
}

// request is implemented by every tool's argument struct.
type request interface {
	Validate() error
}

type tool[Req request, Resp any] struct {
	name        Name
	category    string
	description string
	deps        *Deps
	handle      func(ctx context.Context, d *Deps, req Req) (Resp, error)
}

func define[Req request, Resp any](
	d *Deps,
	name Name,
	category, description string,
	handle func(ctx context.Context, d *Deps, req Req) (Resp, error),
) Tool {
	return &tool[Req, Resp]{
		name:        name,
		category:    category,
		description: description,
		deps:        d,
		handle:      handle,
	}
}

func (t *tool[Req, Resp]) Name() Name          { return t.name }
func (t *tool[Req, Resp]) Category() string    { return t.category }
func (t *tool[Req, Resp]) Description() string { return t.description }
func (t *tool[Req, Resp]) sealed()             {}

func (t *tool[Req, Resp]) Prepare(args json.RawMessage) (Invocation, error) {
	var req Req
	if trimmed := bytes.TrimSpace(args); len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		if err := json.Unmarshal(trimmed, &req); err != nil {
			return Invocation{}, BadInput("invalid arguments for %s: %v", t.name, err)
		}
	}
	if err := req.Validate(); err != nil {
		if _, ok := AsError(err); ok {
			return Invocation{}, err
		}
		return Invocation{}, BadInput("%v", err)
	}
	return Invocation{
		Request: req,
		run: func(ctx context.Context) (any, error) {
			return t.handle(ctx, t.deps, req)
		},
	}, nil
}

// Registry is the fixed set of tools.
type Registry struct {
	tools map[Name]Tool
	names []Name
}

// New builds the registry with every tool bound to deps.
func New(deps Deps) *Registry {
	d := deps.withDefaults()
	all := []Tool{
		searchCarsTool(d),
		getCarDetailsTool(d),
		getCarAIContextTool(d),
		compareCarsTool(d),
		searchEncyclopediaTool(d),
		searchKnowledgeTool(d),
		getMaintenanceScheduleTool(d),
		analyzeVehicleHealthTool(d),
		getKnownIssuesTool(d),
		searchCommunityInsightsTool(d),
		searchWebTool(d),
		getExpertReviewsTool(d),
		searchPartsTool(d),
		getUpgradeInfoTool(d),
		recommendBuildTool(d),
		getTrackLapTimesTool(d),
		getDynoRunsTool(d),
		searchEventsTool(d),
		getUserContextTool(d),
	}

	r := &Registry{tools: make(map[Name]Tool, len(all))}
	for _, t := range all {
		r.tools[t.Name()] = t
		r.names = append(r.names, t.Name())
	}
	sort.Slice(r.names, func(i, j int) bool { return r.names[i] < r.names[j] })
	return r
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[Name(name)]
	return t, ok
}

// Names lists tool names in lexical order.
func (r *Registry) Names() []Name {
	return append([]Name(nil), r.names...)
}

// Tools lists tools in lexical name order.
func (r *Registry) Tools() []Tool {
	out := make([]Tool, len(r.names))
	for i, n := range r.names {
		out[i] = r.tools[n]
	}
	return out
}

// UnknownTool builds the error returned for a name not in the registry.
func (r *Registry) UnknownTool(name string) *Error {
	names := make([]string, len(r.names))
	for i, n := range r.names {
		names[i] = string(n)
	}
	return &Error{
		Kind:       KindUnknownTool,
		Message:    "Unknown tool: " + name,
		Suggestion: "Available tools: " + strings.Join(names, ", "),
	}
}
