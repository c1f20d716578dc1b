package tools

import (
	"context"
	"errors"
	"strings"

	"github.com/revline/algateway/catalog"
	"github.com/revline/algateway/fallback"
	"github.com/revline/algateway/store"
)

// search_parts

type SearchPartsRequest struct {
	Query    string `json:"query,omitempty"`
	CarSlug  string `json:"car_slug,omitempty"`
	Category string `json:"category,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (r SearchPartsRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" && r.Category == "" {
		return missing("query or category")
	}
	return checkLimit(r.Limit, 25)
}

type Part struct {
	Name       string   `json:"name"`
	Brand      string   `json:"brand,omitempty"`
	Category   string   `json:"category,omitempty"`
	PartNumber string   `json:"part_number,omitempty"`
	Price      float64  `json:"price,omitempty"`
	URL        string   `json:"url,omitempty"`
	Fitment    []string `json:"fitment,omitempty"`
}

// Fits reports whether the part lists carSlug, or a family prefix of it, in
// its fitment. Parts without fitment data are universal.
func (p Part) Fits(carSlug string) bool {
	if len(p.Fitment) == 0 {
		return true
	}
	for _, f := range p.Fitment {
		if f == carSlug || strings.HasPrefix(carSlug, f+"-") {
			return true
		}
	}
	return false
}

type SearchPartsResponse struct {
	Results []Part              `json:"results"`
	Count   int                 `json:"count"`
	Access  fallback.AccessTier `json:"access"`
}

func searchPartsTool(d *Deps) Tool {
	return define(d, SearchParts, CategoryBuilds,
		"Search aftermarket parts by name or brand, optionally limited to parts that fit a car.",
		func(ctx context.Context, d *Deps, req SearchPartsRequest) (SearchPartsResponse, error) {
			st, access, err := d.reader(ctx, SearchParts)
			if err != nil {
				return SearchPartsResponse{}, err
			}
			n := limit(req.Limit, 10, 25)

			q := store.Query{
				Table:   "parts",
				Columns: []string{"name", "brand", "category", "part_number", "price", "url", "fitment"},
				OrderBy: "name",
				Limit:   n,
			}
			if query := strings.TrimSpace(req.Query); query != "" {
				q.Or = anyTerm(keywords(query), "name", "brand")
			}
			if req.Category != "" {
				q.Filters = append(q.Filters, store.Eq("category", req.Category))
			}
			if req.CarSlug != "" {
				// Fitment is filtered after the read.
				q.Limit = n * 4
			}

			rows, err := st.Select(ctx, q)
			if err != nil {
				return SearchPartsResponse{}, err
			}
			parts, err := store.Decode[Part](rows)
			if err != nil {
				return SearchPartsResponse{}, err
			}
			out := parts[:0]
			for _, p := range parts {
				if req.CarSlug == "" || p.Fits(req.CarSlug) {
					out = append(out, p)
				}
			}
			if len(out) > n {
				out = out[:n]
			}
			return SearchPartsResponse{Results: out, Count: len(out), Access: access}, nil
		})
}

// get_upgrade_info

type UpgradeRequest struct {
	Upgrade string `json:"upgrade"`
}

func (r UpgradeRequest) Validate() error {
	if catalog.NormalizeKey(r.Upgrade) == "" {
		return missing("upgrade")
	}
	return nil
}

type UpgradeResponse struct {
	Upgrade catalog.UpgradeInfo `json:"upgrade"`
	Source  fallback.SourceTier `json:"source"`
}

func getUpgradeInfoTool(d *Deps) Tool {
	return define(d, GetUpgradeInfo, CategoryBuilds,
		"Explain a modification: what it does, typical gains, cost and trade-offs.",
		func(ctx context.Context, d *Deps, req UpgradeRequest) (UpgradeResponse, error) {
			key := catalog.NormalizeKey(req.Upgrade)

			var remote fallback.Step[catalog.UpgradeInfo]
			if st, _, err := d.reader(ctx, GetUpgradeInfo); err == nil {
				remote = func(ctx context.Context) (catalog.UpgradeInfo, error) {
					rows, err := st.Select(ctx, store.Query{
						Table:   "upgrade_education",
						Filters: []store.Filter{store.Eq("upgrade_key", key)},
						Limit:   1,
					})
					if err != nil {
						return catalog.UpgradeInfo{}, err
					}
					u, err := store.First[catalog.UpgradeInfo](rows)
					if errors.Is(err, store.ErrNotFound) {
						return catalog.UpgradeInfo{}, fallback.ErrNoData
					}
					return u, err
				}
			}

			local := func() (catalog.UpgradeInfo, error) {
				if d.Catalog == nil {
					return catalog.UpgradeInfo{}, ConfigMissing("No upgrade data is available.", "")
				}
				u, err := d.Catalog.Upgrade(key)
				if errors.Is(err, catalog.ErrNotFound) {
					return catalog.UpgradeInfo{}, NotFound("No information about upgrade: "+req.Upgrade, upgradeSuggestion(d.Catalog))
				}
				return u, err
			}

			u, source, err := fallback.Source(ctx, d.reporter, string(GetUpgradeInfo), remote, local)
			if err != nil {
				return UpgradeResponse{}, err
			}
			return UpgradeResponse{Upgrade: u, Source: source}, nil
		})
}

func upgradeSuggestion(c *catalog.Catalog) string {
	all := c.Upgrades("")
	keys := make([]string, len(all))
	for i, u := range all {
		keys[i] = u.Key
	}
	return "Known upgrades: " + strings.Join(keys, ", ")
}

// recommend_build

// Build goals accepted by recommend_build.
var buildGoals = map[string]bool{
	"street": true, "track": true, "drag": true, "daily": true, "show": true,
}

type RecommendBuildRequest struct {
	CarSlug string `json:"car_slug"`
	Goal    string `json:"goal"`
	Budget  int    `json:"budget,omitempty"`
}

func (r RecommendBuildRequest) Validate() error {
	if strings.TrimSpace(r.CarSlug) == "" {
		return missing("car_slug")
	}
	if !buildGoals[r.Goal] {
		return BadInput("goal must be one of street, track, drag, daily, show")
	}
	if r.Budget < 0 {
		return BadInput("budget must not be negative")
	}
	return nil
}

type RecommendBuildResponse struct {
	CarSlug         string                 `json:"car_slug"`
	Goal            string                 `json:"goal"`
	Budget          int                    `json:"budget,omitempty"`
	Recommendations store.Rows             `json:"recommendations"`
	Procedure       fallback.ProcedureTier `json:"procedure"`
	Access          fallback.AccessTier    `json:"access"`
}

func recommendBuildTool(d *Deps) Tool {
	return define(d, RecommendBuild, CategoryBuilds,
		"Recommend an ordered modification plan for a car and goal within an optional budget.",
		func(ctx context.Context, d *Deps, req RecommendBuildRequest) (RecommendBuildResponse, error) {
			st, access, err := d.reader(ctx, RecommendBuild)
			if err != nil {
				return RecommendBuildResponse{}, err
			}
			args := map[string]any{
				"p_car_slug": req.CarSlug,
				"p_goal":     req.Goal,
				"p_budget":   nil,
			}
			if req.Budget > 0 {
				args["p_budget"] = req.Budget
			}
			rows, tier, err := fallback.CallProcedure(ctx, d.reporter, st, "recommend_build_v2", "recommend_build", args)
			if err != nil {
				return RecommendBuildResponse{}, err
			}
			if rows == nil {
				rows = store.Rows{}
			}
			return RecommendBuildResponse{
				CarSlug:         req.CarSlug,
				Goal:            req.Goal,
				Budget:          req.Budget,
				Recommendations: rows,
				Procedure:       tier,
				Access:          access,
			}, nil
		})
}

// search_events

type SearchEventsRequest struct {
	Region    string `json:"region,omitempty"`
	EventType string `json:"event_type,omitempty"`
	Limit     int    `json:"limit,omitempty"`
}

func (r SearchEventsRequest) Validate() error {
	return checkLimit(r.Limit, 50)
}

type Event struct {
	Name      string `json:"name"`
	EventType string `json:"event_type,omitempty"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date,omitempty"`
	Location  string `json:"location,omitempty"`
	Region    string `json:"region,omitempty"`
	URL       string `json:"url,omitempty"`
}

type SearchEventsResponse struct {
	Events []Event             `json:"events"`
	Count  int                 `json:"count"`
	Access fallback.AccessTier `json:"access"`
}

func searchEventsTool(d *Deps) Tool {
	return define(d, SearchEvents, CategoryEvents,
		"List upcoming track days, autocross, shows and meetups, optionally by region and type.",
		func(ctx context.Context, d *Deps, req SearchEventsRequest) (SearchEventsResponse, error) {
			st, access, err := d.reader(ctx, SearchEvents)
			if err != nil {
				return SearchEventsResponse{}, err
			}
			q := store.Query{
				Table:   "events",
				Columns: []string{"name", "event_type", "start_date", "end_date", "location", "region", "url"},
				Filters: []store.Filter{store.Gte("start_date", d.Now())},
				OrderBy: "start_date",
				Limit:   limit(req.Limit, 10, 50),
			}
			if req.EventType != "" {
				q.Filters = append(q.Filters, store.Eq("event_type", req.EventType))
			}
			if region := strings.TrimSpace(req.Region); region != "" {
				q.Or = []store.Filter{
					store.ILike("region", contains(region)),
					store.ILike("location", contains(region)),
				}
			}
			rows, err := st.Select(ctx, q)
			if err != nil {
				return SearchEventsResponse{}, err
			}
			events, err := store.Decode[Event](rows)
			if err != nil {
				return SearchEventsResponse{}, err
			}
			return SearchEventsResponse{Events: events, Count: len(events), Access: access}, nil
		})
}
