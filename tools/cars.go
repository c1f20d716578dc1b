package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/revline/algateway/fallback"
	"github.com/revline/algateway/store"
)

// Car is a row of the cars table.
type Car struct {
	Slug         string  `json:"slug"`
	Name         string  `json:"name"`
	Make         string  `json:"make,omitempty"`
	Model        string  `json:"model,omitempty"`
	Years        string  `json:"years,omitempty"`
	Tier         string  `json:"tier,omitempty"`
	Engine       string  `json:"engine,omitempty"`
	HP           int     `json:"hp,omitempty"`
	Torque       int     `json:"torque,omitempty"`
	Drivetrain   string  `json:"drivetrain,omitempty"`
	Transmission string  `json:"transmission,omitempty"`
	ZeroToSixty  float64 `json:"zero_to_sixty,omitempty"`
	CurbWeight   int     `json:"curb_weight,omitempty"`
	PriceRange   string  `json:"price_range,omitempty"`
	Description  string  `json:"description,omitempty"`
}

var carSummaryColumns = []string{"slug", "name", "make", "model", "years", "tier", "hp", "price_range"}

const notFoundSuggestion = "Use search_cars to find the correct car slug."

func carNotFound(slug string) *Error {
	return NotFound("Car not found: "+slug, notFoundSuggestion)
}

func fetchCar(ctx context.Context, st store.Store, slug string) (Car, error) {
	rows, err := st.Select(ctx, store.Query{
		Table:   "cars",
		Filters: []store.Filter{store.Eq("slug", slug)},
		Limit:   1,
	})
	if err != nil {
		return Car{}, err
	}
	car, err := store.First[Car](rows)
	if errors.Is(err, store.ErrNotFound) {
		return Car{}, carNotFound(slug)
	}
	return car, err
}

// search_cars

type SearchCarsRequest struct {
	Query string `json:"query,omitempty"`
	Make  string `json:"make,omitempty"`
	Tier  string `json:"tier,omitempty"`
	MinHP int    `json:"min_hp,omitempty"`
	Limit int    `json:"limit,omitempty"`
}

func (r SearchCarsRequest) Validate() error {
	if strings.TrimSpace(r.Query) == "" && r.Make == "" && r.Tier == "" {
		return missing("query, make or tier")
	}
	if r.MinHP < 0 {
		return BadInput("min_hp must not be negative")
	}
	return checkLimit(r.Limit, 25)
}

type SearchCarsResponse struct {
	Results []Car               `json:"results"`
	Count   int                 `json:"count"`
	Access  fallback.AccessTier `json:"access"`
}

func searchCarsTool(d *Deps) Tool {
	return define(d, SearchCars, CategoryCars,
		"Search the car database by name, make or model with optional make, tier and power filters.",
		func(ctx context.Context, d *Deps, req SearchCarsRequest) (SearchCarsResponse, error) {
			st, access, err := d.reader(ctx, SearchCars)
			if err != nil {
				return SearchCarsResponse{}, err
			}

			q := store.Query{
				Table:   "cars",
				Columns: carSummaryColumns,
				OrderBy: "name",
				Limit:   limit(req.Limit, 10, 25),
			}
			if query := strings.TrimSpace(req.Query); query != "" {
				q.Or = []store.Filter{
					store.ILike("name", contains(query)),
					store.ILike("make", contains(query)),
					store.ILike("model", contains(query)),
				}
			}
			if req.Make != "" {
				q.Filters = append(q.Filters, store.ILike("make", strings.TrimSpace(req.Make)))
			}
			if req.Tier != "" {
				q.Filters = append(q.Filters, store.Eq("tier", req.Tier))
			}
			if req.MinHP > 0 {
				q.Filters = append(q.Filters, store.Gte("hp", req.MinHP))
			}

			rows, err := st.Select(ctx, q)
			if err != nil {
				return SearchCarsResponse{}, err
			}
			cars, err := store.Decode[Car](rows)
			if err != nil {
				return SearchCarsResponse{}, err
			}
			return SearchCarsResponse{Results: cars, Count: len(cars), Access: access}, nil
		})
}

// get_car_details

type CarSlugRequest struct {
	CarSlug string `json:"car_slug"`
}

func (r CarSlugRequest) Validate() error {
	if strings.TrimSpace(r.CarSlug) == "" {
		return missing("car_slug")
	}
	return nil
}

type CarDetailsResponse struct {
	Car    Car                 `json:"car"`
	Access fallback.AccessTier `json:"access"`
}

func getCarDetailsTool(d *Deps) Tool {
	return define(d, GetCarDetails, CategoryCars,
		"Get full specifications for one car by slug.",
		func(ctx context.Context, d *Deps, req CarSlugRequest) (CarDetailsResponse, error) {
			st, access, err := d.reader(ctx, GetCarDetails)
			if err != nil {
				return CarDetailsResponse{}, err
			}
			car, err := fetchCar(ctx, st, req.CarSlug)
			if err != nil {
				return CarDetailsResponse{}, err
			}
			return CarDetailsResponse{Car: car, Access: access}, nil
		})
}

// get_car_ai_context

type CarAIContextResponse struct {
	CarSlug   string                 `json:"car_slug"`
	Context   store.Row              `json:"context"`
	Procedure fallback.ProcedureTier `json:"procedure"`
	Access    fallback.AccessTier    `json:"access"`
}

func getCarAIContextTool(d *Deps) Tool {
	return define(d, GetCarAIContext, CategoryCars,
		"Get the consolidated assistant context for a car: specs, issues, reviews and ownership notes.",
		func(ctx context.Context, d *Deps, req CarSlugRequest) (CarAIContextResponse, error) {
			st, access, err := d.reader(ctx, GetCarAIContext)
			if err != nil {
				return CarAIContextResponse{}, err
			}
			rows, tier, err := fallback.CallProcedure(ctx, d.reporter, st,
				"get_car_ai_context_v2", "get_car_ai_context",
				map[string]any{"p_car_slug": req.CarSlug})
			if err != nil {
				return CarAIContextResponse{}, err
			}
			row := unwrapJSONRow(rows)
			if row == nil {
				return CarAIContextResponse{}, carNotFound(req.CarSlug)
			}
			return CarAIContextResponse{CarSlug: req.CarSlug, Context: row, Procedure: tier, Access: access}, nil
		})
}

// unwrapJSONRow returns the object a JSON-returning procedure produced. Such
// procedures yield one row with one column holding the object.
func unwrapJSONRow(rows store.Rows) store.Row {
	if len(rows) == 0 {
		return nil
	}
	row := rows[0]
	if len(row) == 1 {
		for _, v := range row {
			if obj, ok := v.(map[string]any); ok {
				return obj
			}
			if v == nil {
				return nil
			}
		}
	}
	return row
}

// compare_cars

type CompareCarsRequest struct {
	CarSlugs []string `json:"car_slugs"`
}

func (r CompareCarsRequest) Validate() error {
	if len(r.CarSlugs) < 2 || len(r.CarSlugs) > 4 {
		return BadInput("car_slugs must list between 2 and 4 cars")
	}
	seen := make(map[string]bool, len(r.CarSlugs))
	for _, s := range r.CarSlugs {
		if strings.TrimSpace(s) == "" {
			return BadInput("car_slugs must not contain empty slugs")
		}
		if seen[s] {
			return BadInput("car_slugs lists %q twice", s)
		}
		seen[s] = true
	}
	return nil
}

type CompareCarsResponse struct {
	Cars       []Car               `json:"cars"`
	Highlights map[string]string   `json:"highlights"`
	Access     fallback.AccessTier `json:"access"`
}

func compareCarsTool(d *Deps) Tool {
	return define(d, CompareCars, CategoryCars,
		"Compare two to four cars side by side.",
		func(ctx context.Context, d *Deps, req CompareCarsRequest) (CompareCarsResponse, error) {
			st, access, err := d.reader(ctx, CompareCars)
			if err != nil {
				return CompareCarsResponse{}, err
			}

			cars := make([]Car, len(req.CarSlugs))
			g, gctx := errgroup.WithContext(ctx)
			for i, slug := range req.CarSlugs {
				g.Go(func() error {
					car, err := fetchCar(gctx, st, slug)
					if err != nil {
						return err
					}
					cars[i] = car
					return nil
				})
			}
			if err := g.Wait(); err != nil {
				return CompareCarsResponse{}, err
			}
			return CompareCarsResponse{Cars: cars, Highlights: highlights(cars), Access: access}, nil
		})
}

// highlights names the leader of each comparable spec. Unknown values never win.
func highlights(cars []Car) map[string]string {
	out := map[string]string{}
	best := func(key string, better func(a, b Car) bool, known func(Car) bool) {
		var winner *Car
		for i := range cars {
			if !known(cars[i]) {
				continue
			}
			if winner == nil || better(cars[i], *winner) {
				winner = &cars[i]
			}
		}
		if winner != nil {
			out[key] = winner.Slug
		}
	}
	best("most_power",
		func(a, b Car) bool { return a.HP > b.HP },
		func(c Car) bool { return c.HP > 0 })
	best("most_torque",
		func(a, b Car) bool { return a.Torque > b.Torque },
		func(c Car) bool { return c.Torque > 0 })
	best("quickest",
		func(a, b Car) bool { return a.ZeroToSixty < b.ZeroToSixty },
		func(c Car) bool { return c.ZeroToSixty > 0 })
	best("lightest",
		func(a, b Car) bool { return a.CurbWeight < b.CurbWeight },
		func(c Car) bool { return c.CurbWeight > 0 })
	return out
}

// get_expert_reviews

type CarListRequest struct {
	CarSlug string `json:"car_slug"`
	Limit   int    `json:"limit,omitempty"`
}

func (r CarListRequest) Validate() error {
	if strings.TrimSpace(r.CarSlug) == "" {
		return missing("car_slug")
	}
	return checkLimit(r.Limit, 25)
}

type Review struct {
	Title       string  `json:"title"`
	ChannelName string  `json:"channel_name,omitempty"`
	URL         string  `json:"url,omitempty"`
	PublishedAt string  `json:"published_at,omitempty"`
	Summary     string  `json:"summary,omitempty"`
	Rating      float64 `json:"rating,omitempty"`
}

type ExpertReviewsResponse struct {
	CarSlug string              `json:"car_slug"`
	Reviews []Review            `json:"reviews"`
	Access  fallback.AccessTier `json:"access"`
}

func getExpertReviewsTool(d *Deps) Tool {
	return define(d, GetExpertReviews, CategoryCars,
		"Get expert video reviews for a car, newest first.",
		func(ctx context.Context, d *Deps, req CarListRequest) (ExpertReviewsResponse, error) {
			reviews, access, err := listByCar[Review](ctx, d, GetExpertReviews, store.Query{
				Table:   "youtube_videos",
				Columns: []string{"title", "channel_name", "url", "published_at", "summary", "rating"},
				OrderBy: "published_at",
				Desc:    true,
				Limit:   limit(req.Limit, 5, 25),
			}, req.CarSlug)
			if err != nil {
				return ExpertReviewsResponse{}, err
			}
			return ExpertReviewsResponse{CarSlug: req.CarSlug, Reviews: reviews, Access: access}, nil
		})
}

// get_track_lap_times

type LapTimesRequest struct {
	CarSlug string `json:"car_slug"`
	Track   string `json:"track,omitempty"`
	Limit   int    `json:"limit,omitempty"`
}

func (r LapTimesRequest) Validate() error {
	return CarListRequest{CarSlug: r.CarSlug, Limit: r.Limit}.Validate()
}

type LapTime struct {
	TrackName      string  `json:"track_name"`
	LapTimeSeconds float64 `json:"lap_time_seconds"`
	Display        string  `json:"lap_time"`
	Driver         string  `json:"driver,omitempty"`
	Conditions     string  `json:"conditions,omitempty"`
	Tires          string  `json:"tires,omitempty"`
	Source         string  `json:"source,omitempty"`
}

type LapTimesResponse struct {
	CarSlug  string              `json:"car_slug"`
	LapTimes []LapTime           `json:"lap_times"`
	Access   fallback.AccessTier `json:"access"`
}

func getTrackLapTimesTool(d *Deps) Tool {
	return define(d, GetTrackLapTimes, CategoryCars,
		"Get recorded lap times for a car, fastest first, optionally at one track.",
		func(ctx context.Context, d *Deps, req LapTimesRequest) (LapTimesResponse, error) {
			q := store.Query{
				Table:   "car_track_lap_times",
				Columns: []string{"track_name", "lap_time_seconds", "driver", "conditions", "tires", "source"},
				OrderBy: "lap_time_seconds",
				Limit:   limit(req.Limit, 10, 25),
			}
			if req.Track != "" {
				q.Filters = append(q.Filters, store.ILike("track_name", contains(req.Track)))
			}
			laps, access, err := listByCar[LapTime](ctx, d, GetTrackLapTimes, q, req.CarSlug)
			if err != nil {
				return LapTimesResponse{}, err
			}
			for i := range laps {
				laps[i].Display = formatLap(laps[i].LapTimeSeconds)
			}
			return LapTimesResponse{CarSlug: req.CarSlug, LapTimes: laps, Access: access}, nil
		})
}

// formatLap renders seconds as m:ss.fff.
func formatLap(seconds float64) string {
	if seconds <= 0 {
		return ""
	}
	millis := int64(seconds*1000 + 0.5)
	return fmt.Sprintf("%d:%02d.%03d", millis/60000, millis/1000%60, millis%1000)
}

// get_dyno_runs

type DynoRun struct {
	PeakWHP float64  `json:"peak_whp"`
	PeakWTQ float64  `json:"peak_wtq,omitempty"`
	Dyno    string   `json:"dyno_type,omitempty"`
	Mods    []string `json:"modifications,omitempty"`
	Fuel    string   `json:"fuel,omitempty"`
	Notes   string   `json:"notes,omitempty"`
}

type DynoRunsResponse struct {
	CarSlug string              `json:"car_slug"`
	Runs    []DynoRun           `json:"runs"`
	Access  fallback.AccessTier `json:"access"`
}

func getDynoRunsTool(d *Deps) Tool {
	return define(d, GetDynoRuns, CategoryCars,
		"Get dyno results for a car, strongest first.",
		func(ctx context.Context, d *Deps, req CarListRequest) (DynoRunsResponse, error) {
			runs, access, err := listByCar[DynoRun](ctx, d, GetDynoRuns, store.Query{
				Table:   "car_dyno_runs",
				Columns: []string{"peak_whp", "peak_wtq", "dyno_type", "modifications", "fuel", "notes"},
				OrderBy: "peak_whp",
				Desc:    true,
				Limit:   limit(req.Limit, 10, 25),
			}, req.CarSlug)
			if err != nil {
				return DynoRunsResponse{}, err
			}
			return DynoRunsResponse{CarSlug: req.CarSlug, Runs: runs, Access: access}, nil
		})
}

// listByCar runs q restricted to one car and decodes the rows.
func listByCar[T any](ctx context.Context, d *Deps, tool Name, q store.Query, carSlug string) ([]T, fallback.AccessTier, error) {
	st, access, err := d.reader(ctx, tool)
	if err != nil {
		return nil, access, err
	}
	q.Filters = append([]store.Filter{store.Eq("car_slug", carSlug)}, q.Filters...)
	rows, err := st.Select(ctx, q)
	if err != nil {
		return nil, access, err
	}
	out, err := store.Decode[T](rows)
	return out, access, err
}
