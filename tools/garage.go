package tools

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/revline/algateway/catalog"
	"github.com/revline/algateway/fallback"
	"github.com/revline/algateway/healthscore"
	"github.com/revline/algateway/observe"
	"github.com/revline/algateway/store"
)

// get_maintenance_schedule

type MaintenanceResponse struct {
	CarSlug  string              `json:"car_slug"`
	Schedule catalog.Schedule    `json:"schedule"`
	Source   fallback.SourceTier `json:"source"`
}

func getMaintenanceScheduleTool(d *Deps) Tool {
	return define(d, GetMaintenanceSchedule, CategoryGarage,
		"Get the maintenance schedule, oil specification and service intervals for a car.",
		func(ctx context.Context, d *Deps, req CarSlugRequest) (MaintenanceResponse, error) {
			var remote fallback.Step[catalog.Schedule]
			if st, _, err := d.reader(ctx, GetMaintenanceSchedule); err == nil {
				remote = func(ctx context.Context) (catalog.Schedule, error) {
					rows, err := st.Select(ctx, store.Query{
						Table:   "vehicle_maintenance_specs",
						Filters: []store.Filter{store.Eq("car_slug", req.CarSlug)},
						Limit:   1,
					})
					if err != nil {
						return catalog.Schedule{}, err
					}
					s, err := store.First[catalog.Schedule](rows)
					if errors.Is(err, store.ErrNotFound) {
						return catalog.Schedule{}, fallback.ErrNoData
					}
					return s, err
				}
			}

			local := func() (catalog.Schedule, error) {
				if d.Catalog == nil {
					return catalog.Schedule{}, ConfigMissing("No maintenance data is available.", "")
				}
				s, err := d.Catalog.Schedule(req.CarSlug)
				if errors.Is(err, catalog.ErrNotFound) {
					return catalog.Schedule{}, NotFound("No maintenance schedule for "+req.CarSlug, notFoundSuggestion)
				}
				return s, err
			}

			s, source, err := fallback.Source(ctx, d.reporter, string(GetMaintenanceSchedule), remote, local)
			if err != nil {
				return MaintenanceResponse{}, err
			}
			return MaintenanceResponse{CarSlug: req.CarSlug, Schedule: s, Source: source}, nil
		})
}

// get_known_issues

type KnownIssuesRequest struct {
	CarSlug  string `json:"car_slug"`
	Year     int    `json:"year,omitempty"`
	Severity string `json:"severity,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

func (r KnownIssuesRequest) Validate() error {
	if strings.TrimSpace(r.CarSlug) == "" {
		return missing("car_slug")
	}
	if r.Year < 0 {
		return BadInput("year must not be negative")
	}
	if r.Severity != "" && healthscore.Severity(r.Severity).Rank() > 3 {
		return BadInput("severity must be one of critical, high, medium, low")
	}
	return checkLimit(r.Limit, 25)
}

type KnownIssuesResponse struct {
	CarSlug string                   `json:"car_slug"`
	Issues  []healthscore.KnownIssue `json:"issues"`
	Count   int                      `json:"count"`
	Access  fallback.AccessTier      `json:"access"`
}

func getKnownIssuesTool(d *Deps) Tool {
	return define(d, GetKnownIssues, CategoryGarage,
		"Get documented problems for a car, most severe first, optionally for one model year.",
		func(ctx context.Context, d *Deps, req KnownIssuesRequest) (KnownIssuesResponse, error) {
			st, access, err := d.reader(ctx, GetKnownIssues)
			if err != nil {
				return KnownIssuesResponse{}, err
			}
			issues, err := carIssues(ctx, st, req.CarSlug)
			if err != nil {
				return KnownIssuesResponse{}, err
			}

			applicable := healthscore.ApplicableIssues(healthscore.Vehicle{Year: req.Year}, issues)
			out := applicable[:0]
			for _, is := range applicable {
				if req.Severity == "" || string(is.Severity) == req.Severity {
					out = append(out, is)
				}
			}
			if n := limit(req.Limit, healthscore.MaxKnownIssues, 25); len(out) > n {
				out = out[:n]
			}
			return KnownIssuesResponse{CarSlug: req.CarSlug, Issues: out, Count: len(out), Access: access}, nil
		})
}

func carIssues(ctx context.Context, st store.Store, carSlug string) ([]healthscore.KnownIssue, error) {
	rows, err := st.Select(ctx, store.Query{
		Table:   "car_issues",
		Columns: []string{"title", "description", "severity", "fix", "mileage_min", "mileage_max", "year_start", "year_end"},
		Filters: []store.Filter{store.Eq("car_slug", carSlug)},
	})
	if err != nil {
		return nil, err
	}
	return store.Decode[healthscore.KnownIssue](rows)
}

// analyze_vehicle_health

// VehicleRequest names one of the caller's vehicles. UserID is optional and
// is checked against the signed-in user.
type VehicleRequest struct {
	UserID    string `json:"user_id,omitempty"`
	VehicleID string `json:"vehicle_id"`
}

func (r VehicleRequest) Validate() error {
	if strings.TrimSpace(r.VehicleID) == "" {
		return missing("vehicle_id")
	}
	return nil
}

type VehicleHealthResponse struct {
	VehicleID string `json:"vehicle_id"`
	Vehicle   string `json:"vehicle"`
	healthscore.Report
}

var vehicleColumns = []string{
	"car_slug", "make", "model", "year", "mileage",
	"last_oil_change_mileage", "last_oil_change_date", "oil_change_interval_miles",
	"inspection_due_date", "registration_due_date",
	"battery_status", "battery_installed_date",
	"tire_tread_32nds", "brake_fluid_changed_date",
}

func analyzeVehicleHealthTool(d *Deps) Tool {
	return define(d, AnalyzeVehicleHealth, CategoryGarage,
		"Analyze one of the user's vehicles and return prioritized maintenance recommendations and a health score.",
		func(ctx context.Context, d *Deps, req VehicleRequest) (VehicleHealthResponse, error) {
			user, err := caller(ctx, req.UserID)
			if err != nil {
				return VehicleHealthResponse{}, err
			}
			st, err := d.privileged()
			if err != nil {
				return VehicleHealthResponse{}, err
			}

			rows, err := st.Select(ctx, store.Query{
				Table:   "user_vehicles",
				Columns: vehicleColumns,
				Filters: []store.Filter{store.Eq("id", req.VehicleID), store.Eq("user_id", user)},
				Limit:   1,
			})
			if err != nil {
				return VehicleHealthResponse{}, err
			}
			v, err := store.First[healthscore.Vehicle](rows)
			if errors.Is(err, store.ErrNotFound) {
				return VehicleHealthResponse{}, NotFound("Vehicle not found: "+req.VehicleID,
					"Use get_user_context to list the user's vehicles.")
			}
			if err != nil {
				return VehicleHealthResponse{}, err
			}

			var issues []healthscore.KnownIssue
			if v.CarSlug != "" {
				issues, err = carIssues(ctx, st, v.CarSlug)
				if err != nil {
					d.Logger.Warn(ctx, "known issues unavailable; scoring without them",
						observe.F("car_slug", v.CarSlug), observe.F("error", err.Error()))
					issues = nil
				}
			}

			report := d.Health.Analyze(v, issues)

			if err := st.Update(ctx, "user_vehicles",
				map[string]any{"id": req.VehicleID, "user_id": user},
				map[string]any{"last_health_analysis_at": report.AnalyzedAt, "health_score": report.Score},
			); err != nil {
				d.Logger.Warn(ctx, "failed to record health analysis",
					observe.F("vehicle_id", req.VehicleID), observe.F("error", err.Error()))
			}

			return VehicleHealthResponse{
				VehicleID: req.VehicleID,
				Vehicle:   describeVehicle(v),
				Report:    report,
			}, nil
		})
}

func describeVehicle(v healthscore.Vehicle) string {
	var parts []string
	if v.Year > 0 {
		parts = append(parts, fmt.Sprint(v.Year))
	}
	for _, s := range []string{v.Make, v.Model} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return v.CarSlug
	}
	return strings.Join(parts, " ")
}

// get_user_context

// UserRequest optionally names the user; it must be the signed-in one.
type UserRequest struct {
	UserID string `json:"user_id,omitempty"`
}

func (r UserRequest) Validate() error {
	return nil
}

type UserContextResponse struct {
	UserID    string              `json:"user_id"`
	Vehicles  store.Rows          `json:"vehicles"`
	Favorites store.Rows          `json:"favorites"`
	Access    fallback.AccessTier `json:"access"`
}

func getUserContextTool(d *Deps) Tool {
	return define(d, GetUserContext, CategoryGarage,
		"Get the user's garage and favorite cars.",
		func(ctx context.Context, d *Deps, req UserRequest) (UserContextResponse, error) {
			user, err := caller(ctx, req.UserID)
			if err != nil {
				return UserContextResponse{}, err
			}
			st, err := d.privileged()
			if err != nil {
				return UserContextResponse{}, err
			}

			var vehicles, favorites store.Rows
			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				var err error
				vehicles, err = st.Select(gctx, store.Query{
					Table:   "user_vehicles",
					Columns: append([]string{"id", "nickname", "last_health_analysis_at", "health_score"}, vehicleColumns...),
					Filters: []store.Filter{store.Eq("user_id", user)},
					OrderBy: "year",
					Desc:    true,
				})
				return err
			})
			g.Go(func() error {
				var err error
				favorites, err = st.Select(gctx, store.Query{
					Table:   "user_favorites",
					Columns: []string{"car_slug", "created_at"},
					Filters: []store.Filter{store.Eq("user_id", user)},
					OrderBy: "created_at",
					Desc:    true,
					Limit:   50,
				})
				return err
			})
			if err := g.Wait(); err != nil {
				return UserContextResponse{}, err
			}
			if vehicles == nil {
				vehicles = store.Rows{}
			}
			if favorites == nil {
				favorites = store.Rows{}
			}
			return UserContextResponse{
				UserID:    user,
				Vehicles:  vehicles,
				Favorites: favorites,
				Access:    fallback.AccessPrivileged,
			}, nil
		})
}
