package tools

import (
	"context"
	"strings"
	"time"

	"github.com/revline/algateway/auth"
	"github.com/revline/algateway/cache"
	"github.com/revline/algateway/catalog"
	"github.com/revline/algateway/embedding"
	"github.com/revline/algateway/fallback"
	"github.com/revline/algateway/healthscore"
	"github.com/revline/algateway/observe"
	"github.com/revline/algateway/store"
	"github.com/revline/algateway/websearch"
)

// WebSearcher is the web-search provider used by search_web.
type WebSearcher interface {
	Search(ctx context.Context, query string, numResults int) ([]websearch.Result, error)
}

// Deps are the collaborators handlers use. Leave a field nil (a true nil
// interface, not a typed nil pointer) when it is not configured.
type Deps struct {
	// Privileged reads bypass row-level restrictions.
	Privileged store.Store
	// Restricted reads see only public rows.
	Restricted store.Store

	Embedder *embedding.Client
	Web      WebSearcher
	Catalog  *catalog.Catalog
	Health   *healthscore.Engine

	Logger  observe.Logger
	Metrics observe.Metrics

	// Now is the clock used for date filters and write timestamps.
	Now func() time.Time

	reporter *fallback.Reporter
}

func (d Deps) withDefaults() *Deps {
	if d.Catalog == nil {
		if c, err := catalog.Default(); err == nil {
			d.Catalog = c
		}
	}
	if d.Logger == nil {
		d.Logger = observe.NopLogger()
	}
	if d.Now == nil {
		d.Now = time.Now
	}
	if d.Health == nil {
		d.Health = healthscore.New(healthscore.WithClock(d.Now))
	}
	d.reporter = fallback.NewReporter(d.Logger, d.Metrics)
	return &d
}

// reader picks the store for a read through the access fallback.
func (d *Deps) reader(ctx context.Context, tool Name) (store.Store, fallback.AccessTier, error) {
	st, tier, err := fallback.Access(ctx, d.reporter, string(tool), d.Privileged, d.Restricted)
	if err != nil {
		return nil, tier, ConfigMissing("The car database is not configured.", "")
	}
	return st, tier, nil
}

// privileged returns the privileged store or a config error for tools that
// read per-user rows.
func (d *Deps) privileged() (store.Store, error) {
	if d.Privileged == nil {
		return nil, ConfigMissing("User data requires privileged database access, which is not configured.", "")
	}
	return d.Privileged, nil
}

// caller returns the user a per-user tool acts for: the signed-in user in
// ctx. A user_id argument, when given, must name that same user.
func caller(ctx context.Context, requested string) (string, error) {
	user := auth.IdentityFromContext(ctx).UserID()
	if user == "" {
		return "", ConfigMissing("This tool needs a signed-in user.",
			"Call it with a user token; API keys and anonymous callers have no garage.")
	}
	if requested = strings.TrimSpace(requested); requested != "" && requested != user {
		return "", BadInput("user_id does not match the signed-in user")
	}
	return user, nil
}

// DefaultTTLs is the per-tool cache lifetime table. Tools absent from the
// table are never cached.
func DefaultTTLs() map[Name]time.Duration {
	return map[Name]time.Duration{
		SearchCars:              5 * time.Minute,
		GetCarDetails:           10 * time.Minute,
		GetCarAIContext:         10 * time.Minute,
		CompareCars:             10 * time.Minute,
		SearchEncyclopedia:      10 * time.Minute,
		SearchKnowledge:         5 * time.Minute,
		GetMaintenanceSchedule:  10 * time.Minute,
		GetKnownIssues:          10 * time.Minute,
		SearchCommunityInsights: 5 * time.Minute,
		SearchWeb:               5 * time.Minute,
		GetExpertReviews:        10 * time.Minute,
		SearchParts:             5 * time.Minute,
		GetUpgradeInfo:          10 * time.Minute,
		RecommendBuild:          5 * time.Minute,
		GetTrackLapTimes:        10 * time.Minute,
		GetDynoRuns:             10 * time.Minute,
		SearchEvents:            2 * time.Minute,
		GetUserContext:          2 * time.Minute,
	}
}

// DefaultPolicy returns cache.DefaultPolicy with DefaultTTLs applied.
func DefaultPolicy() cache.Policy {
	p := cache.DefaultPolicy()
	for name, ttl := range DefaultTTLs() {
		p.TTLs[string(name)] = ttl
	}
	return p
}

// limit applies a default and an upper bound to a requested result count.
func limit(n, def, max int) int {
	if n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "of": true,
	"to": true, "in": true, "on": true, "for": true, "with": true, "my": true,
	"is": true, "are": true, "was": true, "be": true, "it": true, "its": true,
	"what": true, "why": true, "how": true, "when": true, "where": true,
	"which": true, "who": true, "does": true, "do": true, "can": true,
	"should": true, "i": true, "me": true, "tell": true, "about": true,
	"explain": true, "work": true, "works": true,
}

const maxKeywords = 5

// keywords extracts the search terms of a natural-language query. When
// every word is a stopword the trimmed query itself is the only term.
func keywords(query string) []string {
	fields := strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '-')
	})
	seen := make(map[string]bool, len(fields))
	var out []string
	for _, f := range fields {
		if len(f) < 2 || stopwords[f] || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
		if len(out) == maxKeywords {
			break
		}
	}
	if len(out) == 0 {
		if q := strings.TrimSpace(query); q != "" {
			out = []string{q}
		}
	}
	return out
}

// contains builds an ILIKE pattern matching s literally, anywhere.
func contains(s string) string {
	return "%" + store.EscapeLike(strings.TrimSpace(s)) + "%"
}

// anyTerm builds OR filters matching any term in any column.
func anyTerm(terms []string, columns ...string) []store.Filter {
	out := make([]store.Filter, 0, len(terms)*len(columns))
	for _, t := range terms {
		for _, c := range columns {
			out = append(out, store.ILike(c, contains(t)))
		}
	}
	return out
}
