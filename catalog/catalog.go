package catalog

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed data/*.yaml
var bundled embed.FS

// ErrNotFound reports that the catalog has no entry for a key.
var ErrNotFound = errors.New("catalog: not found")

// GenericKey is the schedule used when no car-specific schedule matches.
const GenericKey = "generic"

// ServiceItem is one recurring maintenance task.
type ServiceItem struct {
	Item           string `yaml:"item" json:"item"`
	IntervalMiles  int    `yaml:"interval_miles" json:"interval_miles,omitempty"`
	IntervalMonths int    `yaml:"interval_months" json:"interval_months,omitempty"`
	Notes          string `yaml:"notes" json:"notes,omitempty"`
}

// Schedule is a maintenance schedule for one car or family of cars.
//
// Key is either a full car slug or a slug prefix such as "porsche-911".
type Schedule struct {
	Key               string        `yaml:"key" json:"car_slug"`
	Name              string        `yaml:"name" json:"name,omitempty"`
	OilType           string        `yaml:"oil_type" json:"oil_type,omitempty"`
	OilCapacityQuarts float64       `yaml:"oil_capacity_quarts" json:"oil_capacity_quarts,omitempty"`
	Items             []ServiceItem `yaml:"items" json:"items"`
}

// UpgradeInfo explains one modification.
type UpgradeInfo struct {
	Key         string   `yaml:"key" json:"upgrade_key"`
	Name        string   `yaml:"name" json:"name"`
	Category    string   `yaml:"category" json:"category"`
	Description string   `yaml:"description" json:"description"`
	TypicalGain string   `yaml:"typical_gain" json:"typical_gain,omitempty"`
	CostLow     int      `yaml:"cost_low" json:"cost_low,omitempty"`
	CostHigh    int      `yaml:"cost_high" json:"cost_high,omitempty"`
	Difficulty  string   `yaml:"difficulty" json:"difficulty,omitempty"`
	Pros        []string `yaml:"pros" json:"pros,omitempty"`
	Cons        []string `yaml:"cons" json:"cons,omitempty"`
}

// Catalog is an immutable, concurrency-safe view of the bundled data.
type Catalog struct {
	schedules map[string]Schedule
	prefixes  []string // schedule keys, longest first
	upgrades  map[string]UpgradeInfo
}

type scheduleFile struct {
	Schedules []Schedule `yaml:"schedules"`
}

type upgradeFile struct {
	Upgrades []UpgradeInfo `yaml:"upgrades"`
}

var (
	defaultOnce sync.Once
	defaultCat  *Catalog
	defaultErr  error
)

// Default returns the catalog built from the embedded data, loading it once.
func Default() (*Catalog, error) {
	defaultOnce.Do(func() {
		defaultCat, defaultErr = Load()
	})
	return defaultCat, defaultErr
}

// Load parses the embedded data files.
func Load() (*Catalog, error) {
	maint, err := bundled.ReadFile("data/maintenance.yaml")
	if err != nil {
		return nil, fmt.Errorf("catalog: read maintenance: %w", err)
	}
	upg, err := bundled.ReadFile("data/upgrades.yaml")
	if err != nil {
		return nil, fmt.Errorf("catalog: read upgrades: %w", err)
	}
	return Parse(maint, upg)
}

// Parse builds a Catalog from YAML documents shaped like the bundled files.
func Parse(maintenance, upgrades []byte) (*Catalog, error) {
	var sf scheduleFile
	if err := yaml.Unmarshal(maintenance, &sf); err != nil {
		return nil, fmt.Errorf("catalog: parse maintenance: %w", err)
	}
	var uf upgradeFile
	if err := yaml.Unmarshal(upgrades, &uf); err != nil {
		return nil, fmt.Errorf("catalog: parse upgrades: %w", err)
	}

	c := &Catalog{
		schedules: make(map[string]Schedule, len(sf.Schedules)),
		upgrades:  make(map[string]UpgradeInfo, len(uf.Upgrades)),
	}
	for _, s := range sf.Schedules {
		key := strings.ToLower(strings.TrimSpace(s.Key))
		if key == "" {
			return nil, errors.New("catalog: schedule without key")
		}
		if _, dup := c.schedules[key]; dup {
			return nil, fmt.Errorf("catalog: duplicate schedule %q", key)
		}
		s.Key = key
		c.schedules[key] = s
		c.prefixes = append(c.prefixes, key)
	}
	sort.Slice(c.prefixes, func(i, j int) bool {
		if len(c.prefixes[i]) != len(c.prefixes[j]) {
			return len(c.prefixes[i]) > len(c.prefixes[j])
		}
		return c.prefixes[i] < c.prefixes[j]
	})

	for _, u := range uf.Upgrades {
		key := strings.ToLower(strings.TrimSpace(u.Key))
		if key == "" {
			return nil, errors.New("catalog: upgrade without key")
		}
		u.Key = key
		c.upgrades[key] = u
	}
	return c, nil
}

// Schedule returns the most specific schedule for carSlug: an exact key,
// then the longest key that prefixes the slug, then the generic schedule.
// The returned schedule carries carSlug as its key.
func (c *Catalog) Schedule(carSlug string) (Schedule, error) {
	slug := strings.ToLower(strings.TrimSpace(carSlug))
	s, ok := c.schedules[slug]
	if !ok {
		for _, p := range c.prefixes {
			if p != GenericKey && strings.HasPrefix(slug, p+"-") {
				s, ok = c.schedules[p], true
				break
			}
		}
	}
	if !ok {
		s, ok = c.schedules[GenericKey]
	}
	if !ok {
		return Schedule{}, fmt.Errorf("%w: schedule for %q", ErrNotFound, carSlug)
	}
	s.Key = slug
	s.Items = append([]ServiceItem(nil), s.Items...)
	return s, nil
}

// Upgrade returns the upgrade entry for key. Lookups ignore case and treat
// spaces and underscores as hyphens.
func (c *Catalog) Upgrade(key string) (UpgradeInfo, error) {
	u, ok := c.upgrades[NormalizeKey(key)]
	if !ok {
		return UpgradeInfo{}, fmt.Errorf("%w: upgrade %q", ErrNotFound, key)
	}
	return u, nil
}

// Upgrades lists upgrade entries, optionally limited to one category, sorted by key.
func (c *Catalog) Upgrades(category string) []UpgradeInfo {
	category = strings.ToLower(strings.TrimSpace(category))
	out := make([]UpgradeInfo, 0, len(c.upgrades))
	for _, u := range c.upgrades {
		if category == "" || strings.EqualFold(u.Category, category) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// NormalizeKey maps free-form upgrade names like "Cold Air Intake" to catalog keys.
func NormalizeKey(key string) string {
	key = strings.ToLower(strings.TrimSpace(key))
	return strings.Join(strings.FieldsFunc(key, func(r rune) bool {
		return r == ' ' || r == '_' || r == '-'
	}), "-")
}
