package healthscore

import "time"

// Priority orders recommendations. Lower values are more urgent.
type Priority int

const (
	Urgent Priority = iota
	DueSoon
	Upcoming
	Info
)

var priorityNames = [...]string{"URGENT", "DUE_SOON", "UPCOMING", "INFO"}

// String returns the wire name of p.
func (p Priority) String() string {
	if p < Urgent || p > Info {
		return "INFO"
	}
	return priorityNames[p]
}

// MarshalText encodes p as its wire name.
func (p Priority) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}

// UnmarshalText decodes a wire name. Unknown names decode as Info.
func (p *Priority) UnmarshalText(text []byte) error {
	for i, name := range priorityNames {
		if name == string(text) {
			*p = Priority(i)
			return nil
		}
	}
	*p = Info
	return nil
}

// Recommendation categories.
const (
	CategoryOil          = "oil"
	CategoryInspection   = "inspection"
	CategoryRegistration = "registration"
	CategoryBattery      = "battery"
	CategoryTires        = "tires"
	CategoryBrakes       = "brakes"
	CategoryKnownIssues  = "known_issues"
)

// Recommendation is one actionable finding.
type Recommendation struct {
	Priority    Priority `json:"priority"`
	Category    string   `json:"category"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	OverdueBy   *string  `json:"overdue_by"`
}

// Battery states.
const (
	BatteryGood = "good"
	BatteryWeak = "weak"
	BatteryDead = "dead"
)

// Vehicle is the state the rules inspect. Nil or zero fields are unknown.
// JSON tags follow the user_vehicles columns.
type Vehicle struct {
	ID      string `json:"id,omitempty"`
	CarSlug string `json:"car_slug,omitempty"`
	Make    string `json:"make,omitempty"`
	Model   string `json:"model,omitempty"`
	Year    int    `json:"year,omitempty"`

	Mileage *int `json:"mileage,omitempty"`

	LastOilChangeMileage *int       `json:"last_oil_change_mileage,omitempty"`
	LastOilChangeDate    *time.Time `json:"last_oil_change_date,omitempty"`
	OilIntervalMiles     int        `json:"oil_change_interval_miles,omitempty"`

	InspectionDue   *time.Time `json:"inspection_due_date,omitempty"`
	RegistrationDue *time.Time `json:"registration_due_date,omitempty"`

	BatteryStatus    string     `json:"battery_status,omitempty"`
	BatteryInstalled *time.Time `json:"battery_installed_date,omitempty"`

	TireTread32nds *int `json:"tire_tread_32nds,omitempty"`

	BrakeFluidChanged *time.Time `json:"brake_fluid_changed_date,omitempty"`
}

// Severity ranks a known issue.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Rank orders severities critical first. Unknown severities rank last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	default:
		return 4
	}
}

// KnownIssue is a documented problem for a model. Nil bounds are open.
// JSON tags follow the car_issues columns.
type KnownIssue struct {
	Title       string   `json:"title"`
	Description string   `json:"description,omitempty"`
	Severity    Severity `json:"severity"`
	Fix         string   `json:"fix,omitempty"`
	MileageMin  *int     `json:"mileage_min,omitempty"`
	MileageMax  *int     `json:"mileage_max,omitempty"`
	YearStart   *int     `json:"year_start,omitempty"`
	YearEnd     *int     `json:"year_end,omitempty"`
}

// Report is the outcome of one analysis.
type Report struct {
	Score            int              `json:"health_score"`
	Recommendations  []Recommendation `json:"recommendations"`
	KnownIssues      []KnownIssue     `json:"known_issues"`
	KnownIssuesTotal int              `json:"known_issues_total"`
	AnalyzedAt       time.Time        `json:"analyzed_at"`
}
