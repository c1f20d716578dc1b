package healthscore

import (
	"fmt"
	"time"
)

const (
	oilDueSoonMiles  = 500
	oilUpcomingMiles = 1500
	oilMaxMonths     = 12
	oilDueSoonMonths = 10

	dueSoonDays  = 30
	upcomingDays = 60

	batteryAgingYears = 5

	brakeFluidMonths         = 24
	brakeFluidUpcomingMonths = 21
)

func oilRule(v Vehicle, _ []KnownIssue, now time.Time) *Recommendation {
	if v.Mileage != nil && v.LastOilChangeMileage != nil {
		since := *v.Mileage - *v.LastOilChangeMileage
		if since < 0 {
			return nil
		}
		interval := v.OilIntervalMiles
		if interval <= 0 {
			interval = DefaultOilIntervalMiles
		}
		remaining := interval - since
		switch {
		case remaining <= 0:
			return &Recommendation{
				Priority:    Urgent,
				Category:    CategoryOil,
				Title:       "Oil change overdue",
				Description: fmt.Sprintf("%d miles since the last oil change against a %d mile interval.", since, interval),
				OverdueBy:   overdue("%s", plural(-remaining, "mile")),
			}
		case remaining <= oilDueSoonMiles:
			return &Recommendation{
				Priority:    DueSoon,
				Category:    CategoryOil,
				Title:       "Oil change due soon",
				Description: fmt.Sprintf("Due in %s.", plural(remaining, "mile")),
			}
		case remaining <= oilUpcomingMiles:
			return &Recommendation{
				Priority:    Upcoming,
				Category:    CategoryOil,
				Title:       "Oil change upcoming",
				Description: fmt.Sprintf("Due in %s.", plural(remaining, "mile")),
			}
		}
		return nil
	}

	if v.LastOilChangeDate == nil {
		return nil
	}
	months := monthsBetween(*v.LastOilChangeDate, now)
	switch {
	case months >= oilMaxMonths:
		return &Recommendation{
			Priority:    Urgent,
			Category:    CategoryOil,
			Title:       "Oil change overdue",
			Description: fmt.Sprintf("The oil is %s old. Oil degrades with time even at low mileage.", plural(months, "month")),
			OverdueBy:   overdue("%s", plural(months-oilMaxMonths, "month")),
		}
	case months >= oilDueSoonMonths:
		return &Recommendation{
			Priority:    DueSoon,
			Category:    CategoryOil,
			Title:       "Oil change due soon",
			Description: fmt.Sprintf("The oil is %s old.", plural(months, "month")),
		}
	}
	return nil
}

func inspectionRule(v Vehicle, _ []KnownIssue, now time.Time) *Recommendation {
	return deadlineRule(v.InspectionDue, now, CategoryInspection, "Inspection")
}

func registrationRule(v Vehicle, _ []KnownIssue, now time.Time) *Recommendation {
	return deadlineRule(v.RegistrationDue, now, CategoryRegistration, "Registration")
}

func deadlineRule(due *time.Time, now time.Time, category, label string) *Recommendation {
	if due == nil {
		return nil
	}
	days := daysBetween(now, *due)
	switch {
	case days < 0:
		return &Recommendation{
			Priority:    Urgent,
			Category:    category,
			Title:       label + " overdue",
			Description: fmt.Sprintf("%s was due on %s.", label, due.Format(time.DateOnly)),
			OverdueBy:   overdue("%s", plural(-days, "day")),
		}
	case days <= dueSoonDays:
		return &Recommendation{
			Priority:    DueSoon,
			Category:    category,
			Title:       label + " due soon",
			Description: fmt.Sprintf("%s is due in %s.", label, plural(days, "day")),
		}
	case days <= upcomingDays:
		return &Recommendation{
			Priority:    Upcoming,
			Category:    category,
			Title:       label + " upcoming",
			Description: fmt.Sprintf("%s is due on %s.", label, due.Format(time.DateOnly)),
		}
	}
	return nil
}

func batteryRule(v Vehicle, _ []KnownIssue, now time.Time) *Recommendation {
	switch v.BatteryStatus {
	case BatteryDead:
		return &Recommendation{
			Priority:    Urgent,
			Category:    CategoryBattery,
			Title:       "Replace battery",
			Description: "The battery failed its last test and will not reliably start the car.",
		}
	case BatteryWeak:
		return &Recommendation{
			Priority:    DueSoon,
			Category:    CategoryBattery,
			Title:       "Battery is weak",
			Description: "Plan a replacement before cold weather or long storage.",
		}
	}
	if v.BatteryInstalled == nil {
		return nil
	}
	if years := monthsBetween(*v.BatteryInstalled, now) / 12; years >= batteryAgingYears {
		return &Recommendation{
			Priority:    Upcoming,
			Category:    CategoryBattery,
			Title:       "Battery nearing end of life",
			Description: fmt.Sprintf("The battery is %s old. Have it load tested.", plural(years, "year")),
		}
	}
	return nil
}

func tireRule(v Vehicle, _ []KnownIssue, _ time.Time) *Recommendation {
	if v.TireTread32nds == nil {
		return nil
	}
	tread := *v.TireTread32nds
	switch {
	case tread <= LowTread32nds:
		return &Recommendation{
			Priority:    Urgent,
			Category:    CategoryTires,
			Title:       "Replace tires",
			Description: fmt.Sprintf("Tread depth is %d/32\", at or below the legal minimum of 2/32\".", tread),
		}
	case tread <= WornTread32nds:
		return &Recommendation{
			Priority:    DueSoon,
			Category:    CategoryTires,
			Title:       "Tires are worn",
			Description: fmt.Sprintf("Tread depth is %d/32\". Wet grip drops sharply below 4/32\".", tread),
		}
	}
	return nil
}

func brakeFluidRule(v Vehicle, _ []KnownIssue, now time.Time) *Recommendation {
	if v.BrakeFluidChanged == nil {
		return nil
	}
	months := monthsBetween(*v.BrakeFluidChanged, now)
	switch {
	case months >= brakeFluidMonths:
		rec := &Recommendation{
			Priority:    DueSoon,
			Category:    CategoryBrakes,
			Title:       "Brake fluid flush due",
			Description: fmt.Sprintf("The brake fluid is %s old. It absorbs moisture and loses boiling point over time.", plural(months, "month")),
		}
		if months > brakeFluidMonths {
			rec.OverdueBy = overdue("%s", plural(months-brakeFluidMonths, "month"))
		}
		return rec
	case months >= brakeFluidUpcomingMonths:
		return &Recommendation{
			Priority:    Upcoming,
			Category:    CategoryBrakes,
			Title:       "Brake fluid flush upcoming",
			Description: fmt.Sprintf("Due in %s.", plural(brakeFluidMonths-months, "month")),
		}
	}
	return nil
}

// knownIssueRule expects issues already filtered and sorted by ApplicableIssues.
func knownIssueRule(_ Vehicle, issues []KnownIssue, _ time.Time) *Recommendation {
	if len(issues) == 0 {
		return nil
	}
	if issues[0].Severity == SeverityCritical {
		return &Recommendation{
			Priority:    DueSoon,
			Category:    CategoryKnownIssues,
			Title:       "Check critical known issues",
			Description: fmt.Sprintf("%s apply to this vehicle, starting with: %s.", plural(len(issues), "known issue"), issues[0].Title),
		}
	}
	return &Recommendation{
		Priority:    Info,
		Category:    CategoryKnownIssues,
		Title:       "Known issues for this model",
		Description: fmt.Sprintf("%s apply to this vehicle's year and mileage.", plural(len(issues), "known issue")),
	}
}

// daysBetween counts calendar days from a to b in UTC. It is negative when b is before a.
func daysBetween(a, b time.Time) int {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	da := time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC)
	db := time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC)
	return int(db.Sub(da).Hours() / 24)
}

// monthsBetween counts whole months elapsed from a to b, or 0 when b is before a.
func monthsBetween(a, b time.Time) int {
	a, b = a.UTC(), b.UTC()
	if b.Before(a) {
		return 0
	}
	months := (b.Year()-a.Year())*12 + int(b.Month()-a.Month())
	if b.Day() < a.Day() {
		months--
	}
	if months < 0 {
		return 0
	}
	return months
}

func plural(n int, unit string) string {
	if n == 1 {
		return "1 " + unit
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
