package healthscore

// Weights are the score deductions per finding.
type Weights struct {
	Urgent        int `yaml:"urgent" json:"urgent"`
	DueSoon       int `yaml:"due_soon" json:"due_soon"`
	Upcoming      int `yaml:"upcoming" json:"upcoming"`
	CriticalIssue int `yaml:"critical_issue" json:"critical_issue"`
	HighIssue     int `yaml:"high_issue" json:"high_issue"`
	WeakBattery   int `yaml:"weak_battery" json:"weak_battery"`
	DeadBattery   int `yaml:"dead_battery" json:"dead_battery"`
	LowTread      int `yaml:"low_tread" json:"low_tread"`
	WornTread     int `yaml:"worn_tread" json:"worn_tread"`
}

// DefaultWeights returns the standard deductions.
func DefaultWeights() Weights {
	return Weights{
		Urgent:        15,
		DueSoon:       5,
		Upcoming:      0,
		CriticalIssue: 10,
		HighIssue:     5,
		WeakBattery:   10,
		DeadBattery:   20,
		LowTread:      15,
		WornTread:     5,
	}
}

// Normalized returns w with negative deductions raised to zero.
func (w Weights) Normalized() Weights {
	for _, p := range []*int{
		&w.Urgent, &w.DueSoon, &w.Upcoming,
		&w.CriticalIssue, &w.HighIssue,
		&w.WeakBattery, &w.DeadBattery,
		&w.LowTread, &w.WornTread,
	} {
		if *p < 0 {
			*p = 0
		}
	}
	return w
}

func (w Weights) forPriority(p Priority) int {
	switch p {
	case Urgent:
		return w.Urgent
	case DueSoon:
		return w.DueSoon
	case Upcoming:
		return w.Upcoming
	default:
		return 0
	}
}
