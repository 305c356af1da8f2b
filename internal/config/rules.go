package config

import (
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/resolvehub/complaint-engine/internal/domain"
)

// AnyPriority matches every priority in SLA and scoring tables.
const AnyPriority = "*"

// Rules holds the declarative engine tables: routing, SLA durations,
// escalation thresholds and scoring.
type Rules struct {
	Departments map[string]domain.Department `yaml:"departments"`
	SLA         SLARules                     `yaml:"sla"`
	Escalation  EscalationRules              `yaml:"escalation"`
	Scoring     ScoringRules                 `yaml:"scoring"`
}

// SLARules maps category and priority onto a resolution window.
type SLARules struct {
	Default   Duration          `yaml:"default"`
	Durations []SLADurationRule `yaml:"durations"`
}

// SLADurationRule is one row of the SLA table.
type SLADurationRule struct {
	Category string   `yaml:"category"`
	Priority string   `yaml:"priority"`
	Duration Duration `yaml:"duration"`
}

// EscalationRules configures the escalation thresholds and authority tiers.
type EscalationRules struct {
	WarningWindow Duration         `yaml:"warning_window"`
	CriticalAfter Duration         `yaml:"critical_after"`
	FinalAfter    Duration         `yaml:"final_after"`
	Tiers         []EscalationTier `yaml:"tiers"`
}

// EscalationTier names who a complaint is routed to when it reaches Level.
type EscalationTier struct {
	Level          domain.EscalationLevel `yaml:"level"`
	Role           domain.StaffRole       `yaml:"role"`
	SameDepartment bool                   `yaml:"same_department"`
}

// ScoringRules configures points and badges.
type ScoringRules struct {
	DefaultPoints int            `yaml:"default_points"`
	Points        []PointsRule   `yaml:"points"`
	SpeedBonus    int            `yaml:"speed_bonus"`
	BreachPenalty int            `yaml:"breach_penalty"`
	Badges        []domain.Badge `yaml:"badges"`
}

// PointsRule is one row of the base points table.
type PointsRule struct {
	Category string `yaml:"category"`
	Priority string `yaml:"priority"`
	Points   int    `yaml:"points"`
}

// Duration decodes Go duration strings ("48h", "90m") from YAML.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: %w", value.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// DefaultRules returns the built-in tables used when no rules file is configured.
func DefaultRules() Rules {
	return Rules{
		Departments: map[string]domain.Department{
			"structural": domain.DepartmentStructural,
			"plumbing":   domain.DepartmentPlumbing,
			"sanitation": domain.DepartmentSanitation,
			"electrical": domain.DepartmentElectrical,
		},
		SLA: SLARules{
			Default: Duration(72 * time.Hour),
			Durations: []SLADurationRule{
				{Category: "structural", Priority: AnyPriority, Duration: Duration(48 * time.Hour)},
				{Category: "plumbing", Priority: AnyPriority, Duration: Duration(24 * time.Hour)},
				{Category: "sanitation", Priority: AnyPriority, Duration: Duration(24 * time.Hour)},
				{Category: "electrical", Priority: AnyPriority, Duration: Duration(24 * time.Hour)},
				{Category: "electrical", Priority: string(domain.ComplaintPriorityUrgent), Duration: Duration(6 * time.Hour)},
			},
		},
		Escalation: EscalationRules{
			WarningWindow: Duration(6 * time.Hour),
			CriticalAfter: Duration(2 * time.Hour),
			FinalAfter:    Duration(24 * time.Hour),
			Tiers: []EscalationTier{
				{Level: domain.EscalationWarning, Role: domain.StaffRoleStaff, SameDepartment: true},
				{Level: domain.EscalationCritical, Role: domain.StaffRoleAdmin, SameDepartment: true},
				{Level: domain.EscalationFinalEscalation, Role: domain.StaffRoleAdmin, SameDepartment: false},
			},
		},
		Scoring: ScoringRules{
			DefaultPoints: 8,
			SpeedBonus:    2,
			BreachPenalty: 4,
			Badges: []domain.Badge{
				{Name: "Bronze", MinPoints: 10, Icon: "medal-bronze", Color: "#cd7f32"},
				{Name: "Silver", MinPoints: 20, Icon: "medal-silver", Color: "#c0c0c0"},
				{Name: "Gold", MinPoints: 30, Icon: "medal-gold", Color: "#ffd700"},
				{Name: "Platinum", MinPoints: 100, Icon: "trophy", Color: "#e5e4e2"},
			},
		},
	}
}

// LoadRules reads the rules file at path. An empty path yields DefaultRules.
func LoadRules(path string) (*Rules, error) {
	if strings.TrimSpace(path) == "" {
		rules := DefaultRules()
		return &rules, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rules file: %w", err)
	}
	return ParseRules(content)
}

// rulesDocument mirrors Rules with pointer scalars so an explicit zero in the file
// is told apart from an omitted key.
type rulesDocument struct {
	Departments map[string]domain.Department `yaml:"departments"`
	SLA         struct {
		Default   *Duration         `yaml:"default"`
		Durations []SLADurationRule `yaml:"durations"`
	} `yaml:"sla"`
	Escalation struct {
		WarningWindow *Duration        `yaml:"warning_window"`
		CriticalAfter *Duration        `yaml:"critical_after"`
		FinalAfter    *Duration        `yaml:"final_after"`
		Tiers         []EscalationTier `yaml:"tiers"`
	} `yaml:"escalation"`
	Scoring struct {
		DefaultPoints *int           `yaml:"default_points"`
		Points        []PointsRule   `yaml:"points"`
		SpeedBonus    *int           `yaml:"speed_bonus"`
		BreachPenalty *int           `yaml:"breach_penalty"`
		Badges        []domain.Badge `yaml:"badges"`
	} `yaml:"scoring"`
}

// ParseRules decodes YAML rules on top of the defaults and validates them.
// Keys omitted from the document keep their default values; explicit zeros apply.
func ParseRules(content []byte) (*Rules, error) {
	rules := DefaultRules()
	var doc rulesDocument
	if err := yaml.Unmarshal(content, &doc); err != nil {
		return nil, fmt.Errorf("decode rules: %w", err)
	}
	if doc.Departments != nil {
		rules.Departments = doc.Departments
	}
	overlay(&rules.SLA.Default, doc.SLA.Default)
	if doc.SLA.Durations != nil {
		rules.SLA.Durations = doc.SLA.Durations
	}
	overlay(&rules.Escalation.WarningWindow, doc.Escalation.WarningWindow)
	overlay(&rules.Escalation.CriticalAfter, doc.Escalation.CriticalAfter)
	overlay(&rules.Escalation.FinalAfter, doc.Escalation.FinalAfter)
	if doc.Escalation.Tiers != nil {
		rules.Escalation.Tiers = doc.Escalation.Tiers
	}
	overlay(&rules.Scoring.DefaultPoints, doc.Scoring.DefaultPoints)
	if doc.Scoring.Points != nil {
		rules.Scoring.Points = doc.Scoring.Points
	}
	overlay(&rules.Scoring.SpeedBonus, doc.Scoring.SpeedBonus)
	overlay(&rules.Scoring.BreachPenalty, doc.Scoring.BreachPenalty)
	if doc.Scoring.Badges != nil {
		rules.Scoring.Badges = doc.Scoring.Badges
	}
	rules.normalize()
	if err := rules.Validate(); err != nil {
		return nil, err
	}
	return &rules, nil
}

func overlay[T any](dst *T, src *T) {
	if src != nil {
		*dst = *src
	}
}

func (r *Rules) normalize() {
	departments := make(map[string]domain.Department, len(r.Departments))
	for category, dept := range r.Departments {
		departments[NormalizeCategory(category)] = dept
	}
	r.Departments = departments
	for i := range r.SLA.Durations {
		r.SLA.Durations[i].Category = NormalizeCategory(r.SLA.Durations[i].Category)
		r.SLA.Durations[i].Priority = normalizePriority(r.SLA.Durations[i].Priority)
	}
	for i := range r.Scoring.Points {
		r.Scoring.Points[i].Category = NormalizeCategory(r.Scoring.Points[i].Category)
		r.Scoring.Points[i].Priority = normalizePriority(r.Scoring.Points[i].Priority)
	}
	sort.SliceStable(r.Scoring.Badges, func(i, j int) bool {
		return r.Scoring.Badges[i].MinPoints < r.Scoring.Badges[j].MinPoints
	})
}

// Validate checks the tables for values the engine cannot act on.
func (r *Rules) Validate() error {
	var errs []error
	for category, dept := range r.Departments {
		if category == "" {
			errs = append(errs, errors.New("departments: empty category key"))
		}
		if !dept.Valid() || dept == domain.DepartmentUnassigned {
			errs = append(errs, fmt.Errorf("departments: category %q maps to unknown department %q", category, dept))
		}
	}
	if r.SLA.Default <= 0 {
		errs = append(errs, errors.New("sla.default must be positive"))
	}
	for _, row := range r.SLA.Durations {
		if row.Category == "" {
			errs = append(errs, errors.New("sla.durations: category required"))
		}
		if row.Duration <= 0 {
			errs = append(errs, fmt.Errorf("sla.durations: %s/%s duration must be positive", row.Category, row.Priority))
		}
	}
	esc := r.Escalation
	if esc.WarningWindow < 0 || esc.CriticalAfter < 0 || esc.FinalAfter < 0 {
		errs = append(errs, errors.New("escalation thresholds must not be negative"))
	}
	if esc.FinalAfter <= esc.CriticalAfter {
		errs = append(errs, errors.New("escalation.final_after must exceed escalation.critical_after"))
	}
	seenTier := map[domain.EscalationLevel]bool{}
	for _, tier := range esc.Tiers {
		if tier.Level <= domain.EscalationNormal || !tier.Level.Valid() {
			errs = append(errs, fmt.Errorf("escalation.tiers: invalid level %d", tier.Level))
		}
		if tier.Role != domain.StaffRoleStaff && tier.Role != domain.StaffRoleAdmin {
			errs = append(errs, fmt.Errorf("escalation.tiers: level %d has unusable role %q", tier.Level, tier.Role))
		}
		if seenTier[tier.Level] {
			errs = append(errs, fmt.Errorf("escalation.tiers: duplicate level %d", tier.Level))
		}
		seenTier[tier.Level] = true
	}
	if r.Scoring.DefaultPoints < 0 || r.Scoring.SpeedBonus < 0 || r.Scoring.BreachPenalty < 0 {
		errs = append(errs, errors.New("scoring values must not be negative"))
	}
	for _, row := range r.Scoring.Points {
		if row.Points < 0 {
			errs = append(errs, fmt.Errorf("scoring.points: %s/%s must not be negative", row.Category, row.Priority))
		}
	}
	seenBadge := map[string]bool{}
	for _, badge := range r.Scoring.Badges {
		if strings.TrimSpace(badge.Name) == "" {
			errs = append(errs, errors.New("scoring.badges: name required"))
		}
		if badge.MinPoints < 0 {
			errs = append(errs, fmt.Errorf("scoring.badges: %s min_points must not be negative", badge.Name))
		}
		if seenBadge[badge.Name] {
			errs = append(errs, fmt.Errorf("scoring.badges: duplicate badge %s", badge.Name))
		}
		seenBadge[badge.Name] = true
	}
	return errors.Join(errs...)
}

// NormalizeCategory folds a category into its table key.
func NormalizeCategory(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

func normalizePriority(priority string) string {
	priority = strings.ToUpper(strings.TrimSpace(priority))
	if priority == "" {
		return AnyPriority
	}
	return priority
}
