package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/resolvehub/complaint-engine/internal/config"
	"github.com/resolvehub/complaint-engine/internal/domain"
	"github.com/resolvehub/complaint-engine/internal/observability"
	"github.com/resolvehub/complaint-engine/internal/repository"
)

// GamificationService scores resolutions and builds the staff leaderboard.
type GamificationService struct {
	defaultPoints int
	points        map[slaKey]int
	speedBonus    int
	breachPenalty int
	badges        []domain.Badge

	staff      repository.StaffRepository
	complaints repository.ComplaintRepository
	metrics    *observability.Metrics
	logger     *zap.Logger
}

// GamificationDependencies bundles collaborators for the scorer.
type GamificationDependencies struct {
	Rules         config.ScoringRules
	StaffRepo     repository.StaffRepository
	ComplaintRepo repository.ComplaintRepository
	Metrics       *observability.Metrics
	Logger        *zap.Logger
}

// StaffStanding is one leaderboard row.
type StaffStanding struct {
	Staff  domain.StaffMember
	Points int
	Badge  *domain.Badge
}

// LeaderboardStats aggregates staff performance.
type LeaderboardStats struct {
	TotalStaff        int
	TotalPoints       int
	AveragePoints     decimal.Decimal
	TopPerformer      *StaffStanding
	BadgeDistribution map[string]int
	Standings         []StaffStanding
}

// NewGamificationService creates the scorer from scoring rules.
func NewGamificationService(deps GamificationDependencies) *GamificationService {
	points := make(map[slaKey]int, len(deps.Rules.Points))
	for _, row := range deps.Rules.Points {
		priority := row.Priority
		if priority == "" {
			priority = config.AnyPriority
		}
		points[slaKey{config.NormalizeCategory(row.Category), priority}] = row.Points
	}
	badges := append([]domain.Badge(nil), deps.Rules.Badges...)
	sort.SliceStable(badges, func(i, j int) bool { return badges[i].MinPoints < badges[j].MinPoints })
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GamificationService{
		defaultPoints: deps.Rules.DefaultPoints,
		points:        points,
		speedBonus:    deps.Rules.SpeedBonus,
		breachPenalty: deps.Rules.BreachPenalty,
		badges:        badges,
		staff:         deps.StaffRepo,
		complaints:    deps.ComplaintRepo,
		metrics:       deps.Metrics,
		logger:        logger,
	}
}

// BasePoints looks up category+priority, then the category default, then the global default.
func (g *GamificationService) BasePoints(category string, priority domain.ComplaintPriority) int {
	category = config.NormalizeCategory(category)
	if p, ok := g.points[slaKey{category, string(priority)}]; ok {
		return p
	}
	if p, ok := g.points[slaKey{category, config.AnyPriority}]; ok {
		return p
	}
	return g.defaultPoints
}

// Award scores a resolution at resolvedAt: base points, plus the speed bonus when
// resolved by the deadline, minus the breach penalty once the SLA was breached.
func (g *GamificationService) Award(complaint *domain.Complaint, resolvedAt time.Time) int {
	points := g.BasePoints(complaint.Category, complaint.Priority)
	if !complaint.SLA.Deadline.IsZero() && !resolvedAt.After(complaint.SLA.Deadline) {
		points += g.speedBonus
	}
	if complaint.SLA.BreachedAt != nil {
		points -= g.breachPenalty
	}
	if points < 0 {
		return 0
	}
	return points
}

// OnResolved awards the resolver and updates their running total in place.
func (g *GamificationService) OnResolved(ctx context.Context, complaint *domain.Complaint, staff *domain.StaffMember) (int, error) {
	resolvedAt := time.Now().UTC()
	if complaint.ResolvedAt != nil {
		resolvedAt = *complaint.ResolvedAt
	}
	points := g.Award(complaint, resolvedAt)
	total, err := g.staff.AddPoints(ctx, staff.ID, points)
	if err != nil {
		return 0, fmt.Errorf("add points for %s: %w", staff.ID, err)
	}
	staff.Points = total
	g.metrics.RecordPoints(points)
	g.logger.Info("points awarded",
		zap.String("complaint_id", complaint.ID),
		zap.String("staff_id", staff.ID),
		zap.Int("points", points),
		zap.Int("total", total))
	return points, nil
}

// BadgeFor returns the highest badge whose threshold points meets, or nil.
func (g *GamificationService) BadgeFor(points int) *domain.Badge {
	var best *domain.Badge
	for i := range g.badges {
		if points >= g.badges[i].MinPoints {
			badge := g.badges[i]
			best = &badge
		}
	}
	return best
}

// Aggregate recomputes standings from the points stored on resolved complaints, so
// later rules changes never rewrite past awards. Staff with no resolved complaints in
// history keep their stored points. It does not touch storage.
func (g *GamificationService) Aggregate(staff []domain.StaffMember, history []domain.Complaint) LeaderboardStats {
	earned := map[string]int{}
	resolvedBy := map[string]bool{}
	for i := range history {
		c := &history[i]
		if !c.Status.IsTerminal() || c.ResolvedBy == nil || c.ResolvedAt == nil {
			continue
		}
		earned[*c.ResolvedBy] += c.PointsAwarded
		resolvedBy[*c.ResolvedBy] = true
	}

	stats := LeaderboardStats{
		TotalStaff:        len(staff),
		AveragePoints:     decimal.Zero,
		BadgeDistribution: make(map[string]int, len(g.badges)),
		Standings:         make([]StaffStanding, 0, len(staff)),
	}
	for _, badge := range g.badges {
		stats.BadgeDistribution[badge.Name] = 0
	}
	for _, member := range staff {
		points := member.Points
		if resolvedBy[member.ID] {
			points = earned[member.ID]
		}
		standing := StaffStanding{Staff: member, Points: points, Badge: g.BadgeFor(points)}
		if standing.Badge != nil {
			stats.BadgeDistribution[standing.Badge.Name]++
		}
		stats.TotalPoints += points
		stats.Standings = append(stats.Standings, standing)
	}
	sort.SliceStable(stats.Standings, func(i, j int) bool {
		a, b := stats.Standings[i], stats.Standings[j]
		if a.Points != b.Points {
			return a.Points > b.Points
		}
		return a.Staff.ID < b.Staff.ID
	})
	if len(stats.Standings) > 0 {
		top := stats.Standings[0]
		stats.TopPerformer = &top
		stats.AveragePoints = decimal.NewFromInt(int64(stats.TotalPoints)).
			DivRound(decimal.NewFromInt(int64(stats.TotalStaff)), 2)
	}
	return stats
}

// Leaderboard loads active staff and their resolved complaints and aggregates them.
func (g *GamificationService) Leaderboard(ctx context.Context) (LeaderboardStats, error) {
	members, err := g.staff.List(ctx, repository.StaffFilter{Role: ptr(domain.StaffRoleStaff), Active: ptr(true)})
	if err != nil {
		return LeaderboardStats{}, fmt.Errorf("list staff: %w", err)
	}
	resolved, err := g.complaints.List(ctx, repository.ComplaintFilter{
		Statuses: []domain.ComplaintStatus{domain.ComplaintStatusResolved, domain.ComplaintStatusClosed},
	})
	if err != nil {
		return LeaderboardStats{}, fmt.Errorf("list resolved complaints: %w", err)
	}
	return g.Aggregate(members, resolved), nil
}
