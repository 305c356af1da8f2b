package dto

import (
	"github.com/shopspring/decimal"

	"github.com/resolvehub/complaint-engine/internal/domain"
)

// LeaderboardResponse aggregates staff performance.
type LeaderboardResponse struct {
	TotalStaff        int             `json:"totalStaff"`
	TotalPoints       int             `json:"totalPoints"`
	AveragePoints     decimal.Decimal `json:"averagePoints"`
	TopPerformer      *StandingView   `json:"topPerformer"`
	BadgeDistribution map[string]int  `json:"badgeDistribution"`
	Standings         []StandingView  `json:"standings"`
}

// StandingView is one leaderboard row.
type StandingView struct {
	StaffID    string            `json:"staffId"`
	Name       string            `json:"name"`
	Department domain.Department `json:"department"`
	City       string            `json:"city"`
	Points     int               `json:"points"`
	Badge      *domain.Badge     `json:"badge"`
}
