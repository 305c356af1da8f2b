package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/resolvehub/complaint-engine/internal/api/dto"
	"github.com/resolvehub/complaint-engine/internal/service"
	apperrors "github.com/resolvehub/complaint-engine/pkg/util/errorutil"
)

// LeaderboardHandler exposes staff performance.
type LeaderboardHandler struct {
	scorer *service.GamificationService
}

// NewLeaderboardHandler constructs handler.
func NewLeaderboardHandler(scorer *service.GamificationService) *LeaderboardHandler {
	return &LeaderboardHandler{scorer: scorer}
}

// Leaderboard GET /staff/leaderboard.
func (h *LeaderboardHandler) Leaderboard(c *fiber.Ctx) error {
	stats, err := h.scorer.Leaderboard(c.UserContext())
	if err != nil {
		return apperrors.MapError(err)
	}
	return c.JSON(fiber.Map{"data": leaderboardResponse(stats)})
}

func leaderboardResponse(stats service.LeaderboardStats) dto.LeaderboardResponse {
	resp := dto.LeaderboardResponse{
		TotalStaff:        stats.TotalStaff,
		TotalPoints:       stats.TotalPoints,
		AveragePoints:     stats.AveragePoints,
		BadgeDistribution: stats.BadgeDistribution,
		Standings:         make([]dto.StandingView, 0, len(stats.Standings)),
	}
	for _, standing := range stats.Standings {
		resp.Standings = append(resp.Standings, standingView(standing))
	}
	if stats.TopPerformer != nil {
		top := standingView(*stats.TopPerformer)
		resp.TopPerformer = &top
	}
	return resp
}

func standingView(s service.StaffStanding) dto.StandingView {
	return dto.StandingView{
		StaffID:    s.Staff.ID,
		Name:       s.Staff.Name,
		Department: s.Staff.Department,
		City:       s.Staff.City,
		Points:     s.Points,
		Badge:      s.Badge,
	}
}
