package handlers

import (
	"net/http"

	"party-system/services"
	"party-system/utils"

	"github.com/pocketbase/pocketbase/core"
	"github.com/redis/go-redis/v9"
)

type AdminHandler struct {
	sweeper *services.Sweeper
	redis   *redis.Client
}

func NewAdminHandler(sweeper *services.Sweeper, redisClient *redis.Client) *AdminHandler {
	return &AdminHandler{
		sweeper: sweeper,
		redis:   redisClient,
	}
}

// ForceSweep - Run one completion sweep immediately
func (h *AdminHandler) ForceSweep(e *core.RequestEvent) error {
	h.sweeper.Sweep(e.Request.Context())

	lastRunAt, lastSwept := h.sweeper.Status()
	return e.JSON(http.StatusOK, map[string]any{
		"message":     "Sweep completed",
		"last_run_at": lastRunAt,
		"finalized":   lastSwept,
	})
}

// SweeperStatus - Last sweep run and dependency health
func (h *AdminHandler) SweeperStatus(e *core.RequestEvent) error {
	lastRunAt, lastSwept := h.sweeper.Status()

	redisStatus := "healthy"
	if err := utils.RedisHealthCheck(h.redis); err != nil {
		redisStatus = err.Error()
	}

	return e.JSON(http.StatusOK, map[string]any{
		"last_run_at": lastRunAt,
		"finalized":   lastSwept,
		"redis":       redisStatus,
	})
}
