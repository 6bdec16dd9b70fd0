package server

import (
	"github.com/gin-gonic/gin"
)

// Config carries the handlers and the operator secret into the router.
// RewardHandler is optional; without a signing key the claim route is
// simply absent.
type Config struct {
	GameHandler   *GameHandler
	AdminHandler  *AdminHandler
	RewardHandler *RewardHandler
	AdminToken    string
}

func NewRouter(cfg *Config) *gin.Engine {
	router := gin.Default()

	api := router.Group("/api")
	registerGameRoutes(api, cfg.GameHandler)
	if cfg.RewardHandler != nil {
		api.POST("/reward-signature", cfg.RewardHandler.PostRewardSignature)
	}

	admin := api.Group("/admin", requireAdminToken(cfg.AdminToken))
	registerAdminRoutes(admin, cfg.AdminHandler)

	return router
}

func registerGameRoutes(api *gin.RouterGroup, h *GameHandler) {
	api.GET("/time", h.GetTime)
	api.GET("/leaderboard", h.GetLeaderboard)
	api.GET("/history", h.GetHistory)
	api.GET("/stats", h.GetStats)
	api.POST("/result", h.PostResult)

	bets := api.Group("/bets")
	{
		bets.POST("", h.PlaceBet)
		bets.GET("", h.GetBets)
	}
}

func registerAdminRoutes(admin *gin.RouterGroup, h *AdminHandler) {
	admin.POST("/snapshot", h.PostSnapshot)
	admin.GET("/snapshots", h.ListSnapshots)
	admin.GET("/snapshots/:weekId", h.GetSnapshot)
	admin.POST("/backfill", h.PostBackfill)
	admin.POST("/resolve/:roundId", h.PostResolve)
}
