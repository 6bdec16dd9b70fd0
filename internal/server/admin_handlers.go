package server

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/kosaiyno/iryspredict/internal/application/game"
)

// AdminHandler serves the token-gated operator surface: weekly snapshots,
// activity-timestamp backfill, and manual round resolution.
type AdminHandler struct {
	snapshots *game.Snapshots
	resolver  *game.Resolver
}

func NewAdminHandler(snapshots *game.Snapshots, resolver *game.Resolver) *AdminHandler {
	return &AdminHandler{snapshots: snapshots, resolver: resolver}
}

func (h *AdminHandler) PostSnapshot(c *gin.Context) {
	snap, err := h.snapshots.SnapshotWeek(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *AdminHandler) GetSnapshot(c *gin.Context) {
	snap, err := h.snapshots.Get(c.Request.Context(), c.Param("weekId"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

func (h *AdminHandler) ListSnapshots(c *gin.Context) {
	refs, err := h.snapshots.List(c.Request.Context(), intQuery(c, "limit", 0))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"snapshots": refs})
}

type backfillRequest struct {
	Updates        map[string]int64 `json:"updates"`
	DefaultDaysAgo int              `json:"defaultDaysAgo"`
}

func (h *AdminHandler) PostBackfill(c *gin.Context) {
	var req backfillRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad JSON body"})
		return
	}

	report, err := h.snapshots.BackfillLastTs(c.Request.Context(), req.Updates, req.DefaultDaysAgo)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}

// PostResolve settles one round on demand, typically to retry bets left
// pending by a price-feed outage.
func (h *AdminHandler) PostResolve(c *gin.Context) {
	roundID, err := strconv.ParseInt(c.Param("roundId"), 10, 64)
	if err != nil || roundID < 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "roundId must be a non-negative integer"})
		return
	}

	report, err := h.resolver.ResolveRound(c.Request.Context(), roundID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, report)
}
