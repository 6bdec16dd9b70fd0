package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kosaiyno/iryspredict/internal/application/game"
)

// RewardHandler issues signed claim authorizations for recorded wins.
type RewardHandler struct {
	rewards *game.Rewards
}

func NewRewardHandler(rewards *game.Rewards) *RewardHandler {
	return &RewardHandler{rewards: rewards}
}

func (h *RewardHandler) PostRewardSignature(c *gin.Context) {
	var req game.RewardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad JSON body"})
		return
	}

	grant, err := h.rewards.Authorize(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, grant)
}
