package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kosaiyno/iryspredict/internal/application/game"
	"github.com/kosaiyno/iryspredict/internal/domain"
)

// GameHandler serves the player-facing surface: the round clock, bet
// placement, result ingestion, rankings and history.
type GameHandler struct {
	ledger   *game.Ledger
	resolver *game.Resolver
	board    *game.Leaderboard
	duration time.Duration
	lock     time.Duration
	now      func() time.Time
}

func NewGameHandler(ledger *game.Ledger, resolver *game.Resolver, board *game.Leaderboard, duration, lock time.Duration) *GameHandler {
	return &GameHandler{
		ledger:   ledger,
		resolver: resolver,
		board:    board,
		duration: duration,
		lock:     lock,
		now:      time.Now,
	}
}

// GetTime hands clients the server clock and the current round projection
// so they can compute a local offset.
func (h *GameHandler) GetTime(c *gin.Context) {
	c.JSON(http.StatusOK, domain.NewTimeStatus(h.now(), h.duration, h.lock))
}

type placeBetRequest struct {
	Wallet     string  `json:"wallet"`
	Asset      string  `json:"asset"`
	Side       string  `json:"side"`
	PriceAtBet float64 `json:"priceUsdAtBet"`
	Reason     string  `json:"reason"`
}

func (h *GameHandler) PlaceBet(c *gin.Context) {
	var req placeBetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad JSON body"})
		return
	}

	bet, err := h.ledger.PlaceBet(c.Request.Context(), game.PlaceBetInput{
		Wallet:     req.Wallet,
		Asset:      req.Asset,
		Side:       req.Side,
		PriceAtBet: req.PriceAtBet,
		Reason:     req.Reason,
	})
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, bet)
}

// GetBets lists a round's open bets, optionally for one wallet. Defaults
// to the round in progress.
func (h *GameHandler) GetBets(c *gin.Context) {
	roundID := domain.CurrentRound(h.now(), h.duration).ID
	if raw := c.Query("roundId"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "roundId must be a non-negative integer"})
			return
		}
		roundID = parsed
	}

	var (
		bets []domain.Bet
		err  error
	)
	if wallet := c.Query("wallet"); wallet != "" {
		bets, err = h.ledger.OpenBetsForWallet(c.Request.Context(), roundID, wallet)
	} else {
		bets, err = h.ledger.OpenBets(c.Request.Context(), roundID)
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"roundId": roundID, "bets": bets})
}

func (h *GameHandler) PostResult(c *gin.Context) {
	var req game.RecordResultInput
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "bad JSON body"})
		return
	}

	points, err := h.resolver.RecordResult(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true, "points": points})
}

func (h *GameHandler) GetLeaderboard(c *gin.Context) {
	limit := intQuery(c, "limit", 0)
	days := intQuery(c, "days", 7) // weekly board unless asked otherwise

	entries, err := h.board.Page(c.Request.Context(), limit, days)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"days": days, "entries": entries})
}

func (h *GameHandler) GetHistory(c *gin.Context) {
	wallet := c.Query("wallet")
	limit := intQuery(c, "limit", 0)

	entries, err := h.board.History(c.Request.Context(), wallet, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

func (h *GameHandler) GetStats(c *gin.Context) {
	wallet, stats, err := h.board.Stats(c.Request.Context(), c.Query("wallet"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"wallet": wallet, "stats": stats})
}

// intQuery reads a non-negative integer query parameter, falling back on
// absence or garbage.
func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
