// Package api exposes the subscription command surface over HTTP.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"solana-wallet-tracker/internal/storage"
	"solana-wallet-tracker/internal/subscription"
)

const (
	defaultActivityLimit = 50
	maxActivityLimit     = 500
)

// Options contains configuration for creating the router.
type Options struct {
	Registry *subscription.Registry
	Journal  storage.ActivityJournal // optional
	State    func() string           // stream state for /health, optional
	Metrics  http.Handler            // served on /metrics when set
}

type server struct {
	registry *subscription.Registry
	journal  storage.ActivityJournal
	state    func() string
}

// NewRouter builds the control API.
func NewRouter(opts Options) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())

	s := &server{registry: opts.Registry, journal: opts.Journal, state: opts.State}

	r.GET("/health", s.health)
	if opts.Metrics != nil {
		r.GET("/metrics", gin.WrapH(opts.Metrics))
	}

	sub := r.Group("/subscribers/:id")
	sub.GET("", s.getSubscriber)
	sub.GET("/watches", s.listWatches)
	sub.POST("/watches", s.watch)
	sub.DELETE("/watches", s.unwatchAll)
	sub.DELETE("/watches/:address", s.unwatch)
	sub.PUT("/watches/:address/launch-only", s.setLaunchOnly)
	sub.PUT("/watches/:address/min-spend", s.setMinSpend)
	sub.PUT("/silent", s.setSilent)
	sub.PUT("/endpoints/http", s.setHTTPEndpoint)
	sub.PUT("/endpoints/ws", s.setWSEndpoint)
	sub.GET("/activity", s.activity)

	return r
}

func (s *server) health(c *gin.Context) {
	resp := gin.H{"status": "ok", "service": "solana-wallet-tracker"}
	if s.state != nil {
		resp["stream"] = s.state()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *server) getSubscriber(c *gin.Context) {
	id := c.Param("id")
	cfg := s.registry.Get(c.Request.Context(), id)
	c.JSON(http.StatusOK, gin.H{
		"id":            id,
		"http_endpoint": cfg.HTTPEndpoint,
		"ws_endpoint":   cfg.EffectiveWSEndpoint(),
		"ws_configured": cfg.WSEndpoint != "",
		"silent":        cfg.Silent,
		"silent_badge":  cfg.SilentBadge(),
		"watches":       len(cfg.Watches),
	})
}

func (s *server) listWatches(c *gin.Context) {
	id := c.Param("id")
	if detail, _ := strconv.ParseBool(c.Query("detail")); detail {
		entries := s.registry.ListDetail(id)
		if entries == nil {
			entries = []subscription.DetailEntry{}
		}
		c.JSON(http.StatusOK, gin.H{"watches": entries})
		return
	}
	entries := s.registry.List(id)
	if entries == nil {
		entries = []subscription.ListEntry{}
	}
	c.JSON(http.StatusOK, gin.H{"watches": entries})
}

type watchRequest struct {
	Address string `json:"address"`
	Alias   string `json:"alias"`
}

func (s *server) watch(c *gin.Context) {
	var req watchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	res, err := s.registry.Watch(c.Request.Context(), c.Param("id"), req.Address, req.Alias)
	if err != nil {
		writeError(c, err)
		return
	}
	status := http.StatusOK
	if res.Created {
		status = http.StatusCreated
	}
	c.JSON(status, gin.H{
		"address":      res.Address,
		"display_name": res.DisplayName,
		"link":         res.Link,
		"created":      res.Created,
		"launch_badge": res.LaunchBadge,
		"silent_badge": res.SilentBadge,
	})
}

func (s *server) unwatch(c *gin.Context) {
	name, err := s.registry.Unwatch(c.Request.Context(), c.Param("id"), c.Param("address"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"removed": name})
}

func (s *server) unwatchAll(c *gin.Context) {
	n := s.registry.UnwatchAll(c.Request.Context(), c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"removed": n})
}

type toggleRequest struct {
	Enabled *bool `json:"enabled"`
}

func bindToggle(c *gin.Context) (bool, bool) {
	var req toggleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return false, false
	}
	if req.Enabled == nil {
		badRequest(c, errors.New("enabled is required"))
		return false, false
	}
	return *req.Enabled, true
}

func (s *server) setLaunchOnly(c *gin.Context) {
	on, ok := bindToggle(c)
	if !ok {
		return
	}
	if err := s.registry.SetLaunchOnly(c.Request.Context(), c.Param("id"), c.Param("address"), on); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": c.Param("address"), "launch_only": on})
}

type amountRequest struct {
	Amount json.RawMessage `json:"amount"`
}

func (s *server) setMinSpend(c *gin.Context) {
	var req amountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	amount, err := ParseAmount(req.Amount)
	if err != nil {
		badRequest(c, err)
		return
	}
	if err := s.registry.SetMinSpend(c.Request.Context(), c.Param("id"), c.Param("address"), amount); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"address": c.Param("address"), "min_native_spend": amount})
}

func (s *server) setSilent(c *gin.Context) {
	on, ok := bindToggle(c)
	if !ok {
		return
	}
	if err := s.registry.SetSilent(c.Request.Context(), c.Param("id"), on); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"silent": on})
}

type endpointRequest struct {
	URL string `json:"url"`
}

func (s *server) setHTTPEndpoint(c *gin.Context) {
	var req endpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := s.registry.SetHTTPEndpoint(ctx, c.Param("id"), req.URL); err != nil {
		writeError(c, err)
		return
	}
	httpURL, wsURL := s.registry.Endpoints(ctx, c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"http_endpoint": httpURL, "ws_endpoint": wsURL})
}

func (s *server) setWSEndpoint(c *gin.Context) {
	var req endpointRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}
	ctx := c.Request.Context()
	if err := s.registry.SetWSEndpoint(ctx, c.Param("id"), req.URL); err != nil {
		writeError(c, err)
		return
	}
	httpURL, wsURL := s.registry.Endpoints(ctx, c.Param("id"))
	c.JSON(http.StatusOK, gin.H{"http_endpoint": httpURL, "ws_endpoint": wsURL})
}

type activityEntry struct {
	ID          string  `json:"id"`
	Wallet      string  `json:"wallet"`
	Signature   string  `json:"signature"`
	Slot        int64   `json:"slot"`
	Category    string  `json:"category"`
	TargetMint  string  `json:"target_mint"`
	NativeDelta float64 `json:"native_delta"`
	SentAt      string  `json:"sent_at"`
}

func (s *server) activity(c *gin.Context) {
	if s.journal == nil {
		c.JSON(http.StatusOK, gin.H{"activity": []activityEntry{}})
		return
	}

	limit := defaultActivityLimit
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			badRequest(c, fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = min(n, maxActivityLimit)
	}

	recs, err := s.journal.ListBySubscriber(c.Request.Context(), c.Param("id"), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}
	out := make([]activityEntry, 0, len(recs))
	for _, r := range recs {
		out = append(out, activityEntry{
			ID:          r.ID,
			Wallet:      r.Wallet,
			Signature:   r.Signature,
			Slot:        r.Slot,
			Category:    string(r.Category),
			TargetMint:  r.TargetMint,
			NativeDelta: r.NativeDelta,
			SentAt:      r.SentAt.UTC().Format("2006-01-02T15:04:05Z"),
		})
	}
	c.JSON(http.StatusOK, gin.H{"activity": out})
}

// ParseAmount accepts a JSON number or a string using either "." or ","
// as decimal separator.
func ParseAmount(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, errors.New("amount is required")
	}
	text := string(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		text = s
	}
	text = strings.ReplaceAll(strings.TrimSpace(text), ",", ".")
	v, err := strconv.ParseFloat(text, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %q", subscription.ErrInvalidAmount, text)
	}
	return v, nil
}

func writeError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, subscription.ErrNotWatched):
		c.JSON(http.StatusNotFound, gin.H{"success": false, "error": err.Error()})
	case errors.Is(err, subscription.ErrInvalidAddress),
		errors.Is(err, subscription.ErrInvalidAmount),
		errors.Is(err, subscription.ErrInvalidEndpoint):
		badRequest(c, err)
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
	}
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "error": err.Error()})
}
