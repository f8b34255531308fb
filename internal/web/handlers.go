package web

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/speraxos/sweepguard/internal/domain"
	"github.com/speraxos/sweepguard/internal/lists"
	"github.com/speraxos/sweepguard/internal/storage/decisions"
)

// Decider is the engine's public entry point.
type Decider interface {
	Decide(ctx context.Context, token domain.TokenRef, valueUSD decimal.Decimal) (domain.SweepDecision, error)
}

// PriceProvider exposes the consensus price directly.
type PriceProvider interface {
	GetConsensus(ctx context.Context, token domain.TokenRef) (domain.ConsensusPrice, error)
}

// ListAdmin is the registry surface used by operator endpoints.
type ListAdmin interface {
	Upsert(ctx context.Context, entry domain.ListEntry) (*domain.ListEntry, error)
	Get(ctx context.Context, token domain.TokenRef) (*domain.ListEntry, error)
	List(ctx context.Context) ([]*domain.ListEntry, error)
	Delete(ctx context.Context, token domain.TokenRef) error
}

// AuditReader replays persisted decisions.
type AuditReader interface {
	DecisionsAfter(index uint64) ([]decisions.Record, error)
	CurrentIndex() uint64
}

// Handlers contains the dependencies for all API endpoints.
type Handlers struct {
	Engine  Decider
	Prices  PriceProvider
	Lists   ListAdmin
	Audit   AuditReader
	Logger  *zap.Logger
	DevMode bool
}

func (h *Handlers) err(c echo.Context, code int, msg string, details any) error {
	resp := ErrorResponse{Error: msg, Code: code}
	if h.DevMode && details != nil {
		resp.Details = details
	}
	return c.JSON(code, resp)
}

func (h *Handlers) withTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = 10 * time.Second
	}
	return context.WithTimeout(ctx, d)
}

func tokenFromPath(c echo.Context) (domain.TokenRef, error) {
	token := domain.TokenRef{
		Chain:   strings.TrimSpace(c.Param("chain")),
		Address: strings.TrimSpace(c.Param("address")),
	}
	return token, token.Validate()
}

// Health returns a simple liveness response.
func (h *Handlers) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, HealthResponse{OK: true})
}

// Decide runs the full pipeline for one token and returns the decision.
func (h *Handlers) Decide(c echo.Context) error {
	var req DecideRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	token := domain.TokenRef{Chain: req.Chain, Address: req.Address}
	if err := token.Validate(); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid token", map[string]any{"token": err.Error()})
	}
	value, err := decimal.NewFromString(req.ValueUSD)
	if err != nil || value.IsNegative() {
		return h.err(c, http.StatusBadRequest, "invalid value_usd", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 30*time.Second)
	defer cancel()

	decision, err := h.Engine.Decide(ctx, token, value)
	if err != nil {
		h.Logger.Error("decide failed", zap.String("token", token.Key()), zap.Error(err))
		return h.err(c, http.StatusInternalServerError, "decision failed", err.Error())
	}
	return c.JSON(http.StatusOK, decision)
}

// Price returns the consensus price for a token.
func (h *Handlers) Price(c echo.Context) error {
	token, err := tokenFromPath(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid token", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	cp, err := h.Prices.GetConsensus(ctx, token)
	if err != nil {
		if errors.Is(err, domain.ErrInsufficientData) {
			return h.err(c, http.StatusServiceUnavailable, "insufficient price data", err.Error())
		}
		h.Logger.Error("price lookup failed", zap.String("token", token.Key()), zap.Error(err))
		return h.err(c, http.StatusInternalServerError, "price lookup failed", nil)
	}
	return c.JSON(http.StatusOK, PriceResponse{Consensus: cp})
}

// ListsIndex returns every list entry.
func (h *Handlers) ListsIndex(c echo.Context) error {
	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entries, err := h.Lists.List(ctx)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to list entries", nil)
	}
	return c.JSON(http.StatusOK, ListIndexResponse{Entries: entries})
}

// ListsUpsert creates or replaces a list entry.
func (h *Handlers) ListsUpsert(c echo.Context) error {
	var req ListUpsertRequest
	if err := c.Bind(&req); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid json", nil)
	}

	status, err := domain.ParseListStatus(req.Status)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid status", map[string]any{"status": err.Error()})
	}
	entry := domain.ListEntry{
		Token:  domain.TokenRef{Chain: req.Chain, Address: req.Address},
		Status: status,
		Reason: req.Reason,
		SetBy:  req.SetBy,
	}
	if err := entry.Token.Validate(); err != nil {
		return h.err(c, http.StatusBadRequest, "invalid token", map[string]any{"token": err.Error()})
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	saved, err := h.Lists.Upsert(ctx, entry)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to save entry", nil)
	}
	return c.JSON(http.StatusOK, saved)
}

// ListsGet returns one list entry.
func (h *Handlers) ListsGet(c echo.Context) error {
	token, err := tokenFromPath(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid token", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	entry, err := h.Lists.Get(ctx, token)
	if err != nil {
		if errors.Is(err, lists.ErrNotFound) {
			return h.err(c, http.StatusNotFound, "entry not found", nil)
		}
		return h.err(c, http.StatusInternalServerError, "failed to get entry", nil)
	}
	return c.JSON(http.StatusOK, entry)
}

// ListsDelete removes a list entry.
func (h *Handlers) ListsDelete(c echo.Context) error {
	token, err := tokenFromPath(c)
	if err != nil {
		return h.err(c, http.StatusBadRequest, "invalid token", nil)
	}

	ctx, cancel := h.withTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Lists.Delete(ctx, token); err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to delete entry", nil)
	}
	return c.NoContent(http.StatusNoContent)
}

// AuditLog replays decisions written after the given WAL index.
func (h *Handlers) AuditLog(c echo.Context) error {
	after := uint64(0)
	if s := c.QueryParam("after"); s != "" {
		n, err := strconv.ParseUint(s, 10, 64)
		if err != nil {
			return h.err(c, http.StatusBadRequest, "invalid after index", nil)
		}
		after = n
	}

	records, err := h.Audit.DecisionsAfter(after)
	if err != nil {
		return h.err(c, http.StatusInternalServerError, "failed to read audit log", nil)
	}
	return c.JSON(http.StatusOK, AuditResponse{
		CurrentIndex: h.Audit.CurrentIndex(),
		Records:      records,
	})
}
