// Package server exposes the simulation system over HTTP.
package server

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	mderrors "github.com/sweetpotato0/mountdoom/errors"
	"github.com/sweetpotato0/mountdoom/export"
	"github.com/sweetpotato0/mountdoom/gateway"
	"github.com/sweetpotato0/mountdoom/pkg/logging"
	"github.com/sweetpotato0/mountdoom/simulation"
	"github.com/sweetpotato0/mountdoom/store"
	"github.com/sweetpotato0/mountdoom/transcript"
	"github.com/sweetpotato0/mountdoom/turngen"
)

const defaultPageLimit = 50

// Handler holds the HTTP handlers and their dependencies.
type Handler struct {
	simulator  *simulation.Simulator
	turns      *turngen.Service
	store      store.DocumentStore
	exporter   *export.Exporter
	collection string
	logger     *slog.Logger
}

// NewHandler creates a handler over the simulator, turn service and store.
func NewHandler(sim *simulation.Simulator, turns *turngen.Service, ds store.DocumentStore) *Handler {
	return &Handler{
		simulator:  sim,
		turns:      turns,
		store:      ds,
		exporter:   export.NewExporter(ds, simulation.DefaultCollection),
		collection: simulation.DefaultCollection,
		logger:     logging.WithComponent("server"),
	}
}

// RegisterRoutes registers routes with the echo server.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	e.POST("/api/simulations", h.CreateSimulation)
	e.GET("/api/simulations", h.ListSimulations)
	e.GET("/api/simulations/export", h.ExportSimulations)
	e.GET("/api/simulations/:id", h.GetSimulation)
	e.DELETE("/api/simulations/:id", h.DeleteSimulation)

	e.GET("/api/agents", h.ListAgents)
	e.POST("/api/agents/:id/invoke", h.InvokeAgent)

	e.POST("/api/transcripts/parse", h.ParseTranscript)
}

// SimulationRequest is the request to run a simulation.
type SimulationRequest struct {
	CustomerIntent      string `json:"customer_intent"`
	CustomerSentiment   string `json:"customer_sentiment"`
	ConversationSubject string `json:"conversation_subject"`
	MaxTurns            int    `json:"max_turns,omitempty"`
}

// CreateSimulation runs a simulation to completion and returns the record.
// POST /api/simulations
func (h *Handler) CreateSimulation(c echo.Context) error {
	ctx := c.Request().Context()

	var req SimulationRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	props := simulation.Properties{
		CustomerIntent:      req.CustomerIntent,
		CustomerSentiment:   req.CustomerSentiment,
		ConversationSubject: req.ConversationSubject,
	}
	run, err := h.simulator.Simulate(ctx, props, req.MaxTurns)
	if err != nil {
		h.logger.Error("simulation failed", "error", err)
		if run != nil {
			// Partial transcript was persisted; surface it with the failure.
			return c.JSON(statusFor(err), map[string]any{
				"error": err.Error(),
				"run":   run,
			})
		}
		return c.JSON(statusFor(err), map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusCreated, run)
}

// ListSimulations returns a page of persisted runs, newest first.
// GET /api/simulations?offset=0&limit=50
func (h *Handler) ListSimulations(c echo.Context) error {
	ctx := c.Request().Context()

	offset := intQuery(c, "offset", 0)
	limit := intQuery(c, "limit", defaultPageLimit)
	if offset < 0 || limit <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "offset and limit must be non-negative"})
	}

	var runs []simulation.SimulationRun
	opts := store.PageOptions{OrderBy: "created_at", Descending: true, Offset: offset, Limit: limit}
	if err := h.store.Page(ctx, h.collection, opts, &runs); err != nil {
		h.logger.Error("failed to page runs", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list simulations"})
	}
	if runs == nil {
		runs = []simulation.SimulationRun{}
	}

	return c.JSON(http.StatusOK, map[string]any{
		"simulations": runs,
		"offset":      offset,
		"limit":       limit,
	})
}

// GetSimulation returns one run by conversation id.
// GET /api/simulations/:id
func (h *Handler) GetSimulation(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	var run simulation.SimulationRun
	if err := h.store.Get(ctx, h.collection, id, &run); err != nil {
		if errors.Is(err, mderrors.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "simulation not found"})
		}
		h.logger.Error("failed to load run", "conversation_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to load simulation"})
	}

	return c.JSON(http.StatusOK, run)
}

// DeleteSimulation removes one run by conversation id.
// DELETE /api/simulations/:id
func (h *Handler) DeleteSimulation(c echo.Context) error {
	ctx := c.Request().Context()
	id := c.Param("id")

	if err := h.store.Delete(ctx, h.collection, id); err != nil {
		if errors.Is(err, mderrors.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "simulation not found"})
		}
		h.logger.Error("failed to delete run", "conversation_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to delete simulation"})
	}

	return c.NoContent(http.StatusNoContent)
}

// ExportSimulations streams every persisted run as JSONL or CSV.
// GET /api/simulations/export?format=jsonl|csv
func (h *Handler) ExportSimulations(c echo.Context) error {
	ctx := c.Request().Context()

	format, err := export.ParseFormat(c.QueryParam("format"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	switch format {
	case export.FormatCSV:
		c.Response().Header().Set(echo.HeaderContentType, "text/csv")
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="simulations.csv"`)
	default:
		c.Response().Header().Set(echo.HeaderContentType, "application/x-ndjson")
		c.Response().Header().Set(echo.HeaderContentDisposition, `attachment; filename="simulations.jsonl"`)
	}
	c.Response().WriteHeader(http.StatusOK)

	if err := h.exporter.Write(ctx, c.Response(), format); err != nil {
		// The status line is already out; all we can do is log and cut the stream.
		h.logger.Error("export aborted", "format", format, "error", err)
		return err
	}
	return nil
}

// ListAgents returns the registered agent definitions.
// GET /api/agents
func (h *Handler) ListAgents(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"agents": h.turns.Registry().List(),
	})
}

// InvokeRequest is the request to generate one agent turn.
type InvokeRequest struct {
	Input          string `json:"input"`
	ConversationID string `json:"conversation_id,omitempty"`
}

// InvokeAgent generates one turn for the named agent.
// POST /api/agents/:id/invoke
func (h *Handler) InvokeAgent(c echo.Context) error {
	ctx := c.Request().Context()
	agentID := c.Param("id")

	var req InvokeRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	var result *turngen.TurnResult
	var err error
	if req.ConversationID != "" {
		result, err = h.turns.InvokeInConversation(ctx, req.ConversationID, agentID, req.Input)
	} else {
		result, err = h.turns.Invoke(ctx, agentID, req.Input)
	}
	if err != nil {
		if errors.Is(err, mderrors.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "agent not found"})
		}
		h.logger.Error("agent invocation failed", "agent_id", agentID, "error", err)
		return c.JSON(statusFor(err), map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, result)
}

// ParseRequest is the request to normalize a raw transcript.
type ParseRequest struct {
	Content string `json:"content"`
}

// ParseTranscript strips markup from a raw transcript, then runs the
// transcript-parsing agent over the plain text.
// POST /api/transcripts/parse
func (h *Handler) ParseTranscript(c echo.Context) error {
	ctx := c.Request().Context()

	var req ParseRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	text, err := transcript.Normalize(req.Content)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": err.Error()})
	}

	result, err := h.turns.Invoke(ctx, turngen.AgentTranscriptParsing, text)
	if err != nil {
		h.logger.Error("transcript parsing failed", "error", err)
		return c.JSON(statusFor(err), map[string]string{"error": err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"content":    text,
		"parsed":     result.ResponseText,
		"from_cache": result.FromCache,
	})
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) int {
	var provErr *gateway.ProviderError
	switch {
	case errors.Is(err, mderrors.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, mderrors.ErrNotFound):
		return http.StatusNotFound
	case errors.As(err, &provErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func intQuery(c echo.Context, name string, def int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return -1
	}
	return n
}
