package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/kildespor/kildespor/internal/attribution"
	"github.com/kildespor/kildespor/internal/store"
	"github.com/kildespor/kildespor/models"
)

// ChatHandler runs chat turns and the source-extraction debug report.
type ChatHandler struct {
	Store    *store.Store
	Pipeline *attribution.Pipeline
}

func (h *ChatHandler) Register(g *echo.Group) {
	g.POST("", h.chat)
	g.POST("/debug", h.debug)
}

// Chat
//
//	@Summary		Send a chat message
//	@Description	Runs a full turn: retrieval, answer, source attribution, correction
//	@Tags			chat
//	@Security		BearerAuth
//	@Security		CookieAuth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		ChatRequest	true	"Message payload"
//	@Success		200		{object}	attribution.TurnResult
//	@Failure		400		{object}	HTTPError
//	@Failure		404		{object}	HTTPError
//	@Router			/api/chat [post]
func (h *ChatHandler) chat(c echo.Context) error {
	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Message) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "message required")
	}
	user, err := currentUser(c, h.Store)
	if err != nil {
		return err
	}
	res, err := h.Pipeline.Run(c.Request().Context(), user, req.ConversationID, req.Message)
	if err != nil {
		if errors.Is(err, models.ErrConversationNotFound) {
			return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
		}
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, res)
}

// Debug
//
//	@Summary		Inspect source extraction for a query
//	@Description	Returns raw retrieval contexts, parsed headers and per-header validation; nothing is persisted
//	@Tags			chat
//	@Security		BearerAuth
//	@Security		CookieAuth
//	@Accept			json
//	@Produce		json
//	@Param			payload	body		DebugRequest	true	"Query payload"
//	@Success		200		{object}	attribution.DebugReport
//	@Failure		400		{object}	HTTPError
//	@Router			/api/chat/debug [post]
func (h *ChatHandler) debug(c echo.Context) error {
	var req DebugRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if strings.TrimSpace(req.Query) == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	user, err := currentUser(c, h.Store)
	if err != nil {
		return err
	}
	report, err := h.Pipeline.Debug(c.Request().Context(), user, req.Query)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, report)
}
