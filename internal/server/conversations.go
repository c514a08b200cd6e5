package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kildespor/kildespor/internal/store"
)

// ConversationsHandler exposes conversation listing and history.
type ConversationsHandler struct {
	Store *store.Store
}

func (h *ConversationsHandler) Register(g *echo.Group) {
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
}

// List conversations
//
//	@Summary	List the caller's conversations, most recent first
//	@Tags		conversations
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Produce	json
//	@Param		skip	query		int	false	"Offset"
//	@Param		limit	query		int	false	"Page size"
//	@Success	200		{array}		models.Conversation
//	@Router		/api/conversations [get]
func (h *ConversationsHandler) list(c echo.Context) error {
	user, err := currentUser(c, h.Store)
	if err != nil {
		return err
	}
	skip, _ := strconv.Atoi(c.QueryParam("skip"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	convs, err := h.Store.ListConversations(c.Request().Context(), user.ID, user.OrganizationID, skip, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, convs)
}

// Get conversation
//
//	@Summary	Fetch one conversation with its messages
//	@Tags		conversations
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Produce	json
//	@Param		id	path		string	true	"Conversation id"
//	@Success	200	{object}	ConversationDetail
//	@Failure	404	{object}	HTTPError
//	@Router		/api/conversations/{id} [get]
func (h *ConversationsHandler) get(c echo.Context) error {
	user, err := currentUser(c, h.Store)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	conv, found, err := h.Store.GetConversation(ctx, c.Param("id"), user.ID, user.OrganizationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	msgs, err := h.Store.ListMessages(ctx, conv.ID, 0)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, ConversationDetail{Conversation: conv, Messages: msgs})
}

// Delete conversation
//
//	@Summary	Delete a conversation and its messages
//	@Tags		conversations
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		id	path	string	true	"Conversation id"
//	@Success	204	{string}	string	"No Content"
//	@Failure	404	{object}	HTTPError
//	@Router		/api/conversations/{id} [delete]
func (h *ConversationsHandler) delete(c echo.Context) error {
	user, err := currentUser(c, h.Store)
	if err != nil {
		return err
	}
	deleted, err := h.Store.DeleteConversation(c.Request().Context(), c.Param("id"), user.ID, user.OrganizationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !deleted {
		return echo.NewHTTPError(http.StatusNotFound, "conversation not found")
	}
	return c.NoContent(http.StatusNoContent)
}
