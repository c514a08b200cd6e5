package server

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/kildespor/kildespor/internal/access"
	"github.com/kildespor/kildespor/internal/retrieval"
	"github.com/kildespor/kildespor/internal/searchindex"
	"github.com/kildespor/kildespor/internal/store"
	"github.com/kildespor/kildespor/models"
)

// SearchHandler serves full-text transcript search over the organization's
// index, plus a direct question endpoint against the retrieval engine.
type SearchHandler struct {
	Store    *store.Store
	Access   *access.Filter
	Index    *searchindex.Manager
	Registry *retrieval.Registry
	TopK     int
}

// SearchResult is one hit with its video attached.
type SearchResult struct {
	VideoID    string  `json:"video_id"`
	VideoTitle string  `json:"video_title"`
	StartTime  float64 `json:"start_time"`
	Snippet    string  `json:"snippet"`
	Score      float64 `json:"score"`
	URL        string  `json:"url"`
}

func (h *SearchHandler) Register(g *echo.Group) {
	g.GET("", h.search)
	g.POST("/answer", h.answer)
}

// Search
//
//	@Summary	Full-text search over transcript segments
//	@Tags		search
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Produce	json
//	@Param		q		query		string	true	"Query"
//	@Param		limit	query		int		false	"Max results"
//	@Success	200		{array}		SearchResult
//	@Failure	400		{object}	HTTPError
//	@Router		/api/search [get]
func (h *SearchHandler) search(c echo.Context) error {
	q := c.QueryParam("q")
	if q == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "q required")
	}
	limit, _ := strconv.Atoi(c.QueryParam("limit"))
	if limit <= 0 || limit > 50 {
		limit = 10
	}
	user, err := currentUser(c, h.Store)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()

	hits, err := h.Index.Search(user.OrganizationID, q, limit)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}

	videos := make(map[string]*models.Video)
	out := make([]SearchResult, 0, len(hits))
	for _, hit := range hits {
		video, ok := videos[hit.VideoID]
		if !ok {
			v, found, err := h.Store.GetVideo(ctx, hit.VideoID)
			if err != nil {
				return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
			}
			if found {
				allowed, err := h.Access.CanView(ctx, user, v)
				if err != nil {
					return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
				}
				if allowed {
					video = &v
				}
			}
			videos[hit.VideoID] = video
		}
		if video == nil {
			continue
		}
		out = append(out, SearchResult{
			VideoID:    video.ID,
			VideoTitle: video.Title,
			StartTime:  hit.StartTime,
			Snippet:    hit.Snippet,
			Score:      hit.Score,
			URL:        "/videos/" + video.ID + "?t=" + strconv.Itoa(int(hit.StartTime)),
		})
	}
	return c.JSON(http.StatusOK, out)
}

// AnswerRequest asks the retrieval engine directly, outside a conversation.
type AnswerRequest struct {
	Query string `json:"query"`
	Mode  string `json:"mode"`
}

// AnswerResponse carries the engine's synthesized answer.
type AnswerResponse struct {
	Answer string `json:"answer"`
}

// Answer
//
//	@Summary	One-off question against the organization's retrieval engine
//	@Tags		search
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		AnswerRequest	true	"Question"
//	@Success	200		{object}	AnswerResponse
//	@Failure	400		{object}	HTTPError
//	@Router		/api/search/answer [post]
func (h *SearchHandler) answer(c echo.Context) error {
	var req AnswerRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}
	if req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "query required")
	}
	mode := retrieval.ModeMix
	switch req.Mode {
	case "", "mix":
	case "vector":
		mode = retrieval.ModeVector
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "mode must be vector or mix")
	}
	user, err := currentUser(c, h.Store)
	if err != nil {
		return err
	}

	ins, err := h.Registry.Instance(user.OrganizationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	answer, err := ins.Query(c.Request().Context(), retrieval.QueryRequest{
		Query: req.Query,
		Mode:  mode,
		TopK:  h.TopK,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusBadGateway, err.Error())
	}
	return c.JSON(http.StatusOK, AnswerResponse{Answer: answer})
}
