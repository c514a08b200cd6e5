package server

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/kildespor/kildespor/internal/access"
	"github.com/kildespor/kildespor/internal/retrieval"
	"github.com/kildespor/kildespor/internal/searchindex"
	"github.com/kildespor/kildespor/internal/store"
	"github.com/kildespor/kildespor/internal/worker"
	"github.com/kildespor/kildespor/models"
)

// VideosHandler manages video metadata, transcripts and permissions.
type VideosHandler struct {
	Store    *store.Store
	Access   *access.Filter
	Registry *retrieval.Registry
	Index    *searchindex.Manager
	Queue    *worker.Queue
}

func (h *VideosHandler) Register(g *echo.Group) {
	g.POST("", h.create)
	g.GET("", h.list)
	g.GET("/:id", h.get)
	g.DELETE("/:id", h.delete)
	g.GET("/:id/segments", h.segments)
	g.POST("/:id/transcript", h.uploadTranscript)
	g.POST("/:id/permissions", h.grant)
}

// Create video
//
//	@Summary	Register video metadata ahead of transcript ingest
//	@Tags		videos
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Accept		json
//	@Produce	json
//	@Param		payload	body		CreateVideoRequest	true	"Video metadata"
//	@Success	201		{object}	models.Video
//	@Failure	400		{object}	HTTPError
//	@Router		/api/videos [post]
func (h *VideosHandler) create(c echo.Context) error {
	var req CreateVideoRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.Title == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "title required")
	}
	user, err := currentUser(c, h.Store)
	if err != nil {
		return err
	}
	level := req.SecurityLevel
	if level == "" {
		level = models.SecurityInternal
	}
	video, err := h.Store.CreateVideo(c.Request().Context(), models.Video{
		Title:          req.Title,
		Description:    req.Description,
		OrganizationID: user.OrganizationID,
		UploadedBy:     user.ID,
		SecurityLevel:  level,
		Status:         models.VideoUploading,
		Duration:       req.Duration,
	})
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusCreated, video)
}

// List videos
//
//	@Summary	List the organization's videos visible to the caller
//	@Tags		videos
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Produce	json
//	@Success	200	{array}	models.Video
//	@Router		/api/videos [get]
func (h *VideosHandler) list(c echo.Context) error {
	user, err := currentUser(c, h.Store)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	videos, err := h.Store.ListVideos(ctx, user.OrganizationID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	visible, err := h.Access.FilterViewable(ctx, user, videos)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, visible)
}

// Get video
//
//	@Summary	Fetch one video
//	@Tags		videos
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Produce	json
//	@Param		id	path		string	true	"Video id"
//	@Success	200	{object}	models.Video
//	@Failure	404	{object}	HTTPError
//	@Router		/api/videos/{id} [get]
func (h *VideosHandler) get(c echo.Context) error {
	_, video, err := h.viewableVideo(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, video)
}

// Delete video
//
//	@Summary	Delete a video, its segments, index entries and engine document
//	@Tags		videos
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Param		id	path	string	true	"Video id"
//	@Success	204	{string}	string	"No Content"
//	@Failure	403	{object}	HTTPError
//	@Failure	404	{object}	HTTPError
//	@Router		/api/videos/{id} [delete]
func (h *VideosHandler) delete(c echo.Context) error {
	user, video, err := h.viewableVideo(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	allowed, err := h.Access.CanEdit(ctx, user, video)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !allowed {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to delete this video")
	}

	if ins, err := h.Registry.Instance(video.OrganizationID); err == nil {
		// Engine cleanup is best-effort; the video row going away is what
		// stops new citations.
		_ = ins.DeleteDocument(ctx, video.ID)
	}
	if err := h.Index.RemoveVideo(video.OrganizationID, video.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Store.DeleteSegments(ctx, video.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if _, err := h.Store.DeleteVideo(ctx, video.ID, video.OrganizationID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// List segments
//
//	@Summary	List a video's transcript segments
//	@Tags		videos
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Produce	json
//	@Param		id	path	string	true	"Video id"
//	@Success	200	{array}	models.Segment
//	@Failure	404	{object}	HTTPError
//	@Router		/api/videos/{id}/segments [get]
func (h *VideosHandler) segments(c echo.Context) error {
	_, video, err := h.viewableVideo(c)
	if err != nil {
		return err
	}
	segs, err := h.Store.SegmentsByVideo(c.Request().Context(), video.ID)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, segs)
}

// Upload transcript
//
//	@Summary	Submit a transcript for asynchronous ingest
//	@Tags		videos
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Accept		json
//	@Param		id		path	string					true	"Video id"
//	@Param		payload	body	UploadTranscriptRequest	true	"Transcript segments"
//	@Success	202	{object}	IDResponse
//	@Failure	400	{object}	HTTPError
//	@Failure	403	{object}	HTTPError
//	@Router		/api/videos/{id}/transcript [post]
func (h *VideosHandler) uploadTranscript(c echo.Context) error {
	var req UploadTranscriptRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if len(req.Segments) == 0 {
		return echo.NewHTTPError(http.StatusBadRequest, "segments required")
	}
	user, video, err := h.viewableVideo(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	allowed, err := h.Access.CanEdit(ctx, user, video)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !allowed {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to modify this video")
	}

	job := worker.IngestJob{VideoID: video.ID, OrganizationID: video.OrganizationID}
	for i, s := range req.Segments {
		job.Segments = append(job.Segments, models.Segment{
			VideoID:   video.ID,
			Ordinal:   i,
			StartTime: s.StartTime,
			EndTime:   s.EndTime,
			Text:      s.Text,
		})
	}
	if err := h.Store.SetVideoStatus(ctx, video.ID, models.VideoProcessing); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if err := h.Queue.Enqueue(ctx, job); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusAccepted, IDResponse{ID: video.ID})
}

// Grant permission
//
//	@Summary	Grant a user explicit access to a video
//	@Tags		videos
//	@Security	BearerAuth
//	@Security	CookieAuth
//	@Accept		json
//	@Param		id		path	string			true	"Video id"
//	@Param		payload	body	GrantRequest	true	"Grant payload"
//	@Success	204	{string}	string	"No Content"
//	@Failure	400	{object}	HTTPError
//	@Failure	403	{object}	HTTPError
//	@Router		/api/videos/{id}/permissions [post]
func (h *VideosHandler) grant(c echo.Context) error {
	var req GrantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if req.UserID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "user_id required")
	}
	switch req.PermissionType {
	case models.PermissionView, models.PermissionEdit, models.PermissionAdmin:
	default:
		return echo.NewHTTPError(http.StatusBadRequest, "invalid permission_type")
	}
	user, video, err := h.viewableVideo(c)
	if err != nil {
		return err
	}
	ctx := c.Request().Context()
	allowed, err := h.Access.CanEdit(ctx, user, video)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !allowed {
		return echo.NewHTTPError(http.StatusForbidden, "not allowed to share this video")
	}
	if err := h.Store.GrantPermission(ctx, video.ID, req.UserID, req.PermissionType, user.ID); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.NoContent(http.StatusNoContent)
}

// viewableVideo loads the path video and checks visibility. Invisible videos
// 404 rather than 403 so their existence is not leaked.
func (h *VideosHandler) viewableVideo(c echo.Context) (models.User, models.Video, error) {
	user, err := currentUser(c, h.Store)
	if err != nil {
		return models.User{}, models.Video{}, err
	}
	ctx := c.Request().Context()
	video, found, err := h.Store.GetVideo(ctx, c.Param("id"))
	if err != nil {
		return user, models.Video{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !found {
		return user, models.Video{}, echo.NewHTTPError(http.StatusNotFound, "video not found")
	}
	allowed, err := h.Access.CanView(ctx, user, video)
	if err != nil {
		return user, models.Video{}, echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	if !allowed {
		return user, models.Video{}, echo.NewHTTPError(http.StatusNotFound, "video not found")
	}
	return user, video, nil
}
