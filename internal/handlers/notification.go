package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/feedstream-backend/internal/services"
)

type NotificationHandler struct {
	feedService services.FeedService
}

func NewNotificationHandler(feedService services.FeedService) *NotificationHandler {
	return &NotificationHandler{feedService: feedService}
}

type markRequest struct {
	Seen  bool   `json:"seen"`
	Read  bool   `json:"read"`
	Group string `json:"group,omitempty"`
}

func (h *NotificationHandler) Add(c *gin.Context) {
	userID := c.Param("user_id")
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	touched, err := h.feedService.AddNotifications(c.Request.Context(), userID, req.Activities)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"groups": aggregatedViews(touched)})
}

func (h *NotificationHandler) Get(c *gin.Context) {
	userID := c.Param("user_id")
	start, stop, err := parseWindow(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_window", err)
		return
	}
	groups, err := h.feedService.GetNotifications(c.Request.Context(), userID, start, stop)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"groups": aggregatedViews(groups)})
}

// Mark marks either a single group (when the body names one) or the
// whole feed.
func (h *NotificationHandler) Mark(c *gin.Context) {
	userID := c.Param("user_id")
	var req markRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	ctx := c.Request.Context()
	if req.Group != "" {
		if err := h.feedService.MarkNotificationGroup(ctx, userID, req.Group, req.Seen, req.Read); err != nil {
			RespondServiceError(c, err)
			return
		}
	} else {
		if err := h.feedService.MarkNotifications(ctx, userID, req.Seen, req.Read); err != nil {
			RespondServiceError(c, err)
			return
		}
	}
	counts, err := h.feedService.GetNotificationCounts(ctx, userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, counts)
}

func (h *NotificationHandler) Counts(c *gin.Context) {
	userID := c.Param("user_id")
	counts, err := h.feedService.GetNotificationCounts(c.Request.Context(), userID)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, counts)
}
