package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/feedstream-backend/internal/services"
	"github.com/yungbote/feedstream-backend/internal/store"
)

type FeedHandler struct {
	feedService services.FeedService
}

func NewFeedHandler(feedService services.FeedService) *FeedHandler {
	return &FeedHandler{feedService: feedService}
}

type publishRequest struct {
	Activities []services.ActivityInput `json:"activities"`
}

type removeRequest struct {
	ActivityIDs []string `json:"activity_ids"`
}

// parseWindow reads optional ?start= and ?limit= query params. Negative
// values are rejected downstream.
func parseWindow(c *gin.Context) (start, stop int, err error) {
	start = 0
	stop = store.End
	if raw := c.Query("start"); raw != "" {
		start, err = strconv.Atoi(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid start %q", raw)
		}
	}
	if raw := c.Query("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			return 0, 0, fmt.Errorf("invalid limit %q", raw)
		}
		stop = start + limit
	}
	return start, stop, nil
}

func (h *FeedHandler) Publish(c *gin.Context) {
	userID := c.Param("user_id")
	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	touched, err := h.feedService.PublishActivities(c.Request.Context(), userID, req.Activities)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"groups": aggregatedViews(touched)})
}

func (h *FeedHandler) Remove(c *gin.Context) {
	userID := c.Param("user_id")
	var req removeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_body", err)
		return
	}
	if err := h.feedService.RemoveActivities(c.Request.Context(), userID, req.ActivityIDs); err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"removed": len(req.ActivityIDs)})
}

func (h *FeedHandler) Get(c *gin.Context) {
	userID := c.Param("user_id")
	start, stop, err := parseWindow(c)
	if err != nil {
		RespondError(c, http.StatusBadRequest, "invalid_window", err)
		return
	}
	groups, err := h.feedService.GetAggregatedFeed(c.Request.Context(), userID, start, stop)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"groups": aggregatedViews(groups)})
}

func (h *FeedHandler) GetRealtime(c *gin.Context) {
	userID := c.Param("user_id")
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			RespondError(c, http.StatusBadRequest, "invalid_window", fmt.Errorf("invalid limit %q", raw))
			return
		}
		limit = n
	}
	groups, err := h.feedService.GetRealtimeFeed(c.Request.Context(), userID, limit)
	if err != nil {
		RespondServiceError(c, err)
		return
	}
	RespondOK(c, gin.H{"groups": aggregatedViews(groups)})
}
