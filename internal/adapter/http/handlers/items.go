package handlers

import (
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whatstasker/internal/adapter/bridge"
	"whatstasker/internal/adapter/http/mapper"
	"whatstasker/internal/adapter/http/middleware"
	"whatstasker/internal/core/domain"
	"whatstasker/internal/core/ports"
	"whatstasker/pkg/apierrors"
)

// icsExportWindow bounds the sessions feed: a month back for context,
// three months ahead.
const (
	icsExportPast   = 30 * 24 * time.Hour
	icsExportFuture = 90 * 24 * time.Hour
)

type ItemHandler struct {
	repo ports.ItemRepository
}

func NewItemHandler(repo ports.ItemRepository) *ItemHandler {
	return &ItemHandler{repo: repo}
}

func (h *ItemHandler) ListItems(c *gin.Context) {
	lang := middleware.GetLang(c)

	owner := ownerParam(c)
	if owner == "" {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidOwner, lang),
		)
		return
	}

	filter := domain.ItemFilter{}
	switch c.Query("status") {
	case "", "active":
		filter.Statuses = []domain.ItemStatus{domain.ItemStatusPending, domain.ItemStatusInProgress}
	case "all":
	default:
		filter.Statuses = []domain.ItemStatus{domain.ItemStatus(c.Query("status"))}
	}
	if project := c.Query("project"); project != "" {
		filter.Project = &project
	}

	items, err := h.repo.ListItems(c.Request.Context(), owner, filter)
	if err != nil {
		zap.L().Error("failed to list items", zap.String("owner", owner), zap.Error(err))
		c.JSON(
			http.StatusInternalServerError,
			apierrors.CreateError(http.StatusInternalServerError, apierrors.MsgFailListItems, lang),
		)
		return
	}

	c.JSON(http.StatusOK, mapper.ToItemViews(items))
}

// ExportSessions serves the owner's booked working sessions as an iCal
// feed, so any calendar app can subscribe to the plan.
func (h *ItemHandler) ExportSessions(c *gin.Context) {
	lang := middleware.GetLang(c)

	owner := ownerParam(c)
	if owner == "" {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidOwner, lang),
		)
		return
	}

	now := time.Now().UTC()
	sessions, err := h.repo.FindSessionsInWindow(c.Request.Context(), owner, now.Add(-icsExportPast), now.Add(icsExportFuture))
	if err != nil {
		zap.L().Error("failed to export sessions", zap.String("owner", owner), zap.Error(err))
		c.JSON(
			http.StatusInternalServerError,
			apierrors.CreateError(http.StatusInternalServerError, apierrors.MsgFailExportSessions, lang),
		)
		return
	}

	cal := ical.NewCalendar()
	cal.SetMethod(ical.MethodPublish)
	cal.SetProductId("-//whatstasker//sessions//EN")

	for _, s := range sessions {
		if s.Status != domain.SessionStatusBooked {
			continue
		}
		title := "Work session"
		if item, gerr := h.repo.GetItem(c.Request.Context(), owner, s.TaskID); gerr == nil {
			title = "Work: " + item.Description
		}
		event := cal.AddEvent(s.ID)
		event.SetSummary(title)
		event.SetStartAt(s.Start.UTC())
		event.SetEndAt(s.End.UTC())
		event.SetDtStampTime(now)
	}

	c.Header("Content-Type", "text/calendar; charset=utf-8")
	c.String(http.StatusOK, cal.Serialize())
}

// ownerParam reads the :id path segment and normalizes it to the chat
// id form used as the owner key everywhere else.
func ownerParam(c *gin.Context) string {
	raw := strings.TrimSpace(c.Param("id"))
	if raw == "" {
		return ""
	}
	return bridge.NormalizeChatID(raw)
}
