package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whatstasker/internal/adapter/gcal"
	"whatstasker/internal/adapter/http/middleware"
	"whatstasker/internal/core/domain"
	"whatstasker/internal/core/ports"
	"whatstasker/pkg/apierrors"
)

// OAuthHandler drives the Google Calendar consent flow. Connect
// redirects the browser to Google; Google redirects back to Callback
// with the owner id in the state parameter.
type OAuthHandler struct {
	flow *gcal.AuthFlow
	repo ports.ItemRepository
}

func NewOAuthHandler(flow *gcal.AuthFlow, repo ports.ItemRepository) *OAuthHandler {
	return &OAuthHandler{flow: flow, repo: repo}
}

func (h *OAuthHandler) Connect(c *gin.Context) {
	lang := middleware.GetLang(c)

	owner := ownerParam(c)
	if owner == "" {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidOwner, lang),
		)
		return
	}

	if err := h.setCalendarStatus(c, owner, domain.CalendarPendingAuth); err != nil {
		zap.L().Error("failed to mark calendar pending", zap.String("owner", owner), zap.Error(err))
		c.JSON(
			http.StatusInternalServerError,
			apierrors.CreateError(http.StatusInternalServerError, apierrors.MsgFailStartCalendarAuth, lang),
		)
		return
	}

	c.Redirect(http.StatusFound, h.flow.AuthURL(owner))
}

func (h *OAuthHandler) Callback(c *gin.Context) {
	lang := middleware.GetLang(c)

	state := c.Query("state")
	code := c.Query("code")
	if state == "" || code == "" {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgFailFinishAuth, lang),
		)
		return
	}

	if err := h.flow.Complete(c.Request.Context(), state, code); err != nil {
		zap.L().Error("oauth callback failed", zap.String("owner", state), zap.Error(err))
		if serr := h.setCalendarStatus(c, state, domain.CalendarError); serr != nil {
			zap.L().Warn("failed to record calendar error state", zap.String("owner", state), zap.Error(serr))
		}
		c.JSON(
			http.StatusInternalServerError,
			apierrors.CreateError(http.StatusInternalServerError, apierrors.MsgFailFinishAuth, lang),
		)
		return
	}

	if err := h.setCalendarStatus(c, state, domain.CalendarConnected); err != nil {
		zap.L().Warn("token stored but status update failed", zap.String("owner", state), zap.Error(err))
	}

	c.String(http.StatusOK, "Calendar connected. You can close this tab and go back to the chat.")
}

func (h *OAuthHandler) setCalendarStatus(c *gin.Context, owner string, status domain.CalendarStatus) error {
	prefs, err := h.repo.GetPreferences(c.Request.Context(), owner)
	if err != nil {
		return err
	}
	prefs.Owner = owner
	prefs.CalendarStatus = status
	return h.repo.SavePreferences(c.Request.Context(), prefs)
}
