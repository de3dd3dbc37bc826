package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"whatstasker/internal/adapter/http/dto"
	"whatstasker/internal/adapter/http/mapper"
	"whatstasker/internal/adapter/http/middleware"
	"whatstasker/internal/core/domain"
	"whatstasker/internal/core/ports"
	"whatstasker/pkg/apierrors"
)

// NegotiationHandler exposes the two-phase slot negotiation over HTTP,
// for driving the assistant from something other than the chat bridge.
type NegotiationHandler struct {
	negotiator ports.Negotiator
	repo       ports.ItemRepository
}

func NewNegotiationHandler(negotiator ports.Negotiator, repo ports.ItemRepository) *NegotiationHandler {
	return &NegotiationHandler{negotiator: negotiator, repo: repo}
}

func (h *NegotiationHandler) ProposeSlots(c *gin.Context) {
	lang := middleware.GetLang(c)

	owner := ownerParam(c)
	if owner == "" {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidOwner, lang),
		)
		return
	}

	var req dto.ProposeSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidSlotPayload, lang),
		)
		return
	}

	input, err := h.buildProposeInput(c, owner, req)
	if err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidSlotPayload, lang),
		)
		return
	}

	proposal, err := h.negotiator.ProposeSlots(c.Request.Context(), input)
	if err != nil {
		if errors.Is(err, domain.ErrCalendarUnavailable) {
			c.JSON(
				http.StatusConflict,
				apierrors.CreateError(http.StatusConflict, apierrors.MsgCalendarUnavailable, lang),
			)
			return
		}

		zap.L().Error("failed to propose slots", zap.String("owner", owner), zap.Error(err))
		c.JSON(
			http.StatusInternalServerError,
			apierrors.CreateError(http.StatusInternalServerError, apierrors.MsgFailProposeSlots, lang),
		)
		return
	}

	c.JSON(http.StatusOK, dto.ProposeSlotsResponse{
		Slots:         mapper.ToSlotViews(proposal.Slots),
		SearchContext: proposal.Context,
		Diagnostic:    proposal.Diagnostic,
	})
}

func (h *NegotiationHandler) FinalizeSlots(c *gin.Context) {
	lang := middleware.GetLang(c)

	owner := ownerParam(c)
	if owner == "" {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidOwner, lang),
		)
		return
	}

	var req dto.FinalizeSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidSlotPayload, lang),
		)
		return
	}

	approved, err := buildApprovedSlots(req.ApprovedSlots)
	if err != nil {
		c.JSON(
			http.StatusBadRequest,
			apierrors.CreateError(http.StatusBadRequest, apierrors.MsgInvalidSlotPayload, lang),
		)
		return
	}

	result, err := h.negotiator.FinalizeSlots(c.Request.Context(), req.SearchContext, approved)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMalformedSearchContext):
			c.JSON(
				http.StatusBadRequest,
				apierrors.CreateError(http.StatusBadRequest, apierrors.MsgMalformedContext, lang),
			)
		case errors.Is(err, domain.ErrBookingInProgress):
			c.JSON(
				http.StatusConflict,
				apierrors.CreateError(http.StatusConflict, apierrors.MsgBookingInProgress, lang),
			)
		case errors.Is(err, domain.ErrCalendarUnavailable):
			c.JSON(
				http.StatusConflict,
				apierrors.CreateError(http.StatusConflict, apierrors.MsgCalendarUnavailable, lang),
			)
		default:
			zap.L().Error("failed to finalize slots", zap.String("owner", owner), zap.Error(err))
			c.JSON(
				http.StatusInternalServerError,
				apierrors.CreateError(http.StatusInternalServerError, apierrors.MsgFailFinalizeSlots, lang),
			)
		}
		return
	}

	c.JSON(http.StatusOK, dto.FinalizeSlotsResponse{
		TaskID:     result.TaskID,
		Booked:     mapper.ToSessionViews(result.Booked),
		Rejected:   mapper.ToRejectedSlotViews(result.Rejected),
		Diagnostic: result.Diagnostic,
	})
}

func (h *NegotiationHandler) buildProposeInput(c *gin.Context, owner string, req dto.ProposeSlotsRequest) (ports.ProposeInput, error) {
	total, err := domain.ParseUserDuration(req.Duration)
	if err != nil {
		return ports.ProposeInput{}, err
	}

	prefs, err := h.repo.GetPreferences(c.Request.Context(), owner)
	if err != nil {
		return ports.ProposeInput{}, err
	}
	sessionLength := prefs.SessionLength
	if req.SessionLength != nil {
		sessionLength, err = domain.ParseUserDuration(*req.SessionLength)
		if err != nil {
			return ports.ProposeInput{}, err
		}
	}

	windowStart, err := time.Parse("2006-01-02", req.WindowStart)
	if err != nil {
		return ports.ProposeInput{}, err
	}
	windowEnd, err := time.Parse("2006-01-02", req.WindowEnd)
	if err != nil {
		return ports.ProposeInput{}, err
	}

	var due *time.Time
	if req.DueDate != nil {
		parsed, err := time.Parse("2006-01-02", *req.DueDate)
		if err != nil {
			return ports.ProposeInput{}, err
		}
		due = &parsed
	}

	var hints domain.Hints
	if req.Hints != nil {
		for _, d := range req.Hints.AvoidWeekdays {
			hints.AvoidWeekdays = append(hints.AvoidWeekdays, time.Weekday(d))
		}
		hints.PreferPart = domain.DayPart(req.Hints.PreferPart)
		hints.Consecutive = req.Hints.Consecutive
	}

	return ports.ProposeInput{
		Owner:            owner,
		Description:      req.Description,
		TotalDuration:    total,
		SessionLength:    sessionLength,
		WindowStart:      windowStart,
		WindowEnd:        windowEnd,
		DueDate:          due,
		Project:          req.Project,
		Hints:            hints,
		RescheduleTaskID: req.RescheduleID,
	}, nil
}

func buildApprovedSlots(refs []dto.SlotRef) ([]domain.Slot, error) {
	slots := make([]domain.Slot, 0, len(refs))
	for _, r := range refs {
		slot := domain.Slot{Ref: r.Ref}
		if r.Start != nil {
			start, err := time.Parse(time.RFC3339, *r.Start)
			if err != nil {
				return nil, err
			}
			slot.Start = start
		}
		if r.End != nil {
			end, err := time.Parse(time.RFC3339, *r.End)
			if err != nil {
				return nil, err
			}
			slot.End = end
		}
		slots = append(slots, slot)
	}
	return slots, nil
}
