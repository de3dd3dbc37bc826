package domain

import "errors"

var (
	ErrItemNotFound             = errors.New("item not found")
	ErrCalendarUnavailable      = errors.New("calendar unavailable")
	ErrBookingInProgress        = errors.New("booking already in progress for this owner")
	ErrMalformedSearchContext   = errors.New("malformed search context")
	ErrPersistenceInconsistency = errors.New("calendar event and local record out of sync")
	ErrSessionOverlap           = errors.New("session overlaps a booked session")
	ErrInvalidTransition        = errors.New("invalid status transition")
)
