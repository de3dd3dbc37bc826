package apierrors

const (
	MsgInvalidOwner          = "invalidOwner"
	MsgInvalidItemPayload    = "invalidItemPayload"
	MsgItemNotFound          = "itemNotFound"
	MsgFailListItems         = "failListItems"
	MsgInvalidSlotPayload    = "invalidSlotPayload"
	MsgMalformedContext      = "malformedSearchContext"
	MsgCalendarUnavailable   = "calendarUnavailable"
	MsgBookingInProgress     = "bookingInProgress"
	MsgFailProposeSlots      = "failProposeSlots"
	MsgFailFinalizeSlots     = "failFinalizeSlots"
	MsgInvalidBridgePayload  = "invalidBridgePayload"
	MsgFailHandleIncoming    = "failHandleIncoming"
	MsgFailExportSessions    = "failExportSessions"
	MsgFailStartCalendarAuth = "failStartCalendarAuth"
	MsgFailFinishAuth        = "failFinishCalendarAuth"
)
