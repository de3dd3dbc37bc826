package tests

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"whatstasker/internal/adapter/bridge"
	"whatstasker/internal/adapter/http/dto"
	"whatstasker/internal/adapter/http/handlers"
	"whatstasker/internal/adapter/http/middleware"
	"whatstasker/pkg/apierrors"
	"whatstasker/pkg/translator"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type incomingMock struct {
	mock.Mock
}

func (m *incomingMock) HandleIncoming(ctx context.Context, owner, message string) error {
	args := m.Called(ctx, owner, message)
	return args.Error(0)
}

func bridgeRouter(handler *handlers.BridgeHandler) *gin.Engine {
	router := gin.New()
	group := router.Group("/api", middleware.LanguageMiddleware())
	group.POST("/bridge/incoming", handler.ReceiveMessage)
	group.GET("/bridge/outgoing", handler.ListOutgoing)
	group.POST("/bridge/ack", handler.AckMessages)
	return router
}

func TestBridge_IncomingAcksAndNormalizesOwner(t *testing.T) {
	incoming := new(incomingMock)
	incoming.On("HandleIncoming", mock.Anything, "31612345678@c.us", "plan my week").Return(nil).Once()
	router := bridgeRouter(handlers.NewBridgeHandler(incoming, bridge.NewQueue()))

	body := `{"from":"31612345678","body":"plan my week"}`
	req := httptest.NewRequest(http.MethodPost, "/api/bridge/incoming", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", translator.LanguageEn)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var got dto.IncomingMessageResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.True(t, got.Ack)
	incoming.AssertExpectations(t)
}

func TestBridge_IncomingInvalidPayload(t *testing.T) {
	incoming := new(incomingMock)
	router := bridgeRouter(handlers.NewBridgeHandler(incoming, bridge.NewQueue()))

	req := httptest.NewRequest(http.MethodPost, "/api/bridge/incoming", strings.NewReader(`{"from":""}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", translator.LanguageEn)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var got apierrors.JsonErr
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	require.Equal(t, "Invalid bridge payload.", got.ErrDetails.Message)
	incoming.AssertExpectations(t)
}

func TestBridge_IncomingHandlerError(t *testing.T) {
	incoming := new(incomingMock)
	incoming.On("HandleIncoming", mock.Anything, mock.Anything, mock.Anything).
		Return(errors.New("reasoner down")).Once()
	router := bridgeRouter(handlers.NewBridgeHandler(incoming, bridge.NewQueue()))

	body := `{"from":"31612345678","body":"hi"}`
	req := httptest.NewRequest(http.MethodPost, "/api/bridge/incoming", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept-Language", translator.LanguageEn)
	rec := httptest.NewRecorder()

	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	incoming.AssertExpectations(t)
}

func TestBridge_OutgoingAndAckRoundTrip(t *testing.T) {
	queue := bridge.NewQueue()
	router := bridgeRouter(handlers.NewBridgeHandler(new(incomingMock), queue))
	id := queue.Send("31612345678@c.us", "your slots are booked")

	req := httptest.NewRequest(http.MethodGet, "/api/bridge/outgoing", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var outgoing dto.OutgoingMessagesResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outgoing))
	require.Len(t, outgoing.Messages, 1)
	require.Equal(t, id, outgoing.Messages[0].ID)
	require.Equal(t, "your slots are booked", outgoing.Messages[0].Body)

	// Fetching twice without ack returns the message again.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bridge/outgoing", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outgoing))
	require.Len(t, outgoing.Messages, 1)

	ackBody, err := json.Marshal(dto.AckRequest{IDs: []string{id}})
	require.NoError(t, err)
	ackReq := httptest.NewRequest(http.MethodPost, "/api/bridge/ack", strings.NewReader(string(ackBody)))
	ackReq.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, ackReq)

	require.Equal(t, http.StatusOK, rec.Code)
	var acked dto.AckResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &acked))
	require.Equal(t, 1, acked.Removed)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/bridge/outgoing", nil))
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outgoing))
	require.Empty(t, outgoing.Messages)
}
