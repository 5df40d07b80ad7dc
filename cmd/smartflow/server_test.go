package main

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/smartflowafrica/smartflow-sub001/internal/errors"
	"github.com/smartflowafrica/smartflow-sub001/internal/models"
	"github.com/smartflowafrica/smartflow-sub001/pkg/gateway/types"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockNormalizer struct {
	mock.Mock
}

func (m *mockNormalizer) Normalize(raw []byte) (*models.InboundMessage, error) {
	args := m.Called(raw)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InboundMessage), args.Error(1)
}

type mockDispatcher struct {
	mock.Mock
}

func (m *mockDispatcher) SendText(ctx context.Context, recipient, body, tenantID string, category models.MessageCategory) error {
	return m.Called(ctx, recipient, body, tenantID, category).Error(0)
}

func (m *mockDispatcher) SendMedia(ctx context.Context, recipient, mediaURL, caption, tenantID string, kind types.MediaKind, fileName string, category models.MessageCategory) error {
	return m.Called(ctx, recipient, mediaURL, caption, tenantID, kind, fileName, category).Error(0)
}

func (m *mockDispatcher) PostStatusBroadcast(ctx context.Context, mediaURL, caption, tenantID string) error {
	return m.Called(ctx, mediaURL, caption, tenantID).Error(0)
}

type mockInstances struct {
	mock.Mock
}

func (m *mockInstances) CreateInstance(ctx context.Context, instanceName string) (*models.PairingInfo, error) {
	args := m.Called(ctx, instanceName)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PairingInfo), args.Error(1)
}

func (m *mockInstances) GetInstanceStatus(ctx context.Context, instanceName string) *models.ConnectionState {
	args := m.Called(ctx, instanceName)
	if args.Get(0) == nil {
		return nil
	}
	state := args.Get(0).(models.ConnectionState)
	return &state
}

func (m *mockInstances) DeleteInstance(ctx context.Context, instanceName string) error {
	return m.Called(ctx, instanceName).Error(0)
}

func (m *mockInstances) FetchAllInstances(ctx context.Context) []types.InstanceInfo {
	args := m.Called(ctx)
	return args.Get(0).([]types.InstanceInfo)
}

type mockAuditStore struct {
	mock.Mock
}

func (m *mockAuditStore) SaveOutboundMessage(ctx context.Context, msg *models.OutboundMessage) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockAuditStore) SaveSystemLog(ctx context.Context, entry *models.SystemLog) error {
	return m.Called(ctx, entry).Error(0)
}

func setupServer(t *testing.T, secret string) (*Server, *mockNormalizer, *mockDispatcher, *mockInstances, *mockAuditStore) {
	t.Helper()
	normalizer := new(mockNormalizer)
	dispatcher := new(mockDispatcher)
	instances := new(mockInstances)
	store := new(mockAuditStore)

	logger := logrus.New()
	logger.SetLevel(logrus.PanicLevel)

	return NewServer(normalizer, dispatcher, instances, store, secret, logger), normalizer, dispatcher, instances, store
}

func TestHealthEndpoint(t *testing.T) {
	srv, _, _, _, _ := setupServer(t, "")

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestWebhookAlwaysAcknowledges(t *testing.T) {
	srv, normalizer, _, _, store := setupServer(t, "")

	tests := []struct {
		name  string
		setup func()
		body  string
	}{
		{
			name: "normalized message",
			setup: func() {
				normalizer.On("Normalize", mock.Anything).Return(&models.InboundMessage{
					SenderAddress: "2348012345678",
					Text:          "Hello",
					InstanceID:    "tenant-1_wa",
				}, nil).Once()
				store.On("SaveSystemLog", mock.Anything, mock.Anything).Return(nil).Once()
			},
			body: `{"event": "messages.upsert"}`,
		},
		{
			name: "ignored event",
			setup: func() {
				normalizer.On("Normalize", mock.Anything).Return(nil, nil).Once()
			},
			body: `{"event": "connection.update"}`,
		},
		{
			name: "parse failure",
			setup: func() {
				normalizer.On("Normalize", mock.Anything).
					Return(nil, apperrors.NewParseError([]byte("{"), assert.AnError)).Once()
			},
			body: `{`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.setup()
			rec := httptest.NewRecorder()
			srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/gateway", bytes.NewBufferString(tt.body)))
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}

	normalizer.AssertExpectations(t)
	store.AssertExpectations(t)
}

func TestWebhookRoutesInboundToOwningTenant(t *testing.T) {
	srv, normalizer, _, _, store := setupServer(t, "")

	normalizer.On("Normalize", mock.Anything).Return(&models.InboundMessage{
		SenderAddress: "2348012345678",
		Text:          "Hello",
		InstanceID:    "tenant-1_wa",
	}, nil)
	store.On("SaveSystemLog", mock.Anything, mock.MatchedBy(func(entry *models.SystemLog) bool {
		return entry.TenantID != nil && *entry.TenantID == "tenant-1" &&
			entry.Metadata["text"] == "Hello"
	})).Return(nil)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/webhook/gateway", bytes.NewBufferString(`{}`)))

	assert.Equal(t, http.StatusOK, rec.Code)
	store.AssertExpectations(t)
}

func TestWebhookRejectsBadSecret(t *testing.T) {
	srv, normalizer, _, _, _ := setupServer(t, "hook-secret")

	req := httptest.NewRequest(http.MethodPost, "/webhook/gateway", bytes.NewBufferString(`{}`))
	req.Header.Set(webhookSecretHeader, "wrong")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	normalizer.AssertNotCalled(t, "Normalize", mock.Anything)
}

func TestWebhookAcceptsCorrectSecret(t *testing.T) {
	srv, normalizer, _, _, _ := setupServer(t, "hook-secret")

	normalizer.On("Normalize", mock.Anything).Return(nil, nil)

	req := httptest.NewRequest(http.MethodPost, "/webhook/gateway", bytes.NewBufferString(`{}`))
	req.Header.Set(webhookSecretHeader, "hook-secret")
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSendTextEndpoint(t *testing.T) {
	srv, _, dispatcher, _, _ := setupServer(t, "")

	dispatcher.On("SendText", mock.Anything, "08012345678", "Hello", "tenant-1", models.CategoryNotification).Return(nil)

	body := `{"tenantId": "tenant-1", "recipient": "08012345678", "body": "Hello"}`
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/messages/text", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	dispatcher.AssertExpectations(t)
}

func TestSendTextValidation(t *testing.T) {
	srv, _, dispatcher, _, _ := setupServer(t, "")

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/messages/text", bytes.NewBufferString(`{"recipient": "x"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	dispatcher.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendTextRateLimitedMapsTo429(t *testing.T) {
	srv, _, dispatcher, _, _ := setupServer(t, "")

	dispatcher.On("SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(apperrors.NewRateLimitError("2348012345678", 100, "1h0m0s"))

	body := `{"recipient": "2348012345678", "body": "Hello"}`
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/messages/text", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestAPIKeyRequired(t *testing.T) {
	srv, _, dispatcher, _, _ := setupServer(t, "api-secret")

	body := `{"recipient": "2348012345678", "body": "Hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/messages/text", bytes.NewBufferString(body))
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	dispatcher.AssertNotCalled(t, "SendText", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestSendMediaEndpoint(t *testing.T) {
	srv, _, dispatcher, _, _ := setupServer(t, "")

	dispatcher.On("SendMedia", mock.Anything, "08012345678", "https://cdn.example.com/a.pdf", "Invoice", "tenant-1", types.MediaKindDocument, "a.pdf", models.CategoryNotification).Return(nil)

	body := `{"tenantId": "tenant-1", "recipient": "08012345678", "mediaUrl": "https://cdn.example.com/a.pdf", "caption": "Invoice", "kind": "document", "fileName": "a.pdf"}`
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/messages/media", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	dispatcher.AssertExpectations(t)
}

func TestStatusBroadcastEndpoint(t *testing.T) {
	srv, _, dispatcher, _, _ := setupServer(t, "")

	dispatcher.On("PostStatusBroadcast", mock.Anything, "https://cdn.example.com/promo.jpg", "New stock", "tenant-1").Return(nil)

	body := `{"tenantId": "tenant-1", "mediaUrl": "https://cdn.example.com/promo.jpg", "caption": "New stock"}`
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/status-broadcast", bytes.NewBufferString(body)))

	assert.Equal(t, http.StatusOK, rec.Code)
	dispatcher.AssertExpectations(t)
}

func TestCreateInstanceEndpoint(t *testing.T) {
	srv, _, _, instances, _ := setupServer(t, "")

	instances.On("CreateInstance", mock.Anything, "tenant-1_wa").
		Return(&models.PairingInfo{PairingCode: "ABCD-1234"}, nil)

	body := `{"tenantId": "tenant-1"}`
	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/instances", bytes.NewBufferString(body)))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp models.PairingInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "ABCD-1234", resp.PairingCode)
}

func TestInstanceStatusEndpoint(t *testing.T) {
	srv, _, _, instances, _ := setupServer(t, "")

	instances.On("GetInstanceStatus", mock.Anything, "tenant-1_wa").
		Return(models.ConnectionStateConnected)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/instances/tenant-1/status", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), string(models.ConnectionStateConnected))
}

func TestInstanceStatusUnavailable(t *testing.T) {
	srv, _, _, instances, _ := setupServer(t, "")

	instances.On("GetInstanceStatus", mock.Anything, mock.Anything).Return(nil)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/instances/tenant-1/status", nil))

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestDeleteInstanceEndpoint(t *testing.T) {
	srv, _, _, instances, _ := setupServer(t, "")

	instances.On("DeleteInstance", mock.Anything, "tenant-1_wa").Return(nil)

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/api/v1/instances/tenant-1", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	instances.AssertExpectations(t)
}

func TestListInstancesEndpoint(t *testing.T) {
	srv, _, _, instances, _ := setupServer(t, "")

	instances.On("FetchAllInstances", mock.Anything).Return([]types.InstanceInfo{
		{InstanceName: "tenant-1_wa"},
		{InstanceName: "tenant-2_wa"},
	})

	rec := httptest.NewRecorder()
	srv.router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/instances", nil))

	require.Equal(t, http.StatusOK, rec.Code)

	var resp []types.InstanceInfo
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Len(t, resp, 2)
}

func TestTenantFromInstance(t *testing.T) {
	assert.Equal(t, "tenant-1", tenantFromInstance("tenant-1_wa"))
	assert.Equal(t, "", tenantFromInstance("standalone"))
	assert.Equal(t, "", tenantFromInstance("_wa"))
}
