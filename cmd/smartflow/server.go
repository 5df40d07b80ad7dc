package main

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	apperrors "github.com/smartflowafrica/smartflow-sub001/internal/errors"
	"github.com/smartflowafrica/smartflow-sub001/internal/models"
	"github.com/smartflowafrica/smartflow-sub001/internal/service"
	"github.com/smartflowafrica/smartflow-sub001/pkg/gateway"
	"github.com/smartflowafrica/smartflow-sub001/pkg/gateway/types"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

const (
	apiKeyHeader        = "X-Api-Key"
	webhookSecretHeader = "X-Webhook-Secret"
	maxWebhookBodyBytes = 1 << 20
)

// Normalizer converts raw webhook payloads; nil message with nil error
// means the event was deliberately ignored.
type Normalizer interface {
	Normalize(raw []byte) (*models.InboundMessage, error)
}

// Dispatcher is the outbound send surface exposed over the admin API.
type Dispatcher interface {
	SendText(ctx context.Context, recipient, body, tenantID string, category models.MessageCategory) error
	SendMedia(ctx context.Context, recipient, mediaURL, caption, tenantID string, kind types.MediaKind, fileName string, category models.MessageCategory) error
	PostStatusBroadcast(ctx context.Context, mediaURL, caption, tenantID string) error
}

// InstanceManager is the gateway instance lifecycle surface.
type InstanceManager interface {
	CreateInstance(ctx context.Context, instanceName string) (*models.PairingInfo, error)
	GetInstanceStatus(ctx context.Context, instanceName string) *models.ConnectionState
	DeleteInstance(ctx context.Context, instanceName string) error
	FetchAllInstances(ctx context.Context) []types.InstanceInfo
}

// Server is the HTTP shell: health, metrics, the gateway webhook ingress,
// and the tenant-facing admin API for sends and instance lifecycle.
type Server struct {
	router        *mux.Router
	logger        *logrus.Logger
	normalizer    Normalizer
	dispatcher    Dispatcher
	instances     InstanceManager
	store         service.AuditStore
	webhookSecret string
	server        *http.Server
}

func NewServer(normalizer Normalizer, dispatcher Dispatcher, instances InstanceManager, store service.AuditStore, webhookSecret string, logger *logrus.Logger) *Server {
	s := &Server{
		router:        mux.NewRouter(),
		logger:        logger,
		normalizer:    normalizer,
		dispatcher:    dispatcher,
		instances:     instances,
		store:         store,
		webhookSecret: webhookSecret,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth()).Methods(http.MethodGet)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	s.router.HandleFunc("/webhook/gateway", s.handleGatewayWebhook()).Methods(http.MethodPost)

	api := s.router.PathPrefix("/api/v1").Subrouter()
	api.Use(s.requireAPIKey)
	api.HandleFunc("/messages/text", s.handleSendText()).Methods(http.MethodPost)
	api.HandleFunc("/messages/media", s.handleSendMedia()).Methods(http.MethodPost)
	api.HandleFunc("/status-broadcast", s.handleStatusBroadcast()).Methods(http.MethodPost)
	api.HandleFunc("/instances", s.handleCreateInstance()).Methods(http.MethodPost)
	api.HandleFunc("/instances", s.handleListInstances()).Methods(http.MethodGet)
	api.HandleFunc("/instances/{tenantID}/status", s.handleInstanceStatus()).Methods(http.MethodGet)
	api.HandleFunc("/instances/{tenantID}", s.handleDeleteInstance()).Methods(http.MethodDelete)
}

func (s *Server) Start(port int) error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	s.logger.Infof("Starting server on port %d", port)
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) handleHealth() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	}
}

// requireAPIKey guards the admin API with the shared webhook secret. The
// admin API and the webhook ingress share one credential; the surrounding
// product terminates per-tenant auth before requests reach this layer.
func (s *Server) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.webhookSecret != "" {
			provided := r.Header.Get(apiKeyHeader)
			if subtle.ConstantTimeCompare([]byte(provided), []byte(s.webhookSecret)) != 1 {
				s.writeError(w, http.StatusUnauthorized, "invalid api key")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

// handleGatewayWebhook ingests gateway callbacks. It always acknowledges
// with 200 once the request is authenticated: the gateway retries
// non-2xx responses, and a payload we cannot parse today will not parse
// on redelivery either.
func (s *Server) handleGatewayWebhook() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.NewString()
		log := s.logger.WithField("request_id", requestID)

		if !s.webhookAuthenticated(r) {
			log.Warn("Webhook request with missing or invalid secret")
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBodyBytes))
		if err != nil {
			log.WithError(err).Warn("Failed to read webhook body")
			w.WriteHeader(http.StatusOK)
			return
		}

		msg, err := s.normalizer.Normalize(body)
		if err != nil {
			log.WithError(err).WithField("code", string(apperrors.GetCode(err))).Warn("Failed to normalize webhook payload")
			w.WriteHeader(http.StatusOK)
			return
		}
		if msg == nil {
			w.WriteHeader(http.StatusOK)
			return
		}

		s.routeInbound(r.Context(), log, msg)
		w.WriteHeader(http.StatusOK)
	}
}

func (s *Server) webhookAuthenticated(r *http.Request) bool {
	if s.webhookSecret == "" {
		return true
	}
	provided := r.Header.Get(webhookSecretHeader)
	return subtle.ConstantTimeCompare([]byte(provided), []byte(s.webhookSecret)) == 1
}

// routeInbound records the normalized message for the tenant owning the
// source instance. Write failures are logged but never surfaced to the
// gateway.
func (s *Server) routeInbound(ctx context.Context, log *logrus.Entry, msg *models.InboundMessage) {
	tenantID := tenantFromInstance(msg.InstanceID)

	entry := &models.SystemLog{
		Level:   models.LogLevelInfo,
		Message: "inbound message received",
		Metadata: map[string]string{
			"instance":            msg.InstanceID,
			"sender":              msg.SenderAddress,
			"sender_display_name": msg.SenderDisplayName,
			"provider_message_id": msg.ProviderMessageID,
			"text":                msg.Text,
		},
	}
	if tenantID != "" {
		entry.TenantID = &tenantID
	}

	if err := s.store.SaveSystemLog(ctx, entry); err != nil {
		log.WithError(err).Error("Failed to record inbound message")
		return
	}

	log.WithFields(logrus.Fields{
		"tenant_id": tenantID,
		"instance":  msg.InstanceID,
	}).Debug("Inbound message routed")
}

type sendTextRequest struct {
	TenantID  string `json:"tenantId"`
	Recipient string `json:"recipient"`
	Body      string `json:"body"`
	Category  string `json:"category"`
}

func (s *Server) handleSendText() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendTextRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Recipient == "" || req.Body == "" {
			s.writeError(w, http.StatusBadRequest, "recipient and body are required")
			return
		}

		err := s.dispatcher.SendText(r.Context(), req.Recipient, req.Body, req.TenantID, categoryOrDefault(req.Category))
		if err != nil {
			s.writeDispatchError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

type sendMediaRequest struct {
	TenantID  string `json:"tenantId"`
	Recipient string `json:"recipient"`
	MediaURL  string `json:"mediaUrl"`
	Caption   string `json:"caption"`
	Kind      string `json:"kind"`
	FileName  string `json:"fileName"`
	Category  string `json:"category"`
}

func (s *Server) handleSendMedia() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sendMediaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.Recipient == "" || req.MediaURL == "" {
			s.writeError(w, http.StatusBadRequest, "recipient and mediaUrl are required")
			return
		}

		kind := types.MediaKind(req.Kind)
		if kind == "" {
			kind = types.MediaKindImage
		}

		err := s.dispatcher.SendMedia(r.Context(), req.Recipient, req.MediaURL, req.Caption, req.TenantID, kind, req.FileName, categoryOrDefault(req.Category))
		if err != nil {
			s.writeDispatchError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "sent"})
	}
}

type statusBroadcastRequest struct {
	TenantID string `json:"tenantId"`
	MediaURL string `json:"mediaUrl"`
	Caption  string `json:"caption"`
}

func (s *Server) handleStatusBroadcast() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req statusBroadcastRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.MediaURL == "" && req.Caption == "" {
			s.writeError(w, http.StatusBadRequest, "mediaUrl or caption is required")
			return
		}

		err := s.dispatcher.PostStatusBroadcast(r.Context(), req.MediaURL, req.Caption, req.TenantID)
		if err != nil {
			s.writeDispatchError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "posted"})
	}
}

type createInstanceRequest struct {
	TenantID string `json:"tenantId"`
	Label    string `json:"label"`
}

func (s *Server) handleCreateInstance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createInstanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
		if req.TenantID == "" {
			s.writeError(w, http.StatusBadRequest, "tenantId is required")
			return
		}
		if req.Label == "" {
			req.Label = "wa"
		}

		pairing, err := s.instances.CreateInstance(r.Context(), gateway.InstanceNameFor(req.TenantID, req.Label))
		if err != nil {
			s.writeDispatchError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, pairing)
	}
}

func (s *Server) handleListInstances() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.writeJSON(w, http.StatusOK, s.instances.FetchAllInstances(r.Context()))
	}
}

func (s *Server) handleInstanceStatus() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := mux.Vars(r)["tenantID"]
		state := s.instances.GetInstanceStatus(r.Context(), gateway.InstanceNameFor(tenantID, "wa"))
		if state == nil {
			s.writeError(w, http.StatusBadGateway, "instance status unavailable")
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"state": string(*state)})
	}
}

func (s *Server) handleDeleteInstance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		tenantID := mux.Vars(r)["tenantID"]
		if err := s.instances.DeleteInstance(r.Context(), gateway.InstanceNameFor(tenantID, "wa")); err != nil {
			s.writeDispatchError(w, err)
			return
		}
		s.writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

func (s *Server) writeDispatchError(w http.ResponseWriter, err error) {
	status := apperrors.HTTPStatusCode(err)
	s.logger.WithError(err).WithField("status", status).Warn("Request failed")
	s.writeJSON(w, status, map[string]string{"error": apperrors.GetUserMessage(err)})
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.WithError(err).Error("Failed to encode response body")
	}
}

func categoryOrDefault(category string) models.MessageCategory {
	if category == "" {
		return models.CategoryNotification
	}
	return models.MessageCategory(category)
}

// tenantFromInstance recovers the owning tenant from the
// <tenantID>_<label> instance naming scheme.
func tenantFromInstance(instanceName string) string {
	if idx := strings.IndexByte(instanceName, '_'); idx > 0 {
		return instanceName[:idx]
	}
	return ""
}
