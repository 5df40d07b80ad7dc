// Package gateway implements the client for the external chat-messaging
// gateway: per-tenant instance lifecycle and outbound message transport.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/smartflowafrica/smartflow-sub001/internal/constants"
	apperrors "github.com/smartflowafrica/smartflow-sub001/internal/errors"
	"github.com/smartflowafrica/smartflow-sub001/internal/metrics"
	"github.com/smartflowafrica/smartflow-sub001/internal/models"
	"github.com/smartflowafrica/smartflow-sub001/internal/retry"
	"github.com/smartflowafrica/smartflow-sub001/pkg/gateway/types"

	"github.com/sirupsen/logrus"
)

// ClientConfig is the immutable configuration of a gateway client. There is
// no ambient global client: every call site receives a constructed client.
type ClientConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client talks to the messaging gateway's HTTP API. It is stateless and
// safe for concurrent use across tenants; tenant isolation is achieved
// purely via the instance-name path segment.
type Client struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

// NewClient constructs a gateway client.
func NewClient(cfg ClientConfig, logger *logrus.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = time.Duration(constants.DefaultGatewayTimeoutSec) * time.Second
	}
	return &Client{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger,
		metrics: metrics.Registry("smartflow"),
	}
}

// InstanceNameFor derives the gateway instance name for a tenant. Prefixing
// with the tenant id makes cross-tenant name collisions impossible, so the
// create-conflict fallthrough below can only ever reconnect the same tenant.
func InstanceNameFor(tenantID, name string) string {
	return fmt.Sprintf("%s_%s", tenantID, name)
}

// CreateInstance requests a new gateway session and returns its pairing
// material. A conflict ("name already exists") is not an error: onboarding
// an already-onboarded tenant falls through to ConnectInstance, keeping the
// operation idempotent.
func (c *Client) CreateInstance(ctx context.Context, instanceName string) (*models.PairingInfo, error) {
	reqBody := types.CreateInstanceRequest{
		InstanceName: instanceName,
		QRCode:       true,
	}

	var resp types.CreateInstanceResponse
	status, err := c.doJSON(ctx, http.MethodPost, types.EndpointInstanceCreate, reqBody, &resp)
	if err != nil {
		if isConflict(status) {
			c.logger.WithField("instance", instanceName).Info("Instance already exists, falling through to connect")
			return c.ConnectInstance(ctx, instanceName)
		}
		return nil, err
	}

	return c.ConnectInstance(ctx, instanceName)
}

// ConnectInstance requests pairing material for first-time linking. When
// the gateway reports the session already open, PairingInfo carries the
// AlreadyConnected flag instead of a code.
func (c *Client) ConnectInstance(ctx context.Context, instanceName string) (*models.PairingInfo, error) {
	path := fmt.Sprintf("%s/%s", types.EndpointInstanceConnect, instanceName)

	var resp types.ConnectResponse
	if _, err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}

	info := &models.PairingInfo{
		PairingCode:  resp.PairingCode,
		QRCodeBase64: resp.Base64,
	}
	if info.PairingCode == "" {
		info.PairingCode = resp.Code
	}
	if info.PairingCode == "" && info.QRCodeBase64 == "" {
		info.AlreadyConnected = true
	}
	return info, nil
}

// GetInstanceStatus polls the current connection state. It returns nil on
// any transport failure rather than an error: transient unavailability
// during a poll loop must not abort the caller's flow.
func (c *Client) GetInstanceStatus(ctx context.Context, instanceName string) *models.ConnectionState {
	path := fmt.Sprintf("%s/%s", types.EndpointInstanceState, instanceName)

	var resp types.ConnectionStateResponse
	if _, err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		c.logger.WithError(err).WithField("instance", instanceName).Debug("Status poll failed")
		return nil
	}

	state := mapWireState(resp.Instance.State)
	return &state
}

// IsConnected reports whether the instance has an open session, failing
// safe to false on any error.
func (c *Client) IsConnected(ctx context.Context, instanceName string) bool {
	state := c.GetInstanceStatus(ctx, instanceName)
	return state != nil && *state == models.ConnectionStateConnected
}

var errNotConnected = errors.New("instance not connected")

// WaitForConnected polls until the instance reports an open session. The
// loop is bounded and context-scoped so shutdown and tests stay
// deterministic.
func (c *Client) WaitForConnected(ctx context.Context, instanceName string) error {
	backoff := retry.NewBackoff(retry.BackoffConfig{
		InitialDelay: time.Duration(constants.DefaultConnectPollInitialMs) * time.Millisecond,
		MaxDelay:     time.Duration(constants.DefaultConnectPollMaxSec) * time.Second,
		Multiplier:   2.0,
		MaxAttempts:  constants.DefaultConnectPollAttempts,
	})

	return backoff.Retry(ctx, func() error {
		if c.IsConnected(ctx, instanceName) {
			return nil
		}
		return errNotConnected
	})
}

// DeleteInstance tears down the gateway-side session. Absence of the
// instance is not an error; delete is idempotent.
func (c *Client) DeleteInstance(ctx context.Context, instanceName string) error {
	path := fmt.Sprintf("%s/%s", types.EndpointInstanceDelete, instanceName)

	status, err := c.doJSON(ctx, http.MethodDelete, path, nil, nil)
	if err != nil {
		if status == http.StatusNotFound {
			return nil
		}
		return err
	}
	return nil
}

// FetchAllInstances lists every instance across all tenants for fleet-level
// monitoring. A failed gateway call degrades to an empty list with the
// cause logged; monitoring must not break on a flaky gateway.
func (c *Client) FetchAllInstances(ctx context.Context) []types.InstanceInfo {
	var resp []types.InstanceInfo
	if _, err := c.doJSON(ctx, http.MethodGet, types.EndpointInstanceFetchAll, nil, &resp); err != nil {
		c.logger.WithError(err).Warn("Failed to fetch instance fleet")
		return []types.InstanceInfo{}
	}
	if resp == nil {
		return []types.InstanceInfo{}
	}
	return resp
}

// SendText sends a plain text message through the tenant's instance.
// Number must already be normalized to a bare digit string.
func (c *Client) SendText(ctx context.Context, instanceName string, req *types.SendTextRequest) (*types.SendResponse, error) {
	path := fmt.Sprintf("%s/%s", types.EndpointSendText, instanceName)

	var resp types.SendResponse
	if _, err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// SendMedia sends a media message. MediaType and FileName are forwarded to
// the gateway verbatim.
func (c *Client) SendMedia(ctx context.Context, instanceName string, req *types.SendMediaRequest) (*types.SendResponse, error) {
	path := fmt.Sprintf("%s/%s", types.EndpointSendMedia, instanceName)

	var resp types.SendResponse
	if _, err := c.doJSON(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// doJSON issues one gateway call and decodes the JSON reply into out when
// non-nil. It returns the HTTP status (0 when the request never completed)
// alongside any error so callers can branch on conflict/not-found.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}) (int, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set(types.HeaderAPIKey, c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.metrics.GatewayRequests.WithLabelValues(endpointLabel(path), "transport_error").Inc()
		return 0, apperrors.NewGatewayError(path, 0, err)
	}
	defer resp.Body.Close()

	c.metrics.GatewayRequests.WithLabelValues(endpointLabel(path), fmt.Sprintf("%d", resp.StatusCode)).Inc()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var gwErr types.ErrorResponse
		detail := ""
		if decodeErr := json.NewDecoder(resp.Body).Decode(&gwErr); decodeErr == nil {
			detail = gwErr.Detail()
		}
		if detail == "" {
			detail = http.StatusText(resp.StatusCode)
		}
		return resp.StatusCode, apperrors.NewGatewayError(path, resp.StatusCode, errors.New(detail))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, apperrors.NewGatewayError(path, resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
		}
	}

	return resp.StatusCode, nil
}

// endpointLabel trims instance-name path segments so metric label
// cardinality stays bounded.
func endpointLabel(path string) string {
	segments := strings.SplitN(strings.TrimPrefix(path, "/"), "/", 3)
	if len(segments) >= 2 {
		return "/" + segments[0] + "/" + segments[1]
	}
	return path
}

func isConflict(status int) bool {
	return status == http.StatusConflict || status == http.StatusForbidden
}

func mapWireState(wire string) models.ConnectionState {
	switch wire {
	case types.WireStateOpen:
		return models.ConnectionStateConnected
	case types.WireStateConnecting:
		return models.ConnectionStatePairing
	case types.WireStateClose:
		return models.ConnectionStateDisconnected
	case "":
		return models.ConnectionStateError
	default:
		return models.ConnectionStateError
	}
}
