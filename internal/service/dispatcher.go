package service

import (
	"context"
	"time"

	apperrors "github.com/smartflowafrica/smartflow-sub001/internal/errors"
	"github.com/smartflowafrica/smartflow-sub001/internal/metrics"
	"github.com/smartflowafrica/smartflow-sub001/internal/models"
	"github.com/smartflowafrica/smartflow-sub001/internal/phone"
	"github.com/smartflowafrica/smartflow-sub001/pkg/gateway"
	"github.com/smartflowafrica/smartflow-sub001/pkg/gateway/types"

	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// GatewaySender is the outbound transport the dispatcher needs.
type GatewaySender interface {
	SendText(ctx context.Context, instanceName string, req *types.SendTextRequest) (*types.SendResponse, error)
	SendMedia(ctx context.Context, instanceName string, req *types.SendMediaRequest) (*types.SendResponse, error)
}

// AuditStore persists dispatch audit records and operational logs. It is
// append-only from the dispatcher's perspective.
type AuditStore interface {
	SaveOutboundMessage(ctx context.Context, msg *models.OutboundMessage) error
	SaveSystemLog(ctx context.Context, entry *models.SystemLog) error
}

// RateLimiter enforces the per-recipient quota.
type RateLimiter interface {
	CheckAndConsume(ctx context.Context, recipient string) error
}

// DispatcherConfig carries dispatch tuning.
type DispatcherConfig struct {
	// PacingDelay is the artificial pause between composing a message and
	// transmitting it, an anti-spam pacing measure.
	PacingDelay time.Duration
	// InstanceLabel is the per-tenant instance suffix; the full instance
	// name is <tenantID>_<label>.
	InstanceLabel string
	// DefaultInstance handles sends with no tenant context.
	DefaultInstance string
}

// Dispatcher sends outbound messages under the shared safety protocol:
// normalize, rate limit, pace, transmit, audit, propagate. It holds no
// mutable state and is safe for concurrent use by many callers across many
// tenants.
type Dispatcher struct {
	gateway GatewaySender
	store   AuditStore
	limiter RateLimiter
	logger  *logrus.Logger
	metrics *metrics.Metrics
	config  DispatcherConfig
}

// NewDispatcher wires a dispatcher.
func NewDispatcher(gw GatewaySender, store AuditStore, limiter RateLimiter, m *metrics.Metrics, logger *logrus.Logger, cfg DispatcherConfig) *Dispatcher {
	if cfg.InstanceLabel == "" {
		cfg.InstanceLabel = "wa"
	}
	return &Dispatcher{
		gateway: gw,
		store:   store,
		limiter: limiter,
		logger:  logger,
		metrics: m,
		config:  cfg,
	}
}

// SendText dispatches a plain text message to a recipient.
func (d *Dispatcher) SendText(ctx context.Context, recipient, body, tenantID string, category models.MessageCategory) error {
	normalized := phone.Normalize(recipient)
	return d.dispatch(ctx, "text", normalized, normalized, body, tenantID, category, func(ctx context.Context, instanceName string) (*types.SendResponse, error) {
		return d.gateway.SendText(ctx, instanceName, &types.SendTextRequest{
			Number:  normalized,
			Text:    body,
			Options: d.sendOptions(),
		})
	})
}

// SendMedia dispatches a media message. Kind and fileName are forwarded to
// the gateway verbatim.
func (d *Dispatcher) SendMedia(ctx context.Context, recipient, mediaURL, caption, tenantID string, kind types.MediaKind, fileName string, category models.MessageCategory) error {
	normalized := phone.Normalize(recipient)
	content := caption
	if content == "" {
		content = mediaURL
	}
	return d.dispatch(ctx, "media", normalized, normalized, content, tenantID, category, func(ctx context.Context, instanceName string) (*types.SendResponse, error) {
		return d.gateway.SendMedia(ctx, instanceName, &types.SendMediaRequest{
			Number:    normalized,
			MediaType: kind,
			Media:     mediaURL,
			Caption:   caption,
			FileName:  fileName,
			Options:   d.sendOptions(),
		})
	})
}

// PostStatusBroadcast posts an ephemeral status update. The gateway's
// media-broadcast endpoint is unreliable, so status posts go through the
// plain text path targeted at the reserved broadcast address: a deliberate
// trade of rich media for reliability, not an oversight.
func (d *Dispatcher) PostStatusBroadcast(ctx context.Context, mediaURL, caption, tenantID string) error {
	body := caption
	if body == "" {
		body = mediaURL
	}
	return d.dispatch(ctx, "status", types.StatusBroadcastAddress, types.StatusBroadcastAddress, body, tenantID, models.CategoryStatusBroadcast, func(ctx context.Context, instanceName string) (*types.SendResponse, error) {
		return d.gateway.SendText(ctx, instanceName, &types.SendTextRequest{
			Number:  types.StatusBroadcastAddress,
			Text:    body,
			Options: d.sendOptions(),
		})
	})
}

// dispatch runs the shared send protocol. A pre-flight rate rejection
// aborts before any network call and writes no audit record; every attempt
// past pre-flight produces exactly one record and the original error is
// re-propagated after bookkeeping.
func (d *Dispatcher) dispatch(ctx context.Context, kind, recipient, rateKey, content, tenantID string, category models.MessageCategory, send func(context.Context, string) (*types.SendResponse, error)) error {
	ctx, span := otel.Tracer("smartflow-dispatcher").Start(ctx, "dispatch."+kind)
	defer span.End()
	span.SetAttributes(
		attribute.String("dispatch.kind", kind),
		attribute.String("dispatch.tenant_id", tenantID),
	)

	if err := d.limiter.CheckAndConsume(ctx, rateKey); err != nil {
		if apperrors.IsRateLimit(err) {
			d.metrics.RateLimitRejected.WithLabelValues(kind).Inc()
			span.SetStatus(codes.Error, "rate limited")
			return err
		}
		span.SetStatus(codes.Error, "counter store unavailable")
		return err
	}

	if err := d.pace(ctx); err != nil {
		d.audit(ctx, kind, recipient, content, tenantID, category, "", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	instanceName := d.instanceFor(tenantID)
	start := time.Now()
	resp, err := send(ctx, instanceName)
	d.metrics.DispatchLatency.WithLabelValues(kind).Observe(time.Since(start).Seconds())

	if err != nil {
		d.audit(ctx, kind, recipient, content, tenantID, category, "", err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	providerMessageID := ""
	if resp != nil {
		providerMessageID = resp.Key.ID
	}
	if auditErr := d.audit(ctx, kind, recipient, content, tenantID, category, providerMessageID, nil); auditErr != nil {
		return auditErr
	}
	return nil
}

// audit writes the per-attempt record and, on failure, the best-effort
// system log. The system log's own write failure is logged locally and
// swallowed: it must never mask or replace the dispatch error.
func (d *Dispatcher) audit(ctx context.Context, kind, recipient, content, tenantID string, category models.MessageCategory, providerMessageID string, dispatchErr error) error {
	record := &models.OutboundMessage{
		TenantID:  tenantID,
		Recipient: recipient,
		Content:   content,
		Category:  category,
		HandledBy: models.HandledByBot,
		Status:    models.MessageStatusCompleted,
		Metadata:  map[string]string{},
	}
	if providerMessageID != "" {
		record.Metadata["providerMessageId"] = providerMessageID
	}
	if dispatchErr != nil {
		record.Status = models.MessageStatusFailed
		record.Metadata["error"] = dispatchErr.Error()
	}

	d.metrics.DispatchTotal.WithLabelValues(kind, string(record.Status)).Inc()

	if err := d.store.SaveOutboundMessage(ctx, record); err != nil {
		d.logger.WithError(err).WithFields(logrus.Fields{
			"tenant_id": tenantID,
			"recipient": maskRecipient(recipient),
		}).Error("Failed to write dispatch audit record")
		if dispatchErr == nil {
			return err
		}
	}

	if dispatchErr != nil {
		entry := &models.SystemLog{
			Level:   models.LogLevelError,
			Message: "outbound dispatch failed",
			Metadata: map[string]string{
				"kind":      kind,
				"recipient": recipient,
				"error":     dispatchErr.Error(),
			},
		}
		if tenantID != "" {
			entry.TenantID = &tenantID
		}
		if err := d.store.SaveSystemLog(ctx, entry); err != nil {
			d.logger.WithError(err).Warn("Failed to write system log for dispatch failure")
		}
	}
	return nil
}

// pace waits the configured composition-to-transmission delay, bailing out
// if the caller's context ends first.
func (d *Dispatcher) pace(ctx context.Context) error {
	if d.config.PacingDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return apperrors.Wrap(ctx.Err(), apperrors.ErrCodeTimeout, "dispatch cancelled during pacing")
	case <-time.After(d.config.PacingDelay):
		return nil
	}
}

func (d *Dispatcher) instanceFor(tenantID string) string {
	if tenantID == "" {
		return d.config.DefaultInstance
	}
	return gateway.InstanceNameFor(tenantID, d.config.InstanceLabel)
}

func (d *Dispatcher) sendOptions() *types.SendOptions {
	delay := int(d.config.PacingDelay / time.Millisecond)
	if delay <= 0 {
		return nil
	}
	return &types.SendOptions{Delay: delay, Presence: "composing"}
}
