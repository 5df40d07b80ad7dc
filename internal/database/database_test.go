package database

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/smartflowafrica/smartflow-sub001/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *Database {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := New(dbPath)
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, db.Close())
	})
	return db
}

func TestNewInvalidPath(t *testing.T) {
	_, err := New("")
	assert.Error(t, err)
}

func TestSaveOutboundMessage(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	msg := &models.OutboundMessage{
		TenantID:  "tenant-1",
		Recipient: "2348012345678",
		Content:   "Your order has shipped",
		Category:  models.CategoryNotification,
		HandledBy: models.HandledByBot,
		Status:    models.MessageStatusCompleted,
		Metadata:  map[string]string{"providerMessageId": "BAE5F1C2"},
	}

	require.NoError(t, db.SaveOutboundMessage(ctx, msg))
	assert.NotZero(t, msg.ID)

	saved, err := db.GetOutboundMessagesByRecipient(ctx, "2348012345678", 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "tenant-1", saved[0].TenantID)
	assert.Equal(t, "2348012345678", saved[0].Recipient)
	assert.Equal(t, models.MessageStatusCompleted, saved[0].Status)
	assert.Equal(t, "BAE5F1C2", saved[0].Metadata["providerMessageId"])
	assert.False(t, saved[0].CreatedAt.IsZero())
}

func TestSaveOutboundMessageFailedWithErrorMetadata(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	msg := &models.OutboundMessage{
		TenantID:  "tenant-1",
		Recipient: "2348012345678",
		Content:   "Hello",
		Category:  models.CategoryManualReply,
		HandledBy: models.HandledByBot,
		Status:    models.MessageStatusFailed,
		Metadata:  map[string]string{"error": "gateway timeout"},
	}
	require.NoError(t, db.SaveOutboundMessage(ctx, msg))

	saved, err := db.GetOutboundMessagesByRecipient(ctx, "2348012345678", 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, models.MessageStatusFailed, saved[0].Status)
	assert.Equal(t, "gateway timeout", saved[0].Metadata["error"])
}

func TestCountOutboundMessages(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, db.SaveOutboundMessage(ctx, &models.OutboundMessage{
			TenantID:  "tenant-1",
			Recipient: "2348012345678",
			Content:   "msg",
			Category:  models.CategoryNotification,
			HandledBy: models.HandledByBot,
			Status:    models.MessageStatusCompleted,
		}))
	}
	require.NoError(t, db.SaveOutboundMessage(ctx, &models.OutboundMessage{
		TenantID:  "tenant-1",
		Recipient: "2348012345678",
		Content:   "msg",
		Category:  models.CategoryNotification,
		HandledBy: models.HandledByBot,
		Status:    models.MessageStatusFailed,
	}))

	completed, err := db.CountOutboundMessages(ctx, "2348012345678", models.MessageStatusCompleted)
	require.NoError(t, err)
	assert.Equal(t, 3, completed)

	failed, err := db.CountOutboundMessages(ctx, "2348012345678", models.MessageStatusFailed)
	require.NoError(t, err)
	assert.Equal(t, 1, failed)
}

func TestGetOutboundMessagesByRecipientOrdering(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	for _, content := range []string{"first", "second", "third"} {
		require.NoError(t, db.SaveOutboundMessage(ctx, &models.OutboundMessage{
			TenantID:  "tenant-1",
			Recipient: "2348012345678",
			Content:   content,
			Category:  models.CategoryNotification,
			HandledBy: models.HandledByBot,
			Status:    models.MessageStatusCompleted,
		}))
	}

	saved, err := db.GetOutboundMessagesByRecipient(ctx, "2348012345678", 2)
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, "third", saved[0].Content)
	assert.Equal(t, "second", saved[1].Content)
}

func TestSaveSystemLog(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	tenantID := "tenant-1"
	entry := &models.SystemLog{
		Level:    models.LogLevelError,
		Message:  "message dispatch failed",
		TenantID: &tenantID,
		Metadata: map[string]string{"recipient": "2348012345678", "error": "timeout"},
	}

	require.NoError(t, db.SaveSystemLog(ctx, entry))
	assert.NotEmpty(t, entry.ID)

	logs, err := db.GetRecentSystemLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.LogLevelError, logs[0].Level)
	require.NotNil(t, logs[0].TenantID)
	assert.Equal(t, "tenant-1", *logs[0].TenantID)
	assert.Equal(t, "timeout", logs[0].Metadata["error"])
}

func TestSaveSystemLogWithoutTenant(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveSystemLog(ctx, &models.SystemLog{
		Level:   models.LogLevelWarn,
		Message: "fleet poll degraded",
	}))

	logs, err := db.GetRecentSystemLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Nil(t, logs[0].TenantID)
}

func TestRecipientEncryptionRoundTrip(t *testing.T) {
	t.Setenv("SMARTFLOW_ENABLE_ENCRYPTION", "true")
	t.Setenv("SMARTFLOW_ENCRYPTION_SECRET", "0123456789abcdef0123456789abcdef")

	db := setupTestDB(t)
	ctx := context.Background()

	require.NoError(t, db.SaveOutboundMessage(ctx, &models.OutboundMessage{
		TenantID:  "tenant-1",
		Recipient: "2348012345678",
		Content:   "secret-bound",
		Category:  models.CategoryNotification,
		HandledBy: models.HandledByBot,
		Status:    models.MessageStatusCompleted,
	}))

	// Lookup by plaintext recipient still works because lookup encryption
	// is deterministic.
	saved, err := db.GetOutboundMessagesByRecipient(ctx, "2348012345678", 10)
	require.NoError(t, err)
	require.Len(t, saved, 1)
	assert.Equal(t, "2348012345678", saved[0].Recipient)
}
