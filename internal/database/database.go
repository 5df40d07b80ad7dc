// Package database is the append-only persistence store for dispatch audit
// records and operational system logs.
package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "embed"

	apperrors "github.com/smartflowafrica/smartflow-sub001/internal/errors"
	"github.com/smartflowafrica/smartflow-sub001/internal/models"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schema string

type Database struct {
	db        *sql.DB
	encryptor *encryptor
}

func New(dbPath string) (*Database, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("invalid database path")
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to ping database: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize schema: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	enc, err := NewEncryptor()
	if err != nil {
		if closeErr := db.Close(); closeErr != nil {
			return nil, fmt.Errorf("failed to initialize encryptor: %w (close error: %v)", err, closeErr)
		}
		return nil, fmt.Errorf("failed to initialize encryptor: %w", err)
	}

	return &Database{db: db, encryptor: enc}, nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

// SaveOutboundMessage appends one audit record. Records are immutable after
// insert; there is no update path.
func (d *Database) SaveOutboundMessage(ctx context.Context, msg *models.OutboundMessage) error {
	encryptedRecipient, err := d.encryptor.EncryptForLookup(msg.Recipient)
	if err != nil {
		return apperrors.NewDatabaseError("encrypt recipient", err)
	}

	metadata, err := marshalMetadata(msg.Metadata)
	if err != nil {
		return apperrors.NewDatabaseError("marshal metadata", err)
	}

	query := `
		INSERT INTO outbound_messages (
			tenant_id, recipient, content, category, handled_by, status, metadata
		) VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := d.db.ExecContext(ctx, query,
		msg.TenantID,
		encryptedRecipient,
		msg.Content,
		msg.Category,
		msg.HandledBy,
		msg.Status,
		metadata,
	)
	if err != nil {
		return apperrors.NewDatabaseError("insert outbound message", err)
	}

	if id, err := result.LastInsertId(); err == nil {
		msg.ID = id
	}
	return nil
}

// SaveSystemLog appends one operational log entry. Callers on the dispatch
// failure path treat this as best-effort.
func (d *Database) SaveSystemLog(ctx context.Context, entry *models.SystemLog) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}

	metadata, err := marshalMetadata(entry.Metadata)
	if err != nil {
		return apperrors.NewDatabaseError("marshal metadata", err)
	}

	query := `
		INSERT INTO system_logs (id, level, message, tenant_id, metadata)
		VALUES (?, ?, ?, ?, ?)
	`

	if _, err := d.db.ExecContext(ctx, query,
		entry.ID,
		entry.Level,
		entry.Message,
		entry.TenantID,
		metadata,
	); err != nil {
		return apperrors.NewDatabaseError("insert system log", err)
	}
	return nil
}

// GetOutboundMessagesByRecipient returns the most recent audit records for
// a canonical recipient address, newest first. Used by ops tooling and
// tests; the dispatch path itself never reads.
func (d *Database) GetOutboundMessagesByRecipient(ctx context.Context, recipient string, limit int) ([]models.OutboundMessage, error) {
	encryptedRecipient, err := d.encryptor.EncryptForLookup(recipient)
	if err != nil {
		return nil, apperrors.NewDatabaseError("encrypt recipient", err)
	}

	query := `
		SELECT id, tenant_id, recipient, content, category, handled_by, status, metadata, created_at
		FROM outbound_messages
		WHERE recipient = ?
		ORDER BY id DESC
		LIMIT ?
	`

	rows, err := d.db.QueryContext(ctx, query, encryptedRecipient, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("query outbound messages", err)
	}
	defer rows.Close()

	var messages []models.OutboundMessage
	for rows.Next() {
		msg, err := d.scanOutboundMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, *msg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("scan outbound messages", err)
	}
	return messages, nil
}

// CountOutboundMessages returns the number of audit records for a recipient
// with the given status.
func (d *Database) CountOutboundMessages(ctx context.Context, recipient string, status models.MessageStatus) (int, error) {
	encryptedRecipient, err := d.encryptor.EncryptForLookup(recipient)
	if err != nil {
		return 0, apperrors.NewDatabaseError("encrypt recipient", err)
	}

	var count int
	query := `SELECT COUNT(*) FROM outbound_messages WHERE recipient = ? AND status = ?`
	if err := d.db.QueryRowContext(ctx, query, encryptedRecipient, status).Scan(&count); err != nil {
		return 0, apperrors.NewDatabaseError("count outbound messages", err)
	}
	return count, nil
}

// GetRecentSystemLogs returns the newest operational log entries.
func (d *Database) GetRecentSystemLogs(ctx context.Context, limit int) ([]models.SystemLog, error) {
	query := `
		SELECT id, level, message, tenant_id, metadata, created_at
		FROM system_logs
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`

	rows, err := d.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, apperrors.NewDatabaseError("query system logs", err)
	}
	defer rows.Close()

	var entries []models.SystemLog
	for rows.Next() {
		var entry models.SystemLog
		var metadata string
		if err := rows.Scan(&entry.ID, &entry.Level, &entry.Message, &entry.TenantID, &metadata, &entry.CreatedAt); err != nil {
			return nil, apperrors.NewDatabaseError("scan system log", err)
		}
		if err := json.Unmarshal([]byte(metadata), &entry.Metadata); err != nil {
			return nil, apperrors.NewDatabaseError("unmarshal metadata", err)
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, apperrors.NewDatabaseError("scan system logs", err)
	}
	return entries, nil
}

func (d *Database) scanOutboundMessage(rows *sql.Rows) (*models.OutboundMessage, error) {
	var msg models.OutboundMessage
	var encryptedRecipient, metadata string

	if err := rows.Scan(
		&msg.ID,
		&msg.TenantID,
		&encryptedRecipient,
		&msg.Content,
		&msg.Category,
		&msg.HandledBy,
		&msg.Status,
		&metadata,
		&msg.CreatedAt,
	); err != nil {
		return nil, apperrors.NewDatabaseError("scan outbound message", err)
	}

	recipient, err := d.encryptor.Decrypt(encryptedRecipient)
	if err != nil {
		return nil, apperrors.NewDatabaseError("decrypt recipient", err)
	}
	msg.Recipient = recipient

	if err := json.Unmarshal([]byte(metadata), &msg.Metadata); err != nil {
		return nil, apperrors.NewDatabaseError("unmarshal metadata", err)
	}
	return &msg, nil
}

func marshalMetadata(metadata map[string]string) (string, error) {
	if metadata == nil {
		return "{}", nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
