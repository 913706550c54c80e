package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"medstock/internal/core/appctx"
	"medstock/internal/core/id"
)

// CompressionAlgo names the codec applied to a stored audit payload.
type CompressionAlgo string

const (
	CompressionNone CompressionAlgo = "none"
	CompressionZstd CompressionAlgo = "zstd"
)

// AuditEntry is one recorded workflow action. Payloads above the
// threshold are stored zstd-compressed.
type AuditEntry struct {
	ID             id.ID           `db:"id"`
	EntityType     string          `db:"entity_type"`
	EntityID       id.ID           `db:"entity_id"`
	Action         string          `db:"action"`
	UserID         string          `db:"user_id"`
	Data           json.RawMessage `db:"data"`
	DataCompressed []byte          `db:"data_compressed"`
	Compression    CompressionAlgo `db:"compression_algo"`
	CreatedAt      time.Time       `db:"created_at"`
}

// AuditService writes the audit trail. Record participates in the
// caller's transaction, so a rolled back workflow leaves no audit row.
type AuditService struct {
	txManager         *TxManager
	encoder           *zstd.Encoder
	decoder           *zstd.Decoder
	compressThreshold int
}

func NewAuditService(txManager *TxManager) (*AuditService, error) {
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil)
	if err != nil {
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &AuditService{
		txManager:         txManager,
		encoder:           encoder,
		decoder:           decoder,
		compressThreshold: 10 * 1024,
	}, nil
}

// Record logs an action against an entity. The actor comes from the
// request context.
func (s *AuditService) Record(ctx context.Context, action, entityType string, entityID id.ID, data map[string]any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal audit data: %w", err)
	}

	entry := AuditEntry{
		ID:          id.New(),
		EntityType:  entityType,
		EntityID:    entityID,
		Action:      action,
		UserID:      appctx.GetActorID(ctx),
		Data:        payload,
		Compression: CompressionNone,
		CreatedAt:   time.Now().UTC(),
	}
	if len(payload) > s.compressThreshold {
		entry.DataCompressed = s.encoder.EncodeAll(payload, nil)
		entry.Data = nil
		entry.Compression = CompressionZstd
	}

	const sql = `
		INSERT INTO sys_audit (
			id, entity_type, entity_id, action, user_id,
			data, data_compressed, compression_algo, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err = s.txManager.GetQuerier(ctx).Exec(ctx, sql,
		entry.ID, entry.EntityType, entry.EntityID, entry.Action, entry.UserID,
		entry.Data, entry.DataCompressed, entry.Compression, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// ListByEntity returns the trail for one entity, newest first, with
// compressed payloads expanded.
func (s *AuditService) ListByEntity(ctx context.Context, entityType string, entityID id.ID, limit int) ([]AuditEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const sql = `
		SELECT id, entity_type, entity_id, action, user_id,
		       data, data_compressed, compression_algo, created_at
		FROM sys_audit
		WHERE entity_type = $1 AND entity_id = $2
		ORDER BY created_at DESC
		LIMIT $3
	`
	rows, err := s.txManager.GetQuerier(ctx).Query(ctx, sql, entityType, entityID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []AuditEntry
	for rows.Next() {
		var e AuditEntry
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.Action, &e.UserID,
			&e.Data, &e.DataCompressed, &e.Compression, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		if e.Compression == CompressionZstd {
			decoded, err := s.decoder.DecodeAll(e.DataCompressed, nil)
			if err != nil {
				return nil, fmt.Errorf("decompress audit data: %w", err)
			}
			e.Data = decoded
			e.DataCompressed = nil
			e.Compression = CompressionNone
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
