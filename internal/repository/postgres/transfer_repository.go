package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/wb-go/wbf/dbpg"
	"github.com/wb-go/wbf/retry"
	"github.com/wb-go/wbf/zlog"
	"github.com/yokitheyo/imagetransfer/internal/domain"
)

const transferColumns = `id, source_url, blob_name, include_original, resize_specs, uris,
		status, error_message, created_at, updated_at, completed_at`

type transferRepository struct {
	db       *dbpg.DB
	strategy retry.Strategy
}

func NewTransferRepository(db *dbpg.DB, strategy retry.Strategy) domain.TransferRepository {
	return &transferRepository{
		db:       db,
		strategy: strategy,
	}
}

func (r *transferRepository) Create(ctx context.Context, t *domain.Transfer) error {
	specs, uris, err := marshalLists(t)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO transfers (` + transferColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err = r.db.ExecWithRetry(ctx, r.strategy, query,
		t.ID,
		t.SourceURL,
		t.BlobName,
		t.IncludeOriginal,
		specs,
		uris,
		t.Status,
		nullString(t.ErrorMessage),
		t.CreatedAt,
		t.UpdatedAt,
		t.CompletedAt,
	)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("transfer_id", t.ID).Msg("failed to create transfer")
		return fmt.Errorf("create transfer: %w", err)
	}

	zlog.Logger.Info().Str("transfer_id", t.ID).Msg("transfer created successfully")
	return nil
}

func (r *transferRepository) FindByID(ctx context.Context, id string) (*domain.Transfer, error) {
	if !validID(id) {
		return nil, domain.ErrTransferNotFound
	}
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`

	row := r.db.Master.QueryRowContext(ctx, query, id)
	t, err := scanTransfer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrTransferNotFound
	}
	if err != nil {
		zlog.Logger.Error().Err(err).Str("transfer_id", id).Msg("failed to find transfer")
		return nil, fmt.Errorf("find transfer: %w", err)
	}
	return t, nil
}

func (r *transferRepository) Update(ctx context.Context, t *domain.Transfer) error {
	if !validID(t.ID) {
		return domain.ErrTransferNotFound
	}
	specs, uris, err := marshalLists(t)
	if err != nil {
		return err
	}

	query := `
		UPDATE transfers
		SET source_url = $2,
		    blob_name = $3,
		    include_original = $4,
		    resize_specs = $5,
		    uris = $6,
		    status = $7,
		    error_message = $8,
		    completed_at = $9,
		    updated_at = NOW()
		WHERE id = $1
	`

	result, err := r.db.ExecWithRetry(ctx, r.strategy, query,
		t.ID,
		t.SourceURL,
		t.BlobName,
		t.IncludeOriginal,
		specs,
		uris,
		t.Status,
		nullString(t.ErrorMessage),
		t.CompletedAt,
	)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("transfer_id", t.ID).Msg("failed to update transfer")
		return fmt.Errorf("update transfer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTransferNotFound
	}

	zlog.Logger.Info().Str("transfer_id", t.ID).Str("status", string(t.Status)).Msg("transfer updated successfully")
	return nil
}

func (r *transferRepository) Delete(ctx context.Context, id string) error {
	if !validID(id) {
		return domain.ErrTransferNotFound
	}
	query := `DELETE FROM transfers WHERE id = $1`

	result, err := r.db.ExecWithRetry(ctx, r.strategy, query, id)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("transfer_id", id).Msg("failed to delete transfer")
		return fmt.Errorf("delete transfer: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rows == 0 {
		return domain.ErrTransferNotFound
	}

	zlog.Logger.Info().Str("transfer_id", id).Msg("transfer deleted successfully")
	return nil
}

func (r *transferRepository) FindByStatus(ctx context.Context, status domain.TransferStatus, limit, offset int) ([]*domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, status, limit, offset)
	if err != nil {
		zlog.Logger.Error().Err(err).Str("status", string(status)).Msg("failed to find transfers by status")
		return nil, fmt.Errorf("find transfers by status: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

func (r *transferRepository) List(ctx context.Context, limit, offset int) ([]*domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`

	rows, err := r.db.QueryWithRetry(ctx, r.strategy, query, limit, offset)
	if err != nil {
		zlog.Logger.Error().Err(err).Msg("failed to list transfers")
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	return scanTransfers(rows)
}

// URIReferenced reports whether a transfer other than excludeID lists uri
// among its stored blobs.
func (r *transferRepository) URIReferenced(ctx context.Context, uri, excludeID string) (bool, error) {
	ref, err := json.Marshal([]string{uri})
	if err != nil {
		return false, fmt.Errorf("encode uri: %w", err)
	}

	query := `
		SELECT EXISTS (
			SELECT 1 FROM transfers
			WHERE id::text <> $1 AND uris @> $2::jsonb
		)
	`

	var referenced bool
	if err := r.db.Master.QueryRowContext(ctx, query, excludeID, ref).Scan(&referenced); err != nil {
		zlog.Logger.Error().Err(err).Str("uri", uri).Msg("failed to look up uri references")
		return false, fmt.Errorf("find uri references: %w", err)
	}
	return referenced, nil
}

// validID rejects ids the UUID primary key could never hold, so they read
// as missing instead of failing the cast in Postgres.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row rowScanner) (*domain.Transfer, error) {
	var t domain.Transfer
	var specs, uris []byte
	var errorMsg sql.NullString
	var completedAt sql.NullTime

	err := row.Scan(
		&t.ID,
		&t.SourceURL,
		&t.BlobName,
		&t.IncludeOriginal,
		&specs,
		&uris,
		&t.Status,
		&errorMsg,
		&t.CreatedAt,
		&t.UpdatedAt,
		&completedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(specs, &t.ResizeSpecs); err != nil {
		return nil, fmt.Errorf("decode resize_specs of %s: %w", t.ID, err)
	}
	if len(uris) > 0 {
		if err := json.Unmarshal(uris, &t.URIs); err != nil {
			return nil, fmt.Errorf("decode uris of %s: %w", t.ID, err)
		}
	}
	if errorMsg.Valid {
		t.ErrorMessage = errorMsg.String
	}
	if completedAt.Valid {
		t.CompletedAt = &completedAt.Time
	}
	return &t, nil
}

func scanTransfers(rows *sql.Rows) ([]*domain.Transfer, error) {
	transfers := []*domain.Transfer{}
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration: %w", err)
	}
	return transfers, nil
}

func marshalLists(t *domain.Transfer) ([]byte, []byte, error) {
	specs := t.ResizeSpecs
	if specs == nil {
		specs = []domain.ResizeSpec{}
	}
	specsJSON, err := json.Marshal(specs)
	if err != nil {
		return nil, nil, fmt.Errorf("encode resize_specs: %w", err)
	}

	uris := t.URIs
	if uris == nil {
		uris = []string{}
	}
	urisJSON, err := json.Marshal(uris)
	if err != nil {
		return nil, nil, fmt.Errorf("encode uris: %w", err)
	}
	return specsJSON, urisJSON, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
