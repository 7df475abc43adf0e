package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/lawmate/billpipe/internal/storage/models"
	"github.com/lawmate/billpipe/pkg/logger"
)

func (c *Client) BillExists(ctx context.Context, apiID string) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM bills WHERE api_id = ?`, apiID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check bill existence: %w", err)
	}
	return true, nil
}

// InsertBill writes a fully enriched bill. embeddingLiteral is handed to the
// store's string_to_vector function as-is. If the api_id already exists the
// enrichment columns are left alone and only the progress columns move.
func (c *Client) InsertBill(ctx context.Context, bill *models.Bill, embeddingLiteral string) (int64, error) {
	query := `
		INSERT INTO bills (
			api_id, bill_number, bill_title, bill_proposer, proposer_id,
			committee, bill_status, bill_date,
			detail, summary, prediction, term, embedding,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, string_to_vector(?), ?, ?)
		ON CONFLICT(api_id) DO UPDATE SET
			bill_status = excluded.bill_status,
			bill_date = excluded.bill_date,
			committee = excluded.committee,
			updated_at = excluded.updated_at
		RETURNING bill_id
	`

	now := time.Now().Unix()

	var id int64
	err := c.db.QueryRowContext(
		ctx,
		query,
		bill.APIID,
		bill.BillNumber,
		bill.BillTitle,
		bill.BillProposer,
		bill.ProposerID,
		bill.Committee,
		bill.BillStatus,
		bill.BillDate,
		bill.Detail,
		bill.Summary,
		bill.Prediction,
		bill.Term,
		embeddingLiteral,
		now,
		now,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to insert bill: %w", err)
	}

	bill.ID = id
	logger.Debug("Bill inserted", zap.String("api_id", bill.APIID), zap.Int64("bill_id", id))
	return id, nil
}

// UpdateBillProgress moves status, date and committee of an existing bill.
// It reports whether a row matched.
func (c *Client) UpdateBillProgress(ctx context.Context, apiID string, progress models.BillProgress) (bool, error) {
	query := `
		UPDATE bills
		SET bill_status = ?,
			bill_date = ?,
			committee = ?,
			updated_at = ?
		WHERE api_id = ?
	`

	res, err := c.db.ExecContext(
		ctx,
		query,
		progress.BillStatus,
		progress.BillDate,
		progress.Committee,
		time.Now().Unix(),
		apiID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update bill progress: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to update bill progress: %w", err)
	}
	return n > 0, nil
}

func (c *Client) GetBill(ctx context.Context, apiID string) (*models.Bill, error) {
	query := `
		SELECT bill_id, api_id, bill_number, bill_title, bill_proposer, proposer_id,
			committee, bill_status, bill_date, detail, summary, prediction, term,
			embedding, created_at, updated_at
		FROM bills WHERE api_id = ?
	`

	var (
		bill                 models.Bill
		detail, summary      sql.NullString
		prediction, term     sql.NullString
		embedding            []byte
		createdAt, updatedAt int64
	)

	err := c.db.QueryRowContext(ctx, query, apiID).Scan(
		&bill.ID,
		&bill.APIID,
		&bill.BillNumber,
		&bill.BillTitle,
		&bill.BillProposer,
		&bill.ProposerID,
		&bill.Committee,
		&bill.BillStatus,
		&bill.BillDate,
		&detail,
		&summary,
		&prediction,
		&term,
		&embedding,
		&createdAt,
		&updatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill: %w", err)
	}

	bill.Detail = nullable(detail)
	bill.Summary = nullable(summary)
	bill.Prediction = nullable(prediction)
	bill.Term = nullable(term)
	if embedding != nil {
		bill.Embedding, err = decodeVector(embedding)
		if err != nil {
			return nil, fmt.Errorf("failed to decode embedding: %w", err)
		}
	}
	bill.CreatedAt = time.Unix(createdAt, 0)
	bill.UpdatedAt = time.Unix(updatedAt, 0)

	return &bill, nil
}

func (c *Client) ListBillRefs(ctx context.Context) ([]models.BillRef, error) {
	rows, err := c.db.QueryContext(ctx, `SELECT bill_id, proposer_id, api_id FROM bills ORDER BY bill_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list bills: %w", err)
	}
	defer rows.Close()

	var refs []models.BillRef
	for rows.Next() {
		var r models.BillRef
		if err := rows.Scan(&r.BillID, &r.ProposerID, &r.APIID); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		refs = append(refs, r)
	}

	return refs, rows.Err()
}

func (c *Client) CountBills(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bills`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bills: %w", err)
	}
	return n, nil
}

func nullable(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
