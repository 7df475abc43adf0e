package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lawmate/billpipe/internal/storage/models"
)

func (c *Client) BillStatusExists(ctx context.Context, billID int64) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx, `SELECT 1 FROM bill_statuses WHERE bill_id = ?`, billID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check bill status: %w", err)
	}
	return true, nil
}

// CreateBillStatus inserts a status row with every counter at zero. If the
// row already exists only its link is rewritten.
func (c *Client) CreateBillStatus(ctx context.Context, billID, proposerID int64, link string) error {
	query := `
		INSERT INTO bill_statuses (bill_id, proposer_id, bill_count, "yes", "no", bookmark_count, link)
		VALUES (?, ?, 0, 0, 0, 0, ?)
		ON CONFLICT(bill_id) DO UPDATE SET link = excluded.link
	`
	if _, err := c.db.ExecContext(ctx, query, billID, proposerID, link); err != nil {
		return fmt.Errorf("failed to create bill status: %w", err)
	}
	return nil
}

// UpdateBillStatusLink rewrites only the link column.
func (c *Client) UpdateBillStatusLink(ctx context.Context, billID int64, link string) error {
	if _, err := c.db.ExecContext(ctx, `UPDATE bill_statuses SET link = ? WHERE bill_id = ?`, link, billID); err != nil {
		return fmt.Errorf("failed to update bill status link: %w", err)
	}
	return nil
}

func (c *Client) GetBillStatus(ctx context.Context, billID int64) (*models.BillStatus, error) {
	query := `
		SELECT bill_id, proposer_id, bill_count, "yes", "no", bookmark_count, link
		FROM bill_statuses WHERE bill_id = ?
	`

	var s models.BillStatus
	err := c.db.QueryRowContext(ctx, query, billID).Scan(
		&s.BillID,
		&s.ProposerID,
		&s.BillCount,
		&s.Yes,
		&s.No,
		&s.BookmarkCount,
		&s.Link,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bill status: %w", err)
	}
	return &s, nil
}

// CountBillStatuses is used by tests and the readiness report.
func (c *Client) CountBillStatuses(ctx context.Context) (int64, error) {
	var n int64
	if err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bill_statuses`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count bill statuses: %w", err)
	}
	return n, nil
}
