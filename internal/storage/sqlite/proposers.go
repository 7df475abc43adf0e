package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lawmate/billpipe/internal/storage/models"
)

// ProposerIDByName looks up a proposer by exact name.
func (c *Client) ProposerIDByName(ctx context.Context, name string) (int64, bool, error) {
	var id int64
	err := c.db.QueryRowContext(ctx, `SELECT proposer_id FROM bill_proposers WHERE proposer_name = ?`, name).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to look up proposer: %w", err)
	}
	return id, true, nil
}

// EnsureProposer returns the id for name, inserting a bare row first if
// none exists. The insert is a no-op on a name conflict, so repeated calls
// never produce a second row.
func (c *Client) EnsureProposer(ctx context.Context, name string) (int64, error) {
	_, err := c.db.ExecContext(ctx,
		`INSERT INTO bill_proposers (proposer_name) VALUES (?) ON CONFLICT(proposer_name) DO NOTHING`,
		name,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert proposer: %w", err)
	}

	id, ok, err := c.ProposerIDByName(ctx, name)
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("proposer %q missing after insert", name)
	}
	return id, nil
}

// InsertProposerIfAbsent stores a legislator with biographical fields and
// reports false when the name is already present.
func (c *Client) InsertProposerIfAbsent(ctx context.Context, p *models.Proposer) (bool, error) {
	query := `
		INSERT INTO bill_proposers (proposer_name, bth, job, poly, orig, cmits, mem_title)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(proposer_name) DO NOTHING
	`

	var bth any
	if p.BirthDay != "" {
		bth = p.BirthDay
	}

	res, err := c.db.ExecContext(ctx, query,
		p.Name,
		bth,
		p.Job,
		p.Party,
		p.District,
		p.Cmits,
		p.MemTitle,
	)
	if err != nil {
		return false, fmt.Errorf("failed to insert proposer: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to insert proposer: %w", err)
	}
	return n > 0, nil
}

func (c *Client) CountProposersNamed(ctx context.Context, name string) (int, error) {
	var n int
	err := c.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM bill_proposers WHERE proposer_name = ?`, name).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count proposers: %w", err)
	}
	return n, nil
}
