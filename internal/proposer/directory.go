// Package proposer maps the free-text PROPOSER field of a bill to a row in
// the legislator directory.
package proposer

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/lawmate/billpipe/internal/assembly"
	"github.com/lawmate/billpipe/internal/storage/models"
	"github.com/lawmate/billpipe/pkg/logger"
)

const DefaultFallback = "기타"

// honorifics are stripped from the end of a name, ignoring case.
var honorifics = []string{"의원", "member"}

// jointSeparators split a joint proposal like "홍길동ㆍ김영희".
var jointSeparators = []string{"ㆍ", "·"}

type Store interface {
	ProposerIDByName(ctx context.Context, name string) (int64, bool, error)
	EnsureProposer(ctx context.Context, name string) (int64, error)
	InsertProposerIfAbsent(ctx context.Context, p *models.Proposer) (bool, error)
}

type Roster interface {
	FetchProposers(ctx context.Context, pageSize int) []assembly.ProposerRow
}

type Directory struct {
	store    Store
	roster   Roster
	fallback string
}

// NewDirectory returns a directory that resolves unknown names to fallback.
// roster may be nil when LoadRoster is not used.
func NewDirectory(store Store, roster Roster, fallback string) *Directory {
	if strings.TrimSpace(fallback) == "" {
		fallback = DefaultFallback
	}
	return &Directory{
		store:    store,
		roster:   roster,
		fallback: fallback,
	}
}

func (d *Directory) Fallback() string {
	return d.fallback
}

// DisplayName reduces a raw proposer field to the primary proposer's name:
// first whitespace token, cut at the first joint separator, honorific
// removed.
func DisplayName(raw string) string {
	fields := strings.Fields(raw)
	if len(fields) == 0 {
		return ""
	}

	name := fields[0]
	for _, sep := range jointSeparators {
		if i := strings.Index(name, sep); i >= 0 {
			name = name[:i]
		}
	}
	name = trimHonorific(name)

	return strings.TrimSpace(name)
}

func trimHonorific(name string) string {
	for _, h := range honorifics {
		if len(name) >= len(h) && strings.EqualFold(name[len(name)-len(h):], h) {
			return name[:len(name)-len(h)]
		}
	}
	return name
}

// Resolve returns the proposer id for raw and the display name to store on
// the bill. Names not in the directory map to the fallback row, which is
// created on first use. The display name is kept even when the fallback id
// is returned.
func (d *Directory) Resolve(ctx context.Context, raw string) (int64, string, error) {
	name := DisplayName(raw)

	if name != "" {
		id, ok, err := d.store.ProposerIDByName(ctx, name)
		if err != nil {
			return 0, name, fmt.Errorf("failed to resolve proposer: %w", err)
		}
		if ok {
			return id, name, nil
		}
	}

	logger.Debug("Proposer not in directory, using fallback",
		zap.String("name", name),
		zap.String("fallback", d.fallback),
	)

	id, ok, err := d.store.ProposerIDByName(ctx, d.fallback)
	if err != nil {
		return 0, name, fmt.Errorf("failed to resolve fallback proposer: %w", err)
	}
	if ok {
		return id, name, nil
	}

	id, err = d.store.EnsureProposer(ctx, d.fallback)
	if err != nil {
		return 0, name, fmt.Errorf("failed to create fallback proposer: %w", err)
	}
	logger.Info("Fallback proposer created", zap.String("name", d.fallback), zap.Int64("proposer_id", id))

	return id, name, nil
}

// LoadResult counts the outcome of a roster load.
type LoadResult struct {
	Fetched  int
	Inserted int
	Skipped  int
}

// LoadRoster fetches one page of legislators and stores each one whose name
// is not yet in the directory. Existing rows are never modified.
func (d *Directory) LoadRoster(ctx context.Context, pageSize int) (LoadResult, error) {
	var result LoadResult
	if d.roster == nil {
		return result, fmt.Errorf("no roster source configured")
	}

	rows := d.roster.FetchProposers(ctx, pageSize)
	result.Fetched = len(rows)
	if len(rows) == 0 {
		logger.Warn("Legislator roster is empty")
		return result, nil
	}

	for _, row := range rows {
		p := &models.Proposer{
			Name:     strings.TrimSpace(row.Name),
			BirthDay: strings.TrimSpace(row.BirthDay),
			Job:      strings.TrimSpace(row.Job),
			Party:    strings.TrimSpace(row.Party),
			District: strings.TrimSpace(row.District),
			Cmits:    strings.TrimSpace(row.Cmits),
			MemTitle: strings.TrimSpace(row.MemTitle),
		}
		if p.Name == "" {
			result.Skipped++
			continue
		}

		inserted, err := d.store.InsertProposerIfAbsent(ctx, p)
		if err != nil {
			return result, fmt.Errorf("failed to store proposer %q: %w", p.Name, err)
		}
		if !inserted {
			logger.Debug("Proposer already present", zap.String("name", p.Name))
			result.Skipped++
			continue
		}
		result.Inserted++
	}

	logger.Info("Legislator roster loaded",
		zap.Int("fetched", result.Fetched),
		zap.Int("inserted", result.Inserted),
		zap.Int("skipped", result.Skipped),
	)
	return result, nil
}
