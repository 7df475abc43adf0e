// Package linksync keeps one bill_statuses row per bill with a link to the
// bill's page on the legislative information site.
package linksync

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lawmate/billpipe/internal/metrics"
	"github.com/lawmate/billpipe/internal/storage/models"
	"github.com/lawmate/billpipe/pkg/logger"
)

const DefaultLinkTemplate = "https://likms.assembly.go.kr/bill/billDetail.do?billId=%s"

type Store interface {
	ListBillRefs(ctx context.Context) ([]models.BillRef, error)
	BillStatusExists(ctx context.Context, billID int64) (bool, error)
	CreateBillStatus(ctx context.Context, billID, proposerID int64, link string) error
	UpdateBillStatusLink(ctx context.Context, billID int64, link string) error
}

type Result struct {
	Created int
	Updated int
}

type Synchronizer struct {
	store    Store
	template string

	// mu serializes Sync so concurrent callers never race on the same rows.
	mu sync.Mutex
}

func NewSynchronizer(store Store, template string) *Synchronizer {
	if strings.TrimSpace(template) == "" {
		template = DefaultLinkTemplate
	}
	return &Synchronizer{store: store, template: template}
}

// Link derives the detail link for an external bill id.
func (s *Synchronizer) Link(apiID string) string {
	return fmt.Sprintf(s.template, apiID)
}

// Sync walks every bill. Missing status rows are created with zeroed
// counters; existing rows only get their link rewritten. Counters are never
// touched here.
func (s *Synchronizer) Sync(ctx context.Context) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result Result

	refs, err := s.store.ListBillRefs(ctx)
	if err != nil {
		return result, fmt.Errorf("failed to list bills: %w", err)
	}

	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		link := s.Link(ref.APIID)

		exists, err := s.store.BillStatusExists(ctx, ref.BillID)
		if err != nil {
			return result, err
		}

		if exists {
			if err := s.store.UpdateBillStatusLink(ctx, ref.BillID, link); err != nil {
				return result, err
			}
			metrics.StatusLinks.WithLabelValues("updated").Inc()
			result.Updated++
			continue
		}

		if err := s.store.CreateBillStatus(ctx, ref.BillID, ref.ProposerID, link); err != nil {
			return result, err
		}
		metrics.StatusLinks.WithLabelValues("created").Inc()
		result.Created++
	}

	logger.Info("Status links synchronized",
		zap.Int("bills", len(refs)),
		zap.Int("created", result.Created),
		zap.Int("updated", result.Updated),
	)
	return result, nil
}
