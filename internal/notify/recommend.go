// Package notify tells the recommendation service that new bills exist.
package notify

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/lawmate/billpipe/pkg/logger"
)

type RecommendNotifier struct {
	url     string
	timeout time.Duration
}

// NewRecommendNotifier returns nil when url is empty.
func NewRecommendNotifier(url string, timeout time.Duration) *RecommendNotifier {
	if strings.TrimSpace(url) == "" {
		return nil
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &RecommendNotifier{url: url, timeout: timeout}
}

// RefreshRecommendations POSTs an empty body to the refresh endpoint. The
// response body is ignored.
func (n *RecommendNotifier) RefreshRecommendations(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	timeout := n.timeout
	if deadline, ok := ctx.Deadline(); ok {
		if left := time.Until(deadline); left < timeout {
			timeout = left
		}
	}

	agent := fiber.Post(n.url).Timeout(timeout)
	if err := agent.Parse(); err != nil {
		return fmt.Errorf("failed to build refresh request: %w", err)
	}

	code, _, errs := agent.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("failed to call recommendation refresh: %w", errors.Join(errs...))
	}
	if code < 200 || code >= 300 {
		return fmt.Errorf("recommendation refresh returned status %d", code)
	}

	logger.Info("Recommendation refresh requested", zap.String("url", n.url), zap.Int("status", code))
	return nil
}
