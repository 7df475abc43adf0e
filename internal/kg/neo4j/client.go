// Package neo4j mirrors bills into a property graph:
// (:Proposer)-[:PROPOSED]->(:Bill)-[:REFERRED_TO]->(:Committee).
package neo4j

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/lawmate/billpipe/internal/storage/models"
	"github.com/lawmate/billpipe/pkg/circuitbreaker"
	"github.com/lawmate/billpipe/pkg/logger"
	"github.com/lawmate/billpipe/pkg/retry"
)

const operationTimeout = 10 * time.Second

const publishBillQuery = `
	MERGE (b:Bill {api_id: $api_id})
	SET b.bill_number = $bill_number,
	    b.title = $title,
	    b.status = $status,
	    b.date = $date,
	    b.updated_at = timestamp()
	MERGE (p:Proposer {name: $proposer})
	MERGE (p)-[:PROPOSED]->(b)
	MERGE (c:Committee {name: $committee})
	MERGE (b)-[:REFERRED_TO]->(c)
`

// A bill is referred to one committee at a time.
const publishProgressQuery = `
	MATCH (b:Bill {api_id: $api_id})
	SET b.status = $status,
	    b.date = $date,
	    b.updated_at = timestamp()
	WITH b
	OPTIONAL MATCH (b)-[r:REFERRED_TO]->(old:Committee)
	WHERE old.name <> $committee
	DELETE r
	WITH DISTINCT b
	MERGE (c:Committee {name: $committee})
	MERGE (b)-[:REFERRED_TO]->(c)
`

var constraintQueries = []string{
	`CREATE CONSTRAINT bill_api_id IF NOT EXISTS FOR (b:Bill) REQUIRE b.api_id IS UNIQUE`,
	`CREATE CONSTRAINT proposer_name IF NOT EXISTS FOR (p:Proposer) REQUIRE p.name IS UNIQUE`,
	`CREATE CONSTRAINT committee_name IF NOT EXISTS FOR (c:Committee) REQUIRE c.name IS UNIQUE`,
}

type Options struct {
	URI      string
	Username string
	Password string
	Database string
}

// execFunc runs one write statement.
type execFunc func(ctx context.Context, query string, params map[string]any) error

type Client struct {
	driver      neo4j.DriverWithContext
	exec        execFunc
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

func NewClient(ctx context.Context, opts Options) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		opts.URI,
		neo4j.BasicAuth(opts.Username, opts.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	database := opts.Database
	if database == "" {
		database = "neo4j"
	}

	c := newClient(func(ctx context.Context, query string, params map[string]any) error {
		_, err := neo4j.ExecuteQuery(ctx, driver, query, params,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(database),
		)
		return err
	})
	c.driver = driver

	logger.Info("Neo4j client initialized", zap.String("uri", opts.URI), zap.String("database", database))
	return c, nil
}

func newClient(exec execFunc) *Client {
	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	return &Client{
		exec:        exec,
		cb:          cb,
		retryConfig: retryConfig,
	}
}

func (c *Client) Close(ctx context.Context) error {
	if c.driver == nil {
		return nil
	}
	return c.driver.Close(ctx)
}

func (c *Client) Name() string {
	return "neo4j"
}

// EnsureConstraints creates the uniqueness constraints MERGE relies on.
func (c *Client) EnsureConstraints(ctx context.Context) error {
	for _, q := range constraintQueries {
		if err := c.executeWithRetry(ctx, q, nil); err != nil {
			return fmt.Errorf("failed to create constraint: %w", err)
		}
	}
	return nil
}

// PublishBill merges the bill, its proposer and its committee. All writes
// are MERGEs, so a retried or repeated publish converges.
func (c *Client) PublishBill(ctx context.Context, bill models.Bill) error {
	if err := c.executeWithRetry(ctx, publishBillQuery, billParams(bill)); err != nil {
		return fmt.Errorf("failed to publish bill: %w", err)
	}

	logger.Debug("Bill mirrored to graph",
		zap.String("api_id", bill.APIID),
		zap.String("proposer", bill.BillProposer),
		zap.String("committee", bill.Committee),
	)
	return nil
}

// PublishProgress moves an existing bill's status, date and committee. A
// bill missing from the graph is left alone.
func (c *Client) PublishProgress(ctx context.Context, apiID string, progress models.BillProgress) error {
	params := map[string]any{
		"api_id":    apiID,
		"status":    progress.BillStatus,
		"date":      progress.BillDate,
		"committee": progress.Committee,
	}
	if err := c.executeWithRetry(ctx, publishProgressQuery, params); err != nil {
		return fmt.Errorf("failed to publish bill progress: %w", err)
	}
	return nil
}

func billParams(bill models.Bill) map[string]any {
	return map[string]any{
		"api_id":      bill.APIID,
		"bill_number": bill.BillNumber,
		"title":       bill.BillTitle,
		"status":      bill.BillStatus,
		"date":        bill.BillDate,
		"proposer":    bill.BillProposer,
		"committee":   bill.Committee,
	}
}

func (c *Client) executeWithRetry(ctx context.Context, query string, params map[string]any) error {
	ctx, cancel := context.WithTimeout(ctx, operationTimeout)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			return c.exec(ctx, query, params)
		})
	})
}
