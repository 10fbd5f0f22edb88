package service

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/access"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/internal/ingestion"
	"github.com/jeovahfialho/tradelog/pkg/logger"
	"github.com/jeovahfialho/tradelog/pkg/metrics"
	"go.uber.org/zap"
)

type IngestionService struct {
	store   Store
	cache   Cache
	parser  *ingestion.Parser
	loader  *ingestion.BulkLoader
	workers int
}

func NewIngestionService(store Store, cache Cache, batchSize, workers int) *IngestionService {
	return &IngestionService{
		store:   store,
		cache:   cache,
		parser:  ingestion.NewParser(batchSize, workers),
		loader:  ingestion.NewBulkLoader(store, batchSize),
		workers: workers,
	}
}

type ImportResult struct {
	Imported int64                `json:"imported"`
	Rejected []ingestion.RowError `json:"rejected"`
}

// Import parses a CSV upload into trades owned by the requester and loads
// the valid rows. Invalid rows are skipped and reported.
func (s *IngestionService) Import(ctx context.Context, p access.Principal, r io.Reader) (*ImportResult, error) {
	if err := access.CanCreate(p); err != nil {
		return nil, fmt.Errorf("admins cannot import trades: %w", err)
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.TradeOperationDuration.WithLabelValues("import"))

	parsed, err := s.parser.ParseFile(ctx, r, p.UserID)
	if err != nil {
		return nil, err
	}

	count, err := s.loader.LoadTradesConcurrent(ctx, parsed.Trades)
	metrics.RecordTradeImported("success", int(count))
	metrics.RecordTradeImported("rejected", len(parsed.Errors))
	if count > 0 {
		invalidateAnalytics(ctx, s.cache, p.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("import trades (%d committed): %w", count, err)
	}

	logger.WithContext(ctx).Info("trades imported",
		zap.String("user_id", p.UserID.String()),
		zap.Int64("imported", count),
		zap.Int("rejected", len(parsed.Errors)))

	return &ImportResult{Imported: count, Rejected: parsed.Errors}, nil
}

// ImportFiles loads CSV files for owner through a worker pool, one file per job.
func (s *IngestionService) ImportFiles(ctx context.Context, owner uuid.UUID, paths []string) []ingestion.JobResult {
	pool := ingestion.NewWorkerPool(s.workers, s.parser, s.loader)
	pool.Start(ctx)

	results := make(chan ingestion.JobResult, len(paths))
	for _, path := range paths {
		pool.Submit(ingestion.Job{FilePath: path, OwnerID: owner, Result: results})
	}
	pool.Stop()
	close(results)

	out := make([]ingestion.JobResult, 0, len(paths))
	var total int64
	for r := range results {
		total += r.RecordsCount
		metrics.RecordTradeImported("success", int(r.RecordsCount))
		metrics.RecordTradeImported("rejected", len(r.Rejected))
		out = append(out, r)
	}
	if total > 0 {
		invalidateAnalytics(ctx, s.cache, owner)
	}
	return out
}

// Export writes the requester's visible trades as CSV, newest entry first.
func (s *IngestionService) Export(ctx context.Context, p access.Principal, w io.Writer) error {
	filter := access.ScopeFor(p).Filter(domain.TradeFilter{})
	trades, err := s.store.FindTrades(ctx, filter, domain.SortEntryDateDesc, 0, 0)
	if err != nil {
		return fmt.Errorf("load trades for export: %w", err)
	}
	return ingestion.WriteCSV(w, trades)
}
