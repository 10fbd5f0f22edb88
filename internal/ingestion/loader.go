package ingestion

import (
	"context"
	"fmt"

	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/jeovahfialho/tradelog/pkg/metrics"
)

// TradeWriter persists a chunk of trades atomically.
type TradeWriter interface {
	BulkInsertTrades(ctx context.Context, trades []domain.Trade) (int64, error)
}

type BulkLoader struct {
	writer    TradeWriter
	batchSize int
}

func NewBulkLoader(writer TradeWriter, batchSize int) *BulkLoader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	return &BulkLoader{
		writer:    writer,
		batchSize: batchSize,
	}
}

func (l *BulkLoader) LoadTrades(ctx context.Context, trades []domain.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.DatabaseQueryDuration.WithLabelValues("bulk_insert"))

	count, err := l.writer.BulkInsertTrades(ctx, trades)
	if err != nil {
		metrics.DatabaseQueries.WithLabelValues("bulk_insert", "error").Inc()
		return 0, fmt.Errorf("bulk insert: %w", err)
	}

	metrics.DatabaseQueries.WithLabelValues("bulk_insert", "success").Inc()
	return count, nil
}

// LoadTradesConcurrent writes the trades in batchSize chunks, each in its own
// transaction. On error the count covers the chunks already committed.
func (l *BulkLoader) LoadTradesConcurrent(ctx context.Context, trades []domain.Trade) (int64, error) {
	chunks := l.splitIntoChunks(trades)

	results := make(chan int64, len(chunks))
	errors := make(chan error, len(chunks))

	for _, chunk := range chunks {
		go func(chunk []domain.Trade) {
			count, err := l.LoadTrades(ctx, chunk)
			if err != nil {
				errors <- err
				return
			}
			results <- count
		}(chunk)
	}

	var totalCount int64
	var firstErr error
	for i := 0; i < len(chunks); i++ {
		select {
		case count := <-results:
			totalCount += count
		case err := <-errors:
			if firstErr == nil {
				firstErr = err
			}
		}
	}

	return totalCount, firstErr
}

func (l *BulkLoader) splitIntoChunks(trades []domain.Trade) [][]domain.Trade {
	var chunks [][]domain.Trade

	for i := 0; i < len(trades); i += l.batchSize {
		end := i + l.batchSize
		if end > len(trades) {
			end = len(trades)
		}
		chunks = append(chunks, trades[i:end])
	}

	return chunks
}
