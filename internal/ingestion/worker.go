package ingestion

import (
	"context"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"
)

// WorkerPool imports CSV files concurrently, one file per job.
type WorkerPool struct {
	workers  int
	parser   *Parser
	loader   *BulkLoader
	jobQueue chan Job
	wg       sync.WaitGroup
}

type Job struct {
	FilePath string
	OwnerID  uuid.UUID
	Result   chan<- JobResult
}

type JobResult struct {
	FilePath     string
	RecordsCount int64
	Rejected     []RowError
	Error        error
}

func NewWorkerPool(workers int, parser *Parser, loader *BulkLoader) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	return &WorkerPool{
		workers:  workers,
		parser:   parser,
		loader:   loader,
		jobQueue: make(chan Job, workers*2),
	}
}

func (wp *WorkerPool) Start(ctx context.Context) {
	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(ctx)
	}
}

// Stop waits for queued jobs to finish. Submit must not be called afterwards.
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
}

func (wp *WorkerPool) Submit(job Job) {
	wp.jobQueue <- job
}

func (wp *WorkerPool) worker(ctx context.Context) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		if err := ctx.Err(); err != nil {
			job.Result <- JobResult{FilePath: job.FilePath, Error: err}
			continue
		}
		job.Result <- wp.processFile(ctx, job)
	}
}

func (wp *WorkerPool) processFile(ctx context.Context, job Job) JobResult {
	file, err := os.Open(job.FilePath)
	if err != nil {
		return JobResult{
			FilePath: job.FilePath,
			Error:    fmt.Errorf("open file: %w", err),
		}
	}
	defer file.Close()

	parseResult, err := wp.parser.ParseFile(ctx, file, job.OwnerID)
	if err != nil {
		return JobResult{
			FilePath: job.FilePath,
			Error:    fmt.Errorf("parse: %w", err),
		}
	}

	count, err := wp.loader.LoadTradesConcurrent(ctx, parseResult.Trades)
	if err != nil {
		return JobResult{
			FilePath:     job.FilePath,
			RecordsCount: count,
			Rejected:     parseResult.Errors,
			Error:        fmt.Errorf("load: %w", err),
		}
	}

	return JobResult{
		FilePath:     job.FilePath,
		RecordsCount: count,
		Rejected:     parseResult.Errors,
	}
}
