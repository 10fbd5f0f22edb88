package ingestion

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jeovahfialho/tradelog/internal/domain"
	"github.com/shopspring/decimal"
)

// Columns is the CSV layout used by both import and export.
var Columns = []string{"symbol", "side", "quantity", "entry_price", "entry_date", "exit_price", "exit_date"}

var requiredColumns = []string{"symbol", "side", "quantity", "entry_price"}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02 15:04:05", "2006-01-02"}

// RowError is a rejected CSV row. Line is 1-based and counts the header.
type RowError struct {
	Line int    `json:"line"`
	Err  error  `json:"-"`
	Msg  string `json:"error"`
}

func newRowError(line int, err error) RowError {
	return RowError{Line: line, Err: err, Msg: err.Error()}
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

type Parser struct {
	batchSize int
	workers   int
	now       func() time.Time
}

func NewParser(batchSize, workers int) *Parser {
	if batchSize <= 0 {
		batchSize = 1000
	}
	if workers <= 0 {
		workers = 1
	}
	return &Parser{
		batchSize: batchSize,
		workers:   workers,
		now:       time.Now,
	}
}

type ParseResult struct {
	Trades []domain.Trade
	Errors []RowError
}

type row struct {
	line   int
	record []string
}

type parsedTrade struct {
	line  int
	trade domain.Trade
}

type batch struct {
	trades []parsedTrade
	errors []RowError
}

// ParseFile reads a trade CSV owned by owner. Rows are parsed concurrently;
// the result lists trades and errors in file order. A missing or malformed
// header or a failing reader fails the whole file.
func (p *Parser) ParseFile(ctx context.Context, reader io.Reader, owner uuid.UUID) (*ParseResult, error) {
	csvReader := csv.NewReader(reader)
	csvReader.TrimLeadingSpace = true
	csvReader.FieldsPerRecord = -1

	header, err := csvReader.Read()
	if err == io.EOF {
		return nil, domain.Invalid("file", "is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read header: %v", domain.ErrValidation, err)
	}
	index, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	jobs := make(chan row, p.workers*2)
	results := make(chan *batch, p.workers)
	readErrs := make(chan feedResult, 1)

	var wg sync.WaitGroup

	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go p.worker(ctx, index, owner, jobs, results, &wg)
	}

	go func() {
		bad, err := feed(ctx, csvReader, jobs)
		readErrs <- feedResult{bad: bad, err: err}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	var parsed []parsedTrade
	finalResult := &ParseResult{
		Trades: make([]domain.Trade, 0, p.batchSize),
		Errors: make([]RowError, 0),
	}

	for result := range results {
		parsed = append(parsed, result.trades...)
		finalResult.Errors = append(finalResult.Errors, result.errors...)
	}
	read := <-readErrs
	if read.err != nil {
		return nil, fmt.Errorf("read csv: %w", read.err)
	}
	finalResult.Errors = append(finalResult.Errors, read.bad...)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	sort.Slice(parsed, func(i, j int) bool { return parsed[i].line < parsed[j].line })
	sort.Slice(finalResult.Errors, func(i, j int) bool { return finalResult.Errors[i].Line < finalResult.Errors[j].Line })

	for _, pt := range parsed {
		finalResult.Trades = append(finalResult.Trades, pt.trade)
	}

	return finalResult, nil
}

type feedResult struct {
	bad []RowError
	err error
}

// feed sends every non-blank record to jobs and returns the rows the CSV
// reader itself rejected. Any other read error stops the feed.
func feed(ctx context.Context, csvReader *csv.Reader, jobs chan<- row) ([]RowError, error) {
	defer close(jobs)

	var bad []RowError
	for {
		record, err := csvReader.Read()
		if err == io.EOF {
			return bad, nil
		}
		if err != nil {
			var perr *csv.ParseError
			if !errors.As(err, &perr) {
				return bad, err
			}
			bad = append(bad, newRowError(perr.Line, err))
			continue
		}
		if blank(record) {
			continue
		}

		line, _ := csvReader.FieldPos(0)
		select {
		case <-ctx.Done():
			return bad, nil
		case jobs <- row{line: line, record: record}:
		}
	}
}

func (p *Parser) worker(ctx context.Context, index map[string]int, owner uuid.UUID,
	jobs <-chan row, results chan<- *batch, wg *sync.WaitGroup) {

	defer wg.Done()

	current := &batch{trades: make([]parsedTrade, 0, p.batchSize)}
	flush := func() {
		if len(current.trades) > 0 || len(current.errors) > 0 {
			results <- current
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return

		case job, ok := <-jobs:
			if !ok {
				flush()
				return
			}

			trade, err := p.parseRecord(job.record, index, owner)
			if err != nil {
				current.errors = append(current.errors, newRowError(job.line, err))
				continue
			}

			current.trades = append(current.trades, parsedTrade{line: job.line, trade: *trade})

			if len(current.trades) >= p.batchSize {
				results <- current
				current = &batch{trades: make([]parsedTrade, 0, p.batchSize)}
			}
		}
	}
}

// parseRecord builds the trade through the lifecycle engine: it is opened,
// then closed when the exit columns are present.
func (p *Parser) parseRecord(record []string, index map[string]int, owner uuid.UUID) (*domain.Trade, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	quantity, err := parseDecimal("quantity", field("quantity"))
	if err != nil {
		return nil, err
	}
	entryPrice, err := parseDecimal("entry_price", field("entry_price"))
	if err != nil {
		return nil, err
	}
	entryDate, err := parseDate("entry_date", field("entry_date"))
	if err != nil {
		return nil, err
	}

	now := p.now()
	trade, err := domain.NewTrade(domain.NewTradeParams{
		UserID:     owner,
		Symbol:     field("symbol"),
		Side:       domain.TradeSide(strings.ToUpper(field("side"))),
		Quantity:   quantity,
		EntryPrice: entryPrice,
		EntryDate:  entryDate,
	}, now)
	if err != nil {
		return nil, err
	}

	exitRaw := field("exit_price")
	exitDate, err := parseDate("exit_date", field("exit_date"))
	if err != nil {
		return nil, err
	}
	if exitRaw == "" {
		if exitDate != nil {
			return nil, domain.Invalid("exit_price", "is required when exit_date is set")
		}
		return trade, nil
	}

	exitPrice, err := parseDecimal("exit_price", exitRaw)
	if err != nil {
		return nil, err
	}
	if err := trade.Close(exitPrice, exitDate, now); err != nil {
		return nil, err
	}
	return trade, nil
}

func columnIndex(header []string) (map[string]int, error) {
	index := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		index[name] = i
	}
	for _, c := range requiredColumns {
		if _, ok := index[c]; !ok {
			return nil, domain.Invalid("header", fmt.Sprintf("is missing column %q", c))
		}
	}
	return index, nil
}

func parseDecimal(field, raw string) (decimal.Decimal, error) {
	if raw == "" {
		return decimal.Zero, domain.Invalid(field, "is required")
	}
	v, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, domain.Invalid(field, "is not a number")
	}
	return v, nil
}

func parseDate(field, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, domain.Invalid(field, "is not an RFC 3339 timestamp")
}

func blank(record []string) bool {
	for _, f := range record {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
