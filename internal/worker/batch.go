package worker

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/boobootoo2/medbilldozer-sub000/internal/model"
)

// Input is one document to analyze
type Input struct {
	Name string
	Text string
}

// Analyzer analyzes one document. The pipeline orchestrator satisfies it.
type Analyzer interface {
	AnalyzeText(ctx context.Context, name, text string) (*model.Document, error)
}

// DocumentJob analyzes one input
type DocumentJob struct {
	Input    Input
	Analyzer Analyzer
}

// Execute executes the analysis job
func (j *DocumentJob) Execute(ctx context.Context) Result {
	start := time.Now()
	doc, err := j.Analyzer.AnalyzeText(ctx, j.Input.Name, j.Input.Text)
	return &DocumentResult{
		Name:     j.Input.Name,
		Document: doc,
		Error:    err,
		Duration: time.Since(start),
	}
}

// DocumentResult is the outcome of one DocumentJob
type DocumentResult struct {
	Name     string
	Document *model.Document
	Error    error
	Duration time.Duration
}

// GetError returns the error from the analysis
func (r *DocumentResult) GetError() error {
	return r.Error
}

// BatchProcessor analyzes many independent documents concurrently
type BatchProcessor struct {
	analyzer    Analyzer
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(analyzer Analyzer, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		analyzer:    analyzer,
		concurrency: concurrency,
	}
}

// Process analyzes inputs and returns one result per input, in input order
func (b *BatchProcessor) Process(ctx context.Context, inputs []Input) []*DocumentResult {
	if len(inputs) == 0 {
		return []*DocumentResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, in := range inputs {
		pool.Submit(&DocumentJob{Input: in, Analyzer: b.analyzer})
	}

	results := pool.Wait()

	out := make([]*DocumentResult, len(inputs))
	for i := range inputs {
		if i < len(results) && results[i] != nil {
			out[i] = results[i].(*DocumentResult)
			continue
		}
		err := ctx.Err()
		if err == nil {
			err = fmt.Errorf("job not executed")
		}
		out[i] = &DocumentResult{Name: inputs[i].Name, Error: err}
	}
	return out
}

// ReadListFile reads document paths from a file (one per line).
// Blank lines and # comments are skipped, duplicates dropped.
func ReadListFile(filePath string) ([]string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var paths []string
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if !seen[line] {
			seen[line] = true
			paths = append(paths, line)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return paths, nil
}
