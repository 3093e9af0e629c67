package pipeline

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// Job is one raw scene to import.
type Job struct {
	RawPath string
	DestDir string
}

// Result holds the outcome of one job.
type Result struct {
	Job     Job
	Saved   []Saved
	Err     error
	Skipped bool // never started because ctx was done
}

// BatchImport imports jobs on a pool of workers. Results are returned in job
// order. Cancelling ctx stops jobs from starting; a job already decoding
// runs to completion.
func (p *Pipeline) BatchImport(ctx context.Context, jobs []Job, workers int) []Result {
	if workers < 1 {
		workers = 1
	}
	results := make([]Result, len(jobs))
	for i, job := range jobs {
		results[i].Job = job
	}

	var processed, failed atomic.Int64
	start := time.Now()

	jobChan := make(chan int, workers*2)
	var wg sync.WaitGroup

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobChan {
				if err := ctx.Err(); err != nil {
					results[idx].Err = err
					results[idx].Skipped = true
					continue
				}
				saved, err := p.Import(jobs[idx].RawPath, jobs[idx].DestDir)
				results[idx].Saved = saved
				results[idx].Err = err
				processed.Add(1)
				if err != nil {
					failed.Add(1)
				}
			}
		}()
	}

	sent := 0
send:
	for ; sent < len(jobs); sent++ {
		select {
		case <-ctx.Done():
			break send
		case jobChan <- sent:
		}
	}
	close(jobChan)
	wg.Wait()

	for i := sent; i < len(jobs); i++ {
		results[i].Err = ctx.Err()
		results[i].Skipped = true
	}

	p.log.Info("batch import finished",
		zap.Int("jobs", len(jobs)),
		zap.Int64("processed", processed.Load()),
		zap.Int64("failed", failed.Load()),
		zap.Int("skipped", len(jobs)-int(processed.Load())),
		zap.Duration("elapsed", time.Since(start)))
	return results
}

// Errors combines the failures in results into one error, or nil.
func Errors(results []Result) error {
	var err error
	for _, r := range results {
		if r.Err != nil {
			err = multierr.Append(err, fmt.Errorf("%s: %w", r.Job.RawPath, r.Err))
		}
	}
	return err
}
