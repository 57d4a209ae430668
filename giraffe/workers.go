package main

import (
	"context"
	"fmt"
	"sync"
	"time"

	salvator "github.com/wimmer-k/Salvator/pkg"
)

type WorkerResult struct {
	Number    int64
	Event     salvator.Event
	Err       error
	Discarded bool
}

func worker(id int, reco *salvator.Reconstructor, jobs <-chan salvator.RawEvent, results chan<- WorkerResult) {
	for evt := range jobs {
		if VerbosityLevel > 2 {
			logger.Info(fmt.Sprintf("Worker %d processing event %d", id, evt.Number), "worker")
		}
		results <- reconstructEvent(id, reco, evt)
	}
}

// reconstructEvent never lets a panic escape: a crash on one event only
// discards that event.
func reconstructEvent(id int, reco *salvator.Reconstructor, evt salvator.RawEvent) (result WorkerResult) {
	defer func() {
		if r := recover(); r != nil {
			result = WorkerResult{
				Number:    evt.Number,
				Err:       fmt.Errorf("worker %d recovered from panic on event %d: %v", id, evt.Number, r),
				Discarded: true,
			}
		}
	}()

	event, err := reco.ReconstructEvent(evt)
	if err != nil {
		return WorkerResult{Number: evt.Number, Err: err, Discarded: !salvator.IsFatal(err)}
	}
	return WorkerResult{Number: evt.Number, Event: event}
}

func startWorkers(n int, reco *salvator.Reconstructor, jobs <-chan salvator.RawEvent, results chan<- WorkerResult) {
	var wg sync.WaitGroup
	for w := 1; w <= n; w++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			worker(id, reco, jobs, results)
		}(w)
	}
	go func() {
		wg.Wait()
		close(results)
	}()
}

// sendEventsToWorkers feeds the workers until the source is exhausted or ctx
// is cancelled. Events already handed out are always completed.
func sendEventsToWorkers(ctx context.Context, source salvator.EventSource, jobs chan<- salvator.RawEvent) error {
	defer close(jobs)
	return source.ForEach(func(evt salvator.RawEvent) error {
		select {
		case <-ctx.Done():
			return salvator.ErrStop
		case jobs <- evt:
			return nil
		}
	})
}

// EventWriter persists reconstructed events, e.g. to HDF5.
type EventWriter interface {
	WriteEvent(event *salvator.Event) error
}

// outputError marks a failure writing events. It stops the run but, unlike a
// configuration error, leaves the histograms filled so far worth saving.
type outputError struct {
	err error
}

func (e *outputError) Error() string {
	return fmt.Sprintf("error writing events: %v", e.err)
}

func (e *outputError) Unwrap() error {
	return e.err
}

// Collector owns everything that is filled from reconstructed events. Only
// the goroutine running processWorkerResults touches it.
type Collector struct {
	RunID         string
	Total         int64
	ProgressEvery int64
	Histograms    *salvator.Histograms
	Writer        EventWriter
	Publisher     salvator.Publisher
	Processed     int64
	Dropped       int64
	start         time.Time
}

func NewCollector(runID string, total int64, progressEvery int, hists *salvator.Histograms,
	writer EventWriter, publisher salvator.Publisher) *Collector {
	if publisher == nil {
		publisher = salvator.NopPublisher{}
	}
	return &Collector{
		RunID:         runID,
		Total:         total,
		ProgressEvery: int64(progressEvery),
		Histograms:    hists,
		Writer:        writer,
		Publisher:     publisher,
		start:         time.Now(),
	}
}

// processWorkerResults drains results. Per-event failures are counted and
// logged. The first fatal error, or the first failed write, cancels the run;
// results still in flight are drained and ignored.
func processWorkerResults(results <-chan WorkerResult, c *Collector, cancel context.CancelFunc) error {
	var fatal error
	for res := range results {
		if fatal != nil {
			continue
		}
		if res.Err != nil {
			if !res.Discarded {
				fatal = res.Err
				cancel()
				continue
			}
			c.Dropped++
			logger.Error(fmt.Sprintf("discarding event %d: %v", res.Number, res.Err))
			c.progress()
			continue
		}

		if c.Writer != nil {
			if err := c.Writer.WriteEvent(&res.Event); err != nil {
				fatal = &outputError{err: err}
				cancel()
				continue
			}
		}
		salvator.FillEvent(c.Histograms, &res.Event)
		c.Processed++
		c.progress()
	}
	return fatal
}

func (c *Collector) progress() {
	done := c.Processed + c.Dropped
	if c.ProgressEvery <= 0 || done%c.ProgressEvery != 0 {
		return
	}
	p := salvator.NewProgress(c.RunID, done, c.Dropped, c.Total, time.Since(c.start))
	if VerbosityLevel > 0 {
		logger.Info(p.String(), "progress")
	}
	if err := c.Publisher.Publish(p); err != nil {
		logger.Error(err.Error())
	}
}
