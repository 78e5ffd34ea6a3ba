// Package runner executes a full synthesis run from a decoded config:
// load, fit (through the cache), generate, sink, evaluate, report.
package runner

import (
	"context"
	"fmt"
	"log"
	"math/rand"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"synthpipe/internal/classifier"
	"synthpipe/internal/config"
	"synthpipe/internal/dataset"
	"synthpipe/internal/datasource"
	"synthpipe/internal/eval"
	"synthpipe/internal/fitcache"
	"synthpipe/internal/generator"
	"synthpipe/internal/metrics"
	"synthpipe/internal/parser"
	"synthpipe/internal/report"
	"synthpipe/internal/storage"
	"synthpipe/pkg/records"
)

const (
	defaultWorkers   = 4
	defaultBatchSize = 500
	defaultChanBuf   = 256
	defaultHoldout   = 0.25
)

// Outcome is what a completed run hands back to the CLI.
type Outcome struct {
	RunID   string
	Summary report.Summary
	Scores  eval.Result
	Report  string
}

// Runner drives one run. Construct with New, execute with Run.
type Runner struct {
	cfg config.Run
}

func New(cfg config.Run) *Runner {
	return &Runner{cfg: cfg}
}

// Run executes the pipeline end to end. Errors abort the run and propagate
// with the failing stage's context; there is no retry.
func (r *Runner) Run(ctx context.Context) (*Outcome, error) {
	runID := uuid.NewString()
	job := r.cfg.Job
	start := time.Now()
	log.Printf("run %s: job %q starting", runID, job)

	// Load.
	loadStart := time.Now()
	ds, skipped, err := r.load(ctx)
	metrics.RecordStage(job, "load", err, time.Since(loadStart))
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	metrics.RecordRows(job, "loaded", int64(ds.Len()))
	metrics.RecordRows(job, "parse_skipped", int64(skipped))
	log.Printf("run %s: loaded %d rows, %d columns (%d skipped)", runID, ds.Len(), len(ds.Columns), skipped)

	loader, err := dataset.NewLoader(ds, r.cfg.Loader)
	if err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}
	if err := r.checkConditions(ds); err != nil {
		return nil, fmt.Errorf("load: %w", err)
	}

	var seqCount int64
	if loader.Meta.Temporal != nil {
		seqs, err := loader.Sequences()
		if err != nil {
			return nil, fmt.Errorf("load: %w", err)
		}
		seqCount = int64(len(seqs))
		metrics.RecordRows(job, "sequences", seqCount)
		log.Printf("run %s: %d rows decompose into %d sequences", runID, ds.Len(), seqCount)
	}

	// The generator fits on the train side of the split so evaluation sees
	// rows the model never did. Without evaluation there is no split.
	train, holdout := ds, (*dataset.Dataset)(nil)
	if len(r.cfg.Evaluate.Metrics) > 0 {
		frac := r.cfg.Evaluate.Holdout
		if frac <= 0 || frac >= 1 {
			frac = defaultHoldout
		}
		train, holdout = ds.Split(frac, r.cfg.Generator.Seed)
		log.Printf("run %s: split %d train / %d holdout rows", runID, train.Len(), holdout.Len())
	}
	fitLoader := &dataset.Loader{Data: train, Meta: loader.Meta}

	// Fit, consulting the cache when configured.
	fitStart := time.Now()
	gen, cacheHit, err := r.resolveGenerator(ctx, fitLoader)
	metrics.RecordStage(job, "fit", err, time.Since(fitStart))
	if err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	if cacheHit {
		log.Printf("run %s: fit cache hit", runID)
	} else {
		log.Printf("run %s: fitted %s generator in %s", runID, gen.Kind(), time.Since(fitStart).Round(time.Millisecond))
	}

	// Generate and sink concurrently.
	total := r.cfg.Generate.Count
	if total <= 0 {
		total = train.Len()
	}
	genStart := time.Now()
	synth, inserted, batches, err := r.generateAndSink(ctx, gen, ds, total)
	metrics.RecordStage(job, "generate", err, time.Since(genStart))
	if err != nil {
		return nil, fmt.Errorf("generate: %w", err)
	}
	metrics.RecordRows(job, "generated", int64(synth.Len()))
	metrics.RecordRows(job, "inserted", inserted)
	metrics.RecordBatches(job, batches)
	if int64(synth.Len()) != inserted {
		log.Printf("run %s: WARNING generated %d rows but sink reports %d inserted", runID, synth.Len(), inserted)
	}

	// Evaluate.
	var scores eval.Result
	if len(r.cfg.Evaluate.Metrics) > 0 {
		evalStart := time.Now()
		scores, err = eval.Run(ctx, r.cfg.Evaluate.Metrics, eval.Input{
			Train:   train,
			Holdout: holdout,
			Synth:   synth,
			Meta:    loader.Meta,
			Seed:    r.cfg.Generator.Seed,
		})
		metrics.RecordStage(job, "evaluate", err, time.Since(evalStart))
		if err != nil {
			return nil, fmt.Errorf("evaluate: %w", err)
		}
	}

	if path := r.cfg.Evaluate.ExportModel; path != "" {
		if err := r.exportModel(path, synth); err != nil {
			return nil, fmt.Errorf("export model: %w", err)
		}
		log.Printf("run %s: wrote classifier model to %s", runID, path)
	}

	summary := report.Summary{
		RunID:     runID,
		Job:       job,
		Rows:      int64(ds.Len()),
		Skipped:   int64(skipped),
		Sequences: seqCount,
		Generated: int64(synth.Len()),
		Inserted:  inserted,
		Batches:   batches,
		CacheHit:  cacheHit,
		Elapsed:   time.Since(start),
	}
	text, err := report.Render(scores, summary)
	if err != nil {
		return nil, fmt.Errorf("report: %w", err)
	}
	log.Printf("run %s: done in %s", runID, summary.Elapsed.Round(time.Millisecond))

	return &Outcome{RunID: runID, Summary: summary, Scores: scores, Report: text}, nil
}

// load opens the source, parses it, and builds the typed dataset.
func (r *Runner) load(ctx context.Context) (*dataset.Dataset, int, error) {
	src, err := datasource.Build(r.cfg.Source)
	if err != nil {
		return nil, 0, err
	}
	rc, err := src.Open(ctx)
	if err != nil {
		return nil, 0, err
	}
	defer rc.Close()

	p, err := parser.New(r.cfg.Parser)
	if err != nil {
		return nil, 0, err
	}
	columns, rows, skipped, err := p.Parse(rc)
	if err != nil {
		return nil, 0, err
	}
	ds, err := dataset.New(columns, rows, r.cfg.Loader.Types)
	if err != nil {
		return nil, 0, err
	}
	return ds, skipped, nil
}

// exportModel trains a classifier on the synthetic rows and writes its
// JSON form to path, so consumers can score new records without the real
// data.
func (r *Runner) exportModel(path string, synth *dataset.Dataset) error {
	target := r.cfg.Loader.Target
	if target == "" {
		return fmt.Errorf("evaluate.export_model requires loader.target")
	}
	model, err := classifier.Train(synth, target, classifier.Options{Seed: r.cfg.Generator.Seed})
	if err != nil {
		return err
	}
	blob, err := model.ExportJSON()
	if err != nil {
		return err
	}
	return os.WriteFile(path, blob, 0o644)
}

func (r *Runner) checkConditions(ds *dataset.Dataset) error {
	for col := range r.cfg.Generate.Conditions {
		if _, ok := ds.Column(col); !ok {
			return fmt.Errorf("condition references unknown column %q", col)
		}
	}
	return nil
}

// resolveGenerator returns a fitted generator, restoring from the cache
// when an entry matches the generator spec and dataset fingerprint.
func (r *Runner) resolveGenerator(ctx context.Context, l *dataset.Loader) (generator.Generator, bool, error) {
	gen, err := generator.New(r.cfg.Generator)
	if err != nil {
		return nil, false, err
	}

	cacheable := r.cfg.Cache.Dir != "" && !r.cfg.Cache.Disabled
	if !cacheable {
		return gen, false, gen.Fit(ctx, l)
	}

	cache, err := fitcache.Open(ctx, r.cfg.Cache.Dir, r.cfg.Cache.MaxEntries)
	if err != nil {
		// A broken cache never blocks a run.
		log.Printf("fitcache: open %s: %v (fitting without cache)", r.cfg.Cache.Dir, err)
		return gen, false, gen.Fit(ctx, l)
	}
	defer cache.Close()

	key := fitcache.Key(r.cfg.Generator, fitcache.Fingerprint(l.Data))
	if blob, ok := cache.Get(ctx, key); ok {
		if err := generator.LoadBlob(gen, blob); err == nil {
			metrics.RecordCacheLookup(r.cfg.Job, true)
			return gen, true, nil
		}
		log.Printf("fitcache: restore %s failed, refitting", key)
	}
	metrics.RecordCacheLookup(r.cfg.Job, false)

	if err := gen.Fit(ctx, l); err != nil {
		return nil, false, err
	}
	if blob, err := generator.SaveBlob(gen); err == nil {
		if err := cache.Put(ctx, key, gen.Kind(), blob); err != nil {
			log.Printf("fitcache: put %s: %v", key, err)
		}
	}
	return gen, false, nil
}

// countingRepo wraps a Repository to count CopyFrom batches.
type countingRepo struct {
	storage.Repository
	batches atomic.Int64
}

func (c *countingRepo) CopyFrom(ctx context.Context, columns []string, rows [][]any) (int64, error) {
	n, err := c.Repository.CopyFrom(ctx, columns, rows)
	if err == nil {
		c.batches.Add(1)
	}
	return n, err
}

// generateAndSink runs N generate workers feeding a single batched sink
// writer over a bounded channel. A sink failure cancels the workers
// through the group context.
func (r *Runner) generateAndSink(ctx context.Context, gen generator.Generator, ds *dataset.Dataset, total int) (*dataset.Dataset, int64, int64, error) {
	scfg := storage.FromOutput(r.cfg.Output, ds.Columns)
	repo, err := storage.New(ctx, scfg)
	if err != nil {
		return nil, 0, 0, err
	}
	defer repo.Close()

	if r.cfg.Output.DB.AutoCreateTable {
		if err := storage.EnsureTable(ctx, repo, scfg); err != nil {
			return nil, 0, 0, err
		}
	}
	counting := &countingRepo{Repository: repo}

	workers := r.cfg.Runtime.GenerateWorkers
	if workers <= 0 {
		workers = defaultWorkers
	}
	if workers > total && total > 0 {
		workers = total
	}
	batchSize := r.cfg.Runtime.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	buf := r.cfg.Runtime.ChannelBuffer
	if buf <= 0 {
		buf = defaultChanBuf
	}

	rowCh := make(chan records.Record, buf)
	var (
		mu      sync.Mutex
		allRows []records.Record
	)

	g, gctx := errgroup.WithContext(ctx)

	var inserted int64
	g.Go(func() error {
		n, err := storage.LoadBatches(gctx, counting, ds.ColumnNames(), rowCh, batchSize)
		atomic.StoreInt64(&inserted, n)
		return err
	})

	var gens errgroup.Group
	per := total / workers
	extra := total % workers
	for w := 0; w < workers; w++ {
		count := per
		if w < extra {
			count++
		}
		if count == 0 {
			continue
		}
		seed := r.cfg.Generator.Seed + int64(w)
		gens.Go(func() error {
			out, err := gen.Generate(gctx, generator.Request{
				Count:      count,
				Conditions: r.cfg.Generate.Conditions,
				Rand:       rand.New(rand.NewSource(seed)),
			})
			if err != nil {
				return err
			}
			mu.Lock()
			allRows = append(allRows, out.Rows...)
			mu.Unlock()
			for _, row := range out.Rows {
				select {
				case rowCh <- row:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	genErr := gens.Wait()
	close(rowCh)
	sinkErr := g.Wait()
	if genErr != nil {
		return nil, 0, 0, genErr
	}
	if sinkErr != nil {
		return nil, 0, 0, sinkErr
	}

	return ds.WithRows(allRows), atomic.LoadInt64(&inserted), counting.batches.Load(), nil
}
