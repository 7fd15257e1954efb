package pipeline

import (
	"context"
	"io"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"

	"iorganise/internal/extract"
	"iorganise/internal/filestore"
	"iorganise/internal/manager"
	"iorganise/internal/store"
)

// Sessions hands out exclusive registry leases.
type Sessions interface {
	Session(ctx context.Context) (*manager.Session, error)
}

// Records reads and updates upload records.
type Records interface {
	GetFile(ctx context.Context, id int64) (store.FileUpload, error)
	UpdateFile(ctx context.Context, id int64, upd store.FileUpdate) (store.FileUpload, error)
}

// OCR turns image bytes into text.
type OCR interface {
	Predict(ctx context.Context, image []byte) (string, error)
}

// AudioExtractor pulls the audio track out of a video file.
type AudioExtractor interface {
	ExtractAudio(ctx context.Context, videoPath string) (string, func(), error)
}

const (
	defaultExtractConcurrency = 4
	defaultCacheTTL           = 10 * time.Minute
	cacheCapacity             = 512
)

// Config wires the orchestrator's collaborators. Registry is required;
// Records and Blobs are needed only for items with a FileID.
type Config struct {
	Registry           Sessions
	Records            Records
	Blobs              filestore.Store
	OCR                OCR
	Audio              AudioExtractor
	Subjects           []string
	ExtractConcurrency int
	CacheTTL           time.Duration
	Logger             *zerolog.Logger

	// Detect and Text default to the extract package.
	Detect func(path string) (extract.Category, string, error)
	Text   func(path string) (string, error)
}

// Orchestrator runs batches. It is safe for concurrent use; batches are
// serialized by the registry session.
type Orchestrator struct {
	reg         Sessions
	records     Records
	blobs       filestore.Store
	ocr         OCR
	audio       AudioExtractor
	subjects    []string
	concurrency int
	log         zerolog.Logger
	detect      func(string) (extract.Category, string, error)
	text        func(string) (string, error)
	artifacts   *ttlcache.Cache[string, string]
}

func New(cfg Config) *Orchestrator {
	o := &Orchestrator{
		reg:         cfg.Registry,
		records:     cfg.Records,
		blobs:       cfg.Blobs,
		ocr:         cfg.OCR,
		audio:       cfg.Audio,
		subjects:    cfg.Subjects,
		concurrency: cfg.ExtractConcurrency,
		detect:      cfg.Detect,
		text:        cfg.Text,
		log:         zerolog.Nop(),
	}
	if cfg.Logger != nil {
		o.log = *cfg.Logger
	}
	if len(o.subjects) == 0 {
		o.subjects = DefaultSubjects
	}
	if o.concurrency <= 0 {
		o.concurrency = defaultExtractConcurrency
	}
	if o.detect == nil {
		o.detect = extract.Detect
	}
	if o.text == nil {
		o.text = extract.Text
	}
	ttl := cfg.CacheTTL
	if ttl <= 0 {
		ttl = defaultCacheTTL
	}
	o.artifacts = ttlcache.New(
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithCapacity[string, string](cacheCapacity),
	)
	return o
}

// batch is the working state of one Run.
type batch struct {
	req      Request
	results  Results
	order    []*Result
	paths    map[*Result]string
	records  map[*Result]store.FileUpload
	cleanups []func()
}

func (b *batch) cleanup() {
	for _, fn := range b.cleanups {
		fn()
	}
}

// Run processes req inside one registry session and returns a result per
// item. The returned error is only set when no session could be obtained;
// per-file failures are carried on the results.
func (o *Orchestrator) Run(ctx context.Context, req Request) (Results, error) {
	start := time.Now()
	defer func() { batchDuration.Observe(time.Since(start).Seconds()) }()

	o.artifacts.DeleteExpired()
	b := &batch{req: req, results: make(Results, len(req.Items)), paths: map[*Result]string{}, records: map[*Result]store.FileUpload{}}
	for _, it := range req.Items {
		r := &Result{Key: it.Key, FileID: it.FileID, Filename: it.Filename}
		b.results[it.Key] = r
		b.order = append(b.order, r)
	}

	sess, err := o.reg.Session(ctx)
	if err != nil {
		return nil, err
	}
	defer sess.Close()
	defer func() { _ = sess.EvictAll() }()
	defer b.cleanup()

	o.log.Debug().Int("items", len(req.Items)).Str("asr", req.ASRVariant).Str("llm", req.LLMVariant).
		Bool("classify", req.Classify).Bool("summarize", req.Summarize).Msg("pipeline batch start")

	o.prepare(ctx, b)
	o.extractAll(ctx, sess, b)
	if req.Classify {
		o.classify(ctx, sess, b)
	}
	if req.Summarize {
		o.summarize(ctx, sess, b)
	}
	o.persist(ctx, b)

	observeResults(b.results)
	o.log.Info().Int("items", len(b.order)).Int("failed", b.results.Failed()).
		Dur("took", time.Since(start)).Msg("pipeline batch done")
	return b.results, nil
}

// prepare resolves each item's source and serves memoized records.
func (o *Orchestrator) prepare(ctx context.Context, b *batch) {
	for i, it := range b.req.Items {
		r := b.order[i]
		switch {
		case it.Text != "":
			r.Category = extract.CategoryDocument
			r.Content = it.Text
		case it.FileID != 0:
			o.prepareRecord(ctx, b, r)
		case it.LocalPath != "":
			b.paths[r] = it.LocalPath
		default:
			r.fail(&StageError{Stage: StageExtract, Kind: KindUnsupported, Message: "empty input"})
		}
	}
}

func (o *Orchestrator) prepareRecord(ctx context.Context, b *batch, r *Result) {
	if o.records == nil || o.blobs == nil {
		r.fail(&StageError{Stage: StageExtract, Kind: KindNotFound, Message: "file records unavailable"})
		return
	}
	rec, err := o.records.GetFile(ctx, r.FileID)
	if err != nil {
		r.fail(stageErr(StageExtract, KindNotFound, err))
		return
	}
	if r.Filename == "" {
		r.Filename = rec.Filename
	}
	b.records[r] = rec
	if !b.req.Force && o.memoized(ctx, rec, r) {
		return
	}
	local, cleanup, err := o.blobs.Localize(ctx, rec.Path)
	if err != nil {
		r.fail(stageErr(StageExtract, KindIO, err))
		return
	}
	b.cleanups = append(b.cleanups, cleanup)
	b.paths[r] = local
}

// memoized fills r from stored artifacts when both exist.
func (o *Orchestrator) memoized(ctx context.Context, rec store.FileUpload, r *Result) bool {
	if !rec.Processed() {
		return false
	}
	content, err := o.artifact(ctx, rec.ContentPath)
	if err != nil {
		o.log.Debug().Err(err).Int64("file_id", rec.ID).Msg("memo miss")
		return false
	}
	summary, err := o.artifact(ctx, rec.SummaryPath)
	if err != nil {
		o.log.Debug().Err(err).Int64("file_id", rec.ID).Msg("memo miss")
		return false
	}
	r.Category = extract.CategoryOf(rec.MimeType)
	r.Content = content
	r.Summary = summary
	r.Subject = rec.Subject
	r.Cached = true
	return true
}

func (o *Orchestrator) artifact(ctx context.Context, p string) (string, error) {
	if it := o.artifacts.Get(p); it != nil {
		return it.Value(), nil
	}
	rc, err := o.blobs.Open(ctx, p)
	if err != nil {
		return "", err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", err
	}
	o.artifacts.Set(p, string(data), ttlcache.DefaultTTL)
	return string(data), nil
}

// pending lists results still needing work from a model stage.
func (b *batch) pending(filter func(*Result) bool) []*Result {
	var out []*Result
	for _, r := range b.order {
		if r.ok() && !r.Cached && filter(r) {
			out = append(out, r)
		}
	}
	return out
}
