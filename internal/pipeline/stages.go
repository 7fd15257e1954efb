package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"iorganise/internal/extract"
	"iorganise/internal/manager"
)

// extractAll fills Content (or Segments) for every item with a local file.
// Local extraction runs on a bounded errgroup while the ASR bucket is
// transcribed sequentially on one handle.
func (o *Orchestrator) extractAll(ctx context.Context, sess *manager.Session, b *batch) {
	var av, local []*Result
	for _, r := range b.order {
		path, ok := b.paths[r]
		if !ok || !r.ok() || r.Cached {
			continue
		}
		cat, mime, err := o.detect(path)
		if err != nil {
			r.fail(stageErr(StageExtract, KindIO, err))
			continue
		}
		r.Category = cat
		if !b.req.accepts(cat) {
			r.fail(&StageError{Stage: StageExtract, Kind: KindUnsupported, Message: fmt.Sprintf("unsupported media type %s", mime)})
			continue
		}
		switch cat {
		case extract.CategoryAudio, extract.CategoryVideo:
			av = append(av, r)
		default:
			local = append(local, r)
		}
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.concurrency)
	for _, r := range local {
		path := b.paths[r]
		g.Go(func() error {
			o.extractLocal(gctx, r, path)
			return nil
		})
	}
	o.transcribe(ctx, sess, b, av)
	_ = g.Wait()
}

func (o *Orchestrator) extractLocal(ctx context.Context, r *Result, path string) {
	switch r.Category {
	case extract.CategoryDocument:
		text, err := o.text(path)
		if err != nil {
			kind := KindIO
			if errors.Is(err, extract.ErrUnsupported) {
				kind = KindUnsupported
			}
			r.fail(stageErr(StageExtract, kind, err))
			return
		}
		r.Content = text
	case extract.CategoryImage:
		if o.ocr == nil {
			o.log.Warn().Str("file", r.Filename).Msg("ocr not configured; no content")
			return
		}
		data, err := os.ReadFile(path)
		if err != nil {
			r.fail(stageErr(StageExtract, KindIO, err))
			return
		}
		text, err := o.ocr.Predict(ctx, data)
		if err != nil {
			o.log.Warn().Err(err).Str("file", r.Filename).Msg("ocr failed; no content")
			return
		}
		r.Content = text
	default:
		o.log.Debug().Str("file", r.Filename).Str("category", string(r.Category)).Msg("no extractor")
	}
}

// transcribe acquires the ASR handle once for the whole bucket and evicts it
// when done, including when the load fails.
func (o *Orchestrator) transcribe(ctx context.Context, sess *manager.Session, b *batch, av []*Result) {
	if len(av) == 0 {
		return
	}
	defer o.evict(sess, manager.KindASR)

	tr, err := manager.AcquireTranscriber(ctx, sess, b.req.ASRVariant)
	if err != nil {
		for _, r := range av {
			r.fail(stageErr(StageExtract, KindModelLoad, err))
		}
		return
	}
	for _, r := range av {
		o.transcribeOne(ctx, tr, r, b.paths[r])
	}
}

func (o *Orchestrator) transcribeOne(ctx context.Context, tr manager.Transcriber, r *Result, path string) {
	if r.Category == extract.CategoryVideo {
		if o.audio == nil {
			r.fail(stageErr(StageExtract, KindUnsupported, extract.ErrFFmpegUnavailable))
			return
		}
		wav, cleanup, err := o.audio.ExtractAudio(ctx, path)
		if err != nil {
			r.fail(stageErr(StageExtract, KindIO, err))
			return
		}
		defer cleanup()
		path = wav
	}
	t, err := manager.Infer(ctx, tr, path)
	if err != nil {
		r.fail(stageErr(StageExtract, KindInference, err))
		return
	}
	r.Language = t.Language
	r.Segments = t.Segments
	r.Content = formatTranscript(t.Segments)
}

func (o *Orchestrator) classify(ctx context.Context, sess *manager.Session, b *batch) {
	todo := b.pending(hasContent)
	if len(todo) == 0 {
		return
	}
	defer o.evict(sess, manager.KindClassifier)

	cl, err := manager.AcquireClassifier(ctx, sess, "")
	if err != nil {
		for _, r := range todo {
			r.fail(stageErr(StageClassify, KindModelLoad, err))
		}
		return
	}
	for _, r := range todo {
		label, err := manager.Infer(ctx, cl, classifierInput(r))
		if err != nil {
			r.fail(stageErr(StageClassify, KindInference, err))
			continue
		}
		subject, ok := subjectFor(o.subjects, label)
		if !ok {
			o.log.Warn().Int("label", label).Str("file", r.Filename).Msg("unknown subject label")
			continue
		}
		r.Subject = subject
	}
}

func (o *Orchestrator) summarize(ctx context.Context, sess *manager.Session, b *batch) {
	todo := b.pending(hasContent)
	if len(todo) == 0 {
		return
	}
	defer o.evict(sess, manager.KindLLM)

	sm, err := manager.AcquireSummarizer(ctx, sess, b.req.LLMVariant)
	if err != nil {
		for _, r := range todo {
			r.fail(stageErr(StageSummarize, KindModelLoad, err))
		}
		return
	}
	for _, r := range todo {
		summary, err := manager.Infer(ctx, sm, r.Content)
		if err != nil {
			r.fail(stageErr(StageSummarize, KindInference, err))
			continue
		}
		r.Summary = summary
	}
}

func (o *Orchestrator) evict(sess *manager.Session, kind manager.Kind) {
	if err := sess.Evict(kind); err != nil {
		o.log.Warn().Err(err).Str("kind", kind.String()).Msg("evict")
	}
}

func hasContent(r *Result) bool {
	return strings.TrimSpace(r.Content) != ""
}

func classifierInput(r *Result) string {
	if len(r.Segments) > 0 {
		return transcriptText(r.Segments)
	}
	return r.Content
}
