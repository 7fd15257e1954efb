package pipeline

import (
	"context"
	"strings"

	"github.com/jellydator/ttlcache/v3"

	"iorganise/internal/filestore"
	"iorganise/internal/store"
)

// persist writes content and summary artifacts next to each stored upload and
// records their paths and the subject. Output of stages that completed is kept
// even when a later stage failed.
func (o *Orchestrator) persist(ctx context.Context, b *batch) {
	for _, r := range b.order {
		rec, ok := b.records[r]
		if !ok || r.Cached {
			continue
		}
		var upd store.FileUpdate
		if r.Content != "" {
			p, err := o.putArtifact(ctx, rec.Path, "content", r.Content)
			if err != nil {
				r.fail(stageErr(StagePersist, KindIO, err))
				continue
			}
			upd.ContentPath = &p
		}
		if r.Summary != "" {
			p, err := o.putArtifact(ctx, rec.Path, "summary", r.Summary)
			if err != nil {
				r.fail(stageErr(StagePersist, KindIO, err))
				continue
			}
			upd.SummaryPath = &p
		}
		if r.Subject != "" {
			subject := r.Subject
			upd.Subject = &subject
		}
		if upd == (store.FileUpdate{}) {
			continue
		}
		if _, err := o.records.UpdateFile(ctx, rec.ID, upd); err != nil {
			r.fail(stageErr(StagePersist, KindIO, err))
		}
	}
}

func (o *Orchestrator) putArtifact(ctx context.Context, upload, name, text string) (string, error) {
	p := filestore.ArtifactPath(upload, name)
	if err := o.blobs.Put(ctx, p, strings.NewReader(text)); err != nil {
		return "", err
	}
	o.artifacts.Set(p, text, ttlcache.DefaultTTL)
	return p, nil
}
