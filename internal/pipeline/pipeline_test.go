package pipeline

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"iorganise/internal/extract"
	"iorganise/internal/filestore"
	"iorganise/internal/manager"
	"iorganise/internal/store"
	"iorganise/pkg/types"
)

func TestBatchWithOneFailingFile(t *testing.T) {
	r := newRig(t)
	items := []Item{
		r.file("1", "a.txt", "cells divide\nby mitosis"),
		r.file("2", "b.txt", "forces and motion"),
		r.file("3", "c.pdf", "%PDF-1.4\nthis file is truncated"),
		r.file("4", "d.wav", "newton's first law\nobjects at rest"),
		r.file("5", "e.txt", "energy is conserved"),
	}
	res, err := r.orch.Run(context.Background(), Request{Items: items, Classify: true, Summarize: true})
	require.NoError(t, err)
	require.Len(t, res, 5)
	assert.Equal(t, 1, res.Failed())

	failed := res["3"]
	require.NotNil(t, failed.Err)
	assert.Equal(t, StageExtract, failed.Err.Stage)
	assert.Empty(t, failed.Summary)

	for _, k := range []string{"1", "2", "4", "5"} {
		got := res[k]
		assert.Nil(t, got.Err, k)
		assert.NotEmpty(t, got.Summary, k)
		assert.NotEmpty(t, got.Subject, k)
	}
	assert.Equal(t, "Biology", res["1"].Subject)
	assert.Equal(t, "Physics", res["2"].Subject)
	assert.Equal(t, "- cells divide", res["1"].Summary)
	assert.Equal(t, "- Segment 1: newton's first law", res["4"].Summary)
	assert.Len(t, res["4"].Segments, 2)

	// One construction per kind for the whole batch.
	assert.EqualValues(t, 1, r.loads[manager.KindASR].Load())
	assert.EqualValues(t, 1, r.loads[manager.KindClassifier].Load())
	assert.EqualValues(t, 1, r.loads[manager.KindLLM].Load())
	assert.Zero(t, r.m.ResidentCount())
}

func TestAudioSummaryEvictsBetweenStages(t *testing.T) {
	r := newRig(t)
	item := r.file("1", "lecture.wav", "today we cover optics\nlight bends")
	res, err := r.orch.Run(context.Background(), Request{
		Items:      []Item{item},
		ASRVariant: "small",
		Summarize:  true,
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"load_ready:asr", "evict:asr", "load_ready:llm", "evict:llm"},
		r.pub.Trace(manager.EventLoadReady, manager.EventEvict))
	for _, e := range r.pub.Events() {
		if e.Name == manager.EventLoadReady && e.Kind == manager.KindASR {
			assert.Equal(t, "small", e.Variant)
		}
	}

	got := res["1"]
	require.Nil(t, got.Err)
	assert.Equal(t, "en", got.Language)
	assert.Equal(t, []types.Segment{
		{Start: 0, End: 1, Text: "today we cover optics"},
		{Start: 1, End: 2, Text: "light bends"},
	}, got.Segments)
	assert.Equal(t, "- Segment 1: today we cover optics", got.Summary)

	api := got.API()
	assert.NotEmpty(t, api.Segments)
	assert.Empty(t, api.Content)
	assert.NotEmpty(t, api.Summary)
}

func TestMemoizedFileServedFromStorage(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	f := r.upload("lecture.txt", "original text")

	content := "Segment 1: café\r\n\ttabs and  spaces \n"
	summary := "- point one\n- point two\n"
	cp := filestore.ArtifactPath(f.Path, "content")
	sp := filestore.ArtifactPath(f.Path, "summary")
	require.NoError(t, r.blobs.Put(ctx, cp, strings.NewReader(content)))
	require.NoError(t, r.blobs.Put(ctx, sp, strings.NewReader(summary)))
	subject := "History"
	_, err := r.st.UpdateFile(ctx, f.ID, store.FileUpdate{Subject: &subject, ContentPath: &cp, SummaryPath: &sp})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		res, err := r.orch.Run(ctx, Request{
			Items:     []Item{{Key: "7", FileID: f.ID}},
			Classify:  true,
			Summarize: true,
		})
		require.NoError(t, err)
		got := res["7"]
		require.Nil(t, got.Err)
		assert.True(t, got.Cached)
		assert.Equal(t, content, got.Content)
		assert.Equal(t, summary, got.Summary)
		assert.Equal(t, "History", got.Subject)
		assert.Equal(t, "lecture.txt", got.Filename)
	}
	assert.Zero(t, r.totalLoads())
	assert.Zero(t, r.infers.Load())
	assert.Empty(t, r.pub.Events())
}

func TestStoredFileArtifactsArePersisted(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	f := r.upload("notes.txt", "cells have membranes\nand a nucleus")

	res, err := r.orch.Run(ctx, Request{Items: []Item{{Key: "1", FileID: f.ID}}, Classify: true, Summarize: true})
	require.NoError(t, err)
	got := res["1"]
	require.Nil(t, got.Err)
	assert.False(t, got.Cached)
	assert.Equal(t, "Biology", got.Subject)

	rec, err := r.st.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.True(t, rec.Processed())
	assert.Equal(t, "Biology", rec.Subject)
	stored, err := filestore.ReadAll(ctx, r.blobs, rec.SummaryPath)
	require.NoError(t, err)
	assert.Equal(t, got.Summary, string(stored))
	stored, err = filestore.ReadAll(ctx, r.blobs, rec.ContentPath)
	require.NoError(t, err)
	assert.Equal(t, "cells have membranes\nand a nucleus", string(stored))

	loads := r.totalLoads()
	res, err = r.orch.Run(ctx, Request{Items: []Item{{Key: "1", FileID: f.ID}}, Classify: true, Summarize: true})
	require.NoError(t, err)
	assert.True(t, res["1"].Cached)
	assert.Equal(t, got.Summary, res["1"].Summary)
	assert.Equal(t, loads, r.totalLoads())

	res, err = r.orch.Run(ctx, Request{Items: []Item{{Key: "1", FileID: f.ID}}, Summarize: true, Force: true})
	require.NoError(t, err)
	assert.False(t, res["1"].Cached)
	assert.Greater(t, r.totalLoads(), loads)
}

func TestUnknownFileID(t *testing.T) {
	r := newRig(t)
	res, err := r.orch.Run(context.Background(), Request{Items: []Item{{Key: "1", FileID: 404}}, Summarize: true})
	require.NoError(t, err)
	require.NotNil(t, res["1"].Err)
	assert.Equal(t, KindNotFound, res["1"].Err.Kind)
	assert.ErrorIs(t, res["1"].Err, store.ErrNotFound)
}

func TestASRLoadFailureMarksEveryAudioFile(t *testing.T) {
	r := newRig(t)
	r.loadErr[manager.KindASR] = errBoom
	items := []Item{
		r.file("1", "a.wav", "one"),
		r.file("2", "b.wav", "two"),
		r.file("3", "c.txt", "some text"),
	}
	res, err := r.orch.Run(context.Background(), Request{Items: items, Summarize: true})
	require.NoError(t, err)

	for _, k := range []string{"1", "2"} {
		require.NotNil(t, res[k].Err, k)
		assert.Equal(t, KindModelLoad, res[k].Err.Kind)
		assert.True(t, manager.IsModelLoad(res[k].Err))
		assert.Empty(t, res[k].Summary)
	}
	assert.Nil(t, res["3"].Err)
	assert.Equal(t, "- some text", res["3"].Summary)
	assert.Zero(t, r.m.ResidentCount())
}

func TestLLMLoadFailureKeepsContent(t *testing.T) {
	r := newRig(t)
	r.loadErr[manager.KindLLM] = errBoom
	res, err := r.orch.Run(context.Background(), Request{Items: []Item{r.file("1", "a.wav", "hello")}, Summarize: true})
	require.NoError(t, err)
	got := res["1"]
	require.NotNil(t, got.Err)
	assert.Equal(t, StageSummarize, got.Err.Stage)
	assert.Len(t, got.Segments, 1)
	assert.Equal(t, "summarize", got.API().Stage)
}

func TestSummarizeFailurePersistsEarlierStages(t *testing.T) {
	r := newRig(t)
	ctx := context.Background()
	r.loadErr[manager.KindLLM] = errBoom
	f := r.upload("notes.txt", "cells have membranes")

	res, err := r.orch.Run(ctx, Request{Items: []Item{{Key: "1", FileID: f.ID}}, Classify: true, Summarize: true})
	require.NoError(t, err)
	got := res["1"]
	require.NotNil(t, got.Err)
	assert.Equal(t, StageSummarize, got.Err.Stage)
	assert.Equal(t, "Biology", got.Subject)

	rec, err := r.st.GetFile(ctx, f.ID)
	require.NoError(t, err)
	assert.False(t, rec.Processed())
	assert.Equal(t, "Biology", rec.Subject)
	assert.Empty(t, rec.SummaryPath)
	stored, err := filestore.ReadAll(ctx, r.blobs, rec.ContentPath)
	require.NoError(t, err)
	assert.Equal(t, "cells have membranes", string(stored))

	delete(r.loadErr, manager.KindLLM)
	res, err = r.orch.Run(ctx, Request{Items: []Item{{Key: "1", FileID: f.ID}}, Classify: true, Summarize: true})
	require.NoError(t, err)
	require.Nil(t, res["1"].Err)
	assert.False(t, res["1"].Cached)
	assert.NotEmpty(t, res["1"].Summary)
}

func TestUnknownLabelLeavesSubjectUnset(t *testing.T) {
	r := newRig(t)
	res, err := r.orch.Run(context.Background(), Request{
		Items:    []Item{{Key: "1", Text: "a mystery topic"}, {Key: "2", Text: "momentum"}},
		Classify: true,
	})
	require.NoError(t, err)
	assert.Nil(t, res["1"].Err)
	assert.Empty(t, res["1"].Subject)
	assert.Equal(t, "Physics", res["2"].Subject)
}

func TestOnlyRejectsOtherCategories(t *testing.T) {
	r := newRig(t)
	res, err := r.orch.Run(context.Background(), Request{
		Items: []Item{r.file("1", "a.txt", "text"), r.file("2", "b.wav", "audio")},
		Only:  []extract.Category{extract.CategoryAudio, extract.CategoryVideo},
	})
	require.NoError(t, err)
	require.NotNil(t, res["1"].Err)
	assert.Equal(t, KindUnsupported, res["1"].Err.Kind)
	assert.Nil(t, res["2"].Err)
}

func TestImagesAndUnknownFiles(t *testing.T) {
	r := newRig(t)
	res, err := r.orch.Run(context.Background(), Request{Items: []Item{
		r.file("1", "ok.png", "scanned page"),
		r.file("2", "bad.png", "bad image"),
		r.file("3", "blob.bin", "\x00\x01"),
	}})
	require.NoError(t, err)
	assert.Equal(t, "ocr: scanned page", res["1"].Content)
	assert.Nil(t, res["2"].Err)
	assert.Empty(t, res["2"].Content)
	assert.Nil(t, res["3"].Err)
	assert.Empty(t, res["3"].Content)
	assert.Zero(t, r.totalLoads())
}

func TestVideoGoesThroughAudioExtraction(t *testing.T) {
	r := newRig(t)
	res, err := r.orch.Run(context.Background(), Request{Items: []Item{r.file("1", "talk.mp4", "frames")}})
	require.NoError(t, err)
	require.Nil(t, res["1"].Err)
	assert.Equal(t, "frames", res["1"].Segments[0].Text)
	assert.Equal(t, 1, r.audio.cleanups)
}

func TestSessionUnavailable(t *testing.T) {
	r := newRig(t)
	require.NoError(t, r.m.Close())
	_, err := r.orch.Run(context.Background(), Request{Items: []Item{{Key: "1", Text: "x"}}})
	assert.ErrorIs(t, err, manager.ErrClosed)
}

func TestFormatTranscript(t *testing.T) {
	segs := []types.Segment{{Text: "first"}, {Text: "second"}}
	assert.Equal(t, "Segment 1: first\nSegment 2: second", formatTranscript(segs))
	assert.Equal(t, "first second", transcriptText(segs))
}
