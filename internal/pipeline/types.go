// Package pipeline runs uploaded study materials through extraction,
// subject classification and summarization inside one registry session.
package pipeline

import (
	"fmt"
	"strings"

	"iorganise/internal/extract"
	"iorganise/pkg/types"
)

// Stage names a pipeline step.
type Stage string

const (
	StageExtract   Stage = "extract"
	StageClassify  Stage = "classify"
	StageSummarize Stage = "summarize"
	StagePersist   Stage = "persist"
)

// Error kinds carried by StageError.
const (
	KindModelLoad   = "model_load"
	KindInference   = "inference"
	KindUnsupported = "unsupported"
	KindNotFound    = "not_found"
	KindIO          = "io"
)

// StageError is the per-file outcome of a failed stage. It never aborts the
// batch.
type StageError struct {
	Stage   Stage
	Kind    string
	Message string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %s", e.Stage, e.Kind, e.Message)
}

func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, kind string, err error) *StageError {
	return &StageError{Stage: stage, Kind: kind, Message: err.Error(), Err: err}
}

// Item is one input of a batch. Exactly one source is used, in order: Text,
// FileID (resolved through the records and blob store), LocalPath.
type Item struct {
	Key       string
	Filename  string
	LocalPath string
	FileID    int64
	Text      string
}

// Request describes one batch.
type Request struct {
	Items      []Item
	ASRVariant string
	LLMVariant string
	Classify   bool
	Summarize  bool
	// Only restricts the media categories accepted; others fail extraction.
	Only []extract.Category
	// Force skips memoized artifacts.
	Force bool
}

func (r Request) accepts(c extract.Category) bool {
	if len(r.Only) == 0 {
		return true
	}
	for _, o := range r.Only {
		if o == c {
			return true
		}
	}
	return false
}

// Result is the outcome for one item.
type Result struct {
	Key      string
	FileID   int64
	Filename string
	Category extract.Category
	Language string
	Segments []types.Segment
	Content  string
	Subject  string
	Summary  string
	Cached   bool
	Err      *StageError
}

func (r *Result) ok() bool { return r.Err == nil }

// fail records err unless an earlier stage already failed.
func (r *Result) fail(e *StageError) {
	if r.Err == nil {
		r.Err = e
	}
}

// API renders the result as the response payload.
func (r *Result) API() types.FileResult {
	out := types.FileResult{
		FileID:   r.FileID,
		Filename: r.Filename,
		Language: r.Language,
		Segments: r.Segments,
		Subject:  r.Subject,
		Summary:  r.Summary,
		Cached:   r.Cached,
	}
	if len(r.Segments) == 0 {
		out.Content = r.Content
	}
	if r.Err != nil {
		out.Stage = string(r.Err.Stage)
		out.Error = r.Err.Message
	}
	return out
}

// Results maps item keys to outcomes.
type Results map[string]*Result

// API renders every result.
func (rs Results) API() types.BatchResponse {
	out := make(types.BatchResponse, len(rs))
	for k, r := range rs {
		out[k] = r.API()
	}
	return out
}

// Failed counts results carrying an error.
func (rs Results) Failed() int {
	n := 0
	for _, r := range rs {
		if r.Err != nil {
			n++
		}
	}
	return n
}

// formatTranscript renders segments as "Segment N: text" lines.
func formatTranscript(segs []types.Segment) string {
	var b strings.Builder
	for i, s := range segs {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "Segment %d: %s", i+1, s.Text)
	}
	return b.String()
}

// transcriptText joins segment text for classification.
func transcriptText(segs []types.Segment) string {
	parts := make([]string, 0, len(segs))
	for _, s := range segs {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}
