package manager

import (
	"context"
	"time"

	"iorganise/pkg/types"
)

// Handle is a loaded model. Close releases its weights; only the Manager
// calls it.
type Handle interface {
	Kind() Kind
	VariantID() string
	Device() Device
	Precision() string
	Close() error
}

// Inferer is a Handle that maps an input to an output.
type Inferer[I, O any] interface {
	Handle
	Infer(ctx context.Context, in I) (O, error)
}

// Transcript is the output of speech recognition.
type Transcript struct {
	Language string
	Segments []types.Segment
}

type (
	// Transcriber takes an audio file path.
	Transcriber = Inferer[string, Transcript]
	// Summarizer takes the text to summarize.
	Summarizer = Inferer[string, string]
	// Classifier returns the label index for a text.
	Classifier = Inferer[string, int]
)

// LoadSpec is everything a Loader needs to construct a handle.
type LoadSpec struct {
	Kind      Kind
	Variant   string
	Path      string
	Device    Device
	Precision string
	BatchSize int
}

// Loader constructs handles of one kind.
type Loader interface {
	Load(ctx context.Context, spec LoadSpec) (Handle, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, spec LoadSpec) (Handle, error)

func (f LoaderFunc) Load(ctx context.Context, spec LoadSpec) (Handle, error) { return f(ctx, spec) }

// Resolver maps kind/variant to a weights path. An empty variant means the
// kind's default.
type Resolver interface {
	Resolve(kind, variant string) (string, error)
	Default(kind string) string
}

// slot holds the resident handle of one kind.
type slot struct {
	handle   Handle
	variant  string
	loadedAt time.Time
	lastUsed time.Time
	estMB    int
}
