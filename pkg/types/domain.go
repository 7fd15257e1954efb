package types

// Model describes one weights variant known to the catalog.
type Model struct {
	// Model kind: asr, llm or classifier.
	// example: asr
	Kind string `json:"kind" example:"asr"`
	// Variant identifier, unique within a kind.
	// example: small
	Variant string `json:"variant" example:"small"`
	// Absolute path to the weights on disk.
	// example: /app/models/faster-whisper-small
	Path string `json:"path" example:"/app/models/faster-whisper-small"`
	// Whether the weights path currently exists.
	// example: true
	Available bool `json:"available" example:"true"`
	// True for the variant used when a request does not name one.
	// example: false
	Default bool `json:"default,omitempty" example:"false"`
}

// Segment is one timed piece of a transcript.
type Segment struct {
	// Start offset in seconds.
	// example: 0.0
	Start float64 `json:"start" example:"0"`
	// End offset in seconds.
	// example: 3.2
	End float64 `json:"end" example:"3.2"`
	// Transcribed text.
	// example: Today we cover cell division.
	Text string `json:"text" example:"Today we cover cell division."`
}

// FileRecord is the public view of an uploaded file.
type FileRecord struct {
	// example: 12
	ID int64 `json:"id" example:"12"`
	// example: 3
	OwnerID int64 `json:"owner_id" example:"3"`
	// example: lecture1.mp3
	Filename string `json:"filename" example:"lecture1.mp3"`
	// example: audio/mpeg
	MimeType string `json:"type" example:"audio/mpeg"`
	// Size in bytes.
	// example: 1048576
	Size int64 `json:"size" example:"1048576"`
	// example: Biology
	Subject string `json:"subject,omitempty" example:"Biology"`
	// True when content and summary artifacts are stored.
	// example: true
	Processed bool `json:"processed" example:"true"`
	// True when the file belongs to another user and was shared.
	// example: false
	Shared bool `json:"shared,omitempty" example:"false"`
	// Upload time (unix seconds).
	// example: 1700000000
	CreatedAt int64 `json:"created_at" example:"1700000000"`
}

// Settings holds the per-user model preferences.
type Settings struct {
	// example: 1
	ID int64 `json:"id" example:"1"`
	// example: small_sg
	ASRModel string `json:"asr_model" example:"small_sg"`
	// example: mistral_7b
	LLM string `json:"llm" example:"mistral_7b"`
}
