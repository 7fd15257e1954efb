package types

// ErrorResponse is a consistent JSON error payload.
type ErrorResponse struct {
	// Error message.
	// example: invalid JSON body
	Error string `json:"error" example:"invalid JSON body"`
	// HTTP status code.
	// example: 400
	Code int `json:"code" example:"400"`
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	// example: Ada
	Name string `json:"name" example:"Ada"`
	// example: ada@example.com
	Email string `json:"email" example:"ada@example.com"`
	// example: s3cret
	Password string `json:"password" example:"s3cret"`
}

// TokenResponse is returned by POST /login.
type TokenResponse struct {
	// Signed bearer token.
	AccessToken string `json:"access_token"`
	// example: bearer
	TokenType string `json:"token_type" example:"bearer"`
}

// UpdateSettingsRequest is the body of PUT /settings/{id}.
type UpdateSettingsRequest struct {
	// example: medium
	ASRModel string `json:"asr_model" example:"medium"`
	// example: llama_8b
	LLM string `json:"llm" example:"llama_8b"`
}

// ProcessRequest is the body of POST /files/process.
type ProcessRequest struct {
	// Files to process; all must be visible to the caller.
	// example: [1,2]
	FileIDs []int64 `json:"file_ids" example:"1,2"`
	// ASR variant; empty uses the caller's setting.
	// example: small
	ASRModel string `json:"asr_model,omitempty" example:"small"`
	// LLM variant; empty uses the caller's setting.
	// example: mistral_7b
	LLM string `json:"llm,omitempty" example:"mistral_7b"`
	// Run subject classification.
	// example: true
	Classify bool `json:"classify" example:"true"`
	// Run summarization.
	// example: true
	Summarize bool `json:"summarize" example:"true"`
}

// ShareRequest is the body of POST /files/share.
type ShareRequest struct {
	// example: [4]
	FileIDs []int64 `json:"fileId_list" example:"4"`
	// example: [7,8]
	UserIDs []int64 `json:"userId_list" example:"7,8"`
}

// ShareResponse reports how many share rows were created.
type ShareResponse struct {
	// example: 2
	Created int `json:"created" example:"2"`
}

// FileResult is one entry of a batch response. Entries for failed files carry
// Error and may still carry content produced by earlier stages.
type FileResult struct {
	// example: 12
	FileID int64 `json:"file_id,omitempty" example:"12"`
	// example: lecture1.mp3
	Filename string `json:"filename" example:"lecture1.mp3"`
	// example: en
	Language string `json:"language,omitempty" example:"en"`
	// Transcript segments for audio and video inputs.
	Segments []Segment `json:"segments,omitempty"`
	// Extracted text for documents and images.
	Content string `json:"content,omitempty"`
	// example: Physics
	Subject string `json:"subject,omitempty" example:"Physics"`
	// Point-form summary.
	Summary string `json:"summary,omitempty"`
	// True when artifacts were served from storage without running models.
	// example: false
	Cached bool `json:"cached,omitempty" example:"false"`
	// Pipeline stage that failed.
	// example: extract
	Stage string `json:"stage,omitempty" example:"extract"`
	// Error message for the failed stage.
	Error string `json:"error,omitempty"`
}

// BatchResponse maps a file key (1-based upload index or file id) to its result.
type BatchResponse map[string]FileResult

// DeviceResponse is returned by GET /device.
type DeviceResponse struct {
	// example: cuda
	Device string `json:"device" example:"cuda"`
	// example: float16
	Precision string `json:"precision" example:"float16"`
}

// ModelsResponse wraps the catalog returned by GET /models.
type ModelsResponse struct {
	// List of known weights variants.
	Models []Model `json:"models"`
}

// ResidentStatus summarizes a loaded model for /status.
type ResidentStatus struct {
	// example: asr
	Kind string `json:"kind" example:"asr"`
	// example: small
	Variant string `json:"variant" example:"small"`
	// example: cuda
	Device string `json:"device" example:"cuda"`
	// example: float16
	Precision string `json:"precision" example:"float16"`
	// Load time (unix seconds).
	// example: 1700000000
	LoadedAt int64 `json:"loaded_at_unix" example:"1700000000"`
	// Last time this model served a request (unix seconds).
	// example: 1700000000
	LastUsed int64 `json:"last_used_unix" example:"1700000000"`
	// Estimated memory use in MB, from the weights size.
	// example: 1200
	EstMB int `json:"est_mb" example:"1200"`
}

// StatusResponse is returned by GET /status.
type StatusResponse struct {
	// Currently resident models, at most one per kind.
	Resident []ResidentStatus `json:"resident"`
	// True when acquiring a kind evicts every other kind first.
	// example: true
	Exclusive bool `json:"exclusive" example:"true"`
	// Memory budget in MB (0 = unlimited).
	// example: 8192
	BudgetMB int `json:"budget_mb" example:"8192"`
	// Estimated used memory in MB.
	// example: 2048
	UsedMB int `json:"used_est_mb" example:"2048"`
	// Reserved margin in MB.
	// example: 512
	MarginMB int `json:"margin_mb" example:"512"`
	// Sessions waiting for the registry.
	// example: 0
	QueueLen int `json:"queue_len" example:"0"`
	// example: 32
	MaxQueueDepth int `json:"max_queue_depth" example:"32"`
	// example: 12
	LoadsTotal uint64 `json:"loads_total" example:"12"`
	// example: 11
	EvictionsTotal uint64 `json:"evictions_total" example:"11"`
	// example: 40
	HitsTotal uint64 `json:"hits_total" example:"40"`
	// Last load error observed by the registry (if any).
	LastError string `json:"last_error,omitempty"`
	// Uptime of the server in seconds.
	// example: 3600
	UptimeSeconds int64 `json:"uptime_seconds" example:"3600"`
	// Server time in unix seconds.
	// example: 1700000000
	ServerTimeUnix int64 `json:"server_time_unix" example:"1700000000"`
}

// UserResponse is returned by POST /register.
type UserResponse struct {
	// example: 3
	ID int64 `json:"id" example:"3"`
	// example: Ada
	Name string `json:"name" example:"Ada"`
	// example: ada@example.com
	Email string `json:"email" example:"ada@example.com"`
}
