package httpapi

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes configures the JSON body limit; non-positive restores 1 MiB.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

const defaultMaxUploadBytes int64 = 512 << 20

// maxUploadBytes limits multipart upload requests.
var maxUploadBytes = defaultMaxUploadBytes

// SetMaxUploadMB configures the multipart body limit in MiB; non-positive
// restores the 512 MiB default.
func SetMaxUploadMB(mb int) {
	if mb <= 0 {
		maxUploadBytes = defaultMaxUploadBytes
		return
	}
	maxUploadBytes = int64(mb) << 20
}

// batchTimeout bounds how long a request waits for its pipeline batch.
// Zero means no limit beyond the client connection.
var batchTimeout = int64(0) // seconds

// SetBatchTimeoutSeconds sets the batch wait limit in seconds (0 disables).
func SetBatchTimeoutSeconds(sec int64) {
	if sec < 0 {
		sec = 0
	}
	batchTimeout = sec
}

// CORS configuration (opt-in). If disabled, no CORS middleware is added.
var (
	corsEnabled        bool
	corsAllowedOrigins []string
	corsAllowedMethods []string
	corsAllowedHeaders []string
)

// SetCORSOptions configures CORS behavior for the HTTP server. Credentials are
// always allowed so browsers can send the Authorization header.
func SetCORSOptions(enabled bool, origins, methods, headers []string) {
	corsEnabled = enabled
	corsAllowedOrigins = append([]string(nil), origins...)
	corsAllowedMethods = append([]string(nil), methods...)
	corsAllowedHeaders = append([]string(nil), headers...)
}
