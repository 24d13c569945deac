package httpapi

// maxBodyBytes controls the maximum allowed request body size for JSON endpoints.
var maxBodyBytes int64 = 1 << 20

// SetMaxBodyBytes allows configuring the maximum request body size.
func SetMaxBodyBytes(n int64) {
	if n <= 0 {
		maxBodyBytes = 1 << 20
		return
	}
	maxBodyBytes = n
}

// CORS configuration. The desktop UI runs in a webview served from its own
// origin, so CORS is on by default for loopback origins.
var (
	corsAllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*", "tauri://localhost"}
)

// SetCORSOrigins overrides the allowed origins. Empty keeps the defaults.
func SetCORSOrigins(origins []string) {
	if len(origins) == 0 {
		return
	}
	corsAllowedOrigins = append([]string(nil), origins...)
}
