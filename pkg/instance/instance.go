package instance

import "os"

// GetID identifies the running process in logs and lock diagnostics.
// FOODDASH_WORKER_ID wins, then the hostname.
func GetID() string {
	if id := os.Getenv("FOODDASH_WORKER_ID"); id != "" {
		return id
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "worker-0"
}
