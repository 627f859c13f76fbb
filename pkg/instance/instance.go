package instance

import "os"

const fallbackID = "local"

// GetID returns the process identifier used in startup logs: the platform dyno
// name, then WORKER_ID, then the hostname.
func GetID() string {
	for _, key := range []string{"DYNO", "WORKER_ID"} {
		if id := os.Getenv(key); id != "" {
			return id
		}
	}
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return fallbackID
}
