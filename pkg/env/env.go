package env

import (
	"os"
	"strings"
)

const prefix = "FOODDASH_"

// Get reads FOODDASH_<key>, then the bare key, then returns fallback. It serves
// values needed before config.Load has run, such as the bootstrap log format.
func Get(key, fallback string) string {
	key = strings.TrimPrefix(key, prefix)
	for _, name := range []string{prefix + key, key} {
		if val := strings.TrimSpace(os.Getenv(name)); val != "" {
			return val
		}
	}
	return fallback
}
