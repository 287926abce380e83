package instance

import (
	"os"
	"strings"
	"sync"

	"github.com/google/uuid"
)

const idEnv = "CAFEPOS_INSTANCE_ID"

var (
	once     sync.Once
	cachedID string
)

// GetID returns a stable identifier for this process. It is used to tag
// relayed notifier events so a process can ignore its own echoes.
func GetID() string {
	once.Do(func() {
		cachedID = resolveID(os.Getenv(idEnv), hostname())
	})
	return cachedID
}

func resolveID(explicit, host string) string {
	if id := strings.TrimSpace(explicit); id != "" {
		return id
	}
	suffix := uuid.NewString()[:8]
	if host = strings.TrimSpace(host); host != "" {
		return host + "-" + suffix
	}
	return "cafepos-" + suffix
}

func hostname() string {
	name, err := os.Hostname()
	if err != nil {
		return ""
	}
	return name
}
