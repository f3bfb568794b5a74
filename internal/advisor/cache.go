package advisor

import (
	"crypto/sha256"
	"encoding/hex"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/kawaltani/kawaltani/internal/models"
)

// Cache stores generated advisories on disk, keyed by the warnings they
// were written for.
type Cache struct {
	dir    string
	maxAge time.Duration
}

// NewCache creates a cache in dir. Entries older than maxAge are ignored.
func NewCache(dir string, maxAge time.Duration) *Cache {
	if err := os.MkdirAll(dir, 0755); err != nil {
		log.Printf("advisor: create cache dir: %v", err)
	}
	return &Cache{dir: dir, maxAge: maxAge}
}

func (c *Cache) path(key string) string {
	return filepath.Join(c.dir, "advice_"+key+".txt")
}

// Get returns a cached advisory if one exists and is fresh.
func (c *Cache) Get(key string) (string, time.Time, bool) {
	path := c.path(key)
	info, err := os.Stat(path)
	if err != nil {
		return "", time.Time{}, false
	}
	if time.Since(info.ModTime()) > c.maxAge {
		return "", time.Time{}, false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", time.Time{}, false
	}
	return string(data), info.ModTime(), true
}

func (c *Cache) Set(key, text string) error {
	return os.WriteFile(c.path(key), []byte(text), 0644)
}

// Key identifies a set of warnings independent of their order.
func Key(warnings []models.Warning) string {
	lines := make([]string, 0, len(warnings))
	for _, w := range warnings {
		lines = append(lines, strings.Join([]string{w.Severity.String(), w.SensorLabel, w.StatusMessage, w.ActionMessage}, "\x1f"))
	}
	sort.Strings(lines)
	sum := sha256.Sum256([]byte(strings.Join(lines, "\n")))
	return hex.EncodeToString(sum[:8])
}
