// Package session holds the admin flag and the single shared secret that
// gates it.
package session

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"milesofsmiles/api/internal/localstore"
)

// KV is the durable store both values persist to.
type KV interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Gate compares candidates against the one shared secret. The secret is
// stored and compared as plain text.
type Gate struct {
	mu       sync.RWMutex
	kv       KV
	fallback string
	secret   string
}

// NewGate loads the persisted secret, or uses fallback when none is stored.
func NewGate(kv KV, fallback string) *Gate {
	g := &Gate{kv: kv, fallback: fallback}
	g.Reload()
	return g
}

// Reload re-reads the persisted secret.
func (g *Gate) Reload() {
	secret := g.fallback
	if value, ok, err := g.kv.Get(localstore.KeyAdminSecret); err != nil {
		log.WithError(err).Warn("admin secret unreadable, using default")
	} else if ok && value != "" {
		secret = value
	}
	g.mu.Lock()
	g.secret = secret
	g.mu.Unlock()
}

// Set adopts secret without checking or persisting it.
func (g *Gate) Set(secret string) {
	g.mu.Lock()
	g.secret = secret
	g.mu.Unlock()
}

func (g *Gate) Check(candidate string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return candidate == g.secret
}

// Replace swaps the secret for next when current matches, and persists it.
func (g *Gate) Replace(current, next string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if current != g.secret {
		return false
	}
	g.secret = next
	if err := g.kv.Set(localstore.KeyAdminSecret, next); err != nil {
		log.WithError(err).Warn("admin secret not persisted")
	}
	return true
}

func (g *Gate) Secret() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.secret
}
