package session

import (
	"sync"

	log "github.com/sirupsen/logrus"

	"milesofsmiles/api/internal/localstore"
)

const adminTrue = "true"

// Admin is the persisted is-admin flag. It survives restarts and is cleared
// only by Logout.
type Admin struct {
	mu      sync.RWMutex
	kv      KV
	gate    *Gate
	isAdmin bool
}

func NewAdmin(kv KV, gate *Gate) *Admin {
	a := &Admin{kv: kv, gate: gate}
	a.Reload()
	return a
}

// Reload re-reads the persisted flag.
func (a *Admin) Reload() {
	value, ok, err := a.kv.Get(localstore.KeyIsAdmin)
	if err != nil {
		log.WithError(err).Warn("admin flag unreadable")
	}
	a.Set(ok && value == adminTrue)
}

// Set adopts the flag without persisting it.
func (a *Admin) Set(isAdmin bool) {
	a.mu.Lock()
	a.isAdmin = isAdmin
	a.mu.Unlock()
}

func (a *Admin) IsAdmin() bool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.isAdmin
}

// Login sets and persists the flag when secret passes the gate. A mismatch
// changes nothing.
func (a *Admin) Login(secret string) bool {
	if !a.gate.Check(secret) {
		return false
	}
	a.Set(true)
	if err := a.kv.Set(localstore.KeyIsAdmin, adminTrue); err != nil {
		log.WithError(err).Warn("admin flag not persisted")
	}
	return true
}

func (a *Admin) Logout() {
	a.Set(false)
	if err := a.kv.Remove(localstore.KeyIsAdmin); err != nil {
		log.WithError(err).Warn("admin flag not cleared")
	}
}

// ChangePassword replaces the shared secret when current matches.
func (a *Admin) ChangePassword(current, next string) bool {
	return a.gate.Replace(current, next)
}
