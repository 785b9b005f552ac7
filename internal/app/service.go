package app

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"milesofsmiles/api/internal/auth"
	"milesofsmiles/api/internal/bus"
	"milesofsmiles/api/internal/config"
	"milesofsmiles/api/internal/content"
	"milesofsmiles/api/internal/localstore"
	"milesofsmiles/api/internal/rbac"
	"milesofsmiles/api/internal/remote"
	"milesofsmiles/api/internal/search"
	"milesofsmiles/api/internal/session"
	"milesofsmiles/api/internal/util"
)

const (
	remoteTimeout  = 15 * time.Second
	publishTimeout = 5 * time.Second
	adminSubject   = "operator"
)

type Session struct {
	Token     string
	Role      string
	JTI       string
	ExpiresAt time.Time
}

type localStore interface {
	session.KV
	Ping(ctx context.Context) error
}

type searchIndex interface {
	Reindex(doc content.Document)
	Search(q search.Query) search.Response
}

// Service owns the live site document and the admin flag. Every change to
// the document goes through it.
type Service struct {
	cfg    config.Config
	origin string
	local  localStore
	remote remote.Store
	events bus.Bus
	search searchIndex
	gate   *session.Gate
	admin  *session.Admin

	// mu orders document changes; pubMu is taken before mu is released so
	// watchers and bus events see commits in order.
	mu    sync.RWMutex
	doc   content.Document
	pubMu sync.Mutex

	push   *debouncer
	pushMu sync.Mutex

	watchMu     sync.RWMutex
	watchers    map[int]func(content.Document)
	nextWatcher int

	startOnce sync.Once
	closeOnce sync.Once
	unsubs    []func()
	ready     chan struct{}
	wg        sync.WaitGroup
}

// New wires a service. remoteStore, events and searchService may be nil, in
// which case the no-op mirror, an in-process bus and no index are used.
func New(cfg config.Config, local localStore, remoteStore remote.Store, events bus.Bus, searchService searchIndex) *Service {
	if remoteStore == nil {
		remoteStore = remote.Noop{}
	}
	if events == nil {
		events = bus.NewLocal()
	}
	if cfg.DebounceWindow <= 0 {
		cfg.DebounceWindow = time.Second
	}
	gate := session.NewGate(local, cfg.DefaultAdminSecret)
	s := &Service{
		cfg:      cfg,
		origin:   util.NewID("origin"),
		local:    local,
		remote:   remoteStore,
		events:   events,
		search:   searchService,
		gate:     gate,
		admin:    session.NewAdmin(local, gate),
		doc:      content.Defaults(),
		watchers: make(map[int]func(content.Document)),
		ready:    make(chan struct{}),
	}
	s.push = newDebouncer(cfg.DebounceWindow, s.pushRemote)
	return s
}

// Origin identifies this instance on the bus and in remote snapshots.
func (s *Service) Origin() string {
	return s.origin
}

// Start loads the local copy, subscribes to the bus and the remote insert
// feed, and fetches the latest remote snapshot in the background. Ready is
// closed once that fetch has finished.
func (s *Service) Start(ctx context.Context) {
	s.startOnce.Do(func() {
		s.loadLocal()

		if unsubscribe, err := s.events.Subscribe(ctx, s.handleEvent); err != nil {
			log.WithError(err).Warn("storage events unavailable")
		} else {
			s.unsubs = append(s.unsubs, unsubscribe)
		}

		if unsubscribe, err := s.remote.SubscribeInserts(ctx, s.handleInsert); err != nil {
			log.WithError(err).WithField("remote", s.remote.Name()).Warn("remote insert feed unavailable")
		} else {
			s.unsubs = append(s.unsubs, unsubscribe)
		}

		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer close(s.ready)
			s.fetchLatest(ctx)
		}()
	})
}

// Ready is closed when the startup remote fetch has completed or failed.
func (s *Service) Ready() <-chan struct{} {
	return s.ready
}

func (s *Service) loadLocal() {
	raw, ok, err := s.local.Get(localstore.KeyContent)
	if err != nil {
		log.WithError(err).Warn("local content unreadable, using defaults")
	}
	doc := content.Defaults()
	if ok {
		doc = content.Merge([]byte(raw))
	}
	s.adopt(doc, false)
}

func (s *Service) fetchLatest(ctx context.Context) {
	ctx, cancel := context.WithTimeout(ctx, remoteTimeout)
	defer cancel()
	snapshot, err := s.remote.FetchLatest(ctx)
	if err != nil {
		if errors.Is(err, remote.ErrNoSnapshot) {
			log.WithField("remote", s.remote.Name()).Debug("no remote snapshot yet")
			return
		}
		log.WithError(err).WithField("remote", s.remote.Name()).Warn("remote fetch failed, keeping local content")
		return
	}
	log.WithField("snapshot", snapshot.ID).Info("adopting latest remote snapshot")
	s.adopt(content.Merge(snapshot.Content), true)
}

// Content returns a copy of the live document.
func (s *Service) Content() content.Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.doc.Clone()
}

func (s *Service) Section(section content.Section) (any, error) {
	return content.SectionValue(s.Content(), section)
}

// UpdateContent applies patch, writes the result to the local store,
// announces it on the bus and schedules the remote write. Calls are applied
// one at a time in call order. A rejected patch changes nothing.
func (s *Service) UpdateContent(ctx context.Context, patch content.Patch) (content.Document, error) {
	s.mu.Lock()
	next, err := content.Apply(s.doc, patch)
	if err != nil {
		s.mu.Unlock()
		return content.Document{}, err
	}
	return s.commitLocked(ctx, next), nil
}

// ReplaceDocument swaps the whole document through the same path as
// UpdateContent. The input is merged against defaults first.
func (s *Service) ReplaceDocument(ctx context.Context, doc content.Document) content.Document {
	s.mu.Lock()
	return s.commitLocked(ctx, content.MergeDocument(doc))
}

// commitLocked must be called with mu held and releases it.
func (s *Service) commitLocked(ctx context.Context, next content.Document) content.Document {
	s.doc = next
	raw, err := json.Marshal(next)
	if err != nil {
		log.WithError(err).Error("encode content")
	} else if err := s.local.Set(localstore.KeyContent, string(raw)); err != nil {
		log.WithError(err).Warn("local content write failed, keeping in-memory copy")
	}
	s.push.Trigger()

	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()
	s.notify(next)
	if err == nil {
		s.publish(ctx, localstore.KeyContent, string(raw))
	}
	return next.Clone()
}

// adopt replaces the document with one that came from elsewhere. Nothing
// is published and no remote write is scheduled.
func (s *Service) adopt(doc content.Document, persist bool) {
	s.mu.Lock()
	s.doc = doc
	if persist {
		raw, err := json.Marshal(doc)
		if err == nil {
			err = s.local.Set(localstore.KeyContent, string(raw))
		}
		if err != nil {
			log.WithError(err).Warn("local content write failed")
		}
	}
	s.pubMu.Lock()
	s.mu.Unlock()
	defer s.pubMu.Unlock()
	s.notify(doc)
}

func (s *Service) publish(ctx context.Context, key, value string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := s.events.Publish(ctx, bus.Event{Key: key, NewValue: value, Origin: s.origin}); err != nil {
		log.WithError(err).WithField("key", key).Warn("storage event not published")
	}
}

func (s *Service) handleEvent(event bus.Event) {
	if event.Origin == s.origin {
		return
	}
	switch event.Key {
	case localstore.KeyContent:
		var raw []byte
		if event.NewValue != "" {
			raw = []byte(event.NewValue)
		}
		s.adopt(content.Merge(raw), false)
	case localstore.KeyIsAdmin:
		s.admin.Reload()
	case localstore.KeyAdminSecret:
		s.gate.Reload()
	}
}

func (s *Service) handleInsert(snapshot remote.Snapshot) {
	if snapshot.Origin == s.origin {
		return
	}
	log.WithFields(log.Fields{"snapshot": snapshot.ID, "origin": snapshot.Origin}).Debug("remote insert")
	s.adopt(content.Merge(snapshot.Content), true)
}

// pushRemote inserts the current document. Only one insert runs at a time.
func (s *Service) pushRemote() {
	s.pushMu.Lock()
	defer s.pushMu.Unlock()

	raw, err := json.Marshal(s.Content())
	if err != nil {
		log.WithError(err).Error("encode content")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), remoteTimeout)
	defer cancel()
	snapshot, err := s.remote.InsertSnapshot(ctx, s.origin, raw)
	if err != nil {
		log.WithError(err).WithField("remote", s.remote.Name()).Warn("remote snapshot insert failed")
		return
	}
	log.WithFields(log.Fields{"remote": s.remote.Name(), "snapshot": snapshot.ID}).Debug("remote snapshot inserted")
}

// Watch calls fn with every new document until the returned func is
// called. Calls arrive in commit order, outside the document lock; fn must
// not block and must not update content.
func (s *Service) Watch(fn func(content.Document)) func() {
	s.watchMu.Lock()
	id := s.nextWatcher
	s.nextWatcher++
	s.watchers[id] = fn
	s.watchMu.Unlock()
	return func() {
		s.watchMu.Lock()
		delete(s.watchers, id)
		s.watchMu.Unlock()
	}
}

func (s *Service) notify(doc content.Document) {
	if s.search != nil {
		s.search.Reindex(doc)
	}
	s.watchMu.RLock()
	defer s.watchMu.RUnlock()
	for _, fn := range s.watchers {
		fn(doc.Clone())
	}
}

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) IsAdmin() bool {
	return s.admin.IsAdmin()
}

// Login sets the admin flag when secret matches and reports whether it did.
func (s *Service) Login(ctx context.Context, secret string) bool {
	if !s.admin.Login(secret) {
		return false
	}
	s.publish(ctx, localstore.KeyIsAdmin, "true")
	return true
}

func (s *Service) Logout(ctx context.Context) {
	s.admin.Logout()
	s.publish(ctx, localstore.KeyIsAdmin, "")
}

// ChangePassword replaces the shared secret when current matches. Other
// instances are told to reload it; the secret itself is not sent.
func (s *Service) ChangePassword(ctx context.Context, current, next string) bool {
	if !s.admin.ChangePassword(current, next) {
		return false
	}
	s.publish(ctx, localstore.KeyAdminSecret, "")
	return true
}

func (s *Service) signingKey() []byte {
	return auth.SigningKey(s.cfg.JWTSecret, s.gate.Secret())
}

// IssueSession mints an admin bearer token bound to the current secret.
func (s *Service) IssueSession() (Session, error) {
	jti := util.NewID("jti")
	token, expiresAt, err := auth.IssueToken(s.signingKey(), adminSubject, string(rbac.RoleAdmin), jti, s.cfg.AccessTTL)
	if err != nil {
		return Session{}, err
	}
	return Session{Token: token, Role: string(rbac.RoleAdmin), JTI: jti, ExpiresAt: expiresAt}, nil
}

// SessionFromToken validates token against the current secret. A token
// outlives neither a logout nor a password change.
func (s *Service) SessionFromToken(token string) (Session, error) {
	claims, err := auth.ParseToken(s.signingKey(), token)
	if err != nil {
		return Session{}, err
	}
	if !s.admin.IsAdmin() {
		return Session{}, auth.ErrInvalidToken
	}
	return Session{
		Token:     token,
		Role:      string(rbac.Normalize(claims.Role)),
		JTI:       claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

func (s *Service) Can(role string, action rbac.Action) bool {
	return rbac.Can(rbac.Normalize(role), action)
}

// Checks pings each backing store. A nil entry is healthy.
func (s *Service) Checks(ctx context.Context) map[string]error {
	return map[string]error{
		"local":  s.local.Ping(ctx),
		"remote": s.remote.Ping(ctx),
		"bus":    s.events.Ping(ctx),
	}
}

// Close flushes a pending remote write and drops the bus and remote
// subscriptions. The stores themselves are closed by their owner.
func (s *Service) Close() {
	s.closeOnce.Do(func() {
		s.push.Flush()
		for _, unsubscribe := range s.unsubs {
			unsubscribe()
		}
		s.wg.Wait()
	})
}
