// Package session wires one shopper's search, cart, tool bridge and summary
// together and keeps them alive across requests.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/tanpawarit/atelier-storefront/pkg/metrics"
	"github.com/tanpawarit/atelier-storefront/storefront/cart"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
	"github.com/tanpawarit/atelier-storefront/storefront/route"
	"github.com/tanpawarit/atelier-storefront/storefront/search"
	"github.com/tanpawarit/atelier-storefront/storefront/summary"
	"github.com/tanpawarit/atelier-storefront/storefront/tool"
)

type Config struct {
	IndexName     string
	HitsPerPage   int
	SearchTimeout time.Duration
	Bridge        tool.BridgeConfig
	Summary       summary.Config
}

type Deps struct {
	Backend contract.SearchBackend
	Catalog contract.ProductCatalog
	// Summarizer and Forwarder are optional.
	Summarizer contract.Summarizer
	Forwarder  tool.Forwarder
	Store      Store
}

// Session is the live state of one shopper.
type Session struct {
	ID      string
	Search  *search.Store
	Cart    *cart.Store
	Bridge  *tool.Bridge
	Outbox  *tool.Outbox
	Summary *summary.Fetcher

	runner    *search.Runner
	closeOnce sync.Once
}

// Snapshot captures the durable part of the session.
func (s *Session) Snapshot() *Snapshot {
	return &Snapshot{
		SessionID: s.ID,
		Version:   snapshotVersion,
		Route:     route.Encode(s.Search.State()),
		Scope:     s.Search.Scope(),
		Cart:      s.Cart.Items(),
		UpdatedAt: time.Now().UTC(),
	}
}

// Close tears the session down. No tool result or summary is produced afterwards.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.Bridge.Close()
		if s.Summary != nil {
			s.Summary.Close()
		}
		s.runner.Close()
		s.Outbox.Close()
		s.Search.Close()
	})
}

type Manager struct {
	cfg  Config
	deps Deps

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool
}

func NewManager(cfg Config, deps Deps) *Manager {
	if deps.Store == nil {
		deps.Store = NewMemoryStore()
	}
	return &Manager{
		cfg:      cfg,
		deps:     deps,
		sessions: make(map[string]*Session),
	}
}

// Create starts a new session from an initial search state and scope.
func (m *Manager) Create(initial search.State, scope string) (*Session, error) {
	return m.start(uuid.NewString(), initial, scope, nil)
}

func (m *Manager) Get(id string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[strings.TrimSpace(id)]
	if !ok {
		return nil, fmt.Errorf("%w: session %s", contract.ErrNotFound, id)
	}
	return s, nil
}

// Resume returns the live session or rebuilds it from its persisted snapshot.
func (m *Manager) Resume(ctx context.Context, id string) (*Session, error) {
	if s, err := m.Get(id); err == nil {
		return s, nil
	}

	snap, err := m.deps.Store.Load(ctx, id)
	if errors.Is(err, ErrSnapshotNotFound) {
		return nil, fmt.Errorf("%w: session %s", contract.ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}

	s, err := m.start(snap.SessionID, route.Decode(snap.Route), snap.Scope, snap.Cart)
	if errors.Is(err, errDuplicateSession) {
		return m.Get(snap.SessionID)
	}
	return s, err
}

// Persist saves the session snapshot.
func (m *Manager) Persist(ctx context.Context, id string) error {
	s, err := m.Get(id)
	if err != nil {
		return err
	}
	return m.deps.Store.Save(ctx, s.Snapshot())
}

// Close ends a live session without deleting its snapshot.
func (m *Manager) Close(id string) error {
	m.mu.Lock()
	s, ok := m.sessions[id]
	delete(m.sessions, id)
	m.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: session %s", contract.ErrNotFound, id)
	}
	s.Close()
	metrics.ActiveSessions.Dec()
	return nil
}

// Shutdown persists and closes every live session.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	sessions := make([]*Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		sessions = append(sessions, s)
	}
	clear(m.sessions)
	m.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		if err := m.deps.Store.Save(ctx, s.Snapshot()); err != nil {
			errs = append(errs, fmt.Errorf("persist session %s: %w", s.ID, err))
		}
		s.Close()
		metrics.ActiveSessions.Dec()
	}
	log.Info().Int("sessions", len(sessions)).Msg("session manager shut down")
	return errors.Join(errs...)
}

var errDuplicateSession = errors.New("session already live")

func (m *Manager) start(id string, initial search.State, scope string, items []cart.Item) (*Session, error) {
	searchStore := search.NewStore(initial)
	if strings.TrimSpace(scope) != "" {
		if _, err := searchStore.SetScope(scope); err != nil {
			return nil, err
		}
		// SetScope resets the page.
		if _, err := searchStore.Restore(initial); err != nil {
			return nil, err
		}
	}
	cartStore := cart.NewStore()
	if len(items) > 0 {
		cartStore.Restore(items)
	}

	var outboxOpts []tool.OutboxOption
	if m.deps.Forwarder != nil {
		outboxOpts = append(outboxOpts, tool.WithForwarder(m.deps.Forwarder))
	}
	outbox := tool.NewOutbox(outboxOpts...)

	s := &Session{
		ID:     id,
		Search: searchStore,
		Cart:   cartStore,
		Outbox: outbox,
		Bridge: tool.NewBridge(searchStore, cartStore, m.deps.Catalog, outbox, m.cfg.Bridge),
		runner: search.NewRunner(searchStore, m.deps.Backend, search.RequestConfig{
			IndexName:   m.cfg.IndexName,
			HitsPerPage: m.cfg.HitsPerPage,
		}, m.cfg.SearchTimeout),
	}
	if m.deps.Summarizer != nil {
		s.Summary = summary.NewFetcher(searchStore, m.deps.Summarizer, m.cfg.Summary)
	}

	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		s.Close()
		return nil, contract.ErrClosed
	}
	if _, exists := m.sessions[id]; exists {
		m.mu.Unlock()
		s.Close()
		return nil, errDuplicateSession
	}
	m.sessions[id] = s
	m.mu.Unlock()

	if s.Summary != nil {
		s.Summary.Start()
	}
	s.runner.Start()
	metrics.ActiveSessions.Inc()
	log.Debug().Str("session_id", id).Msg("session started")
	return s, nil
}
