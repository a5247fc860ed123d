package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tanpawarit/atelier-storefront/storefront/cart"
	"github.com/tanpawarit/atelier-storefront/storefront/contract"
	"github.com/tanpawarit/atelier-storefront/storefront/route"
)

const snapshotVersion = 1

var (
	ErrSnapshotNotFound = errors.New("session snapshot not found")
	ErrNilSnapshot      = errors.New("session snapshot is nil")
	ErrInvalidSession   = errors.New("session id is empty")
)

// Snapshot is the durable form of a session: the URL projection of its
// search state, the category page scope and the cart lines.
type Snapshot struct {
	SessionID string           `json:"session_id"`
	Version   int              `json:"version"`
	Route     route.RouteState `json:"route"`
	Scope     string           `json:"scope,omitempty"`
	Cart      []cart.Item      `json:"cart,omitempty"`
	UpdatedAt time.Time        `json:"updated_at"`
}

func (s *Snapshot) Validate() error {
	if s == nil {
		return ErrNilSnapshot
	}
	if strings.TrimSpace(s.SessionID) == "" {
		return ErrInvalidSession
	}
	if s.Version <= 0 {
		return fmt.Errorf("%w: snapshot version must be > 0", contract.ErrValidation)
	}
	for _, it := range s.Cart {
		if strings.TrimSpace(it.ProductID) == "" || it.Quantity <= 0 {
			return fmt.Errorf("%w: invalid cart line %q", contract.ErrValidation, it.ProductID)
		}
	}
	return nil
}

// Store is the snapshot persistence contract.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
	Delete(ctx context.Context, sessionID string) error
}

// prepareSave fills defaults shared by every Store implementation.
func prepareSave(snap *Snapshot) error {
	if snap == nil {
		return ErrNilSnapshot
	}
	if strings.TrimSpace(snap.SessionID) == "" {
		return ErrInvalidSession
	}
	if snap.Version <= 0 {
		snap.Version = snapshotVersion
	}
	if snap.UpdatedAt.IsZero() {
		snap.UpdatedAt = time.Now().UTC()
	} else {
		snap.UpdatedAt = snap.UpdatedAt.UTC()
	}
	return snap.Validate()
}

const defaultKeyPrefix = "storefront:session:"

func redisKey(prefix, sessionID string) (string, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return "", ErrInvalidSession
	}
	if prefix = strings.TrimSpace(prefix); prefix == "" {
		prefix = defaultKeyPrefix
	}
	return prefix + sessionID, nil
}

func decodeSnapshot(raw []byte) (*Snapshot, error) {
	snap := new(Snapshot)
	if err := json.Unmarshal(raw, snap); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	if err := snap.Validate(); err != nil {
		return nil, fmt.Errorf("stored snapshot: %w", err)
	}
	return snap, nil
}
