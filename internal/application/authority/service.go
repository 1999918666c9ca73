// Package authority holds the canonical copy of every synced record family.
//
// Writes land in memory immediately and are flushed to a SnapshotStore on a
// fixed interval and at shutdown. A hard kill between flushes loses the writes
// made since the last flush.
package authority

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-bank-sync/internal/domain"
)

const DefaultFlushInterval = 30 * time.Second

// SnapshotStore persists the authority state as one document.
// Load returns domain.ErrNotFound when nothing has been saved yet.
type SnapshotStore interface {
	Load(ctx context.Context) (*domain.Snapshot, error)
	Save(ctx context.Context, snap *domain.Snapshot) error
}

type Service struct {
	mu           sync.RWMutex
	profiles     map[string]domain.Profile
	userPolicies map[string]domain.UserPolicy
	global       *domain.GlobalPolicy
	registry     []domain.RegistryUser
	registryAt   time.Time
	dirty        bool

	store SnapshotStore
	now   func() time.Time
}

// NewService builds an empty authority. store may be nil, in which case
// state lives only as long as the process.
func NewService(store SnapshotStore) *Service {
	return &Service{
		profiles:     make(map[string]domain.Profile),
		userPolicies: make(map[string]domain.UserPolicy),
		store:        store,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func emailKey(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// --- profiles ---

func (s *Service) GetProfile(_ context.Context, email string) (*domain.Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.profiles[emailKey(email)]
	if !ok {
		return nil, fmt.Errorf("profile %s: %w", email, domain.ErrNotFound)
	}
	return &p, nil
}

// PutProfile shallow-merges patch into the stored profile, creating it if absent.
func (s *Service) PutProfile(_ context.Context, email string, patch domain.ProfilePatch) (*domain.Profile, error) {
	key := emailKey(email)
	if key == "" {
		return nil, fmt.Errorf("email is required: %w", domain.ErrValidation)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.profiles[key]
	if !ok {
		p = domain.Profile{Email: key}
	}
	p = patch.Apply(p)
	p.LastUpdated = s.now()
	s.profiles[key] = p
	s.dirty = true
	return &p, nil
}

func (s *Service) GetBalance(ctx context.Context, email string) (float64, error) {
	p, err := s.GetProfile(ctx, email)
	if err != nil {
		return 0, err
	}
	return p.Balance, nil
}

// PutBalance is the narrow write path that only touches the balance field.
func (s *Service) PutBalance(ctx context.Context, email string, balance float64) (*domain.Profile, error) {
	return s.PutProfile(ctx, email, domain.ProfilePatch{Balance: &balance})
}

// --- policies ---

func (s *Service) GetGlobalPolicy(_ context.Context) (*domain.GlobalPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.global == nil {
		return nil, fmt.Errorf("global policy: %w", domain.ErrNotFound)
	}
	g := *s.global
	return &g, nil
}

// PutGlobalPolicy merges patch into the global policy. A cold authority starts
// from the zero policy, so callers seeding it should send every field.
func (s *Service) PutGlobalPolicy(_ context.Context, patch domain.GlobalPolicyPatch) (*domain.GlobalPolicy, error) {
	if err := checkRate(patch.SuccessRate); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var g domain.GlobalPolicy
	if s.global != nil {
		g = *s.global
	}
	g = patch.Apply(g)
	g.LastUpdated = s.now()
	s.global = &g
	s.dirty = true
	out := g
	return &out, nil
}

func (s *Service) GetUserPolicy(_ context.Context, userID string) (*domain.UserPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.userPolicies[userID]
	if !ok {
		return nil, fmt.Errorf("policy for user %s: %w", userID, domain.ErrNotFound)
	}
	return &p, nil
}

func (s *Service) ListUserPolicies(_ context.Context) map[string]domain.UserPolicy {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]domain.UserPolicy, len(s.userPolicies))
	for k, v := range s.userPolicies {
		out[k] = v
	}
	return out
}

// PutUserPolicy merges patch into the user's policy. A missing entry starts
// from DefaultUserPolicy.
func (s *Service) PutUserPolicy(ctx context.Context, userID string, patch domain.UserPolicyPatch) (*domain.UserPolicy, error) {
	out, err := s.PutUserPolicies(ctx, map[string]domain.UserPolicyPatch{userID: patch})
	if err != nil {
		return nil, err
	}
	p := out[userID]
	return &p, nil
}

// PutUserPolicies applies every patch under one lock; nothing is written if any patch is invalid.
func (s *Service) PutUserPolicies(_ context.Context, patches map[string]domain.UserPolicyPatch) (map[string]domain.UserPolicy, error) {
	for id, patch := range patches {
		if strings.TrimSpace(id) == "" {
			return nil, fmt.Errorf("user id is required: %w", domain.ErrValidation)
		}
		if err := checkRate(patch.SuccessRate); err != nil {
			return nil, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	out := make(map[string]domain.UserPolicy, len(patches))
	for id, patch := range patches {
		p, ok := s.userPolicies[id]
		if !ok {
			p = domain.DefaultUserPolicy()
		}
		p = patch.Apply(p)
		p.LastUpdated = now
		s.userPolicies[id] = p
		out[id] = p
	}
	if len(patches) > 0 {
		s.dirty = true
	}
	return out, nil
}

func checkRate(rate *int) error {
	if rate != nil && (*rate < 0 || *rate > 100) {
		return fmt.Errorf("successRate must be between 0 and 100: %w", domain.ErrValidation)
	}
	return nil
}

// --- registry ---

func (s *Service) Registry(_ context.Context) []domain.RegistryUser {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.RegistryUser(nil), s.registry...)
}

// RegistryLastUpdated is when the registry was last replaced. It is zero
// until the first write.
func (s *Service) RegistryLastUpdated(_ context.Context) time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.registryAt
}

// ReplaceRegistry swaps the whole registry for users. It is not a merge.
func (s *Service) ReplaceRegistry(_ context.Context, users []domain.RegistryUser) error {
	if err := domain.CheckUniqueIDs(users); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.registry = append([]domain.RegistryUser(nil), users...)
	s.registryAt = s.now()
	s.dirty = true
	return nil
}

// FindByEmail looks an account up in the registry; it is the credential store
// used by the login flow.
func (s *Service) FindByEmail(_ context.Context, email string) (*domain.RegistryUser, error) {
	key := emailKey(email)
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.registry {
		if emailKey(u.Email) == key {
			out := u
			return &out, nil
		}
	}
	return nil, fmt.Errorf("account %s: %w", email, domain.ErrNotFound)
}

// --- durability ---

// Snapshot copies the current state into a persistable document.
func (s *Service) Snapshot() *domain.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Service) snapshotLocked() *domain.Snapshot {
	snap := &domain.Snapshot{
		Profiles:        make(map[string]domain.Profile, len(s.profiles)),
		UserPolicies:    make(map[string]domain.UserPolicy, len(s.userPolicies)),
		Registry:        append([]domain.RegistryUser(nil), s.registry...),
		RegistryUpdated: s.registryAt,
		SavedAt:         s.now(),
	}
	for k, v := range s.profiles {
		snap.Profiles[k] = v
	}
	for k, v := range s.userPolicies {
		snap.UserPolicies[k] = v
	}
	if s.global != nil {
		g := *s.global
		snap.GlobalPolicy = &g
	}
	return snap
}

// Restore replaces in-memory state with the stored snapshot. A missing
// snapshot leaves the authority cold.
func (s *Service) Restore(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	snap, err := s.store.Load(ctx)
	if errors.Is(err, domain.ErrNotFound) {
		slog.Info("no authority snapshot found; starting cold")
		return nil
	}
	if err != nil {
		return fmt.Errorf("load snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.profiles = make(map[string]domain.Profile, len(snap.Profiles))
	for k, v := range snap.Profiles {
		s.profiles[emailKey(k)] = v
	}
	s.userPolicies = make(map[string]domain.UserPolicy, len(snap.UserPolicies))
	for k, v := range snap.UserPolicies {
		s.userPolicies[k] = v
	}
	s.global = snap.GlobalPolicy
	s.registry = append([]domain.RegistryUser(nil), snap.Registry...)
	s.registryAt = snap.RegistryUpdated
	s.dirty = false
	slog.Info("authority snapshot restored",
		"profiles", len(s.profiles), "user_policies", len(s.userPolicies),
		"registry", len(s.registry), "saved_at", snap.SavedAt)
	return nil
}

// Flush writes a snapshot if anything changed since the last successful flush.
func (s *Service) Flush(ctx context.Context) error {
	if s.store == nil {
		return nil
	}
	s.mu.Lock()
	if !s.dirty {
		s.mu.Unlock()
		return nil
	}
	snap := s.snapshotLocked()
	s.dirty = false
	s.mu.Unlock()

	if err := s.store.Save(ctx, snap); err != nil {
		s.mu.Lock()
		s.dirty = true
		s.mu.Unlock()
		return fmt.Errorf("save snapshot: %w", err)
	}
	return nil
}

// Run flushes every interval until ctx is done, then flushes once more using
// a fresh context bounded by shutdownTimeout.
func (s *Service) Run(ctx context.Context, interval, shutdownTimeout time.Duration) {
	if interval <= 0 {
		interval = DefaultFlushInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			flushCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			if err := s.Flush(flushCtx); err != nil {
				slog.Error("final authority flush failed", "err", err)
			} else {
				slog.Info("authority state flushed on shutdown")
			}
			cancel()
			return
		case <-ticker.C:
			if err := s.Flush(ctx); err != nil {
				slog.Warn("periodic authority flush failed", "err", err)
			}
		}
	}
}
