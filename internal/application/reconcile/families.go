package reconcile

import (
	"context"
	"errors"
	"maps"
	"time"

	"github.com/go-bank-sync/internal/domain"
	"golang.org/x/sync/errgroup"
)

// Authority is the remote side of every family. The HTTP authority client
// satisfies it; fetches of absent records wrap domain.ErrNotFound.
type Authority interface {
	FetchProfile(ctx context.Context, email string) (*domain.Profile, error)
	PushProfile(ctx context.Context, email string, patch domain.ProfilePatch) error
	PushBalance(ctx context.Context, email string, balance float64) error

	FetchGlobalPolicy(ctx context.Context) (*domain.GlobalPolicy, error)
	PushGlobalPolicy(ctx context.Context, patch domain.GlobalPolicyPatch) error

	FetchUserPolicies(ctx context.Context) (map[string]domain.UserPolicy, error)
	PushUserPolicies(ctx context.Context, patches map[string]domain.UserPolicyPatch) error

	FetchRegistry(ctx context.Context) ([]domain.RegistryUser, error)
	PushRegistry(ctx context.Context, users []domain.RegistryUser) error
}

const (
	ProfileInterval  = 10 * time.Second
	PolicyInterval   = 10 * time.Second
	RegistryInterval = 15 * time.Second
)

// Intervals overrides the poll interval per family. Zero fields keep the defaults.
type Intervals struct {
	Profile  time.Duration
	Policy   time.Duration
	Registry time.Duration
}

func pick(d, fallback time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fallback
}

func absent(err error) bool { return errors.Is(err, domain.ErrNotFound) }

type (
	ProfileReconciler      = Reconciler[domain.Profile, domain.ProfilePatch]
	GlobalPolicyReconciler = Reconciler[domain.GlobalPolicy, domain.GlobalPolicyPatch]
	UserPolicyReconciler   = Reconciler[map[string]domain.UserPolicy, map[string]domain.UserPolicyPatch]
	RegistryReconciler     = Reconciler[[]domain.RegistryUser, []domain.RegistryUser]
)

// ProfileFamily syncs the signed-in user's profile. Balance-only patches use
// the authority's narrow balance path.
func ProfileFamily(api Authority, email string, interval time.Duration) Family[domain.Profile, domain.ProfilePatch] {
	return Family[domain.Profile, domain.ProfilePatch]{
		Name:     "profile",
		CacheKey: "profile",
		Interval: pick(interval, ProfileInterval),
		Default:  func() domain.Profile { return domain.Profile{Email: email} },
		Empty:    func(p domain.Profile) bool { return p.LastUpdated.IsZero() && len(p.Transactions) == 0 },
		Fetch: func(ctx context.Context) (domain.Profile, bool, error) {
			p, err := api.FetchProfile(ctx, email)
			if absent(err) {
				return domain.Profile{}, false, nil
			}
			if err != nil {
				return domain.Profile{}, false, err
			}
			return *p, true, nil
		},
		Upload: func(ctx context.Context, local domain.Profile) error {
			return api.PushProfile(ctx, email, domain.PatchFromProfile(local))
		},
		Forward: func(ctx context.Context, patch domain.ProfilePatch) error {
			if patch.BalanceOnly() {
				return api.PushBalance(ctx, email, *patch.Balance)
			}
			return api.PushProfile(ctx, email, patch)
		},
		Merge: func(_, remote domain.Profile) domain.Profile {
			remote.Transactions = append([]domain.Transaction(nil), remote.Transactions...)
			return remote
		},
		Apply: func(cur domain.Profile, patch domain.ProfilePatch) domain.Profile {
			cur.Transactions = append([]domain.Transaction(nil), cur.Transactions...)
			next := patch.Apply(cur)
			next.LastUpdated = time.Now().UTC()
			return next
		},
	}
}

func GlobalPolicyFamily(api Authority, interval time.Duration) Family[domain.GlobalPolicy, domain.GlobalPolicyPatch] {
	return Family[domain.GlobalPolicy, domain.GlobalPolicyPatch]{
		Name:     "global_policy",
		CacheKey: "global_policy",
		Interval: pick(interval, PolicyInterval),
		Default:  domain.DefaultGlobalPolicy,
		Empty:    func(g domain.GlobalPolicy) bool { return g.LastUpdated.IsZero() },
		Fetch: func(ctx context.Context) (domain.GlobalPolicy, bool, error) {
			g, err := api.FetchGlobalPolicy(ctx)
			if absent(err) {
				return domain.GlobalPolicy{}, false, nil
			}
			if err != nil {
				return domain.GlobalPolicy{}, false, err
			}
			return *g, true, nil
		},
		Upload: func(ctx context.Context, local domain.GlobalPolicy) error {
			return api.PushGlobalPolicy(ctx, domain.GlobalPolicyPatch{
				TransfersEnabled: &local.TransfersEnabled,
				SuccessRate:      &local.SuccessRate,
				DailyLimit:       &local.DailyLimit,
			})
		},
		Forward: api.PushGlobalPolicy,
		Merge:   func(_, remote domain.GlobalPolicy) domain.GlobalPolicy { return remote },
		Apply: func(cur domain.GlobalPolicy, patch domain.GlobalPolicyPatch) domain.GlobalPolicy {
			next := patch.Apply(cur)
			next.LastUpdated = time.Now().UTC()
			return next
		},
	}
}

// UserPolicyFamily syncs the whole per-user policy map. On merge, entries the
// authority knows about win; entries only this device has are kept.
func UserPolicyFamily(api Authority, interval time.Duration) Family[map[string]domain.UserPolicy, map[string]domain.UserPolicyPatch] {
	return Family[map[string]domain.UserPolicy, map[string]domain.UserPolicyPatch]{
		Name:     "user_policies",
		CacheKey: "user_policies",
		Interval: pick(interval, PolicyInterval),
		Default:  func() map[string]domain.UserPolicy { return map[string]domain.UserPolicy{} },
		Empty:    func(m map[string]domain.UserPolicy) bool { return len(m) == 0 },
		Fetch: func(ctx context.Context) (map[string]domain.UserPolicy, bool, error) {
			m, err := api.FetchUserPolicies(ctx)
			if absent(err) {
				return nil, false, nil
			}
			if err != nil {
				return nil, false, err
			}
			return m, len(m) > 0, nil
		},
		Upload: func(ctx context.Context, local map[string]domain.UserPolicy) error {
			patches := make(map[string]domain.UserPolicyPatch, len(local))
			for id, p := range local {
				p := p
				patches[id] = domain.UserPolicyPatch{TransfersEnabled: &p.TransfersEnabled, SuccessRate: &p.SuccessRate}
			}
			return api.PushUserPolicies(ctx, patches)
		},
		Forward: api.PushUserPolicies,
		Merge: func(local, remote map[string]domain.UserPolicy) map[string]domain.UserPolicy {
			out := maps.Clone(local)
			if out == nil {
				out = make(map[string]domain.UserPolicy, len(remote))
			}
			maps.Copy(out, remote)
			return out
		},
		Apply: func(cur map[string]domain.UserPolicy, patches map[string]domain.UserPolicyPatch) map[string]domain.UserPolicy {
			out := maps.Clone(cur)
			if out == nil {
				out = make(map[string]domain.UserPolicy, len(patches))
			}
			now := time.Now().UTC()
			for id, patch := range patches {
				p, ok := out[id]
				if !ok {
					p = domain.DefaultUserPolicy()
				}
				p = patch.Apply(p)
				p.LastUpdated = now
				out[id] = p
			}
			return out
		},
	}
}

// RegistryFamily syncs the user registry. Every write replaces the whole list.
func RegistryFamily(api Authority, interval time.Duration) Family[[]domain.RegistryUser, []domain.RegistryUser] {
	return Family[[]domain.RegistryUser, []domain.RegistryUser]{
		Name:     "registry",
		CacheKey: "registry",
		Interval: pick(interval, RegistryInterval),
		Default:  func() []domain.RegistryUser { return nil },
		Empty:    func(u []domain.RegistryUser) bool { return len(u) == 0 },
		Fetch: func(ctx context.Context) ([]domain.RegistryUser, bool, error) {
			users, err := api.FetchRegistry(ctx)
			if absent(err) {
				return nil, false, nil
			}
			if err != nil {
				return nil, false, err
			}
			return users, len(users) > 0, nil
		},
		Upload:  api.PushRegistry,
		Forward: api.PushRegistry,
		Merge: func(_, remote []domain.RegistryUser) []domain.RegistryUser {
			return append([]domain.RegistryUser(nil), remote...)
		},
		Apply: func(_ []domain.RegistryUser, users []domain.RegistryUser) []domain.RegistryUser {
			return append([]domain.RegistryUser(nil), users...)
		},
	}
}

// Set bundles the four reconcilers a device runs.
type Set struct {
	ProfileSync    *ProfileReconciler
	GlobalSync     *GlobalPolicyReconciler
	UserPolicySync *UserPolicyReconciler
	RegistrySync   *RegistryReconciler
}

func NewSet(api Authority, cache LocalCache, email string, iv Intervals, forwardTimeout time.Duration) *Set {
	return &Set{
		ProfileSync:    New(ProfileFamily(api, email, iv.Profile), cache, forwardTimeout),
		GlobalSync:     New(GlobalPolicyFamily(api, iv.Policy), cache, forwardTimeout),
		UserPolicySync: New(UserPolicyFamily(api, iv.Policy), cache, forwardTimeout),
		RegistrySync:   New(RegistryFamily(api, iv.Registry), cache, forwardTimeout),
	}
}

// Load seeds every family from the local cache. Unreadable entries fall back
// to defaults and their errors are joined.
func (s *Set) Load(ctx context.Context) error {
	return errors.Join(
		s.ProfileSync.Load(ctx),
		s.GlobalSync.Load(ctx),
		s.UserPolicySync.Load(ctx),
		s.RegistrySync.Load(ctx),
	)
}

// PullAll pulls every family once and joins the failures.
func (s *Set) PullAll(ctx context.Context) error {
	_, e1 := s.ProfileSync.SyncPull(ctx)
	_, e2 := s.GlobalSync.SyncPull(ctx)
	_, e3 := s.UserPolicySync.SyncPull(ctx)
	_, e4 := s.RegistrySync.SyncPull(ctx)
	return errors.Join(e1, e2, e3, e4)
}

// Run drives every family's poll loop until ctx is done.
func (s *Set) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return s.ProfileSync.Run(ctx) })
	g.Go(func() error { return s.GlobalSync.Run(ctx) })
	g.Go(func() error { return s.UserPolicySync.Run(ctx) })
	g.Go(func() error { return s.RegistrySync.Run(ctx) })
	return g.Wait()
}

// WaitForwards blocks until every family's background forwards have returned.
func (s *Set) WaitForwards() {
	s.ProfileSync.WaitForwards()
	s.GlobalSync.WaitForwards()
	s.UserPolicySync.WaitForwards()
	s.RegistrySync.WaitForwards()
}

// Policies returns the global policy and the effective policy for userID, as
// last synced. Users without an entry get domain.DefaultUserPolicy.
func (s *Set) Policies(userID string) (domain.GlobalPolicy, domain.UserPolicy) {
	up, ok := s.UserPolicySync.Current()[userID]
	if !ok {
		up = domain.DefaultUserPolicy()
	}
	return s.GlobalSync.Current(), up
}

func (s *Set) Profile() domain.Profile { return s.ProfileSync.Current() }

func (s *Set) Registry() []domain.RegistryUser { return s.RegistrySync.Current() }
