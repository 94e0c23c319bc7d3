package cluster

import (
	"sort"
	"time"

	"github.com/OneOfOne/xxhash"

	"github.com/oceanplexian/gogios-cluster/internal/events"
	"github.com/oceanplexian/gogios-cluster/internal/objects"
)

// freshWindow bounds how stale an Endpoint's heartbeat may be before it is
// dropped from the candidate set (spec.md §4.6 "last-seen is fresh").
const freshWindow = 30 * time.Second

// AuthorityTable elects, per (object, feature), the single endpoint
// responsible for executing that feature, by consistent hashing over the
// sorted candidate endpoint list. Grounded on
// original_source/components/cluster/clusterlistener.cpp's
// IsAuthority/UpdateAuthority.
type AuthorityTable struct {
	identity string
	store    *objects.ObjectStore
	bus      *events.Bus

	// Scheduler/notification hooks invoked when the local node gains or
	// loses authority for a Checkable, so the caller can insert into or
	// remove from its own scheduling structures without this package
	// importing internal/scheduler (avoids an import cycle: scheduler
	// already imports objects/cluster for gating reads).
	OnCheckerGain  func(c objects.Checkable)
	OnCheckerLose  func(c objects.Checkable)
	OnNotifyGain   func(c objects.Checkable)
	OnNotifyLose   func(c objects.Checkable)
}

// NewAuthorityTable builds a table that evaluates elections as the local
// node named identity.
func NewAuthorityTable(identity string, store *objects.ObjectStore, bus *events.Bus) *AuthorityTable {
	return &AuthorityTable{identity: identity, store: store, bus: bus}
}

// candidateEndpoints returns, sorted lexicographically by name, every
// endpoint that is fresh (or self), advertises feature, and is permitted by
// authorities (empty authorities means every endpoint qualifies).
func candidateEndpoints(endpoints []*objects.Endpoint, identity string, feature uint32, authorities []string, now time.Time) []string {
	var names []string
	for _, ep := range endpoints {
		if ep.Name != identity && now.Sub(ep.LastSeen) > freshWindow {
			continue
		}
		if !ep.HasFeature(feature) {
			continue
		}
		if len(authorities) > 0 && !containsName(authorities, ep.Name) {
			continue
		}
		names = append(names, ep.Name)
	}
	sort.Strings(names)
	return names
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}

// authorityHashSeed is an arbitrary fixed seed; any single stable constant
// works since only relative ordering across a fixed endpoint set matters.
const authorityHashSeed = 0

// objectAuthority returns the name of the endpoint elected authority for
// (objectType, objectName) out of candidates. candidates must already be
// sorted; an empty slice means no endpoint qualifies.
func objectAuthority(objectType, objectName string, candidates []string) string {
	if len(candidates) == 0 {
		return ""
	}
	key := objectType + "\t" + objectName
	h := xxhash.ChecksumString64S(key, authorityHashSeed)
	return candidates[h%uint64(len(candidates))]
}

// isAuthority reports whether identity is elected authority for the given
// object and feature (spec.md §4.6).
func isAuthority(identity string, endpoints []*objects.Endpoint, objectType, objectName string, feature uint32, authorities []string, now time.Time) bool {
	candidates := candidateEndpoints(endpoints, identity, feature, authorities, now)
	return objectAuthority(objectType, objectName, candidates) == identity
}

// Update re-runs the election for every Host and Service in the store,
// caching the result on CheckerAuthority/NotificationAuthority and firing
// events.OnAuthorityChanged plus the Gain/Lose hooks on flips. Called once
// per cluster tick (5s), per spec.md §4.6 "Re-election runs on every
// cluster tick".
func (t *AuthorityTable) Update(now time.Time) (checkerCount, notifyCount int) {
	t.store.Mu.RLock()
	endpoints := append([]*objects.Endpoint(nil), t.store.Endpoints...)
	hosts := append([]*objects.Host(nil), t.store.Hosts...)
	services := append([]*objects.Service(nil), t.store.Services...)
	t.store.Mu.RUnlock()

	for _, h := range hosts {
		checker := isAuthority(t.identity, endpoints, "Host", h.Name, objects.FeatureChecker, h.Authorities, now)
		notify := isAuthority(t.identity, endpoints, "Host", h.Name, objects.FeatureNotifications, h.Authorities, now)
		t.applyHost(h, checker, notify)
		if checker {
			checkerCount++
		}
		if notify {
			notifyCount++
		}
	}

	for _, s := range services {
		key := s.Host.Name + "\t" + s.Description
		checker := isAuthority(t.identity, endpoints, "Service", key, objects.FeatureChecker, s.Authorities, now)
		notify := isAuthority(t.identity, endpoints, "Service", key, objects.FeatureNotifications, s.Authorities, now)
		t.applyService(s, checker, notify)
		if checker {
			checkerCount++
		}
		if notify {
			notifyCount++
		}
	}

	return checkerCount, notifyCount
}

func (t *AuthorityTable) applyHost(h *objects.Host, checker, notify bool) {
	if h.CheckerAuthority != checker {
		h.CheckerAuthority = checker
		t.fireAuthority(h, objects.FeatureChecker, checker)
		if checker && t.OnCheckerGain != nil {
			t.OnCheckerGain(h)
		} else if !checker && t.OnCheckerLose != nil {
			t.OnCheckerLose(h)
		}
	}
	if h.NotificationAuthority != notify {
		h.NotificationAuthority = notify
		t.fireAuthority(h, objects.FeatureNotifications, notify)
		if notify && t.OnNotifyGain != nil {
			t.OnNotifyGain(h)
		} else if !notify && t.OnNotifyLose != nil {
			t.OnNotifyLose(h)
		}
	}
}

func (t *AuthorityTable) applyService(s *objects.Service, checker, notify bool) {
	if s.CheckerAuthority != checker {
		s.CheckerAuthority = checker
		t.fireAuthority(s, objects.FeatureChecker, checker)
		if checker && t.OnCheckerGain != nil {
			t.OnCheckerGain(s)
		} else if !checker && t.OnCheckerLose != nil {
			t.OnCheckerLose(s)
		}
	}
	if s.NotificationAuthority != notify {
		s.NotificationAuthority = notify
		t.fireAuthority(s, objects.FeatureNotifications, notify)
		if notify && t.OnNotifyGain != nil {
			t.OnNotifyGain(s)
		} else if !notify && t.OnNotifyLose != nil {
			t.OnNotifyLose(s)
		}
	}
}

// AuthorityChange is the payload carried on events.OnAuthorityChanged.
type AuthorityChange struct {
	Checkable objects.Checkable
	Feature   uint32
	Held      bool
}

func (t *AuthorityTable) fireAuthority(c objects.Checkable, feature uint32, held bool) {
	if t.bus == nil {
		return
	}
	t.bus.Emit(events.Event{
		Kind: events.OnAuthorityChanged,
		Data: AuthorityChange{Checkable: c, Feature: feature, Held: held},
	})
}
