package notify

import (
	"testing"
	"time"

	"github.com/oceanplexian/gogios-cluster/internal/objects"
)

func TestSweeper_FiresDueProblemNotification(t *testing.T) {
	ne := newTestEngine()
	store := ne.Store

	contact := &objects.Contact{
		Name:                        "admin",
		ServiceNotificationsEnabled: true,
		ServiceNotificationOptions:  objects.OptCritical,
		ServiceNotificationCommands: []*objects.Command{{Name: "notify", CommandLine: "true"}},
	}
	host := &objects.Host{Name: "h1", CurrentState: objects.HostUp}
	svc := &objects.Service{
		Host:                 host,
		Description:          "HTTP",
		CurrentState:         objects.ServiceCritical,
		StateType:            objects.StateTypeHard,
		NotificationsEnabled: true,
		NotificationOptions:  objects.OptCritical,
		NotificationInterval: 1,
		Contacts:             []*objects.Contact{contact},
		NextNotification:     time.Now().Add(-time.Minute),
	}
	store.AddHost(host)
	store.AddService(svc)

	sw := NewSweeper(ne, store)
	sw.sweepOnce(time.Now())

	if svc.LastNotification.IsZero() {
		t.Error("expected a due problem notification to fire and stamp LastNotification")
	}
}

func TestSweeper_SkipsNotYetDue(t *testing.T) {
	ne := newTestEngine()
	store := ne.Store

	host := &objects.Host{Name: "h1", CurrentState: objects.HostUp}
	svc := &objects.Service{
		Host:                 host,
		Description:          "HTTP",
		CurrentState:         objects.ServiceCritical,
		StateType:            objects.StateTypeHard,
		NotificationsEnabled: true,
		NotificationOptions:  objects.OptCritical,
		NextNotification:     time.Now().Add(time.Hour),
	}
	store.AddHost(host)
	store.AddService(svc)

	sw := NewSweeper(ne, store)
	sw.sweepOnce(time.Now())

	if !svc.LastNotification.IsZero() {
		t.Error("expected a not-yet-due notification to be skipped")
	}
}

func TestSweeper_ClusterModeSkipsNonAuthoritativeNode(t *testing.T) {
	ne := newTestEngine()
	store := ne.Store

	contact := &objects.Contact{
		Name:                        "admin",
		ServiceNotificationsEnabled: true,
		ServiceNotificationOptions:  objects.OptCritical,
		ServiceNotificationCommands: []*objects.Command{{Name: "notify", CommandLine: "true"}},
	}
	host := &objects.Host{Name: "h1", CurrentState: objects.HostUp}
	svc := &objects.Service{
		Host:                  host,
		Description:           "HTTP",
		CurrentState:          objects.ServiceCritical,
		StateType:             objects.StateTypeHard,
		NotificationsEnabled:  true,
		NotificationOptions:   objects.OptCritical,
		NotificationInterval:  1,
		Contacts:              []*objects.Contact{contact},
		NextNotification:      time.Now().Add(-time.Minute),
		NotificationAuthority: false,
	}
	store.AddHost(host)
	store.AddService(svc)

	sw := NewSweeper(ne, store)
	sw.ClusterEnabled = true
	sw.sweepOnce(time.Now())

	if !svc.LastNotification.IsZero() {
		t.Error("expected a non-authoritative node to skip the reminder in cluster mode")
	}
}

func TestSweeper_ClusterModeFiresOnAuthoritativeNode(t *testing.T) {
	ne := newTestEngine()
	store := ne.Store

	contact := &objects.Contact{
		Name:                        "admin",
		ServiceNotificationsEnabled: true,
		ServiceNotificationOptions:  objects.OptCritical,
		ServiceNotificationCommands: []*objects.Command{{Name: "notify", CommandLine: "true"}},
	}
	host := &objects.Host{Name: "h1", CurrentState: objects.HostUp}
	svc := &objects.Service{
		Host:                  host,
		Description:           "HTTP",
		CurrentState:          objects.ServiceCritical,
		StateType:             objects.StateTypeHard,
		NotificationsEnabled:  true,
		NotificationOptions:   objects.OptCritical,
		NotificationInterval:  1,
		Contacts:              []*objects.Contact{contact},
		NextNotification:      time.Now().Add(-time.Minute),
		NotificationAuthority: true,
	}
	store.AddHost(host)
	store.AddService(svc)

	sw := NewSweeper(ne, store)
	sw.ClusterEnabled = true
	sw.sweepOnce(time.Now())

	if svc.LastNotification.IsZero() {
		t.Error("expected the notification-authority node to fire the reminder")
	}
}

func TestSweeper_SkipsSoftState(t *testing.T) {
	ne := newTestEngine()
	store := ne.Store

	host := &objects.Host{Name: "h1", CurrentState: objects.HostUp}
	svc := &objects.Service{
		Host:                 host,
		Description:          "HTTP",
		CurrentState:         objects.ServiceCritical,
		StateType:            objects.StateTypeSoft,
		NotificationsEnabled: true,
		NextNotification:     time.Now().Add(-time.Minute),
	}
	store.AddHost(host)
	store.AddService(svc)

	sw := NewSweeper(ne, store)
	sw.sweepOnce(time.Now())

	if !svc.LastNotification.IsZero() {
		t.Error("expected a soft-state checkable to be skipped by the sweep")
	}
}
