package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zkeeper/internal/domain/session"
)

func TestRegistryReserve(t *testing.T) {
	r := newRegistry()
	now := time.Now()

	e, ok := r.reserve("254700000001", now)
	require.True(t, ok)
	assert.Equal(t, session.StatusConnecting, e.status)
	assert.Equal(t, session.HealthActive, e.health)
	assert.Equal(t, now, e.connectingSince)

	again, ok := r.reserve("254700000001", now)
	assert.False(t, ok)
	assert.Same(t, e, again)
	assert.Equal(t, 1, r.len())
}

func TestRegistryRemoveComparesEntry(t *testing.T) {
	r := newRegistry()
	old, _ := r.reserve("254700000001", time.Now())
	require.True(t, r.remove("254700000001", old))

	fresh, ok := r.reserve("254700000001", time.Now())
	require.True(t, ok)

	// Um teardown atrasado do entry antigo não remove o novo
	assert.False(t, r.remove("254700000001", old))
	got, ok := r.get("254700000001")
	require.True(t, ok)
	assert.Same(t, fresh, got)
}

func TestRegistryListActive(t *testing.T) {
	r := newRegistry()
	now := time.Now()

	open, _ := r.reserve("254700000002", now)
	open.status = session.StatusOpen

	gone, _ := r.reserve("254700000001", now)
	gone.status = session.StatusOpen
	gone.removed = true

	r.reserve("254700000003", now)

	assert.Equal(t, []string{"254700000002"}, r.listActive())

	ids := make([]string, 0, 3)
	for _, e := range r.snapshot() {
		ids = append(ids, e.id)
	}
	assert.Equal(t, []string{"254700000001", "254700000002", "254700000003"}, ids)
}

func TestEntryInstallBumpsGeneration(t *testing.T) {
	e := &entry{id: "254700000001"}
	first := &fakeHandle{id: e.id}
	second := &fakeHandle{id: e.id}

	prev, gen1 := e.install(first)
	assert.Nil(t, prev)

	prev, gen2 := e.install(second)
	assert.Same(t, first, prev)
	assert.Greater(t, gen2, gen1)

	assert.Same(t, second, e.detach())
	assert.Nil(t, e.handle)
}

func TestEntryInfo(t *testing.T) {
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	e := &entry{
		id:                "254700000001",
		health:            session.HealthDegraded,
		status:            session.StatusClosed,
		createdAt:         now,
		disconnectedAt:    now.Add(time.Minute),
		reconnectAttempts: 2,
		dirty:             true,
	}

	info := e.info()
	assert.Equal(t, "254700000001", info.TenantID)
	assert.Equal(t, session.HealthDegraded, info.Health)
	require.NotNil(t, info.DisconnectedAt)
	assert.Equal(t, now.Add(time.Minute), *info.DisconnectedAt)
	assert.Nil(t, info.LastBackupAt)
	assert.Equal(t, 2, info.ReconnectAttempts)
	assert.True(t, info.Dirty)
}
