package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hotspotctl/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	v, err := NewVault(testKey())
	require.NoError(t, err)
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), v)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestStore_EnsureUserAndAuthorize(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	ok, err := s.IsAuthorized(1001)
	require.NoError(t, err)
	assert.False(t, ok, "unknown user must be unauthorized")

	require.NoError(t, s.EnsureUser(1001, "alice", "Alice"))
	ok, err = s.IsAuthorized(1001)
	require.NoError(t, err)
	assert.False(t, ok, "known user is still unauthorized until granted")

	require.NoError(t, s.Authorize(1001))
	ok, err = s.IsAuthorized(1001)
	require.NoError(t, err)
	assert.True(t, ok)

	// Re-ensuring must not reset authorization.
	require.NoError(t, s.EnsureUser(1001, "alice2", "Alice"))
	ok, err = s.IsAuthorized(1001)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestStore_AuthorizeUnknownUser(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)

	err := s.Authorize(9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_SaveDeviceRoundTrip(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	require.NoError(t, s.EnsureUser(1001, "alice", "Alice"))

	ep := model.Endpoint{
		Host: "192.0.2.1", Port: 8729,
		Username: "admin", Password: "hunter2", UseTLS: true,
	}
	id, err := s.SaveDevice(1001, "office", ep)
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	got, err := s.Device(1001, id)
	require.NoError(t, err)
	assert.Equal(t, ep, got)

	_, err = s.Device(1001, id+100)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_DeviceScopedToOwner(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	require.NoError(t, s.EnsureUser(1001, "alice", "Alice"))
	require.NoError(t, s.EnsureUser(1002, "bob", "Bob"))

	id, err := s.SaveDevice(1001, "office", model.Endpoint{
		Host: "192.0.2.1", Port: 8728, Username: "admin", Password: "hunter2",
	})
	require.NoError(t, err)

	// Another user's lookup by the same row ID must not unseal the password.
	_, err = s.Device(1002, id)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := s.Device(1001, id)
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got.Password)
}

func TestStore_SaveDeviceSealsPassword(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	require.NoError(t, s.EnsureUser(1001, "alice", "Alice"))

	ep := model.Endpoint{Host: "192.0.2.1", Port: 8728, Username: "admin", Password: "hunter2"}
	id, err := s.SaveDevice(1001, "", ep)
	require.NoError(t, err)

	var sealed string
	err = s.db.QueryRow(`SELECT password_sealed FROM devices WHERE id = ?`, id).Scan(&sealed)
	require.NoError(t, err)
	assert.NotContains(t, sealed, "hunter2")
}

func TestStore_DevicesListing(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	require.NoError(t, s.EnsureUser(1001, "alice", "Alice"))
	require.NoError(t, s.EnsureUser(1002, "bob", "Bob"))

	_, err := s.SaveDevice(1001, "office", model.Endpoint{Host: "192.0.2.1", Port: 8728, Username: "admin", Password: "a"})
	require.NoError(t, err)
	_, err = s.SaveDevice(1001, "", model.Endpoint{Host: "192.0.2.2", Port: 8728, Username: "admin", Password: "b"})
	require.NoError(t, err)
	_, err = s.SaveDevice(1002, "home", model.Endpoint{Host: "192.0.2.3", Port: 8728, Username: "admin", Password: "c"})
	require.NoError(t, err)

	devices, err := s.Devices(1001)
	require.NoError(t, err)
	require.Len(t, devices, 2)
	// Unnamed devices fall back to host:port.
	assert.Equal(t, "192.0.2.2:8728", devices[0].Name)
	assert.Equal(t, "office", devices[1].Name)

	devices, err = s.Devices(1003)
	require.NoError(t, err)
	assert.Empty(t, devices)
}

func TestStore_SaveCardsAndList(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	require.NoError(t, s.EnsureUser(1001, "alice", "Alice"))

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	batch := []model.AccessCard{
		{Username: "user000001", Password: "pw1", Profile: "default", DataQuota: "1.0 GB", TimeQuota: "1 day", ValidityDays: 30, CreatedAt: created},
		{Username: "user000002", Password: "pw2", Profile: "default", DataQuota: "512 MB", TimeQuota: "12 hours", ValidityDays: 30, CreatedAt: created},
	}
	require.NoError(t, s.SaveCards(1001, "batch-1", batch))

	got, err := s.Cards(1001, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "1.0 GB", got[1].DataQuota)
	assert.Equal(t, created, got[0].CreatedAt)

	got, err = s.Cards(1001, 1)
	require.NoError(t, err)
	assert.Len(t, got, 1)

	got, err = s.Cards(1002, 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_OperationLog(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	require.NoError(t, s.EnsureUser(1001, "alice", "Alice"))

	require.NoError(t, s.LogOperation(1001, "login", "192.0.2.1:8728", true, ""))
	require.NoError(t, s.LogOperation(1001, "reboot", "192.0.2.1:8728", false, "connection reset"))

	entries, err := s.OperationLog(1001, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "reboot", entries[0].Kind)
	assert.False(t, entries[0].Success)
	assert.Equal(t, "connection reset", entries[0].Error)
	assert.Equal(t, "login", entries[1].Kind)
	assert.True(t, entries[1].Success)
}

func TestStore_CleanupBefore(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	require.NoError(t, s.EnsureUser(1001, "alice", "Alice"))
	require.NoError(t, s.LogOperation(1001, "login", "", true, ""))

	require.NoError(t, s.CleanupBefore(time.Now().Add(-time.Hour)))
	entries, err := s.OperationLog(1001, 10)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "recent entries survive")

	require.NoError(t, s.CleanupBefore(time.Now().Add(time.Hour)))
	entries, err = s.OperationLog(1001, 10)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
