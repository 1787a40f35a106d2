package permcore

import (
	"context"
	"sync"
	"time"
)

// fakeStore is an in-memory PermissionStore and RoleDirectory that counts
// store round trips so cache tests can assert on fetch behavior.
type fakeStore struct {
	mu          sync.Mutex
	permsByUser map[uint][]string
	hierarchy   []PermissionRecord
	roleByUser  map[uint]RoleLevel
	teamsByUser map[uint][]uint
	err         error

	userFetches      int
	hierarchyFetches int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		permsByUser: make(map[uint][]string),
		roleByUser:  make(map[uint]RoleLevel),
		teamsByUser: make(map[uint][]uint),
	}
}

func (f *fakeStore) FetchUserPermissionNames(ctx context.Context, userID uint) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.userFetches++
	return append([]string(nil), f.permsByUser[userID]...), nil
}

func (f *fakeStore) FetchHierarchy(ctx context.Context) ([]PermissionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.hierarchyFetches++
	return append([]PermissionRecord(nil), f.hierarchy...), nil
}

func (f *fakeStore) FetchUserRoleLevel(ctx context.Context, userID uint) (RoleLevel, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	if role, ok := f.roleByUser[userID]; ok {
		return role, nil
	}
	return RoleUser, nil
}

func (f *fakeStore) FetchManagerTeamIDs(ctx context.Context, userID uint) ([]uint, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return append([]uint(nil), f.teamsByUser[userID]...), nil
}

func (f *fakeStore) setErr(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

func (f *fakeStore) counts() (users, hierarchies int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userFetches, f.hierarchyFetches
}

// fakeClock is a manually advanced clock so TTL tests never sleep.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// reportsHierarchy is the parent chain reports.* <- reports.export <- reports.export.pdf.
func reportsHierarchy() []PermissionRecord {
	return []PermissionRecord{
		{Name: "reports.*", Category: "reports"},
		{Name: "reports.export", Category: "reports", ParentName: "reports.*"},
		{Name: "reports.export.pdf", Category: "reports", ParentName: "reports.export"},
	}
}
