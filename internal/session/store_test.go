// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/nexusai/nexus-tui/internal/model"
)

// fakeBackend serves a scripted session list.
type fakeBackend struct {
	mu        sync.Mutex
	list      []model.Session
	listErr   error
	createErr error
	deleteErr error
	nextID    int
	creates   int
	deletes   []string
	// hideNew keeps created sessions out of list responses.
	hideNew bool
}

func (f *fakeBackend) ListSessions(context.Context) ([]model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}
	out := make([]model.Session, len(f.list))
	copy(out, f.list)
	return out, nil
}

func (f *fakeBackend) CreateSession(_ context.Context, title string) (model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return model.Session{}, f.createErr
	}
	f.creates++
	f.nextID++
	s := model.Session{ID: fmt.Sprintf("new-%d", f.nextID), Title: title}
	if !f.hideNew {
		f.list = append([]model.Session{s}, f.list...)
	}
	return s, nil
}

func (f *fakeBackend) DeleteSession(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	f.deletes = append(f.deletes, id)
	for i, s := range f.list {
		if s.ID == id {
			f.list = append(f.list[:i], f.list[i+1:]...)
			break
		}
	}
	return nil
}

func ids(sessions []model.Session) []string {
	out := make([]string, len(sessions))
	for i, s := range sessions {
		out[i] = s.ID
	}
	return out
}

func equalIDs(t *testing.T, got []model.Session, want ...string) {
	t.Helper()
	g := ids(got)
	if len(g) != len(want) {
		t.Fatalf("ids = %v, want %v", g, want)
	}
	for i := range want {
		if g[i] != want[i] {
			t.Fatalf("ids = %v, want %v", g, want)
		}
	}
}

// =============================================================================
// LIST
// =============================================================================

func TestList_KeepsBackendOrder(t *testing.T) {
	b := &fakeBackend{list: []model.Session{{ID: "b"}, {ID: "a"}, {ID: "c"}}}
	s := NewStore(b)

	got, err := s.List(context.Background())
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	equalIDs(t, got, "b", "a", "c")
	equalIDs(t, s.Sessions(), "b", "a", "c")
}

func TestList_FailureLeavesStateUnchanged(t *testing.T) {
	b := &fakeBackend{list: []model.Session{{ID: "a"}, {ID: "b"}}}
	s := NewStore(b)
	if _, err := s.List(context.Background()); err != nil {
		t.Fatal(err)
	}

	b.listErr = errors.New("boom")
	got, err := s.List(context.Background())
	if !errors.Is(err, b.listErr) {
		t.Fatalf("List() error = %v, want wrapping %v", err, b.listErr)
	}
	equalIDs(t, got, "a", "b")
	equalIDs(t, s.Sessions(), "a", "b")
}

func TestRefreshTitles_PicksUpNewTitle(t *testing.T) {
	b := &fakeBackend{}
	s := NewStore(b)
	created, err := s.Create(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if created.Title != model.DefaultSessionTitle {
		t.Errorf("Title = %q, want %q", created.Title, model.DefaultSessionTitle)
	}

	b.list[0].Title = "Hello"
	if err := s.RefreshTitles(context.Background()); err != nil {
		t.Fatal(err)
	}
	got, ok := s.Get(created.ID)
	if !ok || got.Title != "Hello" {
		t.Errorf("Get(%q) = %+v, %v; want title Hello", created.ID, got, ok)
	}
}

// A refresh that races ahead of the backend must not drop a session created
// locally a moment earlier.
func TestRefreshTitles_KeepsUnreportedLocalSession(t *testing.T) {
	b := &fakeBackend{list: []model.Session{{ID: "old"}}, hideNew: true}
	s := NewStore(b)
	if _, err := s.List(context.Background()); err != nil {
		t.Fatal(err)
	}
	created, err := s.Create(context.Background(), "draft")
	if err != nil {
		t.Fatal(err)
	}

	if err := s.RefreshTitles(context.Background()); err != nil {
		t.Fatal(err)
	}
	equalIDs(t, s.Sessions(), created.ID, "old")

	// Once the backend reports it, the backend's order wins.
	b.list = []model.Session{{ID: "old"}, {ID: created.ID, Title: "titled"}}
	if err := s.RefreshTitles(context.Background()); err != nil {
		t.Fatal(err)
	}
	equalIDs(t, s.Sessions(), "old", created.ID)

	// And a later list without it drops it, since it is no longer local-only.
	b.list = []model.Session{{ID: "old"}}
	if err := s.RefreshTitles(context.Background()); err != nil {
		t.Fatal(err)
	}
	equalIDs(t, s.Sessions(), "old")
}

func TestList_DropsDuplicateIDs(t *testing.T) {
	b := &fakeBackend{list: []model.Session{{ID: "a"}, {ID: "a"}, {ID: "b"}}}
	s := NewStore(b)
	got, err := s.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	equalIDs(t, got, "a", "b")
}

// =============================================================================
// CREATE / REMOVE
// =============================================================================

func TestCreate_PrependsOnce(t *testing.T) {
	b := &fakeBackend{list: []model.Session{{ID: "a"}}}
	s := NewStore(b, WithDefaultTitle("Untitled"))
	if _, err := s.List(context.Background()); err != nil {
		t.Fatal(err)
	}

	created, err := s.Create(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if created.Title != "Untitled" {
		t.Errorf("Title = %q, want Untitled", created.Title)
	}
	if b.creates != 1 {
		t.Errorf("backend creates = %d, want 1", b.creates)
	}
	equalIDs(t, s.Sessions(), created.ID, "a")

	// A refresh that now includes it must not duplicate it.
	if _, err := s.List(context.Background()); err != nil {
		t.Fatal(err)
	}
	equalIDs(t, s.Sessions(), created.ID, "a")
}

func TestCreate_Failure(t *testing.T) {
	b := &fakeBackend{list: []model.Session{{ID: "a"}}, createErr: errors.New("nope")}
	s := NewStore(b)
	if _, err := s.List(context.Background()); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Create(context.Background(), "x"); err == nil {
		t.Fatal("Create() error = nil, want error")
	}
	equalIDs(t, s.Sessions(), "a")
}

func TestRemove(t *testing.T) {
	tests := []struct {
		name      string
		deleteErr error
		remove    string
		want      []string
	}{
		{"middle", nil, "b", []string{"a", "c"}},
		{"first", nil, "a", []string{"b", "c"}},
		{"unknown locally", nil, "zz", []string{"a", "b", "c"}},
		{"backend failure", errors.New("500"), "b", []string{"a", "b", "c"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := &fakeBackend{
				list:      []model.Session{{ID: "a"}, {ID: "b"}, {ID: "c"}},
				deleteErr: tt.deleteErr,
			}
			s := NewStore(b)
			if _, err := s.List(context.Background()); err != nil {
				t.Fatal(err)
			}

			err := s.Remove(context.Background(), tt.remove)
			if (err != nil) != (tt.deleteErr != nil) {
				t.Fatalf("Remove() error = %v, want error %v", err, tt.deleteErr)
			}
			equalIDs(t, s.Sessions(), tt.want...)
		})
	}
}

func TestReset(t *testing.T) {
	b := &fakeBackend{list: []model.Session{{ID: "a"}}}
	s := NewStore(b)
	if _, err := s.List(context.Background()); err != nil {
		t.Fatal(err)
	}
	s.Reset()
	if s.Len() != 0 {
		t.Errorf("Len() = %d after Reset, want 0", s.Len())
	}
}

func TestNeighbor(t *testing.T) {
	b := &fakeBackend{list: []model.Session{{ID: "a"}, {ID: "b"}, {ID: "c"}}}
	s := NewStore(b)
	if got := s.Neighbor("a", 1); got != "" {
		t.Errorf("Neighbor on empty store = %q, want empty", got)
	}
	if _, err := s.List(context.Background()); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		from   string
		offset int
		want   string
	}{
		{"a", 1, "b"},
		{"c", 1, "a"},
		{"a", -1, "c"},
		{"", 1, "a"},
		{"", -1, "c"},
	}
	for _, tt := range tests {
		if got := s.Neighbor(tt.from, tt.offset); got != tt.want {
			t.Errorf("Neighbor(%q, %d) = %q, want %q", tt.from, tt.offset, got, tt.want)
		}
	}
}

func TestStore_ConcurrentAccess(t *testing.T) {
	b := &fakeBackend{}
	s := NewStore(b)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				_, _ = s.Create(context.Background(), "")
				_ = s.Sessions()
				_ = s.RefreshTitles(context.Background())
				_ = s.Len()
			}
		}()
	}
	wg.Wait()

	if s.Len() != 200 {
		t.Errorf("Len() = %d, want 200", s.Len())
	}
}
