package template

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSaveAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cfg := json.RawMessage(`{"project":"vodafone_uk","target_joins":["kpi_daily"]}`)
	if err := s.Save(ctx, Template{Name: "coverage-view", Config: cfg}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Get(ctx, "coverage-view")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "coverage-view" {
		t.Errorf("Name = %q, want coverage-view", got.Name)
	}
	var decoded map[string]any
	if err := json.Unmarshal(got.Config, &decoded); err != nil {
		t.Fatalf("stored config is not valid JSON: %v", err)
	}
	if decoded["project"] != "vodafone_uk" {
		t.Errorf("project = %v, want vodafone_uk", decoded["project"])
	}
}

func TestSaveUpsert(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, Template{Name: "v", Config: json.RawMessage(`{"a":1}`)}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := s.Save(ctx, Template{Name: "v", Config: json.RawMessage(`{"a":2}`)}); err != nil {
		t.Fatalf("Save (update): %v", err)
	}

	got, err := s.Get(ctx, "v")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if string(got.Config) != `{"a":2}` {
		t.Errorf("Config = %s, want {\"a\":2}", got.Config)
	}

	names, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(names) != 1 {
		t.Errorf("List returned %d names, want 1", len(names))
	}
}

func TestGetNotFound(t *testing.T) {
	s := newTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestSaveValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Save(ctx, Template{Config: json.RawMessage(`{}`)}); err == nil {
		t.Error("Save with empty name should fail")
	}
	if err := s.Save(ctx, Template{Name: "x"}); err == nil {
		t.Error("Save with empty config should fail")
	}
}

func TestListSorted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for _, name := range []string{"zeta", "alpha", "mid"} {
		if err := s.Save(ctx, Template{Name: name, Config: json.RawMessage(`{}`)}); err != nil {
			t.Fatalf("Save %s: %v", name, err)
		}
	}
	names, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	want := []string{"alpha", "mid", "zeta"}
	for i, n := range want {
		if names[i] != n {
			t.Errorf("names[%d] = %q, want %q", i, names[i], n)
		}
	}
}
