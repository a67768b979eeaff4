package docstore

import (
	"context"
	"testing"
)

func TestFileStore_BasicContract(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s.Set(ctx, "docs/acme/widget", []string{"a", "b"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	var v []string
	if err := s.Get(ctx, "docs/acme/widget", &v); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if len(v) != 2 || v[0] != "a" {
		t.Errorf("Get: got %v", v)
	}
	ok, err := s.Exists(ctx, "docs/acme/widget")
	if err != nil || !ok {
		t.Errorf("Exists: ok=%v err=%v", ok, err)
	}
	if err := s.Delete(ctx, "docs/acme/widget"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Get(ctx, "docs/acme/widget", &v); err == nil {
		t.Error("Get after Delete should error")
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	s1, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	if err := s1.Set(ctx, "ventures", map[string]string{"acme": "AC"}, 0); err != nil {
		t.Fatalf("Set: %v", err)
	}

	// 新进程视角：重新打开同一目录
	s2, err := NewFileStore(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	var m map[string]string
	if err := s2.Get(ctx, "ventures", &m); err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if m["acme"] != "AC" {
		t.Errorf("Get after reopen: got %v", m)
	}
}

func TestFileStore_Clear(t *testing.T) {
	ctx := context.Background()
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	_ = s.Set(ctx, "k1", "v1", 0)
	_ = s.Set(ctx, "k2", "v2", 0)
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	var v string
	if err := s.Get(ctx, "k1", &v); err == nil {
		t.Error("Get after Clear should error")
	}
}

func TestCache_DocsAndVentures(t *testing.T) {
	ctx := context.Background()
	c := NewCache(NewMemoryStore())

	docs := []Doc{
		{DocName: "working-agreement", Content: "# Agreement", Scope: "venture", Version: "3"},
		{DocName: "repo-map", Content: "# Map", Scope: "repo", Version: "1"},
	}
	if err := c.SaveDocs(ctx, "acme/widget", docs); err != nil {
		t.Fatalf("SaveDocs: %v", err)
	}
	got, err := c.LoadDocs(ctx, "acme/widget")
	if err != nil {
		t.Fatalf("LoadDocs: %v", err)
	}
	if len(got) != 2 || got[0].DocName != "working-agreement" {
		t.Errorf("LoadDocs: got %+v", got)
	}
	// 其它仓库的文档不串
	if _, err := c.LoadDocs(ctx, "acme/other"); err == nil {
		t.Error("LoadDocs for other repo should miss")
	}

	if err := c.SaveVentures(ctx, map[string]string{"acme": "AC", "umbrella": "UM"}); err != nil {
		t.Fatalf("SaveVentures: %v", err)
	}
	ventures, err := c.LoadVentures(ctx)
	if err != nil {
		t.Fatalf("LoadVentures: %v", err)
	}
	if ventures["umbrella"] != "UM" {
		t.Errorf("LoadVentures: got %v", ventures)
	}
}
