package db

import (
	"path/filepath"
	"testing"
)

type widget struct {
	ID   uint64 `gorm:"primaryKey"`
	Name string
}

func TestOpen_SQLiteFileCreatesDirectory(t *testing.T) {
	dir := t.TempDir()
	dsn := "file:" + filepath.Join(dir, "nested", "chat.db") + "?_pragma=foreign_keys(1)"

	gdb, err := Open(dsn)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := Migrate(gdb, &widget{}); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	if err := gdb.Create(&widget{Name: "a"}).Error; err != nil {
		t.Fatalf("insert: %v", err)
	}
	var n int64
	if err := gdb.Model(&widget{}).Count(&n).Error; err != nil {
		t.Fatalf("count: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected 1 row, got %d", n)
	}
}

func TestSQLitePath(t *testing.T) {
	cases := map[string]string{
		"file:chat.db?_pragma=foreign_keys(1)": "chat.db",
		"file::memory:?cache=shared":           "",
		"data/x.db":                            "data/x.db",
	}
	for in, want := range cases {
		if got := sqlitePath(in); got != want {
			t.Errorf("sqlitePath(%q) = %q, want %q", in, got, want)
		}
	}
}
