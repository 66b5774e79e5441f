package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	logx "relaybot/pkg/logx"
)

func openTestStore(t *testing.T, driver, name string) (Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	st, err := Open(Config{Driver: driver, Path: path}, logx.Nop())
	if err != nil {
		t.Fatalf("Open(%s): %v", driver, err)
	}
	t.Cleanup(func() { _ = st.Close() })
	return st, path
}

func TestStoreRoundTrip(t *testing.T) {
	t.Parallel()
	for _, driver := range []string{"file", "sqlite"} {
		driver := driver
		t.Run(driver, func(t *testing.T) {
			t.Parallel()
			st, _ := openTestStore(t, driver, "state.db")
			ctx := context.Background()

			got, err := st.Load(ctx)
			if err != nil {
				t.Fatalf("Load empty: %v", err)
			}
			if len(got) != 0 {
				t.Fatalf("expected empty progress, got %v", got)
			}

			want := Progress{"@music": 12, "-1001234567890": 98}
			if err := st.Save(ctx, want); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, err = st.Load(ctx)
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			if len(got) != 2 || got["@music"] != 12 || got["-1001234567890"] != 98 {
				t.Fatalf("Load = %v, want %v", got, want)
			}

			// Full overwrite: dropped keys disappear.
			if err := st.Save(ctx, Progress{"@music": 13}); err != nil {
				t.Fatalf("Save: %v", err)
			}
			got, _ = st.Load(ctx)
			if len(got) != 1 || got["@music"] != 13 {
				t.Fatalf("after overwrite Load = %v", got)
			}
		})
	}
}

func TestFileStoreCorruptOrMissingIsEmpty(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name    string
		content *string
	}{
		{name: "missing"},
		{name: "garbage", content: ptr("{not json")},
		{name: "legacy flat id", content: ptr("1234")},
		{name: "wrong value type", content: ptr(`{"@music":"12"}`)},
		{name: "empty", content: ptr("")},
		{name: "null", content: ptr("null")},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			path := filepath.Join(t.TempDir(), "state.json")
			if tt.content != nil {
				if err := os.WriteFile(path, []byte(*tt.content), 0o600); err != nil {
					t.Fatalf("write: %v", err)
				}
			}
			st, err := Open(Config{Driver: "file", Path: path}, logx.Nop())
			if err != nil {
				t.Fatalf("Open: %v", err)
			}
			got, err := st.Load(context.Background())
			if err != nil {
				t.Fatalf("Load returned error: %v", err)
			}
			if got == nil || len(got) != 0 {
				t.Fatalf("Load = %v, want empty non-nil map", got)
			}
		})
	}
}

func TestFileStoreWritesPlainJSON(t *testing.T) {
	t.Parallel()
	st, path := openTestStore(t, "file", "state.json")
	if err := st.Save(context.Background(), Progress{"@a": 7}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "{\n  \"@a\": 7\n}\n" {
		t.Fatalf("unexpected file content %q", b)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind: %v", err)
	}
}

func TestSaveAfterClose(t *testing.T) {
	t.Parallel()
	st, _ := openTestStore(t, "file", "state.json")
	_ = st.Close()
	if err := st.Save(context.Background(), Progress{}); err != ErrClosed {
		t.Fatalf("Save after Close = %v, want ErrClosed", err)
	}
}

func TestOpenFileRejectsUnusablePath(t *testing.T) {
	t.Parallel()
	t.Run("directory", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), "state.json")
		if err := os.Mkdir(path, 0o755); err != nil {
			t.Fatal(err)
		}
		if st, err := Open(Config{Driver: "file", Path: path}, logx.Nop()); err == nil {
			_ = st.Close()
			t.Fatal("Open on a directory succeeded")
		}
	})
	t.Run("read-only dir", func(t *testing.T) {
		t.Parallel()
		if os.Geteuid() == 0 {
			t.Skip("root ignores directory permissions")
		}
		dir := t.TempDir()
		if err := os.Chmod(dir, 0o555); err != nil {
			t.Fatal(err)
		}
		t.Cleanup(func() { _ = os.Chmod(dir, 0o755) })
		if st, err := Open(Config{Driver: "file", Path: filepath.Join(dir, "state.json")}, logx.Nop()); err == nil {
			_ = st.Close()
			t.Fatal("Open in a read-only directory succeeded")
		}
	})
	t.Run("leaves no tmp behind", func(t *testing.T) {
		t.Parallel()
		_, path := openTestStore(t, "file", "state.json")
		if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
			t.Fatalf("stat tmp: %v, want not exist", err)
		}
	})
}

func TestFileStoreLoadReadErrorIsReturned(t *testing.T) {
	t.Parallel()
	st, path := openTestStore(t, "file", "state.json")
	if err := st.Save(context.Background(), Progress{"a": 5}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Swap the file for a directory so the read fails with EISDIR.
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(path, 0o755); err != nil {
		t.Fatal(err)
	}
	p, err := st.Load(context.Background())
	if err == nil {
		t.Fatalf("Load = %v, nil; want error", p)
	}
}

func TestSQLiteLoadQueryErrorIsReturned(t *testing.T) {
	t.Parallel()
	st, _ := openTestStore(t, "sqlite", "state.db")
	if err := st.Save(context.Background(), Progress{"a": 5}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	// Every query now fails the way a locked or vanished database would.
	if err := st.(*sqliteStore).db.Close(); err != nil {
		t.Fatal(err)
	}
	p, err := st.Load(context.Background())
	if err == nil {
		t.Fatalf("Load = %v, nil; want error", p)
	}
}

func TestProgressAdvanceIsMonotonic(t *testing.T) {
	t.Parallel()
	p := Progress{}
	if !p.Advance("s", 10) {
		t.Fatal("first advance should change mapping")
	}
	if p.Advance("s", 9) || p.Advance("s", 10) {
		t.Fatal("advance must never move backwards or repeat")
	}
	if !p.Advance("s", 11) || p.Get("s") != 11 {
		t.Fatalf("Get = %d, want 11", p.Get("s"))
	}
	c := p.Clone()
	c["s"] = 1
	if p.Get("s") != 11 {
		t.Fatal("Clone must not alias")
	}
}

func TestOpenUnknownDriver(t *testing.T) {
	t.Parallel()
	if _, err := Open(Config{Driver: "redis", Path: "x"}, logx.Nop()); err == nil {
		t.Fatal("expected error for unknown driver")
	}
	if _, err := Open(Config{Driver: "file"}, logx.Nop()); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func ptr(s string) *string { return &s }
