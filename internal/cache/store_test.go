package cache

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/spf13/afero"

	"github.com/pattmehta/AsyncImage/internal/resource"
)

func TestFilenameIsDeterministic(t *testing.T) {
	key := resource.MustParse("https://images.example.com/photos/42.jpg?size=large")
	first := Filename(key)
	second := Filename(resource.MustParse("HTTPS://IMAGES.example.com:443/photos/42.jpg?size=large"))
	if first != second {
		t.Fatalf("same canonical url must map to same filename: %s vs %s", first, second)
	}
	if first != Filename(key) {
		t.Fatalf("filename must be stable across calls")
	}
	if strings.ContainsAny(first, `/\+`) {
		t.Fatalf("filename must be filesystem safe: %s", first)
	}
}

func TestFilenameTruncatesEncodedSuffix(t *testing.T) {
	key := resource.MustParse("http://example.com/image.png")
	// "http://example.com/image.png" 为 28 字节，padded base64 长度 40，截掉 15 个字符剩 25。
	got := Filename(key)
	if len(got) != 25 {
		t.Fatalf("expected 25 chars, got %d (%s)", len(got), got)
	}
	if !strings.HasPrefix("aHR0cDovL2V4YW1wbGUuY29tL2ltYWdlLnBuZw==", got) {
		t.Fatalf("filename should be a prefix of the full encoding: %s", got)
	}
}

func TestFilenameKeepsShortEncoding(t *testing.T) {
	// "http://a/" 编码后只有 12 个字符，不足以截断。
	key := resource.MustParse("http://a")
	if got := Filename(key); got != "aHR0cDovL2Ev" {
		t.Fatalf("short encodings should be kept whole, got %s", got)
	}
}

func TestStoreWriteAndRead(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())
	key := resource.MustParse("https://example.com/a.png")
	payload := []byte{0x89, 'P', 'N', 'G', 0x00, 0xff}

	entry, err := store.Write(context.Background(), key, payload)
	if err != nil {
		t.Fatalf("write error: %v", err)
	}
	if entry.SizeBytes != int64(len(payload)) {
		t.Fatalf("size mismatch: %d", entry.SizeBytes)
	}
	if entry.FilePath != filepath.Join(store.Dir(), Filename(key)) {
		t.Fatalf("unexpected file path: %s", entry.FilePath)
	}

	got, err := store.Read(context.Background(), key)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("payload mismatch: %v", got)
	}
}

func TestStoreOverwritesWholesale(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())
	key := resource.MustParse("https://example.com/a.png")
	ctx := context.Background()

	if _, err := store.Write(ctx, key, []byte("a much longer first payload")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if _, err := store.Write(ctx, key, []byte("short")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	got, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(got) != "short" {
		t.Fatalf("expected replaced payload, got %q", got)
	}
}

func TestStoreReadMissing(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())
	_, err := store.Read(context.Background(), resource.MustParse("https://example.com/missing.png"))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreIgnoresDirectories(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := newTestStore(t, fsys)
	key := resource.MustParse("https://example.com/dir")

	if err := fsys.MkdirAll(filepath.Join(store.Dir(), Filename(key)), 0o755); err != nil {
		t.Fatalf("mkdir error: %v", err)
	}
	if _, err := store.Read(context.Background(), key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for directory, got %v", err)
	}
}

func TestStoreDirectoryCreatedLazily(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := newTestStore(t, fsys)

	if exists, _ := afero.DirExists(fsys, store.Dir()); exists {
		t.Fatalf("cache dir should not exist before the first write")
	}
	if _, err := store.Read(context.Background(), resource.MustParse("https://example.com/x")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("read before first write should miss, got %v", err)
	}
	if _, err := store.Write(context.Background(), resource.MustParse("https://example.com/x"), []byte("x")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if exists, _ := afero.DirExists(fsys, store.Dir()); !exists {
		t.Fatalf("cache dir should exist after write")
	}
}

func TestStoreRecreatesRemovedDirectory(t *testing.T) {
	fsys := afero.NewOsFs()
	store := newTestStore(t, fsys)
	ctx := context.Background()
	key := resource.MustParse("https://example.com/x")

	if _, err := store.Write(ctx, key, []byte("x")); err != nil {
		t.Fatalf("write error: %v", err)
	}
	if err := fsys.RemoveAll(store.Dir()); err != nil {
		t.Fatalf("remove error: %v", err)
	}
	if _, err := store.Write(ctx, key, []byte("y")); err != nil {
		t.Fatalf("write should recreate the removed directory: %v", err)
	}
	data, err := store.Read(ctx, key)
	if err != nil {
		t.Fatalf("read error: %v", err)
	}
	if string(data) != "y" {
		t.Fatalf("unexpected data after recreation: %q", data)
	}
}

func TestStoreWriteFailsOnReadOnlyFs(t *testing.T) {
	store := newTestStore(t, afero.NewReadOnlyFs(afero.NewMemMapFs()))
	key := resource.MustParse("https://example.com/a.png")

	if _, err := store.Write(context.Background(), key, []byte("data")); err == nil {
		t.Fatalf("expected write error on read-only filesystem")
	}
	if _, err := store.Read(context.Background(), key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("failed write must not leave an entry, got %v", err)
	}
}

func TestStoreWriteHonoursCancelledContext(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := newTestStore(t, fsys)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	key := resource.MustParse("https://example.com/a.png")
	if _, err := store.Write(ctx, key, []byte("data")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if _, err := store.Read(context.Background(), key); !errors.Is(err, ErrNotFound) {
		t.Fatalf("cancelled write must not create an entry, got %v", err)
	}
}

func TestStoreListHidesTempFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	store := newTestStore(t, fsys)
	ctx := context.Background()

	keys := []resource.Key{
		resource.MustParse("https://example.com/b.png"),
		resource.MustParse("https://example.com/a.png"),
	}
	for _, key := range keys {
		if _, err := store.Write(ctx, key, []byte(key.String())); err != nil {
			t.Fatalf("write error: %v", err)
		}
	}
	if err := afero.WriteFile(fsys, filepath.Join(store.Dir(), tempPrefix+"123"), []byte("partial"), 0o600); err != nil {
		t.Fatalf("write temp error: %v", err)
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(names) != 2 {
		t.Fatalf("expected 2 entries, got %v", names)
	}
	if names[0] > names[1] {
		t.Fatalf("entries should be sorted: %v", names)
	}
}

func TestStoreListEmptyBeforeFirstWrite(t *testing.T) {
	store := newTestStore(t, afero.NewMemMapFs())
	names, err := store.List()
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(names) != 0 {
		t.Fatalf("expected no entries, got %v", names)
	}
}

func TestStoreConcurrentWritesSameKey(t *testing.T) {
	store := newTestStore(t, afero.NewOsFs())
	key := resource.MustParse("https://example.com/shared.png")
	payload := bytes.Repeat([]byte("img"), 50_000)

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := store.Write(context.Background(), key, payload); err != nil {
				errs <- err
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent write error: %v", err)
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("list error: %v", err)
	}
	if len(names) != 1 || names[0] != Filename(key) {
		t.Fatalf("expected single entry %s, got %v", Filename(key), names)
	}
	got, err := store.Read(context.Background(), key)
	if err != nil || !bytes.Equal(got, payload) {
		t.Fatalf("expected intact payload after concurrent writes, err=%v len=%d", err, len(got))
	}
}

func TestNewStoreValidatesInput(t *testing.T) {
	if _, err := NewStore(nil, "/tmp", Options{}); err == nil {
		t.Fatalf("nil filesystem should be rejected")
	}
	if _, err := NewStore(afero.NewMemMapFs(), "", Options{}); err == nil {
		t.Fatalf("empty root should be rejected")
	}
	if _, err := NewStore(afero.NewMemMapFs(), "/tmp", Options{DirName: "a/b"}); err == nil {
		t.Fatalf("nested dir name should be rejected")
	}
}

// newTestStore returns a Store rooted in a temporary directory on fsys.
func newTestStore(t *testing.T, fsys afero.Fs) *Store {
	t.Helper()
	store, err := NewStore(fsys, t.TempDir(), Options{})
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	return store
}
