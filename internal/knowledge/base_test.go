package knowledge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type countingSource struct {
	calls atomic.Int32
	text  string
}

func (s *countingSource) Load(ctx context.Context) (Document, error) {
	s.calls.Add(1)
	return Document{Name: "counted", Text: s.text}, nil
}

func wrap(text string) string { return "PROMPT[" + text + "]" }

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestDirSource_PriorityOrder(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "knowledge.txt", "from txt")
	writeFile(t, dir, "knowledge.csv", "from,csv")

	doc, err := DirSource{Dir: dir}.Load(context.Background())
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if doc.Name != "knowledge.csv" || doc.Text != "from | csv" {
		t.Errorf("expected csv to win, got %s: %q", doc.Name, doc.Text)
	}
}

func TestDirSource_Missing(t *testing.T) {
	_, err := DirSource{Dir: t.TempDir()}.Load(context.Background())
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestDirSource_CorruptFileDoesNotFallBack(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "knowledge.xlsx", "garbage")
	writeFile(t, dir, "knowledge.txt", "valid text")

	_, err := DirSource{Dir: dir}.Load(context.Background())
	if !errors.Is(err, ErrParse) {
		t.Errorf("expected ErrParse from the xlsx, got %v", err)
	}
}

func TestDirSource_IgnoresOtherNames(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "notes.txt", "not a knowledge file")

	if _, err := (DirSource{Dir: dir}).Load(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInlineSource(t *testing.T) {
	doc, err := InlineSource{Text: "Q: a\nA: b"}.Load(context.Background())
	if err != nil || doc.Name != "inline" {
		t.Fatalf("got %+v, %v", doc, err)
	}
	if _, err := (InlineSource{}).Load(context.Background()); !errors.Is(err, ErrEmpty) {
		t.Errorf("expected ErrEmpty, got %v", err)
	}
}

func TestBase_LoadsLazilyOnce(t *testing.T) {
	src := &countingSource{text: "kb"}
	b := NewBase(src, wrap)

	if src.calls.Load() != 0 {
		t.Fatal("should not load before first use")
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b.Current(context.Background())
		}()
	}
	wg.Wait()

	if n := src.calls.Load(); n != 1 {
		t.Errorf("expected one load, got %d", n)
	}
	s := b.Current(context.Background())
	if !s.Ready() || s.Prompt != "PROMPT[kb]" {
		t.Errorf("unexpected snapshot: %+v", s)
	}
}

func TestBase_ReloadReadsSourceAgain(t *testing.T) {
	dir := t.TempDir()
	b := NewBase(DirSource{Dir: dir}, wrap)

	if b.Current(context.Background()).Ready() {
		t.Fatal("expected no knowledge in empty dir")
	}
	writeFile(t, dir, "knowledge.txt", "new content")

	if b.Current(context.Background()).Ready() {
		t.Fatal("snapshot must not change without an explicit reload")
	}
	s := b.Reload(context.Background())
	if !s.Ready() || s.Text != "new content" {
		t.Errorf("reload did not pick up file: %+v", s)
	}
}

func TestBase_CanceledReloadKeepsKnowledge(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "knowledge.txt", "good content")
	b := NewBase(DirSource{Dir: dir}, wrap)
	good := b.Current(context.Background())
	if !good.Ready() {
		t.Fatalf("initial load failed: %v", good.Err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if s := b.Reload(ctx); s != good {
		t.Errorf("canceled reload returned %+v, want the current snapshot", s)
	}
	if cur := b.Current(context.Background()); cur != good || !cur.Ready() {
		t.Errorf("canceled reload replaced knowledge: %+v", cur)
	}
}

func TestBase_CanceledFirstLoadIsNotCached(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "knowledge.txt", "good content")
	b := NewBase(DirSource{Dir: dir}, wrap)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if s := b.Current(ctx); s.Ready() || !errors.Is(s.Err, context.Canceled) {
		t.Errorf("expected canceled load, got %+v", s)
	}
	if s := b.Current(context.Background()); !s.Ready() || s.Text != "good content" {
		t.Errorf("later load should read the file, got %+v", s)
	}
}

func TestBase_ReplaceIsWholesale(t *testing.T) {
	b := NewBase(EmptySource{}, wrap)
	first := b.Replace("a.txt", []byte("old knowledge"))
	second := b.Replace("b.txt", []byte("new knowledge"))

	if first.Text != "old knowledge" || first.Prompt != "PROMPT[old knowledge]" {
		t.Errorf("earlier snapshot was mutated: %+v", first)
	}
	cur := b.Current(context.Background())
	if cur != second {
		t.Error("current should be the latest replacement")
	}
	if strings.Contains(cur.Prompt, "old") {
		t.Errorf("new prompt mixes old content: %q", cur.Prompt)
	}
}

func TestBase_ConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	b := NewBase(InlineSource{Text: "v0"}, wrap)
	b.Current(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	var bad atomic.Int32
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				s := b.Current(ctx)
				if s.Prompt != wrap(s.Text) {
					bad.Add(1)
				}
			}
		}()
	}
	for i := 0; i < 200; i++ {
		b.Replace("kb.txt", []byte(strings.Repeat("x", i%7+1)))
	}
	cancel()
	wg.Wait()

	if bad.Load() != 0 {
		t.Errorf("%d snapshots had a prompt built from different text", bad.Load())
	}
}

func TestBase_FailedUploadClearsKnowledge(t *testing.T) {
	b := NewBase(EmptySource{}, wrap)
	b.Replace("a.txt", []byte("good"))

	s := b.Replace("a.docx", []byte("whatever"))
	if s.Ready() {
		t.Fatal("unsupported upload should leave no knowledge")
	}
	if !errors.Is(b.Current(context.Background()).Err, ErrUnsupported) {
		t.Errorf("unexpected error: %v", s.Err)
	}
}

func TestSnapshot_Diagnostic(t *testing.T) {
	errs := []error{ErrNoUpload, ErrNotFound, ErrUnsupported, ErrEmpty, ErrParse, errors.New("boom")}
	seen := map[string]bool{}
	for _, err := range errs {
		d := (&Snapshot{Err: err}).Diagnostic()
		if d == "" {
			t.Errorf("%v: empty diagnostic", err)
		}
		seen[d] = true
	}
	if len(seen) < 5 {
		t.Errorf("expected distinct diagnostics, got %d", len(seen))
	}
	if d := (&Snapshot{Text: "kb"}).Diagnostic(); d != "" {
		t.Errorf("ready snapshot should have no diagnostic, got %q", d)
	}
	var nilSnap *Snapshot
	if nilSnap.Ready() || nilSnap.Diagnostic() == "" {
		t.Error("nil snapshot is never ready")
	}
}

func TestWatcher_ReloadsOnFixedFileChange(t *testing.T) {
	dir := t.TempDir()
	b := NewBase(DirSource{Dir: dir}, wrap)
	b.Current(context.Background())

	w, err := NewWatcher(b, dir)
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	defer w.Close()
	w.debounce = 20 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go w.Run(ctx)

	writeFile(t, dir, "notes.txt", "ignored")
	writeFile(t, dir, "knowledge.txt", "watched content")

	for ctx.Err() == nil {
		if s := b.Current(ctx); s.Ready() && s.Text == "watched content" {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Error("timeout waiting for reload")
}

func TestWatcher_BurstReloadsOnce(t *testing.T) {
	dir := t.TempDir()
	src := &countingSource{text: "counted"}
	b := NewBase(src, wrap)

	w, err := NewWatcher(b, dir)
	if err != nil {
		t.Fatalf("watcher: %v", err)
	}
	defer w.Close()
	w.debounce = 150 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	go w.Run(ctx)

	for i := 0; i < 5; i++ {
		writeFile(t, dir, "knowledge.txt", strings.Repeat("x", i+1))
		time.Sleep(5 * time.Millisecond)
	}

	for src.calls.Load() == 0 && ctx.Err() == nil {
		time.Sleep(10 * time.Millisecond)
	}
	time.Sleep(3 * w.debounce)
	if n := src.calls.Load(); n != 1 {
		t.Errorf("expected one reload for the burst, got %d", n)
	}
}
