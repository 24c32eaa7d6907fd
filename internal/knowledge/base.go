package knowledge

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/zeromicro/go-zero/core/logx"

	"github.com/nunajera/kbchat/internal"
)

// Snapshot is one immutable load result. Err is set when no text is available.
type Snapshot struct {
	Name     string
	Text     string
	Prompt   string
	LoadedAt time.Time
	Err      error
}

func (s *Snapshot) Ready() bool {
	return s != nil && s.Err == nil && s.Text != ""
}

func (s *Snapshot) Info() internal.KnowledgeInfo {
	if !s.Ready() {
		return internal.KnowledgeInfo{}
	}
	return internal.KnowledgeInfo{
		Name:     s.Name,
		Chars:    utf8.RuneCountInString(s.Text),
		LoadedAt: s.LoadedAt,
	}
}

// Diagnostic is the text shown to the user in place of a load error.
func (s *Snapshot) Diagnostic() string {
	if s == nil {
		return "知識庫尚未載入。"
	}
	switch err := s.Err; {
	case err == nil:
		return ""
	case errors.Is(err, ErrNoUpload):
		return "請先上傳知識庫檔案（" + strings.Join(SupportedExtensions(), " / ") + "）。"
	case errors.Is(err, ErrNotFound):
		return "找不到知識庫檔案（" + strings.Join(FixedNames, " / ") + "），請放置檔案後重新載入。"
	case errors.Is(err, ErrUnsupported):
		return "不支援的檔案格式，請使用 " + strings.Join(SupportedExtensions(), " / ") + "。"
	case errors.Is(err, ErrEmpty):
		return "檔案中沒有可讀取的文字內容。"
	default:
		return fmt.Sprintf("讀取檔案時發生錯誤：%v", err)
	}
}

// Base owns the current snapshot. The first Current call loads it; afterwards it
// changes only through Reload or Replace, each of which swaps the whole snapshot.
type Base struct {
	src    Source
	render func(string) string

	mu  sync.Mutex // serialises loads
	cur atomic.Pointer[Snapshot]
}

// NewBase creates a Base over src. render builds the prompt for each new text.
func NewBase(src Source, render func(string) string) *Base {
	return &Base{src: src, render: render}
}

// Current returns the loaded snapshot, loading it on first use.
func (b *Base) Current(ctx context.Context) *Snapshot {
	if s := b.cur.Load(); s != nil {
		return s
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if s := b.cur.Load(); s != nil {
		return s
	}
	s, ok := b.load(ctx)
	if ok {
		b.cur.Store(s)
	}
	return s
}

// Reload re-reads the source and replaces the snapshot with the result. An
// interrupted read leaves the current snapshot in place.
func (b *Base) Reload(ctx context.Context) *Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.load(ctx)
	if !ok {
		if cur := b.cur.Load(); cur != nil {
			return cur
		}
		return s
	}
	b.cur.Store(s)
	return s
}

// Replace installs an uploaded document. A failed upload also replaces the
// snapshot, leaving the base without knowledge until the next good upload.
func (b *Base) Replace(name string, data []byte) *Snapshot {
	text, err := Extract(name, data)
	s := b.snapshot(Document{Name: name, Text: text}, err)

	b.mu.Lock()
	defer b.mu.Unlock()
	b.cur.Store(s)
	return s
}

// load reads the source. ok is false when ctx ended the read, in which case the
// result says nothing about the source and must not be cached.
func (b *Base) load(ctx context.Context) (s *Snapshot, ok bool) {
	doc, err := b.src.Load(ctx)
	if err != nil && (ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		logx.WithContext(ctx).Infof("[knowledge] load interrupted: %v", err)
		return &Snapshot{LoadedAt: time.Now(), Err: err}, false
	}
	return b.snapshot(doc, err), true
}

func (b *Base) snapshot(doc Document, err error) *Snapshot {
	s := &Snapshot{LoadedAt: time.Now()}
	if err != nil {
		if !errors.Is(err, ErrNoUpload) {
			logx.Errorf("[knowledge] load failed: %v", err)
		}
		s.Err = err
		return s
	}
	s.Name = doc.Name
	s.Text = doc.Text
	if b.render != nil {
		s.Prompt = b.render(doc.Text)
	} else {
		s.Prompt = doc.Text
	}
	logx.Infof("[knowledge] loaded %s (%d chars)", doc.Name, utf8.RuneCountInString(doc.Text))
	return s
}
