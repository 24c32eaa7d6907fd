package knowledge

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FixedNames are the autoload candidates, highest priority first.
var FixedNames = []string{"knowledge.xlsx", "knowledge.csv", "knowledge.txt", "knowledge.pdf"}

// Document is the flat text of one loaded source.
type Document struct {
	Name string
	Text string
}

// Source produces a document or reports why it cannot.
type Source interface {
	Load(ctx context.Context) (Document, error)
}

// InlineSource serves a constant compiled into the binary or set by the operator.
type InlineSource struct {
	Name string
	Text string
}

func (s InlineSource) Load(ctx context.Context) (Document, error) {
	name := s.Name
	if name == "" {
		name = "inline"
	}
	if s.Text == "" {
		return Document{}, fmt.Errorf("%w: %s", ErrEmpty, name)
	}
	return Document{Name: name, Text: s.Text}, nil
}

// DirSource loads the first of FixedNames present in Dir. Only that file is read.
type DirSource struct {
	Dir string
}

func (s DirSource) Load(ctx context.Context) (Document, error) {
	for _, name := range FixedNames {
		if err := ctx.Err(); err != nil {
			return Document{}, err
		}
		path := filepath.Join(s.Dir, name)
		data, err := os.ReadFile(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return Document{}, fmt.Errorf("%w %s: %w", ErrParse, name, err)
		}
		text, err := Extract(name, data)
		if err != nil {
			return Document{}, err
		}
		return Document{Name: name, Text: text}, nil
	}
	return Document{}, fmt.Errorf("%w in %s", ErrNotFound, s.Dir)
}

// EmptySource never has a document; it backs sessions that wait for an upload.
type EmptySource struct{}

func (EmptySource) Load(ctx context.Context) (Document, error) {
	return Document{}, ErrNoUpload
}

// IsFixedName reports whether base is one of the autoload file names.
func IsFixedName(base string) bool {
	for _, n := range FixedNames {
		if n == base {
			return true
		}
	}
	return false
}
