package loader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"ragmill/src/log"
	"ragmill/src/rag"
)

// FileLoader reads PDF and plain-text documents from the local
// filesystem. A file that fails to parse is reported as a warning and
// never aborts the rest of the batch.
type FileLoader struct{}

func NewFileLoader() *FileLoader {
	return &FileLoader{}
}

var _ rag.Loader = (*FileLoader)(nil)

// LoadFromDirectory loads every supported file directly under dir.
// Finding no documents is a valid zero-count result, not an error.
func (l *FileLoader) LoadFromDirectory(ctx context.Context, dir string) ([]rag.Document, []error, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read documents directory: %w", err)
	}

	var (
		docs     []rag.Document
		warnings []error
	)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if err := ctx.Err(); err != nil {
			return docs, warnings, err
		}
		path := filepath.Join(dir, entry.Name())
		if !supported(path) {
			continue
		}
		doc, err := l.loadOne(path)
		if err != nil {
			log.Error(err, "skipping unreadable document", "path", path)
			warnings = append(warnings, fmt.Errorf("%s: %w", path, err))
			continue
		}
		docs = append(docs, doc)
	}

	log.Info("loaded documents", "dir", dir, "count", len(docs), "skipped", len(warnings))
	return docs, warnings, nil
}

// LoadFile loads a single document.
func (l *FileLoader) LoadFile(ctx context.Context, path string) ([]rag.Document, []error, error) {
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if !supported(path) {
		return nil, nil, fmt.Errorf("unsupported file type: %s", path)
	}
	doc, err := l.loadOne(path)
	if err != nil {
		return nil, []error{fmt.Errorf("%s: %w", path, err)}, nil
	}
	return []rag.Document{doc}, nil, nil
}

func supported(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pdf", ".txt", ".md":
		return true
	}
	return false
}

func (l *FileLoader) loadOne(path string) (rag.Document, error) {
	ext := strings.ToLower(filepath.Ext(path))

	var (
		text string
		err  error
	)
	switch ext {
	case ".pdf":
		text, err = extractPDFText(path)
	default:
		var raw []byte
		raw, err = os.ReadFile(path)
		text = string(raw)
	}
	if err != nil {
		return rag.Document{}, err
	}
	if strings.TrimSpace(text) == "" {
		return rag.Document{}, fmt.Errorf("no text extracted")
	}

	return rag.Document{
		ID:   path,
		Text: text,
		Metadata: map[string]string{
			"source":   filepath.Base(path),
			"filetype": strings.TrimPrefix(ext, "."),
		},
	}, nil
}

func extractPDFText(path string) (string, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open pdf: %w", err)
	}
	defer f.Close()

	plain, err := reader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, plain); err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return buf.String(), nil
}
