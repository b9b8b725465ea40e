// Package extract turns regulatory documents into structured validation
// requirements: plain-text loading, LLM-backed extraction queries, and a
// refinement pass that standardizes the result.
package extract

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/compliq/compliq/internal/redact"
)

// maxDocumentChars bounds how much of each document is sent per prompt.
const maxDocumentChars = 4000

// Document is one loaded regulatory source.
type Document struct {
	Path    string
	Content string
}

// LoadDocument reads one document as plain text, scrubbing secrets at load
// time so they never sit in session state. Supported extensions are .txt,
// .md, and .csv; anything else is rejected rather than silently skipped.
func LoadDocument(path string) (Document, error) {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".txt", ".md", ".csv":
	default:
		return Document{}, fmt.Errorf("unsupported document format %q (supported: .txt, .md, .csv)", filepath.Ext(path))
	}
	content, err := redact.RedactFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("reading document: %w", err)
	}
	return Document{Path: path, Content: content}, nil
}

// LoadDocuments loads every path, failing on the first error.
func LoadDocuments(paths []string) ([]Document, error) {
	docs := make([]Document, 0, len(paths))
	for _, p := range paths {
		doc, err := LoadDocument(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// corpus joins the documents into one prompt body. Each document is
// truncated, scrubbed of secrets, and labeled with its base name so the
// model can attribute requirements to a source.
func corpus(docs []Document) string {
	var sb strings.Builder
	for i, doc := range docs {
		if i > 0 {
			sb.WriteString("\n\n")
		}
		content := doc.Content
		if len(content) > maxDocumentChars {
			content = content[:maxDocumentChars] + "... [content truncated]"
		}
		fmt.Fprintf(&sb, "--- Document: %s ---\n%s", filepath.Base(doc.Path), redact.Redact(content))
	}
	return sb.String()
}
