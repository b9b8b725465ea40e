package extract

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/compliq/compliq/internal/llm"
)

func writeDoc(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadDocument_Formats(t *testing.T) {
	dir := t.TempDir()
	txt := writeDoc(t, dir, "policy.txt", "All ages must be 0-120.")

	doc, err := LoadDocument(txt)
	if err != nil {
		t.Fatal(err)
	}
	if doc.Content != "All ages must be 0-120." {
		t.Errorf("content = %q", doc.Content)
	}

	pdf := writeDoc(t, dir, "policy.pdf", "binary")
	if _, err := LoadDocument(pdf); err == nil {
		t.Error("expected error for unsupported format")
	}
	if _, err := LoadDocument(filepath.Join(dir, "missing.txt")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestLoadDocument_ScrubsSecrets(t *testing.T) {
	dir := t.TempDir()
	path := writeDoc(t, dir, "notes.md", "contact ops@corp.example, key sk-ant-REDACTED")

	doc, err := LoadDocument(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(doc.Content, "sk-ant") || strings.Contains(doc.Content, "corp.example") {
		t.Errorf("secrets survived loading: %q", doc.Content)
	}
}

func TestCorpus_RedactsAndTruncates(t *testing.T) {
	docs := []Document{
		{Path: "/tmp/a.txt", Content: "api key sk-ant-REDACTED must never appear"},
		{Path: "/tmp/b.md", Content: strings.Repeat("x", maxDocumentChars+100)},
	}
	body := corpus(docs)
	if strings.Contains(body, "sk-ant-abc123") {
		t.Error("secret survived redaction")
	}
	if !strings.Contains(body, "[content truncated]") {
		t.Error("long document not truncated")
	}
	if !strings.Contains(body, "--- Document: a.txt ---") {
		t.Error("source label missing")
	}
}

func TestGetProfile(t *testing.T) {
	for _, name := range []string{"", "general", "privacy", "financial"} {
		if _, err := GetProfile(name); err != nil {
			t.Errorf("GetProfile(%q) = %v", name, err)
		}
	}
	if _, err := GetProfile("maritime"); err == nil {
		t.Error("expected error for unknown profile")
	}

	p, _ := GetProfile("privacy")
	out := p.FormatForPrompt()
	if !strings.Contains(out, "Profile: privacy") || !strings.Contains(out, "consent") {
		t.Errorf("privacy prompt rules = %q", out)
	}

	g, _ := GetProfile("general")
	if got := g.FormatForPrompt(); got != "" {
		t.Errorf("general profile should contribute no rules, got %q", got)
	}
}

// scriptedProvider returns canned content keyed by a substring of the user
// prompt.
type scriptedProvider struct {
	responses map[string]string
	err       error
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Complete(_ context.Context, req *llm.Request) (*llm.Response, error) {
	if p.err != nil {
		return nil, p.err
	}
	for key, content := range p.responses {
		if strings.Contains(req.UserPrompt, key) {
			return &llm.Response{Content: content}, nil
		}
	}
	return &llm.Response{Content: "{}"}, nil
}

func TestExtract_FourQueries(t *testing.T) {
	dir := t.TempDir()
	doc := writeDoc(t, dir, "reg.md", "Age must be between 0 and 120. Name is required.")
	docs, err := LoadDocuments([]string{doc})
	if err != nil {
		t.Fatal(err)
	}

	provider := &scriptedProvider{responses: map[string]string{
		"allowable values": "```json\n{\"age\": \"0-120\"}\n```",
		"mandatory fields": `["name"]`,
		"relationships":    `[]`,
		"data type":        `{"age": "numeric"}`,
	}}
	e := NewExtractor(provider, nil, 0.0, time.Minute)
	reqs, err := e.Extract(context.Background(), docs)
	if err != nil {
		t.Fatal(err)
	}
	if reqs.AllowableValues != `{"age": "0-120"}` {
		t.Errorf("allowable values = %q", reqs.AllowableValues)
	}
	if reqs.RequiredFields != `["name"]` {
		t.Errorf("required fields = %q", reqs.RequiredFields)
	}
	if reqs.DataTypes != `{"age": "numeric"}` {
		t.Errorf("data types = %q", reqs.DataTypes)
	}
}

func TestExtract_NoDocuments(t *testing.T) {
	e := NewExtractor(&scriptedProvider{}, nil, 0.0, time.Minute)
	if _, err := e.Extract(context.Background(), nil); err == nil {
		t.Error("expected error for empty document set")
	}
}

// fastExtractor disables retry backoff so failure paths run quickly.
func fastExtractor(provider llm.Provider) *Extractor {
	e := NewExtractor(provider, nil, 0.0, time.Minute)
	e.retry = llm.RetryConfig{MaxAttempts: 1}
	return e
}

func TestExtract_ProviderError(t *testing.T) {
	e := fastExtractor(&scriptedProvider{err: errors.New("boom")})
	_, err := e.Extract(context.Background(), []Document{{Path: "a.txt", Content: "x"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "allowable_values") {
		t.Errorf("error should name the failing query: %v", err)
	}
}

func TestRefine_FallsBackOnGarbage(t *testing.T) {
	orig := Requirements{SchemaVersion: 1, RequiredFields: `["name"]`}

	e := NewExtractor(&scriptedProvider{responses: map[string]string{
		"Requirements to refine": "I cannot help with that.",
	}}, nil, 0.0, time.Minute)
	got := e.Refine(context.Background(), orig)
	if got != orig {
		t.Errorf("garbage refinement should keep originals, got %+v", got)
	}

	e = fastExtractor(&scriptedProvider{err: errors.New("down")})
	if got := e.Refine(context.Background(), orig); got != orig {
		t.Errorf("provider failure should keep originals, got %+v", got)
	}
}

func TestRefine_AppliesRefinement(t *testing.T) {
	orig := Requirements{SchemaVersion: 1, RequiredFields: `["Name", "name "]`}
	e := NewExtractor(&scriptedProvider{responses: map[string]string{
		"Requirements to refine": "```json\n{\"required_fields\": \"[\\\"name\\\"]\"}\n```",
	}}, nil, 0.0, time.Minute)
	got := e.Refine(context.Background(), orig)
	if got.RequiredFields != `["name"]` {
		t.Errorf("refined required fields = %q", got.RequiredFields)
	}
	if got.SchemaVersion != 1 {
		t.Errorf("schema version = %d", got.SchemaVersion)
	}
}
