package pipeline

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/compliq/compliq/internal/schema"
)

// artifactTimeLayout names each artifact file by its save time.
const artifactTimeLayout = "20060102-150405"

// templateArtifact wraps the rule templates with a schema version for
// persistence; the other artifacts carry their version inline.
type templateArtifact struct {
	SchemaVersion int                   `json:"schema_version"`
	SessionID     string                `json:"session_id"`
	Templates     []schema.RuleTemplate `json:"rule_templates"`
}

// SaveArtifacts serializes the populated session slots as individually
// timestamped files in dir: rule templates, the validation-code rendering,
// validation results, and remediation plans. Empty slots are skipped.
// Returns the paths written.
func (o *Orchestrator) SaveArtifacts(dir string) ([]string, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating artifact directory: %w", err)
	}
	stamp := o.now().UTC().Format(artifactTimeLayout)
	var written []string

	writeJSON := func(name string, v any) error {
		path := filepath.Join(dir, fmt.Sprintf("%s_%s.json", name, stamp))
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Errorf("marshaling %s: %w", name, err)
		}
		if err := os.WriteFile(path, data, 0644); err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		written = append(written, path)
		return nil
	}

	if len(o.session.Templates) > 0 {
		artifact := templateArtifact{
			SchemaVersion: schema.SchemaVersion,
			SessionID:     o.session.ID,
			Templates:     o.session.Templates,
		}
		if err := writeJSON("rule_templates", artifact); err != nil {
			return written, err
		}
	}
	if o.session.ValidationCode != "" {
		path := filepath.Join(dir, fmt.Sprintf("validation_code_%s.go", stamp))
		if err := os.WriteFile(path, []byte(o.session.ValidationCode), 0644); err != nil {
			return written, fmt.Errorf("writing validation code: %w", err)
		}
		written = append(written, path)
	}
	if o.session.Validation != nil {
		if err := writeJSON("validation_results", o.session.Validation); err != nil {
			return written, err
		}
	}
	if o.session.Remediation != nil {
		if err := writeJSON("remediation_plans", o.session.Remediation); err != nil {
			return written, err
		}
	}

	o.logger.Info("Saved artifacts", slog.String("dir", dir), slog.Int("files", len(written)))
	return written, nil
}
