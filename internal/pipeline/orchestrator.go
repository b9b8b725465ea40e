package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/compliq/compliq/internal/audit"
	"github.com/compliq/compliq/internal/compile"
	"github.com/compliq/compliq/internal/config"
	"github.com/compliq/compliq/internal/dataset"
	"github.com/compliq/compliq/internal/extract"
	"github.com/compliq/compliq/internal/llm"
	"github.com/compliq/compliq/internal/remediate"
	"github.com/compliq/compliq/internal/rules"
	"github.com/compliq/compliq/internal/schema"
	"github.com/compliq/compliq/internal/validate"
)

// Orchestrator drives the pipeline stages over one session. One instance
// serves one session at a time; it is not safe for concurrent runs.
type Orchestrator struct {
	cfg      *config.Config
	provider llm.Provider
	logger   *slog.Logger
	session  *Session

	// now is the clock for session identity and validation timestamps.
	// Injectable so repeated runs over identical inputs can be compared
	// byte for byte.
	now func() time.Time
}

// New builds an Orchestrator with a fresh session.
func New(cfg *config.Config, provider llm.Provider, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		cfg:      cfg,
		provider: provider,
		logger:   logger,
		now:      time.Now,
	}
	o.Reset()
	return o
}

// Session exposes the current session state.
func (o *Orchestrator) Session() *Session { return o.session }

// Reset starts a new session with all slots empty.
func (o *Orchestrator) Reset() {
	o.session = NewSession(o.now())
}

// AddDocument loads a regulatory document from disk into the session.
func (o *Orchestrator) AddDocument(path string) error {
	doc, err := extract.LoadDocument(path)
	if err != nil {
		return err
	}
	o.session.Docs = append(o.session.Docs, doc)
	o.logger.Info("Added document", slog.String("path", path), slog.Int("bytes", len(doc.Content)))
	return nil
}

// AddDocumentText registers pre-extracted document text under a name.
func (o *Orchestrator) AddDocumentText(name, content string) {
	o.session.Docs = append(o.session.Docs, extract.Document{Path: name, Content: content})
	o.logger.Info("Added document", slog.String("name", name), slog.Int("bytes", len(content)))
}

// AddDataSource registers a named in-memory dataset.
func (o *Orchestrator) AddDataSource(name string, ds *dataset.Dataset) {
	o.session.AddSource(name, ds)
	o.logger.Info("Added data source", slog.String("name", name), slog.Int("rows", ds.NumRows()))
}

// LoadDataSource loads a CSV file as a named data source.
func (o *Orchestrator) LoadDataSource(name, path string) error {
	ds, err := dataset.LoadCSV(path)
	if err != nil {
		return fmt.Errorf("loading data source %s: %w", name, err)
	}
	o.AddDataSource(name, ds)
	return nil
}

// skip logs an unmet stage precondition. Unmet preconditions are warnings,
// never failures: the stage simply does not populate its slot.
func (o *Orchestrator) skip(stage, reason string) {
	o.logger.Warn("Skipping stage", slog.String("stage", stage), slog.String("reason", reason))
}

// ExtractRequirements runs the extraction queries over the session's
// documents. Precondition: at least one document.
func (o *Orchestrator) ExtractRequirements(ctx context.Context) error {
	if len(o.session.Docs) == 0 {
		o.skip("extract", "no documents added")
		return nil
	}
	profile, err := extract.GetProfile(o.cfg.Pipeline.Profile)
	if err != nil {
		return err
	}
	e := extract.NewExtractor(o.provider, profile, o.cfg.Model.Temperature, o.cfg.Model.Timeout)
	reqs, err := e.Extract(ctx, o.session.Docs)
	if err != nil {
		return fmt.Errorf("extracting requirements: %w", err)
	}
	o.session.Extracted = &reqs
	o.logger.Info("Extracted requirements", slog.String("session", o.session.ID))
	return nil
}

// RefineRequirements standardizes the extracted requirements.
// Precondition: extraction has run.
func (o *Orchestrator) RefineRequirements(ctx context.Context) error {
	if o.session.Extracted == nil {
		o.skip("refine", "no extracted requirements")
		return nil
	}
	profile, err := extract.GetProfile(o.cfg.Pipeline.Profile)
	if err != nil {
		return err
	}
	e := extract.NewExtractor(o.provider, profile, o.cfg.Model.Temperature, o.cfg.Model.Timeout)
	refined := e.Refine(ctx, *o.session.Extracted)
	o.session.Refined = &refined
	o.logger.Info("Refined requirements", slog.String("session", o.session.ID))
	return nil
}

// GenerateRules produces rule templates from the refined requirements (or
// the raw extraction when refinement has not run), optionally merging in
// statistically discovered rules from the primary data source. Structural
// template errors are fatal; they mean the producer is broken.
func (o *Orchestrator) GenerateRules(ctx context.Context) error {
	reqs := o.session.Refined
	if reqs == nil {
		reqs = o.session.Extracted
	}
	discovering := o.cfg.Pipeline.Discover && o.session.PrimarySource() != nil
	if reqs == nil && !discovering {
		o.skip("rules", "no requirements and no discovery source")
		return nil
	}

	store := rules.NewStore()
	if reqs != nil {
		raw, err := json.MarshalIndent(reqs, "", "  ")
		if err != nil {
			return err
		}
		gen := rules.NewGenerator(o.provider, o.cfg.Model.Temperature)
		templates, err := gen.GenerateTemplates(ctx, string(raw))
		if err != nil {
			return fmt.Errorf("generating rule templates: %w", err)
		}
		if err := store.AddAll(templates); err != nil {
			return err
		}
	}
	if discovering {
		discovered := rules.Discover(o.session.PrimarySource())
		if err := store.AddAll(discovered); err != nil {
			return err
		}
		o.logger.Info("Discovered rules", slog.Int("count", len(discovered)))
	}

	o.session.Templates = store.List()
	o.logger.Info("Rule templates ready", slog.Int("count", len(o.session.Templates)))
	return nil
}

// GenerateValidationCode renders the rule set as a standalone runnable
// source file for audit archival. Precondition: rule templates exist.
func (o *Orchestrator) GenerateValidationCode() error {
	if len(o.session.Templates) == 0 {
		o.skip("codegen", "no rule templates")
		return nil
	}
	code, err := RenderValidationSource(o.session.Templates)
	if err != nil {
		return fmt.Errorf("rendering validation code: %w", err)
	}
	o.session.ValidationCode = code
	return nil
}

// Validate compiles the rule templates and executes them against the
// primary data source. Precondition: templates and a data source.
func (o *Orchestrator) Validate(ctx context.Context) error {
	_ = ctx
	if len(o.session.Templates) == 0 {
		o.skip("validate", "no rule templates")
		return nil
	}
	ds := o.session.PrimarySource()
	if ds == nil {
		o.skip("validate", "no data source")
		return nil
	}

	compiled, diags, err := compile.Batch(o.session.Templates)
	if err != nil {
		return fmt.Errorf("compiling rules: %w", err)
	}
	for _, d := range diags {
		o.logger.Warn("Rule skipped at compile", slog.String("rule", d.RuleID), slog.String("reason", d.Message))
	}

	result := validate.Run(compiled, ds, o.now().UTC())
	o.session.Validation = &result
	o.logger.Info("Validation complete",
		slog.Int("total", result.Summary.Total),
		slog.Int("passed", result.Summary.Passed),
		slog.Int("failed", result.Summary.Failed))
	return nil
}

// PlanRemediation synthesizes remediation plans for every failed rule.
// Precondition: validation results and a data source.
func (o *Orchestrator) PlanRemediation(ctx context.Context) error {
	if o.session.Validation == nil {
		o.skip("plan", "no validation results")
		return nil
	}
	ds := o.session.PrimarySource()
	if ds == nil {
		o.skip("plan", "no data source")
		return nil
	}

	s := remediate.NewSynthesizer(o.provider, o.cfg.Model.Temperature, o.cfg.Model.Timeout)
	set := s.Plan(ctx, *o.session.Validation, ds, o.session.Templates)
	o.session.Remediation = &set
	o.logger.Info("Remediation planned",
		slog.Int("total", set.Summary.TotalIssues),
		slog.Int("automatable", set.Summary.AutomatableIssues),
		slog.Int("manual", set.Summary.ManualReviewIssues))
	return nil
}

// Remediate applies the automatable plans to a copy of the primary data
// source. Precondition: remediation plans and a data source. In dry-run
// mode the stage logs and leaves the remediated slot empty.
func (o *Orchestrator) Remediate(ctx context.Context) error {
	if o.session.Remediation == nil {
		o.skip("remediate", "no remediation plans")
		return nil
	}
	ds := o.session.PrimarySource()
	if ds == nil {
		o.skip("remediate", "no data source")
		return nil
	}
	if o.cfg.Remediation.DryRun {
		o.logger.Info("Dry run: not applying remediations",
			slog.Int("plans", len(o.session.Remediation.Plans)))
		return nil
	}

	e := remediate.NewExecutor(o.provider, o.cfg.Model.Temperature, o.cfg.Model.Timeout)
	remediated, applied := e.Apply(ctx, ds, o.session.Remediation.Plans)
	o.session.Remediated = remediated
	o.session.Applied = applied
	o.logger.Info("Remediation applied", slog.Int("records", len(applied)))
	return nil
}

// Audit assembles the final report. Precondition: validation results.
func (o *Orchestrator) Audit(ctx context.Context) error {
	if o.session.Validation == nil {
		o.skip("audit", "no validation results")
		return nil
	}

	var diff string
	if o.session.Remediated != nil {
		diff = audit.DatasetDiff(o.session.PrimarySource(), o.session.Remediated)
	}
	plans := map[string]schema.RemediationPlan{}
	if o.session.Remediation != nil {
		plans = o.session.Remediation.Plans
	}

	data := audit.Aggregate(*o.session.Validation, plans, o.session.Applied, diff)
	a := audit.NewAssembler(o.provider, o.cfg.Model.Temperature, o.cfg.Model.Timeout)
	report := a.Report(ctx, data)
	o.session.Report = &report
	o.logger.Info("Audit report assembled", slog.Int("issues", len(data.IssueDetails)))
	return nil
}

// RunAll executes every stage once in order and returns the session.
// Stages with unmet preconditions no-op; only structural or transport
// errors abort the run.
func (o *Orchestrator) RunAll(ctx context.Context) (*Session, error) {
	stages := []struct {
		name string
		fn   func(context.Context) error
	}{
		{"extract", o.ExtractRequirements},
		{"refine", o.RefineRequirements},
		{"rules", o.GenerateRules},
		{"codegen", func(context.Context) error { return o.GenerateValidationCode() }},
		{"validate", o.Validate},
		{"plan", o.PlanRemediation},
		{"remediate", o.Remediate},
		{"audit", o.Audit},
	}
	for _, stage := range stages {
		if err := stage.fn(ctx); err != nil {
			return o.session, fmt.Errorf("stage %s: %w", stage.name, err)
		}
	}
	return o.session, nil
}
