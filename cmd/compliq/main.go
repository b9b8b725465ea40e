package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/compliq/compliq/internal/audit"
	"github.com/compliq/compliq/internal/compile"
	"github.com/compliq/compliq/internal/config"
	"github.com/compliq/compliq/internal/dataset"
	"github.com/compliq/compliq/internal/llm"
	"github.com/compliq/compliq/internal/pipeline"
	"github.com/compliq/compliq/internal/rules"
	"github.com/compliq/compliq/internal/schema"
	"github.com/compliq/compliq/internal/validate"
)

// version is set at build time via -ldflags "-X main.version=x.y.z".
var version = "dev"

// exitErr carries a numeric exit code through the cobra error path.
type exitErr struct {
	code int
	msg  string
}

func (e *exitErr) Error() string { return e.msg }

// codeError returns an exitErr for the given code.
func codeError(code int, format string, args ...any) error {
	return &exitErr{code: code, msg: fmt.Sprintf(format, args...)}
}

// runFlags holds the parsed flags for the run command.
type runFlags struct {
	docs        []string
	format      string
	out         string
	artifacts   string
	profileName string
	model       string
	temperature float64
	discover    bool
	dryRun      bool
	offline     bool
	verbose     bool
}

func main() {
	root := &cobra.Command{
		Use:     "compliq",
		Short:   "Turn compliance documents into executable data-quality checks",
		Long:    "Compliq extracts validation requirements from regulatory documents, compiles them into executable rules, validates tabular data, applies constrained remediations, and emits an auditable report.",
		Version: version,
	}

	var flags runFlags
	runCmd := &cobra.Command{
		Use:   "run <dataset.csv>",
		Short: "Run the full pipeline against a dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPipeline(args[0], flags)
		},
	}
	f := runCmd.Flags()
	f.StringArrayVar(&flags.docs, "doc", nil, "Regulatory document path (may be repeated)")
	f.StringVar(&flags.format, "format", "", "Report format: json or md (default from config)")
	f.StringVar(&flags.out, "out", "", "Write the audit report to a file instead of stdout")
	f.StringVar(&flags.artifacts, "artifacts", "", "Directory to persist session artifacts")
	f.StringVar(&flags.profileName, "profile", "", "Regulatory profile: general, privacy, or financial")
	f.StringVar(&flags.model, "model", "", "Model as provider:model (overrides config and COMPLIQ_MODEL)")
	f.Float64Var(&flags.temperature, "temperature", -1, "Model temperature (0.0-1.0)")
	f.BoolVar(&flags.discover, "discover", false, "Also derive statistical rules from the dataset")
	f.BoolVar(&flags.dryRun, "dry-run", false, "Synthesize remediation plans without applying them")
	f.BoolVar(&flags.offline, "offline", false, "Exit 3 if COMPLIQ_MODEL env var is not set; use to enforce explicit model config in CI")
	f.BoolVar(&flags.verbose, "verbose", false, "Enable debug logging to stderr")

	var checkRules string
	var checkOut string
	checkCmd := &cobra.Command{
		Use:   "check <dataset.csv>",
		Short: "Validate a dataset against a saved rule set (no model calls)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCheck(args[0], checkRules, checkOut)
		},
	}
	checkCmd.Flags().StringVar(&checkRules, "rules", "", "Rule templates JSON file (required)")
	checkCmd.Flags().StringVar(&checkOut, "out", "", "Write validation results to a file instead of stdout")
	// A missing --rules is a usage error, not a runtime one.
	_ = checkCmd.MarkFlagRequired("rules")

	var discoverOut string
	discoverCmd := &cobra.Command{
		Use:   "discover <dataset.csv>",
		Short: "Derive candidate rule templates from the data itself",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDiscover(args[0], discoverOut)
		},
	}
	discoverCmd.Flags().StringVar(&discoverOut, "out", "", "Write rule templates to a file instead of stdout")

	root.AddCommand(runCmd, checkCmd, discoverCmd)

	if err := root.Execute(); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, "Error:", ee.msg)
			os.Exit(ee.code)
		}
		// cobra already printed the error
		os.Exit(1)
	}
}

func runPipeline(datasetPath string, flags runFlags) error {
	if err := validateRunFlags(flags); err != nil {
		return codeError(3, "invalid flags: %s", err)
	}
	if flags.offline && flags.model == "" && os.Getenv(config.EnvModel) == "" {
		return codeError(3, "%s environment variable not set (required with --offline)", config.EnvModel)
	}

	logger := newLogger(flags.verbose)
	cfg, err := config.NewLoader(logger).Load()
	if err != nil {
		return codeError(3, "loading configuration: %s", err)
	}
	applyRunFlags(cfg, flags)
	if err := cfg.Validate(); err != nil {
		return codeError(3, "invalid configuration: %s", err)
	}

	provider, err := llm.NewProvider(cfg.Model.Name)
	if err != nil {
		return codeError(4, "creating model provider: %s", err)
	}

	o := pipeline.New(cfg, provider, logger)
	for _, doc := range flags.docs {
		if err := o.AddDocument(doc); err != nil {
			return codeError(3, "loading document: %s", err)
		}
	}
	if err := o.LoadDataSource("dataset", datasetPath); err != nil {
		return codeError(3, "loading dataset: %s", err)
	}

	sess, err := o.RunAll(context.Background())
	if err != nil {
		return codeError(5, "pipeline failed: %s", err)
	}

	if dir := artifactDir(cfg, flags); dir != "" {
		if _, err := o.SaveArtifacts(dir); err != nil {
			fmt.Fprintf(os.Stderr, "WARN: saving artifacts failed: %s\n", err)
			// Continue; the report is the primary output.
		}
	}

	if sess.Report == nil {
		return codeError(5, "pipeline produced no audit report (add documents or rules)")
	}
	renderer, err := audit.NewRenderer(cfg.Report.Format)
	if err != nil {
		return codeError(3, "invalid format: %s", err)
	}
	out, err := renderer.Render(sess.Report)
	if err != nil {
		return codeError(3, "rendering report: %s", err)
	}
	return writeOutput(flags.out, out)
}

// runCheck compiles a saved rule set and validates a dataset without any
// model calls.
func runCheck(datasetPath, rulesPath, outPath string) error {
	templates, err := loadTemplates(rulesPath)
	if err != nil {
		return codeError(3, "loading rules: %s", err)
	}

	store := rules.NewStore()
	if err := store.AddAll(templates); err != nil {
		return codeError(3, "invalid rule set: %s", err)
	}

	ds, err := dataset.LoadCSV(datasetPath)
	if err != nil {
		return codeError(3, "loading dataset: %s", err)
	}

	compiled, diags, err := compile.Batch(store.List())
	if err != nil {
		return codeError(3, "compiling rules: %s", err)
	}
	for _, d := range diags {
		fmt.Fprintf(os.Stderr, "WARN: rule %s skipped: %s\n", d.RuleID, d.Message)
	}

	result := validate.Run(compiled, ds, time.Now().UTC())
	out, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return codeError(3, "rendering results: %s", err)
	}
	return writeOutput(outPath, out)
}

// runDiscover derives rule templates statistically from the dataset.
func runDiscover(datasetPath, outPath string) error {
	ds, err := dataset.LoadCSV(datasetPath)
	if err != nil {
		return codeError(3, "loading dataset: %s", err)
	}

	templates := rules.Discover(ds)
	artifact := struct {
		SchemaVersion int                   `json:"schema_version"`
		Templates     []schema.RuleTemplate `json:"rule_templates"`
	}{schema.SchemaVersion, templates}

	out, err := json.MarshalIndent(artifact, "", "  ")
	if err != nil {
		return codeError(3, "rendering templates: %s", err)
	}
	return writeOutput(outPath, out)
}

// loadTemplates reads a rule templates file, accepting either a bare JSON
// array or the artifact wrapper SaveArtifacts produces.
func loadTemplates(path string) ([]schema.RuleTemplate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var templates []schema.RuleTemplate
	if err := json.Unmarshal(data, &templates); err == nil {
		return templates, nil
	}

	var artifact struct {
		SchemaVersion int                   `json:"schema_version"`
		Templates     []schema.RuleTemplate `json:"rule_templates"`
	}
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("not a rule templates file: %w", err)
	}
	if len(artifact.Templates) == 0 {
		return nil, fmt.Errorf("no rule templates in %s", path)
	}
	return artifact.Templates, nil
}

// validateRunFlags returns an error if any flag value is invalid.
func validateRunFlags(flags runFlags) error {
	switch flags.format {
	case "", "json", "md":
	default:
		return fmt.Errorf("--format must be json or md, got %q", flags.format)
	}
	switch flags.profileName {
	case "", "general", "privacy", "financial":
	default:
		return fmt.Errorf("--profile must be general, privacy, or financial, got %q", flags.profileName)
	}
	if flags.temperature != -1 && (flags.temperature < 0 || flags.temperature > 1) {
		return fmt.Errorf("--temperature must be between 0.0 and 1.0, got %g", flags.temperature)
	}
	return nil
}

// applyRunFlags layers the command-line flags over the loaded config.
func applyRunFlags(cfg *config.Config, flags runFlags) {
	if flags.model != "" {
		cfg.Model.Name = flags.model
	}
	if flags.temperature != -1 {
		cfg.Model.Temperature = flags.temperature
	}
	if flags.format != "" {
		cfg.Report.Format = flags.format
	}
	if flags.profileName != "" {
		cfg.Pipeline.Profile = flags.profileName
	}
	if flags.discover {
		cfg.Pipeline.Discover = true
	}
	if flags.dryRun {
		cfg.Remediation.DryRun = true
	}
}

// artifactDir resolves the artifact directory, flag over config.
func artifactDir(cfg *config.Config, flags runFlags) string {
	if flags.artifacts != "" {
		return flags.artifacts
	}
	return cfg.Pipeline.ArtifactDir
}

func writeOutput(path string, data []byte) error {
	if path != "" {
		if err := os.WriteFile(path, data, 0o644); err != nil {
			return codeError(3, "writing output file: %s", err)
		}
		return nil
	}
	if _, err := os.Stdout.Write(data); err != nil {
		return codeError(3, "writing output: %s", err)
	}
	// Ensure output ends with a newline for terminal friendliness.
	if len(data) > 0 && data[len(data)-1] != '\n' {
		fmt.Fprintln(os.Stdout)
	}
	return nil
}

// newLogger builds the stderr logger; --verbose lowers the level to debug.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
