package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/compliq/compliq/internal/llm"
	"github.com/compliq/compliq/internal/schema"
)

// Requirements holds the output of the four extraction queries. Fields
// carry the model's JSON text verbatim (fences stripped); downstream
// consumers feed them back into prompts rather than parsing them.
type Requirements struct {
	SchemaVersion    int    `json:"schema_version"`
	AllowableValues  string `json:"allowable_values"`
	RequiredFields   string `json:"required_fields"`
	CrossValidations string `json:"cross_validations"`
	DataTypes        string `json:"data_types"`
}

// Empty reports whether no query produced anything.
func (r Requirements) Empty() bool {
	return r.AllowableValues == "" && r.RequiredFields == "" &&
		r.CrossValidations == "" && r.DataTypes == ""
}

const extractSystemPrompt = `You extract data validation requirements from regulatory and compliance
documents. Answer each query using only the provided documents. Return JSON
only, no prose.`

var extractionQueries = []struct {
	field string
	query string
}{
	{"allowable_values", `Extract all mentions of allowable values, valid ranges, or permitted values
for data elements. Format the output as a JSON object with the field name as
key and the allowable values as values.`},
	{"required_fields", `Identify all mandatory fields or required elements mentioned in the
regulatory documents. Format the output as a JSON array of field names.`},
	{"cross_validations", `Extract all rules that describe relationships or dependencies between
different data elements. Format the output as a JSON array of objects, each
containing the fields involved and the rule description.`},
	{"data_types", `Identify all data type constraints for each field (e.g., numeric, date,
string, etc.). Format the output as a JSON object with field names as keys
and data types as values.`},
}

const refineSystemPrompt = `You refine extracted data validation requirements. Given raw extraction
output, you:
1. Standardize the format of all rules
2. Resolve any ambiguities or contradictions
3. Ensure all field names are consistent
4. Convert descriptive rules into executable logic where possible

Return the refined requirements as structured JSON only.`

// Extractor runs the requirement-extraction queries against the
// text-generation service.
type Extractor struct {
	provider llm.Provider
	profile  *Profile
	temp     float64
	timeout  time.Duration
	retry    llm.RetryConfig
}

// NewExtractor builds an Extractor. A nil profile means "general".
func NewExtractor(provider llm.Provider, profile *Profile, temperature float64, timeout time.Duration) *Extractor {
	if profile == nil {
		profile = general()
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Extractor{provider: provider, profile: profile, temp: temperature, timeout: timeout, retry: llm.DefaultRetryConfig()}
}

// Extract runs the four extraction queries over the documents. Each query
// runs once over the whole corpus. A query whose response is not valid JSON
// keeps the raw text; only transport errors fail the extraction.
func (e *Extractor) Extract(ctx context.Context, docs []Document) (Requirements, error) {
	if len(docs) == 0 {
		return Requirements{}, fmt.Errorf("no documents to extract from")
	}
	body := corpus(docs)

	system := extractSystemPrompt
	if rules := e.profile.FormatForPrompt(); rules != "" {
		system += "\n\n" + rules
	}

	reqs := Requirements{SchemaVersion: schema.SchemaVersion}
	for _, q := range extractionQueries {
		resp, err := e.complete(ctx, system, fmt.Sprintf("%s\n\nDocuments:\n%s", q.query, body))
		if err != nil {
			return Requirements{}, fmt.Errorf("extraction query %s: %w", q.field, err)
		}
		answer := llm.StripFences(resp)
		switch q.field {
		case "allowable_values":
			reqs.AllowableValues = answer
		case "required_fields":
			reqs.RequiredFields = answer
		case "cross_validations":
			reqs.CrossValidations = answer
		case "data_types":
			reqs.DataTypes = answer
		}
	}
	return reqs, nil
}

// Refine standardizes extracted requirements via a second pass. On failure
// the originals are returned unchanged so the pipeline can continue with
// unrefined input.
func (e *Extractor) Refine(ctx context.Context, reqs Requirements) Requirements {
	raw, err := json.MarshalIndent(reqs, "", "  ")
	if err != nil {
		return reqs
	}
	resp, err := e.complete(ctx, refineSystemPrompt, fmt.Sprintf("Requirements to refine:\n%s", raw))
	if err != nil {
		return reqs
	}

	var refined Requirements
	if err := json.Unmarshal([]byte(llm.ExtractJSON(llm.StripFences(resp))), &refined); err != nil {
		return reqs
	}
	if refined.Empty() {
		return reqs
	}
	refined.SchemaVersion = schema.SchemaVersion
	return refined
}

func (e *Extractor) complete(ctx context.Context, system, user string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()
	resp, err := llm.CompleteWithRetry(callCtx, e.provider, &llm.Request{
		SystemPrompt: system,
		UserPrompt:   user,
		Temperature:  e.temp,
	}, e.retry)
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
