package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	sjsonschema "github.com/santhosh-tekuri/jsonschema/v6"
)

// ValidationError represents a single validation error with location context.
type ValidationError struct {
	Phase    string `json:"phase"` // structural, semantic, domain
	Path     string `json:"path"`
	Message  string `json:"message"`
	Severity string `json:"severity"` // error, warning
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s: %s", e.Phase, e.Path, e.Message)
}

// ValidateFile performs the full 3-phase validation pipeline on a config
// file.
// Phase 1: Structural (strict YAML decode)
// Phase 2: Semantic (JSON Schema validation)
// Phase 3: Domain (custom Go rules)
func ValidateFile(path string) (*Config, []*ValidationError) {
	var allErrors []*ValidationError

	cfg, err := LoadFile(path)
	if err != nil {
		allErrors = append(allErrors, &ValidationError{
			Phase:    "structural",
			Message:  err.Error(),
			Severity: "error",
		})
		return nil, allErrors
	}

	allErrors = append(allErrors, validateSemantic(cfg)...)
	allErrors = append(allErrors, ValidateDomain(cfg)...)

	if len(allErrors) > 0 {
		return cfg, allErrors
	}
	return cfg, nil
}

// validateSemantic validates the config against the generated JSON Schema.
func validateSemantic(cfg *Config) []*ValidationError {
	fail := func(msg string) []*ValidationError {
		return []*ValidationError{{Phase: "semantic", Message: msg, Severity: "error"}}
	}

	data, err := json.Marshal(cfg)
	if err != nil {
		return fail(fmt.Sprintf("marshal for schema validation: %v", err))
	}

	schemaJSON, err := GenerateJSONSchema()
	if err != nil {
		return fail(fmt.Sprintf("generate schema: %v", err))
	}
	var schemaDoc interface{}
	if err := json.Unmarshal(schemaJSON, &schemaDoc); err != nil {
		return fail(fmt.Sprintf("unmarshal schema: %v", err))
	}

	c := sjsonschema.NewCompiler()
	if err := c.AddResource("console-v1.json", schemaDoc); err != nil {
		return fail(fmt.Sprintf("add schema resource: %v", err))
	}
	sch, err := c.Compile("console-v1.json")
	if err != nil {
		return fail(fmt.Sprintf("compile schema: %v", err))
	}

	var doc interface{}
	if err := json.Unmarshal(data, &doc); err != nil {
		return fail(fmt.Sprintf("unmarshal document: %v", err))
	}

	if err := sch.Validate(doc); err != nil {
		var errs []*ValidationError
		if ve, ok := err.(*sjsonschema.ValidationError); ok {
			for _, cause := range flattenValidationErrors(ve) {
				errs = append(errs, &ValidationError{
					Phase:    "semantic",
					Path:     strings.Join(cause.InstanceLocation, "/"),
					Message:  fmt.Sprintf("%v", cause.ErrorKind),
					Severity: "error",
				})
			}
		} else {
			errs = append(errs, &ValidationError{
				Phase:    "semantic",
				Message:  err.Error(),
				Severity: "error",
			})
		}
		return errs
	}
	return nil
}

// flattenValidationErrors recursively collects all leaf validation errors.
func flattenValidationErrors(ve *sjsonschema.ValidationError) []*sjsonschema.ValidationError {
	if len(ve.Causes) == 0 {
		return []*sjsonschema.ValidationError{ve}
	}
	var flat []*sjsonschema.ValidationError
	for _, cause := range ve.Causes {
		flat = append(flat, flattenValidationErrors(cause)...)
	}
	return flat
}

// ValidateDomain performs Phase 3 domain-level validation.
func ValidateDomain(cfg *Config) []*ValidationError {
	var errs []*ValidationError

	if cfg.APIVersion != "console/v1" {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "apiVersion",
			Message:  fmt.Sprintf("unrecognized apiVersion %q, expected %q", cfg.APIVersion, "console/v1"),
			Severity: "error",
		})
	}

	u, err := url.Parse(cfg.Executor.BaseURL)
	switch {
	case cfg.Executor.BaseURL == "":
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "executor.baseUrl",
			Message:  "executor base URL is required",
			Severity: "error",
		})
	case err != nil:
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "executor.baseUrl",
			Message:  fmt.Sprintf("invalid URL: %v", err),
			Severity: "error",
		})
	case u.Scheme != "http" && u.Scheme != "https":
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "executor.baseUrl",
			Message:  fmt.Sprintf("scheme %q not supported: the WebSocket feed is derived from http/https", u.Scheme),
			Severity: "error",
		})
	case u.Host == "":
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "executor.baseUrl",
			Message:  "URL has no host",
			Severity: "error",
		})
	}

	// A detail view slower than the list view defeats its purpose as the
	// degraded mode when the stream is down.
	if cfg.Polling.DetailIntervalSeconds > cfg.Polling.ListIntervalSeconds {
		errs = append(errs, &ValidationError{
			Phase:    "domain",
			Path:     "polling.detailIntervalSeconds",
			Message:  "detail view should poll at least as fast as the list view",
			Severity: "warning",
		})
	}

	return errs
}
