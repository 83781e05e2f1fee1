package api

import (
	"fmt"
	"time"

	"github.com/xeipuuv/gojsonschema"

	"github.com/ratewatch/marathon/internal/config"
)

// createRunSchema is validated before the request body is decoded, so
// clients get field-level messages instead of a single unmarshal error.
const createRunSchema = `{
	"type": "object",
	"required": ["name"],
	"additionalProperties": false,
	"properties": {
		"name": {
			"type": "string",
			"minLength": 1,
			"maxLength": 64,
			"pattern": "^[a-zA-Z0-9][a-zA-Z0-9._-]*$"
		},
		"duration": {"type": "string", "pattern": "^[0-9]+(ns|us|ms|s|m|h)([0-9]+(ns|us|ms|s|m|h))*$"},
		"base_request_rate": {"type": "integer", "minimum": 1, "maximum": 10000},
		"concurrency": {"type": "integer", "minimum": 1, "maximum": 1000},
		"valid_percent": {"type": "number", "minimum": 0, "maximum": 100},
		"scenario_weights": {
			"type": "object",
			"additionalProperties": {"type": "number", "minimum": 0, "maximum": 100}
		},
		"thresholds": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"memory_mb": {"type": "number", "exclusiveMinimum": 0},
				"response_time_ms": {"type": "number", "exclusiveMinimum": 0},
				"error_rate_percent": {"type": "number", "exclusiveMinimum": 0},
				"cpu_percent": {"type": "number", "exclusiveMinimum": 0},
				"network_latency_ms": {"type": "number", "exclusiveMinimum": 0},
				"disk_percent": {"type": "number", "exclusiveMinimum": 0},
				"cache_hit_percent": {"type": "number", "minimum": 0}
			}
		},
		"toggles": {
			"type": "object",
			"additionalProperties": false,
			"properties": {
				"leak_detection": {"type": "boolean"},
				"baselining": {"type": "boolean"},
				"chaos": {"type": "boolean"},
				"business_metrics": {"type": "boolean"},
				"load_variation": {"type": "boolean"}
			}
		},
		"seed": {"type": "integer"}
	}
}`

var createRunSchemaLoader = gojsonschema.NewStringLoader(createRunSchema)

// validateCreateRequest returns one message per schema violation, or
// nil when the body conforms.
func validateCreateRequest(body []byte) []string {
	result, err := gojsonschema.Validate(createRunSchemaLoader, gojsonschema.NewBytesLoader(body))
	if err != nil {
		return []string{fmt.Sprintf("invalid JSON: %v", err)}
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return msgs
}

// createRunRequest is the decoded create-run body. Absent fields keep
// the defaults of a standard soak configuration.
type createRunRequest struct {
	Name            string             `json:"name"`
	Duration        string             `json:"duration,omitempty"`
	BaseRequestRate int                `json:"base_request_rate,omitempty"`
	Concurrency     int                `json:"concurrency,omitempty"`
	ValidPercent    *float64           `json:"valid_percent,omitempty"`
	ScenarioWeights map[string]float64 `json:"scenario_weights,omitempty"`
	Thresholds      *config.Thresholds `json:"thresholds,omitempty"`
	Toggles         *config.Toggles    `json:"toggles,omitempty"`
	Seed            int64              `json:"seed,omitempty"`
}

// apply overlays the request onto cfg and validates the result.
func (req *createRunRequest) apply(cfg *config.RunConfig) (*config.RunConfig, error) {
	if req.Duration != "" {
		d, err := time.ParseDuration(req.Duration)
		if err != nil {
			return nil, fmt.Errorf("api: bad duration %q: %w", req.Duration, err)
		}
		cfg.Duration = d
	}
	if req.BaseRequestRate > 0 {
		cfg.BaseRequestRate = req.BaseRequestRate
	}
	if req.Concurrency > 0 {
		cfg.Concurrency = req.Concurrency
	}
	if req.ValidPercent != nil {
		cfg.ValidPercent = *req.ValidPercent
	}
	if req.ScenarioWeights != nil {
		cfg.ScenarioWeights = req.ScenarioWeights
	}
	if req.Thresholds != nil {
		cfg.Thresholds = *req.Thresholds
	}
	if req.Toggles != nil {
		cfg.Toggles = *req.Toggles
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
