package config

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// configSchema constrains the shape of a loaded config before any
// component touches it. Validation failures at load time beat nil
// surprises at run time.
const configSchema = `{
	"type": "object",
	"properties": {
		"server": {
			"type": "object",
			"properties": {
				"addr": {"type": "string", "minLength": 1}
			}
		},
		"pipeline": {
			"type": "object",
			"properties": {
				"max_workers": {"type": "integer", "minimum": 0},
				"page_timeout_seconds": {"type": "integer", "minimum": 1},
				"refine_enabled": {"type": "boolean"}
			}
		},
		"engines": {
			"type": "object",
			"properties": {
				"fast": {
					"type": "object",
					"properties": {
						"languages": {
							"type": "array",
							"items": {"type": "string", "minLength": 2},
							"minItems": 1
						}
					}
				},
				"robust": {
					"type": "object",
					"properties": {
						"enabled": {"type": "boolean"},
						"base_url": {"type": "string"},
						"timeout_seconds": {"type": "integer", "minimum": 1},
						"max_retries": {"type": "integer", "minimum": 1}
					}
				}
			}
		},
		"refine": {
			"type": "object",
			"properties": {
				"backend": {"enum": ["", "openai"]},
				"model": {"type": "string"},
				"paragraph_budget": {"type": "integer", "minimum": 1},
				"timeout_seconds": {"type": "integer", "minimum": 1}
			}
		},
		"ocr_service": {
			"type": "object",
			"properties": {
				"managed": {"type": "boolean"},
				"container_name": {"type": "string"},
				"image": {"type": "string"},
				"port": {"type": "string", "pattern": "^[0-9]+$"}
			}
		},
		"analysis": {
			"type": "object",
			"properties": {
				"enabled": {"type": "boolean"},
				"base_url": {"type": "string"},
				"timeout_seconds": {"type": "integer", "minimum": 1},
				"max_retries": {"type": "integer", "minimum": 0}
			}
		}
	}
}`

var compiledSchema = jsonschema.MustCompileString("config.json", configSchema)

// Validate checks a config against the schema and a few cross-field
// rules the schema cannot express.
func Validate(cfg *Config) error {
	data, err := json.Marshal(toJSONShape(cfg))
	if err != nil {
		return fmt.Errorf("failed to serialize config for validation: %w", err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to deserialize config for validation: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if cfg.Engines.Robust.Enabled && !cfg.OCRService.Managed {
		if strings.TrimSpace(cfg.Engines.Robust.BaseURL) == "" {
			return fmt.Errorf("invalid config: engines.robust.base_url is required when the service is not managed")
		}
	}
	if cfg.Analysis.Enabled && strings.TrimSpace(cfg.Analysis.BaseURL) == "" {
		return fmt.Errorf("invalid config: analysis.base_url is required when analysis is enabled")
	}
	return nil
}

// toJSONShape rebuilds the config as the snake_case document the
// schema describes. The struct's json tags are not defined, so the
// yaml field names are applied by hand.
func toJSONShape(cfg *Config) map[string]any {
	return map[string]any{
		"server": map[string]any{
			"addr": cfg.Server.Addr,
		},
		"pipeline": map[string]any{
			"max_workers":          cfg.Pipeline.MaxWorkers,
			"page_timeout_seconds": cfg.Pipeline.PageTimeoutSeconds,
			"refine_enabled":       cfg.Pipeline.RefineEnabled,
		},
		"engines": map[string]any{
			"fast": map[string]any{
				"languages": cfg.Engines.Fast.Languages,
			},
			"robust": map[string]any{
				"enabled":         cfg.Engines.Robust.Enabled,
				"base_url":        cfg.Engines.Robust.BaseURL,
				"timeout_seconds": cfg.Engines.Robust.TimeoutSeconds,
				"max_retries":     cfg.Engines.Robust.MaxRetries,
			},
		},
		"refine": map[string]any{
			"backend":          cfg.Refine.Backend,
			"model":            cfg.Refine.Model,
			"paragraph_budget": cfg.Refine.ParagraphBudget,
			"timeout_seconds":  cfg.Refine.TimeoutSeconds,
		},
		"ocr_service": map[string]any{
			"managed":        cfg.OCRService.Managed,
			"container_name": cfg.OCRService.ContainerName,
			"image":          cfg.OCRService.Image,
			"port":           cfg.OCRService.Port,
		},
		"analysis": map[string]any{
			"enabled":         cfg.Analysis.Enabled,
			"base_url":        cfg.Analysis.BaseURL,
			"timeout_seconds": cfg.Analysis.TimeoutSeconds,
			"max_retries":     cfg.Analysis.MaxRetries,
		},
	}
}
