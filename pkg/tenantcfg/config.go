// Package tenantcfg loads per-tenant settings from tenants/<id>/config.yaml:
// display name, features, limits, models, CORS origins and rate-limit rules.
package tenantcfg

import (
	"errors"
	"fmt"
	"strings"

	"github.com/LucasEdu07/friday-agents/pkg/ratelimit"
)

type Features struct {
	EnableText   bool `koanf:"enable_text" yaml:"enable_text" json:"enable_text"`
	EnableVision bool `koanf:"enable_vision" yaml:"enable_vision" json:"enable_vision"`
	EnableOCR    bool `koanf:"enable_ocr" yaml:"enable_ocr" json:"enable_ocr"`
}

type Limits struct {
	MaxInputTokens      int `koanf:"max_input_tokens" yaml:"max_input_tokens" json:"max_input_tokens"`
	MaxOutputTokens     int `koanf:"max_output_tokens" yaml:"max_output_tokens" json:"max_output_tokens"`
	MaxImagesPerRequest int `koanf:"max_images_per_request" yaml:"max_images_per_request" json:"max_images_per_request"`
}

type Models struct {
	TextModel   string `koanf:"text_model" yaml:"text_model" json:"text_model"`
	VisionModel string `koanf:"vision_model" yaml:"vision_model" json:"vision_model"`
	OCRModel    string `koanf:"ocr_model" yaml:"ocr_model" json:"ocr_model"`
}

type CORS struct {
	Origins []string `koanf:"origins" yaml:"origins" json:"origins"`
}

// TenantConfig is one tenant's configuration file.
type TenantConfig struct {
	Name      string          `koanf:"name" yaml:"name" json:"name"`
	Features  Features        `koanf:"features" yaml:"features" json:"features"`
	Limits    Limits          `koanf:"limits" yaml:"limits" json:"limits"`
	Models    Models          `koanf:"models" yaml:"models" json:"models"`
	CORS      CORS            `koanf:"cors" yaml:"cors" json:"cors"`
	RateLimit ratelimit.Rules `koanf:"rate_limit" yaml:"rate_limit,omitempty" json:"rate_limit"`
}

// Default returns the configuration written for a newly provisioned tenant.
// It allows no CORS origin and leaves rate limits to the system default.
func Default(name string) TenantConfig {
	return TenantConfig{
		Name:     name,
		Features: Features{EnableText: true, EnableVision: true, EnableOCR: false},
		Limits:   Limits{MaxInputTokens: 4096, MaxOutputTokens: 1024, MaxImagesPerRequest: 4},
		Models:   Models{TextModel: "gpt-4o-mini", VisionModel: "gpt-4o", OCRModel: "tesseract"},
		CORS:     CORS{Origins: []string{}},
	}
}

// ValidationError names the offending field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("tenant config: %s %s", e.Field, e.Reason)
}

// Validate checks the invariants of a loaded file.
func (c *TenantConfig) Validate() error {
	var errs []error
	add := func(field, reason string) {
		errs = append(errs, &ValidationError{Field: field, Reason: reason})
	}

	if strings.TrimSpace(c.Name) == "" {
		add("name", "is required")
	}
	if c.Limits.MaxInputTokens < 1 {
		add("limits.max_input_tokens", "must be >= 1")
	}
	if c.Limits.MaxOutputTokens < 1 {
		add("limits.max_output_tokens", "must be >= 1")
	}
	if c.Limits.MaxImagesPerRequest < 0 {
		add("limits.max_images_per_request", "must be >= 0")
	}
	for field, v := range map[string]string{
		"models.text_model":   c.Models.TextModel,
		"models.vision_model": c.Models.VisionModel,
		"models.ocr_model":    c.Models.OCRModel,
	} {
		if strings.TrimSpace(v) == "" {
			add(field, "is required")
		}
	}
	for i, o := range c.CORS.Origins {
		if strings.TrimSpace(o) == "" {
			add(fmt.Sprintf("cors.origins[%d]", i), "must be a non-empty string")
		}
	}
	for route := range c.RateLimit.Routes {
		if !strings.HasPrefix(route, "/") {
			add("rate_limit.routes", fmt.Sprintf("key %q must be a path", route))
		}
	}
	return errors.Join(errs...)
}
