package types

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// ──────────────────────────────────────────────────────────────────────────────
// Limits
// ──────────────────────────────────────────────────────────────────────────────

const (
	MaxTextBytes     = 256 * 1024 // 256 KB
	MaxImageB64Bytes = 8 << 20    // 8 MB
	PreviewRunes     = 120
)

// ──────────────────────────────────────────────────────────────────────────────
// Validation error (returned during request parsing)
// ──────────────────────────────────────────────────────────────────────────────

type ValidationError struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s %s", e.Field, e.Reason)
}

// ──────────────────────────────────────────────────────────────────────────────
// Text analysis
// ──────────────────────────────────────────────────────────────────────────────

type AnalyzeRequest struct {
	Text string `json:"text"`
}

// Validate enforces the request invariants.
func (r *AnalyzeRequest) Validate() error {
	if strings.TrimSpace(r.Text) == "" {
		return &ValidationError{Field: "text", Reason: "required"}
	}
	if len(r.Text) > MaxTextBytes {
		return &ValidationError{Field: "text", Reason: fmt.Sprintf("exceeds %d bytes", MaxTextBytes)}
	}
	return nil
}

type AnalyzeResponse struct {
	Length    int    `json:"length"`
	WordCount int    `json:"word_count"`
	Preview   string `json:"preview"`
}

// ──────────────────────────────────────────────────────────────────────────────
// Vision analysis
// ──────────────────────────────────────────────────────────────────────────────

type VisionAnalyzeRequest struct {
	ImageBase64 string `json:"image_base64"`
}

// Validate enforces the request invariants.
func (r *VisionAnalyzeRequest) Validate() error {
	r.ImageBase64 = strings.TrimSpace(r.ImageBase64)
	if r.ImageBase64 == "" {
		return &ValidationError{Field: "image_base64", Reason: "required"}
	}
	if len(r.ImageBase64) > MaxImageB64Bytes {
		return &ValidationError{Field: "image_base64", Reason: fmt.Sprintf("exceeds %d bytes", MaxImageB64Bytes)}
	}
	return nil
}

type VisionAnalyzeResponse struct {
	SizeBytes int    `json:"size_bytes"`
	Format    string `json:"format"` // png | jpeg | unknown
}

// ──────────────────────────────────────────────────────────────────────────────
// Tenant-facing responses
// ──────────────────────────────────────────────────────────────────────────────

type PingResponse struct {
	Message string `json:"message"`
}

type WhoAmIResponse struct {
	TenantID   string `json:"tenant_id"`
	TenantName string `json:"tenant_name"`
	Features   any    `json:"features"`
	Limits     any    `json:"limits"`
	Models     any    `json:"models"`
}

// Preview truncates s to PreviewRunes runes, appending an ellipsis when cut.
func Preview(s string) string {
	if utf8.RuneCountInString(s) <= PreviewRunes {
		return s
	}
	runes := []rune(s)
	return string(runes[:PreviewRunes]) + "…"
}
