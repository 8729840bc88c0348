package api

import (
	"bytes"
	"encoding/base64"
	"errors"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/LucasEdu07/friday-agents/pkg/reqctx"
	"github.com/LucasEdu07/friday-agents/pkg/tenant"
	"github.com/LucasEdu07/friday-agents/pkg/tenantcfg"
	"github.com/LucasEdu07/friday-agents/pkg/types"
)

// ──────────────────────────────────────────────────────────────────────────────
// Tenant-facing /v1 handlers. The pipeline guarantees a resolved tenant.
// ──────────────────────────────────────────────────────────────────────────────

// tenantOr500 returns the resolved tenant. Its absence means the pipeline
// was not installed, which is a server bug.
func tenantOr500(w http.ResponseWriter, r *http.Request) (tenant.Identity, bool) {
	id, ok := reqctx.CurrentTenant(r.Context())
	if !ok {
		types.ErrInternal().WriteJSON(w)
	}
	return id, ok
}

// configFor returns the tenant's configuration, or defaults named after
// the directory entry when no file exists.
func (s *Server) configFor(id tenant.Identity) tenantcfg.TenantConfig {
	if s.Configs != nil {
		if cfg, ok := s.Configs.Get(id.ID); ok {
			return *cfg
		}
	}
	return tenantcfg.Default(id.DisplayName)
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantOr500(w, r)
	if !ok {
		return
	}
	types.WriteJSON(w, http.StatusOK, types.PingResponse{Message: "Pong from " + id.DisplayName})
}

func (s *Server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantOr500(w, r)
	if !ok {
		return
	}
	cfg := s.configFor(id)
	types.WriteJSON(w, http.StatusOK, types.WhoAmIResponse{
		TenantID:   id.ID,
		TenantName: id.DisplayName,
		Features:   cfg.Features,
		Limits:     cfg.Limits,
		Models:     cfg.Models,
	})
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantOr500(w, r)
	if !ok {
		return
	}
	if !s.configFor(id).Features.EnableText {
		types.ErrForbidden("Text analysis disabled for this tenant").WriteJSON(w)
		return
	}

	var req types.AnalyzeRequest
	if apiErr := decode(w, r, maxBodyBytes, &req); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if err := req.Validate(); err != nil {
		writeValidation(w, err)
		return
	}

	types.WriteJSON(w, http.StatusOK, types.AnalyzeResponse{
		Length:    utf8.RuneCountInString(req.Text),
		WordCount: len(strings.Fields(req.Text)),
		Preview:   types.Preview(req.Text),
	})
}

var (
	pngMagic  = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}
	jpegMagic = []byte{0xff, 0xd8, 0xff}
)

// imageFormat sniffs the container format from the leading bytes.
func imageFormat(b []byte) string {
	switch {
	case bytes.HasPrefix(b, pngMagic):
		return "png"
	case bytes.HasPrefix(b, jpegMagic):
		return "jpeg"
	default:
		return "unknown"
	}
}

// decodeImage accepts plain base64 or a data URL.
func decodeImage(s string) ([]byte, error) {
	if strings.HasPrefix(s, "data:") {
		if i := strings.Index(s, ","); i >= 0 {
			s = s[i+1:]
		}
	}
	return base64.StdEncoding.DecodeString(s)
}

func (s *Server) handleVisionAnalyze(w http.ResponseWriter, r *http.Request) {
	id, ok := tenantOr500(w, r)
	if !ok {
		return
	}
	if !s.configFor(id).Features.EnableVision {
		types.ErrForbidden("Vision analysis disabled for this tenant").WriteJSON(w)
		return
	}

	var req types.VisionAnalyzeRequest
	if apiErr := decode(w, r, maxVisionBodyBytes, &req); apiErr != nil {
		apiErr.WriteJSON(w)
		return
	}
	if err := req.Validate(); err != nil {
		writeValidation(w, err)
		return
	}

	img, err := decodeImage(req.ImageBase64)
	if err != nil {
		types.ErrBadRequest("image_base64 is not valid base64").WriteJSON(w)
		return
	}
	types.WriteJSON(w, http.StatusOK, types.VisionAnalyzeResponse{
		SizeBytes: len(img),
		Format:    imageFormat(img),
	})
}

func writeValidation(w http.ResponseWriter, err error) {
	var ve *types.ValidationError
	if errors.As(err, &ve) {
		types.ErrBadRequest(ve.Field + ": " + ve.Reason).WriteJSON(w)
		return
	}
	types.ErrBadRequest(err.Error()).WriteJSON(w)
}
