package server

import (
	"errors"
	"io"
	"log"
	"net/http"

	"voiceauth/internal/audio"
	"voiceauth/internal/enroll"
	"voiceauth/internal/template"
	"voiceauth/internal/verify"
)

// maxUploadBytes bounds multipart audio uploads (16 MiB covers the longest
// permitted capture at 48kHz with room to spare).
const maxUploadBytes = 16 << 20

// verifyResponse is the wire shape of a verification result. Score is
// populated only for trusted callers; disclosing it to end-user-facing
// surfaces would aid oracle attacks.
type verifyResponse struct {
	AttemptID string   `json:"attempt_id"`
	Decision  string   `json:"decision"`
	Reason    string   `json:"reason"`
	Score     *float32 `json:"score,omitempty"`
	RetryAt   string   `json:"retry_at,omitempty"`
}

// readWAVParts decodes all uploaded WAV files under the given form field.
func readWAVParts(r *http.Request, field string) ([]*audio.Sample, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, err
	}
	files := r.MultipartForm.File[field]
	if len(files) == 0 {
		return nil, errors.New("no audio parts in request")
	}

	samples := make([]*audio.Sample, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return nil, err
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, err
		}
		sample, err := audio.DecodeWAV(data)
		if err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	return samples, nil
}

// handleEnroll accepts multipart WAV captures and runs enrollment for the
// authenticated identity.
func (s *Server) handleEnroll(w http.ResponseWriter, r *http.Request, p *principal) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	samples, err := readWAVParts(r, "sample")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	result, err := s.enroller.Enroll(r.Context(), p.userID, samples)
	if err != nil {
		log.Printf("[Server] enroll user=%s failed: %v", p.userID, err)
		writeError(w, http.StatusInternalServerError, "enrollment failed")
		return
	}

	s.metrics.RecordEnrollment(string(result.Status), string(result.Reason))
	status := http.StatusOK
	if result.Status != enroll.StatusEnrolled {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, result)
}

// handleVerify accepts one multipart WAV capture and runs verification.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request, p *principal) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	samples, err := readWAVParts(r, "sample")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(samples) != 1 {
		writeError(w, http.StatusBadRequest, "verify takes exactly one sample")
		return
	}

	s.completeVerify(w, r, p, samples[0])
}

// completeVerify runs the verification flow and writes the response; shared
// by the multipart and streaming paths.
func (s *Server) completeVerify(w http.ResponseWriter, r *http.Request, p *principal, sample *audio.Sample) {
	result, err := s.verifier.Verify(r.Context(), p.userID, sample)
	if err != nil {
		if errors.Is(err, audio.ErrUnsupportedFormat) ||
			errors.Is(err, audio.ErrTooShort) || errors.Is(err, audio.ErrTooLong) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		log.Printf("[Server] verify user=%s failed: %v", p.userID, err)
		writeError(w, http.StatusInternalServerError, "verification failed")
		return
	}

	s.metrics.RecordVerification(result.Decision.String(), string(result.Reason))
	writeJSON(w, http.StatusOK, s.verifyResponseFor(result, p))
}

func (s *Server) verifyResponseFor(result *verify.Result, p *principal) verifyResponse {
	resp := verifyResponse{
		AttemptID: result.AttemptID,
		Decision:  result.Decision.String(),
		Reason:    string(result.Reason),
	}
	if result.Scored && p.info.Trusted {
		score := result.Score
		resp.Score = &score
	}
	if result.Reason == verify.ReasonLockedOut {
		resp.RetryAt = result.RetryAt.UTC().Format("2006-01-02T15:04:05Z07:00")
	}
	return resp
}

// handleRevoke disables the authenticated identity's active template.
func (s *Server) handleRevoke(w http.ResponseWriter, r *http.Request, p *principal) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	if err := s.templates.Revoke(r.Context(), p.userID, s.extractorVersion); err != nil {
		log.Printf("[Server] revoke user=%s failed: %v", p.userID, err)
		writeError(w, http.StatusInternalServerError, "revoke failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "revoked"})
}

// handleStatus reports whether the identity has an active template.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, p *principal) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}

	tmpl, err := s.templates.GetActive(r.Context(), p.userID, s.extractorVersion)
	if errors.Is(err, template.ErrNotFound) {
		writeJSON(w, http.StatusOK, map[string]interface{}{"enrolled": false})
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "status lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"enrolled":   true,
		"version":    tmpl.Version,
		"quality":    tmpl.Quality,
		"updated_at": tmpl.UpdatedAt,
	})
}

// handleAttempts returns recent audit records. Trusted callers only.
func (s *Server) handleAttempts(w http.ResponseWriter, r *http.Request, p *principal) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "GET required")
		return
	}
	if !p.info.Trusted {
		writeError(w, http.StatusForbidden, "trusted callers only")
		return
	}

	attempts, err := s.attempts.Recent(r.Context(), p.userID, 50)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "attempt lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"attempts": attempts})
}
