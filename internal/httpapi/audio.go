package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

var allowedAudioExts = map[string]bool{
	".wav":  true,
	".mp3":  true,
	".m4a":  true,
	".ogg":  true,
	".webm": true,
}

// handleUploadSessionAudio accepts a multipart recording for a session,
// stores it under the configured audio bucket and records the resulting
// path on the session row. Uploads larger than MaxUploadBytes are rejected
// before the body is read in full.
func (s *Server) handleUploadSessionAudio(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_id", err.Error())
		return
	}
	sess, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "file field is required and must fit the upload size limit")
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if !allowedAudioExts[ext] {
		respondError(w, http.StatusBadRequest, "validation_error", fmt.Sprintf("unsupported audio type %q", ext))
		return
	}

	dir := filepath.Join(s.cfg.AudioBucket, id.String())
	if err := os.MkdirAll(dir, 0o755); err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	path := filepath.Join(dir, "recording"+ext)
	dst, err := os.Create(path)
	if err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}
	defer dst.Close()
	if _, err := io.Copy(dst, file); err != nil {
		respondError(w, http.StatusInternalServerError, "storage_error", err.Error())
		return
	}

	sess.AudioURL = path
	updated, err := s.store.UpdateSession(r.Context(), sess)
	if err != nil {
		s.respondStoreError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{
		"session_id": id.String(),
		"audio_url":  updated.AudioURL,
	})
}
