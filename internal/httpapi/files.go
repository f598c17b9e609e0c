package httpapi

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/hellofriend/hellofriend/internal/ingest"
)

// maxUploadBytes bounds one file upload. Chunking makes large files cheap
// to store but the request body still needs a ceiling.
const maxUploadBytes = 8 << 20

func (s *Server) handleUploadFile(w http.ResponseWriter, r *http.Request) {
	userID := strings.TrimSpace(r.URL.Query().Get("user_id"))
	if userID == "" {
		userID = "anonymous"
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_upload", err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		respondError(w, http.StatusBadRequest, "missing_file", "multipart field 'file' is required")
		return
	}
	defer file.Close()

	content, err := io.ReadAll(file)
	if err != nil {
		respondError(w, http.StatusBadRequest, "unreadable_file", err.Error())
		return
	}

	res, err := s.files.IngestFile(r.Context(), userID, header.Filename, string(content))
	if err != nil {
		if errors.Is(err, ingest.ErrEmptyFile) {
			respondError(w, http.StatusBadRequest, "empty_file", err.Error())
			return
		}
		respondError(w, http.StatusInternalServerError, "ingest_failed", "file could not be stored")
		return
	}
	respondJSON(w, http.StatusCreated, res)
}
