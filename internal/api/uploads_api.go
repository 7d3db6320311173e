package api

import (
	"errors"
	"mime/multipart"
	"net/http"

	"calnotify/internal/domain"
	"calnotify/internal/metrics"
	"calnotify/internal/upload"
	"github.com/gorilla/mux"
)

// Multipart overhead allowed on top of the file payload.
const multipartSlack = 1 << 20

func muxVar(r *http.Request, name string) string {
	return mux.Vars(r)[name]
}

// parseMultipart bounds the body and parses the form. The caller must call
// RemoveAll on the returned form.
func parseMultipart(w http.ResponseWriter, r *http.Request, maxPayload int64) (*multipart.Form, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxPayload+multipartSlack)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, domain.ErrFileTooLarge
		}
		return nil, domain.NewValidationError("", "invalid multipart body")
	}
	return r.MultipartForm, nil
}

// singleFile returns the one file in field, rejecting zero or several.
func singleFile(form *multipart.Form, field string) (*multipart.FileHeader, error) {
	files := form.File[field]
	switch {
	case len(files) == 0:
		return nil, domain.ErrNoFile
	case len(files) > 1:
		return nil, domain.ErrTooManyFiles
	}
	return files[0], nil
}

// POST /api/notifications/sounds
func (s *HTTPServer) handleUploadSound(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("upload_sound")

	form, err := parseMultipart(w, r, upload.MaxAudioSize)
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to upload sound")
		return
	}
	defer func() { _ = form.RemoveAll() }()

	fh, err := singleFile(form, "file")
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to upload sound")
		return
	}

	sound, err := s.sounds.UploadCustom(r.Context(), userID(r), r.FormValue("name"), upload.FromFileHeader(fh))
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to upload sound")
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Sound uploaded successfully.",
		"sound":   s.sounds.View(sound),
	})
}

// POST /api/uploads
func (s *HTTPServer) handleUpload(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("upload_file")

	form, err := parseMultipart(w, r, s.opts.MaxFileSize)
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to upload file")
		return
	}
	defer func() { _ = form.RemoveAll() }()

	fh, err := singleFile(form, "file")
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to upload file")
		return
	}

	stored, err := s.gateway.Store(r.Context(), upload.GeneralRules(s.opts.MaxFileSize), upload.FromFileHeader(fh))
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to upload file")
		return
	}
	s.logger.Info().Int64("user_id", userID(r)).Str("file", stored.Filename).Msg("File uploaded")
	writeJSON(w, http.StatusCreated, map[string]any{"file": stored})
}

// POST /api/uploads/batch
func (s *HTTPServer) handleUploadBatch(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("upload_batch")

	form, err := parseMultipart(w, r, s.opts.MaxFileSize*upload.MaxFilesPerRequest)
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to upload files")
		return
	}
	defer func() { _ = form.RemoveAll() }()

	headers := form.File["files"]
	srcs := make([]upload.Source, 0, len(headers))
	for _, fh := range headers {
		srcs = append(srcs, upload.FromFileHeader(fh))
	}

	stored, err := s.gateway.StoreMany(r.Context(), upload.GeneralRules(s.opts.MaxFileSize), srcs)
	if err != nil {
		writeServiceError(w, &s.logger, err, "failed to upload files")
		return
	}
	s.logger.Info().Int64("user_id", userID(r)).Int("count", len(stored)).Msg("Files uploaded")
	writeJSON(w, http.StatusCreated, map[string]any{"files": stored})
}
