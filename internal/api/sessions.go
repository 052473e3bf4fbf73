package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dunamismax/pixelresize/internal/domain"
	"github.com/dunamismax/pixelresize/internal/id"
	"github.com/dunamismax/pixelresize/internal/pipeline"
	"github.com/dunamismax/pixelresize/internal/queue"
	"github.com/dunamismax/pixelresize/internal/store"
)

type sessionView struct {
	ID       string               `json:"id"`
	State    domain.State         `json:"state"`
	Source   *domain.SourceRef    `json:"source,omitempty"`
	Estimate *domain.SizeEstimate `json:"estimate,omitempty"`
	Filename string               `json:"filename"`
}

func (s *Server) view(session domain.Session) sessionView {
	v := sessionView{
		ID:       session.ID,
		State:    session.State,
		Source:   session.Source,
		Filename: s.options.OutputFormat.Filename(),
	}
	if s.options.EnableSizeEstimate && session.State.Loaded {
		estimate := domain.Estimate(session.State.Target)
		v.Estimate = &estimate
	}
	return v
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	session := domain.NewSession(id.New(), time.Now().UTC())
	if err := s.sessions.Create(r.Context(), session); err != nil {
		s.logger.Error("create session failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to create session")
		return
	}
	writeJSON(w, http.StatusCreated, s.view(session))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.view(session))
}

func (s *Server) loadSession(w http.ResponseWriter, r *http.Request) (domain.Session, bool) {
	sessionID := r.PathValue("id")
	session, ok, err := s.sessions.Get(r.Context(), sessionID)
	if err != nil {
		s.logger.Error("load session failed", "session_id", sessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load session")
		return domain.Session{}, false
	}
	if !ok {
		writeError(w, http.StatusNotFound, store.ErrSessionNotFound.Error())
		return domain.Session{}, false
	}
	return session, true
}

// handleUploadImage accepts either a raw body or a multipart "file" part.
// A declared non-image type leaves the session as it was.
func (s *Server) handleUploadImage(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	declaredType, data, err := s.readUpload(w, r)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", s.maxUploadBytes))
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	src, err := pipeline.Acquire(declaredType, data, s.maxPixels)
	switch {
	case errors.Is(err, pipeline.ErrNotImage):
		s.metrics.uploadsRejected.WithLabelValues("not_image").Inc()
		s.logger.Debug("ignored non-image upload", "session_id", session.ID, "content_type", declaredType)
		writeJSON(w, http.StatusUnsupportedMediaType, map[string]any{
			"error":   "ignored non-image upload",
			"session": s.view(session),
		})
		return
	case errors.Is(err, pipeline.ErrSourceTooLarge):
		s.metrics.uploadsRejected.WithLabelValues("too_large").Inc()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   fmt.Sprintf("image exceeds %d pixels", s.maxPixels),
			"session": s.view(session),
		})
		return
	case errors.Is(err, pipeline.ErrDecode):
		s.metrics.uploadsRejected.WithLabelValues("decode").Inc()
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "image could not be decoded",
			"session": s.view(session),
		})
		return
	case err != nil:
		s.logger.Error("acquire failed", "session_id", session.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to read image")
		return
	}

	objectKey := pipeline.SourceObjectKey(session.ID, id.New())
	if err := s.blobs.WriteObject(r.Context(), objectKey, src.Data, src.ContentType); err != nil {
		s.logger.Error("store source failed", "session_id", session.ID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to store image")
		return
	}

	var previous *domain.SourceRef
	updated, err := s.sessions.Update(r.Context(), session.ID, func(cur domain.Session) (domain.Session, error) {
		previous = cur.Source
		cur.State = cur.State.Load(src.Original)
		cur.Source = &domain.SourceRef{
			ObjectKey:   objectKey,
			ContentType: src.ContentType,
			Bytes:       len(src.Data),
			Format:      src.Format,
		}
		return cur, nil
	})
	if err != nil {
		s.writeUpdateError(w, session.ID, err)
		return
	}

	// Async exports may still reference the old upload, so only discard it
	// when nothing can be queued.
	if previous != nil && s.queueClient == nil {
		if err := s.blobs.DeleteObject(r.Context(), previous.ObjectKey); err != nil {
			s.logger.Warn("discard previous source failed", "object_key", previous.ObjectKey, "err", err)
		}
	}

	s.logger.Info("image loaded", "session_id", updated.ID, "original", updated.State.Original, "format", src.Format)
	writeJSON(w, http.StatusOK, s.view(updated))
}

func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (string, []byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes+(1<<20))

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(io.LimitReader(r.Body, s.maxUploadBytes+1))
		if err != nil {
			return "", nil, fmt.Errorf("read body: %w", err)
		}
		if int64(len(data)) > s.maxUploadBytes {
			return "", nil, &http.MaxBytesError{Limit: s.maxUploadBytes}
		}
		return mediaType, data, nil
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("read multipart file: %w", err)
	}
	defer file.Close()

	if header.Size > s.maxUploadBytes {
		return "", nil, &http.MaxBytesError{Limit: s.maxUploadBytes}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return "", nil, fmt.Errorf("read multipart file: %w", err)
	}

	declared, _, _ := mime.ParseMediaType(header.Header.Get("Content-Type"))
	return declared, data, nil
}

type dimensionRequest struct {
	Axis  string          `json:"axis"`
	Value json.RawMessage `json:"value"`
}

func (s *Server) handleSetDimension(w http.ResponseWriter, r *http.Request) {
	var req dimensionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	axis, err := domain.ParseAxis(req.Axis)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	value := parseDimensionValue(req.Value)

	s.update(w, r, func(cur domain.Session) (domain.Session, error) {
		cur.State = cur.State.SetDimension(axis, value)
		return cur, nil
	})
}

// parseDimensionValue accepts a JSON number or free text; anything without
// a leading integer becomes 0.
func parseDimensionValue(raw json.RawMessage) int {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0
	}
	switch value := v.(type) {
	case string:
		return domain.ParseDimension(value)
	case float64:
		return domain.ParseDimension(strconv.FormatFloat(value, 'f', -1, 64))
	default:
		return 0
	}
}

func (s *Server) handleSetAspectLock(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Locked *bool `json:"locked"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Locked == nil {
		writeError(w, http.StatusBadRequest, "locked is required")
		return
	}

	s.update(w, r, func(cur domain.Session) (domain.Session, error) {
		cur.State = cur.State.SetAspectLock(*req.Locked)
		return cur, nil
	})
}

func (s *Server) handleSetQuality(w http.ResponseWriter, r *http.Request) {
	if !s.options.EnableQualitySlider {
		writeError(w, http.StatusConflict, "quality slider is disabled")
		return
	}

	var req struct {
		Quality *int `json:"quality"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Quality == nil {
		writeError(w, http.StatusBadRequest, "quality is required")
		return
	}

	s.update(w, r, func(cur domain.Session) (domain.Session, error) {
		cur.State = cur.State.SetQuality(*req.Quality)
		return cur, nil
	})
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, fn store.UpdateFunc) {
	sessionID := r.PathValue("id")
	updated, err := s.sessions.Update(r.Context(), sessionID, fn)
	if err != nil {
		s.writeUpdateError(w, sessionID, err)
		return
	}
	writeJSON(w, http.StatusOK, s.view(updated))
}

func (s *Server) writeUpdateError(w http.ResponseWriter, sessionID string, err error) {
	if errors.Is(err, store.ErrSessionNotFound) {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}
	s.logger.Error("update session failed", "session_id", sessionID, "err", err)
	writeError(w, http.StatusInternalServerError, "failed to update session")
}

// handleExport renders the current snapshot and streams it as a download.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	startedAt := time.Now()
	exportID := id.New()
	out, err := s.processor.Export(r.Context(), pipeline.Request{
		ExportID:   exportID,
		SourceType: pipeline.SourceTypeObjectStore,
		Session:    session,
		Options:    s.options,
	})
	if err != nil {
		s.writeExportError(w, session.ID, err)
		return
	}

	s.metrics.exportsTotal.WithLabelValues("sync", string(out.Format)).Inc()
	s.recordExport(r.Context(), out, time.Since(startedAt))

	w.Header().Set("Content-Type", out.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": out.Filename}))
	w.Header().Set(HeaderNotice, out.Notice)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Data); err != nil {
		s.logger.Debug("download interrupted", "session_id", session.ID, "err", err)
	}
}

func (s *Server) writeExportError(w http.ResponseWriter, sessionID string, err error) {
	switch {
	case errors.Is(err, domain.ErrNoImage):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, domain.ErrInvalidTarget):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, store.ErrBlobNotFound):
		writeError(w, http.StatusGone, "source image expired; load it again")
	default:
		s.logger.Error("export failed", "session_id", sessionID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to export image")
	}
}

func (s *Server) recordExport(ctx context.Context, out pipeline.Output, elapsed time.Duration) {
	if s.exports == nil {
		return
	}
	record := domain.ExportRecord{
		ID:          out.ExportID,
		SessionID:   out.SessionID,
		Format:      out.Format,
		Quality:     out.Quality,
		Width:       out.Width,
		Height:      out.Height,
		SourceBytes: out.SourceBytes,
		OutputBytes: out.Bytes,
		ComputeTime: elapsed,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.exports.CreateExportRecord(ctx, record); err != nil {
		s.logger.Warn("export record write failed", "export_id", out.ExportID, "err", err)
	}
}

func (s *Server) handleEnqueueExport(w http.ResponseWriter, r *http.Request) {
	if s.queueClient == nil {
		writeError(w, http.StatusServiceUnavailable, "async exports are not configured")
		return
	}

	var req struct {
		WebhookURL string `json:"webhook_url"`
	}
	if r.ContentLength != 0 {
		if err := decodeJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	if req.WebhookURL != "" && !strings.HasPrefix(req.WebhookURL, "http://") && !strings.HasPrefix(req.WebhookURL, "https://") {
		writeError(w, http.StatusBadRequest, "webhook_url must be an http(s) URL")
		return
	}

	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}
	if err := s.processor.Admit(session); err != nil {
		s.writeExportError(w, session.ID, err)
		return
	}

	payload := queue.ExportImagePayload{
		ExportID:    id.New(),
		Session:     session,
		Options:     s.options,
		WebhookURL:  req.WebhookURL,
		RequestedAt: time.Now().UTC(),
	}
	taskInfo, err := s.queueClient.EnqueueExportImage(r.Context(), payload)
	if errors.Is(err, queue.ErrDuplicateExport) {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("enqueue failed", "session_id", session.ID, "export_id", payload.ExportID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to enqueue export")
		return
	}
	s.metrics.exportsTotal.WithLabelValues("async", string(s.options.OutputFormat)).Inc()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"export_id":  payload.ExportID,
		"session_id": session.ID,
		"object_key": pipeline.ExportObjectKey("", session.ID, payload.ExportID, s.options.OutputFormat.Filename()),
		"queue":      taskInfo.Queue,
		"task_id":    taskInfo.ID,
		"state":      taskInfo.State.String(),
	})
}

// handleExportStatus reports whether an async export has landed in the
// object store and, when possible, a direct download link.
func (s *Server) handleExportStatus(w http.ResponseWriter, r *http.Request) {
	session, ok := s.loadSession(w, r)
	if !ok {
		return
	}

	exportID := r.PathValue("export_id")
	filename := s.options.OutputFormat.Filename()
	objectKey := pipeline.ExportObjectKey("", session.ID, exportID, filename)

	ready, err := s.blobs.ObjectExists(r.Context(), objectKey)
	if err != nil {
		s.logger.Error("export status check failed", "export_id", exportID, "err", err)
		writeError(w, http.StatusInternalServerError, "failed to check export")
		return
	}

	resp := map[string]any{
		"export_id":  exportID,
		"session_id": session.ID,
		"object_key": objectKey,
		"ready":      ready,
	}
	if p, ok := s.blobs.(presigner); ready && ok && s.presignTTL > 0 {
		url, err := p.PresignedGetURL(r.Context(), objectKey, filename, s.presignTTL)
		if err != nil {
			s.logger.Warn("presign export failed", "export_id", exportID, "err", err)
		} else {
			resp["download_url"] = url
		}
	}
	writeJSON(w, http.StatusOK, resp)
}
