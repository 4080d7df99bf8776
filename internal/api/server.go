// Package api is the HTTP surface over analysis jobs, the paper store and
// chat.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"paperlens/internal/analysis"
	"paperlens/internal/logger"
	"paperlens/internal/models"
	"paperlens/internal/util"
)

const defaultSearchK = 5

type PaperStore interface {
	UpsertPaper(ctx context.Context, uid string, p models.Paper) (string, error)
	QueryPapers(ctx context.Context, uid, query string, k int) ([]models.Paper, error)
	GetPaper(ctx context.Context, uid, docID string) (models.Paper, bool, error)
	DeletePaper(ctx context.Context, uid, docID string) (int, error)
}

type Answerer interface {
	Answer(ctx context.Context, uid, question string, docIDs []string) (models.Answer, error)
}

// ArtifactReader loads the summary artifact a finished job wrote.
type ArtifactReader interface {
	ReadArtifact(uid, docID string) (models.AnalysisResult, bool, error)
}

type Server struct {
	runner    analysis.Runner
	store     PaperStore
	answerer  Answerer
	artifacts ArtifactReader
	uploadDir string
	log       *logger.Logger
}

func NewServer(runner analysis.Runner, store PaperStore, answerer Answerer, artifacts ArtifactReader, uploadDir string, log *logger.Logger) *Server {
	return &Server{
		runner:    runner,
		store:     store,
		answerer:  answerer,
		artifacts: artifacts,
		uploadDir: uploadDir,
		log:       log.With("component", "api"),
	}
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealthz)
	mux.HandleFunc("/analyze", s.handleAnalyze)
	mux.HandleFunc("/jobs/", s.handleJob)
	mux.HandleFunc("/papers", s.handlePapers)
	mux.HandleFunc("/papers/", s.handlePaperScoped)
	mux.HandleFunc("/chat", s.handleChat)
	return withCORS(mux)
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// handleAnalyze accepts either a JSON body naming a path or URL, or a
// multipart upload with a "file" part and a "uid" field.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req analysis.Request
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		uploaded, err := s.receiveUpload(r)
		if err != nil {
			writeErr(w, http.StatusBadRequest, err)
			return
		}
		req = uploaded
	} else if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	jobID, err := s.runner.Submit(r.Context(), req)
	if err != nil {
		writeErr(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"job_id": jobID, "status": models.JobProcessing})
}

func (s *Server) receiveUpload(r *http.Request) (analysis.Request, error) {
	if err := r.ParseMultipartForm(64 << 20); err != nil {
		return analysis.Request{}, fmt.Errorf("parse multipart: %w", err)
	}
	files := r.MultipartForm.File["file"]
	if len(files) == 0 {
		return analysis.Request{}, util.InvalidInput("no file provided")
	}
	uid := strings.TrimSpace(r.FormValue("uid"))
	if uid == "" {
		return analysis.Request{}, util.InvalidInput("uid is required")
	}
	path, err := saveUploadedFile(s.uploadDir, files[0])
	if err != nil {
		return analysis.Request{}, err
	}
	return analysis.Request{
		UID:   uid,
		Path:  path,
		DocID: r.FormValue("doc_id"),
		Meta:  models.PaperMeta{Title: r.FormValue("title"), Source: "upload"},
	}, nil
}

func (s *Server) handleJob(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	jobID := strings.Trim(strings.TrimPrefix(r.URL.Path, "/jobs/"), "/")
	if jobID == "" {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	job, err := s.runner.Status(r.Context(), jobID)
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err)
		return
	}
	if job.Status == models.JobNotFound {
		writeJSON(w, http.StatusNotFound, job)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handlePapers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		UID      string                   `json:"uid"`
		DocID    string                   `json:"doc_id"`
		Title    string                   `json:"title"`
		Meta     models.PaperMeta         `json:"metadata"`
		Summary  models.StructuredSummary `json:"summary"`
		Insights models.Insights          `json:"insights"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	docID, err := s.store.UpsertPaper(r.Context(), req.UID, models.Paper{
		DocID:    req.DocID,
		Title:    req.Title,
		Meta:     req.Meta,
		Summary:  req.Summary,
		Insights: req.Insights,
	})
	if err != nil {
		writeErr(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"doc_id": docID})
}

func (s *Server) handlePaperScoped(w http.ResponseWriter, r *http.Request) {
	rest := strings.Trim(strings.TrimPrefix(r.URL.Path, "/papers/"), "/")
	rest, sub, _ := strings.Cut(rest, "/")
	if rest == "" || (sub != "" && sub != "artifact") {
		writeErr(w, http.StatusNotFound, fmt.Errorf("not found"))
		return
	}
	uid := strings.TrimSpace(r.URL.Query().Get("uid"))
	if uid == "" {
		writeErr(w, http.StatusBadRequest, util.InvalidInput("uid is required"))
		return
	}
	if rest == "search" {
		s.handleSearch(w, r, uid)
		return
	}
	docID := rest
	if sub == "artifact" {
		s.handleArtifact(w, r, uid, docID)
		return
	}
	switch r.Method {
	case http.MethodGet:
		paper, ok, err := s.store.GetPaper(r.Context(), uid, docID)
		if err != nil {
			writeErr(w, statusFor(err, http.StatusInternalServerError), err)
			return
		}
		if !ok {
			writeErr(w, http.StatusNotFound, fmt.Errorf("paper %s not found", docID))
			return
		}
		writeJSON(w, http.StatusOK, paper)
	case http.MethodDelete:
		n, err := s.store.DeletePaper(r.Context(), uid, docID)
		if err != nil {
			writeErr(w, statusFor(err, http.StatusInternalServerError), err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"doc_id": docID, "deleted": n})
	default:
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
	}
}

func (s *Server) handleArtifact(w http.ResponseWriter, r *http.Request, uid, docID string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	res, ok, err := s.artifacts.ReadArtifact(uid, docID)
	if err != nil {
		writeErr(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	if !ok {
		writeErr(w, http.StatusNotFound, fmt.Errorf("artifact for %s not found", docID))
		return
	}
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", docID+"-analysis.json"))
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request, uid string) {
	if r.Method != http.MethodGet {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	k := defaultSearchK
	if raw := r.URL.Query().Get("k"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeErr(w, http.StatusBadRequest, util.InvalidInput("k must be a positive integer"))
			return
		}
		k = n
	}
	papers, err := s.store.QueryPapers(r.Context(), uid, r.URL.Query().Get("q"), k)
	if err != nil {
		writeErr(w, statusFor(err, http.StatusInternalServerError), err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"papers": papers})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, http.StatusMethodNotAllowed, fmt.Errorf("method not allowed"))
		return
	}
	var req struct {
		UID        string   `json:"uid"`
		Message    string   `json:"message"`
		ContextIDs []string `json:"context_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Errorf("invalid json: %w", err))
		return
	}
	ans, err := s.answerer.Answer(r.Context(), req.UID, req.Message, req.ContextIDs)
	if err != nil {
		s.log.Warn("chat failed", "uid", req.UID, "error", err)
		writeErr(w, statusFor(err, http.StatusBadGateway), err)
		return
	}
	writeJSON(w, http.StatusOK, ans)
}

func saveUploadedFile(dstDir string, fh *multipart.FileHeader) (string, error) {
	if !strings.HasSuffix(strings.ToLower(fh.Filename), ".pdf") {
		return "", util.InvalidInput("only pdf uploads are supported")
	}
	if err := util.EnsureDir(dstDir); err != nil {
		return "", err
	}
	src, err := fh.Open()
	if err != nil {
		return "", fmt.Errorf("open upload: %w", err)
	}
	defer src.Close()

	tmp, err := os.CreateTemp(dstDir, "upload-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		_ = tmp.Close()
	}()
	if _, err := io.Copy(tmp, src); err != nil {
		_ = os.Remove(tmp.Name())
		return "", fmt.Errorf("write upload: %w", err)
	}
	return filepath.Abs(tmp.Name())
}

// statusFor maps invalid input to 400 and everything else to fallback.
func statusFor(err error, fallback int) int {
	if errors.Is(err, util.ErrInvalidInput) {
		return http.StatusBadRequest
	}
	return fallback
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, err error) {
	apiErr := toAPIError(code, err)
	writeJSON(w, code, map[string]any{
		"error": map[string]any{
			"code":    apiErr.Code,
			"message": apiErr.Message,
		},
	})
}

type apiError struct {
	Code    string
	Message string
}

func toAPIError(status int, err error) apiError {
	msg := "Request failed."
	code := "PL-API-4000"
	raw := ""
	if err != nil {
		raw = strings.ToLower(err.Error())
	}

	switch {
	case status == http.StatusBadGateway:
		return apiError{
			Code:    "PL-API-5020",
			Message: "Model provider unavailable. Retry shortly.",
		}
	case status >= 500:
		switch {
		case strings.Contains(raw, "relation") && strings.Contains(raw, "does not exist"):
			return apiError{
				Code:    "PL-DB-5001",
				Message: "Database schema is not initialized. Restart the service to apply it.",
			}
		case strings.Contains(raw, "dial tcp"), strings.Contains(raw, "connection refused"):
			return apiError{
				Code:    "PL-DB-5002",
				Message: "Backing service is unavailable. Check local services and retry.",
			}
		default:
			return apiError{
				Code:    "PL-API-5000",
				Message: "Internal server error. Please retry or check service logs.",
			}
		}
	case status == http.StatusBadRequest:
		code = "PL-API-4001"
		msg = "Invalid request. Check inputs and retry."
	case status == http.StatusNotFound:
		code = "PL-API-4004"
		msg = "Requested resource was not found."
	case status == http.StatusMethodNotAllowed:
		code = "PL-API-4005"
		msg = "This endpoint does not support the requested method."
	}

	// 4xx responses echo validation reasons only.
	if status == http.StatusBadRequest && err != nil {
		switch {
		case errors.Is(err, util.ErrInvalidInput):
			msg = err.Error()
		case strings.Contains(raw, "invalid json"):
			msg = "Malformed JSON request body."
		case strings.Contains(raw, "parse multipart"):
			msg = "Malformed multipart upload."
		}
	}

	return apiError{Code: code, Message: msg}
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
