package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"yashubustudio/lostfound/classifier"
	"yashubustudio/lostfound/internal/recognize"
)

const maxJSONBody = 1 << 20

type textRequest struct {
	Text string `json:"text"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type objectsRequest struct {
	Objects     []classifier.DetectedObject `json:"objects"`
	Text        string                      `json:"text"`
	Width       int                         `json:"width"`
	Height      int                         `json:"height"`
	Descriptors []string                    `json:"descriptors"`
}

type objectsResponse struct {
	classifier.ClassificationResult
	Features string `json:"features"`
}

type healthResponse struct {
	Status           string `json:"status"`
	LargeCategories  int    `json:"large_categories"`
	MediumCategories int    `json:"medium_categories"`
	Keywords         int    `json:"keywords"`
	Semantic         bool   `json:"semantic"`
	Recognition      bool   `json:"recognition"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) engine(w http.ResponseWriter) (*classifier.Engine, bool) {
	e := s.opts.Engines.Load()
	if e == nil {
		writeError(w, http.StatusServiceUnavailable, "engine not ready")
		return nil, false
	}
	return e, true
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok", Recognition: s.opts.Recognizer != nil}
	if e := s.opts.Engines.Load(); e != nil {
		st := e.Catalog().Stats()
		resp.LargeCategories = st.Large
		resp.MediumCategories = st.Medium
		resp.Keywords = st.Keywords
		resp.Semantic = e.SemanticAvailable()
	} else {
		resp.Status = "starting"
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) categories(w http.ResponseWriter, _ *http.Request) {
	e, ok := s.engine(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.Catalog())
}

func (s *Server) suggest(w http.ResponseWriter, r *http.Request) {
	e, ok := s.engine(w)
	if !ok {
		return
	}
	q := r.URL.Query().Get("q")
	if strings.TrimSpace(q) == "" {
		writeError(w, http.StatusBadRequest, "query parameter q is required")
		return
	}
	topN := 0
	if raw := r.URL.Query().Get("top"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "top must be a positive integer")
			return
		}
		topN = n
	}
	writeJSON(w, http.StatusOK, e.Suggest(r.Context(), q, topN))
}

func (s *Server) classifyText(w http.ResponseWriter, r *http.Request) {
	var req textRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, ok := s.engine(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.ClassifyText(req.Text))
}

func (s *Server) classifyName(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, ok := s.engine(w)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e.ClassifyName(r.Context(), req.Name))
}

func (s *Server) classifyObjects(w http.ResponseWriter, r *http.Request) {
	var req objectsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	e, ok := s.engine(w)
	if !ok {
		return
	}
	ev := classifier.ImageEvidence{
		Objects:       req.Objects,
		ExtractedText: req.Text,
		Width:         req.Width,
		Height:        req.Height,
		Descriptors:   req.Descriptors,
	}
	features, _ := classifier.AssembleFeatures(ev)
	writeJSON(w, http.StatusOK, objectsResponse{
		ClassificationResult: e.ClassifyImage(r.Context(), ev),
		Features:             features,
	})
}

func (s *Server) recognize(w http.ResponseWriter, r *http.Request) {
	if s.opts.Recognizer == nil {
		writeError(w, http.StatusServiceUnavailable, "image recognition is not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	if err := r.ParseMultipartForm(s.opts.MaxUploadBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "upload too large")
			return
		}
		writeError(w, http.StatusBadRequest, "failed to parse form")
		return
	}
	file, _, err := r.FormFile("image")
	if err != nil {
		writeError(w, http.StatusBadRequest, "no image file provided; use 'image' as the form field name")
		return
	}
	defer file.Close()
	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read image")
		return
	}

	rec, err := s.opts.Recognizer.Recognize(r.Context(), data, r.FormValue("text"))
	if errors.Is(err, recognize.ErrEmptyImage) {
		writeError(w, http.StatusBadRequest, "empty image")
		return
	}
	if err != nil {
		s.logger.Error("recognition failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "recognition failed")
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
