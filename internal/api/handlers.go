package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/kalambet/trad/internal/arbiter"
	"github.com/kalambet/trad/internal/auth"
	"github.com/kalambet/trad/internal/storage"
)

const maxRequestBodySize = 1 << 20 // 1MB

// LanguageLister lists catalog languages by code substring.
type LanguageLister interface {
	List(ctx context.Context, codeFilter string) ([]storage.Language, error)
}

// StatsSource reports record counts.
type StatsSource interface {
	RecordStats(ctx context.Context) (storage.RecordStats, error)
}

type AppDeps struct {
	Translator *arbiter.Translator
	Feedback   *arbiter.Feedback
	Languages  LanguageLister
	Stats      StatsSource
	Tokens     auth.Parser
}

type translateRequest struct {
	SrcLang string `json:"src_lang"`
	DstLang string `json:"dst_lang"`
	SrcText string `json:"src_text"`
}

type feedbackRequest struct {
	SrcLang      string `json:"src_lang"`
	DstLang      string `json:"dst_lang"`
	SrcText      string `json:"src_text"`
	DstText      string `json:"dst_text"`
	Suggestion   string `json:"suggestion"`
	ModelName    string `json:"model_name"`
	ModelVersion string `json:"model_version"`
}

func (r feedbackRequest) submission() arbiter.Submission {
	return arbiter.Submission{
		SrcLang:      r.SrcLang,
		DstLang:      r.DstLang,
		SrcText:      r.SrcText,
		DstText:      r.DstText,
		Suggestion:   r.Suggestion,
		ModelName:    r.ModelName,
		ModelVersion: r.ModelVersion,
	}
}

type reviewAcceptRequest struct {
	SrcText           string `json:"src_text"`
	UpdatedSuggestion string `json:"updated_suggestion"`
}

type reviewResponse struct {
	Record  storage.Record  `json:"record"`
	Created *storage.Record `json:"created,omitempty"`
}

// NewAppHandler returns the HTTP API. Requests may carry a bearer token;
// without one they run as the anonymous principal.
func NewAppHandler(deps AppDeps) http.Handler {
	r := chi.NewRouter()
	r.Get("/health", handleHealth)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(deps.Tokens, unauthorized))

		r.Post("/translate", handleTranslate(deps))
		r.Get("/languages", handleListLanguages(deps))
		r.Get("/stats", handleStats(deps))

		r.Post("/suggestions/accept", handleSubmit(deps, true))
		r.Post("/suggestions/reject", handleSubmit(deps, false))
		r.Get("/suggestions", handleListSuggestions(deps))
		r.Get("/suggestions/{id}", handleGetSuggestion(deps))
		r.Patch("/suggestions/{id}/accept", handleReviewAccept(deps))
		r.Patch("/suggestions/{id}/reject", handleReviewReject(deps))
	})
	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func handleTranslate(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req translateRequest
		if !decodeBody(w, r, &req) {
			return
		}
		rec, err := deps.Translator.TranslateCodes(r.Context(), auth.FromContext(r.Context()), req.SrcLang, req.DstLang, req.SrcText)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleSubmit(deps AppDeps, accept bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req feedbackRequest
		if !decodeBody(w, r, &req) {
			return
		}

		p := auth.FromContext(r.Context())
		var (
			recs []storage.Record
			err  error
		)
		if accept {
			recs, err = deps.Feedback.SubmitAccept(r.Context(), p, req.submission())
		} else {
			recs, err = deps.Feedback.SubmitReject(r.Context(), p, req.submission())
		}
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, recs)
	}
}

func handleListSuggestions(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := storage.RecordFilter{
			Limit:  parseIntParam(r, "limit", 20, 100),
			Offset: parseIntParam(r, "offset", 0, 0),
		}
		if langs := r.URL.Query().Get("lang"); langs != "" {
			for _, l := range strings.Split(langs, ",") {
				if l = strings.TrimSpace(l); l != "" {
					filter.Langs = append(filter.Langs, l)
				}
			}
		}
		var ok bool
		if filter.Validated, ok = parseBoolParam(w, r, "validated"); !ok {
			return
		}
		if filter.Correct, ok = parseBoolParam(w, r, "correct"); !ok {
			return
		}

		recs, err := deps.Feedback.List(r.Context(), auth.FromContext(r.Context()), filter)
		if err != nil {
			writeErr(w, err)
			return
		}
		if recs == nil {
			recs = []storage.Record{}
		}
		writeJSON(w, http.StatusOK, recs)
	}
}

func handleGetSuggestion(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Feedback.Get(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	}
}

func handleReviewAccept(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req reviewAcceptRequest
		if !decodeBody(w, r, &req) {
			return
		}
		res, err := deps.Feedback.ReviewAccept(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"), req.SrcText, req.UpdatedSuggestion)
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reviewResponse{Record: res.Record, Created: res.Created})
	}
}

func handleReviewReject(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec, err := deps.Feedback.ReviewReject(r.Context(), auth.FromContext(r.Context()), chi.URLParam(r, "id"))
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, reviewResponse{Record: rec})
	}
}

func handleListLanguages(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		langs, err := deps.Languages.List(r.Context(), r.URL.Query().Get("code"))
		if err != nil {
			writeErr(w, err)
			return
		}
		if langs == nil {
			langs = []storage.Language{}
		}
		writeJSON(w, http.StatusOK, langs)
	}
}

func handleStats(deps AppDeps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := deps.Stats.RecordStats(r.Context())
		if err != nil {
			writeErr(w, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	defer r.Body.Close()
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func parseIntParam(r *http.Request, key string, defaultVal, maxVal int) int {
	s := r.URL.Query().Get(key)
	if s == "" {
		return defaultVal
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return defaultVal
	}
	if maxVal > 0 && v > maxVal {
		return maxVal
	}
	return v
}

// parseBoolParam reads an optional boolean query parameter. On a malformed
// value it writes a 400 and returns ok=false.
func parseBoolParam(w http.ResponseWriter, r *http.Request, key string) (*bool, bool) {
	s := r.URL.Query().Get(key)
	if s == "" {
		return nil, true
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		httpFieldError(w, key, "must be true or false")
		return nil, false
	}
	return &b, true
}
