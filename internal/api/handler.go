// Package api exposes the extraction service over HTTP and MCP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"unicode/utf8"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pactex/pactex/internal/extract"
	"github.com/pactex/pactex/internal/ingest"
)

const maxRequestBodySize = 10 << 20 // 10MB

// snippetLength caps the echoed source text in extraction responses.
const snippetLength = 200

// ContractExtractor pulls structured details out of contract text.
// A nil result means nothing usable came back from the model.
type ContractExtractor interface {
	Extract(ctx context.Context, text string, useRAG bool) *extract.Details
}

// DatabasePopulator fills the vector store from a row source.
type DatabasePopulator interface {
	Populate(ctx context.Context, src ingest.RowSource, force bool) error
}

// DocumentCounter reports how many documents the collection holds.
type DocumentCounter interface {
	Count() (int, error)
}

// Deps holds everything the HTTP and MCP layers need. Extractor and
// Populator may be nil when startup initialization failed; the affected
// routes then answer 503 instead of crashing the whole surface.
type Deps struct {
	Extractor  ContractExtractor
	Populator  DatabasePopulator
	Counter    DocumentCounter
	Collection string
	DBPath     string
	XLSXPath   string
	AdminToken string // optional; empty leaves admin routes open
	Logger     *slog.Logger
}

type ExtractRequest struct {
	ContractText string `json:"contract_text" validate:"required,min=10"`
	UseRAG       *bool  `json:"use_rag"`
}

type ExtractResponse struct {
	Message           string           `json:"message"`
	SourceTextSnippet string           `json:"source_text_snippet"`
	ExtractedData     *extract.Details `json:"extracted_data"`
	RAGEnabled        bool             `json:"rag_enabled"`
	Error             string           `json:"error,omitempty"`
}

type PopulateRequest struct {
	XLSXFilePath    string `json:"xlsx_file_path"`
	ForceRepopulate bool   `json:"force_repopulate"`
}

type PopulateResponse struct {
	Message        string `json:"message"`
	CollectionName string `json:"collection_name"`
	ItemCount      int    `json:"item_count"`
}

type DBStatusResponse struct {
	DBType         string `json:"db_type"`
	DBPath         string `json:"db_path"`
	CollectionName string `json:"collection_name"`
	ItemCount      int    `json:"item_count"`
	IsHealthy      bool   `json:"is_healthy"`
}

var validate = validator.New()

// NewHandler returns the HTTP surface of the service.
func NewHandler(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Get("/health", handleHealth)
	r.Get("/system/db-status", handleDBStatus(deps))
	r.Post("/extract", handleExtract(deps))

	r.Group(func(admin chi.Router) {
		if deps.AdminToken != "" {
			admin.Use(BearerAuth(deps.AdminToken))
		}
		admin.Post("/admin/populate-database", handlePopulate(deps))
	})

	return r
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"message": "API is operational.",
	})
}

func handleExtract(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Extractor == nil {
			httpError(w, http.StatusServiceUnavailable, "service_unavailable", "extraction service is not initialized")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		var req ExtractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}
		if err := validate.Struct(&req); err != nil {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "contract_text is required and must be at least 10 characters")
			return
		}

		useRAG := true
		if req.UseRAG != nil {
			useRAG = *req.UseRAG
		}

		log := deps.Logger.With("request_id", uuid.New().String())
		log.Info("extraction request received", "text_length", len(req.ContractText), "rag", useRAG)

		details := deps.Extractor.Extract(r.Context(), req.ContractText, useRAG)

		resp := ExtractResponse{
			ExtractedData:     details,
			SourceTextSnippet: snippet(req.ContractText),
			RAGEnabled:        useRAG,
		}
		if details == nil {
			log.Warn("extraction produced no structured data")
			resp.Message = "Failed to extract structured details. LLM might not have found information or parsing failed."
			resp.Error = "No structured data could be extracted or parsed from LLM response."
		} else {
			log.Info("extraction completed")
			resp.Message = "Contract details extracted successfully."
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func handlePopulate(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if deps.Populator == nil {
			httpError(w, http.StatusServiceUnavailable, "service_unavailable", "population service is not initialized")
			return
		}

		r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
		defer r.Body.Close()

		// The body is optional; an empty POST uses the configured defaults.
		var req PopulateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			httpError(w, http.StatusBadRequest, "invalid_request_error", "invalid request body: %v", err)
			return
		}

		path := req.XLSXFilePath
		if path == "" {
			path = deps.XLSXPath
		}
		if _, err := os.Stat(path); err != nil {
			httpError(w, http.StatusNotFound, "not_found", "data file not found: %s", path)
			return
		}

		if err := deps.Populator.Populate(r.Context(), ingest.NewXLSXSource(path), req.ForceRepopulate); err != nil {
			httpError(w, http.StatusInternalServerError, "api_error", "database population failed: %v", err)
			return
		}

		count := 0
		if deps.Counter != nil {
			if n, err := deps.Counter.Count(); err == nil {
				count = n
			} else {
				deps.Logger.Warn("counting documents after population failed", "error", err)
			}
		}

		msg := fmt.Sprintf("Database population from '%s' completed.", filepath.Base(path))
		if req.ForceRepopulate {
			msg = fmt.Sprintf("Database population from '%s' forced and completed.", filepath.Base(path))
		}
		writeJSON(w, http.StatusOK, PopulateResponse{
			Message:        msg,
			CollectionName: deps.Collection,
			ItemCount:      count,
		})
	}
}

func handleDBStatus(deps Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, dbStatus(deps))
	}
}

// dbStatus is shared between the HTTP route and the MCP resource.
func dbStatus(deps Deps) DBStatusResponse {
	status := DBStatusResponse{
		DBType:         "SQLite (persistent)",
		DBPath:         deps.DBPath,
		CollectionName: deps.Collection,
	}
	if deps.Counter == nil {
		return status
	}
	count, err := deps.Counter.Count()
	if err != nil {
		status.ItemCount = -1
		return status
	}
	status.ItemCount = count
	status.IsHealthy = true
	return status
}

// snippet truncates the echoed source text to snippetLength runes.
func snippet(s string) string {
	if utf8.RuneCountInString(s) <= snippetLength {
		return s + "..."
	}
	runes := []rune(s)
	return string(runes[:snippetLength]) + "..."
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func httpError(w http.ResponseWriter, code int, errType string, format string, args ...any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	msg := fmt.Sprintf(format, args...)
	json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message": msg,
			"type":    errType,
		},
	})
}
