// Package handler exposes the import pipeline over JSON HTTP.
package handler

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/libroazul/libroazul/internal/domain/statement/service"
	"github.com/libroazul/libroazul/pkg/auth"
)

const maxFileBytes = 20 << 20 // 20 MiB cap on fetched/decoded statements

// Importer is the orchestration surface the handler drives
type Importer interface {
	Preview(ctx context.Context, ownerID, accountID uuid.UUID, content []byte, loc *time.Location) (*service.Report, error)
	Import(ctx context.Context, ownerID, accountID uuid.UUID, content []byte, loc *time.Location) (*service.Report, error)
}

// Config carries the handler's fetch settings
type Config struct {
	FetchTimeout time.Duration
}

// Handler serves the statement import endpoint
type Handler struct {
	importer Importer
	logger   *slog.Logger
	client   *http.Client
}

// New creates the import handler
func New(importer Importer, logger *slog.Logger, cfg Config) *Handler {
	timeout := cfg.FetchTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Handler{
		importer: importer,
		logger:   logger,
		client:   &http.Client{Timeout: timeout},
	}
}

// Register mounts the handler's routes
func (h *Handler) Register(r *mux.Router) {
	r.HandleFunc("/v1/imports", h.handleImport).Methods(http.MethodPost)
}

type importRequest struct {
	BankAccountID string `json:"bank_account_id"`
	FileURL       string `json:"file_url,omitempty"`
	FileBase64    string `json:"file_base64,omitempty"`
	DryRun        bool   `json:"dry_run,omitempty"`
	TZ            string `json:"tz,omitempty"`
}

type importResponse struct {
	service.Report
	Error string `json:"error,omitempty"`
}

func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	ownerID, err := auth.OwnerFromContext(ctx)
	if err != nil {
		h.writeFatal(ctx, w, "missing authenticated identity")
		return
	}

	var req importRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeFatal(ctx, w, "invalid request body")
		return
	}

	accountID, err := uuid.Parse(req.BankAccountID)
	if err != nil {
		h.writeFatal(ctx, w, "bank_account_id is required and must be a UUID")
		return
	}

	if (req.FileURL == "") == (req.FileBase64 == "") {
		h.writeFatal(ctx, w, "exactly one of file_url or file_base64 is required")
		return
	}

	var loc *time.Location
	if req.TZ != "" {
		loc, err = time.LoadLocation(req.TZ)
		if err != nil {
			h.writeFatal(ctx, w, fmt.Sprintf("unknown timezone %q", req.TZ))
			return
		}
	}

	content, err := h.loadFile(ctx, req)
	if err != nil {
		h.writeFatal(ctx, w, err.Error())
		return
	}

	var report *service.Report
	if req.DryRun {
		report, err = h.importer.Preview(ctx, ownerID, accountID, content, loc)
	} else {
		report, err = h.importer.Import(ctx, ownerID, accountID, content, loc)
	}
	if err != nil {
		h.writeFatal(ctx, w, err.Error())
		return
	}

	h.logReport(ctx, accountID, req.DryRun, report)
	writeJSON(w, http.StatusOK, importResponse{Report: *report})
}

func (h *Handler) loadFile(ctx context.Context, req importRequest) ([]byte, error) {
	if req.FileBase64 != "" {
		content, err := base64.StdEncoding.DecodeString(req.FileBase64)
		if err != nil {
			return nil, fmt.Errorf("file_base64 is not valid base64")
		}
		if len(content) > maxFileBytes {
			return nil, fmt.Errorf("file exceeds the %d byte limit", maxFileBytes)
		}
		return content, nil
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.FileURL, nil)
	if err != nil {
		return nil, fmt.Errorf("invalid file_url")
	}
	resp, err := h.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch file_url: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("file_url returned status %d", resp.StatusCode)
	}

	content, err := io.ReadAll(io.LimitReader(resp.Body, maxFileBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read file_url response: %v", err)
	}
	if len(content) > maxFileBytes {
		return nil, fmt.Errorf("file exceeds the %d byte limit", maxFileBytes)
	}
	return content, nil
}

// logReport logs the outcome with a capped error presentation
func (h *Handler) logReport(ctx context.Context, accountID uuid.UUID, dryRun bool, report *service.Report) {
	attrs := []any{
		slog.String("bank_account_id", accountID.String()),
		slog.Bool("dry_run", dryRun),
		slog.Int("parsed_rows", report.Summary.ParsedRows),
		slog.Int("inserted", report.Summary.Inserted),
	}

	if n := len(report.Summary.Errors); n > 0 {
		shown := report.Summary.Errors
		if len(shown) > 3 {
			shown = shown[:3]
		}
		messages := make([]string, 0, len(shown))
		for _, e := range shown {
			messages = append(messages, e.Error())
		}
		if n > 3 {
			messages = append(messages, fmt.Sprintf("+%d more", n-3))
		}
		attrs = append(attrs, slog.Any("row_errors", messages))
	}

	h.logger.InfoContext(ctx, "statement import request served", attrs...)
}

func (h *Handler) writeFatal(ctx context.Context, w http.ResponseWriter, message string) {
	h.logger.WarnContext(ctx, "statement import request failed", slog.String("error", message))

	report := service.FatalReport(message)
	writeJSON(w, http.StatusBadRequest, importResponse{Report: *report, Error: message})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
