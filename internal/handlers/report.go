package handlers

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/bayanihan-data/povassess/internal/policy"
	"github.com/bayanihan-data/povassess/internal/report"
	"github.com/bayanihan-data/povassess/internal/services"
	"github.com/bayanihan-data/povassess/types"
)

const headerArchiveKey = "X-Archive-Key"

// Reporter is the reporting use-case surface served over HTTP.
type Reporter interface {
	Summary(ctx context.Context, actor policy.Actor) (types.Report, error)
	Export(ctx context.Context, actor policy.Actor, format report.Format) (services.Export, error)
}

// ReportHandler serves the area summary as JSON and as downloadable files.
type ReportHandler struct {
	reports Reporter
	logger  *zap.Logger
	now     func() time.Time
}

func NewReportHandler(reports Reporter, logger *zap.Logger) *ReportHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportHandler{reports: reports, logger: logger, now: time.Now}
}

// ReportRouter registers report routes on the given router.
func ReportRouter(r chi.Router, handler *ReportHandler) {
	r.Get("/summary", handler.Summary)
	r.Get("/{format}", handler.Download)
}

func (h *ReportHandler) Summary(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	summary, err := h.reports.Summary(r.Context(), actor)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

// Download renders the report as csv, xlsx or pdf.
func (h *ReportHandler) Download(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromContext(r.Context())
	if err != nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	format, err := report.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown report format")
		return
	}

	out, err := h.reports.Export(r.Context(), actor, format)
	if err != nil {
		writeServiceError(w, h.logger, err)
		return
	}

	filename := fmt.Sprintf("poverty-report-%s.%s", h.now().Format("20060102"), format)
	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(out.Data)))
	if out.ArchiveKey != "" {
		w.Header().Set(headerArchiveKey, out.ArchiveKey)
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(out.Data); err != nil {
		h.logger.Warn("write report failed", zap.String("format", string(format)), zap.Error(err))
	}
}
