package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/kirillkom/customs-duty-engine/internal/adapters/dto"
	"github.com/kirillkom/customs-duty-engine/internal/adapters/workbook"
	"github.com/kirillkom/customs-duty-engine/internal/config"
	"github.com/kirillkom/customs-duty-engine/internal/core/domain"
	"github.com/kirillkom/customs-duty-engine/internal/core/ports"
	"github.com/kirillkom/customs-duty-engine/internal/observability/metrics"
)

const (
	maxJSONBodyBytes     = 1 << 20
	maxWorkbookBodyBytes = 16 << 20
)

type Router struct {
	cfg        config.Config
	calculator ports.DutyCalculator
	metrics    *metrics.HTTPServerMetrics
	openAPI    []byte
}

func NewRouter(cfg config.Config, calculator ports.DutyCalculator, httpMetrics *metrics.HTTPServerMetrics) (*Router, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	doc, err := loadOpenAPIDocument(ctx)
	if err != nil {
		return nil, err
	}
	return &Router{
		cfg:        cfg,
		calculator: calculator,
		metrics:    httpMetrics,
		openAPI:    doc,
	}, nil
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/openapi.json", rt.openAPIDocument)
	mux.HandleFunc("/v1/duty/calculate", rt.calculate)
	mux.HandleFunc("/v1/duty/calculate/batch", rt.calculateBatch)
	mux.HandleFunc("/v1/duty/batch/workbook", rt.workbookBatch)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIBackpressureWaitMS)*time.Millisecond)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)
	handler = accessLogMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware("api", handler)
	}
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) openAPIDocument(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeMethodNotAllowed(w)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(rt.openAPI)
}

func (rt *Router) calculate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req dto.CalculateRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	domainReq, err := req.ToDomain()
	if err != nil {
		writeError(w, r, err)
		return
	}

	result, err := rt.calculator.Calculate(r.Context(), domainReq)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.FromResult(result, rt.minorUnits()))
}

func (rt *Router) calculateBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeMethodNotAllowed(w)
		return
	}

	var req dto.BatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if err := dto.CheckBatchSize(len(req.Items), rt.cfg.BatchMaxItems); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.ProcessBatch(r.Context(), rt.calculator, req.Items, rt.minorUnits()))
}

// workbookBatch serves the input template on GET and evaluates an uploaded workbook on POST.
func (rt *Router) workbookBatch(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		var buf bytes.Buffer
		if err := workbook.Template(&buf); err != nil {
			writeError(w, r, err)
			return
		}
		writeWorkbook(w, "duty-batch-template.xlsx", buf.Bytes())
		return
	case http.MethodPost:
	default:
		writeMethodNotAllowed(w)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxWorkbookBodyBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, r, invalidInput("workbook upload", fmt.Errorf("multipart field 'file' is required")))
		return
	}
	defer file.Close()

	items, err := workbook.ReadRequests(file)
	if err != nil {
		writeError(w, r, invalidInput("workbook upload", err))
		return
	}
	if err := dto.CheckBatchSize(len(items), rt.cfg.BatchMaxItems); err != nil {
		writeError(w, r, err)
		return
	}

	resp := dto.ProcessBatch(r.Context(), rt.calculator, items, rt.minorUnits())
	var buf bytes.Buffer
	if err := workbook.WriteResults(&buf, resp); err != nil {
		writeError(w, r, err)
		return
	}
	writeWorkbook(w, "duty-results.xlsx", buf.Bytes())
}

func (rt *Router) minorUnits() int32 {
	if rt.cfg.CurrencyMinorUnits < 0 {
		return 2
	}
	return int32(rt.cfg.CurrencyMinorUnits)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, out any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return invalidInput("decode request", fmt.Errorf("request body exceeds %d bytes", tooLarge.Limit))
		}
		return invalidInput("decode request", fmt.Errorf("invalid json"))
	}
	return nil
}

func invalidInput(op string, err error) error {
	return domain.WrapError(domain.ErrInvalidInput, op, err)
}

type errorResponse struct {
	Error  string              `json:"error"`
	Code   string              `json:"code"`
	Fields []domain.FieldError `json:"fields,omitempty"`
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	body := dto.ErrorFromError(err)
	message := body.Message
	if domain.IsKind(err, domain.ErrInvalidInput) && len(body.Fields) == 0 {
		message = err.Error()
	}
	if status >= http.StatusInternalServerError {
		slog.Error("duty_request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"status", status,
			"error", err,
		)
	}
	writeJSON(w, status, errorResponse{Error: message, Code: body.Code, Fields: body.Fields})
}

func writeMethodNotAllowed(w http.ResponseWriter) {
	writeJSON(w, http.StatusMethodNotAllowed, errorResponse{Error: "method not allowed", Code: "method_not_allowed"})
}

func writeWorkbook(w http.ResponseWriter, filename string, body []byte) {
	w.Header().Set("Content-Type", workbook.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
