package httpserver

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	disbursementengine "kobo/contexts/payments-core/disbursement-engine"
	disbursementerrors "kobo/contexts/payments-core/disbursement-engine/domain/errors"
	disbursementhttp "kobo/contexts/payments-core/disbursement-engine/transport/http"

	httpSwagger "github.com/swaggo/http-swagger"
	_ "kobo/internal/platform/httpserver/docs"
)

type Server struct {
	mux           *http.ServeMux
	logger        *slog.Logger
	addr          string
	disbursements disbursementengine.Module
}

func New(disbursements disbursementengine.Module, logger *slog.Logger, addr string) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:           http.NewServeMux(),
		logger:        logger,
		addr:          addr,
		disbursements: disbursements,
	}
	s.registerRoutes()
	return s
}

func (s *Server) Start() error {
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)
	return http.ListenAndServe(s.addr, s.mux)
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	s.mux.HandleFunc("POST /v1/disbursements", s.handleCreateDisbursement)
	s.mux.HandleFunc("GET /v1/disbursements", s.handleListDisbursements)
	s.mux.HandleFunc("GET /v1/disbursements/{idempotency_key}", s.handleGetDisbursement)
	s.mux.HandleFunc("GET /healthz", s.handleHealth)
}

// handleCreateDisbursement godoc
// @Summary      Submit a disbursement
// @Description  Executes the disbursement identified by the idempotency key at most once. Retries with the same key and payload replay the stored result; a changed payload is rejected.
// @Tags         disbursements
// @Accept       json
// @Produce      json
// @Param        request  body      http.CreateDisbursementRequest  true  "disbursement request"
// @Success      200      {object}  http.CreateDisbursementResponse
// @Failure      400      {object}  http.ErrorResponse
// @Failure      409      {object}  http.ErrorResponse
// @Router       /v1/disbursements [post]
func (s *Server) handleCreateDisbursement(w http.ResponseWriter, r *http.Request) {
	var req disbursementhttp.CreateDisbursementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDisbursementError(w, http.StatusBadRequest, "invalid_json", "request body must be valid JSON", "", "")
		return
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		req.IdempotencyKey = r.Header.Get("Idempotency-Key")
	}

	resp, err := s.disbursements.Handler.SubmitHandler(r.Context(), req)
	if err != nil {
		s.writeDisbursementDomainError(w, r, err, req.IdempotencyKey)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleGetDisbursement godoc
// @Summary      Get a disbursement
// @Description  Returns the current persisted state for an idempotency key. Read-only; never triggers a transfer.
// @Tags         disbursements
// @Produce      json
// @Param        idempotency_key  path      string  true  "idempotency key"
// @Success      200              {object}  http.GetDisbursementResponse
// @Failure      404              {object}  http.ErrorResponse
// @Router       /v1/disbursements/{idempotency_key} [get]
func (s *Server) handleGetDisbursement(w http.ResponseWriter, r *http.Request) {
	idempotencyKey := r.PathValue("idempotency_key")
	resp, err := s.disbursements.Handler.GetHandler(r.Context(), idempotencyKey)
	if err != nil {
		s.writeDisbursementDomainError(w, r, err, idempotencyKey)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListDisbursements godoc
// @Summary      List disbursements for a user
// @Tags         disbursements
// @Produce      json
// @Param        user_id  query     string  true   "user id"
// @Param        limit    query     int     false  "page size"
// @Param        offset   query     int     false  "page offset"
// @Success      200      {object}  http.ListDisbursementsResponse
// @Failure      400      {object}  http.ErrorResponse
// @Router       /v1/disbursements [get]
func (s *Server) handleListDisbursements(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	req := disbursementhttp.ListDisbursementsRequest{
		UserID: query.Get("user_id"),
	}
	if limitRaw := query.Get("limit"); limitRaw != "" {
		limit, err := strconv.Atoi(limitRaw)
		if err != nil {
			writeDisbursementError(w, http.StatusBadRequest, "invalid_limit", "limit must be an integer", "", "")
			return
		}
		req.Limit = limit
	}
	if offsetRaw := query.Get("offset"); offsetRaw != "" {
		offset, err := strconv.Atoi(offsetRaw)
		if err != nil {
			writeDisbursementError(w, http.StatusBadRequest, "invalid_offset", "offset must be an integer", "", "")
			return
		}
		req.Offset = offset
	}

	resp, err := s.disbursements.Handler.ListHandler(r.Context(), req)
	if err != nil {
		s.writeDisbursementDomainError(w, r, err, "")
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeDisbursementDomainError maps sentinel errors onto the HTTP surface.
// Conflict responses carry the key and the current persisted state so
// support can reconcile without additional lookups.
func (s *Server) writeDisbursementDomainError(w http.ResponseWriter, r *http.Request, err error, idempotencyKey string) {
	switch {
	case errors.Is(err, disbursementerrors.ErrIdempotencyKeyMissing):
		writeDisbursementError(w, http.StatusBadRequest, "idempotency_key_required", err.Error(), "", "")
	case errors.Is(err, disbursementerrors.ErrIdempotencyKeyInvalid):
		writeDisbursementError(w, http.StatusBadRequest, "idempotency_key_invalid", err.Error(), idempotencyKey, "")
	case errors.Is(err, disbursementerrors.ErrInvalidInput):
		writeDisbursementError(w, http.StatusBadRequest, "invalid_request", err.Error(), idempotencyKey, "")
	case errors.Is(err, disbursementerrors.ErrConflict):
		state := ""
		if record, getErr := s.disbursements.Service.Get(r.Context(), idempotencyKey); getErr == nil {
			state = string(record.State)
		}
		writeDisbursementError(w, http.StatusConflict, "idempotency_conflict", err.Error(), idempotencyKey, state)
	case errors.Is(err, disbursementerrors.ErrNotFound):
		writeDisbursementError(w, http.StatusNotFound, "disbursement_not_found", err.Error(), idempotencyKey, "")
	case errors.Is(err, disbursementerrors.ErrStoreContention):
		writeDisbursementError(w, http.StatusServiceUnavailable, "store_contention", err.Error(), idempotencyKey, "")
	default:
		s.logger.Error("disbursement request failed",
			"event", "http_disbursement_failed",
			"module", "internal/platform/httpserver",
			"layer", "platform",
			"idempotency_key", idempotencyKey,
			"error", err.Error(),
		)
		writeDisbursementError(w, http.StatusInternalServerError, "internal_error", "internal server error", idempotencyKey, "")
	}
}

func writeDisbursementError(w http.ResponseWriter, status int, code string, message string, idempotencyKey string, state string) {
	writeJSON(w, status, disbursementhttp.ErrorResponse{
		Code:           code,
		Message:        message,
		IdempotencyKey: strings.TrimSpace(idempotencyKey),
		State:          state,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
