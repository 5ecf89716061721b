package http_handler

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
	"github.com/vulpemventures/multisig-relay/internal/core/application"
	"github.com/vulpemventures/multisig-relay/internal/core/domain"
)

const maxBodySize = 1 << 20

// Handler serves the endpoints of the counter-signer daemon and its
// notification socket.
type Handler struct {
	cosignerSvc *application.CosignerService
	notifySvc   *application.NotificationService
	upgrader    websocket.Upgrader
	chClose     chan struct{}

	log  func(format string, a ...interface{})
	warn func(err error, format string, a ...interface{})
}

// NewHandler returns a Handler. Closing chClose terminates every open
// notification socket.
func NewHandler(
	cosignerSvc *application.CosignerService,
	notifySvc *application.NotificationService,
	chClose chan struct{},
) *Handler {
	logFn := func(format string, a ...interface{}) {
		format = fmt.Sprintf("http handler: %s", format)
		log.Debugf(format, a...)
	}
	warnFn := func(err error, format string, a ...interface{}) {
		format = fmt.Sprintf("http handler: %s", format)
		log.WithError(err).Warnf(format, a...)
	}
	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	return &Handler{
		cosignerSvc, notifySvc, upgrader, chClose, logFn, warnFn,
	}
}

// NewServeMux returns an http.Handler with all routes registered and wrapped
// with logging and recovery middlewares.
func NewServeMux(h *Handler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /{$}", h.Cosign)
	mux.HandleFunc("POST /secondary-account", h.ProvisionSecondary)
	mux.HandleFunc("GET /notifications", h.Notifications)
	mux.HandleFunc("GET /healthz", h.Health)

	wrapped := recoveryMiddleware(mux)
	wrapped = loggingMiddleware(wrapped)

	return wrapped
}

// Cosign counter-signs and submits the envelope of the request.
func (h *Handler) Cosign(w http.ResponseWriter, r *http.Request) {
	req := domain.CosignRequest{}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if len(req.ID) > domain.MaxRequestIDLength {
		writeError(w, domain.ErrRequestIDTooLong)
		return
	}

	res, err := h.cosignerSvc.Cosign(r.Context(), req)
	if err != nil {
		h.warn(err, "failed to cosign request %s", req.ID)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// ProvisionSecondary registers the primary address of the request and
// returns the address of the secondary signer.
func (h *Handler) ProvisionSecondary(w http.ResponseWriter, r *http.Request) {
	req := secondaryAccountRequest{}
	if err := decodeBody(w, r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.PrimaryAddress == "" {
		writeError(w, domain.ErrMissingPrimaryAddress)
		return
	}

	secondary, err := h.cosignerSvc.ProvisionSecondaryAccount(
		r.Context(), req.PrimaryAddress,
	)
	if err != nil {
		h.warn(err, "failed to provision secondary for %s", req.PrimaryAddress)
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, secondaryAccountResponse{secondary})
}

func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{"ok"})
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid request body: %s", err)
	}
	return nil
}
