package health

import (
	"net/http"

	log "github.com/sirupsen/logrus"
)

type checkHandler struct {
	checker Checker
}

func (h *checkHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	err := h.checker.Check()
	if err == nil {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	log.WithError(err).Warn("health check failed")
	w.WriteHeader(http.StatusServiceUnavailable)
	if _, err := w.Write([]byte(err.Error())); err != nil {
		log.WithError(err).Error("failed to write health check response")
	}
}

// SetupHttpMux mounts the checker on the mux under /health.
func SetupHttpMux(mux *http.ServeMux, checker Checker) {
	mux.Handle("/health", &checkHandler{checker: checker})
}
