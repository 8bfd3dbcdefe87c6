package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"pwscache/internal/weather"
)

const cacheHeader = "X-Cache"

type Handler struct {
	service *weather.Service
}

func NewHandler(service *weather.Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /current", h.resource(weather.Current))
	mux.HandleFunc("GET /forecast", h.resource(weather.Forecast))
	// Single-resource variant: the root serves current observations.
	mux.HandleFunc("GET /{$}", h.resource(weather.Current))
	mux.HandleFunc("GET /health", h.health)
}

func (h *Handler) resource(res weather.Resource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		values := make([]string, 0, len(res.Params))
		for _, name := range res.Params {
			if !q.Has(name) {
				writeJSONError(w, "missing "+name+" parameter", http.StatusBadRequest)
				return
			}
			values = append(values, q.Get(name))
		}

		result, err := h.service.Get(r.Context(), res, values...)
		if err != nil {
			slog.Error("get resource failed", "resource", res.Name, "err", err)
			writeJSONError(w, "upstream fetch failed", http.StatusBadGateway)
			return
		}

		maxAge := h.service.MaxAge(result, h.service.Now())
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Cache-Control", "public, max-age="+strconv.FormatInt(maxAge, 10))
		w.Header().Set(cacheHeader, strings.ToUpper(string(result.Status)))
		w.Write(result.Body)
	}
}

func writeJSONError(w http.ResponseWriter, msg string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.Write([]byte(`{"status":"ok"}`))
}
