package admin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tkingovr/captcha-guard/api"
	"github.com/tkingovr/captcha-guard/internal/filter"
)

const (
	defaultAuditLimit = 100
	maxAuditLimit     = 1000
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAPIStats(w http.ResponseWriter, r *http.Request) {
	if s.auditStore == nil {
		http.Error(w, "audit log disabled", http.StatusNotFound)
		return
	}
	stats, err := s.auditStore.Stats(r.Context())
	if err != nil {
		http.Error(w, "failed to get stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) handleAPIAudit(w http.ResponseWriter, r *http.Request) {
	if s.auditStore == nil {
		http.Error(w, "audit log disabled", http.StatusNotFound)
		return
	}

	qf, err := parseAuditQuery(r.URL.Query())
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	records, err := s.auditStore.Query(r.Context(), qf)
	if err != nil {
		http.Error(w, "failed to query audit log", http.StatusInternalServerError)
		return
	}
	if records == nil {
		records = []*api.AuditRecord{}
	}
	writeJSON(w, http.StatusOK, records)
}

// parseAuditQuery maps the audit endpoint's query parameters to a filter.
// Results are always newest first.
func parseAuditQuery(q url.Values) (api.QueryFilter, error) {
	f := api.QueryFilter{
		Method:      strings.ToUpper(q.Get("method")),
		Path:        q.Get("path"),
		Outcome:     api.Outcome(q.Get("outcome")),
		Limit:       defaultAuditLimit,
		NewestFirst: true,
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return f, fmt.Errorf("invalid limit %q", v)
		}
		f.Limit = min(n, maxAuditLimit)
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, fmt.Errorf("invalid offset %q", v)
		}
		f.Offset = n
	}
	for name, dst := range map[string]*time.Time{"since": &f.Since, "until": &f.Until} {
		v := q.Get(name)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, fmt.Errorf("invalid %s %q: expected RFC 3339 time", name, v)
		}
		*dst = t
	}
	return f, nil
}

func (s *Server) handleAPIConfig(w http.ResponseWriter, r *http.Request) {
	data, err := s.cfg.MarshalYAML()
	if err != nil {
		http.Error(w, "failed to render config", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(data)
}

func (s *Server) handleAPICheck(w http.ResponseWriter, r *http.Request) {
	var req api.CheckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	checkReq, err := filter.NewCheckRequest(r.Context(), req)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	writeJSON(w, http.StatusOK, s.scope.Check(r.Context(), checkReq))
}

func (s *Server) handleAPIPolicyReload(w http.ResponseWriter, r *http.Request) {
	if s.engine == nil {
		http.Error(w, "no exemption policy configured", http.StatusNotFound)
		return
	}
	if err := s.engine.Reload(r.Context()); err != nil {
		s.logger.Error("reloading exemption policy", "error", err)
		http.Error(w, "reload failed: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.logger.Info("exemption policy reloaded")
	writeJSON(w, http.StatusOK, map[string]string{"status": "reloaded"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
