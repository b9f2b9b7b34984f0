package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/koustreak/tablegate/internal/errs"
	"github.com/koustreak/tablegate/internal/query"
	"github.com/koustreak/tablegate/internal/service"
)

type healthStatus struct {
	Status      string            `json:"status"`
	Connections map[string]string `json:"connections"`
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	body := healthStatus{Status: "ok", Connections: make(map[string]string)}
	code := http.StatusOK
	for _, id := range s.svc.Connections() {
		if err := s.svc.Ping(r.Context(), id); err != nil {
			body.Connections[id] = err.Error()
			body.Status = "degraded"
			code = http.StatusServiceUnavailable
			continue
		}
		body.Connections[id] = "ok"
	}
	writeJSON(w, code, body)
}

// --- schema ---

func (s *Server) getSchema(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.Schema(r.Context(), chi.URLParam(r, "conn"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) refreshSchema(w http.ResponseWriter, r *http.Request) {
	m, err := s.svc.RefreshSchema(r.Context(), chi.URLParam(r, "conn"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) clearSchema(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.ClearSchema(r.Context(), chi.URLParam(r, "conn")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) listTables(w http.ResponseWriter, r *http.Request) {
	tables, err := s.svc.Tables(r.Context(), chi.URLParam(r, "conn"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tables)
}

// --- rows ---

func (s *Server) listRows(w http.ResponseWriter, r *http.Request) {
	p, err := query.ParseQuery(r.URL.RawQuery)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	rows, err := s.svc.List(r.Context(), chi.URLParam(r, "conn"), chi.URLParam(r, "table"), p)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

func (s *Server) getRow(w http.ResponseWriter, r *http.Request) {
	row, err := s.svc.Get(r.Context(), chi.URLParam(r, "conn"), chi.URLParam(r, "table"), chi.URLParam(r, "id"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func (s *Server) createRow(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.decode(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Create(r.Context(), chi.URLParam(r, "conn"), chi.URLParam(r, "table"), payload)
	s.writeResult(w, r, http.StatusCreated, res, err)
}

func (s *Server) updateRow(w http.ResponseWriter, r *http.Request) {
	payload, ok := s.decode(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Update(r.Context(), chi.URLParam(r, "conn"), chi.URLParam(r, "table"), chi.URLParam(r, "id"), payload)
	s.writeResult(w, r, http.StatusOK, res, err)
}

func (s *Server) deleteRow(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.Delete(r.Context(), chi.URLParam(r, "conn"), chi.URLParam(r, "table"), chi.URLParam(r, "id"))
	s.writeResult(w, r, http.StatusOK, res, err)
}

func (s *Server) deleteRows(w http.ResponseWriter, r *http.Request) {
	filters, err := query.ParseQuery(r.URL.RawQuery)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	res, err := s.svc.DeleteWhere(r.Context(), chi.URLParam(r, "conn"), chi.URLParam(r, "table"), filters)
	s.writeResult(w, r, http.StatusOK, res, err)
}

func (s *Server) listRelated(w http.ResponseWriter, r *http.Request) {
	rows, err := s.svc.Related(r.Context(),
		chi.URLParam(r, "conn"),
		chi.URLParam(r, "table"),
		chi.URLParam(r, "id"),
		chi.URLParam(r, "related"),
		r.URL.Query().Get("fk"),
	)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rows)
}

// decode reads a JSON object body. On failure the error response has
// already been written.
func (s *Server) decode(w http.ResponseWriter, r *http.Request) (query.Params, bool) {
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	defer body.Close()

	p, err := query.DecodeObject(body)
	if err != nil {
		if errs.KindOf(err) == errs.ErrKindUnknown {
			err = errs.Wrap(errs.ErrKindInvalidInput, "invalid request body", err)
		}
		s.fail(w, r, err)
		return nil, false
	}
	return p, true
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, code int, res *service.WriteResult, err error) {
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, code, res)
}
