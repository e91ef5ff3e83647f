// Package api serves the catalog over JSON/HTTP.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/catalog"
	"github.com/Adithya-Monish-Kumar-K/toolbox/internal/record"
	apperrors "github.com/Adithya-Monish-Kumar-K/toolbox/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/toolbox/pkg/logger"
)

const (
	maxBodyBytes = 1 << 20

	// searchParam carries the free-text query. A field that shares a name
	// with it, or with the prefix, is filtered as filterPrefix+field.
	searchParam  = "q"
	filterPrefix = "f."
)

// Catalog is the part of *catalog.Catalog the handlers use.
type Catalog interface {
	Get(ctx context.Context, q catalog.Query) ([]record.Record, error)
	Project(name string) (record.Record, bool)
	Update(ctx context.Context, rec record.Record, opts ...catalog.UpdateOption) error
	Delete(ctx context.Context, name string, opts ...catalog.UpdateOption) (bool, error)
	Fields() []string
	FieldIndex(field string) (map[string][]string, bool)
	RenameFieldValue(ctx context.Context, field, from, to string) (int, error)
}

type Handler struct {
	catalog Catalog
	logger  *slog.Logger
}

func New(c Catalog) *Handler {
	return &Handler{
		catalog: c,
		logger:  logger.WithComponent("api"),
	}
}

// Register mounts every route on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/projects", h.ListProjects)
	mux.HandleFunc("POST /api/v1/projects", h.CreateProject)
	mux.HandleFunc("GET /api/v1/projects/{name}", h.GetProject)
	mux.HandleFunc("PUT /api/v1/projects/{name}", h.PutProject)
	mux.HandleFunc("DELETE /api/v1/projects/{name}", h.DeleteProject)
	mux.HandleFunc("GET /api/v1/fields", h.ListFields)
	mux.HandleFunc("GET /api/v1/fields/{field}", h.GetField)
	mux.HandleFunc("POST /api/v1/fields/{field}/rename", h.RenameField)
}

type projectList struct {
	Projects []record.Record `json:"projects"`
	Count    int             `json:"count"`
}

// ListProjects answers GET /api/v1/projects?q=<text>&<field>=<value>...
// Filters may also be written f.<field>=<value>.
func (h *Handler) ListProjects(w http.ResponseWriter, r *http.Request) {
	q := catalog.Query{Match: make(map[string]string)}
	for key, values := range r.URL.Query() {
		if key == searchParam {
			q.Search = values[0]
			continue
		}
		field := strings.TrimPrefix(key, filterPrefix)
		if field == "" {
			h.fail(w, r, "invalid query", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"empty filter field"))
			return
		}
		if _, dup := q.Match[field]; dup || len(values) > 1 {
			h.fail(w, r, "invalid query", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
				"field %q given more than once", field))
			return
		}
		q.Match[field] = values[0]
	}

	recs, err := h.catalog.Get(r.Context(), q)
	if err != nil {
		h.fail(w, r, "query failed", err)
		return
	}
	if recs == nil {
		recs = []record.Record{}
	}
	h.writeJSON(w, http.StatusOK, projectList{Projects: recs, Count: len(recs)})
}

func (h *Handler) GetProject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rec, ok := h.catalog.Project(name)
	if !ok {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("project %q not found", name))
		return
	}
	h.writeJSON(w, http.StatusOK, rec)
}

// CreateProject stores the project in the body under its own name.
func (h *Handler) CreateProject(w http.ResponseWriter, r *http.Request) {
	rec, err := decodeRecord(w, r)
	if err != nil {
		h.fail(w, r, "invalid project", err)
		return
	}
	h.store(w, r, rec)
}

// PutProject stores the body under the path name. A body without a name
// takes the path's; a different name is rejected.
func (h *Handler) PutProject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	rec, err := decodeRecord(w, r)
	if err != nil {
		h.fail(w, r, "invalid project", err)
		return
	}
	if _, ok := rec.Get(record.FieldName); !ok {
		rec.Set(record.FieldName, record.Scalar(name))
	}
	if rec.Name() != name {
		h.fail(w, r, "invalid project", apperrors.Newf(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"body name %q does not match path %q", rec.Name(), name))
		return
	}
	h.store(w, r, rec)
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request, rec record.Record) {
	if err := h.catalog.Update(r.Context(), rec); err != nil {
		h.fail(w, r, "update failed", err)
		return
	}
	stored, ok := h.catalog.Project(rec.Name())
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "project vanished after update")
		return
	}
	logger.FromContext(r.Context()).Info("project stored", "name", rec.Name())
	h.writeJSON(w, http.StatusOK, stored)
}

func (h *Handler) DeleteProject(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	removed, err := h.catalog.Delete(r.Context(), name)
	if err != nil {
		h.fail(w, r, "delete failed", err)
		return
	}
	if !removed {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("project %q not found", name))
		return
	}
	logger.FromContext(r.Context()).Info("project deleted", "name", name)
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) ListFields(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string][]string{"fields": h.catalog.Fields()})
}

// GetField returns the value → project names index of one field.
func (h *Handler) GetField(w http.ResponseWriter, r *http.Request) {
	field := r.PathValue("field")
	buckets, ok := h.catalog.FieldIndex(field)
	if !ok {
		h.writeError(w, http.StatusNotFound, fmt.Sprintf("field %q is not indexed", field))
		return
	}
	values := make([]string, 0, len(buckets))
	for v := range buckets {
		values = append(values, v)
	}
	sort.Strings(values)
	h.writeJSON(w, http.StatusOK, map[string]any{
		"field":  field,
		"values": values,
		"index":  buckets,
	})
}

type renameRequest struct {
	From string `json:"from"`
	To   string `json:"to"`
}

func (h *Handler) RenameField(w http.ResponseWriter, r *http.Request) {
	field := r.PathValue("field")
	var req renameRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.From == "" || req.To == "" {
		h.fail(w, r, "invalid rename", apperrors.New(apperrors.ErrInvalidInput, http.StatusBadRequest,
			"both 'from' and 'to' are required"))
		return
	}
	n, err := h.catalog.RenameFieldValue(r.Context(), field, req.From, req.To)
	if err != nil {
		h.fail(w, r, "rename failed", err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"field":   field,
		"from":    req.From,
		"to":      req.To,
		"renamed": n,
	})
}

func decodeRecord(w http.ResponseWriter, r *http.Request) (record.Record, error) {
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		return record.Record{}, fmt.Errorf("reading body: %w", apperrors.ErrInvalidInput)
	}
	rec, err := record.Parse(data)
	if err != nil {
		return record.Record{}, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	return rec, nil
}

// fail maps err to a status code. Server-side failures are logged and their
// details withheld from the client.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, msg string, err error) {
	status := apperrors.HTTPStatusCode(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error(msg, "error", err)
		h.writeError(w, status, msg)
		return
	}
	h.writeError(w, status, err.Error())
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
