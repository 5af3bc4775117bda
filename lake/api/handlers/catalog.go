package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type ModelsResponse struct {
	Models []string `json:"models"`
}

type CatalogsResponse struct {
	Catalogs []string `json:"catalogs"`
}

type DatabasesResponse struct {
	Catalog   string   `json:"catalog"`
	Databases []string `json:"databases"`
}

type TablesResponse struct {
	Catalog  string   `json:"catalog"`
	Database string   `json:"database"`
	Tables   []string `json:"tables"`
}

func (h *Handlers) ListModels(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, ModelsResponse{Models: h.cfg.Models.Models(r.Context())})
}

func (h *Handlers) ListCatalogs(w http.ResponseWriter, r *http.Request) {
	catalogs, err := h.cfg.Catalogs.Catalogs(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, CatalogsResponse{Catalogs: nonNil(catalogs)})
}

func (h *Handlers) ListDatabases(w http.ResponseWriter, r *http.Request) {
	catalog := chi.URLParam(r, "catalog")
	dbs, err := h.cfg.Catalogs.Databases(r.Context(), catalog)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, DatabasesResponse{Catalog: catalog, Databases: nonNil(dbs)})
}

func (h *Handlers) ListTables(w http.ResponseWriter, r *http.Request) {
	catalog, database := chi.URLParam(r, "catalog"), chi.URLParam(r, "database")
	tables, err := h.cfg.Catalogs.Tables(r.Context(), catalog, database)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TablesResponse{Catalog: catalog, Database: database, Tables: nonNil(tables)})
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
