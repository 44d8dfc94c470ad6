package httpapi

import (
	"net/http"

	"vaultgraph.org/internal/audit"
	"vaultgraph.org/internal/authz"
)

type evaluateRequest struct {
	Evaluations []authz.Evaluation `json:"evaluations"`
}

type evaluateResponse struct {
	Results []authz.Outcome `json:"results"`
}

func (a *API) Evaluate(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req evaluateRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	results, err := a.svc.Evaluate(r.Context(), p, req.Evaluations)
	if err != nil {
		respondAuthzError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, evaluateResponse{Results: results})
}

type relationshipsRequest struct {
	Relationships []authz.Relationship `json:"relationships"`
}

func (a *API) WriteRelationships(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req relationshipsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.svc.WriteRelationships(r.Context(), p, req.Relationships); err != nil {
		respondAuthzError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "relationships.write", map[string]any{
		"count": len(req.Relationships),
	})
	writeJSON(w, http.StatusOK, map[string]any{"written": len(req.Relationships)})
}

func (a *API) DeleteRelationships(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req relationshipsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := a.svc.DeleteRelationships(r.Context(), p, req.Relationships); err != nil {
		respondAuthzError(w, err)
		return
	}
	_ = audit.LogEvent(r.Context(), "relationships.delete", map[string]any{
		"count": len(req.Relationships),
	})
	writeJSON(w, http.StatusOK, map[string]any{"deleted": len(req.Relationships)})
}

func (a *API) ListRelationships(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	rels, err := a.svc.ListRelationships(r.Context(), p, q.Get("resource"), q.Get("relation"), q.Get("subject"))
	if err != nil {
		respondAuthzError(w, err)
		return
	}
	if rels == nil {
		rels = []authz.Relationship{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"relationships": rels})
}

type expandRequest struct {
	Resource   string `json:"resource"`
	Permission string `json:"permission"`
}

func (a *API) Expand(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	var req expandRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	node, err := a.svc.Expand(r.Context(), p, req.Resource, req.Permission)
	if err != nil {
		respondAuthzError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"tree": node})
}

func (a *API) ListResources(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	ids, err := a.svc.ListResources(r.Context(), p, q.Get("type"), q.Get("permission"), q.Get("subject"))
	if err != nil {
		respondAuthzError(w, err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"resource_ids": ids})
}

func (a *API) ListSubjects(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	subjects, err := a.svc.ListSubjects(r.Context(), p, q.Get("resource"), q.Get("permission"))
	if err != nil {
		respondAuthzError(w, err)
		return
	}
	if subjects == nil {
		subjects = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"subjects": subjects})
}
