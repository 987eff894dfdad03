package web

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"stockroom-cli/internal/inventory"
	"stockroom-cli/internal/model"
	"stockroom-cli/internal/view"
)

type itemRequest struct {
	Name     string `json:"name"`
	Quantity *int   `json:"quantity"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{"data": data})
}

func respondError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

// apiAllowed answers 401 for gated servers without a session.
func (s *Server) apiAllowed(w http.ResponseWriter, r *http.Request) bool {
	if !s.gated() {
		return true
	}
	if _, ok := s.userFromRequest(r); ok {
		return true
	}
	respondError(w, http.StatusUnauthorized, "not logged in")
	return false
}

func (s *Server) apiFailed(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusUnprocessableEntity {
		status = http.StatusBadRequest
	}
	if status >= http.StatusInternalServerError {
		s.log.Error("api request failed", zap.Error(err))
	}
	respondError(w, status, err.Error())
}

func decodeItemRequest(r *http.Request) (itemRequest, error) {
	var req itemRequest
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<16))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		return itemRequest{}, &view.ValidationError{Message: "invalid JSON body: " + err.Error()}
	}
	return req, nil
}

// editorFields feeds an API body through the same validation as the forms.
func (req itemRequest) editorFields(st *view.State) {
	st.NameField = req.Name
	st.QuantityField = ""
	if req.Quantity != nil {
		st.QuantityField = strconv.Itoa(*req.Quantity)
	}
}

func (s *Server) handleAPIList(w http.ResponseWriter, r *http.Request) {
	if !s.apiAllowed(w, r) {
		return
	}
	st := s.newState(parseListQuery(r.URL.Query()))
	if err := st.Refresh(r.Context(), s.tracked()); err != nil {
		s.apiFailed(w, err)
		return
	}
	respondJSON(w, http.StatusOK, st.Visible())
}

func (s *Server) handleAPIAdd(w http.ResponseWriter, r *http.Request) {
	if !s.apiAllowed(w, r) {
		return
	}
	req, err := decodeItemRequest(r)
	if err != nil {
		s.apiFailed(w, err)
		return
	}
	st := s.newState(listQuery{})
	st.OpenAdd()
	req.editorFields(st)
	sub, err := st.Validate()
	if err != nil {
		s.apiFailed(w, err)
		return
	}
	res, err := sub.Run(s.actorContext(r), s.tracked())
	if err != nil {
		s.apiFailed(w, err)
		return
	}
	status := http.StatusOK
	if res.Outcome == inventory.OutcomeCreated {
		status = http.StatusCreated
	}
	respondJSON(w, status, res)
}

func (s *Server) handleAPIIncrement(w http.ResponseWriter, r *http.Request) {
	if !s.apiAllowed(w, r) {
		return
	}
	res, err := s.tracked().Increment(s.actorContext(r), r.PathValue("name"))
	if err != nil {
		s.apiFailed(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

func (s *Server) handleAPIDecrement(w http.ResponseWriter, r *http.Request) {
	if !s.apiAllowed(w, r) {
		return
	}
	res, err := s.tracked().RemoveOrDecrement(s.actorContext(r), r.PathValue("name"))
	if err != nil {
		s.apiFailed(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}

// handleAPIRename renames {name} to body.name (kept when omitted) and sets
// its quantity.
func (s *Server) handleAPIRename(w http.ResponseWriter, r *http.Request) {
	if !s.apiAllowed(w, r) {
		return
	}
	req, err := decodeItemRequest(r)
	if err != nil {
		s.apiFailed(w, err)
		return
	}
	old := r.PathValue("name")
	if req.Name == "" {
		req.Name = old
	}
	collision, err := inventory.ParseCollisionPolicy(r.URL.Query().Get("on_collision"))
	if err != nil {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	st := s.newState(listQuery{})
	st.BeginEdit(model.Item{Name: old})
	req.editorFields(st)
	sub, err := st.Validate()
	if err != nil {
		s.apiFailed(w, err)
		return
	}

	var res inventory.Result
	if r.URL.Query().Has("on_collision") {
		res, err = trackedInventory{s: s}.done(s.inv.WithCollision(collision).Rename(s.actorContext(r), sub.OldName, sub.Name, sub.Quantity))
	} else {
		res, err = sub.Run(s.actorContext(r), s.tracked())
	}
	if err != nil {
		s.apiFailed(w, err)
		return
	}
	respondJSON(w, http.StatusOK, res)
}
