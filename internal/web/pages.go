package web

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"stockroom-cli/internal/auth"
	"stockroom-cli/internal/docs"
	"stockroom-cli/internal/inventory"
	"stockroom-cli/internal/model"
	"stockroom-cli/internal/view"
)

// listQuery is the listing state carried in the query string so it survives
// form posts and reloads.
type listQuery struct {
	Q    string
	Sort model.SortOrder
}

func parseListQuery(v url.Values) listQuery {
	sort, err := model.ParseSortOrder(v.Get("sort"))
	if err != nil {
		sort = model.SortDefault
	}
	return listQuery{Q: v.Get("q"), Sort: sort}
}

func (q listQuery) values() url.Values {
	v := url.Values{}
	if q.Q != "" {
		v.Set("q", q.Q)
	}
	if q.Sort != "" && q.Sort != model.SortDefault {
		v.Set("sort", string(q.Sort))
	}
	return v
}

// url builds path with the listing state plus extra key/value pairs.
func (q listQuery) url(path string, extra ...string) string {
	v := q.values()
	for i := 0; i+1 < len(extra); i += 2 {
		v.Set(extra[i], extra[i+1])
	}
	if len(v) == 0 {
		return path
	}
	return path + "?" + v.Encode()
}

func itemPath(name, action string) string {
	return "/items/" + url.PathEscape(name) + "/" + action
}

type homeVM struct {
	baseVM
	Auth       gateVM
	Query      string
	Sort       string
	SearchOpen bool
	SearchURL  string
	CloseURL   string
	ClearURL   string
	AddURL     string
	Inventory  inventoryVM
	Editor     *editorVM
}

type inventoryVM struct {
	Rows      []itemRowVM
	Filtered  bool
	SortLabel string
	SortURL   string
	Query     string
	Sort      string
	Error     string
}

type itemRowVM struct {
	Name         string
	Display      string
	Quantity     int
	IncrementURL string
	DecrementURL string
	EditURL      string
}

type editorVM struct {
	Editing  bool
	Action   string
	Name     string
	Quantity string
	Field    string
	Error    string
	CloseURL string
	Query    string
	Sort     string
}

type gateVM struct {
	Enabled bool
	Status  string
	User    *model.User
}

type aboutVM struct {
	baseVM
	Body template.HTML
}

// trackedInventory forwards to the service and reports successful
// mutations to metrics and open streams.
type trackedInventory struct {
	s *Server
}

func (t trackedInventory) FetchAll(ctx context.Context) ([]model.Item, error) {
	items, err := t.s.inv.FetchAll(ctx)
	if err == nil {
		t.s.metrics.observeItems(len(items))
	}
	return items, err
}

func (t trackedInventory) AddOrIncrement(ctx context.Context, name string, quantity int) (inventory.Result, error) {
	return t.done(t.s.inv.AddOrIncrement(ctx, name, quantity))
}

func (t trackedInventory) Increment(ctx context.Context, name string) (inventory.Result, error) {
	return t.done(t.s.inv.Increment(ctx, name))
}

func (t trackedInventory) RemoveOrDecrement(ctx context.Context, name string) (inventory.Result, error) {
	return t.done(t.s.inv.RemoveOrDecrement(ctx, name))
}

func (t trackedInventory) Rename(ctx context.Context, oldName, newName string, newQuantity int) (inventory.Result, error) {
	return t.done(t.s.inv.Rename(ctx, oldName, newName, newQuantity))
}

func (t trackedInventory) done(res inventory.Result, err error) (inventory.Result, error) {
	if err == nil {
		t.s.changed(res)
	}
	return res, err
}

func (s *Server) tracked() view.Inventory { return trackedInventory{s: s} }

// statusFor maps inventory and validation errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case view.IsValidation(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, inventory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, inventory.ErrNameTaken):
		return http.StatusConflict
	case errors.Is(err, inventory.ErrInvalidName), errors.Is(err, inventory.ErrInvalidQuantity):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) newState(q listQuery) *view.State {
	st := view.New(s.cfg.Locale)
	st.SetSearch(q.Q)
	st.Sort = q.Sort
	return st
}

func (s *Server) inventoryVM(st *view.State, q listQuery) inventoryVM {
	vm := inventoryVM{
		Filtered:  st.Search != "",
		SortLabel: st.SortLabel(),
		SortURL:   listQuery{Q: q.Q, Sort: st.Sort.Next()}.url("/"),
		Query:     q.Q,
		Sort:      string(q.Sort),
	}
	for _, it := range st.Visible() {
		vm.Rows = append(vm.Rows, itemRowVM{
			Name:         it.Name,
			Display:      view.DisplayName(it.Name),
			Quantity:     it.Quantity,
			IncrementURL: itemPath(it.Name, "increment"),
			DecrementURL: itemPath(it.Name, "decrement"),
			EditURL:      q.url("/", "edit", it.Name),
		})
	}
	return vm
}

func (s *Server) homeVM(r *http.Request, st *view.State, q listQuery) homeVM {
	vm := homeVM{
		baseVM:     s.baseVMForRequest(r, q.url("/events")),
		Auth:       gateVM{Enabled: s.gated(), Status: string(auth.StatusLoading)},
		Query:      q.Q,
		Sort:       string(q.Sort),
		SearchOpen: st.SearchOpen,
		SearchURL:  q.url("/", "search", "1"),
		CloseURL:   q.url("/"),
		ClearURL:   listQuery{Sort: q.Sort}.url("/", "search", "1"),
		AddURL:     q.url("/", "add", "1"),
		Inventory:  s.inventoryVM(st, q),
	}
	if st.EditorOpen {
		ed := &editorVM{
			Action:   "/items",
			Name:     st.NameField,
			Quantity: st.QuantityField,
			CloseURL: q.url("/"),
			Query:    q.Q,
			Sort:     string(q.Sort),
		}
		if st.Editing != nil {
			ed.Editing = true
			ed.Action = itemPath(st.Editing.Name, "edit")
		}
		if st.Err != nil {
			ed.Error = st.Err.Error()
			var ve *view.ValidationError
			if errors.As(st.Err, &ve) {
				ed.Field = ve.Field
			}
		}
		vm.Editor = ed
	}
	return vm
}

func (s *Server) renderHome(w http.ResponseWriter, r *http.Request, st *view.State, q listQuery, status int) {
	s.writeHTMLTemplateStatus(w, status, "home.html", s.homeVM(r, st, q))
}

// requireUser renders the signed-out page when the listing is gated and the
// request has no session. It reports whether the handler may continue.
func (s *Server) requireUser(w http.ResponseWriter, r *http.Request) bool {
	if !s.gated() {
		return true
	}
	if _, ok := s.userFromRequest(r); ok {
		return true
	}
	vm := struct {
		baseVM
		Auth gateVM
	}{
		baseVM: s.baseVMForRequest(r, ""),
		Auth:   gateVM{Enabled: true, Status: string(auth.StatusSignedOut)},
	}
	status := http.StatusOK
	if r.Method != http.MethodGet {
		status = http.StatusUnauthorized
	}
	s.writeHTMLTemplateStatus(w, status, "signed_out.html", vm)
	return false
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if !s.requireUser(w, r) {
		return
	}
	v := r.URL.Query()
	q := parseListQuery(v)
	st := s.newState(q)
	if v.Get("search") == "1" {
		st.OpenSearch()
	}

	status := http.StatusOK
	if err := st.Refresh(r.Context(), s.tracked()); err != nil {
		s.log.Warn("fetch inventory failed", zap.Error(err))
		status = http.StatusInternalServerError
		vm := s.homeVM(r, st, q)
		vm.Inventory.Error = err.Error()
		s.writeHTMLTemplateStatus(w, status, "home.html", vm)
		return
	}

	switch {
	case v.Get("add") == "1":
		st.OpenAdd()
	case v.Has("edit"):
		name := v.Get("edit")
		for _, it := range st.Items {
			if it.Name == name {
				st.BeginEdit(it)
				break
			}
		}
	}
	s.renderHome(w, r, st, q, status)
}

func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	s.writeHTMLTemplate(w, "about.html", aboutVM{
		baseVM: s.baseVMForRequest(r, ""),
		Body:   renderMarkdownHTML(docs.MustGet("about")),
	})
}

// formQuery reads the listing state echoed back by hidden form inputs.
func formQuery(r *http.Request) listQuery {
	return parseListQuery(url.Values{"q": {r.PostForm.Get("q")}, "sort": {r.PostForm.Get("sort")}})
}

func (s *Server) handleItemAdd(w http.ResponseWriter, r *http.Request) {
	if !s.requireUser(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := formQuery(r)
	st := s.newState(q)
	st.OpenAdd()
	st.NameField = r.PostForm.Get("name")
	st.QuantityField = r.PostForm.Get("quantity")
	s.save(w, r, st, q)
}

func (s *Server) handleItemEdit(w http.ResponseWriter, r *http.Request) {
	if !s.requireUser(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := formQuery(r)
	st := s.newState(q)
	st.BeginEdit(model.Item{Name: r.PathValue("name")})
	st.NameField = r.PostForm.Get("name")
	st.QuantityField = r.PostForm.Get("quantity")
	s.save(w, r, st, q)
}

// save runs the editor submission. Failures re-render the page with the
// editor still open and the error inline.
func (s *Server) save(w http.ResponseWriter, r *http.Request, st *view.State, q listQuery) {
	err := st.Save(s.actorContext(r), s.tracked())
	if err == nil {
		http.Redirect(w, r, q.url("/"), http.StatusSeeOther)
		return
	}
	if !view.IsValidation(err) {
		s.log.Warn("save item failed", zap.String("name", st.NameField), zap.Error(err))
	}
	if ferr := st.Refresh(r.Context(), s.tracked()); ferr != nil {
		s.log.Warn("fetch inventory failed", zap.Error(ferr))
	}
	s.renderHome(w, r, st, q, statusFor(err))
}

func (s *Server) handleItemIncrement(w http.ResponseWriter, r *http.Request) {
	s.quickAction(w, r, func(ctx context.Context, st *view.State, name string) error {
		return st.Increment(ctx, s.tracked(), name)
	})
}

func (s *Server) handleItemDecrement(w http.ResponseWriter, r *http.Request) {
	s.quickAction(w, r, func(ctx context.Context, st *view.State, name string) error {
		return st.Decrement(ctx, s.tracked(), name)
	})
}

func (s *Server) quickAction(w http.ResponseWriter, r *http.Request, apply func(context.Context, *view.State, string) error) {
	if !s.requireUser(w, r) {
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	q := formQuery(r)
	st := s.newState(q)
	name := r.PathValue("name")
	if err := apply(s.actorContext(r), st, name); err != nil {
		s.log.Warn("quick action failed", zap.String("name", name), zap.Error(err))
		if ferr := st.Refresh(r.Context(), s.tracked()); ferr != nil {
			s.log.Warn("fetch inventory failed", zap.Error(ferr))
		}
		vm := s.homeVM(r, st, q)
		vm.Inventory.Error = err.Error()
		s.writeHTMLTemplateStatus(w, statusFor(err), "home.html", vm)
		return
	}
	http.Redirect(w, r, q.url("/"), http.StatusSeeOther)
}
