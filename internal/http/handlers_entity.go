package http

import (
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"finconsole/internal/api"
	"finconsole/internal/core"
	"finconsole/internal/hierarchy"
	applog "finconsole/internal/log"
	"finconsole/internal/storage"
)

// failRequest surfaces err as an error toast. A 401 from the Entity Store
// ends the session instead.
func (s *Server) failRequest(w http.ResponseWriter, r *http.Request, op string, res core.Resource, err error) {
	ctx := r.Context()
	if api.IsUnauthorized(err) {
		if sess, ok := sessionFrom(ctx); ok {
			s.dropSession(w, r, sess)
		}
		s.redirectToLogin(w, r)
		return
	}

	kind, msg := api.Describe(err)
	l := applog.FromContext(ctx)
	if kind == api.KindValidation {
		l.InfoContext(ctx, "Request rejected", applog.FieldOperation, op, applog.FieldResource, res.String(), "reason", msg)
	} else {
		l.ErrorContext(ctx, "Entity store request failed",
			applog.FieldOperation, op,
			applog.FieldResource, res.String(),
			applog.FieldErrorKind, kind.String(),
			applog.FieldError, err)
	}
	ToastForError(kind, msg).Write(w)
}

// entityContext resolves the resource route variable and the session's
// Entity Store client.
func (s *Server) entityContext(r *http.Request) (*entityKind, storage.SessionData, *api.Client, bool) {
	k, ok := s.kinds[core.Resource(mux.Vars(r)["resource"])]
	if !ok {
		return nil, storage.SessionData{}, nil, false
	}
	sess, c, ok := s.sessionClient(r)
	return k, sess, c, ok
}

// sessionClient returns the session and an Entity Store client carrying
// its bearer token.
func (s *Server) sessionClient(r *http.Request) (storage.SessionData, *api.Client, bool) {
	sess, ok := sessionFrom(r.Context())
	if !ok {
		return storage.SessionData{}, nil, false
	}
	return sess, s.store.WithToken(sess.Token), true
}

// selectView is a select input with its options.
type selectView struct {
	formField
	Value   string
	Options []hierarchy.Option
}

type entityPageView struct {
	User    core.User
	Nav     []core.Resource
	Kind    *entityKind
	Title   string
	Filters []selectView
	Query   url.Values
	// ExportURL carries the current filters into the download link.
	ExportURL string
}

func (s *Server) handleEntityPage(w http.ResponseWriter, r *http.Request) {
	k, sess, c, ok := s.entityContext(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	q := ParseListQuery(r.URL.Query(), k.FilterKeys())

	view := entityPageView{
		User:  sess.User,
		Nav:   core.Resources,
		Kind:  k,
		Title: k.Resource.Title(),
		Query: q.Values(),
	}
	if k.Export {
		view.ExportURL = "/" + k.Resource.String() + "/export?" + view.Query.Encode()
	}
	for _, f := range k.Filters {
		sv := selectView{formField: f, Value: q.Filters[f.Name]}
		if f.Kind == fieldSelect {
			opts, err := s.options.Options(r.Context(), sess.ID, c, f.Source)
			if err != nil {
				if api.IsUnauthorized(err) {
					s.failRequest(w, r, applog.OpRead, k.Resource, err)
					return
				}
				applog.FromContext(r.Context()).WarnContext(r.Context(), "Filter options unavailable",
					applog.FieldResource, f.Source.String(), applog.FieldError, err)
			}
			sv.Options = opts
		}
		view.Filters = append(view.Filters, sv)
	}
	s.render(w, r, http.StatusOK, "entity_page", view)
}

type listView struct {
	Kind       *entityKind
	Records    []record
	Tree       []treeRow
	Pagination api.Pagination
	Query      ListQuery
	PrevURL    string
	NextURL    string
	Seq        int64
}

type treeRow struct {
	hierarchy.Row
	Record record
	// ToggleURL keeps the current page so the toggled node stays in view.
	ToggleURL string
}

func treeToggleURL(id int64, page int) string {
	return "/ui/cash-flow-type/" + strconv.FormatInt(id, 10) + "/toggle?page=" + strconv.Itoa(page)
}

func listPageURL(k *entityKind, q ListQuery, page int) string {
	v := q.Values()
	v.Set("page", strconv.Itoa(page))
	return "/ui/" + k.Resource.String() + "/list?" + v.Encode()
}

func listViewName(res core.Resource) string { return "list:" + res.String() }
func treeViewName(res core.Resource) string { return "tree:" + res.String() }

// handleEntityList renders one page of a resource. Each request takes a
// sequence token for its view; a response whose token has been superseded
// by a newer request is dropped with 204 and HX-Reswap: none.
func (s *Server) handleEntityList(w http.ResponseWriter, r *http.Request) {
	k, ok := s.kinds[core.Resource(mux.Vars(r)["resource"])]
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	s.renderList(w, r, k)
}

// renderList reads the list query from the URL and, for the tree toggle,
// from the posted form.
func (s *Server) renderList(w http.ResponseWriter, r *http.Request, k *entityKind) {
	ctx := r.Context()
	sess, c, ok := s.sessionClient(r)
	if !ok {
		s.redirectToLogin(w, r)
		return
	}
	if resp := ParseFormOrFail(r); resp != nil {
		resp.Write(w)
		return
	}
	q := ParseListQuery(r.Form, k.FilterKeys())
	view := listViewName(k.Resource)

	seq, err := s.sessions.NextSeq(ctx, sess.ID, view)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to issue sequence token", applog.FieldView, view, applog.FieldError, err)
		ToastError(http.StatusInternalServerError, api.MsgUnknown).Write(w)
		return
	}

	l, fetchErr := k.list(ctx, c, q.Params(s.opts.PageSize))

	latest, err := s.sessions.IsLatest(ctx, sess.ID, view, seq)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to check sequence token", applog.FieldView, view, applog.FieldError, err)
	}
	if err == nil && !latest {
		applog.FromContext(ctx).DebugContext(ctx, "Stale list response dropped", applog.FieldView, view, applog.FieldSeq, seq)
		StaleResponse().Write(w)
		return
	}
	if fetchErr != nil {
		s.failRequest(w, r, applog.OpList, k.Resource, fetchErr)
		return
	}

	lv := listView{Kind: k, Records: l.Records, Pagination: l.Pagination, Query: q, Seq: seq}
	if l.Pagination.HasPrev() {
		lv.PrevURL = listPageURL(k, q, l.Pagination.CurrentPage-1)
	}
	if l.Pagination.HasNext() {
		lv.NextURL = listPageURL(k, q, l.Pagination.CurrentPage+1)
	}

	if k.Tree {
		rows, err := s.treeRows(r, sess, k, l)
		if err != nil {
			s.failRequest(w, r, applog.OpList, k.Resource, err)
			return
		}
		lv.Tree = rows
	}
	s.render(w, r, http.StatusOK, "entity_list", lv)
}

// treeRows builds the forest of the fetched page and flattens it under the
// session's expansion set.
func (s *Server) treeRows(r *http.Request, sess storage.SessionData, k *entityKind, l listing) ([]treeRow, error) {
	items, _ := l.Items.([]core.CashFlowType)
	expanded, err := s.sessions.Expanded(r.Context(), sess.ID, treeViewName(k.Resource))
	if err != nil {
		return nil, err
	}
	byID := make(map[int64]record, len(l.Records))
	for _, rec := range l.Records {
		byID[rec.ID] = rec
	}

	forest := hierarchy.Build(items)
	flat := hierarchy.Flatten(forest, hierarchy.NewIDSet(expanded...))
	rows := make([]treeRow, len(flat))
	for i, row := range flat {
		rows[i] = treeRow{
			Row:       row,
			Record:    byID[row.Node.ID()],
			ToggleURL: treeToggleURL(row.Node.ID(), l.Pagination.CurrentPage),
		}
	}
	return rows, nil
}

// handleTreeToggle flips one node of the cash flow type tree and renders
// the list again with the same query.
func (s *Server) handleTreeToggle(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, ok := sessionFrom(ctx)
	if !ok {
		s.redirectToLogin(w, r)
		return
	}
	id, err := PathID(r)
	if err != nil {
		ToastError(http.StatusBadRequest, "Invalid id").Write(w)
		return
	}

	view := treeViewName(core.ResourceCashFlowType)
	ids, err := s.sessions.Expanded(ctx, sess.ID, view)
	if err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to load expansion state", applog.FieldView, view, applog.FieldError, err)
		ToastError(http.StatusInternalServerError, api.MsgUnknown).Write(w)
		return
	}
	set := hierarchy.NewIDSet(ids...)
	set.Toggle(id)
	if err := s.sessions.SaveExpanded(ctx, sess.ID, view, set.Sorted()); err != nil {
		applog.FromContext(ctx).ErrorContext(ctx, "Failed to save expansion state", applog.FieldView, view, applog.FieldError, err)
		ToastError(http.StatusInternalServerError, api.MsgUnknown).Write(w)
		return
	}

	applog.FromContext(ctx).DebugContext(ctx, "Tree node toggled", applog.FieldOperation, applog.OpToggle, applog.FieldEntityID, id)
	s.renderList(w, r, s.kinds[core.ResourceCashFlowType])
}

type formView struct {
	Kind   *entityKind
	Record *record
	Fields []selectView
	Action string
	Method string
}

// handleEntityForm renders the create form, or the edit form when the
// route carries an id.
func (s *Server) handleEntityForm(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	k, sess, c, ok := s.entityContext(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}

	fv := formView{Kind: k, Action: "/" + k.Resource.String(), Method: "post"}
	var values map[string]string
	var nodeID int64
	if _, has := mux.Vars(r)["id"]; has {
		id, err := PathID(r)
		if err != nil {
			ToastError(http.StatusBadRequest, "Invalid id").Write(w)
			return
		}
		rec, err := k.get(ctx, c, id)
		if err != nil {
			s.failRequest(w, r, applog.OpRead, k.Resource, err)
			return
		}
		fv.Record = &rec
		fv.Action = "/" + k.Resource.String() + "/" + strconv.FormatInt(id, 10)
		fv.Method = "put"
		values = rec.Values
		nodeID = id
	}

	for _, f := range k.Fields {
		sv := selectView{formField: f, Value: values[f.Name]}
		var err error
		switch f.Kind {
		case fieldSelect:
			sv.Options, err = s.options.Options(ctx, sess.ID, c, f.Source)
		case fieldParent:
			sv.Options, err = s.options.ParentOptions(ctx, sess.ID, c, nodeID)
		}
		if err != nil {
			s.failRequest(w, r, applog.OpRead, f.Source, err)
			return
		}
		fv.Fields = append(fv.Fields, sv)
	}
	s.render(w, r, http.StatusOK, "entity_form", fv)
}

func (s *Server) handleEntityCreate(w http.ResponseWriter, r *http.Request) {
	k, sess, c, ok := s.entityContext(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	rec, err := k.create(r.Context(), s.entities, c, r, sess.User.Email)
	if err != nil {
		s.failRequest(w, r, applog.OpCreate, k.Resource, err)
		return
	}
	MutationSuccess(k.Resource.String(), "Created "+k.Singular+" "+rec.Label, true).Write(w)
}

func (s *Server) handleEntityUpdate(w http.ResponseWriter, r *http.Request) {
	k, sess, c, ok := s.entityContext(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	id, err := PathID(r)
	if err != nil {
		ToastError(http.StatusBadRequest, "Invalid id").Write(w)
		return
	}
	rec, err := k.update(r.Context(), s.entities, c, id, r, sess.User.Email)
	if err != nil {
		s.failRequest(w, r, applog.OpUpdate, k.Resource, err)
		return
	}
	MutationSuccess(k.Resource.String(), "Updated "+k.Singular+" "+rec.Label, true).Write(w)
}

func (s *Server) handleEntityDelete(w http.ResponseWriter, r *http.Request) {
	k, sess, c, ok := s.entityContext(r)
	if !ok {
		s.handleNotFound(w, r)
		return
	}
	id, err := PathID(r)
	if err != nil {
		ToastError(http.StatusBadRequest, "Invalid id").Write(w)
		return
	}
	label := sanitizeInput(r.URL.Query().Get("label"))
	if label == "" {
		label = "#" + strconv.FormatInt(id, 10)
	}
	if err := s.entities.Delete(r.Context(), c, k.Resource, id, label, sess.User.Email); err != nil {
		s.failRequest(w, r, applog.OpDelete, k.Resource, err)
		return
	}
	MutationSuccess(k.Resource.String(), "Deleted "+k.Singular+" "+label, false).Write(w)
}
