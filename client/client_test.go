package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ankit-chaubey/docsurgery/core"
)

type recorded struct {
	Method string
	Path   string
	Query  url.Values
	Header http.Header
	Body   map[string]interface{}
}

type fakeAPI struct {
	mu       sync.Mutex
	requests []recorded
	handle   func(w http.ResponseWriter, r *http.Request)
}

func (f *fakeAPI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rec := recorded{Method: r.Method, Path: r.URL.Path, Query: r.URL.Query(), Header: r.Header.Clone()}
	if b, _ := io.ReadAll(r.Body); len(b) > 0 {
		_ = json.Unmarshal(b, &rec.Body)
	}
	f.mu.Lock()
	f.requests = append(f.requests, rec)
	f.mu.Unlock()
	f.handle(w, r)
}

func (f *fakeAPI) last() recorded {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.requests[len(f.requests)-1]
}

func (f *fakeAPI) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func reply(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func newTestClient(t *testing.T, handle func(w http.ResponseWriter, r *http.Request)) (*Client, *fakeAPI) {
	t.Helper()
	api := &fakeAPI{handle: handle}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)
	c, err := New(Config{
		BaseURL:        srv.URL + "/",
		Token:          "secret",
		EnvironmentKey: "test-env",
		MaxRetries:     2,
		RetryInterval:  time.Millisecond,
	})
	require.NoError(t, err)
	return c, api
}

func TestConfigValidate(t *testing.T) {
	_, err := New(Config{Token: "x"})
	assert.Error(t, err)
	_, err = New(Config{BaseURL: "ftp://example.com", Token: "x"})
	assert.Error(t, err)
	_, err = New(Config{BaseURL: "https://example.com"})
	assert.Error(t, err)

	c, err := New(Config{BaseURL: "https://example.com", Token: "x"})
	require.NoError(t, err)
	assert.Equal(t, "Token", c.cfg.Scheme)
	assert.Equal(t, 20*time.Second, c.cfg.Timeout)
	assert.Equal(t, 4, c.cfg.Workers)
}

func TestConfigFrom(t *testing.T) {
	cfg := core.DefaultConfig()
	cfg.API.BaseURL = "https://api.example.com"
	cfg.API.Token = "t"
	cfg.API.Timeout = "5s"
	c := ConfigFrom(cfg.API, nil)
	assert.Equal(t, 5*time.Second, c.Timeout)
	assert.Equal(t, "Token", c.Scheme)
	assert.Equal(t, 3, c.MaxRetries)
	_, err := New(c)
	assert.NoError(t, err)

	zero := 0
	cfg.API.MaxRetries = &zero
	assert.Equal(t, 0, ConfigFrom(cfg.API, nil).MaxRetries)
}

func TestURL(t *testing.T) {
	c, err := New(Config{BaseURL: "https://example.com", Token: "x"})
	require.NoError(t, err)

	u, err := c.URL("submissions", Query{})
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/api/v2/submissions/", u)

	u, err = c.URL("cases/1", Query{Fields: []string{"id", "name"}, Params: url.Values{"archived": {"false"}}})
	require.NoError(t, err)
	parsed, err := url.Parse(u)
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/cases/1/", parsed.Path)
	assert.Equal(t, "{id,name}", parsed.Query().Get("query"))
	assert.Equal(t, "false", parsed.Query().Get("archived"))

	u, err = c.URL("users", Query{Filters: map[string]interface{}{"email": "a@b.c"}})
	require.NoError(t, err)
	parsed, err = url.Parse(u)
	require.NoError(t, err)
	raw, err := base64.URLEncoding.DecodeString(parsed.Query().Get("filter_parameters"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"email":"a@b.c"}`, string(raw))
}

func TestHeaders(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, []interface{}{})
	})
	_, err := c.Cases.List(context.Background(), Query{})
	require.NoError(t, err)
	req := api.last()
	assert.Equal(t, "Token secret", req.Header.Get("Authorization"))
	assert.Equal(t, "test-env", req.Header.Get("X-Origin-Environment"))
	assert.Equal(t, "/api/v2/cases/", req.Path)
}

func TestGetIsLazy(t *testing.T) {
	id := uuid.NewString()
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]interface{}{
			"id":         id,
			"type":       map[string]interface{}{"name": "Registration of Interest"},
			"created_at": "2023-04-01T10:00:00.123456Z",
		})
	})
	ctx := context.Background()

	o := c.Submissions.Get(id, "id", "type")
	assert.Equal(t, 0, api.count())
	assert.False(t, o.Loaded())
	assert.Equal(t, "submission object "+id, o.String())

	name, err := o.Get(ctx, "type.name")
	require.NoError(t, err)
	assert.Equal(t, "Registration of Interest", name)
	assert.Equal(t, 1, api.count())
	assert.Equal(t, "{id,type}", api.last().Query.Get("query"))

	ok, err := o.Has(ctx, "type")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 1, api.count())

	_, err = o.Get(ctx, "type.missing")
	assert.True(t, errors.Is(err, ErrFieldNotFound))

	ts, err := o.Time(ctx, "created_at")
	require.NoError(t, err)
	assert.Equal(t, 2023, ts.Year())

	require.NoError(t, o.Refresh(ctx, true))
	assert.Equal(t, 2, api.count())
	assert.Empty(t, api.last().Query.Get("query"))
}

func TestListAndFilter(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, []map[string]interface{}{{"id": "1"}, {"id": 2}})
	})
	ctx := context.Background()

	objs, err := c.Organisations.Filter(ctx, map[string]interface{}{"name": "Acme"}, "id")
	require.NoError(t, err)
	require.Len(t, objs, 2)
	assert.Equal(t, "1", objs[0].ID())
	assert.Equal(t, "2", objs[1].ID())
	assert.True(t, objs[0].Loaded())
	assert.NotEmpty(t, api.last().Query.Get("filter_parameters"))

	b, err := json.Marshal(objs[0])
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1"}`, string(b))
}

func TestCreateUpdateDelete(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodDelete:
			w.WriteHeader(http.StatusNoContent)
		default:
			reply(w, http.StatusOK, map[string]interface{}{"id": "42", "status": "draft"})
		}
	})
	ctx := context.Background()

	o, err := c.Submissions.Create(ctx, map[string]interface{}{"case": "7"})
	require.NoError(t, err)
	assert.Equal(t, "42", o.ID())
	assert.Equal(t, http.MethodPost, api.last().Method)
	assert.Equal(t, "7", api.last().Body["case"])

	updated, err := o.Update(ctx, map[string]interface{}{"status": "draft"}, "id")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, api.last().Method)
	assert.Equal(t, "/api/v2/submissions/42/", api.last().Path)
	s, err := updated.GetString(ctx, "status")
	require.NoError(t, err)
	assert.Equal(t, "draft", s)

	require.NoError(t, o.Delete(ctx))
	assert.Equal(t, http.MethodDelete, api.last().Method)
}

func TestCustomActions(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]interface{}{"id": "9"})
	})
	ctx := context.Background()

	_, err := c.UpdateSubmissionStatus(ctx, "9", "sufficient")
	require.NoError(t, err)
	req := api.last()
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/api/v2/submissions/9/update_submission_status/", req.Path)
	assert.Equal(t, "sufficient", req.Body["new_status"])
	assert.Equal(t, "{id}", req.Query.Get("query"))

	_, err = c.AddOrganisationToRegistrationOfInterest(ctx, "9", "org")
	require.NoError(t, err)
	assert.Equal(t, "org", api.last().Body["organisation_id"])

	_, err = c.ChangeOrganisation(ctx, "c1", "org2")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPatch, api.last().Method)
	assert.Equal(t, "/api/v2/contacts/c1/change_organisation/", api.last().Path)

	_, err = c.SendInvitation(ctx, "inv")
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/invitations/inv/send_invitation/", api.last().Path)

	_, err = c.Contacts.Get("c1").CustomAction(ctx, "get", "history", map[string]interface{}{"ignored": true})
	require.NoError(t, err)
	assert.Equal(t, http.MethodGet, api.last().Method)
	assert.Nil(t, api.last().Body)
}

func TestDomainCalls(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, map[string]interface{}{"id": "u1", "email": "a@b.c"})
	})
	ctx := context.Background()

	user, err := c.GetUserByEmail(ctx, "a@b.c")
	require.NoError(t, err)
	assert.Equal(t, "u1", user["id"])
	assert.Equal(t, "/api/v2/users/get_user_by_email/a@b.c/", api.last().Path)

	_, err = c.Login(ctx, "a@b.c", "pw", "", map[string]interface{}{"remember": true})
	require.NoError(t, err)
	req := api.last()
	assert.Equal(t, "/api/v2/login/", req.Path)
	assert.Equal(t, "pw", req.Body["password"])
	assert.Contains(t, req.Body, "invitation_code")
	assert.Nil(t, req.Body["invitation_code"])
	assert.Equal(t, true, req.Body["remember"])

	_, err = c.CreateDocument(ctx, map[string]interface{}{"name": "loa.pdf"})
	require.NoError(t, err)
	assert.Equal(t, "/api/v2/documents/", api.last().Path)

	role, err := c.GetWithCaseAndOrganisation("org", "case")
	require.NoError(t, err)
	before := api.count()
	_, err = role.Data(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+1, api.count())
	assert.Equal(t, "case", api.last().Query.Get("case_id"))
	assert.Equal(t, "org", api.last().Query.Get("organisation_id"))
	assert.Equal(t, "u1", role.ID())
}

func TestErrors(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		switch {
		case strings.Contains(r.URL.Path, "missing"):
			reply(w, http.StatusNotFound, map[string]string{"detail": "Not found."})
		case strings.Contains(r.URL.Path, "bad"):
			reply(w, http.StatusBadRequest, map[string]interface{}{"name": []string{"required"}})
		default:
			reply(w, http.StatusInternalServerError, nil)
		}
	})
	ctx := context.Background()

	_, err := c.Cases.Get("missing").Data(ctx)
	assert.True(t, IsNotFound(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))

	_, err = c.Cases.Get("bad").Data(ctx)
	var ce *ClientError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, http.StatusBadRequest, ce.StatusCode)
	body, _ := ce.Body.(map[string]interface{})
	assert.Contains(t, body, "name")
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))

	_, err = c.Cases.Get("boom").Data(ctx)
	var ae *APIRequestError
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, http.StatusInternalServerError, ae.StatusCode)
	assert.Equal(t, int32(5), atomic.LoadInt32(&calls), "one attempt plus two retries")
}

func TestRetryRecovers(t *testing.T) {
	var calls int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			reply(w, http.StatusBadGateway, nil)
			return
		}
		reply(w, http.StatusOK, map[string]interface{}{"id": "1"})
	})
	o := c.Cases.Get("1")
	_, err := o.Data(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestListPages(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		if page == 3 || page == 5 {
			reply(w, http.StatusBadRequest, map[string]string{"detail": "invalid page"})
			return
		}
		reply(w, http.StatusOK, map[string]interface{}{
			"results": []map[string]interface{}{{"id": strconv.Itoa(page*10 + 1)}, {"id": strconv.Itoa(page*10 + 2)}},
		})
	})

	objs, err := c.Feedback.ListPages(context.Background(), 6, Query{Params: url.Values{"case": {"1"}}})
	require.Error(t, err)
	var merr *multierror.Error
	require.ErrorAs(t, err, &merr)
	assert.Len(t, merr.Errors, 2)

	var ids []string
	for _, o := range objs {
		ids = append(ids, o.ID())
	}
	assert.Equal(t, []string{"11", "12", "21", "22", "41", "42", "61", "62"}, ids)
}

func TestListPagesCounts(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, []map[string]interface{}{{"id": "1"}})
	})

	objs, err := c.Cases.ListPages(context.Background(), -1, Query{})
	assert.ErrorIs(t, err, ErrInvalidPageCount)
	assert.Nil(t, objs)

	objs, err = c.Cases.ListPages(context.Background(), 0, Query{})
	assert.NoError(t, err)
	assert.Empty(t, objs)
	assert.Equal(t, 0, api.count())
}

func TestHealthCheck(t *testing.T) {
	c, api := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("OK"))
	})
	status, err := c.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "OK", status)
	assert.Equal(t, "/healthcheck", api.last().Path)
}

func TestLOAHelpers(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		reply(w, http.StatusOK, []map[string]interface{}{
			{"id": "1", "submission_type": "Letter of Authority", "status": "DRAFT"},
			{"id": "2", "submission_type": "Questionnaire", "status": "LIVE"},
			{"id": "3", "submission_type": "Letter of Authority", "status": "LIVE"},
		})
	})
	b, err := c.LOADocumentBundle(context.Background())
	require.NoError(t, err)
	require.NotNil(t, b)
	assert.Equal(t, "3", b.ID())

	submission := map[string]interface{}{
		"submission_documents": []interface{}{
			map[string]interface{}{"id": "d1", "type": map[string]interface{}{"key": "respondent"}},
			map[string]interface{}{"id": "d2", "type": map[string]interface{}{"key": "loa"}},
		},
	}
	assert.Equal(t, "d2", UploadedLOADocument(submission)["id"])
	assert.Nil(t, UploadedLOADocument(map[string]interface{}{}))
}

func TestResourceByEndpoint(t *testing.T) {
	c, err := New(Config{BaseURL: "https://example.com", Token: "x"})
	require.NoError(t, err)
	r, err := c.Resource("organisation_case_roles")
	require.NoError(t, err)
	assert.Same(t, c.OrganisationCaseRoles, r)
	_, err = c.Resource("nope")
	assert.Error(t, err)
}
