package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"golang.org/x/sync/errgroup"
)

// Resource is the client for one API endpoint, e.g. "submissions".
type Resource struct {
	client   *Client
	endpoint string
}

// Endpoint returns the endpoint path segment.
func (r *Resource) Endpoint() string { return r.endpoint }

func (r *Resource) retrievePath(id string, extra ...string) string {
	parts := append([]string{r.endpoint, url.PathEscape(id)}, extra...)
	return strings.Join(parts, "/")
}

func (r *Resource) lazy(id, retrievalURL string) *Object {
	return &Object{resource: r, id: id, retrievalURL: retrievalURL}
}

func (r *Resource) loaded(data map[string]interface{}) (*Object, error) {
	id := idOf(data)
	u, err := r.client.URL(r.retrievePath(id), Query{})
	if err != nil {
		return nil, err
	}
	return &Object{resource: r, id: id, retrievalURL: u, data: data, loaded: true}, nil
}

// Get returns the object with the given id. Nothing is fetched until the
// object's data is first accessed.
func (r *Resource) Get(id string, fields ...string) *Object {
	u, err := r.client.URL(r.retrievePath(id), Query{Fields: fields})
	o := r.lazy(id, u)
	o.urlErr = err
	return o
}

// List returns every object of the endpoint.
func (r *Resource) List(ctx context.Context, q Query) ([]*Object, error) {
	u, err := r.client.URL(r.endpoint, q)
	if err != nil {
		return nil, err
	}
	return r.getMany(ctx, u)
}

// Filter lists the objects whose model fields equal filters.
func (r *Resource) Filter(ctx context.Context, filters map[string]interface{}, fields ...string) ([]*Object, error) {
	return r.List(ctx, Query{Fields: fields, Filters: filters})
}

// Create posts data and returns the created object.
func (r *Resource) Create(ctx context.Context, data map[string]interface{}, fields ...string) (*Object, error) {
	u, err := r.client.URL(r.endpoint, Query{Fields: fields})
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := r.client.do(ctx, http.MethodPost, u, data, &out); err != nil {
		return nil, err
	}
	return r.loaded(out)
}

// Update patches the object with id and returns the updated object.
func (r *Resource) Update(ctx context.Context, id string, data map[string]interface{}, fields ...string) (*Object, error) {
	u, err := r.client.URL(r.retrievePath(id), Query{Fields: fields})
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	if err := r.client.do(ctx, http.MethodPatch, u, data, &out); err != nil {
		return nil, err
	}
	return r.loaded(out)
}

// Delete removes the object with id.
func (r *Resource) Delete(ctx context.Context, id string) error {
	u, err := r.client.URL(r.retrievePath(id), Query{})
	if err != nil {
		return err
	}
	return r.client.do(ctx, http.MethodDelete, u, nil, nil)
}

// ListPages fetches pages 1..pages of the endpoint (?page=N) with at most
// Config.Workers requests in flight. Objects are returned in page order.
// Every failed page is reported in the returned *multierror.Error; objects
// from successful pages are still returned alongside it. A negative page
// count is rejected.
func (r *Resource) ListPages(ctx context.Context, pages int, q Query) ([]*Object, error) {
	if pages < 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageCount, pages)
	}
	results := make([][]*Object, pages)
	var (
		mu   sync.Mutex
		errs *multierror.Error
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.client.cfg.Workers)
	for i := 0; i < pages; i++ {
		page := i + 1
		g.Go(func() error {
			pq := q
			pq.Params = url.Values{}
			for k, vs := range q.Params {
				pq.Params[k] = append([]string(nil), vs...)
			}
			pq.Params.Set("page", strconv.Itoa(page))
			u, err := r.client.URL(r.endpoint, pq)
			if err == nil {
				results[page-1], err = r.getMany(gctx, u)
			}
			if err != nil {
				mu.Lock()
				errs = multierror.Append(errs, fmt.Errorf("page %d: %w", page, err))
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	var all []*Object
	for _, objs := range results {
		all = append(all, objs...)
	}
	return all, errs.ErrorOrNil()
}

func (r *Resource) getMany(ctx context.Context, u string) ([]*Object, error) {
	var raw json.RawMessage
	if err := r.client.do(ctx, http.MethodGet, u, nil, &raw); err != nil {
		return nil, err
	}
	items, err := decodeList(raw)
	if err != nil {
		return nil, &APIRequestError{Message: "decoding list", Err: err}
	}
	objs := make([]*Object, 0, len(items))
	for _, item := range items {
		o, err := r.loaded(item)
		if err != nil {
			return nil, err
		}
		objs = append(objs, o)
	}
	return objs, nil
}

// decodeList accepts a bare JSON array or a paginated {"results": [...]}.
func decodeList(raw json.RawMessage) ([]map[string]interface{}, error) {
	var items []map[string]interface{}
	if len(raw) == 0 {
		return items, nil
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		return items, nil
	}
	var page struct {
		Results []map[string]interface{} `json:"results"`
	}
	if err := json.Unmarshal(raw, &page); err != nil {
		return nil, err
	}
	return page.Results, nil
}

func idOf(data map[string]interface{}) string {
	switch v := data["id"].(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
