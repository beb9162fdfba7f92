package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Object is a single API record. Objects returned by Resource.Get are
// lazy: the first data access fetches them. Objects are safe for
// concurrent use.
type Object struct {
	resource     *Resource
	id           string
	retrievalURL string
	urlErr       error

	mu     sync.Mutex
	data   map[string]interface{}
	loaded bool
}

// ID returns the object id, which may be empty for objects looked up by
// query parameters.
func (o *Object) ID() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.id
}

// Loaded reports whether the object's data has been fetched.
func (o *Object) Loaded() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loaded
}

// String returns e.g. "submission object 42".
func (o *Object) String() string {
	return fmt.Sprintf("%s object %s", strings.TrimSuffix(o.resource.endpoint, "s"), o.ID())
}

// Data returns the object's fields, fetching them on first use.
func (o *Object) Data(ctx context.Context) (map[string]interface{}, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loaded {
		return o.data, nil
	}
	if o.urlErr != nil {
		return nil, o.urlErr
	}
	var data map[string]interface{}
	if err := o.resource.client.do(ctx, http.MethodGet, o.retrievalURL, nil, &data); err != nil {
		return nil, err
	}
	o.setLocked(data)
	return o.data, nil
}

func (o *Object) setLocked(data map[string]interface{}) {
	if data == nil {
		data = map[string]interface{}{}
	}
	o.data = data
	o.loaded = true
	if o.id == "" {
		o.id = idOf(data)
	}
}

// Get looks up a dotted path such as "type.name".
func (o *Object) Get(ctx context.Context, path string) (interface{}, error) {
	data, err := o.Data(ctx)
	if err != nil {
		return nil, err
	}
	var cur interface{} = data
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, path)
		}
		if cur, ok = m[key]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrFieldNotFound, path)
		}
	}
	return cur, nil
}

// GetString returns the string at path, or "" when it is absent or not a string.
func (o *Object) GetString(ctx context.Context, path string) (string, error) {
	v, err := o.Get(ctx, path)
	if err != nil {
		return "", err
	}
	s, _ := v.(string)
	return s, nil
}

// Time parses the RFC 3339 timestamp at path.
func (o *Object) Time(ctx context.Context, path string) (time.Time, error) {
	s, err := o.GetString(ctx, path)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("%s is not a timestamp: %w", path, err)
	}
	return t, nil
}

// Has reports whether key is a top-level field.
func (o *Object) Has(ctx context.Context, key string) (bool, error) {
	data, err := o.Data(ctx)
	if err != nil {
		return false, err
	}
	_, ok := data[key]
	return ok, nil
}

// Keys returns the top-level field names in sorted order.
func (o *Object) Keys(ctx context.Context) ([]string, error) {
	data, err := o.Data(ctx)
	if err != nil {
		return nil, err
	}
	return sortedKeys(data), nil
}

// Refresh fetches the object again. With clearQuery the query parameters
// used for the original retrieval are dropped.
func (o *Object) Refresh(ctx context.Context, clearQuery bool) error {
	u := o.retrievalURL
	if clearQuery {
		var err error
		if u, err = o.resource.client.URL(o.resource.retrievePath(o.ID()), Query{}); err != nil {
			return err
		}
	}
	var data map[string]interface{}
	if err := o.resource.client.do(ctx, http.MethodGet, u, nil, &data); err != nil {
		return err
	}
	o.mu.Lock()
	o.setLocked(data)
	o.mu.Unlock()
	return nil
}

// Update patches the object and returns the updated copy.
func (o *Object) Update(ctx context.Context, data map[string]interface{}, fields ...string) (*Object, error) {
	return o.resource.Update(ctx, o.ID(), data, fields...)
}

// Delete removes the object.
func (o *Object) Delete(ctx context.Context) error {
	return o.resource.Delete(ctx, o.ID())
}

// CustomAction calls <endpoint>/<id>/<action>/ with method. GET requests
// carry no body; other methods send data, or {} when data is nil. The
// decoded response is returned as is.
func (o *Object) CustomAction(ctx context.Context, method, action string, data map[string]interface{}, fields ...string) (interface{}, error) {
	u, err := o.resource.client.URL(o.resource.retrievePath(o.ID(), action), Query{Fields: fields})
	if err != nil {
		return nil, err
	}
	method = strings.ToUpper(method)
	var body interface{}
	if method != http.MethodGet {
		if data == nil {
			data = map[string]interface{}{}
		}
		body = data
	}
	var out interface{}
	if err := o.resource.client.do(ctx, method, u, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MarshalJSON encodes the loaded fields. An object that was never fetched
// encodes as {"id": ...}.
func (o *Object) MarshalJSON() ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.loaded {
		return json.Marshal(map[string]interface{}{"id": o.id})
	}
	return json.Marshal(o.data)
}
