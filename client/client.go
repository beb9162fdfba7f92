// Package client is a REST client for the v2 case management API. Each API
// endpoint is exposed as a Resource returning lazily loaded Objects.
package client

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/hashicorp/go-hclog"
)

// Client groups the API resources.
type Client struct {
	Submissions                        *Resource
	SubmissionOrganisationMergeRecords *Resource
	Users                              *Resource
	Cases                              *Resource
	Documents                          *Resource
	DocumentBundles                    *Resource
	Invitations                        *Resource
	Organisations                      *Resource
	Contacts                           *Resource
	CaseContacts                       *Resource
	TwoFactorAuths                     *Resource
	FeatureFlags                       *Resource
	Feedback                           *Resource
	OrganisationCaseRoles              *Resource

	cfg        Config
	logger     hclog.Logger
	audit      hclog.Logger
	byEndpoint map[string]*Resource
}

// New returns a Client. cfg is validated after defaults are applied.
func New(cfg Config) (*Client, error) {
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid API client config: %w", err)
	}
	c := &Client{
		cfg:    cfg,
		logger: cfg.Logger,
		audit:  cfg.Logger.Named("audit_trail"),
	}
	c.Submissions = c.resource("submissions")
	c.SubmissionOrganisationMergeRecords = c.resource("submission_organisation_merge_records")
	c.Users = c.resource("users")
	c.Cases = c.resource("cases")
	c.Documents = c.resource("documents")
	c.DocumentBundles = c.resource("document_bundles")
	c.Invitations = c.resource("invitations")
	c.Organisations = c.resource("organisations")
	c.Contacts = c.resource("contacts")
	c.CaseContacts = c.resource("case_contacts")
	c.TwoFactorAuths = c.resource("two_factor_auths")
	c.FeatureFlags = c.resource("django-feature-flags")
	c.Feedback = c.resource("feedback")
	c.OrganisationCaseRoles = c.resource("organisation_case_roles")
	return c, nil
}

func (c *Client) resource(endpoint string) *Resource {
	r := &Resource{client: c, endpoint: endpoint}
	if c.byEndpoint == nil {
		c.byEndpoint = map[string]*Resource{}
	}
	c.byEndpoint[endpoint] = r
	return r
}

// Resource returns the resource for an endpoint name such as "submissions".
func (c *Client) Resource(endpoint string) (*Resource, error) {
	r, ok := c.byEndpoint[endpoint]
	if !ok {
		return nil, fmt.Errorf("unknown endpoint %q", endpoint)
	}
	return r, nil
}

// Query holds the optional parts of a request URL.
type Query struct {
	// Fields limits the returned fields; sent as query={a,b}.
	Fields []string
	// Params are appended verbatim.
	Params url.Values
	// Filters are sent as URL-safe base64 JSON in filter_parameters.
	Filters map[string]interface{}
}

// URL returns <base>/api/v2/<path>/ with q encoded as query parameters.
func (c *Client) URL(path string, q Query) (string, error) {
	u := fmt.Sprintf("%s/api/v2/%s/", c.cfg.BaseURL, strings.Trim(path, "/"))

	values := url.Values{}
	for k, vs := range q.Params {
		for _, v := range vs {
			values.Add(k, v)
		}
	}
	if len(q.Fields) > 0 {
		values.Set("query", "{"+strings.Join(q.Fields, ",")+"}")
	}
	if len(q.Filters) > 0 {
		raw, err := json.Marshal(q.Filters)
		if err != nil {
			return "", fmt.Errorf("encoding filter parameters: %w", err)
		}
		values.Set("filter_parameters", base64.URLEncoding.EncodeToString(raw))
	}
	if enc := values.Encode(); enc != "" {
		u += "?" + enc
	}
	return u, nil
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// do sends a JSON request and decodes the JSON response into out, if non-nil.
// Server errors and transport failures are retried with exponential backoff.
func (c *Client) do(ctx context.Context, method, rawURL string, body, out interface{}) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
	}

	var respBody []byte
	var status int
	op := func() error {
		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
		if err != nil {
			return backoff.Permanent(&APIRequestError{Message: "building request", Err: err})
		}
		req.Header.Set("Authorization", c.cfg.Scheme+" "+c.cfg.Token)
		req.Header.Set("X-Origin-Environment", c.cfg.EnvironmentKey)
		req.Header.Set("Accept", "application/json")
		if payload != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := c.cfg.HTTPClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			c.logger.Debug("request failed, retrying", "method", method, "url", rawURL, "error", err)
			return &APIRequestError{Message: "request failed", Err: err}
		}
		defer resp.Body.Close()

		respBody, err = io.ReadAll(resp.Body)
		if err != nil {
			return &APIRequestError{StatusCode: resp.StatusCode, Message: "reading response", Err: err}
		}
		status = resp.StatusCode
		return c.checkStatus(rawURL, resp.StatusCode, respBody)
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = c.cfg.RetryInterval
	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(policy, uint64(c.cfg.MaxRetries)), ctx))

	if isMutating(method) {
		c.audit.Info("AUDIT LOG", "method", method, "url", redactQuery(rawURL), "status", status, "ok", err == nil)
	}
	if err != nil {
		return err
	}
	if out != nil && len(bytes.TrimSpace(respBody)) > 0 {
		if err := json.Unmarshal(respBody, out); err != nil {
			return &APIRequestError{StatusCode: status, Message: "decoding response", Err: err}
		}
	}
	return nil
}

func (c *Client) checkStatus(rawURL string, status int, body []byte) error {
	switch {
	case status >= 200 && status < 300:
		return nil
	case status == http.StatusNotFound:
		return backoff.Permanent(&NotFoundError{URL: rawURL})
	case status >= 400 && status < 500:
		var decoded interface{}
		if err := json.Unmarshal(body, &decoded); err != nil {
			decoded = string(body)
		}
		return backoff.Permanent(&ClientError{StatusCode: status, Body: decoded})
	case status >= 500:
		c.logger.Debug("server error, retrying", "url", rawURL, "status", status)
		return &APIRequestError{StatusCode: status}
	}
	return backoff.Permanent(&APIRequestError{StatusCode: status, Message: "unexpected response"})
}

func redactQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '?'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// HealthCheck returns the body of <base>/healthcheck.
func (c *Client) HealthCheck(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.BaseURL+"/healthcheck", nil)
	if err != nil {
		return "", err
	}
	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return "", &APIRequestError{Message: "health check failed", Err: err}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &APIRequestError{StatusCode: resp.StatusCode, Message: "reading health check", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		return string(body), &APIRequestError{StatusCode: resp.StatusCode, Message: "health check failed"}
	}
	return string(body), nil
}

// GetUserByEmail looks a user up by email address.
func (c *Client) GetUserByEmail(ctx context.Context, email string) (map[string]interface{}, error) {
	u, err := c.URL("users/get_user_by_email/"+url.PathEscape(email), Query{})
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	return out, c.do(ctx, http.MethodGet, u, nil, &out)
}

// Login exchanges credentials for a session payload. extra is merged into
// the request body.
func (c *Client) Login(ctx context.Context, email, password, invitationCode string, extra map[string]interface{}) (map[string]interface{}, error) {
	body := map[string]interface{}{}
	for k, v := range extra {
		body[k] = v
	}
	body["email"] = email
	body["password"] = password
	if invitationCode != "" {
		body["invitation_code"] = invitationCode
	} else {
		body["invitation_code"] = nil
	}
	u, err := c.URL("login", Query{})
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	return out, c.do(ctx, http.MethodPost, u, body, &out)
}

// CreateDocument posts a new document record.
func (c *Client) CreateDocument(ctx context.Context, data map[string]interface{}) (map[string]interface{}, error) {
	u, err := c.URL(c.Documents.endpoint, Query{})
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	return out, c.do(ctx, http.MethodPost, u, data, &out)
}

// SendInvitation triggers delivery of an invitation.
func (c *Client) SendInvitation(ctx context.Context, invitationID string) (map[string]interface{}, error) {
	u, err := c.URL(c.Invitations.retrievePath(invitationID, "send_invitation"), Query{})
	if err != nil {
		return nil, err
	}
	var out map[string]interface{}
	return out, c.do(ctx, http.MethodPost, u, map[string]interface{}{}, &out)
}

// ChangeOrganisation moves a contact to another organisation.
func (c *Client) ChangeOrganisation(ctx context.Context, contactID, organisationID string) (interface{}, error) {
	return c.Contacts.Get(contactID).CustomAction(ctx, http.MethodPatch, "change_organisation",
		map[string]interface{}{"organisation_id": organisationID})
}

// UpdateSubmissionStatus sets a submission's status.
func (c *Client) UpdateSubmissionStatus(ctx context.Context, submissionID, status string) (interface{}, error) {
	return c.Submissions.Get(submissionID).CustomAction(ctx, http.MethodPut, "update_submission_status",
		map[string]interface{}{"new_status": status}, "id")
}

// AddOrganisationToRegistrationOfInterest attaches an organisation to a
// registration of interest submission.
func (c *Client) AddOrganisationToRegistrationOfInterest(ctx context.Context, submissionID, organisationID string) (interface{}, error) {
	return c.Submissions.Get(submissionID).CustomAction(ctx, http.MethodPut, "add_organisation_to_registration_of_interest",
		map[string]interface{}{"organisation_id": organisationID}, "id")
}

// GetWithCaseAndOrganisation returns the lazily loaded organisation case
// role linking a case and an organisation.
func (c *Client) GetWithCaseAndOrganisation(organisationID, caseID string) (*Object, error) {
	params := url.Values{}
	params.Set("case_id", caseID)
	params.Set("organisation_id", organisationID)
	u, err := c.URL(c.OrganisationCaseRoles.endpoint, Query{Params: params})
	if err != nil {
		return nil, err
	}
	return c.OrganisationCaseRoles.lazy("", u), nil
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
