// Package client is a Go client for the workflow HTTP API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/dbca-wa/science-projects-service-sub000/pkg/domain"
	"github.com/dbca-wa/science-projects-service-sub000/pkg/httpx"
)

type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Bearer     string
}

func New(baseURL, bearer string) *Client {
	return &Client{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{},
		Bearer:     bearer,
	}
}

// APIError is a non-2xx response. It unwraps to the domain error matching
// its code, so errors.Is(err, domain.ErrGuardViolation) works on the client
// side too.
type APIError struct {
	StatusCode int
	RequestID  string
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
}

var codeErrors = map[string]error{
	"NOT_FOUND":             domain.ErrNotFound,
	"INVALID_STAGE":         domain.ErrInvalidStage,
	"GUARD_VIOLATION":       domain.ErrGuardViolation,
	"ROLE_MISMATCH":         domain.ErrRoleMismatch,
	"OUT_OF_ORDER_APPROVAL": domain.ErrOutOfOrderApproval,
	"FORBIDDEN":             domain.ErrForbidden,
	"CONFLICT":              domain.ErrConflict,
	"INVALID_KIND":          domain.ErrInvalidKind,
}

func (e *APIError) Unwrap() error { return codeErrors[e.Code] }

type DocumentResponse struct {
	RequestID string          `json:"request_id"`
	Document  domain.Document `json:"document"`
}

type EndorsementResponse struct {
	RequestID   string             `json:"request_id"`
	Endorsement domain.Endorsement `json:"endorsement"`
}

type EventsResponse struct {
	RequestID string                 `json:"request_id"`
	Events    []domain.DocumentEvent `json:"events"`
}

type DocumentSummary struct {
	ID                  domain.DocumentID     `json:"id"`
	Kind                domain.DocumentKind   `json:"kind"`
	Status              domain.DocumentStatus `json:"status"`
	ProjectID           domain.ProjectID      `json:"project_id"`
	ProjectTitle        string                `json:"project_title"`
	LeadApproved        bool                  `json:"lead_approved"`
	AreaApproved        bool                  `json:"area_approved"`
	DirectorateApproved bool                  `json:"directorate_approved"`
}

type PendingActions struct {
	All          []DocumentSummary `json:"all"`
	Team         []DocumentSummary `json:"team"`
	Area         []DocumentSummary `json:"area"`
	Directorate  []DocumentSummary `json:"directorate"`
	Biometrician []DocumentSummary `json:"biometrician"`
	AEC          []DocumentSummary `json:"aec"`
	Herbarium    []DocumentSummary `json:"herbarium"`
}

type PendingResponse struct {
	RequestID string         `json:"request_id"`
	UserID    domain.UserID  `json:"user_id"`
	Pending   PendingActions `json:"pending"`
}

type SpawnFailure struct {
	ProjectID domain.ProjectID `json:"project_id"`
	Reason    string           `json:"reason"`
}

type SpawnResult struct {
	AnnualReportID domain.AnnualReportID `json:"annual_report_id"`
	Year           int                   `json:"year"`
	Created        []domain.DocumentID   `json:"created"`
	Failed         []SpawnFailure        `json:"failed"`
	Skipped        []domain.ProjectID    `json:"skipped"`
}

type SpawnResponse struct {
	RequestID string      `json:"request_id"`
	Result    SpawnResult `json:"result"`
}

// CodeSpawnIncomplete is the error code of a reporting cycle in which some
// projects failed.
const CodeSpawnIncomplete = "SPAWN_INCOMPLETE"

// Transition posts action (advance, recall or send-back) for stage.
func (c *Client) Transition(ctx context.Context, documentID, action string, stage int, idempotencyKey string) (*DocumentResponse, error) {
	u := fmt.Sprintf("%s/workflow/documents/%s/actions/%s", c.BaseURL, url.PathEscape(documentID), url.PathEscape(action))
	req, err := c.newJSONRequest(ctx, http.MethodPost, u, map[string]any{"stage": stage}, idempotencyKey)
	if err != nil {
		return nil, err
	}
	return doJSON[DocumentResponse](c, req)
}

func (c *Client) Document(ctx context.Context, documentID string) (*DocumentResponse, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, fmt.Sprintf("%s/workflow/documents/%s", c.BaseURL, url.PathEscape(documentID)), nil, "")
	if err != nil {
		return nil, err
	}
	return doJSON[DocumentResponse](c, req)
}

func (c *Client) Events(ctx context.Context, documentID string) (*EventsResponse, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, fmt.Sprintf("%s/workflow/documents/%s/events", c.BaseURL, url.PathEscape(documentID)), nil, "")
	if err != nil {
		return nil, err
	}
	return doJSON[EventsResponse](c, req)
}

func (c *Client) Endorsement(ctx context.Context, documentID string) (*EndorsementResponse, error) {
	req, err := c.newJSONRequest(ctx, http.MethodGet, fmt.Sprintf("%s/workflow/documents/%s/endorsement", c.BaseURL, url.PathEscape(documentID)), nil, "")
	if err != nil {
		return nil, err
	}
	return doJSON[EndorsementResponse](c, req)
}

// CreateDocument creates a document of kind on a project. annualReportID is
// required for report kinds and ignored when empty.
func (c *Client) CreateDocument(ctx context.Context, projectID, kind, annualReportID, idempotencyKey string) (*DocumentResponse, error) {
	body := map[string]any{"kind": kind}
	if annualReportID != "" {
		body["annual_report_id"] = annualReportID
	}
	u := fmt.Sprintf("%s/workflow/projects/%s/documents", c.BaseURL, url.PathEscape(projectID))
	req, err := c.newJSONRequest(ctx, http.MethodPost, u, body, idempotencyKey)
	if err != nil {
		return nil, err
	}
	return doJSON[DocumentResponse](c, req)
}

func (c *Client) SetInvolvement(ctx context.Context, documentID string, animals, plants bool) (*EndorsementResponse, error) {
	u := fmt.Sprintf("%s/workflow/documents/%s/endorsement/involvement", c.BaseURL, url.PathEscape(documentID))
	req, err := c.newJSONRequest(ctx, http.MethodPut, u, map[string]any{"involves_animals": animals, "involves_plants": plants}, "")
	if err != nil {
		return nil, err
	}
	return doJSON[EndorsementResponse](c, req)
}

func (c *Client) ProvideEndorsement(ctx context.Context, documentID, kind, idempotencyKey string) (*EndorsementResponse, error) {
	u := fmt.Sprintf("%s/workflow/documents/%s/endorsement/provide", c.BaseURL, url.PathEscape(documentID))
	req, err := c.newJSONRequest(ctx, http.MethodPost, u, map[string]any{"kind": kind}, idempotencyKey)
	if err != nil {
		return nil, err
	}
	return doJSON[EndorsementResponse](c, req)
}

// Pending returns the queues of userID, or of the caller when userID is empty.
func (c *Client) Pending(ctx context.Context, userID string) (*PendingResponse, error) {
	u := c.BaseURL + "/workflow/me/pending"
	if userID != "" {
		u = fmt.Sprintf("%s/workflow/users/%s/pending", c.BaseURL, url.PathEscape(userID))
	}
	req, err := c.newJSONRequest(ctx, http.MethodGet, u, nil, "")
	if err != nil {
		return nil, err
	}
	return doJSON[PendingResponse](c, req)
}

// Spawn opens the reporting cycle of an annual report. When some projects
// fail the server answers with CodeSpawnIncomplete; Spawn then returns the
// partial result together with the *APIError.
func (c *Client) Spawn(ctx context.Context, annualReportID, idempotencyKey string) (*SpawnResponse, error) {
	u := fmt.Sprintf("%s/workflow/annual-reports/%s/spawn", c.BaseURL, url.PathEscape(annualReportID))
	req, err := c.newJSONRequest(ctx, http.MethodPost, u, nil, idempotencyKey)
	if err != nil {
		return nil, err
	}
	body, err := c.do(req)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == CodeSpawnIncomplete {
			var out SpawnResponse
			if jerr := json.Unmarshal(body, &out); jerr == nil {
				return &out, err
			}
		}
		return nil, err
	}
	var out SpawnResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) newJSONRequest(ctx context.Context, method, u string, in any, idempotencyKey string) (*http.Request, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}
	return req, nil
}

// do sends req and returns the response body. A non-2xx status is an
// *APIError; the body is returned with it.
func (c *Client) do(req *http.Request) ([]byte, error) {
	if c.Bearer != "" {
		req.Header.Set("Authorization", "Bearer "+c.Bearer)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 300 {
		var env httpx.ErrorEnvelope
		_ = json.Unmarshal(body, &env)
		return body, &APIError{
			StatusCode: resp.StatusCode,
			RequestID:  env.RequestID,
			Code:       env.Error.Code,
			Message:    env.Error.Message,
		}
	}
	return body, nil
}

func doJSON[T any](c *Client, req *http.Request) (*T, error) {
	body, err := c.do(req)
	if err != nil {
		return nil, err
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
