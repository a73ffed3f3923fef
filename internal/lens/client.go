// Package lens is a client for the Lens social-graph GraphQL API.
package lens

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lenspost/lenspost/internal/logging"
	"github.com/lenspost/lenspost/internal/metrics"
	"github.com/lenspost/lenspost/internal/util"
	"github.com/lenspost/lenspost/pkg/types"
)

// Request is a GraphQL request body.
type Request struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

// GraphQLError is one entry of a GraphQL "errors" array.
type GraphQLError struct {
	Message    string `json:"message"`
	Extensions struct {
		Code string `json:"code"`
	} `json:"extensions"`
}

type response struct {
	Data   json.RawMessage `json:"data"`
	Errors []GraphQLError  `json:"errors"`
}

// ValidationResult is the outcome of remote metadata validation.
type ValidationResult struct {
	Valid  bool    `json:"valid"`
	Reason *string `json:"reason"`
}

// Client talks to one GraphQL endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	retry      *util.RetryConfig
	metrics    *metrics.Collector
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithRetry sets the backoff for idempotent queries.
func WithRetry(cfg *util.RetryConfig) Option {
	return func(c *Client) { c.retry = cfg }
}

// WithMetrics records per-operation outcomes.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// NewClient creates a client for the API at endpoint.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		retry:      util.DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Endpoint returns the API URL.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// do performs one GraphQL operation and decodes its data into out.
// accessToken is sent as "x-access-token: Bearer <token>" when non-empty.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, accessToken string, out any) (err error) {
	defer func() { c.metrics.ObserveAPIRequest(op, err) }()

	body, err := json.Marshal(Request{OperationName: op, Query: query, Variables: vars})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if accessToken != "" {
		req.Header.Set("x-access-token", "Bearer "+accessToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", op, ctxErr)
		}
		return fmt.Errorf("%s: %w: %v", op, ErrNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%s: %w: failed to read response: %v", op, ErrNetwork, err)
	}

	var gql response
	decodeErr := json.Unmarshal(respBody, &gql)

	if len(gql.Errors) > 0 {
		first := gql.Errors[0]
		return &APIError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Code:       first.Extensions.Code,
			Message:    first.Message,
		}
	}

	if resp.StatusCode >= 400 {
		return &APIError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Message:    http.StatusText(resp.StatusCode),
		}
	}

	if decodeErr != nil {
		return fmt.Errorf("%s: failed to parse response: %w", op, decodeErr)
	}

	logging.Debug("graphql operation completed",
		logging.Component("lens"),
		"operation", op,
		"status", resp.StatusCode,
	)

	if out != nil {
		if err := json.Unmarshal(gql.Data, out); err != nil {
			return fmt.Errorf("%s: failed to decode data: %w", op, err)
		}
	}
	return nil
}

// DefaultProfile resolves the default profile of address. Network failures
// are retried with backoff; a missing profile yields ErrProfileNotFound.
func (c *Client) DefaultProfile(ctx context.Context, address string) (types.Profile, error) {
	cfg := *util.DefaultRetryConfig()
	if c.retry != nil {
		cfg = *c.retry
	}
	cfg.RetryIf = util.RetryOn(ErrNetwork)

	profile, result := util.RetryWithValue(ctx, &cfg, func() (types.Profile, error) {
		var data struct {
			DefaultProfile *types.Profile `json:"defaultProfile"`
		}
		if err := c.do(ctx, OpDefaultProfile, defaultProfileQuery, map[string]any{"address": address}, "", &data); err != nil {
			return types.Profile{}, err
		}
		if data.DefaultProfile == nil || data.DefaultProfile.ID == "" {
			return types.Profile{}, fmt.Errorf("%w for %s", ErrProfileNotFound, address)
		}
		return *data.DefaultProfile, nil
	})
	if result.LastError != nil {
		if result.Attempts > 1 {
			logging.Warn("default profile lookup failed after retries",
				logging.Component("lens"),
				logging.Address(address),
				"attempts", result.Attempts,
				logging.Err(result.LastError),
			)
		}
		return types.Profile{}, result.LastError
	}
	return profile, nil
}

// Challenge requests the text a wallet must sign to log in.
func (c *Client) Challenge(ctx context.Context, address string) (string, error) {
	var data struct {
		Challenge struct {
			Text string `json:"text"`
		} `json:"challenge"`
	}
	if err := c.do(ctx, OpChallenge, challengeQuery, map[string]any{"address": address}, "", &data); err != nil {
		return "", err
	}
	if data.Challenge.Text == "" {
		return "", fmt.Errorf("%s: empty challenge text", OpChallenge)
	}
	return data.Challenge.Text, nil
}

// Authenticate exchanges a signed challenge for a session.
func (c *Client) Authenticate(ctx context.Context, address, signature string) (types.Session, error) {
	var data struct {
		Authenticate types.Session `json:"authenticate"`
	}
	vars := map[string]any{"address": address, "signature": signature}
	if err := c.do(ctx, OpAuthenticate, authenticateMutation, vars, "", &data); err != nil {
		return types.Session{}, err
	}
	if !data.Authenticate.Valid() {
		return types.Session{}, fmt.Errorf("%s: no access token in response", OpAuthenticate)
	}
	return data.Authenticate, nil
}

// Refresh exchanges a refresh token for a new session.
func (c *Client) Refresh(ctx context.Context, refreshToken string) (types.Session, error) {
	var data struct {
		Refresh types.Session `json:"refresh"`
	}
	if err := c.do(ctx, OpRefresh, refreshMutation, map[string]any{"refreshToken": refreshToken}, "", &data); err != nil {
		return types.Session{}, err
	}
	if !data.Refresh.Valid() {
		return types.Session{}, fmt.Errorf("%s: no access token in response", OpRefresh)
	}
	return data.Refresh, nil
}

// Verify reports whether accessToken is still accepted.
func (c *Client) Verify(ctx context.Context, accessToken string) (bool, error) {
	var data struct {
		Verify bool `json:"verify"`
	}
	if err := c.do(ctx, OpVerify, verifyQuery, map[string]any{"accessToken": accessToken}, "", &data); err != nil {
		return false, err
	}
	return data.Verify, nil
}

// ValidateMetadata checks post metadata against the publication schema.
func (c *Client) ValidateMetadata(ctx context.Context, md types.PostMetadata) (ValidationResult, error) {
	var data struct {
		Result ValidationResult `json:"validatePublicationMetadata"`
	}
	if err := c.do(ctx, OpValidateMetadata, validateMetadataQuery, map[string]any{"metadatav2": md}, "", &data); err != nil {
		return ValidationResult{}, err
	}
	return data.Result, nil
}

// CreatePostTypedData requests the EIP-712 payload for a gasless post.
func (c *Client) CreatePostTypedData(ctx context.Context, accessToken string, req types.CreatePostRequest) (types.CreatePostTypedData, error) {
	if accessToken == "" {
		return types.CreatePostTypedData{}, fmt.Errorf("%s: %w: no access token", OpCreatePostTypedData, ErrUnauthorized)
	}

	var data struct {
		Result types.CreatePostTypedData `json:"createPostTypedData"`
	}
	if err := c.do(ctx, OpCreatePostTypedData, createPostTypedDataMutation, map[string]any{"request": req}, accessToken, &data); err != nil {
		return types.CreatePostTypedData{}, err
	}
	return data.Result, nil
}
