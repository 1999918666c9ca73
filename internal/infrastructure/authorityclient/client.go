// Package authorityclient talks to the authority's HTTP surface on behalf of a device.
//
// Transport failures and 5xx answers wrap domain.ErrSyncUnavailable. Other
// non-2xx answers are mapped back to the domain sentinel the authority used.
package authorityclient

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
	"time"

	"github.com/go-bank-sync/internal/application/otp"
	"github.com/go-bank-sync/internal/domain"
)

type Client struct {
	baseURL string
	http    *http.Client
}

// New builds a client for the authority at baseURL. timeout bounds every request.
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// remoteError carries the authority's message while unwrapping to the sentinel
// that produced the status code.
type remoteError struct {
	status int
	msg    string
	kind   error
}

func (e *remoteError) Error() string {
	if e.msg == "" {
		return fmt.Sprintf("authority answered %d: %s", e.status, e.kind)
	}
	return e.msg
}

func (e *remoteError) Unwrap() error { return e.kind }

type syncEnvelope[T any] struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    T      `json:"data"`
}

type otpEnvelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	ExpiresIn int    `json:"expiresIn"`
}

type balanceBody struct {
	Email   string  `json:"email"`
	Balance float64 `json:"balance"`
}

type otpStatusEnvelope struct {
	Verified         bool `json:"verified"`
	RemainingSeconds int  `json:"remainingSeconds"`
}

func statusKind(status int) error {
	switch {
	case status == http.StatusBadRequest:
		return domain.ErrValidation
	case status == http.StatusUnauthorized:
		return domain.ErrUnauthorized
	case status == http.StatusForbidden:
		return domain.ErrForbidden
	case status == http.StatusNotFound:
		return domain.ErrNotFound
	case status == http.StatusConflict:
		return domain.ErrConflict
	case status == http.StatusGone:
		return domain.ErrExpired
	case status == http.StatusTooManyRequests:
		return domain.ErrTooManyAttempts
	default:
		return domain.ErrSyncUnavailable
	}
}

// do sends body (if non-nil) as JSON and decodes a 2xx answer into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %v: %w", method, path, err, domain.ErrSyncUnavailable)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s %s: %v: %w", method, path, err, domain.ErrSyncUnavailable)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var env struct {
			Message string `json:"message"`
			Error   string `json:"error"`
		}
		_ = json.Unmarshal(raw, &env)
		msg := env.Message
		if msg == "" {
			msg = env.Error
		}
		kind := statusKind(resp.StatusCode)
		if resp.StatusCode == http.StatusTooManyRequests && resp.Header.Get("Retry-After") != "" {
			// Throttled by the authority's limiter; the code itself is untouched.
			kind = domain.ErrSyncUnavailable
		}
		return &remoteError{status: resp.StatusCode, msg: msg, kind: kind}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s %s: %v: %w", method, path, err, domain.ErrSyncUnavailable)
	}
	return nil
}

func fetchData[T any](ctx context.Context, c *Client, path string) (T, error) {
	var env syncEnvelope[T]
	err := c.do(ctx, http.MethodGet, path, nil, &env)
	return env.Data, err
}

func pushData[T any](ctx context.Context, c *Client, path string, body any) (T, error) {
	var env syncEnvelope[T]
	err := c.do(ctx, http.MethodPost, path, body, &env)
	return env.Data, err
}

// --- OTP authority ---

func (c *Client) Issue(ctx context.Context, address string) (*otp.IssueResult, error) {
	var env otpEnvelope
	if err := c.do(ctx, http.MethodPost, "/otp/issue", map[string]string{"address": address}, &env); err != nil {
		return nil, err
	}
	return &otp.IssueResult{ExpiresIn: env.ExpiresIn}, nil
}

// Verify maps a 401 to domain.ErrMismatch; the authority answers wrong codes that way.
func (c *Client) Verify(ctx context.Context, address, code string) error {
	err := c.do(ctx, http.MethodPost, "/otp/verify", map[string]string{"address": address, "code": code}, nil)
	var re *remoteError
	if errors.As(err, &re) && re.status == http.StatusUnauthorized {
		re.kind = domain.ErrMismatch
	}
	return err
}

func (c *Client) Clear(ctx context.Context, address string) error {
	return c.do(ctx, http.MethodPost, "/otp/clear", map[string]string{"address": address}, nil)
}

func (c *Client) Status(ctx context.Context, address string) (*otp.Status, error) {
	var env otpStatusEnvelope
	if err := c.do(ctx, http.MethodPost, "/otp/status", map[string]string{"address": address}, &env); err != nil {
		return nil, err
	}
	return &otp.Status{Verified: env.Verified, RemainingSeconds: env.RemainingSeconds}, nil
}

// --- profiles ---

func (c *Client) FetchProfile(ctx context.Context, email string) (*domain.Profile, error) {
	p, err := fetchData[domain.Profile](ctx, c, "/sync/profile/"+url.PathEscape(email))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) PushProfile(ctx context.Context, email string, patch domain.ProfilePatch) error {
	_, err := pushData[domain.Profile](ctx, c, "/sync/profile/"+url.PathEscape(email), patch)
	return err
}

func (c *Client) FetchBalance(ctx context.Context, email string) (float64, error) {
	out, err := fetchData[balanceBody](ctx, c, "/sync/balance?email="+url.QueryEscape(email))
	return out.Balance, err
}

func (c *Client) PushBalance(ctx context.Context, email string, balance float64) error {
	_, err := pushData[domain.Profile](ctx, c, "/sync/balance", balanceBody{Email: email, Balance: balance})
	return err
}

// --- policies ---

func (c *Client) FetchGlobalPolicy(ctx context.Context) (*domain.GlobalPolicy, error) {
	g, err := fetchData[domain.GlobalPolicy](ctx, c, "/sync/policy/global")
	if err != nil {
		return nil, err
	}
	return &g, nil
}

func (c *Client) PushGlobalPolicy(ctx context.Context, patch domain.GlobalPolicyPatch) error {
	_, err := pushData[domain.GlobalPolicy](ctx, c, "/sync/policy/global", patch)
	return err
}

func (c *Client) FetchUserPolicies(ctx context.Context) (map[string]domain.UserPolicy, error) {
	return fetchData[map[string]domain.UserPolicy](ctx, c, "/sync/policy/user")
}

func (c *Client) FetchUserPolicy(ctx context.Context, userID string) (*domain.UserPolicy, error) {
	p, err := fetchData[domain.UserPolicy](ctx, c, "/sync/policy/user/"+url.PathEscape(userID))
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) PushUserPolicies(ctx context.Context, patches map[string]domain.UserPolicyPatch) error {
	_, err := pushData[map[string]domain.UserPolicy](ctx, c, "/sync/policy/user/bulk",
		map[string]any{"policies": patches})
	return err
}

// --- registry ---

func (c *Client) FetchRegistry(ctx context.Context) ([]domain.RegistryUser, error) {
	return fetchData[[]domain.RegistryUser](ctx, c, "/sync/registry")
}

func (c *Client) PushRegistry(ctx context.Context, users []domain.RegistryUser) error {
	_, err := pushData[[]domain.RegistryUser](ctx, c, "/sync/registry", map[string]any{"users": users})
	return err
}

func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}
