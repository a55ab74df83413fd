package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/pkg/errors"
)

var (
	// errors
	ErrUnauthorized  = errors.New("not authenticated")
	ErrNotFound      = errors.New("not found")
	ErrAlreadyMarked = errors.New("attendance already recorded for this date")
)

// APIError is a non-2xx API response.
type APIError struct {
	StatusCode int
	Message    string
	Fields     map[string]string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error (%d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("api error (%d): %v", e.StatusCode, e.Fields)
}

type Client struct {
	baseURL  string
	httpc    *http.Client
	tokens   TokenStore
	tokenKey string

	// OnUnauthorized is invoked whenever the API responds 401; the stored
	// token is cleared first.
	OnUnauthorized func()
}

func NewClient(baseURL string, tokens TokenStore, tokenKey string) *Client {
	return &Client{
		baseURL:  baseURL,
		httpc:    &http.Client{Timeout: 30 * time.Second},
		tokens:   tokens,
		tokenKey: tokenKey,
	}
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out interface{}) error {
	var reqBody io.Reader
	if body != nil {
		buf := new(bytes.Buffer)
		if err := json.NewEncoder(buf).Encode(body); err != nil {
			return errors.Wrap(err, "encoding request body")
		}
		reqBody = buf
	}

	u := c.baseURL + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reqBody)
	if err != nil {
		return errors.Wrap(err, "creating request")
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token, ok := c.tokens.Get(c.tokenKey); ok {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	res, err := c.httpc.Do(req)
	if err != nil {
		return errors.Wrap(err, "sending request")
	}
	defer func() { _ = res.Body.Close() }()

	switch {
	case res.StatusCode == http.StatusUnauthorized:
		c.tokens.Clear(c.tokenKey)
		if c.OnUnauthorized != nil {
			c.OnUnauthorized()
		}
		return ErrUnauthorized
	case res.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case res.StatusCode == http.StatusConflict:
		return ErrAlreadyMarked
	case res.StatusCode >= http.StatusBadRequest:
		return c.decodeError(res)
	}

	if out != nil {
		if err = json.NewDecoder(res.Body).Decode(out); err != nil {
			return errors.Wrap(err, "decoding response body")
		}
	}
	return nil
}

// decodeError maps an error body to an APIError; the API sends either
// `{"error": "..."}` or a field->message map.
func (c *Client) decodeError(res *http.Response) error {
	apiErr := &APIError{StatusCode: res.StatusCode}

	var raw map[string]string
	if err := json.NewDecoder(res.Body).Decode(&raw); err != nil {
		apiErr.Message = http.StatusText(res.StatusCode)
		return apiErr
	}
	if msg, ok := raw["error"]; ok && len(raw) == 1 {
		apiErr.Message = msg
		return apiErr
	}
	apiErr.Fields = raw
	return apiErr
}

// Login authenticates against the API and stores the token for subsequent calls.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body := map[string]string{"username": username, "password": password}
	var res struct {
		Token string `json:"token"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/users/login", nil, body, &res); err != nil {
		return err
	}
	c.tokens.Set(c.tokenKey, res.Token)
	return nil
}

// Logout drops the stored token.
func (c *Client) Logout() {
	c.tokens.Clear(c.tokenKey)
}

// HomeroomClass returns the authenticated teacher's homeroom class;
// ErrNotFound when no class is assigned.
func (c *Client) HomeroomClass(ctx context.Context) (Class, error) {
	var cls Class
	err := c.do(ctx, http.MethodGet, "/api/teachers/me/class", nil, nil, &cls)
	return cls, err
}

// Roster returns a class's students ordered by roll number.
func (c *Client) Roster(ctx context.Context, classID string) (Roster, error) {
	var roster Roster
	err := c.do(ctx, http.MethodGet, "/api/classes/"+classID+"/roster", nil, nil, &roster)
	return roster, err
}

// Attendance returns the attendance record for (class, date); ErrNotFound
// when the day has not been marked yet.
func (c *Client) Attendance(ctx context.Context, classID, date string) (AttendanceRecord, error) {
	q := url.Values{"date": {date}}
	var rec AttendanceRecord
	err := c.do(ctx, http.MethodGet, "/api/classes/"+classID+"/attendance", q, nil, &rec)
	return rec, err
}

// MarkAttendance submits a bulk roll call for (class, sa.Date);
// ErrAlreadyMarked when the day was already recorded.
func (c *Client) MarkAttendance(ctx context.Context, classID string, sa SubmitAttendance) (AttendanceRecord, error) {
	var rec AttendanceRecord
	err := c.do(ctx, http.MethodPost, "/api/classes/"+classID+"/attendance", nil, sa, &rec)
	return rec, err
}

// AttendanceHistory returns a class's per-day summaries, most recent first.
func (c *Client) AttendanceHistory(ctx context.Context, classID, start, end string) ([]DaySummary, error) {
	q := make(url.Values)
	if start != "" {
		q.Set("start", start)
	}
	if end != "" {
		q.Set("end", end)
	}
	var summaries []DaySummary
	err := c.do(ctx, http.MethodGet, "/api/classes/"+classID+"/attendance/history", q, nil, &summaries)
	return summaries, err
}
