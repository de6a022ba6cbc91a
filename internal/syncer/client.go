package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rldls/doorlog/internal/errors"
	"github.com/rldls/doorlog/internal/models"
)

// Remote is the write boundary the drain loop pushes against. A timeout
// is indistinguishable from a dead network and maps to the same
// transient error.
type Remote interface {
	CreateLog(ctx context.Context, e *models.Event) error
	DeleteLog(ctx context.Context, timestamp string) error
	LastLog(ctx context.Context, user string) (*models.UserPosition, error)
	Ping(ctx context.Context) error
}

// HTTPRemote talks to a doorlogd server.
type HTTPRemote struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPRemote creates a Remote against the server base URL.
func NewHTTPRemote(baseURL string, timeout time.Duration) *HTTPRemote {
	return &HTTPRemote{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// CreateLog posts one event.
func (r *HTTPRemote) CreateLog(ctx context.Context, e *models.Event) error {
	return r.post(ctx, "/log", e)
}

// DeleteLog posts a deletion by timestamp.
func (r *HTTPRemote) DeleteLog(ctx context.Context, timestamp string) error {
	return r.post(ctx, "/delete-log", map[string]string{"timestampToDelete": timestamp})
}

// LastLog fetches the most recent known position for a user.
func (r *HTTPRemote) LastLog(ctx context.Context, user string) (*models.UserPosition, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		r.baseURL+"/last-log?user="+url.QueryEscape(user), nil)
	if err != nil {
		return nil, err
	}

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrap(errors.ErrTransientRemote, "last-log request failed", err)
	}
	defer resp.Body.Close()

	if err := classify(resp); err != nil {
		return nil, err
	}

	var body struct {
		LastLog *models.UserPosition `json:"lastLog"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, errors.Wrap(errors.ErrTransientRemote, "last-log response unreadable", err)
	}
	if body.LastLog == nil {
		return nil, errors.New(errors.ErrNotFoundRemote, "no last log")
	}
	return body.LastLog, nil
}

// Ping probes connectivity via the health endpoint.
func (r *HTTPRemote) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrTransientRemote, "server unreachable", err)
	}
	defer resp.Body.Close()
	return classify(resp)
}

func (r *HTTPRemote) post(ctx context.Context, path string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(errors.ErrValidation, "unencodable payload", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(errors.ErrTransientRemote, "request failed", err)
	}
	defer resp.Body.Close()
	return classify(resp)
}

// classify maps response status to the error taxonomy. 5xx is transient
// (the store behind the server may be flapping); 4xx is terminal and
// never retried.
func classify(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}

	detail := readDetail(resp)
	switch resp.StatusCode {
	case http.StatusBadRequest:
		return errors.New(errors.ErrValidation, detail)
	case http.StatusConflict:
		return errors.New(errors.ErrDuplicate, detail)
	case http.StatusNotFound:
		return errors.New(errors.ErrNotFoundRemote, detail)
	default:
		return errors.New(errors.ErrTransientRemote,
			fmt.Sprintf("server returned %d: %s", resp.StatusCode, detail))
	}
}

func readDetail(resp *http.Response) string {
	var body struct {
		Error   string `json:"error"`
		Details string `json:"details"`
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil || json.Unmarshal(data, &body) != nil || body.Error == "" {
		return resp.Status
	}
	if body.Details != "" {
		return body.Error + ": " + body.Details
	}
	return body.Error
}
