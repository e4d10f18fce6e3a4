package actions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/gestione-formulari/dashboard/pkg/common/apperr"
	"github.com/gestione-formulari/dashboard/pkg/common/config"
	"github.com/gestione-formulari/dashboard/pkg/common/logger"
	"github.com/gestione-formulari/dashboard/pkg/common/models"
	"github.com/gestione-formulari/dashboard/pkg/gateway/httpclient"
	"github.com/google/uuid"
)

const maxUpstreamBody = 1 << 20

// Service names used in errors and logs.
const (
	updateService = "update service"
	deleteService = "delete service"
	pecService    = "PEC service"
)

// Result is a successful upstream answer.
type Result struct {
	Status int
	Body   interface{}
}

// Client calls the external update, delete and send-PEC endpoints. It never
// retries.
type Client struct {
	http      *http.Client
	updateURL string
	deleteURL string
	pecURL    string
}

func NewClient(httpClient *http.Client, cfg *config.Config) *Client {
	if httpClient == nil {
		httpClient = httpclient.New(cfg.UpstreamTimeout)
	}
	return &Client{
		http:      httpClient,
		updateURL: cfg.UpdateServiceURL,
		deleteURL: cfg.DeleteServiceURL,
		pecURL:    cfg.PECServiceURL,
	}
}

// Update posts a form-encoded body. Plain-text answers are wrapped as
// {"message": text}.
func (c *Client) Update(ctx context.Context, req UpdateRequest) (Result, error) {
	form := url.Values{}
	form.Set("uid", req.UID)
	if req.NewFir != "" {
		form.Set("new_fir", req.NewFir)
	}
	if req.NewAppuntamento != "" {
		form.Set("new_appuntamento", req.NewAppuntamento)
	}
	return c.do(ctx, updateService, c.updateURL, "application/x-www-form-urlencoded", strings.NewReader(form.Encode()), true)
}

func (c *Client) Delete(ctx context.Context, uids []string) (Result, error) {
	return c.postUIDs(ctx, deleteService, c.deleteURL, uids)
}

func (c *Client) SendPEC(ctx context.Context, uids []string) (Result, error) {
	return c.postUIDs(ctx, pecService, c.pecURL, uids)
}

func (c *Client) postUIDs(ctx context.Context, service, target string, uids []string) (Result, error) {
	b, err := json.Marshal(models.UIDArrayRequest{UIDArray: uids})
	if err != nil {
		return Result{}, err
	}
	return c.do(ctx, service, target, "application/json", bytes.NewReader(b), false)
}

func (c *Client) do(ctx context.Context, service, target, contentType string, body io.Reader, textFallback bool) (Result, error) {
	corrID := logger.RequestIDFromContext(ctx)
	if corrID == "" {
		corrID = uuid.New().String()
	}

	outReq, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return Result{}, fmt.Errorf("build %s request: %w", service, err)
	}
	outReq.Header.Set("Content-Type", contentType)
	outReq.Header.Set("Accept", "application/json")
	outReq.Header.Set("X-Request-ID", corrID)

	resp, err := c.http.Do(outReq)
	if err != nil {
		if httpclient.IsUnreachable(err) {
			return Result{}, &apperr.UnavailableError{Service: service, Err: err}
		}
		return Result{}, fmt.Errorf("call %s: %w", service, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return Result{}, &apperr.UnavailableError{Service: service, Err: err}
	}

	logger.WithFields(map[string]interface{}{
		"url":             target,
		"upstream_status": resp.StatusCode,
		"request_id":      corrID,
	}).Info("Forwarded request to " + service)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &apperr.UpstreamError{
			Service: service,
			Status:  resp.StatusCode,
			Detail:  errorDetail(raw),
		}
	}

	return Result{Status: resp.StatusCode, Body: decodeBody(raw, resp.Status, textFallback)}, nil
}

func decodeBody(raw []byte, status string, textFallback bool) interface{} {
	var out interface{}
	if err := json.Unmarshal(raw, &out); err == nil {
		return out
	}
	text := strings.TrimSpace(string(raw))
	if textFallback || text != "" {
		return map[string]interface{}{"message": text}
	}
	return map[string]interface{}{"status": status}
}

// errorDetail extracts a readable message from an upstream error body.
func errorDetail(raw []byte) string {
	var body map[string]interface{}
	if err := json.Unmarshal(raw, &body); err == nil {
		for _, key := range []string{"detail", "error", "message"} {
			if v, ok := body[key]; ok {
				if s, ok := v.(string); ok {
					return s
				}
				if b, err := json.Marshal(v); err == nil {
					return string(b)
				}
			}
		}
	}
	return strings.TrimSpace(string(raw))
}
