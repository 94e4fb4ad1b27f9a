package posapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/mmdatafocus/pos_backend/config"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// Client talks to the retail backend that owns products, customers,
// promotions and transactions. It implements every collaborator contract
// the checkout engine needs.
type Client struct {
	baseURL     string
	apiKey      string
	apiKeyHdr   string
	printerName string
	http        *http.Client
	limiter     *rate.Limiter
	validate    *validator.Validate
	tracer      trace.Tracer
	logger      logrus.FieldLogger
}

func NewClient(cfg config.PosAPISettings) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		return nil, errors.New("pos api base url is empty")
	}
	hdr := cfg.APIKeyHeader
	if hdr == "" {
		hdr = "X-API-Key"
	}
	rps := cfg.RatePerSecond
	if rps <= 0 {
		rps = 20
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	logger := logrus.FieldLogger(logrus.StandardLogger())
	if l := config.GetLogger(); l != nil {
		logger = l
	}
	return &Client{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		apiKeyHdr:   hdr,
		printerName: cfg.PrinterName,
		http:        &http.Client{Timeout: timeout},
		limiter:     rate.NewLimiter(rate.Limit(rps), burst),
		validate:    validator.New(),
		tracer:      otel.Tracer("github.com/mmdatafocus/pos_backend/posapi"),
		logger:      logger.WithField("module", "posapi"),
	}, nil
}

// APIError is a non-2xx answer from the backend.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("pos api error %d: %s", e.Status, e.Body)
}

// message extracts the backend's human readable message, if the body is a
// JSON envelope carrying one.
func (e *APIError) message() string {
	var env envelope
	if err := json.Unmarshal([]byte(e.Body), &env); err == nil {
		if env.Message != "" {
			return env.Message
		}
		return env.Error
	}
	return ""
}

// IsUnavailable reports whether err means the backend could not be reached
// or failed on its side, as opposed to rejecting the request.
func IsUnavailable(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= 500 || apiErr.Status == http.StatusTooManyRequests
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.ErrUnexpectedEOF)
}

type envelope struct {
	Success *bool           `json:"success"`
	Message string          `json:"message"`
	Error   string          `json:"error"`
	Data    json.RawMessage `json:"data"`
}

// do sends one request and returns the raw response body of a 2xx answer.
func (c *Client) do(ctx context.Context, method, path string, in any, header http.Header) ([]byte, error) {
	ctx, span := c.tracer.Start(ctx, "posapi "+method+" "+path, trace.WithSpanKind(trace.SpanKindClient))
	defer span.End()
	span.SetAttributes(
		attribute.String("http.method", method),
		attribute.String("http.route", path),
	)

	if err := c.limiter.Wait(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "rate limiter")
		return nil, err
	}

	var reqBody io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		reqBody = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, err
	}
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	if c.apiKey != "" {
		req.Header.Set(c.apiKeyHdr, c.apiKey)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(body))}
		span.RecordError(apiErr)
		span.SetStatus(codes.Error, http.StatusText(resp.StatusCode))
		return nil, apiErr
	}
	return body, nil
}

// getList fetches a collection. The backend answers either with a bare
// array or with an envelope whose data is the array.
func getList[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	body, err := c.do(ctx, http.MethodGet, path, nil, nil)
	if err != nil {
		return nil, err
	}
	return decodeList[T](body)
}

func decodeList[T any](body []byte) ([]T, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return nil, nil
	}
	if trimmed[0] == '[' {
		var out []T
		if err := json.Unmarshal(trimmed, &out); err != nil {
			return nil, fmt.Errorf("decode list: %w", err)
		}
		return out, nil
	}
	var env envelope
	if err := json.Unmarshal(trimmed, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Success != nil && !*env.Success {
		return nil, fmt.Errorf("pos api: %s", firstNonEmpty(env.Message, env.Error, "request failed"))
	}
	if len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil, nil
	}
	var out []T
	if err := json.Unmarshal(env.Data, &out); err != nil {
		return nil, fmt.Errorf("decode list data: %w", err)
	}
	return out, nil
}

// decodeObject accepts either an envelope or the bare object.
func decodeObject[T any](body []byte) (T, error) {
	var out T
	var env envelope
	if err := json.Unmarshal(body, &env); err == nil && len(env.Data) > 0 && env.Data[0] == '{' {
		if env.Success != nil && !*env.Success {
			return out, fmt.Errorf("pos api: %s", firstNonEmpty(env.Message, env.Error, "request failed"))
		}
		if err := json.Unmarshal(env.Data, &out); err != nil {
			return out, fmt.Errorf("decode data: %w", err)
		}
		return out, nil
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return out, fmt.Errorf("decode object: %w", err)
	}
	return out, nil
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
