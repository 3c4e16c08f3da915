package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/srjmnh/student-ai/internal/records"
	"github.com/srjmnh/student-ai/internal/reply"
)

// ErrNetwork marks requests that never produced a usable response.
var ErrNetwork = errors.New("records service unreachable")

// RemoteError is an explicit rejection from the records service. Message is
// shown to the user as-is.
type RemoteError struct {
	Op      string
	Status  int
	Message string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

// Client is the request/response contract of the records service.
type Client interface {
	InterpretPrompt(ctx context.Context, prompt string) (reply.Envelope, error)
	BulkUpdateRecords(ctx context.Context, updates []records.RecordDiff) error
	DeleteRecord(ctx context.Context, id string) (string, error)
	UpdateGradeUnit(ctx context.Context, unit records.GradeUnit) (string, error)
	DeleteGradeEntry(ctx context.Context, subjectID, studentID string) (string, error)
	ListUniqueGroupings(ctx context.Context) ([]string, error)
	FetchGrades(ctx context.Context) ([]records.GradeEntry, error)
	ListStudents(ctx context.Context) ([]records.Student, error)
}

// HTTPClient speaks JSON over HTTP to the records service.
type HTTPClient struct {
	base    string
	token   string
	http    *http.Client
	limiter *rate.Limiter
	keys    *keyFactory
	logger  *zap.Logger
}

type ClientOption func(*HTTPClient)

func WithToken(token string) ClientOption {
	return func(c *HTTPClient) { c.token = strings.TrimSpace(token) }
}

// WithTimeout sets a per-request timeout. Zero leaves requests unbounded.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *HTTPClient) { c.http.Timeout = d }
}

// WithRateLimit throttles outbound requests. A non-positive limit disables it.
func WithRateLimit(limit float64, burst int) ClientOption {
	return func(c *HTTPClient) {
		if limit <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(limit), burst)
	}
}

func WithSessionSeed(seed string) ClientOption {
	return func(c *HTTPClient) { c.keys = newKeyFactory(seed) }
}

func WithClientLogger(logger *zap.Logger) ClientOption {
	return func(c *HTTPClient) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

func NewHTTPClient(baseURL string, opts ...ClientOption) *HTTPClient {
	c := &HTTPClient{
		base:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http:   &http.Client{},
		keys:   newKeyFactory(""),
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *HTTPClient) InterpretPrompt(ctx context.Context, prompt string) (reply.Envelope, error) {
	var env reply.Envelope
	err := c.do(ctx, "interpret", http.MethodPost, "/process_prompt", map[string]string{"prompt": prompt}, &env, false)
	return env, err
}

func (c *HTTPClient) BulkUpdateRecords(ctx context.Context, updates []records.RecordDiff) error {
	return c.do(ctx, "bulk_update", http.MethodPost, "/bulk_update", map[string]any{"updates": updates}, nil, true)
}

func (c *HTTPClient) DeleteRecord(ctx context.Context, id string) (string, error) {
	var out messageResp
	err := c.do(ctx, "delete_student", http.MethodPost, "/delete_student", map[string]string{"id": id}, &out, true)
	return out.Message, err
}

func (c *HTTPClient) UpdateGradeUnit(ctx context.Context, unit records.GradeUnit) (string, error) {
	var out messageResp
	err := c.do(ctx, "update_grade", http.MethodPost, "/update_grade", unit, &out, true)
	return out.Message, err
}

func (c *HTTPClient) DeleteGradeEntry(ctx context.Context, subjectID, studentID string) (string, error) {
	var out messageResp
	body := map[string]string{"subject_id": subjectID, "student_id": studentID}
	err := c.do(ctx, "delete_grade", http.MethodPost, "/delete_grade", body, &out, true)
	return out.Message, err
}

func (c *HTTPClient) ListUniqueGroupings(ctx context.Context) ([]string, error) {
	var out struct {
		ClassDivisions []string `json:"class_divisions"`
	}
	err := c.do(ctx, "unique_class_divisions", http.MethodGet, "/unique_class_divisions", nil, &out, false)
	return out.ClassDivisions, err
}

func (c *HTTPClient) FetchGrades(ctx context.Context) ([]records.GradeEntry, error) {
	var out struct {
		Grades []records.GradeEntry `json:"grades"`
	}
	err := c.do(ctx, "fetch_grades", http.MethodGet, "/grades", nil, &out, false)
	return out.Grades, err
}

func (c *HTTPClient) ListStudents(ctx context.Context) ([]records.Student, error) {
	var out struct {
		Students []records.Student `json:"students"`
	}
	err := c.do(ctx, "view_students", http.MethodGet, "/students", nil, &out, false)
	return out.Students, err
}

type messageResp struct {
	Message string `json:"message"`
}

// statusResp covers the error shapes every endpoint may answer with.
type statusResp struct {
	Success *bool  `json:"success"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (c *HTTPClient) do(ctx context.Context, op, method, path string, body, out any, mutation bool) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrNetwork, op, err)
		}
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%s: encode request: %w", op, err)
		}
		reader = bytes.NewReader(buf)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, reader)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if mutation {
		req.Header.Set("Idempotency-Key", c.keys.next(op))
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s: %w", ErrNetwork, op, err)
	}
	defer resp.Body.Close()
	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: %s: read response: %w", ErrNetwork, op, err)
	}
	c.logger.Debug("records service response",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(payload)),
	)

	var status statusResp
	decodeErr := json.Unmarshal(payload, &status)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(status.Error)
		if decodeErr != nil || msg == "" {
			msg = fmt.Sprintf("http %d: %s", resp.StatusCode, compactLine(string(payload), 200))
		}
		return &RemoteError{Op: op, Status: resp.StatusCode, Message: msg}
	}
	if decodeErr != nil {
		return fmt.Errorf("%s: non-json response: %w", op, decodeErr)
	}
	if msg := strings.TrimSpace(status.Error); msg != "" {
		return &RemoteError{Op: op, Status: resp.StatusCode, Message: msg}
	}
	if status.Success != nil && !*status.Success {
		msg := strings.TrimSpace(status.Message)
		if msg == "" {
			msg = op + " was rejected"
		}
		return &RemoteError{Op: op, Status: resp.StatusCode, Message: msg}
	}
	if out != nil {
		if err := json.Unmarshal(payload, out); err != nil {
			return fmt.Errorf("%s: decode response: %w", op, err)
		}
	}
	return nil
}

var spaceRun = regexp.MustCompile(`\s+`)

func compactLine(text string, limit int) string {
	clean := strings.TrimSpace(spaceRun.ReplaceAllString(text, " "))
	if clean == "" {
		return "empty body"
	}
	if runes := []rune(clean); len(runes) > limit {
		return string(runes[:limit]) + "..."
	}
	return clean
}
