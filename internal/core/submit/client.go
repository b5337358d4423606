package submit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/logging"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ohcupload/ohcupload/internal/core"
	"github.com/ohcupload/ohcupload/internal/core/scanner"
)

const (
	// DefaultURL is the onlinehashcrack v2 submission endpoint.
	DefaultURL = "https://api.onlinehashcrack.com/v2"
	// DefaultTimeout bounds a single submission request.
	DefaultTimeout = 30 * time.Second
	// AlgoModeWPA is the hashcat mode for WPA-PBKDF2-PMKID+EAPOL lines.
	AlgoModeWPA = 22000

	fallbackMessage = "Unknown error"
	maxErrorBody    = 64 << 10
)

// Request is the JSON body accepted by the service.
type Request struct {
	APIKey     string   `json:"api_key"`
	AgreeTerms string   `json:"agree_terms"`
	AlgoMode   int      `json:"algo_mode"`
	Hashes     []string `json:"hashes"`
	Email      string   `json:"email"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Client submits one hash line per request.
type Client struct {
	HTTPClient *http.Client
	URL        string
	Timeout    time.Duration
	UserAgent  string
	Logger     *logging.Logger
	Clock      func() time.Time
}

// Validate checks a hash line before any quota or network work happens.
func (c *Client) Validate(content string) error {
	_, err := scanner.ValidateLine(content)
	return err
}

// Submit performs exactly one request and classifies the response. It never
// sleeps; throttling is reported back as OutcomeThrottled.
func (c *Client) Submit(ctx context.Context, content string, creds core.Credentials) core.Outcome {
	if ctx == nil {
		ctx = context.Background()
	}

	outcome := core.Outcome{
		SubmissionID: uuid.New().String(),
		SubmittedAt:  c.now(),
	}

	body, err := json.Marshal(Request{
		APIKey:     creds.APIKey,
		AgreeTerms: "yes",
		AlgoMode:   AlgoModeWPA,
		Hashes:     []string{strings.TrimSpace(content)},
		Email:      creds.Email,
	})
	if err != nil {
		outcome.Kind = core.OutcomeTransportError
		outcome.Message = fmt.Sprintf("encode request: %v", err)
		return outcome
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout())
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.url(), bytes.NewReader(body))
	if err != nil {
		outcome.Kind = core.OutcomeTransportError
		outcome.Message = err.Error()
		return outcome
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	resp, err := c.client().Do(req)
	if err != nil {
		outcome.Kind = core.OutcomeTransportError
		outcome.Message = transportMessage(err)
		c.log(outcome)
		return outcome
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup on HTTP response body

	outcome.StatusCode = resp.StatusCode
	switch resp.StatusCode {
	case http.StatusOK:
		outcome.Kind = core.OutcomeAccepted
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxErrorBody))
	case http.StatusTooManyRequests:
		outcome.Kind = core.OutcomeThrottled
		outcome.Message = "rate limited"
		outcome.RetryAfter = retryAfterHeader(resp)
	default:
		outcome.Kind = core.OutcomeRemoteError
		outcome.Message = remoteMessage(resp.Body)
	}

	c.log(outcome)
	return outcome
}

func remoteMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil || len(data) == 0 {
		return fallbackMessage
	}

	var payload errorResponse
	if err := json.Unmarshal(data, &payload); err != nil {
		return fallbackMessage
	}
	if msg := strings.TrimSpace(payload.Message); msg != "" {
		return msg
	}
	return fallbackMessage
}

func transportMessage(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "request timed out: " + err.Error()
	}
	return err.Error()
}

func retryAfterHeader(resp *http.Response) time.Duration {
	if resp == nil || resp.Header == nil {
		return 0
	}

	retry := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if retry == "" {
		return 0
	}
	if seconds, err := time.ParseDuration(retry + "s"); err == nil {
		return seconds
	}
	if parsed, err := http.ParseTime(retry); err == nil {
		return time.Until(parsed)
	}
	return 0
}

func (c *Client) log(outcome core.Outcome) {
	if c.Logger == nil {
		return
	}

	fields := []zap.Field{
		zap.String("submission_id", outcome.SubmissionID),
		zap.String("outcome", string(outcome.Kind)),
	}
	if outcome.StatusCode != 0 {
		fields = append(fields, zap.Int("status", outcome.StatusCode))
	}
	if outcome.RetryAfter > 0 {
		fields = append(fields, zap.Duration("retry_after", outcome.RetryAfter))
	}

	switch outcome.Kind {
	case core.OutcomeAccepted:
		c.Logger.Debug("OHC: submission accepted", fields...)
	case core.OutcomeThrottled:
		c.Logger.Warn("OHC: Rate limit hit", fields...)
	case core.OutcomeRemoteError:
		c.Logger.Error("OHC: API Error", append(fields, zap.String("message", outcome.Message))...)
	default:
		c.Logger.Error("OHC: Connection Failed", append(fields, zap.String("error", outcome.Message))...)
	}
}

func (c *Client) client() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{Timeout: c.timeout()}
}

func (c *Client) timeout() time.Duration {
	if c.Timeout > 0 {
		return c.Timeout
	}
	return DefaultTimeout
}

func (c *Client) url() string {
	if strings.TrimSpace(c.URL) != "" {
		return c.URL
	}
	return DefaultURL
}

func (c *Client) now() time.Time {
	if c.Clock != nil {
		return c.Clock()
	}
	return time.Now().UTC()
}
