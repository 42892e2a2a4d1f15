package jobqueue

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	sonic "github.com/bytedance/sonic"
	crerr "github.com/cockroachdb/errors"
	"github.com/riskibarqy/fantasy-auction/internal/platform/logging"
	"github.com/riskibarqy/fantasy-auction/internal/platform/resilience"
	"github.com/valyala/bytebufferpool"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var errQStashTransient = crerr.New("qstash transient failure")

type QStashPublisherConfig struct {
	BaseURL          string
	Token            string
	TargetBaseURL    string
	Retries          int
	InternalJobToken string
	Timeout          time.Duration
	CircuitBreaker   resilience.CircuitBreakerConfig
}

// QStashPublisher posts delayed HTTP jobs to QStash, which calls back into
// this service's internal job routes once the delay elapses.
type QStashPublisher struct {
	client           *http.Client
	publishBase      string
	targetBase       string
	token            string
	retries          int
	internalJobToken string
	configErr        error
	logger           *logging.Logger
	breaker          *resilience.CircuitBreaker
}

func NewQStashPublisher(cfg QStashPublisherConfig, logger *logging.Logger) *QStashPublisher {
	if logger == nil {
		logger = logging.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.CircuitBreaker.OnStateChange == nil {
		cfg.CircuitBreaker.OnStateChange = func(from, to resilience.CircuitState) {
			logger.Warn("qstash circuit breaker state changed", "from", from, "to", to)
		}
	}

	p := &QStashPublisher{
		client:           &http.Client{Timeout: cfg.Timeout},
		token:            strings.TrimSpace(cfg.Token),
		retries:          cfg.Retries,
		internalJobToken: strings.TrimSpace(cfg.InternalJobToken),
		logger:           logger,
		breaker:          cfg.CircuitBreaker.Build(),
	}

	var err error
	if p.publishBase, err = httpBaseURL(cfg.BaseURL); err != nil {
		p.configErr = crerr.Wrap(err, "invalid QSTASH_BASE_URL")
	} else if p.targetBase, err = httpBaseURL(cfg.TargetBaseURL); err != nil {
		p.configErr = crerr.Wrap(err, "invalid QSTASH_TARGET_BASE_URL")
	}
	return p
}

// Enqueue schedules a POST of payload to path after delay. A non-empty
// deduplicationID makes QStash drop repeats of the same job.
func (p *QStashPublisher) Enqueue(ctx context.Context, path string, payload any, delay time.Duration, deduplicationID string) error {
	if p.configErr != nil {
		return p.configErr
	}
	path = "/" + strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "/" {
		return crerr.New("job path is required")
	}
	if p.breaker != nil {
		if err := p.breaker.Allow(); err != nil {
			return fmt.Errorf("qstash is temporarily unavailable: %w", err)
		}
	}

	err := p.publish(ctx, p.targetBase+path, payload, delaySeconds(delay), strings.TrimSpace(deduplicationID))
	if p.breaker != nil {
		if crerr.Is(err, errQStashTransient) {
			p.breaker.RecordFailure()
		} else {
			p.breaker.RecordSuccess()
		}
	}
	return err
}

func (p *QStashPublisher) publish(ctx context.Context, targetURL string, payload any, delay, dedupID string) error {
	if payload == nil {
		payload = struct{}{}
	}
	body, err := sonic.Marshal(payload)
	if err != nil {
		return crerr.Wrap(err, "marshal job payload")
	}

	if span := trace.SpanFromContext(ctx); span.IsRecording() {
		span.SetAttributes(
			attribute.String("qstash.target_url", targetURL),
			attribute.String("qstash.delay", delay),
			attribute.String("qstash.deduplication_id", dedupID),
		)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.publishBase+"/v2/publish/"+targetURL, bytes.NewReader(body))
	if err != nil {
		return crerr.Wrap(err, "create qstash request")
	}
	p.setHeaders(req.Header, delay, dedupID)

	resp, err := p.client.Do(req)
	if err != nil {
		return crerr.Mark(crerr.Wrapf(err, "publish qstash job target_url=%s", targetURL), errQStashTransient)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		callErr := crerr.Newf("publish qstash job status=%d target_url=%s body=%s", resp.StatusCode, targetURL, strings.TrimSpace(string(raw)))
		if retryableStatus(resp.StatusCode) {
			callErr = crerr.Mark(callErr, errQStashTransient)
		}
		p.logger.WarnContext(ctx, "qstash publish rejected", "status_code", resp.StatusCode, "request", describeRequest(req))
		return callErr
	}

	p.logger.DebugContext(ctx, "qstash job published", "target_url", targetURL, "delay", delay, "deduplication_id", dedupID)
	return nil
}

func (p *QStashPublisher) setHeaders(h http.Header, delay, dedupID string) {
	h.Set("Authorization", "Bearer "+p.token)
	h.Set("Content-Type", "application/json")
	h.Set("Upstash-Method", http.MethodPost)
	if p.retries > 0 {
		h.Set("Upstash-Retries", strconv.Itoa(p.retries))
	}
	if delay != "0s" {
		h.Set("Upstash-Delay", delay)
	}
	if dedupID != "" {
		h.Set("Upstash-Deduplication-Id", dedupID)
	}
	if p.internalJobToken != "" {
		h.Set("Upstash-Forward-X-Internal-Job-Token", p.internalJobToken)
	}
}

// describeRequest renders the method, URL and headers of req for logs with
// credentials masked.
func describeRequest(req *http.Request) string {
	buf := bytebufferpool.Get()
	defer bytebufferpool.Put(buf)

	_, _ = buf.WriteString(req.Method + " " + req.URL.String())
	for _, name := range []string{"Upstash-Delay", "Upstash-Retries", "Upstash-Deduplication-Id", "Authorization", "Upstash-Forward-X-Internal-Job-Token"} {
		value := req.Header.Get(name)
		if value == "" {
			continue
		}
		if name == "Authorization" || strings.HasSuffix(name, "Token") {
			value = "***"
		}
		_, _ = buf.WriteString(" " + name + "=" + value)
	}
	return buf.String()
}

// delaySeconds renders delay in whole seconds, the unit QStash accepts.
func delaySeconds(delay time.Duration) string {
	if delay <= 0 {
		return "0s"
	}
	return strconv.FormatInt(int64(delay.Round(time.Second)/time.Second), 10) + "s"
}

func httpBaseURL(raw string) (string, error) {
	candidate := strings.TrimRight(strings.TrimSpace(raw), "/")
	if candidate == "" {
		return "", crerr.New("value is empty")
	}
	parsed, err := url.Parse(candidate)
	if err != nil {
		return "", crerr.Wrapf(err, "parse %q", candidate)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return "", crerr.Newf("%q uses unsupported scheme %q", candidate, parsed.Scheme)
	}
	if parsed.Host == "" {
		return "", crerr.Newf("%q has empty host", candidate)
	}
	return candidate, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}
