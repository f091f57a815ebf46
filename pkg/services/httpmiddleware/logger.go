package httpmiddleware

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// RoundTripperFunc is a function that implements http.RoundTripper
type RoundTripperFunc func(*http.Request) (*http.Response, error)

func (f RoundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// Logger creates a logging middleware for http.RoundTripper.
// maxBodySize controls body logging:
//   - 0: no body logging
//   - -1: log entire body
//   - >0: log first N bytes of body
//
// Card numbers inside logged bodies are masked.
func Logger(logger *slog.Logger, maxBodySize int) Middleware {
	return func(next http.RoundTripper) http.RoundTripper {
		return RoundTripperFunc(func(req *http.Request) (*http.Response, error) {
			logRequest(logger, req, maxBodySize)

			start := time.Now()
			resp, err := next.RoundTrip(req)
			duration := time.Since(start)

			if err != nil {
				logger.Warn("HTTP request failed",
					slog.String("method", req.Method),
					slog.String("url", req.URL.String()),
					slog.Duration("duration", duration),
					slog.Any("error", err))

				return resp, err
			}

			logResponse(logger, req, resp, duration, maxBodySize)

			return resp, nil
		})
	}
}

func logRequest(logger *slog.Logger, req *http.Request, maxBodySize int) {
	attrs := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
	}

	if id := req.Header.Get(RequestIDHeader); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}

	if len(req.Header) > 0 {
		attrs = append(attrs, headerGroup(req.Header))
	}

	if maxBodySize != 0 && req.Body != nil && req.Body != http.NoBody {
		body, err := readBody(req.Body, maxBodySize)
		if err == nil && len(body) > 0 {
			req.Body = io.NopCloser(bytes.NewBuffer(body))
			attrs = append(attrs, slog.String("body", redactBody(body)))
		}
	}

	logger.LogAttrs(req.Context(), slog.LevelDebug, "📤 Backend request", attrs...)
}

func logResponse(logger *slog.Logger, req *http.Request, resp *http.Response, duration time.Duration, maxBodySize int) {
	attrs := []slog.Attr{
		slog.String("method", req.Method),
		slog.String("url", req.URL.String()),
		slog.Int("status", resp.StatusCode),
		slog.Duration("duration", duration),
	}

	if maxBodySize != 0 && resp.Body != nil {
		body, err := readBody(resp.Body, maxBodySize)
		if err == nil && len(body) > 0 {
			resp.Body = io.NopCloser(bytes.NewBuffer(body))
			attrs = append(attrs, slog.String("body", redactBody(body)))
		}
	}

	level := slog.LevelDebug
	if resp.StatusCode >= 400 {
		level = slog.LevelWarn
	}

	if resp.StatusCode >= 500 {
		level = slog.LevelError
	}

	logger.LogAttrs(req.Context(), level, "📥 Backend response", attrs...)
}

func headerGroup(h http.Header) slog.Attr {
	headerAttrs := make([]slog.Attr, 0, len(h))
	for k, v := range h {
		if isSensitiveHeader(k) {
			headerAttrs = append(headerAttrs, slog.String(k, "[REDACTED]"))
		} else {
			headerAttrs = append(headerAttrs, slog.String(k, strings.Join(v, ", ")))
		}
	}

	return slog.Any("headers", slog.GroupValue(headerAttrs...))
}

// readBody reads the body up to maxBodySize bytes.
// When the body is longer, the logged copy is truncated and the rest is lost,
// so callers that need the full body must use -1.
func readBody(body io.ReadCloser, maxBodySize int) ([]byte, error) {
	defer body.Close()

	if maxBodySize == -1 {
		return io.ReadAll(body)
	}

	buf := make([]byte, maxBodySize)
	n, err := io.ReadFull(body, buf)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	return buf[:n], nil
}

var cardNumberPattern = regexp.MustCompile(`("card_number"\s*:\s*")(\d{4})[\d\s-]*(\d{4})(")`)

// redactBody masks card numbers so that raw PANs never reach log files
func redactBody(body []byte) string {
	return cardNumberPattern.ReplaceAllString(string(body), "${1}${2}****${3}${4}")
}

func isSensitiveHeader(name string) bool {
	switch strings.ToLower(name) {
	case "authorization", "cookie", "set-cookie", "x-telegram-init-data":
		return true
	default:
		return false
	}
}
