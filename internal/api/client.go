// Package api - клиент REST бэкенда TradeLock.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"tradelock/internal/errs"
	"tradelock/internal/metrics"
	"tradelock/internal/models"
	"tradelock/pkg/services/httpmiddleware"
)

// OfflineToken - токен локальной сессии, на бэкенд не отправляется
const OfflineToken = "offline_mock_token"

const (
	DefaultAuthTimeout = 5 * time.Second
	DefaultCallTimeout = 10 * time.Second

	maxResponseSize = 4 << 20
)

// ErrUnauthorized - бэкенд ответил 401, токен сброшен
var ErrUnauthorized = errors.New("unauthorized")

// TokenSource отдает токен сессии и сбрасывает его после 401
type TokenSource interface {
	Token(ctx context.Context) string
	InvalidateToken(ctx context.Context)
}

// Config - параметры клиента
type Config struct {
	BaseURL     string
	AuthTimeout time.Duration
	CallTimeout time.Duration

	// Transport заменяет сетевой транспорт (тесты)
	Transport http.RoundTripper
}

// Client - клиент для работы с API TradeLock
type Client struct {
	httpClient  *http.Client
	tokens      TokenSource
	logger      *slog.Logger
	baseURL     string
	authTimeout time.Duration
	callTimeout time.Duration
}

// New создает клиент. Таймауты задаются контекстом каждого вызова,
// у http.Client общего таймаута нет.
func New(cfg Config, tokens TokenSource, logger *slog.Logger) *Client {
	base := cfg.Transport
	if base == nil {
		base = httpmiddleware.DefaultTransport()
	}

	if cfg.AuthTimeout <= 0 {
		cfg.AuthTimeout = DefaultAuthTimeout
	}

	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = DefaultCallTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Transport: httpmiddleware.Wrap(
				base,
				httpmiddleware.RequestID,
				httpmiddleware.RequestGetBodySetter,
				httpmiddleware.Logger(logger, 4096),
			),
		},
		tokens:      tokens,
		logger:      logger,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		authTimeout: cfg.AuthTimeout,
		callTimeout: cfg.CallTimeout,
	}
}

// AuthRequest - запрос авторизации по Telegram initData
type AuthRequest struct {
	InitData   string       `json:"init_data,omitempty"`
	TelegramID int64        `json:"telegram_id,omitempty"`
	User       *models.User `json:"user,omitempty"`
}

// AuthResponse - сессия, выданная бэкендом
type AuthResponse struct {
	Token string      `json:"token"`
	User  models.User `json:"user"`
}

// Authenticate выполняет POST /auth с бюджетом AuthTimeout
func (c *Client) Authenticate(ctx context.Context, req AuthRequest) (AuthResponse, error) {
	var resp AuthResponse
	if err := c.do(ctx, call{
		method:  http.MethodPost,
		path:    "/auth",
		in:      req,
		out:     &resp,
		timeout: c.authTimeout,
		anon:    true,
	}); err != nil {
		return AuthResponse{}, err
	}

	if resp.Token == "" {
		return AuthResponse{}, errs.Connectivity("backend returned empty token", nil)
	}

	return resp, nil
}

// Health проверяет доступность бэкенда
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, call{
		method:  http.MethodGet,
		path:    "/health",
		timeout: c.authTimeout,
		anon:    true,
	})
}

// GetUser возвращает профиль текущего пользователя
func (c *Client) GetUser(ctx context.Context) (models.User, error) {
	var u models.User
	err := c.do(ctx, call{method: http.MethodGet, path: "/user", out: &u, keys: []string{"user"}})

	return u, err
}

// UpdateUser изменяет поля профиля
func (c *Client) UpdateUser(ctx context.Context, upd models.ProfileUpdate) (models.User, error) {
	var u models.User
	err := c.do(ctx, call{method: http.MethodPut, path: "/user", in: upd, out: &u, keys: []string{"user"}})

	return u, err
}

// UpdateSettings изменяет настройки пользователя
func (c *Client) UpdateSettings(ctx context.Context, s models.Settings) (models.User, error) {
	var u models.User
	err := c.do(ctx, call{method: http.MethodPut, path: "/user/settings", in: s, out: &u, keys: []string{"user"}})

	return u, err
}

// ListTrades возвращает сделки пользователя по фильтру
func (c *Client) ListTrades(ctx context.Context, filter models.StatusFilter) ([]models.Trade, error) {
	q := url.Values{}
	if filter != "" && filter != models.FilterAll {
		q.Set("status", string(filter))
	}

	trades := []models.Trade{}
	err := c.do(ctx, call{method: http.MethodGet, path: "/trade", query: q, out: &trades, keys: []string{"trades"}})

	return trades, err
}

// GetTrade возвращает сделку по id или секретной ссылке
func (c *Client) GetTrade(ctx context.Context, ref string) (models.Trade, error) {
	var t models.Trade
	err := c.do(ctx, call{method: http.MethodGet, path: "/trade/" + url.PathEscape(ref), out: &t, keys: []string{"trade"}})

	return t, err
}

// CreateTrade создает сделку
func (c *Client) CreateTrade(ctx context.Context, draft models.TradeDraft) (models.Trade, error) {
	var t models.Trade
	err := c.do(ctx, call{method: http.MethodPost, path: "/trade", in: draft, out: &t, keys: []string{"trade"}})

	return t, err
}

type joinRequest struct {
	JoinLink string `json:"join_link"`
}

// JoinTrade присоединяет пользователя к сделке по секретной ссылке
func (c *Client) JoinTrade(ctx context.Context, link string) (models.Trade, error) {
	var t models.Trade
	err := c.do(ctx, call{method: http.MethodPost, path: "/trade", in: joinRequest{JoinLink: link}, out: &t, keys: []string{"trade"}})

	return t, err
}

// Action - действие над сделкой
type Action string

const (
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"
)

type actionRequest struct {
	Action Action `json:"action"`
	Reason string `json:"reason,omitempty"`
}

// TradeAction выполняет PUT /trade/{id}
func (c *Client) TradeAction(ctx context.Context, id int64, action Action, reason string) (models.Trade, error) {
	var t models.Trade
	err := c.do(ctx, call{
		method: http.MethodPut,
		path:   "/trade/" + strconv.FormatInt(id, 10),
		in:     actionRequest{Action: action, Reason: reason},
		out:    &t,
		keys:   []string{"trade"},
	})

	return t, err
}

// ListPayments возвращает историю платежей
func (c *Client) ListPayments(ctx context.Context) ([]models.Payment, error) {
	payments := []models.Payment{}
	err := c.do(ctx, call{method: http.MethodGet, path: "/payment", out: &payments, keys: []string{"payments"}})

	return payments, err
}

// CreatePayment создает пополнение или вывод. Полный номер карты уходит только в теле запроса.
func (c *Client) CreatePayment(ctx context.Context, req models.PaymentRequest) (models.Payment, error) {
	var p models.Payment
	err := c.do(ctx, call{method: http.MethodPost, path: "/payment", in: req, out: &p, keys: []string{"payment"}})

	return p, err
}

// PushPending отправляет записи, измененные offline
func (c *Client) PushPending(ctx context.Context, batch models.SyncBatch) (models.SyncResult, error) {
	var res models.SyncResult
	err := c.do(ctx, call{method: http.MethodPost, path: "/sync", in: batch, out: &res})

	return res, err
}

type call struct {
	method  string
	path    string
	query   url.Values
	in      any
	out     any
	keys    []string
	timeout time.Duration
	anon    bool
}

func (c *Client) do(ctx context.Context, cl call) (err error) {
	timeout := cl.timeout
	if timeout <= 0 {
		timeout = c.callTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		result := "ok"
		if err != nil {
			result = errs.KindOf(err).String()
		}

		metrics.BackendDuration.WithLabelValues(metricPath(cl.path)).Observe(time.Since(start).Seconds())
		metrics.BackendRequests.WithLabelValues(metricPath(cl.path), result).Inc()
	}()

	endpoint := c.baseURL + cl.path
	if len(cl.query) > 0 {
		endpoint += "?" + cl.query.Encode()
	}

	var body io.Reader = http.NoBody
	if cl.in != nil {
		data, err := json.Marshal(cl.in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, cl.method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if cl.in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if !cl.anon && c.tokens != nil {
		if token := c.tokens.Token(ctx); token != "" && token != OfflineToken {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errs.Connectivity("backend unreachable", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return errs.Connectivity("failed to read response", err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if c.tokens != nil {
			c.tokens.InvalidateToken(context.WithoutCancel(ctx))
		}

		c.logger.Warn("🔑 Backend rejected session token", slog.String("path", cl.path))

		return errs.Connectivity("session expired", ErrUnauthorized)
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if err := decode(data, cl.out, cl.keys...); err != nil {
			return errs.Connectivity("malformed backend response", err)
		}

		return nil
	default:
		msg := errorMessage(data, resp.Status)
		if err := errs.FromHTTPStatus(resp.StatusCode, msg); err != nil {
			return err
		}

		return errs.Connectivity(fmt.Sprintf("backend returned %d", resp.StatusCode), errors.New(msg))
	}
}

// metricPath убирает id из пути, чтобы не плодить метки
func metricPath(path string) string {
	if strings.HasPrefix(path, "/trade/") {
		return "/trade/{id}"
	}

	return path
}

// decode принимает и голый payload, и конверт {data: ...}, и {<key>: ...}
func decode(data []byte, out any, keys ...string) error {
	if out == nil {
		return nil
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return errors.New("empty body")
	}

	data = unwrap(data, keys)

	return json.Unmarshal(data, out)
}

func unwrap(data []byte, keys []string) []byte {
	for i := 0; i < 2; i++ {
		if len(data) == 0 || data[0] != '{' {
			return data
		}

		var env map[string]json.RawMessage
		if err := json.Unmarshal(data, &env); err != nil {
			return data
		}

		next, ok := pick(env, append([]string{"data"}, keys...))
		if !ok {
			return data
		}

		data = bytes.TrimSpace(next)
	}

	return data
}

func pick(env map[string]json.RawMessage, keys []string) (json.RawMessage, bool) {
	for _, k := range keys {
		raw, ok := env[k]
		if !ok || string(raw) == "null" {
			continue
		}

		return raw, true
	}

	return nil, false
}

// errorMessage достает текст ошибки из {error}, {message} или {detail}
func errorMessage(data []byte, status string) string {
	var body struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}

	if err := json.Unmarshal(data, &body); err == nil {
		for _, msg := range []string{body.Error, body.Message, body.Detail} {
			if msg != "" {
				return msg
			}
		}
	}

	return status
}
