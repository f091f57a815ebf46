package gate

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"tradelock/internal/api"
	"tradelock/internal/storage"
)

// Session хранит токен сессии в памяти и в tradelock_token.
// Реализует api.TokenSource.
type Session struct {
	records *storage.Records
	now     func() time.Time

	mu    sync.RWMutex
	token string
}

func NewSession(ctx context.Context, records *storage.Records) *Session {
	return &Session{
		records: records,
		now:     time.Now,
		token:   records.Token(ctx),
	}
}

// Token возвращает текущий токен
func (s *Session) Token(context.Context) string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// InvalidateToken сбрасывает токен, следующий probe выполнит повторную авторизацию
func (s *Session) InvalidateToken(ctx context.Context) {
	s.mu.Lock()
	s.token = ""
	s.mu.Unlock()

	s.records.InvalidateToken(ctx)
}

func (s *Session) set(ctx context.Context, token string) {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	s.records.SetToken(ctx, token)
}

// Local возвращает true для локальной (offline) сессии
func (s *Session) Local() bool {
	return s.Token(context.Background()) == api.OfflineToken
}

// Backend возвращает true если есть действующий токен бэкенда
func (s *Session) Backend() bool {
	token := s.Token(context.Background())
	if token == "" || token == api.OfflineToken {
		return false
	}

	return !tokenExpired(token, s.now())
}

// tokenExpired проверяет exp у JWT без проверки подписи: подпись проверяет бэкенд,
// клиенту нужно только не ходить с заведомо просроченным токеном.
// Непрозрачные (не JWT) токены считаются действующими до 401.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}

	return !now.Before(exp.Time)
}
