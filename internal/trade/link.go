package trade

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"net/url"
	"sync"
	"time"
)

// NewSecretLink генерирует непредсказуемый код приглашения
func NewSecretLink() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate secret link: %w", err)
	}

	return hex.EncodeToString(b), nil
}

// ShareURL строит ссылку t.me, открывающую Mini App на сделке
func ShareURL(botUsername, link string) string {
	if botUsername == "" {
		return ""
	}

	return fmt.Sprintf("https://t.me/%s?startapp=%s", url.PathEscape(botUsername), url.QueryEscape(link))
}

// idGenerator выдает возрастающие id на основе времени в миллисекундах
type idGenerator struct {
	mu   sync.Mutex
	last int64
}

func (g *idGenerator) next(now time.Time) int64 {
	g.mu.Lock()
	defer g.mu.Unlock()

	id := now.UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}

	g.last = id

	return id
}
