package service

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
)

// DefaultSessionTTL - время жизни токена карточки пользователя.
const DefaultSessionTTL = 30 * time.Minute

const sessionTokenLength = 10

// UserSessions связывает короткие токены inline-кнопок с email пользователя.
// Telegram ограничивает callback data 64 байтами, поэтому email в кнопку не кладется.
type UserSessions struct {
	cache *ttlcache.Cache[string, string]
}

func NewUserSessions(ttl time.Duration) *UserSessions {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	cache := ttlcache.New[string, string](
		ttlcache.WithTTL[string, string](ttl),
		ttlcache.WithDisableTouchOnHit[string, string](),
	)
	return &UserSessions{cache: cache}
}

// Start удаляет просроченные токены до вызова Stop. Блокирует вызывающего.
func (s *UserSessions) Start() {
	s.cache.Start()
}

func (s *UserSessions) Stop() {
	s.cache.Stop()
}

// Create выдает новый токен для email.
func (s *UserSessions) Create(email string) string {
	token := strings.ReplaceAll(uuid.NewString(), "-", "")[:sessionTokenLength]
	s.cache.Set(token, strings.ToLower(strings.TrimSpace(email)), ttlcache.DefaultTTL)
	return token
}

// Resolve возвращает email по токену, если токен еще жив.
func (s *UserSessions) Resolve(token string) (string, bool) {
	item := s.cache.Get(token)
	if item == nil {
		return "", false
	}
	return item.Value(), true
}
