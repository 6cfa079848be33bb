package app

import (
	"github.com/nayandeep999/truefeedback/internal/auth"
	"github.com/nayandeep999/truefeedback/internal/cache"
)

// JWTServiceConfig converts AuthConfig into the parameters expected by the JWT service.
func (c AuthConfig) JWTServiceConfig() auth.JWTConfig {
	ttl := c.JWT.TTL
	if ttl <= 0 {
		ttl = auth.DefaultAccessTokenTTL
	}

	return auth.JWTConfig{
		Secret:         c.JWT.Secret,
		Issuer:         c.JWT.Issuer,
		AccessTokenTTL: ttl,
	}
}

// SessionServiceConfig converts AuthConfig into SessionService parameters.
func (c AuthConfig) SessionServiceConfig(store cache.Store) auth.SessionConfig {
	ttl := c.Session.RefreshTTL
	if ttl <= 0 {
		ttl = auth.DefaultRefreshTokenTTL
	}

	length := c.Session.RefreshLength
	if length <= 0 {
		length = 48
	}

	cfg := auth.SessionConfig{
		RefreshTokenTTL: ttl,
		RefreshLength:   length,
	}
	if store != nil {
		cfg.Cache = auth.NewSessionStoreCache(store)
	}
	return cfg
}

// RedisOptions converts RedisCacheConfig to the cache package representation.
func (c RedisCacheConfig) RedisOptions() cache.RedisConfig {
	return cache.RedisConfig{
		Address:  c.Address,
		Username: c.Username,
		Password: c.Password,
		DB:       c.DB,
		TLS:      c.TLS,
		Timeout:  c.Timeout,
	}
}
