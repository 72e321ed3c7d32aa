package utils

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"repbbs/config"
)

// Failed-login throttling per identifier (username or email). After
// MaxAttempts failures the identifier is blocked until the window that
// started at the first failure elapses; a successful login clears it.
// State lives in Redis so multiple instances agree; a mutex-guarded
// in-memory map covers single-instance deployments without Redis.

type failEntry struct {
	attempts  int
	firstFail time.Time
}

var (
	loginFails   = map[string]failEntry{}
	loginFailsMu sync.Mutex
)

func loginFailKey(identifier string) string {
	return "login:fail:" + identifier
}

// LoginBlockedFor returns a positive duration when the identifier is
// currently blocked, along with how long the caller should wait.
func LoginBlockedFor(identifier string) (time.Duration, bool) {
	cfg := config.Get()
	maxAttempts := cfg.LoginMaxAttempts
	window := time.Duration(cfg.LoginBlockMinutes) * time.Minute

	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		key := loginFailKey(identifier)
		n, err := rc.Get(ctx, key).Int()
		if err == redis.Nil {
			return 0, false
		}
		if err == nil {
			if n < maxAttempts {
				return 0, false
			}
			ttl, terr := rc.TTL(ctx, key).Result()
			if terr != nil || ttl <= 0 {
				return 0, false
			}
			return ttl, true
		}
		// Redis error: fall through to the in-memory state.
	}

	loginFailsMu.Lock()
	defer loginFailsMu.Unlock()
	entry, ok := loginFails[identifier]
	if !ok || entry.attempts < maxAttempts {
		return 0, false
	}
	remain := window - time.Since(entry.firstFail)
	if remain <= 0 {
		delete(loginFails, identifier)
		return 0, false
	}
	return remain, true
}

// LoginFailRecord counts one failed attempt for the identifier. The block
// window is anchored at the first failure.
func LoginFailRecord(identifier string) {
	cfg := config.Get()
	window := time.Duration(cfg.LoginBlockMinutes) * time.Minute

	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		key := loginFailKey(identifier)
		n, err := rc.Incr(ctx, key).Result()
		if err == nil {
			if n == 1 {
				_ = rc.Expire(ctx, key, window).Err()
			}
			return
		}
	}

	loginFailsMu.Lock()
	defer loginFailsMu.Unlock()
	entry, ok := loginFails[identifier]
	if !ok || time.Since(entry.firstFail) >= window {
		loginFails[identifier] = failEntry{attempts: 1, firstFail: time.Now()}
		return
	}
	entry.attempts++
	loginFails[identifier] = entry
}

// LoginFailReset clears the identifier's failure state after a successful login.
func LoginFailReset(identifier string) {
	if rc := GetRedis(); rc != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := rc.Del(ctx, loginFailKey(identifier)).Err(); err == nil {
			return
		}
	}
	loginFailsMu.Lock()
	delete(loginFails, identifier)
	loginFailsMu.Unlock()
}
