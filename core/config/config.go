// Package config loads environment-driven configuration structs.
//
// Structs declare their variables with caarlos0/env tags. A .env file in the
// working directory is read once on first use; variables already present in
// the process environment take precedence over it. Each struct type is parsed
// once and served from a cache afterwards.
package config

import (
	"errors"
	"fmt"
	"reflect"
	"sync"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// ErrParse wraps failures reported by the env parser.
var ErrParse = errors.New("config: failed to parse environment")

var (
	dotenvOnce sync.Once
	cache      sync.Map
)

// Load fills cfg from the environment, returning the cached value for T when
// it was loaded before.
func Load[T any](cfg *T) error {
	key := reflect.TypeFor[T]()
	if v, ok := cache.Load(key); ok {
		*cfg = v.(T)
		return nil
	}
	if err := Parse(cfg); err != nil {
		return err
	}
	cache.Store(key, *cfg)
	return nil
}

// MustLoad is Load that panics on error.
func MustLoad[T any](cfg *T) {
	if err := Load(cfg); err != nil {
		panic(err)
	}
}

// Parse fills cfg from the environment without touching the cache.
func Parse[T any](cfg *T) error {
	dotenvOnce.Do(func() {
		// A missing .env file is the normal case in containers.
		_ = godotenv.Load()
	})
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("%w: %w", ErrParse, err)
	}
	return nil
}
