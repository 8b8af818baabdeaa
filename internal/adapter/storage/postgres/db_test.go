package postgres

import (
	"context"
	"testing"
	"time"

	"mpesa-callback-relay/config"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestNewPool_Unreachable(t *testing.T) {
	cfg := config.DatabaseConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "relay",
		Password: "relaypass",
		DBName:   "callbacks",
		SSLMode:  "disable",
		MaxConns: 2,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	pool, err := NewPool(ctx, cfg, zerolog.Nop())
	assert.Nil(t, pool)
	assert.ErrorContains(t, err, "pinging database")
}
