package database

import (
	"testing"

	"pulpe/internal/config"
)

func TestConfig(t *testing.T) {
	cfg := NewConfig(&config.Config{
		DBHost:     "db",
		DBPort:     "5433",
		DBUser:     "pulpe",
		DBPassword: "p@ss word",
		DBName:     "budget",
		DBSSLMode:  "require",
	})

	t.Run("dsn", func(t *testing.T) {
		want := "host=db port=5433 user=pulpe password=p@ss word dbname=budget sslmode=require"
		if got := cfg.DSN(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})

	t.Run("url_escapes_password", func(t *testing.T) {
		want := "postgres://pulpe:p%40ss%20word@db:5433/budget?sslmode=require"
		if got := cfg.URL(); got != want {
			t.Errorf("expected %q, got %q", want, got)
		}
	})
}
