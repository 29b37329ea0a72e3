package redis

import (
	"context"
	"fmt"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/searchdex/internal/backend"
)

// Redis command names used for error context.
const (
	cmdCreate    = "FT.CREATE"
	cmdInfo      = "FT.INFO"
	cmdSearch    = "FT.SEARCH"
	cmdAggregate = "FT.AGGREGATE"
)

func dial(cfg Config) (rueidis.Client, error) {
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  cfg.Addrs,
		Username:     cfg.Username,
		Password:     cfg.Password,
		SelectDB:     cfg.DB,
		DisableCache: true,
		AlwaysRESP2:  true, // FT.SEARCH result parsing expects RESP2 array format
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create client: %w", err)
	}
	return client, nil
}

func (b *Backend) do(ctx context.Context, cmd rueidis.Completed) rueidis.RedisResult {
	return b.client.Do(ctx, cmd)
}

func (b *Backend) cmd() rueidis.Builder {
	return b.client.B()
}

// ft builds an arbitrary RediSearch command against the configured index.
func (b *Backend) ft(name string, args ...string) rueidis.Completed {
	return b.cmd().Arbitrary(name).Args(append([]string{b.cfg.Index}, args...)...).Build()
}

// wrap maps a command failure onto the backend error taxonomy.
func wrap(op, command string, err error) error {
	return &backend.Error{Op: op, Err: fmt.Errorf("%s: %w", command, err)}
}

// isRedisErr checks if err is a Redis server error containing substr (case-insensitive).
func isRedisErr(err error, substr string) bool {
	re, ok := rueidis.IsRedisErr(err)
	if !ok {
		return false
	}
	return strings.Contains(strings.ToLower(re.Error()), strings.ToLower(substr))
}

// isValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func isValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}
