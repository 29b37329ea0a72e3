package searchdex

import (
	"context"
	"fmt"
	"sort"
	"strings"

	healthuc "github.com/kailas-cloud/searchdex/internal/usecase/health"
)

// EngineHealth describes whether the engine answers and whether the
// registered indexes still merge into one schema.
type EngineHealth struct {
	Engine string            // driver name, e.g. "solr"
	Status string            // "ok", "degraded" or "error"
	Checks map[string]string // "backend", "schema" → "ok" or "error"
}

// OK reports whether every check passed.
func (h EngineHealth) OK() bool { return h.Status == string(healthuc.Healthy) }

// Failing lists the failed checks in name order.
func (h EngineHealth) Failing() []string {
	var out []string
	for name, res := range h.Checks {
		if res != string(healthuc.CheckOK) {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Health pings the engine and re-checks the schema. It never fails; problems
// are reported through the result.
func (c *Client) Health(ctx context.Context) EngineHealth {
	report := c.healthSvc.Check(ctx)
	h := EngineHealth{
		Status: string(report.Status),
		Checks: make(map[string]string, len(report.Checks)),
	}
	if c.backend != nil {
		h.Engine = c.backend.Name()
	}
	for name, res := range report.Checks {
		h.Checks[name] = string(res)
	}
	return h
}

// Ready returns ErrBackendUnavailable naming the failed checks unless the
// engine is fully healthy.
func (c *Client) Ready(ctx context.Context) error {
	h := c.Health(ctx)
	if h.OK() {
		return nil
	}
	return fmt.Errorf("%w: %s %s: %s", ErrBackendUnavailable, h.Engine, h.Status, strings.Join(h.Failing(), ", "))
}

type healthUseCase interface {
	Check(ctx context.Context) healthuc.Report
}
