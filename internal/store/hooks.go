package store

import (
	"context"
	"time"

	"github.com/epfl-river/river-backend/pkg/log"
)

type sqlTimingKey struct{}

// Hooks satisfies sqlhooks.Hooks, logging every query and its duration the
// same way the house repository layer instruments its own driver.
type Hooks struct{}

func (h *Hooks) Before(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	log.Debugf("sql query %s %q", query, args)
	return context.WithValue(ctx, sqlTimingKey{}, time.Now()), nil
}

func (h *Hooks) After(ctx context.Context, query string, args ...interface{}) (context.Context, error) {
	if begin, ok := ctx.Value(sqlTimingKey{}).(time.Time); ok {
		log.Debugf("sql took %s", time.Since(begin))
	}
	return ctx, nil
}
