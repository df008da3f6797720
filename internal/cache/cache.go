package cache

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/tablewise/backend/internal/models"
	"github.com/tablewise/backend/internal/utils"
)

// Cache memoizes full aggregation results for repeated dashboard polling.
// Implementations must allow concurrent reads and concurrent insert-on-miss.
// Invalidate clears everything; it runs after any upstream mutation that
// could make cached aggregates stale.
type Cache interface {
	Get(ctx context.Context, key string) (models.AggregatedMetrics, bool)
	Set(ctx context.Context, key string, value models.AggregatedMetrics)
	Invalidate(ctx context.Context)
}

// Key derives a deterministic cache key from the query shape. Location ids
// are sorted first so [A,B] and [B,A] hit the same entry.
func Key(locationIDs []string, start, end time.Time) string {
	ids := append([]string(nil), locationIDs...)
	sort.Strings(ids)
	raw := strings.Join(ids, ",") + "|" + start.UTC().Format(time.RFC3339) + "|" + end.UTC().Format(time.RFC3339)
	return "metrics:" + utils.HashKey(raw)
}
