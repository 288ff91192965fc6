package upsert

import (
	"context"
	"fmt"

	"github.com/semitexa/semitexa-orm/internal/metadata"
	"github.com/semitexa/semitexa-orm/internal/poolsql"
)

// SeedResult reports one table's seeding outcome.
type SeedResult struct {
	Table  string
	Counts *Counts
}

// RunSeeds enumerates every resource that implements metadata.Defaultable,
// calls its Defaults() factory, and upserts the result per-table, per
// spec.md §4.6's seed runner.
func RunSeeds(ctx context.Context, adapter poolsql.Adapter, resources []metadata.Resource) ([]SeedResult, error) {
	var out []SeedResult
	for _, r := range resources {
		defaultable, ok := r.(metadata.Defaultable)
		if !ok {
			continue
		}
		defaults := defaultable.Defaults()
		if len(defaults) == 0 {
			continue
		}

		rm, ok := resourceMetadataFor(r)
		if !ok {
			return nil, fmt.Errorf("upsert: seeding %s: resource metadata was never built", r.TableName())
		}

		counts, err := Batch(ctx, adapter, rm, defaults)
		if err != nil {
			return nil, fmt.Errorf("upsert: seeding %s: %w", r.TableName(), err)
		}
		out = append(out, SeedResult{Table: r.TableName(), Counts: counts})
	}
	return out, nil
}

func resourceMetadataFor(r metadata.Resource) (*metadata.ResourceMetadata, bool) {
	t := reflectValueOf(r).Type()
	return metadata.Lookup(t)
}
