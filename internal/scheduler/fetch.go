package scheduler

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/quarrybuild/quarry/internal/source"
)

// QueryDeduper wraps a source.Source so concurrent identical metadata
// queries issued by different resolver goroutines during a parallel
// fetch collapse into a single underlying call — a registry lookup or
// git ls-remote for the same package only needs to happen once no
// matter how many units are waiting on it. It implements source.Source
// itself, so it can be substituted anywhere the underlying source is
// used.
type QueryDeduper struct {
	source.Source
	group singleflight.Group
}

// Query deduplicates on the dependency name and requirement string,
// since together they determine the query's result.
func (d *QueryDeduper) Query(ctx context.Context, dep source.DependencySpec) (source.QueryResult, error) {
	key := dep.Name + "@" + dep.Requirement.String()
	v, err, _ := d.group.Do(key, func() (interface{}, error) {
		return d.Source.Query(ctx, dep)
	})
	if err != nil {
		return source.QueryResult{}, err
	}
	return v.(source.QueryResult), nil
}
