package permission

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Role is the graph node consumed by [Resolve]. Mask is zero when the stored
// role carries no permission field.
type Role struct {
	ID      uuid.UUID
	Mask    Mask64
	Inherit []uuid.UUID
}

// Source fetches role records by identifier. Identifiers with no matching
// role are skipped, not errored: a dangling inherit edge contributes
// nothing. Errors are storage faults and abort resolution.
type Source interface {
	Roles(ctx context.Context, ids []uuid.UUID) ([]Role, error)
}

// Resolve computes the effective permission mask: the OR of the masks of
// every role reachable from start by following inherit edges, start roles
// included. Each role is visited at most once, so a cyclic graph still
// terminates. Any fetch failure aborts with an error; the result is never
// silently defaulted.
func Resolve(ctx context.Context, src Source, start []uuid.UUID) (Mask64, error) {
	var effective Mask64

	visited := make(map[uuid.UUID]struct{}, len(start))
	frontier := make([]uuid.UUID, 0, len(start))

	for _, id := range start {
		if _, seen := visited[id]; seen {
			continue
		}
		visited[id] = struct{}{}
		frontier = append(frontier, id)
	}

	for len(frontier) > 0 {
		roles, err := src.Roles(ctx, frontier)
		if err != nil {
			return 0, fmt.Errorf("fetch role batch: %w", err)
		}

		next := frontier[:0:0]
		for _, role := range roles {
			effective = effective.Union(role.Mask)
			for _, id := range role.Inherit {
				if _, seen := visited[id]; seen {
					continue
				}
				visited[id] = struct{}{}
				next = append(next, id)
			}
		}
		frontier = next
	}

	return effective, nil
}
