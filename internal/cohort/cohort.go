// Package cohort resolves roster keys (a course id or a cohort id) to the
// ordered list of students eligible for attendance.
package cohort

import (
	"context"
	"errors"
	"strings"
)

// ErrRosterUnavailable is returned when the roster source cannot be reached.
var ErrRosterUnavailable = errors.New("roster source unavailable")

// Resolver returns the roster for a course or cohort key. Unknown keys yield
// an empty roster, not an error.
type Resolver interface {
	Roster(ctx context.Context, key string) ([]string, error)
}

// ResolverFunc adapts a function to Resolver.
type ResolverFunc func(ctx context.Context, key string) ([]string, error)

// Roster calls f.
func (f ResolverFunc) Roster(ctx context.Context, key string) ([]string, error) {
	return f(ctx, key)
}

// normalize trims ids, drops blanks and keeps the first occurrence of each id.
func normalize(students []string) []string {
	seen := make(map[string]struct{}, len(students))
	out := make([]string, 0, len(students))
	for _, id := range students {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
