package audit

import "context"

// Store persists chain entries. Append-only: entries are created without
// chain fields, then patched once the hash is computed, so a crash between
// the two steps leaves a visibly unchained entry instead of a silent gap.
type Store interface {
	Create(ctx context.Context, entry Entry) (Entry, error)
	SetChain(ctx context.Context, id, prevHash, hash string) error
	// Latest returns the newest entry in the (resource, resourceID) scope.
	// A blank resourceID scopes to the resource type as a whole.
	Latest(ctx context.Context, resource, resourceID string) (Entry, bool, error)
	// ListAsc returns the oldest-first page and the total count in scope.
	ListAsc(ctx context.Context, filters Filters, limit, offset int) ([]Entry, int, error)
}
