// Package store provides the key-path document store the sync core runs
// against: point reads, whole-document writes, subtree enumeration, subtree
// change subscriptions, and atomic batches of set mutations for the
// denormalized follow edges.
package store

import "context"

// OpKind identifies a batch operation.
type OpKind int

const (
	// OpAddMember adds a member to the set document at Path.
	OpAddMember OpKind = iota + 1
	// OpRemoveMember removes a member from the set document at Path.
	OpRemoveMember
)

// Op is a single set mutation inside an atomic batch.
type Op struct {
	Kind   OpKind
	Path   string
	Member string
}

// AddMember builds an Op that adds member to the set at path.
func AddMember(path, member string) Op {
	return Op{Kind: OpAddMember, Path: path, Member: member}
}

// RemoveMember builds an Op that removes member from the set at path.
func RemoveMember(path, member string) Op {
	return Op{Kind: OpRemoveMember, Path: path, Member: member}
}

// Event is a change notification for a single path.
type Event struct {
	Path    string
	Raw     []byte // JSON document at Path; nil when Deleted
	Deleted bool
}

// Subscription is a live change feed for a subtree. Close releases the
// subscription; Events is closed afterwards.
type Subscription interface {
	Events() <-chan Event
	Close()
}

// Store is the authoritative document store. Implementations surface every
// failure as a models.AppError with code REMOTE_ERROR (reads of missing
// documents return NOT_FOUND).
type Store interface {
	// Get reads the document at path into dest.
	Get(ctx context.Context, path string, dest any) error
	// Put writes value as the whole document at path.
	Put(ctx context.Context, path string, value any) error
	// Delete removes the document at path. Deleting a missing document is
	// not an error.
	Delete(ctx context.Context, path string) error
	// List enumerates documents under prefix, invoking each per document.
	// Returning an error from each aborts the enumeration.
	List(ctx context.Context, prefix string, each func(path string, raw []byte) error) error
	// Members returns the members of the set document at path. A missing
	// set reads as empty.
	Members(ctx context.Context, path string) ([]string, error)
	// Batch applies the given set mutations atomically: all or none.
	Batch(ctx context.Context, ops ...Op) error
	// Subscribe opens a change feed for every document under prefix.
	Subscribe(ctx context.Context, prefix string) (Subscription, error)
}
