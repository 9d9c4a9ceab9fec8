package session

import (
	googleuuid "github.com/google/uuid"
)

// Ref identifies a transaction held by a session. A pending ref points at a
// transaction the store has not acknowledged yet; a persisted ref carries its
// durable id. Only persisted refs can drive a cascade.
type Ref struct {
	key     string
	pending bool
}

// Pending returns a ref for a not yet persisted transaction.
func Pending(key string) Ref {
	return Ref{key: key, pending: true}
}

// Persisted returns a ref for a stored transaction.
func Persisted(id string) Ref {
	return Ref{key: id}
}

func newPendingRef() Ref {
	return Pending(googleuuid.NewString())
}

// IsPending reports whether the ref still designates a placeholder.
func (r Ref) IsPending() bool { return r.pending }

// ID returns the durable id, or "" for a pending ref.
func (r Ref) ID() string {
	if r.pending {
		return ""
	}
	return r.key
}

// IsZero reports whether r is the zero Ref.
func (r Ref) IsZero() bool { return r.key == "" }

func (r Ref) String() string {
	if r.pending {
		return "pending:" + r.key
	}
	return r.key
}
