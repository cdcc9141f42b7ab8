// Package magnet holds the shared domain types and collaborator
// interfaces for the lobby-link magnet service.
package magnet

import (
	"context"
	"time"
)

// Fetcher retrieves the text of one URL. Implementations apply their own
// timeout and never retry; a failed fetch is an error for the caller to
// log and skip.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// Validator submits a lobby id to the external validation collaborator.
// A returned error means the collaborator did not accept the request and
// no Completion will arrive for it.
type Validator interface {
	Request(ctx context.Context, lobbyID uint64) error
}

// Launcher starts the external join action for a reference.
type Launcher interface {
	Launch(link string) error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
