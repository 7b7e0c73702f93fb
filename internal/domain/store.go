package domain

// Store handles local persistence (BoltDB + memory).
// Values are JSON encoded; reads decode into dest and report a hit.
type Store interface {
	// === Collections (one entry per resource key, overwritten wholesale) ===
	GetEntry(key ResourceKey, dest any) bool
	SaveEntry(key ResourceKey, entry any) error
	DeleteEntry(key ResourceKey)
	EntryKeys() []ResourceKey

	// === Cart ===
	GetCart(dest any) bool
	SaveCart(lines any) error

	// === Invalidation ===
	InvalidateAll()

	Close() error
}

// SessionStore persists the single session token string.
type SessionStore interface {
	GetToken() (string, bool)
	SaveToken(token string) error
	ClearToken() error
}
