package storage

import "fmt"

// Kinds lists the backends NewStore accepts.
func Kinds() []string {
	return []string{"memory", "sqlite", "mongo", "redis"}
}

// DefaultStoreKind is the backend used when none is configured.
func DefaultStoreKind() string {
	return "memory"
}

// NewStore builds a backend. dsn is the sqlite path, the mongo uri or the
// redis address depending on kind.
func NewStore(kind, dsn string) (Store, error) {
	switch kind {
	case "", "memory":
		return NewMemoryStore(), nil
	case "sqlite":
		if dsn == "" {
			dsn = "arenaevo.db"
		}
		return NewSQLiteStore(dsn), nil
	case "mongo":
		return NewMongoStore(dsn), nil
	case "redis":
		return NewRedisStore(dsn), nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedBackend, kind)
	}
}

func CloseIfSupported(store Store) error {
	closer, ok := store.(interface{ Close() error })
	if !ok {
		return nil
	}
	return closer.Close()
}
