package definition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Catalog is the source of user-scoped manager records. *Store satisfies
// it; tests plug in fakes.
type Catalog interface {
	FindUser(ctx context.Context, username string) (*UserRecord, error)
	ManagersForProjects(ctx context.Context, projects []string) ([]ManagerRecord, error)
}

var _ Catalog = (*Store)(nil)

// Loader resolves the set of managers a user may delegate to. The system
// managers never depend on the database: an unknown user degrades to the
// system defaults with a warning. Only an unreachable catalog is an error.
type Loader struct {
	catalog Catalog
	log     *slog.Logger
}

func NewLoader(catalog Catalog, log *slog.Logger) *Loader {
	if log == nil {
		log = slog.Default()
	}
	return &Loader{catalog: catalog, log: log}
}

// Load returns the managers available to the user plus the user settings.
// The meta manager always comes first; the memory manager is appended only
// when the user enabled long-term memory.
func (l *Loader) Load(ctx context.Context, userID string) ([]Manager, UserSettings, error) {
	managers := []Manager{MetaManager()}
	settings := UserSettings{}

	user, err := l.catalog.FindUser(ctx, userID)
	if errors.Is(err, ErrNotFound) {
		l.log.Warn("user not found, serving system defaults only", "user_id", userID)
		return managers, settings, nil
	}
	if err != nil {
		return nil, settings, fmt.Errorf("load definitions for user %q: %w", userID, err)
	}
	settings.LongTermMemoryEnabled = user.Settings.LongTermMemoryEnabled

	if len(user.Projects) > 0 {
		records, err := l.catalog.ManagersForProjects(ctx, user.Projects)
		if err != nil {
			return nil, settings, fmt.Errorf("load managers for user %q: %w", userID, err)
		}
		for _, record := range records {
			managers = append(managers, record.toDomain(l.log))
		}
	}

	if settings.LongTermMemoryEnabled {
		l.log.Debug("injecting memory manager", "user_id", userID)
		managers = append(managers, MemoryManager())
	}

	return managers, settings, nil
}
