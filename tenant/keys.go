package tenant

import "strings"

// =============================================================================
// KEY CODEC - Composite partition/sort key construction and parsing
// =============================================================================

// Key is a composite storage key of the form "{ENTITY}#{naturalID}".
// Singleton entities (one record per workspace) omit the natural id.
type Key string

// Entity is the record type discriminator embedded in every key.
type Entity string

const (
	EntityWorkspace            Entity = "WORKSPACE"
	EntityUser                 Entity = "USER"
	EntityVacation             Entity = "VACATION"
	EntityDecisionMaker        Entity = "DECISION_MAKER"
	EntityNotificationsChannel Entity = "NOTIFICATIONS_CHANNEL"
)

const keySeparator = "#"

// MakeKey composes a key from an entity type and an optional natural id.
// MakeKey(EntityVacation, "abc") == "VACATION#abc"
// MakeKey(EntityDecisionMaker, "") == "DECISION_MAKER"
func MakeKey(entity Entity, naturalID string) Key {
	if naturalID == "" {
		return Key(entity)
	}
	return Key(string(entity) + keySeparator + naturalID)
}

// HasEntity reports whether the key belongs to the given entity type.
// Works on both workspace-scoped and unscoped keys.
func (k Key) HasEntity(entity Entity) bool {
	s := string(k)
	if _, rest, ok := SplitWorkspace(k); ok {
		s = string(rest)
	}
	return s == string(entity) || strings.HasPrefix(s, string(entity)+keySeparator)
}

// NaturalID returns the natural id portion of the key ("" for singletons).
func (k Key) NaturalID() string {
	s := string(k)
	if _, rest, ok := SplitWorkspace(k); ok {
		s = string(rest)
	}
	if i := strings.Index(s, keySeparator); i >= 0 {
		return s[i+1:]
	}
	return ""
}

// WithWorkspace scopes a key to a workspace: "WORKSPACE#{workspaceID}#{key}".
// Calling it on an already-scoped key returns the key unchanged, so it never
// double-prefixes. The store itself rejects pre-scoped keys outright
// (ErrScopedKey); this idempotence serves consumers that work on the
// prefixed keys a change feed carries.
func WithWorkspace(workspaceID string, key Key) Key {
	if _, _, ok := SplitWorkspace(key); ok {
		return key
	}
	return Key(string(EntityWorkspace) + keySeparator + workspaceID + keySeparator + string(key))
}

// SplitWorkspace parses a workspace-scoped key into its workspace id and the
// unscoped remainder. ok is false for keys that carry no workspace prefix,
// including the bare singleton key "WORKSPACE" itself.
func SplitWorkspace(key Key) (workspaceID string, rest Key, ok bool) {
	parts := strings.SplitN(string(key), keySeparator, 3)
	if len(parts) != 3 || parts[0] != string(EntityWorkspace) || parts[1] == "" || parts[2] == "" {
		return "", "", false
	}
	return parts[1], Key(parts[2]), true
}
