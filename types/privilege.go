package types

// Privilege is an atomic named permission drawn from the catalog.
// Catalog entries are loaded once at process start and never mutated.
type Privilege struct {
	// Key is the unique identifier of the privilege (e.g. "user_view").
	Key string `json:"key"`

	// Name is the human-readable label of the privilege.
	Name string `json:"name"`

	// Group clusters related privileges for presentation (e.g. "USERS").
	Group string `json:"group"`
}
