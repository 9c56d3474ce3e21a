package credstore

// Scope is one physical key-value storage area. The replicated Store writes
// every value to all of its scopes; a Scope never needs to know about the
// others.
type Scope interface {
	// Get returns the value for key, or errors.ErrKeyNotFound.
	Get(key string) (string, error)
	Set(key, value string) error
	// Delete removes key. Deleting an absent key is not an error.
	Delete(key string) error
}

// Legacy key aliases. The credential and the cached profile have each been
// stored under two names over the product's history; both are kept in sync
// so older readers keep working.
var (
	CredentialKeys = []string{"auth_token", "token"}
	ProfileKeys    = []string{"user_profile", "user"}
)
