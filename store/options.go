package store

// StoreOption is a functional option for configuring a conversation store.
type StoreOption func(*storeConfig)

// storeConfig holds configuration for conversation stores.
type storeConfig struct {
	supabaseURL string
	supabaseKey string
	table       string
}

// WithSupabase sets the Supabase project URL and API key for the
// Supabase store.
func WithSupabase(url, apiKey string) StoreOption {
	return func(c *storeConfig) {
		c.supabaseURL = url
		c.supabaseKey = apiKey
	}
}

// WithTable overrides the conversations table name.
func WithTable(table string) StoreOption {
	return func(c *storeConfig) {
		c.table = table
	}
}
