package store

import (
	"github.com/aviationai/chatengine"
)

// StoreType represents the type of conversation store.
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeSupabase StoreType = "supabase"
)

const defaultTable = "conversations"

// NewStore creates a new conversation Store based on the given type.
// Supports "memory" and "supabase" driver types.
// For Supabase, requires the WithSupabase option.
func NewStore(storeType StoreType, opts ...StoreOption) (Store, error) {
	config := &storeConfig{table: defaultTable}

	for _, opt := range opts {
		opt(config)
	}

	switch storeType {
	case StoreTypeMemory:
		return newMemoryStore(), nil

	case StoreTypeSupabase:
		if config.supabaseURL == "" || config.supabaseKey == "" {
			return nil, chatengine.ErrInvalidConfig
		}
		return newSupabaseStore(config)

	default:
		return nil, chatengine.ErrInvalidStoreType
	}
}
