package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]TableDefinition)
	registryMu sync.RWMutex
)

// Register adds a table definition to the registry.
// Column names are normalized so they match normalized dataset headers.
// Panics if the key is taken or a column is declared twice.
func Register(def TableDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[def.Key]; exists {
		panic(fmt.Sprintf("table already registered: %s", def.Key))
	}

	cols := make([]Column, len(def.Columns))
	seen := make(map[string]bool, len(def.Columns))
	for i, c := range def.Columns {
		c.Name = NormalizeColumnName(c.Name)
		if c.Name == "" || seen[c.Name] {
			panic(fmt.Sprintf("table %s: invalid or duplicate column %q", def.Key, def.Columns[i].Name))
		}
		seen[c.Name] = true
		cols[i] = c
	}
	def.Columns = cols

	registry[def.Key] = def
}

// Get returns a table definition by key.
// Returns false if not found.
func Get(key string) (TableDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns all registered table definitions sorted by key.
func All() []TableDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]TableDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// Clear removes all registered tables.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]TableDefinition)
}
