package api

import (
	"sync"
	"time"

	"github.com/soldag/soldag/internal/ledger"
)

// defaultAccountTTL keeps repeated lookups of the same pubkey from hammering
// the RPC endpoint. Accounts are snapshots, staleness within the TTL is fine.
const defaultAccountTTL = 30 * time.Second

type accountCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]accountEntry
}

type accountEntry struct {
	account   *ledger.Account
	fetchedAt time.Time
}

func newAccountCache(ttl time.Duration) *accountCache {
	return &accountCache{
		ttl:     ttl,
		entries: make(map[string]accountEntry),
	}
}

func (c *accountCache) get(pubkey string) (*ledger.Account, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	entry, ok := c.entries[pubkey]
	if !ok {
		return nil, false
	}
	if time.Since(entry.fetchedAt) > c.ttl {
		delete(c.entries, pubkey)
		return nil, false
	}
	return entry.account, true
}

func (c *accountCache) put(pubkey string, account *ledger.Account) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[pubkey] = accountEntry{account: account, fetchedAt: time.Now()}
}
