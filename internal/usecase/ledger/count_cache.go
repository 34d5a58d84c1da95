package ledger

import (
	"fmt"
	"sync"
	"time"

	"github.com/finlane/ledger-service/internal/domain"
	gocache "github.com/patrickmn/go-cache"
)

// countCache memoizes countMatching results for repeated dashboard polling.
// Entries are registered under status/type/account bucket tags so a write
// invalidates only the counts it could have changed, never the whole cache.
type countCache struct {
	data *gocache.Cache

	mu   sync.Mutex
	tags map[string]map[string]struct{}
}

func newCountCache(ttl time.Duration) *countCache {
	return &countCache{
		data: gocache.New(ttl, 2*ttl),
		tags: make(map[string]map[string]struct{}),
	}
}

func (c *countCache) Get(key string) (int64, bool) {
	v, ok := c.data.Get(key)
	if !ok {
		return 0, false
	}
	return v.(int64), true
}

func (c *countCache) Set(key string, value int64, buckets []string) {
	c.data.SetDefault(key, value)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, bucket := range buckets {
		keys, ok := c.tags[bucket]
		if !ok {
			keys = make(map[string]struct{})
			c.tags[bucket] = keys
		}
		keys[key] = struct{}{}
	}
}

func (c *countCache) InvalidateBuckets(buckets ...string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, bucket := range buckets {
		for key := range c.tags[bucket] {
			c.data.Delete(key)
		}
		delete(c.tags, bucket)
	}
}

// filterKey builds the cache key for one filter set.
func filterKey(f domain.TransactionFilter) string {
	return fmt.Sprintf("count|t=%s|s=%s|pa=%s|na=%s|b=%s|cf=%d|ct=%d|am=%g|ax=%g",
		f.Type, f.Status, f.PositiveAccount, f.NegativeAccount, f.BankID,
		f.CreatedFrom.UnixNano(), f.CreatedTo.UnixNano(), f.AmountMin, f.AmountMax)
}

// filterBuckets lists the invalidation tags a filter's count depends on. An
// unconstrained dimension depends on every value of that dimension, which the
// wildcard bucket stands in for.
func filterBuckets(f domain.TransactionFilter) []string {
	buckets := make([]string, 0, 4)
	if f.Status != "" {
		buckets = append(buckets, "status:"+string(f.Status))
	} else {
		buckets = append(buckets, "status:*")
	}
	if f.Type != "" {
		buckets = append(buckets, "type:"+string(f.Type))
	} else {
		buckets = append(buckets, "type:*")
	}
	if f.PositiveAccount != "" {
		buckets = append(buckets, "account:"+f.PositiveAccount)
	}
	if f.NegativeAccount != "" {
		buckets = append(buckets, "account:"+f.NegativeAccount)
	}
	if f.PositiveAccount == "" && f.NegativeAccount == "" {
		buckets = append(buckets, "account:*")
	}
	return buckets
}

// invalidateFor drops every cached count a write to txn could have changed.
// statuses covers both the prior and the new status of the row.
func (uc *DefaultLedgerUsecase) invalidateFor(txn *domain.Transaction, statuses ...domain.TransactionStatus) {
	buckets := []string{"status:*", "type:*", "account:*", "type:" + string(txn.Type)}
	for _, s := range statuses {
		buckets = append(buckets, "status:"+string(s))
	}
	if txn.PositiveAccount != "" {
		buckets = append(buckets, "account:"+txn.PositiveAccount)
	}
	if txn.NegativeAccount != "" {
		buckets = append(buckets, "account:"+txn.NegativeAccount)
	}
	uc.counts.InvalidateBuckets(buckets...)
}
