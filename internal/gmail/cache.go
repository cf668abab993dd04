package gmail

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Cache TTLs. Empty listings expire faster so new mail shows up sooner.
const (
	listTTL      = 5 * time.Minute
	emptyListTTL = 2 * time.Minute
	detailTTL    = 10 * time.Minute

	janitorInterval = time.Minute
)

// mailboxCache holds listings and message details in separate TTL caches
// and keeps a message-to-listing index so invalidation works on exact
// keys instead of scanning.
type mailboxCache struct {
	lists   *gocache.Cache
	details *gocache.Cache

	mu sync.Mutex
	// byMessage maps a message reference (owner + id) to the set of list
	// keys whose cached result contains that message.
	byMessage map[string]map[string]struct{}
	// keyMessages maps a list key back to the message references it was
	// indexed under, so evicted listings can be unlinked.
	keyMessages map[string][]string
}

func newMailboxCache() *mailboxCache {
	c := &mailboxCache{
		lists:       gocache.New(listTTL, janitorInterval),
		details:     gocache.New(detailTTL, janitorInterval),
		byMessage:   make(map[string]map[string]struct{}),
		keyMessages: make(map[string][]string),
	}
	// Keep the index in step with janitor expiry.
	c.lists.OnEvicted(func(key string, _ interface{}) {
		c.unlink(key)
	})
	return c
}

func listKey(owner, query string, limit int) string {
	return fmt.Sprintf("list:%s:%s:%d", owner, query, limit)
}

func detailKey(owner, id string) string {
	return fmt.Sprintf("detail:%s:%s", owner, id)
}

func messageRef(owner, id string) string {
	return owner + ":" + id
}

func (c *mailboxCache) getList(key string) ([]Summary, bool) {
	v, ok := c.lists.Get(key)
	if !ok {
		return nil, false
	}
	summaries, ok := v.([]Summary)
	return summaries, ok
}

// setList stores a listing and indexes every contained message so that
// invalidateMessage can find the entry later.
func (c *mailboxCache) setList(owner, key string, summaries []Summary) {
	ttl := listTTL
	if len(summaries) == 0 {
		ttl = emptyListTTL
	}
	c.lists.Set(key, summaries, ttl)

	c.mu.Lock()
	defer c.mu.Unlock()

	refs := make([]string, 0, len(summaries))
	for _, s := range summaries {
		ref := messageRef(owner, s.ID)
		if c.byMessage[ref] == nil {
			c.byMessage[ref] = make(map[string]struct{})
		}
		c.byMessage[ref][key] = struct{}{}
		refs = append(refs, ref)
	}
	c.keyMessages[key] = refs
}

func (c *mailboxCache) getDetail(key string) (*Detail, bool) {
	v, ok := c.details.Get(key)
	if !ok {
		return nil, false
	}
	detail, ok := v.(*Detail)
	return detail, ok
}

func (c *mailboxCache) setDetail(key string, detail *Detail) {
	c.details.Set(key, detail, detailTTL)
}

// invalidateMessage drops the detail entry for a message and every cached
// listing that contains it.
func (c *mailboxCache) invalidateMessage(owner, id string) {
	c.details.Delete(detailKey(owner, id))

	c.mu.Lock()
	ref := messageRef(owner, id)
	keys := make([]string, 0, len(c.byMessage[ref]))
	for key := range c.byMessage[ref] {
		keys = append(keys, key)
	}
	c.mu.Unlock()

	// Delete outside the lock: the eviction callback takes it again.
	for _, key := range keys {
		c.lists.Delete(key)
	}
}

// unlink removes a list key from the invalidation index.
func (c *mailboxCache) unlink(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ref := range c.keyMessages[key] {
		if set := c.byMessage[ref]; set != nil {
			delete(set, key)
			if len(set) == 0 {
				delete(c.byMessage, ref)
			}
		}
	}
	delete(c.keyMessages, key)
}
