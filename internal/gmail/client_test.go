package gmail

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

// newCachedClient returns a client whose provider service is nil, so any
// call that reaches past the cache panics. A returned result therefore
// proves the operation was served entirely from the cache.
func newCachedClient(cache *mailboxCache) *Client {
	return &Client{
		owner:   "alice",
		cache:   cache,
		limiter: rate.NewLimiter(rate.Every(time.Millisecond), 1),
		logger:  slog.Default(),
	}
}

func TestListUnreadWithinTTLSkipsProvider(t *testing.T) {
	cache := newMailboxCache()
	seeded := []Summary{{ID: "m1", Subject: "status update"}, {ID: "m2"}}
	cache.setList("alice", listKey("alice", DefaultQuery, 100), seeded)

	c := newCachedClient(cache)

	got, err := c.ListUnread(context.Background(), DefaultQuery, 100)
	if err != nil {
		t.Fatalf("ListUnread() error = %v", err)
	}
	if len(got) != 2 || got[0].ID != "m1" || got[1].ID != "m2" {
		t.Errorf("ListUnread() = %+v, want seeded summaries", got)
	}

	again, err := c.ListUnread(context.Background(), DefaultQuery, 100)
	if err != nil {
		t.Fatalf("second ListUnread() error = %v", err)
	}
	if len(again) != len(got) || again[0].ID != got[0].ID {
		t.Errorf("second ListUnread() = %+v, want identical result", again)
	}
}

func TestGetDetailWithinTTLSkipsProvider(t *testing.T) {
	cache := newMailboxCache()
	cache.setDetail(detailKey("alice", "m1"), &Detail{ID: "m1"})

	c := newCachedClient(cache)

	got, err := c.GetDetail(context.Background(), "m1")
	if err != nil {
		t.Fatalf("GetDetail() error = %v", err)
	}
	if got.ID != "m1" {
		t.Errorf("GetDetail().ID = %q, want m1", got.ID)
	}
}
