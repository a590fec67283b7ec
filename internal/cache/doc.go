/*
Package cache keeps decoded bitmaps in memory under a single byte budget.

Thumbnails and full-resolution images share the budget and one LRU order.
"Use" is a successful Get; Peek is for bookkeeping and does not count. When
resident bytes exceed the budget, entries are evicted from the cold end until
the total fits again, skipping any entry pinned through Acquire (the original of an open edit
session) or reserved through Reserve (the image on screen, reserved before its
decode lands). The budget can therefore be exceeded while pins are held and is
restored when they are released.

Decode failures are remembered for a short TTL so a broken file is not decoded
again on every frame. Every Put and PutFailure carries an epoch; results from
before the last NextEpoch call (a directory switch) are dropped on arrival.
Invalidate bumps a per-path generation that the pool stamps into requests, so
a decode that was already running when its file changed is dropped as well.

The cache is the ResultStore of the decode pool:

	c := cache.New(cache.Options{Budget: 512 << 20})
	pool := workers.NewPool(workers.Options{Decode: fn, Store: c})
	c.SetPool(pool)

	switch l := c.GetOrDecode(req); l.Status {
	case cache.StatusReady:   // l.Bitmap
	case cache.StatusPending: // wait on l.Handle.Done()
	case cache.StatusFailed:  // l.Err
	}

Locking: the pool calls Peek while holding its own lock, so the cache never
calls into the pool with its mutex held.
*/
package cache
