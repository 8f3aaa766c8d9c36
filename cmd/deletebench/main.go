package main

import (
	"context"
	"fmt"
	"math"
	"os"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/d60-Lab/void-feed/config"
	"github.com/d60-Lab/void-feed/internal/model"
	"github.com/d60-Lab/void-feed/internal/repository"
	"github.com/d60-Lab/void-feed/internal/service"
	"github.com/d60-Lab/void-feed/pkg/cache"
	"github.com/d60-Lab/void-feed/pkg/database"
)

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func pct(vs []time.Duration, p float64) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	xs := append([]time.Duration(nil), vs...)
	sort.Slice(xs, func(i, j int) bool { return xs[i] < xs[j] })
	k := int(math.Ceil(p*float64(len(xs)))) - 1
	if k < 0 {
		k = 0
	}
	if k >= len(xs) {
		k = len(xs) - 1
	}
	return xs[k]
}

func avg(vs []time.Duration) time.Duration {
	if len(vs) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range vs {
		sum += d
	}
	return sum / time.Duration(len(vs))
}

func envInt(name string, def int) int {
	if s := os.Getenv(name); s != "" {
		if v, e := strconv.Atoi(s); e == nil && v > 0 {
			return v
		}
	}
	return def
}

type nopSounds struct{}

func (nopSounds) PlayDeleteSound(model.Variant) {}
func (nopSounds) PlayErrorSound()               {}
func (nopSounds) PlaySuccessSound()             {}

func main() {
	cfg := must(config.Load())
	db := must(database.InitDB(cfg))
	rdb := must(cache.NewRedis(context.Background(), cfg.Redis))
	defer rdb.Close()

	// params
	POSTS := envInt("POSTS", 2000)  // live posts
	USERS := envInt("USERS", 50)    // concurrent deleters
	DUP := envInt("DUP", 2)         // users racing per post
	WORKERS := envInt("WORKERS", 4) // relay + audit workers

	// clean tables for a reproducible run (ok for local bench)
	_ = db.Exec("DELETE FROM post_changes").Error
	_ = db.Exec("DELETE FROM deletions").Error
	_ = db.Exec("DELETE FROM posts").Error

	changes := repository.NewChangeRepository(db)
	posts := repository.NewPostRepository(db, changes)
	deletions := repository.NewDeletionRepository(db)
	now := time.Now().UTC()
	for i := 0; i < POSTS; i++ {
		p := &model.Post{Kind: model.PostKindQuote, Content: fmt.Sprintf("bench %d", i), CreatedAt: now.Add(-time.Duration(i) * time.Second)}
		if err := posts.Create(context.Background(), p); err != nil {
			panic(err)
		}
	}

	tally := service.NewDeletionTally(deletions, rdb, cfg.Feed.TallyTTL)
	gateway := service.NewFeedGateway(posts, deletions, rdb, cfg.Redis.Channel, service.WithDeletionRecordedHook(tally.OnDeletionRecorded))
	relay := service.NewChangeRelay(changes, rdb, cfg.Redis.Channel, WORKERS, cfg.Feed.RelayClaimLimit, 10*time.Millisecond)
	stopRelay := relay.Start()
	audit := service.NewAuditQueue(gateway, POSTS*DUP, cfg.Feed.PersistTimeout)
	stopAudit := audit.Start(WORKERS)

	// 每个用户一个独立的 store，模拟多个客户端同时删同一批帖子
	live := must(gateway.FetchLive(context.Background()))
	var mu sync.Mutex
	var persist []time.Duration
	outcomes := map[service.Outcome]int{}

	groups := max(USERS/DUP, 1)
	var wg sync.WaitGroup
	start := time.Now()
	for u := 0; u < USERS; u++ {
		wg.Add(1)
		go func(u int) {
			defer wg.Done()
			store := service.NewFeedStore()
			store.Reconcile(live)
			ctrl := service.NewFeedController(store, gateway, nopSounds{}, nil,
				service.WithAuditSink(audit),
				service.WithWaitFunc(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }))
			defer ctrl.Close()

			user := fmt.Sprintf("bench-user-%d", u)
			// 同组 DUP 个用户争抢同一批帖子
			for i := u / DUP; i < len(live); i += groups {
				st := time.Now()
				res, _ := ctrl.Delete(context.Background(), user, live[i].ID)
				d := time.Since(st)
				mu.Lock()
				persist = append(persist, d)
				outcomes[res.Outcome]++
				mu.Unlock()
			}
		}(u)
	}
	wg.Wait()
	elapsed := time.Since(start)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	_ = stopAudit(ctx)

	var relayed []time.Duration
	deadline := time.After(30 * time.Second)
	for pending := must(changes.CountPending(ctx)); pending > 0; pending = must(changes.CountPending(ctx)) {
		select {
		case <-deadline:
			fmt.Printf("timeout waiting for relay, pending=%d\n", pending)
			goto PRINT
		case <-time.After(50 * time.Millisecond):
		}
	}

PRINT:
	_ = stopRelay(ctx)
drain:
	for {
		select {
		case d := <-relay.Metrics():
			relayed = append(relayed, d)
		default:
			break drain
		}
	}

	fmt.Printf("POSTS=%d USERS=%d DUP=%d WORKERS=%d\n", POSTS, USERS, DUP, WORKERS)
	fmt.Printf("Delete (optimistic+persist): n=%d total=%v avg=%v p95=%v p99=%v\n", len(persist), elapsed, avg(persist), pct(persist, 0.95), pct(persist, 0.99))
	fmt.Printf("Outcomes: committed=%d already_gone=%d rolled_back=%d ignored=%d\n",
		outcomes[service.OutcomeCommitted], outcomes[service.OutcomeAlreadyGone], outcomes[service.OutcomeRolledBack], outcomes[service.OutcomeIgnored])
	fmt.Printf("Relay landing (change->published): samples=%d avg=%v p95=%v p99=%v\n", len(relayed), avg(relayed), pct(relayed, 0.95), pct(relayed, 0.99))

	top := must(tally.Top(ctx, 3))
	for _, t := range top {
		fmt.Printf("top deleter %s: %d\n", t.UserID, t.Count)
	}
	fmt.Printf("Tally aggregations: %d\n", tally.Aggregations())
}
