package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/donorhub"
	"github.com/MrEthical07/donorhub/internal/stores"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"golang.org/x/crypto/bcrypt"
)

const loadtestPassword = "loadtest-password"

type donor struct {
	email string
	token string
}

func main() {
	cmd := &cli.Command{
		Name:  "donorhub-loadtest",
		Usage: "Measure token validation and login throughput of the auth engine",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "donors", Value: 2000, Usage: "number of accounts to seed"},
			&cli.IntFlag{Name: "concurrency", Value: 64, Usage: "number of concurrent workers"},
			&cli.IntFlag{Name: "ops", Value: 100000, Usage: "token validations to run"},
			&cli.IntFlag{Name: "logins", Value: 5000, Usage: "logins to run"},
			&cli.StringFlag{
				Name:    "redis-addr",
				Usage:   "redis address for the revocation denylist; miniredis when empty",
				Sources: cli.EnvVars("REDIS_ADDR"),
			},
		},
		Action: run,
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cmd *cli.Command) error {
	var (
		donors      = int(cmd.Int("donors"))
		concurrency = int(cmd.Int("concurrency"))
		ops         = int(cmd.Int("ops"))
		logins      = int(cmd.Int("logins"))
	)
	if donors <= 0 || concurrency <= 0 || ops <= 0 || logins < 0 {
		return errors.New("donors, concurrency, and ops must be > 0")
	}

	client, cleanup, err := openRedis(cmd.String("redis-addr"))
	if err != nil {
		return err
	}
	defer cleanup()

	cfg := donorhub.DefaultConfig()
	cfg.Session.Secret = []byte("loadtest-secret-loadtest-secret-")
	cfg.Password.Cost = bcrypt.MinCost
	cfg.RateLimit.Enabled = false
	cfg.Audit.Enabled = false

	engine, err := donorhub.New().
		WithConfig(cfg).
		WithAccountStore(stores.NewMemoryAccounts()).
		WithRedis(client).
		Build()
	if err != nil {
		return err
	}
	defer engine.Close()

	states := make([]donor, donors)
	fmt.Printf("seeding %d donors...\n", donors)
	startSeed := time.Now()
	for i := range states {
		email := fmt.Sprintf("donor-%d@loadtest.invalid", i)
		res, err := engine.Register(ctx, donorhub.RegisterRequest{Email: email, Password: loadtestPassword, Name: "Load Test"})
		if err != nil {
			return fmt.Errorf("register %s: %w", email, err)
		}
		states[i] = donor{email: email, token: res.Token}
	}
	fmt.Printf("seeded in %s\n", time.Since(startSeed).Round(time.Millisecond))

	validateStats := runPhase(ops, concurrency, 7919, func(r *rand.Rand) error {
		_, err := engine.ValidateToken(ctx, states[r.Intn(len(states))].token)
		return err
	})
	var loginStats phaseStats
	if logins > 0 {
		loginStats = runPhase(logins, concurrency, 6151, func(r *rand.Rand) error {
			_, err := engine.Login(ctx, states[r.Intn(len(states))].email, loadtestPassword)
			return err
		})
	}

	fmt.Println("---- results ----")
	printStats("validate", validateStats)
	if logins > 0 {
		printStats("login", loginStats)
	}
	snap := engine.MetricsSnapshot()
	fmt.Printf("engine: login_success=%d register_success=%d\n",
		snap.Counters[donorhub.MetricLoginSuccess], snap.Counters[donorhub.MetricRegisterSuccess])
	return nil
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

// runPhase runs op ops times across concurrency workers and records each
// call's latency.
func runPhase(ops, concurrency int, seed int64, op func(r *rand.Rand) error) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, ops)
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*seed))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				t0 := time.Now()
				err := op(r)
				d := time.Since(t0)
				if err != nil {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	return computeStats(time.Since(start), latencies, failures)
}

type phaseStats struct {
	total    time.Duration
	ops      int
	failures int64
	p50      time.Duration
	p95      time.Duration
	p99      time.Duration
	opsPerS  float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	if len(samples) == 0 {
		return phaseStats{total: total}
	}
	sort.Slice(samples, func(i, j int) bool { return samples[i] < samples[j] })
	return phaseStats{
		total:    total,
		ops:      len(samples),
		failures: failures,
		p50:      percentile(samples, 50),
		p95:      percentile(samples, 95),
		p99:      percentile(samples, 99),
		opsPerS:  float64(len(samples)) / total.Seconds(),
	}
}

func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	if p <= 0 {
		return samples[0]
	}
	if p >= 100 {
		return samples[len(samples)-1]
	}
	return samples[(len(samples)-1)*p/100]
}

func printStats(name string, s phaseStats) {
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name,
		s.ops,
		s.failures,
		s.total.Round(time.Millisecond),
		s.opsPerS,
		s.p50.Round(time.Microsecond),
		s.p95.Round(time.Microsecond),
		s.p99.Round(time.Microsecond),
	)
}
