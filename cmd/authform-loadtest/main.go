// Command authform-loadtest drives many concurrent forms through blur,
// registration and login against a Redis-backed directory and reports
// latency percentiles per phase.
package main

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/pflag"

	"github.com/MrEthical07/authform"
	"github.com/MrEthical07/authform/directory"
	"github.com/MrEthical07/authform/password"
)

const loadPassword = "load-secret"

func main() {
	var (
		accounts    = pflag.Int("accounts", 2000, "accounts registered in the register phase")
		concurrency = pflag.Int("concurrency", 64, "number of concurrent workers")
		ops         = pflag.Int("ops", 10000, "login operations in the login phase")
		redisAddr   = pflag.String("redis-addr", "", "redis address; if empty, REDIS_ADDR env or miniredis is used")
		prefix      = pflag.String("prefix", "afload", "directory key prefix")
		cheapHash   = pflag.Bool("cheap-hash", true, "use minimum Argon2id cost so the backend does not dominate")
	)
	pflag.Parse()

	if *accounts <= 0 || *concurrency <= 0 || *ops <= 0 {
		fmt.Fprintln(os.Stderr, "accounts, concurrency, and ops must be > 0")
		os.Exit(2)
	}

	ctx := context.Background()

	addr := *redisAddr
	if addr == "" {
		addr = os.Getenv("REDIS_ADDR")
	}

	var (
		cleanup func()
		client  redis.UniversalClient
	)
	if addr == "" {
		mr, err := miniredis.Run()
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to start miniredis: %v\n", err)
			os.Exit(1)
		}
		addr = mr.Addr()
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() {
			_ = client.Close()
			mr.Close()
		}
		fmt.Printf("using miniredis at %s\n", addr)
	} else {
		client = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs: []string{addr},
		})
		cleanup = func() { _ = client.Close() }
		fmt.Printf("using redis at %s\n", addr)
	}
	defer cleanup()

	dirCfg := directory.DefaultConfig()
	dirCfg.KeyPrefix = *prefix
	if *cheapHash {
		dirCfg.Password = password.Config{Memory: 8 * 1024, Time: 1, Parallelism: 1, SaltLength: 16, KeyLength: 16}
	}
	dir, err := directory.New(client, dirCfg, nil, nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "directory: %v\n", err)
		os.Exit(1)
	}

	cfg := authform.DefaultConfig()
	cfg.Form.LoginCloseDelay = 0
	cfg.Form.RegisterResetDelay = 0
	cfg.Form.ResetReturnDelay = 0
	cfg.Metrics.Enabled = true
	cfg.Metrics.EnableLatencyHistograms = true
	engine, err := authform.New().WithConfig(cfg).WithEmailLookup(dir).WithBackend(dir).Build()
	if err != nil {
		fmt.Fprintf(os.Stderr, "engine: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	run := time.Now().UnixNano()
	emails := make([]string, *accounts)
	for i := range emails {
		emails[i] = fmt.Sprintf("load-%d-%d@example.com", run, i)
	}

	registerStats := runRegisterPhase(ctx, engine, emails, *concurrency)
	loginStats := runLoginPhase(ctx, engine, emails, *ops, *concurrency)

	fmt.Println("---- results ----")
	printStats("register", registerStats)
	printStats("login", loginStats)

	snap := engine.MetricsSnapshot()
	fmt.Printf("lookups=%d race_guard_exists=%d register_ok=%d login_ok=%d\n",
		snap.Counters[authform.MetricEmailCheckStarted],
		snap.Counters[authform.MetricRaceGuardExists],
		snap.Counters[authform.MetricRegisterSuccess],
		snap.Counters[authform.MetricLoginSuccess],
	)
}

// runRegisterPhase registers every email once: blur, then submit.
func runRegisterPhase(ctx context.Context, engine *authform.Engine, emails []string, concurrency int) phaseStats {
	var (
		wg        sync.WaitGroup
		cursor    int64
		failures  int64
		latencies = make([]time.Duration, 0, len(emails))
		mu        sync.Mutex
	)

	start := time.Now()
	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= len(emails) {
					return
				}
				t0 := time.Now()
				ok := registerOnce(ctx, engine, emails[i])
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
}

func registerOnce(ctx context.Context, engine *authform.Engine, addr string) bool {
	form, err := engine.NewForm(authform.FormOptions{})
	if err != nil {
		return false
	}
	if err := form.SwitchMode(ctx, authform.ModeRegister); err != nil {
		return false
	}
	form.SetFields(authform.Fields{Email: addr, Password: loadPassword, ConfirmPassword: loadPassword})
	if v := form.BlurEmail(ctx); v.Status != authform.StatusAvailable {
		return false
	}
	return form.Submit(ctx).Success
}

// runLoginPhase logs in to random registered accounts.
func runLoginPhase(ctx context.Context, engine *authform.Engine, emails []string, ops, concurrency int) phaseStats {
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
			r := rand.New(rand.NewSource(time.Now().UnixNano() + int64(worker)*7919))
			for {
				i := int(atomic.AddInt64(&cursor, 1)) - 1
				if i >= ops {
					return
				}
				addr := emails[r.Intn(len(emails))]

				t0 := time.Now()
				ok := false
				if form, err := engine.NewForm(authform.FormOptions{}); err == nil {
					form.SetFields(authform.Fields{Email: addr, Password: loadPassword})
					ok = form.Submit(ctx).Success
				}
				d := time.Since(t0)
				if !ok {
					atomic.AddInt64(&failures, 1)
				}
				mu.Lock()
				latencies = append(latencies, d)
				mu.Unlock()
			}
		}(w)
	}
	wg.Wait()
	total := time.Since(start)
	return computeStats(total, latencies, failures)
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
	idx := (len(samples) - 1) * p / 100
	return samples[idx]
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
