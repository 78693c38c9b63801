// README: Bench cases; connectivity, migration, health and the concurrent trip creation race.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"truckmatch/internal/infra"
	"truckmatch/internal/modules/driver"
	"truckmatch/internal/modules/unit"
	"truckmatch/internal/types"
)

type Runner struct {
	cfg   Config
	httpc *http.Client
	db    *pgxpool.Pool
	redis *redis.Client
}

type Result struct {
	Name    string
	Status  string
	Latency time.Duration
	Note    string
}

type TestCase struct {
	Name string
	Run  func(ctx context.Context, r *Runner) Result
}

func NewRunner(cfg Config) *Runner {
	return &Runner{
		cfg:   cfg,
		httpc: &http.Client{Timeout: 10 * time.Second},
	}
}

func (r *Runner) RunAll(ctx context.Context) []Result {
	if r.cfg.DSN != "" {
		if db, err := pgxpool.New(ctx, r.cfg.DSN); err == nil {
			r.db = db
		}
	}
	if r.cfg.RedisAddr != "" {
		r.redis = redis.NewClient(&redis.Options{Addr: r.cfg.RedisAddr})
	}

	tests := r.cases()
	results := make([]Result, 0, len(tests))

	for _, tc := range tests {
		res := tc.Run(ctx, r)
		res.Name = tc.Name
		results = append(results, res)
		fmt.Printf("%-7s %s", res.Status, tc.Name)
		if res.Latency > 0 {
			fmt.Printf(" (%s)", res.Latency)
		}
		if res.Note != "" {
			fmt.Printf(" - %s", res.Note)
		}
		fmt.Println()
	}

	if r.db != nil {
		r.db.Close()
	}
	if r.redis != nil {
		_ = r.redis.Close()
	}

	return results
}

func (r *Runner) cases() []TestCase {
	return []TestCase{
		{Name: "Env: Postgres connect", Run: checkPostgres},
		{Name: "Env: Redis connect", Run: checkRedis},
		{Name: "Migration: apply (optional)", Run: applyMigration},
		{Name: "Migration: tables exist", Run: checkTables},
		{Name: "API: health", Run: checkHealth},
		{Name: "API: unauthenticated request rejected", Run: checkUnauthorized},
		{Name: "Concurrency: one trip per driver and unit", Run: concurrentTripCreate},
	}
}

func checkPostgres(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: "FAIL", Note: "db not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.db.Ping(ctx); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	return Result{Status: "PASS"}
}

func checkRedis(ctx context.Context, r *Runner) Result {
	if r.redis == nil {
		return Result{Status: "SKIP", Note: "redis not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := r.redis.Ping(ctx).Err(); err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	return Result{Status: "PASS"}
}

func applyMigration(ctx context.Context, r *Runner) Result {
	if !r.cfg.ApplyMigration {
		return Result{Status: "SKIP", Note: "apply-migration=false"}
	}
	if r.db == nil {
		return Result{Status: "FAIL", Note: "db not configured"}
	}
	sql, err := os.ReadFile(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	for _, s := range splitSQL(string(sql)) {
		if _, err := r.db.Exec(ctx, s); err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
	}
	return Result{Status: "PASS"}
}

func checkTables(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: "FAIL", Note: "db not configured"}
	}
	tables, err := extractTables(r.cfg.MigrationPath)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	for _, t := range tables {
		var exists bool
		err := r.db.QueryRow(ctx,
			"SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)",
			t,
		).Scan(&exists)
		if err != nil {
			return Result{Status: "FAIL", Note: err.Error()}
		}
		if !exists {
			return Result{Status: "FAIL", Note: "missing table: " + t}
		}
	}
	return Result{Status: "PASS"}
}

func checkHealth(ctx context.Context, r *Runner) Result {
	code, latency, err := r.do(ctx, http.MethodGet, "/health", "", nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if code != http.StatusOK {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", code)}
	}
	return Result{Status: "PASS", Latency: latency}
}

func checkUnauthorized(ctx context.Context, r *Runner) Result {
	code, latency, err := r.do(ctx, http.MethodGet, "/api/trip-routes", "", nil)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	if code != http.StatusUnauthorized {
		return Result{Status: "FAIL", Latency: latency, Note: fmt.Sprintf("status=%d", code)}
	}
	return Result{Status: "PASS", Latency: latency}
}

// concurrentTripCreate seeds a fresh driver and unit and fires parallel creations for the pair.
// Exactly one may succeed.
func concurrentTripCreate(ctx context.Context, r *Runner) Result {
	if r.db == nil {
		return Result{Status: "SKIP", Note: "db not configured"}
	}
	if r.cfg.JWTSecret == "" {
		return Result{Status: "SKIP", Note: "jwt secret not configured"}
	}
	verifier, err := infra.NewJWTVerifier(r.cfg.JWTSecret)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}
	token, err := verifier.Issue("bench", "dispatcher", 5*time.Minute)
	if err != nil {
		return Result{Status: "FAIL", Note: err.Error()}
	}

	driverID, unitID, err := seedPair(ctx, r.db)
	if err != nil {
		return Result{Status: "FAIL", Note: "seed: " + err.Error()}
	}
	payload := map[string]any{
		"origin":                   map[string]any{"address": "100 Congress Ave", "city": "Austin", "state": "TX"},
		"destination":              map[string]any{"address": "901 Bagby St", "city": "Houston", "state": "TX"},
		"estimated_distance_km":    265.4,
		"estimated_duration_hours": 2.8,
		"driver_id":                driverID,
		"unit_id":                  unitID,
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		created   int
		conflicts int
		other     []int
	)
	start := make(chan struct{})
	begin := time.Now()
	for i := 0; i < r.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			code, _, err := r.do(ctx, http.MethodPost, "/api/trip-routes", token, payload)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				other = append(other, 0)
			case code == http.StatusCreated:
				created++
			case code == http.StatusConflict:
				conflicts++
			default:
				other = append(other, code)
			}
		}()
	}
	close(start)
	wg.Wait()

	note := fmt.Sprintf("created=%d conflicts=%d other=%v", created, conflicts, other)
	if created != 1 || len(other) > 0 {
		return Result{Status: "FAIL", Latency: time.Since(begin), Note: note}
	}
	return Result{Status: "PASS", Latency: time.Since(begin), Note: note}
}

func seedPair(ctx context.Context, db *pgxpool.Pool) (types.ID, types.ID, error) {
	now := time.Now().UTC()
	d := &driver.Driver{
		ID: types.NewID(), Name: "Bench Driver", License: "BENCH-" + string(types.NewID())[:8],
		LicenseExpirationDate: now.AddDate(1, 0, 0), Status: driver.StatusActive,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := driver.NewStore(db).Create(ctx, d); err != nil {
		return "", "", err
	}
	u := &unit.Unit{
		ID: types.NewID(), PlateNumber: "BN-" + string(types.NewID())[:6], Type: unit.TypeTruck,
		Capacity: 20, CapacityUnit: unit.CapacityTons, Status: unit.StatusActive,
		CreatedAt: now, UpdatedAt: now,
	}
	if err := unit.NewStore(db).Create(ctx, u); err != nil {
		return "", "", err
	}
	return d.ID, u.ID, nil
}

func (r *Runner) do(ctx context.Context, method, path, token string, body any) (int, time.Duration, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return 0, 0, err
		}
		reader = strings.NewReader(string(b))
	}
	req, err := http.NewRequestWithContext(ctx, method, r.cfg.BaseURL+path, reader)
	if err != nil {
		return 0, 0, err
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	start := time.Now()
	resp, err := r.httpc.Do(req)
	if err != nil {
		return 0, 0, err
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()
	return resp.StatusCode, time.Since(start), nil
}

func extractTables(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	re := regexp.MustCompile(`(?i)create\s+table\s+if\s+not\s+exists\s+([a-zA-Z0-9_]+)`)
	matches := re.FindAllStringSubmatch(string(b), -1)
	tables := make([]string, 0, len(matches))
	for _, m := range matches {
		tables = append(tables, m[1])
	}
	return tables, nil
}

func splitSQL(sql string) []string {
	lines := strings.Split(sql, "\n")
	filtered := make([]string, 0, len(lines))
	for _, line := range lines {
		l := strings.TrimSpace(line)
		if strings.HasPrefix(l, "--") || l == "" {
			continue
		}
		filtered = append(filtered, line)
	}
	parts := strings.Split(strings.Join(filtered, "\n"), ";")
	stmts := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}
