package testutil

import (
	"context"
	"crypto/rsa"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shivanandham/pregnancy-assistant/internal/api"
	"github.com/shivanandham/pregnancy-assistant/internal/config"
	"github.com/shivanandham/pregnancy-assistant/internal/metrics"
	"github.com/shivanandham/pregnancy-assistant/internal/repository"
	repoPostgres "github.com/shivanandham/pregnancy-assistant/internal/repository/postgres"
	"github.com/shivanandham/pregnancy-assistant/internal/service"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance.
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB creates a new PostgreSQL testcontainer, runs migrations and
// returns a connection. The container is terminated via t.Cleanup.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_pregnancy_assistant"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := repoPostgres.Migrate(db); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
	}

	t.Cleanup(func() {
		testDB.Cleanup()
	})

	return testDB
}

// Cleanup terminates the container.
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		tdb.Container.Terminate(context.Background())
	}
}

// Truncate clears all tables for test isolation.
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()

	tables := []string{
		"knowledge_facts",
		"conversation_chunks",
		"chat_messages",
		"pregnancies",
		"sessions",
		"users",
	}

	for _, table := range tables {
		if err := tdb.DB.Exec("TRUNCATE TABLE " + table + " CASCADE").Error; err != nil {
			t.Fatalf("failed to truncate %s: %v", table, err)
		}
	}
}

// TestConfig returns a config suitable for tests: short-lived sessions, the
// development custom-token shortcut enabled.
func TestConfig() *config.Config {
	return &config.Config{
		Port:                        "0",
		Environment:                 "development",
		JWTSecret:                   "test-secret-not-for-production",
		SessionExpiresIn:            "1h",
		RefreshExpiresIn:            "24h",
		SweepRetention:              "7d",
		SweepInterval:               "24h",
		FirebaseProjectID:           "test-project",
		FirebaseServiceAccountEmail: "firebase-adminsdk-test@test-project.iam.gserviceaccount.com",
		AllowUnverifiedCustomTokens: true,
		GeminiModel:                 "gemini-2.5-flash",
		AITimeout:                   "5s",
		RateLimitPerMinute:          600,
		RateLimitBurst:              600,
	}
}

// StaticKeySource serves a fixed key set, avoiding any network fetch.
type StaticKeySource map[string]*rsa.PublicKey

func (s StaticKeySource) Keys(ctx context.Context) (map[string]*rsa.PublicKey, error) {
	return s, nil
}

// StubGenerator returns canned completions and records prompts.
type StubGenerator struct {
	Reply   string
	Err     error
	Prompts []string
}

func (g *StubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	g.Prompts = append(g.Prompts, prompt)
	if g.Err != nil {
		return "", g.Err
	}
	return g.Reply, nil
}

// TestServer wires the full router against the given database.
type TestServer struct {
	Server   *httptest.Server
	Repos    *repository.Repositories
	Services *service.Services
	Config   *config.Config
}

// NewTestServer builds the HTTP stack on top of testDB with a stub text
// generator and no rate limiting.
func NewTestServer(t *testing.T, testDB *TestDB, generator service.TextGenerator) *TestServer {
	t.Helper()

	cfg := TestConfig()
	repos := repoPostgres.NewRepositories(testDB.DB)

	if generator == nil {
		generator = &StubGenerator{Reply: "stub reply"}
	}

	services := service.NewServices(repos, cfg, StaticKeySource{}, generator, metrics.Nop{})
	services.Extraction.Start()
	t.Cleanup(services.Extraction.Stop)

	router := api.NewRouter(services, repos, cfg, nil, nil)
	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &TestServer{
		Server:   server,
		Repos:    repos,
		Services: services,
		Config:   cfg,
	}
}

// APIURL joins a path under /api/v1.
func (ts *TestServer) APIURL(path string) string {
	return ts.Server.URL + "/api/v1" + path
}
