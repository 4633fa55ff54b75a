package integration

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"testing"
	"time"

	"reading-adventure-service/internal/app"
	"reading-adventure-service/internal/domain"
	"reading-adventure-service/internal/infra/memory"
	"reading-adventure-service/internal/infra/postgres"
	pgmigrations "reading-adventure-service/internal/infra/postgres/migrations"
	infraredis "reading-adventure-service/internal/infra/redis"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"
)

func TestGradeParagraphPersistsProgress(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateProgress(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()
	progressStore := postgres.NewProgressStore(pool)

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	newService := func() *app.ReadingService {
		generator := memory.NewStaticStoryGenerator(memory.SampleStory(), nil)
		return app.NewReadingService(
			infraredis.NewStoryRepository(redisClient, generator, 5*time.Minute),
			infraredis.NewSessionStore(redisClient, 5*time.Minute),
			memory.NewProfileStore(progressStore),
			app.NewFeedbackPicker(rand.New(rand.NewSource(1))),
		)
	}

	service := newService()
	params := domain.StoryParams{Theme: "adventure", Characters: "Pip the hedgehog", ReadingLevel: "2"}
	snap, err := service.GenerateStory(ctx, "reader-1", params)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if _, err := service.OpenParagraph(ctx, "reader-1", snap.SessionID, 0); err != nil {
		t.Fatalf("open: %v", err)
	}
	for q, option := range []int{0, 1} {
		if _, err := service.SelectAnswer(ctx, "reader-1", snap.SessionID, 0, q, option); err != nil {
			t.Fatalf("select: %v", err)
		}
	}
	outcome, err := service.GradeParagraph(ctx, "reader-1", snap.SessionID, 0)
	if err != nil {
		t.Fatalf("grade: %v", err)
	}
	if !outcome.Graded || outcome.Result.Points != 100 || outcome.Progress.Level != 2 {
		t.Fatalf("unexpected outcome %+v", outcome)
	}
	service.Close()

	stored, err := progressStore.LoadProgress(ctx, "reader-1")
	if err != nil {
		t.Fatalf("load progress: %v", err)
	}
	want := domain.ProgressionState{Score: 100, Level: 2, Experience: 0}
	if stored != want {
		t.Fatalf("expected %+v stored, got %+v", want, stored)
	}

	// A restarted service picks the reader up where they left off.
	restarted := newService()
	defer restarted.Close()
	view := restarted.Progress(ctx, "reader-1")
	if !view.Hydrated || view.Score != 100 || view.Level != 2 {
		t.Fatalf("expected hydrated progress, got %+v", view)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "reader", "POSTGRES_PASSWORD": "readerpass", "POSTGRES_DB": "adventure"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://reader:readerpass@%s:%s/adventure?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateProgress(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
