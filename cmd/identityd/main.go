// Command identityd serves the identity engine over HTTP.
//
// Configuration comes from the environment (a .env file is honored when
// present):
//
//	IDENTITY_REDIS_ADDR        Redis address (default localhost:6379)
//	IDENTITY_REDIS_PASSWORD    Redis password (optional)
//	IDENTITY_NAMESPACE         URN namespace (default stocktrack)
//	IDENTITY_PUBLIC_ADDR       public listen address (default :8080)
//	IDENTITY_INTERNAL_ADDR     internal listen address (default 127.0.0.1:8081)
//	IDENTITY_PEPPER            password pepper, base64 (required)
//	IDENTITY_SIGNING_ALG       "ed25519" or "hs256" (default ed25519)
//	IDENTITY_SIGNING_KEY_FILE  path to the signing key (PKCS#8 PEM for
//	                           ed25519, raw secret for hs256)
//
// On first start against an empty store, identityd provisions an admin role
// holding every capability bit and an admin account with a generated
// password, printed once to stdout.
package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	identity "github.com/stocktrack/identity"
	"github.com/stocktrack/identity/httpapi"
	"github.com/stocktrack/identity/password"
	"github.com/stocktrack/identity/permission"
	"github.com/stocktrack/identity/store/redisstore"
)

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	_ = godotenv.Load()

	redisAddr := envOr("IDENTITY_REDIS_ADDR", "localhost:6379")
	namespace := envOr("IDENTITY_NAMESPACE", "stocktrack")
	publicAddr := envOr("IDENTITY_PUBLIC_ADDR", ":8080")
	internalAddr := envOr("IDENTITY_INTERNAL_ADDR", "127.0.0.1:8081")

	keys, err := loadKeys()
	if err != nil {
		return err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: os.Getenv("IDENTITY_REDIS_PASSWORD"),
	})
	defer func() { _ = rdb.Close() }()

	cfg := identity.Config{Namespace: namespace}
	cfg = withDefaults(cfg)

	store := redisstore.New(rdb, redisstore.Config{
		Prefix:           namespace + ":",
		RetentionHorizon: cfg.Refresh.RetentionHorizon,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := store.Ping(pingCtx); err != nil {
		return fmt.Errorf("redis unreachable at %s: %w", redisAddr, err)
	}

	engine, err := identity.New().
		WithConfig(cfg).
		WithStore(store).
		WithKeyProvider(keys).
		WithAuditSink(identity.NewJSONWriterSink(os.Stdout)).
		Build()
	if err != nil {
		return fmt.Errorf("engine build: %w", err)
	}
	defer engine.Close()

	if err := bootstrap(ctx, store, cfg, keys); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	srv := httpapi.New(engine)

	errCh := make(chan error, 2)
	go func() {
		log.Printf("public surface listening on %s", publicAddr)
		errCh <- srv.StartPublic(publicAddr)
	}()
	go func() {
		log.Printf("internal surface listening on %s", internalAddr)
		errCh <- srv.StartInternal(internalAddr)
	}()

	select {
	case <-ctx.Done():
		log.Print("shutting down")
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func withDefaults(cfg identity.Config) identity.Config {
	full := identity.Config{Namespace: cfg.Namespace}
	full.JWT.AccessTTL = time.Hour
	full.Password = identity.PasswordConfig{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
		MaxLength:   2048,
	}
	full.Refresh.MaturationWindow = 2 * time.Minute
	full.Refresh.RetentionHorizon = 24 * time.Hour
	full.Timing.VerifyJitterMax = 250 * time.Millisecond
	full.Timing.AbsentUserDelay = 100 * time.Millisecond
	full.Audit = identity.AuditConfig{Enabled: true, BufferSize: 256, DropIfFull: true}
	full.Metrics.Enabled = true
	return full
}

func loadKeys() (identity.StaticKeys, error) {
	var keys identity.StaticKeys

	pepperB64 := os.Getenv("IDENTITY_PEPPER")
	if pepperB64 == "" {
		return keys, fmt.Errorf("IDENTITY_PEPPER is required")
	}
	pepper, err := base64.StdEncoding.DecodeString(pepperB64)
	if err != nil {
		return keys, fmt.Errorf("IDENTITY_PEPPER is not valid base64: %w", err)
	}

	keyFile := os.Getenv("IDENTITY_SIGNING_KEY_FILE")
	if keyFile == "" {
		return keys, fmt.Errorf("IDENTITY_SIGNING_KEY_FILE is required")
	}
	keyBytes, err := os.ReadFile(keyFile)
	if err != nil {
		return keys, fmt.Errorf("read signing key: %w", err)
	}

	keys.PepperBytes = pepper
	keys.Key = keyBytes
	keys.Alg = envOr("IDENTITY_SIGNING_ALG", "ed25519")
	return keys, nil
}

// bootstrap provisions the admin role and account on an empty store. The
// generated password is printed exactly once; it is never stored in clear.
func bootstrap(ctx context.Context, store *redisstore.Store, cfg identity.Config, keys identity.KeyProvider) error {
	n, err := store.UserCount(ctx)
	if err != nil {
		return err
	}
	if n > 0 {
		return nil
	}

	hasher, err := password.NewHasher(password.Config{
		Memory:      cfg.Password.Memory,
		Time:        cfg.Password.Time,
		Parallelism: cfg.Password.Parallelism,
		SaltLength:  cfg.Password.SaltLength,
		KeyLength:   cfg.Password.KeyLength,
	}, keys.Pepper())
	if err != nil {
		return err
	}

	secret := make([]byte, 24)
	if _, err := rand.Read(secret); err != nil {
		return err
	}
	generated := base64.RawURLEncoding.EncodeToString(secret)

	hash, err := hasher.Hash(generated)
	if err != nil {
		return err
	}

	adminRole := identity.RoleRecord{
		RoleID:      uuid.New(),
		Name:        "admin",
		Permissions: permission.AllBits.Raw(),
	}
	if err := store.CreateRole(ctx, adminRole); err != nil {
		return err
	}

	admin := identity.UserRecord{
		UserID:            uuid.New(),
		Username:          "admin",
		PasswordHash:      hash,
		PasswordChangedAt: time.Now(),
		Roles:             []uuid.UUID{adminRole.RoleID},
	}
	if err := store.CreateUser(ctx, admin); err != nil {
		return err
	}

	fmt.Printf("bootstrap admin created: username=admin password=%s\n", generated)
	return nil
}
