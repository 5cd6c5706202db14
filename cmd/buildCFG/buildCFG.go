package buildCFG

import (
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"

	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/mailer"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/proofstore"
	"github.com/Imking640/Felicity-Event-Booking-sub000/internal/rabbit"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverMemory   = "memory"
)

type ServerConfig struct {
	Port string
	Mode string
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
		log.Warn().Msg("server.port is not set, using default 8080")
	}
	mode := cfg.GetString("server.mode")
	if mode == "" {
		mode = "release"
	}
	return ServerConfig{Port: port, Mode: mode}
}

type StorageConfig struct {
	Driver         string
	MigrationsPath string
	MigrateDown    bool
}

func BuildStorageConfig(cfg *config.Config) (StorageConfig, error) {
	driver := cfg.GetString("storage.driver")
	if driver == "" {
		driver = StorageDriverPostgres
	}
	if driver != StorageDriverPostgres && driver != StorageDriverMemory {
		return StorageConfig{}, fmt.Errorf("storage.driver must be %q or %q, got %q",
			StorageDriverPostgres, StorageDriverMemory, driver)
	}
	path := cfg.GetString("storage.migrations_path")
	if path == "" {
		path = "migrations/postgres"
	}
	return StorageConfig{
		Driver:         driver,
		MigrationsPath: path,
		MigrateDown:    cfg.GetBool("storage.migrate_down_on_shutdown"),
	}, nil
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	master := cfg.GetString("database.master_dsn")
	if master == "" {
		return "", nil, nil, errors.New("database.master_dsn is required")
	}
	slaves := cfg.GetStringSlice("database.slave_dsns")

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("database.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("database.max_idle_conns"),
		ConnMaxLifetime: cfg.GetDuration("database.conn_max_lifetime"),
	}
	if opts.MaxOpenConns <= 0 {
		opts.MaxOpenConns = 10
	}
	if opts.MaxIdleConns <= 0 {
		opts.MaxIdleConns = 5
	}
	if opts.ConnMaxLifetime <= 0 {
		opts.ConnMaxLifetime = 30 * time.Minute
	}
	log.Debug().Int("slaves", len(slaves)).Int("max_open_conns", opts.MaxOpenConns).Msg("database config loaded")
	return master, slaves, opts, nil
}

// BuildRabbitConfig returns ok=false when no broker url is configured.
func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (rabbit.Config, bool) {
	url := cfg.GetString("rabbit.url")
	if url == "" {
		log.Warn().Msg("rabbit.url is not set, notifications and payment expiry are disabled")
		return rabbit.Config{}, false
	}
	rc := rabbit.Config{
		URL:      url,
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
		Prefetch: cfg.GetInt("rabbit.prefetch"),
	}
	if rc.Exchange == "" {
		rc.Exchange = "felicity.delayed"
	}
	if rc.Queue == "" {
		rc.Queue = "felicity.notifications"
	}
	return rc, true
}

type AuthConfig struct {
	Secret string
	Issuer string
}

func BuildAuthConfig(cfg *config.Config) (AuthConfig, error) {
	secret := cfg.GetString("auth.jwt_secret")
	if secret == "" {
		return AuthConfig{}, errors.New("auth.jwt_secret is required")
	}
	return AuthConfig{Secret: secret, Issuer: cfg.GetString("auth.issuer")}, nil
}

type TicketConfig struct {
	Scheme string
	Secret string
}

func BuildTicketConfig(cfg *config.Config) TicketConfig {
	return TicketConfig{
		Scheme: cfg.GetString("tickets.signer"),
		Secret: cfg.GetString("tickets.secret"),
	}
}

// BuildProofStore returns the configured payment proof store, or nil when
// binary uploads are disabled.
func BuildProofStore(cfg *config.Config, log *zerolog.Logger) (proofstore.Store, error) {
	switch driver := cfg.GetString("proofs.driver"); driver {
	case "", "none":
		log.Warn().Msg("proofs.driver is not set, only proof references are accepted")
		return nil, nil
	case "memory":
		return proofstore.NewMemoryStore(), nil
	case "s3":
		return proofstore.NewS3Store(proofstore.S3Config{
			Region:    cfg.GetString("proofs.s3.region"),
			Bucket:    cfg.GetString("proofs.s3.bucket"),
			AccessKey: cfg.GetString("proofs.s3.access_key"),
			SecretKey: cfg.GetString("proofs.s3.secret_key"),
			Endpoint:  cfg.GetString("proofs.s3.endpoint"),
		})
	default:
		return nil, fmt.Errorf("unknown proofs.driver %q", driver)
	}
}

func BuildMailerConfig(cfg *config.Config) mailer.Config {
	return mailer.Config{
		APIKey:     cfg.GetString("mailer.api_key"),
		FromName:   cfg.GetString("mailer.from_name"),
		FromEmail:  cfg.GetString("mailer.from_email"),
		TemplateID: cfg.GetString("mailer.template_id"),
		Timeout:    cfg.GetDuration("mailer.timeout"),
	}
}

// BuildPaymentTimeout returns how long a fee-bearing registration may stay
// unpaid. Zero disables expiry.
func BuildPaymentTimeout(cfg *config.Config) time.Duration {
	d := cfg.GetDuration("payment.timeout")
	if d < 0 {
		return 0
	}
	return d
}
