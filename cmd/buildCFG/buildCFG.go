package buildCFG

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wb-go/wbf/config"
	"github.com/wb-go/wbf/dbpg"
)

type ServerConfig struct {
	Port string
}

type RabbitConfig struct {
	Url      string
	Exchange string
	Queue    string
}

type AuthConfig struct {
	JWTSecret string
	TokenTTL  time.Duration
}

type SMTPConfig struct {
	Host     string
	Port     string
	From     string
	Password string
	Inbox    string
}

func BuildServerConfig(cfg *config.Config, log *zerolog.Logger) *ServerConfig {
	port := cfg.GetString("server.port")
	if port == "" {
		port = "8080"
		log.Warn().Msg("server.port not set, defaulting to 8080")
	}
	return &ServerConfig{Port: port}
}

func BuildDBConfig(cfg *config.Config, log *zerolog.Logger) (string, []string, *dbpg.Options, error) {
	masterDSN := cfg.GetString("db.master_dsn")
	if masterDSN == "" {
		return "", nil, nil, fmt.Errorf("db.master_dsn is required")
	}
	slaveDSNs := cfg.GetStringSlice("db.slave_dsns")

	opts := &dbpg.Options{
		MaxOpenConns:    cfg.GetInt("db.max_open_conns"),
		MaxIdleConns:    cfg.GetInt("db.max_idle_conns"),
		ConnMaxLifetime: cfg.GetDuration("db.conn_max_lifetime"),
	}

	log.Info().Int("slaves", len(slaveDSNs)).Msg("DB config loaded")
	return masterDSN, slaveDSNs, opts, nil
}

func BuildRabbitConfig(cfg *config.Config, log *zerolog.Logger) (*RabbitConfig, error) {
	url := cfg.GetString("rabbit.url")
	if url == "" {
		return nil, fmt.Errorf("rabbit.url is required")
	}
	rc := &RabbitConfig{
		Url:      url,
		Exchange: cfg.GetString("rabbit.exchange"),
		Queue:    cfg.GetString("rabbit.queue"),
	}
	if rc.Exchange == "" || rc.Queue == "" {
		return nil, fmt.Errorf("rabbit.exchange and rabbit.queue are required")
	}
	log.Info().Str("exchange", rc.Exchange).Str("queue", rc.Queue).Msg("RabbitMQ config loaded")
	return rc, nil
}

func BuildAuthConfig(cfg *config.Config, log *zerolog.Logger) (*AuthConfig, error) {
	secret := cfg.GetString("auth.jwt_secret")
	if secret == "" {
		return nil, fmt.Errorf("auth.jwt_secret is required")
	}
	ttl := cfg.GetDuration("auth.token_ttl")
	if ttl <= 0 {
		ttl = 8 * time.Hour
		log.Warn().Msg("auth.token_ttl not set, defaulting to 8h")
	}
	return &AuthConfig{JWTSecret: secret, TokenTTL: ttl}, nil
}

func BuildSMTPConfig(cfg *config.Config, log *zerolog.Logger) (*SMTPConfig, error) {
	sc := &SMTPConfig{
		Host:     cfg.GetString("smtp.host"),
		Port:     cfg.GetString("smtp.port"),
		From:     cfg.GetString("smtp.from"),
		Password: cfg.GetString("smtp.password"),
		Inbox:    cfg.GetString("smtp.inbox"),
	}
	if sc.Host == "" || sc.Port == "" || sc.From == "" {
		return nil, fmt.Errorf("smtp.host, smtp.port and smtp.from are required")
	}
	if sc.Inbox == "" {
		sc.Inbox = sc.From
		log.Warn().Msg("smtp.inbox not set, contact messages go to smtp.from")
	}
	return sc, nil
}
