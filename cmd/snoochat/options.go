package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/rs/zerolog"

	snoochat "github.com/NeboLoop/snoochat-go-sdk"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	debug     bool
	username  string
	password  string
	twoFactor string
	token     string
}

// credentialEnv is the environment fallback for the credential flags.
type credentialEnv struct {
	Username  string `env:"USERNAME"`
	Password  string `env:"PASSWORD"`
	TwoFactor string `env:"TWOFA"`
	Token     string `env:"TOKEN"`
}

func (o *options) logger() zerolog.Logger {
	level := zerolog.InfoLevel
	if o.debug {
		level = zerolog.DebugLevel
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}
	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// credentials resolves flags over environment. A token wins over a
// username and password.
func (o *options) credentials() (snoochat.Credentials, error) {
	var fromEnv credentialEnv
	if err := env.ParseWithOptions(&fromEnv, env.Options{Prefix: "SNOOCHAT_"}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	token := firstNonEmpty(o.token, fromEnv.Token)
	if token != "" {
		return snoochat.PreIssuedToken{Token: token}, nil
	}
	creds := snoochat.PasswordCredentials{
		Username:  firstNonEmpty(o.username, fromEnv.Username),
		Password:  firstNonEmpty(o.password, fromEnv.Password),
		TwoFactor: firstNonEmpty(o.twoFactor, fromEnv.TwoFactor),
	}
	if creds.Username == "" || creds.Password == "" {
		return nil, snoochat.ErrMissingCredentials
	}
	return creds, nil
}

// session holds what every networked command needs.
type session struct {
	log     zerolog.Logger
	cfg     snoochat.Config
	authCfg snoochat.AuthConfig
	creds   snoochat.Credentials
	auth    snoochat.AuthResult
}

// login loads configuration and authenticates.
func (o *options) login(ctx context.Context) (*session, error) {
	s := &session{log: o.logger()}

	var err error
	if s.cfg, err = snoochat.LoadConfig(); err != nil {
		return nil, err
	}
	s.cfg.Logger = s.log
	if s.authCfg, err = snoochat.LoadAuthConfig(); err != nil {
		return nil, err
	}
	if s.creds, err = o.credentials(); err != nil {
		return nil, err
	}
	if s.auth, err = snoochat.Authenticate(ctx, s.authCfg, s.creds); err != nil {
		return nil, fmt.Errorf("authenticate: %w", err)
	}
	s.log.Debug().Str("user_id", s.auth.UserID).Msg("authenticated")
	return s, nil
}

// reauthenticate fetches a fresh token for the same credentials.
func (s *session) reauthenticate(ctx context.Context) error {
	res, err := snoochat.Authenticate(ctx, s.authCfg, s.creds)
	if err != nil {
		return err
	}
	s.auth = res
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
