package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/spf13/cobra"

	snoochat "github.com/NeboLoop/snoochat-go-sdk"
	"github.com/NeboLoop/snoochat-go-sdk/frame"
)

func newRunCommand(opts *options) *cobra.Command {
	var delay time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Connect and print incoming messages until interrupted",
		Long: `Connect to the chat socket and print every message as
name@channel: text

When the socket drops, run waits --reconnect-delay, fetches a fresh token
and connects again. Interrupt to stop.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.login(cmd.Context())
			if err != nil {
				return err
			}
			return runChat(cmd.Context(), s, cmd.OutOrStdout(), delay)
		},
	}
	cmd.Flags().DurationVar(&delay, "reconnect-delay", 5*time.Second, "Pause before reconnecting after the socket drops")
	return cmd
}

func runChat(ctx context.Context, s *session, out io.Writer, delay time.Duration) error {
	client, err := snoochat.NewClient(s.cfg, s.auth, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	client.OnMessage(printChat(out, client.Channels()))
	client.OnLogin(func(_ context.Context, l *frame.LoginResult) error {
		if l.OK() {
			s.log.Info().Str("nickname", l.Nickname).Int("channels", client.Channels().Len()).Msg("logged in")
		}
		return nil
	})

	for attempt := 1; ; attempt++ {
		if err := client.Connect(ctx); err != nil {
			s.log.Error().Err(err).Int("attempt", attempt).Msg("connect failed")
		} else {
			select {
			case <-ctx.Done():
				return nil
			case <-client.Done():
			}
			s.log.Warn().Err(client.LastError()).Int("attempt", attempt).Msg("connection lost")
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}

		if err := s.reauthenticate(ctx); err != nil {
			if errors.Is(err, snoochat.ErrInvalidCredentials) {
				return fmt.Errorf("authenticate: %w", err)
			}
			s.log.Warn().Err(err).Msg("token refresh failed, reusing the previous token")
			continue
		}
		client.UpdateAccessToken(s.auth.AccessToken)
	}
}

// printChat returns a message hook writing one line per message. Hooks may
// run on several workers, so writes are serialised.
func printChat(out io.Writer, channels *snoochat.ChannelRegistry) func(context.Context, frame.Frame) error {
	var mu sync.Mutex
	return func(_ context.Context, f frame.Frame) error {
		line := formatChat(f, channels)
		mu.Lock()
		defer mu.Unlock()
		_, err := fmt.Fprintln(out, line)
		return err
	}
}

func formatChat(f frame.Frame, channels *snoochat.ChannelRegistry) string {
	m := f.Message
	body := m.Text
	switch f.Kind {
	case frame.KindSnoomoji:
		body = ":" + m.Snoomoji + ":"
	case frame.KindGif:
		body = "[gif] " + m.GifURL
	}
	return fmt.Sprintf("%s@%s: %s", m.Sender.Name, channels.Resolve(m.ChannelURL), body)
}
