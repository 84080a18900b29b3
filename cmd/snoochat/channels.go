package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	snoochat "github.com/NeboLoop/snoochat-go-sdk"
	"github.com/NeboLoop/snoochat-go-sdk/frame"
)

func newChannelsCommand(opts *options) *cobra.Command {
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "channels",
		Short: "List the channels you have joined",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := opts.login(cmd.Context())
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return listChannels(ctx, s, cmd.OutOrStdout())
		},
	}
	cmd.Flags().DurationVar(&timeout, "timeout", 30*time.Second, "How long to wait for login and the channel listing")
	return cmd
}

func listChannels(ctx context.Context, s *session, out io.Writer) error {
	client, err := snoochat.NewClient(s.cfg, s.auth, nil)
	if err != nil {
		return err
	}
	defer client.Close()

	// the registry is refreshed before login hooks run
	loggedIn := make(chan *frame.LoginResult, 1)
	client.OnLogin(func(_ context.Context, l *frame.LoginResult) error {
		select {
		case loggedIn <- l:
		default:
		}
		return nil
	})

	if err := client.Connect(ctx); err != nil {
		return err
	}
	select {
	case l := <-loggedIn:
		if !l.OK() {
			return l.Error
		}
	case <-client.Done():
		return closedBeforeLogin(client.LastError())
	case <-ctx.Done():
		return ctx.Err()
	}
	if err := client.LastError(); err != nil {
		return fmt.Errorf("list channels: %w", err)
	}
	return writeChannels(out, client.Channels().Snapshot())
}

func closedBeforeLogin(err error) error {
	if err == nil {
		return errors.New("connection closed before login")
	}
	return fmt.Errorf("connection closed before login: %w", err)
}

func writeChannels(out io.Writer, channels map[string]snoochat.Channel) error {
	if len(channels) == 0 {
		_, err := fmt.Fprintln(out, "No channels joined.")
		return err
	}

	list := make([]snoochat.Channel, 0, len(channels))
	for _, ch := range channels {
		list = append(list, ch)
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].DisplayName != list[j].DisplayName {
			return list[i].DisplayName < list[j].DisplayName
		}
		return list[i].URL < list[j].URL
	})

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tKIND\tMEMBERS\tURL")
	for _, ch := range list {
		kind := "group"
		if ch.IsDirect {
			kind = "direct"
		}
		fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", ch.DisplayName, kind, len(ch.Members), ch.URL)
	}
	return w.Flush()
}
