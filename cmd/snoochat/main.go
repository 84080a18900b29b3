package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:   "snoochat",
		Short: "Follow and talk in chat channels from the terminal",
		Long: `snoochat connects to the chat socket with your account and prints
what arrives in the channels you have joined.

Credentials come from flags or from SNOOCHAT_USERNAME, SNOOCHAT_PASSWORD,
SNOOCHAT_TWOFA and SNOOCHAT_TOKEN. Client settings are read from SNOOCHAT_*
variables (see the package documentation).`,
		Example:       "snoochat run --username alice",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	f := cmd.PersistentFlags()
	f.BoolVar(&opts.debug, "debug", false, "Log at debug level")
	f.StringVarP(&opts.username, "username", "u", "", "Account name")
	f.StringVarP(&opts.password, "password", "p", "", "Account password")
	f.StringVar(&opts.twoFactor, "twofa", "", "Current one-time code, if the account uses one")
	f.StringVar(&opts.token, "token", "", "Pre-issued API bearer token, instead of username and password")

	cmd.AddCommand(
		newRunCommand(opts),
		newChannelsCommand(opts),
		newWhoamiCommand(opts),
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
