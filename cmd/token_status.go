package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/freeslot/internal/credentials"
	"github.com/teemow/freeslot/internal/instrumentation"
	"github.com/teemow/freeslot/internal/logging"
)

func newTokenStatusCmd() *cobra.Command {
	var (
		user    string
		strict  bool
		debug   bool
	)

	cmd := &cobra.Command{
		Use:   "token-status",
		Short: "Show the status of a user's stored Google credential",
		Long: `Load a user's credential from the configured store and print whether it has
an access token, a refresh token and when it expires. An expired credential
is refreshed first.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			logger := newLogger(os.Stderr, debug)
			sc, err := newServerContext(ctx, logger, nil, instrumentation.AuditLoggingConfig{})
			if err != nil {
				return err
			}
			defer func() {
				if err := sc.Shutdown(); err != nil {
					logger.Warn("error during shutdown", logging.Err(err))
				}
			}()

			if user == "" {
				user = sc.DefaultUser()
			}
			if err := credentials.ValidateUserID(user); err != nil {
				return err
			}

			// The cache only knows what it has loaded, so always load once.
			if _, err := sc.Credentials().GetValid(ctx, user); err != nil {
				if strict {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
			}

			status, cached := sc.Credentials().Status(user)
			return writeJSON(cmd.OutOrStdout(), struct {
				UserID    string    `json:"user_id"`
				Cached    bool      `json:"cached"`
				CheckedAt time.Time `json:"checked_at"`
				credentials.TokenStatus
			}{UserID: user, Cached: cached, CheckedAt: time.Now().UTC(), TokenStatus: status})
		},
	}

	cmd.Flags().StringVarP(&user, "user", "u", "", "User to inspect (default: DEFAULT_USER)")
	cmd.Flags().BoolVar(&strict, "strict", false, "Exit with an error when no valid credential can be obtained")
	cmd.Flags().BoolVar(&debug, "debug", false, "Enable debug logging")
	return cmd
}
