package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Housri/steam-auth-public/internal/admin"
	"github.com/Housri/steam-auth-public/internal/db"
	"github.com/Housri/steam-auth-public/internal/redis"
	"github.com/Housri/steam-auth-public/internal/session"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect and remove local users",
	}
	cmd.AddCommand(usersGetCmd(), usersDeleteCmd())
	return cmd
}

func usersGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <external-id>",
		Short: "Print a user record as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			d, err := db.Open(cmd.Context(), cfg.DatabaseDriver, cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer d.Close()

			rec, err := admin.NewService(d.Users(), nil).GetUser(cmd.Context(), args[0])
			if err != nil {
				if admin.IsNotFound(err) {
					return fmt.Errorf("no user with external id %s", args[0])
				}
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}

func usersDeleteCmd() *cobra.Command {
	var keepSessions bool

	cmd := &cobra.Command{
		Use:   "delete <external-id>",
		Short: "Delete a user and revoke their sessions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			d, err := db.Open(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
			if err != nil {
				return err
			}
			defer d.Close()

			var revoker admin.SessionRevoker
			if !keepSessions {
				rdb, err := redis.New(ctx, cfg.RedisAddr, cfg.RedisPassword)
				if err != nil {
					return err
				}
				defer rdb.Close()

				mgr, err := session.NewManager(
					session.NewRedisStore(rdb.Client),
					d.Users(),
					session.Config{
						Secret:      []byte(cfg.SessionSecret),
						IdleTTL:     cfg.SessionIdleTTL,
						AbsoluteTTL: cfg.SessionAbsoluteTTL,
					},
				)
				if err != nil {
					return err
				}
				revoker = mgr
			}

			revoked, err := admin.NewService(d.Users(), revoker).DeleteUser(ctx, args[0])
			if err != nil {
				if admin.IsNotFound(err) {
					return fmt.Errorf("no user with external id %s", args[0])
				}
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "deleted %s, revoked %d session(s)\n", args[0], revoked)
			return nil
		},
	}

	cmd.Flags().BoolVar(&keepSessions, "keep-sessions", false,
		"skip session revocation; remaining sessions stop resolving on next use")

	return cmd
}
