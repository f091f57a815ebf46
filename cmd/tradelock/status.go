package main

import (
	"time"

	"github.com/spf13/cobra"

	"tradelock/internal/gate"
	"tradelock/internal/models"
)

type statusOutput struct {
	Mode     gate.Mode   `json:"mode"`
	User     models.User `json:"user"`
	Pending  pending     `json:"pending"`
	LastSync *time.Time  `json:"last_sync,omitempty"`
}

type pending struct {
	User     bool `json:"user"`
	Trades   int  `json:"trades"`
	Payments int  `json:"payments"`
}

func (c *cli) statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show mode, user and pending sync queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			u, err := c.core.Gate.CurrentUser(ctx)
			if err != nil {
				return err
			}

			batch := c.core.Syncer.Pending(ctx)

			out := statusOutput{
				Mode: c.core.Gate.Mode(),
				User: u,
				Pending: pending{
					User:     batch.User != nil,
					Trades:   len(batch.Trades),
					Payments: len(batch.Payments),
				},
			}

			if last := c.core.Records.LastSync(ctx); !last.IsZero() {
				out.LastSync = &last
			}

			return printJSON(cmd, out)
		},
	}
}

func (c *cli) authCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Authenticate and print the session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return printJSON(cmd, c.session)
		},
	}
}

func (c *cli) syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Push offline changes to the backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()

			if !c.core.Gate.Probe(ctx) {
				return errBackendUnreachable
			}

			res, err := c.core.Syncer.Reconcile(ctx)
			if err != nil {
				return err
			}

			return printJSON(cmd, res)
		},
	}
}
