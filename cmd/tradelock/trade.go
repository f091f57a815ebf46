package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"tradelock/internal/errs"
	"tradelock/internal/models"
)

var errBackendUnreachable = errs.Connectivity("backend unreachable", nil)

func (c *cli) tradeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trade",
		Short: "Escrow trades",
	}

	cmd.AddCommand(
		c.tradeListCmd(),
		c.tradeGetCmd(),
		c.tradeCreateCmd(),
		c.tradeJoinCmd(),
		c.tradeConfirmCmd(),
		c.tradeCancelCmd(),
	)

	return cmd
}

func (c *cli) tradeListCmd() *cobra.Command {
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your trades",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			trades, err := c.core.Trades.List(cmd.Context(), models.StatusFilter(status))
			if err != nil {
				return err
			}

			return printJSON(cmd, trades)
		},
	}

	cmd.Flags().StringVar(&status, "status", "all", "all, active, completed or cancelled")

	return cmd
}

func (c *cli) tradeGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id|secret-link>",
		Short: "Show a trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.core.Trades.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printJSON(cmd, t)
		},
	}
}

func (c *cli) tradeCreateCmd() *cobra.Command {
	var (
		draft      models.TradeDraft
		tradeType  string
		commission string
	)

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a trade and print its share link",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			draft.TradeType = models.TradeType(tradeType)
			draft.CommissionType = models.CommissionType(commission)

			t, err := c.core.Trades.Create(cmd.Context(), draft)
			if err != nil {
				return err
			}

			return printJSON(cmd, t)
		},
	}

	cmd.Flags().StringVar(&tradeType, "type", "sell", "sell or buy")
	cmd.Flags().Int64Var(&draft.Amount, "amount", 0, "amount in minor units (min 1000)")
	cmd.Flags().StringVar(&commission, "commission", "split", "creator, partner or split")
	cmd.Flags().StringVar(&draft.Name, "name", "", "item name")
	cmd.Flags().StringVar(&draft.Description, "description", "", "item description")

	_ = cmd.MarkFlagRequired("amount")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func (c *cli) tradeJoinCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "join <secret-link>",
		Short: "Join a trade by its secret link",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := c.core.Trades.Join(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			return printJSON(cmd, t)
		},
	}
}

func (c *cli) tradeConfirmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "confirm <id>",
		Short: "Confirm a trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			t, err := c.core.Trades.Confirm(cmd.Context(), id)
			if err != nil {
				return err
			}

			return printJSON(cmd, t)
		},
	}
}

func (c *cli) tradeCancelCmd() *cobra.Command {
	var reason string

	cmd := &cobra.Command{
		Use:   "cancel <id>",
		Short: "Cancel a trade",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}

			t, err := c.core.Trades.Cancel(cmd.Context(), id, reason)
			if err != nil {
				return err
			}

			return printJSON(cmd, t)
		},
	}

	cmd.Flags().StringVar(&reason, "reason", "", "cancellation reason")

	return cmd
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errs.Validation("invalid trade id")
	}

	return id, nil
}
