package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"tradelock/internal/errs"
	"tradelock/internal/models"
)

func (c *cli) payCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pay",
		Short: "Deposits and withdrawals",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "list",
			Short: "Payment history",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				payments, err := c.core.Payments.List(cmd.Context())
				if err != nil {
					return err
				}

				return printJSON(cmd, payments)
			},
		},
		c.paymentCmd(models.PaymentDeposit),
		c.paymentCmd(models.PaymentWithdraw),
	)

	return cmd
}

func (c *cli) paymentCmd(typ models.PaymentType) *cobra.Command {
	var (
		method string
		card   string
	)

	cmd := &cobra.Command{
		Use:   string(typ) + " <amount>",
		Short: "Create a " + string(typ),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return errs.Validation("invalid amount")
			}

			create := c.core.Payments.Deposit
			if typ == models.PaymentWithdraw {
				create = c.core.Payments.Withdraw
			}

			p, err := create(cmd.Context(), amount, models.PaymentMethod(method), card)
			if err != nil {
				return err
			}

			return printJSON(cmd, p)
		},
	}

	cmd.Flags().StringVar(&method, "method", string(models.MethodCard), "card, uzcard or humo")
	cmd.Flags().StringVar(&card, "card", "", "card number")
	_ = cmd.MarkFlagRequired("card")

	return cmd
}
