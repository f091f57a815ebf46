package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"tradelock/internal/api"
	"tradelock/internal/app"
	"tradelock/internal/config"
	"tradelock/internal/logging"
	"tradelock/internal/notify"
)

// cli - состояние одного запуска команды
type cli struct {
	yes      bool
	offline  bool
	initData string
	verbose  bool

	core     *app.App
	session  api.AuthResponse
	closeLog func() error
}

func newRootCmd() *cobra.Command {
	c := &cli{}

	root := &cobra.Command{
		Use:          "tradelock",
		Short:        "TradeLock escrow client",
		Long:         "Command line front-end of the TradeLock client core: trades, payments and sync, online or offline.",
		SilenceUsage: true,

		PersistentPreRunE:  c.open,
		PersistentPostRunE: c.close,
	}

	root.PersistentFlags().BoolVarP(&c.yes, "yes", "y", false, "do not ask for confirmation")
	root.PersistentFlags().BoolVar(&c.offline, "offline", false, "force offline mode")
	root.PersistentFlags().StringVar(&c.initData, "init-data", "", "Telegram initData (defaults to TELEGRAM_INIT_DATA)")
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "log to stderr")

	root.AddCommand(
		c.statusCmd(),
		c.authCmd(),
		c.tradeCmd(),
		c.payCmd(),
		c.syncCmd(),
	)

	return root
}

func (c *cli) open(cmd *cobra.Command, _ []string) error {
	level := slog.LevelWarn
	if c.verbose {
		level = slog.LevelDebug
	}

	logger, closeLog, err := logging.New(cmd.ErrOrStderr(), config.LogFile(), level)
	if err != nil {
		return err
	}
	c.closeLog = closeLog

	cfg := config.Load(logger)
	if c.offline {
		cfg.Offline = true
	}

	if c.initData != "" {
		cfg.InitData = c.initData
	}

	c.core, err = app.New(cmd.Context(), cfg, logger, app.Options{
		Confirmer: c.confirmer(cmd.InOrStdin(), cmd.ErrOrStderr()),
	})
	if err != nil {
		return err
	}

	c.session, err = c.core.Authenticate(cmd.Context(), cfg.InitData)

	return err
}

func (c *cli) close(*cobra.Command, []string) error {
	var err error

	if c.core != nil {
		err = c.core.Close()
	}

	if c.closeLog != nil {
		_ = c.closeLog()
	}

	return err
}

// confirmer спрашивает y/N в терминале, --yes подтверждает все
func (c *cli) confirmer(in io.Reader, out io.Writer) notify.Confirmer {
	if c.yes {
		return notify.AutoConfirm{}
	}

	reader := bufio.NewReader(in)

	return notify.ConfirmFunc(func(_ context.Context, msg string) bool {
		fmt.Fprintf(out, "%s [y/N]: ", msg)

		answer, _ := reader.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))

		return answer == "y" || answer == "yes"
	})
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
