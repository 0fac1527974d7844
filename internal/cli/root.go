// Package cli implements the pi-a2u operator command.
package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"github.com/vitwit/pinetwork"
	"github.com/vitwit/pinetwork/clients"
	"github.com/vitwit/pinetwork/config"
	"github.com/vitwit/pinetwork/journal"
	"github.com/vitwit/pinetwork/logger"
	"github.com/vitwit/pinetwork/types"
)

// app holds what the sub-commands share. It is filled lazily so commands
// that need no credentials, like validate-seed, work without them.
type app struct {
	envFile  string
	logLevel string

	cfg     *types.Config
	log     logger.Logger
	pi      *pinetwork.PiNetwork
	journal journal.Journal
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// NewRootCmd builds the pi-a2u command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "pi-a2u",
		Short: "Pay Pi to app users from the app wallet",
		Long: `pi-a2u drives App-to-User payments of a Pi app: it creates payments on the
Pi Platform API, signs and submits their ledger transactions and completes them.

Settings are read from PI_* environment variables, optionally from an env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&a.envFile, "env-file", "", "env file to load before reading PI_* variables (default .env when present)")
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "", "override PI_LOG_LEVEL: debug | info | warn | error")

	root.AddCommand(
		newPayCmd(a),
		newCreateCmd(a),
		newSubmitCmd(a),
		newCompleteCmd(a),
		newGetCmd(a),
		newCancelCmd(a),
		newIncompleteCmd(a),
		newVerifyCmd(a),
		newPendingCmd(a),
		newValidateSeedCmd(a),
		newEnvCmd(),
	)
	return root
}

// withAgent wraps a command that talks to the Pi services.
func (a *app) withAgent(run func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) (err error) {
		if err := a.setup(); err != nil {
			return err
		}
		defer func() {
			err = errors.Join(err, a.close())
		}()
		return run(cmd, args)
	}
}

// setup loads the configuration and builds the agent and the journal.
func (a *app) setup() error {
	if a.pi != nil {
		return nil
	}

	cfg, err := config.Load(a.envFile)
	if err != nil {
		return err
	}
	network, err := config.Network(cfg)
	if err != nil {
		return err
	}

	level := cfg.LogLevel
	if a.logLevel != "" {
		level = a.logLevel
	}
	a.log = logger.NewZapLogger(level)

	// One client for the API and the ledger.
	httpClient := &http.Client{Timeout: cfg.Timeout}
	opts := []pinetwork.Option{
		pinetwork.WithNetwork(network),
		pinetwork.WithBaseURL(cfg.BaseURL),
		pinetwork.WithHTTPClient(httpClient),
		pinetwork.WithTimeout(cfg.Timeout),
		pinetwork.WithTransactionTimeout(cfg.TxTimeout),
		pinetwork.WithLogger(a.log),
	}
	if cfg.HorizonURL != "" {
		opts = append(opts, pinetwork.WithLedgerFactory(func(types.Network) clients.Ledger {
			return clients.NewHorizonClient(cfg.HorizonURL, httpClient)
		}))
	}

	pi, err := pinetwork.New(cfg.APIKey, cfg.WalletPrivateSeed, opts...)
	if err != nil {
		return err
	}

	if cfg.JournalPath != "" {
		j, err := journal.Open(cfg.JournalPath)
		if err != nil {
			return err
		}
		a.journal = j
	}

	a.cfg = cfg
	a.pi = pi
	return nil
}

func (a *app) close() error {
	var errs []error
	if a.journal != nil {
		errs = append(errs, a.journal.Close())
		a.journal = nil
	}
	if z, ok := a.log.(*logger.ZapLogger); ok {
		// stderr sync fails on some terminals; nothing to do about it
		_ = z.Sync()
	}
	return errors.Join(errs...)
}

// record applies fn to the journal when one is configured. Journal failures
// are logged, not returned: by the time they happen the remote side effect
// has already taken place.
func (a *app) record(op, paymentID string, fn func(journal.Journal) error) {
	if a.journal == nil {
		return
	}
	if err := fn(a.journal); err != nil {
		a.log.Warn("journal update failed", map[string]any{
			"op":         op,
			"payment_id": paymentID,
			"error":      err,
		})
	}
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
