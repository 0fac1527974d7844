package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/vitwit/pinetwork/config"
	"github.com/vitwit/pinetwork/keypair"
)

func newValidateSeedCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate-seed [seed]",
		Short: "Check a wallet seed and print its public address",
		Long: `Checks the format and checksum of a wallet private seed and prints the
address it controls. Without an argument the seed is taken from
PI_WALLET_PRIVATE_SEED or WALLET_PRIVATE_SEED. The seed itself is never printed.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			seed, err := a.seed(args)
			if err != nil {
				return err
			}
			if err := keypair.ValidateSeedFormat(seed); err != nil {
				return err
			}
			kp, err := keypair.ParseFull(seed)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]string{"address": kp.Address()})
		},
	}
}

func (a *app) seed(args []string) (string, error) {
	if len(args) == 1 {
		return strings.TrimSpace(args[0]), nil
	}
	if err := config.LoadEnvFile(a.envFile); err != nil {
		return "", err
	}
	for _, name := range []string{config.EnvPrefix + "_WALLET_PRIVATE_SEED", "WALLET_PRIVATE_SEED"} {
		if v := strings.TrimSpace(os.Getenv(name)); v != "" {
			return v, nil
		}
	}
	return "", fmt.Errorf("no seed given and %s_WALLET_PRIVATE_SEED is not set", config.EnvPrefix)
}

func newEnvCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "env",
		Short: "List the environment variables read by pi-a2u",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, line := range config.Describe() {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
		},
	}
}
