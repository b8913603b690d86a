package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// flagDef defines a command-line flag bound to a configuration key. Defaults stay empty so the
// embedded configuration defaults apply unless the flag is given.
type (
	flagType interface {
		string | int | bool
	}

	flagDef[T flagType] struct {
		name         string
		viperKey     string
		defaultValue T
		description  string
	}
)

var (
	stringFlags = []flagDef[string]{
		// Logging
		{"log-level", "log.level", "", "Log level (debug, info, warn, error)"},
		{"log-format", "log.format", "", "Log format (json or text)"},

		// Wallet
		{"private-key", "wallet.private-key", "", "Deployer wallet private key"},
		{"owner", "wallet.owner", "", "Owner of the deployed contracts (default: deployer address)"},

		// Record
		{"record-backend", "record.backend", "", "Deployment record backend (file or redis)"},
		{"record-path", "record.path", "", "Deployment record file"},
		{"redis-addr", "record.redis.addr", "", "Redis address for the redis record backend"},
		{"redis-key", "record.redis.key", "", "Redis key holding the deployment record"},

		// Contracts
		{"contracts-bundle", "contracts.bundle", "", "Compiled contracts bundle (contracts.json)"},
		{"contracts-project-dir", "contracts.project-dir", "", "Hardhat project compiled by the compile command"},

		// Chains
		{"local-rpc-url", "chains.local.rpc-url", "", "Local chain RPC URL"},
		{"native-rpc-url", "chains.native.rpc-url", "", "Native chain RPC URL"},

		// Transfer policy
		{"max-fee", "transfer.max-fee", "", "CCTP maximum fee in token base units"},
		{"confirmation-timeout", "confirmation-timeout", "", "Maximum wait for a transaction to confirm (e.g. 3m)"},

		// Outputs
		{"output", "output.path", "", "Deployment report file"},
		{"metrics-textfile", "metrics.textfile", "", "Prometheus textfile to write metrics to"},
	}

	intFlags = []flagDef[int]{
		{"local-endpoint-id", "chains.local.endpoint-id", 0, "Local chain messaging endpoint id"},
		{"native-endpoint-id", "chains.native.endpoint-id", 0, "Native chain messaging endpoint id"},
		{"main-chain-endpoint-id", "main-chain-endpoint-id", 0, "Home chain messaging endpoint id"},
		{"finality-threshold", "transfer.finality-threshold", 0, "CCTP finality threshold"},
		{"redis-db", "record.redis.db", 0, "Redis database number"},
	}

	boolFlags = []flagDef[bool]{
		{"preserve-onchain-values", "patch.preserve-onchain-values", false, "Resubmit the Sender's on-chain CCTP values when patching"},
	}
)

// DeclareFlags declares every configuration flag on root and binds it to viper.
func DeclareFlags(root *cobra.Command) error {
	if err := declareFlags(root, stringFlags); err != nil {
		return err
	}
	if err := declareFlags(root, intFlags); err != nil {
		return err
	}
	return declareFlags(root, boolFlags)
}

func declareFlags[T flagType](root *cobra.Command, flags []flagDef[T]) error {
	for _, flag := range flags {
		if err := declareFlag(root, flag.name, flag.viperKey, flag.defaultValue, flag.description); err != nil {
			return err
		}
	}
	return nil
}

// declareFlag declares a single persistent flag and binds it to a viper configuration key.
func declareFlag[T flagType](root *cobra.Command, flagName, viperKey string, defaultValue T, description string) error {
	flags := root.PersistentFlags()

	var zero T
	switch any(zero).(type) {
	case string:
		flags.String(flagName, any(defaultValue).(string), description)
	case int:
		flags.Int(flagName, any(defaultValue).(int), description)
	case bool:
		flags.Bool(flagName, any(defaultValue).(bool), description)
	}
	return viper.BindPFlag(viperKey, flags.Lookup(flagName))
}
