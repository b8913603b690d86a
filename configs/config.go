package configs

import (
	"errors"
	"fmt"
	"math/big"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var Values Config

type (
	RecordBackend string

	Config struct {
		Log                 Log           `mapstructure:"log"`
		Wallet              Wallet        `mapstructure:"wallet"`
		Record              Record        `mapstructure:"record"`
		Contracts           Contracts     `mapstructure:"contracts"`
		Chains              Chains        `mapstructure:"chains"`
		MainChainEndpointID uint32        `mapstructure:"main-chain-endpoint-id" validate:"gt=0"`
		Transfer            Transfer      `mapstructure:"transfer"`
		Patch               Patch         `mapstructure:"patch"`
		ConfirmationTimeout time.Duration `mapstructure:"confirmation-timeout" validate:"gt=0"`
		Metrics             Metrics       `mapstructure:"metrics"`
		Output              Output        `mapstructure:"output"`
		Devnet              Devnet        `mapstructure:"devnet"`
	}

	Log struct {
		Level  string `mapstructure:"level" validate:"omitempty,oneof=debug info warn error"`
		Format string `mapstructure:"format" validate:"omitempty,oneof=json text"`
	}

	Wallet struct {
		PrivateKey string `mapstructure:"private-key" validate:"required"`
		// Owner is granted ownership of every deployed contract. Defaults to the deployer address.
		Owner string `mapstructure:"owner" validate:"omitempty,eth_addr"`
	}

	Record struct {
		Backend RecordBackend `mapstructure:"backend"`
		Path    string        `mapstructure:"path"`
		Redis   Redis         `mapstructure:"redis"`
	}

	Redis struct {
		Addr     string `mapstructure:"addr"`
		Password string `mapstructure:"password"`
		DB       int    `mapstructure:"db"`
		Key      string `mapstructure:"key"`
	}

	Contracts struct {
		Bundle     string `mapstructure:"bundle" validate:"required"`
		ProjectDir string `mapstructure:"project-dir"`
	}

	Chains struct {
		Local  LocalChain  `mapstructure:"local"`
		Native NativeChain `mapstructure:"native"`
	}

	Chain struct {
		RPCURL            string `mapstructure:"rpc-url" validate:"required,url"`
		EndpointID        uint32 `mapstructure:"endpoint-id" validate:"gt=0"`
		LayerZeroEndpoint string `mapstructure:"layerzero-endpoint" validate:"required,eth_addr"`
		Token             string `mapstructure:"token" validate:"required,eth_addr"`
	}

	LocalChain struct {
		Chain              `mapstructure:",squash"`
		CCTPTokenMessenger string `mapstructure:"cctp-token-messenger" validate:"required,eth_addr"`
	}

	NativeChain struct {
		Chain                  `mapstructure:",squash"`
		CCTPMessageTransmitter string `mapstructure:"cctp-message-transmitter" validate:"required,eth_addr"`
		Genesis                string `mapstructure:"genesis" validate:"required,eth_addr"`
		Rewards                string `mapstructure:"rewards" validate:"required,eth_addr"`
	}

	Transfer struct {
		// MaxFee is expressed in token base units.
		MaxFee            string `mapstructure:"max-fee" validate:"required,numeric"`
		FinalityThreshold uint32 `mapstructure:"finality-threshold" validate:"gt=0"`
	}

	Patch struct {
		PreserveOnchainValues bool `mapstructure:"preserve-onchain-values"`
	}

	Metrics struct {
		Textfile string `mapstructure:"textfile"`
	}

	Output struct {
		Path string `mapstructure:"path"`
	}

	Devnet struct {
		Image         string `mapstructure:"image"`
		LocalChainID  int    `mapstructure:"local-chain-id"`
		LocalPort     int    `mapstructure:"local-port"`
		NativeChainID int    `mapstructure:"native-chain-id"`
		NativePort    int    `mapstructure:"native-port"`
	}
)

const (
	RecordBackendFile  RecordBackend = "file"
	RecordBackendRedis RecordBackend = "redis"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("mapstructure"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate checks everything a deployment run needs.
func (c *Config) Validate() error {
	var errs []error

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return fmt.Errorf("configuration validation failed: %w", err)
		}
		for _, fe := range fieldErrs {
			errs = append(errs, fmt.Errorf("%s failed on '%s'", fieldPath(fe), fe.Tag()))
		}
	}

	if err := c.Record.Validate(); err != nil {
		errs = append(errs, err)
	}

	if c.Chains.Local.EndpointID != 0 && c.Chains.Local.EndpointID == c.Chains.Native.EndpointID {
		errs = append(errs, errors.New("chains.local.endpoint-id and chains.native.endpoint-id must differ"))
	}
	if c.Chains.Local.RPCURL != "" && c.Chains.Local.RPCURL == c.Chains.Native.RPCURL {
		errs = append(errs, errors.New("chains.local.rpc-url and chains.native.rpc-url must differ"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

func (c *Record) Validate() error {
	var errs []error

	switch c.Backend {
	case RecordBackendFile:
		if c.Path == "" {
			errs = append(errs, errors.New("record.path is required for the file backend"))
		}
	case RecordBackendRedis:
		if c.Redis.Addr == "" {
			errs = append(errs, errors.New("record.redis.addr is required for the redis backend"))
		}
		if c.Redis.Key == "" {
			errs = append(errs, errors.New("record.redis.key is required for the redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("record.backend must be either '%s' or '%s'", RecordBackendFile, RecordBackendRedis))
	}

	return errors.Join(errs...)
}

// MaxFeeInt parses the configured CCTP maximum fee.
func (c *Transfer) MaxFeeInt() (*big.Int, error) {
	fee, ok := new(big.Int).SetString(c.MaxFee, 10)
	if !ok || fee.Sign() < 0 {
		return nil, fmt.Errorf("transfer.max-fee '%s' is not a non-negative integer", c.MaxFee)
	}
	return fee, nil
}

// fieldPath renders a validator namespace using the config keys, e.g. chains.local.rpc-url.
func fieldPath(fe validator.FieldError) string {
	parts := strings.Split(fe.Namespace(), ".")
	out := make([]string, 0, len(parts))
	for i, p := range parts {
		// the root struct name and squashed embedded structs carry no key
		if (i == 0 && p == "Config") || p == "Chain" {
			continue
		}
		out = append(out, p)
	}
	return strings.Join(out, ".")
}
