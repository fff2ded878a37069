package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"reflect"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
	"golang.org/x/xerrors"

	"github.com/coinbase/chaingateway/internal/utils/auxiliary"

	"github.com/coinbase/chaingateway/config"
	"github.com/coinbase/chaingateway/internal/utils/retry"

	"github.com/coinbase/chainstorage/protos/coinbase/c3/common"
)

type (
	Config struct {
		ConfigName       string           `mapstructure:"config_name" validate:"required"`
		Chain            ChainConfig      `mapstructure:"chain"`
		Gateway          GatewayConfig    `mapstructure:"gateway"`
		Controller       ControllerConfig `mapstructure:"controller"`
		Cron             CronConfig       `mapstructure:"cron"`
		TaskPool         TaskPoolConfig   `mapstructure:"task_pool"`
		SLA              SLAConfig        `mapstructure:"sla"`
		BatchLimitConfig BatchLimitConfig `mapstructure:"batch_limit"`
		Server           ServerConfig     `mapstructure:"server"`

		env Env
	}

	ChainConfig struct {
		Blockchain common.Blockchain `mapstructure:"blockchain" validate:"required"`
		Network    common.Network    `mapstructure:"network" validate:"required"`
		Client     ClientConfig      `mapstructure:"client"`
	}

	ClientConfig struct {
		ServerName    string        `mapstructure:"server_name"`
		ServerAddress string        `mapstructure:"server_address"`
		ServerHandle  string        `mapstructure:"server_handle"`
		Node          EndpointGroup `mapstructure:"node"`
		Legacy        EndpointGroup `mapstructure:"legacy"`
		Retry         RetryConfig   `mapstructure:"retry"`
	}

	// GatewayConfig controls the legacy routing engine.
	// CutoffBlock is the first block for which the node is authoritative;
	// everything below it is served by the legacy endpoint group.
	GatewayConfig struct {
		Enabled     bool          `mapstructure:"enabled"`
		CutoffBlock uint64        `mapstructure:"cutoff_block" validate:"required_if=Enabled true"`
		Timeout     time.Duration `mapstructure:"timeout"`
	}

	EndpointGroup struct {
		Endpoints         []Endpoint `json:"endpoints"`
		EndpointsFailover []Endpoint `json:"endpoints_failover"`
		UseFailover       bool       `json:"use_failover"`
	}

	// endpointGroup must be in sync with EndpointGroup
	endpointGroup struct {
		Endpoints         []Endpoint `json:"endpoints"`
		EndpointsFailover []Endpoint `json:"endpoints_failover"`
		UseFailover       bool       `json:"use_failover"`
	}

	Endpoint struct {
		Name     string `json:"name"`
		Url      string `json:"url"`
		User     string `json:"user"`
		Password string `json:"password"`
		Weight   uint8  `json:"weight"`
	}

	RetryConfig struct {
		MaxAttempts     int           `mapstructure:"max_attempts"`
		InitialInterval time.Duration `mapstructure:"initial_interval"`
	}

	CronConfig struct {
		DisableFailover      bool `mapstructure:"disable_failover"`
		DisableNodeCanary    bool `mapstructure:"disable_node_canary"`
		DisableRoutingCanary bool `mapstructure:"disable_routing_canary"`
		DisableSLA           bool `mapstructure:"disable_sla"`
	}

	ControllerConfig struct {
		Handler      HandlerConfig        `mapstructure:"handler"`
		ReverseProxy []ReverseProxyConfig `mapstructure:"reverse_proxy" validate:"dive"`
	}

	HandlerConfig struct {
		SamplePercentage int            `mapstructure:"sample_percentage" validate:"min=0,max=100"`
		MethodConfigs    []MethodConfig `mapstructure:"methods"`
	}

	MethodConfig struct {
		MethodName       string `mapstructure:"method_name" validate:"required"`
		SamplePercentage int    `mapstructure:"sample_percentage" validate:"min=0,max=100"`
	}

	// ReverseProxyConfig defines a path to be handled by the "node" endpoint provider.
	// For example, assuming "node" endpoint provider is configured as "https://node.net:9005",
	// by setting path to "/v1/graphql" and target to "/graphql",
	// all requests to https://localhost:8000/v1/graphql will be handled by
	// https://node.net:9005/graphql.
	ReverseProxyConfig struct {
		Path   string `mapstructure:"path" validate:"required,startswith=/"`
		Target string `mapstructure:"target" validate:"required,startswith=/"`
	}

	TaskPoolConfig struct {
		Size int `mapstructure:"size" validate:"required"`
	}

	SLAConfig struct {
		Tier               int           `mapstructure:"tier" validate:"required"` // 1 for high urgency; 2 for low urgency; 3 for work in progress.
		BlockHeightDelta   uint64        `mapstructure:"block_height_delta" validate:"required"`
		TimeSinceLastBlock time.Duration `mapstructure:"time_since_last_block" validate:"required"`
	}

	ConfigOption func(options *configOptions)

	Env string

	configOptions struct {
		Blockchain common.Blockchain `validate:"required"`
		Network    common.Network    `validate:"required"`
		Env        Env               `validate:"required,oneof=production development local"`
	}

	BatchLimitConfig struct {
		DefaultLimit int `mapstructure:"default_limit" validate:"required"`
	}

	ServerConfig struct {
		BindAddress string `mapstructure:"bind_address" validate:"required"`
		IPCEndpoint string `mapstructure:"ipc_endpoint"`
	}

	// derivedConfig defines a callback where a config struct can override its fields based on the global config.
	// For example, GatewayConfig implements this interface to fill in the default legacy timeout.
	derivedConfig interface {
		DeriveConfig(cfg *Config)
	}
)

const (
	EnvVarConfigName  = "CHAINGATEWAY_CONFIG_NAME"
	EnvVarEnvironment = "CHAINGATEWAY_ENVIRONMENT"
	EnvVarTestType    = "TEST_TYPE"
	EnvVarCI          = "CI"

	Namespace         = "chaingateway"
	DefaultConfigName = "ethereum-mainnet"

	EnvBase        Env = "base"
	EnvLocal       Env = "local"
	EnvProduction  Env = "production"
	EnvDevelopment Env = "development"
	envSecrets     Env = "secrets" // .secrets.yml is merged into local.yml

	ServerHandle = "/v1"

	DefaultGatewayTimeout = 10 * time.Second

	placeholderPassword = "<placeholder>"

	tagBlockchain = "blockchain"
	tagNetwork    = "network"
	tagTier       = "tier"

	currentFileName = "/internal/config/config.go"
)

var (
	_ derivedConfig = (*ClientConfig)(nil)
	_ derivedConfig = (*GatewayConfig)(nil)

	envMap = map[string]Env{
		"":            EnvLocal,
		"development": EnvDevelopment,
		"production":  EnvProduction,
	}
)

func New(opts ...ConfigOption) (*Config, error) {
	validate := validator.New()

	// Get configname, such as "ethereum-mainnet"
	configName := getConfigName()

	// Get "blockchain", "network", "env"
	configOpts, err := getConfigOptions(configName, opts...)
	if err != nil {
		return nil, xerrors.Errorf("failed to get config options %w", err)
	}

	if err := validate.Struct(configOpts); err != nil {
		return nil, xerrors.Errorf("failed to validate config options: %w", err)
	}

	configReader, err := getConfigData(Namespace, EnvBase, configOpts.Blockchain, configOpts.Network)
	if err != nil {
		return nil, xerrors.Errorf("failed to locate config file: %w", err)
	}

	cfg := Config{
		env: configOpts.Env,
	}

	v := viper.New()
	// First, read the data in base.yml
	v.SetConfigName(string(EnvBase))
	v.SetConfigType("yaml")
	v.AutomaticEnv()
	v.AllowEmptyEnv(true)

	v.SetEnvPrefix("CHAINGATEWAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// Read the data in base.yml
	if err := v.ReadConfig(configReader); err != nil {
		return nil, xerrors.Errorf("failed to read config: %w", err)
	}

	// Merge in the env-specific config, such as development.yml
	if err := mergeInConfig(v, configOpts, configOpts.Env); err != nil {
		return nil, xerrors.Errorf("failed to merge in %v config: %w", configOpts.Env, err)
	}

	// Merge in .secrets.yml if available.
	if err := mergeInConfig(v, configOpts, envSecrets); err != nil {
		return nil, xerrors.Errorf("failed to merge in %v config: %w", envSecrets, err)
	}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.TextUnmarshallerHookFunc(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
		stringToBlockchainHookFunc(),
		stringToNetworkHookFunc(),
	))); err != nil {
		return nil, xerrors.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.setDerivedConfigs(reflect.ValueOf(&cfg))

	if err := validate.Struct(&cfg); err != nil {
		return nil, xerrors.Errorf("failed to validate config: %w", err)
	}

	return &cfg, nil
}

func getConfigName() string {
	configName, ok := os.LookupEnv(EnvVarConfigName)
	if !ok {
		configName = DefaultConfigName
	}
	return configName
}

func mergeInConfig(v *viper.Viper, configOpts *configOptions, env Env) error {
	// Merge in the env-specific config if available.
	if configReader, err := getConfigData(Namespace, env, configOpts.Blockchain, configOpts.Network); err == nil {
		v.SetConfigName(string(env))
		if err := v.MergeConfig(configReader); err != nil {
			return xerrors.Errorf("failed to merge config %v: %w", configOpts.Env, err)
		}
	}
	return nil
}

func (c *Config) Env() Env {
	return c.env
}

func (c *Config) Blockchain() common.Blockchain {
	return c.Chain.Blockchain
}

func (c *Config) Network() common.Network {
	return c.Chain.Network
}

func (c *Config) Tier() int {
	return c.SLA.Tier
}

func (c *Config) GetCommonTags() map[string]string {
	return map[string]string{
		tagBlockchain: c.Blockchain().GetName(),
		tagNetwork:    c.Network().GetName(),
		tagTier:       strconv.Itoa(c.Tier()),
	}
}

func (c *Config) IsCI() bool {
	return os.Getenv(EnvVarCI) != ""
}

func (c *Config) IsUnitTest() bool {
	return os.Getenv(EnvVarTestType) == "unit"
}

func (c *Config) IsIntegrationTest() bool {
	return os.Getenv(EnvVarTestType) == "integration"
}

func (c *Config) IsFunctionalTest() bool {
	return os.Getenv(EnvVarTestType) == "functional"
}

func (c *Config) IsTest() bool {
	return os.Getenv(EnvVarTestType) != ""
}

// setDerivedConfigs recursively calls DeriveConfig on all the derivedConfig.
func (c *Config) setDerivedConfigs(v reflect.Value) {
	if v.CanInterface() {
		if oc, ok := v.Interface().(derivedConfig); ok {
			oc.DeriveConfig(c)
			return
		}
	}

	elem := v.Elem()
	for i := 0; i < elem.NumField(); i++ {
		field := elem.Field(i)
		if field.Kind() == reflect.Struct {
			c.setDerivedConfigs(field.Addr())
		}
	}
}

func getConfigOptions(configName string, opts ...ConfigOption) (*configOptions, error) {
	blockchain, network, err := ParseConfigName(configName)
	if err != nil {
		return nil, xerrors.Errorf("failed to parse config name: %w", err)
	}

	env := envMap[os.Getenv(EnvVarEnvironment)]

	configOpts := &configOptions{
		Blockchain: blockchain,
		Network:    network,
		Env:        env,
	}

	for _, opt := range opts {
		opt(configOpts)
	}
	return configOpts, nil
}

func ParseConfigName(configName string) (common.Blockchain, common.Network, error) {
	// Normalize the config name by replacing "-" with "_".
	configName = strings.ReplaceAll(configName, "-", "_")

	splitString := strings.Split(configName, "_")
	if len(splitString) != 2 {
		return common.Blockchain_BLOCKCHAIN_UNKNOWN, common.Network_NETWORK_UNKNOWN, xerrors.Errorf("config name is invalid: %v", configName)
	}

	blockchainName := splitString[0]
	blockchain, err := auxiliary.ParseBlockchain(blockchainName)
	if err != nil {
		return common.Blockchain_BLOCKCHAIN_UNKNOWN, common.Network_NETWORK_UNKNOWN, xerrors.Errorf("failed to parse blockchain from config name %v: %w", configName, err)
	}

	networkName := fmt.Sprintf("%v_%v", splitString[0], splitString[1])
	network, err := auxiliary.ParseNetwork(networkName)
	if err != nil {
		return common.Blockchain_BLOCKCHAIN_UNKNOWN, common.Network_NETWORK_UNKNOWN, xerrors.Errorf("failed to parse network from config name %v: %w", configName, err)
	}

	return blockchain, network, nil
}

func stringToBlockchainHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}

		if t != reflect.TypeOf(common.Blockchain_BLOCKCHAIN_UNKNOWN) {
			return data, nil
		}

		return common.Blockchain_value[data.(string)], nil
	}
}

func stringToNetworkHookFunc() mapstructure.DecodeHookFunc {
	return func(f reflect.Type, t reflect.Type, data interface{}) (interface{}, error) {
		if f.Kind() != reflect.String {
			return data, nil
		}

		if t != reflect.TypeOf(common.Network_NETWORK_UNKNOWN) {
			return data, nil
		}

		return common.Network_value[data.(string)], nil
	}
}

func getConfigData(namespace string, env Env, blockchain common.Blockchain, network common.Network) (io.Reader, error) {
	blockchainName := blockchain.GetName()
	networkName := strings.TrimPrefix(network.GetName(), blockchainName+"-")

	if env == envSecrets {
		// .secrets.yml is intentionally not embedded in config.Store.
		// Read it from the file system instead.
		_, filename, _, ok := runtime.Caller(0)
		if !ok {
			return nil, xerrors.Errorf("failed to recover the filename information")
		}
		rootDir := strings.TrimSuffix(filename, currentFileName)
		configPath := fmt.Sprintf("%v/config/%v/%v/%v/.secrets.yml", rootDir, namespace, blockchainName, networkName)
		reader, err := os.Open(configPath) // #nosec G304 - potential file inclusion via variable
		if err != nil {
			return nil, xerrors.Errorf("failed to read config file %v: %w", configPath, err)
		}
		return reader, nil
	}

	configPath := fmt.Sprintf("%s/%v/%v/%v.yml", namespace, blockchainName, networkName, env)

	return config.Store.Open(configPath)
}

func WithBlockchain(blockchain common.Blockchain) ConfigOption {
	return func(opts *configOptions) {
		opts.Blockchain = blockchain
	}
}

func WithNetwork(network common.Network) ConfigOption {
	return func(opts *configOptions) {
		opts.Network = network
	}
}

func WithEnvironment(env Env) ConfigOption {
	return func(opts *configOptions) {
		opts.Env = env
	}
}

func (c *ClientConfig) DeriveConfig(cfg *Config) {
	if cfg.Env() == EnvLocal {
		c.ServerAddress = "http://localhost:8000"
	}
	c.ServerName = fmt.Sprintf("%s-%s-%s-%s", Namespace, cfg.Chain.Blockchain.GetName(), cfg.Chain.Network.GetName(), cfg.Env())
	c.ServerHandle = ServerHandle
}

func (c *GatewayConfig) DeriveConfig(cfg *Config) {
	if c.Timeout == 0 {
		c.Timeout = DefaultGatewayTimeout
	}
}

func (c *ClientConfig) Empty() bool {
	for _, cfg := range []*EndpointGroup{&c.Node, &c.Legacy} {
		if len(cfg.Endpoints) == 0 {
			return true
		}

		for _, endpoint := range cfg.Endpoints {
			if endpoint.Password == placeholderPassword {
				return true
			}
		}
	}

	return false
}

func (e *EndpointGroup) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		return nil
	}

	var eg endpointGroup
	err := json.Unmarshal(text, &eg)
	if err != nil {
		return xerrors.Errorf("failed to parse EndpointGroup JSON: %w", err)
	}

	if len(eg.Endpoints) == 0 {
		return xerrors.New("endpoints is empty")
	}

	if eg.UseFailover && len(eg.EndpointsFailover) == 0 {
		return xerrors.New("endpoints_failover is empty")
	}

	e.Endpoints = eg.Endpoints
	e.EndpointsFailover = eg.EndpointsFailover
	e.UseFailover = eg.UseFailover

	for _, endpoints := range [][]Endpoint{e.Endpoints, e.EndpointsFailover} {
		for _, endpoint := range endpoints {
			if endpoint.Name == "" {
				return xerrors.New("empty endpoint.Name")
			}
			if endpoint.Url == "" {
				return xerrors.New("empty endpoint.URL")
			}
		}
	}
	return nil
}

func (c *RetryConfig) NewRetry(opts ...retry.Option) retry.Retry {
	if c.MaxAttempts > 0 {
		opts = append(opts, retry.WithMaxAttempts(c.MaxAttempts))
	}

	if c.InitialInterval > 0 {
		opts = append(opts, retry.WithBackoffFactory(func() retry.Backoff {
			backoff := retry.DefaultBackoffFactory()
			backoff.InitialInterval = c.InitialInterval
			return backoff
		}))
	}

	return retry.New(opts...)
}
