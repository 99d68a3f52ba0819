package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/gabrielantonyxaviour/moltrades/internal/registry"
	"gopkg.in/yaml.v3"
)

const envPrefix = "MOLTRADES_"

type GlobalFlags struct {
	ConfigPath  string
	JSON        bool
	Plain       bool
	Select      string
	ResultsOnly bool
	Timeout     string
	Retries     int
	LogLevel    string
	MetricsAddr string
	RPC         []string
	WriteRPC    []string

	EnableCommands string
}

type Settings struct {
	OutputMode   string
	SelectFields []string
	ResultsOnly  bool
	Timeout      time.Duration
	Retries      int
	LogLevel     string
	MetricsAddr  string

	// EnableCommands is an allowlist of command paths. Empty allows all.
	EnableCommands []string

	LiFiBaseURL    string
	LiFiAPIKey     string
	LiFiIntegrator string
	Slippage       float64
	LiFiRateLimit  float64
	LiFiRateBurst  int

	RPCOverrides       map[int64]string
	WriteRPCOverrides  map[int64]string
	GenericRPCTemplate string

	KeySource           string
	ReceiptPollInterval time.Duration
	ReceiptTimeout      time.Duration
	SubmitTimeout       time.Duration
	GasMultiplier       float64
	MaxFeeGwei          string
	MaxPriorityFeeGwei  string

	BridgePollInterval   time.Duration
	BridgePollTimeout    time.Duration
	StatusRequestTimeout time.Duration

	JournalPath     string
	JournalLockPath string

	SolanaRPCURL string
}

type fileConfig struct {
	Output      string `yaml:"output"`
	Timeout     string `yaml:"timeout"`
	Retries     *int   `yaml:"retries"`
	LogLevel    string `yaml:"log_level"`
	MetricsAddr string `yaml:"metrics_addr"`

	// EnableCommands uses the same comma-separated form as the flag.
	EnableCommands string `yaml:"enable_commands"`

	LiFi struct {
		BaseURL    string   `yaml:"base_url"`
		APIKey     string   `yaml:"api_key"`
		APIKeyEnv  string   `yaml:"api_key_env"`
		Integrator string   `yaml:"integrator"`
		Slippage   *float64 `yaml:"slippage"`
		RateLimit  *float64 `yaml:"rate_limit"`
		RateBurst  *int     `yaml:"rate_burst"`
	} `yaml:"lifi"`
	RPC struct {
		GenericTemplate *string           `yaml:"generic_template"`
		Chains          map[string]string `yaml:"chains"`
		Write           map[string]string `yaml:"write"`
	} `yaml:"rpc"`
	Execution struct {
		KeySource           string   `yaml:"key_source"`
		ReceiptPollInterval string   `yaml:"receipt_poll_interval"`
		ReceiptTimeout      string   `yaml:"receipt_timeout"`
		SubmitTimeout       string   `yaml:"submit_timeout"`
		GasMultiplier       *float64 `yaml:"gas_multiplier"`
		MaxFeeGwei          string   `yaml:"max_fee_gwei"`
		MaxPriorityFeeGwei  string   `yaml:"max_priority_fee_gwei"`
	} `yaml:"execution"`
	Bridge struct {
		PollInterval   string `yaml:"poll_interval"`
		PollTimeout    string `yaml:"poll_timeout"`
		RequestTimeout string `yaml:"request_timeout"`
	} `yaml:"bridge"`
	Journal struct {
		Path     string `yaml:"path"`
		LockPath string `yaml:"lock_path"`
	} `yaml:"journal"`
	Solana struct {
		RPCURL string `yaml:"rpc_url"`
	} `yaml:"solana"`
}

// Load resolves settings in order: defaults, YAML file, MOLTRADES_* env,
// flags.
func Load(flags GlobalFlags) (Settings, error) {
	settings, err := defaultSettings()
	if err != nil {
		return Settings{}, err
	}

	cfgPath, err := resolveConfigPath(flags.ConfigPath)
	if err != nil {
		return Settings{}, err
	}
	if err := applyFileConfig(cfgPath, &settings); err != nil {
		return Settings{}, err
	}
	if err := applyEnv(&settings); err != nil {
		return Settings{}, err
	}
	if err := applyFlags(flags, &settings); err != nil {
		return Settings{}, err
	}

	if settings.Timeout <= 0 {
		settings.Timeout = 15 * time.Second
	}
	if settings.Retries < 0 {
		settings.Retries = 0
	}
	if settings.Slippage < 0 || settings.Slippage >= 1 {
		return Settings{}, fmt.Errorf("slippage must be a fraction in [0, 1)")
	}
	if settings.GasMultiplier < 1 {
		return Settings{}, fmt.Errorf("gas multiplier must be >= 1")
	}
	return settings, nil
}

func defaultSettings() (Settings, error) {
	dataDir, err := defaultDataDir()
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		OutputMode:           "json",
		Timeout:              15 * time.Second,
		Retries:              2,
		LogLevel:             "warn",
		LiFiBaseURL:          registry.LiFiBaseURL,
		LiFiIntegrator:       "moltrades",
		Slippage:             0.03,
		LiFiRateLimit:        2,
		LiFiRateBurst:        2,
		RPCOverrides:         map[int64]string{},
		WriteRPCOverrides:    map[int64]string{},
		GenericRPCTemplate:   registry.DefaultGenericRPCTemplate,
		KeySource:            "auto",
		ReceiptPollInterval:  2 * time.Second,
		ReceiptTimeout:       2 * time.Minute,
		SubmitTimeout:        30 * time.Second,
		GasMultiplier:        1.2,
		BridgePollInterval:   10 * time.Second,
		BridgePollTimeout:    600 * time.Second,
		StatusRequestTimeout: 15 * time.Second,
		JournalPath:          filepath.Join(dataDir, "executions.db"),
		JournalLockPath:      filepath.Join(dataDir, "executions.lock"),
		SolanaRPCURL:         registry.SolanaMainnetRPCURL,
	}, nil
}

func resolveConfigPath(input string) (string, error) {
	if strings.TrimSpace(input) != "" {
		return input, nil
	}
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "moltrades", "config.yaml"), nil
}

func defaultDataDir() (string, error) {
	base := os.Getenv("XDG_STATE_HOME")
	if base == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		base = filepath.Join(home, ".local", "state")
	}
	return filepath.Join(base, "moltrades"), nil
}

func applyFileConfig(path string, settings *Settings) error {
	buf, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(buf, &cfg); err != nil {
		return fmt.Errorf("parse config yaml: %w", err)
	}

	if cfg.Output != "" {
		settings.OutputMode = strings.ToLower(cfg.Output)
	}
	if cfg.Retries != nil {
		settings.Retries = *cfg.Retries
	}
	if cfg.LogLevel != "" {
		settings.LogLevel = cfg.LogLevel
	}
	if cfg.MetricsAddr != "" {
		settings.MetricsAddr = cfg.MetricsAddr
	}
	if cfg.EnableCommands != "" {
		settings.EnableCommands = splitList(cfg.EnableCommands)
	}
	if cfg.LiFi.BaseURL != "" {
		settings.LiFiBaseURL = cfg.LiFi.BaseURL
	}
	if cfg.LiFi.APIKey != "" {
		settings.LiFiAPIKey = cfg.LiFi.APIKey
	}
	if cfg.LiFi.APIKeyEnv != "" {
		settings.LiFiAPIKey = os.Getenv(cfg.LiFi.APIKeyEnv)
	}
	if cfg.LiFi.Integrator != "" {
		settings.LiFiIntegrator = cfg.LiFi.Integrator
	}
	if cfg.LiFi.Slippage != nil {
		settings.Slippage = *cfg.LiFi.Slippage
	}
	if cfg.LiFi.RateLimit != nil {
		settings.LiFiRateLimit = *cfg.LiFi.RateLimit
	}
	if cfg.LiFi.RateBurst != nil {
		settings.LiFiRateBurst = *cfg.LiFi.RateBurst
	}
	if cfg.RPC.GenericTemplate != nil {
		settings.GenericRPCTemplate = strings.TrimSpace(*cfg.RPC.GenericTemplate)
	}
	for key, url := range cfg.RPC.Chains {
		if err := setRPC(settings.RPCOverrides, key, url); err != nil {
			return fmt.Errorf("config rpc.chains: %w", err)
		}
	}
	for key, url := range cfg.RPC.Write {
		if err := setRPC(settings.WriteRPCOverrides, key, url); err != nil {
			return fmt.Errorf("config rpc.write: %w", err)
		}
	}
	if cfg.Execution.KeySource != "" {
		settings.KeySource = cfg.Execution.KeySource
	}
	if cfg.Execution.GasMultiplier != nil {
		settings.GasMultiplier = *cfg.Execution.GasMultiplier
	}
	if cfg.Execution.MaxFeeGwei != "" {
		settings.MaxFeeGwei = cfg.Execution.MaxFeeGwei
	}
	if cfg.Execution.MaxPriorityFeeGwei != "" {
		settings.MaxPriorityFeeGwei = cfg.Execution.MaxPriorityFeeGwei
	}
	if cfg.Journal.Path != "" {
		settings.JournalPath = cfg.Journal.Path
	}
	if cfg.Journal.LockPath != "" {
		settings.JournalLockPath = cfg.Journal.LockPath
	}
	if cfg.Solana.RPCURL != "" {
		settings.SolanaRPCURL = cfg.Solana.RPCURL
	}

	durations := []struct {
		name string
		raw  string
		dst  *time.Duration
	}{
		{"timeout", cfg.Timeout, &settings.Timeout},
		{"execution.receipt_poll_interval", cfg.Execution.ReceiptPollInterval, &settings.ReceiptPollInterval},
		{"execution.receipt_timeout", cfg.Execution.ReceiptTimeout, &settings.ReceiptTimeout},
		{"execution.submit_timeout", cfg.Execution.SubmitTimeout, &settings.SubmitTimeout},
		{"bridge.poll_interval", cfg.Bridge.PollInterval, &settings.BridgePollInterval},
		{"bridge.poll_timeout", cfg.Bridge.PollTimeout, &settings.BridgePollTimeout},
		{"bridge.request_timeout", cfg.Bridge.RequestTimeout, &settings.StatusRequestTimeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return fmt.Errorf("config %s: %w", d.name, err)
		}
		*d.dst = v
	}
	return nil
}

// applyEnv reads MOLTRADES_* variables. Malformed values are errors rather
// than silently ignored.
func applyEnv(settings *Settings) error {
	str := map[string]*string{
		"OUTPUT":                &settings.OutputMode,
		"LOG_LEVEL":             &settings.LogLevel,
		"METRICS_ADDR":          &settings.MetricsAddr,
		"LIFI_BASE_URL":         &settings.LiFiBaseURL,
		"LIFI_API_KEY":          &settings.LiFiAPIKey,
		"LIFI_INTEGRATOR":       &settings.LiFiIntegrator,
		"KEY_SOURCE":            &settings.KeySource,
		"MAX_FEE_GWEI":          &settings.MaxFeeGwei,
		"MAX_PRIORITY_FEE_GWEI": &settings.MaxPriorityFeeGwei,
		"JOURNAL_PATH":          &settings.JournalPath,
		"JOURNAL_LOCK_PATH":     &settings.JournalLockPath,
		"SOLANA_RPC_URL":        &settings.SolanaRPCURL,
	}
	for name, dst := range str {
		if v := os.Getenv(envPrefix + name); v != "" {
			*dst = v
		}
	}
	settings.OutputMode = strings.ToLower(settings.OutputMode)
	if v, ok := os.LookupEnv(envPrefix + "GENERIC_RPC_TEMPLATE"); ok {
		settings.GenericRPCTemplate = strings.TrimSpace(v)
	}

	durations := map[string]*time.Duration{
		"TIMEOUT":                &settings.Timeout,
		"RECEIPT_POLL_INTERVAL":  &settings.ReceiptPollInterval,
		"RECEIPT_TIMEOUT":        &settings.ReceiptTimeout,
		"SUBMIT_TIMEOUT":         &settings.SubmitTimeout,
		"BRIDGE_POLL_INTERVAL":   &settings.BridgePollInterval,
		"BRIDGE_POLL_TIMEOUT":    &settings.BridgePollTimeout,
		"STATUS_REQUEST_TIMEOUT": &settings.StatusRequestTimeout,
	}
	for name, dst := range durations {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			continue
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = d
	}

	floats := map[string]*float64{
		"SLIPPAGE":        &settings.Slippage,
		"LIFI_RATE_LIMIT": &settings.LiFiRateLimit,
		"GAS_MULTIPLIER":  &settings.GasMultiplier,
	}
	for name, dst := range floats {
		v := os.Getenv(envPrefix + name)
		if v == "" {
			continue
		}
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("%s%s: %w", envPrefix, name, err)
		}
		*dst = f
	}

	if v := os.Getenv(envPrefix + "ENABLE_COMMANDS"); v != "" {
		settings.EnableCommands = splitList(v)
	}
	if v := os.Getenv(envPrefix + "RETRIES"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sRETRIES: %w", envPrefix, err)
		}
		settings.Retries = n
	}
	if v := os.Getenv(envPrefix + "RPC_URLS"); v != "" {
		if err := applyRPCList(settings.RPCOverrides, strings.Split(v, ",")); err != nil {
			return fmt.Errorf("%sRPC_URLS: %w", envPrefix, err)
		}
	}
	if v := os.Getenv(envPrefix + "WRITE_RPC_URLS"); v != "" {
		if err := applyRPCList(settings.WriteRPCOverrides, strings.Split(v, ",")); err != nil {
			return fmt.Errorf("%sWRITE_RPC_URLS: %w", envPrefix, err)
		}
	}
	return nil
}

func applyFlags(flags GlobalFlags, settings *Settings) error {
	if flags.JSON && flags.Plain {
		return fmt.Errorf("cannot use --json and --plain together")
	}
	if flags.JSON {
		settings.OutputMode = "json"
	}
	if flags.Plain {
		settings.OutputMode = "plain"
	}
	if strings.TrimSpace(flags.Select) != "" {
		settings.SelectFields = splitList(flags.Select)
	}
	settings.ResultsOnly = flags.ResultsOnly

	if flags.Timeout != "" {
		d, err := time.ParseDuration(flags.Timeout)
		if err != nil {
			return fmt.Errorf("parse --timeout: %w", err)
		}
		settings.Timeout = d
	}
	if flags.Retries >= 0 {
		settings.Retries = flags.Retries
	}
	if flags.LogLevel != "" {
		settings.LogLevel = flags.LogLevel
	}
	if flags.MetricsAddr != "" {
		settings.MetricsAddr = flags.MetricsAddr
	}
	if strings.TrimSpace(flags.EnableCommands) != "" {
		settings.EnableCommands = splitList(flags.EnableCommands)
	}
	if err := applyRPCList(settings.RPCOverrides, flags.RPC); err != nil {
		return fmt.Errorf("parse --rpc: %w", err)
	}
	if err := applyRPCList(settings.WriteRPCOverrides, flags.WriteRPC); err != nil {
		return fmt.Errorf("parse --write-rpc: %w", err)
	}

	if settings.OutputMode != "json" && settings.OutputMode != "plain" {
		return fmt.Errorf("output must be json or plain")
	}
	return nil
}

// applyRPCList parses chain=url pairs where chain is an id or a slug.
func applyRPCList(dst map[int64]string, entries []string) error {
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, url, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("expected chain=url, got %q", entry)
		}
		if err := setRPC(dst, key, url); err != nil {
			return err
		}
	}
	return nil
}

func setRPC(dst map[int64]string, chainKey, url string) error {
	chain, err := registry.ParseChain(chainKey)
	if err != nil {
		return err
	}
	url = strings.TrimSpace(url)
	if url == "" {
		return fmt.Errorf("empty rpc url for chain %s", chainKey)
	}
	dst[chain.ID] = url
	return nil
}

func splitList(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if f := strings.TrimSpace(part); f != "" {
			out = append(out, f)
		}
	}
	return out
}
