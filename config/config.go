package config

import (
	"fmt"
	"strings"
	"time"

	"settlement-kernel/pkg/apperror"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Income tax payer models.
const (
	IncomePayerFirm      = "FIRM"      // employer pays wage + tax together
	IncomePayerHousehold = "HOUSEHOLD" // employee receives gross, withholding leg follows
)

// Config holds all kernel configuration.
type Config struct {
	Kernel   KernelConfig   `mapstructure:"kernel"`
	Tax      TaxConfig      `mapstructure:"tax"`
	Estate   EstateConfig   `mapstructure:"estate"`
	Housing  HousingConfig  `mapstructure:"housing"`
	Database DatabaseConfig `mapstructure:"database"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Audit    AuditConfig    `mapstructure:"audit"`
	Metrics  MetricsConfig  `mapstructure:"metrics"`
	Log      LogConfig      `mapstructure:"log"`
}

// KernelConfig names the system agents and the default currency.
type KernelConfig struct {
	DefaultCurrency      string  `mapstructure:"default_currency"`
	CreationAuthorities  []int64 `mapstructure:"creation_authorities"`
	DestructionAuthority int64   `mapstructure:"destruction_authority"`
	GovernmentID         int64   `mapstructure:"government_id"`
	CentralBankID        int64   `mapstructure:"central_bank_id"`
	BankID               int64   `mapstructure:"bank_id"`
	PublicManagerID      int64   `mapstructure:"public_manager_id"`
	EscrowID             int64   `mapstructure:"escrow_id"`
	LiquidationBuyerID   int64   `mapstructure:"liquidation_buyer_id"`
	GenesisBalance       int64   `mapstructure:"genesis_balance"`
}

// TaxConfig holds rates as decimal strings so no float reaches the kernel.
type TaxConfig struct {
	SalesRate            string `mapstructure:"sales_rate"`
	IncomeRate           string `mapstructure:"income_rate"`
	IncomePayer          string `mapstructure:"income_payer"`
	InheritanceRate      string `mapstructure:"inheritance_rate"`
	InheritanceDeduction int64  `mapstructure:"inheritance_deduction"` // minor units
}

type EstateConfig struct {
	FireSaleDiscount string `mapstructure:"fire_sale_discount"`
	ValuationWorkers int    `mapstructure:"valuation_workers"`
}

type HousingConfig struct {
	LTV               string `mapstructure:"ltv"`
	MortgageRate      string `mapstructure:"mortgage_rate"`
	MortgageTermTicks int64  `mapstructure:"mortgage_term_ticks"`
}

type DatabaseConfig struct {
	Enabled         bool          `mapstructure:"enabled"`
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	DBName          string        `mapstructure:"dbname"`
	SSLMode         string        `mapstructure:"sslmode"`
	MaxConns        int32         `mapstructure:"max_conns"`
	MinConns        int32         `mapstructure:"min_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// DSN returns the PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type RedisConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	Host        string        `mapstructure:"host"`
	Port        int           `mapstructure:"port"`
	Password    string        `mapstructure:"password"`
	DB          int           `mapstructure:"db"`
	SnapshotTTL time.Duration `mapstructure:"snapshot_ttl"`
}

// Addr returns the Redis address string.
func (r RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", r.Host, r.Port)
}

type AuditConfig struct {
	SQLitePath string `mapstructure:"sqlite_path"` // empty disables the offline export
}

type MetricsConfig struct {
	Namespace string `mapstructure:"namespace"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // debug, info, warn, error
	Pretty bool   `mapstructure:"pretty"` // human-readable output (dev only)
}

// Rates is the parsed, validated numeric view of the rate strings.
type Rates struct {
	Sales            decimal.Decimal
	Income           decimal.Decimal
	Inheritance      decimal.Decimal
	FireSaleDiscount decimal.Decimal
	LTV              decimal.Decimal
	MortgageRate     decimal.Decimal
}

// Load reads configuration from file and environment variables.
// Environment variables override file values. Prefix: SKL_ (Settlement Kernel).
// Nested keys use underscore: SKL_TAX_SALES_RATE, SKL_KERNEL_DEFAULT_CURRENCY, etc.
func Load(path string) (*Config, error) {
	v := viper.New()

	// Defaults
	v.SetDefault("kernel.default_currency", "USD")
	v.SetDefault("kernel.creation_authorities", []int64{1})
	v.SetDefault("kernel.destruction_authority", 1)
	v.SetDefault("kernel.central_bank_id", 1)
	v.SetDefault("kernel.government_id", 2)
	v.SetDefault("kernel.bank_id", 3)
	v.SetDefault("kernel.public_manager_id", 4)
	v.SetDefault("kernel.escrow_id", 5)
	v.SetDefault("kernel.liquidation_buyer_id", 2)
	v.SetDefault("kernel.genesis_balance", 0)
	v.SetDefault("tax.sales_rate", "0")
	v.SetDefault("tax.income_rate", "0")
	v.SetDefault("tax.income_payer", IncomePayerHousehold)
	v.SetDefault("tax.inheritance_rate", "0")
	v.SetDefault("tax.inheritance_deduction", 0)
	v.SetDefault("estate.fire_sale_discount", "0.2")
	v.SetDefault("estate.valuation_workers", 4)
	v.SetDefault("housing.ltv", "0.8")
	v.SetDefault("housing.mortgage_rate", "0.05")
	v.SetDefault("housing.mortgage_term_ticks", 300)
	v.SetDefault("database.enabled", false)
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "postgres")
	v.SetDefault("database.dbname", "settlement_kernel")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 10)
	v.SetDefault("database.min_conns", 2)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.snapshot_ttl", "1h")
	v.SetDefault("audit.sqlite_path", "")
	v.SetDefault("metrics.namespace", "settlement_kernel")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	// File config
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	// Environment variables: SKL_TAX_SALES_RATE -> tax.sales_rate
	v.SetEnvPrefix("SKL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Read config file (not required, env vars can suffice)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects malformed settings with a configuration error.
func (c *Config) Validate() error {
	if c.Kernel.DefaultCurrency == "" {
		return apperror.ErrMalformedConfig("kernel.default_currency must not be empty")
	}
	if len(c.Kernel.CreationAuthorities) == 0 {
		return apperror.ErrMalformedConfig("kernel.creation_authorities must name at least one agent")
	}
	if c.Kernel.GenesisBalance < 0 {
		return apperror.ErrMalformedConfig("kernel.genesis_balance must be non-negative")
	}
	if c.Tax.InheritanceDeduction < 0 {
		return apperror.ErrMalformedConfig("tax.inheritance_deduction must be non-negative")
	}
	switch c.Tax.IncomePayer {
	case IncomePayerFirm, IncomePayerHousehold:
	default:
		return apperror.ErrMalformedConfig(fmt.Sprintf("tax.income_payer %q must be FIRM or HOUSEHOLD", c.Tax.IncomePayer))
	}
	if c.Estate.ValuationWorkers < 1 {
		return apperror.ErrMalformedConfig("estate.valuation_workers must be at least 1")
	}
	if c.Housing.MortgageTermTicks < 0 {
		return apperror.ErrMalformedConfig("housing.mortgage_term_ticks must be non-negative")
	}
	_, err := c.Rates()
	return err
}

// Rates parses every rate string. Each rate must lie in [0, 1].
func (c *Config) Rates() (Rates, error) {
	var r Rates
	fields := []struct {
		key string
		raw string
		dst *decimal.Decimal
	}{
		{"tax.sales_rate", c.Tax.SalesRate, &r.Sales},
		{"tax.income_rate", c.Tax.IncomeRate, &r.Income},
		{"tax.inheritance_rate", c.Tax.InheritanceRate, &r.Inheritance},
		{"estate.fire_sale_discount", c.Estate.FireSaleDiscount, &r.FireSaleDiscount},
		{"housing.ltv", c.Housing.LTV, &r.LTV},
		{"housing.mortgage_rate", c.Housing.MortgageRate, &r.MortgageRate},
	}
	for _, f := range fields {
		d, err := decimal.NewFromString(f.raw)
		if err != nil {
			return Rates{}, apperror.Wrap("CFG_003", fmt.Sprintf("%s is not a decimal", f.key), apperror.KindConfiguration, err)
		}
		if d.IsNegative() || d.GreaterThan(decimal.NewFromInt(1)) {
			return Rates{}, apperror.ErrMalformedConfig(fmt.Sprintf("%s must be within [0, 1], got %s", f.key, f.raw))
		}
		*f.dst = d
	}
	return r, nil
}
