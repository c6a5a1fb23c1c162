package config

import (
	"errors"
	"fmt"
	"strings"

	"bjs/parser/internal/domain"

	"github.com/spf13/viper"
)

var ErrInvalidExclusion = errors.New("invalid exclusion rule")

// Config holds all configuration for the application
type Config struct {
	Log       LogConfig       `mapstructure:"log"`
	Search    SearchConfig    `mapstructure:"search"`
	Browser   BrowserConfig   `mapstructure:"browser"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Cache     CacheConfig     `mapstructure:"cache"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Inventory InventoryConfig `mapstructure:"inventory"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // text or json
}

// SearchConfig holds the search API configuration
type SearchConfig struct {
	Endpoint   string   `mapstructure:"endpoint"`
	ClubID     string   `mapstructure:"club_id"`
	PageSize   int      `mapstructure:"page_size"`
	PageDelay  int      `mapstructure:"page_delay"` // Seconds between page requests
	Timeout    int      `mapstructure:"timeout"`
	Area       string   `mapstructure:"area"`
	Collection string   `mapstructure:"collection"`
	Fields     []string `mapstructure:"fields"`
	Proxies    []string `mapstructure:"proxies"`
}

// BrowserConfig holds the headless browser configuration for the category walk
type BrowserConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	Headless     bool   `mapstructure:"headless"`
	LoadTimeout  int    `mapstructure:"load_timeout"`  // Seconds to wait for a page marker
	SettleDelay  int    `mapstructure:"settle_delay"`  // Seconds to wait after UI interactions
	PageDelay    int    `mapstructure:"page_delay"`    // Seconds between page loads
	WindowWidth  int    `mapstructure:"window_width"`  //
	WindowHeight int    `mapstructure:"window_height"` //
	ClubState    string `mapstructure:"club_state"`
	ClubTown     string `mapstructure:"club_town"`
	ClubName     string `mapstructure:"club_name"` // Expected club label after selection
}

// DatabaseConfig holds the inventory store configuration
type DatabaseConfig struct {
	Driver string `mapstructure:"driver"` // sqlite, libsql or postgres

	// sqlite
	Path string `mapstructure:"path"`

	// libsql
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`

	// postgres
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Name     string `mapstructure:"name"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
}

// CacheConfig holds the resume cache configuration
type CacheConfig struct {
	Backend       string `mapstructure:"backend"` // file or redis
	ItemsPath     string `mapstructure:"items_path"`
	CompletedPath string `mapstructure:"completed_path"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	Password  string `mapstructure:"password"`
	Database  int    `mapstructure:"database"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

type IngestConfig struct {
	Store      string        `mapstructure:"store"`
	Exclusions []interface{} `mapstructure:"exclusions"` // Names or lists of names
}

type InventoryConfig struct {
	Path string `mapstructure:"path"`
}

// Load loads configuration from a YAML file with environment variable overrides.
// An empty path searches config.yaml in the current directory; a missing file there is not an error.
func Load(path string) (*Config, error) {
	setDefaults()

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if path != "" {
		viper.SetConfigFile(path)
	} else {
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if _, err := config.Ingest.Rules(); err != nil {
		return nil, err
	}

	return &config, nil
}

// Rules returns the configured exclusion rules
func (c IngestConfig) Rules() ([]domain.Path, error) {
	return ParseExclusions(c.Exclusions)
}

// ParseExclusions normalizes exclusion entries: a bare name becomes a one-element path,
// a list of names is taken as is.
func ParseExclusions(raw []interface{}) ([]domain.Path, error) {
	rules := make([]domain.Path, 0, len(raw))
	for i, entry := range raw {
		switch v := entry.(type) {
		case string:
			if v == "" {
				return nil, fmt.Errorf("%w: entry %d is empty", ErrInvalidExclusion, i)
			}
			rules = append(rules, domain.Path{v})
		case []string:
			rule, err := toPath(i, stringsToAny(v))
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
		case []interface{}:
			rule, err := toPath(i, v)
			if err != nil {
				return nil, err
			}
			rules = append(rules, rule)
		default:
			return nil, fmt.Errorf("%w: entry %d has type %T", ErrInvalidExclusion, i, entry)
		}
	}
	return rules, nil
}

func toPath(index int, names []interface{}) (domain.Path, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("%w: entry %d is empty", ErrInvalidExclusion, index)
	}
	path := make(domain.Path, 0, len(names))
	for _, name := range names {
		s, ok := name.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("%w: entry %d contains %v", ErrInvalidExclusion, index, name)
		}
		path = append(path, s)
	}
	return path, nil
}

func stringsToAny(names []string) []interface{} {
	out := make([]interface{}, len(names))
	for i, name := range names {
		out[i] = name
	}
	return out
}

func setDefaults() {
	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.format", "text")

	viper.SetDefault("search.endpoint", "https://bjswholesale-cors.groupbycloud.com/api/v1/search")
	viper.SetDefault("search.club_id", "0001")
	viper.SetDefault("search.page_size", 120)
	viper.SetDefault("search.page_delay", 5)
	viper.SetDefault("search.timeout", 60)
	viper.SetDefault("search.area", "BCProduction")
	viper.SetDefault("search.collection", "productionB2CProducts")
	viper.SetDefault("search.fields", []string{
		"title",
		"gbi_categories",
		"visualVariant.nonvisualVariant.product_url",
		"visualVariant.nonvisualVariant.clubid_price",
		"visualVariant.nonvisualVariant.displayPrice",
	})
	viper.SetDefault("search.proxies", []string{})

	viper.SetDefault("browser.base_url", "http://www.bjs.com/")
	viper.SetDefault("browser.headless", true)
	viper.SetDefault("browser.load_timeout", 5)
	viper.SetDefault("browser.settle_delay", 2)
	viper.SetDefault("browser.page_delay", 0)
	viper.SetDefault("browser.window_width", 2000)
	viper.SetDefault("browser.window_height", 10000)
	viper.SetDefault("browser.club_state", "MA")
	viper.SetDefault("browser.club_town", "Medford")
	viper.SetDefault("browser.club_name", "BJ's Medford")

	viper.SetDefault("database.driver", "sqlite")
	viper.SetDefault("database.path", "inventory.db")
	viper.SetDefault("database.url", "")
	viper.SetDefault("database.auth_token", "")
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.name", "inventory")
	viper.SetDefault("database.user", "inventory_user")
	viper.SetDefault("database.password", "inventory_pass")

	viper.SetDefault("cache.backend", "file")
	viper.SetDefault("cache.items_path", ".cache.items.json")
	viper.SetDefault("cache.completed_path", ".cache.completed.json")

	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.database", 0)
	viper.SetDefault("redis.key_prefix", "bjs:cache:")

	viper.SetDefault("ingest.store", "BJs")
	viper.SetDefault("ingest.exclusions", []interface{}{
		"Apparel",
		"Baby & Kids",
		"Clearance",
		"Computers & Tablets",
		"Furniture",
		"Gift Cards",
		"Health & Beauty",
		"Jewelry",
		"Lawn & Garden",
		"MobileDeli",
		"Office",
		"Patio & Outdoor Living",
		"Toys & Video Games",
		"TV & Electronics",
		"Sports & Fitness",
	})

	viper.SetDefault("inventory.path", "inventory.json")
}
