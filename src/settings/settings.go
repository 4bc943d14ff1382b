package settings

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrConfiguration is returned for any missing or malformed configuration value.
var ErrConfiguration = errors.New("configuration error")

const (
	BackendMongo  = "mongo"
	BackendMemory = "memory"

	envPrefix     = "SCHEMABENCH"
	configEnvVar  = "SCHEMABENCH_CONFIG"
	defaultConfig = "config"
)

// Arguments is the configuration of one benchmark process. It is built once
// in main and handed to every component that needs it.
type Arguments struct {
	// Name of the database holding the Person/Company collections
	DatabaseName string

	// Content locales for the synthetic data provider, e.g. it_IT, en_US
	Languages []string

	// How many documents of n become people for each company: companies = n / ratio
	PersonCompanyRatio int

	// Seed for the data provider; 0 picks a random seed
	Seed uint64

	// Store backend (mongo, memory) and its connection string
	Backend      string
	URI          string
	StoreTimeout time.Duration

	ConfigFile string

	Debug   bool
	Verbose bool
}

// Load reads configuration from path (or from config.json in the working
// directory when path is empty) and from SCHEMABENCH_* environment variables.
func Load(path string) (*Arguments, error) {
	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("store.uri", "MONGO_URI"); err != nil {
		return nil, fmt.Errorf("%w: binding MONGO_URI: %v", ErrConfiguration, err)
	}

	v.SetDefault("store.backend", BackendMongo)
	v.SetDefault("store.timeout", "10s")
	v.SetDefault("generation.seed", 0)
	v.SetDefault("logging.debug", false)
	v.SetDefault("logging.verbose", false)

	if path == "" {
		path = os.Getenv(configEnvVar)
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(defaultConfig)
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: reading config: %v", ErrConfiguration, err)
		}
	}

	ratio, err := readRatio(v)
	if err != nil {
		return nil, err
	}

	timeout, err := time.ParseDuration(v.GetString("store.timeout"))
	if err != nil {
		return nil, fmt.Errorf("%w: store.timeout %q: %v", ErrConfiguration, v.GetString("store.timeout"), err)
	}

	args := &Arguments{
		DatabaseName:       v.GetString("database.name"),
		Languages:          v.GetStringSlice("generation.languages"),
		PersonCompanyRatio: ratio,
		Seed:               v.GetUint64("generation.seed"),
		Backend:            strings.ToLower(v.GetString("store.backend")),
		URI:                v.GetString("store.uri"),
		StoreTimeout:       timeout,
		ConfigFile:         v.ConfigFileUsed(),
		Debug:              v.GetBool("logging.debug"),
		Verbose:            v.GetBool("logging.verbose"),
	}

	if err := args.Validate(); err != nil {
		return nil, err
	}
	return args, nil
}

// readRatio rejects a ratio that is absent or not an integer instead of
// letting viper coerce it to 0.
func readRatio(v *viper.Viper) (int, error) {
	const key = "generation.person_company_ratio"
	if !v.IsSet(key) {
		return 0, fmt.Errorf("%w: %s is not set", ErrConfiguration, key)
	}
	switch raw := v.Get(key).(type) {
	case int:
		return raw, nil
	case int64:
		return int(raw), nil
	case float64:
		if raw != float64(int(raw)) {
			return 0, fmt.Errorf("%w: %s must be an integer, got %v", ErrConfiguration, key, raw)
		}
		return int(raw), nil
	case string:
		ratio, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return 0, fmt.Errorf("%w: %s must be an integer, got %q", ErrConfiguration, key, raw)
		}
		return ratio, nil
	default:
		return 0, fmt.Errorf("%w: %s must be an integer, got %T", ErrConfiguration, key, raw)
	}
}

// Validate checks the invariants every component relies on.
func (a *Arguments) Validate() error {
	if a.PersonCompanyRatio < 1 {
		return fmt.Errorf("%w: person_company_ratio must be >= 1, got %d", ErrConfiguration, a.PersonCompanyRatio)
	}
	if len(a.Languages) == 0 {
		return fmt.Errorf("%w: generation.languages must list at least one locale", ErrConfiguration)
	}
	for _, lang := range a.Languages {
		if strings.TrimSpace(lang) == "" {
			return fmt.Errorf("%w: generation.languages contains an empty locale", ErrConfiguration)
		}
	}
	if a.DatabaseName == "" {
		return fmt.Errorf("%w: database.name is not set", ErrConfiguration)
	}

	switch a.Backend {
	case BackendMongo:
		if a.URI == "" {
			return fmt.Errorf("%w: store.uri (or MONGO_URI) is required for the mongo backend", ErrConfiguration)
		}
	case BackendMemory:
	default:
		return fmt.Errorf("%w: invalid store backend %q (must be 'mongo' or 'memory')", ErrConfiguration, a.Backend)
	}

	if a.StoreTimeout <= 0 {
		return fmt.Errorf("%w: store.timeout must be positive", ErrConfiguration)
	}
	return nil
}
