package cmd

import (
	"errors"
	"io/fs"
	"log"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spigell/jd-evaluator/internal/compare"
	"github.com/spigell/jd-evaluator/internal/prompt"
	"github.com/spigell/jd-evaluator/internal/reference"
	"github.com/spigell/jd-evaluator/internal/similarity"
)

const (
	app = "jd-evaluator"

	envPrefix = "JD"
)

type Config struct {
	ReferenceFile string        `mapstructure:"reference-file"`
	RubricFile    string        `mapstructure:"rubric-file"`
	CorpusField   string        `mapstructure:"corpus-field"`
	TopK          int           `mapstructure:"top-k"`
	AutoCompare   bool          `mapstructure:"auto-compare"`
	Limits        *LimitsConfig `mapstructure:"limits"`
	Gemini        *GeminiConfig `mapstructure:"gemini"`
	Serve         *ServeConfig  `mapstructure:"serve"`
}

type LimitsConfig struct {
	JDChars           int `mapstructure:"jd-chars"`
	ReferenceChars    int `mapstructure:"reference-chars"`
	CompareEntryChars int `mapstructure:"compare-entry-chars"`
	CompareTotalChars int `mapstructure:"compare-total-chars"`
}

type GeminiConfig struct {
	APIKey            string  `mapstructure:"api-key" json:"-"`
	APIKeyFile        string  `mapstructure:"api-key-file"`
	Model             string  `mapstructure:"model"`
	MaxRetries        int     `mapstructure:"max-retries"`
	RequestsPerMinute float64 `mapstructure:"requests-per-minute"`
	MaxLogLength      int     `mapstructure:"max-log-length"`
}

type ServeConfig struct {
	Listen         string `mapstructure:"listen"`
	MaxUploadBytes int    `mapstructure:"max-upload-bytes"`
}

var (
	// Used for flags.
	cfgFile string

	rootCmd = &cobra.Command{
		Use:   app,
		Short: "jd-evaluator grades job descriptions against a factor rubric with reference evaluations as context",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	setDefaults(viper.GetViper())

	if err := viper.BindEnv("gemini.api-key-file", "GEMINI_API_KEY_FILE"); err != nil {
		log.Fatalf("binding GEMINI_API_KEY_FILE environment variable: %v", err)
	}

	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "a config file (default is jd-evaluator.yaml in current directory)")
	rootCmd.PersistentFlags().BoolP("debug", "d", false, "verbose/debug output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "json format for logging")
	rootCmd.PersistentFlags().Bool("auto-compare", true, "compare scope with earlier JDs of the session after each evaluation")
	rootCmd.PersistentFlags().StringP("corpus-field", "c", "", "reference field used for similarity (job_title or summary_note)")
	rootCmd.PersistentFlags().StringP("reference-file", "r", "", "JSON file with reference evaluations")

	viper.BindPFlag("debug", rootCmd.PersistentFlags().Lookup("debug"))
	viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	viper.BindPFlag("auto-compare", rootCmd.PersistentFlags().Lookup("auto-compare"))
	viper.BindPFlag("corpus-field", rootCmd.PersistentFlags().Lookup("corpus-field"))
	viper.BindPFlag("reference-file", rootCmd.PersistentFlags().Lookup("reference-file"))
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("reference-file", "historical_evaluations.json")
	v.SetDefault("rubric-file", "")
	v.SetDefault("corpus-field", string(reference.FieldJobTitle))
	v.SetDefault("top-k", similarity.DefaultTopK)
	v.SetDefault("auto-compare", true)

	v.SetDefault("limits.jd-chars", prompt.DefaultMaxJDChars)
	v.SetDefault("limits.reference-chars", prompt.DefaultMaxReferenceChars)
	v.SetDefault("limits.compare-entry-chars", compare.DefaultMaxEntryChars)
	v.SetDefault("limits.compare-total-chars", compare.DefaultMaxTotalChars)

	v.SetDefault("gemini.api-key", "")
	v.SetDefault("gemini.api-key-file", "")
	v.SetDefault("gemini.model", "gemini-2.0-flash")
	v.SetDefault("gemini.max-retries", 4)
	v.SetDefault("gemini.requests-per-minute", 0)
	v.SetDefault("gemini.max-log-length", 200)

	v.SetDefault("serve.listen", ":8080")
	v.SetDefault("serve.max-upload-bytes", 10*1024*1024)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
}

func initConfig() {
	if versionCmd.CalledAs() != "" {
		return
	}

	// .env is optional, real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("loading .env file: %v", err)
	}

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName(app)
	}

	if err := viper.ReadInConfig(); err != nil {
		// Without an explicit --config the file is optional: defaults and env cover everything.
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			log.Fatal(err)
		}
	}
}

func getConfig() (*Config, error) {
	return decodeConfig(viper.GetViper())
}

func decodeConfig(v *viper.Viper) (*Config, error) {
	var config *Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}

	if config == nil {
		return nil, errors.New("config is empty")
	}
	if config.Limits == nil {
		config.Limits = &LimitsConfig{}
	}
	if config.Gemini == nil {
		config.Gemini = &GeminiConfig{}
	}
	if config.Serve == nil {
		config.Serve = &ServeConfig{}
	}

	return config, nil
}
