package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	defaultServerAddress     = "localhost:8080"
	defaultLogLevel          = "info"
	defaultEnv               = "local"
	defaultConfigDir         = ".fieldsync"
	defaultControlAddress    = "127.0.0.1:7411"
	defaultBatchSize         = 50
	defaultIntervalHours     = 24
	defaultSchedulerCheck    = 60
	defaultConnectivityCheck = 15
	defaultTileURL           = "https://tile.openstreetmap.org/{z}/{x}/{y}.png"
	defaultTileZoomLevels    = "14,15"
	defaultTileRadiusKM      = 2.0
	defaultTileMaxCount      = 10000
	defaultTileRate          = 10.0
	defaultTileConcurrency   = 4
)

// Режимы обработки частично отклоненного пакета
const (
	PartialFailureBatch  = "batch"
	PartialFailureRecord = "record"
)

type Config struct {
	Env           string `mapstructure:"app_env"`
	ServerAddress string `mapstructure:"server_address"`
	EnableTLS     bool   `mapstructure:"enable_tls"`
	LogLevel      string `mapstructure:"log_level"`
	LogFile       string `mapstructure:"log_file"`
	ConfigDir     string `mapstructure:"config_dir"`
	DataPath      string `mapstructure:"data_path"`
	TokenPath     string `mapstructure:"token_path"`
	StatePath     string `mapstructure:"state_path"`

	BatchSize          int           `mapstructure:"sync_batch_size"`
	PartialFailureMode string        `mapstructure:"partial_failure_mode"`
	PullInterval       time.Duration `mapstructure:"pull_interval_hours"`
	PushInterval       time.Duration `mapstructure:"push_interval_hours"`
	SchedulerCheck     time.Duration `mapstructure:"scheduler_check_seconds"`
	ConnectivityCheck  time.Duration `mapstructure:"connectivity_check_seconds"`

	ControlAddress string `mapstructure:"control_address"`
	ShellManifest  string `mapstructure:"shell_manifest"`
	ShellCacheDir  string `mapstructure:"shell_cache_dir"`

	TileURL           string  `mapstructure:"tile_url"`
	TileZoomLevels    []int   `mapstructure:"tile_zoom_levels"`
	TileRadiusKM      float64 `mapstructure:"tile_radius_km"`
	TileMaxCount      int     `mapstructure:"tile_max_count"`
	TileRatePerSecond float64 `mapstructure:"tile_rate_per_second"`
	TileConcurrency   int     `mapstructure:"tile_concurrency"`
}

// MustLoad загружает конфигурацию клиента
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("Ошибка конфигурации: %v", err))
	}
	return cfg
}

// Load читает .env и переменные окружения.
func Load() (*Config, error) {
	// Определяем путь к .env файлу (относительно места запуска)
	envPath := ".env"
	if _, err := os.Stat(envPath); os.IsNotExist(err) {
		envPath = "../.env"
	}

	if _, err := os.Stat(envPath); err == nil {
		if err := godotenv.Load(envPath); err != nil {
			fmt.Printf("Ошибка загрузки .env файла: %v\n", err)
		}
	}

	v := viper.New()
	v.AutomaticEnv()
	setDefaults(v)

	return fromViper(v)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("APP_ENV", defaultEnv)
	v.SetDefault("SERVER_ADDRESS", defaultServerAddress)
	v.SetDefault("ENABLE_TLS", false)
	v.SetDefault("LOG_LEVEL", defaultLogLevel)
	v.SetDefault("CONFIG_DIR", defaultConfigDir)
	v.SetDefault("SYNC_BATCH_SIZE", defaultBatchSize)
	v.SetDefault("PARTIAL_FAILURE_MODE", PartialFailureBatch)
	v.SetDefault("PULL_INTERVAL_HOURS", defaultIntervalHours)
	v.SetDefault("PUSH_INTERVAL_HOURS", defaultIntervalHours)
	v.SetDefault("SCHEDULER_CHECK_SECONDS", defaultSchedulerCheck)
	v.SetDefault("CONNECTIVITY_CHECK_SECONDS", defaultConnectivityCheck)
	v.SetDefault("CONTROL_ADDRESS", defaultControlAddress)
	v.SetDefault("TILE_URL", defaultTileURL)
	v.SetDefault("TILE_ZOOM_LEVELS", defaultTileZoomLevels)
	v.SetDefault("TILE_RADIUS_KM", defaultTileRadiusKM)
	v.SetDefault("TILE_MAX_COUNT", defaultTileMaxCount)
	v.SetDefault("TILE_RATE_PER_SECOND", defaultTileRate)
	v.SetDefault("TILE_CONCURRENCY", defaultTileConcurrency)
}

func fromViper(v *viper.Viper) (*Config, error) {
	// Получаем домашнюю директорию пользователя
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = "."
	}

	configDir := v.GetString("CONFIG_DIR")
	if configDir == defaultConfigDir {
		configDir = filepath.Join(homeDir, configDir)
	}

	if err := os.MkdirAll(configDir, 0700); err != nil {
		fmt.Printf("Ошибка создания директории конфигурации: %v\n", err)
	}

	zooms, err := parseZoomLevels(v.GetString("TILE_ZOOM_LEVELS"))
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Env:           v.GetString("APP_ENV"),
		ServerAddress: v.GetString("SERVER_ADDRESS"),
		EnableTLS:     v.GetBool("ENABLE_TLS"),
		LogLevel:      v.GetString("LOG_LEVEL"),
		LogFile:       pathOr(v.GetString("LOG_FILE"), configDir, "fieldsync.log"),
		ConfigDir:     configDir,
		DataPath:      pathOr(v.GetString("DATA_PATH"), configDir, "local.db"),
		TokenPath:     pathOr(v.GetString("TOKEN_PATH"), configDir, "token"),
		StatePath:     filepath.Join(configDir, "state.json"),

		BatchSize:          v.GetInt("SYNC_BATCH_SIZE"),
		PartialFailureMode: strings.ToLower(v.GetString("PARTIAL_FAILURE_MODE")),
		PullInterval:       time.Duration(v.GetInt("PULL_INTERVAL_HOURS")) * time.Hour,
		PushInterval:       time.Duration(v.GetInt("PUSH_INTERVAL_HOURS")) * time.Hour,
		SchedulerCheck:     time.Duration(v.GetInt("SCHEDULER_CHECK_SECONDS")) * time.Second,
		ConnectivityCheck:  time.Duration(v.GetInt("CONNECTIVITY_CHECK_SECONDS")) * time.Second,

		ControlAddress: v.GetString("CONTROL_ADDRESS"),
		ShellManifest:  v.GetString("SHELL_MANIFEST"),
		ShellCacheDir:  pathOr(v.GetString("SHELL_CACHE_DIR"), configDir, "shell"),

		TileURL:           v.GetString("TILE_URL"),
		TileZoomLevels:    zooms,
		TileRadiusKM:      v.GetFloat64("TILE_RADIUS_KM"),
		TileMaxCount:      v.GetInt("TILE_MAX_COUNT"),
		TileRatePerSecond: v.GetFloat64("TILE_RATE_PER_SECOND"),
		TileConcurrency:   v.GetInt("TILE_CONCURRENCY"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.ServerAddress == "" {
		return fmt.Errorf("server_address не может быть пустым")
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("sync_batch_size должен быть положительным: %d", c.BatchSize)
	}
	if c.PartialFailureMode != PartialFailureBatch && c.PartialFailureMode != PartialFailureRecord {
		return fmt.Errorf("неизвестный partial_failure_mode: %q", c.PartialFailureMode)
	}
	if c.PullInterval <= 0 || c.PushInterval <= 0 {
		return fmt.Errorf("интервалы синхронизации должны быть положительными")
	}
	if c.TileMaxCount < 0 {
		return fmt.Errorf("tile_max_count не может быть отрицательным")
	}
	return nil
}

// BaseURL возвращает адрес сервера синхронизации со схемой
func (c *Config) BaseURL() string {
	scheme := "http://"
	if c.EnableTLS {
		scheme = "https://"
	}
	return scheme + c.ServerAddress
}

// IsProd проверяет, prod ли окружение
func (c *Config) IsProd() bool {
	return c.Env == "prod"
}

// IsDev проверяет, dev ли окружение
func (c *Config) IsDev() bool {
	return c.Env == "dev"
}

// IsLocal проверяет, local ли окружение
func (c *Config) IsLocal() bool {
	return c.Env == "local" || c.Env == ""
}

func pathOr(value, dir, name string) string {
	if value != "" {
		return value
	}
	return filepath.Join(dir, name)
}

func parseZoomLevels(s string) ([]int, error) {
	var zooms []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		z, err := strconv.Atoi(part)
		if err != nil || z < 0 || z > 22 {
			return nil, fmt.Errorf("неверный уровень масштаба: %q", part)
		}
		zooms = append(zooms, z)
	}
	if len(zooms) == 0 {
		return nil, fmt.Errorf("tile_zoom_levels не может быть пустым")
	}
	return zooms, nil
}
