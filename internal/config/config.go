package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config содержит все конфигурационные параметры приложения
type Config struct {
	Database DatabaseConfig
	Redis    RedisConfig
	App      AppConfig
	Game     GameConfig
}

type DatabaseConfig struct {
	Host          string
	Port          int
	User          string
	Password      string
	Name          string
	SSLMode       string
	MigrationPath string
}

// RedisConfig содержит настройки кеша рейтинга
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	TTL      time.Duration
}

type AppConfig struct {
	Env      string
	LogLevel string
	Port     int
	BaseURL  string // Основа для реферальных ссылок
}

// GameConfig содержит игровые константы движка начислений.
// Принятая политика: фиксированный цикл, фиксированная награда за клейм,
// плоская реферальная награда.
type GameConfig struct {
	CycleDuration      time.Duration // Длительность цикла майнинга
	CycleReward        int64         // Награда за завершенный цикл
	CycleStartCost     int           // Стоимость старта цикла в энергии
	ReferralReward     int64         // Награда рефереру за подтвержденного реферала
	TaskReward         int64         // Разовая награда за задание
	MaxEnergy          int           // Емкость энергии нового аккаунта
	EnergyRegenEvery   time.Duration // Интервал восстановления одной единицы энергии
	BoostStep          float64       // Прибавка к множителю за верный ответ мини-квиза
	ClickPower         int           // Монет за один клик для нового аккаунта
	CodeAttempts       int           // Предел попыток подбора уникального кода
	TransientRetries   uint64        // Предел повторов при конфликте версий
	LeaderboardSize    int           // Размер реферального рейтинга
	LeaderboardRewards []int64       // Ежедневные награды за первые места
}

// Load загружает конфигурацию из переменных окружения и .env
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}

	// Database
	cfg.Database.Host = getEnvDefault("DB_HOST", "localhost")
	cfg.Database.Port = getEnvIntDefault("DB_PORT", 5432)
	cfg.Database.User = os.Getenv("DB_USER")
	cfg.Database.Password = os.Getenv("DB_PASSWORD")
	cfg.Database.Name = os.Getenv("DB_NAME")
	cfg.Database.SSLMode = getEnvDefault("DB_SSL_MODE", "disable")
	cfg.Database.MigrationPath = getEnvDefault("MIGRATION_PATH", "scripts/migrations")

	// Redis
	cfg.Redis.Enabled = getEnvBoolDefault("REDIS_ENABLED", false)
	cfg.Redis.Host = getEnvDefault("REDIS_HOST", "localhost")
	cfg.Redis.Port = getEnvIntDefault("REDIS_PORT", 6379)
	cfg.Redis.Password = os.Getenv("REDIS_PASSWORD")
	cfg.Redis.TTL = getEnvDurationDefault("REDIS_LEADERBOARD_TTL", time.Minute)

	// App
	cfg.App.Env = getEnvDefault("APP_ENV", "development")
	cfg.App.LogLevel = getEnvDefault("LOG_LEVEL", "info")
	cfg.App.Port = getEnvIntDefault("APP_PORT", 8080)
	cfg.App.BaseURL = getEnvDefault("APP_BASE_URL", "https://coin-miner.app")

	// Game
	cfg.Game.CycleDuration = getEnvDurationDefault("CYCLE_DURATION", 4*time.Hour)
	cfg.Game.CycleReward = int64(getEnvIntDefault("CYCLE_REWARD", 20))
	cfg.Game.CycleStartCost = getEnvIntDefault("CYCLE_START_COST", 100)
	cfg.Game.ReferralReward = int64(getEnvIntDefault("REFERRAL_REWARD", 50))
	cfg.Game.TaskReward = int64(getEnvIntDefault("TASK_REWARD", 10))
	cfg.Game.MaxEnergy = getEnvIntDefault("MAX_ENERGY", 1000)
	cfg.Game.EnergyRegenEvery = getEnvDurationDefault("ENERGY_REGEN_EVERY", 3*time.Second)
	cfg.Game.BoostStep = getEnvFloatDefault("BOOST_STEP", 0.5)
	cfg.Game.ClickPower = getEnvIntDefault("CLICK_POWER", 1)
	cfg.Game.CodeAttempts = getEnvIntDefault("REFERRAL_CODE_ATTEMPTS", 10)
	cfg.Game.TransientRetries = uint64(getEnvIntDefault("TRANSIENT_RETRIES", 3))
	cfg.Game.LeaderboardSize = getEnvIntDefault("LEADERBOARD_SIZE", 100)
	cfg.Game.LeaderboardRewards = []int64{100, 50, 25}

	if err := validateConfig(cfg); err != nil {
		return nil, fmt.Errorf("ошибка валидации конфигурации: %w", err)
	}

	return cfg, nil
}

func getEnvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvIntDefault(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getEnvFloatDefault(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func getEnvBoolDefault(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvDurationDefault(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}

// validateConfig проверяет корректность конфигурации
func validateConfig(config *Config) error {
	if config.Database.Host == "" {
		return fmt.Errorf("DB_HOST не установлен")
	}
	if config.Database.User == "" {
		return fmt.Errorf("DB_USER не установлен")
	}
	if config.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD не установлен")
	}
	if config.Database.Name == "" {
		return fmt.Errorf("DB_NAME не установлен")
	}
	if config.Game.CycleDuration <= 0 {
		return fmt.Errorf("CYCLE_DURATION должен быть положительным")
	}
	if config.Game.CycleReward <= 0 {
		return fmt.Errorf("CYCLE_REWARD должен быть положительным")
	}
	if config.Game.CycleStartCost <= 0 {
		return fmt.Errorf("CYCLE_START_COST должен быть положительным")
	}
	if config.Game.MaxEnergy <= 0 {
		return fmt.Errorf("MAX_ENERGY должен быть положительным")
	}
	if config.Game.EnergyRegenEvery <= 0 {
		return fmt.Errorf("ENERGY_REGEN_EVERY должен быть положительным")
	}
	if config.Game.BoostStep <= 0 {
		return fmt.Errorf("BOOST_STEP должен быть положительным")
	}
	if config.Game.CodeAttempts <= 0 {
		return fmt.Errorf("REFERRAL_CODE_ATTEMPTS должен быть положительным")
	}

	return nil
}

// GetDSN возвращает строку подключения к базе данных
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode)
}

// GetAddr возвращает адрес Redis
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsDevelopment проверяет, запущено ли приложение в режиме разработки
func (c *AppConfig) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction проверяет, запущено ли приложение в продакшн режиме
func (c *AppConfig) IsProduction() bool {
	return c.Env == "production"
}

// GetLogLevel возвращает уровень логирования в формате zap
func (c *AppConfig) GetLogLevel() zap.AtomicLevel {
	switch c.LogLevel {
	case "debug":
		return zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zap.InfoLevel)
	}
}
