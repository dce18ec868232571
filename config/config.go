package config

import (
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	LLM      LLMConfig      `yaml:"llm"`
	Survey   SurveyConfig   `yaml:"survey"`
	Lock     LockConfig     `yaml:"lock"`
	Data     DataConfig     `yaml:"data"`
	Export   ExportConfig   `yaml:"export"`
}

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"` // debug, release
}

type DatabaseConfig struct {
	Type string `yaml:"type"` // sqlite, mysql, postgres
	DSN  string `yaml:"dsn"`
}

type LLMConfig struct {
	Provider          string        `yaml:"provider"` // eino, http
	APIURL            string        `yaml:"api_url"`
	APIKey            string        `yaml:"api_key"`
	Model             string        `yaml:"model"`
	MaxTokens         int           `yaml:"max_tokens"`
	Temperature       float32       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerSecond float64       `yaml:"requests_per_second"` // <=0 表示不限流
	Burst             int           `yaml:"burst"`
}

// SurveyConfig 问卷编排参数
type SurveyConfig struct {
	ThemesFile           string        `yaml:"themes_file"` // 为空时使用内置主题
	MaxAttempts          int           `yaml:"max_attempts"`
	HistoryWindow        int           `yaml:"history_window"`
	MinQuestionLength    int           `yaml:"min_question_length"`
	MaxQuestionLength    int           `yaml:"max_question_length"`
	FollowUpMinWords     int           `yaml:"follow_up_min_words"`
	SessionTTL           time.Duration `yaml:"session_ttl"`
	StaleCleanupInterval time.Duration `yaml:"stale_cleanup_interval"`
}

type LockConfig struct {
	Backend       string        `yaml:"backend"` // memory, redis
	RedisAddr     string        `yaml:"redis_addr"`
	RedisPassword string        `yaml:"redis_password"`
	RedisDB       int           `yaml:"redis_db"`
	TTL           time.Duration `yaml:"ttl"`
}

type DataConfig struct {
	Dir       string `yaml:"dir"`
	ExportDir string `yaml:"export_dir"`
}

type ExportConfig struct {
	Workers    int `yaml:"workers"`
	MaxRetries int `yaml:"max_retries"`
}

var (
	cfg  *Config
	once sync.Once
)

func GetConfig() *Config {
	once.Do(func() {
		cfg = loadConfig()
	})
	return cfg
}

// Default 返回未叠加配置文件与环境变量的默认配置
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8080",
			Mode: "debug",
		},
		Database: DatabaseConfig{
			Type: "sqlite",
			DSN:  "./data/survey.db",
		},
		LLM: LLMConfig{
			Provider:    "eino",
			APIURL:      "https://api.openai.com/v1",
			Model:       "gpt-4o",
			MaxTokens:   512,
			Temperature: 0.3,
			Timeout:     30 * time.Second,
			Burst:       1,
		},
		Survey: SurveyConfig{
			MaxAttempts:          3,
			HistoryWindow:        5,
			MinQuestionLength:    10,
			MaxQuestionLength:    300,
			FollowUpMinWords:     12,
			SessionTTL:           24 * time.Hour,
			StaleCleanupInterval: 10 * time.Minute,
		},
		Lock: LockConfig{
			Backend:   "memory",
			RedisAddr: "localhost:6379",
			TTL:       2 * time.Minute,
		},
		Data: DataConfig{
			Dir:       "./data",
			ExportDir: "./data/exports",
		},
		Export: ExportConfig{
			Workers:    2,
			MaxRetries: 3,
		},
	}
}

func loadConfig() *Config {
	config := Default()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	data, err := os.ReadFile(configPath)
	if err == nil {
		yaml.Unmarshal(data, config)
	}

	applyEnv(config)
	return config
}

// applyEnv 环境变量优先级高于配置文件
func applyEnv(config *Config) {
	if apiKey := os.Getenv("OPENAI_API_KEY"); apiKey != "" {
		config.LLM.APIKey = apiKey
	}
	if baseURL := os.Getenv("OPENAI_BASE_URL"); baseURL != "" {
		config.LLM.APIURL = baseURL
	}
	if model := os.Getenv("OPENAI_MODEL_NAME"); model != "" {
		config.LLM.Model = model
	}
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		config.LLM.Provider = provider
	}

	// 数据库环境变量
	if dbType := os.Getenv("DB_TYPE"); dbType != "" {
		config.Database.Type = dbType
	}
	if dbDSN := os.Getenv("DB_DSN"); dbDSN != "" {
		config.Database.DSN = dbDSN
	}

	if themes := os.Getenv("SURVEY_THEMES_FILE"); themes != "" {
		config.Survey.ThemesFile = themes
	}

	if backend := os.Getenv("LOCK_BACKEND"); backend != "" {
		config.Lock.Backend = backend
	}
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		config.Lock.RedisAddr = addr
	}
	if db := os.Getenv("REDIS_DB"); db != "" {
		if n, err := strconv.Atoi(db); err == nil {
			config.Lock.RedisDB = n
		}
	}

	// 数据目录环境变量
	if dataDir := os.Getenv("DATA_DIR"); dataDir != "" {
		config.Data.Dir = dataDir
	}
	if exportDir := os.Getenv("EXPORT_DIR"); exportDir != "" {
		config.Data.ExportDir = exportDir
	}
	if config.Data.ExportDir == "" {
		config.Data.ExportDir = filepath.Join(config.Data.Dir, "exports")
	}
}

func (c *Config) Save(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
