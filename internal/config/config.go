package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config 应用配置，全部来自环境变量（可选 .env）
type Config struct {
	// Catalog 远端目录
	CatalogBaseURL      string
	CatalogPageSize     int
	CatalogMaxItems     int
	CatalogTimeout      time.Duration
	CatalogRetryCount   int
	CatalogRetryWait    time.Duration
	CatalogRetryMaxWait time.Duration
	CatalogRateLimit    float64

	// Sync 同步
	RefreshSettleDelay time.Duration
	SyncWaitTimeout    time.Duration
	SyncCron           string
	SyncEnabled        bool
	// ManualCooldown 手动刷新/爬取的冷却间隔，0 表示不限制
	ManualCooldown     time.Duration

	// Server
	ServerPort string
	GinMode    string

	// SelectionDBPath 为空时不持久化监控/对比状态
	SelectionDBPath string

	// Log
	LogLevel  string
	LogFormat string
}

var defaults = map[string]interface{}{
	"CATALOG_BASE_URL":       "http://localhost:8000",
	"CATALOG_PAGE_SIZE":      100,
	"CATALOG_MAX_ITEMS":      1000,
	"CATALOG_TIMEOUT":        "20s",
	"CATALOG_RETRY_COUNT":    3,
	"CATALOG_RETRY_WAIT":     "500ms",
	"CATALOG_RETRY_MAX_WAIT": "5s",
	"CATALOG_RATE_LIMIT":     5.0,
	"REFRESH_SETTLE_DELAY":   "1500ms",
	"SYNC_WAIT_TIMEOUT":      "10s",
	"SYNC_CRON":              "0 */30 * * * *",
	"SYNC_ENABLED":           true,
	"MANUAL_SYNC_COOLDOWN":   "30s",
	"SERVER_PORT":            "8080",
	"GIN_MODE":               "release",
	"SELECTION_DB_PATH":      "",
	"LOG_LEVEL":              "info",
	"LOG_FORMAT":             "text",
}

// Load 读取 .env（不存在则忽略）与环境变量
func Load(envFiles ...string) (*Config, error) {
	if err := godotenv.Load(envFiles...); err != nil {
		log.Debug("[Config] 未找到 .env 文件，使用系统环境变量")
	}

	v := viper.New()
	for key, val := range defaults {
		v.SetDefault(key, val)
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("绑定环境变量 %s 失败: %w", key, err)
		}
	}

	cfg := &Config{
		CatalogBaseURL:      v.GetString("CATALOG_BASE_URL"),
		CatalogPageSize:     v.GetInt("CATALOG_PAGE_SIZE"),
		CatalogMaxItems:     v.GetInt("CATALOG_MAX_ITEMS"),
		CatalogTimeout:      v.GetDuration("CATALOG_TIMEOUT"),
		CatalogRetryCount:   v.GetInt("CATALOG_RETRY_COUNT"),
		CatalogRetryWait:    v.GetDuration("CATALOG_RETRY_WAIT"),
		CatalogRetryMaxWait: v.GetDuration("CATALOG_RETRY_MAX_WAIT"),
		CatalogRateLimit:    v.GetFloat64("CATALOG_RATE_LIMIT"),

		RefreshSettleDelay: v.GetDuration("REFRESH_SETTLE_DELAY"),
		SyncWaitTimeout:    v.GetDuration("SYNC_WAIT_TIMEOUT"),
		SyncCron:           v.GetString("SYNC_CRON"),
		SyncEnabled:        v.GetBool("SYNC_ENABLED"),
		ManualCooldown:     v.GetDuration("MANUAL_SYNC_COOLDOWN"),

		ServerPort: v.GetString("SERVER_PORT"),
		GinMode:    v.GetString("GIN_MODE"),

		SelectionDBPath: v.GetString("SELECTION_DB_PATH"),

		LogLevel:  v.GetString("LOG_LEVEL"),
		LogFormat: v.GetString("LOG_FORMAT"),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate 检查取值范围
func (c *Config) Validate() error {
	if c.CatalogBaseURL == "" {
		return fmt.Errorf("CATALOG_BASE_URL 不能为空")
	}
	if c.CatalogPageSize <= 0 || c.CatalogPageSize > 100 {
		return fmt.Errorf("CATALOG_PAGE_SIZE 必须在 1~100 之间, 当前: %d", c.CatalogPageSize)
	}
	if c.CatalogMaxItems <= 0 {
		return fmt.Errorf("CATALOG_MAX_ITEMS 必须大于 0")
	}
	if c.CatalogRetryCount < 0 {
		return fmt.Errorf("CATALOG_RETRY_COUNT 不能为负数")
	}
	if c.ManualCooldown < 0 {
		return fmt.Errorf("MANUAL_SYNC_COOLDOWN 不能为负数")
	}
	if c.ServerPort == "" {
		return fmt.Errorf("SERVER_PORT 不能为空")
	}
	return nil
}
