package config

import (
	"strings"
	"time"

	"github.com/blues/fundgate/internal/logger"
	"github.com/spf13/viper"
)

type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Chain    ChainConfig    `mapstructure:"chain"`
	Pricing  PricingConfig  `mapstructure:"pricing"`
	Fraud    FraudConfig    `mapstructure:"fraud"`
	Device   DeviceConfig   `mapstructure:"device"`
	Monitor  MonitorConfig  `mapstructure:"monitor"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// 每个设备每秒允许的贡献请求数
	RateLimit float64 `mapstructure:"rate_limit"`
	RateBurst int     `mapstructure:"rate_burst"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // postgres, memory
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
}

// ChainConfig 链配置
type ChainConfig struct {
	ChainType     string `mapstructure:"chain_type"`    // 链类型 (ethereum, polygon, etc.)
	ChainId       int64  `mapstructure:"chain_id"`      // 链ID
	RpcUrl        string `mapstructure:"rpc_url"`       // RPC节点URL
	PrivateKey    string `mapstructure:"private_key"`   // 平台钱包私钥，可为空（只读模式）
	Treasury      string `mapstructure:"treasury"`      // 上架费收款地址
	Confirmations int    `mapstructure:"confirmations"` // 确认块数
	// StableToken 稳定币合约地址，为空时稳定币支付按原生代币转账校验
	StableToken    string `mapstructure:"stable_token"`
	StableDecimals int32  `mapstructure:"stable_decimals"`
}

// PricingConfig 两种结算币种的每月单价
type PricingConfig struct {
	NativeRate string `mapstructure:"native_rate"` // 原生代币
	StableRate string `mapstructure:"stable_rate"` // 稳定币
}

// FraudConfig 反欺诈窗口配置
type FraudConfig struct {
	SessionWindow   time.Duration `mapstructure:"session_window"`   // 最近会话窗口
	SessionRetain   time.Duration `mapstructure:"session_retain"`   // 会话日志保留时长
	TimingWindow    time.Duration `mapstructure:"timing_window"`    // 频率检测窗口
	TimingThreshold int           `mapstructure:"timing_threshold"` // 窗口内尝试次数上限
	AttemptHistory  int           `mapstructure:"attempt_history"`  // 尝试记录保留条数
}

// DeviceConfig 设备存储配置
type DeviceConfig struct {
	Storage   string `mapstructure:"storage"` // memory, redis
	RedisAddr string `mapstructure:"redis_addr"`
	RedisDB   int    `mapstructure:"redis_db"`
	KeyPrefix string `mapstructure:"key_prefix"`
}

// MonitorConfig 待确认支付监控配置
type MonitorConfig struct {
	Interval    time.Duration `mapstructure:"interval"`
	SoftTimeout time.Duration `mapstructure:"soft_timeout"`
	HardTimeout time.Duration `mapstructure:"hard_timeout"`
	PoolSize    int           `mapstructure:"pool_size"`
	BatchSize   int           `mapstructure:"batch_size"`
}

type TaskConfig struct {
	Interval int `mapstructure:"interval"` // 秒
}

type LogConfig struct {
	Level  string `mapstructure:"level"`  // 日志级别: debug, info, warn, error, fatal
	Output string `mapstructure:"output"` // 输出目标: stdout, stderr, file
	File   string `mapstructure:"file"`   // 日志文件路径（当output为file时使用）
}

// GetLevel 实现 logger.LogConfig 接口
func (l LogConfig) GetLevel() string {
	return l.Level
}

// GetOutput 实现 logger.LogConfig 接口
func (l LogConfig) GetOutput() string {
	return l.Output
}

// GetFile 实现 logger.LogConfig 接口
func (l LogConfig) GetFile() string {
	return l.File
}

// SetDefaults 注册所有默认值
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.rate_limit", 2.0)
	v.SetDefault("server.rate_burst", 5)
	v.SetDefault("database.driver", "postgres")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "fundgate")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("chain.chain_type", "ethereum")
	v.SetDefault("chain.chain_id", 1)
	v.SetDefault("chain.confirmations", 12)
	v.SetDefault("chain.stable_decimals", 6)
	v.SetDefault("pricing.native_rate", "6")
	v.SetDefault("pricing.stable_rate", "6")
	v.SetDefault("fraud.session_window", 30*time.Minute)
	v.SetDefault("fraud.session_retain", 24*time.Hour)
	v.SetDefault("fraud.timing_window", time.Minute)
	v.SetDefault("fraud.timing_threshold", 2)
	v.SetDefault("fraud.attempt_history", 10)
	v.SetDefault("device.storage", "memory")
	v.SetDefault("device.redis_addr", "localhost:6379")
	v.SetDefault("device.redis_db", 0)
	v.SetDefault("device.key_prefix", "fundgate")
	v.SetDefault("monitor.interval", 10*time.Second)
	v.SetDefault("monitor.soft_timeout", 2*time.Minute)
	v.SetDefault("monitor.hard_timeout", 24*time.Hour)
	v.SetDefault("monitor.pool_size", 8)
	v.SetDefault("monitor.batch_size", 100)
	v.SetDefault("task.interval", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.output", "stdout")
	v.SetDefault("log.file", "logs/app.log")
}

// Load 从配置文件和环境变量加载配置
func Load() *Config {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/fundgate")

	SetDefaults(v)

	// 环境变量: FUNDGATE_DATABASE_HOST 等
	v.SetEnvPrefix("fundgate")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		logger.Warn("Warning: Could not read config file: %v", err)
	}

	cfg, err := Decode(v)
	if err != nil {
		logger.Fatal("Unable to decode config into struct: %v", err)
	}

	return cfg
}

// Decode 把 viper 中的配置解码为 Config
func Decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	return &config, nil
}
