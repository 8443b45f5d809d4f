package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// RedisConfig 定义了 Redis 数据库的连接配置。
type RedisConfig struct {
	Address  string `yaml:"address"`  // Redis 服务器地址 (例如: "localhost:6379")
	Password string `yaml:"password"` // Redis 密码
	DB       int    `yaml:"db"`       // Redis 数据库编号
}

// MySQLConfig 定义了 MySQL 数据库的连接配置。
type MySQLConfig struct {
	Address         string `yaml:"address"`         // MySQL 服务器地址
	Username        string `yaml:"username"`        // 用户名
	Password        string `yaml:"password"`        // 密码
	Database        string `yaml:"database"`        // 数据库名称
	MaxOpenConns    int    `yaml:"maxOpenConns"`    // 最大打开连接数
	MaxIdleConns    int    `yaml:"maxIdleConns"`    // 最大空闲连接数
	ConnMaxLifetime int    `yaml:"connMaxLifetime"` // 连接最大生命周期 (秒)
}

// MinIOConfig 定义了 MinIO 对象存储的连接配置。
type MinIOConfig struct {
	Endpoint  string `yaml:"endpoint"`  // MinIO 服务端点
	AccessKey string `yaml:"accessKey"` // 访问密钥
	SecretKey string `yaml:"secretKey"` // Secret 密钥
	Bucket    string `yaml:"bucket"`    // 导出文件使用的存储桶
	Secure    bool   `yaml:"secure"`    // 是否使用HTTPS
}

// MongoConfig 定义了 MongoDB 数据库的连接配置。
type MongoConfig struct {
	Address  string `yaml:"address"`  // MongoDB 服务器地址
	Username string `yaml:"username"` // 用户名
	Password string `yaml:"password"` // 密码
	Database string `yaml:"database"` // 数据库名称
}

// EtcdConfig 定义了 Etcd 服务发现的连接配置。
type EtcdConfig struct {
	Endpoints []string `yaml:"endpoints"` // Etcd 节点地址列表，为空时不注册服务
	Username  string   `yaml:"username"`  // 用户名
	Password  string   `yaml:"password"`  // 密码
	LeaseTTL  int64    `yaml:"leaseTTL"`  // 注册租约 (秒)
}

// KafkaConfig 定义了 Kafka 消息队列的连接配置。
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"` // Kafka Broker 地址列表
	Topics  []string `yaml:"topics"`  // 启动时需要确保存在的主题
}

// DatabaseConfigs 包含所有外部存储的配置。
type DatabaseConfigs struct {
	Redis   RedisConfig `yaml:"redis"`
	MySQL   MySQLConfig `yaml:"mysql"`
	MinIO   MinIOConfig `yaml:"minio"`
	MongoDB MongoConfig `yaml:"mongodb"`
	Etcd    EtcdConfig  `yaml:"etcd"`
	Kafka   KafkaConfig `yaml:"kafka"`
}

// AppInfo 对应 'app' 部分，包含应用程序的基本信息。
type AppInfo struct {
	Name        string `yaml:"name"`        // 应用程序名称
	Version     string `yaml:"version"`     // 应用程序版本
	Environment string `yaml:"environment"` // 运行环境 (例如: "development", "production")
}

// AuthConfig 定义了签发和校验身份令牌的配置。
type AuthConfig struct {
	JwtSecret string `yaml:"jwtSecret"` // JWT 密钥
	TokenTTL  int    `yaml:"tokenTTL"`  // JWT 令牌的有效期（秒）
}

// LoggerConfig 定义了日志记录器的配置。
type LoggerConfig struct {
	Level string `yaml:"level"` // 日志级别 (例如: "info", "debug", "warn", "error")
}

// ServerConfig 定义了各个服务监听的地址。
type ServerConfig struct {
	ProjectAddress string `yaml:"projectAddress"` // 项目服务地址
	UserAddress    string `yaml:"userAddress"`    // 用户服务地址
}

// DemoConfig 定义了演示账号和演示项目的判定规则。
type DemoConfig struct {
	Emails     []string `yaml:"emails"`     // 演示账号邮箱的 glob 模式
	MockMarker string   `yaml:"mockMarker"` // 项目 ID 中出现即视为演示项目的标记
	IDPrefix   string   `yaml:"idPrefix"`   // 演示账号下视为演示项目的 ID 前缀
}

// ExportConfig 定义了项目导出的配置。
type ExportConfig struct {
	URLTTL string `yaml:"urlTTL"` // 预签名下载链接的有效期 (例如: "15m")
}

// LockConfig 定义了项目文件同步锁的配置。
type LockConfig struct {
	Backend string `yaml:"backend"` // "redis" 或 "local"
	TTL     string `yaml:"ttl"`     // 锁租约时长
	Wait    string `yaml:"wait"`    // 获取锁的最长等待时间
}

// SessionConfig 定义了每个用户的项目状态容器缓存。
type SessionConfig struct {
	Capacity int    `yaml:"capacity"` // 最多缓存的用户数
	TTL      string `yaml:"ttl"`      // 空闲过期时间
}

// IntentionConfig 定义了意图交接给外部生成方的配置。
type IntentionConfig struct {
	Collection string `yaml:"collection"` // MongoDB 集合
	Topic      string `yaml:"topic"`      // Kafka 主题
	Results    string `yaml:"results"`    // 生成方写回结果的 Kafka 主题，为空时不消费
	GroupID    string `yaml:"groupID"`    // 消费结果使用的消费组
}

// ProjectsConfig 汇总项目服务自身的配置。
type ProjectsConfig struct {
	Demo       DemoConfig      `yaml:"demo"`
	Export     ExportConfig    `yaml:"export"`
	Lock       LockConfig      `yaml:"lock"`
	Sessions   SessionConfig   `yaml:"sessions"`
	Intentions IntentionConfig `yaml:"intentions"`
}

// AppConfig 是整个 YAML 文件的根结构，包含了应用程序的所有配置。
type AppConfig struct {
	App        AppInfo          `yaml:"app"`
	Auth       AuthConfig       `yaml:"auth"`
	Logger     LoggerConfig     `yaml:"logger"`
	Server     ServerConfig     `yaml:"server"`
	Databases  DatabaseConfigs  `yaml:"databases"`
	Projects   ProjectsConfig   `yaml:"projects"`
	Middleware MiddlewareConfig `yaml:"middleware"`
}

// MiddlewareConfig 包含所有中间件的配置。
type MiddlewareConfig struct {
	RateLimiter    RateLimiterConfig    `yaml:"rateLimiter"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker"`
}

// RateLimiterConfig 定义了按客户端的令牌桶限流配置。
type RateLimiterConfig struct {
	Enabled  bool    `yaml:"enabled"`
	Rate     float64 `yaml:"rate"`     // 每秒补充的令牌数
	Capacity int     `yaml:"capacity"` // 桶容量
	Clients  int     `yaml:"clients"`  // 最多跟踪的客户端数
}

// CircuitBreakerConfig 定义了熔断器的配置。
type CircuitBreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold uint32 `yaml:"failureThreshold"`
	SuccessThreshold uint32 `yaml:"successThreshold"`
	Timeout          string `yaml:"timeout"` // 例如: "30s"
}

// LoadConfig 函数从指定路径加载并解析 YAML 配置文件，并填充默认值。
//
// 参数:
//
//	path: YAML 配置文件的路径。
//
// 返回值:
//
//	*AppConfig: 解析后的应用程序配置结构体。
//	error: 如果文件读取、解析或校验失败，则返回错误。
func LoadConfig(path string) (*AppConfig, error) {
	yamlFile, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("无法读取 YAML 文件 '%s': %w", path, err)
	}
	return Parse(yamlFile)
}

// Parse 解析 YAML 内容并填充默认值。
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("解析 YAML 文件失败: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Logger.Level == "" {
		c.Logger.Level = "info"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 7 * 24 * 3600
	}
	if c.Server.ProjectAddress == "" {
		c.Server.ProjectAddress = ":8080"
	}
	if c.Server.UserAddress == "" {
		c.Server.UserAddress = ":8081"
	}
	if c.Databases.Etcd.LeaseTTL == 0 {
		c.Databases.Etcd.LeaseTTL = 10
	}

	p := &c.Projects
	if p.Demo.MockMarker == "" {
		p.Demo.MockMarker = "mock"
	}
	if p.Demo.IDPrefix == "" {
		p.Demo.IDPrefix = "demo-"
	}
	if p.Export.URLTTL == "" {
		p.Export.URLTTL = "15m"
	}
	if p.Lock.Backend == "" {
		p.Lock.Backend = "local"
	}
	if p.Lock.TTL == "" {
		p.Lock.TTL = "30s"
	}
	if p.Lock.Wait == "" {
		p.Lock.Wait = "10s"
	}
	if p.Sessions.Capacity == 0 {
		p.Sessions.Capacity = 1024
	}
	if p.Sessions.TTL == "" {
		p.Sessions.TTL = "30m"
	}
	if p.Intentions.Collection == "" {
		p.Intentions.Collection = "intentions"
	}
	if p.Intentions.Topic == "" {
		p.Intentions.Topic = "project_intentions"
	}
	if p.Intentions.GroupID == "" {
		p.Intentions.GroupID = "project_service"
	}

	rl := &c.Middleware.RateLimiter
	if rl.Capacity == 0 {
		rl.Capacity = 20
	}
	if rl.Rate == 0 {
		rl.Rate = 10
	}
	if rl.Clients == 0 {
		rl.Clients = 4096
	}
	if c.Middleware.CircuitBreaker.Timeout == "" {
		c.Middleware.CircuitBreaker.Timeout = "30s"
	}
}

func (c *AppConfig) validate() error {
	durations := map[string]string{
		"projects.export.urlTTL":            c.Projects.Export.URLTTL,
		"projects.lock.ttl":                 c.Projects.Lock.TTL,
		"projects.lock.wait":                c.Projects.Lock.Wait,
		"projects.sessions.ttl":             c.Projects.Sessions.TTL,
		"middleware.circuitBreaker.timeout": c.Middleware.CircuitBreaker.Timeout,
	}
	for key, value := range durations {
		if _, err := time.ParseDuration(value); err != nil {
			return fmt.Errorf("配置项 %s 不是合法的时长: %w", key, err)
		}
	}
	if c.Projects.Lock.Backend != "local" && c.Projects.Lock.Backend != "redis" {
		return fmt.Errorf("未知的锁后端: %s", c.Projects.Lock.Backend)
	}
	return nil
}

// MustDuration 解析已经校验过的时长配置。
func MustDuration(value string) time.Duration {
	d, err := time.ParseDuration(value)
	if err != nil {
		panic(fmt.Sprintf("config: invalid duration %q: %v", value, err))
	}
	return d
}
