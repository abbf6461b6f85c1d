package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	JWT      JWTConfig
	Log      LogConfig
	Redis    RedisConfig
	Discord  DiscordConfig
	CORS     CORSConfig
	Upload   UploadConfig
	Seed     SeedConfig
}

type ServerConfig struct {
	Port string
	Mode string
}

type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

type JWTConfig struct {
	SecretKey     string // JWT密钥
	TokenDuration string // 令牌有效期，如 "168h"
}

type LogConfig struct {
	Level      string
	FilePath   string
	MaxSize    int // MB
	MaxBackups int // 保留的备份文件数
	MaxAge     int // 保留天数
	Compress   bool
	Format     string // json 或 text
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	Prefix   string // 同步队列键前缀
}

type DiscordConfig struct {
	BotToken string // Bot令牌，为空时桥接不启动
	GuildID  string // 服务器ID
	APIBase  string // Discord REST地址，测试时可替换
}

type CORSConfig struct {
	AllowOrigins     []string
	AllowMethods     []string
	AllowHeaders     []string
	ExposeHeaders    []string
	AllowCredentials bool
	MaxAge           int // 预检缓存时间（小时）
}

type UploadConfig struct {
	Dir        string // 上传文件目录
	MaxSizeMB  int64  // 单文件大小上限
	PublicPath string // 对外暴露的URL前缀
}

type SeedConfig struct {
	AdminUsername string
	AdminEmail    string
	AdminPassword string
}

// 获取环境变量，不存在则用默认值
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true"
	}
	return defaultValue
}

func getEnvAsStringArray(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		result := make([]string, 0, len(parts))
		for _, part := range parts {
			trimmed := strings.TrimSpace(part)
			if trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return defaultValue
}

func LoadConfig() (*Config, error) {
	// .env不存在不算错误，容器环境直接用环境变量
	_ = godotenv.Load()

	config := &Config{
		Server: ServerConfig{
			Port: getEnv("SERVER_PORT", "8080"),
			Mode: getEnv("SERVER_MODE", "debug"),
		},
		Database: DatabaseConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			DBName:   getEnv("DB_NAME", "gcrp_community"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		JWT: JWTConfig{
			SecretKey:     getEnv("JWT_SECRET_KEY", "default-secret-change-me"),
			TokenDuration: getEnv("JWT_TOKEN_DURATION", "168h"),
		},
		Log: LogConfig{
			Level:      getEnv("LOG_LEVEL", "info"),
			FilePath:   getEnv("LOG_FILE_PATH", "logs/app.log"),
			MaxSize:    getEnvAsInt("LOG_MAX_SIZE", 100),
			MaxBackups: getEnvAsInt("LOG_MAX_BACKUPS", 7),
			MaxAge:     getEnvAsInt("LOG_MAX_AGE", 30),
			Compress:   getEnvAsBool("LOG_COMPRESS", true),
			Format:     getEnv("LOG_FORMAT", "json"),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),
			Prefix:   getEnv("REDIS_PREFIX", "gcrp:sync"),
		},
		Discord: DiscordConfig{
			BotToken: getEnv("DISCORD_BOT_TOKEN", ""),
			GuildID:  getEnv("DISCORD_GUILD_ID", ""),
			APIBase:  getEnv("DISCORD_API_BASE", "https://discord.com/api/v10"),
		},
		CORS: CORSConfig{
			AllowOrigins:     getEnvAsStringArray("CORS_ALLOW_ORIGINS", []string{"*"}),
			AllowMethods:     getEnvAsStringArray("CORS_ALLOW_METHODS", []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"}),
			AllowHeaders:     getEnvAsStringArray("CORS_ALLOW_HEADERS", []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With"}),
			ExposeHeaders:    getEnvAsStringArray("CORS_EXPOSE_HEADERS", []string{"Content-Length", "Content-Type"}),
			AllowCredentials: getEnvAsBool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           getEnvAsInt("CORS_MAX_AGE", 12),
		},
		Upload: UploadConfig{
			Dir:        getEnv("UPLOAD_DIR", "uploads"),
			MaxSizeMB:  getEnvAsInt64("UPLOAD_MAX_SIZE_MB", 5),
			PublicPath: getEnv("UPLOAD_PUBLIC_PATH", "/uploads"),
		},
		Seed: SeedConfig{
			AdminUsername: getEnv("SEED_ADMIN_USERNAME", "admin"),
			AdminEmail:    getEnv("SEED_ADMIN_EMAIL", "admin@gcrp.local"),
			AdminPassword: getEnv("SEED_ADMIN_PASSWORD", "admin123"),
		},
	}

	return config, nil
}
