package main

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	sam "github.com/pypae/KMP-SAM"
	"github.com/pypae/KMP-SAM/segment"
)

// Config 服务配置
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Model   ModelConfig   `mapstructure:"model"`
	Session SessionConfig `mapstructure:"session"`
	Upload  UploadConfig  `mapstructure:"upload"`
}

type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

type ModelConfig struct {
	LibPath           string  `mapstructure:"lib_path"`
	EncoderPath       string  `mapstructure:"encoder_path"`
	DecoderPath       string  `mapstructure:"decoder_path"`
	InputSize         int     `mapstructure:"input_size"`
	MaskThreshold     float32 `mapstructure:"mask_threshold"`
	UseCuda           bool    `mapstructure:"use_cuda"`
	NumThreads        int     `mapstructure:"num_threads"`
	EnableCpuMemArena bool    `mapstructure:"enable_cpu_mem_arena"`
	FontPath          string  `mapstructure:"font_path"`
}

type SessionConfig struct {
	TTL             time.Duration `mapstructure:"ttl"`
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

type UploadConfig struct {
	MaxSize int64 `mapstructure:"max_size"`
}

// EngineConfig 转换为引擎配置
func (c ModelConfig) EngineConfig() segment.Config {
	return segment.Config{
		OnnxRuntimeLibPath: c.LibPath,
		EncodeModelPath:    c.EncoderPath,
		DecodeModelPath:    c.DecoderPath,
		InputSize:          c.InputSize,
		MaskThreshold:      c.MaskThreshold,
		UseCuda:            c.UseCuda,
		NumThreads:         c.NumThreads,
		EnableCpuMemArena:  c.EnableCpuMemArena,
	}
}

// Load 从 YAML 文件加载配置
func Load(configPath string) (*Config, error) {
	// .env 不存在时忽略
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 设置默认值
	setDefaults(v)

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(&cfg)
	return &cfg, nil
}

// New 使用默认配置路径加载配置
func New() *Config {
	path := os.Getenv("SAM_CONFIG")
	if path == "" {
		path = "config.yaml"
	}
	cfg, err := Load(path)
	if err != nil {
		// 如果加载失败，返回默认配置
		return defaultConfig()
	}
	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", ":8080")
	v.SetDefault("server.mode", "debug")

	v.SetDefault("model.lib_path", sam.DefaultLibraryPath())
	v.SetDefault("model.encoder_path", "./sam_weights/image_encoder.onnx")
	v.SetDefault("model.decoder_path", "./sam_weights/prompt_decoder.onnx")
	v.SetDefault("model.input_size", 1024)
	v.SetDefault("model.mask_threshold", 0.5)
	v.SetDefault("model.num_threads", 0)
	v.SetDefault("model.font_path", "")

	v.SetDefault("session.ttl", 10*time.Minute)
	v.SetDefault("session.cleanup_interval", time.Minute)

	v.SetDefault("upload.max_size", 10*1024*1024)
}

func defaultConfig() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	applyEnvOverrides(&cfg)
	return &cfg
}

// applyEnvOverrides 环境变量优先于配置文件，方便容器部署
func applyEnvOverrides(cfg *Config) {
	if p := os.Getenv("SAM_ONNXRUNTIME_LIB"); p != "" {
		cfg.Model.LibPath = p
	}
	if p := os.Getenv("SAM_ENCODER_MODEL"); p != "" {
		cfg.Model.EncoderPath = p
	}
	if p := os.Getenv("SAM_DECODER_MODEL"); p != "" {
		cfg.Model.DecoderPath = p
	}
	if p := os.Getenv("SAM_PORT"); p != "" {
		cfg.Server.Port = p
	}
}
