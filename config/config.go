package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/chaos-io/cutout/matte"
	"github.com/chaos-io/cutout/overlay"
	"github.com/chaos-io/cutout/pipeline"
	"github.com/spf13/viper"
)

// 环境变量前缀，如 CUTOUT_SERVER_PORT
const envPrefix = "CUTOUT"

type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Matte     MatteConfig     `mapstructure:"matte"`
	Export    ExportConfig    `mapstructure:"export"`
	Watermark WatermarkConfig `mapstructure:"watermark"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
}

type ServerConfig struct {
	Port          string        `mapstructure:"port"`
	Mode          string        `mapstructure:"mode"`
	ReadTimeout   time.Duration `mapstructure:"read_timeout"`
	WriteTimeout  time.Duration `mapstructure:"write_timeout"`
	MaxUploadSize int64         `mapstructure:"max_upload_size"`
	MaxConcurrent int           `mapstructure:"max_concurrent"`
	QueueTimeout  time.Duration `mapstructure:"queue_timeout"`
}

type RedisConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

type MatteConfig struct {
	Family          string          `mapstructure:"family"`
	Method          string          `mapstructure:"method"`
	AIAllowed       bool            `mapstructure:"ai_allowed"`
	Threshold       int             `mapstructure:"threshold"`
	Feather         int             `mapstructure:"feather"`
	FeatherAmount   float64         `mapstructure:"feather_amount"`
	ErodeIterations int             `mapstructure:"erode_iterations"`
	MaxSide         int             `mapstructure:"max_side"`
	RespectAlpha    bool            `mapstructure:"respect_alpha"`
	Estimator       EstimatorConfig `mapstructure:"estimator"`
}

// EstimatorConfig Kind 取值 onnx / remote / none
type EstimatorConfig struct {
	Kind        string        `mapstructure:"kind"`
	ModelPath   string        `mapstructure:"model_path"`
	LibraryPath string        `mapstructure:"library_path"`
	NumThreads  int           `mapstructure:"num_threads"`
	URL         string        `mapstructure:"url"`
	InputSize   int           `mapstructure:"input_size"`
	OutputRank  int           `mapstructure:"output_rank"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

type ExportConfig struct {
	Dir       string        `mapstructure:"dir"`
	Size      int           `mapstructure:"size"`
	Padding   float64       `mapstructure:"padding"`
	OnWhite   bool          `mapstructure:"on_white"`
	Retention time.Duration `mapstructure:"retention"`
}

type WatermarkConfig struct {
	Text    string  `mapstructure:"text"`
	Opacity float64 `mapstructure:"opacity"`
	Fill    string  `mapstructure:"fill"`
	Outline string  `mapstructure:"outline"`
}

type CleanupConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Schedule string `mapstructure:"schedule"`
}

// Load 从 YAML 文件加载配置，环境变量优先
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	v.SetConfigType("yaml")

	// 读取配置文件
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	return unmarshal(v)
}

// FromEnv 不读配置文件，只使用默认值和环境变量
func FromEnv() (*Config, error) {
	return unmarshal(newViper())
}

// New 使用默认配置路径加载配置
func New() *Config {
	cfg, err := Load("config.yaml")
	if err == nil {
		return cfg
	}
	// 配置文件不可用时仍然应用环境变量
	if cfg, err = FromEnv(); err == nil {
		return cfg
	}
	return getDefaultConfig()
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// 设置默认值
	setDefaults(v)
	return v
}

func unmarshal(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default 返回内置默认配置
func Default() *Config {
	return getDefaultConfig()
}

func setDefaults(v *viper.Viper) {
	d := getDefaultConfig()

	v.SetDefault("server.port", d.Server.Port)
	v.SetDefault("server.mode", d.Server.Mode)
	v.SetDefault("server.read_timeout", d.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", d.Server.WriteTimeout)
	v.SetDefault("server.max_upload_size", d.Server.MaxUploadSize)
	v.SetDefault("server.max_concurrent", d.Server.MaxConcurrent)
	v.SetDefault("server.queue_timeout", d.Server.QueueTimeout)

	v.SetDefault("redis.enabled", d.Redis.Enabled)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", d.Redis.Password)
	v.SetDefault("redis.db", d.Redis.DB)
	v.SetDefault("redis.ttl", d.Redis.TTL)

	v.SetDefault("matte.family", d.Matte.Family)
	v.SetDefault("matte.method", d.Matte.Method)
	v.SetDefault("matte.ai_allowed", d.Matte.AIAllowed)
	v.SetDefault("matte.threshold", d.Matte.Threshold)
	v.SetDefault("matte.feather", d.Matte.Feather)
	v.SetDefault("matte.feather_amount", d.Matte.FeatherAmount)
	v.SetDefault("matte.erode_iterations", d.Matte.ErodeIterations)
	v.SetDefault("matte.max_side", d.Matte.MaxSide)
	v.SetDefault("matte.respect_alpha", d.Matte.RespectAlpha)
	v.SetDefault("matte.estimator.kind", d.Matte.Estimator.Kind)
	v.SetDefault("matte.estimator.model_path", d.Matte.Estimator.ModelPath)
	v.SetDefault("matte.estimator.library_path", d.Matte.Estimator.LibraryPath)
	v.SetDefault("matte.estimator.num_threads", d.Matte.Estimator.NumThreads)
	v.SetDefault("matte.estimator.url", d.Matte.Estimator.URL)
	v.SetDefault("matte.estimator.input_size", d.Matte.Estimator.InputSize)
	v.SetDefault("matte.estimator.output_rank", d.Matte.Estimator.OutputRank)
	v.SetDefault("matte.estimator.timeout", d.Matte.Estimator.Timeout)

	v.SetDefault("export.dir", d.Export.Dir)
	v.SetDefault("export.size", d.Export.Size)
	v.SetDefault("export.padding", d.Export.Padding)
	v.SetDefault("export.on_white", d.Export.OnWhite)
	v.SetDefault("export.retention", d.Export.Retention)

	v.SetDefault("watermark.text", d.Watermark.Text)
	v.SetDefault("watermark.opacity", d.Watermark.Opacity)
	v.SetDefault("watermark.fill", d.Watermark.Fill)
	v.SetDefault("watermark.outline", d.Watermark.Outline)

	v.SetDefault("cleanup.enabled", d.Cleanup.Enabled)
	v.SetDefault("cleanup.schedule", d.Cleanup.Schedule)
}

func getDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:          ":8080",
			Mode:          "debug",
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  60 * time.Second,
			MaxUploadSize: 20 * 1024 * 1024,
			MaxConcurrent: 3,
			QueueTimeout:  30 * time.Second,
		},
		Redis: RedisConfig{
			Enabled: false,
			Addr:    "localhost:6379",
			DB:      0,
			TTL:     24 * time.Hour,
		},
		Matte: MatteConfig{
			Family:        matte.U2Net.Name,
			Method:        string(pipeline.MethodThreshold),
			AIAllowed:     true,
			Threshold:     240,
			Feather:       12,
			FeatherAmount: 16,
			MaxSide:       2048,
			Estimator: EstimatorConfig{
				Kind:       "none",
				NumThreads: 1,
				OutputRank: 4,
				Timeout:    30 * time.Second,
			},
		},
		Export: ExportConfig{
			Dir:       "./output",
			Size:      1024,
			Padding:   0.08,
			Retention: 24 * time.Hour,
		},
		Watermark: WatermarkConfig{
			Opacity: 35,
			Fill:    "#ffffff",
			Outline: "#000000",
		},
		Cleanup: CleanupConfig{
			Enabled:  true,
			Schedule: "@every 1h",
		},
	}
}

// Profile 查找配置的模型家族
func (m MatteConfig) Profile() (matte.Profile, error) {
	p, ok := matte.ProfileByName(m.Family)
	if !ok {
		return matte.Profile{}, fmt.Errorf("unknown matte family %q", m.Family)
	}
	return p, nil
}

// PipelineOptions 转为 pipeline.Options
func (m MatteConfig) PipelineOptions() (pipeline.Options, error) {
	method, err := pipeline.ParseMethod(m.Method)
	if err != nil {
		return pipeline.Options{}, err
	}
	return pipeline.Options{
		Method:          method,
		AIAllowed:       m.AIAllowed,
		Threshold:       m.Threshold,
		Feather:         m.Feather,
		FeatherAmount:   m.FeatherAmount,
		ErodeIterations: m.ErodeIterations,
		MaxSide:         m.MaxSide,
		RespectAlpha:    m.RespectAlpha,
	}, nil
}

// ExportOptions 合并导出与水印配置
func (c *Config) ExportOptions() (pipeline.ExportOptions, error) {
	style, err := overlay.ParseColors(c.Watermark.Fill, c.Watermark.Outline)
	if err != nil {
		return pipeline.ExportOptions{}, err
	}
	return pipeline.ExportOptions{
		Size:             c.Export.Size,
		Padding:          c.Export.Padding,
		OnWhite:          c.Export.OnWhite,
		Watermark:        c.Watermark.Text,
		WatermarkOpacity: c.Watermark.Opacity,
		WatermarkStyle:   style,
	}, nil
}
