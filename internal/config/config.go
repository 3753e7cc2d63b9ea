package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/mzaki9/Atomus-Lumea/common/config"
)

// 摄像头来源
const (
	CameraSynthetic = "synthetic"
	CameraMQTT      = "mqtt"
)

// Config lumea-ppg 服务配置
type Config struct {
	Database config.DatabaseConfig
	Redis    config.RedisConfig
	MQTT     config.MQTTConfig

	DeviceID string
	HTTPAddr string

	Camera struct {
		Source       string // "synthetic" 或 "mqtt"
		FPS          int
		Width        int
		Height       int
		SimBPM       float64 // 仅 synthetic
		FrameTopic   string  // 支持 {device_id} 占位符
		CommandTopic string
	}

	Session struct {
		Tick        time.Duration
		MaxDuration time.Duration
	}

	Backend struct {
		URL         string
		AccessToken string
		Timeout     time.Duration
	}

	// 测量完成后上报的位置，未设置时不上报
	Location struct {
		Latitude  float64
		Longitude float64
		Set       bool
	}

	Risk struct {
		Endpoint string // 为空时使用内置阈值分类
		Age      int
	}

	Cache struct {
		TTL         time.Duration
		Stream      string
		StateStream string
	}

	Persist struct {
		Enabled bool
	}

	Log struct {
		Level  string
		Format string
	}
}

// Load 加载配置
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.Database = config.DatabaseConfig{
		Host:     "localhost",
		Port:     5432,
		User:     "postgres",
		Password: "postgres",
		Database: "lumea",
		SSLMode:  "disable",
		MaxConns: 10,
		MaxIdle:  2,
	}
	cfg.Database.LoadFromEnv("DB")

	cfg.Redis = config.RedisConfig{Addr: "localhost:6379"}
	cfg.Redis.LoadFromEnv("REDIS")

	cfg.MQTT = config.MQTTConfig{
		Broker:   "tcp://localhost:1883",
		ClientID: "lumea-ppg",
		QoS:      0,
	}
	cfg.MQTT.LoadFromEnv("MQTT")

	cfg.DeviceID = getEnv("PPG_DEVICE_ID", "lumea-dev")
	cfg.HTTPAddr = getEnv("PPG_HTTP_ADDR", ":8090")

	cfg.Camera.Source = strings.ToLower(getEnv("PPG_CAMERA_SOURCE", CameraSynthetic))
	cfg.Camera.FPS = getEnvInt("PPG_CAMERA_FPS", 30)
	cfg.Camera.Width = getEnvInt("PPG_CAMERA_WIDTH", 320)
	cfg.Camera.Height = getEnvInt("PPG_CAMERA_HEIGHT", 240)
	cfg.Camera.SimBPM = getEnvFloat("PPG_SIM_BPM", 72)
	cfg.Camera.FrameTopic = getEnv("PPG_TOPIC_FRAME", "ppg/{device_id}/frame")
	cfg.Camera.CommandTopic = getEnv("PPG_TOPIC_COMMAND", "ppg/{device_id}/command")

	cfg.Session.Tick = getEnvDuration("PPG_SESSION_TICK", time.Second)
	cfg.Session.MaxDuration = getEnvDuration("PPG_SESSION_MAX_DURATION", 30*time.Second)

	cfg.Backend.URL = getEnv("PPG_BACKEND_URL", "http://10.0.2.2:3000/")
	cfg.Backend.AccessToken = getEnv("PPG_ACCESS_TOKEN", "")
	cfg.Backend.Timeout = getEnvDuration("PPG_BACKEND_TIMEOUT", 10*time.Second)

	lat, latSet := os.LookupEnv("PPG_LATITUDE")
	lng, lngSet := os.LookupEnv("PPG_LONGITUDE")
	if latSet && lngSet && lat != "" && lng != "" {
		cfg.Location.Latitude = getEnvFloat("PPG_LATITUDE", 0)
		cfg.Location.Longitude = getEnvFloat("PPG_LONGITUDE", 0)
		cfg.Location.Set = true
	}

	cfg.Risk.Endpoint = getEnv("PPG_RISK_ENDPOINT", "")
	cfg.Risk.Age = getEnvInt("PPG_RISK_AGE", 50)

	cfg.Cache.TTL = getEnvDuration("PPG_CACHE_TTL", 10*time.Minute)
	cfg.Cache.Stream = getEnv("PPG_ESTIMATE_STREAM", "ppg:estimate:stream")
	cfg.Cache.StateStream = getEnv("PPG_STATE_STREAM", "ppg:session:stream")

	cfg.Persist.Enabled = getEnvBool("PPG_PERSIST_ENABLED", false)

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Camera.Source {
	case CameraSynthetic, CameraMQTT:
	default:
		return fmt.Errorf("invalid PPG_CAMERA_SOURCE %q: expected synthetic or mqtt", c.Camera.Source)
	}
	if c.Camera.FPS <= 0 {
		return fmt.Errorf("invalid PPG_CAMERA_FPS %d: must be positive", c.Camera.FPS)
	}
	if c.Camera.Width <= 0 || c.Camera.Height <= 0 {
		return fmt.Errorf("invalid camera size %dx%d", c.Camera.Width, c.Camera.Height)
	}
	if c.DeviceID == "" {
		return fmt.Errorf("PPG_DEVICE_ID must not be empty")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	return config.EnvString(key, defaultValue)
}

func getEnvInt(key string, defaultValue int) int {
	return config.EnvInt(key, defaultValue)
}

func getEnvFloat(key string, defaultValue float64) float64 {
	return config.EnvFloat(key, defaultValue)
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	return config.EnvDuration(key, defaultValue)
}

func getEnvBool(key string, defaultValue bool) bool {
	return config.EnvBool(key, defaultValue)
}
