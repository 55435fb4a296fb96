package config

import (
	"os"
	"strings"

	"github.com/spf13/cast"
	"gopkg.in/yaml.v2"
)

type SystemConfig struct {
	Workdir  string `yaml:"workdir" json:"workdir"`
	Location string `yaml:"location" json:"location"`
	Debug    bool   `yaml:"debug" json:"debug"`
}

type WebConfig struct {
	Host           string   `yaml:"host" json:"host"`
	Port           int      `yaml:"port" json:"port"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
}

type DatabaseConfig struct {
	Type    string `yaml:"type" json:"type"`
	Host    string `yaml:"host" json:"host"`
	Port    int    `yaml:"port" json:"port"`
	Name    string `yaml:"name" json:"name"`
	User    string `yaml:"user" json:"user"`
	Passwd  string `yaml:"passwd" json:"passwd"`
	MaxConn int    `yaml:"max_conn" json:"max_conn"`
	Debug   bool   `yaml:"debug" json:"debug"`
}

type LoggerConfig struct {
	Mode       string `yaml:"mode" json:"mode"`
	FileEnable bool   `yaml:"file_enable" json:"file_enable"`
	Filename   string `yaml:"filename" json:"filename"`
}

// WhatsAppConfig tunes the instance lifecycle orchestrator.
type WhatsAppConfig struct {
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts" json:"max_reconnect_attempts"`
	ReconnectDelaySec    int `yaml:"reconnect_delay_sec" json:"reconnect_delay_sec"`
	ConnectWaitSec       int `yaml:"connect_wait_sec" json:"connect_wait_sec"`
	AuditRetentionDays   int `yaml:"audit_retention_days" json:"audit_retention_days"`
}

type AppConfig struct {
	System   SystemConfig   `yaml:"system" json:"system"`
	Web      WebConfig      `yaml:"web" json:"web"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Logger   LoggerConfig   `yaml:"logger" json:"logger"`
	WhatsApp WhatsAppConfig `yaml:"whatsapp" json:"whatsapp"`
}

var DefaultAppConfig = &AppConfig{
	System: SystemConfig{
		Workdir:  "/var/baileys",
		Location: "America/Sao_Paulo",
	},
	Web: WebConfig{
		Host: "0.0.0.0",
		Port: 3002,
		AllowedOrigins: []string{
			"http://localhost:5173",
			"http://localhost:3000",
			"http://localhost:3002",
		},
	},
	Database: DatabaseConfig{
		Type:    "sqlite",
		Name:    "baileys",
		MaxConn: 10,
	},
	Logger: LoggerConfig{
		Mode:       "development",
		FileEnable: true,
		Filename:   "/var/baileys/baileys.log",
	},
	WhatsApp: WhatsAppConfig{
		MaxReconnectAttempts: 5,
		ReconnectDelaySec:    5,
		ConnectWaitSec:       10,
		AuditRetentionDays:   90,
	},
}

// LoadConfig reads the YAML config file when it exists and applies
// environment overrides on top. A missing file is not an error, the
// defaults cover a local development setup.
func LoadConfig(cfile string) *AppConfig {
	cfg := *DefaultAppConfig
	if cfile != "" {
		if data, err := os.ReadFile(cfile); err == nil {
			_ = yaml.Unmarshal(data, &cfg)
		}
	}
	setEnvValue("BAILEYS_WORKDIR", &cfg.System.Workdir)
	setEnvValue("BAILEYS_LOCATION", &cfg.System.Location)
	setEnvValue("BAILEYS_DB_TYPE", &cfg.Database.Type)
	setEnvValue("BAILEYS_DB_HOST", &cfg.Database.Host)
	setEnvValue("BAILEYS_DB_NAME", &cfg.Database.Name)
	setEnvValue("BAILEYS_DB_USER", &cfg.Database.User)
	setEnvValue("BAILEYS_DB_PWD", &cfg.Database.Passwd)
	setEnvIntValue("BAILEYS_DB_PORT", &cfg.Database.Port)
	setEnvValue("BAILEYS_WEB_HOST", &cfg.Web.Host)
	setEnvIntValue("PORT", &cfg.Web.Port)
	setEnvIntValue("MAX_RECONNECT_ATTEMPTS", &cfg.WhatsApp.MaxReconnectAttempts)
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		parts := strings.Split(origins, ",")
		// cfg still shares the default slice's backing array here, so the
		// override must build a fresh slice rather than truncate in place.
		cfg.Web.AllowedOrigins = make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				cfg.Web.AllowedOrigins = append(cfg.Web.AllowedOrigins, p)
			}
		}
	}
	return &cfg
}

func setEnvValue(name string, f *string) {
	if v := os.Getenv(name); v != "" {
		*f = v
	}
}

func setEnvIntValue(name string, f *int) {
	if v := os.Getenv(name); v != "" {
		*f = cast.ToInt(v)
	}
}
