package domain

import "time"

// ProxyConfig is the optional per-instance proxy configuration as stored.
// Kind validation happens when the transport descriptor is built, not here.
type ProxyConfig struct {
	Enabled  bool   `json:"enabled"`
	Type     string `json:"type"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	Username string `json:"username,omitempty"`
	Password string `json:"password,omitempty"`
}

// WaInstance is one tenant's messaging instance.
type WaInstance struct {
	ID            string    `json:"id" gorm:"primaryKey;size:64"`
	Name          string    `json:"name"`
	ApiKey        string    `json:"api_key" gorm:"uniqueIndex;size:64"`
	Status        string    `json:"status" gorm:"index"`
	Phone         string    `json:"phone"`
	ProxyEnabled  bool      `json:"proxy_enabled"`
	ProxyType     string    `json:"proxy_type"`
	ProxyHost     string    `json:"proxy_host"`
	ProxyPort     int       `json:"proxy_port"`
	ProxyUsername string    `json:"proxy_username"`
	ProxyPassword string    `json:"proxy_password"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// TableName Specify table name
func (WaInstance) TableName() string {
	return "baileys_instances"
}

// ProxyConfig assembles the stored proxy columns, nil when the proxy is
// disabled.
func (i *WaInstance) ProxyConfig() *ProxyConfig {
	if !i.ProxyEnabled {
		return nil
	}
	return &ProxyConfig{
		Enabled:  true,
		Type:     i.ProxyType,
		Host:     i.ProxyHost,
		Port:     i.ProxyPort,
		Username: i.ProxyUsername,
		Password: i.ProxyPassword,
	}
}

// ApplyProxyConfig flattens a proxy config into the stored columns.
func (i *WaInstance) ApplyProxyConfig(cfg *ProxyConfig) {
	if cfg == nil || !cfg.Enabled {
		i.ProxyEnabled = false
		return
	}
	i.ProxyEnabled = true
	i.ProxyType = cfg.Type
	i.ProxyHost = cfg.Host
	i.ProxyPort = cfg.Port
	i.ProxyUsername = cfg.Username
	i.ProxyPassword = cfg.Password
}
