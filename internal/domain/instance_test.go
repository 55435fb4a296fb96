package domain

import "testing"

func TestWaInstanceProxyRoundTrip(t *testing.T) {
	var inst WaInstance
	inst.ApplyProxyConfig(&ProxyConfig{
		Enabled: true, Type: "socks5", Host: "10.0.0.1", Port: 1080,
		Username: "u", Password: "p",
	})

	cfg := inst.ProxyConfig()
	if cfg == nil || cfg.Type != "socks5" || cfg.Host != "10.0.0.1" || cfg.Port != 1080 {
		t.Fatalf("proxy config = %+v", cfg)
	}
	if cfg.Username != "u" || cfg.Password != "p" {
		t.Fatal("credentials lost in round trip")
	}
}

func TestWaInstanceProxyDisabled(t *testing.T) {
	var inst WaInstance
	inst.ApplyProxyConfig(nil)
	if inst.ProxyConfig() != nil {
		t.Fatal("nil config should leave the proxy disabled")
	}

	inst.ApplyProxyConfig(&ProxyConfig{Enabled: false, Type: "http", Host: "h", Port: 1})
	if inst.ProxyEnabled || inst.ProxyConfig() != nil {
		t.Fatal("disabled config should not enable the proxy")
	}
}

func TestTableNames(t *testing.T) {
	if got := (WaInstance{}).TableName(); got != "baileys_instances" {
		t.Fatalf("instances table = %q", got)
	}
	if got := (WaMessageLog{}).TableName(); got != "baileys_messages_log" {
		t.Fatalf("messages table = %q", got)
	}
}
