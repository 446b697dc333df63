package config

// DashboardConfig configures the web UI.
type DashboardConfig struct {
	Addr  string `json:"addr"`
	Title string `json:"title"`
	// SecureCookies marks the session cookie Secure; enable behind TLS.
	SecureCookies bool `json:"secure_cookies"`
}

// SetDefaults applies sane defaults.
func (c *DashboardConfig) SetDefaults() {
	if c.Addr == "" {
		c.Addr = ":8080"
	}
	if c.Title == "" {
		c.Title = "Energy account"
	}
}
