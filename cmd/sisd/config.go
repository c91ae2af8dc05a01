package main

type Config struct {
	Port         int    `json:"port"`
	DatabaseFile string `json:"database_file"`

	CasLoginUrl string `json:"cas_login_url"`
	GradesUrl   string `json:"grades_url"`

	SessionTtlMinutes     int `json:"session_ttl_minutes"`
	SnapshotRetentionDays int `json:"snapshot_retention_days"`
}

func (c *Config) fillDefaults() {
	if c.Port == 0 {
		c.Port = 8470
	}
	if c.DatabaseFile == "" {
		c.DatabaseFile = "gradestore.db"
	}
	if c.SessionTtlMinutes == 0 {
		c.SessionTtlMinutes = 60
	}
	if c.SnapshotRetentionDays == 0 {
		c.SnapshotRetentionDays = 365 * 2
	}
}
