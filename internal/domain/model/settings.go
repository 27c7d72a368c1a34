package model

import "time"

// Settings is the operator-editable configuration record. It is loaded at startup,
// replaced on reload, and handed to collaborators explicitly.
type Settings struct {
	CompanyName       string    `yaml:"company_name" json:"company_name"`
	PortalDNS         string    `yaml:"portal_dns" json:"portal_dns"`
	SupportPhone      string    `yaml:"support_phone" json:"support_phone"`
	BandwidthUpKbps   int       `yaml:"bandwidth_up_kbps" json:"bandwidth_up_kbps"`
	BandwidthDownKbps int       `yaml:"bandwidth_down_kbps" json:"bandwidth_down_kbps"`
	UpdatedAt         time.Time `yaml:"-" json:"updated_at"`
}

func DefaultSettings() Settings {
	return Settings{
		CompanyName:       "ByteBill WiFi",
		PortalDNS:         "portal.bytebill.local",
		BandwidthUpKbps:   2048,
		BandwidthDownKbps: 10240,
	}
}

// Valid reports whether bandwidth limits are non-negative (0 = no shaping).
func (s Settings) Valid() bool {
	return s.BandwidthUpKbps >= 0 && s.BandwidthDownKbps >= 0 && s.CompanyName != ""
}
