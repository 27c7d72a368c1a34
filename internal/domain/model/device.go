package model

import (
	"net"
	"net/netip"
	"strings"

	"bytebill/internal/domain"
)

// Device identifies a client on the hotspot. MAC is the binding key; IP is advisory
// and may change between DHCP leases.
type Device struct {
	MAC string
	IP  string
}

// NewDevice normalizes the MAC to lower-case colon form and validates the optional IP.
func NewDevice(mac, ip string) (Device, error) {
	norm, err := NormalizeMAC(mac)
	if err != nil {
		return Device{}, err
	}
	ip = strings.TrimSpace(ip)
	if ip != "" {
		addr, err := netip.ParseAddr(ip)
		if err != nil {
			return Device{}, domain.ErrInvalidDevice
		}
		ip = addr.String()
	}
	return Device{MAC: norm, IP: ip}, nil
}

func NormalizeMAC(mac string) (string, error) {
	hw, err := net.ParseMAC(strings.TrimSpace(mac))
	if err != nil || len(hw) != 6 {
		return "", domain.ErrInvalidDevice
	}
	return hw.String(), nil
}

func (d Device) IsZero() bool { return d.MAC == "" }
