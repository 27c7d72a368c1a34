package sysinfo

import (
	"context"
	"fmt"

	"bytebill/internal/domain/ports/adapter"

	"github.com/shirou/gopsutil/v4/host"
)

var _ adapter.HostInfo = (*Host)(nil)

// Host reads facts about the local machine.
type Host struct{}

func NewHost() *Host { return &Host{} }

// Uptime returns seconds since boot.
func (Host) Uptime(ctx context.Context) (uint64, error) {
	up, err := host.UptimeWithContext(ctx)
	if err != nil {
		return 0, fmt.Errorf("host uptime: %w", err)
	}
	return up, nil
}
