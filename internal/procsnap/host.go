package procsnap

import (
	"context"
	"fmt"
	"runtime"

	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/mem"
)

// Host describes the machine a snapshot was taken on.
type Host struct {
	Hostname         string `json:"hostname" yaml:"hostname"`
	OS               string `json:"os" yaml:"os"`
	Platform         string `json:"platform,omitempty" yaml:"platform,omitempty"`
	TotalMemoryBytes uint64 `json:"totalMemoryBytes" yaml:"totalMemoryBytes"`
}

// HostSummary reads the OS name and total physical memory. Platform details
// are best-effort; only a failure to read memory is returned as an error.
func HostSummary(ctx context.Context) (Host, error) {
	h := Host{OS: runtime.GOOS}

	if info, err := host.InfoWithContext(ctx); err == nil {
		h.Hostname = info.Hostname
		h.Platform = info.Platform
	}

	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return h, fmt.Errorf("read virtual memory: %w", err)
	}
	h.TotalMemoryBytes = vm.Total
	return h, nil
}
