package service

import "timemachine/cli/internal/protocol"

// FallbackSystemInfo is returned when system-info cannot be read from the
// engine. Estimated is set so displays can mark the figures as unavailable.
var FallbackSystemInfo = protocol.SystemInfo{
	Storage: protocol.StorageInfo{
		Total:     1000000000,
		Used:      450000000,
		Available: 550000000,
	},
	CPU:       protocol.CPUInfo{Usage: 15},
	Memory:    protocol.MemoryInfo{UsagePercent: 35},
	Uptime:    "5 days, 7 hours",
	Estimated: true,
}
