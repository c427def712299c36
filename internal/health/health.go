// Package health grades a system snapshot and interface list into
// per-subsystem diagnostic verdicts.
package health

import (
	"fmt"

	"hotspotctl/internal/config"
	"hotspotctl/internal/model"
)

// Remediation hints, reported in CPU, Memory, Interfaces order for every
// subsystem that is not ok.
const (
	remediationCPU        = "review running processes and consider a firmware update"
	remediationMemory     = "clear system logs and restart heavy services"
	remediationInterfaces = "check cabling and interface configuration"
)

// Evaluate grades the snapshot and interface list against the configured
// thresholds. Pure: no I/O, no mutation of inputs.
func Evaluate(snap model.SystemSnapshot, ifaces []model.InterfaceStat, cfg config.HealthConfig) model.HealthReport {
	cpu := evaluateCPU(snap.CPULoadPercent, cfg)
	mem := evaluateMemory(snap.MemoryUsagePercent(), cfg)
	net := evaluateInterfaces(ifaces, cfg)

	overall := model.LevelOK
	for _, v := range []model.Verdict{cpu, mem, net} {
		if v.Level.Worse(overall) {
			overall = v.Level
		}
	}

	var remediations []string
	if cpu.Level != model.LevelOK {
		remediations = append(remediations, remediationCPU)
	}
	if mem.Level != model.LevelOK {
		remediations = append(remediations, remediationMemory)
	}
	if net.Level != model.LevelOK {
		remediations = append(remediations, remediationInterfaces)
	}

	return model.HealthReport{
		CPU:          cpu,
		Memory:       mem,
		Interfaces:   net,
		Overall:      overall,
		Remediations: remediations,
	}
}

func evaluateCPU(load float64, cfg config.HealthConfig) model.Verdict {
	v := model.Verdict{Subsystem: "cpu"}
	switch {
	case load >= cfg.CPUErrorPercent:
		v.Level = model.LevelError
		v.Message = fmt.Sprintf("cpu load critical: %.0f%%", load)
	case load >= cfg.CPUWarnPercent:
		v.Level = model.LevelWarning
		v.Message = fmt.Sprintf("cpu load elevated: %.0f%%", load)
	default:
		v.Level = model.LevelOK
		v.Message = fmt.Sprintf("cpu load normal: %.0f%%", load)
	}
	return v
}

func evaluateMemory(usedPercent float64, cfg config.HealthConfig) model.Verdict {
	v := model.Verdict{Subsystem: "memory"}
	switch {
	case usedPercent >= cfg.MemoryErrorPercent:
		v.Level = model.LevelError
		v.Message = fmt.Sprintf("memory usage critical: %.0f%%", usedPercent)
	case usedPercent >= cfg.MemoryWarnPercent:
		v.Level = model.LevelWarning
		v.Message = fmt.Sprintf("memory usage elevated: %.0f%%", usedPercent)
	default:
		v.Level = model.LevelOK
		v.Message = fmt.Sprintf("memory usage normal: %.0f%%", usedPercent)
	}
	return v
}

func evaluateInterfaces(ifaces []model.InterfaceStat, cfg config.HealthConfig) model.Verdict {
	v := model.Verdict{Subsystem: "interfaces"}
	total := len(ifaces)
	if total == 0 {
		// Nothing to fault.
		v.Level = model.LevelOK
		v.Message = "no interfaces present"
		return v
	}

	running := 0
	for _, i := range ifaces {
		if i.Running && !i.Disabled {
			running++
		}
	}

	switch {
	case float64(running) < cfg.InterfaceErrorRatio*float64(total):
		v.Level = model.LevelError
		v.Message = fmt.Sprintf("few interfaces running: %d/%d", running, total)
	case float64(running) < cfg.InterfaceWarnRatio*float64(total):
		v.Level = model.LevelWarning
		v.Message = fmt.Sprintf("some interfaces down: %d/%d", running, total)
	default:
		v.Level = model.LevelOK
		v.Message = fmt.Sprintf("interfaces running: %d/%d", running, total)
	}
	return v
}
