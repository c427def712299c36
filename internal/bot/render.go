package bot

import (
	"fmt"
	"strings"

	"hotspotctl/internal/model"
)

// Renderers turn typed results into plain-text chat replies. Telegram mobile
// clients use a proportional font, so layout relies on one-line-per-fact
// rather than column alignment.

func renderStatus(name string, snap model.SystemSnapshot) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Device: %s\n", name)
	if snap.BoardName != "" {
		fmt.Fprintf(&b, "Board: %s (%s)\n", snap.BoardName, snap.Architecture)
	}
	if snap.FirmwareVersion != "" {
		fmt.Fprintf(&b, "RouterOS: %s\n", snap.FirmwareVersion)
	}
	fmt.Fprintf(&b, "Uptime: %s\n", snap.Uptime)
	fmt.Fprintf(&b, "CPU load: %.0f%%\n", snap.CPULoadPercent)
	fmt.Fprintf(&b, "Memory: %.1f%% used (%d/%d bytes free)\n",
		snap.MemoryUsagePercent(), snap.MemoryFree, snap.MemoryTotal)
	if snap.TemperatureC != 0 {
		fmt.Fprintf(&b, "Temperature: %dC\n", snap.TemperatureC)
	}
	if snap.Voltage != 0 {
		fmt.Fprintf(&b, "Voltage: %.1fV\n", snap.Voltage)
	}
	return strings.TrimRight(b.String(), "\n")
}

func levelIcon(l model.Level) string {
	switch l {
	case model.LevelError:
		return "❌"
	case model.LevelWarning:
		return "⚠️"
	default:
		return "✅"
	}
}

func renderHealth(report model.HealthReport) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Health check: %s %s\n\n", levelIcon(report.Overall), strings.ToUpper(string(report.Overall)))
	for _, v := range []model.Verdict{report.CPU, report.Memory, report.Interfaces} {
		fmt.Fprintf(&b, "%s %s: %s\n", levelIcon(v.Level), v.Subsystem, v.Message)
	}
	if len(report.Remediations) > 0 {
		b.WriteString("\nSuggested actions:\n")
		for _, r := range report.Remediations {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderInterfaces(ifaces []model.InterfaceStat) string {
	if len(ifaces) == 0 {
		return "No interfaces reported."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Interfaces (%d):\n", len(ifaces))
	for _, i := range ifaces {
		state := "down"
		if i.Disabled {
			state = "disabled"
		} else if i.Running {
			state = "up"
		}
		fmt.Fprintf(&b, "\n%s (%s) — %s\n", i.Name, i.Type, state)
		fmt.Fprintf(&b, "  rx %.1f MB / tx %.1f MB\n", i.RxMegabytes(), i.TxMegabytes())
		if i.RxErrors > 0 || i.TxErrors > 0 {
			fmt.Fprintf(&b, "  errors: rx %d / tx %d\n", i.RxErrors, i.TxErrors)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderUsers(users []model.HotspotUser) string {
	if len(users) == 0 {
		return "No hotspot users configured."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Hotspot users (%d):\n", len(users))
	for _, u := range users {
		state := ""
		if u.Disabled {
			state = " [disabled]"
		}
		fmt.Fprintf(&b, "\n%s%s (profile %s)\n", u.Name, state, u.Profile)
		if u.LimitBytesTotal != "" {
			fmt.Fprintf(&b, "  data limit: %s\n", u.LimitBytesTotal)
		}
		if u.LimitUptime != "" {
			fmt.Fprintf(&b, "  time limit: %s\n", u.LimitUptime)
		}
		if u.Comment != "" {
			fmt.Fprintf(&b, "  %s\n", u.Comment)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderActive(users []model.HotspotUser) string {
	if len(users) == 0 {
		return "No active hotspot sessions."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Active sessions (%d):\n", len(users))
	for _, u := range users {
		fmt.Fprintf(&b, "\n%s — %s\n", u.Name, u.IPAddress)
		fmt.Fprintf(&b, "  mac %s, up %s\n", u.MACAddress, u.Uptime)
		fmt.Fprintf(&b, "  traffic: %.1f MB in / %.1f MB out\n",
			float64(u.BytesIn)/(1024*1024), float64(u.BytesOut)/(1024*1024))
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderCards(cardList []model.AccessCard) string {
	if len(cardList) == 0 {
		return "No cards."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Cards (%d):\n", len(cardList))
	for _, c := range cardList {
		fmt.Fprintf(&b, "\n%s / %s\n", c.Username, c.Password)
		fmt.Fprintf(&b, "  %s, %s, valid %d days\n", c.DataQuota, c.TimeQuota, c.ValidityDays)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSavedDevices(devices []model.SavedDevice) string {
	if len(devices) == 0 {
		return "No saved devices. Use /login to connect and save one."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Saved devices (%d):\n", len(devices))
	for _, d := range devices {
		proto := "api"
		if d.UseTLS {
			proto = "api-ssl"
		}
		fmt.Fprintf(&b, "\n#%d %s\n", d.ID, d.Name)
		fmt.Fprintf(&b, "  %s@%s:%d (%s)\n", d.Username, d.Host, d.Port, proto)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderNeighbors(neighbors []model.Neighbor) string {
	if len(neighbors) == 0 {
		return "No neighbors discovered."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Neighbors (%d):\n", len(neighbors))
	for _, n := range neighbors {
		name := n.Identity
		if name == "" {
			name = "(unknown)"
		}
		fmt.Fprintf(&b, "\n%s\n", name)
		fmt.Fprintf(&b, "  %s / %s\n", n.IPAddress, n.MACAddress)
		if n.Platform != "" {
			fmt.Fprintf(&b, "  %s\n", n.Platform)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderOperationLog(entries []model.OperationLog) string {
	if len(entries) == 0 {
		return "No operations logged."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Recent operations (%d):\n", len(entries))
	for _, e := range entries {
		mark := "ok"
		if !e.Success {
			mark = "failed"
		}
		fmt.Fprintf(&b, "\n%s  %s — %s\n", e.CreatedAt.Format("2006-01-02 15:04"), e.Kind, mark)
		if e.Details != "" {
			fmt.Fprintf(&b, "  %s\n", e.Details)
		}
		if e.Error != "" {
			fmt.Fprintf(&b, "  %s\n", e.Error)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
