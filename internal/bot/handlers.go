package bot

import (
	"bytes"
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"hotspotctl/internal/cards"
	"hotspotctl/internal/device"
	"hotspotctl/internal/health"
	"hotspotctl/internal/model"
)

const helpText = `Commands:
/login host:port:user:pass[:tls] — connect to a router
/login N — connect to saved device N
/logout — disconnect
/saved — list saved devices
/status — system resources
/health — run diagnostics
/interfaces — interface counters
/users — hotspot users
/active — active hotspot sessions
/adduser name:pass[:profile[:dataMB[:hours]]] — add a hotspot user
/deluser name — remove a hotspot user
/cards N[:prefix[:profile[:dataMB[:hours[:days]]]]] — generate access cards
/ping host — device-side ping
/trace host — device-side traceroute
/neighbors — discovered neighbors
/reboot — restart the router
/log — recent operations`

// opCtx bounds one device call; RouterOS commands that hang (dead link,
// device mid-reboot) surface as a timeout instead of a stuck chat.
func (b *Bot) opCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, time.Duration(b.cfg.Device.CallTimeoutSec)*time.Second)
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	if err := b.store.EnsureUser(userID, msg.From.UserName, msg.From.FirstName); err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("ensure user failed")
	}
	for _, allowed := range b.cfg.Bot.AllowedUsers {
		if allowed == userID {
			if err := b.store.Authorize(userID); err != nil {
				b.log.Error().Err(err).Int64("user_id", userID).Msg("authorize failed")
			}
			break
		}
	}

	if !msg.IsCommand() {
		b.reply(msg.Chat.ID, "I only understand commands. Try /start.")
		return
	}

	command := msg.Command()
	args := strings.TrimSpace(msg.CommandArguments())

	if command == "start" || command == "help" {
		b.reply(msg.Chat.ID, "Router management bot.\n\n"+helpText)
		return
	}

	authorized, err := b.store.IsAuthorized(userID)
	if err != nil {
		b.log.Error().Err(err).Int64("user_id", userID).Msg("authorization lookup failed")
		b.reply(msg.Chat.ID, "Internal error, try again later.")
		return
	}
	if !authorized {
		b.reply(msg.Chat.ID, "You are not authorized to use this bot.")
		return
	}

	switch command {
	case "login":
		b.handleLogin(ctx, msg.Chat.ID, userID, args)
	case "logout":
		b.sessions.Remove(userID)
		b.reply(msg.Chat.ID, "Disconnected.")
	case "saved":
		b.handleSaved(msg.Chat.ID, userID)
	case "status":
		b.handleStatus(ctx, msg.Chat.ID, userID)
	case "health":
		b.handleHealth(ctx, msg.Chat.ID, userID)
	case "interfaces":
		b.handleInterfaces(ctx, msg.Chat.ID, userID)
	case "users":
		b.handleUsers(ctx, msg.Chat.ID, userID)
	case "active":
		b.handleActive(ctx, msg.Chat.ID, userID)
	case "adduser":
		b.handleAddUser(ctx, msg.Chat.ID, userID, args)
	case "deluser":
		b.handleDelUser(ctx, msg.Chat.ID, userID, args)
	case "cards":
		b.handleCards(ctx, msg.Chat.ID, userID, args)
	case "ping":
		b.handlePing(ctx, msg.Chat.ID, userID, args)
	case "trace":
		b.handleTrace(ctx, msg.Chat.ID, userID, args)
	case "neighbors":
		b.handleNeighbors(ctx, msg.Chat.ID, userID)
	case "reboot":
		b.handleReboot(ctx, msg.Chat.ID, userID)
	case "log":
		b.handleLog(msg.Chat.ID, userID)
	default:
		b.reply(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

// session returns the user's live session or replies with a hint.
func (b *Bot) session(chatID, userID int64) *device.Session {
	s := b.sessions.Get(userID)
	if s == nil {
		b.reply(chatID, "Not connected. Use /login first.")
	}
	return s
}

func (b *Bot) audit(userID int64, kind, details string, success bool, errText string) {
	if err := b.store.LogOperation(userID, kind, details, success, errText); err != nil {
		b.log.Error().Err(err).Str("kind", kind).Msg("audit write failed")
	}
}

// parseEndpoint understands "host:port:user:pass" with an optional trailing
// ":tls". The password may not contain colons.
func parseEndpoint(arg string, defaultPort, defaultTLSPort int) (model.Endpoint, error) {
	parts := strings.Split(arg, ":")
	if len(parts) < 4 || len(parts) > 5 {
		return model.Endpoint{}, fmt.Errorf("expected host:port:user:pass[:tls]")
	}

	port, err := strconv.Atoi(parts[1])
	if err != nil || port < 1 || port > 65535 {
		return model.Endpoint{}, fmt.Errorf("invalid port %q", parts[1])
	}

	ep := model.Endpoint{
		Host:     parts[0],
		Port:     port,
		Username: parts[2],
		Password: parts[3],
	}
	if ep.Host == "" || ep.Username == "" {
		return model.Endpoint{}, fmt.Errorf("host and user must not be empty")
	}
	if len(parts) == 5 {
		switch strings.ToLower(parts[4]) {
		case "tls", "ssl":
			ep.UseTLS = true
			if ep.Port == defaultPort {
				ep.Port = defaultTLSPort
			}
		default:
			return model.Endpoint{}, fmt.Errorf("unknown flag %q", parts[4])
		}
	}
	return ep, nil
}

func (b *Bot) handleLogin(ctx context.Context, chatID, userID int64, args string) {
	if args == "" {
		b.reply(chatID, "Usage: /login host:port:user:pass[:tls] or /login N for a saved device.")
		return
	}

	var ep model.Endpoint
	fromStore := false
	if id, err := strconv.ParseInt(args, 10, 64); err == nil {
		ep, err = b.store.Device(userID, id)
		if err != nil {
			b.reply(chatID, fmt.Sprintf("Saved device %d not found.", id))
			return
		}
		fromStore = true
	} else {
		ep, err = parseEndpoint(args, b.cfg.Device.DefaultPort, b.cfg.Device.DefaultTLSPort)
		if err != nil {
			b.reply(chatID, "Could not read that: "+err.Error())
			return
		}
	}

	s := device.New(ep)
	callCtx, cancel := b.opCtx(ctx)
	defer cancel()
	if !s.Connect(callCtx) {
		b.audit(userID, "login", ep.Addr(), false, "connect failed")
		b.reply(chatID, fmt.Sprintf("Could not connect to %s. Check address and credentials.", ep.Addr()))
		return
	}

	b.sessions.Put(userID, s)
	// A /login N endpoint already has its row; re-saving it would grow the
	// device list by one duplicate per login.
	if !fromStore {
		if _, err := b.store.SaveDevice(userID, "", ep); err != nil {
			b.log.Error().Err(err).Msg("save device failed")
		}
	}
	b.audit(userID, "login", ep.Addr(), true, "")
	b.reply(chatID, fmt.Sprintf("Connected to %s.", ep.Addr()))
}

func (b *Bot) handleSaved(chatID, userID int64) {
	devices, err := b.store.Devices(userID)
	if err != nil {
		b.log.Error().Err(err).Msg("list devices failed")
		b.reply(chatID, "Internal error, try again later.")
		return
	}
	b.reply(chatID, renderSavedDevices(devices))
}

func (b *Bot) handleStatus(ctx context.Context, chatID, userID int64) {
	s := b.session(chatID, userID)
	if s == nil {
		return
	}
	callCtx, cancel := b.opCtx(ctx)
	defer cancel()

	snap, ok := s.SystemInfo(callCtx)
	if !ok {
		b.audit(userID, "status", s.Endpoint().Addr(), false, "device call failed")
		b.reply(chatID, "Could not read device status.")
		return
	}
	b.audit(userID, "status", s.Endpoint().Addr(), true, "")
	b.reply(chatID, renderStatus(s.Endpoint().Addr(), snap))
}

func (b *Bot) handleHealth(ctx context.Context, chatID, userID int64) {
	s := b.session(chatID, userID)
	if s == nil {
		return
	}
	callCtx, cancel := b.opCtx(ctx)
	defer cancel()

	snap, ok := s.SystemInfo(callCtx)
	if !ok {
		b.audit(userID, "health", s.Endpoint().Addr(), false, "device call failed")
		b.reply(chatID, "Could not read device status.")
		return
	}
	ifaces := s.Interfaces(callCtx)

	report := health.Evaluate(snap, ifaces, b.cfg.Health)
	b.audit(userID, "health", fmt.Sprintf("%s overall=%s", s.Endpoint().Addr(), report.Overall), true, "")
	b.reply(chatID, renderHealth(report))
}

func (b *Bot) handleInterfaces(ctx context.Context, chatID, userID int64) {
	s := b.session(chatID, userID)
	if s == nil {
		return
	}
	callCtx, cancel := b.opCtx(ctx)
	defer cancel()
	b.reply(chatID, renderInterfaces(s.Interfaces(callCtx)))
}

func (b *Bot) handleUsers(ctx context.Context, chatID, userID int64) {
	s := b.session(chatID, userID)
	if s == nil {
		return
	}
	callCtx, cancel := b.opCtx(ctx)
	defer cancel()
	b.reply(chatID, renderUsers(s.HotspotUsers(callCtx)))
}

func (b *Bot) handleActive(ctx context.Context, chatID, userID int64) {
	s := b.session(chatID, userID)
	if s == nil {
		return
	}
	callCtx, cancel := b.opCtx(ctx)
	defer cancel()
	b.reply(chatID, renderActive(s.ActiveHotspotUsers(callCtx)))
}

// parseHotspotUser understands "name:pass[:profile[:dataMB[:hours]]]".
func parseHotspotUser(arg string) (model.HotspotUser, error) {
	parts := strings.Split(arg, ":")
	if len(parts) < 2 || len(parts) > 5 {
		return model.HotspotUser{}, fmt.Errorf("expected name:pass[:profile[:dataMB[:hours]]]")
	}
	if parts[0] == "" || parts[1] == "" {
		return model.HotspotUser{}, fmt.Errorf("name and password must not be empty")
	}

	u := model.HotspotUser{Name: parts[0], Password: parts[1], Profile: "default", Server: "all"}
	if len(parts) > 2 && parts[2] != "" {
		u.Profile = parts[2]
	}
	if len(parts) > 3 && parts[3] != "" {
		mb, err := strconv.Atoi(parts[3])
		if err != nil || mb < 0 {
			return model.HotspotUser{}, fmt.Errorf("invalid data quota %q", parts[3])
		}
		if mb > 0 {
			u.LimitBytesTotal = strconv.Itoa(mb) + "M"
		}
	}
	if len(parts) > 4 && parts[4] != "" {
		hours, err := strconv.Atoi(parts[4])
		if err != nil || hours < 0 {
			return model.HotspotUser{}, fmt.Errorf("invalid time quota %q", parts[4])
		}
		if hours > 0 {
			u.LimitUptime = strconv.Itoa(hours) + "h"
		}
	}
	return u, nil
}

func (b *Bot) handleAddUser(ctx context.Context, chatID, userID int64, args string) {
	u, err := parseHotspotUser(args)
	if err != nil {
		b.reply(chatID, "Could not read that: "+err.Error())
		return
	}

	s := b.session(chatID, userID)
	if s == nil {
		return
	}
	callCtx, cancel := b.opCtx(ctx)
	defer cancel()

	if !s.AddHotspotUser(callCtx, u) {
		b.audit(userID, "adduser", u.Name, false, "device call failed")
		b.reply(chatID, fmt.Sprintf("Could not add user %s.", u.Name))
		return
	}
	b.audit(userID, "adduser", u.Name, true, "")
	b.reply(chatID, fmt.Sprintf("User %s added (profile %s).", u.Name, u.Profile))
}

func (b *Bot) handleDelUser(ctx context.Context, chatID, userID int64, args string) {
	name := strings.TrimSpace(args)
	if name == "" {
		b.reply(chatID, "Usage: /deluser name")
		return
	}

	s := b.session(chatID, userID)
	if s == nil {
		return
	}
	callCtx, cancel := b.opCtx(ctx)
	defer cancel()

	if !s.RemoveHotspotUser(callCtx, name) {
		b.audit(userID, "deluser", name, false, "not found or device call failed")
		b.reply(chatID, fmt.Sprintf("Could not remove user %s.", name))
		return
	}
	b.audit(userID, "deluser", name, true, "")
	b.reply(chatID, fmt.Sprintf("User %s removed.", name))
}

// parseBatchSpec understands "N[:prefix[:profile[:dataMB[:hours[:days]]]]]".
// Validity defaults to 30 days.
func parseBatchSpec(arg string) (cards.BatchSpec, error) {
	parts := strings.Split(arg, ":")
	if len(parts) < 1 || len(parts) > 6 || parts[0] == "" {
		return cards.BatchSpec{}, fmt.Errorf("expected N[:prefix[:profile[:dataMB[:hours[:days]]]]]")
	}

	count, err := strconv.Atoi(parts[0])
	if err != nil {
		return cards.BatchSpec{}, fmt.Errorf("invalid count %q", parts[0])
	}
	spec := cards.BatchSpec{Count: count, ValidityDays: 30}
	if len(parts) > 1 {
		spec.Prefix = parts[1]
	}
	if len(parts) > 2 {
		spec.Profile = parts[2]
	}
	for i, dst := range []*int{&spec.DataQuotaMB, &spec.TimeQuotaHours, &spec.ValidityDays} {
		idx := i + 3
		if len(parts) <= idx || parts[idx] == "" {
			continue
		}
		n, err := strconv.Atoi(parts[idx])
		if err != nil {
			return cards.BatchSpec{}, fmt.Errorf("invalid number %q", parts[idx])
		}
		*dst = n
	}
	return spec, nil
}

func (b *Bot) handleCards(ctx context.Context, chatID, userID int64, args string) {
	spec, err := parseBatchSpec(args)
	if err != nil {
		b.reply(chatID, "Could not read that: "+err.Error())
		return
	}

	s := b.session(chatID, userID)
	if s == nil {
		return
	}

	batch, err := b.generator.Generate(spec)
	if err != nil {
		b.audit(userID, "cards", args, false, err.Error())
		b.reply(chatID, "Could not generate cards: "+err.Error())
		return
	}

	// The timeout envelope is per device call; one shared deadline would
	// starve the tail of a large batch on a slow link.
	provisioned := 0
	for _, record := range cards.ToDeviceRecords(batch.Cards) {
		callCtx, cancel := b.opCtx(ctx)
		ok := s.AddHotspotUser(callCtx, record)
		cancel()
		if ok {
			provisioned++
		}
	}

	if err := b.store.SaveCards(userID, batch.ID, batch.Cards); err != nil {
		b.log.Error().Err(err).Str("batch_id", batch.ID).Msg("save cards failed")
	}
	b.audit(userID, "cards", fmt.Sprintf("batch=%s count=%d provisioned=%d", batch.ID, len(batch.Cards), provisioned), true, "")

	var csv bytes.Buffer
	if err := cards.WriteCSV(&csv, batch.Cards); err != nil {
		b.log.Error().Err(err).Msg("csv export failed")
		b.reply(chatID, batch.Summary())
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  "cards-" + batch.ID + ".csv",
		Bytes: csv.Bytes(),
	})
	doc.Caption = fmt.Sprintf("%s, %d provisioned on device", batch.Summary(), provisioned)
	if _, err := b.api.Send(doc); err != nil {
		b.log.Error().Err(err).Msg("send document failed")
		b.reply(chatID, renderCards(batch.Cards))
	}
}

func (b *Bot) handlePing(ctx context.Context, chatID, userID int64, args string) {
	target := strings.TrimSpace(args)
	if target == "" {
		b.reply(chatID, "Usage: /ping host")
		return
	}

	s := b.session(chatID, userID)
	if s == nil {
		return
	}
	callCtx, cancel := b.opCtx(ctx)
	defer cancel()

	outcome, ok := s.Ping(callCtx, target, b.cfg.Device.PingCount)
	if !ok {
		b.reply(chatID, fmt.Sprintf("Ping to %s failed.", target))
		return
	}
	b.reply(chatID, outcome.Log)
}

func (b *Bot) handleTrace(ctx context.Context, chatID, userID int64, args string) {
	target := strings.TrimSpace(args)
	if target == "" {
		b.reply(chatID, "Usage: /trace host")
		return
	}

	s := b.session(chatID, userID)
	if s == nil {
		return
	}
	callCtx, cancel := b.opCtx(ctx)
	defer cancel()

	outcome, ok := s.Traceroute(callCtx, target, b.cfg.Device.TracerouteHops)
	if !ok {
		b.reply(chatID, fmt.Sprintf("Traceroute to %s failed.", target))
		return
	}
	b.reply(chatID, outcome.Log)
}

func (b *Bot) handleNeighbors(ctx context.Context, chatID, userID int64) {
	s := b.session(chatID, userID)
	if s == nil {
		return
	}
	callCtx, cancel := b.opCtx(ctx)
	defer cancel()
	b.reply(chatID, renderNeighbors(s.Neighbors(callCtx)))
}

func (b *Bot) handleReboot(ctx context.Context, chatID, userID int64) {
	s := b.session(chatID, userID)
	if s == nil {
		return
	}
	addr := s.Endpoint().Addr()
	callCtx, cancel := b.opCtx(ctx)
	defer cancel()

	if !s.Reboot(callCtx) {
		b.audit(userID, "reboot", addr, false, "device call failed")
		b.reply(chatID, "Reboot command failed.")
		return
	}

	// The transport dies with the device; drop the session so the next
	// command asks for a fresh /login.
	b.sessions.Remove(userID)
	b.audit(userID, "reboot", addr, true, "")
	b.reply(chatID, fmt.Sprintf("Reboot issued to %s. Reconnect with /login once it is back.", addr))
}

func (b *Bot) handleLog(chatID, userID int64) {
	entries, err := b.store.OperationLog(userID, 20)
	if err != nil {
		b.log.Error().Err(err).Msg("operation log lookup failed")
		b.reply(chatID, "Internal error, try again later.")
		return
	}
	b.reply(chatID, renderOperationLog(entries))
}
