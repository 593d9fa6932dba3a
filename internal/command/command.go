// Package command turns chat messages like "/webhook addgroup 123" into
// subscription, feed and server lifecycle operations. Every outcome,
// including bad arguments and storage failures, is rendered as a reply;
// a command never panics and never aborts the bot session.
package command

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/event"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/feed"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/stats"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/subscription"
)

// stopTimeout bounds how long "/webhook off" waits for in-flight requests.
const stopTimeout = 5 * time.Second

// Ingress controls the webhook HTTP listener (e.g. *server.Supervisor).
type Ingress interface {
	Start() error
	Stop(ctx context.Context) error
	Running() bool
	Addr() string
}

type commandFunc func(ctx context.Context, args []string) string

// Handler routes "/webhook …" and "/arxiv …" commands. feedSettings and
// feedStats may be nil when the feed module is disabled; "/arxiv" then
// answers with a short notice instead of a handler map lookup.
type Handler struct {
	ingress      Ingress
	table        *subscription.Table
	collector    *stats.Collector
	feedSettings *feed.Settings
	feedStats    *stats.Collector
	logger       *slog.Logger

	webhook map[string]commandFunc
	arxiv   map[string]commandFunc
}

// New wires a command handler. collector carries the webhook counters,
// feedStats the feed counters.
func New(ingress Ingress, table *subscription.Table, collector *stats.Collector, feedSettings *feed.Settings, feedStats *stats.Collector, logger *slog.Logger) *Handler {
	h := &Handler{
		ingress:      ingress,
		table:        table,
		collector:    collector,
		feedSettings: feedSettings,
		feedStats:    feedStats,
		logger:       logger,
	}
	h.webhook = map[string]commandFunc{
		"on":       h.webhookOn,
		"off":      h.webhookOff,
		"status":   h.webhookStatus,
		"stats":    h.webhookStats,
		"addgroup": h.webhookAddGroup,
		"delgroup": h.webhookDelGroup,
		"groups":   h.webhookGroups,
		"addevent": h.webhookAddEvent,
		"delevent": h.webhookDelEvent,
		"events":   h.webhookEvents,
		"help":     h.help(webhookUsage),
	}
	h.arxiv = map[string]commandFunc{
		"addkeyword": h.arxivAddKeyword,
		"delkeyword": h.arxivDelKeyword,
		"keywords":   h.arxivKeywords,
		"addgroup":   h.arxivAddGroup,
		"delgroup":   h.arxivDelGroup,
		"groups":     h.arxivGroups,
		"interval":   h.arxivInterval,
		"status":     h.arxivStatus,
		"help":       h.help(arxivUsage),
	}
	return h
}

// Handle runs one command. handled is false when the text is not addressed
// to this handler at all, so the caller can ignore ordinary chatter.
func (h *Handler) Handle(ctx context.Context, text string) (reply string, handled bool) {
	fields := strings.Fields(text)
	if len(fields) == 0 {
		return "", false
	}

	var cmds map[string]commandFunc
	var usage string
	switch fields[0] {
	case "/webhook":
		cmds, usage = h.webhook, webhookUsage
	case "/arxiv":
		if h.feedSettings == nil {
			return "❌ The arXiv feed module is disabled", true
		}
		cmds, usage = h.arxiv, arxivUsage
	default:
		return "", false
	}

	if len(fields) == 1 {
		return usage, true
	}
	cmd, ok := cmds[fields[1]]
	if !ok {
		return fmt.Sprintf("Unknown subcommand %q\n\n%s", fields[1], usage), true
	}
	h.logger.Info("command received", "command", fields[0], "subcommand", fields[1])
	return cmd(ctx, fields[2:]), true
}

// --- /webhook ---

func (h *Handler) webhookOn(ctx context.Context, args []string) string {
	if h.ingress.Running() {
		return "✅ Server is already running"
	}
	if err := h.ingress.Start(); err != nil {
		return "❌ Failed to start server: " + err.Error()
	}
	return fmt.Sprintf("✅ Server started on %s\nTarget groups: %s",
		h.ingress.Addr(), joinOr(h.table.Groups(), "(none)"))
}

func (h *Handler) webhookOff(ctx context.Context, args []string) string {
	if !h.ingress.Running() {
		return "Server is not running"
	}
	stopCtx, cancel := context.WithTimeout(ctx, stopTimeout)
	defer cancel()
	if err := h.ingress.Stop(stopCtx); err != nil {
		return "❌ Failed to stop server: " + err.Error()
	}
	return "✅ Server stopped"
}

func (h *Handler) webhookStatus(ctx context.Context, args []string) string {
	if !h.ingress.Running() {
		return "Status: 🔴 Stopped"
	}
	var b strings.Builder
	b.WriteString("Status: 🟢 Running\n")
	fmt.Fprintf(&b, "Address: %s\n", h.ingress.Addr())
	fmt.Fprintf(&b, "Groups: %s\n", joinOr(h.table.Groups(), "(none)"))
	fmt.Fprintf(&b, "Requests: %d", h.collector.Snapshot().Total)
	return b.String()
}

func (h *Handler) webhookStats(ctx context.Context, args []string) string {
	snap := h.collector.Snapshot()
	var b strings.Builder
	b.WriteString("📊 Statistics:\n")
	fmt.Fprintf(&b, "Total requests: %d\n\n", snap.Total)
	b.WriteString("Events received:")
	for _, kc := range sortedByCount(snap.PerKind) {
		fmt.Fprintf(&b, "\n  %s: %d", kc.kind, kc.count)
	}
	return b.String()
}

func (h *Handler) webhookAddGroup(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /webhook addgroup <group-id>"
	}
	id, errReply := groupID(args[0])
	if errReply != "" {
		return errReply
	}
	added, err := h.table.AddGroup(id)
	if err != nil {
		return "❌ " + err.Error()
	}
	if !added {
		return fmt.Sprintf("Group %s is already registered", id)
	}
	return fmt.Sprintf("✅ Group %s added", id)
}

func (h *Handler) webhookDelGroup(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /webhook delgroup <group-id>"
	}
	id, errReply := groupID(args[0])
	if errReply != "" {
		return errReply
	}
	removed, err := h.table.RemoveGroup(id)
	if err != nil {
		return "❌ " + err.Error()
	}
	if !removed {
		return fmt.Sprintf("Group %s is not registered", id)
	}
	return fmt.Sprintf("✅ Group %s removed", id)
}

func (h *Handler) webhookGroups(ctx context.Context, args []string) string {
	groups := h.table.Groups()
	if len(groups) == 0 {
		return "No groups registered"
	}
	return "Groups: " + strings.Join(groups, ", ")
}

func (h *Handler) webhookAddEvent(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /webhook addevent <kind>"
	}
	added, err := h.table.AddEvent(args[0])
	if err != nil {
		if errors.Is(err, subscription.ErrUnknownKind) {
			return fmt.Sprintf("❌ Unknown event kind %q\nValid kinds: %s", args[0], kindTags())
		}
		return "❌ " + err.Error()
	}
	if !added {
		return fmt.Sprintf("Event %s is already enabled", args[0])
	}
	return fmt.Sprintf("✅ Event %s enabled", args[0])
}

func (h *Handler) webhookDelEvent(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /webhook delevent <kind>"
	}
	removed, err := h.table.RemoveEvent(args[0])
	if err != nil {
		if errors.Is(err, subscription.ErrUnknownKind) {
			return fmt.Sprintf("❌ Unknown event kind %q\nValid kinds: %s", args[0], kindTags())
		}
		return "❌ " + err.Error()
	}
	if !removed {
		return fmt.Sprintf("Event %s is not enabled", args[0])
	}
	return fmt.Sprintf("✅ Event %s disabled", args[0])
}

func (h *Handler) webhookEvents(ctx context.Context, args []string) string {
	kinds := h.table.Events()
	if len(kinds) == 0 {
		return "No events enabled"
	}
	tags := make([]string, 0, len(kinds))
	for _, k := range kinds {
		tags = append(tags, string(k))
	}
	return "Enabled events: " + strings.Join(tags, ", ")
}

// --- /arxiv ---

func (h *Handler) arxivAddKeyword(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /arxiv addkeyword <keyword>"
	}
	kw := strings.Join(args, " ")
	added, err := h.feedSettings.AddKeyword(kw)
	if err != nil {
		return "❌ " + err.Error()
	}
	if !added {
		return fmt.Sprintf("Keyword %q is already configured", strings.ToLower(kw))
	}
	return fmt.Sprintf("✅ Keyword %q added", strings.ToLower(kw))
}

func (h *Handler) arxivDelKeyword(ctx context.Context, args []string) string {
	if len(args) == 0 {
		return "Usage: /arxiv delkeyword <keyword>"
	}
	kw := strings.Join(args, " ")
	removed, err := h.feedSettings.RemoveKeyword(kw)
	if err != nil {
		return "❌ " + err.Error()
	}
	if !removed {
		return fmt.Sprintf("Keyword %q is not configured", strings.ToLower(kw))
	}
	return fmt.Sprintf("✅ Keyword %q removed", strings.ToLower(kw))
}

func (h *Handler) arxivKeywords(ctx context.Context, args []string) string {
	keywords := h.feedSettings.Keywords()
	if len(keywords) == 0 {
		return "No keywords configured; every entry matches"
	}
	return "Keywords: " + strings.Join(keywords, ", ")
}

func (h *Handler) arxivAddGroup(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /arxiv addgroup <group-id>"
	}
	id, errReply := groupID(args[0])
	if errReply != "" {
		return errReply
	}
	added, err := h.feedSettings.AddGroup(id)
	if err != nil {
		return "❌ " + err.Error()
	}
	if !added {
		return fmt.Sprintf("Group %s is already registered", id)
	}
	return fmt.Sprintf("✅ Group %s added", id)
}

func (h *Handler) arxivDelGroup(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /arxiv delgroup <group-id>"
	}
	id, errReply := groupID(args[0])
	if errReply != "" {
		return errReply
	}
	removed, err := h.feedSettings.RemoveGroup(id)
	if err != nil {
		return "❌ " + err.Error()
	}
	if !removed {
		return fmt.Sprintf("Group %s is not registered", id)
	}
	return fmt.Sprintf("✅ Group %s removed", id)
}

func (h *Handler) arxivGroups(ctx context.Context, args []string) string {
	groups := h.feedSettings.Groups()
	if len(groups) == 0 {
		return "No groups registered"
	}
	return "Groups: " + strings.Join(groups, ", ")
}

func (h *Handler) arxivInterval(ctx context.Context, args []string) string {
	if len(args) != 1 {
		return "Usage: /arxiv interval <duration> (e.g. 30m, 2h)"
	}
	d, err := time.ParseDuration(args[0])
	if err != nil {
		return fmt.Sprintf("❌ Invalid duration %q (try 30m or 2h)", args[0])
	}
	if err := h.feedSettings.SetInterval(d); err != nil {
		return "❌ " + err.Error()
	}
	return fmt.Sprintf("✅ Poll interval set to %s; applies after the current sleep", d)
}

func (h *Handler) arxivStatus(ctx context.Context, args []string) string {
	doc := h.feedSettings.Snapshot()
	var b strings.Builder
	b.WriteString("📡 arXiv feed:\n")
	fmt.Fprintf(&b, "Interval: %s\n", doc.Interval)
	fmt.Fprintf(&b, "Keywords: %s\n", joinOr(doc.Keywords, "(all entries match)"))
	fmt.Fprintf(&b, "Groups: %s\n", joinOr(doc.Groups, "(none)"))
	fmt.Fprintf(&b, "Seen entries: %d\n", len(doc.Seen))
	fmt.Fprintf(&b, "Pushed entries: %d", h.feedStats.Snapshot().Total)
	return b.String()
}

// --- helpers ---

func (h *Handler) help(usage string) commandFunc {
	return func(ctx context.Context, args []string) string {
		return usage
	}
}

// groupID validates a QQ group id. The second return value is a ready
// reply when the id is rejected.
func groupID(arg string) (string, string) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return "", fmt.Sprintf("❌ %q is not a numeric group id", arg)
	}
	return strconv.FormatInt(id, 10), ""
}

func joinOr(items []string, empty string) string {
	if len(items) == 0 {
		return empty
	}
	return strings.Join(items, ", ")
}

func kindTags() string {
	kinds := event.Kinds()
	tags := make([]string, 0, len(kinds))
	for _, k := range kinds {
		tags = append(tags, string(k))
	}
	return strings.Join(tags, ", ")
}

type kindCount struct {
	kind  string
	count uint64
}

// sortedByCount orders counters busiest first, ties alphabetically.
func sortedByCount(perKind map[string]uint64) []kindCount {
	out := make([]kindCount, 0, len(perKind))
	for k, n := range perKind {
		out = append(out, kindCount{kind: k, count: n})
	}
	slices.SortFunc(out, func(a, b kindCount) int {
		if c := cmp.Compare(b.count, a.count); c != 0 {
			return c
		}
		return cmp.Compare(a.kind, b.kind)
	})
	return out
}

const webhookUsage = `🤖 Webhook commands:

/webhook on - Start the webhook server
/webhook off - Stop the webhook server
/webhook status - Show server status
/webhook stats - Show request statistics
/webhook addgroup <id> - Register a target group
/webhook delgroup <id> - Deregister a target group
/webhook groups - List target groups
/webhook addevent <kind> - Enable an event kind
/webhook delevent <kind> - Disable an event kind
/webhook events - List enabled event kinds
/webhook help - Show this help`

const arxivUsage = `📡 arXiv feed commands:

/arxiv addkeyword <kw> - Add a filter keyword
/arxiv delkeyword <kw> - Remove a filter keyword
/arxiv keywords - List filter keywords
/arxiv addgroup <id> - Register a target group
/arxiv delgroup <id> - Deregister a target group
/arxiv groups - List target groups
/arxiv interval <duration> - Set the poll interval (e.g. 30m)
/arxiv status - Show feed status
/arxiv help - Show this help`
