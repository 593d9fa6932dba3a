// Package bot receives OneBot v11 HTTP event callbacks and feeds group
// messages through the command handler. It listens on its own address,
// independent of the webhook ingress, so "/webhook off" can always be
// undone from chat.
package bot

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/HydroRoll-Team/hydroroll-webhook/internal/command"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/delivery"
	"github.com/HydroRoll-Team/hydroroll-webhook/internal/server"
)

// maxBodySize caps a callback body; chat events are small.
const maxBodySize = 256 << 10

// callbackEvent is the slice of a OneBot v11 event this listener cares
// about. Unknown fields are ignored.
type callbackEvent struct {
	PostType    string `json:"post_type"`
	MessageType string `json:"message_type"`
	GroupID     int64  `json:"group_id"`
	UserID      int64  `json:"user_id"`
	RawMessage  string `json:"raw_message"`
}

// Listener routes group messages to the command handler and sends replies
// back to the originating group. An empty admins list allows everyone.
type Listener struct {
	commands *command.Handler
	sender   delivery.Sender
	admins   map[int64]struct{}
	router   chi.Router
	logger   *slog.Logger
}

// New wires the callback listener.
func New(commands *command.Handler, sender delivery.Sender, admins []int64, logger *slog.Logger) *Listener {
	l := &Listener{
		commands: commands,
		sender:   sender,
		admins:   make(map[int64]struct{}, len(admins)),
		logger:   logger,
	}
	for _, id := range admins {
		l.admins[id] = struct{}{}
	}

	r := chi.NewRouter()
	r.Use(server.RequestID)
	r.Use(server.Logging(logger))
	r.Use(server.Recovery(logger))
	r.Post("/", l.handleEvent)
	l.router = r
	return l
}

// ServeHTTP implements http.Handler.
func (l *Listener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	l.router.ServeHTTP(w, r)
}

// handleEvent always answers 204: the OneBot implementation only needs the
// callback acknowledged, replies travel through the delivery channel.
func (l *Listener) handleEvent(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		http.Error(w, "reading body", http.StatusBadRequest)
		return
	}
	var ev callbackEvent
	if err := json.Unmarshal(body, &ev); err != nil {
		http.Error(w, "malformed event", http.StatusBadRequest)
		return
	}

	if ev.PostType != "message" || ev.MessageType != "group" {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if !l.allowed(ev.UserID) {
		l.logger.Debug("group message from outside the admin list ignored",
			"user", ev.UserID, "group", ev.GroupID)
		w.WriteHeader(http.StatusNoContent)
		return
	}

	reply, handled := l.commands.Handle(r.Context(), ev.RawMessage)
	if !handled {
		w.WriteHeader(http.StatusNoContent)
		return
	}

	group := strconv.FormatInt(ev.GroupID, 10)
	if err := l.sender.Send(r.Context(), group, reply); err != nil {
		l.logger.Warn("command reply failed", "group", group, "err", err)
	}
	w.WriteHeader(http.StatusNoContent)
}

func (l *Listener) allowed(userID int64) bool {
	if len(l.admins) == 0 {
		return true
	}
	_, ok := l.admins[userID]
	return ok
}
