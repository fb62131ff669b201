package notify

import (
	"log"
	"os/exec"
)

type MessageType int

const (
	MsgCorrectionStarted MessageType = iota
	MsgCorrectionStopped
	MsgPlanReady
	MsgTextUpdated
	MsgNoEditNeeded
	MsgConnectionLost
	MsgCorrectionFailed
	MsgConfigReloaded
	MsgSessionComplete
)

type Message struct {
	Title   string
	Body    string
	IsError bool
}

// MessageDef is one catalogue entry. ConfigKey matches the toml key under
// [notifications.messages].
type MessageDef struct {
	Type         MessageType
	ConfigKey    string
	DefaultTitle string
	DefaultBody  string
	IsError      bool
}

var MessageDefs = []MessageDef{
	{MsgCorrectionStarted, "correction_started", "thinkaloud", "Listening for feedback", false},
	{MsgCorrectionStopped, "correction_stopped", "thinkaloud", "Stopped listening", false},
	{MsgPlanReady, "plan_ready", "thinkaloud", "Proposed edit", false},
	{MsgTextUpdated, "text_updated", "thinkaloud", "Description updated", false},
	{MsgNoEditNeeded, "no_edit_needed", "thinkaloud", "No edit needed", false},
	{MsgConnectionLost, "connection_lost", "thinkaloud", "Connection to the backend lost", true},
	{MsgCorrectionFailed, "correction_failed", "thinkaloud", "Correction failed, please say it again", true},
	{MsgConfigReloaded, "config_reloaded", "thinkaloud", "Config reloaded", false},
	{MsgSessionComplete, "session_complete", "thinkaloud", "Session complete", false},
}

func DefaultMessages() map[MessageType]Message {
	msgs := make(map[MessageType]Message, len(MessageDefs))
	for _, def := range MessageDefs {
		msgs[def.Type] = Message{Title: def.DefaultTitle, Body: def.DefaultBody, IsError: def.IsError}
	}
	return msgs
}

type Notifier interface {
	// Send shows a catalogue message; detail, when set, is appended to the body.
	Send(mt MessageType, detail string)
	Error(msg string)
}

// New returns the notifier for kind: "desktop", "log" or anything else for Nop.
func New(kind string, msgs map[MessageType]Message) Notifier {
	if msgs == nil {
		msgs = DefaultMessages()
	}
	switch kind {
	case "desktop":
		return Desktop{Messages: msgs}
	case "log":
		return Log{Messages: msgs}
	default:
		return Nop{}
	}
}

func lookup(msgs map[MessageType]Message, mt MessageType, detail string) Message {
	msg, ok := msgs[mt]
	if !ok {
		msg = DefaultMessages()[mt]
	}
	if detail != "" {
		msg.Body += "\n" + detail
	}
	return msg
}

var execCommand = exec.Command

type Desktop struct {
	Messages map[MessageType]Message
}

func (d Desktop) Send(mt MessageType, detail string) {
	msg := lookup(d.Messages, mt, detail)
	args := []string{"-a", "thinkaloud"}
	if msg.IsError {
		args = append(args, "-u", "critical")
	}
	args = append(args, msg.Title, msg.Body)
	if err := execCommand("notify-send", args...).Run(); err != nil {
		log.Printf("Failed to send notification: %v", err)
	}
}

func (Desktop) Error(msg string) {
	cmd := execCommand("notify-send", "-a", "thinkaloud", "-u", "critical", "thinkaloud", msg)
	if err := cmd.Run(); err != nil {
		log.Printf("Failed to send error notification: %v", err)
	}
}

// Log writes notifications to the standard logger.
type Log struct {
	Messages map[MessageType]Message
}

func (l Log) Send(mt MessageType, detail string) {
	msg := lookup(l.Messages, mt, detail)
	if msg.IsError {
		log.Printf("Notify: [error] %s: %s", msg.Title, msg.Body)
		return
	}
	log.Printf("Notify: %s: %s", msg.Title, msg.Body)
}

func (Log) Error(msg string) {
	log.Printf("Notify: [error] %s", msg)
}

// Nop is a Notifier that does absolutely nothing.
// Useful in unit tests or headless builds.
type Nop struct{}

func (Nop) Send(MessageType, string) {}
func (Nop) Error(string)             {}
