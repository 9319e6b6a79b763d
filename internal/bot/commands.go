// ABOUTME: Command recognition for inbound chat text
// ABOUTME: Maps slash or bang prefixed tokens to bot commands

package bot

import "strings"

// Command is a recognized bot command.
type Command int

const (
	CmdNone Command = iota
	CmdUnknown
	CmdHelp
	CmdNewMeasurement
	CmdCancel
	CmdShowMeasurements
	CmdExport
)

var commandNames = map[string]Command{
	"start":            CmdHelp,
	"help":             CmdHelp,
	"newmeasurement":   CmdNewMeasurement,
	"new":              CmdNewMeasurement,
	"cancel":           CmdCancel,
	"showmeasurements": CmdShowMeasurements,
	"history":          CmdShowMeasurements,
	"export":           CmdExport,
}

// ParseCommand classifies text. It returns CmdNone for plain text and
// CmdUnknown for a prefixed token that is not a command; name is the
// token as typed, without arguments.
func ParseCommand(text string) (cmd Command, name string) {
	text = strings.TrimSpace(text)
	if text == "" || (text[0] != '/' && text[0] != '!') {
		return CmdNone, ""
	}

	name = strings.Fields(text)[0]
	token := strings.ToLower(name[1:])
	// Telegram-style "/cmd@botname"
	if i := strings.IndexByte(token, '@'); i >= 0 {
		token = token[:i]
	}
	if token == "" {
		return CmdNone, ""
	}

	if c, ok := commandNames[token]; ok {
		return c, name
	}
	return CmdUnknown, name
}
