// ABOUTME: Tests for command parsing
// ABOUTME: Covers prefixes, aliases, case, arguments and bot-name suffixes

package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		input    string
		wantCmd  Command
		wantName string
	}{
		{"/newmeasurement", CmdNewMeasurement, "/newmeasurement"},
		{"/new", CmdNewMeasurement, "/new"},
		{"!cancel", CmdCancel, "!cancel"},
		{"/CANCEL", CmdCancel, "/CANCEL"},
		{"  /showmeasurements  ", CmdShowMeasurements, "/showmeasurements"},
		{"/history now", CmdShowMeasurements, "/history"},
		{"/export@pulselog_bot", CmdExport, "/export@pulselog_bot"},
		{"/start", CmdHelp, "/start"},
		{"/help", CmdHelp, "/help"},
		{"/unknown", CmdUnknown, "/unknown"},
		{"120", CmdNone, ""},
		{"", CmdNone, ""},
		{"/", CmdNone, ""},
		{"hello /new", CmdNone, ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, name := ParseCommand(tt.input)
			assert.Equal(t, tt.wantCmd, cmd)
			assert.Equal(t, tt.wantName, name)
		})
	}
}
