// Package command decodes lines of the host protocol into typed commands.
//
// The protocol is deliberately permissive: blank and unrecognized lines are
// dropped without a reply, an out-of-range or unparseable angle rejects the
// whole line, and a malformed or non-positive duration token degrades the
// command to an immediate step move instead of rejecting it.
package command

import (
	"strconv"
	"strings"
	"time"

	"github.com/railsignals/crossing-controller/model"
)

// Keywords of the wire protocol, matched case-insensitively. The close/open
// pair is kept verbatim from the original hardware protocol.
const (
	keywordClose     = "BZU"
	keywordOpen      = "BAUF"
	keywordSecondary = "M2"
)

// Parse decodes one line, already stripped of its terminator. It returns the
// decoded command and true, or the zero command and false when the line does
// not form exactly one well-formed command.
func Parse(line string) (model.Command, bool) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return model.Command{}, false
	}

	switch {
	case len(fields) == 1 && strings.EqualFold(fields[0], keywordClose):
		return model.Command{Kind: model.CommandCloseCrossing}, true
	case len(fields) == 1 && strings.EqualFold(fields[0], keywordOpen):
		return model.Command{Kind: model.CommandOpenCrossing}, true
	case strings.EqualFold(fields[0], keywordSecondary):
		return parseMove(model.CommandSetSecondary, fields[1:])
	default:
		return parseMove(model.CommandSetPrimary, fields)
	}
}

// parseMove decodes the "<angle>" and "<angle> <durationMs>" forms shared by
// both actuators. fields holds the tokens after any keyword prefix.
func parseMove(kind model.CommandKind, fields []string) (model.Command, bool) {
	if len(fields) < 1 || len(fields) > 2 {
		return model.Command{}, false
	}

	n, err := strconv.Atoi(fields[0])
	if err != nil || !model.Angle(n).Valid() {
		return model.Command{}, false
	}
	cmd := model.Command{Kind: kind, Angle: model.Angle(n)}

	// A second token is a duration in milliseconds. It is honored only when
	// it parses and is strictly positive; anything else degrades to a step
	// move rather than rejecting the command.
	if len(fields) == 2 {
		if ms, err := strconv.Atoi(fields[1]); err == nil && ms > 0 {
			cmd.Duration = time.Duration(ms) * time.Millisecond
		}
	}
	return cmd, true
}
