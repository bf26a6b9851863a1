// Package cli parses the clipthat command line.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandListen  Command = "listen"
	CommandStatus  Command = "status"
	CommandStop    Command = "stop"
	CommandReset   Command = "reset"
	CommandReload  Command = "reload"
	CommandMatch   Command = "match"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandConfig  Command = "config"
	CommandInit    Command = "init"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandListen:  {},
	CommandStatus:  {},
	CommandStop:    {},
	CommandReset:   {},
	CommandReload:  {},
	CommandMatch:   {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandConfig:  {},
	CommandInit:    {},
	CommandVersion: {},
	CommandHelp:    {},
}

// Forwarded reports whether c is served by a running listener over IPC.
func (c Command) Forwarded() bool {
	switch c {
	case CommandStatus, CommandStop, CommandReset, CommandReload:
		return true
	default:
		return false
	}
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
	// Args holds the text words for match.
	Args []string
}

// Parse reads flags up to the command word. Only match accepts trailing
// arguments; every word after it is text to score.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) || strings.TrimSpace(args[i]) == "" {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if value, ok := strings.CutPrefix(arg, "--config="); ok {
				if strings.TrimSpace(value) == "" {
					return Parsed{}, errors.New("--config requires a path")
				}
				parsed.ConfigPath = value
				continue
			}
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}
			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp

			rest := args[i+1:]
			if cmd == CommandMatch {
				if len(rest) == 0 {
					return Parsed{}, errors.New("match requires text to score")
				}
				parsed.Args = append([]string(nil), rest...)
				return parsed, nil
			}
			if len(rest) > 0 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
			return parsed, nil
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] <command>

Commands:
  listen        Listen for trigger phrases and send overlay hotkeys
  status        Print listener state and counters
  stop          Stop the running listener
  reset         Set the recording state of the running listener to idle
  reload        Reload phrases, thresholds, hotkey and cues in the running listener
  match TEXT    Score TEXT against the configured phrases
  devices       List available input devices
  doctor        Run configuration and environment checks
  config        Print the effective configuration
  init          Write the default configuration file
  version       Print version information
  help          Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/clipthat/config.yml)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
