package commands

import (
	"strings"

	"github.com/medienhaus/rundgang-frontend-21/internal/logging"
	"github.com/medienhaus/rundgang-frontend-21/pkg/interfaces"
)

const commandModuleRoot = "rundgang.commands"

// CommandLogger returns a module-scoped logger for command handlers with the
// component and command module attached.
func CommandLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	name := strings.TrimSpace(module)
	if name == "" {
		name = "core"
	}
	logger := logging.ModuleLogger(provider, commandModuleRoot+"."+name)
	return logging.WithFields(logger, map[string]any{
		"component":      "command",
		"command_module": name,
	})
}
