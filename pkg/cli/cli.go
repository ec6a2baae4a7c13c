/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package cli

import (
	"flag"
	"fmt"
	"strings"
)

const defaultConfigFile = "/etc/fleetkeeper/fleetkeeper.json"

// SubcommandHandler defines the interface for parsing subcommand flags.
type SubcommandHandler interface {
	Parse(args []string, cfg *CmdConfig) error
}

// StatusHandler handles flags for the status subcommand.
type StatusHandler struct{}

// Parse processes the command-line arguments for the status subcommand.
func (StatusHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet("status", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "print snapshots as JSON")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing status flags: %w", err)
	}

	cfg.JSON = *jsonOut

	return nil
}

// StateHandler handles flags for the state subcommand.
type StateHandler struct{}

// Parse processes the command-line arguments for the state subcommand.
func (StateHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet("state", flag.ExitOnError)

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing state flags: %w", err)
	}

	cfg.JSON = true

	return nil
}

// AssignHandler handles flags for the assign subcommand.
type AssignHandler struct{}

// Parse processes the command-line arguments for the assign subcommand.
func (AssignHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet("assign", flag.ExitOnError)
	identity := fs.String("identity", "", "identity to assign")
	target := fs.String("target", "", "workload launch target")
	name := fs.String("name", "", "workload display name")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing assign flags: %w", err)
	}

	if *identity == "" {
		return errIdentityRequired
	}

	if *target == "" {
		return errTargetRequired
	}

	cfg.Identity = *identity
	cfg.Target = *target
	cfg.Name = *name

	return nil
}

// UnassignHandler handles flags for the unassign subcommand.
type UnassignHandler struct{}

// Parse processes the command-line arguments for the unassign subcommand.
func (UnassignHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet("unassign", flag.ExitOnError)
	identity := fs.String("identity", "", "identity to unassign")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing unassign flags: %w", err)
	}

	if *identity == "" {
		return errIdentityRequired
	}

	cfg.Identity = *identity

	return nil
}

// DefaultHandler handles flags for the default subcommand.
type DefaultHandler struct{}

// Parse processes the command-line arguments for the default subcommand.
func (DefaultHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet("default", flag.ExitOnError)
	target := fs.String("target", "", "default workload launch target")
	name := fs.String("name", "", "default workload display name")
	clearDefault := fs.Bool("clear", false, "remove the default workload")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing default flags: %w", err)
	}

	if *target == "" && !*clearDefault {
		return errTargetOrClear
	}

	cfg.Target = *target
	cfg.Name = *name
	cfg.Clear = *clearDefault

	return nil
}

// TemplateHandler handles the template subcommand and its actions.
type TemplateHandler struct{}

// Parse processes the command-line arguments for the template subcommand.
func (TemplateHandler) Parse(args []string, cfg *CmdConfig) error {
	if len(args) == 0 {
		return errTemplateAction
	}

	cfg.Action = args[0]

	switch cfg.Action {
	case "save":
		return parseTemplateSaveFlags(args[1:], cfg)
	case "apply":
		return parseTemplateApplyFlags(args[1:], cfg)
	case "delete":
		return parseTemplateDeleteFlags(args[1:], cfg)
	case "list":
		fs := flag.NewFlagSet("template list", flag.ExitOnError)
		jsonOut := fs.Bool("json", false, "print templates as JSON")

		if err := fs.Parse(args[1:]); err != nil {
			return fmt.Errorf("parsing template list flags: %w", err)
		}

		cfg.JSON = *jsonOut

		return nil
	default:
		return fmt.Errorf("%w: %q", errTemplateAction, cfg.Action)
	}
}

func parseTemplateSaveFlags(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet("template save", flag.ExitOnError)
	name := fs.String("name", "", "template name (defaults to the workload name)")
	target := fs.String("target", "", "workload launch target")
	workloadName := fs.String("workload-name", "", "workload display name")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing template save flags: %w", err)
	}

	if *target == "" {
		return errTargetRequired
	}

	cfg.Name = *name
	cfg.Target = *target
	cfg.WorkloadName = *workloadName

	return nil
}

func parseTemplateApplyFlags(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet("template apply", flag.ExitOnError)
	id := fs.String("id", "", "template id")
	identities := fs.String("identities", "", "comma-separated identities to assign")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing template apply flags: %w", err)
	}

	if *id == "" {
		return errTemplateIDRequired
	}

	cfg.TemplateID = *id
	cfg.Identities = splitList(*identities)

	if len(cfg.Identities) == 0 {
		return errIdentitiesRequired
	}

	return nil
}

func parseTemplateDeleteFlags(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet("template delete", flag.ExitOnError)
	id := fs.String("id", "", "template id")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing template delete flags: %w", err)
	}

	if *id == "" {
		return errTemplateIDRequired
	}

	cfg.TemplateID = *id

	return nil
}

// SettingsHandler handles flags for the settings subcommand.
type SettingsHandler struct{}

// Parse processes the command-line arguments for the settings subcommand.
// Only flags present on the command line are applied.
func (SettingsHandler) Parse(args []string, cfg *CmdConfig) error {
	fs := flag.NewFlagSet("settings", flag.ExitOnError)
	keepAlive := fs.Int("keepalive", 0, "keep-alive interval in seconds")
	reboot := fs.Float64("reboot-hours", 0, "scheduled fleet reboot interval in hours (0 disables)")
	presence := fs.Int("presence-minutes", 0, "presence check interval in minutes (0 disables)")
	deviceTimeout := fs.Int("device-timeout", 0, "device responsiveness timeout in seconds")

	if err := fs.Parse(args); err != nil {
		return fmt.Errorf("parsing settings flags: %w", err)
	}

	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "keepalive":
			cfg.Settings.KeepAliveSeconds = keepAlive
		case "reboot-hours":
			cfg.Settings.AutoRebootHours = reboot
		case "presence-minutes":
			cfg.Settings.PresenceCheckMinutes = presence
		case "device-timeout":
			cfg.Settings.DeviceTimeoutSeconds = deviceTimeout
		}
	})

	if cfg.Settings.Empty() {
		return errNoSettings
	}

	return nil
}

// ParseArgs parses global flags and the subcommand from args, which
// excludes the program name.
func ParseArgs(args []string) (*CmdConfig, error) {
	fs := flag.NewFlagSet("fleetctl", flag.ExitOnError)
	configFile := fs.String("config", defaultConfigFile, "path to fleetkeeper config file")
	help := fs.Bool("help", false, "show help message")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("parsing flags: %w", err)
	}

	cfg := &CmdConfig{
		ConfigFile: *configFile,
		Help:       *help,
		Args:       fs.Args(),
	}

	rest := fs.Args()
	if len(rest) == 0 {
		return cfg, nil
	}

	cfg.SubCmd = rest[0]

	subcommands := map[string]SubcommandHandler{
		"status":   StatusHandler{},
		"state":    StateHandler{},
		"assign":   AssignHandler{},
		"unassign": UnassignHandler{},
		"default":  DefaultHandler{},
		"template": TemplateHandler{},
		"settings": SettingsHandler{},
	}

	handler, exists := subcommands[cfg.SubCmd]
	if !exists {
		if cfg.SubCmd == "help" {
			cfg.Help = true

			return cfg, nil
		}

		return cfg, fmt.Errorf("%w: %s", errUnknownSubcommand, cfg.SubCmd)
	}

	cfg.Args = nil

	if err := handler.Parse(rest[1:], cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func splitList(raw string) []string {
	var out []string

	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}

	return out
}
