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
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/carverauto/fleetkeeper/pkg/fleet"
	"github.com/carverauto/fleetkeeper/pkg/models"
)

// App executes parsed subcommands against a backend.
type App struct {
	backend Backend
	out     io.Writer
	now     func() time.Time
	styles  logStyles
}

// NewApp returns an App writing its output to out.
func NewApp(backend Backend, out io.Writer) *App {
	return &App{
		backend: backend,
		out:     out,
		now:     time.Now,
		styles:  newLogStyles(),
	}
}

func newLogStyles() logStyles {
	return logStyles{
		info: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaCyan)),
		success: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaGreen)),
		warning: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaYellow)),
		error: lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaRed)).
			Bold(true),
	}
}

// Run dispatches cfg.SubCmd.
func (a *App) Run(ctx context.Context, cfg *CmdConfig) error {
	switch cfg.SubCmd {
	case "status":
		return a.RunStatus(ctx, cfg)
	case "state":
		return a.RunState(ctx)
	case "assign":
		return a.RunAssign(ctx, cfg)
	case "unassign":
		return a.RunUnassign(ctx, cfg)
	case "default":
		return a.RunDefault(ctx, cfg)
	case "template":
		return a.RunTemplate(ctx, cfg)
	case "settings":
		return a.RunSettings(ctx, cfg)
	default:
		return fmt.Errorf("%w: %s", errUnknownSubcommand, cfg.SubCmd)
	}
}

// RunStatus scans the fleet once and prints the snapshots.
func (a *App) RunStatus(ctx context.Context, cfg *CmdConfig) error {
	snapshots, err := a.backend.Scan(ctx)
	if err != nil {
		return fmt.Errorf("%w: %w", errScanFailed, err)
	}

	if cfg.JSON {
		return a.writeJSON(snapshots)
	}

	_, err = fmt.Fprint(a.out, renderStatus(snapshots))

	return err
}

// RunState prints the persisted keep-alive document.
func (a *App) RunState(ctx context.Context) error {
	state, err := a.load(ctx)
	if err != nil {
		return err
	}

	return a.writeJSON(state)
}

// RunAssign maps an identity to a workload.
func (a *App) RunAssign(ctx context.Context, cfg *CmdConfig) error {
	workload := models.WorkloadDescriptor{Target: cfg.Target, Name: cfg.Name}

	err := a.edit(ctx, func(state *models.FleetState) (*models.FleetState, error) {
		return fleet.SetAssignment(state, cfg.Identity, workload)
	})
	if err != nil {
		return err
	}

	a.success("Assigned %s to %s", cfg.Identity, workloadLabel(&workload))

	return nil
}

// RunUnassign removes an identity's assignment.
func (a *App) RunUnassign(ctx context.Context, cfg *CmdConfig) error {
	err := a.edit(ctx, func(state *models.FleetState) (*models.FleetState, error) {
		return fleet.RemoveAssignment(state, cfg.Identity)
	})
	if err != nil {
		return err
	}

	a.success("Removed assignment for %s", cfg.Identity)

	return nil
}

// RunDefault sets or clears the fleet-wide default workload.
func (a *App) RunDefault(ctx context.Context, cfg *CmdConfig) error {
	if cfg.Clear {
		err := a.edit(ctx, func(state *models.FleetState) (*models.FleetState, error) {
			return fleet.ClearDefaultWorkload(state), nil
		})
		if err != nil {
			return err
		}

		a.success("Cleared default workload")

		return nil
	}

	workload := models.WorkloadDescriptor{Target: cfg.Target, Name: cfg.Name}

	err := a.edit(ctx, func(state *models.FleetState) (*models.FleetState, error) {
		return fleet.SetDefaultWorkload(state, workload)
	})
	if err != nil {
		return err
	}

	a.success("Default workload set to %s", workloadLabel(&workload))

	return nil
}

// RunTemplate handles the template save, apply, list and delete actions.
func (a *App) RunTemplate(ctx context.Context, cfg *CmdConfig) error {
	switch cfg.Action {
	case "save":
		return a.saveTemplate(ctx, cfg)
	case "apply":
		err := a.edit(ctx, func(state *models.FleetState) (*models.FleetState, error) {
			return fleet.ApplyTemplate(state, cfg.TemplateID, cfg.Identities...)
		})
		if err != nil {
			return err
		}

		a.success("Applied template %s to %d identities", cfg.TemplateID, len(cfg.Identities))

		return nil
	case "delete":
		err := a.edit(ctx, func(state *models.FleetState) (*models.FleetState, error) {
			return fleet.DeleteTemplate(state, cfg.TemplateID)
		})
		if err != nil {
			return err
		}

		a.success("Deleted template %s", cfg.TemplateID)

		return nil
	case "list":
		state, err := a.load(ctx)
		if err != nil {
			return err
		}

		if cfg.JSON {
			return a.writeJSON(state.WorkloadTemplates)
		}

		_, err = fmt.Fprint(a.out, renderTemplates(state.WorkloadTemplates))

		return err
	default:
		return fmt.Errorf("%w: %q", errTemplateAction, cfg.Action)
	}
}

func (a *App) saveTemplate(ctx context.Context, cfg *CmdConfig) error {
	workload := models.WorkloadDescriptor{Target: cfg.Target, Name: cfg.WorkloadName}

	var saved models.WorkloadTemplate

	err := a.edit(ctx, func(state *models.FleetState) (*models.FleetState, error) {
		next, tmpl, err := fleet.SaveTemplate(state, cfg.Name, workload, a.now())
		saved = tmpl

		return next, err
	})
	if err != nil {
		return err
	}

	a.success("Saved template %q with id %s", saved.Name, saved.ID)

	return nil
}

// RunSettings updates the keep-alive intervals.
func (a *App) RunSettings(ctx context.Context, cfg *CmdConfig) error {
	update := cfg.Settings
	if update.Empty() {
		return errNoSettings
	}

	if err := validateSettings(&update); err != nil {
		return err
	}

	err := a.edit(ctx, func(state *models.FleetState) (*models.FleetState, error) {
		next := state.Clone()

		if update.KeepAliveSeconds != nil {
			next.KeepAliveInterval = *update.KeepAliveSeconds
		}

		if update.AutoRebootHours != nil {
			next.AutoRebootInterval = *update.AutoRebootHours
		}

		if update.PresenceCheckMinutes != nil {
			next.PresenceCheckInterval = *update.PresenceCheckMinutes
		}

		if update.DeviceTimeoutSeconds != nil {
			next.DeviceTimeoutSeconds = *update.DeviceTimeoutSeconds
		}

		return next, nil
	})
	if err != nil {
		return err
	}

	a.success("Keep-alive settings updated")

	a.info("A running fleetkeeper applies interval changes on restart")

	return nil
}

func validateSettings(update *SettingsUpdate) error {
	if update.KeepAliveSeconds != nil {
		d := time.Duration(*update.KeepAliveSeconds) * time.Second
		if d < fleet.MinKeepAliveInterval || d > fleet.MaxKeepAliveInterval {
			return fmt.Errorf("%w: %s not within [%s, %s]",
				errKeepAliveRange, d, fleet.MinKeepAliveInterval, fleet.MaxKeepAliveInterval)
		}
	}

	if (update.AutoRebootHours != nil && *update.AutoRebootHours < 0) ||
		(update.PresenceCheckMinutes != nil && *update.PresenceCheckMinutes < 0) ||
		(update.DeviceTimeoutSeconds != nil && *update.DeviceTimeoutSeconds < 0) {
		return errNegativeSetting
	}

	return nil
}

func (a *App) load(ctx context.Context) (*models.FleetState, error) {
	state, err := a.backend.Repository().Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", fleet.ErrLoadState, err)
	}

	return state, nil
}

// edit loads the document, applies fn and saves the result.
func (a *App) edit(ctx context.Context, fn func(*models.FleetState) (*models.FleetState, error)) error {
	state, err := a.load(ctx)
	if err != nil {
		return err
	}

	next, err := fn(state)
	if err != nil {
		return err
	}

	if err := a.backend.Repository().Save(ctx, next); err != nil {
		return fmt.Errorf("%w: %w", errSaveState, err)
	}

	return nil
}

func (a *App) writeJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", errRenderFailed, err)
	}

	_, err = fmt.Fprintln(a.out, string(data))

	return err
}

func (a *App) success(format string, args ...interface{}) {
	fmt.Fprintln(a.out, a.styles.success.Render("[SUCCESS] "+fmt.Sprintf(format, args...)))
}

func (a *App) info(format string, args ...interface{}) {
	fmt.Fprintln(a.out, a.styles.info.Render("[INFO] "+fmt.Sprintf(format, args...)))
}
