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
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/carverauto/fleetkeeper/pkg/models"
)

// Dracula theme colors.
const (
	draculaForeground = "#F8F8F2"
	draculaCyan       = "#8BE9FD"
	draculaGreen      = "#50FA7B"
	draculaOrange     = "#FFB86C"
	draculaPink       = "#FF79C6"
	draculaPurple     = "#BD93F9"
	draculaRed        = "#FF5555"
	draculaYellow     = "#F1FA8C"
	draculaComment    = "#6272A4"
)

const (
	timeLayout  = "2006-01-02 15:04:05Z07:00"
	cellPadding = 1
	noValue     = "-"
)

var (
	headerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaPink)).
			Bold(true).
			Padding(0, cellPadding)
	cellStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaForeground)).
			Padding(0, cellPadding)
	deviceStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaPurple)).
			Bold(true)
	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaComment))
	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaRed))
	borderStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color(draculaPurple))
)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(borderStyle).
		StyleFunc(func(row, _ int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}

			return cellStyle
		}).
		Headers(headers...)
}

// renderStatus renders one block per device followed by a fleet summary.
func renderStatus(snapshots []models.DeviceSnapshot) string {
	var b strings.Builder

	var instances, running, unassigned int

	for i := range snapshots {
		snap := &snapshots[i]

		b.WriteString(renderDeviceHeader(&snap.Device))
		b.WriteString("\n")

		if snap.Error != "" {
			b.WriteString(errorStyle.Render("  " + snap.Error))
			b.WriteString("\n")
		}

		if len(snap.Instances) == 0 {
			b.WriteString(mutedStyle.Render("  no instances"))
			b.WriteString("\n\n")

			continue
		}

		t := newTable("INSTANCE", "RUNNING", "IDENTITY", "WORKLOAD", "PRESENCE")

		for j := range snap.Instances {
			inst := &snap.Instances[j]

			instances++

			if inst.Running {
				running++
			}

			if !inst.Assigned() {
				unassigned++
			}

			t.Row(
				inst.InstanceID,
				yesNo(inst.Running),
				inst.Identity.String(),
				workloadLabel(inst.Workload),
				inst.Presence.String(),
			)
		}

		b.WriteString(t.String())
		b.WriteString("\n\n")
	}

	b.WriteString(mutedStyle.Render(fmt.Sprintf(
		"%d devices, %d instances, %d running, %d unassigned",
		len(snapshots), instances, running, unassigned)))
	b.WriteString("\n")

	return b.String()
}

func renderDeviceHeader(device *models.Device) string {
	model := device.Model
	if model == "" {
		model = noValue
	}

	health := lipgloss.NewStyle().Foreground(lipgloss.Color(draculaGreen)).Render("responsive")
	if !device.Responsive {
		health = lipgloss.NewStyle().Foreground(lipgloss.Color(draculaOrange)).Render("unresponsive")
	}

	return fmt.Sprintf("%s  %s  %s  %s",
		deviceStyle.Render(device.ID),
		mutedStyle.Render(model),
		lipgloss.NewStyle().Foreground(lipgloss.Color(draculaYellow)).Render(string(device.Status)),
		health)
}

func renderTemplates(templates []models.WorkloadTemplate) string {
	if len(templates) == 0 {
		return mutedStyle.Render("no templates") + "\n"
	}

	t := newTable("ID", "NAME", "TARGET", "WORKLOAD", "CREATED")

	for i := range templates {
		tmpl := &templates[i]

		t.Row(
			tmpl.ID,
			tmpl.Name,
			tmpl.Workload.Target,
			valueOr(tmpl.Workload.Name),
			tmpl.CreatedAt.Format(timeLayout),
		)
	}

	return t.String() + "\n"
}

func workloadLabel(w *models.WorkloadDescriptor) string {
	if w == nil {
		return noValue
	}

	if w.Name != "" {
		return w.Name
	}

	return w.Target
}

func yesNo(v bool) string {
	if v {
		return "yes"
	}

	return "no"
}

func valueOr(s string) string {
	if s == "" {
		return noValue
	}

	return s
}
