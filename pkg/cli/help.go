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

import "fmt"

// ShowHelp displays the help message.
func ShowHelp() {
	fmt.Print(`fleetctl: fleetkeeper operator tool
Usage:
  fleetctl [-config file] <command> [options]

Commands:
  status      Scan the fleet once and show devices and instances
  state       Print the persisted keep-alive document as JSON
  assign      Map an identity to a workload
  unassign    Remove an identity's workload mapping
  default     Set or clear the fleet-wide default workload
  template    Manage workload templates (save, apply, list, delete)
  settings    Change keep-alive intervals

Global options:
  -config string   path to fleetkeeper config file (default "/etc/fleetkeeper/fleetkeeper.json")
  -help            show this help message

Options for status:
  -json            print snapshots as JSON

Options for assign:
  -identity string   identity to assign
  -target string     workload launch target
  -name string       workload display name

Options for unassign:
  -identity string   identity to unassign

Options for default:
  -target string     default workload launch target
  -name string       default workload display name
  -clear             remove the default workload

Options for template:
  save   -target string [-name string] [-workload-name string]
  apply  -id string -identities a,b,c
  list   [-json]
  delete -id string

Options for settings:
  -keepalive int           keep-alive interval in seconds (10-300)
  -reboot-hours float      scheduled fleet reboot interval in hours (0 disables)
  -presence-minutes int    presence check interval in minutes (0 disables)
  -device-timeout int      device responsiveness timeout in seconds

Examples:
  # Show fleet status
  fleetctl status

  # Assign a workload
  fleetctl assign -identity alice -target https://example.com/lobby -name Lobby

  # Save a template and apply it to two identities
  fleetctl template save -name evening -target https://example.com/evening
  fleetctl template apply -id <template-id> -identities alice,bob

  # Check presence every 5 minutes
  fleetctl settings -presence-minutes 5
`)
}
