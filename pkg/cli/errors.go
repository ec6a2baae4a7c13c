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

import "errors"

var (
	errUnknownSubcommand  = errors.New("unknown subcommand")
	errIdentityRequired   = errors.New("-identity is required")
	errTargetRequired     = errors.New("-target is required")
	errTargetOrClear      = errors.New("default requires -target or -clear")
	errTemplateAction     = errors.New("template action must be one of: save, apply, list, delete")
	errTemplateIDRequired = errors.New("-id is required")
	errIdentitiesRequired = errors.New("template apply requires -identities")
	errNoSettings         = errors.New("settings requires at least one interval flag")
	errKeepAliveRange     = errors.New("keep-alive interval out of range")
	errNegativeSetting    = errors.New("interval settings must not be negative")
	errSaveState          = errors.New("failed to save fleet state")
	errScanFailed         = errors.New("fleet scan failed")
	errRenderFailed       = errors.New("failed to render output")
)
