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

package models

import (
	"encoding/json"
	"fmt"
)

// Identity is the account an instance is logged in as. The zero value is
// an unknown identity.
type Identity struct {
	name  string
	known bool
}

// KnownIdentity returns an identity for name. An empty name is unknown.
func KnownIdentity(name string) Identity {
	if name == "" {
		return Identity{}
	}

	return Identity{name: name, known: true}
}

// UnknownIdentity returns the identity of an instance nobody is known to be
// logged into.
func UnknownIdentity() Identity {
	return Identity{}
}

// Value returns the identity name and whether it is known.
func (i Identity) Value() (string, bool) {
	return i.name, i.known
}

// IsKnown reports whether the identity carries a name.
func (i Identity) IsKnown() bool {
	return i.known
}

func (i Identity) String() string {
	if !i.known {
		return "<unknown>"
	}

	return i.name
}

// MarshalJSON renders a known identity as its name and an unknown one as null.
func (i Identity) MarshalJSON() ([]byte, error) {
	if !i.known {
		return []byte("null"), nil
	}

	return json.Marshal(i.name)
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *Identity) UnmarshalJSON(b []byte) error {
	var name *string
	if err := json.Unmarshal(b, &name); err != nil {
		return fmt.Errorf("identity: %w", err)
	}

	if name == nil {
		*i = UnknownIdentity()

		return nil
	}

	*i = KnownIdentity(*name)

	return nil
}

// Presence is whether an identity is engaged in its assigned workload.
type Presence int

const (
	PresenceNotChecked Presence = iota
	PresenceEngaged
	PresenceNotEngaged
)

// PresenceFromBool maps a resolver answer onto Presence.
func PresenceFromBool(engaged bool) Presence {
	if engaged {
		return PresenceEngaged
	}

	return PresenceNotEngaged
}

func (p Presence) String() string {
	switch p {
	case PresenceEngaged:
		return "engaged"
	case PresenceNotEngaged:
		return "not_engaged"
	case PresenceNotChecked:
		return "not_checked"
	default:
		return fmt.Sprintf("presence(%d)", int(p))
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p Presence) MarshalText() ([]byte, error) {
	return []byte(p.String()), nil
}
