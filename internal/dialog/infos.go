/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package dialog

// CustomInfos configures which event names the parser accepts and how MIN/MAX resolve in
// karma clauses. WorldEvents may appear in choice conditions, TriggerEvents after "->".
type CustomInfos struct {
	WorldEvents   []string
	TriggerEvents []string
	KarmaLimits   *KarmaRange
}

// Limits returns the configured karma limits or DefaultKarmaLimits.
func (c CustomInfos) Limits() KarmaRange {
	if c.KarmaLimits == nil {
		return DefaultKarmaLimits
	}
	return c.KarmaLimits.Ordered()
}

// IsWorldEvent reports whether name is a declared world event.
func (c CustomInfos) IsWorldEvent(name string) bool { return contains(c.WorldEvents, name) }

// IsTriggerEvent reports whether name is a declared trigger event.
func (c CustomInfos) IsTriggerEvent(name string) bool { return contains(c.TriggerEvents, name) }

func contains(list []string, name string) bool {
	for _, s := range list {
		if s == name {
			return true
		}
	}
	return false
}
