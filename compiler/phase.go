/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/
package compiler

// Phase is where a compile cycle currently is.
type Phase int32

const (
	PhaseIdle Phase = iota
	PhasePreparing
	PhaseProgramBuilt
	PhaseAnalyzed
	PhaseEmitted
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhasePreparing:
		return "preparing"
	case PhaseProgramBuilt:
		return "program-built"
	case PhaseAnalyzed:
		return "analyzed"
	case PhaseEmitted:
		return "emitted"
	default:
		return "unknown"
	}
}
