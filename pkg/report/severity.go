// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

package report

// Severity is the exploitability rating assigned by the debugger
// extension, extracted verbatim from the classification line.
type Severity string

const (
	Exploitable            = Severity("EXPLOITABLE")
	ProbablyExploitable    = Severity("PROBABLY EXPLOITABLE")
	Unknown                = Severity("UNKNOWN")
	ProbablyNotExploitable = Severity("PROBABLY NOT EXPLOITABLE")
)

// Severities lists all ratings from most to least severe.
var Severities = []Severity{
	Exploitable,
	ProbablyExploitable,
	Unknown,
	ProbablyNotExploitable,
}

// rank orders ratings for merging, higher wins. Unrecognized ratings
// rank below everything and never win a merge.
func (sev Severity) rank() int {
	switch sev {
	case Exploitable:
		return 3
	case ProbablyExploitable:
		return 2
	case Unknown:
		return 1
	case ProbablyNotExploitable:
		return 0
	}
	return -1
}

// Merge returns the more severe of the two ratings. A group of crashes
// is rated by the worst case over its members, so merging is a running
// maximum over the total order.
func (sev Severity) Merge(other Severity) Severity {
	if other.rank() > sev.rank() {
		return other
	}
	return sev
}
