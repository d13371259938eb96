// Copyright 2025 wintriage project authors. All rights reserved.
// Use of this source code is governed by Apache 2 LICENSE that can be found in the LICENSE file.

// Package report parses crash analysis reports produced by the
// !exploitable debugger extension. The report layout is a fixed wire
// format: a register dump bounded by two 80-char rule lines, an
// "Exploitability Classification:" line and a "Hash=(...)" token.
package report

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"

	"github.com/wintriage/wintriage/pkg/hash"
)

// FileName is the well-known name the monitor script logs the crash
// analysis to, relative to the debugger working directory.
const FileName = "crash_details.txt"

// ErrNoSignature means the report carries no Hash token. The debugger
// emits the token only when the crash actually reproduced, so the
// caller treats this as a non-reproduction, not as a parse failure.
var ErrNoSignature = errors.New("report contains no hash token")

// Report is the parsed form of one crash analysis report.
type Report struct {
	// Signature identifies the crash equivalence class. Taken verbatim
	// from the Hash token, compared byte-exact.
	Signature string
	// Severity is the exploitability rating of this single crash.
	Severity Severity
	// Fingerprint hashes the register state at the crash point.
	// Only comparable between reports of the same signature.
	Fingerprint string
}

const (
	hashStart     = "Hash="
	hashEnd       = ")"
	severityStart = "Exploitability Classification: "
)

var ruleLine = []byte(strings.Repeat("*", 80))

// Parse extracts the signature, severity and register fingerprint from
// raw report text. Returns ErrNoSignature if the Hash token is absent.
func Parse(data []byte) (*Report, error) {
	sig, ok := between(data, hashStart, hashEnd)
	if !ok {
		return nil, ErrNoSignature
	}
	severity, _ := between(data, severityStart, "\n")
	return &Report{
		Signature:   sig,
		Severity:    Severity(strings.TrimSuffix(severity, "\r")),
		Fingerprint: fingerprint(registerBlock(data)),
	}, nil
}

// IsReportFile decides whether a file name denotes a stored crash
// analysis report. Inputs merely ending in .txt do not qualify.
func IsReportFile(name string) bool {
	base := filepath.Base(name)
	return strings.Contains(base, "crash_details") && strings.HasSuffix(base, ".txt")
}

// registerBlock returns the register dump, the text between the first
// and second rule lines of the report.
func registerBlock(data []byte) []byte {
	first := bytes.Index(data, ruleLine)
	if first == -1 {
		return nil
	}
	rest := data[first+len(ruleLine):]
	second := bytes.Index(rest, ruleLine)
	if second == -1 {
		return nil
	}
	return bytes.TrimSpace(rest[:second])
}

// fingerprint hashes the parts of the register dump that identify the
// crashed state: the first dump line plus the esp= and ebp= tokens.
// Stack registers are included separately so that the same faulting
// instruction reached through a different stack depth is detectable.
func fingerprint(block []byte) string {
	return hash.String(
		firstLine(block),
		token(block, "esp="),
		token(block, "ebp="),
	)
}

func firstLine(block []byte) string {
	if i := bytes.IndexByte(block, '\n'); i != -1 {
		block = block[:i]
	}
	return strings.TrimSuffix(string(block), "\r")
}

// token extracts the "<label><value>" token, from label to the next
// whitespace.
func token(block []byte, label string) string {
	start := bytes.Index(block, []byte(label))
	if start == -1 {
		return ""
	}
	rest := block[start:]
	end := bytes.IndexAny(rest, " \t\r\n")
	if end == -1 {
		end = len(rest)
	}
	return string(rest[:end])
}

func between(data []byte, from, to string) (string, bool) {
	start := bytes.Index(data, []byte(from))
	if start == -1 {
		return "", false
	}
	start += len(from)
	end := bytes.Index(data[start:], []byte(to))
	if end == -1 {
		return "", false
	}
	return string(data[start : start+end]), true
}
