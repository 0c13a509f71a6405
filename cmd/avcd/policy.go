// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/avc-cache/avc/lib/avc"
	"github.com/avc-cache/avc/lib/avcss"
)

// policyEntry is one element of the rules file: a tagged union
// distinguished by Kind. Unused fields for a given kind are ignored,
// matching the loose style lib/pipelinedef's JSONC parsing uses for
// its own tagged step definitions.
type policyEntry struct {
	Kind string `json:"kind"`

	// Kind == "context".
	SID     uint32 `json:"sid"`
	Context string `json:"context"`

	// Kind == "rule" and "operation".
	SourceType string `json:"source_type"`
	TargetType string `json:"target_type"`
	Class      string `json:"class"`

	// Kind == "rule".
	Allowed    []string `json:"allowed"`
	AuditAllow []string `json:"audit_allow"`
	AuditDeny  []string `json:"audit_deny"`
	Permissive bool     `json:"permissive"`

	// Kind == "operation".
	OpType           uint8   `json:"op_type"`
	OperationAllowed []uint8 `json:"allowed_numbers"`
	OperationAudit   []uint8 `json:"audit_allow_numbers"`
	OperationNoAudit []uint8 `json:"dont_audit_numbers"`
}

// loadPolicyFile parses a JSONC rules file and applies every entry to
// server in file order. A "rule" entry must appear before any
// "operation" entry that references the same (source, target, class)
// triple, since avcss.Server.AddOperationRule requires the rule to
// already exist.
func loadPolicyFile(path string, server *avcss.Server) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading policy file %s: %w", path, err)
	}

	var entries []policyEntry
	if err := json.Unmarshal(jsonc.ToJSON(data), &entries); err != nil {
		return fmt.Errorf("parsing policy file %s: %w", path, err)
	}

	for i, entry := range entries {
		if err := applyPolicyEntry(server, entry); err != nil {
			return fmt.Errorf("policy file %s entry %d (%s): %w", path, i, entry.Kind, err)
		}
	}
	return nil
}

func applyPolicyEntry(server *avcss.Server, entry policyEntry) error {
	switch entry.Kind {
	case "context":
		return server.AddContext(avc.SID(entry.SID), entry.Context)
	case "rule":
		return server.AddRule(entry.SourceType, entry.TargetType, entry.Class,
			entry.Allowed, entry.AuditAllow, entry.AuditDeny, entry.Permissive)
	case "operation":
		return server.AddOperationRule(entry.SourceType, entry.TargetType, entry.Class,
			entry.OpType, entry.OperationAllowed, entry.OperationAudit, entry.OperationNoAudit)
	default:
		return fmt.Errorf("unknown policy entry kind %q", entry.Kind)
	}
}
