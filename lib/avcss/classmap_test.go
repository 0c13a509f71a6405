// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avcss

import (
	"encoding/json"
	"testing"

	"github.com/avc-cache/avc/lib/avc"
)

const sampleClassMap = `[
	// index 1
	{"class": "file", "perms": ["read", "write", "execute"]},
	{"class": "process", "perms": ["fork", "signal"]},
]`

func TestParseClassMapStripsCommentsAndTrailingCommas(t *testing.T) {
	cm, err := ParseClassMap([]byte(sampleClassMap))
	if err != nil {
		t.Fatalf("ParseClassMap: %v", err)
	}

	class, ok := cm.ClassByName("file")
	if !ok || class != 1 {
		t.Fatalf("ClassByName(file) = %d, %v; want 1, true", class, ok)
	}
	class, ok = cm.ClassByName("process")
	if !ok || class != 2 {
		t.Fatalf("ClassByName(process) = %d, %v; want 2, true", class, ok)
	}

	bit, ok := cm.PermBit(1, "write")
	if !ok || bit != 1 {
		t.Fatalf("PermBit(file, write) = %d, %v; want 1, true", bit, ok)
	}
}

func TestParseClassMapRejectsTooManyPerms(t *testing.T) {
	perms := make([]string, 33)
	for i := range perms {
		perms[i] = "p"
	}
	_, err := ParseClassMap(mustJSON(t, []ClassEntry{{Name: "big", Perms: perms}}))
	if err == nil {
		t.Fatalf("ParseClassMap with 33 perms: want error")
	}
}

func TestParseClassMapRejectsDuplicatePermName(t *testing.T) {
	_, err := ParseClassMap(mustJSON(t, []ClassEntry{{Name: "file", Perms: []string{"read", "read"}}}))
	if err == nil {
		t.Fatalf("ParseClassMap with duplicate perm name: want error")
	}
}

func TestParseClassMapRejectsDuplicateClassName(t *testing.T) {
	_, err := ParseClassMap(mustJSON(t, []ClassEntry{{Name: "file"}, {Name: "file"}}))
	if err == nil {
		t.Fatalf("ParseClassMap with duplicate class name: want error")
	}
}

func TestPermNameFallsBackToHexForUnnamedBit(t *testing.T) {
	cm, err := ParseClassMap([]byte(sampleClassMap))
	if err != nil {
		t.Fatalf("ParseClassMap: %v", err)
	}
	if got := cm.PermName(1, 31); got != "0x80000000" {
		t.Fatalf("PermName(file, 31) = %q, want 0x80000000", got)
	}
}

func TestPermNamesRendersAllSetBitsInOrder(t *testing.T) {
	cm, err := ParseClassMap([]byte(sampleClassMap))
	if err != nil {
		t.Fatalf("ParseClassMap: %v", err)
	}
	names := cm.PermNames(1, avc.Perm(0b101))
	if len(names) != 2 || names[0] != "read" || names[1] != "execute" {
		t.Fatalf("PermNames = %v, want [read execute]", names)
	}
}

func mustJSON(t *testing.T, entries []ClassEntry) []byte {
	t.Helper()
	data, err := json.Marshal(entries)
	if err != nil {
		t.Fatalf("marshaling class entries: %v", err)
	}
	return data
}
