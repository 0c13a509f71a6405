// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avcss

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/tidwall/jsonc"

	"github.com/avc-cache/avc/lib/avc"
)

// MaxPermsPerClass is the permission bitmap width: Perm is 32 bits, so
// a class may declare at most 32 named permissions.
const MaxPermsPerClass = 32

// ClassEntry is one object class's name and ordered permission names.
// Permission bit i of the class corresponds to Perms[i].
type ClassEntry struct {
	Name  string   `json:"class"`
	Perms []string `json:"perms"`
}

// ClassMap is the static class_map[tclass] -> (name, perm_names[32])
// table. Index 0 is reserved; classes are numbered from 1 in file
// order, matching the original secclass_map layout. The cache itself
// never consults a ClassMap — it is used only to render permission
// names in audit output.
type ClassMap struct {
	entries []ClassEntry // entries[0] is always the reserved slot.
	byName  map[string]avc.Class
}

// ParseClassMap strips JSONC comments and trailing commas from data,
// then unmarshals the result into a ClassMap. The input is a JSON
// array of {"class": "...", "perms": ["...", ...]} objects, one per
// object class, in class-index order starting at 1.
func ParseClassMap(data []byte) (*ClassMap, error) {
	stripped := jsonc.ToJSON(data)

	var raw []ClassEntry
	if err := json.Unmarshal(stripped, &raw); err != nil {
		return nil, fmt.Errorf("avcss: parsing class map: %w", err)
	}

	cm := &ClassMap{
		entries: append([]ClassEntry{{}}, raw...), // index 0 reserved.
		byName:  make(map[string]avc.Class, len(raw)),
	}

	for i, entry := range raw {
		class := avc.Class(i + 1)

		if entry.Name == "" {
			return nil, fmt.Errorf("avcss: class map entry %d: empty class name", class)
		}
		if _, exists := cm.byName[entry.Name]; exists {
			return nil, fmt.Errorf("avcss: class map: duplicate class name %q", entry.Name)
		}
		if len(entry.Perms) > MaxPermsPerClass {
			return nil, fmt.Errorf("avcss: class %q declares %d permissions, max %d", entry.Name, len(entry.Perms), MaxPermsPerClass)
		}

		seen := make(map[string]bool, len(entry.Perms))
		for _, perm := range entry.Perms {
			if perm == "" {
				return nil, fmt.Errorf("avcss: class %q: empty permission name", entry.Name)
			}
			if seen[perm] {
				return nil, fmt.Errorf("avcss: class %q: duplicate permission name %q", entry.Name, perm)
			}
			seen[perm] = true
		}

		cm.byName[entry.Name] = class
	}

	return cm, nil
}

// LoadClassMapFile reads and parses a class map from a JSONC file on
// disk.
func LoadClassMapFile(path string) (*ClassMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("avcss: reading class map %s: %w", path, err)
	}

	cm, err := ParseClassMap(data)
	if err != nil {
		return nil, fmt.Errorf("avcss: %s: %w", path, err)
	}
	return cm, nil
}

// ClassByIndex returns the class entry for tclass and whether it
// exists.
func (cm *ClassMap) ClassByIndex(tclass avc.Class) (ClassEntry, bool) {
	if cm == nil || int(tclass) <= 0 || int(tclass) >= len(cm.entries) {
		return ClassEntry{}, false
	}
	return cm.entries[tclass], true
}

// ClassByName returns the class index for name and whether it exists.
func (cm *ClassMap) ClassByName(name string) (avc.Class, bool) {
	if cm == nil {
		return 0, false
	}
	class, ok := cm.byName[name]
	return class, ok
}

// PermBit returns the bit position of permName within tclass's
// permission list, and whether it was found.
func (cm *ClassMap) PermBit(tclass avc.Class, permName string) (uint, bool) {
	entry, ok := cm.ClassByIndex(tclass)
	if !ok {
		return 0, false
	}
	for i, name := range entry.Perms {
		if name == permName {
			return uint(i), true
		}
	}
	return 0, false
}

// PermName renders a single permission bit as its name, or as
// "0x%x" when the class has no name for that bit — the same fallback
// avc_dump_av uses for an unnamed permission.
func (cm *ClassMap) PermName(tclass avc.Class, bit uint) string {
	entry, ok := cm.ClassByIndex(tclass)
	if !ok || int(bit) >= len(entry.Perms) {
		return fmt.Sprintf("0x%x", uint32(1)<<bit)
	}
	return entry.Perms[bit]
}

// PermNames renders every set bit of perms as a name, in bit order.
func (cm *ClassMap) PermNames(tclass avc.Class, perms avc.Perm) []string {
	var names []string
	for bit := uint(0); bit < 32; bit++ {
		if perms&(1<<bit) == 0 {
			continue
		}
		names = append(names, cm.PermName(tclass, bit))
	}
	return names
}

// ClassName renders tclass's name, or "0x%x" as a fallback.
func (cm *ClassMap) ClassName(tclass avc.Class) string {
	entry, ok := cm.ClassByIndex(tclass)
	if !ok || entry.Name == "" {
		return fmt.Sprintf("0x%x", uint16(tclass))
	}
	return entry.Name
}
