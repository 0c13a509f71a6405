// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package avcaudit

import (
	"fmt"
	"sort"
	"strings"

	"github.com/avc-cache/avc/lib/avc"
	"github.com/avc-cache/avc/lib/avcss"
)

// ContextResolver renders a SID as a human-readable security context,
// for audit output only. Typically *avcss.Server.SIDToContext.
type ContextResolver func(sid avc.SID) (string, error)

// render produces the literal audit line for record, matching
// avc_dump_av's text format: a denial is rendered with its denied
// permissions, a pure grant with its granted permissions. classMap
// may be nil, in which case permission and class names fall back to
// their hexadecimal bit/index form; resolve may be nil, in which case
// SIDs render as a bare decimal.
func render(record avc.AuditRecord, classMap *avcss.ClassMap, resolve ContextResolver) string {
	verb := "granted"
	perms := record.Granted
	if record.Denied != 0 {
		verb = "denied"
		perms = record.Denied
	}

	permNames := permNames(classMap, record.Class, perms)
	permissive := 0
	if record.Permissive {
		permissive = 1
	}

	line := fmt.Sprintf("avc: %s { %s } scontext=%s tcontext=%s tclass=%s permissive=%d",
		verb,
		strings.Join(permNames, " "),
		contextString(record.SSID, resolve),
		contextString(record.TSID, resolve),
		className(classMap, record.Class),
		permissive,
	)
	if len(record.Extra) > 0 {
		line += " " + extraFields(record.Extra)
	}
	return line
}

// extraFields renders record.Extra as space-separated key="value" pairs
// in sorted key order, so the same AuditRecord always renders
// byte-identically.
func extraFields(extra map[string]string) string {
	keys := make([]string, 0, len(extra))
	for k := range extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	fields := make([]string, len(keys))
	for i, k := range keys {
		fields[i] = fmt.Sprintf("%s=%q", k, extra[k])
	}
	return strings.Join(fields, " ")
}

func permNames(classMap *avcss.ClassMap, tclass avc.Class, perms avc.Perm) []string {
	if classMap != nil {
		if names := classMap.PermNames(tclass, perms); names != nil {
			return names
		}
		return nil
	}
	var names []string
	for bit := uint(0); bit < 32; bit++ {
		if perms&(1<<bit) != 0 {
			names = append(names, fmt.Sprintf("0x%x", uint32(1)<<bit))
		}
	}
	return names
}

func className(classMap *avcss.ClassMap, tclass avc.Class) string {
	if classMap != nil {
		return classMap.ClassName(tclass)
	}
	return fmt.Sprintf("0x%x", uint16(tclass))
}

func contextString(sid avc.SID, resolve ContextResolver) string {
	if resolve == nil {
		return fmt.Sprintf("%d", uint32(sid))
	}
	ctx, err := resolve(sid)
	if err != nil {
		return fmt.Sprintf("%d", uint32(sid))
	}
	return ctx
}
