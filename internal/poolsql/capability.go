package poolsql

import (
	"context"
	"database/sql"
	"strconv"
	"strings"

	"github.com/semitexa/semitexa-orm/internal/errs"
)

// Capabilities records what the connected server supports, detected once
// per sync run (spec.md §4.4, §6, §7).
type Capabilities struct {
	Version           string
	Major, Minor, Patch int
	SupportsAtomicDDL bool
}

// DetectCapabilities runs SELECT VERSION() and classifies the server. MySQL 8.0+
// (and compatible forks reporting >= 8.0) is assumed to support atomic
// DDL within a transaction; anything below raises SchemaStateError per
// spec.md §7.
func DetectCapabilities(ctx context.Context, db *sql.DB) (*Capabilities, error) {
	var version string
	if err := db.QueryRowContext(ctx, "SELECT VERSION()").Scan(&version); err != nil {
		return nil, errs.SchemaStatef("reading server version: %v", err)
	}

	major, minor, patch, ok := parseVersion(version)
	if !ok {
		return nil, errs.SchemaStatef("unparseable server version %q", version)
	}
	if major < 8 {
		return nil, errs.SchemaStatef("server version %q is below the required MySQL 8.0.0", version)
	}

	return &Capabilities{
		Version:           version,
		Major:             major,
		Minor:             minor,
		Patch:             patch,
		SupportsAtomicDDL: true,
	}, nil
}

func parseVersion(v string) (major, minor, patch int, ok bool) {
	core := v
	if idx := strings.IndexByte(core, '-'); idx >= 0 {
		core = core[:idx]
	}
	parts := strings.SplitN(core, ".", 3)
	if len(parts) < 2 {
		return 0, 0, 0, false
	}
	major, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, 0, false
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, 0, false
	}
	if len(parts) == 3 {
		patch, _ = strconv.Atoi(parts[2])
	}
	return major, minor, patch, true
}

// RequireAtomicDDL returns a CapabilityError when the caller demands
// transactional behavior but the server doesn't support it (§7). When
// wantTransactional is false, the engine is expected to silently fall
// back instead of calling this.
func RequireAtomicDDL(caps *Capabilities, wantTransactional bool) error {
	if wantTransactional && !caps.SupportsAtomicDDL {
		return &errs.Error{Kind: errs.KindCapability, Message: "server does not support atomic DDL but transactional execution was requested"}
	}
	return nil
}
