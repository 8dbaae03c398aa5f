//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll truncates every ledger table. audit_logs rejects DELETE and UPDATE
// through its trigger, but TRUNCATE is allowed for test resets.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err := env.Pool.Exec(ctx,
		"TRUNCATE TABLE event_outbox, audit_logs, fines, fine_presets, players RESTART IDENTITY CASCADE")
	if err != nil {
		env.t.Fatalf("CleanAll: %v", err)
	}
}
