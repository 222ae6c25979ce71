package assistant

import (
	"context"

	"github.com/bissquit/incident-portal/internal/domain"
	"github.com/bissquit/incident-portal/internal/pkg/ctxlog"
)

// Assistant answers utterances for a scope using the configured snapshot.
type Assistant struct {
	engine    *Engine
	snapshots SnapshotProvider
}

// New creates an assistant.
func New(engine *Engine, snapshots SnapshotProvider) *Assistant {
	return &Assistant{engine: engine, snapshots: snapshots}
}

// Reply computes the answer to utterance. It never fails on missing incident
// data; the snapshot provider falls back to its seed set.
func (a *Assistant) Reply(ctx context.Context, utterance string, scope domain.AccessScope) (Response, error) {
	snap := a.snapshots.Snapshot(ctx)
	if snap.Fallback {
		ctxlog.FromContext(ctx).Warn("chat answer uses fallback incidents")
	}

	return a.engine.Respond(Input{
		Utterance: utterance,
		Scope:     scope,
		Incidents: snap.Incidents,
		Now:       snap.Now,
	})
}
