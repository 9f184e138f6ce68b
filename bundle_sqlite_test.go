package mailpoet

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	_ "modernc.org/sqlite"

	"github.com/d-alleyne/mailpoet/integrations/marketing"
)

// TestSQLiteBundle_DurableAcrossRestart demonstrates that a run created by a
// trigger event survives a simulated process restart: the workflow, the run,
// and the queued step job all live in the database, and a fresh process only
// needs to re-register its integrations to pick up where it left off.
func TestSQLiteBundle_DurableAcrossRestart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbPath := filepath.Join(t.TempDir(), "mailpoet_bundle.db")
	dsn := "file:" + dbPath + "?_journal=WAL"

	subscribers := marketing.NewMemorySubscriberStore()
	subscribers.Add(&marketing.Subscriber{ID: 42, Email: "ann@example.com"})
	segments := marketing.NewMemorySegmentStore()
	segments.Add(&marketing.Segment{ID: 5, Name: "newsletter"})

	// --- Phase 1: author the workflow and fire the trigger, no processing yet.

	db1, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)

	reg1 := NewRegistry()
	trigger1, err := marketing.Register(reg1, subscribers, segments, &recordingMailer{})
	require.NoError(t, err)

	bundle1, err := NewSQLiteBundle(db1, reg1, Options{})
	require.NoError(t, err)
	reg1.RegisterTriggerHooks(bundle1.Dispatcher)

	workflow, err := bundle1.CreateWorkflow(ctx, "welcome", welcomeSteps())
	require.NoError(t, err)
	active := WorkflowStatusActive
	_, err = bundle1.Updates.UpdateWorkflow(ctx, workflow.ID, UpdatePatch{Status: &active})
	require.NoError(t, err)

	created, err := trigger1.HandleSubscription(ctx, 42, 5)
	require.NoError(t, err)
	require.Len(t, created, 1)
	runID := created[0]

	run, err := bundle1.Runs.GetRun(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, RunStatusRunning, run.Status, "no worker has processed the queue yet")

	// Simulate a process crash by closing the DB and discarding bundle1.
	require.NoError(t, db1.Close())

	// --- Phase 2: "restart" with a new DB handle, registry, and bundle.

	db2, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db2.Close()

	// Step and subject implementations are in-memory only; integrations
	// must be re-registered on each process start.
	reg2 := NewRegistry()
	mailer2 := &recordingMailer{}
	_, err = marketing.Register(reg2, subscribers, segments, mailer2)
	require.NoError(t, err)

	bundle2, err := NewSQLiteBundle(db2, reg2, Options{})
	require.NoError(t, err)

	drain(t, bundle2)

	run, err = bundle2.Runs.GetRun(ctx, runID)
	require.NoError(t, err)
	require.Equal(t, RunStatusComplete, run.Status)

	require.Len(t, mailer2.sent, 1, "the email goes out after the restart")
	require.Equal(t, "ann@example.com", mailer2.sent[0].To)
}
