// Package mailpoet provides an embeddable marketing-automation workflow
// engine for Go.
//
// Workflows are versioned step graphs authored as data: a synthetic root,
// trigger steps describing the domain events that start the workflow, and
// action steps executed one at a time as a run advances. Every step of
// every run is an independently scheduled job, so execution survives
// process restarts and scales across workers without any in-process state.
//
// # Core concepts
//
//  1. Workflow: a versioned step graph (see pkg/api).
//  2. Run: one execution instance, pinned to the workflow version that was
//     current when its trigger fired.
//  3. Registry: binds step keys and subject keys to implementations.
//  4. Trigger: turns a domain event into runs via the engine's dispatcher.
//  5. Worker: consumes scheduled step jobs and advances runs.
//
// # Storage backends
//
// Workflows, runs, and the job queue can be backed by:
//
//   - In-memory (non-durable, best for tests)
//   - SQLite (embedded durability)
//   - Postgres
//   - Redis (runs and queue; workflow definitions stay in memory)
//
// # Getting started
//
// Wire a Bundle, register an integration, author a workflow, and fire the
// trigger:
//
//	reg := mailpoet.NewRegistry()
//	trigger, _ := marketing.Register(reg, subscribers, segments, mailer)
//	bundle := mailpoet.NewMemoryBundle(reg, mailpoet.Options{})
//
//	workflow, _ := bundle.CreateWorkflow(ctx, "welcome", steps)
//	status := mailpoet.WorkflowStatusActive
//	bundle.Updates.UpdateWorkflow(ctx, workflow.ID, mailpoet.UpdatePatch{Status: &status})
//
//	go bundle.Start(ctx)
//	trigger.HandleSubscription(ctx, subscriberID, segmentID)
package mailpoet
