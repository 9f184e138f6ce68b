package marketing

import (
	"context"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// AnySegmentID in a trigger step's segment_ids list makes the trigger match
// subscriptions to any segment.
const AnySegmentID int64 = 0

// SegmentSubscribedTrigger fires when a subscriber joins a segment. The
// trigger step's segment_ids argument selects the segments to listen on; an
// empty list matches nothing, while a list containing AnySegmentID matches
// every segment.
type SegmentSubscribedTrigger struct {
	dispatcher api.TriggerDispatcher
}

var _ api.Trigger = (*SegmentSubscribedTrigger)(nil)

var segmentSubscribedArgsSchema = api.MustSchema(`{
	"type": "object",
	"properties": {
		"segment_ids": {
			"type": "array",
			"items": {"type": "integer", "minimum": 0}
		}
	},
	"required": ["segment_ids"]
}`)

// NewSegmentSubscribedTrigger creates the trigger. It stays inert until the
// engine hands it a dispatcher via RegisterHooks.
func NewSegmentSubscribedTrigger() *SegmentSubscribedTrigger {
	return &SegmentSubscribedTrigger{}
}

func (t *SegmentSubscribedTrigger) Key() string { return TriggerKeySegmentSubscribed }

func (t *SegmentSubscribedTrigger) Name() string { return "Subscribed to segment" }

func (t *SegmentSubscribedTrigger) ArgsSchema() *api.Schema { return segmentSubscribedArgsSchema }

func (t *SegmentSubscribedTrigger) RegisterHooks(dispatcher api.TriggerDispatcher) {
	t.dispatcher = dispatcher
}

// HandleSubscription is the domain entry point: call it when the given
// subscriber joins the given segment. It captures both as subject data and
// dispatches, returning the ids of the workflow runs created.
func (t *SegmentSubscribedTrigger) HandleSubscription(ctx context.Context, subscriberID, segmentID int64) ([]int64, error) {
	if t.dispatcher == nil {
		return nil, &api.InvalidStateError{Reason: "trigger has no dispatcher; call RegisterHooks first"}
	}
	subjects := []api.SubjectData{
		{Key: SubjectKeySegment, Args: map[string]any{"segment_id": segmentID}},
		{Key: SubjectKeySubscriber, Args: map[string]any{"subscriber_id": subscriberID}},
	}
	return t.dispatcher.Dispatch(ctx, t, subjects)
}

// IsTriggeredBy matches the run's captured segment against the trigger
// step's configured segment_ids.
func (t *SegmentSubscribedTrigger) IsTriggeredBy(_ context.Context, workflow *api.Workflow, run *api.Run) (bool, error) {
	step := workflow.Trigger(t.Key())
	if step == nil {
		return false, nil
	}

	segments := run.SubjectsByKey()[SubjectKeySegment]
	if len(segments) == 0 {
		return false, &api.SubjectDataMissingError{Key: SubjectKeySegment, RunID: run.ID}
	}
	segmentID, ok := argInt64(segments[0].Args, "segment_id")
	if !ok {
		return false, &api.InvalidValueError{Field: "segment_id", Value: segments[0].Args["segment_id"]}
	}

	ids, err := configuredSegmentIDs(step.Args)
	if err != nil {
		return false, err
	}
	// A step without configured segments listens on nothing; only the
	// AnySegmentID sentinel opts into every segment.
	if len(ids) == 0 {
		return false, nil
	}
	for _, id := range ids {
		if id == AnySegmentID || id == segmentID {
			return true, nil
		}
	}
	return false, nil
}

// configuredSegmentIDs reads the segment_ids step argument, tolerating the
// numeric representations JSON round-tripping produces.
func configuredSegmentIDs(args map[string]any) ([]int64, error) {
	raw, ok := args["segment_ids"]
	if !ok || raw == nil {
		return nil, nil
	}

	var ids []int64
	switch list := raw.(type) {
	case []int64:
		ids = list
	case []any:
		for _, v := range list {
			id, ok := argInt64(map[string]any{"v": v}, "v")
			if !ok {
				return nil, &api.InvalidValueError{Field: "segment_ids", Value: v}
			}
			ids = append(ids, id)
		}
	default:
		return nil, &api.InvalidValueError{Field: "segment_ids", Value: raw}
	}
	return ids, nil
}
