package marketing

import (
	"context"
	"fmt"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// SubscriberSubject resolves a subscriber_id argument into a *Subscriber
// payload.
type SubscriberSubject struct {
	store SubscriberStore
}

var _ api.Subject = (*SubscriberSubject)(nil)

var subscriberArgsSchema = api.MustSchema(`{
	"type": "object",
	"properties": {
		"subscriber_id": {"type": "integer", "minimum": 1}
	},
	"required": ["subscriber_id"]
}`)

// NewSubscriberSubject creates the subject backed by the given store.
func NewSubscriberSubject(store SubscriberStore) *SubscriberSubject {
	return &SubscriberSubject{store: store}
}

func (s *SubscriberSubject) Key() string { return SubjectKeySubscriber }

func (s *SubscriberSubject) Name() string { return "Subscriber" }

func (s *SubscriberSubject) ArgsSchema() *api.Schema { return subscriberArgsSchema }

func (s *SubscriberSubject) Payload(ctx context.Context, data api.SubjectData) (api.Payload, error) {
	id, ok := argInt64(data.Args, "subscriber_id")
	if !ok {
		return nil, fmt.Errorf("subject %q: missing subscriber_id argument", s.Key())
	}
	return s.store.GetSubscriber(ctx, id)
}

// SegmentSubject resolves a segment_id argument into a *Segment payload.
type SegmentSubject struct {
	store SegmentStore
}

var _ api.Subject = (*SegmentSubject)(nil)

var segmentArgsSchema = api.MustSchema(`{
	"type": "object",
	"properties": {
		"segment_id": {"type": "integer", "minimum": 1}
	},
	"required": ["segment_id"]
}`)

// NewSegmentSubject creates the subject backed by the given store.
func NewSegmentSubject(store SegmentStore) *SegmentSubject {
	return &SegmentSubject{store: store}
}

func (s *SegmentSubject) Key() string { return SubjectKeySegment }

func (s *SegmentSubject) Name() string { return "Segment" }

func (s *SegmentSubject) ArgsSchema() *api.Schema { return segmentArgsSchema }

func (s *SegmentSubject) Payload(ctx context.Context, data api.SubjectData) (api.Payload, error) {
	id, ok := argInt64(data.Args, "segment_id")
	if !ok {
		return nil, fmt.Errorf("subject %q: missing segment_id argument", s.Key())
	}
	return s.store.GetSegment(ctx, id)
}
