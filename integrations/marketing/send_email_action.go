package marketing

import (
	"context"
	"fmt"

	"github.com/d-alleyne/mailpoet/pkg/api"
)

// Email is one outgoing message.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Mailer delivers email. The integration ships no transport of its own;
// inject whatever your application sends with.
type Mailer interface {
	Send(ctx context.Context, email Email) error
}

// SendEmailAction sends an email to the run's subscriber. The step's args
// provide the subject line and body.
type SendEmailAction struct {
	mailer Mailer
}

var _ api.Action = (*SendEmailAction)(nil)

var sendEmailArgsSchema = api.MustSchema(`{
	"type": "object",
	"properties": {
		"subject": {"type": "string", "minLength": 1},
		"body": {"type": "string"}
	},
	"required": ["subject"]
}`)

// NewSendEmailAction creates the action with the given mailer.
func NewSendEmailAction(mailer Mailer) *SendEmailAction {
	return &SendEmailAction{mailer: mailer}
}

func (a *SendEmailAction) Key() string { return ActionKeySendEmail }

func (a *SendEmailAction) Name() string { return "Send email" }

func (a *SendEmailAction) ArgsSchema() *api.Schema { return sendEmailArgsSchema }

func (a *SendEmailAction) SubjectKeys() []string {
	return []string{SubjectKeySubscriber}
}

func (a *SendEmailAction) Run(ctx context.Context, args *api.StepRunArgs) error {
	entry, err := args.SingleSubject(SubjectKeySubscriber)
	if err != nil {
		return err
	}
	payload, err := entry.Payload(ctx)
	if err != nil {
		return err
	}
	subscriber, ok := payload.(*Subscriber)
	if !ok {
		return &api.InvalidStateError{Reason: fmt.Sprintf("unexpected payload type %T for subject %q", payload, SubjectKeySubscriber)}
	}

	subject, _ := args.Step.Args["subject"].(string)
	body, _ := args.Step.Args["body"].(string)
	return a.mailer.Send(ctx, Email{
		To:      subscriber.Email,
		Subject: subject,
		Body:    body,
	})
}
