package google

import (
	"context"

	"github.com/rotisserie/eris"
	"google.golang.org/api/gmail/v1"
)

// GmailSender sends pre-encoded RFC 2822 messages.
type GmailSender interface {
	// SendRaw sends a base64url encoded message as userID ("me" for the
	// impersonated user) and returns the Gmail message ID.
	SendRaw(ctx context.Context, userID, raw string) (string, error)
}

type gmailSender struct {
	svc *gmail.Service
}

// NewGmail creates a Gmail v1 adapter.
func NewGmail(ctx context.Context, opts ...Option) (GmailSender, error) {
	copts, err := clientOptions(ctx, []string{gmail.GmailSendScope}, opts)
	if err != nil {
		return nil, err
	}
	svc, err := gmail.NewService(ctx, copts...)
	if err != nil {
		return nil, eris.Wrap(err, "google: create gmail service")
	}
	return &gmailSender{svc: svc}, nil
}

func (g *gmailSender) SendRaw(ctx context.Context, userID, raw string) (string, error) {
	if userID == "" {
		userID = "me"
	}
	msg, err := g.svc.Users.Messages.Send(userID, &gmail.Message{Raw: raw}).Context(ctx).Do()
	if err != nil {
		return "", wrapAPIError(err)
	}
	return msg.Id, nil
}
