package twilio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/harunnryd/sprachbot/pkg/errorsx"
	"github.com/harunnryd/sprachbot/pkg/transports"
	"github.com/twilio/twilio-go"
	api "github.com/twilio/twilio-go/rest/api/v2010"
)

type messageCreator interface {
	CreateMessage(params *api.CreateMessageParams) (*api.ApiV2010Message, error)
}

func (t *Transport) client() messageCreator {
	t.clientOnce.Do(func() {
		if t.messages != nil {
			return
		}
		rest := twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: t.cfg.AccountSID,
			Password: t.cfg.AuthToken,
		})
		t.messages = rest.Api
	})
	return t.messages
}

// Send delivers one message. Attachments are hosted under the media path and
// passed to Twilio by URL.
func (t *Transport) Send(ctx context.Context, conversationID string, msg transports.Message) error {
	if conversationID == "" {
		return errors.New("conversation id required")
	}
	if t.cfg.AccountSID == "" || t.cfg.AuthToken == "" {
		return errors.New("missing twilio credentials")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	params := &api.CreateMessageParams{}
	params.SetTo(conversationID)
	params.SetFrom(t.cfg.From)
	if msg.Text != "" {
		params.SetBody(msg.Text)
	}
	if att := msg.Attachment; att != nil {
		if len(att.Data) > t.cfg.MaxAttachmentBytes {
			return errorsx.Wrap(fmt.Errorf("attachment %s is %d bytes, limit %d", att.Name, len(att.Data), t.cfg.MaxAttachmentBytes), errorsx.ReasonTransportSend)
		}
		id := t.media.put(att.Data, att.ContentType, att.Name)
		params.SetMediaUrl([]string{t.publicURL(t.cfg.MediaPath + id)})
	}
	if msg.Text == "" && msg.Attachment == nil {
		return nil
	}
	resp, err := t.client().CreateMessage(params)
	if err != nil {
		t.logger.Error("twilio_send_failed",
			slog.String("conversation_id", conversationID),
			slog.String("error", err.Error()),
			slog.String("reason_code", string(errorsx.ReasonTransportSend)))
		return errorsx.Wrap(err, errorsx.ReasonTransportSend)
	}
	if resp == nil || resp.Sid == nil {
		return errorsx.Wrap(errors.New("missing message sid"), errorsx.ReasonTransportSend)
	}
	t.logger.Debug("twilio_message_sent",
		slog.String("conversation_id", conversationID),
		slog.String("message_sid", *resp.Sid),
		slog.Bool("media", msg.Attachment != nil))
	return nil
}
