package push

import (
	"context"
	"errors"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
	"google.golang.org/api/option"
)

// FCM accepts at most this many tokens per multicast call.
const maxMulticastTokens = 500

// Notification is the payload shown by the browser.
type Notification struct {
	Title string
	Body  string
	Link  string
	Data  map[string]string
}

// Result is the per-token outcome of a send.
type Result struct {
	Token     string
	MessageID string
	Err       error
	// Invalid is true when FCM reports the token as permanently unusable.
	Invalid bool
}

// Report summarizes one Send call.
type Report struct {
	Results []Result
}

func (r Report) SuccessCount() int {
	n := 0
	for _, res := range r.Results {
		if res.Err == nil {
			n++
		}
	}
	return n
}

// InvalidTokens lists the tokens that should be deleted.
func (r Report) InvalidTokens() []string {
	var out []string
	for _, res := range r.Results {
		if res.Invalid {
			out = append(out, res.Token)
		}
	}
	return out
}

// multicaster is the slice of the messaging client the sender needs.
type multicaster interface {
	SendEachForMulticast(ctx context.Context, msg *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Sender delivers web push notifications through Firebase Cloud Messaging.
type Sender struct {
	client multicaster
	log    *zap.Logger
}

// NewSender initializes the Firebase app from a service-account JSON file.
func NewSender(ctx context.Context, credentialsPath string, log *zap.Logger) (*Sender, error) {
	if credentialsPath == "" {
		return nil, errors.New("firebase credentials path is empty")
	}
	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(credentialsPath))
	if err != nil {
		return nil, fmt.Errorf("firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("firebase messaging: %w", err)
	}
	return newSender(client, log), nil
}

func newSender(client multicaster, log *zap.Logger) *Sender {
	if log == nil {
		log = zap.NewNop()
	}
	return &Sender{client: client, log: log}
}

// Send delivers n to every token. A transport failure for one chunk marks that
// chunk's tokens failed and the rest are still attempted.
func (s *Sender) Send(ctx context.Context, tokens []string, n Notification) (Report, error) {
	var rep Report
	if len(tokens) == 0 {
		return rep, nil
	}

	var lastErr error
	for start := 0; start < len(tokens); start += maxMulticastTokens {
		end := start + maxMulticastTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		chunk := tokens[start:end]

		br, err := s.client.SendEachForMulticast(ctx, buildMessage(chunk, n))
		if err != nil {
			s.log.Error("fcm multicast failed", zap.Int("tokens", len(chunk)), zap.Error(err))
			lastErr = err
			for _, tok := range chunk {
				rep.Results = append(rep.Results, Result{Token: tok, Err: err})
			}
			continue
		}
		for i, resp := range br.Responses {
			if i >= len(chunk) {
				break
			}
			res := Result{Token: chunk[i]}
			if resp.Success {
				res.MessageID = resp.MessageID
			} else {
				res.Err = resp.Error
				res.Invalid = IsInvalidToken(resp.Error)
			}
			rep.Results = append(rep.Results, res)
		}
	}

	if lastErr != nil && rep.SuccessCount() == 0 {
		return rep, lastErr
	}
	return rep, nil
}

func buildMessage(tokens []string, n Notification) *messaging.MulticastMessage {
	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: n.Title,
			Body:  n.Body,
		},
		Data: n.Data,
		Webpush: &messaging.WebpushConfig{
			Notification: &messaging.WebpushNotification{
				Title: n.Title,
				Body:  n.Body,
				Tag:   n.Data["tag"],
			},
		},
	}
	if n.Link != "" {
		msg.Webpush.FCMOptions = &messaging.WebpushFCMOptions{Link: n.Link}
	}
	return msg
}

// IsInvalidToken reports whether err means the registration token will never work again.
func IsInvalidToken(err error) bool {
	if err == nil {
		return false
	}
	return messaging.IsUnregistered(err) ||
		messaging.IsInvalidArgument(err) ||
		messaging.IsSenderIDMismatch(err)
}
