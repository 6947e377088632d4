package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	webpush "github.com/SherClockHolmes/webpush-go"

	"github.com/999joaquin/CoreTrack/internal/model"
)

const pushTTL = 24 * 60 * 60

// ErrExpired means the push service no longer knows the subscription
// (404 or 410); the caller should delete it.
var ErrExpired = errors.New("push subscription expired")

// Payload is what the service worker receives.
type Payload struct {
	Title    string `json:"title"`
	Body     string `json:"body"`
	URL      string `json:"url,omitempty"`
	Tag      string `json:"tag,omitempty"`
	Type     string `json:"type,omitempty"`
	Category string `json:"category,omitempty"`
}

// FromNotification builds the payload for a stored notification. The tag
// lets the browser replace an earlier copy of the same notification.
func FromNotification(n model.Notification) Payload {
	p := Payload{
		Title:    n.Title,
		Body:     n.Message,
		Tag:      "notification-" + strconv.FormatInt(n.ID, 10),
		Type:     n.Type,
		Category: n.Category,
	}
	if n.ActionURL != nil {
		p.URL = *n.ActionURL
	}
	return p
}

// urgency maps a notification type to the Web Push urgency header.
func urgency(notifType string) webpush.Urgency {
	switch notifType {
	case model.NotifError, model.NotifWarning:
		return webpush.UrgencyHigh
	case model.NotifSuccess:
		return webpush.UrgencyNormal
	default:
		return webpush.UrgencyLow
	}
}

type Service struct {
	publicKey  string
	privateKey string
	subscriber string
	client     webpush.HTTPClient
}

// NewService creates a push service with VAPID keys. subscriber is the
// contact address sent to push services, e.g. "mailto:ops@example.com".
func NewService(publicKey, privateKey, subscriber string) *Service {
	return &Service{
		publicKey:  publicKey,
		privateKey: privateKey,
		subscriber: subscriber,
		client:     http.DefaultClient,
	}
}

func (s *Service) WithHTTPClient(c webpush.HTTPClient) *Service {
	s.client = c
	return s
}

// Enabled reports whether VAPID keys are configured.
func (s *Service) Enabled() bool {
	return s != nil && s.publicKey != "" && s.privateKey != ""
}

func (s *Service) VAPIDPublicKey() string {
	if s == nil {
		return ""
	}
	return s.publicKey
}

// Send encrypts payload for one browser subscription.
func (s *Service) Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	resp, err := webpush.SendNotificationWithContext(ctx, data, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys:     webpush.Keys{P256dh: sub.P256dhKey, Auth: sub.AuthKey},
	}, &webpush.Options{
		HTTPClient:      s.client,
		VAPIDPublicKey:  s.publicKey,
		VAPIDPrivateKey: s.privateKey,
		Subscriber:      s.subscriber,
		Topic:           payload.Category,
		Urgency:         urgency(payload.Type),
		TTL:             pushTTL,
	})
	if err != nil {
		return fmt.Errorf("send push: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone, resp.StatusCode == http.StatusNotFound:
		return ErrExpired
	case resp.StatusCode >= 400:
		return fmt.Errorf("push service returned %d", resp.StatusCode)
	}
	return nil
}

// GenerateVAPIDKeys returns a base64url P-256 key pair: the 65-byte
// uncompressed public point and the 32-byte private scalar.
func GenerateVAPIDKeys() (publicKey, privateKey string, err error) {
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		return "", "", fmt.Errorf("generate P-256 key: %w", err)
	}
	publicKey = base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes())
	privateKey = base64.RawURLEncoding.EncodeToString(key.Bytes())
	return publicKey, privateKey, nil
}
