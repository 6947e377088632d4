package push

import (
	"context"
	"crypto/ecdh"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/999joaquin/CoreTrack/internal/model"
)

func TestGenerateVAPIDKeys(t *testing.T) {
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}

	if pub == "" {
		t.Error("expected non-empty public key")
	}
	if priv == "" {
		t.Error("expected non-empty private key")
	}

	// Public key should be base64url-encoded, 65 bytes uncompressed P-256 point
	pubBytes, err := base64.RawURLEncoding.DecodeString(pub)
	if err != nil {
		t.Fatalf("decode public key: %v", err)
	}
	if len(pubBytes) != 65 {
		t.Errorf("public key length = %d, want 65", len(pubBytes))
	}

	// Private key should be base64url-encoded, 32 bytes P-256 scalar
	privBytes, err := base64.RawURLEncoding.DecodeString(priv)
	if err != nil {
		t.Fatalf("decode private key: %v", err)
	}
	if len(privBytes) != 32 {
		t.Errorf("private key length = %d, want 32", len(privBytes))
	}

	// Generate again, should be different
	pub2, _, _ := GenerateVAPIDKeys()
	if pub == pub2 {
		t.Error("expected different keys on second generation")
	}
}

func testSubscription(t *testing.T, endpoint string) *model.PushSubscription {
	t.Helper()
	key, err := ecdh.P256().GenerateKey(rand.Reader)
	if err != nil {
		t.Fatalf("generate client key: %v", err)
	}
	auth := make([]byte, 16)
	rand.Read(auth)
	return &model.PushSubscription{
		Endpoint:  endpoint,
		P256dhKey: base64.RawURLEncoding.EncodeToString(key.PublicKey().Bytes()),
		AuthKey:   base64.RawURLEncoding.EncodeToString(auth),
	}
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	pub, priv, err := GenerateVAPIDKeys()
	if err != nil {
		t.Fatalf("generate VAPID keys: %v", err)
	}
	return NewService(pub, priv, "mailto:test@example.com")
}

func TestSendDelivers(t *testing.T) {
	var gotAuth, gotEncoding string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotEncoding = r.Header.Get("Content-Encoding")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	svc := newTestService(t).WithHTTPClient(srv.Client())
	err := svc.Send(context.Background(), testSubscription(t, srv.URL), Payload{Title: "Hi", Body: "There"})
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotAuth == "" {
		t.Error("expected VAPID authorization header")
	}
	if gotEncoding != "aes128gcm" {
		t.Errorf("content-encoding = %q, want aes128gcm", gotEncoding)
	}
}

func TestSendExpired(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusGone)
	}))
	defer srv.Close()

	svc := newTestService(t).WithHTTPClient(srv.Client())
	err := svc.Send(context.Background(), testSubscription(t, srv.URL), Payload{Title: "Hi"})
	if !errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want ErrExpired", err)
	}
}

func TestSendServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	svc := newTestService(t).WithHTTPClient(srv.Client())
	err := svc.Send(context.Background(), testSubscription(t, srv.URL), Payload{Title: "Hi"})
	if err == nil || errors.Is(err, ErrExpired) {
		t.Errorf("err = %v, want a non-expiry error", err)
	}
}

func TestEnabled(t *testing.T) {
	if NewService("", "", "").Enabled() {
		t.Error("service without keys should be disabled")
	}
	var nilSvc *Service
	if nilSvc.Enabled() {
		t.Error("nil service should be disabled")
	}
	if !newTestService(t).Enabled() {
		t.Error("service with keys should be enabled")
	}
}

func TestFromNotification(t *testing.T) {
	url := "/tasks/4"
	p := FromNotification(model.Notification{
		ID:        12,
		Title:     "New task assigned",
		Message:   `You have been assigned to "Wireframes".`,
		Type:      model.NotifWarning,
		Category:  model.CategoryTask,
		ActionURL: &url,
	})

	if p.Tag != "notification-12" || p.URL != "/tasks/4" || p.Category != "task" {
		t.Errorf("payload = %+v", p)
	}
	if got := urgency(p.Type); got != "high" {
		t.Errorf("urgency = %q, want high", got)
	}
	if got := urgency(model.NotifInfo); got != "low" {
		t.Errorf("info urgency = %q, want low", got)
	}
}

func TestSendSetsUrgencyAndTopic(t *testing.T) {
	var gotUrgency, gotTopic string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUrgency = r.Header.Get("Urgency")
		gotTopic = r.Header.Get("Topic")
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	svc := newTestService(t).WithHTTPClient(srv.Client())
	payload := Payload{Title: "Budget alert", Type: model.NotifError, Category: model.CategoryExpense}
	if err := svc.Send(context.Background(), testSubscription(t, srv.URL), payload); err != nil {
		t.Fatalf("send: %v", err)
	}
	if gotUrgency != "high" || gotTopic != "expense" {
		t.Errorf("urgency = %q, topic = %q", gotUrgency, gotTopic)
	}
}
