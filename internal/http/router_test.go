package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tendant/pawfinder/internal/config"
	"github.com/tendant/pawfinder/internal/notification"
	"github.com/tendant/pawfinder/internal/realtime"
	"github.com/tendant/pawfinder/pkg/auth"
	"github.com/tendant/pawfinder/pkg/lifecycle"
	"github.com/tendant/pawfinder/pkg/matcher"
	"github.com/tendant/pawfinder/pkg/repository/memory"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

// mailbox records both synchronous sends and queued messages.
type mailbox struct {
	mu   sync.Mutex
	msgs []notification.Message
}

func (m *mailbox) Send(ctx context.Context, msg notification.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.msgs = append(m.msgs, msg)
	return nil
}

func (m *mailbox) Enqueue(ctx context.Context, msg notification.Message) error {
	return m.Send(ctx, msg)
}

func (m *mailbox) byKind(kind string) []notification.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []notification.Message
	for _, msg := range m.msgs {
		if msg.Kind == kind {
			out = append(out, msg)
		}
	}
	return out
}

var otpPattern = regexp.MustCompile(`\b\d{6}\b`)

type testServer struct {
	t    *testing.T
	url  string
	mail *mailbox
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	accounts := memory.NewAccountRepo()
	petRepo := memory.NewPetRepo(accounts)
	rt := realtime.NewRouter(logger)
	mail := &mailbox{}

	handler := NewRouter(RouterConfig{
		Logger:          logger,
		Credentials:     auth.NewCredentialStore(accounts, auth.CredentialStoreConfig{StrictEmailValidation: true}, logger),
		Codes:           auth.NewCodeIssuer(),
		SessionService:  auth.NewSessionService(auth.SessionConfig{JWTSecret: []byte("secret")}),
		Lifecycle:       lifecycle.NewManager(petRepo, accounts, rt, mail, logger),
		Matcher:         matcher.New(petRepo, logger),
		Realtime:        rt,
		Sender:          mail,
		Mail:            mail,
		NotifyTimeout:   time.Second,
		RateLimitConfig: config.RateLimitConfig{Enabled: false},
		SecurityHeaders: config.SecurityHeadersConfig{Enabled: true, ContentTypeOptions: "nosniff"},
		Validation:      config.ValidationConfig{MaxRequestBodySize: 1 << 20, MaxPhotoSize: 1 << 16},
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return &testServer{t: t, url: srv.URL, mail: mail}
}

func (s *testServer) do(method, path, token string, body io.Reader, contentType string) (int, map[string]any) {
	s.t.Helper()
	req, err := http.NewRequest(method, s.url+path, body)
	if err != nil {
		s.t.Fatal(err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		s.t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var out map[string]any
	json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func (s *testServer) postJSON(path, token, body string) (int, map[string]any) {
	return s.do(http.MethodPost, path, token, strings.NewReader(body), "application/json")
}

func (s *testServer) postFile(path, token, field string, content []byte, fields map[string]string) (int, map[string]any) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	if field != "" {
		fw, _ := mw.CreateFormFile(field, "photo.jpg")
		fw.Write(content)
	}
	mw.Close()
	return s.do(http.MethodPost, path, token, &buf, mw.FormDataContentType())
}

// signIn registers username and walks the login + code flow, returning the
// account ID and access token.
func (s *testServer) signIn(username, email string) (int64, string) {
	s.t.Helper()
	if status, body := s.postJSON("/register", "", `{"username":"`+username+`","email":"`+email+`","password":"pw","confirm_password":"pw"}`); status != http.StatusCreated {
		s.t.Fatalf("register %s: %d %v", username, status, body)
	}
	if status, body := s.postJSON("/login", "", `{"username":"`+username+`","password":"pw"}`); status != http.StatusOK {
		s.t.Fatalf("login %s: %d %v", username, status, body)
	}
	otps := s.mail.byKind(notification.KindOTP)
	code := otpPattern.FindString(otps[len(otps)-1].Text)

	status, body := s.postJSON("/verify_otp", "", `{"username":"`+username+`","otp":"`+code+`"}`)
	if status != http.StatusOK {
		s.t.Fatalf("verify_otp %s: %d %v", username, status, body)
	}
	return int64(body["accountId"].(float64)), body["access_token"].(string)
}

func (s *testServer) dialWS(query string) *websocket.Conn {
	s.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(s.url, "http")+"/ws"+query, nil)
	if err != nil {
		s.t.Fatalf("dial: %v", err)
	}
	s.t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn, want string) realtime.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var evt realtime.Event
	if err := wsjson.Read(ctx, conn, &evt); err != nil {
		t.Fatalf("waiting for %s: %v", want, err)
	}
	if evt.Type != want {
		t.Fatalf("got %s (%s), want %s", evt.Type, evt.Payload, want)
	}
	return evt
}

func writeEvent(t *testing.T, conn *websocket.Conn, eventType, payload string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	evt := realtime.Event{Type: eventType}
	if payload != "" {
		evt.Payload = json.RawMessage(payload)
	}
	if err := wsjson.Write(ctx, conn, evt); err != nil {
		t.Fatal(err)
	}
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t)
	status, body := s.do(http.MethodGet, "/health", "", nil, "")
	if status != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", status, body)
	}
}

func TestRouter_LoginScenario(t *testing.T) {
	s := newTestServer(t)

	status, _ := s.postJSON("/register", "", `{"username":"alice","email":"a@x.com","password":"pw","confirm_password":"pw"}`)
	if status != http.StatusCreated {
		t.Fatalf("register = %d", status)
	}
	if status, _ := s.postJSON("/api/register", "", `{"username":"Alice ","email":"other@x.com","password":"pw","confirm_password":"pw"}`); status != http.StatusBadRequest {
		t.Errorf("duplicate register under /api = %d, want 400", status)
	}

	status, body := s.postJSON("/login", "", `{"username":"alice","password":"pw"}`)
	if status != http.StatusOK || body["accountId"] != float64(1) {
		t.Fatalf("login = %d %v", status, body)
	}
	code := otpPattern.FindString(s.mail.byKind(notification.KindOTP)[0].Text)
	wrong := "100000"
	if code == wrong {
		wrong = "100001"
	}

	if status, body := s.postJSON("/verify_otp", "", `{"username":"alice","otp":"`+wrong+`"}`); status != http.StatusBadRequest || body["message"] != "Invalid OTP." {
		t.Errorf("wrong code = %d %v", status, body)
	}
	if status, _ := s.postJSON("/verify_otp", "", `{"username":"alice","otp":"`+code+`"}`); status != http.StatusOK {
		t.Errorf("correct code = %d", status)
	}
	if status, body := s.postJSON("/verify_otp", "", `{"username":"alice","otp":"`+code+`"}`); status != http.StatusBadRequest || body["message"] != "No OTP found. Please login first." {
		t.Errorf("reused code = %d %v", status, body)
	}
	if status, _ := s.postJSON("/login", "", `{"username":"alice","password":"bad"}`); status != http.StatusUnauthorized {
		t.Errorf("bad password = %d, want 401", status)
	}
}

func TestRouter_PetLifecycleAndRealtime(t *testing.T) {
	s := newTestServer(t)
	aliceID, aliceToken := s.signIn("alice", "a@x.com")
	bobID, _ := s.signIn("bob", "b@x.com")

	photo := []byte("\xff\xd8\xffrex-photo")
	status, body := s.postFile("/register_pet", aliceToken, "image", photo, map[string]string{"type": "dog", "name": "Rex", "age": "3", "breed": "lab"})
	if status != http.StatusCreated {
		t.Fatalf("register_pet = %d %v", status, body)
	}
	petID := int64(body["petId"].(float64))

	if status, _ := s.postFile("/register_pet", "", "image", photo, map[string]string{"type": "dog", "name": "Rex"}); status != http.StatusUnauthorized {
		t.Errorf("register_pet without token = %d, want 401", status)
	}

	owner := s.dialWS("")
	writeEvent(t, owner, realtime.EventTypeJoinRoom, `{"accountId":`+itoa(aliceID)+`}`)
	readEvent(t, owner, realtime.EventTypeRoomJoined)
	neighbor := s.dialWS("")
	writeEvent(t, neighbor, realtime.EventTypeJoinRoom, `{"accountId":`+itoa(bobID)+`}`)
	readEvent(t, neighbor, realtime.EventTypeRoomJoined)

	status, body = s.postJSON("/pet/"+itoa(petID)+"/mark_missing", "", `{"missingLocation":[12.34,56.78]}`)
	if status != http.StatusOK || body["message"] != "Pet marked as missing" {
		t.Fatalf("mark_missing = %d %v", status, body)
	}
	for _, conn := range []*websocket.Conn{owner, neighbor} {
		evt := readEvent(t, conn, "pet_missing")
		if !strings.Contains(string(evt.Payload), `"location":[12.34,56.78]`) {
			t.Errorf("pet_missing payload = %s", evt.Payload)
		}
	}
	if alerts := s.mail.byKind(notification.KindPetMissing); len(alerts) != 1 || alerts[0].To != "a@x.com" {
		t.Errorf("missing alerts = %+v", alerts)
	}

	status, body = s.do(http.MethodGet, "/api/missing_pets", "", nil, "")
	list, _ := body["missing_pets"].([]any)
	if status != http.StatusOK || len(list) != 1 || list[0].(map[string]any)["owner_email"] != "a@x.com" {
		t.Errorf("missing_pets = %d %v", status, body)
	}

	status, body = s.postFile("/check_image", "", "photo", photo, nil)
	if status != http.StatusOK || body["match"] != true || body["petId"] != float64(petID) {
		t.Errorf("check_image = %d %v", status, body)
	}
	modified := append([]byte(nil), photo...)
	modified[len(modified)-1] ^= 1
	if status, body := s.postFile("/check_image", "", "image", modified, nil); status != http.StatusOK || body["match"] != false {
		t.Errorf("check_image modified = %d %v", status, body)
	}

	status, _ = s.postJSON("/send_email", "", `{"name":"Finn","email":"finn@x.com","address":"1 Elm St","pet_id":`+itoa(petID)+`}`)
	if status != http.StatusOK {
		t.Errorf("send_email = %d", status)
	}
	if reports := s.mail.byKind(notification.KindFinderReport); len(reports) != 1 || reports[0].To != "a@x.com" {
		t.Errorf("finder reports = %+v", reports)
	}

	if status, _ := s.postJSON("/pet/"+itoa(petID)+"/found", "", ""); status != http.StatusOK {
		t.Fatalf("found = %d", status)
	}
	found := readEvent(t, owner, "pet_found")
	if !strings.Contains(string(found.Payload), "Rex has been marked as found") {
		t.Errorf("pet_found payload = %s", found.Payload)
	}
	// The neighbor's next event is the pong, not pet_found.
	writeEvent(t, neighbor, realtime.EventTypePing, "")
	readEvent(t, neighbor, realtime.EventTypePong)

	status, body = s.do(http.MethodGet, "/me/pets", aliceToken, nil, "")
	pets, _ := body["pets"].([]any)
	if status != http.StatusOK || len(pets) != 1 {
		t.Fatalf("me/pets = %d %v", status, body)
	}
	pet := pets[0].(map[string]any)
	if pet["status"] != "normal" || pet["last_known_location"] != nil {
		t.Errorf("pet after found = %v", pet)
	}

	status, body = s.do(http.MethodGet, "/user/"+itoa(aliceID), "", nil, "")
	if status != http.StatusOK || body["user"].(map[string]any)["username"] != "alice" {
		t.Errorf("user = %d %v", status, body)
	}
}

func TestRouter_NotFoundAndValidation(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name       string
		method     string
		path       string
		body       string
		wantStatus int
	}{
		{name: "mark unknown pet", method: http.MethodPost, path: "/pet/99/mark_missing", wantStatus: http.StatusNotFound},
		{name: "found unknown pet", method: http.MethodPost, path: "/api/pet/99/found", wantStatus: http.StatusNotFound},
		{name: "non-numeric pet id", method: http.MethodPost, path: "/pet/abc/found", wantStatus: http.StatusNotFound},
		{name: "zero pet id", method: http.MethodPost, path: "/api/pet/0/mark_missing", wantStatus: http.StatusNotFound},
		{name: "non-numeric user id", method: http.MethodGet, path: "/user/bob", wantStatus: http.StatusNotFound},
		{name: "unknown user", method: http.MethodGet, path: "/user/42", wantStatus: http.StatusNotFound},
		{name: "report for unknown pet", method: http.MethodPost, path: "/send_email", body: `{"name":"F","email":"f@x.com","address":"here","pet_id":7}`, wantStatus: http.StatusNotFound},
		{name: "report missing fields", method: http.MethodPost, path: "/send_email", body: `{"pet_id":7}`, wantStatus: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, _ := s.do(tt.method, tt.path, "", strings.NewReader(tt.body), "application/json")
			if status != tt.wantStatus {
				t.Errorf("status = %d, want %d", status, tt.wantStatus)
			}
		})
	}

	_, token := s.signIn("carol", "c@x.com")
	_, body := s.postFile("/register_pet", token, "", nil, map[string]string{"type": "cat", "name": "Tom"})
	petID := itoa(int64(body["petId"].(float64)))

	locationTests := []struct {
		name string
		body string
	}{
		{name: "latitude out of range", body: `{"missingLocation":[91,0]}`},
		{name: "not a pair", body: `{"missing_location":[1]}`},
		{name: "not json", body: `[`},
	}
	for _, tt := range locationTests {
		t.Run(tt.name, func(t *testing.T) {
			if status, _ := s.postJSON("/pet/"+petID+"/mark_missing", "", tt.body); status != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", status)
			}
		})
	}

	status, body := s.postJSON("/pet/"+petID+"/mark_missing", "", `{"missing_location":[1.5,2.5]}`)
	if status != http.StatusOK {
		t.Fatalf("legacy key = %d %v", status, body)
	}
	if loc, _ := body["missingLocation"].([]any); len(loc) != 2 || loc[0] != 1.5 {
		t.Errorf("missingLocation = %v", body["missingLocation"])
	}

	if status, _ := s.postFile("/check_image", "", "", nil, nil); status != http.StatusBadRequest {
		t.Errorf("check_image without photo = %d, want 400", status)
	}
}

func itoa(n int64) string {
	b, _ := json.Marshal(n)
	return string(b)
}
