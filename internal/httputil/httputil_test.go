package httputil

import (
	"bytes"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestJSON(t *testing.T) {
	w := httptest.NewRecorder()
	JSON(w, http.StatusCreated, map[string]int{"petId": 3})

	if w.Code != http.StatusCreated {
		t.Errorf("status = %d, want 201", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	var body map[string]int
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil || body["petId"] != 3 {
		t.Errorf("body = %v, %v", body, err)
	}
}

func TestError(t *testing.T) {
	w := httptest.NewRecorder()
	Error(w, http.StatusBadRequest, "Invalid OTP.")

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if w.Code != http.StatusBadRequest || body["error"] != "Invalid OTP." {
		t.Errorf("status = %d, body = %v", w.Code, body)
	}
}

func TestAccessTokenCookie(t *testing.T) {
	cfg := DefaultCookieConfig()

	w := httptest.NewRecorder()
	SetAccessTokenCookie(w, "tok", time.Hour, cfg)
	cookies := w.Result().Cookies()
	if len(cookies) != 1 || cookies[0].Value != "tok" || !cookies[0].HttpOnly || cookies[0].MaxAge != 3600 {
		t.Fatalf("cookies = %+v", cookies)
	}

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.AddCookie(cookies[0])
	if tok, ok := GetAccessTokenFromCookie(r); !ok || tok != "tok" {
		t.Errorf("GetAccessTokenFromCookie = %q, %v", tok, ok)
	}

	w = httptest.NewRecorder()
	ClearAccessTokenCookie(w, cfg)
	if c := w.Result().Cookies(); len(c) != 1 || c[0].MaxAge >= 0 {
		t.Errorf("cleared cookies = %+v", c)
	}

	if _, ok := GetAccessTokenFromCookie(httptest.NewRequest(http.MethodGet, "/", nil)); ok {
		t.Error("GetAccessTokenFromCookie without cookie should report false")
	}
}

func TestIsMobileClient(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	if IsMobileClient(r) {
		t.Error("plain request is not mobile")
	}
	r.Header.Set("X-Client-Type", "mobile")
	if !IsMobileClient(r) {
		t.Error("X-Client-Type: mobile should be mobile")
	}
}

func multipartRequest(t *testing.T, field string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if field != "" {
		fw, err := mw.CreateFormFile(field, "pet.jpg")
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
	}
	mw.WriteField("name", "Rex")
	mw.Close()

	r := httptest.NewRequest(http.MethodPost, "/check_image", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		t.Fatal(err)
	}
	return r
}

func TestReadFormFile(t *testing.T) {
	tests := []struct {
		name    string
		field   string
		content []byte
		want    []byte
		wantErr error
	}{
		{name: "primary field", field: "photo", content: []byte("abc"), want: []byte("abc")},
		{name: "fallback field", field: "image", content: []byte("xyz"), want: []byte("xyz")},
		{name: "no file", field: "", want: nil},
		{name: "too large", field: "photo", content: bytes.Repeat([]byte("a"), 11), wantErr: ErrFileTooLarge},
		{name: "exactly max", field: "photo", content: bytes.Repeat([]byte("a"), 10), want: bytes.Repeat([]byte("a"), 10)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ReadFormFile(multipartRequest(t, tt.field, tt.content), 10, "photo", "image")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if !bytes.Equal(got, tt.want) {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
