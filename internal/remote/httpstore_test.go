package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

type staticToken string

func (s staticToken) Token() string { return string(s) }

// TestHTTPStoreRead verifies the request path, bearer header and decoding.
func TestHTTPStoreRead(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/db/userProgress/u1/w1" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer tok" {
			t.Errorf("Authorization = %q", got)
		}
		json.NewEncoder(w).Encode(map[string]int{"Squats": 12})
	}))
	defer ts.Close()

	s := NewHTTPStore(ts.URL+"/", staticToken("tok"))
	var rec map[string]int
	ok, err := s.Read(context.Background(), Progress("u1", "w1"), &rec)
	if err != nil || !ok {
		t.Fatalf("Read = ok=%v err=%v", ok, err)
	}
	if rec["Squats"] != 12 {
		t.Errorf("rec = %v", rec)
	}
}

// TestHTTPStoreNotFound verifies 404 maps to a miss, not an error.
func TestHTTPStoreNotFound(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer ts.Close()

	var v any
	ok, err := NewHTTPStore(ts.URL, nil).Read(context.Background(), Course("c1"), &v)
	if err != nil || ok {
		t.Fatalf("Read = ok=%v err=%v, want miss", ok, err)
	}
}

// TestHTTPStoreWrite verifies PUT with a JSON body.
func TestHTTPStoreWrite(t *testing.T) {
	var gotMethod string
	var gotBody []string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		data, _ := io.ReadAll(r.Body)
		json.Unmarshal(data, &gotBody)
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	err := NewHTTPStore(ts.URL, staticToken("t")).Write(context.Background(), UserCourses("u1"), []string{"c1", "c2"})
	if err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodPut {
		t.Errorf("method = %s, want PUT", gotMethod)
	}
	if len(gotBody) != 2 || gotBody[1] != "c2" {
		t.Errorf("body = %v", gotBody)
	}
}

// TestHTTPStoreWriteNilDeletes verifies a nil write is sent as DELETE.
func TestHTTPStoreWriteNilDeletes(t *testing.T) {
	var gotMethod string
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusNoContent)
	}))
	defer ts.Close()

	if err := NewHTTPStore(ts.URL, nil).Write(context.Background(), Progress("u1", "w1"), nil); err != nil {
		t.Fatal(err)
	}
	if gotMethod != http.MethodDelete {
		t.Errorf("method = %s, want DELETE", gotMethod)
	}
}

// TestHTTPStoreFailureIsUnavailable verifies server errors wrap ErrUnavailable
// and 401 triggers the unauthorized hook.
func TestHTTPStoreFailureIsUnavailable(t *testing.T) {
	status := http.StatusInternalServerError
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"boom"}`, status)
	}))
	defer ts.Close()

	s := NewHTTPStore(ts.URL, nil)
	expired := false
	s.OnUnauthorized = func() { expired = true }

	var v any
	_, err := s.Read(context.Background(), Course("c1"), &v)
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if expired {
		t.Error("500 must not trigger the unauthorized hook")
	}

	status = http.StatusUnauthorized
	err = s.Delete(context.Background(), Progress("u1", "w1"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
	if !expired {
		t.Error("401 should trigger the unauthorized hook")
	}
}

// TestHTTPStoreConnectionRefused verifies transport errors wrap ErrUnavailable.
func TestHTTPStoreConnectionRefused(t *testing.T) {
	ts := httptest.NewServer(http.NotFoundHandler())
	url := ts.URL
	ts.Close()

	var v any
	_, err := NewHTTPStore(url, nil).Read(context.Background(), Courses(), &v)
	if !errors.Is(err, ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}
