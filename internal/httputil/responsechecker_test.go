package httputil

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

var respBody = `Sorry this resource isn't available at the moment, please try again later when the resource might be available`

func TestCheckResponse(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(respBody))
	}))
	defer svr.Close()

	cl := svr.Client()
	res, err := cl.Get(svr.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckResponse(res, http.StatusOK); err == nil {
		t.Fatal("expected an error")
	}
}

func TestCheckResponseAcceptable(t *testing.T) {
	svr := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer svr.Close()

	res, err := svr.Client().Get(svr.URL)
	if err != nil {
		t.Fatal(err)
	}
	if err := CheckResponse(res, http.StatusOK); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
