package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mundodelosninos/mundo-de-los-ninos-sub001/pkg/storage"
)

func TestDownloadRequiresToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	h := NewMediaHandler(nil, signer)

	r := gin.New()
	r.GET("/media/files", h.Download)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/media/files", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", w.Code)
	}
}

func TestDownloadRejectsBadToken(t *testing.T) {
	gin.SetMode(gin.TestMode)

	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	h := NewMediaHandler(nil, signer)

	r := gin.New()
	r.GET("/media/files", h.Download)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/media/files?token=not.a.token", nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for forged token, got %d", w.Code)
	}
}

func TestDownloadRejectsForeignSignature(t *testing.T) {
	gin.SetMode(gin.TestMode)

	other := storage.NewSignedURLSigner("other-secret", time.Minute)
	token, _, err := other.Generate("photos/abc.jpg")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	signer := storage.NewSignedURLSigner("test-secret", time.Minute)
	h := NewMediaHandler(nil, signer)

	r := gin.New()
	r.GET("/media/files", h.Download)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/media/files?token="+token, nil)
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for foreign signature, got %d", w.Code)
	}
}
