package handlers

import (
	"database/sql"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"backend/models"
	"backend/utils"
)

func TestLoginHandlerUnknownUser(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectQuery("FROM users WHERE email").
		WithArgs("ghost@acme.test").
		WillReturnError(sql.ErrNoRows)

	r := gin.New()
	r.POST("/api/login", LoginHandler(db))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/login",
		strings.NewReader(`{"email":"ghost@acme.test","password":"secret"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an unknown user, got %d", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenHandler(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	refreshToken, err := utils.GenerateRefreshToken("e@acme.test", "sess-42")
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	mock.ExpectQuery("FROM session s").
		WithArgs("sess-42").
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "role", "company_id"}).
			AddRow(7, "e@acme.test", models.RoleEditor, 3))

	r := gin.New()
	r.POST("/api/refresh-token", RefreshTokenHandler(db))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/refresh-token",
		strings.NewReader(`{"refresh_token":"`+refreshToken+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), "access_token") {
		t.Fatalf("no access token in response: %s", w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRefreshTokenHandlerRejectsAccessToken(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	// An access token carries type=access; it must not work as a refresh
	// credential.
	accessToken, err := utils.GenerateJWT("e@acme.test")
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}

	r := gin.New()
	r.POST("/api/refresh-token", RefreshTokenHandler(db))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/refresh-token",
		strings.NewReader(`{"refresh_token":"`+accessToken+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an access token, got %d", w.Code)
	}
}

func TestRefreshTokenHandlerDeadSession(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	refreshToken, err := utils.GenerateRefreshToken("e@acme.test", "sess-gone")
	if err != nil {
		t.Fatalf("GenerateRefreshToken: %v", err)
	}

	mock.ExpectQuery("FROM session s").
		WithArgs("sess-gone").
		WillReturnError(sql.ErrNoRows)

	r := gin.New()
	r.POST("/api/refresh-token", RefreshTokenHandler(db))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/refresh-token",
		strings.NewReader(`{"refresh_token":"`+refreshToken+`"}`))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusUnauthorized {
		t.Fatalf("refresh must not resurrect a logged-out session, got %d", w.Code)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestLogoutHandlerDeletesSessionRow(t *testing.T) {
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New: %v", err)
	}
	defer db.Close()

	mock.ExpectExec("DELETE FROM session WHERE session_id").
		WithArgs("sess-42").
		WillReturnResult(sqlmock.NewResult(0, 1))

	r := gin.New()
	r.POST("/api/logout", LogoutHandler(db))

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/logout", nil)
	req.Header.Set("Authorization", "Bearer sess-42")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
