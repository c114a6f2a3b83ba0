package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/chatdesk/internal/service"
)

func TestErrorHandlerShapes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
		msg  string
	}{
		{"not found", &service.Error{Kind: service.ErrNotFound, Message: "chat not found"}, http.StatusNotFound, "chat not found"},
		{"forbidden", &service.Error{Kind: service.ErrForbidden, Message: "nope"}, http.StatusForbidden, "nope"},
		{"conflict", &service.Error{Kind: service.ErrConflict, Message: "taken"}, http.StatusConflict, "taken"},
		{"unauthorized", &service.Error{Kind: service.ErrUnauthorized, Message: "who"}, http.StatusUnauthorized, "who"},
		{"echo", echo.NewHTTPError(http.StatusMethodNotAllowed, "method not allowed"), http.StatusMethodNotAllowed, "method not allowed"},
		{"internal", errors.New("db exploded"), http.StatusInternalServerError, "internal server error"},
	}
	e := echo.New()
	for _, tc := range cases {
		rec := httptest.NewRecorder()
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
		ErrorHandler(tc.err, c)
		if rec.Code != tc.code {
			t.Errorf("%s: code %d want %d", tc.name, rec.Code, tc.code)
		}
		var body map[string]any
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%s: %v", tc.name, err)
		}
		if body["error"] != tc.msg {
			t.Errorf("%s: error %v want %q", tc.name, body["error"], tc.msg)
		}
	}
}

func TestErrorDetailsAreMerged(t *testing.T) {
	err := &service.Error{Kind: service.ErrForbidden, Message: "missing", Details: map[string]any{"missing": []string{"manage_roles"}}}
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)
	ErrorHandler(err, c)
	var body map[string]any
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	if list, ok := body["missing"].([]any); !ok || len(list) != 1 || list[0] != "manage_roles" {
		t.Fatalf("body = %v", body)
	}
}

func TestValidatorReportsJSONFieldNames(t *testing.T) {
	v := NewValidator()
	err := v.Validate(&loginReq{Email: "nope"})
	if !errors.Is(err, service.ErrBadRequest) {
		t.Fatalf("err = %v", err)
	}
	var se *service.Error
	errors.As(err, &se)
	fields, _ := se.Details["fields"].([]string)
	if len(fields) != 2 || fields[0] != "email (email)" || fields[1] != "password (required)" {
		t.Fatalf("fields = %v", fields)
	}
	if err := v.Validate(&loginReq{Email: "a@b.io", Password: "x"}); err != nil {
		t.Fatal(err)
	}
}
