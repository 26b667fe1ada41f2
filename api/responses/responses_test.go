package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	pkgerrors "github.com/mantongash/cartsync/pkg/errors"
)

func TestWriteSuccessEnvelopesData(t *testing.T) {
	resp := httptest.NewRecorder()
	WriteSuccess(resp, map[string]string{"status": "ok"})

	if resp.Code != http.StatusOK {
		t.Fatalf("unexpected status %d", resp.Code)
	}
	var envelope struct {
		Data map[string]string `json:"data"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Data["status"] != "ok" {
		t.Fatalf("unexpected payload %+v", envelope)
	}
}

func TestWriteErrorMapsCodesToStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{pkgerrors.New(pkgerrors.CodeValidation, "bad input"), http.StatusBadRequest},
		{pkgerrors.New(pkgerrors.CodeUnauthorized, "no token"), http.StatusUnauthorized},
		{pkgerrors.New(pkgerrors.CodeNotFound, "missing"), http.StatusNotFound},
		{pkgerrors.New(pkgerrors.CodeDependency, "db down"), http.StatusServiceUnavailable},
		{errors.New("plain"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		resp := httptest.NewRecorder()
		WriteError(context.Background(), nil, resp, tc.err)
		if resp.Code != tc.status {
			t.Fatalf("error %v: expected status %d, got %d", tc.err, tc.status, resp.Code)
		}
	}
}

func TestWriteErrorHidesInternalMessages(t *testing.T) {
	resp := httptest.NewRecorder()
	WriteError(context.Background(), nil, resp, pkgerrors.New(pkgerrors.CodeInternal, "pool exhausted on node 3"))

	var envelope struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(resp.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if envelope.Error.Message != "internal server error" {
		t.Fatalf("internal detail leaked: %q", envelope.Error.Message)
	}
}
