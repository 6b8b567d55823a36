package services_test

import (
	"testing"

	"github.com/sophialabs/contractmock/internal/infrastructure/services"
)

func TestHappyPath_LowestTwoHundred(t *testing.T) {
	route := &services.Route{
		Method: "GET",
		Path:   "/contracts",
		Responses: map[int]services.DefaultResponse{
			201: {Body: map[string]any{"example": "B"}},
			200: {Body: map[string]any{"example": "A"}},
			500: {Body: map[string]any{"error": "boom"}},
		},
	}

	status, body, ok := services.HappyPath(route)
	if !ok {
		t.Fatal("expected a happy-path response")
	}
	if status != 200 {
		t.Errorf("status = %d, want 200", status)
	}
	if body.(map[string]any)["example"] != "A" {
		t.Errorf("body = %v, want example A", body)
	}
}

func TestHappyPath_FallsBackToLowestStatus(t *testing.T) {
	route := &services.Route{
		Responses: map[int]services.DefaultResponse{
			404: {},
			301: {Body: "moved"},
		},
	}

	status, body, ok := services.HappyPath(route)
	if !ok || status != 301 || body != "moved" {
		t.Errorf("got %d %v %v, want 301 moved true", status, body, ok)
	}
}

func TestHappyPath_NoResponses(t *testing.T) {
	if _, _, ok := services.HappyPath(&services.Route{}); ok {
		t.Error("empty route should have no happy path")
	}
	if _, _, ok := services.HappyPath(nil); ok {
		t.Error("nil route should have no happy path")
	}
}
