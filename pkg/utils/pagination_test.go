package utils

import (
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func pageForQuery(t *testing.T, query string) Page {
	t.Helper()
	app := fiber.New()
	var got Page
	app.Get("/", func(c *fiber.Ctx) error {
		got = PageFromQuery(c)
		return c.SendStatus(fiber.StatusNoContent)
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/"+query, nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()
	return got
}

func TestPageFromQuery(t *testing.T) {
	tests := []struct {
		query string
		want  Page
	}{
		{"", Page{Number: 1, Limit: DefaultPageLimit}},
		{"?page=3&limit=15", Page{Number: 3, Limit: 15}},
		{"?page=0&limit=-1", Page{Number: 1, Limit: DefaultPageLimit}},
		{"?page=abc&limit=xyz", Page{Number: 1, Limit: DefaultPageLimit}},
		{"?limit=500", Page{Number: 1, Limit: MaxPageLimit}},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := pageForQuery(t, tt.query); got != tt.want {
				t.Fatalf("PageFromQuery(%q) = %+v, want %+v", tt.query, got, tt.want)
			}
		})
	}

	if off := (Page{Number: 3, Limit: 15}).Offset(); off != 30 {
		t.Fatalf("expected offset 30, got %d", off)
	}
}

func TestPaginatedEnvelope(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return Paginated(c, []string{"a", "b"}, Page{Number: 2, Limit: 2}, 5)
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body Envelope
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if !body.Success || body.Pagination == nil {
		t.Fatalf("unexpected envelope: %+v", body)
	}
	if body.Pagination.TotalPages != 3 || body.Pagination.Total != 5 || body.Pagination.Page != 2 {
		t.Fatalf("unexpected pagination: %+v", body.Pagination)
	}
}

func TestErrorEnvelope(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return Error(c, fiber.StatusConflict, "user already registered")
	})
	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	var body map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusConflict || body["success"] != false || body["error"] != "user already registered" {
		t.Fatalf("unexpected response %d %v", resp.StatusCode, body)
	}
	if _, ok := body["data"]; ok {
		t.Fatal("error envelope must not carry data")
	}
}
