package utils

import (
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// call runs h against a one-route app and returns status and body.
func call(t *testing.T, route, target string, h fiber.Handler) (int, string) {
	t.Helper()
	app := fiber.New()
	app.Get(route, h)
	resp, err := app.Test(httptest.NewRequest("GET", target, nil))
	require.NoError(t, err)
	b, _ := io.ReadAll(resp.Body)
	return resp.StatusCode, string(b)
}

func TestParsePage(t *testing.T) {
	var page, size int
	var paged bool
	h := func(c *fiber.Ctx) error {
		page, size, paged = ParsePage(c)
		return nil
	}

	call(t, "/", "/", h)
	assert.False(t, paged)

	call(t, "/", "/?page=2&pageSize=5", h)
	assert.True(t, paged)
	assert.Equal(t, 2, page)
	assert.Equal(t, 5, size)

	call(t, "/", "/?page=0&pageSize=1000", h)
	assert.Equal(t, 1, page)
	assert.Equal(t, defaultPageSize, size)
}

func TestParseID(t *testing.T) {
	id := uuid.New()
	status, body := call(t, "/x/:id", "/x/"+id.String(), func(c *fiber.Ctx) error {
		got, err := ParseID(c)
		if err != nil {
			return err
		}
		return c.SendString(got.String())
	})
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, id.String(), body)

	status, _ = call(t, "/x/:id", "/x/not-a-uuid", func(c *fiber.Ctx) error {
		_, err := ParseID(c)
		return err
	})
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestQueryFilters(t *testing.T) {
	h := func(c *fiber.Ctx) error {
		if _, err := QueryUUID(c, "case"); err != nil {
			return err
		}
		b, err := QueryBool(c, "is_completed")
		if err != nil {
			return err
		}
		if b == nil {
			return c.SendString("none")
		}
		if *b {
			return c.SendString("true")
		}
		return c.SendString("false")
	}

	status, body := call(t, "/", "/", h)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "none", body)

	_, body = call(t, "/", "/?is_completed=false&case="+uuid.NewString(), h)
	assert.Equal(t, "false", body)

	status, _ = call(t, "/", "/?case=abc", h)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, _ = call(t, "/", "/?is_completed=maybe", h)
	assert.Equal(t, fiber.StatusBadRequest, status)
}
