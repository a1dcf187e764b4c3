package utils

import "github.com/gofiber/fiber/v2"

// Envelope is the body of every provider API response except chat.
type Envelope struct {
	Success    bool        `json:"success"`
	Data       interface{} `json:"data,omitempty"`
	Error      string      `json:"error,omitempty"`
	Pagination *PageInfo   `json:"pagination,omitempty"`
}

type PageInfo struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(Envelope{Success: true, Data: data})
}

func Error(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(Envelope{Error: message})
}

// Paginated answers with one page of a listing that has total rows.
func Paginated(c *fiber.Ctx, data interface{}, p Page, total int64) error {
	return c.Status(fiber.StatusOK).JSON(Envelope{
		Success: true,
		Data:    data,
		Pagination: &PageInfo{
			Page:       p.Number,
			Limit:      p.Limit,
			Total:      total,
			TotalPages: int((total + int64(p.Limit) - 1) / int64(p.Limit)),
		},
	})
}
