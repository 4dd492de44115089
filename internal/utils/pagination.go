package utils

import (
	"math"
	"strconv"

	"github.com/gofiber/fiber/v2"
)

var historyPageSizes = []int{10, 25, 50, 100}

// PaginationParams are the list query parameters accepted by history routes.
type PaginationParams struct {
	Page   int    `json:"page"`
	Limit  int    `json:"limit"`
	Search string `json:"search"`
}

type PaginationMeta struct {
	CurrentPage int   `json:"current_page"`
	PerPage     int   `json:"per_page"`
	Total       int64 `json:"total"`
	LastPage    int   `json:"last_page"`
	From        int   `json:"from"`
	To          int   `json:"to"`
	HasMore     bool  `json:"has_more"`
}

type PaginatedResponse struct {
	Success    bool           `json:"success"`
	Message    string         `json:"message"`
	Data       interface{}    `json:"data"`
	Pagination PaginationMeta `json:"pagination"`
}

// GetPaginationParams reads page, limit and search. Unknown page sizes fall
// back to 25.
func GetPaginationParams(c *fiber.Ctx) PaginationParams {
	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "25"))

	if page < 1 {
		page = 1
	}

	valid := false
	for _, size := range historyPageSizes {
		if limit == size {
			valid = true
			break
		}
	}
	if !valid {
		limit = 25
	}

	return PaginationParams{
		Page:   page,
		Limit:  limit,
		Search: c.Query("search", ""),
	}
}

func CalculatePagination(page, limit int, total int64) PaginationMeta {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 25
	}

	lastPage := int(math.Ceil(float64(total) / float64(limit)))
	from := (page-1)*limit + 1
	to := page * limit

	if total == 0 {
		from = 0
		to = 0
	} else if to > int(total) {
		to = int(total)
	}

	return PaginationMeta{
		CurrentPage: page,
		PerPage:     limit,
		Total:       total,
		LastPage:    lastPage,
		From:        from,
		To:          to,
		HasMore:     page < lastPage,
	}
}

func PaginatedResponseBuilder(c *fiber.Ctx, message string, data interface{}, pagination PaginationMeta) error {
	return c.JSON(PaginatedResponse{
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: pagination,
	})
}

// GetOffset calculates offset for SQL queries
func GetOffset(page, limit int) int {
	return (page - 1) * limit
}
