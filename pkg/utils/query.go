package utils

import (
	"math"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Page is the paginated list envelope, returned only when ?page= is sent.
type Page[T any] struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
	Pages    int   `json:"pages"`
	Items    []T   `json:"items"`
}

// ParsePage reads page/pageSize. paged is false when no page was requested,
// in which case the caller returns the full list.
func ParsePage(c *fiber.Ctx) (page, size int, paged bool) {
	raw := strings.TrimSpace(c.Query("page"))
	if raw == "" {
		return 0, 0, false
	}
	page, _ = strconv.Atoi(raw)
	size, _ = strconv.Atoi(c.Query("pageSize", strconv.Itoa(defaultPageSize)))
	if page < 1 {
		page = 1
	}
	if size < 1 || size > maxPageSize {
		size = defaultPageSize
	}
	return page, size, true
}

// ParseID reads the :id path param. A malformed id can never match a row,
// so it is reported as 404.
func ParseID(c *fiber.Ctx) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params("id"))
	if err != nil {
		return uuid.Nil, fiber.ErrNotFound
	}
	return id, nil
}

// QueryUUID reads an optional uuid query parameter.
func QueryUUID(c *fiber.Ctx, key string) (*uuid.UUID, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+key+" id")
	}
	return &id, nil
}

// QueryBool reads an optional boolean query parameter ("true"/"false"/"1"/"0").
func QueryBool(c *fiber.Ctx, key string) (*bool, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return nil, fiber.NewError(fiber.StatusBadRequest, "invalid "+key+" filter")
	}
	return &b, nil
}

// FilterByCase narrows q to rows whose case_id matches ?case=, when given.
func FilterByCase(c *fiber.Ctx, q *gorm.DB) (*gorm.DB, error) {
	caseID, err := QueryUUID(c, "case")
	if err != nil {
		return nil, err
	}
	if caseID != nil {
		q = q.Where("case_id = ?", *caseID)
	}
	return q, nil
}

// List runs q newest first and writes either a plain JSON array or, when
// ?page= is present, a Page envelope. Rows are mapped through toDTO.
func List[M any, R any](c *fiber.Ctx, q *gorm.DB, toDTO func(*M) R) error {
	q = q.Session(&gorm.Session{})
	page, size, paged := ParsePage(c)

	var total int64
	if paged {
		if err := q.Model(new(M)).Count(&total).Error; err != nil {
			return err
		}
		q = q.Offset((page - 1) * size).Limit(size)
	}

	var rows []M
	if err := q.Order("created_at DESC").Find(&rows).Error; err != nil {
		return err
	}

	items := make([]R, 0, len(rows))
	for i := range rows {
		items = append(items, toDTO(&rows[i]))
	}

	if !paged {
		return c.JSON(items)
	}
	return c.JSON(Page[R]{
		Page:     page,
		PageSize: size,
		Total:    total,
		Pages:    int(math.Ceil(float64(total) / float64(size))),
		Items:    items, // always [] when empty
	})
}
