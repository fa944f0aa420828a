package handler

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/kursadbilgin/item-engine/internal/domain"
	"github.com/kursadbilgin/item-engine/internal/observability"
	"github.com/kursadbilgin/item-engine/internal/repository"
)

const (
	defaultPage     = 1
	defaultPageSize = 50
	maxPageSize     = 100

	defaultProcessTimeout = 30 * time.Second
)

type ItemService interface {
	Create(ctx context.Context, item *domain.Item) (*domain.Item, error)
	GetByID(ctx context.Context, id string) (*domain.Item, error)
	List(ctx context.Context, params repository.ListParams) ([]domain.Item, int64, error)
	Update(ctx context.Context, item *domain.Item) (*domain.Item, error)
	Delete(ctx context.Context, id string) error
}

type ItemProcessor interface {
	ProcessItems(ctx context.Context) ([]domain.Item, error)
	GetRun(ctx context.Context, id string) (*domain.ProcessRun, []domain.ProcessFailure, error)
}

type ItemHandler struct {
	service        ItemService
	processor      ItemProcessor
	processTimeout time.Duration
}

func NewItemHandler(service ItemService, processor ItemProcessor, processTimeout time.Duration) (*ItemHandler, error) {
	if service == nil {
		return nil, fmt.Errorf("item service is required")
	}
	if processor == nil {
		return nil, fmt.Errorf("item processor is required")
	}
	if processTimeout <= 0 {
		processTimeout = defaultProcessTimeout
	}
	return &ItemHandler{
		service:        service,
		processor:      processor,
		processTimeout: processTimeout,
	}, nil
}

func RegisterItemRoutes(router fiber.Router, service ItemService, processor ItemProcessor, processTimeout time.Duration) error {
	h, err := NewItemHandler(service, processor, processTimeout)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/items", h.CreateItem)
	v1.Get("/items/:id", h.GetItem)
	v1.Put("/items/:id", h.UpdateItem)
	v1.Delete("/items/:id", h.DeleteItem)
	v1.Get("/items", h.ListItems)
	v1.Post("/items/process", h.ProcessItems)
	v1.Get("/process-runs/:id", h.GetProcessRun)

	return nil
}

type itemRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
	Email       string `json:"email"`
}

type itemResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Status      string    `json:"status"`
	Email       string    `json:"email"`
	CreatedAt   time.Time `json:"createdAt,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt,omitempty"`
}

type listItemsResponse struct {
	Data []itemResponse `json:"data"`
	Meta listMeta       `json:"meta"`
}

type listMeta struct {
	Page     int   `json:"page"`
	PageSize int   `json:"pageSize"`
	Total    int64 `json:"total"`
}

type processItemsResponse struct {
	ProcessedCount int            `json:"processedCount"`
	Items          []itemResponse `json:"items"`
}

type processRunResponse struct {
	ID             string                   `json:"id"`
	Status         string                   `json:"status"`
	TotalCount     int                      `json:"totalCount"`
	SucceededCount int                      `json:"succeededCount"`
	FailedCount    int                      `json:"failedCount"`
	StartedAt      time.Time                `json:"startedAt"`
	FinishedAt     time.Time                `json:"finishedAt"`
	Failures       []processFailureResponse `json:"failures,omitempty"`
}

type processFailureResponse struct {
	ItemID string `json:"itemId"`
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (h *ItemHandler) CreateItem(c *fiber.Ctx) error {
	var req itemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	item, err := requestToDomainItem(req)
	if err != nil {
		return toHTTPError(err)
	}

	created, err := h.service.Create(c.Context(), &item)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusCreated).JSON(toItemResponse(created))
}

func (h *ItemHandler) GetItem(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	item, err := h.service.GetByID(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toItemResponse(item))
}

func (h *ItemHandler) UpdateItem(c *fiber.Ctx) error {
	var req itemRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	item, err := requestToDomainItem(req)
	if err != nil {
		return toHTTPError(err)
	}
	item.ID = strings.TrimSpace(c.Params("id"))

	updated, err := h.service.Update(c.Context(), &item)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(toItemResponse(updated))
}

func (h *ItemHandler) DeleteItem(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	if err := h.service.Delete(c.Context(), id); err != nil {
		return toHTTPError(err)
	}

	return c.SendStatus(fiber.StatusNoContent)
}

func (h *ItemHandler) ListItems(c *fiber.Ctx) error {
	params, err := parseListParams(c)
	if err != nil {
		return toHTTPError(err)
	}

	items, total, err := h.service.List(c.Context(), params)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(listItemsResponse{
		Data: toItemResponses(items),
		Meta: listMeta{
			Page:     params.Page,
			PageSize: params.PageSize,
			Total:    total,
		},
	})
}

// ProcessItems runs a synchronous batch over every stored item. The handler
// bounds the request with a timeout, but an in-flight batch always runs to
// completion; the deadline only caps how long this request waits for it.
func (h *ItemHandler) ProcessItems(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.Context(), h.processTimeout)
	defer cancel()

	if requestID := strings.TrimSpace(c.Get(fiber.HeaderXRequestID)); requestID != "" {
		ctx = observability.WithCorrelationID(ctx, requestID)
	}

	items, err := h.processor.ProcessItems(ctx)
	if err != nil {
		return toHTTPError(err)
	}

	return c.Status(fiber.StatusOK).JSON(processItemsResponse{
		ProcessedCount: len(items),
		Items:          toItemResponses(items),
	})
}

func (h *ItemHandler) GetProcessRun(c *fiber.Ctx) error {
	id := strings.TrimSpace(c.Params("id"))
	run, failures, err := h.processor.GetRun(c.Context(), id)
	if err != nil {
		return toHTTPError(err)
	}

	resp := processRunResponse{
		ID:             run.ID,
		Status:         run.Status.String(),
		TotalCount:     run.TotalCount,
		SucceededCount: run.SucceededCount,
		FailedCount:    run.FailedCount,
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
	}
	for _, failure := range failures {
		resp.Failures = append(resp.Failures, processFailureResponse{
			ItemID: failure.ItemID,
			Reason: failure.Reason.String(),
			Detail: failure.Detail,
		})
	}

	return c.Status(fiber.StatusOK).JSON(resp)
}

func parseListParams(c *fiber.Ctx) (repository.ListParams, error) {
	params := repository.ListParams{
		Page:     c.QueryInt("page", defaultPage),
		PageSize: c.QueryInt("pageSize", defaultPageSize),
	}

	if params.Page < 1 {
		return repository.ListParams{}, fmt.Errorf("%w: page must be >= 1", domain.ErrValidation)
	}
	if params.PageSize < 1 || params.PageSize > maxPageSize {
		return repository.ListParams{}, fmt.Errorf("%w: pageSize must be between 1 and %d", domain.ErrValidation, maxPageSize)
	}

	if rawStatus := strings.TrimSpace(c.Query("status")); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return repository.ListParams{}, err
		}
		params.Status = &status
	}

	return params, nil
}

func requestToDomainItem(req itemRequest) (domain.Item, error) {
	item := domain.Item{
		Name:        strings.TrimSpace(req.Name),
		Description: strings.TrimSpace(req.Description),
		Email:       strings.TrimSpace(req.Email),
	}

	if rawStatus := strings.TrimSpace(req.Status); rawStatus != "" {
		status, err := domain.ParseStatusFromString(rawStatus)
		if err != nil {
			return domain.Item{}, err
		}
		item.Status = status
	}

	return item, nil
}

func toItemResponses(items []domain.Item) []itemResponse {
	responses := make([]itemResponse, 0, len(items))
	for i := range items {
		responses = append(responses, toItemResponse(&items[i]))
	}
	return responses
}

func toItemResponse(item *domain.Item) itemResponse {
	if item == nil {
		return itemResponse{}
	}

	return itemResponse{
		ID:          item.ID,
		Name:        item.Name,
		Description: item.Description,
		Status:      item.Status.String(),
		Email:       item.Email,
		CreatedAt:   item.CreatedAt,
		UpdatedAt:   item.UpdatedAt,
	}
}

func toHTTPError(err error) error {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		return fiber.NewError(fiber.StatusNotFound, err.Error())
	case errors.Is(err, domain.ErrConflict):
		return fiber.NewError(fiber.StatusConflict, err.Error())
	default:
		return err
	}
}
