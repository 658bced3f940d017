package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/andrisetia/merchant-ingest-be/internal/domain"
	"github.com/andrisetia/merchant-ingest-be/internal/service"
	"github.com/andrisetia/merchant-ingest-be/pkg/logger"
)

type MerchantHandler struct {
	service *service.MerchantService
	logger  *logger.Logger
}

func NewMerchantHandler(svc *service.MerchantService, log *logger.Logger) *MerchantHandler {
	return &MerchantHandler{
		service: svc,
		logger:  log,
	}
}

func (h *MerchantHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()

	var input service.CreateMerchantInput
	if err := c.Bind(&input); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	merchant, err := h.service.CreateMerchant(ctx, input)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMissingField):
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		case errors.Is(err, domain.ErrMerchantExists):
			return c.JSON(http.StatusConflict, map[string]string{
				"error": "Merchant ID already exists: " + input.MerchantID,
			})
		}
		h.logger.Error(ctx, "Failed to create merchant",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to create merchant",
		})
	}

	return c.JSON(http.StatusCreated, merchant)
}

func (h *MerchantHandler) List(c echo.Context) error {
	merchants, err := h.service.ListMerchants(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to list merchants",
		})
	}
	return c.JSON(http.StatusOK, merchants)
}

func (h *MerchantHandler) NextID(c echo.Context) error {
	id, err := h.service.NextMerchantID(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to generate merchant id",
		})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"merchantId": id,
	})
}
