package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/andrisetia/merchant-ingest-be/internal/domain"
	"github.com/andrisetia/merchant-ingest-be/internal/service"
	"github.com/andrisetia/merchant-ingest-be/pkg/logger"
)

// IncomingHandler is the merchant self-serve intake surface.
type IncomingHandler struct {
	service *service.BatchService
	logger  *logger.Logger
}

func NewIncomingHandler(svc *service.BatchService, log *logger.Logger) *IncomingHandler {
	return &IncomingHandler{
		service: svc,
		logger:  log,
	}
}

func (h *IncomingHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()

	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "No file uploaded",
		})
	}

	merchantID := c.FormValue("merchantId")
	if merchantID == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "merchantId is required",
		})
	}

	src, err := file.Open()
	if err != nil {
		h.logger.Error(ctx, "Failed to open uploaded file",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to open file",
		})
	}
	defer src.Close()

	batch, incomingFile, err := h.service.AcceptIncomingUpload(ctx, service.Upload{
		FileName:   file.Filename,
		Size:       file.Size,
		MerchantID: merchantID,
		CreatedBy:  c.FormValue("createdBy"),
		Content:    src,
	})
	if err != nil {
		switch {
		case isValidationError(err):
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		case errors.Is(err, domain.ErrMerchantNotFound):
			return c.JSON(http.StatusNotFound, map[string]string{
				"error":  "Merchant not found",
				"detail": "Merchant ID '" + merchantID + "' does not exist in the system. Please register the merchant first.",
			})
		}
		h.logger.Error(ctx, "Failed to accept incoming upload",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "Failed to store file",
		})
	}

	// The response describes the intake result; materialization happens
	// synchronously below and is observable through the batch status.
	response := map[string]interface{}{
		"message":     "File received successfully",
		"batchId":     batch.ID,
		"batchFileId": incomingFile.ID,
		"fileName":    incomingFile.OriginalFilename,
		"sizeBytes":   incomingFile.SizeBytes,
		"status":      string(batch.Status),
	}

	if _, err := h.service.Materialize(ctx, batch); err != nil {
		h.logger.Error(ctx, "Failed to finalize batch status",
			"batch_id", batch.ID,
			"error", err,
		)
	}

	return c.JSON(http.StatusOK, response)
}

func (h *IncomingHandler) ListFiles(c echo.Context) error {
	files, err := h.service.ListIncomingFiles(c.Request().Context(), c.QueryParam("merchantId"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to list incoming files",
		})
	}
	return c.JSON(http.StatusOK, files)
}

func (h *IncomingHandler) GetFile(c echo.Context) error {
	file, err := h.service.GetIncomingFile(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrFileNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "file not found",
			})
		}
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to load incoming file",
		})
	}
	return c.JSON(http.StatusOK, file)
}
