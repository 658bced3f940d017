package handler

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/andrisetia/merchant-ingest-be/internal/domain"
	"github.com/andrisetia/merchant-ingest-be/internal/service"
	"github.com/andrisetia/merchant-ingest-be/pkg/logger"
)

type BatchHandler struct {
	service *service.BatchService
	logger  *logger.Logger
}

func NewBatchHandler(svc *service.BatchService, log *logger.Logger) *BatchHandler {
	return &BatchHandler{
		service: svc,
		logger:  log,
	}
}

func isValidationError(err error) bool {
	return errors.Is(err, domain.ErrEmptyFile) ||
		errors.Is(err, domain.ErrInvalidFileName) ||
		errors.Is(err, domain.ErrInvalidFileType) ||
		errors.Is(err, domain.ErrInvalidContentType) ||
		errors.Is(err, domain.ErrMissingField)
}

// Upload is the staff-initiated intake. The accepted batch (status UPLOADED)
// is what the response describes; materialization runs synchronously before
// the response is written and moves the batch to READY or FAILED.
func (h *BatchHandler) Upload(c echo.Context) error {
	ctx := c.Request().Context()

	file, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "file is required",
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

	batch, err := h.service.AcceptStaffUpload(ctx, service.Upload{
		FileName:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Size:        file.Size,
		MerchantID:  merchantID,
		CreatedBy:   c.FormValue("createdBy"),
		Content:     src,
	})
	if err != nil {
		if isValidationError(err) {
			return c.JSON(http.StatusBadRequest, map[string]string{
				"error": err.Error(),
			})
		}
		h.logger.Error(ctx, "Failed to accept upload",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to store upload",
		})
	}

	accepted := *batch

	if _, err := h.service.Materialize(ctx, batch); err != nil {
		h.logger.Error(ctx, "Failed to finalize batch status",
			"batch_id", batch.ID,
			"error", err,
		)
	}

	return c.JSON(http.StatusOK, accepted)
}

func (h *BatchHandler) List(c echo.Context) error {
	batches, err := h.service.ListBatches(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to list batches",
		})
	}
	return c.JSON(http.StatusOK, batches)
}

func (h *BatchHandler) ListTransactions(c echo.Context) error {
	txs, err := h.service.ListTransactions(c.Request().Context(), c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to list transactions",
		})
	}
	return c.JSON(http.StatusOK, txs)
}

func (h *BatchHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()

	var patch domain.BatchPatch
	if err := c.Bind(&patch); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "invalid request body",
		})
	}

	batch, err := h.service.Update(ctx, c.Param("id"), patch)
	if err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "batch not found",
			})
		}
		h.logger.Error(ctx, "Failed to update batch",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to update batch",
		})
	}

	return c.JSON(http.StatusOK, batch)
}

// Delete reports the two-phase outcome distinctly: a file removal failure
// after the database rows are gone is a 500 carrying the partial result, not
// a rollback.
func (h *BatchHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()

	result, err := h.service.Delete(ctx, c.Param("id"))
	if err != nil {
		if errors.Is(err, domain.ErrBatchNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{
				"error": "batch not found",
			})
		}
		h.logger.Error(ctx, "Failed to delete batch",
			"error", err,
		)
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to delete batch",
		})
	}

	if !result.FileDeleted {
		return c.JSON(http.StatusInternalServerError, map[string]interface{}{
			"error":  "Batch deleted from DB, but file removal failed",
			"result": result,
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"message": "Batch and related records deleted successfully",
		"result":  result,
	})
}

func (h *BatchHandler) Activity(c echo.Context) error {
	feed, err := h.service.ActivityFeed(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusInternalServerError, map[string]string{
			"error": "failed to load activity feed",
		})
	}
	return c.JSON(http.StatusOK, feed)
}
