package handlers

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"cmms/internal/api/middleware"
	"cmms/internal/apperr"
	"cmms/internal/models"
	"cmms/internal/utils/logger"
	"cmms/internal/workorders"

	"github.com/labstack/echo/v4"
)

type UploadHandler struct {
	log     *logger.Logger
	svc     *workorders.Service
	maxSize int64
}

func NewUploadHandler(svc *workorders.Service, maxSize int64) *UploadHandler {
	if maxSize <= 0 {
		maxSize = 10 << 20
	}
	return &UploadHandler{
		log:     logger.New("upload_handler"),
		svc:     svc,
		maxSize: maxSize,
	}
}

// UploadAttachment stores a file against a work order
// @Summary Upload a work order attachment
// @Description Upload a file to object storage and attach it to the work order
// @Tags work-orders
// @Accept multipart/form-data
// @Produce json
// @Param plantId path string true "Plant ID"
// @Param id path string true "Work order ID"
// @Param file formData file true "File to upload"
// @Success 201 {object} models.File
// @Failure 400 {object} map[string]string "Validation error or file not found"
// @Failure 503 {object} map[string]string "Storage not configured"
// @Router /plants/{plantId}/work-orders/{id}/attachments [post]
func (h *UploadHandler) UploadAttachment(c echo.Context) error {
	contentType := c.Request().Header.Get(echo.HeaderContentType)
	if !strings.HasPrefix(contentType, echo.MIMEMultipartForm) {
		return apperr.InvalidInput("Content-Type must be multipart/form-data")
	}

	storage := getAttachmentStore()
	if storage == nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, "Attachment storage is not configured")
	}

	// Get file from request
	file, err := c.FormFile("file")
	if err != nil {
		return apperr.InvalidInput("No file provided")
	}
	if file.Size > h.maxSize {
		return apperr.InvalidInput(fmt.Sprintf("File exceeds %d bytes", h.maxSize))
	}

	src, err := file.Open()
	if err != nil {
		return apperr.Internal(err)
	}
	defer src.Close()

	content, err := io.ReadAll(src)
	if err != nil {
		return apperr.Internal(err)
	}

	tenantID := middleware.GetTenantID(c)
	workOrderID := c.Param("id")
	key := attachmentKey(tenantID, workOrderID, file.Filename)
	mime := file.Header.Get(echo.HeaderContentType)
	if mime == "" {
		mime = "application/octet-stream"
	}

	if err := storage.UploadFile(c.Request().Context(), content, key, mime); err != nil {
		return apperr.Internal(err)
	}

	fileModel := &models.File{
		Path: key,
		Name: filepath.Base(file.Filename),
		Size: file.Size,
		Type: mime,
	}
	if err := h.svc.AddAttachment(c.Request().Context(), actor(c), tenantID, middleware.GetPlantID(c), workOrderID, fileModel); err != nil {
		return err
	}

	h.log.Success("Attachment %s stored for work order %s", fileModel.ID, workOrderID)
	return c.JSON(http.StatusCreated, fileModel)
}
