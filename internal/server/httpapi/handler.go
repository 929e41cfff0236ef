package httpapi

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/gophtour/internal/common"
	"github.com/dmitrijs2005/gophtour/internal/server/models"
	"github.com/dmitrijs2005/gophtour/internal/server/services"
)

type stagedUploadResponse struct {
	StagedUploadID   string    `json:"stagedUploadId"`
	TempRelativePath string    `json:"tempRelativePath"`
	GeneratedName    string    `json:"generatedName"`
	Extension        string    `json:"extension"`
	ContentType      string    `json:"contentType"`
	FileSize         int64     `json:"fileSize"`
	OriginalFileName string    `json:"originalFileName"`
	CreatedAt        time.Time `json:"createdAt"`
	ExpiresAt        time.Time `json:"expiresAt"`
	OwnerKind        string    `json:"ownerKind"`
}

func toStagedUploadResponse(u *models.StagedUpload) stagedUploadResponse {
	return stagedUploadResponse{
		StagedUploadID:   u.ID,
		TempRelativePath: u.TempRelativePath,
		GeneratedName:    u.GeneratedName,
		Extension:        u.Extension,
		ContentType:      u.ContentType,
		FileSize:         u.FileSize,
		OriginalFileName: u.OriginalFileName,
		CreatedAt:        u.CreatedAt,
		ExpiresAt:        u.ExpiresAt,
		OwnerKind:        u.OwnerKind.String(),
	}
}

type photoResponse struct {
	PhotoID          string    `json:"photoId"`
	GeneratedName    string    `json:"generatedName"`
	PermanentPath    string    `json:"permanentPath"`
	ContentType      string    `json:"contentType"`
	FileSize         int64     `json:"fileSize"`
	OriginalFileName string    `json:"originalFileName"`
	CreatedAt        time.Time `json:"createdAt"`
}

type unlinkRequest struct {
	PhotoIDs []string `json:"photoIds" binding:"required"`
}

// StageUpload accepts a multipart form with "file" and "ownerKind".
func (s *HTTPServer) StageUpload(c *gin.Context) {
	ctx := c.Request.Context()
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.maxUpload)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			abortWithError(c, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooLarge.Limit))
			return
		}
		s.writeError(c, fmt.Errorf("%w: file is required", common.ErrValidation))
		return
	}

	f, err := fileHeader.Open()
	if err != nil {
		s.writeError(c, fmt.Errorf("failed to open uploaded file: %w", err))
		return
	}
	defer f.Close()

	upload, err := s.staging.Stage(ctx, services.StageRequest{
		Body:        f,
		FileName:    fileHeader.Filename,
		ContentType: fileHeader.Header.Get("Content-Type"),
		OwnerKind:   c.PostForm("ownerKind"),
		UploaderID:  c.GetString(uploaderIDKey),
	})
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, toStagedUploadResponse(upload))
}

func (s *HTTPServer) GetStagedUpload(c *gin.Context) {
	upload, err := s.staging.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, toStagedUploadResponse(upload))
}

// ListOwnerPhotos returns links grouped by owner for every ?owner= given.
func (s *HTTPServer) ListOwnerPhotos(c *gin.Context) {
	kind, err := models.ParseOwnerKind(c.Param("kind"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	owners := c.QueryArray("owner")
	if len(owners) == 0 {
		s.writeError(c, fmt.Errorf("%w: at least one owner is required", common.ErrValidation))
		return
	}

	result, err := s.media.ListByOwners(c.Request.Context(), kind, owners)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *HTTPServer) UnlinkPhoto(c *gin.Context) {
	kind, err := models.ParseOwnerKind(c.Param("kind"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	result, err := s.media.Unlink(c.Request.Context(), kind, c.Param("ownerId"), c.Param("photoId"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *HTTPServer) UnlinkPhotos(c *gin.Context) {
	kind, err := models.ParseOwnerKind(c.Param("kind"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	var req unlinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.writeError(c, fmt.Errorf("%w: %v", common.ErrValidation, err))
		return
	}

	result, err := s.media.UnlinkMany(c.Request.Context(), kind, c.Param("ownerId"), req.PhotoIDs)
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *HTTPServer) GetPhoto(c *gin.Context) {
	p, err := s.media.Photo(c.Request.Context(), c.Param("id"))
	if err != nil {
		s.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, photoResponse{
		PhotoID:          p.ID,
		GeneratedName:    p.GeneratedName,
		PermanentPath:    p.PermanentPath,
		ContentType:      p.ContentType,
		FileSize:         p.FileSize,
		OriginalFileName: p.OriginalFileName,
		CreatedAt:        p.CreatedAt,
	})
}
