package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/homewatch/internal/models"
	"github.com/your-org/homewatch/internal/storage"
	"github.com/your-org/homewatch/pkg/dto"
)

type PersonHandler struct {
	db    *storage.PostgresStore
	minio *storage.MinIOStore
	// EmbedFn extracts the largest-face embedding from image bytes.
	// Set after the vision models are loaded.
	EmbedFn func(imageData []byte) ([]float32, error)
}

func NewPersonHandler(db *storage.PostgresStore, minio *storage.MinIOStore) *PersonHandler {
	return &PersonHandler{db: db, minio: minio}
}

func (h *PersonHandler) List(c *gin.Context) {
	persons, err := h.db.ListPersons(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	resp := make([]dto.PersonResponse, 0, len(persons))
	for _, p := range persons {
		faceCount, _ := h.db.CountFaces(c.Request.Context(), p.ID)
		resp = append(resp, personResponse(p, faceCount))
	}

	c.JSON(http.StatusOK, dto.PersonListResponse{Persons: resp, Total: len(resp)})
}

func (h *PersonHandler) Get(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	person, err := h.db.GetPerson(c.Request.Context(), id)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if person == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}

	faceCount, _ := h.db.CountFaces(c.Request.Context(), id)
	c.JSON(http.StatusOK, personResponse(*person, faceCount))
}

// AddFace accepts a multipart image upload, extracts the largest-face
// embedding and stores a new reference face for the person.
func (h *PersonHandler) AddFace(c *gin.Context) {
	personID, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid person id"})
		return
	}

	person, err := h.db.GetPerson(c.Request.Context(), personID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	if person == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "person not found"})
		return
	}

	file, header, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	imageData, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	if h.EmbedFn == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "vision models not initialized"})
		return
	}

	embedding, err := h.EmbedFn(imageData)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "failed to extract face: " + err.Error()})
		return
	}

	// The filename is the idempotence key; re-uploading the same photo
	// never duplicates the face row.
	sourceKey := "faces/" + strconv.FormatInt(personID, 10) + "/" + header.Filename
	if h.minio != nil {
		if err := h.minio.PutObject(c.Request.Context(), sourceKey, imageData, header.Header.Get("Content-Type")); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "store image failed"})
			return
		}
	}

	if err := h.db.AddPersonFace(c.Request.Context(), personID, embedding, header.Filename); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	faceCount, _ := h.db.CountFaces(c.Request.Context(), personID)
	c.JSON(http.StatusCreated, dto.FaceAddedResponse{
		PersonID:    personID,
		SourceImage: header.Filename,
		FaceCount:   faceCount,
	})
}

func personResponse(p models.Person, faceCount int) dto.PersonResponse {
	return dto.PersonResponse{
		ID:        p.ID,
		Name:      p.Name,
		Role:      string(p.Role),
		FaceCount: faceCount,
		FirstSeen: p.FirstSeen.Format("2006-01-02T15:04:05Z"),
		LastSeen:  p.LastSeen.Format("2006-01-02T15:04:05Z"),
		Notes:     p.Notes,
	}
}
