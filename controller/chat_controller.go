package controller

import (
	"context"
	"errors"
	"io"
	"net/http"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github/itish2003/pdfchat/models"
	"github/itish2003/pdfchat/services"
)

// Indexer is the part of the indexing service the controller drives.
type Indexer interface {
	IndexFile(ctx context.Context, path string) (int, error)
	RemoveFile(ctx context.Context, path string) error
}

// FileStore saves and removes PDFs in the data directory.
type FileStore interface {
	Save(filename string, r io.Reader) (string, error)
	Delete(filename string) (string, error)
}

// ChatController handles the HTTP requests for the chat page and the JSON API.
type ChatController struct {
	ragService services.RAGService
	indexer    Indexer
	files      FileStore
	log        *logrus.Entry
}

func NewChatController(service services.RAGService, indexer Indexer, files FileStore) *ChatController {
	return &ChatController{
		ragService: service,
		indexer:    indexer,
		files:      files,
		log:        logrus.WithField("component", "controller"),
	}
}

// Index renders the single-page chat.
func (c *ChatController) Index(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "chat.html", gin.H{"title": "PDF Chat"})
}

// Chat is the handler for POST /get. It reads the form field "msg" and
// replies with the bare answer text.
func (c *ChatController) Chat(ctx *gin.Context) {
	msg := ctx.PostForm("msg")
	c.log.Infof("User: %s", msg)

	answer, err := c.ragService.Ask(ctx.Request.Context(), msg)
	if errors.Is(err, services.ErrEmptyQuestion) {
		ctx.String(http.StatusBadRequest, "Please enter a question.")
		return
	}
	if err != nil {
		c.log.Errorf("Failed to answer: %v", err)
		ctx.String(http.StatusInternalServerError, "Sorry, something went wrong while generating the answer.")
		return
	}

	c.log.Infof("Bot: %s", answer.Answer)
	ctx.String(http.StatusOK, answer.Answer)
}

// QueryRAG is the handler for POST /api/v1/query.
func (c *ChatController) QueryRAG(ctx *gin.Context) {
	var req models.QueryTextRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return
	}

	answer, err := c.ragService.Ask(ctx.Request.Context(), req.Query)
	if errors.Is(err, services.ErrEmptyQuestion) {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err != nil {
		c.log.Errorf("Failed to answer: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate AI response"})
		return
	}

	sources := make([]models.SourceDocument, 0, len(answer.Context))
	for _, d := range answer.Context {
		sources = append(sources, models.SourceDocument{Text: d.PageContent, Metadata: d.Metadata})
	}
	ctx.JSON(http.StatusOK, models.QueryRAGResponse{Answer: answer.Answer, SourceDocs: sources})
}

// GetDocuments is the handler for GET /api/v1/documents.
func (c *ChatController) GetDocuments(ctx *gin.Context) {
	stats, err := c.ragService.Sources(ctx.Request.Context())
	if err != nil {
		c.log.Errorf("Failed to list documents: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve documents"})
		return
	}
	docs := make([]models.IndexedDocument, 0, len(stats))
	for _, s := range stats {
		// Base names are what DELETE /api/v1/documents/:name accepts.
		docs = append(docs, models.IndexedDocument{Source: filepath.Base(s.Source), Chunks: s.Chunks})
	}
	ctx.JSON(http.StatusOK, models.GetDocumentsResponse{Count: len(docs), Documents: docs})
}

// UploadDocument is the handler for POST /api/v1/documents. It stores the
// multipart "file" in the data directory and indexes it.
func (c *ChatController) UploadDocument(ctx *gin.Context) {
	header, err := ctx.FormFile("file")
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "missing file field"})
		return
	}
	file, err := header.Open()
	if err != nil {
		ctx.JSON(http.StatusBadRequest, gin.H{"error": "could not read uploaded file"})
		return
	}
	defer file.Close()

	path, err := c.files.Save(header.Filename, file)
	switch {
	case errors.Is(err, services.ErrInvalidFilename):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, services.ErrFileExists):
		ctx.JSON(http.StatusConflict, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.log.Errorf("Failed to save upload: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save document"})
		return
	}

	n, err := c.indexer.IndexFile(ctx.Request.Context(), path)
	if err != nil {
		c.log.Errorf("Failed to index %s: %v", path, err)
		c.rollbackUpload(ctx.Request.Context(), path)
		ctx.JSON(http.StatusUnprocessableEntity, gin.H{"error": "Document could not be indexed"})
		return
	}
	ctx.JSON(http.StatusCreated, models.UploadDocumentResponse{
		Message:  "Document indexed successfully",
		Filename: filepath.Base(path),
		Chunks:   n,
	})
}

// rollbackUpload removes a saved file whose indexing failed, so the same name
// can be uploaded again. Failures are only logged.
func (c *ChatController) rollbackUpload(ctx context.Context, path string) {
	if _, err := c.files.Delete(filepath.Base(path)); err != nil {
		c.log.Warnf("Failed to remove unindexed upload %s: %v", path, err)
	}
	if err := c.indexer.RemoveFile(ctx, path); err != nil {
		c.log.Warnf("Failed to clear partial chunks of %s: %v", path, err)
	}
}

// DeleteDocument is the handler for DELETE /api/v1/documents/:name.
func (c *ChatController) DeleteDocument(ctx *gin.Context) {
	path, err := c.files.Delete(ctx.Param("name"))
	switch {
	case errors.Is(err, services.ErrInvalidFilename):
		ctx.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, services.ErrFileNotFound):
		ctx.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	case err != nil:
		c.log.Errorf("Failed to delete document: %v", err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete document"})
		return
	}

	if err := c.indexer.RemoveFile(ctx.Request.Context(), path); err != nil {
		c.log.Errorf("Failed to remove %s from index: %v", path, err)
		ctx.JSON(http.StatusInternalServerError, gin.H{"error": "Document deleted but index cleanup failed"})
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"message": "Document deleted successfully"})
}
