// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package attachment

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gabriel-vasile/mimetype"
	"github.com/sirupsen/logrus"

	"github.com/nexusai/nexus-tui/internal/backend"
	"github.com/nexusai/nexus-tui/internal/logging"
)

// =============================================================================
// ERRORS AND LIMITS
// =============================================================================

var (
	// ErrUnsupportedFile indicates the file could not be read or is not of
	// an accepted kind.
	ErrUnsupportedFile = errors.New("unsupported file")

	// ErrUpload indicates document extraction failed on the backend.
	ErrUpload = errors.New("document upload failed")
)

// MaxImageSize bounds the bytes read for one image.
const MaxImageSize = 10 * 1024 * 1024

// DefaultQuestion replaces an empty question when a document is attached.
const DefaultQuestion = "Please summarize or review this document."

// DocumentExtensions lists the document types the backend can extract.
var DocumentExtensions = []string{".pdf", ".docx", ".txt"}

// =============================================================================
// TYPES
// =============================================================================

// Image is an encoded image waiting to be sent.
type Image struct {
	Name     string
	MIMEType string
	// Base64 is the payload sent to the backend, without a data: prefix.
	Base64 string
	// Preview is a data URL for display.
	Preview string
	Size    int
}

// Document is extracted document text waiting to be folded into a message.
type Document struct {
	Name    string
	Content string
}

// Uploader extracts document text. *backend.Client implements it.
type Uploader interface {
	UploadDocument(ctx context.Context, filename string, r io.Reader) (*backend.UploadResult, error)
}

// Composer holds at most one pending image and one pending document.
type Composer struct {
	mu       sync.Mutex
	image    *Image
	document *Document
	uploader Uploader
	log      logrus.FieldLogger
}

// NewComposer creates a composer that extracts documents with up.
func NewComposer(up Uploader, log logrus.FieldLogger) *Composer {
	return &Composer{uploader: up, log: logging.OrDiscard(log)}
}

// =============================================================================
// IMAGES
// =============================================================================

// SelectImage reads and encodes an image, replacing any pending image.
// Encoding happens once here, not per send.
func (c *Composer) SelectImage(name string, r io.Reader) (Image, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxImageSize+1))
	if err != nil {
		return Image{}, fmt.Errorf("%w: cannot read %s: %v", ErrUnsupportedFile, name, err)
	}
	if len(data) == 0 {
		return Image{}, fmt.Errorf("%w: %s is empty", ErrUnsupportedFile, name)
	}
	if len(data) > MaxImageSize {
		return Image{}, fmt.Errorf("%w: %s exceeds %d bytes", ErrUnsupportedFile, name, MaxImageSize)
	}

	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return Image{}, fmt.Errorf("%w: %s is %s, not an image", ErrUnsupportedFile, name, mt.String())
	}

	encoded := base64.StdEncoding.EncodeToString(data)
	img := Image{
		Name:     name,
		MIMEType: mt.String(),
		Base64:   encoded,
		Preview:  "data:" + mt.String() + ";base64," + encoded,
		Size:     len(data),
	}

	c.mu.Lock()
	c.image = &img
	c.mu.Unlock()
	c.log.WithFields(logrus.Fields{"name": name, "mime": img.MIMEType, "bytes": img.Size}).Debug("image selected")
	return img, nil
}

// =============================================================================
// DOCUMENTS
// =============================================================================

// IsDocument reports whether name has an accepted document extension.
func IsDocument(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, ok := range DocumentExtensions {
		if ext == ok {
			return true
		}
	}
	return false
}

// AttachDocument uploads a document for extraction and makes it the pending
// document. On failure the previous pending document, if any, is kept.
func (c *Composer) AttachDocument(ctx context.Context, name string, r io.Reader) (Document, error) {
	if !IsDocument(name) {
		return Document{}, fmt.Errorf("%w: %s (accepted: %s)", ErrUnsupportedFile, name, strings.Join(DocumentExtensions, ", "))
	}
	if c.uploader == nil {
		return Document{}, fmt.Errorf("%w: no uploader configured", ErrUpload)
	}

	result, err := c.uploader.UploadDocument(ctx, filepath.Base(name), r)
	if err != nil {
		c.log.WithError(err).WithField("name", name).Error("document upload failed")
		return Document{}, fmt.Errorf("%w: %w", ErrUpload, err)
	}

	doc := Document{Name: filepath.Base(name), Content: result.Content}
	c.mu.Lock()
	c.document = &doc
	c.mu.Unlock()
	return doc, nil
}

// =============================================================================
// PENDING STATE
// =============================================================================

// Pending returns copies of the pending image and document.
func (c *Composer) Pending() (*Image, *Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var img *Image
	var doc *Document
	if c.image != nil {
		i := *c.image
		img = &i
	}
	if c.document != nil {
		d := *c.document
		doc = &d
	}
	return img, doc
}

// Take returns the pending image and document and clears both.
func (c *Composer) Take() (*Image, *Document) {
	c.mu.Lock()
	defer c.mu.Unlock()
	img, doc := c.image, c.document
	c.image, c.document = nil, nil
	return img, doc
}

// ClearImage drops the pending image.
func (c *Composer) ClearImage() {
	c.mu.Lock()
	c.image = nil
	c.mu.Unlock()
}

// ClearDocument drops the pending document.
func (c *Composer) ClearDocument() {
	c.mu.Lock()
	c.document = nil
	c.mu.Unlock()
}

// Clear drops both pending attachments.
func (c *Composer) Clear() {
	c.mu.Lock()
	c.image, c.document = nil, nil
	c.mu.Unlock()
}

// =============================================================================
// COMPOSITION
// =============================================================================

// Compose returns the text actually sent. With a document it applies the
// fixed document template; the backend and stored history depend on this
// exact layout. Without one it returns the trimmed text.
func Compose(userText string, doc *Document) string {
	question := strings.TrimSpace(userText)
	if doc == nil {
		return question
	}
	if question == "" {
		question = DefaultQuestion
	}
	var sb strings.Builder
	sb.WriteString("[User uploaded document: ")
	sb.WriteString(doc.Name)
	sb.WriteString("]\n\nDocument Content:\n")
	sb.WriteString(doc.Content)
	sb.WriteString("\n\n---\n\nUser Question: ")
	sb.WriteString(question)
	return sb.String()
}
