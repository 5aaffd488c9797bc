package domain

import (
	"fmt"
	"time"
)

// DocumentType classifies the kind of reference material a document holds
type DocumentType string

const (
	DocumentTypeGuideline DocumentType = "guideline"
	DocumentTypeProtocol  DocumentType = "protocol"
	DocumentTypeTextbook  DocumentType = "textbook"
)

// Specialty tags a document with the clinical service line it belongs to
type Specialty string

const (
	SpecialtyHospitalist Specialty = "hospitalist"
	SpecialtyCardiology  Specialty = "cardiology"
	SpecialtyICU         Specialty = "icu"
)

// Document represents an uploaded reference document. It is immutable once
// chunked except for the IsActive flag, which soft-deletes it.
type Document struct {
	ID         string
	Title      string
	Content    string
	Type       DocumentType
	Specialty  Specialty
	UploadedBy string
	IsActive   bool
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// NewDocument creates a new active Document instance
func NewDocument(id, title, content string, docType DocumentType, specialty Specialty, uploadedBy string, createdAt time.Time) *Document {
	return &Document{
		ID:         id,
		Title:      title,
		Content:    content,
		Type:       docType,
		Specialty:  specialty,
		UploadedBy: uploadedBy,
		IsActive:   true,
		CreatedAt:  createdAt,
		UpdatedAt:  createdAt,
	}
}

// ValidateDocument validates a Document instance
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("document cannot be nil")
	}

	if d.ID == "" {
		return fmt.Errorf("document ID is required")
	}

	if d.Title == "" {
		return fmt.Errorf("document Title is required")
	}

	if d.Content == "" {
		return fmt.Errorf("document Content is required")
	}

	if !IsValidDocumentType(d.Type) {
		return fmt.Errorf("document Type is invalid: %s", d.Type)
	}

	if !IsValidSpecialty(d.Specialty) {
		return fmt.Errorf("document Specialty is invalid: %s", d.Specialty)
	}

	return nil
}

// IsValidDocumentType checks if a DocumentType is valid
func IsValidDocumentType(t DocumentType) bool {
	switch t {
	case DocumentTypeGuideline, DocumentTypeProtocol, DocumentTypeTextbook:
		return true
	}
	return false
}

// IsValidSpecialty checks if a Specialty is valid
func IsValidSpecialty(s Specialty) bool {
	switch s {
	case SpecialtyHospitalist, SpecialtyCardiology, SpecialtyICU:
		return true
	}
	return false
}
