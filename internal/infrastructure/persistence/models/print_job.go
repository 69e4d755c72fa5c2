// Package models holds the GORM representations of domain aggregates.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/crm/docrender/internal/domain/document"
	"github.com/crm/docrender/internal/domain/printing"
)

// PrintJobModel is the GORM model for print_jobs table
type PrintJobModel struct {
	TenantAggregateModel
	DocumentKind   string     `gorm:"column:document_kind;type:varchar(20);not null;index:idx_print_jobs_document"`
	DocumentID     string     `gorm:"column:document_id;type:varchar(64);index:idx_print_jobs_document"`
	DocumentNumber string     `gorm:"column:document_number;type:varchar(100);not null"`
	Brand          string     `gorm:"type:varchar(50);not null"`
	Strategy       string     `gorm:"type:varchar(10);not null"`
	Status         string     `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	FileName       string     `gorm:"column:file_name;type:varchar(255)"`
	StorageKey     string     `gorm:"column:storage_key;type:text"`
	PageCount      int        `gorm:"column:page_count;not null;default:0"`
	FileSize       int64      `gorm:"column:file_size;not null;default:0"`
	ErrorMessage   string     `gorm:"column:error_message;type:text"`
	RequestedBy    uuid.UUID  `gorm:"column:requested_by;type:uuid;not null"`
	StartedAt      *time.Time `gorm:"column:started_at"`
	CompletedAt    *time.Time `gorm:"column:completed_at"`
}

// TableName returns the table name for PrintJobModel
func (PrintJobModel) TableName() string {
	return "print_jobs"
}

// ToDomain converts PrintJobModel to domain PrintJob
func (m *PrintJobModel) ToDomain() *printing.PrintJob {
	job := &printing.PrintJob{
		DocumentKind:   document.Kind(m.DocumentKind),
		DocumentID:     m.DocumentID,
		DocumentNumber: m.DocumentNumber,
		Brand:          m.Brand,
		Strategy:       printing.Strategy(m.Strategy),
		Status:         printing.JobStatus(m.Status),
		FileName:       m.FileName,
		StorageKey:     m.StorageKey,
		PageCount:      m.PageCount,
		FileSize:       m.FileSize,
		ErrorMessage:   m.ErrorMessage,
		RequestedBy:    m.RequestedBy,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
	}
	m.PopulateTenantAggregateRoot(&job.TenantAggregateRoot)
	return job
}

// PrintJobModelFromDomain creates a PrintJobModel from domain PrintJob
func PrintJobModelFromDomain(j *printing.PrintJob) *PrintJobModel {
	m := &PrintJobModel{
		DocumentKind:   j.DocumentKind.String(),
		DocumentID:     j.DocumentID,
		DocumentNumber: j.DocumentNumber,
		Brand:          j.Brand,
		Strategy:       j.Strategy.String(),
		Status:         j.Status.String(),
		FileName:       j.FileName,
		StorageKey:     j.StorageKey,
		PageCount:      j.PageCount,
		FileSize:       j.FileSize,
		ErrorMessage:   j.ErrorMessage,
		RequestedBy:    j.RequestedBy,
		StartedAt:      j.StartedAt,
		CompletedAt:    j.CompletedAt,
	}
	m.FromDomainTenantAggregateRoot(j.TenantAggregateRoot)
	return m
}
