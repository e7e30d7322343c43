package recordstore

import (
	"fmt"

	"github.com/memberhub/member-records/internal/domain/education"
)

// Mapper converts between store DTOs and domain types.
type Mapper struct{}

// NewMapper creates a new Mapper.
func NewMapper() *Mapper {
	return &Mapper{}
}

// RecordFromDTO converts a store DTO into a domain record.
// Records failing structural validation are rejected here so the sweeper
// never sees a half-formed record.
func (m *Mapper) RecordFromDTO(dto EducationRecordDTO) (*education.Record, error) {
	category, ok := education.ParseCategory(dto.Category)
	if !ok {
		return nil, fmt.Errorf("record %s: unknown category %q", dto.ID, dto.Category)
	}

	rec := &education.Record{
		ID:             education.RecordID(dto.ID),
		SubjectID:      education.SubjectBusinessID(dto.SubjectID),
		GraduationYear: education.GraduationYear(dto.GraduationYear),
		Category:       category,
		UpdatedAt:      dto.UpdatedAt,
	}

	if err := rec.Validate(); err != nil {
		return nil, fmt.Errorf("record %s: %w", dto.ID, err)
	}
	return rec, nil
}

// RecordsFromDTO converts a page of DTOs, skipping invalid rows.
// Invalid rows are returned separately so the caller can log them.
func (m *Mapper) RecordsFromDTO(dtos []EducationRecordDTO) (records []*education.Record, rejected []error) {
	records = make([]*education.Record, 0, len(dtos))
	for _, dto := range dtos {
		rec, err := m.RecordFromDTO(dto)
		if err != nil {
			rejected = append(rejected, err)
			continue
		}
		records = append(records, rec)
	}
	return records, rejected
}
