package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/vovakirdan/arview-server/internal/store"
)

const patientColumns = `id, number, first_name, last_name, created_at, updated_at`

func scanPatient(row interface{ Scan(...any) error }) (*store.Patient, error) {
	var p store.Patient
	if err := row.Scan(&p.ID, &p.Number, &p.FirstName, &p.LastName, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePatient inserts a patient.
func (s *SQLiteStore) CreatePatient(ctx context.Context, patient *store.Patient) error {
	if patient.ID == "" {
		patient.ID = uuid.NewString()
	}
	now := s.now()
	patient.CreatedAt, patient.UpdatedAt = now, now

	query := `INSERT INTO patients (` + patientColumns + `) VALUES (?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, query,
		patient.ID, patient.Number, patient.FirstName, patient.LastName, now, now,
	); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("patient %s: %w", patient.Number, store.ErrConflict)
		}
		return fmt.Errorf("insert patient: %w", err)
	}
	return nil
}

// GetPatientByID retrieves a patient by ID.
func (s *SQLiteStore) GetPatientByID(ctx context.Context, id string) (*store.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = ?`
	patient, err := scanPatient(s.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("patient %s: %w", id, store.ErrNotFound)
		}
		return nil, fmt.Errorf("query patient: %w", err)
	}
	return patient, nil
}

// ListPatients lists up to limit patients ordered by number.
func (s *SQLiteStore) ListPatients(ctx context.Context, limit int) ([]*store.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients ORDER BY number LIMIT ?`
	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query patients: %w", err)
	}
	defer rows.Close()

	var patients []*store.Patient
	for rows.Next() {
		patient, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("scan patient: %w", err)
		}
		patients = append(patients, patient)
	}
	return patients, rows.Err()
}

// UpdatePatient saves number and names.
func (s *SQLiteStore) UpdatePatient(ctx context.Context, patient *store.Patient) error {
	patient.UpdatedAt = s.now()

	query := `UPDATE patients SET number = ?, first_name = ?, last_name = ?, updated_at = ? WHERE id = ?`
	result, err := s.db.ExecContext(ctx, query,
		patient.Number, patient.FirstName, patient.LastName, patient.UpdatedAt, patient.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("patient %s: %w", patient.Number, store.ErrConflict)
		}
		return fmt.Errorf("update patient: %w", err)
	}
	return expectAffected(result, "patient", patient.ID)
}

// DeletePatient removes a patient. Rooms keep existing with no patient.
func (s *SQLiteStore) DeletePatient(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM patients WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	return expectAffected(result, "patient", id)
}
