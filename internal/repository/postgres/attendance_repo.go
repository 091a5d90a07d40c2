package postgres

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/smartattend/backend/internal/domain"
)

type AttendanceRepo struct {
	DB *sql.DB
}

func NewAttendanceRepo(db *sql.DB) *AttendanceRepo {
	return &AttendanceRepo{DB: db}
}

// Exists reports whether attendance was already recorded for the pair.
func (r *AttendanceRepo) Exists(sessionID string, studentID int64) (bool, error) {
	query := `
	SELECT EXISTS(
		SELECT 1 FROM attendance WHERE session_id = $1 AND student_id = $2
	);
	`
	var exists bool
	if err := r.DB.QueryRow(query, sessionID, studentID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check attendance: %v", err)
	}
	return exists, nil
}

// Record writes the attendance row and its scan-log audit entry in one
// transaction. The unique constraint on (session_id, student_id) is the
// authoritative idempotency guard; a violation maps to
// domain.ErrAlreadyRecorded.
func (r *AttendanceRepo) Record(rec domain.AttendanceRecord, bundle domain.SensorBundle, scannedToken string, notes []string) error {
	tx, err := r.DB.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %v", err)
	}
	defer tx.Rollback()

	recordID := uuid.NewString()
	insertAttendance := `
	INSERT INTO attendance
		(record_id, session_id, student_id, verdict, confidence,
		 token_score, radio_score, network_score, geo_score, submitted_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10);
	`
	_, err = tx.Exec(insertAttendance,
		recordID, rec.SessionID, rec.StudentID, string(rec.Verdict), rec.Confidence,
		rec.Scores.Token, rec.Scores.Radio, rec.Scores.Network, rec.Scores.Geo, rec.SubmittedAt,
	)
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return domain.ErrAlreadyRecorded
		}
		return fmt.Errorf("failed to record attendance: %v", err)
	}

	radioSamples, err := json.Marshal(bundle.RadioSamples)
	if err != nil {
		return fmt.Errorf("failed to serialize radio samples: %v", err)
	}
	notesJSON, err := json.Marshal(notes)
	if err != nil {
		return fmt.Errorf("failed to serialize notes: %v", err)
	}

	insertScanLog := `
	INSERT INTO scan_logs
		(attendance_record_id, session_id, student_id, scanned_token,
		 radio_samples, network_bssid, geo_latitude, geo_longitude,
		 geo_accuracy, device_id, notes, submitted_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12);
	`
	_, err = tx.Exec(insertScanLog,
		recordID, rec.SessionID, rec.StudentID, scannedToken,
		radioSamples, nullString(bundle.NetworkBSSID), bundle.GeoLatitude, bundle.GeoLongitude,
		bundle.GeoAccuracy, nullString(bundle.DeviceID), notesJSON, rec.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to record scan log: %v", err)
	}

	return tx.Commit()
}

// CountPresent returns how many students were admitted for a session.
func (r *AttendanceRepo) CountPresent(sessionID string) (int, error) {
	query := `
	SELECT COUNT(*) FROM attendance WHERE session_id = $1 AND verdict = 'admit';
	`
	var count int
	if err := r.DB.QueryRow(query, sessionID).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count attendance: %v", err)
	}
	return count, nil
}

// ListBySession returns every recorded verdict for a session, newest first.
func (r *AttendanceRepo) ListBySession(sessionID string) ([]domain.AttendanceRecord, error) {
	query := `
	SELECT record_id, session_id, student_id, verdict, confidence,
	       token_score, radio_score, network_score, geo_score, submitted_at
	FROM attendance
	WHERE session_id = $1
	ORDER BY submitted_at DESC;
	`
	rows, err := r.DB.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance: %v", err)
	}
	defer rows.Close()

	var records []domain.AttendanceRecord
	for rows.Next() {
		var rec domain.AttendanceRecord
		var verdict string
		if err := rows.Scan(
			&rec.RecordID, &rec.SessionID, &rec.StudentID, &verdict, &rec.Confidence,
			&rec.Scores.Token, &rec.Scores.Radio, &rec.Scores.Network, &rec.Scores.Geo,
			&rec.SubmittedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan attendance row: %v", err)
		}
		rec.Verdict = domain.Verdict(verdict)
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate attendance rows: %v", err)
	}
	return records, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
