package verification

import (
	"fmt"
	"log"
	"math"
	"strings"
	"time"

	"github.com/smartattend/backend/internal/domain"
	"github.com/smartattend/backend/internal/token"
	"github.com/smartattend/backend/pkg/geo"
)

// TokenValidator checks a scanned token against live rotation state.
type TokenValidator interface {
	Validate(sessionID, scanned string) (bool, token.ValidationReason)
}

// RoomDirectory resolves the physical configuration for a room.
type RoomDirectory interface {
	GetRoomByID(roomID string) (*domain.Room, error)
}

// AttendanceRepository persists verification outcomes. Record must enforce
// uniqueness on (session, student) and return domain.ErrAlreadyRecorded on
// violation.
type AttendanceRepository interface {
	Exists(sessionID string, studentID int64) (bool, error)
	Record(rec domain.AttendanceRecord, bundle domain.SensorBundle, scannedToken string, notes []string) error
}

// Weights are the fixed factor weights of the confidence score.
type Weights struct {
	Token   float64
	Radio   float64
	Network float64
	Geo     float64
}

// DefaultWeights mirrors the production configuration: token 0.4, radio 0.3,
// network 0.2, geo 0.1.
var DefaultWeights = Weights{Token: 0.4, Radio: 0.3, Network: 0.2, Geo: 0.1}

// Config carries the thresholds the factor scorers compare against.
type Config struct {
	Weights              Weights
	ConfidenceThreshold  float64
	RadioRSSIThreshold   int
	MinDistinctRadioHits int
}

// Engine fuses token validity, radio proximity, network association and
// geolocation into one admit/reject decision. Pure computation apart from
// the final attendance write; safe for concurrent use across sessions and
// students.
type Engine struct {
	tokens     TokenValidator
	rooms      RoomDirectory
	attendance AttendanceRepository
	cfg        Config
	now        func() time.Time
}

func NewEngine(tokens TokenValidator, rooms RoomDirectory, attendance AttendanceRepository, cfg Config) (*Engine, error) {
	sum := cfg.Weights.Token + cfg.Weights.Radio + cfg.Weights.Network + cfg.Weights.Geo
	if math.Abs(sum-1.0) > 1e-9 {
		return nil, fmt.Errorf("factor weights must sum to 1.0, got %v", sum)
	}
	return &Engine{
		tokens:     tokens,
		rooms:      rooms,
		attendance: attendance,
		cfg:        cfg,
		now:        time.Now,
	}, nil
}

// Verify scores one attendance submission and persists the outcome exactly
// once per (session, student). The duplicate check runs before any scoring
// so a replayed submission has no side effects; the unique constraint on the
// attendance table backstops it atomically at write time.
func (e *Engine) Verify(sess *domain.Session, studentID int64, scannedToken string, bundle domain.SensorBundle) (*domain.VerificationResult, error) {
	if sess.State != domain.SessionActive {
		return nil, domain.ErrSessionNotActive
	}

	exists, err := e.attendance.Exists(sess.SessionID, studentID)
	if err != nil {
		return nil, err
	}
	if exists {
		return nil, domain.ErrAlreadyRecorded
	}

	room, err := e.rooms.GetRoomByID(sess.RoomID)
	if err != nil {
		return nil, err
	}

	var scores domain.FactorScores
	var notes []string

	// 1. Token factor: the failure reason is logged for diagnostics but
	// never changes the score, every failure is equally worthless.
	ok, reason := e.tokens.Validate(sess.SessionID, scannedToken)
	if ok {
		scores.Token = 1.0
		notes = append(notes, "token valid")
	} else {
		log.Printf("[VERIFY] Token rejected for session %s: %s", sess.SessionID, reason)
		notes = append(notes, "token invalid")
	}

	// 2. Radio proximity factor.
	scores.Radio, notes = e.radioScore(bundle.RadioSamples, room, notes)

	// 3. Network association factor.
	if bundle.NetworkBSSID == "" || room.NetworkBSSID == "" {
		notes = append(notes, "no network data")
	} else if strings.EqualFold(bundle.NetworkBSSID, room.NetworkBSSID) {
		scores.Network = 1.0
		notes = append(notes, "network matched")
	} else {
		notes = append(notes, fmt.Sprintf("network mismatch (expected %s, got %s)", room.NetworkBSSID, bundle.NetworkBSSID))
	}

	// 4. Geofence factor.
	if bundle.GeoLatitude == nil || bundle.GeoLongitude == nil {
		notes = append(notes, "no location data")
	} else {
		distance := geo.Haversine(*bundle.GeoLatitude, *bundle.GeoLongitude, room.Latitude, room.Longitude)
		if room.GeofenceRadiusMeters > 0 && distance <= room.GeofenceRadiusMeters {
			scores.Geo = clamp01(1 - distance/room.GeofenceRadiusMeters)
			notes = append(notes, fmt.Sprintf("inside geofence (%.1f m)", distance))
		} else {
			notes = append(notes, fmt.Sprintf("outside geofence (%.1f m, radius %.0f m)", distance, room.GeofenceRadiusMeters))
		}
	}

	confidence := e.cfg.Weights.Token*scores.Token +
		e.cfg.Weights.Radio*scores.Radio +
		e.cfg.Weights.Network*scores.Network +
		e.cfg.Weights.Geo*scores.Geo

	verdict := domain.VerdictReject
	if confidence >= e.cfg.ConfidenceThreshold {
		verdict = domain.VerdictAdmit
	}

	result := &domain.VerificationResult{
		SessionID:  sess.SessionID,
		StudentID:  studentID,
		Scores:     scores,
		Confidence: confidence,
		Verdict:    verdict,
		Notes:      notes,
	}

	record := domain.AttendanceRecord{
		SessionID:   sess.SessionID,
		StudentID:   studentID,
		Verdict:     verdict,
		Confidence:  confidence,
		Scores:      scores,
		SubmittedAt: e.now().UTC(),
	}
	if err := e.attendance.Record(record, bundle, scannedToken, notes); err != nil {
		return nil, err
	}

	return result, nil
}

// radioScore counts samples from the room's known beacons above the RSSI
// threshold. Fewer than MinDistinctRadioHits distinct beacons means no
// corroboration at all, not a weak score.
func (e *Engine) radioScore(samples []domain.RadioSample, room *domain.Room, notes []string) (float64, []string) {
	if len(samples) == 0 || len(room.BeaconIDs) == 0 {
		return 0, append(notes, "no radio data")
	}

	known := make(map[string]bool, len(room.BeaconIDs))
	for _, id := range room.BeaconIDs {
		known[strings.ToLower(id)] = true
	}

	validHits := 0
	distinct := make(map[string]bool)
	for _, s := range samples {
		id := strings.ToLower(s.BeaconID)
		if known[id] && s.SignalStrength > e.cfg.RadioRSSIThreshold {
			validHits++
			distinct[id] = true
		}
	}

	if len(distinct) < e.cfg.MinDistinctRadioHits {
		return 0, append(notes, fmt.Sprintf("radio corroboration too weak (%d distinct beacons)", len(distinct)))
	}

	hitRatio := clamp01(float64(validHits) / float64(len(samples)))
	coverage := clamp01(float64(len(distinct)) / float64(len(room.BeaconIDs)))
	score := (hitRatio + coverage) / 2

	return score, append(notes, fmt.Sprintf("radio score %.2f (%d/%d samples, %d beacons)", score, validHits, len(samples), len(distinct)))
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
