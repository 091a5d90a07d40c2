package domain

import "time"

// RadioSample is one observed short-range beacon reading submitted with a
// scan. SignalStrength is in dBm (more negative = weaker).
type RadioSample struct {
	BeaconID       string `json:"beacon_id"`
	SignalStrength int    `json:"signal_strength"`
	Timestamp      int64  `json:"timestamp"`
}

// SensorBundle carries the ambient evidence submitted alongside a scanned
// token. Any field may be absent; absence scores 0.0 for that factor.
type SensorBundle struct {
	RadioSamples []RadioSample `json:"radio_samples"`
	NetworkBSSID string        `json:"network_bssid"`
	GeoLatitude  *float64      `json:"geo_latitude,omitempty"`
	GeoLongitude *float64      `json:"geo_longitude,omitempty"`
	GeoAccuracy  float64       `json:"geo_accuracy,omitempty"`
	DeviceID     string        `json:"device_id,omitempty"`
}

// Verdict is the admit/reject outcome of a verification attempt.
type Verdict string

const (
	VerdictAdmit  Verdict = "admit"
	VerdictReject Verdict = "reject"
)

// FactorScores holds the per-factor components of a confidence score, each
// clamped to [0,1].
type FactorScores struct {
	Token   float64 `json:"token"`
	Radio   float64 `json:"radio"`
	Network float64 `json:"network"`
	Geo     float64 `json:"geo"`
}

// VerificationResult is the immutable outcome of one verification attempt.
type VerificationResult struct {
	SessionID  string       `json:"session_id"`
	StudentID  int64        `json:"student_id"`
	Scores     FactorScores `json:"scores"`
	Confidence float64      `json:"confidence"`
	Verdict    Verdict      `json:"verdict"`
	Notes      []string     `json:"notes"`
}

// AttendanceRecord is persisted at most once per (session, student).
type AttendanceRecord struct {
	RecordID    string       `json:"record_id"`
	SessionID   string       `json:"session_id"`
	StudentID   int64        `json:"student_id"`
	Verdict     Verdict      `json:"verdict"`
	Confidence  float64      `json:"confidence"`
	Scores      FactorScores `json:"scores"`
	SubmittedAt time.Time    `json:"submitted_at"`
}
