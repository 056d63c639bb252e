package memory

import (
	"sync"

	"github.com/google/uuid"
	"github.com/wolfeidau/rollcall/internal/models"
	"github.com/wolfeidau/rollcall/internal/store"
)

var (
	_ store.SessionStore    = (*Store)(nil)
	_ store.AttendanceStore = (*Store)(nil)
)

// Store implements store.SessionStore and store.AttendanceStore using in-memory storage.
// Sessions and records share one lock so the active-session check and the
// record insert happen atomically, mirroring the PostgreSQL constraints.
// This implementation is for testing and development only - data is lost on restart.
type Store struct {
	mu sync.RWMutex

	sessions           map[uuid.UUID]*models.Session                     // session_id -> Session
	activeByInstructor map[string]uuid.UUID                              // instructor_id -> active session_id
	records            map[uuid.UUID]map[string]*models.AttendanceRecord // session_id -> student_id -> record
	sessionsByCourse   map[string][]uuid.UUID                            // course_id -> []session_id
}

// NewStore creates a new in-memory attendance store.
func NewStore() *Store {
	return &Store{
		sessions:           make(map[uuid.UUID]*models.Session),
		activeByInstructor: make(map[string]uuid.UUID),
		records:            make(map[uuid.UUID]map[string]*models.AttendanceRecord),
		sessionsByCourse:   make(map[string][]uuid.UUID),
	}
}

// Stores returns the store wired into both store interfaces.
func (s *Store) Stores() store.Stores {
	return store.Stores{
		Sessions:   s,
		Attendance: s,
	}
}

func cloneSession(session *models.Session) *models.Session {
	clone := *session
	if session.EndTime != nil {
		end := *session.EndTime
		clone.EndTime = &end
	}
	return &clone
}

func cloneRecord(record *models.AttendanceRecord) *models.AttendanceRecord {
	clone := *record
	if record.Confidence != nil {
		c := *record.Confidence
		clone.Confidence = &c
	}
	return &clone
}
