package specification

import "gorm.io/gorm"

type BySessionID struct {
	SessionID string
}

func (s BySessionID) Apply(db *gorm.DB) *gorm.DB {
	return db.Where("session_id = ?", s.SessionID)
}

// LatestInteractions selects the most recent n rows, newest first.
func LatestInteractions(sessionID string, n int) []Specification {
	return []Specification{
		BySessionID{SessionID: sessionID},
		OrderBy{Field: "created_at", Desc: true},
		Pagination{Limit: n},
	}
}
