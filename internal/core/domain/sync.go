package domain

import (
	"strconv"
	"time"
)

// A SyncRecord summarizes the last successful member run. There is one
// record per organization, keyed by the management account.
type SyncRecord struct {
	ManagementAccountID    string
	ManagementAccountEmail string
	Stamp                  string
	UpdateTimeUTC          string
	ExperiencesUpdated     int
}

func NewSyncRecord(org Organization, experiences int, at time.Time) SyncRecord {
	at = at.UTC()
	return SyncRecord{
		ManagementAccountID:    org.ManagementAccountID,
		ManagementAccountEmail: org.ManagementAccountEmail,
		Stamp:                  strconv.FormatFloat(float64(at.UnixMicro())/1e6, 'f', 6, 64),
		UpdateTimeUTC:          at.Format("2006-01-02T15:04:05.000000"),
		ExperiencesUpdated:     experiences,
	}
}

type Organization struct {
	ManagementAccountID    string
	ManagementAccountEmail string
}

const ActionProductsUpdated = "Products-Updated"

// ProductsUpdated is published after the management run changed the
// mirror tables.
type ProductsUpdated struct {
	ExperienceID string
	Added        int
	Removed      int
	OccurredAt   time.Time
}
