package domain

import "time"

// PushEndpoint is one browser/device token registered for FCM.
type PushEndpoint struct {
	Token      string
	UserID     string
	DeviceInfo string
	CreatedAt  time.Time
}

// Delivery identifies one notification event: a record firing at a local
// time on a local calendar day.
type Delivery struct {
	RecordID string
	FireDate string // YYYY-MM-DD in the record's timezone
	FireTime string // HH:MM:SS
}

// DeliveryFor builds the ledger key for a due evaluation.
func DeliveryFor(ev Evaluation) Delivery {
	return Delivery{
		RecordID: ev.Record.ID,
		FireDate: FormatDate(ev.LocalTime),
		FireTime: ev.MatchedTime,
	}
}
