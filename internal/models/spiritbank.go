package models

import (
	"time"

	"github.com/google/uuid"
)

type SpiritBankLogType string

const (
	SpiritBankStart              SpiritBankLogType = "START"
	SpiritBankEndedSession       SpiritBankLogType = "ENDED_SESSION"
	SpiritBankJoinedCircle       SpiritBankLogType = "JOINED_CIRCLE"
	SpiritBankEndedCreatedCircle SpiritBankLogType = "ENDED_CREATED_CIRCLE"
	SpiritBankAddVirtualToCircle SpiritBankLogType = "ADD_VIRTUAL_TO_CIRCLE"
	SpiritBankDonate             SpiritBankLogType = "DONATE"
)

// SpiritBankLogEntry is immutable once appended. Points carry their own sign.
type SpiritBankLogEntry struct {
	Created time.Time         `json:"created"`
	Type    SpiritBankLogType `json:"type"`
	Points  int64             `json:"points"`
}

// SpiritBankJob is a ledger append deferred to the spirit bank queue.
type SpiritBankJob struct {
	ID             uuid.UUID          `json:"id"`
	PractitionerID string             `json:"practitioner_id"`
	Entry          SpiritBankLogEntry `json:"entry"`
	Attempts       int                `json:"attempts,omitempty"`
}

type DonateRequest struct {
	Points int64 `json:"points"`
}
