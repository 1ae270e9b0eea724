package models

import (
	"database/sql"
	"errors"
	"time"
)

var ErrMailingNotFound = errors.New("mailing not found")

// TargetStatus is the delivery state of a mailing target
type TargetStatus int

const (
	TargetStatusPending TargetStatus = 0
	TargetStatusSent    TargetStatus = 1
	TargetStatusError   TargetStatus = -1
)

// Mailing represents an emailing campaign
type Mailing struct {
	ID        int64     `json:"id"`
	Entity    int       `json:"entity"`
	Title     string    `json:"title"`
	NbEmails  int       `json:"nb_emails"`
	CreatedAt time.Time `json:"created_at"`
}

// Target is one recipient of a mailing
type Target struct {
	ID         int64         `json:"id"`
	MailingID  int64         `json:"mailing_id"`
	Email      string        `json:"email"`
	ContactID  sql.NullInt64 `json:"contact_id"`
	Lastname   string        `json:"lastname"`
	Firstname  string        `json:"firstname"`
	Other      string        `json:"other"` // label=value pairs joined by ';'
	SourceURL  string        `json:"source_url"`
	SourceID   int64         `json:"source_id"`
	SourceType string        `json:"source_type"`
	Tag        string        `json:"tag"`
	Status     TargetStatus  `json:"status"`
	CreatedAt  time.Time     `json:"created_at"`
}

// TargetFilter for listing the targets of a mailing
type TargetFilter struct {
	MailingID int64
	Search    string
	Limit     int
	Offset    int
}

// Unsubscribe marks an email as opted out of every mailing of an entity
type Unsubscribe struct {
	ID        int64     `json:"id"`
	Entity    int       `json:"entity"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Stat is one line of the mailing dashboard
type Stat struct {
	Label string `json:"label"`
	Nb    int    `json:"nb"`
}
