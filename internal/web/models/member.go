package models

import (
	"database/sql"
	"time"
)

// MemberStatus is the lifecycle state stored on a member row
type MemberStatus int

const (
	MemberStatusDraft    MemberStatus = -1
	MemberStatusResigned MemberStatus = 0
	MemberStatusActive   MemberStatus = 1
)

// CategoryTypeMember marks categories that apply to members
const CategoryTypeMember = 3

// SourceTypeMember tags targets produced from the members table
const SourceTypeMember = "member"

// MemberType represents a kind of membership
type MemberType struct {
	ID           int64  `json:"id"`
	Entity       int    `json:"entity"`
	Label        string `json:"label"`
	Subscription bool   `json:"subscription"` // membership must be renewed by a paid subscription
	Status       int    `json:"status"`
}

// Member represents a member of the association
type Member struct {
	ID        int64          `json:"id"`
	Entity    int            `json:"entity"`
	Email     sql.NullString `json:"email"`
	Lastname  string         `json:"lastname"`
	Firstname string         `json:"firstname"`
	Login     string         `json:"login"`
	Company   string         `json:"company"`
	Civility  sql.NullString `json:"civility"`
	Status    MemberStatus   `json:"status"`
	EndDate   sql.NullTime   `json:"end_date"`
	TypeID    int64          `json:"type_id"`
	CreatedAt time.Time      `json:"created_at"`
}

// Category represents a tag that can be attached to members
type Category struct {
	ID      int64  `json:"id"`
	Entity  int    `json:"entity"`
	Label   string `json:"label"`
	Type    int    `json:"type"`
	Visible bool   `json:"visible"`
}

// Candidate is one row of the population considered for a mailing
type Candidate struct {
	ID        int64
	Email     string
	ContactID sql.NullInt64
	Lastname  string
	Firstname string
	EndDate   sql.NullTime
	Civility  sql.NullString
	Login     string
	Company   string
}
