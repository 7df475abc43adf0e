package models

import "time"

// Bill is one row of the bills table. Detail, Summary, Prediction, Term
// and the embedding are written once at creation and never updated.
type Bill struct {
	ID           int64
	APIID        string
	BillNumber   int64
	BillTitle    string
	BillProposer string
	ProposerID   int64
	Committee    string
	BillStatus   string
	BillDate     string
	Detail       *string
	Summary      *string
	Prediction   *string
	Term         *string
	// Embedding is the unit-normalized vector, nil for rows read back
	// without it.
	Embedding []float32
	CreatedAt time.Time
	UpdatedAt time.Time
}

// BillProgress holds the fields that may change after a bill is created.
type BillProgress struct {
	BillStatus string
	BillDate   string
	Committee  string
}

type Proposer struct {
	ID       int64
	Name     string
	BirthDay string
	Job      string
	Party    string
	District string
	Cmits    string
	MemTitle string
}

// BillStatus counters belong to the voting subsystem; this pipeline only
// creates them at zero and maintains Link.
type BillStatus struct {
	BillID        int64
	ProposerID    int64
	BillCount     int64
	Yes           int64
	No            int64
	BookmarkCount int64
	Link          string
}

// BillRef is the projection the status link synchronizer walks.
type BillRef struct {
	BillID     int64
	ProposerID int64
	APIID      string
}
