package models

import (
	"time"
)

// ChangeTracker mirrors VuFind's change_tracker table: one row per record
// ever seen by the indexer, kept after the record leaves the index.
type ChangeTracker struct {
	Core             string     `json:"core" gorm:"primaryKey;type:text"`
	ID               string     `json:"id" gorm:"primaryKey;type:text"`
	FirstIndexed     time.Time  `json:"first_indexed" gorm:"type:timestamp with time zone"`
	LastIndexed      time.Time  `json:"last_indexed" gorm:"type:timestamp with time zone"`
	LastRecordChange time.Time  `json:"last_record_change" gorm:"type:timestamp with time zone"`
	Deleted          *time.Time `json:"deleted" gorm:"type:timestamp with time zone;index:change_tracker_deleted"`
}

type OaiResumption struct {
	Token   string    `json:"token" gorm:"primaryKey;type:text"`
	Params  string    `json:"params" gorm:"type:text"`
	Expires time.Time `json:"expires" gorm:"type:timestamp with time zone;not null;index"`
	CDate   time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
}

// IndexRecord is a live entry of the searchable record index.
type IndexRecord struct {
	ID          string        `json:"id" gorm:"primaryKey;type:text"`
	Core        string        `json:"core" gorm:"type:text;index"`
	LastIndexed time.Time     `json:"last_indexed" gorm:"type:timestamp with time zone;not null;index:index_record_last_indexed"`
	Fields      string        `json:"fields" gorm:"type:text"`
	Values      []RecordField `json:"-" gorm:"foreignKey:RecordID;references:ID;constraint:OnDelete:CASCADE;"`
}

// RecordField is one field value of an IndexRecord, flattened for filtering
// and faceting.
type RecordField struct {
	RecordID string `json:"record_id" gorm:"primaryKey;type:text"`
	Field    string `json:"field" gorm:"primaryKey;type:text;index:record_field_value"`
	Value    string `json:"value" gorm:"primaryKey;type:text;index:record_field_value"`
}
