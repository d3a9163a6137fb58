package models

import "time"

// AccessRule controls when and where a set of users may pass
type AccessRule struct {
	LocalID         uint   `gorm:"primaryKey;column:id" json:"id"`
	PrimaryDeviceID *int64 `gorm:"index" json:"primaryDeviceId,omitempty"`
	Name            string `gorm:"not null;uniqueIndex" json:"name"`
	Type            int    `gorm:"default:1" json:"type"`
	Priority        int    `gorm:"default:0" json:"priority"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for AccessRule
func (AccessRule) TableName() string {
	return "access_rules"
}

// TimeZone is a named schedule made of time spans
type TimeZone struct {
	LocalID         uint   `gorm:"primaryKey;column:id" json:"id"`
	PrimaryDeviceID *int64 `gorm:"index" json:"primaryDeviceId,omitempty"`
	Name            string `gorm:"not null;uniqueIndex" json:"name"`

	TimeSpans []TimeSpan `gorm:"constraint:OnDelete:CASCADE" json:"timeSpans,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for TimeZone
func (TimeZone) TableName() string {
	return "time_zones"
}

// TimeSpan is one weekly window inside a TimeZone.
// Start and End are seconds past midnight, matching the reader's wire format.
type TimeSpan struct {
	ID         uint `gorm:"primaryKey" json:"id"`
	TimeZoneID uint `gorm:"not null;index" json:"timeZoneId"`
	Start      int  `gorm:"not null" json:"start"`
	End        int  `gorm:"not null" json:"end"`
	Sun        bool `json:"sun"`
	Mon        bool `json:"mon"`
	Tue        bool `json:"tue"`
	Wed        bool `json:"wed"`
	Thu        bool `json:"thu"`
	Fri        bool `json:"fri"`
	Sat        bool `json:"sat"`
	Hol1       bool `json:"hol1"`
	Hol2       bool `json:"hol2"`
	Hol3       bool `json:"hol3"`
}

// TableName specifies the table name for TimeSpan
func (TimeSpan) TableName() string {
	return "time_spans"
}

// Portal is a door/area controlled by a reader
type Portal struct {
	LocalID         uint   `gorm:"primaryKey;column:id" json:"id"`
	PrimaryDeviceID *int64 `gorm:"index" json:"primaryDeviceId,omitempty"`
	Name            string `gorm:"not null" json:"name"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Portal
func (Portal) TableName() string {
	return "portals"
}

// Group is a named collection of users sharing access rules
type Group struct {
	LocalID         uint   `gorm:"primaryKey;column:id" json:"id"`
	PrimaryDeviceID *int64 `gorm:"index" json:"primaryDeviceId,omitempty"`
	Name            string `gorm:"not null;uniqueIndex" json:"name"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// TableName specifies the table name for Group
func (Group) TableName() string {
	return "groups"
}
