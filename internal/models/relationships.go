package models

// Join tables. Each edge is unique per (left, right) pair.

// UserAccessRule links a user to an access rule
type UserAccessRule struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	UserID       uint `gorm:"not null;uniqueIndex:idx_user_rule" json:"userId"`
	AccessRuleID uint `gorm:"not null;uniqueIndex:idx_user_rule" json:"accessRuleId"`
}

// TableName specifies the table name for UserAccessRule
func (UserAccessRule) TableName() string {
	return "user_access_rules"
}

// UserGroup links a user to a group
type UserGroup struct {
	ID      uint `gorm:"primaryKey" json:"id"`
	UserID  uint `gorm:"not null;uniqueIndex:idx_user_group" json:"userId"`
	GroupID uint `gorm:"not null;uniqueIndex:idx_user_group" json:"groupId"`
}

// TableName specifies the table name for UserGroup
func (UserGroup) TableName() string {
	return "user_groups"
}

// GroupAccessRule links a group to an access rule
type GroupAccessRule struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	GroupID      uint `gorm:"not null;uniqueIndex:idx_group_rule" json:"groupId"`
	AccessRuleID uint `gorm:"not null;uniqueIndex:idx_group_rule" json:"accessRuleId"`
}

// TableName specifies the table name for GroupAccessRule
func (GroupAccessRule) TableName() string {
	return "group_access_rules"
}

// AccessRuleTimeZone links an access rule to a time zone
type AccessRuleTimeZone struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	AccessRuleID uint `gorm:"not null;uniqueIndex:idx_rule_zone" json:"accessRuleId"`
	TimeZoneID   uint `gorm:"not null;uniqueIndex:idx_rule_zone" json:"timeZoneId"`
}

// TableName specifies the table name for AccessRuleTimeZone
func (AccessRuleTimeZone) TableName() string {
	return "access_rule_time_zones"
}

// PortalAccessRule links a portal to an access rule
type PortalAccessRule struct {
	ID           uint `gorm:"primaryKey" json:"id"`
	PortalID     uint `gorm:"not null;uniqueIndex:idx_portal_rule" json:"portalId"`
	AccessRuleID uint `gorm:"not null;uniqueIndex:idx_portal_rule" json:"accessRuleId"`
}

// TableName specifies the table name for PortalAccessRule
func (PortalAccessRule) TableName() string {
	return "portal_access_rules"
}
