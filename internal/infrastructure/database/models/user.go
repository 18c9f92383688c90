package models

import (
	"time"
)

type User struct {
	ID       string    `json:"id" gorm:"primaryKey;type:text"`
	Username string    `json:"username" gorm:"type:text;uniqueIndex"`
	Fullname string    `json:"fullname" gorm:"type:text"`
	Prename  string    `json:"prename" gorm:"type:text"`
	Surname  string    `json:"surname" gorm:"type:text"`
	Mail     string    `json:"mail" gorm:"type:text"`
	Role     string    `json:"role" gorm:"type:text"`
	Data     string    `json:"data" gorm:"type:jsonb;default:'{}'"`
	CDate    time.Time `json:"cdate" gorm:"->;<-:create;type:timestamp with time zone;not null;default:clock_timestamp()"`
	MDate    time.Time `json:"mdate" gorm:"autoUpdateTime"`
}
