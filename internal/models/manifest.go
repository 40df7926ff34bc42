package models

import "time"

// Manifest is one uploaded bundle. FileContent holds the encoded bundle text
// and FileSize the summed size of the original payloads.
type Manifest struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	UploadedAt time.Time `gorm:"autoCreateTime;index:idx_uploaded_at,sort:desc" json:"uploaded_at"`
	UpdatedAt  time.Time `gorm:"autoUpdateTime" json:"updated_at"`

	AppID        string `gorm:"size:50;not null;index;uniqueIndex:uniq_app_depot_manifest" json:"app_id"`
	GameName     string `gorm:"size:255;not null;index" json:"game_name"`
	DepotID      string `gorm:"size:50;not null;default:'';uniqueIndex:uniq_app_depot_manifest" json:"depot_id"`
	ManifestID   string `gorm:"size:100;not null;uniqueIndex:uniq_app_depot_manifest" json:"manifest_id"`
	FileContent  string `gorm:"type:text;not null" json:"file_content"`
	FileSize     int64  `json:"file_size"`
	UploaderName string `gorm:"size:100" json:"uploader_name"`
	Notes        string `gorm:"type:text" json:"notes"`
	GameImage    string `gorm:"type:text" json:"game_image"`
}

// ManifestStats mirrors the aggregate shown on the dashboard.
type ManifestStats struct {
	TotalManifests int64      `json:"total_manifests"`
	UniqueGames    int64      `json:"unique_games"`
	TotalSize      int64      `json:"total_size"`
	TotalSizeHuman string     `json:"total_size_human" gorm:"-"`
	LastUpload     *time.Time `json:"last_upload"`
}
