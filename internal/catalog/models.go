package catalog

import "time"

// ProbeRecord is one probed container file: which streams it carried
// and the metadata the adapter reported at open time.
type ProbeRecord struct {
	ID       uint   `gorm:"primaryKey" json:"id"`
	Path     string `gorm:"index" json:"path"`
	HasVideo bool   `json:"has_video"`
	HasAudio bool   `json:"has_audio"`

	Rate       uint32 `json:"rate"`
	Scale      uint32 `json:"scale"`
	FrameCount int    `json:"frame_count"`

	SampleCount int `json:"sample_count"`
	BlockAlign  int `json:"block_align"`

	ProbedAt time.Time `json:"probed_at"`
}

func (ProbeRecord) TableName() string {
	return "probe_records"
}
