package dto

// Page carries limit/offset paging; skip is accepted as an alias of offset
type Page struct {
	Limit  int `form:"limit" binding:"omitempty,gte=1,lte=500"`
	Offset int `form:"offset" binding:"omitempty,gte=0"`
	Skip   int `form:"skip" binding:"omitempty,gte=0"`
}

// Start returns the effective offset
func (p Page) Start() int {
	if p.Offset == 0 && p.Skip > 0 {
		return p.Skip
	}
	return p.Offset
}

// MetricQuery is shared by every metric listing and aggregation route
type MetricQuery struct {
	State      string   `form:"state" binding:"max=100"`
	District   string   `form:"district" binding:"max=100"`
	RegionID   uint     `form:"regionId"`
	Year       int      `form:"year" binding:"omitempty,agriyear"`
	YearFrom   int      `form:"yearFrom" binding:"omitempty,agriyear"`
	YearTo     int      `form:"yearTo" binding:"omitempty,agriyear,gtefield=YearFrom"`
	Category   string   `form:"category" binding:"max=50"`
	SourceType string   `form:"sourceType" binding:"max=50"`
	Season     string   `form:"season" binding:"omitempty,oneof=kharif rabi zaid annual pre-monsoon post-monsoon"`
	Crop       string   `form:"crop" binding:"max=100"`
	WellType   string   `form:"wellType" binding:"max=50"`
	MinDepth   *float64 `form:"minDepth" binding:"omitempty,gte=0"`
	MaxDepth   *float64 `form:"maxDepth" binding:"omitempty,gte=0"`
	Page
}

// RegionQuery filters the region listing
type RegionQuery struct {
	State    string `form:"state" binding:"max=100"`
	District string `form:"district" binding:"max=100"`
	Search   string `form:"search" binding:"max=100"`
	Page
}

type TopCropsQuery struct {
	MetricQuery
	N int `form:"n" binding:"omitempty,gte=1,lte=50"`
}

// UploadResponse describes a stored upload awaiting import
type UploadResponse struct {
	FileID       string `json:"fileId"`
	OriginalName string `json:"originalName"`
	Size         int64  `json:"size"`
	Status       string `json:"status"`
}
