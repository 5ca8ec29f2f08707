package audit

import (
	"encoding/json"
	"time"
)

// TimelineRow is a single audit entry prepared for listing.
type TimelineRow struct {
	ID        int64           `json:"id"`
	TargetID  string          `json:"target_id"`
	Module    string          `json:"module"`
	Action    string          `json:"action"`
	OldState  json.RawMessage `json:"old_state,omitempty"`
	NewState  json.RawMessage `json:"new_state,omitempty"`
	ChangedBy int64           `json:"changed_by"`
	At        time.Time       `json:"occurred_at"`
}

// TimelineFilters narrows the timeline query.
type TimelineFilters struct {
	From      time.Time
	To        time.Time
	Module    string
	Action    string
	TargetID  string
	ChangedBy int64
	Page      int
	PageSize  int
}

// PagingInfo describes the paging state of a timeline result.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}
