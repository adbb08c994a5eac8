// Package timeline models the shared game timeline: camera lanes holding
// placed clips, and the coverage query the sync tool is built on. It is
// pure and performs no I/O, so it is cheap to call on every input event.
package timeline

// Clip is one placed video segment on a lane. PositionMs is the clip's
// start on the shared zero-based timeline.
type Clip struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	SourceRef  string `json:"source_ref"`
	PositionMs int64  `json:"position_ms"`
	DurationMs int64  `json:"duration_ms"`
}

// EndMs returns the clip's exclusive end on the shared timeline.
func (c Clip) EndMs() int64 {
	return c.PositionMs + c.DurationMs
}

// Covers reports whether tMs falls inside the clip's half-open
// interval [PositionMs, PositionMs+DurationMs).
func (c Clip) Covers(tMs int64) bool {
	return tMs >= c.PositionMs && tMs < c.EndMs()
}

// Lane is a single physical camera's track. Clips within a lane are
// expected not to overlap; that is enforced by upstream editing and
// tolerated, not validated, here.
type Lane struct {
	ID    string `json:"id"`
	Label string `json:"label"`
	Clips []Clip `json:"clips"`
}

// CameraAtSyncPoint is the per-clip working record for a sync session:
// one camera's clip covering the chosen sync timestamp, the snapshot of
// its position at session start, and the mutable alignment offset.
type CameraAtSyncPoint struct {
	LaneID    string `json:"lane_id"`
	LaneLabel string `json:"lane_label"`

	ClipID         string `json:"clip_id"`
	ClipName       string `json:"clip_name"`
	SourceRef      string `json:"source_ref"`
	ClipStartMs    int64  `json:"clip_start_ms"`
	ClipEndMs      int64  `json:"clip_end_ms"`
	ClipDurationMs int64  `json:"clip_duration_ms"`

	// OriginalPositionMs is captured when the session starts and never
	// changes for the session's lifetime.
	OriginalPositionMs int64 `json:"original_position_ms"`

	// OffsetMs is the signed correction relative to the anchor,
	// always 0 for the anchor itself.
	OffsetMs int64 `json:"offset_ms"`
	IsAnchor bool  `json:"is_anchor"`

	// SyncPointInClipMs is how far into this clip the sync timestamp
	// lands, in [0, ClipDurationMs).
	SyncPointInClipMs int64 `json:"sync_point_in_clip_ms"`
}

// TotalDuration returns the maximum clip end over all lanes, or 0 when
// no clips exist.
func TotalDuration(lanes []Lane) int64 {
	var total int64
	for _, lane := range lanes {
		for _, clip := range lane.Clips {
			if end := clip.EndMs(); end > total {
				total = end
			}
		}
	}
	return total
}

// FindClipsAtTime returns, for every lane with coverage at tMs, a
// CameraAtSyncPoint for the covering clip. The result has at most one
// entry per lane; when upstream editing has left overlapping clips the
// first covering clip in lane order wins.
func FindClipsAtTime(lanes []Lane, tMs int64) []CameraAtSyncPoint {
	var cameras []CameraAtSyncPoint
	for _, lane := range lanes {
		for _, clip := range lane.Clips {
			if !clip.Covers(tMs) {
				continue
			}
			cameras = append(cameras, CameraAtSyncPoint{
				LaneID:             lane.ID,
				LaneLabel:          lane.Label,
				ClipID:             clip.ID,
				ClipName:           clip.Name,
				SourceRef:          clip.SourceRef,
				ClipStartMs:        clip.PositionMs,
				ClipEndMs:          clip.EndMs(),
				ClipDurationMs:     clip.DurationMs,
				OriginalPositionMs: clip.PositionMs,
				OffsetMs:           0,
				IsAnchor:           false,
				SyncPointInClipMs:  tMs - clip.PositionMs,
			})
			break
		}
	}
	return cameras
}
