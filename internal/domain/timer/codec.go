package timer

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// documentVersion is the envelope version written by this package.
//
// Version history:
//
//	0: bare array of {id, name, volume, endTime, notified5min}
//	1: v0 plus startTime
//	2: {"version":2,"timers":[{id, label, volumeMl, startTime, endTime, warnedNearEnd}]}
const documentVersion = 2

type envelope struct {
	Version int               `json:"version"`
	Timers  []json.RawMessage `json:"timers"`
}

type storedEntry struct {
	ID            string `json:"id"`
	Label         string `json:"label"`
	VolumeMl      string `json:"volumeMl"`
	StartTime     int64  `json:"startTime"`
	EndTime       int64  `json:"endTime"`
	WarnedNearEnd bool   `json:"warnedNearEnd"`
}

type recordShape int

const (
	shapeV0 recordShape = iota
	shapeV1
	shapeV2
)

// wireRecord is the union of every field any record version has carried.
// Each version decodes into it; classify picks the variant.
type wireRecord struct {
	ID            json.RawMessage `json:"id"`
	Label         *string         `json:"label"`
	VolumeMl      json.RawMessage `json:"volumeMl"`
	WarnedNearEnd *bool           `json:"warnedNearEnd"`
	Name          *string         `json:"name"`
	Volume        json.RawMessage `json:"volume"`
	Notified5min  *bool           `json:"notified5min"`
	StartTime     *float64        `json:"startTime"`
	EndTime       *float64        `json:"endTime"`
}

func (w wireRecord) classify() recordShape {
	switch {
	case w.Label != nil || w.VolumeMl != nil || w.WarnedNearEnd != nil:
		return shapeV2
	case w.StartTime != nil:
		return shapeV1
	default:
		return shapeV0
	}
}

// decoded is the normalised result of reading a stored document.
type decoded struct {
	entries   []Entry
	migrated  bool     // at least one record was not in the current shape
	discarded []string // reasons for dropped records
}

type decoder struct {
	legacyDuration time.Duration
	newID          func() string
}

func (d decoder) decode(data []byte) (decoded, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return decoded{}, nil
	}

	var raws []json.RawMessage
	legacy := false
	switch data[0] {
	case '[':
		legacy = true
		if err := json.Unmarshal(data, &raws); err != nil {
			return decoded{}, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
		}
	case '{':
		var env envelope
		if err := json.Unmarshal(data, &env); err != nil {
			return decoded{}, fmt.Errorf("%w: %w", ErrMalformedDocument, err)
		}
		if env.Version > documentVersion {
			return decoded{}, fmt.Errorf("%w: %d", ErrUnsupportedVersion, env.Version)
		}
		legacy = env.Version < documentVersion
		raws = env.Timers
	default:
		return decoded{}, fmt.Errorf("%w: unexpected leading byte %q", ErrMalformedDocument, data[0])
	}

	out := decoded{migrated: legacy}
	for i, raw := range raws {
		var w wireRecord
		if err := json.Unmarshal(raw, &w); err != nil {
			out.discarded = append(out.discarded, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		e, migrated, err := d.normalise(w)
		if err != nil {
			out.discarded = append(out.discarded, fmt.Sprintf("record %d: %v", i, err))
			continue
		}
		out.migrated = out.migrated || migrated
		out.entries = append(out.entries, e)
	}
	return out, nil
}

func (d decoder) normalise(w wireRecord) (Entry, bool, error) {
	if w.EndTime == nil || !finite(*w.EndTime) || *w.EndTime <= 0 {
		return Entry{}, false, fmt.Errorf("missing endTime")
	}
	endMs := int64(math.Round(*w.EndTime))

	shape := w.classify()
	migrated := shape != shapeV2

	var e Entry
	var legacyID string
	switch shape {
	case shapeV2:
		e.ID = rawString(w.ID)
		e.Label = deref(w.Label)
		e.VolumeMl = rawString(w.VolumeMl)
		e.WarnedNearEnd = w.WarnedNearEnd != nil && *w.WarnedNearEnd
	case shapeV1, shapeV0:
		e.ID = rawString(w.ID)
		legacyID = e.ID
		e.Label = deref(w.Name)
		e.VolumeMl = rawString(w.Volume)
		e.WarnedNearEnd = w.Notified5min != nil && *w.Notified5min
	}
	if isNumber(w.ID) || isNumber(w.VolumeMl) || isNumber(w.Volume) {
		migrated = true
	}
	if e.ID == "" {
		e.ID = d.newID()
		migrated = true
	}
	e.EndTime = time.UnixMilli(endMs)

	startMs := int64(0)
	if w.StartTime != nil && finite(*w.StartTime) {
		startMs = int64(math.Round(*w.StartTime))
	}
	if startMs <= 0 || startMs >= endMs {
		startMs = d.backfillStart(legacyID, endMs)
		migrated = true
	}
	e.StartTime = time.UnixMilli(startMs)
	return e, migrated, nil
}

// backfillStart recovers a start time for records that never stored one.
// Legacy ids were the creation time in unix milliseconds.
func (d decoder) backfillStart(legacyID string, endMs int64) int64 {
	if ms, err := strconv.ParseInt(legacyID, 10, 64); err == nil && ms > 0 && ms < endMs {
		return ms
	}
	return endMs - d.legacyDuration.Milliseconds()
}

func encode(entries []Entry) ([]byte, error) {
	out := struct {
		Version int           `json:"version"`
		Timers  []storedEntry `json:"timers"`
	}{Version: documentVersion, Timers: make([]storedEntry, 0, len(entries))}
	for _, e := range entries {
		out.Timers = append(out.Timers, storedEntry{
			ID:            e.ID,
			Label:         e.Label,
			VolumeMl:      e.VolumeMl,
			StartTime:     e.StartTime.UnixMilli(),
			EndTime:       e.EndTime.UnixMilli(),
			WarnedNearEnd: e.WarnedNearEnd,
		})
	}
	return json.Marshal(out)
}

// rawString accepts a JSON string or number and returns its text form.
func rawString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func isNumber(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && (raw[0] == '-' || (raw[0] >= '0' && raw[0] <= '9'))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
