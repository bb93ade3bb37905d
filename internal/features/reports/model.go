package reports

import (
	"time"

	"github.com/tlemoine/signalmap/internal/remote"
)

// Status of a signalement, driving marker color and list badges.
type Status string

const (
	StatusNew        Status = "new"
	StatusInProgress Status = "in_progress"
	StatusResolved   Status = "resolved"
)

// Photo is one encoded image attached to a report. Data holds the inline
// JPEG bytes; URL is set instead when photos are offloaded to external
// storage.
type Photo struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
	Data []byte `json:"data,omitempty"`
	URL  string `json:"url,omitempty"`
}

// Report is a geolocated issue record mirrored from the remote store.
// Reports are never edited in place by this client; they are created,
// echoed back through the live feed, and eventually deleted by their
// owner.
type Report struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	Latitude        float64   `json:"latitude"`
	Longitude       float64   `json:"longitude"`
	CreatedAt       time.Time `json:"createdAt"`
	Status          Status    `json:"status"`
	AreaSqMeters    *float64  `json:"areaSqMeters,omitempty"`
	Budget          *float64  `json:"budget,omitempty"`
	ProgressPercent int       `json:"progressPercent"`
	ResponsibleOrg  string    `json:"responsibleOrg,omitempty"`
	CreatorID       string    `json:"creatorId"`
	CreatorLabel    string    `json:"creatorLabel"`
	Photos          []Photo   `json:"photos,omitempty"`
}

// Draft carries the fields of an in-progress form session. Photos hold
// the encoded payloads produced by the compression pipeline.
type Draft struct {
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Latitude        float64  `json:"latitude"`
	Longitude       float64  `json:"longitude"`
	AreaSqMeters    *float64 `json:"areaSqMeters,omitempty"`
	Budget          *float64 `json:"budget,omitempty"`
	ProgressPercent int      `json:"progressPercent"`
	ResponsibleOrg  string   `json:"responsibleOrg,omitempty"`
	Photos          []Photo  `json:"photos,omitempty"`
}

// decodeReport maps a remote document onto a Report, tolerating missing
// or oddly-typed fields so one malformed record cannot poison the feed.
func decodeReport(doc remote.Document) Report {
	r := Report{
		ID:              doc.ID,
		Title:           asString(doc.Data["title"]),
		Description:     asString(doc.Data["description"]),
		Status:          Status(asString(doc.Data["status"])),
		ResponsibleOrg:  asString(doc.Data["responsibleOrg"]),
		CreatorID:       asString(doc.Data["creatorId"]),
		CreatorLabel:    asString(doc.Data["creatorLabel"]),
		ProgressPercent: int(asFloat(doc.Data["progressPercent"])),
	}

	if loc, ok := doc.Data["location"].([]interface{}); ok && len(loc) == 2 {
		r.Latitude = asFloat(loc[0])
		r.Longitude = asFloat(loc[1])
	}
	if ts, ok := doc.Data["createdAt"].(time.Time); ok {
		r.CreatedAt = ts
	}
	if v, ok := doc.Data["areaSqMeters"]; ok {
		if f := asFloat(v); f > 0 {
			r.AreaSqMeters = &f
		}
	}
	if v, ok := doc.Data["budget"]; ok {
		if f := asFloat(v); f >= 0 {
			r.Budget = &f
		}
	}
	if photos, ok := doc.Data["photos"].([]interface{}); ok {
		for _, p := range photos {
			m, ok := p.(map[string]interface{})
			if !ok {
				continue
			}
			photo := Photo{
				Name: asString(m["name"]),
				URL:  asString(m["url"]),
			}
			if data, ok := m["data"].([]byte); ok {
				photo.Data = data
			}
			r.Photos = append(r.Photos, photo)
		}
	}

	return r
}

// toDocument builds the remote record for a validated draft. createdAt is
// deliberately absent: the store stamps it server-side.
func toDocument(d Draft, creatorID, creatorLabel string) map[string]interface{} {
	photos := make([]interface{}, 0, len(d.Photos))
	for _, p := range d.Photos {
		entry := map[string]interface{}{"name": p.Name}
		if p.URL != "" {
			entry["url"] = p.URL
		} else {
			entry["data"] = p.Data
		}
		photos = append(photos, entry)
	}

	doc := map[string]interface{}{
		"title":           d.Title,
		"description":     d.Description,
		"location":        []interface{}{d.Latitude, d.Longitude},
		"status":          string(StatusNew),
		"progressPercent": d.ProgressPercent,
		"responsibleOrg":  d.ResponsibleOrg,
		"creatorId":       creatorID,
		"creatorLabel":    creatorLabel,
		"photos":          photos,
	}
	if d.AreaSqMeters != nil {
		doc["areaSqMeters"] = *d.AreaSqMeters
	}
	if d.Budget != nil {
		doc["budget"] = *d.Budget
	}
	return doc
}

func asString(v interface{}) string {
	s, _ := v.(string)
	return s
}

func asFloat(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		return t
	case float32:
		return float64(t)
	case int:
		return float64(t)
	case int64:
		return float64(t)
	default:
		return 0
	}
}
