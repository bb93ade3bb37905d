package mapview

import (
	"context"
	"sync"

	"github.com/apex/log"

	"github.com/tlemoine/signalmap/internal/features/auth"
	"github.com/tlemoine/signalmap/internal/features/geolocate"
	"github.com/tlemoine/signalmap/internal/features/reports"
)

// Marker colors by report status. Unknown statuses get the neutral color
// instead of breaking rendering.
const (
	ColorNew        = "red"
	ColorInProgress = "yellow"
	ColorResolved   = "green"
	ColorNeutral    = "gray"
	ColorDevice     = "blue"
)

// MarkerColor maps a report status to its pin color.
func MarkerColor(s reports.Status) string {
	switch s {
	case reports.StatusNew:
		return ColorNew
	case reports.StatusInProgress:
		return ColorInProgress
	case reports.StatusResolved:
		return ColorResolved
	default:
		return ColorNeutral
	}
}

// Viewport is the map's rendered window.
type Viewport struct {
	Center geolocate.Coordinate `json:"center"`
	Zoom   int                  `json:"zoom"`
	Ready  bool                 `json:"ready"`
}

// Marker is one rendered pin.
type Marker struct {
	Kind     string               `json:"kind"` // "report" or "device"
	ReportID string               `json:"reportId,omitempty"`
	Position geolocate.Coordinate `json:"position"`
	Color    string               `json:"color"`
	Halo     bool                 `json:"halo"` // ring variant for the current user's own reports
}

// Defaults configure where the map sits before any fix arrives.
type Defaults struct {
	Center  geolocate.Coordinate
	Zoom    int
	FixZoom int
}

// Controller owns the viewport and translates map gestures into domain
// events. The render surface does not detect its own size changes, so
// every mount/resize/recenter must bump the invalidation epoch.
type Controller struct {
	defaults Defaults
	acquirer *geolocate.Acquirer
	mirror   *reports.Mirror
	identity *auth.Identity

	mu          sync.Mutex
	viewport    Viewport
	devicePos   *geolocate.Coordinate
	resizeEpoch int
	locErr      error
	onPoint     func(lat, lng float64)
}

func NewController(defaults Defaults, acquirer *geolocate.Acquirer, mirror *reports.Mirror, identity *auth.Identity) *Controller {
	return &Controller{
		defaults: defaults,
		acquirer: acquirer,
		mirror:   mirror,
		identity: identity,
		viewport: Viewport{Center: defaults.Center, Zoom: defaults.Zoom},
	}
}

// Mount marks the surface ready and forces the first invalidation.
func (c *Controller) Mount() {
	c.mu.Lock()
	c.viewport.Ready = true
	c.mu.Unlock()
	c.ResizeInvalidate()
}

// SetOnPointSelected wires the click consumer (the form workflow).
func (c *Controller) SetOnPointSelected(f func(lat, lng float64)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onPoint = f
}

// Click translates a map click into a point-selected event.
func (c *Controller) Click(lat, lng float64) {
	c.mu.Lock()
	f := c.onPoint
	c.mu.Unlock()
	if f != nil {
		f(lat, lng)
	}
}

// Recenter moves the viewport. Idempotent: repeating the same target is a
// no-op, so animation never oscillates. Any actual move invalidates the
// render surface.
func (c *Controller) Recenter(coord geolocate.Coordinate, zoom int) bool {
	c.mu.Lock()
	if c.viewport.Center == coord && c.viewport.Zoom == zoom {
		c.mu.Unlock()
		return false
	}
	c.viewport.Center = coord
	c.viewport.Zoom = zoom
	c.mu.Unlock()

	c.ResizeInvalidate()
	return true
}

// ResizeInvalidate bumps the invalidation epoch. Called on mount, on
// resize/orientation events from the shell, and after programmatic
// recenters.
func (c *Controller) ResizeInvalidate() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resizeEpoch++
	return c.resizeEpoch
}

func (c *Controller) ResizeEpoch() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resizeEpoch
}

// Locate runs a geolocation attempt and recentres on the fix. Every
// failure is non-fatal: the viewport falls back to the configured default
// and the error stays readable until a retry succeeds.
func (c *Controller) Locate(ctx context.Context) (geolocate.Coordinate, error) {
	coord, err := c.acquirer.Acquire(ctx)

	c.mu.Lock()
	c.locErr = err
	if err == nil {
		pos := coord
		c.devicePos = &pos
	}
	c.mu.Unlock()

	if err != nil {
		log.WithError(err).Warn("geolocation failed, using default viewport")
		c.Recenter(c.defaults.Center, c.defaults.Zoom)
		return c.defaults.Center, err
	}

	c.Recenter(coord, c.defaults.FixZoom)
	return coord, nil
}

// LocationError returns the last acquisition failure, nil after success.
func (c *Controller) LocationError() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.locErr
}

func (c *Controller) Viewport() Viewport {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewport
}

// Markers renders the active filtered report set plus, when known, the
// device position as its own distinct marker.
func (c *Controller) Markers() []Marker {
	rs := c.mirror.Filtered()
	user, signedIn := c.identity.Current()

	c.mu.Lock()
	devicePos := c.devicePos
	c.mu.Unlock()

	markers := make([]Marker, 0, len(rs)+1)
	for _, r := range rs {
		markers = append(markers, Marker{
			Kind:     "report",
			ReportID: r.ID,
			Position: geolocate.Coordinate{Latitude: r.Latitude, Longitude: r.Longitude},
			Color:    MarkerColor(r.Status),
			Halo:     signedIn && r.CreatorID == user.ID,
		})
	}

	if devicePos != nil {
		markers = append(markers, Marker{
			Kind:     "device",
			Position: *devicePos,
			Color:    ColorDevice,
		})
	}
	return markers
}
