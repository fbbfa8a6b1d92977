package domain

// WaypointType tells whether a stop loads or unloads cargo.
type WaypointType string

const (
	WaypointPickup   WaypointType = "pickup"
	WaypointDelivery WaypointType = "delivery"
)

// Waypoint is a pickup or delivery stop of a route.
type Waypoint struct {
	Type        WaypointType `json:"type"`
	OrderID     string       `json:"order_id"`
	Address     string       `json:"address"`
	Coordinates Coordinates  `json:"coordinates"`
}

// RoutePlan is the visiting sequence produced for a multi-stop dispatch.
type RoutePlan struct {
	Waypoints        []Waypoint `json:"waypoints"`
	TotalDistanceKm  float64    `json:"total_distance_km"`
	EstimatedMinutes int        `json:"estimated_minutes"`
}
