package transloc

import "translocrt/internal/domain"

// Wire types mirroring the upstream JSON. Fields the adapter never reads
// are still decoded where cheap, matching what the feed actually carries.

type wireStop struct {
	ID           uint64     `json:"id"`
	Code         string     `json:"code"`
	Name         string     `json:"name"`
	Description  string     `json:"description"`
	LocationType string     `json:"location_type"`
	Position     [2]float64 `json:"position"`
	URL          string     `json:"url"`
}

func (s wireStop) toDomain() domain.Stop {
	return domain.Stop{
		ID:   s.ID,
		Code: s.Code,
		Name: s.Name,
		Lat:  s.Position[0],
		Lon:  s.Position[1],
	}
}

// thinRoute is the route shape the stops endpoint reports: just the id and
// the ids of the stops on the route.
type thinRoute struct {
	ID    uint64   `json:"id"`
	Stops []uint64 `json:"stops"`
}

type stopsResponse struct {
	Routes []thinRoute `json:"routes"`
	Stops  []wireStop  `json:"stops"`
}

type wireRoute struct {
	ID        uint64 `json:"id"`
	AgencyID  uint64 `json:"agency_id"`
	Color     string `json:"color"`
	IsActive  bool   `json:"is_active"`
	LongName  string `json:"long_name"`
	ShortName string `json:"short_name"`
	TextColor string `json:"text_color"`
	Type      string `json:"type"`
	URL       string `json:"url"`
}

type routesResponse struct {
	Routes  []wireRoute `json:"routes"`
	Success bool        `json:"success"`
}

type wireVehicle struct {
	ID        uint64     `json:"id"`
	CallName  string     `json:"call_name"`
	Position  [2]float64 `json:"position"`
	Heading   float64    `json:"heading"`
	Speed     float64    `json:"speed"`
	Timestamp uint64     `json:"timestamp"`
}

func (v wireVehicle) toDomain() domain.Vehicle {
	return domain.Vehicle{
		ID:          v.ID,
		CallName:    v.CallName,
		Lat:         v.Position[0],
		Lon:         v.Position[1],
		Heading:     v.Heading,
		SpeedMPH:    v.Speed,
		TimestampMS: v.Timestamp,
	}
}

type vehicleStatusesResponse struct {
	Vehicles []wireVehicle    `json:"vehicles"`
	Arrivals []domain.Arrival `json:"arrivals"`
}

type announcementsResponse struct {
	Announcements []domain.Announcement `json:"announcements"`
	Success       bool                  `json:"success"`
}
