package resource

// Resource is a fungible pool. Availability is never stored; it is derived
// from TotalQuantity minus confirmed overlapping bookings.
type Resource struct {
	ID            string `json:"id"`
	Name          string `json:"name"`
	TotalQuantity int    `json:"totalQuantity"`
	Unit          string `json:"unit"`
	IsActive      bool   `json:"isActive"`
}
