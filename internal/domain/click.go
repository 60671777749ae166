package domain

import "time"

// Device is the coarse class of the client that followed a link
type Device string

const (
	DeviceMobile  Device = "mobile"
	DeviceTablet  Device = "tablet"
	DeviceDesktop Device = "desktop"
)

// DirectReferrer is recorded when the request carries no Referer header
const DirectReferrer = "Direct"

// Visit is the raw request context of a redirect, before classification
type Visit struct {
	Referrer  string
	IP        string
	UserAgent string
}

// Click is a classified redirect observation.
// Country is empty when the IP could not be resolved; no location entry is touched then.
type Click struct {
	Referrer string
	Country  string
	Device   Device
	At       time.Time
}

// Counter is one entry of an aggregation table
type Counter struct {
	Key   string
	Count int64
}

// Analytics holds the aggregated click data of a link.
// Each table holds at most one Counter per key, in first-seen order.
type Analytics struct {
	Clicks      int64
	LastClicked *time.Time
	Referrers   []Counter
	Locations   []Counter
	Devices     []Counter
}

// Apply increments the click counter and each aggregation table by one
func (a *Analytics) Apply(c Click) {
	a.Clicks++
	at := c.At
	a.LastClicked = &at

	a.Referrers = increment(a.Referrers, c.Referrer)
	if c.Country != "" {
		a.Locations = increment(a.Locations, c.Country)
	}
	a.Devices = increment(a.Devices, string(c.Device))
}

// Count returns the count for key in table, or 0
func Count(table []Counter, key string) int64 {
	for _, c := range table {
		if c.Key == key {
			return c.Count
		}
	}
	return 0
}

// increment bumps the entry matching key exactly, or appends it with count 1
func increment(table []Counter, key string) []Counter {
	for i := range table {
		if table[i].Key == key {
			table[i].Count++
			return table
		}
	}
	return append(table, Counter{Key: key, Count: 1})
}

// Clone returns a deep copy so callers can't mutate a store's copy
func (a Analytics) Clone() Analytics {
	out := a
	if a.LastClicked != nil {
		t := *a.LastClicked
		out.LastClicked = &t
	}
	out.Referrers = append([]Counter(nil), a.Referrers...)
	out.Locations = append([]Counter(nil), a.Locations...)
	out.Devices = append([]Counter(nil), a.Devices...)
	return out
}
