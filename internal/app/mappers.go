package app

import (
	"math"
	"strconv"
	"strings"

	"mealsfly_review/internal/domain"
)

/********** alias registry (single source of truth) **********/

var restaurantAliases = map[string][]string{
	"external_id": {"id", "_id", "restaurant_id", "restaurantId", "external_id"},
	"name":        {"name", "restaurant_name", "restaurantName", "title"},
	"phone":       {"phone", "phone_number", "phoneNumber", "contact.phone", "mobile"},
	"address":     {"address", "full_address", "formatted_address", "address.line", "location.address"},
	"lat":         {"lat", "latitude", "location.lat", "location.latitude", "geo.lat"},
	"lng":         {"lng", "lon", "longitude", "location.lng", "location.lon", "location.longitude", "geo.lng"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns a string (or a stringified number) at path, or "".
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, key string) string {
	for _, p := range restaurantAliases[key] {
		if s := lookupStr(m, p); s != "" {
			return s
		}
	}
	return ""
}

// getFloatFlexible: number from several paths (float64/int/string like "12,97").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// geoJSONPoint reads {"coordinates":[lng,lat]} at path.
func geoJSONPoint(m map[string]any, path string) (domain.GeoPoint, bool) {
	raw, ok := lookupAny(m, path).([]any)
	if !ok || len(raw) != 2 {
		return domain.GeoPoint{}, false
	}
	lng, ok1 := raw[0].(float64)
	lat, ok2 := raw[1].(float64)
	if !ok1 || !ok2 {
		return domain.GeoPoint{}, false
	}
	return domain.GeoPoint{Lat: lat, Lng: lng}, true
}

func composeAddress(m map[string]any) string {
	parts := []string{
		lookupStr(m, "address.line1"),
		lookupStr(m, "address.line2"),
		lookupStr(m, "address.street"),
		lookupStr(m, "address.locality"),
		lookupStr(m, "address.city"),
		lookupStr(m, "address.state"),
		lookupStr(m, "address.pincode"),
		lookupStr(m, "address.zip"),
	}
	nonEmpty := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			nonEmpty = append(nonEmpty, part)
		}
	}
	return strings.Join(nonEmpty, ", ")
}

/********** restaurant mapper **********/

// mapRestaurant turns one directory payload into a NewRestaurant. fallbackID
// is the id the record was requested by.
func mapRestaurant(fallbackID string, p map[string]any) domain.NewRestaurant {
	ext := firstNonEmptyAlias(p, "external_id")
	if ext == "" {
		ext = fallbackID
	}

	addr := firstNonEmptyAlias(p, "address")
	if addr == "" {
		addr = composeAddress(p)
	}

	// Unlocated records fail validation instead of landing at 0,0.
	loc, ok := geoJSONPoint(p, "location.coordinates")
	if !ok {
		loc = domain.GeoPoint{Lat: math.NaN(), Lng: math.NaN()}
		if lat, lng := getFloatFlexible(p, restaurantAliases["lat"]...), getFloatFlexible(p, restaurantAliases["lng"]...); lat != nil && lng != nil {
			loc = domain.GeoPoint{Lat: *lat, Lng: *lng}
		}
	}

	return domain.NewRestaurant{
		ExternalID: &ext,
		Name:       firstNonEmptyAlias(p, "name"),
		Phone:      firstNonEmptyAlias(p, "phone"),
		Address:    addr,
		Location:   loc,
	}
}
