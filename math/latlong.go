// math/latlong.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package math

import (
	"fmt"
	gomath "math"

	"github.com/skypies/geo"
)

// Point2LL represents a 2D point on the Earth in latitude-longitude.
// Important: 0 (x) is longitude, 1 (y) is latitude
type Point2LL [2]float64

func (p Point2LL) Longitude() float64 {
	return p[0]
}

func (p Point2LL) Latitude() float64 {
	return p[1]
}

func (p Point2LL) IsZero() bool {
	return p[0] == 0 && p[1] == 0
}

// DDString returns the position in decimal degrees, e.g.
// (37.618889, -122.375000)
func (p Point2LL) DDString() string {
	return fmt.Sprintf("(%.6f, %.6f)", p.Latitude(), p.Longitude())
}

func (p Point2LL) String() string {
	return p.DDString()
}

// Latlong returns the point as a skypies geo.Latlong.
func (p Point2LL) Latlong() geo.Latlong {
	return geo.Latlong{Lat: p[1], Long: p[0]}
}

func FromLatlong(ll geo.Latlong) Point2LL {
	return Point2LL{ll.Long, ll.Lat}
}

// DistanceM returns the great-circle distance in meters between two
// points using the haversine formula.
func DistanceM(a Point2LL, b Point2LL) float64 {
	// https://www.movable-type.co.uk/scripts/latlong.html
	lat1, lon1 := Radians(a[1]), Radians(a[0])
	lat2, lon2 := Radians(b[1]), Radians(b[0])
	dlat, dlon := lat2-lat1, lon2-lon1

	x := Sqr(gomath.Sin(dlat/2)) + gomath.Cos(lat1)*gomath.Cos(lat2)*Sqr(gomath.Sin(dlon/2))
	c := 2 * gomath.Atan2(gomath.Sqrt(x), gomath.Sqrt(Clamp(1-x, 0, 1)))
	return EarthRadiusM * c
}

// DistanceNM returns the distance in nautical miles between two
// provided lat-long coordinates.
func DistanceNM(a Point2LL, b Point2LL) float64 {
	return MetersToNM(DistanceM(a, b))
}

// Course returns the initial true course in degrees, [0,360), of the
// great circle from a to b.
func Course(a Point2LL, b Point2LL) float64 {
	lat1, lon1 := Radians(a[1]), Radians(a[0])
	lat2, lon2 := Radians(b[1]), Radians(b[0])
	dlon := lon2 - lon1

	y := gomath.Sin(dlon) * gomath.Cos(lat2)
	x := gomath.Cos(lat1)*gomath.Sin(lat2) - gomath.Sin(lat1)*gomath.Cos(lat2)*gomath.Cos(dlon)
	return NormalizeHeading(Degrees(gomath.Atan2(y, x)))
}

// Offset returns the point reached by following the great circle that
// leaves p on the given true heading for dist meters.
func Offset(p Point2LL, hdg float64, dist float64) Point2LL {
	if dist == 0 {
		return p
	}
	lat1, lon1 := Radians(p[1]), Radians(p[0])
	brng := Radians(hdg)
	d := dist / EarthRadiusM

	lat2 := gomath.Asin(gomath.Sin(lat1)*gomath.Cos(d) + gomath.Cos(lat1)*gomath.Sin(d)*gomath.Cos(brng))
	lon2 := lon1 + gomath.Atan2(gomath.Sin(brng)*gomath.Sin(d)*gomath.Cos(lat1),
		gomath.Cos(d)-gomath.Sin(lat1)*gomath.Sin(lat2))

	lon := NormalizeLongitude(Degrees(lon2))
	return Point2LL{lon, Degrees(lat2)}
}

// NormalizeLongitude reduces a longitude to [-180,180).
func NormalizeLongitude(lon float64) float64 {
	lon = gomath.Mod(lon+180, 360)
	if lon < 0 {
		lon += 360
	}
	return lon - 180
}

// Interpolate returns the point a fraction t of the way along the great
// circle from a to b. t is clamped to [0,1].
func Interpolate(a, b Point2LL, t float64) Point2LL {
	t = Clamp(t, 0, 1)
	d := DistanceM(a, b)
	if d < 1e-3 {
		return a
	}
	lat1, lon1 := Radians(a[1]), Radians(a[0])
	lat2, lon2 := Radians(b[1]), Radians(b[0])
	delta := d / EarthRadiusM

	sa := gomath.Sin((1-t)*delta) / gomath.Sin(delta)
	sb := gomath.Sin(t*delta) / gomath.Sin(delta)
	x := sa*gomath.Cos(lat1)*gomath.Cos(lon1) + sb*gomath.Cos(lat2)*gomath.Cos(lon2)
	y := sa*gomath.Cos(lat1)*gomath.Sin(lon1) + sb*gomath.Cos(lat2)*gomath.Sin(lon2)
	z := sa*gomath.Sin(lat1) + sb*gomath.Sin(lat2)

	lat := gomath.Atan2(z, gomath.Sqrt(x*x+y*y))
	lon := gomath.Atan2(y, x)
	return Point2LL{Degrees(lon), Degrees(lat)}
}

///////////////////////////////////////////////////////////////////////////
// Local flat-earth frame

// LocalFrame maps lat-long points near an origin to a flat frame measured
// in meters, +x east and +y north. It is accurate enough for reasoning
// about geometry on an airport surface.
type LocalFrame struct {
	Origin         Point2LL
	metersPerDegLo float64
}

const metersPerDegLat = gomath.Pi * EarthRadiusM / 180

func MakeLocalFrame(origin Point2LL) LocalFrame {
	return LocalFrame{
		Origin:         origin,
		metersPerDegLo: metersPerDegLat * gomath.Cos(Radians(origin[1])),
	}
}

func (f LocalFrame) ToLocal(p Point2LL) [2]float64 {
	dlon := NormalizeLongitude(p[0] - f.Origin[0])
	return [2]float64{dlon * f.metersPerDegLo, (p[1] - f.Origin[1]) * metersPerDegLat}
}

func (f LocalFrame) FromLocal(v [2]float64) Point2LL {
	return Point2LL{f.Origin[0] + v[0]/f.metersPerDegLo, f.Origin[1] + v[1]/metersPerDegLat}
}

// HeadingVector returns the unit vector in the local frame pointing along
// the given true heading.
func HeadingVector(hdg float64) [2]float64 {
	h := Radians(hdg)
	return [2]float64{gomath.Sin(h), gomath.Cos(h)}
}

// VectorHeading returns the true heading of a local-frame vector.
func VectorHeading(v [2]float64) float64 {
	return NormalizeHeading(Degrees(gomath.Atan2(v[0], v[1])))
}

func Add2(a, b [2]float64) [2]float64 { return [2]float64{a[0] + b[0], a[1] + b[1]} }
func Sub2(a, b [2]float64) [2]float64 { return [2]float64{a[0] - b[0], a[1] - b[1]} }
func Scale2(a [2]float64, s float64) [2]float64 {
	return [2]float64{a[0] * s, a[1] * s}
}
func Dot2(a, b [2]float64) float64 { return a[0]*b[0] + a[1]*b[1] }
func Cross2(a, b [2]float64) float64 { return a[0]*b[1] - a[1]*b[0] }
func Length2(a [2]float64) float64 { return gomath.Sqrt(Dot2(a, a)) }

// RaySegmentIntersection returns the distance t along the ray p+t*d at
// which it crosses the segment [a,b], or false if it does not. d must be
// a unit vector.
func RaySegmentIntersection(p, d, a, b [2]float64) (float64, bool) {
	e := Sub2(b, a)
	denom := Cross2(d, e)
	if Abs(denom) < 1e-9 {
		return 0, false
	}
	ap := Sub2(a, p)
	t := Cross2(ap, e) / denom
	u := Cross2(ap, d) / denom
	if t < 0 || u < 0 || u > 1 {
		return 0, false
	}
	return t, true
}

// PointSegmentDistance returns the distance from p to the segment [a,b]
// and the distance along the segment from a to the closest point.
func PointSegmentDistance(p, a, b [2]float64) (dist, along float64) {
	e := Sub2(b, a)
	l2 := Dot2(e, e)
	if l2 == 0 {
		return Length2(Sub2(p, a)), 0
	}
	t := Clamp(Dot2(Sub2(p, a), e)/l2, 0, 1)
	closest := Add2(a, Scale2(e, t))
	return Length2(Sub2(p, closest)), t * gomath.Sqrt(l2)
}
