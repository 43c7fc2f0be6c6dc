// scenery/bucket.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package scenery

import (
	"fmt"
	gomath "math"

	"github.com/mmp/aitraffic/math"
)

// BucketHeight is the latitude extent of every bucket in degrees.
const BucketHeight = 0.125

// Bucket identifies one terrain tile. Buckets are one-eighth of a degree
// high; their width depends on the latitude band so that tiles stay
// roughly square away from the equator.
type Bucket struct {
	Lon int // floor of the longitude, or the start of a wide bucket
	Lat int // floor of the latitude
	X   int // column within the degree, 0..7
	Y   int // row within the degree, 0..7
}

// bucketSpan returns the width of a bucket in degrees at the given
// latitude.
func bucketSpan(lat float64) float64 {
	switch {
	case lat >= 89:
		return 12
	case lat >= 86:
		return 4
	case lat >= 83:
		return 2
	case lat >= 76:
		return 1
	case lat >= 62:
		return 0.5
	case lat >= 22:
		return 0.25
	case lat >= -22:
		return 0.125
	case lat >= -62:
		return 0.25
	case lat >= -76:
		return 0.5
	case lat >= -83:
		return 1
	case lat >= -86:
		return 2
	case lat >= -89:
		return 4
	default:
		return 12
	}
}

// MakeBucket returns the bucket containing p.
func MakeBucket(p math.Point2LL) Bucket {
	lon := math.NormalizeLongitude(p.Longitude())
	if lon >= 180 {
		lon = -180
	}
	lat := math.Clamp(p.Latitude(), -90, 89.999999)

	span := bucketSpan(lat)
	var b Bucket
	if span <= 1 {
		b.Lon = int(gomath.Floor(lon))
		b.X = int((lon - float64(b.Lon)) / span)
	} else {
		// wide buckets are aligned to multiples of their span
		b.Lon = int(gomath.Floor(gomath.Floor((lon+1e-6)/span) * span))
		if b.Lon < -180 {
			b.Lon = -180
		}
	}
	b.Lat = int(gomath.Floor(lat))
	b.Y = int((lat - float64(b.Lat)) * 8)
	return b
}

// Index packs the bucket into the integer used to name its .stg file.
func (b Bucket) Index() int64 {
	return int64(b.Lon+180)<<14 | int64(b.Lat+90)<<6 | int64(b.Y)<<3 | int64(b.X)
}

// FromIndex is the inverse of Index.
func FromIndex(idx int64) Bucket {
	return Bucket{
		Lon: int(idx>>14) - 180,
		Lat: int((idx>>6)&0xff) - 90,
		Y:   int((idx >> 3) & 0x7),
		X:   int(idx & 0x7),
	}
}

// Span returns the bucket's width and height in degrees.
func (b Bucket) Span() (float64, float64) {
	return bucketSpan(float64(b.Lat) + float64(b.Y)/8 + BucketHeight/2), BucketHeight
}

// Center returns the geographic center of the bucket.
func (b Bucket) Center() math.Point2LL {
	w, h := b.Span()
	lat := float64(b.Lat) + float64(b.Y)/8 + h/2
	var lon float64
	if w <= 1 {
		lon = float64(b.Lon) + float64(b.X)*w + w/2
	} else {
		lon = float64(b.Lon) + w/2
	}
	return math.Point2LL{lon, lat}
}

// BasePath returns the tile directory relative to a scenery root's
// Terrain/ directory, e.g. "e000n40/e007n47".
func (b Bucket) BasePath() string {
	hemi := func(v int, pos, neg byte) (byte, int) {
		if v < 0 {
			return neg, -v
		}
		return pos, v
	}
	top := func(v int) int {
		t := v / 10
		if v < 0 && t*10 != v {
			t--
		}
		return t * 10
	}

	topLonH, topLon := hemi(top(b.Lon), 'e', 'w')
	topLatH, topLat := hemi(top(b.Lat), 'n', 's')
	lonH, lon := hemi(b.Lon, 'e', 'w')
	latH, lat := hemi(b.Lat, 'n', 's')
	return fmt.Sprintf("%c%03d%c%02d/%c%03d%c%02d", topLonH, topLon, topLatH, topLat, lonH, lon, latH, lat)
}

func (b Bucket) String() string {
	return fmt.Sprintf("%s/%d", b.BasePath(), b.Index())
}
