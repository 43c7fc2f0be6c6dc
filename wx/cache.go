// wx/cache.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package wx

import (
	"bufio"
	"bytes"
	"encoding/json"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/util"
)

// METARValidity is how long a report is used after it was received.
const METARValidity = 2 * time.Hour

// Cache holds the latest METAR for each station.
type Cache struct {
	cache *expirable.LRU[string, METAR]
}

func NewCache() *Cache {
	return &Cache{
		cache: expirable.NewLRU[string, METAR](4096, nil, METARValidity),
	}
}

// Add stores m unless a newer report for the station is already held.
func (c *Cache) Add(m METAR) {
	if cur, ok := c.cache.Get(m.ICAO); ok && cur.Time.After(m.Time) {
		return
	}
	c.cache.Add(m.ICAO, m)
}

func (c *Cache) Get(icao string) (METAR, bool) {
	return c.cache.Get(strings.ToUpper(icao))
}

// Ready reports whether a current report exists for the station.
func (c *Cache) Ready(icao string) bool {
	_, ok := c.Get(icao)
	return ok
}

func (c *Cache) Len() int {
	return c.cache.Len()
}

// LoadFile reads METARs from path, which may be zstd-compressed. JSON
// files hold an array in the aviationweather.gov API format; anything
// else is taken as one raw report per line. Malformed reports are
// logged and skipped. It returns the number of reports added.
func (c *Cache) LoadFile(path string, now time.Time, lg *log.Logger) (int, error) {
	b, err := util.ReadMaybeCompressed(path)
	if err != nil {
		return 0, err
	}

	if t := bytes.TrimSpace(b); len(t) > 0 && t[0] == '[' {
		var ms []METAR
		if err := json.Unmarshal(t, &ms); err != nil {
			return 0, err
		}
		for _, m := range ms {
			c.Add(m)
		}
		return len(ms), nil
	}

	n := 0
	scan := bufio.NewScanner(bytes.NewReader(b))
	for scan.Scan() {
		line := strings.TrimSpace(scan.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		m, err := ParseMETAR(line, now)
		if err != nil {
			lg.Warnf("%s: %v", path, err)
			continue
		}
		c.Add(m)
		n++
	}
	return n, scan.Err()
}
