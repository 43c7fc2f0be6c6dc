// aviation/performance.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package aviation

import (
	"encoding/json"
	"fmt"
	gomath "math"

	"github.com/mmp/aitraffic/log"
	"github.com/mmp/aitraffic/math"
	"github.com/mmp/aitraffic/props"
	"github.com/mmp/aitraffic/util"
)

// PerformanceData holds the kinematic limits of one class of aircraft.
// Speeds are in knots, accelerations in knots per second.
type PerformanceData struct {
	Acceleration      float64
	Deceleration      float64
	BrakeDeceleration float64
	ClimbRate         float64 // feet per minute
	DescentRate       float64 // feet per minute
	RollRate          float64 // degrees per second
	MaxBank           float64 // degrees

	VRotate    float64
	VTakeoff   float64
	VClimb     float64
	VCruise    float64
	VDescent   float64
	VApproach  float64
	VTouchdown float64
	VTaxi      float64

	GearOperatingSpeed    float64
	GearOperatingAltitude float64 // feet AGL
}

// DefaultPerformance is used whenever an aircraft has no usable
// performance class.
var DefaultPerformance = PerformanceData{
	Acceleration:          4,
	Deceleration:          2,
	BrakeDeceleration:     20,
	ClimbRate:             3000,
	DescentRate:           1500,
	RollRate:              9,
	MaxBank:               30,
	VRotate:               150,
	VTakeoff:              160,
	VClimb:                300,
	VCruise:               430,
	VDescent:              300,
	VApproach:             170,
	VTouchdown:            150,
	VTaxi:                 15,
	GearOperatingSpeed:    187.5,
	GearOperatingAltitude: 900,
}

var perfKeys = []struct {
	key string
	get func(*PerformanceData) *float64
}{
	{"acceleration-kts-sec", func(p *PerformanceData) *float64 { return &p.Acceleration }},
	{"deceleration-kts-sec", func(p *PerformanceData) *float64 { return &p.Deceleration }},
	{"brake-deceleration-kts-sec", func(p *PerformanceData) *float64 { return &p.BrakeDeceleration }},
	{"climbrate-fpm", func(p *PerformanceData) *float64 { return &p.ClimbRate }},
	{"descentrate-fpm", func(p *PerformanceData) *float64 { return &p.DescentRate }},
	{"rollrate-deg-sec", func(p *PerformanceData) *float64 { return &p.RollRate }},
	{"maxbank-deg", func(p *PerformanceData) *float64 { return &p.MaxBank }},
	{"vrotate-kts", func(p *PerformanceData) *float64 { return &p.VRotate }},
	{"vtakeoff-kts", func(p *PerformanceData) *float64 { return &p.VTakeoff }},
	{"vclimb-kts", func(p *PerformanceData) *float64 { return &p.VClimb }},
	{"vcruise-kts", func(p *PerformanceData) *float64 { return &p.VCruise }},
	{"vdescent-kts", func(p *PerformanceData) *float64 { return &p.VDescent }},
	{"vapproach-kts", func(p *PerformanceData) *float64 { return &p.VApproach }},
	{"vtouchdown-kts", func(p *PerformanceData) *float64 { return &p.VTouchdown }},
	{"vtaxi-kts", func(p *PerformanceData) *float64 { return &p.VTaxi }},
	{"gear-operating-speed-kts", func(p *PerformanceData) *float64 { return &p.GearOperatingSpeed }},
	{"gear-operating-altitude-ft", func(p *PerformanceData) *float64 { return &p.GearOperatingAltitude }},
}

// NewPerformanceFromProps returns a copy of base with any values present
// in the node overriding it. A nil base starts from DefaultPerformance.
func NewPerformanceFromProps(n props.Node, base *PerformanceData) *PerformanceData {
	var p PerformanceData
	if base != nil {
		p = *base
	} else {
		p = DefaultPerformance
	}
	for _, k := range perfKeys {
		v := k.get(&p)
		*v = n.Float(k.key, *v)
	}
	return &p
}

// ActualSpeed moves cur toward tgt over dt seconds, limited by the
// acceleration or by the applicable deceleration. Braking is only
// available on the ground.
func (p *PerformanceData) ActualSpeed(cur, tgt, dt float64, onGround, maxBrake bool) float64 {
	if tgt > cur {
		return gomath.Min(cur+p.Acceleration*dt, tgt)
	}
	decel := p.Deceleration
	if onGround {
		decel = util.Select(maxBrake, p.BrakeDeceleration, p.DecelerationOnGround())
	}
	return gomath.Max(cur-decel*dt, tgt)
}

// DecelerationOnGround is the deceleration available from idle thrust
// and normal braking.
func (p *PerformanceData) DecelerationOnGround() float64 {
	return p.Deceleration * 4
}

// TurnRate returns the rate of turn in degrees per second at the given
// bank angle and speed.
func TurnRate(bank, speedKnots float64) float64 {
	if speedKnots < 1 {
		speedKnots = 1
	}
	// Standard rate: 1091 * tan(bank) / TAS
	return 1091 * gomath.Tan(math.Radians(math.Abs(bank))) / speedKnots
}

const groundTurnRadius = 10 // meters

// ActualHeading turns cur toward tgt over dt seconds. Airborne, the rate
// follows from the bank angle; on the ground from a fixed steering
// radius.
func (p *PerformanceData) ActualHeading(cur, tgt, bank, speedKnots, dt float64, onGround bool) float64 {
	var rate float64
	if onGround {
		rate = gomath.Min(math.Degrees(math.KnotsToMps(math.Abs(speedKnots))/groundTurnRadius), 30)
	} else {
		rate = TurnRate(bank, speedKnots)
	}
	turn := math.HeadingSignedTurn(cur, tgt)
	step := math.Clamp(turn, -rate*dt, rate*dt)
	return math.NormalizeHeading(cur + step)
}

// ActualBankAngle rolls toward tgt at RollRate, never exceeding MaxBank.
func (p *PerformanceData) ActualBankAngle(cur, tgt, dt float64) float64 {
	tgt = math.Clamp(tgt, -p.MaxBank, p.MaxBank)
	return math.Approach(cur, tgt, p.RollRate*dt)
}

const pitchRate = 3 // degrees per second

func (p *PerformanceData) ActualPitch(cur, tgt, dt float64) float64 {
	return math.Approach(cur, tgt, pitchRate*dt)
}

// ActualVerticalSpeed moves the vertical speed (fpm) toward tgt, which is
// limited to the climb and descent rates.
func (p *PerformanceData) ActualVerticalSpeed(cur, tgt, dt float64) float64 {
	tgt = math.Clamp(tgt, -p.DescentRate, p.ClimbRate)
	// Reach the target rate within about three seconds.
	maxStep := (p.ClimbRate + p.DescentRate) / 6 * dt
	return math.Approach(cur, tgt, maxStep)
}

// ActualAltitude integrates the vertical speed over dt, stopping at tgt.
func (p *PerformanceData) ActualAltitude(cur, tgt, vs, dt float64) float64 {
	return math.Approach(cur, tgt, math.Abs(vs)*dt/60)
}

func (p *PerformanceData) GearExtensible(altitudeAGL, speedKnots float64) bool {
	return altitudeAGL < p.GearOperatingAltitude && speedKnots < p.GearOperatingSpeed
}

// TakeoffRollDistance is the ground distance in meters needed to reach
// VRotate from a standstill.
func (p *PerformanceData) TakeoffRollDistance() float64 {
	v := math.KnotsToMps(p.VRotate)
	a := math.KnotsToMps(p.Acceleration)
	return v * v / (2 * a)
}

// LandingRollDistance is the ground distance in meters needed to slow
// from VTouchdown to twice VTaxi.
func (p *PerformanceData) LandingRollDistance() float64 {
	v0 := math.KnotsToMps(p.VTouchdown)
	v1 := math.KnotsToMps(2 * p.VTaxi)
	a := math.KnotsToMps(p.DecelerationOnGround())
	return gomath.Max(v0*v0-v1*v1, 0) / (2 * a)
}

///////////////////////////////////////////////////////////////////////////
// PerformanceDB

// PerformanceDB maps performance class names ("jet_transport",
// "turboprop_transport", ...) to their data.
type PerformanceDB struct {
	classes map[string]*PerformanceData
	unknown util.OnceSet[string]
}

func NewPerformanceDB() *PerformanceDB {
	return &PerformanceDB{classes: make(map[string]*PerformanceData)}
}

func (db *PerformanceDB) Add(class string, p *PerformanceData) {
	db.classes[class] = p
}

// Lookup returns the data for class. An unknown class is logged once and
// DefaultPerformance is returned along with ErrUnknownPerformanceClass.
func (db *PerformanceDB) Lookup(class string, lg *log.Logger) (*PerformanceData, error) {
	if db != nil {
		if p, ok := db.classes[class]; ok {
			return p, nil
		}
		if db.unknown.Add(class) {
			lg.Warn("unknown performance class; using default", "class", class)
		}
	}
	return &DefaultPerformance, fmt.Errorf("%s: %w", class, ErrUnknownPerformanceClass)
}

// LoadPerformanceDB reads a JSON object mapping class names to objects
// of the keys NewPerformanceFromProps understands. The file may be zstd
// compressed.
func LoadPerformanceDB(path string) (*PerformanceDB, error) {
	b, err := util.ReadMaybeCompressed(path)
	if err != nil {
		return nil, err
	}
	return ParsePerformanceDB(b)
}

func ParsePerformanceDB(b []byte) (*PerformanceDB, error) {
	var raw map[string]map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return nil, fmt.Errorf("performance database: %w", err)
	}
	db := NewPerformanceDB()
	for class, values := range raw {
		db.Add(class, NewPerformanceFromProps(props.MakeNode(values), nil))
	}
	return db, nil
}
