// atc/messages.go
// Copyright(c) 2022-2025 vice contributors, licensed under the GNU Public License, Version 3.
// SPDX: GPL-3.0-only

package atc

import (
	"fmt"
	"log/slog"
	"time"
)

// TransmissionGap is the minimum time between two transmissions on one
// controller's frequency.
const TransmissionGap = 10 * time.Second

// MessageState is where a record is in the radio handshake with its
// controller.
type MessageState int

const (
	StateNormal MessageState = iota
	StateAckResumeTaxi
	StateAckHold
	StateTaxiCleared
	StateAckTaxiCleared
	StateStartTaxi
	StateReportRunway
	StateAckReportRunway
	StateSwitchGroundTower
	StateAckSwitchGroundTower
	StateLineUpRunway
	StateClearedTakeoff
	StateSwitchTowerToGround
	StateAnnounceArrival
	StateClearedToLand
	StateAckClearedToLand
)

func (s MessageState) String() string {
	return [...]string{"NORMAL", "ACK_RESUME_TAXI", "ACK_HOLD", "TAXI_CLEARED", "ACK_TAXI_CLEARED",
		"START_TAXI", "REPORT_RUNWAY", "ACK_REPORT_RUNWAY", "SWITCH_GROUND_TOWER",
		"ACK_SWITCH_GROUND_TOWER", "LINE_UP_RUNWAY", "CLEARED_TAKEOFF", "SWITCH_TOWER_TO_GROUND",
		"ANNOUNCE_ARRIVAL", "CLEARED_TO_LAND", "ACK_CLEARED_TO_LAND"}[s]
}

type MessageKind int

const (
	MsgRequestTaxiClearance MessageKind = iota
	MsgIssueTaxiClearance
	MsgAcknowledgeTaxiClearance
	MsgHoldPosition
	MsgAcknowledgeHoldPosition
	MsgResumeTaxi
	MsgAcknowledgeResumeTaxi
	MsgReportRunwayHoldShort
	MsgAcknowledgeReportRunwayHoldShort
	MsgSwitchGroundTower
	MsgAcknowledgeSwitchGroundTower
	MsgReadyForDeparture
	MsgSwitchTowerToGround
	MsgAcknowledgeSwitchTowerToGround
	MsgClearedForTakeoff
	MsgAnnounceArrival
	MsgClearedToLand
	MsgAcknowledgeClearedToLand
	NumMessageKinds
)

func (m MessageKind) String() string {
	return [...]string{"RequestTaxiClearance", "IssueTaxiClearance", "AcknowledgeTaxiClearance",
		"HoldPosition", "AcknowledgeHoldPosition", "ResumeTaxi", "AcknowledgeResumeTaxi",
		"ReportRunwayHoldShort", "AcknowledgeReportRunwayHoldShort", "SwitchGroundTower",
		"AcknowledgeSwitchGroundTower", "ReadyForDeparture", "SwitchTowerToGround", "AcknowledgeSwitchTowerToGround",
		"ClearedForTakeoff", "AnnounceArrival", "ClearedToLand", "AcknowledgeClearedToLand"}[m]
}

// Direction says who is talking.
type Direction int

const (
	AirToGround Direction = iota
	GroundToAir
)

func (d Direction) String() string {
	if d == AirToGround {
		return "air->ground"
	}
	return "ground->air"
}

// renderMessage produces the radio text for a transmission. Air-to-ground
// messages are read back with the callsign at the end.
func renderMessage(m MessageKind, callsign, facility, runway string) string {
	switch m {
	case MsgRequestTaxiClearance:
		return fmt.Sprintf("%s ground, %s, ready to taxi", facility, callsign)
	case MsgIssueTaxiClearance:
		return fmt.Sprintf("%s, taxi to runway %s via the published route", callsign, runway)
	case MsgAcknowledgeTaxiClearance:
		return fmt.Sprintf("taxi to runway %s, %s", runway, callsign)
	case MsgHoldPosition:
		return fmt.Sprintf("%s, hold position", callsign)
	case MsgAcknowledgeHoldPosition:
		return fmt.Sprintf("holding position, %s", callsign)
	case MsgResumeTaxi:
		return fmt.Sprintf("%s, resume taxi", callsign)
	case MsgAcknowledgeResumeTaxi:
		return fmt.Sprintf("resuming taxi, %s", callsign)
	case MsgReportRunwayHoldShort:
		return fmt.Sprintf("%s, report holding short of runway %s", callsign, runway)
	case MsgAcknowledgeReportRunwayHoldShort:
		return fmt.Sprintf("holding short of runway %s, %s", runway, callsign)
	case MsgSwitchGroundTower:
		return fmt.Sprintf("%s, contact %s tower", callsign, facility)
	case MsgAcknowledgeSwitchGroundTower:
		return fmt.Sprintf("over to %s tower, %s", facility, callsign)
	case MsgReadyForDeparture:
		return fmt.Sprintf("%s tower, %s, holding short runway %s, ready for departure", facility, callsign, runway)
	case MsgSwitchTowerToGround:
		return fmt.Sprintf("%s, contact %s ground", callsign, facility)
	case MsgAcknowledgeSwitchTowerToGround:
		return fmt.Sprintf("over to %s ground, %s", facility, callsign)
	case MsgClearedForTakeoff:
		return fmt.Sprintf("%s, runway %s, cleared for takeoff", callsign, runway)
	case MsgAnnounceArrival:
		return fmt.Sprintf("%s tower, %s, inbound for runway %s", facility, callsign, runway)
	case MsgClearedToLand:
		return fmt.Sprintf("%s, runway %s, cleared to land", callsign, runway)
	case MsgAcknowledgeClearedToLand:
		return fmt.Sprintf("cleared to land runway %s, %s", runway, callsign)
	default:
		return fmt.Sprintf("%s: unknown message %d", callsign, int(m))
	}
}

// CheckTransmissionState attempts to move rec from one handshake state to
// the next by transmitting msg. It fails if rec is not in state from or if
// the frequency has been used within the last TransmissionGap.
func (c *Controller) CheckTransmissionState(rec *TrafficRecord, from, to MessageState, now time.Time,
	msg MessageKind, dir Direction) bool {
	if rec.State != from {
		return false
	}
	if !c.isAvailable(now) {
		return false
	}

	c.transmit(rec, msg, dir, now)
	rec.State = to
	return true
}

func (c *Controller) isAvailable(now time.Time) bool {
	if c.lastTransmission.IsZero() || now.Sub(c.lastTransmission) >= TransmissionGap {
		c.available = true
	}
	return c.available
}

func (c *Controller) transmit(rec *TrafficRecord, msg MessageKind, dir Direction, now time.Time) {
	if now.After(c.lastTransmission) {
		c.lastTransmission = now
	}
	c.available = false

	text := renderMessage(msg, rec.Callsign, c.facilityName(), rec.Runway)
	c.lg.Debug("transmission", slog.String("callsign", rec.Callsign), slog.String("message", msg.String()),
		slog.String("text", text))
	c.events.Post(Event{
		Type:           RadioTransmissionEvent,
		Callsign:       rec.Callsign,
		AircraftID:     rec.ID,
		FromController: c.Name,
		ToController:   c.Name,
		Message:        msg,
		Direction:      dir,
		Text:           text,
		Time:           now,
	})
}
