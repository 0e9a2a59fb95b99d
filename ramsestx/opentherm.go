package ramsestx

import (
	"fmt"
	"strconv"
)

// OtMsgType is the 3-bit OpenTherm message-type field of a 3220 frame.
type OtMsgType string

const (
	OtReadData      OtMsgType = "Read-Data"
	OtWriteData     OtMsgType = "Write-Data"
	OtInvalidData   OtMsgType = "Invalid-Data"
	OtReserved      OtMsgType = "-reserved-"
	OtReadAck       OtMsgType = "Read-Ack"
	OtWriteAck      OtMsgType = "Write-Ack"
	OtDataInvalid   OtMsgType = "Data-Invalid"
	OtUnknownDataID OtMsgType = "Unknown-DataId"
)

var otMsgTypeTable = map[int]OtMsgType{
	0b000: OtReadData,
	0b001: OtWriteData,
	0b010: OtInvalidData,
	0b011: OtReserved,
	0b100: OtReadAck,
	0b101: OtWriteAck,
	0b110: OtDataInvalid,
	0b111: OtUnknownDataID,
}

// otValueKind selects how the 2 data bytes of an OpenTherm message are
// decoded, per spec.md §4.5.
type otValueKind int

const (
	otFlag8 otValueKind = iota
	otU8
	otS8
	otF88temp
	otU16
	otS16
	otPercent  // 0.5% resolution, single byte
	otFlowRate // 0.01 L/min resolution, s16/100
	otPressure // 0.1 bar resolution, s16/100
)

// otDataIDEntry describes one entry of the ~60-id OpenTherm dictionary.
type otDataIDEntry struct {
	name string
	kind otValueKind
}

// otDataIDs is the subset of the OpenTherm data-id dictionary exercised by
// evohome/OTB traffic, grounded on original_source/src/ramses_tx/opentherm.py's
// OPENTHERM_MESSAGES table.
var otDataIDs = map[int]otDataIDEntry{
	0x00: {"status_flags", otFlag8},
	0x01: {"ch_setpoint", otF88temp},
	0x02: {"master_config_flags", otFlag8},
	0x03: {"slave_config_flags", otFlag8},
	0x05: {"fault_flags", otFlag8},
	0x06: {"remote_flags", otFlag8},
	0x09: {"remote_override_setpoint", otF88temp},
	0x0A: {"tsp_count", otU8},
	0x0C: {"fault_buffer_size", otU8},
	0x0D: {"fault_buffer_entry", otU8},
	0x0E: {"max_rel_modulation_level", otPercent},
	0x0F: {"max_capacity_min_modulation", otU8},
	0x10: {"room_setpoint", otF88temp},
	0x11: {"rel_modulation_level", otPercent},
	0x12: {"ch_water_pressure", otPressure},
	0x13: {"dhw_flow_rate", otFlowRate},
	0x18: {"room_temp", otF88temp},
	0x19: {"boiler_output_temp", otF88temp},
	0x1A: {"dhw_temp", otF88temp},
	0x1B: {"outside_temp", otF88temp},
	0x1C: {"boiler_return_temp", otF88temp},
	0x30: {"dhw_bounds", otS8},
	0x31: {"ch_bounds", otS8},
	0x38: {"dhw_setpoint", otF88temp},
	0x39: {"ch_max_setpoint", otF88temp},
	0x71: {"burner_failed_starts", otU16},
	0x72: {"flame_low_signals", otU16},
	0x73: {"oem_diagnostic_code", otU16},
	0x74: {"burner_starts", otU16},
	0x75: {"ch_pump_starts", otU16},
	0x76: {"dhw_pump_starts", otU16},
	0x77: {"dhw_burner_starts", otU16},
	0x78: {"burner_hours", otU16},
	0x79: {"ch_pump_hours", otU16},
	0x7A: {"dhw_pump_hours", otU16},
	0x7B: {"dhw_burner_hours", otU16},
	0x7F: {"product_version", otU16},
}

// otParity returns the 1-bit even parity of x.
func otParity(x uint32) int {
	x ^= x >> 16
	x ^= x >> 8
	x ^= x >> 4
	x ^= x >> 2
	x ^= x >> 1
	return int(x & 1)
}

// OtFrame is the decoded form of a 3220 payload's 4 data bytes.
type OtFrame struct {
	MsgType OtMsgType
	DataID  int
	Name    string
	Value   any // float64, uint8, int8, uint16, int16, []int (flag8), or nil
}

// decodeOpenTherm decodes the 8 hex chars ("MMDDAABB") following the
// leading "00" of a 3220 payload.
func decodeOpenTherm(frame string) (*OtFrame, error) {
	if len(frame) != 8 {
		return nil, newPacketPayloadInvalid("invalid OpenTherm frame length: %q", frame)
	}
	raw, err := strconv.ParseUint(frame, 16, 32)
	if err != nil {
		return nil, newPacketPayloadInvalid("invalid OpenTherm frame: %q: %v", frame, err)
	}

	mm := raw >> 24
	parityBit := int(mm >> 7)
	if parityBit != otParity(uint32(raw)&0x7FFFFFFF) {
		return nil, newPacketPayloadInvalid("invalid OpenTherm parity bit: %q", frame)
	}
	if mm&0x0F != 0 {
		return nil, newPacketPayloadInvalid("invalid OpenTherm spare bits: %q", frame)
	}

	msgTypeBits := int((mm & 0x70) >> 4)
	msgType, ok := otMsgTypeTable[msgTypeBits]
	if !ok {
		return nil, newPacketPayloadInvalid("invalid OpenTherm msg-type: %03b", msgTypeBits)
	}

	dataID := int((raw >> 16) & 0xFF)
	dataBytes := uint16(raw & 0xFFFF)

	entry, known := otDataIDs[dataID]
	if !known {
		if msgType != OtUnknownDataID {
			return nil, newPacketPayloadInvalid("unknown OpenTherm data-id: 0x%02X", dataID)
		}
		return &OtFrame{MsgType: msgType, DataID: dataID, Name: fmt.Sprintf("data_id_0x%02X", dataID)}, nil
	}

	f := &OtFrame{MsgType: msgType, DataID: dataID, Name: entry.name}

	// No data for these message types; the data bytes are conventionally zero.
	switch msgType {
	case OtInvalidData, OtReserved, OtDataInvalid, OtUnknownDataID:
		return f, nil
	}

	hb := byte(dataBytes >> 8)
	lb := byte(dataBytes)

	switch entry.kind {
	case otFlag8:
		hi, _ := hexToFlag8(fmt.Sprintf("%02X", hb), false)
		lo, _ := hexToFlag8(fmt.Sprintf("%02X", lb), false)
		f.Value = append(append([]int{}, hi[:]...), lo[:]...)
	case otU8:
		f.Value = hb
	case otS8:
		f.Value = int8(hb)
	case otU16:
		f.Value = dataBytes
	case otS16:
		f.Value = int16(dataBytes)
	case otF88temp:
		if hb == 0xFF && lb == 0xFF {
			f.Value = nil
		} else {
			// Documented as /100, not true OpenTherm f8.8 (/256): the
			// RAMSES gateway firmware re-scales OT payloads to match its
			// native temperature encoding before framing them as 3220.
			f.Value = float64(int16(dataBytes)) / 100
		}
	case otPercent:
		// 0.5% resolution: the high byte holds whole percent*2.
		f.Value = roundTo(float64(hb)/2, 0.5)
	case otFlowRate:
		f.Value = roundTo(float64(int16(dataBytes))/100, 0.01)
	case otPressure:
		f.Value = roundTo(float64(int16(dataBytes))/100, 0.1)
	}

	return f, nil
}

// roundTo rounds v to the nearest multiple of step.
func roundTo(v, step float64) float64 {
	return float64(int64(v/step+0.5)) * step
}
