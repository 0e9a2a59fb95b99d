package ramsestx

import (
	"strconv"
	"strings"
)

// ParserFunc decodes a single payload element (already split out of any
// array wrapper) into its named fields.
type ParserFunc func(payload string, f *Frame) (map[string]PayloadValue, error)

var parserTable = map[string]ParserFunc{
	"0004": parse0004,
	"0006": parse0006,
	"0008": parse0008,
	"0009": parse0009,
	"000A": parse000A,
	"000C": parse000C,
	"0404": parse0404,
	"0418": parse0418,
	"1060": parse1060,
	"10E0": parse10E0,
	"1100": parse1100,
	"1260": parseTemp,
	"1290": parseTemp,
	"30C9": parseTemp,
	"3200": parseTemp,
	"3210": parseTemp,
	"1F09": parse1F09,
	"1F41": parse1F41,
	"1FC9": parse1FC9,
	"22F1": parse22F1,
	"22F3": parse22F3,
	"2349": parse2349,
	"2E04": parse2E04,
	"3150": parse3150,
	"31D9": parse31D9,
	"31DA": parse31DA,
	"3220": parse3220,
	"3B00": parse3B00,
	"3EF0": parse3EF0,
	"3EF1": parse3EF1,
	"7FFF": parse7FFF,
}

// codeElementLen returns the per-element hex-char length for array-form
// frames of code, or false for a code with no fixed stride, in which case
// ParsePayload rejects the array payload.
func codeElementLen(code string) (int, bool) {
	if code == "1FC9" {
		return 12, true
	}
	if n, ok := codeArrayElementLen[code]; ok {
		return n * 2, true
	}
	return 0, false
}

// ParsePayload dispatches f's payload to its registered parser, splitting
// array-form payloads into one element per entity. Codes with no registered
// parser fall back to a single raw-hex element.
func ParsePayload(f *Frame) (*Payload, error) {
	parser, ok := parserTable[f.Code]
	if !ok {
		return &Payload{Elements: []map[string]PayloadValue{{"payload": f.Payload}}}, nil
	}

	if f.HasArray() {
		elemLen, ok := codeElementLen(f.Code)
		if !ok || elemLen == 0 || len(f.Payload)%elemLen != 0 {
			return nil, newPacketPayloadInvalid("bad array payload for %s: %q", f.Code, f.Payload)
		}
		var elems []map[string]PayloadValue
		for i := 0; i < len(f.Payload); i += elemLen {
			e, err := parser(f.Payload[i:i+elemLen], f)
			if err != nil {
				return nil, err
			}
			elems = append(elems, e)
		}
		return &Payload{Elements: elems}, nil
	}

	e, err := parser(f.Payload, f)
	if err != nil {
		return nil, err
	}
	return &Payload{Elements: []map[string]PayloadValue{e}}, nil
}

func parse0004(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 4 {
		return nil, newPacketPayloadInvalid("bad 0004 payload: %q", payload)
	}
	name, err := hexToStr(payload[4:])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 0004 name: %v", err)
	}
	return map[string]PayloadValue{
		"zone_idx": payload[:2],
		"name":     name,
	}, nil
}

func parse0006(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) != 8 {
		return nil, newPacketPayloadInvalid("bad 0006 payload: %q", payload)
	}
	n, err := strconv.ParseUint(payload[4:8], 16, 32)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 0006 counter: %v", err)
	}
	return map[string]PayloadValue{"change_counter": uint32(n)}, nil
}

func parse0008(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) != 4 {
		return nil, newPacketPayloadInvalid("bad 0008 payload: %q", payload)
	}
	demand, err := hexToPercent(payload[2:4], true)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 0008 demand: %v", err)
	}
	return map[string]PayloadValue{
		"domain_id":    payload[:2],
		"relay_demand": demand,
	}, nil
}

func parse0009(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) != 6 {
		return nil, newPacketPayloadInvalid("bad 0009 payload: %q", payload)
	}
	enabled, err := hexToBool(payload[2:4])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 0009 failsafe flag: %v", err)
	}
	return map[string]PayloadValue{
		"domain_id":         payload[:2],
		"failsafe_enabled":  enabled,
		"_unknown_reserved": payload[4:6],
	}, nil
}

func parse000A(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) != 12 {
		return nil, newPacketPayloadInvalid("bad 000A payload: %q", payload)
	}
	flags, err := hexToU8(payload[2:4])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 000A flags: %v", err)
	}
	minTemp, err := hexToTemp(payload[4:8])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 000A min_temp: %v", err)
	}
	maxTemp, err := hexToTemp(payload[8:12])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 000A max_temp: %v", err)
	}
	return map[string]PayloadValue{
		"zone_idx":             payload[:2],
		"local_override":       flags&0b001 == 0,
		"openwindow_function":  flags&0b010 == 0,
		"multiroom_mode":       flags&0x10 == 0,
		"min_temp":             minTemp,
		"max_temp":             maxTemp,
	}, nil
}

// deviceRoleByCode maps the 2-hex device_class byte of a 000C payload
// header to its zone-role name.
var deviceRoleByCode = map[string]string{
	"00": "zone_sensor", "01": "radiator_valve", "02": "underfloor_heating",
	"03": "mix_valve", "04": "zone_actuators", "0D": "dhw_sensor",
	"0E": "dhw", "0F": "heating_control",
}

func parse000C(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 4 {
		return nil, newPacketPayloadInvalid("bad 000C payload: %q", payload)
	}
	zoneIdx, devClass := payload[:2], payload[2:4]
	rest := payload[4:]

	devices, err := decode000CDevices(rest)
	if err != nil {
		return nil, err
	}

	return map[string]PayloadValue{
		"zone_idx":    zoneIdx,
		"device_role": deviceRoleByCode[devClass],
		"devices":     devices,
	}, nil
}

// decode000CDevices disambiguates the "short" (10-char: 4-char flag header
// + 6-char device hex id) vs "long" (12-char: 6-char flag header + 6-char
// device hex id) element encoding by trying both and keeping whichever
// yields an all-valid run of device ids and a consistent flag-header
// prefix across elements.
func decode000CDevices(rest string) ([]map[string]PayloadValue, error) {
	if rest == "" {
		return nil, nil
	}
	tryLen := func(elemLen int) ([]map[string]PayloadValue, bool) {
		if len(rest)%elemLen != 0 {
			return nil, false
		}
		var out []map[string]PayloadValue
		for i := 0; i < len(rest); i += elemLen {
			elem := rest[i : i+elemLen]
			hexID := elem[elemLen-6:]
			id, err := hexToID(hexID)
			if err != nil {
				return nil, false
			}
			out = append(out, map[string]PayloadValue{
				"device_id": id,
				"flags":     elem[:elemLen-6],
			})
		}
		return out, true
	}

	shortResult, shortOK := tryLen(10)
	longResult, longOK := tryLen(12)

	switch {
	case shortOK && !longOK:
		return shortResult, nil
	case longOK && !shortOK:
		return longResult, nil
	case shortOK && longOK:
		// Both strides divide evenly (len(rest) is a multiple of 60): the
		// long form's flag prefix repeats "00" *more* consistently across
		// elements in real traffic, so prefer it when it does.
		if allSameFlags(longResult) && !allSameFlags(shortResult) {
			return longResult, nil
		}
		return shortResult, nil
	default:
		return nil, newPacketPayloadInvalid("indeterminate 000C element length: %q", rest)
	}
}

func allSameFlags(elems []map[string]PayloadValue) bool {
	if len(elems) == 0 {
		return true
	}
	first := elems[0]["flags"]
	for _, e := range elems[1:] {
		if e["flags"] != first {
			return false
		}
	}
	return true
}

func parse0404(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 14 {
		return nil, newPacketPayloadInvalid("bad 0404 payload: %q", payload)
	}
	zoneIdx := payload[:2]
	header := payload[2:8]
	if header != "200008" && header != "230008" {
		return nil, newPacketPayloadInvalid("bad 0404 header: %q", header)
	}
	fragLen, err := hexToU8(payload[8:10])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 0404 frag_length: %v", err)
	}
	fragNum, err := hexToU8(payload[10:12])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 0404 frag_number: %v", err)
	}
	fragTotal, err := hexToU8(payload[12:14])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 0404 frag_total: %v", err)
	}
	fragment := ""
	if len(payload) > 14 {
		fragment = payload[14:]
	}
	if (f.Verb == VerbI || f.Verb == VerbRP) && fragment != "" && int(fragLen)*2 != len(fragment) {
		return nil, newPacketPayloadInvalid(
			"bad 0404 fragment: frag_length*2 (%d) != len(fragment) (%d)", int(fragLen)*2, len(fragment),
		)
	}
	return map[string]PayloadValue{
		"zone_idx":    zoneIdx,
		"frag_length": fragLen,
		"frag_number": fragNum,
		"frag_total":  fragTotal,
		"fragment":    fragment,
	}, nil
}

var faultStateByCode = map[string]string{"00": "fault", "40": "restore", "C0": "unknown"}
var faultTypeByCode = map[string]string{
	"00": "system_fault", "01": "mains_low", "02": "actuator_fault",
	"03": "sensor_fault", "04": "battery_low", "06": "comms_fault", "0A": "sensor_error",
}

func parse0418(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 4 {
		return nil, newPacketPayloadInvalid("bad 0418 payload: %q", payload)
	}
	if payload[2:4] == "00" && strings.Count(payload, "F") >= len(payload)-8 {
		return map[string]PayloadValue{"log_idx": payload[:2], "is_null_entry": true}, nil
	}
	if len(payload) < 44 {
		return nil, newPacketPayloadInvalid("bad 0418 log entry: %q", payload)
	}
	logIdx := payload[:2]
	state := payload[4:6]
	fault := payload[6:8]
	domainID := payload[10:12]
	dts, err := hexToDts(payload[12:24])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 0418 timestamp: %v", err)
	}
	deviceID, err := hexToID(payload[30:36])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 0418 device_id: %v", err)
	}
	return map[string]PayloadValue{
		"log_idx":       logIdx,
		"is_null_entry": false,
		"state":         faultStateByCode[state],
		"type":          faultTypeByCode[fault],
		"domain_id":     domainID,
		"timestamp":     dts,
		"device_id":     deviceID,
	}, nil
}

func parse1060(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) != 6 {
		return nil, newPacketPayloadInvalid("bad 1060 payload: %q", payload)
	}
	level, err := hexToPercent(payload[2:4], true)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 1060 battery_level: %v", err)
	}
	return map[string]PayloadValue{
		"zone_idx":      payload[:2],
		"battery_level": level,
		"low_battery":   payload[4:6] == "00",
	}, nil
}

func parse10E0(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 38 {
		return nil, newPacketPayloadInvalid("bad 10E0 payload: %q", payload)
	}
	manufactured, err := hexToDate(payload[4:12])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 10E0 manufactured date: %v", err)
	}
	firmware, err := hexToDate(payload[12:20])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 10E0 firmware date: %v", err)
	}
	description, err := hexToStr(payload[36:])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 10E0 description: %v", err)
	}
	return map[string]PayloadValue{
		"oem_code":     payload[:2],
		"manufactured": manufactured,
		"firmware":     firmware,
		"product_id":   payload[34:36],
		"description":  description,
	}, nil
}

func parse1100(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 8 {
		return nil, newPacketPayloadInvalid("bad 1100 payload: %q", payload)
	}
	cycleRateRaw, err := hexToU8(payload[2:4])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 1100 cycle_rate: %v", err)
	}
	minOnRaw, err := hexToU8(payload[4:6])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 1100 min_on_time: %v", err)
	}
	minOffRaw, err := hexToU8(payload[6:8])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 1100 min_off_time: %v", err)
	}
	fields := map[string]PayloadValue{
		"domain_id":     payload[:2],
		"cycle_rate":    float64(cycleRateRaw) / 4,
		"min_on_time":   float64(minOnRaw) / 4,
		"min_off_time":  float64(minOffRaw) / 4,
	}
	if len(payload) >= 16 {
		band, err := hexToTemp(payload[10:14])
		if err != nil {
			return nil, newPacketPayloadInvalid("bad 1100 proportional_band_width: %v", err)
		}
		fields["proportional_band_width"] = band
		diffRaw, err := hexToU8(payload[14:16])
		if err != nil {
			return nil, newPacketPayloadInvalid("bad 1100 difference: %v", err)
		}
		fields["difference"] = float64(diffRaw) / 4
	}
	return fields, nil
}

func parseTemp(payload string, f *Frame) (map[string]PayloadValue, error) {
	if f.Verb == VerbRQ && len(payload) == 2 {
		// A request carries only the zone index.
		return map[string]PayloadValue{"zone_idx": payload}, nil
	}
	if len(payload) != 6 {
		return nil, newPacketPayloadInvalid("bad %s payload: %q", f.Code, payload)
	}
	temp, err := hexToTemp(payload[2:6])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad %s temperature: %v", f.Code, err)
	}
	return map[string]PayloadValue{
		"zone_idx":    payload[:2],
		"temperature": temp,
	}, nil
}

// parse1F09 decodes a system_sync announcement: a domain/device byte
// (FF for a regular sync, 00 when answering a request, F8 post-bind)
// followed by a 2-byte countdown in tenths of a second until the
// controller's next 1F09/2309/30C9 sync burst. DecodeMessage fills in
// "_next_sync" from the packet's receipt time, since that's the one
// piece of context a ParserFunc doesn't have.
func parse1F09(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) != 6 {
		return nil, newPacketPayloadInvalid("bad 1F09 payload: %q", payload)
	}
	raw, err := strconv.ParseUint(payload[2:6], 16, 32)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 1F09 remaining_seconds: %v", err)
	}
	return map[string]PayloadValue{
		"domain_id":         payload[:2],
		"remaining_seconds": float64(raw) / 10,
	}, nil
}

var dhwModeByCode = map[string]string{"00": "follow_schedule", "02": "permanent_override", "04": "temporary_override"}

func parse1F41(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 6 {
		return nil, newPacketPayloadInvalid("bad 1F41 payload: %q", payload)
	}
	active, err := hexToBool(payload[2:4])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 1F41 active: %v", err)
	}
	fields := map[string]PayloadValue{
		"zone_idx": payload[:2],
		"active":   active,
		"mode":     dhwModeByCode[payload[4:6]],
	}
	if len(payload) >= 18 {
		until, err := hexToDtm(payload[6:18])
		if err != nil {
			return nil, newPacketPayloadInvalid("bad 1F41 until: %v", err)
		}
		fields["until"] = until
	}
	return fields, nil
}

func parse1FC9(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) != 12 {
		return nil, newPacketPayloadInvalid("bad 1FC9 element: %q", payload)
	}
	idx := payload[:2]
	code := strings.ToUpper(payload[2:6])
	deviceID, err := hexToID(payload[6:12])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 1FC9 device_id: %v", err)
	}
	return map[string]PayloadValue{
		"idx":       idx,
		"code":      code,
		"device_id": deviceID,
		"phase":     bindPhase(f),
	}, nil
}

// bindPhase classifies a 1FC9 frame into its handshake phase per spec.md
// §4.7: offer (I, dst is self or the broadcast address), accept (W, dst !=
// src), confirm (I, otherwise).
func bindPhase(f *Frame) string {
	switch {
	case f.Verb == VerbI && (f.Dst.Equal(f.Src) || f.Dst.ID() == AllDeviceID):
		return "offer"
	case f.Verb == VerbW && !f.Dst.Equal(f.Src):
		return "accept"
	case f.Verb == VerbI:
		return "confirm"
	default:
		return "unknown"
	}
}

func parse22F1(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 6 {
		return nil, newPacketPayloadInvalid("bad 22F1 payload: %q", payload)
	}
	scheme := "itho"
	switch payload[2:4] {
	case "04":
		scheme = "nuaire"
	case "0A":
		scheme = "orcon"
	}
	modeRaw, err := hexToU8(payload[2:4])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 22F1 fan_mode: %v", err)
	}
	numSpeedsRaw, err := hexToU8(payload[4:6])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 22F1 num_speeds: %v", err)
	}
	return map[string]PayloadValue{
		"scheme":     scheme,
		"fan_mode":   modeRaw,
		"num_speeds": numSpeedsRaw,
	}, nil
}

var fanBoostUnitsByCode = map[string]string{"00": "minutes", "01": "percent"}

func parse22F3(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 8 {
		return nil, newPacketPayloadInvalid("bad 22F3 payload: %q", payload)
	}
	timer, err := strconv.ParseUint(payload[4:8], 16, 16)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 22F3 timer: %v", err)
	}
	return map[string]PayloadValue{
		"timer": uint16(timer),
		"units": fanBoostUnitsByCode[payload[2:4]],
	}, nil
}

var zoneModeByCode = map[string]string{
	"00": "follow_schedule", "01": "advanced_override", "02": "permanent_override",
	"03": "countdown_override", "04": "temporary_override",
}

func parse2349(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 8 {
		return nil, newPacketPayloadInvalid("bad 2349 payload: %q", payload)
	}
	setpoint, err := hexToTemp(payload[2:6])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 2349 setpoint: %v", err)
	}
	fields := map[string]PayloadValue{
		"zone_idx": payload[:2],
		"mode":     zoneModeByCode[payload[6:8]],
		"setpoint": setpoint,
	}
	switch {
	case len(payload) >= 26:
		until, err := hexToDtm(payload[14:26])
		if err != nil {
			return nil, newPacketPayloadInvalid("bad 2349 until: %v", err)
		}
		fields["until"] = until
	case len(payload) >= 14 && payload[8:14] != "FFFFFF":
		duration, err := strconv.ParseUint(payload[8:14], 16, 32)
		if err != nil {
			return nil, newPacketPayloadInvalid("bad 2349 duration: %v", err)
		}
		fields["duration"] = uint32(duration)
	}
	return fields, nil
}

var systemModeByCode = map[string]string{
	"00": "auto", "01": "heat_off", "02": "eco_boost",
	"03": "away", "04": "day_off", "07": "custom",
}

func parse2E04(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 2 {
		return nil, newPacketPayloadInvalid("bad 2E04 payload: %q", payload)
	}
	fields := map[string]PayloadValue{"system_mode": systemModeByCode[payload[:2]]}
	if len(payload) >= 14 {
		until, err := hexToDtm(payload[2:14])
		if err != nil {
			return nil, newPacketPayloadInvalid("bad 2E04 until: %v", err)
		}
		fields["until"] = until
	}
	return fields, nil
}

func parse3150(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) != 4 {
		return nil, newPacketPayloadInvalid("bad 3150 payload: %q", payload)
	}
	demand, err := hexToPercent(payload[2:4], true)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 3150 heat_demand: %v", err)
	}
	idx := payload[:2]
	fields := map[string]PayloadValue{"heat_demand": demand}
	if domainIDs[idx] {
		fields["domain_id"] = idx
	} else {
		fields["zone_idx"] = idx
	}
	return fields, nil
}

func parse31D9(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 6 {
		return nil, newPacketPayloadInvalid("bad 31D9 payload: %q", payload)
	}
	fanModeRaw, err := strconv.ParseUint(payload[2:6], 16, 16)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 31D9 fan_mode: %v", err)
	}
	return map[string]PayloadValue{
		"domain_id": payload[:2],
		"fan_mode":  uint16(fanModeRaw),
	}, nil
}

func parse31DA(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 58 {
		return nil, newPacketPayloadInvalid("bad 31DA payload: %q", payload)
	}
	airQuality, err := hexToPercent(payload[4:6], true)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 31DA air_quality: %v", err)
	}
	co2Raw, err := hexToU16(payload[10:14])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 31DA co2_level: %v", err)
	}
	indoorHumidity, err := hexToPercent(payload[14:16], false)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 31DA indoor_humidity: %v", err)
	}
	outdoorHumidity, err := hexToPercent(payload[16:18], false)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 31DA outdoor_humidity: %v", err)
	}
	exhaustTemp, err := hexToTemp(payload[18:22])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 31DA exhaust_temp: %v", err)
	}
	supplyTemp, err := hexToTemp(payload[22:26])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 31DA supply_temp: %v", err)
	}
	indoorTemp, err := hexToTemp(payload[26:30])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 31DA indoor_temp: %v", err)
	}
	outdoorTemp, err := hexToTemp(payload[30:34])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 31DA outdoor_temp: %v", err)
	}
	fanInfoRaw, err := hexToU8(payload[36:38])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 31DA fan_info: %v", err)
	}
	return map[string]PayloadValue{
		"domain_id":        payload[:2],
		"air_quality":      airQuality,
		"co2_level":        co2Raw,
		"indoor_humidity":  indoorHumidity,
		"outdoor_humidity": outdoorHumidity,
		"exhaust_temp":     exhaustTemp,
		"supply_temp":      supplyTemp,
		"indoor_temp":      indoorTemp,
		"outdoor_temp":     outdoorTemp,
		"fan_info":         fanInfoRaw,
	}, nil
}

func parse3220(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) != 10 || payload[:2] != "00" {
		return nil, newPacketPayloadInvalid("bad 3220 payload: %q", payload)
	}
	ot, err := decodeOpenTherm(payload[2:])
	if err != nil {
		return nil, err
	}
	return map[string]PayloadValue{
		"msg_type": string(ot.MsgType),
		"data_id":  ot.DataID,
		"name":     ot.Name,
		"value":    ot.Value,
	}, nil
}

func parse3B00(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) != 4 {
		return nil, newPacketPayloadInvalid("bad 3B00 payload: %q", payload)
	}
	toggle, err := hexToBool(payload[2:4])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 3B00 toggle: %v", err)
	}
	return map[string]PayloadValue{
		"domain_id": payload[:2],
		"sync":      toggle,
	}, nil
}

func parse3EF0(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 4 {
		return nil, newPacketPayloadInvalid("bad 3EF0 payload: %q", payload)
	}
	modulation, err := hexToPercent(payload[2:4], false)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 3EF0 modulation_level: %v", err)
	}
	fields := map[string]PayloadValue{"modulation_level": modulation}
	if len(payload) >= 10 {
		fields["flags"] = payload[8:10]
	}
	return fields, nil
}

func parse3EF1(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 20 {
		return nil, newPacketPayloadInvalid("bad 3EF1 payload: %q", payload)
	}
	actuatorSync, err := strconv.ParseUint(payload[2:6], 16, 16)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 3EF1 actuator_sync_time: %v", err)
	}
	onTime, err := strconv.ParseUint(payload[6:10], 16, 16)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 3EF1 actuator_on_time: %v", err)
	}
	offTime, err := strconv.ParseUint(payload[10:14], 16, 16)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 3EF1 actuator_off_time: %v", err)
	}
	modulation, err := hexToPercent(payload[18:20], false)
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 3EF1 modulation_level: %v", err)
	}
	return map[string]PayloadValue{
		"actuator_sync_time": uint16(actuatorSync),
		"actuator_on_time":   uint16(onTime),
		"actuator_off_time":  uint16(offTime),
		"modulation_level":   modulation,
	}, nil
}

var puzzleSubTypeByCode = map[string]string{
	"10": "version", "20": "version", "11": "impersonation", "12": "message", "13": "message", "7F": "discard",
}

func parse7FFF(payload string, f *Frame) (map[string]PayloadValue, error) {
	if len(payload) < 4 || payload[:2] != "00" {
		return nil, newPacketPayloadInvalid("bad 7FFF payload: %q", payload)
	}
	subType := payload[2:4]
	kind, ok := puzzleSubTypeByCode[subType]
	if !ok {
		return nil, newPacketPayloadInvalid("bad 7FFF sub-type: %q", subType)
	}
	fields := map[string]PayloadValue{"sub_type": subType, "kind": kind}

	body, err := hexToStr(payload[4:])
	if err != nil {
		return nil, newPacketPayloadInvalid("bad 7FFF body: %v", err)
	}

	switch subType {
	case "11":
		if len(body) < 15 {
			return nil, newPacketPayloadInvalid("bad 7FFF impersonation header: %q", body)
		}
		fields["impersonated_header"] = body[:15]
	case "10", "20", "12", "13":
		fields["message"] = body
	}
	return fields, nil
}
