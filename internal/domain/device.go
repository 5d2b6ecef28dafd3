package domain

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
)

type DeviceInfo struct {
	DeviceID             string
	DeviceBrand          string
	DeviceModel          string
	DeviceModelBoot      string
	HardwareManufacturer string
	HardwareModel        string
	FirmwareBrand        string
	FirmwareType         string
}

type deviceProfile struct {
	model    string
	boot     string
	hardware string
}

var iosDevices = []deviceProfile{
	{model: "iPhone", boot: "iPhone8,1", hardware: "N71AP"},
	{model: "iPhone", boot: "iPhone8,2", hardware: "N66AP"},
	{model: "iPhone", boot: "iPhone8,4", hardware: "N69AP"},
	{model: "iPhone", boot: "iPhone9,1", hardware: "D10AP"},
	{model: "iPhone", boot: "iPhone9,2", hardware: "D11AP"},
	{model: "iPhone", boot: "iPhone9,3", hardware: "D101AP"},
	{model: "iPhone", boot: "iPhone9,4", hardware: "D111AP"},
	{model: "iPad", boot: "iPad5,4", hardware: "J82AP"},
	{model: "iPad", boot: "iPad6,7", hardware: "J98aAP"},
}

var iosFirmwares = []string{"9.3.5", "10.1.1", "10.2", "10.2.1", "10.3.1"}

// NewDeviceInfo derives a stable device fingerprint from an identity so the
// same account always presents the same device across restarts.
func NewDeviceInfo(identifier string) DeviceInfo {
	sum := sha256.Sum256([]byte(identifier))
	seed := binary.BigEndian.Uint64(sum[:8])

	profile := iosDevices[seed%uint64(len(iosDevices))]
	firmware := iosFirmwares[(seed>>16)%uint64(len(iosFirmwares))]

	return DeviceInfo{
		DeviceID:             hex.EncodeToString(sum[:16]),
		DeviceBrand:          "Apple",
		DeviceModel:          profile.model,
		DeviceModelBoot:      profile.boot,
		HardwareManufacturer: "Apple",
		HardwareModel:        profile.hardware,
		FirmwareBrand:        "iOS",
		FirmwareType:         firmware,
	}
}
