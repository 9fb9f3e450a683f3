package wand

import "fmt"

// BatteryState classifies the battery byte of the input report.
type BatteryState uint8

const (
	BatteryUnknown BatteryState = iota
	BatteryDraining
	BatteryCharging
	BatteryCharged
)

// Battery is the wand's charge status. Level is a fraction in [0, 1] and is
// meaningful only while draining.
type Battery struct {
	State BatteryState
	Level float32
}

func batteryFromByte(b byte) Battery {
	switch b {
	case 0x00:
		return Battery{State: BatteryDraining, Level: 0.0}
	case 0x01:
		return Battery{State: BatteryDraining, Level: 0.2}
	case 0x02:
		return Battery{State: BatteryDraining, Level: 0.4}
	case 0x03:
		return Battery{State: BatteryDraining, Level: 0.6}
	case 0x04:
		return Battery{State: BatteryDraining, Level: 0.8}
	case 0xEE:
		return Battery{State: BatteryCharging}
	case 0xEF:
		return Battery{State: BatteryCharged}
	default:
		return Battery{State: BatteryUnknown}
	}
}

func (b Battery) String() string {
	switch b.State {
	case BatteryDraining:
		return fmt.Sprintf("draining (%.0f%%)", b.Level*100)
	case BatteryCharging:
		return "charging"
	case BatteryCharged:
		return "charged"
	default:
		return "unknown"
	}
}
