package hal

import (
	"fmt"
	"os"
	"strings"
)

// BoardModel identifies a detected single-board computer.
type BoardModel int

const (
	BoardUnknown BoardModel = iota
	BoardRPiZero
	BoardRPiZeroW
	BoardRPiZero2W
	BoardRPi3
	BoardRPi3Plus
	BoardRPi4
	BoardRPi5
)

// BoardInfo describes the capabilities of the board the HAL is bound to.
// RAMSize feeds config.DetectProfile's tiering decision.
type BoardInfo struct {
	Model    BoardModel
	Name     string
	HasWiFi  bool
	HasBT    bool
	NumGPIO  int
	NumI2C   int
	NumSPI   int
	CPUCores int
	RAMSize  int // MB
	GPIOChip string
}

func (b BoardModel) String() string {
	switch b {
	case BoardRPiZero:
		return "Raspberry Pi Zero"
	case BoardRPiZeroW:
		return "Raspberry Pi Zero W"
	case BoardRPiZero2W:
		return "Raspberry Pi Zero 2 W"
	case BoardRPi3:
		return "Raspberry Pi 3"
	case BoardRPi3Plus:
		return "Raspberry Pi 3 B+"
	case BoardRPi4:
		return "Raspberry Pi 4"
	case BoardRPi5:
		return "Raspberry Pi 5"
	default:
		return "Unknown"
	}
}

// GPIOChipName returns the GPIO character device name for this board,
// auto-detecting the RP1 (Pi 5) vs BCM2835 (Pi ≤4) controller.
func (b BoardModel) GPIOChipName() string {
	for _, chip := range []string{"gpiochip0", "gpiochip4"} {
		labelPath := fmt.Sprintf("/sys/bus/gpio/devices/%s/label", chip)
		data, err := os.ReadFile(labelPath)
		if err != nil {
			continue
		}
		label := strings.TrimSpace(string(data))
		if strings.Contains(label, "pinctrl-rp1") || strings.Contains(label, "pinctrl-bcm2") {
			return chip
		}
	}
	return "gpiochip0"
}

// DetectBoard reads /proc/cpuinfo (falling back to the device-tree model)
// to identify the board. When /proc/cpuinfo cannot be read it returns
// BoardUnknown with no GPIO and one CPU core; an unrecognised model is
// described as a generic 26-pin, single-core, 512 MB board.
func DetectBoard() (*BoardInfo, error) {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return &BoardInfo{Model: BoardUnknown, Name: "Unknown Board", NumGPIO: 0, CPUCores: 1}, nil
	}

	model := extractModel(string(data))
	info := &BoardInfo{Model: model, Name: model.String()}

	switch model {
	case BoardRPiZero, BoardRPiZeroW, BoardRPiZero2W:
		info.HasWiFi = model != BoardRPiZero
		info.HasBT = model != BoardRPiZero
		info.NumGPIO, info.NumI2C, info.NumSPI = 26, 1, 2
		info.CPUCores = 1
		if model == BoardRPiZero2W {
			info.CPUCores = 4
		}
		info.RAMSize = 512
	case BoardRPi3, BoardRPi3Plus:
		info.HasWiFi, info.HasBT = true, true
		info.NumGPIO, info.NumI2C, info.NumSPI = 26, 1, 2
		info.CPUCores = 4
		info.RAMSize = 1024
	case BoardRPi4:
		info.HasWiFi, info.HasBT = true, true
		info.NumGPIO, info.NumI2C, info.NumSPI = 26, 6, 5
		info.CPUCores = 4
		info.RAMSize = detectRAMSize()
	case BoardRPi5:
		info.HasWiFi, info.HasBT = true, true
		info.NumGPIO, info.NumI2C, info.NumSPI = 26, 8, 5
		info.CPUCores = 4
		info.RAMSize = detectRAMSize()
	default:
		info.Name = "Unknown Board"
		info.NumGPIO, info.NumI2C, info.NumSPI = 26, 1, 1
		info.CPUCores = 1
		info.RAMSize = 512
	}
	if model != BoardUnknown {
		info.GPIOChip = model.GPIOChipName()
	} else {
		info.GPIOChip = "gpiochip0"
	}

	return info, nil
}

func extractModel(cpuinfo string) BoardModel {
	for _, line := range strings.Split(cpuinfo, "\n") {
		if strings.HasPrefix(line, "Model") {
			if m := matchBoardModel(line); m != BoardUnknown {
				return m
			}
		}
	}
	if dtModel, err := os.ReadFile("/proc/device-tree/model"); err == nil {
		return matchBoardModel(string(dtModel))
	}
	return BoardUnknown
}

func matchBoardModel(text string) BoardModel {
	model := strings.ToLower(text)
	switch {
	case strings.Contains(model, "pi 5"):
		return BoardRPi5
	case strings.Contains(model, "pi 4"):
		return BoardRPi4
	case strings.Contains(model, "pi 3 model b+"):
		return BoardRPi3Plus
	case strings.Contains(model, "pi 3"):
		return BoardRPi3
	case strings.Contains(model, "zero 2 w"):
		return BoardRPiZero2W
	case strings.Contains(model, "zero w"):
		return BoardRPiZeroW
	case strings.Contains(model, "zero"):
		return BoardRPiZero
	default:
		return BoardUnknown
	}
}

func detectRAMSize() int {
	data, err := os.ReadFile("/proc/meminfo")
	if err != nil {
		return 0
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "MemTotal:") {
			parts := strings.Fields(line)
			if len(parts) >= 2 {
				var kb int
				fmt.Sscanf(parts[1], "%d", &kb)
				return kb / 1024
			}
		}
	}
	return 0
}
