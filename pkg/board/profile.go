package board

import (
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v2"
)

// Profile describes a board's capability set. Simulator runs load one from
// YAML so board variants can be exercised without per-variant builds.
type Profile struct {
	Name              string `yaml:"name"`
	USBSwitch         bool   `yaml:"usb_switch"`
	ConfigGate        bool   `yaml:"config_gate"`
	ADC               bool   `yaml:"adc"`
	Button            bool   `yaml:"button"`
	PortAdvertisement bool   `yaml:"port_advertisement"`
	AcceleratedJTAG   bool   `yaml:"accelerated_jtag"`
}

// DefaultProfile is a fully equipped board, matching the flagship hardware
// revision.
func DefaultProfile() Profile {
	return Profile{
		Name:              "sim-full",
		USBSwitch:         true,
		ConfigGate:        true,
		ADC:               true,
		Button:            true,
		PortAdvertisement: true,
		AcceleratedJTAG:   true,
	}
}

// LoadProfile reads a capability profile from a YAML file.
func LoadProfile(path string) (Profile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("board: reading profile: %w", err)
	}
	var p Profile
	if err := yaml.Unmarshal(raw, &p); err != nil {
		return Profile{}, fmt.Errorf("board: parsing profile %s: %w", path, err)
	}
	if p.Name == "" {
		p.Name = "unnamed"
	}
	return p, nil
}
