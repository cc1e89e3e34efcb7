// Package repository loads and serves the immutable point catalog: the
// mapping from a NASA bus address to everything the rest of the bridge
// needs to know about that point (type, arithmetic, enum labels, and the
// Home Assistant discovery hints).
package repository

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// PointType is the semantic type of a point's payload, independent of the
// NASA message-type bits that only determine payload width on the wire.
type PointType string

// Known point types.
const (
	TypeENUM PointType = "ENUM"
	TypeVAR  PointType = "VAR"
	TypeLVAR PointType = "LVAR"
	TypeSTR  PointType = "STR"
)

// Platform carries the Home-Assistant-discovery-specific fields that vary
// by entity platform (sensor, switch, select, number, binary_sensor).
type Platform struct {
	Type       string   `yaml:"type,omitempty"`
	Options    []string `yaml:"options,omitempty"`
	Min        *float64 `yaml:"min,omitempty"`
	Max        *float64 `yaml:"max,omitempty"`
	Step       *float64 `yaml:"step,omitempty"`
	PayloadOn  string   `yaml:"payload_on,omitempty"`
	PayloadOff string   `yaml:"payload_off,omitempty"`
}

// HassOpts carries the discovery hints for a point.
type HassOpts struct {
	Writable        bool     `yaml:"writable,omitempty"`
	DefaultPlatform string   `yaml:"default_platform,omitempty"`
	Platform        Platform `yaml:"platform,omitempty"`
	Unit            string   `yaml:"unit,omitempty"`
	DeviceClass     string   `yaml:"device_class,omitempty"`
	StateClass      string   `yaml:"state_class,omitempty"`
}

// Point is a single entry of the repository file: a stable name bound to a
// bus address and the rules for decoding/encoding its value.
type Point struct {
	Name    string `yaml:"-"`
	Address uint16 `yaml:"-"`

	RawAddress        string           `yaml:"address"`
	Type              PointType        `yaml:"type"`
	Signed            bool             `yaml:"signed,omitempty"`
	Arithmetic        string           `yaml:"arithmetic,omitempty"`
	ReverseArithmetic string           `yaml:"reverse-arithmetic,omitempty"`
	Enum              map[int64]string `yaml:"enum,omitempty"`
	HassOpts          HassOpts         `yaml:"hass_opts,omitempty"`
	Remarks           string           `yaml:"remarks,omitempty"`
	Description       string           `yaml:"description,omitempty"`
}

// Repository is the immutable, in-memory point catalog. The zero value is
// not usable; build one with Load.
type Repository struct {
	byAddress map[uint16]*Point
	byName    map[string]*Point
}

// Load reads and parses the YAML repository file at path. It fails if the
// file cannot be read or parsed, if any point's address is not valid hex,
// or if two points share an address - the repository's address-to-point
// mapping must be a bijection.
func Load(path string) (*Repository, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("repository: reading %s: %w", path, err)
	}
	return Parse(data)
}

// Parse builds a Repository from raw YAML bytes, the mapping of point name
// to point definition described in spec §6.
func Parse(data []byte) (*Repository, error) {
	raw := map[string]*Point{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("repository: parsing yaml: %w", err)
	}

	r := &Repository{
		byAddress: make(map[uint16]*Point, len(raw)),
		byName:    make(map[string]*Point, len(raw)),
	}
	for name, pt := range raw {
		pt.Name = name

		addrStr := strings.TrimPrefix(strings.TrimPrefix(pt.RawAddress, "0x"), "0X")
		addr, err := strconv.ParseUint(addrStr, 16, 16)
		if err != nil {
			return nil, fmt.Errorf("repository: point %q has invalid address %q: %w", name, pt.RawAddress, err)
		}
		pt.Address = uint16(addr)

		if existing, ok := r.byAddress[pt.Address]; ok {
			return nil, fmt.Errorf("repository: address 0x%04X claimed by both %q and %q", pt.Address, existing.Name, name)
		}

		r.byAddress[pt.Address] = pt
		r.byName[name] = pt
	}
	return r, nil
}

// ByAddress looks a point up by its 16-bit NASA message number.
func (r *Repository) ByAddress(addr uint16) (*Point, bool) {
	pt, ok := r.byAddress[addr]
	return pt, ok
}

// ByName looks a point up by its stable textual identifier.
func (r *Repository) ByName(name string) (*Point, bool) {
	pt, ok := r.byName[name]
	return pt, ok
}

// Len returns the number of points in the repository.
func (r *Repository) Len() int {
	return len(r.byName)
}

// Names returns every point name in the repository, in no particular order.
func (r *Repository) Names() []string {
	names := make([]string, 0, len(r.byName))
	for name := range r.byName {
		names = append(names, name)
	}
	return names
}
