package device

import (
	"cmp"
	"path/filepath"
	"slices"
	"strings"

	"github.com/holoplot/go-evdev"
	"github.com/karalabe/hid"
)

// DeviceInfo describes an input device found on the system
type DeviceInfo struct {
	Path      string
	Name      string
	VendorID  uint16
	ProductID uint16
	Keyboard  bool

	// Filled from HID enumeration when the same vendor/product is found
	Manufacturer string
	Product      string
	SerialNumber string
}

// Label is a one-line description for pickers and listings.
func (d DeviceInfo) Label() string {
	label := d.Name
	if d.Manufacturer != "" && d.Product != "" && d.Product != d.Name {
		label += " (" + d.Manufacturer + " " + d.Product + ")"
	}
	return label
}

// letterKeys must all be present for a device to count as a keyboard.
var letterKeys = []evdev.EvCode{evdev.KEY_A, evdev.KEY_Z, evdev.KEY_SPACE, evdev.KEY_ENTER}

func isKeyboard(codes []evdev.EvCode) bool {
	for _, want := range letterKeys {
		if !slices.Contains(codes, want) {
			return false
		}
	}
	return true
}

// ListDevices returns all input devices that can be opened, keyboards
// first, enriched with HID manufacturer and product strings.
func ListDevices() ([]DeviceInfo, error) {
	paths, err := evdev.ListDevicePaths()
	if err != nil {
		return nil, err
	}

	result := make([]DeviceInfo, 0, len(paths))
	for _, p := range paths {
		info := DeviceInfo{Path: p.Path, Name: p.Name}
		if dev, err := evdev.Open(p.Path); err == nil {
			if id, err := dev.InputID(); err == nil {
				info.VendorID = id.Vendor
				info.ProductID = id.Product
			}
			info.Keyboard = isKeyboard(dev.CapableEvents(evdev.EV_KEY))
			dev.Close()
		}
		result = append(result, info)
	}

	if hid.Supported() {
		enrich(result, hid.Enumerate(0, 0))
	}
	sortDevices(result)
	return result, nil
}

// ListKeyboards returns only the devices that look like keyboards.
func ListKeyboards() ([]DeviceInfo, error) {
	all, err := ListDevices()
	if err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(d DeviceInfo) bool { return !d.Keyboard }), nil
}

func enrich(devices []DeviceInfo, hidDevices []hid.DeviceInfo) {
	for i := range devices {
		d := &devices[i]
		if d.VendorID == 0 && d.ProductID == 0 {
			continue
		}
		for _, h := range hidDevices {
			if h.VendorID == d.VendorID && h.ProductID == d.ProductID {
				d.Manufacturer = h.Manufacturer
				d.Product = h.Product
				d.SerialNumber = h.Serial
				break
			}
		}
	}
}

func sortDevices(devices []DeviceInfo) {
	slices.SortStableFunc(devices, func(a, b DeviceInfo) int {
		if a.Keyboard != b.Keyboard {
			if a.Keyboard {
				return -1
			}
			return 1
		}
		return cmp.Compare(a.Path, b.Path)
	})
}

// ByIDDir holds the persistent links udev creates for input devices.
const ByIDDir = "/dev/input/by-id"

// StablePath returns a link under ByIDDir that points at path, or path
// itself when there is none. Event node numbers change between boots.
func StablePath(path string) string {
	return stablePath(ByIDDir, path)
}

func stablePath(dir, path string) string {
	target, err := filepath.EvalSymlinks(path)
	if err != nil {
		return path
	}
	links, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return path
	}
	slices.Sort(links)

	found := ""
	for _, link := range links {
		resolved, err := filepath.EvalSymlinks(link)
		if err != nil || resolved != target {
			continue
		}
		if strings.HasSuffix(link, "-event-kbd") {
			return link
		}
		if found == "" {
			found = link
		}
	}
	if found != "" {
		return found
	}
	return path
}
