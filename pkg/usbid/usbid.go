package usbid

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
)

// DefaultPaths lists where distributions install the usb.ids database.
var DefaultPaths = []string{
	"/usr/share/hwdata/usb.ids",
	"/var/lib/usbutils/usb.ids",
	"/usr/share/misc/usb.ids",
}

// Vendors of the devices the bridge ships personalities for. They resolve
// without a usb.ids file.
var builtin = map[uint16]string{
	0x0944: "KORG, Inc.",
	0x1209: "Generic",
	0x1c75: "Arturia",
}

var builtinProducts = map[uint32]string{
	key(0x1209, 0x6d69): "usbmidi simulated interface",
}

func key(vid, pid uint16) uint32 {
	return uint32(vid)<<16 | uint32(pid)
}

// Database maps vendor and product IDs to names.
type Database struct {
	paths []string

	mu       sync.RWMutex
	loaded   bool
	vendors  map[uint16]string
	products map[uint32]string
}

// New returns a database seeded with the built-in names that searches
// paths on Load. Nil paths selects DefaultPaths.
func New(paths ...string) *Database {
	if paths == nil {
		paths = DefaultPaths
	}
	db := &Database{
		paths:    paths,
		vendors:  make(map[uint16]string, len(builtin)),
		products: make(map[uint32]string, len(builtinProducts)),
	}
	for vid, name := range builtin {
		db.vendors[vid] = name
	}
	for k, name := range builtinProducts {
		db.products[k] = name
	}
	return db
}

// Load reads the first database found on the search path. Later calls
// return immediately. A missing database is not an error: lookups fall
// back to the built-in names.
func (db *Database) Load() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.loaded {
		return nil
	}
	db.loaded = true
	for _, path := range db.paths {
		f, err := os.Open(path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return err
		}
		defer f.Close()
		return db.parse(f)
	}
	return nil
}

// Read merges the entries of a usb.ids formatted stream.
func (db *Database) Read(r io.Reader) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.parse(r)
}

// parse handles vendor lines ("vvvv  Name") and the tab-indented product
// lines under them ("\tpppp  Name"). Class and other sections reset the
// current vendor.
func (db *Database) parse(r io.Reader) error {
	var (
		sc     = bufio.NewScanner(r)
		vendor uint16
		inVID  bool
	)
	for sc.Scan() {
		line := sc.Text()
		if line == "" || line[0] == '#' {
			continue
		}
		product := line[0] == '\t'
		if product && (!inVID || strings.HasPrefix(line, "\t\t")) {
			continue
		}
		id, name, ok := entry(strings.TrimPrefix(line, "\t"))
		switch {
		case !ok:
			inVID = false
		case product:
			db.products[key(vendor, id)] = name
		default:
			vendor, inVID = id, true
			db.vendors[id] = name
		}
	}
	return sc.Err()
}

// entry splits "xxxx  Name" into its hex ID and name.
func entry(s string) (uint16, string, bool) {
	if len(s) < 6 || s[4] != ' ' {
		return 0, "", false
	}
	id, err := strconv.ParseUint(s[:4], 16, 16)
	if err != nil {
		return 0, "", false
	}
	return uint16(id), strings.TrimLeft(s[5:], " "), true
}

func (db *Database) Vendor(vid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.vendors[vid]
}

func (db *Database) Product(vid, pid uint16) string {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.products[key(vid, pid)]
}

// Name describes a device as "Vendor Product [vvvv:pppp]", omitting
// whichever names are unknown.
func (db *Database) Name(vid, pid uint16) string {
	id := fmt.Sprintf("[%04x:%04x]", vid, pid)
	parts := make([]string, 0, 3)
	if v := db.Vendor(vid); v != "" {
		parts = append(parts, v)
	}
	if p := db.Product(vid, pid); p != "" {
		parts = append(parts, p)
	}
	return strings.Join(append(parts, id), " ")
}

var (
	defaultDB   *Database
	defaultOnce sync.Once
)

// Lookup names a device using the system database, loaded on first use.
func Lookup(vid, pid uint16) string {
	defaultOnce.Do(func() {
		defaultDB = New()
		_ = defaultDB.Load()
	})
	return defaultDB.Name(vid, pid)
}
