package display

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
)

const (
	Width  = 128
	Height = 64
	// BitmapSize is the size of a full screen bitmap in SSD1306 page
	// format: 8 pages of 128 columns, one byte per column and page,
	// least significant bit on top.
	BitmapSize = Width * Height / 8
)

// BitmapID names one of the full screen images the controller shows.
type BitmapID int

const (
	Blank BitmapID = iota
	StartOne
	StartTwo
	StartThree
	StartFour
	StartPress
	Sign
	SignPass
	SignStop
	BlindOne
	BlindTwo
	BlindThree
	NightOne
	NightTwo
)

var bitmapNames = map[BitmapID]string{
	Blank:      "blank",
	StartOne:   "start_one",
	StartTwo:   "start_two",
	StartThree: "start_three",
	StartFour:  "start_four",
	StartPress: "start_press",
	Sign:       "sign",
	SignPass:   "sign_pass",
	SignStop:   "sign_stop",
	BlindOne:   "blind_one",
	BlindTwo:   "blind_two",
	BlindThree: "blind_three",
	NightOne:   "night_one",
	NightTwo:   "night_two",
}

func (s BitmapID) String() string {
	if name, ok := bitmapNames[s]; ok {
		return name
	}
	return fmt.Sprintf("bitmap(%d)", int(s))
}

// Bitmaps maps every BitmapID to its page formatted image data.
type Bitmaps map[BitmapID][]byte

// LoadBitmaps reads <name>.bin for every known bitmap from dir. Files
// that do not exist are replaced by a generated placeholder, files
// with the wrong size are an error. An empty dir yields placeholders
// only.
func LoadBitmaps(dir string) (Bitmaps, error) {
	ret := make(Bitmaps, len(bitmapNames))
	for id, name := range bitmapNames {
		if dir == "" || id == Blank {
			ret[id] = placeholder(id)
			continue
		}
		file := filepath.Join(dir, name+".bin")
		data, err := os.ReadFile(file)
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("bitmap missing, using placeholder", "file", file)
			ret[id] = placeholder(id)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("reading bitmap %s: %w", file, err)
		}
		if len(data) != BitmapSize {
			return nil, fmt.Errorf("bitmap %s has %d bytes, expected %d", file, len(data), BitmapSize)
		}
		ret[id] = data
	}
	return ret, nil
}

// placeholder draws a frame with one vertical bar per id number, so
// different images can be told apart on screen.
func placeholder(id BitmapID) []byte {
	data := make([]byte, BitmapSize)
	if id == Blank {
		return data
	}
	for x := 0; x < Width; x++ {
		data[x] |= 0x01                    // top row
		data[(Height/8-1)*Width+x] |= 0x80 // bottom row
	}
	for page := 0; page < Height/8; page++ {
		data[page*Width] = 0xff
		data[page*Width+Width-1] = 0xff
	}
	for bar := 0; bar < int(id); bar++ {
		x := 4 + bar*4
		for page := 1; page < Height/8-1; page++ {
			data[page*Width+x] = 0xff
		}
	}
	return data
}
