package sprite

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"frogquest/internal/geom"
	"io"
	"maps"
	"slices"
	"unicode/utf8"
)

var ErrCorruptSheet = errors.New("corrupt sprite sheet")

const (
	sheetMagic   = "FQSS"
	sheetVersion = 1

	keyKindChar byte = 0
	keyKindName byte = 1
)

func compareKeys(a, b Key) int {
	if a.IsChar() != b.IsChar() {
		if a.IsChar() {
			return -1
		}
		return 1
	}
	if a.IsChar() {
		return cmp.Compare(a.Char, b.Char)
	}
	return cmp.Compare(a.Name, b.Name)
}

// MarshalBinary encodes the sheet with entries sorted by key so equal sheets
// encode to equal bytes.
func (s *Sheet) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(sheetMagic)
	buf.WriteByte(sheetVersion)

	if len(s.sprites) > 0xffff {
		return nil, fmt.Errorf("%d sprites: too many", len(s.sprites))
	}
	buf.Write(binary.LittleEndian.AppendUint16(nil, uint16(len(s.sprites))))

	keys := slices.SortedFunc(maps.Keys(s.sprites), compareKeys)
	for _, key := range keys {
		data := s.sprites[key]

		var name string
		if key.IsChar() {
			buf.WriteByte(keyKindChar)
			name = string(key.Char)
		} else {
			buf.WriteByte(keyKindName)
			name = key.Name
		}
		if len(name) > 0xff {
			return nil, fmt.Errorf("key %v: name too long", key)
		}
		buf.WriteByte(byte(len(name)))
		buf.WriteString(name)

		if data.Size.Width < 0 || data.Size.Height < 0 || data.Size.Width > 0xffff || data.Size.Height > 0xffff {
			return nil, fmt.Errorf("key %v: size %v out of range", key, data.Size)
		}
		buf.Write(binary.LittleEndian.AppendUint16(nil, uint16(data.Size.Width)))
		buf.Write(binary.LittleEndian.AppendUint16(nil, uint16(data.Size.Height)))
		for _, px := range data.Pixels {
			buf.WriteByte(byte(px))
		}
	}

	return buf.Bytes(), nil
}

func (s *Sheet) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)

	header := make([]byte, len(sheetMagic)+1)
	if _, err := io.ReadFull(r, header); err != nil {
		return fmt.Errorf("reading header: %w", ErrCorruptSheet)
	}
	if string(header[:len(sheetMagic)]) != sheetMagic {
		return fmt.Errorf("magic %q: %w", header[:len(sheetMagic)], ErrCorruptSheet)
	}
	if v := header[len(sheetMagic)]; v != sheetVersion {
		return fmt.Errorf("version %d: %w", v, ErrCorruptSheet)
	}

	var count uint16
	if err := binary.Read(r, binary.LittleEndian, &count); err != nil {
		return fmt.Errorf("reading count: %w", ErrCorruptSheet)
	}

	sprites := make(map[Key]SpriteData, count)
	for i := range count {
		key, err := readKey(r)
		if err != nil {
			return fmt.Errorf("entry #%d: %w", i, err)
		}

		var w, h uint16
		if err := binary.Read(r, binary.LittleEndian, &w); err != nil {
			return fmt.Errorf("entry #%d width: %w", i, ErrCorruptSheet)
		}
		if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
			return fmt.Errorf("entry #%d height: %w", i, ErrCorruptSheet)
		}

		raw := make([]byte, int(w)*int(h))
		if _, err := io.ReadFull(r, raw); err != nil {
			return fmt.Errorf("entry #%d pixels: %w", i, ErrCorruptSheet)
		}
		pixels := make([]PalletColor, len(raw))
		for j, b := range raw {
			if b >= numPalletColors {
				return fmt.Errorf("entry #%d pallet index %d: %w", i, b, ErrCorruptSheet)
			}
			pixels[j] = PalletColor(b)
		}

		sprites[key] = SpriteData{
			Size:   geom.Sz(int32(w), int32(h)),
			Pixels: pixels,
		}
	}

	if r.Len() != 0 {
		return fmt.Errorf("%d trailing bytes: %w", r.Len(), ErrCorruptSheet)
	}

	s.sprites = sprites
	return nil
}

func readKey(r *bytes.Reader) (Key, error) {
	kind, err := r.ReadByte()
	if err != nil {
		return Key{}, fmt.Errorf("reading key kind: %w", ErrCorruptSheet)
	}
	n, err := r.ReadByte()
	if err != nil {
		return Key{}, fmt.Errorf("reading key length: %w", ErrCorruptSheet)
	}
	name := make([]byte, n)
	if _, err := io.ReadFull(r, name); err != nil {
		return Key{}, fmt.Errorf("reading key: %w", ErrCorruptSheet)
	}

	switch kind {
	case keyKindChar:
		c, size := utf8.DecodeRune(name)
		if c == utf8.RuneError || size != len(name) {
			return Key{}, fmt.Errorf("char key %q: %w", name, ErrCorruptSheet)
		}
		return CharKey(c), nil
	case keyKindName:
		if len(name) == 0 {
			return Key{}, fmt.Errorf("empty name key: %w", ErrCorruptSheet)
		}
		return NameKey(string(name)), nil
	default:
		return Key{}, fmt.Errorf("key kind %d: %w", kind, ErrCorruptSheet)
	}
}
