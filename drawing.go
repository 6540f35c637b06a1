package pdscreen

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownDrawingType is returned for a drawing type other than spiral or wave.
var ErrUnknownDrawingType = errors.New("unknown drawing type")

// DrawingType selects the dataset, and with it the models, used for a drawing.
type DrawingType int

const (
	Spiral DrawingType = iota
	Wave
)

// DrawingTypes lists the datasets in training order.
var DrawingTypes = []DrawingType{Spiral, Wave}

// String returns the dataset name, which is also the artifact prefix.
func (d DrawingType) String() string {
	switch d {
	case Spiral:
		return "spiral"
	case Wave:
		return "wave"
	}
	return fmt.Sprintf("DrawingType(%d)", int(d))
}

// Title is the capitalised name shown in reports.
func (d DrawingType) Title() string {
	s := d.String()
	return strings.ToUpper(s[:1]) + s[1:]
}

// MarshalText encodes the drawing type by its dataset name.
func (d DrawingType) MarshalText() ([]byte, error) {
	if d != Spiral && d != Wave {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDrawingType, int(d))
	}
	return []byte(d.String()), nil
}

// UnmarshalText accepts anything ParseDrawingType does.
func (d *DrawingType) UnmarshalText(text []byte) error {
	dt, err := ParseDrawingType(string(text))
	if err != nil {
		return err
	}
	*d = dt
	return nil
}

// ParseDrawingType accepts the short command line forms "s" and "w" as well as
// the full dataset names, case-insensitively.
func ParseDrawingType(s string) (DrawingType, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "s", "spiral":
		return Spiral, nil
	case "w", "wave":
		return Wave, nil
	}
	return 0, fmt.Errorf("%w %q: use 's' for spiral or 'w' for wave", ErrUnknownDrawingType, s)
}
